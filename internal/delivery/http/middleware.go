package http

import (
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	// Multipart uploads and the JSON reload call are the only bodies clients send
	corsAllowHeaders = "Content-Type"
	// Lets the front end size annotated image downloads from /files
	corsExposeHeaders = "Content-Length, Content-Type"
	corsMaxAge        = "3600"
)

// methodOrder fixes the order of Access-Control-Allow-Methods
var methodOrder = map[string]int{
	http.MethodGet:    0,
	http.MethodHead:   1,
	http.MethodPost:   2,
	http.MethodPut:    3,
	http.MethodPatch:  4,
	http.MethodDelete: 5,
}

// CORSPolicy is the cross-origin answer for the routes this service registers.
// Methods are filled by AllowRoutes once the router is complete and are read-only afterwards.
type CORSPolicy struct {
	allowedOrigins []string
	methods        map[string]bool
	allowMethods   string
}

// NewCORSPolicy creates a policy for the given origins. Entries ending in "*" match by prefix.
func NewCORSPolicy(allowedOrigins []string) *CORSPolicy {
	return &CORSPolicy{
		allowedOrigins: allowedOrigins,
		methods:        map[string]bool{},
		allowMethods:   http.MethodOptions,
	}
}

// AllowRoutes records every method the router serves
func (p *CORSPolicy) AllowRoutes(routes gin.RoutesInfo) {
	for _, r := range routes {
		p.methods[r.Method] = true
	}

	methods := make([]string, 0, len(p.methods)+1)
	for m := range p.methods {
		methods = append(methods, m)
	}
	sort.Slice(methods, func(i, j int) bool {
		oi, iok := methodOrder[methods[i]]
		oj, jok := methodOrder[methods[j]]
		if iok != jok {
			return iok
		}
		if oi != oj {
			return oi < oj
		}
		return methods[i] < methods[j]
	})
	p.allowMethods = strings.Join(append(methods, http.MethodOptions), ", ")
}

// AllowMethods returns the Access-Control-Allow-Methods value
func (p *CORSPolicy) AllowMethods() string {
	return p.allowMethods
}

func (p *CORSPolicy) allowsMethod(method string) bool {
	return method == http.MethodOptions || p.methods[method]
}

// CORSMiddleware answers preflights from the policy and tags simple responses for allowed origins.
// A preflight asking for a method no route serves is refused with 405.
func CORSMiddleware(policy *CORSPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Add("Vary", "Origin")

		origin := c.Request.Header.Get("Origin")
		allowed := origin != "" && isAllowedOrigin(origin, policy.allowedOrigins)

		if c.Request.Method == http.MethodOptions {
			requested := c.Request.Header.Get("Access-Control-Request-Method")
			if allowed && requested != "" && !policy.allowsMethod(requested) {
				c.AbortWithStatus(http.StatusMethodNotAllowed)
				return
			}
			if allowed {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", policy.AllowMethods())
				h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
				h.Set("Access-Control-Max-Age", corsMaxAge)
			}
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		if allowed {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Expose-Headers", corsExposeHeaders)
		}

		c.Next()
	}
}

// isAllowedOrigin checks if the origin is in the allowed list
func isAllowedOrigin(origin string, allowedOrigins []string) bool {
	for _, allowed := range allowedOrigins {
		// Support prefix wildcards such as http://localhost:*
		if strings.HasSuffix(allowed, "*") {
			prefix := strings.TrimSuffix(allowed, "*")
			if strings.HasPrefix(origin, prefix) {
				return true
			}
		} else if origin == allowed {
			return true
		}
	}
	return false
}

// LoggerMiddleware logs requests in the service's "[HTTP]" log format.
// Requests to /health are not logged.
func LoggerMiddleware() gin.HandlerFunc {
	return gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/health"},
		Formatter: func(p gin.LogFormatterParams) string {
			return fmt.Sprintf("[HTTP] %s %s %s %d %s %s\n",
				p.TimeStamp.Format(time.RFC3339), p.Method, p.Path, p.StatusCode, p.Latency, p.ErrorMessage)
		},
	})
}

// RecoveryMiddleware turns panics into a JSON 500 like every other handler error
func RecoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Printf("[HTTP] Panic serving %s %s: %v", c.Request.Method, c.Request.URL.Path, recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	})
}
