package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shogun-olives/hacksc-2024-WildIn/internal/domain"
	"golang.org/x/time/rate"
)

// ClientConfig holds connection settings for the inference service
type ClientConfig struct {
	URL               string
	APIKey            string
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerSecond float64
	Burst             int
}

// Client talks to a remote object-detection service over HTTP
type Client struct {
	httpClient  *http.Client
	url         string
	apiKey      string
	maxRetries  int
	rateLimiter *rate.Limiter
	backoff     func(attempt int) time.Duration
	debug       bool
}

// predictResponse is the JSON body returned by the inference service
type predictResponse struct {
	Detections []domain.RawDetection `json:"detections"`
}

// NewClient creates a new inference client
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 4
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		url:         strings.TrimSuffix(cfg.URL, "/"),
		apiKey:      cfg.APIKey,
		maxRetries:  retries,
		rateLimiter: rate.NewLimiter(rate.Limit(rps), burst),
		backoff:     exponentialBackoff,
	}
}

// SetDebug enables logging of raw inference rows
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

// exponentialBackoff returns 500ms, 1s, 2s, ... for attempts 1, 2, 3, ...
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(500*(1<<(attempt-1))) * time.Millisecond
}

// Predict uploads the image and returns the raw detection rows.
// Transient failures are retried up to maxRetries times; persistent 429 responses
// end in ErrRateLimitExceeded, everything else in ErrModelUnavailable.
func (c *Client) Predict(ctx context.Context, imagePath string) ([]domain.RawDetection, error) {
	payload, contentType, err := buildMultipart(imagePath)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			if err := sleepContext(ctx, c.backoff(attempt-1)); err != nil {
				return nil, fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
			}
		}

		if err := c.rateLimiter.Wait(ctx); err != nil {
			log.Printf("[Inference] Rate limiter error: %v", err)
			return nil, fmt.Errorf("%w: rate limiter: %v", domain.ErrModelUnavailable, err)
		}

		resp, err := c.doRequest(ctx, payload, contentType)
		if err != nil {
			log.Printf("[Inference] Request error (attempt %d): %v", attempt, err)
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("%w: read body: %v", domain.ErrModelUnavailable, readErr)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			log.Printf("[Inference] Rate limited (attempt %d/%d)", attempt, c.maxRetries)
			lastErr = fmt.Errorf("%w: inference service returned 429 after %d attempts", domain.ErrRateLimitExceeded, attempt)
			continue
		case resp.StatusCode >= 500:
			log.Printf("[Inference] API error (attempt %d) - Status: %d, Body: %s", attempt, resp.StatusCode, string(body))
			lastErr = fmt.Errorf("%w: status %d", domain.ErrModelUnavailable, resp.StatusCode)
			continue
		case resp.StatusCode != http.StatusOK:
			return nil, fmt.Errorf("%w: status %d: %s", domain.ErrModelUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
		}

		var parsed predictResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			log.Printf("[Inference] JSON decode error: %v", err)
			return nil, fmt.Errorf("%w: failed to decode response: %v", domain.ErrModelUnavailable, err)
		}

		if c.debug {
			for i, row := range parsed.Detections {
				log.Printf("[Inference] row %d: %+v", i, row)
			}
		}

		log.Printf("[Inference] %d detections for %s", len(parsed.Detections), filepath.Base(imagePath))
		return parsed.Detections, nil
	}

	log.Printf("[Inference] All retries failed for %s", imagePath)
	return nil, lastErr
}

// CheckHealth reports whether the inference service answers its health endpoint
func (c *Client) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL(c.url), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health status %d", domain.ErrModelUnavailable, resp.StatusCode)
	}
	return nil
}

// healthURL points at /health on the host serving the predict endpoint
func healthURL(predictURL string) string {
	u, err := url.Parse(predictURL)
	if err != nil || u.Host == "" {
		return predictURL + "/health"
	}
	u.Path = "/health"
	u.RawQuery = ""
	return u.String()
}

// doRequest executes the upload with proper headers and error handling
func (c *Client) doRequest(ctx context.Context, payload []byte, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", "WildIn/1.0")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
	}
	return resp, nil
}

// buildMultipart reads the image once so retries can resend the same body
func buildMultipart(imagePath string) ([]byte, string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrImageNotFound, err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", filepath.Base(imagePath))
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", fmt.Errorf("write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}

	return body.Bytes(), writer.FormDataContentType(), nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
