package http

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shogun-olives/hacksc-2024-WildIn/internal/domain"
	"github.com/shogun-olives/hacksc-2024-WildIn/internal/usecase"
)

// PlantIdentifier runs the detection pipeline for one image
type PlantIdentifier interface {
	Assemble(ctx context.Context, imagePath string, threshold float64) (*domain.ResultDocument, error)
	DefaultConfidence() float64
}

// CatalogStore exposes the shared catalog and its reload path
type CatalogStore interface {
	Current() *domain.Catalog
	Reload() (*domain.Catalog, error)
}

// HealthChecker reports whether the detection service is reachable
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// HandlerOptions holds upload and result-retention settings
type HandlerOptions struct {
	UploadDir      string
	MaxUploadBytes int64
	ResultTTL      time.Duration
}

// allowedUploadExts are the raster formats the pipeline accepts
var allowedUploadExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	plants  PlantIdentifier
	catalog CatalogStore
	results domain.ResultRepository
	model   HealthChecker
	opts    HandlerOptions
}

// NewHandler creates a new HTTP handler.
// Nil dependencies make the corresponding endpoints answer 503.
func NewHandler(
	plants PlantIdentifier,
	catalog CatalogStore,
	results domain.ResultRepository,
	model HealthChecker,
	opts HandlerOptions,
) *Handler {
	if opts.UploadDir == "" {
		opts.UploadDir = "./data/uploads"
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 20 << 20
	}
	if opts.ResultTTL <= 0 {
		opts.ResultTTL = time.Hour
	}
	return &Handler{
		plants:  plants,
		catalog: catalog,
		results: results,
		model:   model,
		opts:    opts,
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	resp := gin.H{
		"status":  "healthy",
		"service": "wildin-backend",
		"version": "1.0.0",
	}

	if h.model != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.model.CheckHealth(ctx); err != nil {
			resp["model"] = "unreachable"
		} else {
			resp["model"] = "reachable"
		}
	}

	if vm, err := mem.VirtualMemoryWithContext(c.Request.Context()); err == nil {
		resp["memory_used_percent"] = vm.UsedPercent
	}

	c.JSON(http.StatusOK, resp)
}

// IdentifyPlants handles image uploads and runs the detection pipeline
func (h *Handler) IdentifyPlants(c *gin.Context) {
	if h.plants == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Plant identification not configured"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxUploadBytes)

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedUploadExts[ext] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported image type " + ext + " (use PNG or JPEG)"})
		return
	}

	threshold := h.plants.DefaultConfidence()
	if raw := c.PostForm("confidence"); raw != "" {
		threshold, err = strconv.ParseFloat(raw, 64)
		if err != nil || threshold < 0 || threshold > 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "confidence must be a number within [0,1]"})
			return
		}
	}

	if err := os.MkdirAll(h.opts.UploadDir, 0o755); err != nil {
		log.Printf("[HTTP] Cannot create upload dir: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store upload"})
		return
	}

	id := uuid.NewString()
	uploadPath := filepath.Join(h.opts.UploadDir, id+ext)
	if err := c.SaveUploadedFile(file, uploadPath); err != nil {
		log.Printf("[HTTP] Cannot save upload: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store upload"})
		return
	}

	doc, err := h.plants.Assemble(c.Request.Context(), uploadPath, threshold)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"id": id, "result": doc})
		return
	}

	if h.results != nil {
		if err := h.results.Save(c.Request.Context(), id, doc, h.opts.ResultTTL); err != nil {
			log.Printf("[HTTP] Failed to store result %s: %v", id, err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "result": doc})
}

// GetResult returns a previously computed result document
func (h *Handler) GetResult(c *gin.Context) {
	if h.results == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Result storage not configured"})
		return
	}

	doc, err := h.results.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "result": doc})
}

// ListRecipes returns every recipe in the catalog
func (h *Handler) ListRecipes(c *gin.Context) {
	cat := h.currentCatalog(c)
	if cat == nil {
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipes": cat.Recipes()})
}

// GetSpecies returns the catalog description of one species
func (h *Handler) GetSpecies(c *gin.Context) {
	cat := h.currentCatalog(c)
	if cat == nil {
		return
	}

	name := c.Param("name")
	desc, ok := cat.Description(name)
	if !ok {
		resp := gin.H{"error": domain.ErrSpeciesNotFound.Error()}
		if suggestion, found := usecase.SuggestSpecies(name, cat.SpeciesNames()); found {
			resp["suggestion"] = suggestion
		}
		c.JSON(http.StatusNotFound, resp)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"name":        name,
		"description": desc,
		"icon":        usecase.IconName(name),
	})
}

// ReloadCatalog re-reads the catalog; a failed reload keeps the previous data
func (h *Handler) ReloadCatalog(c *gin.Context) {
	if h.catalog == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Catalog not configured"})
		return
	}

	cat, err := h.catalog.Reload()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "reloaded",
		"species": cat.SpeciesCount(),
		"recipes": len(cat.Recipes()),
	})
}

func (h *Handler) currentCatalog(c *gin.Context) *domain.Catalog {
	var cat *domain.Catalog
	if h.catalog != nil {
		cat = h.catalog.Current()
	}
	if cat == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Catalog not configured"})
		return nil
	}
	return cat
}

// statusForError maps pipeline errors to HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrImageNotFound),
		errors.Is(err, domain.ErrSourceImageUnreadable):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrResultNotFound),
		errors.Is(err, domain.ErrSpeciesNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRateLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrModelUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
