package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/shogun-olives/hacksc-2024-WildIn/config"
	httpDelivery "github.com/shogun-olives/hacksc-2024-WildIn/internal/delivery/http"
	"github.com/shogun-olives/hacksc-2024-WildIn/internal/infrastructure/annotate"
	"github.com/shogun-olives/hacksc-2024-WildIn/internal/infrastructure/cache"
	"github.com/shogun-olives/hacksc-2024-WildIn/internal/infrastructure/catalog"
	"github.com/shogun-olives/hacksc-2024-WildIn/internal/infrastructure/inference"
	"github.com/shogun-olives/hacksc-2024-WildIn/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting WildIn Backend v1.0.0")
	log.Printf("Environment: %s", cfg.Server.Environment)
	log.Printf("Port: %s", cfg.Server.Port)

	// A malformed catalog is fatal: no runs are served with half-loaded data
	catalogStore, err := catalog.NewStore(catalog.Source{
		SpeciesPath: cfg.Catalog.SpeciesPath,
		RecipesPath: cfg.Catalog.RecipesPath,
	})
	if err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}

	// Initialize infrastructure dependencies
	inferenceClient := inference.NewClient(inference.ClientConfig{
		URL:               cfg.Model.InferenceURL,
		APIKey:            cfg.Model.APIKey,
		Timeout:           cfg.Model.Timeout,
		MaxRetries:        cfg.Model.MaxRetries,
		RequestsPerSecond: cfg.Model.RequestsPerSecond,
		Burst:             cfg.Model.Burst,
	})

	// Enable debug mode in development environment
	if cfg.Server.Environment == "development" {
		inferenceClient.SetDebug(true)
		log.Printf("Inference client debug mode enabled")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := inferenceClient.CheckHealth(ctx); err != nil {
		log.Printf("WARNING: inference service not available at %s: %v", cfg.Model.InferenceURL, err)
	} else {
		log.Printf("Inference service: %s", cfg.Model.InferenceURL)
	}
	cancel()

	annotator, err := annotate.New(annotate.Config{
		StrokeColor: cfg.Annotate.StrokeColor,
		StrokeWidth: cfg.Annotate.StrokeWidth,
		Workers:     cfg.Annotate.Workers,
	})
	if err != nil {
		log.Fatalf("Failed to create annotator: %v", err)
	}

	resultCache := cache.NewMemoryCache()
	defer resultCache.Close()
	log.Printf("Result TTL: %s", cfg.Cache.TTL)

	// Initialize usecase layer
	plantService := usecase.NewPlantService(
		inferenceClient,
		annotator,
		catalogStore,
		usecase.PlantServiceConfig{
			DownloadDir:       cfg.Storage.DownloadDir,
			DefaultConfidence: &cfg.Detection.Confidence,
		},
	)

	log.Printf("Detection: confidence=%.2f, stroke=%s/%dpx",
		cfg.Detection.Confidence, cfg.Annotate.StrokeColor, cfg.Annotate.StrokeWidth)

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(
		plantService,
		catalogStore,
		resultCache,
		inferenceClient,
		httpDelivery.HandlerOptions{
			UploadDir:      cfg.Storage.UploadDir,
			MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
			ResultTTL:      cfg.Cache.TTL,
		},
	)

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Printf("Server listening on %s", addr)

	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func init() {
	// Set log flags for better debugging
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.SetOutput(os.Stdout)
}
