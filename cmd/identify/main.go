package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/shogun-olives/hacksc-2024-WildIn/config"
	"github.com/shogun-olives/hacksc-2024-WildIn/internal/domain"
	"github.com/shogun-olives/hacksc-2024-WildIn/internal/infrastructure/annotate"
	"github.com/shogun-olives/hacksc-2024-WildIn/internal/infrastructure/catalog"
	"github.com/shogun-olives/hacksc-2024-WildIn/internal/infrastructure/inference"
	"github.com/shogun-olives/hacksc-2024-WildIn/internal/usecase"
)

func main() {
	confidence := flag.Float64("confidence", -1, "minimum detection confidence (default from config)")
	out := flag.String("out", "", "write the result JSON to this file instead of stdout (single image only)")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: identify [-confidence X] [-out result.json] image...")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if *out != "" && flag.NArg() > 1 {
		log.Fatalf("-out accepts a single image, got %d", flag.NArg())
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	catalogStore, err := catalog.NewStore(catalog.Source{
		SpeciesPath: cfg.Catalog.SpeciesPath,
		RecipesPath: cfg.Catalog.RecipesPath,
	})
	if err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}

	annotator, err := annotate.New(annotate.Config{
		StrokeColor: cfg.Annotate.StrokeColor,
		StrokeWidth: cfg.Annotate.StrokeWidth,
		Workers:     cfg.Annotate.Workers,
	})
	if err != nil {
		log.Fatalf("Failed to create annotator: %v", err)
	}

	service := usecase.NewPlantService(
		inference.NewClient(inference.ClientConfig{
			URL:               cfg.Model.InferenceURL,
			APIKey:            cfg.Model.APIKey,
			Timeout:           cfg.Model.Timeout,
			MaxRetries:        cfg.Model.MaxRetries,
			RequestsPerSecond: cfg.Model.RequestsPerSecond,
			Burst:             cfg.Model.Burst,
		}),
		annotator,
		catalogStore,
		usecase.PlantServiceConfig{
			DownloadDir:       cfg.Storage.DownloadDir,
			DefaultConfidence: &cfg.Detection.Confidence,
		},
	)

	threshold := service.DefaultConfidence()
	if *confidence >= 0 {
		threshold = *confidence
	}

	failed := false
	for _, path := range flag.Args() {
		doc, err := service.Assemble(context.Background(), path, threshold)
		if err != nil {
			failed = true
		}

		if *out != "" {
			if err := writeResult(doc, *out); err != nil {
				log.Fatalf("Failed to write %s: %v", *out, err)
			}
			log.Printf("Wrote %s", *out)
			continue
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "    ")
		if err := enc.Encode(doc); err != nil {
			log.Fatalf("Failed to encode result: %v", err)
		}
	}

	if failed {
		os.Exit(1)
	}
}

// writeResult persists a result document as indented JSON
func writeResult(doc *domain.ResultDocument, path string) error {
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func init() {
	// stdout carries the JSON result
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.SetOutput(os.Stderr)
}
