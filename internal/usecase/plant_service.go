package usecase

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/shogun-olives/hacksc-2024-WildIn/internal/domain"
)

// PlantServiceConfig holds configuration for the plant identification service
type PlantServiceConfig struct {
	DownloadDir string
	// DefaultConfidence applies when callers pass no threshold; nil or out of range means 0.5
	DefaultConfidence *float64
}

// PlantService assembles result documents from detections, annotations and the catalog
type PlantService struct {
	detector          *DetectorService
	annotator         domain.Annotator
	catalog           domain.CatalogProvider
	downloadDir       string
	defaultConfidence float64
}

// NewPlantService creates a new plant service with dependencies
func NewPlantService(
	predictor domain.Predictor,
	annotator domain.Annotator,
	catalog domain.CatalogProvider,
	config PlantServiceConfig,
) *PlantService {
	downloadDir := config.DownloadDir
	if downloadDir == "" {
		downloadDir = "./data/downloads"
	}

	confidence := 0.5
	if c := config.DefaultConfidence; c != nil && *c >= 0 && *c <= 1 {
		confidence = *c
	}

	return &PlantService{
		detector:          NewDetectorService(predictor),
		annotator:         annotator,
		catalog:           catalog,
		downloadDir:       downloadDir,
		defaultConfidence: confidence,
	}
}

// DefaultConfidence returns the threshold used when callers do not supply one
func (s *PlantService) DefaultConfidence() float64 {
	return s.defaultConfidence
}

// Assemble runs the full pipeline for one image.
// Flow: validate path -> detect -> group -> annotate -> describe -> filter recipes.
// On failure it returns an explicit error document together with the error; a
// partially built document is never returned.
func (s *PlantService) Assemble(ctx context.Context, imagePath string, threshold float64) (*domain.ResultDocument, error) {
	doc, err := s.assemble(ctx, imagePath, threshold)
	if err != nil {
		log.Printf("[Pipeline] Run failed for %s: %v", imagePath, err)
		return domain.NewFailedResult(err), err
	}
	return doc, nil
}

func (s *PlantService) assemble(ctx context.Context, imagePath string, threshold float64) (*domain.ResultDocument, error) {
	if _, err := os.Stat(imagePath); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrImageNotFound, imagePath)
	}

	// One snapshot per run so a concurrent reload cannot mix catalogs
	catalog := s.catalog.Current()
	if catalog == nil {
		return nil, fmt.Errorf("%w: catalog not loaded", domain.ErrCatalogMalformed)
	}

	detections, err := s.detector.Detect(ctx, imagePath, threshold)
	if err != nil {
		return nil, err
	}

	groups := GroupBySpecies(detections)

	images := map[string]string{}
	if groups.Len() > 0 {
		images, err = s.annotator.Annotate(ctx, imagePath, groups, s.OutputDir(imagePath))
		if err != nil {
			return nil, err
		}
	}

	plants := make([]domain.SpeciesRecord, 0, groups.Len())
	for _, species := range groups.Species() {
		labeled, ok := images[species]
		if !ok {
			return nil, fmt.Errorf("%w: no annotated image for %q", domain.ErrImageWrite, species)
		}

		description, ok := catalog.Description(species)
		if !ok {
			log.Printf("[Pipeline] WARNING: no catalog description for species %q", species)
		}

		boxes := groups.Boxes(species)
		plants = append(plants, domain.SpeciesRecord{
			Name:        species,
			Qty:         len(boxes),
			Icon:        IconName(species),
			Labeled:     labeled,
			Description: description,
			Locations:   boxes,
		})
	}

	recipes := FilterRecipes(catalog.Recipes(), groups.Species())

	log.Printf("[Pipeline] %s: %d species, %d detections, %d recipes",
		imagePath, len(plants), len(detections), len(recipes))

	return &domain.ResultDocument{
		Unlabeled: imagePath,
		Plants:    plants,
		Recipes:   recipes,
	}, nil
}

// OutputDir derives the annotation directory of an image: its base name plus a key of
// its absolute path, so same-named images from different directories never share outputs.
func (s *PlantService) OutputDir(imagePath string) string {
	base := filepath.Base(imagePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(s.downloadDir, stem+"-"+sourceKey(imagePath))
}

// sourceKey is a short stable key of the cleaned absolute image path
func sourceKey(imagePath string) string {
	abs, err := filepath.Abs(imagePath)
	if err != nil {
		abs = filepath.Clean(imagePath)
	}
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.ToSlash(abs)))
	return id.String()[:8]
}

// IconName derives the icon file name for a species, e.g. "Wild Garlic" -> "wild_garlic.png"
func IconName(species string) string {
	return strings.ReplaceAll(strings.ToLower(species), " ", "_") + ".png"
}
