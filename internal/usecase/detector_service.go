package usecase

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"math"
	"os"
	"strings"

	"github.com/shogun-olives/hacksc-2024-WildIn/internal/domain"
)

// DetectorService wraps the detection capability and normalizes its output
type DetectorService struct {
	predictor domain.Predictor
}

// NewDetectorService creates a detector service around an injected predictor
func NewDetectorService(predictor domain.Predictor) *DetectorService {
	return &DetectorService{predictor: predictor}
}

// Detect runs the predictor once on imagePath and returns the detections whose
// confidence is at least threshold, with boxes normalized to integer pixels.
// Malformed rows are dropped and logged.
func (s *DetectorService) Detect(ctx context.Context, imagePath string, threshold float64) ([]domain.Detection, error) {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: confidence threshold %v outside [0,1]", domain.ErrInvalidRequest, threshold)
	}

	if err := checkReadableImage(imagePath); err != nil {
		return nil, err
	}

	rows, err := s.predictor.Predict(ctx, imagePath)
	if err != nil {
		if errors.Is(err, domain.ErrRateLimitExceeded) || errors.Is(err, domain.ErrModelUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
	}

	detections := make([]domain.Detection, 0, len(rows))
	for i, row := range rows {
		det, err := normalizeRow(row)
		if err != nil {
			log.Printf("[Detector] Dropping row %d of %s: %v", i, imagePath, err)
			continue
		}
		if det.Confidence < threshold {
			continue
		}
		detections = append(detections, det)
	}

	return detections, nil
}

// checkReadableImage verifies the path exists and decodes as a supported raster image
func checkReadableImage(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrImageNotFound, path)
	}
	defer f.Close()

	if _, _, err := image.DecodeConfig(f); err != nil {
		return fmt.Errorf("%w: %s is not a readable image: %v", domain.ErrImageNotFound, path, err)
	}
	return nil
}

// normalizeRow validates a raw row and converts its box to integer coordinates.
// Coordinates are rounded to the nearest pixel and clamped at zero.
func normalizeRow(row domain.RawDetection) (domain.Detection, error) {
	species := strings.TrimSpace(row.Name)
	if species == "" {
		return domain.Detection{}, fmt.Errorf("empty species label")
	}
	if math.IsNaN(row.Confidence) || row.Confidence < 0 || row.Confidence > 1 {
		return domain.Detection{}, fmt.Errorf("confidence %v outside [0,1]", row.Confidence)
	}

	coords := [4]float64{row.XMin, row.YMin, row.XMax, row.YMax}
	var box domain.Box
	for i, c := range coords {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return domain.Detection{}, fmt.Errorf("non-finite coordinate %v", c)
		}
		box[i] = max(int(math.Round(c)), 0)
	}
	if !box.Valid() {
		return domain.Detection{}, fmt.Errorf("degenerate box %v", box)
	}

	return domain.Detection{
		Species:    species,
		Confidence: row.Confidence,
		Box:        box,
	}, nil
}
