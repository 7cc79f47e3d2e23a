package usecase

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/shogun-olives/hacksc-2024-WildIn/internal/domain"
)

// MockPredictor is a mock implementation of domain.Predictor
type MockPredictor struct {
	rows  []domain.RawDetection
	err   error
	calls int
}

func (m *MockPredictor) Predict(ctx context.Context, imagePath string) ([]domain.RawDetection, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([]domain.RawDetection, len(m.rows))
	copy(out, m.rows)
	return out, nil
}

// MockAnnotator is a mock implementation of domain.Annotator.
// It reports one path per species and only touches the filesystem when copySource is set,
// in which case every path receives a copy of the source image.
type MockAnnotator struct {
	err        error
	skip       string
	copySource bool
	calls      int
	outputDir  string
}

func (m *MockAnnotator) Annotate(ctx context.Context, imagePath string, groups *domain.SpeciesGroup, outputDir string) (map[string]string, error) {
	m.calls++
	m.outputDir = outputDir
	if m.err != nil {
		return nil, m.err
	}
	paths := make(map[string]string, groups.Len())
	for _, species := range groups.Species() {
		if species == m.skip {
			continue
		}
		paths[species] = filepath.Join(outputDir, IconName(species))
	}
	if m.copySource {
		data, err := os.ReadFile(imagePath)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return nil, err
		}
		for _, p := range paths {
			if err := os.WriteFile(p, data, 0o644); err != nil {
				return nil, err
			}
		}
	}
	return paths, nil
}

// MockCatalogProvider is a mock implementation of domain.CatalogProvider
type MockCatalogProvider struct {
	catalog *domain.Catalog
}

func (m *MockCatalogProvider) Current() *domain.Catalog {
	return m.catalog
}

func row(name string, confidence, xMin, yMin, xMax, yMax float64) domain.RawDetection {
	return domain.RawDetection{
		Name:       name,
		Confidence: confidence,
		XMin:       xMin,
		YMin:       yMin,
		XMax:       xMax,
		YMax:       yMax,
	}
}

// writeTestImage writes a small opaque PNG and returns its path
func writeTestImage(t *testing.T, dir, name string) string {
	t.Helper()
	return writeFilledImage(t, dir, name, color.RGBA{R: 40, G: 160, B: 60, A: 255})
}

// writeFilledImage writes a 100x100 PNG of a single colour
func writeFilledImage(t *testing.T, dir, name string, fill color.RGBA) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			img.Set(x, y, fill)
		}
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create test image: %v", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	return path
}
