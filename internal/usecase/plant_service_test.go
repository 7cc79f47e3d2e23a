package usecase

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/shogun-olives/hacksc-2024-WildIn/internal/domain"
)

func newTestCatalog() *domain.Catalog {
	return domain.NewCatalog(
		map[string]string{
			"Dandelion": "Every part of the plant is edible.",
			"Nettle":    "Cook before eating to remove the sting.",
		},
		[]domain.RecipeRecord{
			{Name: "Salad", Plants: []string{"Dandelion", "Nettle"}},
			{Name: "Nettle Soup", Plants: []string{"Nettle"}},
			{Name: "Elderflower Cordial", Plants: []string{"Elderflower"}},
		},
	)
}

func confidence(v float64) *float64 {
	return &v
}

func newTestService(predictor *MockPredictor, annotator *MockAnnotator, downloadDir string) *PlantService {
	return NewPlantService(
		predictor,
		annotator,
		&MockCatalogProvider{catalog: newTestCatalog()},
		PlantServiceConfig{DownloadDir: downloadDir, DefaultConfidence: confidence(0.5)},
	)
}

func TestPlantService_Assemble(t *testing.T) {
	ctx := context.Background()

	t.Run("groups detections above threshold", func(t *testing.T) {
		dir := t.TempDir()
		imagePath := writeTestImage(t, dir, "upload-1.png")
		predictor := &MockPredictor{rows: []domain.RawDetection{
			row("Dandelion", 0.9, 10, 10, 50, 50),
			row("Dandelion", 0.6, 60, 60, 90, 90),
			row("Nettle", 0.4, 5, 5, 20, 20),
		}}
		annotator := &MockAnnotator{}
		service := newTestService(predictor, annotator, filepath.Join(dir, "downloads"))

		doc, err := service.Assemble(ctx, imagePath, 0.5)
		if err != nil {
			t.Fatalf("Assemble() error = %v, want nil", err)
		}

		if doc.Failed() {
			t.Fatalf("document marked failed: %s", doc.Error)
		}
		if doc.Unlabeled != imagePath {
			t.Errorf("Unlabeled = %s, want %s", doc.Unlabeled, imagePath)
		}
		if len(doc.Plants) != 1 {
			t.Fatalf("len(Plants) = %d, want 1", len(doc.Plants))
		}

		p := doc.Plants[0]
		if p.Name != "Dandelion" {
			t.Errorf("Name = %s, want Dandelion", p.Name)
		}
		if p.Qty != 2 {
			t.Errorf("Qty = %d, want 2", p.Qty)
		}
		wantBoxes := []domain.Box{domain.NewBox(10, 10, 50, 50), domain.NewBox(60, 60, 90, 90)}
		if !reflect.DeepEqual(p.Locations, wantBoxes) {
			t.Errorf("Locations = %v, want %v", p.Locations, wantBoxes)
		}
		if p.Icon != "dandelion.png" {
			t.Errorf("Icon = %s, want dandelion.png", p.Icon)
		}
		if p.Description != "Every part of the plant is edible." {
			t.Errorf("Description = %q", p.Description)
		}
		if p.Labeled == "" {
			t.Error("Labeled is empty")
		}

		wantDir := service.OutputDir(imagePath)
		if annotator.outputDir != wantDir {
			t.Errorf("annotator output dir = %s, want %s", annotator.outputDir, wantDir)
		}
		if filepath.Dir(wantDir) != filepath.Join(dir, "downloads") {
			t.Errorf("output dir %s not under download dir", wantDir)
		}
		if !strings.HasPrefix(filepath.Base(wantDir), "upload-1-") {
			t.Errorf("output dir %s does not start with the image name", wantDir)
		}
	})

	t.Run("includes recipes with partial overlap", func(t *testing.T) {
		dir := t.TempDir()
		imagePath := writeTestImage(t, dir, "upload-2.png")
		predictor := &MockPredictor{rows: []domain.RawDetection{
			row("Dandelion", 0.9, 10, 10, 50, 50),
		}}
		service := newTestService(predictor, &MockAnnotator{}, dir)

		doc, err := service.Assemble(ctx, imagePath, 0.5)
		if err != nil {
			t.Fatalf("Assemble() error = %v, want nil", err)
		}
		if len(doc.Recipes) != 1 || doc.Recipes[0].Name != "Salad" {
			t.Errorf("Recipes = %v, want [Salad]", doc.Recipes)
		}
	})

	t.Run("empty detections give an empty valid result", func(t *testing.T) {
		dir := t.TempDir()
		imagePath := writeTestImage(t, dir, "empty.png")
		annotator := &MockAnnotator{}
		service := newTestService(&MockPredictor{}, annotator, dir)

		doc, err := service.Assemble(ctx, imagePath, 0.5)
		if err != nil {
			t.Fatalf("Assemble() error = %v, want nil", err)
		}
		if doc.Failed() {
			t.Error("empty result should not be an error outcome")
		}
		if doc.Plants == nil || len(doc.Plants) != 0 {
			t.Errorf("Plants = %v, want empty non-nil slice", doc.Plants)
		}
		if doc.Recipes == nil || len(doc.Recipes) != 0 {
			t.Errorf("Recipes = %v, want empty non-nil slice", doc.Recipes)
		}
		if annotator.calls != 0 {
			t.Errorf("annotator called %d times, want 0", annotator.calls)
		}
	})

	t.Run("nonexistent path returns error outcome", func(t *testing.T) {
		predictor := &MockPredictor{}
		service := newTestService(predictor, &MockAnnotator{}, t.TempDir())

		doc, err := service.Assemble(ctx, filepath.Join(t.TempDir(), "nope.jpg"), 0.5)
		if !errors.Is(err, domain.ErrImageNotFound) {
			t.Errorf("Assemble() error = %v, want ErrImageNotFound", err)
		}
		if doc == nil || !doc.Failed() {
			t.Fatalf("doc = %+v, want explicit error outcome", doc)
		}
		if len(doc.Plants) != 0 || len(doc.Recipes) != 0 {
			t.Error("error outcome must not carry plants or recipes")
		}
		if predictor.calls != 0 {
			t.Errorf("predictor called %d times, want 0", predictor.calls)
		}
	})

	t.Run("model failure returns error outcome", func(t *testing.T) {
		dir := t.TempDir()
		imagePath := writeTestImage(t, dir, "upload.png")
		service := newTestService(&MockPredictor{err: errors.New("timeout")}, &MockAnnotator{}, dir)

		doc, err := service.Assemble(ctx, imagePath, 0.5)
		if !errors.Is(err, domain.ErrModelUnavailable) {
			t.Errorf("Assemble() error = %v, want ErrModelUnavailable", err)
		}
		if !doc.Failed() {
			t.Error("doc should be an error outcome")
		}
	})

	t.Run("annotation failure returns error outcome", func(t *testing.T) {
		dir := t.TempDir()
		imagePath := writeTestImage(t, dir, "upload.png")
		predictor := &MockPredictor{rows: []domain.RawDetection{row("Nettle", 0.9, 1, 1, 9, 9)}}
		annotator := &MockAnnotator{err: domain.ErrImageWrite}
		service := newTestService(predictor, annotator, dir)

		doc, err := service.Assemble(ctx, imagePath, 0.5)
		if !errors.Is(err, domain.ErrImageWrite) {
			t.Errorf("Assemble() error = %v, want ErrImageWrite", err)
		}
		if !doc.Failed() {
			t.Error("doc should be an error outcome")
		}
	})

	t.Run("missing annotated path is a write error", func(t *testing.T) {
		dir := t.TempDir()
		imagePath := writeTestImage(t, dir, "upload.png")
		predictor := &MockPredictor{rows: []domain.RawDetection{row("Nettle", 0.9, 1, 1, 9, 9)}}
		service := newTestService(predictor, &MockAnnotator{skip: "Nettle"}, dir)

		_, err := service.Assemble(ctx, imagePath, 0.5)
		if !errors.Is(err, domain.ErrImageWrite) {
			t.Errorf("Assemble() error = %v, want ErrImageWrite", err)
		}
	})

	t.Run("missing description is not fatal", func(t *testing.T) {
		dir := t.TempDir()
		imagePath := writeTestImage(t, dir, "upload.png")
		predictor := &MockPredictor{rows: []domain.RawDetection{row("Wild Garlic", 0.9, 1, 1, 9, 9)}}
		service := newTestService(predictor, &MockAnnotator{}, dir)

		doc, err := service.Assemble(ctx, imagePath, 0.5)
		if err != nil {
			t.Fatalf("Assemble() error = %v, want nil", err)
		}
		if doc.Plants[0].Description != "" {
			t.Errorf("Description = %q, want empty", doc.Plants[0].Description)
		}
		if doc.Plants[0].Icon != "wild_garlic.png" {
			t.Errorf("Icon = %s, want wild_garlic.png", doc.Plants[0].Icon)
		}
	})

	t.Run("nil catalog snapshot fails the run", func(t *testing.T) {
		dir := t.TempDir()
		imagePath := writeTestImage(t, dir, "upload.png")
		service := NewPlantService(&MockPredictor{}, &MockAnnotator{}, &MockCatalogProvider{}, PlantServiceConfig{})

		_, err := service.Assemble(ctx, imagePath, 0.5)
		if !errors.Is(err, domain.ErrCatalogMalformed) {
			t.Errorf("Assemble() error = %v, want ErrCatalogMalformed", err)
		}
	})
}

func TestPlantService_AssembleProperties(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	imagePath := writeTestImage(t, dir, "upload.png")
	predictor := &MockPredictor{rows: []domain.RawDetection{
		row("Nettle", 0.8, 0, 0, 10, 10),
		row("Dandelion", 0.9, 10, 10, 50, 50),
		row("Nettle", 0.7, 20, 20, 30, 30),
		row("Elderflower", 0.55, 40, 40, 60, 60),
	}}
	service := newTestService(predictor, &MockAnnotator{}, dir)

	first, err := service.Assemble(ctx, imagePath, 0.5)
	if err != nil {
		t.Fatalf("Assemble() error = %v, want nil", err)
	}

	t.Run("qty equals number of locations", func(t *testing.T) {
		for _, p := range first.Plants {
			if p.Qty != len(p.Locations) {
				t.Errorf("%s: qty %d != len(locations) %d", p.Name, p.Qty, len(p.Locations))
			}
		}
	})

	t.Run("recipes are exactly those intersecting detected species", func(t *testing.T) {
		detected := make(map[string]bool)
		for _, name := range first.SpeciesNames() {
			detected[name] = true
		}
		included := make(map[string]bool)
		for _, r := range first.Recipes {
			included[r.Name] = true
		}
		for _, r := range newTestCatalog().Recipes() {
			intersects := false
			for _, p := range r.Plants {
				if detected[p] {
					intersects = true
				}
			}
			if intersects != included[r.Name] {
				t.Errorf("recipe %s: included = %v, intersects = %v", r.Name, included[r.Name], intersects)
			}
		}
	})

	t.Run("repeated runs yield identical records", func(t *testing.T) {
		second, err := service.Assemble(ctx, imagePath, 0.5)
		if err != nil {
			t.Fatalf("Assemble() error = %v, want nil", err)
		}
		if !reflect.DeepEqual(first.Plants, second.Plants) {
			t.Errorf("plants differ between runs:\n%v\n%v", first.Plants, second.Plants)
		}
		if !reflect.DeepEqual(first.Recipes, second.Recipes) {
			t.Errorf("recipes differ between runs")
		}
	})
}

func TestPlantService_DefaultConfidence(t *testing.T) {
	tests := []struct {
		name       string
		configured *float64
		want       float64
	}{
		{"unset", nil, 0.5},
		{"configured zero is kept", confidence(0), 0},
		{"configured one is kept", confidence(1), 1},
		{"configured value", confidence(0.7), 0.7},
		{"negative falls back", confidence(-0.1), 0.5},
		{"above one falls back", confidence(1.5), 0.5},
		{"NaN falls back", confidence(math.NaN()), 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewPlantService(&MockPredictor{}, &MockAnnotator{}, &MockCatalogProvider{},
				PlantServiceConfig{DefaultConfidence: tt.configured})
			if got := service.DefaultConfidence(); got != tt.want {
				t.Errorf("DefaultConfidence() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPlantService_OutputDir(t *testing.T) {
	service := NewPlantService(&MockPredictor{}, &MockAnnotator{}, &MockCatalogProvider{}, PlantServiceConfig{})

	got := service.OutputDir("/tmp/uploads/abc123.jpeg")
	if filepath.Dir(got) != filepath.Join("data", "downloads") {
		t.Errorf("OutputDir() = %s, want it under data/downloads", got)
	}
	base := filepath.Base(got)
	if !strings.HasPrefix(base, "abc123-") || len(base) != len("abc123-")+8 {
		t.Errorf("OutputDir() base = %s, want abc123-<8 hex>", base)
	}

	if again := service.OutputDir("/tmp/uploads/abc123.jpeg"); again != got {
		t.Errorf("OutputDir() not stable: %s then %s", got, again)
	}
	if other := service.OutputDir("/tmp/elsewhere/abc123.jpeg"); other == got {
		t.Errorf("same file name in different directories share %s", got)
	}
	if other := service.OutputDir("/tmp/uploads/abc123.png"); other == got {
		t.Errorf("different extensions share %s", got)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	rel := filepath.Join("img", "photo.png")
	if service.OutputDir(rel) != service.OutputDir(filepath.Join(wd, rel)) {
		t.Error("relative and absolute forms of one path give different output dirs")
	}
	if service.OutputDir("/tmp/uploads/./x/../abc123.jpeg") != got {
		t.Error("uncleaned path gives a different output dir")
	}
}

func TestPlantService_SameNameInDifferentDirectories(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	downloads := filepath.Join(root, "out")

	dirA := filepath.Join(root, "a")
	dirB := filepath.Join(root, "b")
	for _, d := range []string{dirA, dirB} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
	}
	photoA := writeFilledImage(t, dirA, "photo.png", color.RGBA{R: 200, A: 255})
	photoB := writeFilledImage(t, dirB, "photo.png", color.RGBA{B: 200, A: 255})

	predictor := &MockPredictor{rows: []domain.RawDetection{row("Dandelion", 0.9, 10, 10, 50, 50)}}
	service := newTestService(predictor, &MockAnnotator{copySource: true}, downloads)

	docA, err := service.Assemble(ctx, photoA, 0.5)
	if err != nil {
		t.Fatalf("Assemble(a) error = %v", err)
	}
	docB, err := service.Assemble(ctx, photoB, 0.5)
	if err != nil {
		t.Fatalf("Assemble(b) error = %v", err)
	}

	labeledA := docA.Plants[0].Labeled
	labeledB := docB.Plants[0].Labeled
	if labeledA == labeledB {
		t.Fatalf("both images annotated to %s", labeledA)
	}

	// The first run's annotated image must still be derived from the first source
	want, _ := os.ReadFile(photoA)
	got, err := os.ReadFile(labeledA)
	if err != nil {
		t.Fatalf("ReadFile(%s): %v", labeledA, err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("%s was overwritten by the second run", labeledA)
	}
}

func TestIconName(t *testing.T) {
	tests := []struct {
		species string
		want    string
	}{
		{"Dandelion", "dandelion.png"},
		{"Wild Garlic", "wild_garlic.png"},
		{"Common  Sorrel", "common__sorrel.png"},
	}

	for _, tt := range tests {
		t.Run(tt.species, func(t *testing.T) {
			if got := IconName(tt.species); got != tt.want {
				t.Errorf("IconName(%q) = %s, want %s", tt.species, got, tt.want)
			}
		})
	}
}
