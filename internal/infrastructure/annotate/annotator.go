// Package annotate renders per-species bounding box overlays onto copies of a source image.
//
// Each species gets its own output file; the source image is never modified.
// Output names are derived from the source base name, a species slug and the
// source extension, and are unique within one call.
package annotate

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/shogun-olives/hacksc-2024-WildIn/internal/domain"
	"github.com/up-zero/gotool/imageutil"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

// Default stroke style: solid 2px red
const (
	DefaultStrokeColor = "#ff0000"
	DefaultStrokeWidth = 2
	DefaultWorkers     = 4
)

var slugInvalidChars = regexp.MustCompile(`[^a-z0-9_-]`)

// writableExts are the extensions imaging.Save can encode
var writableExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true,
}

// Config controls the stroke style and parallelism of the annotator
type Config struct {
	StrokeColor string
	StrokeWidth int
	Workers     int
}

// Annotator draws bounding boxes for each species into its own image file
type Annotator struct {
	stroke  color.Color
	width   int
	workers int
	save    func(img image.Image, path string) error
}

func saveImage(img image.Image, path string) error {
	return imaging.Save(img, path)
}

// ParseStrokeColor parses a hex colour such as "#ff0000"
func ParseStrokeColor(hex string) (color.Color, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return nil, fmt.Errorf("invalid stroke color %q: %w", hex, err)
	}
	return c, nil
}

// New creates an annotator, falling back to the default stroke for unset fields
func New(cfg Config) (*Annotator, error) {
	hex := cfg.StrokeColor
	if hex == "" {
		hex = DefaultStrokeColor
	}
	stroke, err := ParseStrokeColor(hex)
	if err != nil {
		return nil, err
	}

	width := cfg.StrokeWidth
	if width <= 0 {
		width = DefaultStrokeWidth
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	return &Annotator{
		stroke:  stroke,
		width:   width,
		workers: workers,
		save:    saveImage,
	}, nil
}

// Annotate writes one image per species with that species' boxes outlined and
// returns the species -> output path mapping. outputDir is created if missing.
// If any species fails, files already written by this call are removed.
func (a *Annotator) Annotate(ctx context.Context, imagePath string, groups *domain.SpeciesGroup, outputDir string) (map[string]string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", domain.ErrImageWrite, outputDir, err)
	}

	paths := OutputPaths(imagePath, groups.Species(), outputDir)

	var (
		mu      sync.Mutex
		written []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)

	for _, species := range groups.Species() {
		boxes := groups.Boxes(species)
		out := paths[species]

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := a.render(imagePath, boxes, out); err != nil {
				return err
			}
			mu.Lock()
			written = append(written, out)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, p := range written {
			if rmErr := os.Remove(p); rmErr != nil {
				log.Printf("[Annotate] Failed to remove partial output %s: %v", p, rmErr)
			}
		}
		return nil, err
	}

	log.Printf("[Annotate] Wrote %d annotated images to %s", len(paths), outputDir)
	return paths, nil
}

// render re-opens the source, outlines every box and saves the copy to out
func (a *Annotator) render(imagePath string, boxes []domain.Box, out string) error {
	src, err := imaging.Open(imagePath)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrSourceImageUnreadable, imagePath, err)
	}

	bounds := src.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, src, bounds.Min, draw.Src)

	for _, box := range boxes {
		rect := box.Rect().Add(bounds.Min).Intersect(bounds)
		if rect.Empty() {
			continue
		}
		imageutil.DrawThickRectOutline(canvas, rect, a.stroke, a.width)
	}

	if err := a.save(canvas, out); err != nil {
		if rmErr := os.Remove(out); rmErr != nil && !os.IsNotExist(rmErr) {
			log.Printf("[Annotate] Failed to remove partial output %s: %v", out, rmErr)
		}
		return fmt.Errorf("%w: %s: %v", domain.ErrImageWrite, out, err)
	}
	return nil
}

// OutputPaths derives the output file of every species: <dir>/<base>_<slug><ext>.
// Colliding slugs get a numeric suffix so no two species share a path.
func OutputPaths(imagePath string, species []string, outputDir string) map[string]string {
	base := filepath.Base(imagePath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if !writableExts[strings.ToLower(ext)] {
		ext = ".png"
	}

	paths := make(map[string]string, len(species))
	used := make(map[string]bool, len(species))
	for _, name := range species {
		slug := Slug(name)
		candidate := filepath.Join(outputDir, fmt.Sprintf("%s_%s%s", stem, slug, ext))
		for n := 2; used[candidate]; n++ {
			candidate = filepath.Join(outputDir, fmt.Sprintf("%s_%s_%d%s", stem, slug, n, ext))
		}
		used[candidate] = true
		paths[name] = candidate
	}
	return paths
}

// Slug turns a species label into a file-name-safe token, e.g. "Wild Garlic" -> "wild_garlic"
func Slug(species string) string {
	s := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(species)), " ", "_")
	s = slugInvalidChars.ReplaceAllString(s, "")
	if s == "" {
		return "species"
	}
	return s
}
