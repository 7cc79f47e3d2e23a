package domain

import (
	"context"
	"time"
)

// Predictor is the external detection capability.
// Implementations may be a local model or a remote service; calls are synchronous and may fail.
type Predictor interface {
	Predict(ctx context.Context, imagePath string) ([]RawDetection, error)
}

// Annotator draws per-species bounding boxes and returns one output path per species
type Annotator interface {
	Annotate(ctx context.Context, imagePath string, groups *SpeciesGroup, outputDir string) (map[string]string, error)
}

// CatalogProvider hands out the current immutable catalog snapshot
type CatalogProvider interface {
	Current() *Catalog
}

// ResultRepository stores completed result documents by run id
type ResultRepository interface {
	Save(ctx context.Context, id string, doc *ResultDocument, ttl time.Duration) error
	Get(ctx context.Context, id string) (*ResultDocument, error)
	Delete(ctx context.Context, id string) error
}
