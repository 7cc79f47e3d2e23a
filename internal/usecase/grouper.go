package usecase

import "github.com/shogun-olives/hacksc-2024-WildIn/internal/domain"

// GroupBySpecies buckets detections by species label.
// Species keep first-seen order and boxes keep detector order.
func GroupBySpecies(detections []domain.Detection) *domain.SpeciesGroup {
	groups := domain.NewSpeciesGroup()
	for _, d := range detections {
		groups.Add(d.Species, d.Box)
	}
	return groups
}
