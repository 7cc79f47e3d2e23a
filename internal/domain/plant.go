package domain

import (
	"encoding/json"
	"fmt"
)

// SpeciesGroup buckets boxes by species label.
// Species are enumerated in first-seen order and every species holds at least one box.
type SpeciesGroup struct {
	order []string
	boxes map[string][]Box
}

// NewSpeciesGroup creates an empty species group
func NewSpeciesGroup() *SpeciesGroup {
	return &SpeciesGroup{
		boxes: make(map[string][]Box),
	}
}

// Add appends a box under the given species
func (g *SpeciesGroup) Add(species string, box Box) {
	if _, ok := g.boxes[species]; !ok {
		g.order = append(g.order, species)
	}
	g.boxes[species] = append(g.boxes[species], box)
}

// Species returns the species names in first-seen order
func (g *SpeciesGroup) Species() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Boxes returns a copy of the boxes recorded for a species
func (g *SpeciesGroup) Boxes(species string) []Box {
	boxes := g.boxes[species]
	out := make([]Box, len(boxes))
	copy(out, boxes)
	return out
}

// Len returns the number of distinct species
func (g *SpeciesGroup) Len() int {
	return len(g.order)
}

// SpeciesRecord is the per-species summary of one pipeline run
type SpeciesRecord struct {
	Name        string `json:"name"`
	Qty         int    `json:"qty"`
	Icon        string `json:"icon"`
	Labeled     string `json:"labeled"`
	Description string `json:"description"`
	Locations   []Box  `json:"locations"`
}

// RecipeRecord is a recipe from the catalog. Name and Plants are the only fields the
// pipeline interprets; anything else in the source data is carried through in Extra.
type RecipeRecord struct {
	Name   string                 `json:"name" yaml:"name"`
	Plants []string               `json:"plants" yaml:"plants"`
	Extra  map[string]interface{} `json:"-" yaml:",inline"`
}

// Uses reports whether the recipe names the given species
func (r RecipeRecord) Uses(species string) bool {
	for _, p := range r.Plants {
		if p == species {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no slices or maps with the receiver
func (r RecipeRecord) Clone() RecipeRecord {
	out := RecipeRecord{Name: r.Name}
	if r.Plants != nil {
		out.Plants = make([]string, len(r.Plants))
		copy(out.Plants, r.Plants)
	}
	if r.Extra != nil {
		out.Extra = make(map[string]interface{}, len(r.Extra))
		for k, v := range r.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// MarshalJSON flattens Extra next to name and plants
func (r RecipeRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(r.Extra)+2)
	for k, v := range r.Extra {
		out[k] = v
	}
	out["name"] = r.Name
	plants := r.Plants
	if plants == nil {
		plants = []string{}
	}
	out["plants"] = plants
	return json.Marshal(out)
}

// UnmarshalJSON requires name and plants and keeps every other key in Extra
func (r *RecipeRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	nameRaw, ok := raw["name"]
	if !ok {
		return fmt.Errorf("recipe is missing \"name\"")
	}
	plantsRaw, ok := raw["plants"]
	if !ok {
		return fmt.Errorf("recipe is missing \"plants\"")
	}

	var rec RecipeRecord
	if err := json.Unmarshal(nameRaw, &rec.Name); err != nil {
		return fmt.Errorf("recipe name: %w", err)
	}
	if err := json.Unmarshal(plantsRaw, &rec.Plants); err != nil {
		return fmt.Errorf("recipe %q plants: %w", rec.Name, err)
	}

	delete(raw, "name")
	delete(raw, "plants")
	if len(raw) > 0 {
		rec.Extra = make(map[string]interface{}, len(raw))
		for k, v := range raw {
			var val interface{}
			if err := json.Unmarshal(v, &val); err != nil {
				return err
			}
			rec.Extra[k] = val
		}
	}

	*r = rec
	return nil
}

// ResultDocument is the output of one pipeline run.
// A failed run carries only Error; Plants and Recipes are then empty.
type ResultDocument struct {
	Unlabeled string          `json:"unlabeled,omitempty"`
	Plants    []SpeciesRecord `json:"plants"`
	Recipes   []RecipeRecord  `json:"recipes"`
	Error     string          `json:"error,omitempty"`
}

// NewFailedResult builds the explicit error outcome of a run
func NewFailedResult(err error) *ResultDocument {
	return &ResultDocument{
		Plants:  []SpeciesRecord{},
		Recipes: []RecipeRecord{},
		Error:   err.Error(),
	}
}

// Failed reports whether the document is an error outcome
func (d *ResultDocument) Failed() bool {
	return d.Error != ""
}

// SpeciesNames returns the names of the detected species in record order
func (d *ResultDocument) SpeciesNames() []string {
	names := make([]string, 0, len(d.Plants))
	for _, p := range d.Plants {
		names = append(names, p.Name)
	}
	return names
}
