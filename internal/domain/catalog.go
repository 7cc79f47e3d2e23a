package domain

import (
	"sort"
	"strings"
)

// Catalog holds species descriptions and recipes.
// A Catalog is immutable once built; reloading produces a new Catalog.
type Catalog struct {
	descriptions map[string]string
	normalized   map[string]string
	recipes      []RecipeRecord
}

// NewCatalog copies the given data into a new immutable catalog
func NewCatalog(descriptions map[string]string, recipes []RecipeRecord) *Catalog {
	c := &Catalog{
		descriptions: make(map[string]string, len(descriptions)),
		normalized:   make(map[string]string, len(descriptions)),
		recipes:      make([]RecipeRecord, 0, len(recipes)),
	}
	for name, desc := range descriptions {
		c.descriptions[name] = desc
		c.normalized[NormalizeSpeciesKey(name)] = desc
	}
	for _, r := range recipes {
		c.recipes = append(c.recipes, r.Clone())
	}
	return c
}

// Description looks up a species description. An exact key match wins; otherwise
// the lookup ignores case and treats underscores, hyphens and spaces alike.
func (c *Catalog) Description(species string) (string, bool) {
	if desc, ok := c.descriptions[species]; ok {
		return desc, true
	}
	desc, ok := c.normalized[NormalizeSpeciesKey(species)]
	return desc, ok
}

// Recipes returns a copy of the recipes in catalog order
func (c *Catalog) Recipes() []RecipeRecord {
	out := make([]RecipeRecord, 0, len(c.recipes))
	for _, r := range c.recipes {
		out = append(out, r.Clone())
	}
	return out
}

// SpeciesCount returns the number of described species
func (c *Catalog) SpeciesCount() int {
	return len(c.descriptions)
}

// SpeciesNames returns the described species in sorted order
func (c *Catalog) SpeciesNames() []string {
	names := make([]string, 0, len(c.descriptions))
	for name := range c.descriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NormalizeSpeciesKey lowercases a species label and collapses separators to single spaces
func NormalizeSpeciesKey(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
