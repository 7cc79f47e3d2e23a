package catalog

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/shogun-olives/hacksc-2024-WildIn/internal/domain"
	"gopkg.in/yaml.v3"
)

// Source names the two files backing a catalog
type Source struct {
	SpeciesPath string
	RecipesPath string
}

// speciesFile is the layout of the species description file
type speciesFile struct {
	Categories map[string]string `json:"categories" yaml:"categories"`
}

// recipesFile is the layout of the recipe file
type recipesFile struct {
	Recipes []domain.RecipeRecord `json:"recipes" yaml:"recipes"`
}

// Load reads both catalog files and returns an immutable catalog.
// Any parse failure or missing required key yields ErrCatalogMalformed.
func Load(src Source) (*domain.Catalog, error) {
	var species speciesFile
	if err := decodeFile(src.SpeciesPath, &species); err != nil {
		return nil, err
	}
	if species.Categories == nil {
		return nil, fmt.Errorf("%w: %s: missing \"categories\"", domain.ErrCatalogMalformed, src.SpeciesPath)
	}

	var recipes recipesFile
	if err := decodeFile(src.RecipesPath, &recipes); err != nil {
		return nil, err
	}
	if recipes.Recipes == nil {
		return nil, fmt.Errorf("%w: %s: missing \"recipes\"", domain.ErrCatalogMalformed, src.RecipesPath)
	}
	for i, r := range recipes.Recipes {
		if strings.TrimSpace(r.Name) == "" {
			return nil, fmt.Errorf("%w: %s: recipe %d has no name", domain.ErrCatalogMalformed, src.RecipesPath, i)
		}
		if r.Plants == nil {
			return nil, fmt.Errorf("%w: %s: recipe %q has no plants", domain.ErrCatalogMalformed, src.RecipesPath, r.Name)
		}
	}

	log.Printf("[Catalog] Loaded %d species and %d recipes", len(species.Categories), len(recipes.Recipes))
	return domain.NewCatalog(species.Categories, recipes.Recipes), nil
}

// decodeFile parses JSON or YAML depending on the file extension
func decodeFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", domain.ErrCatalogMalformed, path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, v)
	default:
		err = json.Unmarshal(data, v)
	}
	if err != nil {
		return fmt.Errorf("%w: parse %s: %v", domain.ErrCatalogMalformed, path, err)
	}
	return nil
}
