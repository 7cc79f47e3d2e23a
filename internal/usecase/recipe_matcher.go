package usecase

import "github.com/shogun-olives/hacksc-2024-WildIn/internal/domain"

// FilterRecipes keeps the recipes that use at least one of the given species,
// preserving catalog order. The result is never nil.
func FilterRecipes(recipes []domain.RecipeRecord, species []string) []domain.RecipeRecord {
	detected := make(map[string]bool, len(species))
	for _, s := range species {
		detected[s] = true
	}

	matched := make([]domain.RecipeRecord, 0)
	if len(detected) == 0 {
		return matched
	}

	for _, recipe := range recipes {
		for _, plant := range recipe.Plants {
			if detected[plant] {
				matched = append(matched, recipe)
				break
			}
		}
	}
	return matched
}
