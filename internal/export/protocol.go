package export

import (
	"fmt"

	"hemocount/pkg/domain"
)

// RecipeWarning explains why an overdrawn recipe cannot be prepared. It is
// empty for every other recipe.
func RecipeWarning(r domain.MasterMixResult) string {
	if !r.Overdrawn() {
		return ""
	}
	return fmt.Sprintf("Cell stock (%s mL) exceeds the total mix volume (%s mL); the source is too dilute for this seeding density. Use a more concentrated stock or fewer cells per well.",
		millilitres(r.StockVolumeML), millilitres(r.TotalVolumeML))
}

// PreparationSteps lists the bench steps for recipe. No steps are returned
// when the recipe needs no stock.
func PreparationSteps(p domain.MasterMixParams, r domain.MasterMixResult) []string {
	if r.StockVolumeML <= 0 {
		return nil
	}
	steps := []string{
		fmt.Sprintf("Add %s mL of medium to a sterile tube", millilitres(r.MediumVolumeML)),
		fmt.Sprintf("Add %s mL of cell stock", millilitres(r.StockVolumeML)),
		"Mix gently by pipetting or vortexing",
		fmt.Sprintf("Dispense %s μL per well into %d wells", plain(p.VolumePerWellUL), p.WellCount),
	}
	if p.ExtraWells > 0 {
		steps = append(steps, fmt.Sprintf("Extra volume prepared for %d additional wells (safety margin)", p.ExtraWells))
	}
	return append(steps, fmt.Sprintf("Expected cell count: %s cells/well", grouped(p.CellsPerWell)))
}
