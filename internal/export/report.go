// Package export renders count results and master mix recipes into
// downloadable artifacts (CSV, text, HTML, PDF, PNG) and stores them through
// a blob.Store. Every displayed number is re-derived with pkg/domain so the
// artifacts can never disagree with the engine.
package export

import (
	"strconv"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"hemocount/internal/core"
	"hemocount/pkg/domain"
)

// ReportTitle heads every count artifact.
const ReportTitle = "Hemocytometer Cell Count Results"

// RecipeTitle heads every master mix artifact.
const RecipeTitle = "Master Mix Recipe"

// FormulaText is the concentration formula printed under each count report.
const FormulaText = "Cells/mL = (Cell Count ÷ Squares Counted) × 10,000 × Dilution Factor"

// CountReport is the display form of one count.
type CountReport struct {
	TotalCells          int                `json:"total_cells"`
	ViableCells         int                `json:"viable_cells"`
	NonViableCells      int                `json:"non_viable_cells"`
	ViabilityPercent    float64            `json:"viability_percent"`
	DilutionFactor      int                `json:"dilution_factor"`
	SquaresCounted      int                `json:"squares_counted"`
	TotalConcentration  float64            `json:"total_concentration"`
	ViableConcentration float64            `json:"viable_concentration"`
	PerGrid             []domain.GridCount `json:"per_grid,omitempty"`
	GeneratedAt         time.Time          `json:"generated_at"`
}

// NewCountReport derives a report from raw totals.
func NewCountReport(counts domain.CountTotals, dilutionFactor int, at time.Time) CountReport {
	pair := domain.Concentrations(counts, dilutionFactor)
	return CountReport{
		TotalCells:          counts.TotalCells,
		ViableCells:         counts.ViableCells,
		NonViableCells:      counts.NonViableCells,
		ViabilityPercent:    counts.ViabilityPercent(),
		DilutionFactor:      dilutionFactor,
		SquaresCounted:      counts.GridsCounted,
		TotalConcentration:  pair.Total,
		ViableConcentration: pair.Viable,
		PerGrid:             append([]domain.GridCount(nil), counts.PerGrid...),
		GeneratedAt:         at,
	}
}

// RecipeReport is the display form of a solved master mix.
type RecipeReport struct {
	Params      domain.MasterMixParams `json:"params"`
	Source      domain.SourceMode      `json:"source_mode"`
	Recipe      domain.MasterMixResult `json:"recipe"`
	Steps       []string               `json:"steps,omitempty"`
	Warning     string                 `json:"warning,omitempty"`
	GeneratedAt time.Time              `json:"generated_at"`
}

// NewRecipeReport solves params again and builds the preparation steps.
func NewRecipeReport(params domain.MasterMixParams, source domain.SourceMode, at time.Time) RecipeReport {
	recipe := domain.SolveMasterMix(params)
	return RecipeReport{
		Params:      params,
		Source:      source,
		Recipe:      recipe,
		Steps:       PreparationSteps(params, recipe),
		Warning:     RecipeWarning(recipe),
		GeneratedAt: at,
	}
}

// Computable reports whether the recipe has anything to show.
func (r RecipeReport) Computable() bool { return !r.Recipe.IsZero() }

// Document bundles the two reports rendered by one export.
type Document struct {
	Count  CountReport  `json:"count"`
	Recipe RecipeReport `json:"recipe"`
}

// FromSnapshot builds a Document from a session snapshot. A zero at uses
// the snapshot's ComputedAt.
func FromSnapshot(s core.Snapshot, at time.Time) Document {
	if at.IsZero() {
		at = s.ComputedAt
	}
	return Document{
		Count:  NewCountReport(s.Counts, s.DilutionFactor, at),
		Recipe: NewRecipeReport(s.Params, s.Source.Mode, at),
	}
}

var printer = message.NewPrinter(language.English)

// grouped renders v with thousands separators and at most three decimals,
// e.g. 1000000 -> "1,000,000".
func grouped(v float64) string {
	return printer.Sprint(number.Decimal(v, number.MaxFractionDigits(3)))
}

func plain(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func millilitres(v float64) string { return strconv.FormatFloat(v, 'f', 3, 64) }

func microlitres(v float64) string { return strconv.FormatFloat(v*1000, 'f', 0, 64) }

func percent(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) }

func cellType(useViable bool) string {
	if useViable {
		return "Viable"
	}
	return "Total"
}
