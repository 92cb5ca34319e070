package main

import (
	"encoding/json"
	"fmt"
	"io"

	"hemocount/internal/core"
	"hemocount/internal/export"
	"hemocount/pkg/domain"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) printCount(snap core.Snapshot, opts options, w io.Writer) error {
	if opts.json {
		return writeJSON(w, snap)
	}
	doc := export.FromSnapshot(snap, snap.ComputedAt)
	if _, err := fmt.Fprintf(w, "%s\n", export.CountText(doc.Count)); err != nil {
		return err
	}
	return printAdvisories(w, snap.Advisories)
}

// recipeView adds the preparation steps to the JSON snapshot.
type recipeView struct {
	core.Snapshot
	Steps []string `json:"steps,omitempty"`
}

func (a *app) printMasterMix(snap core.Snapshot, opts options, w io.Writer) error {
	doc := export.FromSnapshot(snap, snap.ComputedAt)
	if opts.json {
		return writeJSON(w, recipeView{Snapshot: snap, Steps: doc.Recipe.Steps})
	}
	if !doc.Recipe.Computable() {
		if _, err := fmt.Fprintln(w, "Master mix not computable: enter counts (or a manual concentration) and positive well parameters."); err != nil {
			return err
		}
		return printAdvisories(w, snap.Advisories)
	}
	if _, err := fmt.Fprintf(w, "%s\n", export.RecipeText(doc.Recipe)); err != nil {
		return err
	}
	return printAdvisories(w, snap.Advisories)
}

func printAdvisories(w io.Writer, res domain.Result) error {
	if len(res.Violations) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "\nAdvisories:"); err != nil {
		return err
	}
	for _, v := range res.Violations {
		if _, err := fmt.Fprintf(w, "  [%s] %s: %s\n", v.Severity, v.Rule, v.Message); err != nil {
			return err
		}
	}
	return nil
}
