package main

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"hemocount/pkg/domain"
)

type gridValue struct {
	id        domain.GridID
	viable    string
	nonViable string
}

// gridFlag collects repeated -grid id=viable:nonviable values.
type gridFlag []gridValue

func (g *gridFlag) String() string {
	parts := make([]string, len(*g))
	for i, v := range *g {
		parts[i] = fmt.Sprintf("%d=%s:%s", v.id, v.viable, v.nonViable)
	}
	return strings.Join(parts, ",")
}

func (g *gridFlag) Set(raw string) error {
	idPart, counts, ok := strings.Cut(raw, "=")
	if !ok {
		return fmt.Errorf("expected id=viable:nonviable, got %q", raw)
	}
	id, err := parseGridID(idPart)
	if err != nil {
		return err
	}
	viable, nonViable, _ := strings.Cut(counts, ":")
	*g = append(*g, gridValue{id: id, viable: strings.TrimSpace(viable), nonViable: strings.TrimSpace(nonViable)})
	return nil
}

func parseGridID(raw string) (domain.GridID, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || !domain.GridID(n).Valid() {
		return 0, fmt.Errorf("%w: grid must be 1-%d, got %q", errUsage, domain.MaxGrids, raw)
	}
	return domain.GridID(n), nil
}

// optionalString records whether a string flag was given at all, so an
// explicit empty value can clear a field.
type optionalString struct{ value **string }

func (o optionalString) String() string {
	if o.value == nil || *o.value == nil {
		return ""
	}
	return **o.value
}

func (o optionalString) Set(raw string) error {
	*o.value = &raw
	return nil
}

type optionalBool struct{ value **bool }

func (o optionalBool) String() string {
	if o.value == nil || *o.value == nil {
		return ""
	}
	return strconv.FormatBool(**o.value)
}

func (o optionalBool) Set(raw string) error {
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return err
	}
	*o.value = &b
	return nil
}

func (o optionalBool) IsBoolFlag() bool { return true }

type options struct {
	configPath string
	json       bool

	mode          string
	grids         gridFlag
	selection     string
	viable        string
	nonViable     string
	declaredGrids int
	dilution      string

	volume    *string
	cells     *string
	wells     *string
	extra     *string
	useViable *bool
	source    string
	manual    string

	formats string
	presign time.Duration

	args []string
}

// inputMode picks the explicit -mode, or total entry when totals were given.
func (o options) inputMode() domain.InputMode {
	if o.mode != "" {
		return domain.InputMode(o.mode)
	}
	if o.viable != "" || o.nonViable != "" {
		return domain.InputTotal
	}
	return domain.InputGrid
}

// sourceMode returns the requested source; a manual value implies manual mode.
func (o options) sourceMode() domain.SourceMode {
	if o.source != "" {
		return domain.SourceMode(o.source)
	}
	if o.manual != "" {
		return domain.SourceManual
	}
	return ""
}

func parseFlags(cmd string, args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("hemocount "+cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", "", "path to a TOML config file")

	if cmd != "pref" {
		fs.BoolVar(&o.json, "json", false, "print JSON instead of text")
		fs.StringVar(&o.mode, "mode", "", "input mode: grid or total (default grid, total when -viable/-nonviable are set)")
		fs.Var(&o.grids, "grid", "per-square count id=viable:nonviable, repeatable (e.g. 1=45:5)")
		fs.StringVar(&o.selection, "select", "", "squares to include: corners, all, or ids such as 1,2,4,5")
		fs.StringVar(&o.viable, "viable", "", "viable cell total (total mode)")
		fs.StringVar(&o.nonViable, "nonviable", "", "non-viable cell total (total mode)")
		fs.IntVar(&o.declaredGrids, "grids", 0, "squares the totals were counted over (1-5)")
		fs.StringVar(&o.dilution, "dilution", "", "dilution factor (integer >= 1)")
		fs.Var(optionalString{&o.volume}, "volume", "volume per well in μL")
		fs.Var(optionalString{&o.cells}, "cells", "cells per well")
		fs.Var(optionalString{&o.wells}, "wells", "number of wells")
		fs.Var(optionalString{&o.extra}, "extra", "additional wells")
		fs.Var(optionalBool{&o.useViable}, "use-viable", "feed the recipe from the viable concentration")
		fs.StringVar(&o.source, "source", "", "concentration source: hemocytometer or manual")
		fs.StringVar(&o.manual, "manual", "", "manual stock concentration in cells/mL (implies -source manual)")
	}
	if cmd == "export" {
		fs.StringVar(&o.formats, "format", "csv", "comma separated formats: csv,txt,html,pdf,png")
		fs.DurationVar(&o.presign, "presign", 0, "return signed URLs valid for this long")
	}
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	o.args = fs.Args()
	if cmd != "pref" && len(o.args) > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %s\n", strings.Join(o.args, " "))
		return options{}, errUsage
	}
	if o.mode != "" && !domain.InputMode(o.mode).Valid() {
		_, _ = fmt.Fprintf(stderr, "unknown input mode %q\n", o.mode)
		return options{}, errUsage
	}
	return o, nil
}
