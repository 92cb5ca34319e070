// Package domain holds the hemocytometer calculation engine: count
// aggregation, concentration and master mix solving. Every function in this
// package is pure and total; partial or malformed input degrades to zero
// values instead of errors.
package domain

import "strings"

// GridID identifies one of the five counting squares of a standard
// hemocytometer chamber.
type GridID int

// Grid squares in reading order. GridCenter is the only non-corner square.
const (
	GridTopLeft GridID = iota + 1
	GridTopRight
	GridCenter
	GridBottomLeft
	GridBottomRight
)

// MaxGrids is the number of countable squares on the chamber.
const MaxGrids = 5

var gridLabels = [MaxGrids]string{"Top Left", "Top Right", "Center", "Bottom Left", "Bottom Right"}

// GridIDs lists every grid square in order.
func GridIDs() []GridID {
	return []GridID{GridTopLeft, GridTopRight, GridCenter, GridBottomLeft, GridBottomRight}
}

// Valid reports whether id names a square on the chamber.
func (id GridID) Valid() bool {
	return id >= GridTopLeft && id <= GridBottomRight
}

// Label returns the human readable position of the square.
func (id GridID) Label() string {
	if !id.Valid() {
		return ""
	}
	return gridLabels[id-1]
}

// GridEntry holds the raw, string-encoded counts typed for one square.
type GridEntry struct {
	Viable    string `json:"viable"`
	NonViable string `json:"non_viable"`
}

// CountKind selects which field of a GridEntry an edit targets.
type CountKind string

const (
	CountViable    CountKind = "viable"
	CountNonViable CountKind = "non_viable"
)

// GridEntries is the fixed set of per-square entries indexed by GridID.
type GridEntries [MaxGrids]GridEntry

// Get returns the entry for id; unknown ids yield an empty entry.
func (e *GridEntries) Get(id GridID) GridEntry {
	if !id.Valid() {
		return GridEntry{}
	}
	return e[id-1]
}

// Set replaces one field of the entry for id. Unknown ids and kinds are ignored.
func (e *GridEntries) Set(id GridID, kind CountKind, value string) {
	if !id.Valid() {
		return
	}
	switch kind {
	case CountViable:
		e[id-1].Viable = value
	case CountNonViable:
		e[id-1].NonViable = value
	}
}

// GridSelection is the non-empty set of squares included in a count.
// The zero value is not valid; build selections with NewGridSelection or
// one of the presets.
type GridSelection struct {
	mask uint8
}

// NewGridSelection builds a selection from ids, ignoring unknown ones. When
// no valid id remains the four-corner preset is returned so the selection
// is never empty.
func NewGridSelection(ids ...GridID) GridSelection {
	var sel GridSelection
	for _, id := range ids {
		if id.Valid() {
			sel.mask |= bit(id)
		}
	}
	if sel.mask == 0 {
		return CornerGrids()
	}
	return sel
}

// CornerGrids returns the recommended preset: the four corner squares.
func CornerGrids() GridSelection {
	return GridSelection{mask: bit(GridTopLeft) | bit(GridTopRight) | bit(GridBottomLeft) | bit(GridBottomRight)}
}

// AllGrids returns the preset selecting all five squares.
func AllGrids() GridSelection {
	return GridSelection{mask: 1<<MaxGrids - 1}
}

// Has reports whether id is selected.
func (s GridSelection) Has(id GridID) bool {
	return id.Valid() && s.mask&bit(id) != 0
}

// Len returns the number of selected squares.
func (s GridSelection) Len() int {
	n := 0
	for m := s.mask; m != 0; m &= m - 1 {
		n++
	}
	return n
}

// IDs returns the selected squares in order.
func (s GridSelection) IDs() []GridID {
	out := make([]GridID, 0, s.Len())
	for _, id := range GridIDs() {
		if s.Has(id) {
			out = append(out, id)
		}
	}
	return out
}

// Toggle adds id when absent and removes it when present. Removing the last
// selected square is a no-op. Unknown ids leave the selection unchanged.
func (s GridSelection) Toggle(id GridID) GridSelection {
	if !id.Valid() {
		return s
	}
	if !s.Has(id) {
		return GridSelection{mask: s.mask | bit(id)}
	}
	if s.Len() <= 1 {
		return s
	}
	return GridSelection{mask: s.mask &^ bit(id)}
}

// String renders the selection as a comma separated id list, e.g. "1,2,4,5".
func (s GridSelection) String() string {
	ids := s.IDs()
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(rune('0' + id))
	}
	return strings.Join(parts, ",")
}

func bit(id GridID) uint8 { return 1 << (id - 1) }
