// Package view renders lookup results for the terminal.
package view

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"toji-proxy/internal/lookup"
)

// Slot names one value a layout can display.
type Slot string

const (
	SlotAddress   Slot = "address"
	SlotPNU       Slot = "pnu"
	SlotJibun     Slot = "jibun"
	SlotCategory  Slot = "category"
	SlotArea      Slot = "area"
	SlotPrice     Slot = "price"
	SlotOwnership Slot = "ownership"
)

// RequiredSlots must appear in every layout.
var RequiredSlots = []Slot{SlotPNU, SlotCategory, SlotArea, SlotPrice}

const missing = "-"

// Field binds a slot to its display label.
type Field struct {
	Slot  Slot
	Label string
}

// Layout is the ordered list of fields a View renders.
type Layout []Field

// DefaultLayout returns the Korean labels used by the lookup command.
func DefaultLayout() Layout {
	return Layout{
		{SlotAddress, "주소"},
		{SlotPNU, "PNU"},
		{SlotJibun, "지번"},
		{SlotCategory, "지목"},
		{SlotArea, "면적"},
		{SlotPrice, "공시지가"},
		{SlotOwnership, "소유구분"},
	}
}

// LayoutError reports required slots that have no label and slots the view
// does not know.
type LayoutError struct {
	Missing []Slot
	Unknown []Slot
}

func (e *LayoutError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required slots: "+joinSlots(e.Missing))
	}
	if len(e.Unknown) > 0 {
		parts = append(parts, "unknown slots: "+joinSlots(e.Unknown))
	}
	return "view: " + strings.Join(parts, "; ")
}

// View writes results to w using a validated layout.
type View struct {
	w       io.Writer
	layout  Layout
	printer *message.Printer
}

// New validates layout and returns a View. Every required slot must have a
// non-empty label, and only known slots may appear.
func New(w io.Writer, layout Layout) (*View, error) {
	labeled := make(map[Slot]bool, len(layout))
	var lerr LayoutError
	for _, f := range layout {
		if !known(f.Slot) {
			lerr.Unknown = append(lerr.Unknown, f.Slot)
			continue
		}
		if strings.TrimSpace(f.Label) != "" {
			labeled[f.Slot] = true
		}
	}
	for _, s := range RequiredSlots {
		if !labeled[s] {
			lerr.Missing = append(lerr.Missing, s)
		}
	}
	if len(lerr.Missing) > 0 || len(lerr.Unknown) > 0 {
		return nil, &lerr
	}

	return &View{
		w:       w,
		layout:  layout,
		printer: message.NewPrinter(language.Korean),
	}, nil
}

// Render writes one "label  value" line per field.
func (v *View) Render(r *lookup.Result) error {
	tw := tabwriter.NewWriter(v.w, 0, 4, 2, ' ', 0)
	for _, f := range v.layout {
		if _, err := fmt.Fprintf(tw, "%s\t%s\n", f.Label, v.value(f.Slot, r)); err != nil {
			return fmt.Errorf("view: write: %w", err)
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("view: flush: %w", err)
	}
	return nil
}

// RenderJSON writes r as indented JSON.
func RenderJSON(w io.Writer, r *lookup.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("view: encode: %w", err)
	}
	return nil
}

func (v *View) value(s Slot, r *lookup.Result) string {
	var raw string
	switch s {
	case SlotAddress:
		raw = r.Address
	case SlotPNU:
		raw = r.PNU
	case SlotJibun:
		raw = r.Jibun
	case SlotCategory:
		raw = r.Category
	case SlotArea:
		raw = r.Area
	case SlotPrice:
		raw = r.Price
	case SlotOwnership:
		raw = r.Ownership
	}
	if raw == "" {
		return missing
	}

	switch s {
	case SlotArea:
		return raw + "㎡"
	case SlotPrice:
		// Whole-won prices are grouped; anything else is shown as received.
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return v.printer.Sprintf("%d원", n)
		}
		return raw + "원"
	}
	return raw
}

func known(s Slot) bool {
	switch s {
	case SlotAddress, SlotPNU, SlotJibun, SlotCategory, SlotArea, SlotPrice, SlotOwnership:
		return true
	}
	return false
}

func joinSlots(slots []Slot) string {
	names := make([]string, len(slots))
	for i, s := range slots {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
