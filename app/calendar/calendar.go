// Package calendar converts between the in-game galactic calendar used by the
// GalNet feed and the real-world calendar the archive stores internally.
//
// Storage convention: every date persisted by this service is canonical
// (real-world). The offset is applied in exactly two places: ToCanonical on
// the write path and ToDisplay on the read/presentation path.
package calendar

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// GameYearOffset is the fixed gap between the galactic calendar the feed
// publishes and the real-world calendar the store holds.
const GameYearOffset = 1286

// DisplayYearThreshold distinguishes galactic years from canonical ones when
// a date's provenance is ambiguous. No canonical year in the corpus reaches
// it, and no galactic year falls below it.
const DisplayYearThreshold = 3300

// DateLayout is the canonical wire format for dates (query options, storage).
const DateLayout = "2006-01-02"

const rawDateLayout = "2 Jan 2006"

// ParseError reports a raw date or date option that does not match the
// expected grammar. The offending text is kept for operator diagnosis.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparseable date %q: %v", e.Raw, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var monthTitle = cases.Title(language.English)

// ToCanonical parses a raw feed date such as "25 MAR 3301" and returns the
// canonical (real-world) date. The galactic 29th of February has no real
// equivalent and maps to the 28th of the same month.
func ToCanonical(raw string) (time.Time, error) {
	fields := strings.Fields(strings.TrimSpace(raw))
	if len(fields) != 3 {
		return time.Time{}, &ParseError{Raw: raw, Err: fmt.Errorf("expected day month year, got %d fields", len(fields))}
	}

	day := strings.TrimLeft(fields[0], "0")
	month := monthTitle.String(strings.ToLower(fields[1]))

	// The galactic calendar observes 29 FEB in years whose real counterpart
	// has no leap day.
	if day == "29" && month == "Feb" {
		day = "28"
	}

	t, err := time.Parse(rawDateLayout, fmt.Sprintf("%s %s %s", day, month, fields[2]))
	if err != nil {
		return time.Time{}, &ParseError{Raw: raw, Err: err}
	}

	return t.AddDate(-GameYearOffset, 0, 0), nil
}

// ToDisplay converts a canonical date to the galactic calendar for
// presentation.
func ToDisplay(t time.Time) time.Time {
	return t.AddDate(GameYearOffset, 0, 0)
}

// NormalizeAmbiguous accepts a date that may be expressed in either calendar
// and returns its canonical form. Callers use it for operator-supplied values
// (query options, legacy rows) whose provenance is unknown.
func NormalizeAmbiguous(t time.Time) time.Time {
	if t.Year() >= DisplayYearThreshold {
		return t.AddDate(-GameYearOffset, 0, 0)
	}
	return t
}

// ParseOptionDate parses a YYYY-MM-DD option value and normalizes it to the
// canonical calendar.
func ParseOptionDate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, &ParseError{Raw: value, Err: err}
	}
	return NormalizeAmbiguous(t), nil
}
