package models

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// NotAvailable is the display value for a reading that was never recorded
const NotAvailable = "N/A"

// IsPresent reports whether an optional reading holds a usable number.
// NaN and infinities count as absent.
func IsPresent(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}

// FloatValue returns the reading, or 0 when it is absent
func FloatValue(v *float64) float64 {
	if !IsPresent(v) {
		return 0
	}
	return *v
}

// IntValue returns the count, or 0 when it is absent
func IntValue(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

// DisplayFloat formats a reading for display, using N/A for absent values
func DisplayFloat(v *float64) string {
	if !IsPresent(v) {
		return NotAvailable
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// Float returns a pointer to v
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v
func Int(v int) *int { return &v }

// String returns a pointer to v
func String(v string) *string { return &v }

// Bool returns a pointer to v
func Bool(v bool) *bool { return &v }

// Time returns a pointer to v
func Time(v time.Time) *time.Time { return &v }

var blankMarkers = map[string]bool{
	"":     true,
	"n/a":  true,
	"na":   true,
	"null": true,
	"nil":  true,
	"-":    true,
}

func isBlank(s string) bool {
	return blankMarkers[strings.ToLower(strings.TrimSpace(s))]
}

// ParseOptionalFloat parses a numeric field. Anything that does not parse to a
// finite number yields nil, never an error.
func ParseOptionalFloat(s string) *float64 {
	if isBlank(s) {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// ParseOptionalInt parses a count field; decimal input is truncated
func ParseOptionalInt(s string) *int {
	if isBlank(s) {
		return nil
	}
	s = strings.TrimSpace(s)
	if v, err := strconv.Atoi(s); err == nil {
		return &v
	}
	f := ParseOptionalFloat(s)
	if f == nil {
		return nil
	}
	v := int(*f)
	return &v
}

// ParseOptionalBool understands the yes/no spellings used by the entry forms
func ParseOptionalBool(s string) *bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1", "present":
		return Bool(true)
	case "false", "no", "n", "0", "none", "absent":
		return Bool(false)
	}
	return nil
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05-07",
	"01/02/2006",
	"20060102",
}

// ParseOptionalDate accepts ISO dates, timestamps and US-style dates
func ParseOptionalDate(s string) *time.Time {
	if isBlank(s) {
		return nil
	}
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// GradeUnit is the unit a caller used for the grade breakdown of a harvest
type GradeUnit string

const (
	GradeUnitKg      GradeUnit = "kg"
	GradeUnitPercent GradeUnit = "percent"
)

// ParseGradeUnit maps free-form unit labels; unknown labels default to kg
func ParseGradeUnit(s string) GradeUnit {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "%", "pct", "percent", "percentage":
		return GradeUnitPercent
	}
	return GradeUnitKg
}

// NormalizeGrades converts a grade breakdown to kilograms. Percentages are
// taken of the harvest yield; without a yield they cannot be converted and
// come back nil.
func NormalizeGrades(yield *float64, unit GradeUnit, fine, premium, commercial *float64) (*float64, *float64, *float64) {
	if unit != GradeUnitPercent {
		return fine, premium, commercial
	}
	convert := func(pct *float64) *float64 {
		if !IsPresent(pct) || !IsPresent(yield) {
			return nil
		}
		return Float(*pct / 100 * *yield)
	}
	return convert(fine), convert(premium), convert(commercial)
}
