// Package numfmt converts locale-formatted decimal strings into
// canonical decimal values, and back.
package numfmt

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Format identifies a numeric formatting convention:
// which rune marks the thousands groups and which one the decimals.
type Format int

// Format enum
const (
	// DecimalComma is the thousands-dot / decimal-comma convention,
	// e.g. "5.800,0980".
	DecimalComma Format = iota

	// DecimalDot is the thousands-comma / decimal-dot convention,
	// e.g. "5,800.0980".
	DecimalDot
)

func (f Format) String() string {
	switch f {
	case DecimalComma:
		return "decimal-comma"
	case DecimalDot:
		return "decimal-dot"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// ParseFormat returns the Format with the given name.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "decimal-comma":
		return DecimalComma, nil
	case "decimal-dot", "":
		return DecimalDot, nil
	}
	return 0, fmt.Errorf("unknown number format: %q", name)
}

// separators returns the thousands and decimal separator of the format.
func (f Format) separators() (thousands, dec string) {
	if f == DecimalComma {
		return ".", ","
	}
	return ",", "."
}

// ParseError is returned by Parse when no numeric value can be
// isolated from the raw string. It is always recoverable by the caller.
type ParseError struct {
	Raw    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse number %q: %s", e.Raw, e.Reason)
}

// Parse converts the locale-formatted string raw into a decimal value.
//
// The thousands separators are stripped, the decimal separator is
// substituted with the canonical dot, and the cleaned string is parsed
// at full precision. Rounding is up to the caller (see Round).
func Parse(raw string, f Format) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)

	if !strings.ContainsAny(s, "0123456789") {
		return decimal.Zero, &ParseError{Raw: raw, Reason: "no digits"}
	}

	thousands, dec := f.separators()
	s = strings.ReplaceAll(s, thousands, "")
	s = strings.ReplaceAll(s, dec, ".")

	if strings.Count(s, ".") > 1 {
		return decimal.Zero, &ParseError{Raw: raw, Reason: "more than one decimal separator"}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &ParseError{Raw: raw, Reason: "not a valid number"}
	}
	return d, nil
}

// Render formats the decimal value in the given locale format,
// inserting thousands separators every three integer digits.
// It is the inverse of Parse.
func Render(d decimal.Decimal, f Format) string {
	thousands, dec := f.separators()

	s := d.String()

	var sign string
	if strings.HasPrefix(s, "-") {
		sign = "-"
		s = s[1:]
	}

	intPart := s
	var fracPart string
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}

	var b strings.Builder
	b.WriteString(sign)
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteString(thousands)
		}
		b.WriteRune(r)
	}
	if fracPart != "" {
		b.WriteString(dec)
		b.WriteString(fracPart)
	}
	return b.String()
}

// Round rounds the value to the given number of decimal places with
// the round-half-to-even policy.
func Round(d decimal.Decimal, places int32) decimal.Decimal {
	return d.RoundBank(places)
}
