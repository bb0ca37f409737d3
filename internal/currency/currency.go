// Package currency turns raw keystrokes typed into an amount field into a
// canonical major-unit decimal ("1234.56") and renders canonical values for
// display in pt-BR ("R$ 1.234,56").
//
// The canonical form always matches ^\d+\.\d{2}$. It is the only
// representation passed between components; conversion to minor units
// happens once, at the submission boundary, through ToMinorUnits.
package currency

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	Zero             = "0.00"
	Symbol           = "R$"
	DecimalSeparator = ','
	GroupSeparator   = '.'
	fractionDigits   = 2
)

var (
	ErrNotCanonical = errors.New("amount is not in canonical form")
	ErrOutOfRange   = errors.New("amount does not fit in minor units")

	canonicalPattern = regexp.MustCompile(`^\d+\.\d{2}$`)
	maxMinorUnits    = decimal.NewFromInt(math.MaxInt64)
)

// IsCanonical reports whether s is a well-formed canonical amount.
func IsCanonical(s string) bool {
	return canonicalPattern.MatchString(s)
}

// ParseKeystroke normalizes the current contents of an amount field.
//
// Only ASCII digits and the pt-BR decimal separator survive; the grouping dot
// and the currency symbol are dropped, so display strings parse back to the
// value they render. A second decimal separator discards the keystroke and
// previousCanonical is returned instead. Fractional digits beyond the second
// are truncated.
func ParseKeystroke(rawInput, previousCanonical string) string {
	var whole, frac strings.Builder
	seenSeparator := false

	for _, r := range rawInput {
		switch {
		case r >= '0' && r <= '9':
			if !seenSeparator {
				whole.WriteRune(r)
				continue
			}
			if frac.Len() < fractionDigits {
				frac.WriteRune(r)
			}
		case r == DecimalSeparator:
			if seenSeparator {
				return normalize(previousCanonical)
			}
			seenSeparator = true
		}
	}

	return compose(whole.String(), frac.String())
}

// FormatForDisplay renders a canonical amount as "R$ 1.234,56". Anything that
// is not a non-negative number renders as zero.
func FormatForDisplay(canonical string) string {
	d, err := decimal.NewFromString(strings.TrimSpace(canonical))
	if err != nil || d.IsNegative() {
		d = decimal.Zero
	}
	whole, frac, _ := strings.Cut(d.Truncate(fractionDigits).StringFixed(fractionDigits), ".")
	return Symbol + " " + group(whole) + string(DecimalSeparator) + frac
}

// group inserts the thousands separator into a run of integer digits.
func group(digits string) string {
	var b strings.Builder
	for i := 0; i < len(digits); i++ {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(GroupSeparator)
		}
		b.WriteByte(digits[i])
	}
	return b.String()
}

// ToMinorUnits converts a canonical amount into cents.
func ToMinorUnits(canonical string) (int64, error) {
	if !IsCanonical(canonical) {
		return 0, fmt.Errorf("%w: %q", ErrNotCanonical, canonical)
	}
	d, err := decimal.NewFromString(canonical)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNotCanonical, err)
	}
	cents := d.Shift(fractionDigits).Round(0)
	if cents.GreaterThan(maxMinorUnits) {
		return 0, ErrOutOfRange
	}
	return cents.IntPart(), nil
}

// FromMinorUnits renders a cent amount in canonical form.
func FromMinorUnits(cents int64) string {
	if cents < 0 {
		return Zero
	}
	return decimal.New(cents, -fractionDigits).StringFixed(fractionDigits)
}

func normalize(canonical string) string {
	if !IsCanonical(canonical) {
		return Zero
	}
	parts := strings.SplitN(canonical, ".", 2)
	return compose(parts[0], parts[1])
}

func compose(whole, frac string) string {
	whole = strings.TrimLeft(whole, "0")
	if whole == "" {
		whole = "0"
	}
	for len(frac) < fractionDigits {
		frac += "0"
	}
	return whole + "." + frac
}
