// Package pricing converts storefront display prices into minor currency units.
//
// Catalog entries carry prices as display strings such as "Rs. 4,500" or
// "PKR 12,000". Payment providers and order documents work in minor units
// (paisa), so every amount that leaves this service goes through
// NormalizeDisplayPrice first.
package pricing

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidPriceFormat reports a display price containing no digits at all.
var ErrInvalidPriceFormat = errors.New("pricing: display price contains no digits")

// minorPerMajor is the paisa-per-rupee factor. Display prices are whole
// major units; fractional display prices are not part of the catalog
// contract and their separators are treated as noise like any other symbol.
const minorPerMajor = 100

// NormalizeDisplayPrice strips every non-digit byte from the display string,
// interprets the remaining digits as a whole major-unit amount, and returns
// the equivalent amount in minor units.
//
// "Rs. 4,500" becomes 450000 and "1,25,000" becomes 12500000. The grouping
// style of the input never changes the result; only the digit sequence does.
func NormalizeDisplayPrice(display string) (int64, error) {
	digits := digitsOf(display)
	if digits == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPriceFormat, display)
	}

	major, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("pricing: parse %q: %w", display, err)
	}

	return major * minorPerMajor, nil
}

// LineTotal returns the minor-unit total for a quantity of the given display
// price.
func LineTotal(display string, quantity int64) (int64, error) {
	unit, err := NormalizeDisplayPrice(display)
	if err != nil {
		return 0, err
	}
	if quantity < 0 {
		quantity = 0
	}
	return unit * quantity, nil
}

func digitsOf(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for i := 0; i < len(value); i++ {
		if value[i] >= '0' && value[i] <= '9' {
			b.WriteByte(value[i])
		}
	}
	return b.String()
}
