/**
 * @description
 * Currency conversion helpers. The service stores and reasons about money
 * exclusively in integer minor units (cents); Dwolla's API speaks two-decimal
 * strings. These helpers are the only code that crosses that line.
 */

package app

import (
	"fmt"
	"strconv"
	"strings"
)

// formatAmountCents renders an integer cent amount as the two-decimal string
// Dwolla expects, e.g. 5000 -> "50.00", 150 -> "1.50", 7 -> "0.07".
func formatAmountCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// parseAmountToCents converts a Dwolla decimal-string amount back into integer
// cents. Values with more than two fractional digits are rejected rather than
// silently truncated.
func parseAmountToCents(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty amount")
	}
	negative := false
	if strings.HasPrefix(value, "-") {
		negative = true
		value = value[1:]
	}

	whole := value
	frac := ""
	if idx := strings.IndexByte(value, '.'); idx >= 0 {
		whole, frac = value[:idx], value[idx+1:]
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("amount %q has sub-cent precision", value)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	if whole == "" {
		whole = "0"
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	fracUnits, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", value, err)
	}

	cents := units*100 + fracUnits
	if negative {
		cents = -cents
	}
	return cents, nil
}
