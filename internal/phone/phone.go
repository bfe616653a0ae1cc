// Package phone normalizes recipient numbers into the address form the
// automation engine expects.
package phone

import "strings"

const addressSuffix = "@c.us"

// Format strips everything but digits, rewrites a leading national zero to
// the 60 country prefix, and appends the engine address suffix.
func Format(number string) string {
	var b strings.Builder
	for _, r := range number {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	formatted := b.String()
	if strings.HasPrefix(formatted, "0") {
		formatted = "60" + formatted[1:]
	}
	return formatted + addressSuffix
}
