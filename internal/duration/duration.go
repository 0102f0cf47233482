// Package duration normalizes tier duration labels to one canonical
// human-readable form ("1 Day", "7 Days", "1 Month"). The canonical form is
// the only one ever stored or used as a join key between price tiers, keys
// and stock counts.
package duration

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var shorthandRe = regexp.MustCompile(`^(\d+)\s*(d|day|days|m|month|months)$`)

// Normalize accepts shorthand ("1d", "7d", "1m", "3m"), spelled-out forms
// ("7 days", "1 Month"), and the legacy "code|label" dual encoding (the label
// part wins). Anything else is rejected.
func Normalize(input string) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", fmt.Errorf("empty duration")
	}
	// Legacy rows joined the shorthand code and the label with '|'.
	if i := strings.LastIndex(s, "|"); i >= 0 {
		return Normalize(s[i+1:])
	}

	m := shorthandRe.FindStringSubmatch(strings.ToLower(s))
	if m == nil {
		return "", fmt.Errorf("invalid duration %q", input)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return "", fmt.Errorf("invalid duration %q", input)
	}

	unit := "Day"
	if strings.HasPrefix(m[2], "m") {
		unit = "Month"
	}
	if n == 1 {
		return fmt.Sprintf("1 %s", unit), nil
	}
	return fmt.Sprintf("%d %ss", n, unit), nil
}

// SortKey maps a canonical duration to an approximate length in days, for
// display ordering only. Unrecognized input sorts last.
func SortKey(canonical string) int {
	m := shorthandRe.FindStringSubmatch(strings.ToLower(strings.TrimSpace(canonical)))
	if m == nil {
		return 1 << 30
	}
	n, _ := strconv.Atoi(m[1])
	if strings.HasPrefix(m[2], "m") {
		return n * 30
	}
	return n
}
