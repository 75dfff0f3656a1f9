package utils

import (
	"fmt"
	"strings"
)

// NormalizeTagSerial canonicalizes a tag serial/MAC for storage and lookup:
// separators are stripped and hex letters upper-cased, so "ab:12:cd:34" and
// "AB12CD34" resolve to the same tag. The normalized form must be 8-15
// alphanumeric characters.
func NormalizeTagSerial(raw string) (string, error) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 'a' + 'A')
		case r == ':' || r == '-' || r == '.' || r == ' ':
			// separator, dropped
		default:
			return "", fmt.Errorf("tag serial contains invalid character %q", r)
		}
	}
	s := b.String()
	if len(s) < 8 || len(s) > 15 {
		return "", fmt.Errorf("tag serial %q must normalize to 8-15 alphanumeric characters, got %d", raw, len(s))
	}
	return s, nil
}
