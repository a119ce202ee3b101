package ads

import "strings"

// CanonicalID strips every non-digit from a customer id, yielding the form
// the API and the credential store key on. Idempotent.
func CanonicalID(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatID renders a 10-digit customer id as DDD-DDD-DDDD for display.
// Anything that does not canonicalize to 10 digits comes back unchanged.
func FormatID(raw string) string {
	digits := CanonicalID(raw)
	if len(digits) != 10 {
		return raw
	}
	return digits[:3] + "-" + digits[3:6] + "-" + digits[6:]
}
