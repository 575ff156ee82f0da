package mpesa

import (
	"regexp"
	"strings"
)

var msisdnRe = regexp.MustCompile(`^254\d{9}$`)

// NormalizeMSISDN brings a Kenyan phone number to the 254XXXXXXXXX form the
// gateway requires: 0712345678 and 712345678 both become 254712345678, an
// already-international number passes through unchanged.
func NormalizeMSISDN(raw string) (string, bool) {
	s := strings.NewReplacer(" ", "", "+", "", "-", "").Replace(strings.TrimSpace(raw))
	switch {
	case strings.HasPrefix(s, "0"):
		s = "254" + s[1:]
	case strings.HasPrefix(s, "254"):
		// already international
	default:
		s = "254" + s
	}
	return s, msisdnRe.MatchString(s)
}
