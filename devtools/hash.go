package devtools

import (
	"errors"
	"math"
	"regexp"
	"strconv"
)

// legacyRevisionThreshold is the last revision whose protocol schema is
// served by the legacy source browser.
const legacyRevisionThreshold = 202666

var (
	commitHashRe = regexp.MustCompile(`\s\(@(\b[0-9a-f]{5,40}\b)`)
	// A hash only has a numeric value if it is all decimal digits, with an
	// optional exponent. Everything else ("1a2b3", "e5000") has none.
	numericHashRe = regexp.MustCompile(`^[0-9]+(e[0-9]+)?$`)
)

// commitHash extracts the commit hash from a WebKit-Version string such as
// "537.36 (@cfede9db1d154de0468cb0538479f34c0755a0f4)".
func commitHash(webKitVersion string) (string, bool) {
	m := commitHashRe.FindStringSubmatch(webKitVersion)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// hashValue returns the numeric value of a commit hash, read as a decimal
// literal. Hashes that are not decimal literals have the value NaN.
func hashValue(hash string) float64 {
	if !numericHashRe.MatchString(hash) {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(hash, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			// ParseFloat already returned ±Inf or 0 for out of range values.
			return v
		}
		return math.NaN()
	}
	return v
}

// isLegacyRevision reports whether the schema for hash lives on the legacy
// host. Comparisons with NaN are false, so any hash containing a letter
// (other than a single exponent "e") goes to the modern host.
func isLegacyRevision(hash string) bool {
	return hashValue(hash) <= legacyRevisionThreshold
}
