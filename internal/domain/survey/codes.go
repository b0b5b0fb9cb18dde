package survey

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	subPartSuffix    = regexp.MustCompile(`^(.+?)(?:#(\d+)|_(\d+))$`)
	underscoreDigits = regexp.MustCompile(`_\d+$`)
)

// NormalizeCode upper-cases and trims a variable code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// SameCode compares variable codes case-insensitively.
func SameCode(a, b string) bool {
	return NormalizeCode(a) == NormalizeCode(b)
}

// BaseCode strips a trailing #N or _N sub-part suffix.
func BaseCode(code string) string {
	code = NormalizeCode(code)
	if m := subPartSuffix.FindStringSubmatch(code); m != nil {
		return m[1]
	}
	return code
}

// SubPartIndex is the numeric suffix of a sub-part code, 0 when there is none.
func SubPartIndex(code string) int {
	m := subPartSuffix.FindStringSubmatch(NormalizeCode(code))
	if m == nil {
		return 0
	}
	digits := m[2]
	if digits == "" {
		digits = m[3]
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}

// IsMultiPart reports whether code names a sub-variable of a multi-part question.
func IsMultiPart(code string) bool {
	code = NormalizeCode(code)
	return strings.Contains(code, "#") || underscoreDigits.MatchString(code)
}

// CompareRounds orders rounds numerically when both parse as numbers, lexically otherwise.
func CompareRounds(a, b string) int {
	fa, errA := strconv.ParseFloat(strings.TrimSpace(a), 64)
	fb, errB := strconv.ParseFloat(strings.TrimSpace(b), 64)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(a, b)
}
