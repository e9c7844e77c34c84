package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	isoDatePattern     = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	compactDatePattern = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})$`)
	shortDatePattern   = regexp.MustCompile(`^(\d{2})(\d{2})(\d{2})$`)
)

// NormalizeDate converts YYYY-MM-DD, YYYYMMDD or YYMMDD (year 2000+YY) into
// the canonical YYYY-MM-DD form. The second return value is false when the
// text matches none of the shapes or the month/day are out of range.
//
// Validation is deliberately loose: day 31 is accepted for every month and
// February 29 is accepted in any year.
func NormalizeDate(text string) (string, bool) {
	s := strings.TrimSpace(text)

	if m := isoDatePattern.FindStringSubmatch(s); m != nil {
		return formatDate(atoi(m[1]), atoi(m[2]), atoi(m[3]))
	}
	if m := compactDatePattern.FindStringSubmatch(s); m != nil {
		return formatDate(atoi(m[1]), atoi(m[2]), atoi(m[3]))
	}
	if m := shortDatePattern.FindStringSubmatch(s); m != nil {
		return formatDate(2000+atoi(m[1]), atoi(m[2]), atoi(m[3]))
	}
	return "", false
}

// decodeGS1Date handles the fixed YYMMDD payload of AIs 11 and 17.
func decodeGS1Date(value string) (string, bool) {
	m := shortDatePattern.FindStringSubmatch(value)
	if m == nil {
		return "", false
	}
	return formatDate(2000+atoi(m[1]), atoi(m[2]), atoi(m[3]))
}

func formatDate(year, month, day int) (string, bool) {
	if !validYMD(year, month, day) {
		return "", false
	}
	return fmt.Sprintf("%d-%02d-%02d", year, month, day), true
}

func validYMD(year, month, day int) bool {
	if year == 0 {
		return false
	}
	return month >= 1 && month <= 12 && day >= 1 && day <= 31
}

// atoi is only called on regexp groups of ASCII digits.
func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
