package students

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var dmyPattern = regexp.MustCompile(`^\d{2}-\d{2}-\d{4}$`)

// IsDMY reports whether the value is already in DD-MM-YYYY form.
func IsDMY(value string) bool {
	return dmyPattern.MatchString(strings.TrimSpace(value))
}

// NormalizeDOB converts a date of birth in any of the forms found in the
// student collection (ISO timestamps, YYYY-MM-DD, DD-MM-YYYY, MM/DD/YYYY)
// to DD-MM-YYYY. Ambiguous day/month pairs resolve day-first, matching how
// the records were entered. Returns false when the value cannot be parsed.
func NormalizeDOB(value string) (string, bool) {
	str := strings.TrimSpace(value)
	if str == "" {
		return "", false
	}

	if strings.Contains(str, "T") {
		t, err := time.Parse(time.RFC3339, str)
		if err != nil {
			return "", false
		}
		return t.Format("02-01-2006"), true
	}

	parts := regexp.MustCompile(`[-/]`).Split(str, -1)
	if len(parts) != 3 {
		return "", false
	}

	var day, month, year string
	switch {
	case len(parts[0]) == 4:
		year, month, day = parts[0], parts[1], parts[2]
	case atoi(parts[0]) > 12:
		day, month, year = parts[0], parts[1], parts[2]
	case atoi(parts[1]) > 12:
		month, day, year = parts[0], parts[1], parts[2]
	default:
		day, month, year = parts[0], parts[1], parts[2]
	}

	t, err := time.Parse("2006-1-2", fmt.Sprintf("%s-%s-%s", year, month, day))
	if err != nil {
		return "", false
	}
	return t.Format("02-01-2006"), true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
