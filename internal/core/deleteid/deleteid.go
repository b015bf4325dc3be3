// Package deleteid provides the delete-view identifier format and a
// collision-safe allocator for new identifiers.
//
// A delete-view ID is the human-facing identifier stamped on every archived
// deletion record: a fixed prefix followed by a zero-padded numeric suffix,
// e.g. "DEL-00042".
package deleteid

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	// DefaultPrefix is the wire-visible prefix of every delete-view ID.
	DefaultPrefix = "DEL-"

	// DefaultPad is the fixed width of the numeric suffix.
	DefaultPad = 5
)

// Format describes one delete-view ID namespace.
type Format struct {
	Prefix string
	Pad    int

	pattern *regexp.Regexp
}

// DefaultFormat returns the production format (DEL-NNNNN).
func DefaultFormat() Format {
	return NewFormat(DefaultPrefix, DefaultPad)
}

// NewFormat builds a Format with a compiled validity pattern.
func NewFormat(prefix string, pad int) Format {
	return Format{
		Prefix:  prefix,
		Pad:     pad,
		pattern: regexp.MustCompile("^" + regexp.QuoteMeta(prefix) + fmt.Sprintf(`\d{%d}$`, pad)),
	}
}

// Render formats a numeric suffix as a full ID.
func (f Format) Render(n int) string {
	return fmt.Sprintf("%s%0*d", f.Prefix, f.Pad, n)
}

// Valid reports whether id matches the fixed prefix + digit-count pattern.
func (f Format) Valid(id string) bool {
	if f.pattern == nil {
		f.pattern = regexp.MustCompile("^" + regexp.QuoteMeta(f.Prefix) + fmt.Sprintf(`\d{%d}$`, f.Pad))
	}
	return f.pattern.MatchString(id)
}

// Suffix extracts the numeric suffix from an ID. It is tolerant: any ID
// carrying the prefix and a parseable number yields that number, even if the
// width is wrong. Returns false for anything else.
func (f Format) Suffix(id string) (int, bool) {
	if !strings.HasPrefix(id, f.Prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(id, f.Prefix))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Max returns the largest suffix the format can express (10^pad - 1).
func (f Format) Max() int {
	max := 1
	for i := 0; i < f.Pad; i++ {
		max *= 10
	}
	return max - 1
}
