package render

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// excerptRadius is the number of lines shown on each side of a failing line.
const excerptRadius = 2

var templateErrorLocation = regexp.MustCompile(`template: ([^:]+):(\d+)`)

// DebugError carries the template lines around a failure.
type DebugError struct {
	Err      error
	Template string
	Line     int
	Excerpt  string
}

func (e *DebugError) Error() string {
	return fmt.Sprintf("%v\n%s", e.Err, e.Excerpt)
}

func (e *DebugError) Unwrap() error { return e.Err }

// explain wraps err with a source excerpt when debugging is on and the error
// names a known template line.
func (r *Renderer) explain(t *Template, err error) error {
	if !r.debug || t == nil {
		return err
	}
	m := templateErrorLocation.FindStringSubmatch(err.Error())
	if m == nil {
		return err
	}
	src, ok := t.sources[m[1]]
	if !ok {
		return err
	}
	line, convErr := strconv.Atoi(m[2])
	if convErr != nil {
		return err
	}
	return &DebugError{Err: err, Template: m[1], Line: line, Excerpt: excerpt(src, line)}
}

func excerpt(src []byte, line int) string {
	lines := strings.Split(string(src), "\n")
	from := max(line-excerptRadius, 1)
	to := min(line+excerptRadius, len(lines))

	var b strings.Builder
	for n := from; n <= to; n++ {
		mark := "  "
		if n == line {
			mark = "> "
		}
		fmt.Fprintf(&b, "%s%4d | %s\n", mark, n, lines[n-1])
	}
	return b.String()
}
