package render

import (
	htmltemplate "html/template"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"git.home.luguber.info/inful/pagepress/internal/assets"
)

// DateLayout is the default layout of formatDate, matching front matter dates.
const DateLayout = "02/01/2006"

func (r *Renderer) funcs() htmltemplate.FuncMap {
	return htmltemplate.FuncMap{
		"asset":      r.asset,
		"titleCase":  TitleCase,
		"formatDate": formatDate,
		"safeHTML":   func(s string) htmltemplate.HTML { return htmltemplate.HTML(s) }, // #nosec G203 -- explicit opt-in by template authors
		"lower":      strings.ToLower,
		"upper":      strings.ToUpper,
		"join":       func(sep string, elems []string) string { return strings.Join(elems, sep) },
	}
}

// asset tracks a resource referenced from a template and returns its
// root-relative URL. References with a scheme are returned unchanged.
func (r *Renderer) asset(ref string) string {
	resolved, ok := assets.Resolve(r.dir, ref)
	if !ok {
		return ref
	}
	if r.tracker != nil {
		r.tracker.Track(resolved)
	}
	return resolved
}

// TitleCase turns a slug such as my-first_post into "My First Post".
func TitleCase(s string) string {
	s = strings.NewReplacer("-", " ", "_", " ").Replace(s)
	return cases.Title(language.English).String(strings.Join(strings.Fields(s), " "))
}

// formatDate accepts time.Time or *time.Time; a nil or zero time formats as
// the empty string. An empty layout uses DateLayout.
func formatDate(layout string, v any) string {
	var t time.Time
	switch tv := v.(type) {
	case time.Time:
		t = tv
	case *time.Time:
		if tv == nil {
			return ""
		}
		t = *tv
	default:
		return ""
	}
	if t.IsZero() {
		return ""
	}
	if layout == "" {
		layout = DateLayout
	}
	return t.Format(layout)
}
