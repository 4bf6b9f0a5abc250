// Package page holds the page variants a source file can become.
//
// A page owns its output path, its content and the metadata no variant
// claimed. Variants are created through a Registry that maps a type tag to a
// Factory.
package page

import (
	htmltemplate "html/template"
	"path"
	"slices"
	"strings"
	"time"

	"git.home.luguber.info/inful/pagepress/internal/frontmatter"
	"git.home.luguber.info/inful/pagepress/internal/render"
	"git.home.luguber.info/inful/pagepress/internal/scanner"
)

// Page is the contract shared by every variant.
type Page interface {
	Kind() string
	Source() scanner.SourceEntry
	// Path returns the output path segments relative to the output root.
	Path() []string
	URL() string
	Title() string
	Content() htmltemplate.HTML
	Raw() []byte
	Meta(key string) string
	Extra() frontmatter.FrontMatter
	ModTime() time.Time
	Render(site *Site) ([]byte, error)
}

// Source is what a factory builds a page from.
type Source struct {
	Entry scanner.SourceEntry
	Body  []byte
	// Extra is the front matter left after the factory's claims were removed.
	Extra frontmatter.FrontMatter
}

// Templates resolves and executes templates for templated variants.
type Templates interface {
	Resolve(name string) (*render.Template, error)
	Execute(t *render.Template, data any, dir []string) ([]byte, error)
}

// Context is the build context a factory may use.
type Context struct {
	Templates Templates
}

// Base carries the fields common to all variants.
type Base struct {
	kind    string
	source  scanner.SourceEntry
	path    []string
	content []byte
	extra   frontmatter.FrontMatter
	title   string
}

func newBase(kind string, src Source) Base {
	extra := src.Extra
	if extra == nil {
		extra = frontmatter.FrontMatter{}
	}
	return Base{
		kind:    kind,
		source:  src.Entry,
		path:    slices.Clone(src.Entry.Path),
		content: src.Body,
		extra:   extra,
	}
}

func (b *Base) Kind() string                   { return b.kind }
func (b *Base) Source() scanner.SourceEntry    { return b.source }
func (b *Base) Path() []string                 { return slices.Clone(b.path) }
func (b *Base) URL() string                    { return "/" + path.Join(b.path...) }
func (b *Base) Raw() []byte                    { return b.content }
func (b *Base) Extra() frontmatter.FrontMatter { return b.extra }
func (b *Base) ModTime() time.Time             { return b.source.ModTime }

// Content returns the body for inclusion in templates. Parsers already
// converted markup to HTML, so it is not escaped again.
func (b *Base) Content() htmltemplate.HTML {
	return htmltemplate.HTML(b.content) // #nosec G203 -- body produced by the site's own parsers
}

// Meta returns an unclaimed front matter value, or "".
func (b *Base) Meta(key string) string {
	v, _ := b.extra.Get(key)
	return v
}

// Title returns the claimed title, a title key, or one derived from the
// source file name.
func (b *Base) Title() string {
	if b.title != "" {
		return b.title
	}
	if v, ok := b.extra.Get("title"); ok && v != "" {
		return v
	}
	if len(b.source.Path) == 0 {
		return ""
	}
	name := b.source.Path[len(b.source.Path)-1]
	return render.TitleCase(strings.TrimSuffix(name, path.Ext(name)))
}

// setExtension replaces the final extension of the output file name.
func (b *Base) setExtension(ext string) {
	if len(b.path) == 0 {
		return
	}
	last := b.path[len(b.path)-1]
	b.path[len(b.path)-1] = strings.TrimSuffix(last, path.Ext(last)) + ext
}
