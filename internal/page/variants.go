package page

import (
	"path"
	"strings"
	"time"

	"git.home.luguber.info/inful/pagepress/internal/foundation/errors"
	"git.home.luguber.info/inful/pagepress/internal/render"
)

// Front matter keys claimed by the built-in variants.
const (
	KeyTemplate  = "template"
	KeyTitle     = "title"
	KeyPublished = "published"
)

// PublishedLayout is the day/month/year format of the published key.
const PublishedLayout = "2/1/2006"

// File renders its content unchanged and keeps its source extension.
type File struct {
	Base
}

// NewFile builds a File.
func NewFile(kind string, src Source) *File {
	return &File{Base: newBase(kind, src)}
}

// Render implements Page.
func (p *File) Render(*Site) ([]byte, error) { return p.content, nil }

// Stylesheet is a File produced from CSS sources.
type Stylesheet struct {
	File
}

// Script is a File produced from JavaScript sources.
type Script struct {
	File
}

// Templated renders its content through a template and rewrites its output
// extension to match what the template produces.
type Templated struct {
	Base
	TemplateName string
	template     *render.Template
	templates    Templates
}

// NewTemplated resolves the template for src. Without an explicit template
// the name is the source path with its extension replaced by .tmpl.
func NewTemplated(ctx Context, kind string, src Source, claimed map[string]string) (*Templated, error) {
	p := &Templated{Base: newBase(kind, src), templates: ctx.Templates}

	name := strings.TrimSpace(claimed[KeyTemplate])
	if name == "" {
		segments := src.Entry.Path
		if len(segments) == 0 {
			return nil, errors.ParseError("page has no path").Build()
		}
		dir := path.Join(segments[:len(segments)-1]...)
		file := segments[len(segments)-1]
		name = path.Join(dir, strings.TrimSuffix(file, path.Ext(file))+render.Extension)
	}
	p.TemplateName = strings.TrimPrefix(name, "/")
	p.setExtension(render.OutputExtension(p.TemplateName))

	if ctx.Templates == nil {
		return nil, errors.InternalError("no template renderer configured").
			WithPath(src.Entry.RelPath()).Build()
	}
	tpl, err := ctx.Templates.Resolve(p.TemplateName)
	if err != nil {
		return nil, err
	}
	p.template = tpl
	return p, nil
}

// Scope is the data a page template executes against.
type Scope struct {
	Site *Site
	Page Page
}

func (p *Templated) execute(site *Site, self Page) ([]byte, error) {
	return p.templates.Execute(p.template, Scope{Site: site, Page: self}, p.source.Dir())
}

// Render implements Page.
func (p *Templated) Render(site *Site) ([]byte, error) { return p.execute(site, p) }

// HTML is a Templated page under its own tag.
type HTML struct {
	Templated
}

// Render implements Page.
func (p *HTML) Render(site *Site) ([]byte, error) { return p.execute(site, p) }

// BlogPost is an HTML page with a required title and an optional
// publication date.
type BlogPost struct {
	HTML
	published *time.Time
}

// Published returns the publication date, or nil when none was given.
func (p *BlogPost) Published() *time.Time { return p.published }

// Render implements Page.
func (p *BlogPost) Render(site *Site) ([]byte, error) { return p.execute(site, p) }

// ParsePublished parses a day/month/year date strictly.
func ParsePublished(value string) (time.Time, error) {
	return time.Parse(PublishedLayout, strings.TrimSpace(value))
}

func newBlogPost(ctx Context, src Source, claimed map[string]string) (*BlogPost, error) {
	title := strings.TrimSpace(claimed[KeyTitle])
	if title == "" {
		return nil, errors.ParseError("blog post requires a title").
			WithPath(src.Entry.RelPath()).Build()
	}

	var published *time.Time
	if raw, ok := claimed[KeyPublished]; ok {
		t, err := ParsePublished(raw)
		if err != nil {
			return nil, errors.ParseError("published must be day/month/year").
				WithCause(err).WithPath(src.Entry.RelPath()).WithContext("published", raw).Build()
		}
		published = &t
	}

	t, err := NewTemplated(ctx, TagBlog, src, claimed)
	if err != nil {
		return nil, err
	}
	t.title = title
	return &BlogPost{HTML: HTML{Templated: *t}, published: published}, nil
}
