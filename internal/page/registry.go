package page

import (
	stderrors "errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"git.home.luguber.info/inful/pagepress/internal/foundation/errors"
	"git.home.luguber.info/inful/pagepress/internal/frontmatter"
	"git.home.luguber.info/inful/pagepress/internal/scanner"
)

// Type tags of the built-in variants.
const (
	TagFile       = "file"
	TagPlain      = "plain"
	TagPage       = "page"
	TagTemplated  = "templated"
	TagHTML       = "html"
	TagBlog       = "blog"
	TagStylesheet = "stylesheet"
	TagJavascript = "javascript"
)

// Factory creates one variant. Claims lists the front matter keys the variant
// consumes; Construct hands exactly those to New and leaves the rest on the
// page as extra metadata.
type Factory struct {
	Claims []string
	New    func(ctx Context, src Source, claimed map[string]string) (Page, error)
}

// Registry maps type tags to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// NewDefaultRegistry returns a registry with the built-in variants.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for tag, f := range defaultFactories() {
		if err := r.Register(tag, f); err != nil {
			panic(err)
		}
	}
	return r
}

func defaultFactories() map[string]Factory {
	file := func(tag string) Factory {
		return Factory{New: func(_ Context, src Source, _ map[string]string) (Page, error) {
			return NewFile(tag, src), nil
		}}
	}
	return map[string]Factory{
		TagFile:  file(TagFile),
		TagPlain: file(TagPlain),
		TagPage:  file(TagPage),
		TagStylesheet: {New: func(_ Context, src Source, _ map[string]string) (Page, error) {
			return &Stylesheet{File: *NewFile(TagStylesheet, src)}, nil
		}},
		TagJavascript: {New: func(_ Context, src Source, _ map[string]string) (Page, error) {
			return &Script{File: *NewFile(TagJavascript, src)}, nil
		}},
		TagTemplated: {
			Claims: []string{KeyTemplate},
			New: func(ctx Context, src Source, claimed map[string]string) (Page, error) {
				return NewTemplated(ctx, TagTemplated, src, claimed)
			},
		},
		TagHTML: {
			Claims: []string{KeyTemplate},
			New: func(ctx Context, src Source, claimed map[string]string) (Page, error) {
				t, err := NewTemplated(ctx, TagHTML, src, claimed)
				if err != nil {
					return nil, err
				}
				return &HTML{Templated: *t}, nil
			},
		},
		TagBlog: {
			Claims: []string{KeyTemplate, KeyTitle, KeyPublished},
			New: func(ctx Context, src Source, claimed map[string]string) (Page, error) {
				return newBlogPost(ctx, src, claimed)
			},
		},
	}
}

// Register adds a factory. Tags are lowercase and unique, and claims are
// lowercase keys other than the type key.
func (r *Registry) Register(tag string, f Factory) error {
	switch {
	case tag == "":
		return stderrors.New("page type tag must not be empty")
	case tag != strings.ToLower(strings.TrimSpace(tag)):
		return fmt.Errorf("page type tag %q must be lowercase without surrounding space", tag)
	case f.New == nil:
		return fmt.Errorf("page type %q has no constructor", tag)
	}
	for _, claim := range f.Claims {
		if claim == "" || claim != strings.ToLower(claim) {
			return fmt.Errorf("page type %q claims invalid key %q", tag, claim)
		}
		if claim == "type" {
			return fmt.Errorf("page type %q must not claim the type key", tag)
		}
	}
	if _, exists := r.factories[tag]; exists {
		return fmt.Errorf("page type %q already registered", tag)
	}
	r.factories[tag] = f
	return nil
}

// Has reports whether tag is registered.
func (r *Registry) Has(tag string) bool {
	_, ok := r.factories[tag]
	return ok
}

// Tags lists registered tags in sorted order.
func (r *Registry) Tags() []string {
	return slices.Sorted(maps.Keys(r.factories))
}

// Construct builds the page for tag. meta must no longer contain the type
// key; it is split into the factory's claims and the page's extra metadata.
func (r *Registry) Construct(tag string, ctx Context, entry scanner.SourceEntry, meta frontmatter.FrontMatter, body []byte) (Page, error) {
	f, ok := r.factories[tag]
	if !ok {
		return nil, errors.ParseError("unknown page type").
			WithPath(entry.RelPath()).WithContext("type", tag).Build()
	}

	extra := meta.Clone()
	claimed := make(map[string]string, len(f.Claims))
	for _, key := range f.Claims {
		if v, ok := extra.Pop(key); ok {
			claimed[key] = v
		}
	}

	p, err := f.New(ctx, Source{Entry: entry, Body: body, Extra: extra}, claimed)
	if err != nil {
		if _, ok := errors.AsClassified(err); ok {
			return nil, err
		}
		return nil, errors.ParseError("could not construct page").
			WithCause(err).WithPath(entry.RelPath()).WithContext("type", tag).Build()
	}
	return p, nil
}
