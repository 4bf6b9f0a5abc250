// Package render resolves page templates and executes them.
//
// Templates live below a layouts root and are addressed by their
// slash-separated path relative to it. Every file named _*.tmpl under the root
// is a partial and is parsed into each resolved template's set. Templates
// producing HTML use html/template; any other output uses text/template.
package render

import (
	"bytes"
	stderrors "errors"
	"fmt"
	htmltemplate "html/template"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	texttemplate "text/template"

	"git.home.luguber.info/inful/pagepress/internal/assets"
	"git.home.luguber.info/inful/pagepress/internal/foundation/errors"
)

// Extension marks a file as a template producing HTML.
const Extension = ".tmpl"

// PartialPrefix marks a template file as a partial.
const PartialPrefix = "_"

// ErrTemplateNotFound is wrapped when a template name has no file.
var ErrTemplateNotFound = stderrors.New("template not found")

// IsHTML reports whether a template name produces HTML output.
func IsHTML(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case Extension, ".html", ".htm":
		return true
	default:
		return false
	}
}

// OutputExtension is the extension of what a template produces: .html for
// .tmpl templates and templates without extension, otherwise the template's
// own extension.
func OutputExtension(name string) string {
	ext := path.Ext(name)
	if ext == "" || strings.EqualFold(ext, Extension) {
		return ".html"
	}
	return ext
}

// Template is a parsed template set ready for execution.
type Template struct {
	Name    string
	html    *htmltemplate.Template
	text    *texttemplate.Template
	sources map[string][]byte
}

// IsHTML reports whether the template is escaped as HTML.
func (t *Template) IsHTML() bool { return t.html != nil }

// Renderer loads templates from the layouts root.
type Renderer struct {
	root  string
	debug bool

	cache    map[string]*Template
	partials map[string][]byte
	tracker  assets.Sink
	dir      []string
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithDebug makes render errors include the template lines around the
// failure.
func WithDebug(debug bool) Option {
	return func(r *Renderer) { r.debug = debug }
}

// New returns a Renderer reading templates below root.
func New(root string, opts ...Option) *Renderer {
	r := &Renderer{root: root}
	for _, opt := range opts {
		opt(r)
	}
	r.Reset(nil)
	return r
}

// Reset drops compiled templates and starts reporting asset references to
// tracker. It is called at the start of every build pass.
func (r *Renderer) Reset(tracker assets.Sink) {
	r.cache = make(map[string]*Template)
	r.partials = nil
	r.tracker = tracker
	r.dir = nil
}

// Resolve returns the template for name. Within one pass the same name always
// yields the same compiled template.
func (r *Renderer) Resolve(name string) (*Template, error) {
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	if t, ok := r.cache[name]; ok {
		return t, nil
	}

	src, err := r.read(name)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			err = fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
		}
		return nil, errors.RenderError("could not load template").
			WithCause(err).WithContext("template", name).Build()
	}
	partials, err := r.loadPartials()
	if err != nil {
		return nil, errors.RenderError("could not load partial templates").
			WithCause(err).WithContext("template", name).Build()
	}

	t, err := r.compile(name, src, partials)
	if err != nil {
		return nil, errors.RenderError("could not parse template").
			WithCause(r.explain(t, err)).WithContext("template", name).Build()
	}
	r.cache[name] = t
	return t, nil
}

// Execute runs t against data. Relative paths passed to the asset function
// are resolved against dir.
func (r *Renderer) Execute(t *Template, data any, dir []string) ([]byte, error) {
	r.dir = dir
	defer func() { r.dir = nil }()

	var buf bytes.Buffer
	var err error
	if t.html != nil {
		err = t.html.Execute(&buf, data)
	} else {
		err = t.text.Execute(&buf, data)
	}
	if err != nil {
		return nil, errors.RenderError("template execution failed").
			WithCause(r.explain(t, err)).WithContext("template", t.Name).Build()
	}
	return buf.Bytes(), nil
}

func (r *Renderer) read(name string) ([]byte, error) {
	// #nosec G304 -- name is cleaned and confined to the layouts root.
	return os.ReadFile(filepath.Join(r.root, filepath.FromSlash(name)))
}

// loadPartials walks the layouts root once per pass.
func (r *Renderer) loadPartials() (map[string][]byte, error) {
	if r.partials != nil {
		return r.partials, nil
	}
	partials := make(map[string][]byte)
	err := filepath.WalkDir(r.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == r.root && stderrors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() {
			if p != r.root && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if !strings.HasPrefix(d.Name(), PartialPrefix) || !strings.EqualFold(filepath.Ext(d.Name()), Extension) {
			return nil
		}
		rel, err := filepath.Rel(r.root, p)
		if err != nil {
			return err
		}
		// #nosec G304 -- p comes from walking the layouts root.
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		partials[filepath.ToSlash(rel)] = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.partials = partials
	return partials, nil
}

// compile returns a partially filled Template even on error so that explain
// can find the failing source.
func (r *Renderer) compile(name string, src []byte, partials map[string][]byte) (*Template, error) {
	t := &Template{Name: name, sources: map[string][]byte{name: src}}
	for pname, psrc := range partials {
		t.sources[pname] = psrc
	}

	if IsHTML(name) {
		root := htmltemplate.New(name).Funcs(r.funcs())
		if _, err := root.Parse(string(src)); err != nil {
			return t, err
		}
		for pname, psrc := range partials {
			if pname == name {
				continue
			}
			if _, err := root.New(pname).Parse(string(psrc)); err != nil {
				return t, err
			}
		}
		t.html = root
		return t, nil
	}

	root := texttemplate.New(name).Funcs(texttemplate.FuncMap(r.funcs()))
	if _, err := root.Parse(string(src)); err != nil {
		return t, err
	}
	for pname, psrc := range partials {
		if pname == name {
			continue
		}
		if _, err := root.New(pname).Parse(string(psrc)); err != nil {
			return t, err
		}
	}
	t.text = root
	return t, nil
}
