// Package parser splits source files into a page type, metadata and body.
//
// Parsers are looked up by file extension through a Registry. Each build
// context owns its own Registry.
package parser

import (
	"strings"

	"git.home.luguber.info/inful/pagepress/internal/assets"
	"git.home.luguber.info/inful/pagepress/internal/frontmatter"
)

// TypeKey is the metadata key selecting the page variant.
const TypeKey = "type"

// Default page types chosen by the built-in parsers.
const (
	TypeTemplated  = "templated"
	TypeStylesheet = "stylesheet"
	TypeJavascript = "javascript"
)

// Document is the result of parsing one source file.
type Document struct {
	Type string
	Meta frontmatter.FrontMatter // without the type key
	Body []byte
}

// Context carries what a parser needs to know about the file being parsed.
type Context struct {
	Path   string   // slash-separated source path, for error reporting
	Dir    []string // directory segments used to resolve relative references
	Assets assets.Sink
	// IsPage reports whether a lowercased extension is turned into a page.
	// Links to such files are not treated as static resources.
	IsPage func(ext string) bool
}

func (c Context) isPage(ext string) bool {
	if ext == "" || ext == ".html" || ext == ".htm" {
		return true
	}
	return c.IsPage != nil && c.IsPage(ext)
}

// Parser turns file contents into a Document.
type Parser interface {
	Parse(src []byte, pc Context) (Document, error)
}

// newDocument pulls the type out of meta, falling back to defaultType.
func newDocument(meta frontmatter.FrontMatter, body []byte, defaultType string) Document {
	typ, ok := meta.Pop(TypeKey)
	typ = strings.ToLower(strings.TrimSpace(typ))
	if !ok || typ == "" {
		typ = defaultType
	}
	return Document{Type: typ, Meta: meta, Body: body}
}
