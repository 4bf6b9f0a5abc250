package parser

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"git.home.luguber.info/inful/pagepress/internal/markdown"
)

// Registry maps lowercased file extensions to parsers.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// NewDefaultRegistry returns a registry with the built-in parsers:
// Markdown for .md and .markdown, header-only parsers for .css and .js.
func NewDefaultRegistry(conv *markdown.Converter) *Registry {
	r := NewRegistry()
	md := NewMarkdownParser(conv)
	for ext, p := range map[string]Parser{
		".md":       md,
		".markdown": md,
		".css":      HeaderParser{DefaultType: TypeStylesheet},
		".js":       HeaderParser{DefaultType: TypeJavascript},
	} {
		if err := r.Register(ext, p); err != nil {
			panic(err)
		}
	}
	return r
}

// Register binds ext to p. The extension must start with a dot and may be
// registered only once.
func (r *Registry) Register(ext string, p Parser) error {
	key := strings.ToLower(ext)
	switch {
	case len(key) < 2 || key[0] != '.':
		return fmt.Errorf("parser extension %q must start with a dot", ext)
	case strings.ContainsAny(key[1:], "./\\"):
		return fmt.Errorf("parser extension %q must be a single extension", ext)
	case p == nil:
		return fmt.Errorf("parser for %q is nil", ext)
	}
	if _, exists := r.parsers[key]; exists {
		return fmt.Errorf("parser for %q already registered", key)
	}
	r.parsers[key] = p
	return nil
}

// For returns the parser for ext. Lookup ignores case.
func (r *Registry) For(ext string) (Parser, bool) {
	p, ok := r.parsers[strings.ToLower(ext)]
	return p, ok
}

// Has reports whether ext has a parser.
func (r *Registry) Has(ext string) bool {
	_, ok := r.For(ext)
	return ok
}

// Extensions lists the registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	return slices.Sorted(maps.Keys(r.parsers))
}
