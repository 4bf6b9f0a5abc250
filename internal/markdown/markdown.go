// Package markdown converts page bodies to HTML and reports the resources
// they reference.
package markdown

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// Options controls the Markdown dialect.
type Options struct {
	// HighlightStyle names a chroma style for fenced code blocks. Empty
	// leaves code blocks as plain <pre><code>.
	HighlightStyle string
}

// Converter turns Markdown into HTML. A Converter is safe for sequential
// reuse across pages.
type Converter struct {
	md goldmark.Markdown
}

// New builds a Converter with tables, raw HTML and the clickthrough image
// syntax enabled.
func New(opts Options) *Converter {
	extensions := []goldmark.Extender{extension.Table, Clickthrough}
	rendererOptions := []renderer.Option{html.WithUnsafe()}
	if opts.HighlightStyle != "" {
		rendererOptions = append(rendererOptions,
			renderer.WithNodeRenderers(util.Prioritized(newHighlighter(opts.HighlightStyle), 200)))
	}
	md := goldmark.New(
		goldmark.WithExtensions(extensions...),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(rendererOptions...),
	)
	return &Converter{md: md}
}

// Convert renders body and returns the HTML together with every resource
// reference found while parsing it.
func (c *Converter) Convert(body []byte) ([]byte, []Link, error) {
	ctx := parser.NewContext()
	root := c.md.Parser().Parse(text.NewReader(body), parser.WithContext(ctx))
	links := collectLinks(root, body)

	var buf bytes.Buffer
	if err := c.md.Renderer().Render(&buf, body, root); err != nil {
		return nil, nil, fmt.Errorf("render markdown: %w", err)
	}
	return buf.Bytes(), links, nil
}
