package parser

import (
	"log/slog"

	"git.home.luguber.info/inful/pagepress/internal/assets"
	"git.home.luguber.info/inful/pagepress/internal/foundation/errors"
	"git.home.luguber.info/inful/pagepress/internal/frontmatter"
	"git.home.luguber.info/inful/pagepress/internal/logfields"
	"git.home.luguber.info/inful/pagepress/internal/markdown"
)

// MarkdownParser reads front matter, converts the body to HTML and reports
// the static resources the body references.
type MarkdownParser struct {
	DefaultType string
	Converter   *markdown.Converter
}

// NewMarkdownParser returns a parser producing templated pages.
func NewMarkdownParser(conv *markdown.Converter) *MarkdownParser {
	return &MarkdownParser{DefaultType: TypeTemplated, Converter: conv}
}

// Parse implements Parser.
func (p *MarkdownParser) Parse(src []byte, pc Context) (Document, error) {
	meta, body, err := frontmatter.Parse(src)
	if err != nil {
		return Document{}, errors.ParseError("malformed front matter").
			WithCause(err).WithPath(pc.Path).Build()
	}

	html, links, err := p.Converter.Convert(body)
	if err != nil {
		return Document{}, errors.ParseError("markdown conversion failed").
			WithCause(err).WithPath(pc.Path).Build()
	}

	for _, link := range links {
		resolved, ok := assets.Resolve(pc.Dir, link.Destination)
		if !ok {
			continue
		}
		if !link.IsAsset() && pc.isPage(assets.Ext(resolved)) {
			continue
		}
		if pc.Assets != nil && pc.Assets.Track(resolved) {
			slog.Debug("Tracked asset reference",
				logfields.Path(pc.Path), logfields.Asset(resolved))
		}
	}

	return newDocument(meta, html, p.DefaultType), nil
}
