package parser

import (
	"git.home.luguber.info/inful/pagepress/internal/foundation/errors"
	"git.home.luguber.info/inful/pagepress/internal/frontmatter"
)

// HeaderParser reads front matter and keeps the body verbatim.
type HeaderParser struct {
	DefaultType string
}

// Parse implements Parser.
func (p HeaderParser) Parse(src []byte, pc Context) (Document, error) {
	meta, body, err := frontmatter.Parse(src)
	if err != nil {
		return Document{}, errors.ParseError("malformed front matter").
			WithCause(err).WithPath(pc.Path).Build()
	}
	return newDocument(meta, body, p.DefaultType), nil
}
