package markdown

import (
	gmast "github.com/yuin/goldmark/ast"
)

type LinkKind string

const (
	LinkKindInline       LinkKind = "inline"
	LinkKindImage        LinkKind = "image"
	LinkKindAuto         LinkKind = "auto"
	LinkKindClickthrough LinkKind = "clickthrough"
	LinkKindEmbed        LinkKind = "embed"
)

// Link is one reference found in a document.
type Link struct {
	Kind        LinkKind
	Destination string
}

// IsAsset reports whether the reference always names a static resource.
// Inline links and autolinks may point at other pages.
func (l Link) IsAsset() bool {
	switch l.Kind {
	case LinkKindImage, LinkKindClickthrough, LinkKindEmbed:
		return true
	default:
		return false
	}
}

// collectLinks walks the parsed document. Reference-style links and images
// are already resolved to their destinations by the parser.
func collectLinks(root gmast.Node, source []byte) []Link {
	links := make([]Link, 0)
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *gmast.AutoLink:
			links = append(links, Link{Kind: LinkKindAuto, Destination: string(node.URL(source))})
		case *gmast.Image:
			links = append(links, Link{Kind: LinkKindImage, Destination: string(node.Destination)})
		case *gmast.Link:
			links = append(links, Link{Kind: LinkKindInline, Destination: string(node.Destination)})
		case *ClickthroughImage:
			links = append(links,
				Link{Kind: LinkKindClickthrough, Destination: string(node.Thumb)},
				Link{Kind: LinkKindClickthrough, Destination: string(node.Full)},
			)
		case *gmast.RawHTML:
			var raw []byte
			for i := 0; i < node.Segments.Len(); i++ {
				seg := node.Segments.At(i)
				raw = append(raw, seg.Value(source)...)
			}
			links = appendEmbeds(links, raw)
		case *gmast.HTMLBlock:
			var raw []byte
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				raw = append(raw, seg.Value(source)...)
			}
			if node.HasClosure() {
				raw = append(raw, node.ClosureLine.Value(source)...)
			}
			links = appendEmbeds(links, raw)
		}
		return gmast.WalkContinue, nil
	})
	return links
}
