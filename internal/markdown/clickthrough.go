package markdown

import (
	"bytes"
	"regexp"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// Clickthrough adds two constructs for image galleries.
//
// Inline, &[thumb][full] or &[thumb][full][group] renders the thumbnail
// reference as an image linking to the full-size reference. Both labels must
// be link reference definitions; otherwise the text is left alone.
//
// A block opened by a line &&&classes wraps the following lines, up to the
// next blank line, in <div class="img classes">.
var Clickthrough goldmark.Extender = &clickthrough{}

// KindClickthroughImage is the node kind of ClickthroughImage.
var KindClickthroughImage = gmast.NewNodeKind("ClickthroughImage")

// ClickthroughImage is a thumbnail that links to a full-size image.
type ClickthroughImage struct {
	gmast.BaseInline
	Thumb      []byte
	ThumbTitle []byte
	Full       []byte
	FullTitle  []byte
	Group      []byte
}

// Kind implements ast.Node.
func (n *ClickthroughImage) Kind() gmast.NodeKind { return KindClickthroughImage }

// Dump implements ast.Node.
func (n *ClickthroughImage) Dump(source []byte, level int) {
	gmast.DumpHelper(n, source, level, map[string]string{
		"Thumb": string(n.Thumb),
		"Full":  string(n.Full),
		"Group": string(n.Group),
	}, nil)
}

// KindImageBlock is the node kind of ImageBlock.
var KindImageBlock = gmast.NewNodeKind("ImageBlock")

// ImageBlock groups images under a styled container.
type ImageBlock struct {
	gmast.BaseBlock
	Class string
}

// Kind implements ast.Node.
func (n *ImageBlock) Kind() gmast.NodeKind { return KindImageBlock }

// Dump implements ast.Node.
func (n *ImageBlock) Dump(source []byte, level int) {
	gmast.DumpHelper(n, source, level, map[string]string{"Class": n.Class}, nil)
}

type clickthrough struct{}

func (e *clickthrough) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(
		parser.WithBlockParsers(util.Prioritized(&imageBlockParser{}, 100)),
		parser.WithInlineParsers(util.Prioritized(&clickthroughParser{}, 100)),
	)
	m.Renderer().AddOptions(
		renderer.WithNodeRenderers(util.Prioritized(&clickthroughRenderer{}, 500)),
	)
}

var clickthroughPattern = regexp.MustCompile(`^&\[([^\]]+)\]\[([^\]]+)\](?:\[([^\]]+)\])?`)

type clickthroughParser struct{}

func (p *clickthroughParser) Trigger() []byte { return []byte{'&'} }

func (p *clickthroughParser) Parse(_ gmast.Node, block text.Reader, pc parser.Context) gmast.Node {
	line, _ := block.PeekLine()
	m := clickthroughPattern.FindSubmatch(line)
	if m == nil {
		return nil
	}
	thumb, ok := pc.Reference(util.ToLinkReference(m[1]))
	if !ok {
		return nil
	}
	full, ok := pc.Reference(util.ToLinkReference(m[2]))
	if !ok {
		return nil
	}
	block.Advance(len(m[0]))
	return &ClickthroughImage{
		Thumb:      thumb.Destination(),
		ThumbTitle: thumb.Title(),
		Full:       full.Destination(),
		FullTitle:  full.Title(),
		Group:      m[3],
	}
}

var imageBlockOpener = []byte("&&&")

type imageBlockParser struct{}

func (b *imageBlockParser) Trigger() []byte { return []byte{'&'} }

func (b *imageBlockParser) Open(_ gmast.Node, reader text.Reader, pc parser.Context) (gmast.Node, parser.State) {
	line, _ := reader.PeekLine()
	pos := pc.BlockOffset()
	if pos < 0 || pos >= len(line) || !bytes.HasPrefix(line[pos:], imageBlockOpener) {
		return nil, parser.NoChildren
	}
	class := string(util.TrimLeftSpace(util.TrimRightSpace(line[pos+len(imageBlockOpener):])))
	reader.Advance(len(bytes.TrimRight(line, "\r\n")))
	return &ImageBlock{Class: class}, parser.HasChildren
}

func (b *imageBlockParser) Continue(_ gmast.Node, reader text.Reader, _ parser.Context) parser.State {
	line, _ := reader.PeekLine()
	if util.IsBlank(line) {
		return parser.Close
	}
	return parser.Continue | parser.HasChildren
}

func (b *imageBlockParser) Close(gmast.Node, text.Reader, parser.Context) {}

func (b *imageBlockParser) CanInterruptParagraph() bool { return true }

func (b *imageBlockParser) CanAcceptIndentedLine() bool { return false }

type clickthroughRenderer struct{}

func (r *clickthroughRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindClickthroughImage, r.renderClickthrough)
	reg.Register(KindImageBlock, r.renderImageBlock)
}

func (r *clickthroughRenderer) renderClickthrough(w util.BufWriter, _ []byte, node gmast.Node, entering bool) (gmast.WalkStatus, error) {
	if !entering {
		return gmast.WalkContinue, nil
	}
	n := node.(*ClickthroughImage)
	_, _ = w.WriteString(`<a href="`)
	_, _ = w.Write(util.EscapeHTML(util.URLEscape(n.Full, true)))
	_ = w.WriteByte('"')
	if len(n.FullTitle) > 0 {
		_, _ = w.WriteString(` title="`)
		_, _ = w.Write(util.EscapeHTML(n.FullTitle))
		_ = w.WriteByte('"')
	}
	if len(n.Group) > 0 {
		_, _ = w.WriteString(` data-fancybox-group="`)
		_, _ = w.Write(util.EscapeHTML(n.Group))
		_ = w.WriteByte('"')
	}
	_, _ = w.WriteString(`><img src="`)
	_, _ = w.Write(util.EscapeHTML(util.URLEscape(n.Thumb, true)))
	_, _ = w.WriteString(`" alt="`)
	_, _ = w.Write(util.EscapeHTML(n.ThumbTitle))
	_, _ = w.WriteString(`"></a>`)
	return gmast.WalkSkipChildren, nil
}

func (r *clickthroughRenderer) renderImageBlock(w util.BufWriter, _ []byte, node gmast.Node, entering bool) (gmast.WalkStatus, error) {
	n := node.(*ImageBlock)
	if entering {
		_, _ = w.WriteString(`<div class="img`)
		if n.Class != "" {
			_ = w.WriteByte(' ')
			_, _ = w.Write(util.EscapeHTML([]byte(n.Class)))
		}
		_, _ = w.WriteString("\">\n")
		return gmast.WalkContinue, nil
	}
	_, _ = w.WriteString("</div>\n")
	return gmast.WalkContinue, nil
}
