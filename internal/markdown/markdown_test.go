package markdown

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func convert(t *testing.T, opts Options, body string) string {
	t.Helper()
	out, _, err := New(opts).Convert([]byte(body))
	require.NoError(t, err)
	return string(out)
}

func TestConvert_BasicMarkdown(t *testing.T) {
	html := convert(t, Options{}, "# Hello\n\nSome *text*.\n")
	require.Contains(t, html, "<h1 id=\"hello\">Hello</h1>")
	require.Contains(t, html, "<p>Some <em>text</em>.</p>")
}

func TestConvert_TablesAndRawHTML(t *testing.T) {
	html := convert(t, Options{}, "| a | b |\n|---|---|\n| 1 | 2 |\n\n<div class=\"note\">raw</div>\n")
	require.Contains(t, html, "<table>")
	require.Contains(t, html, "<div class=\"note\">raw</div>")
}

func TestConvert_ClickthroughWithGroup(t *testing.T) {
	body := "&[t][f][gallery]\n\n[t]: /img/thumb.png \"Thumb\"\n[f]: /img/full.png \"Full\"\n"
	html, links, err := New(Options{}).Convert([]byte(body))
	require.NoError(t, err)
	require.Contains(t, string(html),
		`<a href="/img/full.png" title="Full" data-fancybox-group="gallery"><img src="/img/thumb.png" alt="Thumb"></a>`)
	require.Equal(t, []string{"/img/thumb.png", "/img/full.png"}, destinations(links, LinkKindClickthrough))
}

func TestConvert_ClickthroughWithoutGroupOrTitles(t *testing.T) {
	body := "&[t][f]\n\n[t]: t.png\n[f]: f.png\n"
	html := convert(t, Options{}, body)
	require.Contains(t, html, `<a href="f.png"><img src="t.png" alt=""></a>`)
}

func TestConvert_ClickthroughUnknownLabelLeavesText(t *testing.T) {
	html := convert(t, Options{}, "&[nope][nada]\n\n[f]: f.png\n")
	require.NotContains(t, html, "<img")
	require.Contains(t, html, "[nope][nada]")
}

func TestConvert_ImageBlock(t *testing.T) {
	body := "&&&left wide\n&[t][f]\n![plain](p.png)\n\nAfter the block.\n\n[t]: t.png\n[f]: f.png\n"
	html := convert(t, Options{}, body)

	open := strings.Index(html, `<div class="img left wide">`)
	closing := strings.Index(html, "</div>")
	after := strings.Index(html, "After the block.")
	require.GreaterOrEqual(t, open, 0)
	require.Greater(t, closing, open)
	require.Greater(t, after, closing)

	inside := html[open:closing]
	require.Contains(t, inside, `<img src="t.png"`)
	require.Contains(t, inside, `<img src="p.png" alt="plain">`)
}

func TestConvert_ImageBlockWithoutClass(t *testing.T) {
	html := convert(t, Options{}, "&&&\n![a](a.png)\n")
	require.Contains(t, html, "<div class=\"img\">")
}

func TestConvert_Highlighting(t *testing.T) {
	body := "```go\npackage main\n```\n"

	plain := convert(t, Options{}, body)
	require.Contains(t, plain, `<pre><code class="language-go">package main`)

	highlighted := convert(t, Options{HighlightStyle: "monokai"}, body)
	require.Contains(t, highlighted, "<pre")
	require.Contains(t, highlighted, "style=")
	require.Contains(t, highlighted, "package")
	require.NotContains(t, highlighted, `class="language-go"`)
}
