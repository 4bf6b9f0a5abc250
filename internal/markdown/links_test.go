package markdown

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func destinations(links []Link, kind LinkKind) []string {
	var out []string
	for _, l := range links {
		if l.Kind == kind {
			out = append(out, l.Destination)
		}
	}
	return out
}

func extractLinks(t *testing.T, body []byte) []Link {
	t.Helper()
	_, links, err := New(Options{}).Convert(body)
	require.NoError(t, err)
	return links
}

func TestConvertLinks_InlineLink(t *testing.T) {
	links := extractLinks(t, []byte("See [API](api.html) for details."))
	require.Len(t, links, 1)
	require.Equal(t, LinkKindInline, links[0].Kind)
	require.Equal(t, "api.html", links[0].Destination)
	require.False(t, links[0].IsAsset())
}

func TestConvertLinks_ImageLink(t *testing.T) {
	links := extractLinks(t, []byte("![Diagram](diagram.png)"))
	require.Len(t, links, 1)
	require.Equal(t, LinkKindImage, links[0].Kind)
	require.Equal(t, "diagram.png", links[0].Destination)
	require.True(t, links[0].IsAsset())
}

func TestConvertLinks_AutoLink(t *testing.T) {
	links := extractLinks(t, []byte("<https://example.com/path>"))
	require.Equal(t, []string{"https://example.com/path"}, destinations(links, LinkKindAuto))
}

func TestConvertLinks_ReferenceStyleResolvesDestination(t *testing.T) {
	body := []byte("![Logo][logo] and [docs][d]\n\n[logo]: /img/logo.svg\n[d]: files/manual.pdf\n")
	links := extractLinks(t, body)
	require.Equal(t, []string{"/img/logo.svg"}, destinations(links, LinkKindImage))
	require.Equal(t, []string{"files/manual.pdf"}, destinations(links, LinkKindInline))
}

func TestConvertLinks_RawHTMLSources(t *testing.T) {
	body := []byte("Inline <img src=\"a.png\" alt=\"a\"> here.\n\n<video controls>\n  <source src=\"clip.webm\" type=\"video/webm\">\n</video>\n\n<a href=\"x.zip\">not embedded</a>\n")
	links := extractLinks(t, body)
	require.ElementsMatch(t, []string{"a.png", "clip.webm"}, destinations(links, LinkKindEmbed))
}

func TestConvertLinks_CodeIsIgnored(t *testing.T) {
	body := []byte("```\n![x](inside.png)\n```\n\n`![y](span.png)`\n")
	require.Empty(t, extractLinks(t, body))
}

func TestConvertLinks_Clickthrough(t *testing.T) {
	body := []byte("&[t][f]\n\n[t]: thumbs/cat.png\n[f]: full/cat.png\n")
	links := extractLinks(t, body)
	require.Equal(t, []string{"thumbs/cat.png", "full/cat.png"}, destinations(links, LinkKindClickthrough))
}
