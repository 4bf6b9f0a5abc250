package markdown

import (
	"bytes"

	"golang.org/x/net/html"
)

// embedTags are the elements whose src attribute names a resource that has to
// be published next to the page.
var embedTags = map[string]bool{
	"img":    true,
	"video":  true,
	"audio":  true,
	"source": true,
}

func appendEmbeds(links []Link, raw []byte) []Link {
	z := html.NewTokenizer(bytes.NewReader(raw))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return links
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if !embedTags[tok.Data] {
				continue
			}
			if src := getAttr(tok, "src"); src != "" {
				links = append(links, Link{Kind: LinkKindEmbed, Destination: src})
			}
		}
	}
}

func getAttr(tok html.Token, key string) string {
	for _, attr := range tok.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
