package page

import (
	"slices"
	"strings"
	"time"
)

// Site is the build-wide view templates receive as .Site.
type Site struct {
	Pages     []Page
	BuildID   string
	Generated time.Time
	Revision  string
	Params    map[string]string
}

// Posts returns the blog posts, newest published first. Undated posts come
// last, ordered by URL.
func (s *Site) Posts() []*BlogPost {
	var posts []*BlogPost
	for _, p := range s.Pages {
		if post, ok := p.(*BlogPost); ok {
			posts = append(posts, post)
		}
	}
	slices.SortStableFunc(posts, func(a, b *BlogPost) int {
		pa, pb := a.Published(), b.Published()
		switch {
		case pa == nil && pb == nil:
			return strings.Compare(a.URL(), b.URL())
		case pa == nil:
			return 1
		case pb == nil:
			return -1
		case !pa.Equal(*pb):
			return pb.Compare(*pa)
		default:
			return strings.Compare(a.URL(), b.URL())
		}
	})
	return posts
}

// Param returns a [site] configuration value, or "".
func (s *Site) Param(key string) string {
	return s.Params[key]
}

// Kind returns the pages of one variant tag.
func (s *Site) Kind(tag string) []Page {
	var out []Page
	for _, p := range s.Pages {
		if p.Kind() == tag {
			out = append(out, p)
		}
	}
	return out
}
