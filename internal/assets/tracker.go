// Package assets tracks the static resources a build pass references and
// copies them into the output tree.
package assets

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"git.home.luguber.info/inful/pagepress/internal/util/sets"
)

// Sink receives root-relative resource paths as they are discovered.
type Sink interface {
	Track(p string) bool
}

// Tracker is the per-pass resource set. It keeps first-seen order and drops
// duplicates. The zero value is ready to use.
type Tracker struct {
	paths sets.Ordered[string]
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker { return &Tracker{} }

// Track records p and reports whether it was new.
func (t *Tracker) Track(p string) bool {
	return t.paths.Add(p)
}

// Paths returns the tracked paths in discovery order.
func (t *Tracker) Paths() []string { return t.paths.Values() }

// Len returns the number of tracked paths.
func (t *Tracker) Len() int { return t.paths.Len() }

var schemePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*:`)

// Resolve turns a reference found in a page located in dir into a
// root-relative resource path with a leading slash. References that carry a
// URL scheme, are protocol-relative, point only at a fragment, or are empty
// resolve to false.
func Resolve(dir []string, target string) (string, bool) {
	target = strings.TrimSpace(target)
	if i := strings.IndexAny(target, "?#"); i >= 0 {
		target = target[:i]
	}
	if target == "" || strings.HasPrefix(target, "//") || schemePattern.MatchString(target) {
		return "", false
	}
	if unescaped, err := url.PathUnescape(target); err == nil {
		target = unescaped
	}

	var resolved string
	if strings.HasPrefix(target, "/") {
		resolved = path.Clean(target)
	} else {
		resolved = path.Join("/", path.Join(dir...), target)
	}
	if resolved == "/" {
		return "", false
	}
	return resolved, true
}

// Ext returns the lowercased extension of a resolved resource path.
func Ext(p string) string {
	return strings.ToLower(path.Ext(p))
}
