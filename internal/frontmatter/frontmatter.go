// Package frontmatter splits page metadata from the body of a source file.
//
// Two header forms are understood. The native form is a run of `key: value`
// lines at the top of the file, ended by the first line that is not one. A
// document whose first line is `---` instead carries a YAML block closed by a
// second `---` line.
package frontmatter

import (
	"bytes"
	"errors"
	"maps"
	"regexp"
	"slices"
	"strings"
)

// FrontMatter maps lowercase keys to trimmed string values.
type FrontMatter map[string]string

// Get looks a key up case-insensitively.
func (fm FrontMatter) Get(key string) (string, bool) {
	v, ok := fm[strings.ToLower(key)]
	return v, ok
}

// Set stores a value under the lowercased key.
func (fm FrontMatter) Set(key, value string) {
	fm[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
}

// Pop removes a key and returns its value.
func (fm FrontMatter) Pop(key string) (string, bool) {
	k := strings.ToLower(key)
	v, ok := fm[k]
	delete(fm, k)
	return v, ok
}

// Clone returns an independent copy; a nil FrontMatter clones to an empty one.
func (fm FrontMatter) Clone() FrontMatter {
	out := make(FrontMatter, len(fm))
	maps.Copy(out, fm)
	return out
}

// Keys returns the keys in sorted order.
func (fm FrontMatter) Keys() []string {
	return slices.Sorted(maps.Keys(fm))
}

// ErrMissingClosingDelimiter indicates the document started with a YAML
// frontmatter delimiter but did not contain a closing delimiter.
var ErrMissingClosingDelimiter = errors.New("yaml frontmatter start delimiter found but closing delimiter is missing")

var headerLine = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_-]*):(?:[ \t]+(.*))?$`)

// Parse reads the header of content in whichever form it uses.
func Parse(content []byte) (FrontMatter, []byte, error) {
	fm, body, had, err := Split(content)
	if err != nil {
		return nil, nil, err
	}
	if had {
		meta, err := ParseYAML(fm)
		if err != nil {
			return nil, nil, err
		}
		return meta, body, nil
	}
	meta, body := ParseHeader(content)
	return meta, body, nil
}

// ParseHeader consumes leading `key: value` lines. A blank line after at
// least one key ends the header and is dropped; any other line that does not
// match ends the header and stays as the first line of the body. Content
// starting with a blank line has no header.
func ParseHeader(content []byte) (FrontMatter, []byte) {
	meta := FrontMatter{}
	rest := content
	for len(rest) > 0 {
		line, next, _ := bytes.Cut(rest, []byte("\n"))
		text := strings.TrimRight(string(line), "\r")
		if strings.TrimSpace(text) == "" {
			if len(meta) == 0 {
				return meta, content
			}
			return meta, next
		}
		m := headerLine.FindStringSubmatch(text)
		if m == nil {
			return meta, rest
		}
		meta.Set(m[1], m[2])
		rest = next
	}
	return meta, rest
}

// Split separates YAML frontmatter (`---` delimited) from the body.
//
// If the document does not start with a YAML frontmatter delimiter, had is
// false and body is the full input.
func Split(content []byte) (frontmatter []byte, body []byte, had bool, err error) {
	nl := detectNewline(content)
	open := []byte("---" + nl)
	if !bytes.HasPrefix(content, open) {
		return nil, content, false, nil
	}

	frontmatterStart := len(open)
	closeLine := []byte("---" + nl)
	if bytes.HasPrefix(content[frontmatterStart:], closeLine) {
		return []byte{}, content[frontmatterStart+len(closeLine):], true, nil
	}

	rest := content[frontmatterStart:]
	idx := bytes.Index(rest, []byte(nl+"---"+nl))
	if idx < 0 {
		// A closing delimiter on the final line without a newline.
		if bytes.HasSuffix(rest, []byte(nl+"---")) {
			return rest[:len(rest)-len("---")], []byte{}, true, nil
		}
		return nil, nil, false, ErrMissingClosingDelimiter
	}

	frontmatterEnd := frontmatterStart + idx + len(nl)
	bodyStart := frontmatterStart + idx + len(nl+"---"+nl)
	return content[frontmatterStart:frontmatterEnd], content[bodyStart:], true, nil
}

func detectNewline(content []byte) string {
	if i := bytes.IndexByte(content, '\n'); i > 0 && content[i-1] == '\r' {
		return "\r\n"
	}
	return "\n"
}
