// Package scanner enumerates the files of a source tree.
//
// Scan is lazy: entries are produced while the tree is walked so a caller
// that only needs to know whether anything changed can stop early. Symbolic
// links are followed; a link cycle is not detected.
package scanner

import (
	stderrors "errors"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"git.home.luguber.info/inful/pagepress/internal/foundation/errors"
	"git.home.luguber.info/inful/pagepress/internal/logfields"
)

// HiddenPrefix marks directories that are never descended into.
const HiddenPrefix = "."

// SourceEntry describes one regular file below the source root.
type SourceEntry struct {
	Path      []string // path segments relative to the source root
	ModTime   time.Time
	Extension string // final extension including the dot, as found on disk
}

// RelPath returns the slash-separated path relative to the source root.
func (e SourceEntry) RelPath() string { return path.Join(e.Path...) }

// Dir returns the segments of the directory containing the entry.
func (e SourceEntry) Dir() []string {
	if len(e.Path) == 0 {
		return nil
	}
	return slices.Clone(e.Path[:len(e.Path)-1])
}

// Scan walks root depth-first and yields every regular file. Dangling
// symlinks are skipped. Any other failure to read a directory or stat an
// entry is yielded once as a scan error and ends the sequence.
func Scan(root string) iter.Seq2[SourceEntry, error] {
	return func(yield func(SourceEntry, error) bool) {
		walk(root, nil, yield)
	}
}

// Collect drains Scan into a slice.
func Collect(root string) ([]SourceEntry, error) {
	var entries []SourceEntry
	for entry, err := range Scan(root) {
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// walk returns false when the consumer stopped or an error was reported.
func walk(root string, rel []string, yield func(SourceEntry, error) bool) bool {
	dir := filepath.Join(append([]string{root}, rel...)...)
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		yield(SourceEntry{}, errors.WrapError(err, errors.CategoryScan, "could not read directory").
			Fatal().WithPath(path.Join(rel...)).Build())
		return false
	}

	for _, de := range dirEntries {
		name := de.Name()
		full := filepath.Join(dir, name)
		info, err := os.Stat(full)
		if err != nil && de.Type()&fs.ModeSymlink != 0 && stderrors.Is(err, fs.ErrNotExist) {
			slog.Debug("Skipping dangling symlink", logfields.Path(full))
			continue
		}
		if err != nil {
			yield(SourceEntry{}, errors.WrapError(err, errors.CategoryScan, "could not stat file").
				Fatal().WithPath(path.Join(append(slices.Clone(rel), name)...)).Build())
			return false
		}

		segments := append(slices.Clone(rel), name)
		switch {
		case info.IsDir():
			if strings.HasPrefix(name, HiddenPrefix) {
				continue
			}
			if !walk(root, segments, yield) {
				return false
			}
		case info.Mode().IsRegular():
			entry := SourceEntry{
				Path:      segments,
				ModTime:   info.ModTime(),
				Extension: filepath.Ext(name),
			}
			if !yield(entry, nil) {
				return false
			}
		}
	}
	return true
}
