// Package marker persists the time of the last successful build and decides
// whether a source tree is stale relative to it.
package marker

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/pagepress/internal/foundation/errors"
	"git.home.luguber.info/inful/pagepress/internal/logfields"
	"git.home.luguber.info/inful/pagepress/internal/scanner"
)

const (
	// FileName is the marker's name inside the output root.
	FileName = "generated.txt"
	// Layout is the textual marker format, DD/MM/YYYY HH:MM:SS in local time.
	Layout = "02/01/2006 15:04:05"
)

// Path returns the marker location for an output root.
func Path(outputRoot string) string {
	return filepath.Join(outputRoot, FileName)
}

// Read parses the marker file.
func Read(path string) (time.Time, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return time.Time{}, errors.WrapError(err, errors.CategoryMarker, "could not read build marker").
			Warning().WithPath(path).Build()
	}
	t, err := time.ParseInLocation(Layout, strings.TrimSpace(string(data)), time.Local)
	if err != nil {
		return time.Time{}, errors.WrapError(err, errors.CategoryMarker, "malformed build marker").
			Warning().WithPath(path).Build()
	}
	return t, nil
}

// LastBuild returns the marker time, or the zero time when the marker is
// missing or unreadable so that every source file counts as changed. When the
// marker file's modification time falls within the recorded second it is
// taken as the exact build time.
func LastBuild(path string) time.Time {
	t, err := Read(path)
	if err != nil {
		slog.Debug("No usable build marker, treating site as never built",
			logfields.Path(path), logfields.Error(err))
		return time.Time{}
	}
	if info, err := os.Stat(path); err == nil && info.ModTime().Truncate(time.Second).Equal(t) {
		return info.ModTime()
	}
	return t
}

// Write records t as the last successful build, creating the output root
// when missing. The text holds whole seconds; the file's modification time
// is set to t itself.
func Write(path string, t time.Time) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return errors.WrapError(err, errors.CategoryMarker, "could not create marker directory").
			WithPath(path).Build()
	}
	line := t.In(time.Local).Format(Layout) + "\n"
	if err := os.WriteFile(path, []byte(line), 0o600); err != nil {
		return errors.WrapError(err, errors.CategoryMarker, "could not write build marker").
			WithPath(path).Build()
	}
	if err := os.Chtimes(path, t, t); err != nil {
		return errors.WrapError(err, errors.CategoryMarker, "could not stamp build marker").
			WithPath(path).Build()
	}
	return nil
}

// ShouldRebuild reports whether any entry changed after the marker.
func ShouldRebuild(path string, entries []scanner.SourceEntry) bool {
	return IsStale(LastBuild(path), entries)
}

// IsStale is ShouldRebuild against an already loaded marker time. A marker
// with sub-second precision is compared exactly. A whole-second marker only
// counts entries from a later second, so a build followed by an unchanged
// check is a no-op.
func IsStale(last time.Time, entries []scanner.SourceEntry) bool {
	precise := last.Nanosecond() != 0
	for _, e := range entries {
		mod := e.ModTime
		if !precise {
			mod = mod.Truncate(time.Second)
		}
		if mod.After(last) {
			return true
		}
	}
	return false
}
