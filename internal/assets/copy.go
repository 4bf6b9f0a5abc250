package assets

import (
	stderrors "errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/pagepress/internal/foundation/errors"
	"git.home.luguber.info/inful/pagepress/internal/logfields"
)

// CopyAll copies every resource from sourceRoot to the same relative
// position under outputRoot and returns how many files were copied. A missing
// destination directory is created; any other failure, including a missing
// source file, stops the copy with an asset error.
func CopyAll(sourceRoot, outputRoot string, paths []string) (int, error) {
	copied := 0
	for _, p := range paths {
		rel := filepath.FromSlash(strings.TrimPrefix(p, "/"))
		src := filepath.Join(sourceRoot, rel)
		dst := filepath.Join(outputRoot, rel)
		if err := copyFile(src, dst); err != nil {
			return copied, errors.WrapError(err, errors.CategoryAsset, "could not copy asset").
				Fatal().WithPath(p).Build()
		}
		slog.Debug("Copied asset", logfields.Asset(p), logfields.Output(dst))
		copied++
	}
	return copied, nil
}

func copyFile(src, dst string) error {
	// #nosec G304 -- src is a resolved reference below the source root.
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return &fs.PathError{Op: "copy", Path: src, Err: stderrors.New("is a directory")}
	}

	out, err := createWithParents(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// createWithParents creates dst, making its directory and retrying once when
// the directory is missing.
func createWithParents(dst string) (*os.File, error) {
	// #nosec G304 -- dst is below the configured output root.
	out, err := os.Create(dst)
	if err == nil || !stderrors.Is(err, fs.ErrNotExist) {
		return out, err
	}
	if mkErr := os.MkdirAll(filepath.Dir(dst), 0o750); mkErr != nil {
		return nil, mkErr
	}
	// #nosec G304 -- dst is below the configured output root.
	return os.Create(dst)
}
