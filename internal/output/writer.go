// Package output writes rendered pages into the output tree.
package output

import (
	"bytes"
	stderrors "errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"git.home.luguber.info/inful/pagepress/internal/foundation/errors"
)

// CompressedSuffix is appended to a destination for its compressed sibling.
const CompressedSuffix = ".gz"

// Writer places page bytes below an output root.
type Writer struct {
	root     string
	compress bool
	level    int
}

// Option configures a Writer.
type Option func(*Writer)

// WithoutCompression disables the compressed sibling files.
func WithoutCompression() Option {
	return func(w *Writer) { w.compress = false }
}

// WithCompressionLevel sets the gzip level used for sibling files.
func WithCompressionLevel(level int) Option {
	return func(w *Writer) { w.level = level }
}

// NewWriter returns a Writer rooted at root. Compression is on by default.
func NewWriter(root string, opts ...Option) *Writer {
	w := &Writer{root: root, compress: true, level: gzip.BestCompression}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Result describes the files produced for one page.
type Result struct {
	Path       string // destination file
	Compressed string // compressed sibling, empty when none was written
	Bytes      int
}

// Write stores data at the output root joined with segments. When the
// destination directory is missing it is created and the write retried once.
// Unless the destination already ends in .gz, a gzip copy is written next to
// it.
func (w *Writer) Write(segments []string, data []byte) (Result, error) {
	rel := path.Join(segments...)
	dst := filepath.Join(w.root, filepath.FromSlash(rel))

	if err := writeWithParents(dst, data); err != nil {
		return Result{}, errors.WrapError(err, errors.CategoryWrite, "could not write page").
			WithPath(rel).Build()
	}
	res := Result{Path: dst, Bytes: len(data)}

	if !w.compress || strings.HasSuffix(dst, CompressedSuffix) {
		return res, nil
	}
	gz, err := Compress(data, w.level)
	if err != nil {
		return res, errors.WrapError(err, errors.CategoryWrite, "could not compress page").
			WithPath(rel).Build()
	}
	if err := writeWithParents(dst+CompressedSuffix, gz); err != nil {
		return res, errors.WrapError(err, errors.CategoryWrite, "could not write compressed page").
			WithPath(rel + CompressedSuffix).Build()
	}
	res.Compressed = dst + CompressedSuffix
	return res, nil
}

// Compress gzips data at the given level.
func Compress(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(data); err != nil {
		_ = zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeWithParents(dst string, data []byte) error {
	// #nosec G306 -- generated site content is public.
	err := os.WriteFile(dst, data, 0o644)
	if err == nil || !stderrors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}
	// #nosec G306 -- generated site content is public.
	return os.WriteFile(dst, data, 0o644)
}
