// Package preview serves the output tree over HTTP and regenerates the site
// before answering each request.
package preview

import (
	"context"
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"git.home.luguber.info/inful/pagepress/internal/eventstore"
	"git.home.luguber.info/inful/pagepress/internal/generator"
	"git.home.luguber.info/inful/pagepress/internal/logfields"
	"git.home.luguber.info/inful/pagepress/internal/output"
)

// InternalPrefix is reserved for endpoints of the preview server itself.
const InternalPrefix = "/_pagepress/"

// IndexFile is served for directory requests.
const IndexFile = "index.html"

// Builder runs a build pass.
type Builder interface {
	Update(ctx context.Context) (*generator.BuildReport, error)
}

// History exposes recorded build passes.
type History interface {
	History() []eventstore.BuildSummary
	Build(ctx context.Context, buildID string) (generator.BuildDetail, bool, error)
}

// Handler serves files below root, running a build pass first. Passes are
// serialized, whether triggered by requests, the watcher or the scheduler.
type Handler struct {
	builder Builder
	root    string

	mu sync.Mutex

	metrics  http.Handler
	history  History
	internal http.Handler
}

// Option configures a Handler.
type Option func(*Handler)

// WithMetrics serves h at /_pagepress/metrics.
func WithMetrics(h http.Handler) Option {
	return func(hd *Handler) { hd.metrics = h }
}

// WithHistory serves the build history at /_pagepress/builds and single
// passes at /_pagepress/builds/<id>.
func WithHistory(h History) Option {
	return func(hd *Handler) { hd.history = h }
}

// NewHandler creates a Handler serving root.
func NewHandler(b Builder, root string, opts ...Option) *Handler {
	h := &Handler{builder: b, root: root}
	for _, opt := range opts {
		opt(h)
	}
	h.internal = h.internalRoutes()
	return h
}

// Rebuild runs one build pass, waiting for any pass already in progress.
func (h *Handler) Rebuild(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.builder.Update(ctx)
	return err
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, InternalPrefix) {
		h.internal.ServeHTTP(w, r)
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	if err := h.Rebuild(r.Context()); err != nil {
		slog.Error("Build failed while serving request",
			logfields.Method(r.Method),
			logfields.URL(r.URL.Path),
			logfields.Error(err))
		http.Error(w, "build failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.serveFile(w, r, TranslatePath(h.root, r.URL.EscapedPath()))
}

// internalRoutes serves the endpoints below InternalPrefix. They never
// trigger a build pass.
func (h *Handler) internalRoutes() http.Handler {
	r := chi.NewRouter()
	if h.metrics != nil {
		r.Handle(InternalPrefix+"metrics", h.metrics)
	}
	if h.history != nil {
		r.Get(InternalPrefix+"builds", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, h.history.History())
		})
		r.Get(InternalPrefix+"builds/{id}", h.serveBuild)
	}
	return r
}

func (h *Handler) serveBuild(w http.ResponseWriter, r *http.Request) {
	buildID := chi.URLParam(r, "id")
	detail, ok, err := h.history.Build(r.Context(), buildID)
	if err != nil {
		slog.Error("Failed to load build", logfields.BuildID(buildID), logfields.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, detail)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode build history", logfields.Error(err))
	}
}

// serveFile writes the file at name, or the index file when name is a
// directory. A gzip sibling written by the output writer is preferred when
// the client accepts it.
func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request, name string) {
	info, err := os.Stat(name)
	if err == nil && info.IsDir() {
		name = filepath.Join(name, IndexFile)
		info, err = os.Stat(name)
	}
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	servePath := name
	if acceptsGzip(r) && !strings.HasSuffix(name, output.CompressedSuffix) {
		if gz, gzErr := os.Stat(name + output.CompressedSuffix); gzErr == nil && !gz.IsDir() {
			servePath = name + output.CompressedSuffix
			info = gz
			w.Header().Set("Content-Encoding", "gzip")
			if ctype := mime.TypeByExtension(filepath.Ext(name)); ctype != "" {
				w.Header().Set("Content-Type", ctype)
			}
		}
	}
	w.Header().Add("Vary", "Accept-Encoding")

	// #nosec G304 -- servePath is confined to the output root by TranslatePath
	f, err := os.Open(servePath)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer func() { _ = f.Close() }()

	http.ServeContent(w, r, filepath.Base(name), info.ModTime(), f)
}

func acceptsGzip(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		enc, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.EqualFold(enc, "gzip") {
			return true
		}
	}
	return false
}

// TranslatePath maps a request path onto a file below root. Query and
// fragment are dropped, escapes decoded and the path normalized; any
// segment that could leave root is discarded.
func TranslatePath(root, requestPath string) string {
	if i := strings.IndexAny(requestPath, "?#"); i >= 0 {
		requestPath = requestPath[:i]
	}
	if unescaped, err := url.PathUnescape(requestPath); err == nil {
		requestPath = unescaped
	}

	result := root
	for _, word := range strings.Split(path.Clean("/"+requestPath), "/") {
		word = strings.TrimPrefix(word, filepath.VolumeName(word))
		_, word = filepath.Split(word)
		if word == "" || word == "." || word == ".." {
			continue
		}
		result = filepath.Join(result, word)
	}
	return result
}
