package generator

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/pagepress/internal/config"
	"git.home.luguber.info/inful/pagepress/internal/eventstore"
	"git.home.luguber.info/inful/pagepress/internal/foundation/errors"
	"git.home.luguber.info/inful/pagepress/internal/logfields"
	"git.home.luguber.info/inful/pagepress/internal/markdown"
	"git.home.luguber.info/inful/pagepress/internal/metrics"
	"git.home.luguber.info/inful/pagepress/internal/notify"
	"git.home.luguber.info/inful/pagepress/internal/output"
	"git.home.luguber.info/inful/pagepress/internal/page"
	"git.home.luguber.info/inful/pagepress/internal/parser"
	"git.home.luguber.info/inful/pagepress/internal/render"
)

// Generator is the build context for one site.
type Generator struct {
	cfg       *config.Config
	parsers   *parser.Registry
	pages     *page.Registry
	renderer  *render.Renderer
	writer    *output.Writer
	recorder  metrics.Recorder
	publisher notify.Publisher
	history   *history
	store     eventstore.Store
	observers []BuildObserver
	now       func() time.Time
	revision  func(dir string) (string, error)
}

// Option configures a Generator.
type Option func(*Generator)

// WithRecorder sets the metrics recorder.
func WithRecorder(rec metrics.Recorder) Option {
	return func(g *Generator) {
		if rec != nil {
			g.recorder = rec
		}
	}
}

// WithPublisher replaces the publisher configured by nats_url.
func WithPublisher(p notify.Publisher) Option {
	return func(g *Generator) { g.publisher = p }
}

// WithHistoryStore records build history in store instead of the database in
// the data directory. The Generator takes ownership of store.
func WithHistoryStore(store eventstore.Store) Option {
	return func(g *Generator) { g.store = store }
}

// WithObserver adds an observer notified after every stage and pass.
func WithObserver(o BuildObserver) Option {
	return func(g *Generator) { g.observers = append(g.observers, o) }
}

// WithClock overrides the time source used for build timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithRevision overrides how the source revision is looked up.
func WithRevision(fn func(dir string) (string, error)) Option {
	return func(g *Generator) { g.revision = fn }
}

// New creates a Generator for a resolved configuration.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Generator, error) {
	if cfg == nil {
		return nil, errors.InternalError("generator requires a configuration").Build()
	}

	conv := markdown.New(markdown.Options{HighlightStyle: cfg.HighlightStyle})

	var writerOpts []output.Option
	if !cfg.Compress {
		writerOpts = append(writerOpts, output.WithoutCompression())
	}

	g := &Generator{
		cfg:      cfg,
		parsers:  parser.NewDefaultRegistry(conv),
		pages:    page.NewDefaultRegistry(),
		renderer: render.New(cfg.Layouts, render.WithDebug(cfg.TemplateDebug)),
		writer:   output.NewWriter(cfg.Output, writerOpts...),
		recorder: metrics.NoopRecorder{},
		now:      time.Now,
		revision: gitRevision,
	}
	for _, opt := range opts {
		opt(g)
	}

	if err := g.openHistory(ctx); err != nil {
		return nil, err
	}

	if g.publisher == nil {
		g.publisher = g.openPublisher()
	}

	g.observers = append([]BuildObserver{recorderObserver{rec: g.recorder}, notifyObserver{pub: g.publisher}}, g.observers...)
	return g, nil
}

func (g *Generator) openHistory(ctx context.Context) error {
	var err error
	switch {
	case g.store != nil:
		g.history, err = newHistory(ctx, g.store)
	case g.cfg.History:
		g.history, err = openHistory(ctx, g.cfg.Data)
	default:
		return nil
	}
	if err != nil {
		return errors.WrapError(err, errors.CategoryStore, "failed to open build history").
			WithPath(g.cfg.Data).Build()
	}
	return nil
}

// openPublisher connects to NATS when configured. Notifications are a side
// channel, so a connection failure only disables them.
func (g *Generator) openPublisher() notify.Publisher {
	if g.cfg.NATSURL == "" {
		return notify.NoopPublisher{}
	}
	pub, err := notify.NewNATSPublisher(g.cfg.NATSURL, g.cfg.NATSSubject)
	if err != nil {
		slog.Warn("Build notifications disabled", logfields.URL(g.cfg.NATSURL), logfields.Error(err))
		return notify.NoopPublisher{}
	}
	return pub
}

// Config returns the configuration the generator was built with.
func (g *Generator) Config() *config.Config { return g.cfg }

// Parsers exposes the parser registry so callers can register extensions.
func (g *Generator) Parsers() *parser.Registry { return g.parsers }

// Pages exposes the page variant registry.
func (g *Generator) Pages() *page.Registry { return g.pages }

// History returns the recorded passes, newest first. It is empty when history
// is disabled.
func (g *Generator) History() []eventstore.BuildSummary { return g.history.Builds() }

// Build returns one recorded pass with its events. ok is false when history
// is disabled or the pass is unknown.
func (g *Generator) Build(ctx context.Context, buildID string) (BuildDetail, bool, error) {
	detail, ok, err := g.history.Build(ctx, buildID)
	if err != nil {
		return BuildDetail{}, false, errors.WrapError(err, errors.CategoryStore, "failed to load build events").
			WithContext("build_id", buildID).
			Build()
	}
	return detail, ok, nil
}

// HistoryEnabled reports whether passes are recorded.
func (g *Generator) HistoryEnabled() bool { return g.history != nil }

// Close releases the history database and the notification connection.
func (g *Generator) Close() error {
	var first error
	if err := g.history.close(); err != nil {
		first = err
	}
	if err := g.publisher.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

// stage times fn and reports it to the observers.
func (g *Generator) stage(r *BuildReport, name string, fn func() metrics.ResultLabel) {
	start := time.Now()
	result := fn()
	d := time.Since(start)
	r.StageDurations[name] += d
	for _, o := range g.observers {
		o.OnStageComplete(name, d, result)
	}
}
