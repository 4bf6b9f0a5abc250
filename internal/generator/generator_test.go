package generator

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pagepress/internal/config"
	"git.home.luguber.info/inful/pagepress/internal/eventstore"
	"git.home.luguber.info/inful/pagepress/internal/foundation/errors"
	"git.home.luguber.info/inful/pagepress/internal/marker"
	"git.home.luguber.info/inful/pagepress/internal/metrics"
	"git.home.luguber.info/inful/pagepress/internal/notify"
	"git.home.luguber.info/inful/pagepress/internal/page"
	"git.home.luguber.info/inful/pagepress/internal/parser"
)

func newSite(t *testing.T, files map[string]string, mutate func(*config.Config), opts ...Option) (*Generator, *config.Config) {
	t.Helper()
	cfg := config.Default()
	cfg.Base = t.TempDir()
	cfg.History = false
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Resolve())

	for rel, content := range files {
		full := filepath.Join(cfg.Source, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o750))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o600))
	}
	require.NoError(t, os.MkdirAll(cfg.Source, 0o750))

	opts = append([]Option{WithRevision(func(string) (string, error) { return "0123456789abcdef", nil })}, opts...)
	g, err := New(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g, cfg
}

func readOutput(t *testing.T, cfg *config.Config, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(cfg.Output, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func touch(t *testing.T, cfg *config.Config, rel string) {
	t.Helper()
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(cfg.Source, filepath.FromSlash(rel)), future, future))
}

func TestUpdate_GeneratesSite(t *testing.T) {
	g, cfg := newSite(t, map[string]string{
		"index.md":     "title: Home\n\n# Hello\n\n![logo](img/logo.png)\n",
		"index.tmpl":   "<title>{{.Page.Title}}</title>{{.Page.Content}}",
		"img/logo.png": "PNG",
		"style.css":    "body{}",
		"notes.txt":    "not a page",
	}, nil)

	report, err := g.Update(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, report.Outcome)
	require.Equal(t, 5, report.Scanned)
	require.Equal(t, 2, report.Pages)
	require.Equal(t, 2, report.Rendered)
	require.Equal(t, 1, report.Assets)
	require.Equal(t, "0123456789abcdef", report.Revision)
	require.Len(t, report.Results, 2)
	for _, res := range report.Results {
		require.NotEmpty(t, res.Fingerprint)
		require.True(t, res.Compressed)
	}

	index := readOutput(t, cfg, "index.html")
	require.Contains(t, index, "<title>Home</title>")
	require.Contains(t, index, "Hello</h1>")
	require.Contains(t, readOutput(t, cfg, "style.css"), "body{}")
	require.Equal(t, "PNG", readOutput(t, cfg, "img/logo.png"))
	require.FileExists(t, filepath.Join(cfg.Output, "index.html.gz"))
	require.NoFileExists(t, filepath.Join(cfg.Output, "notes.txt"))
	require.NoFileExists(t, filepath.Join(cfg.Output, "index.tmpl"))

	last, err := marker.Read(marker.Path(cfg.Output))
	require.NoError(t, err)
	require.Equal(t, report.Start.Truncate(time.Second).Unix(), last.Unix())

	persisted := loadReport(t, cfg.Data)
	require.Equal(t, report.BuildID, persisted.BuildID)
	require.Equal(t, OutcomeSuccess, persisted.Outcome)
}

func TestUpdate_SkipsUntilSourceChanges(t *testing.T) {
	g, cfg := newSite(t, map[string]string{
		"a.md":   "one",
		"a.tmpl": "{{.Page.Content}}",
	}, nil)

	first, err := g.Update(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, first.Outcome)

	second, err := g.Update(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeSkipped, second.Outcome)
	require.Zero(t, second.Rendered)

	require.NoError(t, os.WriteFile(filepath.Join(cfg.Source, "a.md"), []byte("two"), 0o600))
	touch(t, cfg, "a.md")

	third, err := g.Update(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, third.Outcome)
	require.Contains(t, readOutput(t, cfg, "a.html"), "two")
}

func TestUpdate_PageFailureLeavesPassPartial(t *testing.T) {
	g, cfg := newSite(t, map[string]string{
		"bad.md":    "no template for me",
		"good.md":   "fine",
		"good.tmpl": "{{.Page.Content}}",
	}, nil)

	report, err := g.Update(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomePartial, report.Outcome)
	require.Equal(t, 1, report.Failed)
	require.Equal(t, 1, report.Rendered)
	require.Len(t, report.Issues, 1)
	require.Equal(t, "bad.md", report.Issues[0].Path)
	require.Equal(t, StageConstruct, report.Issues[0].Stage)
	require.Equal(t, string(errors.CategoryRender), report.Issues[0].Category)

	require.FileExists(t, filepath.Join(cfg.Output, "good.html"))
	require.FileExists(t, marker.Path(cfg.Output))
}

func TestUpdate_StopOnErrorAborts(t *testing.T) {
	g, cfg := newSite(t, map[string]string{
		"bad.md":    "no template for me",
		"good.md":   "fine",
		"good.tmpl": "{{.Page.Content}}",
	}, func(c *config.Config) { c.StopOnError = true })

	report, err := g.Update(context.Background())
	require.Error(t, err)
	require.Equal(t, OutcomeAborted, report.Outcome)
	require.Equal(t, err, report.Err())
	classified, ok := errors.AsClassified(err)
	require.True(t, ok)
	require.True(t, classified.IsFatal())
	require.Equal(t, "bad.md", classified.Path())

	require.NoFileExists(t, filepath.Join(cfg.Output, "good.html"))
	require.NoFileExists(t, marker.Path(cfg.Output))
}

func TestUpdate_DuplicateOutputPath(t *testing.T) {
	g, _ := newSite(t, map[string]string{
		"page.markdown": "first",
		"page.md":       "second",
		"page.tmpl":     "{{.Page.Content}}",
	}, nil)

	report, err := g.Update(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomePartial, report.Outcome)
	require.Equal(t, 1, report.Pages)
	require.Len(t, report.Issues, 1)
	require.Equal(t, "page.md", report.Issues[0].Path)
	require.Contains(t, report.Issues[0].Message, "duplicate output path")
}

func TestUpdate_CopyUnparsed(t *testing.T) {
	g, cfg := newSite(t, map[string]string{
		"index.md":      "template: layout.tmpl\n\nhi",
		"layout.tmpl":   "{{template \"_nav.tmpl\" .}}{{.Page.Content}}",
		"_nav.tmpl":     "<nav></nav>",
		"files/doc.txt": "plain",
	}, func(c *config.Config) { c.CopyUnparsed = true })

	report, err := g.Update(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, report.Outcome)
	require.Equal(t, 1, report.Assets)
	require.Equal(t, "plain", readOutput(t, cfg, "files/doc.txt"))
	require.Contains(t, readOutput(t, cfg, "index.html"), "<nav></nav>")
	require.NoFileExists(t, filepath.Join(cfg.Output, "layout.tmpl"))
	require.NoFileExists(t, filepath.Join(cfg.Output, "_nav.tmpl"))
}

func TestUpdate_MissingAssetAborts(t *testing.T) {
	g, cfg := newSite(t, map[string]string{
		"index.md":   "![gone](missing.png)",
		"index.tmpl": "{{.Page.Content}}",
	}, nil)

	report, err := g.Update(context.Background())
	require.Error(t, err)
	require.True(t, errors.HasCategory(err, errors.CategoryAsset))
	require.Equal(t, OutcomeAborted, report.Outcome)
	require.NoFileExists(t, marker.Path(cfg.Output))
}

func TestUpdate_WithoutCompression(t *testing.T) {
	g, cfg := newSite(t, map[string]string{
		"a.md":   "x",
		"a.tmpl": "{{.Page.Content}}",
	}, func(c *config.Config) { c.Compress = false })

	_, err := g.Update(context.Background())
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(cfg.Output, "a.html"))
	require.NoFileExists(t, filepath.Join(cfg.Output, "a.html.gz"))
}

func TestUpdate_SiteListsPosts(t *testing.T) {
	g, cfg := newSite(t, map[string]string{
		"index.md":       "template: index.tmpl\n",
		"index.tmpl":     "{{range .Site.Posts}}{{.Title}}@{{formatDate \"2006-01-02\" .Published}};{{end}}{{.Site.Param \"name\"}}",
		"blog/first.md":  "type: blog\ntitle: First\npublished: 2/1/2020\ntemplate: post.tmpl\n\nA",
		"blog/second.md": "type: blog\ntitle: Second\npublished: 3/1/2020\ntemplate: post.tmpl\n\nB",
		"post.tmpl":      "<h1>{{.Page.Title}}</h1>",
	}, func(c *config.Config) { c.Site = map[string]string{"name": "Example"} })

	_, err := g.Update(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Second@2020-01-03;First@2020-01-02;Example", readOutput(t, cfg, "index.html"))
	require.Equal(t, "<h1>First</h1>", readOutput(t, cfg, "blog/first.html"))
}

func TestUpdate_CanceledContext(t *testing.T) {
	g, cfg := newSite(t, map[string]string{
		"a.md":   "x",
		"a.tmpl": "{{.Page.Content}}",
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := g.Update(ctx)
	require.Error(t, err)
	require.Equal(t, OutcomeAborted, report.Outcome)
	require.NoFileExists(t, marker.Path(cfg.Output))
}

func TestUpdate_ScanFailureAborts(t *testing.T) {
	g, cfg := newSite(t, nil, nil)
	require.NoError(t, os.RemoveAll(cfg.Source))

	report, err := g.Update(context.Background())
	require.Error(t, err)
	require.True(t, errors.HasCategory(err, errors.CategoryScan))
	require.Equal(t, OutcomeAborted, report.Outcome)
}

type capturePublisher struct {
	mu   sync.Mutex
	sent []notify.BuildNotification
}

func (c *capturePublisher) Publish(_ context.Context, n notify.BuildNotification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, n)
	return nil
}

func (c *capturePublisher) Close() error { return nil }

func TestUpdate_PublishesNotifications(t *testing.T) {
	pub := &capturePublisher{}
	g, _ := newSite(t, map[string]string{
		"bad.md":  "no template",
		"ok.md":   "x",
		"ok.tmpl": "{{.Page.Content}}",
	}, nil, WithPublisher(pub))

	report, err := g.Update(context.Background())
	require.NoError(t, err)
	_, err = g.Update(context.Background())
	require.NoError(t, err)

	require.Len(t, pub.sent, 1, "skipped passes are not announced")
	require.Equal(t, report.BuildID, pub.sent[0].BuildID)
	require.Equal(t, "partial", pub.sent[0].Outcome)
	require.Equal(t, []string{"bad.md"}, pub.sent[0].Failures)
}

func TestUpdate_RecordsHistory(t *testing.T) {
	store, err := eventstore.NewSQLiteStore(eventstore.MemoryPath)
	require.NoError(t, err)

	g, cfg := newSite(t, map[string]string{
		"a.md":   "x",
		"a.tmpl": "{{.Page.Content}}",
	}, nil, WithHistoryStore(store))
	require.True(t, g.HistoryEnabled())

	first, err := g.Update(context.Background())
	require.NoError(t, err)
	for range 3 {
		_, err = g.Update(context.Background())
		require.NoError(t, err)
	}

	builds := g.History()
	require.Len(t, builds, 2, "consecutive skips are collapsed")
	require.Equal(t, eventstore.StatusSkipped, builds[0].Status)
	require.Equal(t, string(OutcomeSuccess), builds[1].Status)
	require.Equal(t, first.BuildID, builds[1].BuildID)
	require.Equal(t, 1, builds[1].Rendered)
	require.Equal(t, "0123456789abcdef", builds[1].Revision)

	detail, ok, err := g.Build(context.Background(), first.BuildID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, builds[1], detail.BuildSummary)
	var types []string
	for _, e := range detail.Events {
		types = append(types, e.Type)
	}
	require.Equal(t, []string{eventstore.TypeBuildStarted, eventstore.TypeAssetsCopied, eventstore.TypeBuildCompleted}, types)

	_, ok, err = g.Build(context.Background(), "unknown")
	require.NoError(t, err)
	require.False(t, ok)

	touch(t, cfg, "a.md")
	_, err = g.Update(context.Background())
	require.NoError(t, err)
	require.Len(t, g.History(), 3)
}

type countingRecorder struct {
	metrics.NoopRecorder
	outcomes map[metrics.BuildOutcomeLabel]int
	rendered map[string]int
	stale    []bool
}

func (c *countingRecorder) IncBuildOutcome(o metrics.BuildOutcomeLabel) { c.outcomes[o]++ }
func (c *countingRecorder) IncPageRendered(kind string)                 { c.rendered[kind]++ }
func (c *countingRecorder) IncStalenessCheck(stale bool)                { c.stale = append(c.stale, stale) }

func TestUpdate_RecordsMetrics(t *testing.T) {
	rec := &countingRecorder{outcomes: map[metrics.BuildOutcomeLabel]int{}, rendered: map[string]int{}}
	g, _ := newSite(t, map[string]string{
		"a.md":    "x",
		"a.tmpl":  "{{.Page.Content}}",
		"site.js": "var x;",
	}, nil, WithRecorder(rec))

	_, err := g.Update(context.Background())
	require.NoError(t, err)
	_, err = g.Update(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, rec.outcomes[metrics.BuildOutcomeSuccess])
	require.Equal(t, 1, rec.outcomes[metrics.BuildOutcomeSkipped])
	require.Equal(t, 1, rec.rendered["templated"])
	require.Equal(t, 1, rec.rendered["javascript"])
	require.Equal(t, []bool{true, false}, rec.stale)
}

func TestUpdate_RebuildsEditWithinMarkerSecond(t *testing.T) {
	started := time.Date(2024, 5, 6, 12, 0, 0, 200_000_000, time.Local)
	g, cfg := newSite(t, map[string]string{
		"index.md":   "# Hello\n",
		"index.tmpl": "{{.Page.Content}}",
	}, nil, WithClock(func() time.Time { return started }))
	for _, rel := range []string{"index.md", "index.tmpl"} {
		before := started.Add(-100 * time.Millisecond)
		require.NoError(t, os.Chtimes(filepath.Join(cfg.Source, rel), before, before))
	}

	first, err := g.Update(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, first.Outcome)

	again, err := g.Update(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeSkipped, again.Outcome)

	index := filepath.Join(cfg.Source, "index.md")
	require.NoError(t, os.WriteFile(index, []byte("# Changed\n"), 0o600))
	edited := started.Add(500 * time.Millisecond)
	require.NoError(t, os.Chtimes(index, edited, edited))

	third, err := g.Update(context.Background())
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, third.Outcome)
	require.Contains(t, readOutput(t, cfg, "index.html"), "Changed</h1>")
}

func TestUpdate_UsesRegisteredExtensions(t *testing.T) {
	g, cfg := newSite(t, map[string]string{
		"notes.txt": "type: note\n\nremember the milk\n",
	}, nil)
	require.NoError(t, g.Parsers().Register(".txt", parser.HeaderParser{DefaultType: page.TagFile}))
	require.NoError(t, g.Pages().Register("note", page.Factory{
		New: func(_ page.Context, src page.Source, _ map[string]string) (page.Page, error) {
			return page.NewFile("note", src), nil
		},
	}))

	report, err := g.Update(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Rendered)
	require.Equal(t, "remember the milk\n", readOutput(t, cfg, "notes.txt"))
}
