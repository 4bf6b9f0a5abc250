package generator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/inful/mdfp"

	"git.home.luguber.info/inful/pagepress/internal/assets"
	"git.home.luguber.info/inful/pagepress/internal/foundation/errors"
	"git.home.luguber.info/inful/pagepress/internal/git"
	"git.home.luguber.info/inful/pagepress/internal/logfields"
	"git.home.luguber.info/inful/pagepress/internal/marker"
	"git.home.luguber.info/inful/pagepress/internal/metrics"
	"git.home.luguber.info/inful/pagepress/internal/page"
	"git.home.luguber.info/inful/pagepress/internal/parser"
	"git.home.luguber.info/inful/pagepress/internal/render"
	"git.home.luguber.info/inful/pagepress/internal/scanner"
)

func gitRevision(dir string) (string, error) { return git.Head(dir) }

// pass is the state of one build pass. It is dropped when Update returns.
type pass struct {
	report  *BuildReport
	tracker *assets.Tracker
	pages   []page.Page
	outputs map[string]string // output path -> source path
}

// Update runs one build pass. It returns a report for every pass, including
// skipped ones. The error is non-nil only when the pass was aborted; pages
// that failed without stop_on_error leave the pass partial but successful.
func (g *Generator) Update(ctx context.Context) (*BuildReport, error) {
	start := g.now()
	r := newReport(uuid.NewString(), start)
	log := slog.With(logfields.BuildID(r.BuildID))

	var entries []scanner.SourceEntry
	g.stage(r, StageScan, func() metrics.ResultLabel {
		var err error
		entries, err = scanner.Collect(g.cfg.Source)
		if err != nil {
			r.abort("", StageScan, err)
			return metrics.ResultFatal
		}
		r.Scanned = len(entries)
		return metrics.ResultSuccess
	})
	if r.Outcome == OutcomeAborted {
		return g.complete(ctx, r)
	}

	stale := false
	g.stage(r, StageCheck, func() metrics.ResultLabel {
		r.LastBuild = marker.LastBuild(marker.Path(g.cfg.Output))
		stale = marker.IsStale(r.LastBuild, entries)
		g.recorder.IncStalenessCheck(stale)
		return metrics.ResultSuccess
	})
	if !stale {
		log.Debug("Source unchanged since last build", logfields.Count(r.Scanned))
		r.Outcome = OutcomeSkipped
		g.history.skipped(ctx, r)
		return g.complete(ctx, r)
	}

	if rev, err := g.revision(g.cfg.Base); err != nil {
		log.Debug("Could not read source revision", logfields.Error(err))
	} else {
		r.Revision = rev
	}

	log.Info("Generating site",
		slog.Time("as_of", start),
		logfields.Count(r.Scanned),
		slog.String("revision", git.ShortHash(r.Revision)))
	g.history.started(ctx, r)

	p := &pass{
		report:  r,
		tracker: assets.NewTracker(),
		outputs: make(map[string]string),
	}
	if err := g.generateAll(ctx, p, entries); err == nil {
		g.stage(r, StageMarker, func() metrics.ResultLabel {
			if err := marker.Write(marker.Path(g.cfg.Output), start); err != nil {
				log.Error("Failed to write build marker", logfields.Error(err))
				return metrics.ResultFailed
			}
			return metrics.ResultSuccess
		})
	}

	return g.complete(ctx, r)
}

// complete finalizes r and notifies history and observers.
func (g *Generator) complete(ctx context.Context, r *BuildReport) (*BuildReport, error) {
	r.finish(g.now())

	if r.Outcome != OutcomeSkipped {
		g.history.completed(ctx, r)
		if err := r.Persist(g.cfg.Data); err != nil {
			slog.Warn("Failed to persist build report", logfields.BuildID(r.BuildID), logfields.Error(err))
		}
		level := slog.LevelInfo
		if r.Outcome != OutcomeSuccess {
			level = slog.LevelWarn
		}
		slog.Log(ctx, level, "Build finished",
			logfields.BuildID(r.BuildID),
			slog.String("outcome", string(r.Outcome)),
			slog.Int("rendered", r.Rendered),
			slog.Int("failed", r.Failed),
			slog.Int("assets", r.Assets),
			logfields.DurationMS(float64(r.Duration().Microseconds())/1000))
	}

	for _, o := range g.observers {
		o.OnBuildComplete(ctx, r)
	}
	return r, r.err
}

// generateAll builds, renders and writes every page, then copies assets. It
// returns the error that aborted the pass.
func (g *Generator) generateAll(ctx context.Context, p *pass, entries []scanner.SourceEntry) error {
	r := p.report
	g.renderer.Reset(p.tracker)
	pctx := page.Context{Templates: g.renderer}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return g.cancel(p, StageParse, err)
		}
		if err := g.buildPage(ctx, p, pctx, entry); err != nil {
			return err
		}
	}
	r.Pages = len(p.pages)

	site := &page.Site{
		Pages:     p.pages,
		BuildID:   r.BuildID,
		Generated: r.Start,
		Revision:  r.Revision,
		Params:    g.cfg.Site,
	}
	for _, pg := range p.pages {
		if err := ctx.Err(); err != nil {
			return g.cancel(p, StageRender, err)
		}
		if err := g.renderPage(ctx, p, site, pg); err != nil {
			return err
		}
	}

	return g.copyAssets(ctx, p)
}

// buildPage parses entry and constructs its page. Files without a parser
// are skipped, or tracked as assets when copy_unparsed is set.
func (g *Generator) buildPage(ctx context.Context, p *pass, pctx page.Context, entry scanner.SourceEntry) error {
	rel := entry.RelPath()
	prs, ok := g.parsers.For(entry.Extension)
	if !ok {
		if g.cfg.CopyUnparsed && !strings.EqualFold(entry.Extension, render.Extension) {
			p.tracker.Track("/" + rel)
		}
		return nil
	}

	var doc parser.Document
	var failure error
	g.stage(p.report, StageParse, func() metrics.ResultLabel {
		// #nosec G304 -- entry comes from scanning the configured source root
		src, err := os.ReadFile(filepath.Join(g.cfg.Source, filepath.FromSlash(rel)))
		if err != nil {
			failure = errors.WrapError(err, errors.CategoryParse, "could not read source file").WithPath(rel).Build()
			return metrics.ResultFailed
		}
		doc, err = prs.Parse(src, parser.Context{
			Path:   rel,
			Dir:    entry.Dir(),
			Assets: p.tracker,
			IsPage: g.parsers.Has,
		})
		if err != nil {
			failure = err
			return metrics.ResultFailed
		}
		return metrics.ResultSuccess
	})
	if failure != nil {
		return g.pageFailed(ctx, p, rel, StageParse, failure)
	}

	var pg page.Page
	g.stage(p.report, StageConstruct, func() metrics.ResultLabel {
		var err error
		pg, err = g.pages.Construct(doc.Type, pctx, entry, doc.Meta, doc.Body)
		if err != nil {
			failure = err
			return metrics.ResultFailed
		}
		out := path.Join(pg.Path()...)
		if prev, dup := p.outputs[out]; dup {
			failure = errors.ParseError("duplicate output path").
				WithPath(rel).WithContext("output", out).WithContext("conflicts_with", prev).Build()
			return metrics.ResultFailed
		}
		p.outputs[out] = rel
		return metrics.ResultSuccess
	})
	if failure != nil {
		return g.pageFailed(ctx, p, rel, StageConstruct, failure)
	}

	p.pages = append(p.pages, pg)
	return nil
}

func (g *Generator) renderPage(ctx context.Context, p *pass, site *page.Site, pg page.Page) error {
	rel := pg.Source().RelPath()

	var data []byte
	var failure error
	g.stage(p.report, StageRender, func() metrics.ResultLabel {
		var err error
		data, err = pg.Render(site)
		if err != nil {
			failure = err
			return metrics.ResultFailed
		}
		return metrics.ResultSuccess
	})
	if failure != nil {
		return g.pageFailed(ctx, p, rel, StageRender, failure)
	}

	g.stage(p.report, StageWrite, func() metrics.ResultLabel {
		res, err := g.writer.Write(pg.Path(), data)
		if err != nil {
			failure = err
			return metrics.ResultFailed
		}
		p.report.Rendered++
		p.report.Results = append(p.report.Results, PageResult{
			Source:      rel,
			Output:      path.Join(pg.Path()...),
			Kind:        pg.Kind(),
			Bytes:       res.Bytes,
			Compressed:  res.Compressed != "",
			Fingerprint: mdfp.CalculateFingerprintFromParts("", string(data)),
		})
		g.recorder.IncPageRendered(pg.Kind())
		slog.Debug("Generated file", logfields.Path(rel), logfields.Output(res.Path), logfields.PageType(pg.Kind()))
		return metrics.ResultSuccess
	})
	if failure != nil {
		return g.pageFailed(ctx, p, rel, StageWrite, failure)
	}
	return nil
}

// copyAssets copies every tracked resource that is not also a page output.
func (g *Generator) copyAssets(ctx context.Context, p *pass) error {
	var paths []string
	for _, a := range p.tracker.Paths() {
		if _, isPage := p.outputs[strings.TrimPrefix(a, "/")]; isPage {
			continue
		}
		paths = append(paths, a)
	}
	g.recorder.SetTrackedAssets(len(paths))

	var failure error
	g.stage(p.report, StageAssets, func() metrics.ResultLabel {
		n, err := assets.CopyAll(g.cfg.Source, g.cfg.Output, paths)
		p.report.Assets = n
		if err != nil {
			failure = err
			return metrics.ResultFatal
		}
		return metrics.ResultSuccess
	})
	if failure != nil {
		p.report.abort("", StageAssets, failure)
		return failure
	}
	g.history.assetsCopied(ctx, p.report.BuildID, p.report.Assets)
	return nil
}

// pageFailed records a per-page failure. It returns a non-nil error when
// stop_on_error turns the failure into an aborted pass.
func (g *Generator) pageFailed(ctx context.Context, p *pass, rel, stage string, err error) error {
	slog.Error("Page failed",
		logfields.BuildID(p.report.BuildID),
		logfields.Path(rel),
		logfields.Stage(stage),
		logfields.Error(err))

	p.report.fail(rel, stage, err)
	g.history.pageFailed(ctx, p.report.BuildID, p.report.Issues[len(p.report.Issues)-1])

	if !g.cfg.StopOnError {
		return nil
	}
	aborted := errors.WrapError(err, errors.GetCategory(err), fmt.Sprintf("build stopped at %s", rel)).
		Fatal().WithPath(rel).Build()
	p.report.err = aborted
	p.report.Error = aborted.Error()
	p.report.Outcome = OutcomeAborted
	return aborted
}

func (g *Generator) cancel(p *pass, stage string, err error) error {
	aborted := errors.WrapError(err, errors.CategoryInternal, "build canceled").Fatal().Build()
	p.report.abort("", stage, aborted)
	return aborted
}
