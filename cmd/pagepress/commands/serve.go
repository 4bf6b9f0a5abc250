package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/pagepress/internal/generator"
	"git.home.luguber.info/inful/pagepress/internal/metrics"
	"git.home.luguber.info/inful/pagepress/internal/preview"
)

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Port            int           `help:"Port to listen on (default 6554)"`
	Watch           bool          `help:"Rebuild when files under the source or layouts directory change"`
	RebuildInterval time.Duration `name:"rebuild-interval" help:"Also rebuild at this interval (e.g. 30s); 0 disables"`
	Metrics         bool          `help:"Serve Prometheus metrics at /_pagepress/metrics"`
}

func (s *ServeCmd) Run(_ *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var opts []generator.Option
	var handlerOpts []preview.Option
	if s.Metrics {
		reg := prom.NewRegistry()
		opts = append(opts, generator.WithRecorder(metrics.NewPrometheusRecorder(reg)))
		handlerOpts = append(handlerOpts, preview.WithMetrics(metrics.HTTPHandler(reg)))
	}

	gen, err := newGenerator(ctx, root, s.Port, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := gen.Close(); cerr != nil {
			slog.Warn("Failed to close generator", "error", cerr)
		}
	}()
	if gen.HistoryEnabled() {
		handlerOpts = append(handlerOpts, preview.WithHistory(gen))
	}

	cfg := gen.Config()
	h := preview.NewHandler(gen, cfg.Output, handlerOpts...)

	if s.RebuildInterval > 0 {
		sched, err := preview.NewScheduler(ctx, h, s.RebuildInterval)
		if err != nil {
			return err
		}
		sched.Start()
		defer func() {
			if serr := sched.Stop(); serr != nil {
				slog.Warn("Failed to stop scheduler", "error", serr)
			}
		}()
	}

	g, gctx := errgroup.WithContext(ctx)
	if s.Watch {
		dirs := []string{cfg.Source}
		if cfg.Layouts != cfg.Source {
			dirs = append(dirs, cfg.Layouts)
		}
		g.Go(func() error { return preview.Watch(gctx, h, dirs...) })
	}
	g.Go(func() error {
		return preview.Serve(gctx, fmt.Sprintf(":%d", cfg.Port), h)
	})
	return g.Wait()
}
