package commands

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/pagepress/internal/config"
	"git.home.luguber.info/inful/pagepress/internal/foundation/errors"
	"git.home.luguber.info/inful/pagepress/internal/generator"
)

// Global is shared state handed to every command.
type Global struct {
	Logger *slog.Logger
}

// CLI is the root command line. Flags here apply to every command.
type CLI struct {
	Config        string           `short:"c" help:"Configuration file (.ini)" type:"path"`
	Base          string           `help:"Base directory; source, output and data are resolved against it" type:"path"`
	Source        string           `help:"Source directory" type:"path"`
	Layouts       string           `help:"Layouts directory (defaults to the source directory)" type:"path"`
	Output        string           `help:"Output directory" type:"path"`
	Data          string           `help:"Data directory for the build report and history" type:"path"`
	StopOnError   bool             `name:"stop-on-error" help:"Abort the pass on the first page failure"`
	TemplateDebug bool             `name:"template-debug" help:"Add template source excerpts to render errors"`
	Verbose       int              `short:"v" type:"counter" help:"Increase verbosity (-v debug, -vv debug with source locations)"`
	Version       kong.VersionFlag `name:"version" help:"Show version and exit"`

	Generate GenerateCmd `cmd:"" help:"Run one build pass and exit"`
	Serve    ServeCmd    `cmd:"" help:"Serve the output directory, rebuilding before each request"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	slog.SetDefault(newLogger(c.Verbose))
	return nil
}

func newLogger(verbosity int) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if verbosity > 0 {
		opts.Level = slog.LevelDebug
	}
	if verbosity > 1 {
		opts.AddSource = true
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// overrides collects the directory and policy flags given on the command line.
func (c *CLI) overrides() config.Overrides {
	return config.Overrides{
		Base:          c.Base,
		Source:        c.Source,
		Layouts:       c.Layouts,
		Output:        c.Output,
		Data:          c.Data,
		StopOnError:   c.StopOnError,
		TemplateDebug: c.TemplateDebug,
	}
}

// LoadConfig layers defaults, environment, the configuration file and the
// command line, then resolves and validates the result.
func LoadConfig(root *CLI, port int) (*config.Config, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return nil, err
	}

	o := root.overrides()
	o.Port = port
	for _, p := range []*string{&o.Base, &o.Source, &o.Layouts, &o.Output, &o.Data} {
		if *p == "" || filepath.IsAbs(*p) {
			continue
		}
		abs, err := filepath.Abs(*p)
		if err != nil {
			return nil, errors.ConfigError("failed to resolve path").WithCause(err).WithPath(*p).Build()
		}
		*p = abs
	}
	cfg.Apply(o)

	if err := cfg.Resolve(); err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	slog.Debug("Resolved configuration", slog.String("config", cfg.String()))
	return cfg, nil
}

// newGenerator loads the configuration and creates a generator for it.
func newGenerator(ctx context.Context, root *CLI, port int, opts ...generator.Option) (*generator.Generator, error) {
	cfg, err := LoadConfig(root, port)
	if err != nil {
		return nil, err
	}
	return generator.New(ctx, cfg, opts...)
}
