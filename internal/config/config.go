package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"git.home.luguber.info/inful/pagepress/internal/foundation/errors"
	"git.home.luguber.info/inful/pagepress/internal/foundation/normalization"
)

const (
	// Section is the ini section holding the generator options.
	Section = "generate:main"
	// SiteSection is the ini section exposed to templates as .Site.Params.
	SiteSection = "site"
	// EnvPrefix prefixes the environment variables that configure pagepress.
	EnvPrefix = "PAGEPRESS"
)

// Option keys shared by the ini file and the environment.
const (
	KeyBase           = "base"
	KeySource         = "source"
	KeyLayouts        = "layouts"
	KeyOutput         = "output"
	KeyData           = "data"
	KeyStopOnError    = "stop_on_error"
	KeyTemplateDebug  = "template_debug"
	KeyCompress       = "compress"
	KeyCopyUnparsed   = "copy_unparsed"
	KeyHighlightStyle = "highlight_style"
	KeyHistory        = "history"
	KeyNATSURL        = "nats_url"
	KeyNATSSubject    = "nats_subject"
	KeyPort           = "port"
)

// Config represents the generator configuration.
//
// Directory fields may be relative until Resolve has been called; after that
// they are absolute.
type Config struct {
	// File is the ini file the configuration was loaded from, if any.
	File string

	Base    string
	Source  string
	Layouts string
	Output  string
	Data    string

	StopOnError    bool
	TemplateDebug  bool
	Compress       bool
	CopyUnparsed   bool
	HighlightStyle string
	History        bool

	NATSURL     string
	NATSSubject string

	Port int

	// Site holds the [site] section.
	Site map[string]string
}

// Overrides carries values given on the command line. Zero values are
// ignored.
type Overrides struct {
	Base          string
	Source        string
	Layouts       string
	Output        string
	Data          string
	StopOnError   bool
	TemplateDebug bool
	Port          int
}

// Load builds a configuration from defaults, the environment and the ini file
// at path, in increasing order of precedence. An empty path skips the file.
func Load(path string) (*Config, error) {
	dotenvDir := "."
	if path != "" {
		dotenvDir = filepath.Dir(path)
	}
	if err := loadEnvFiles(dotenvDir); err != nil {
		return nil, err
	}

	cfg := Default()

	env := viper.New()
	env.SetEnvPrefix(EnvPrefix)
	env.AutomaticEnv()
	if err := cfg.merge(env, ""); err != nil {
		return nil, err
	}

	if path == "" {
		return cfg, nil
	}

	if _, err := os.Stat(path); err != nil {
		return nil, errors.ConfigError("configuration file not found").
			WithCause(err).WithPath(path).Build()
	}

	file := viper.New()
	file.SetConfigFile(path)
	file.SetConfigType("ini")
	if err := file.ReadInConfig(); err != nil {
		return nil, errors.ConfigError("failed to read configuration file").
			WithCause(err).WithPath(path).Build()
	}

	cfg.File = path
	if !file.IsSet(Section+"."+KeyBase) && cfg.Base == "" {
		cfg.Base = filepath.Dir(path)
	}
	if err := cfg.merge(file, Section+"."); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "invalid configuration file").
			WithPath(path).Build()
	}
	if site := file.GetStringMapString(SiteSection); len(site) > 0 {
		cfg.Site = site
	}

	slog.Debug("Loaded configuration", slog.String("file", path), slog.String("base", cfg.Base))
	return cfg, nil
}

// merge copies every key set in v over the current values.
func (c *Config) merge(v *viper.Viper, prefix string) error {
	strs := map[string]*string{
		KeyBase:           &c.Base,
		KeySource:         &c.Source,
		KeyLayouts:        &c.Layouts,
		KeyOutput:         &c.Output,
		KeyData:           &c.Data,
		KeyHighlightStyle: &c.HighlightStyle,
		KeyNATSURL:        &c.NATSURL,
		KeyNATSSubject:    &c.NATSSubject,
	}
	for key, dst := range strs {
		if v.IsSet(prefix + key) {
			*dst = strings.TrimSpace(v.GetString(prefix + key))
		}
	}

	bools := map[string]*bool{
		KeyStopOnError:   &c.StopOnError,
		KeyTemplateDebug: &c.TemplateDebug,
		KeyCompress:      &c.Compress,
		KeyCopyUnparsed:  &c.CopyUnparsed,
		KeyHistory:       &c.History,
	}
	for key, dst := range bools {
		if !v.IsSet(prefix + key) {
			continue
		}
		b, err := normalization.Bool.NormalizeWithError(v.GetString(prefix + key))
		if err != nil {
			return errors.ConfigError("invalid boolean option").
				WithCause(err).WithContext("key", key).Build()
		}
		*dst = b
	}

	if v.IsSet(prefix + KeyPort) {
		raw := strings.TrimSpace(v.GetString(prefix + KeyPort))
		port, err := strconv.Atoi(raw)
		if err != nil {
			return errors.ConfigError("invalid port").
				WithCause(err).WithContext("key", KeyPort).Build()
		}
		c.Port = port
	}
	return nil
}

// Apply overlays command line values.
func (c *Config) Apply(o Overrides) {
	for _, f := range []struct {
		dst *string
		val string
	}{
		{&c.Base, o.Base},
		{&c.Source, o.Source},
		{&c.Layouts, o.Layouts},
		{&c.Output, o.Output},
		{&c.Data, o.Data},
	} {
		if f.val != "" {
			*f.dst = f.val
		}
	}
	if o.StopOnError {
		c.StopOnError = true
	}
	if o.TemplateDebug {
		c.TemplateDebug = true
	}
	if o.Port != 0 {
		c.Port = o.Port
	}
}

// Resolve makes every directory absolute. Relative directories are taken
// relative to Base and empty ones receive their default location.
func (c *Config) Resolve() error {
	base := c.Base
	if base == "" {
		base = "."
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return errors.ConfigError("failed to resolve base directory").
			WithCause(err).WithPath(base).Build()
	}
	c.Base = abs

	c.Source = c.under(c.Source, DefaultSourceDir)
	c.Output = c.under(c.Output, DefaultOutputDir)
	c.Data = c.under(c.Data, DefaultDataDir)
	if c.Layouts == "" {
		c.Layouts = c.Source
	} else {
		c.Layouts = c.under(c.Layouts, "")
	}
	return nil
}

func (c *Config) under(dir, fallback string) string {
	if dir == "" {
		dir = fallback
	}
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(c.Base, dir)
}

// String summarizes the resolved locations for logging.
func (c *Config) String() string {
	return fmt.Sprintf("source=%s layouts=%s output=%s data=%s", c.Source, c.Layouts, c.Output, c.Data)
}
