package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/alecthomas/chroma/v2/styles"

	"git.home.luguber.info/inful/pagepress/internal/foundation/errors"
)

// Validate checks a resolved configuration.
func Validate(cfg *Config) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return errors.ValidationError("port out of range").
			WithContext("port", cfg.Port).Build()
	}

	info, err := os.Stat(cfg.Source)
	if err != nil {
		return errors.ConfigError("source directory not accessible").
			WithCause(err).WithPath(cfg.Source).Build()
	}
	if !info.IsDir() {
		return errors.ConfigError("source is not a directory").WithPath(cfg.Source).Build()
	}

	if within(cfg.Output, cfg.Source) {
		return errors.ValidationError("output directory must not be inside the source directory").
			WithPath(cfg.Output).WithContext("source", cfg.Source).Build()
	}
	if cfg.Data == cfg.Output {
		return errors.ValidationError("data and output directories must differ").
			WithPath(cfg.Data).Build()
	}

	if cfg.HighlightStyle != "" && !slices.Contains(styles.Names(), cfg.HighlightStyle) {
		return errors.ValidationError("unknown highlight style").
			WithContext("style", cfg.HighlightStyle).Build()
	}
	if cfg.NATSURL != "" && strings.TrimSpace(cfg.NATSSubject) == "" {
		return errors.ValidationError("nats_subject must not be empty when nats_url is set").Build()
	}
	return nil
}

// within reports whether path equals dir or lies below it.
func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
