package config

import (
	stderrors "errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"git.home.luguber.info/inful/pagepress/internal/foundation/errors"
)

var envFileNames = []string{".env", ".env.local"}

// loadEnvFiles loads .env files found in dir into the process environment.
// Existing variables are never overwritten. Missing files are skipped.
func loadEnvFiles(dir string) error {
	for _, name := range envFileNames {
		envPath := filepath.Join(dir, name)
		if _, err := os.Stat(envPath); stderrors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(envPath); err != nil {
			return errors.ConfigError("failed to load environment file").
				WithCause(err).WithPath(envPath).Build()
		}
		slog.Debug("Loaded environment variables", slog.String("file", envPath))
	}
	return nil
}
