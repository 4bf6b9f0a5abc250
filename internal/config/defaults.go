package config

import "git.home.luguber.info/inful/pagepress/internal/notify"

// Default directory names below the base directory.
const (
	DefaultSourceDir = "source"
	DefaultOutputDir = "static"
	DefaultDataDir   = "data"
)

// DefaultPort is the preview server port.
const DefaultPort = 6554

// Default returns a configuration with every default applied and no
// directories resolved.
func Default() *Config {
	return &Config{
		Compress:    true,
		History:     true,
		NATSSubject: notify.DefaultSubject,
		Port:        DefaultPort,
	}
}
