// Package config reads the posed server configuration.
package config

import (
	"bytes"
	"io"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"
	"github.com/yosuke-furukawa/json5/encoding/json5"
)

// DefaultBindAddress is where the web surface listens when unconfigured.
const DefaultBindAddress = "localhost:8080"

// Save configures persistence of the frame forest.
type Save struct {
	// Filename is where the frame forest is saved; empty disables
	// persistence entirely.
	Filename string `json:"filename"`
	// Cron schedules autosaves (standard cron expression); empty disables
	// autosaving. The save on shutdown also runs only when Cron is set.
	Cron string `json:"cron"`
	// Watch reloads the save file when it changes on disk.
	Watch bool `json:"watch"`
}

// Web configures the HTTP surface.
type Web struct {
	// BindAddress is the listen address, host:port.
	BindAddress string `json:"bind_address"`
	// AllowedOrigins is the CORS allow-list; empty allows none beyond
	// same-origin.
	AllowedOrigins []string `json:"allowed_origins"`
}

// Config is the top-level posed server configuration.
type Config struct {
	Web  Web  `json:"web"`
	Save Save `json:"save"`
	// GeoidOffset is a constant ellipsoid-to-mean-sea-level offset in
	// meters applied when clients supply AMSL altitudes.
	GeoidOffset float64 `json:"geoid_offset"`
	// Debug enables debug logging.
	Debug bool `json:"debug"`
}

// Read reads a config from the given file, substituting environment
// variables first.
func Read(filePath string) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %q", filePath)
	}
	return FromReader(bytes.NewReader(buf))
}

// FromReader reads a config from the given reader.
func FromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	decoder := json5.NewDecoder(r)
	if err := decoder.Decode(cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{Web: Web{BindAddress: DefaultBindAddress}}
}

// Validate checks the cross-field constraints.
func (c *Config) Validate() error {
	if c.Web.BindAddress == "" {
		c.Web.BindAddress = DefaultBindAddress
	}
	if c.Save.Filename == "" && (c.Save.Cron != "" || c.Save.Watch) {
		return errors.New("save.cron and save.watch require save.filename")
	}
	return nil
}
