// Package config loads the §6 CLI/env/TOML-layered settings: log_level,
// enable_metrics, part_duration, and window_size. A TOML file may
// predeclare any of these; CLI flags (threaded in from cmd/tspipe) and
// environment variables override it, in that order, the way
// snapetech/iptvtunerr's internal/config layers env over file (adapted
// here to TOML via github.com/BurntSushi/toml, since this pipeline's flat
// settings struct maps directly onto a TOML table rather than needing
// iptvtunerr's bespoke .env line parser).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Config is the full set of §6 settings, plus the listen address this
// pipeline's HTTP surface and ingest listener bind to (outside spec scope
// per §1, but every real deployment needs one, so it is carried the same
// env/flag-overridable way).
type Config struct {
	LogLevel      string        `toml:"log_level"`
	LogJSON       bool          `toml:"log_json"`
	EnableMetrics bool          `toml:"enable_metrics"`
	PartDuration  time.Duration `toml:"-"`
	PartDurationSeconds float64 `toml:"part_duration"`
	WindowSize    int           `toml:"window_size"`
	LowLatency    bool          `toml:"low_latency"`
	HTTPAddr      string        `toml:"http_addr"`
	IngestAddr    string        `toml:"ingest_addr"`
}

// Default returns the baseline configuration before any file/env/flag
// layering is applied.
func Default() Config {
	return Config{
		LogLevel:            "info",
		EnableMetrics:       false,
		PartDurationSeconds: 1.0,
		PartDuration:        time.Second,
		WindowSize:          6,
		LowLatency:          true,
		HTTPAddr:            ":8080",
		IngestAddr:          ":8000",
	}
}

// LoadFile merges path's TOML table onto cfg, overwriting only fields the
// file declares. A missing path is not an error (the file is optional per
// §6: "A TOML file may predeclare the same fields").
func LoadFile(path string, cfg *Config) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return errors.Wrapf(err, "config: decoding %s", path)
	}
	cfg.PartDuration = time.Duration(cfg.PartDurationSeconds * float64(time.Second))
	return nil
}

// ApplyEnv overrides cfg with any of the matching TSPIPE_* environment
// variables, per §6's "env and CLI override" rule (env takes precedence
// over the TOML file; cmd/tspipe applies explicit CLI flags after this,
// giving them the final word).
func ApplyEnv(cfg *Config) error {
	if v, ok := os.LookupEnv("TSPIPE_LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := os.LookupEnv("TSPIPE_LOG_JSON"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(err, "config: TSPIPE_LOG_JSON")
		}
		cfg.LogJSON = b
	}
	if v, ok := os.LookupEnv("TSPIPE_ENABLE_METRICS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(err, "config: TSPIPE_ENABLE_METRICS")
		}
		cfg.EnableMetrics = b
	}
	if v, ok := os.LookupEnv("TSPIPE_PART_DURATION"); ok {
		d, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrap(err, "config: TSPIPE_PART_DURATION")
		}
		cfg.PartDurationSeconds = d
		cfg.PartDuration = time.Duration(d * float64(time.Second))
	}
	if v, ok := os.LookupEnv("TSPIPE_WINDOW_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, "config: TSPIPE_WINDOW_SIZE")
		}
		cfg.WindowSize = n
	}
	if v, ok := os.LookupEnv("TSPIPE_HTTP_ADDR"); ok {
		cfg.HTTPAddr = v
	}
	if v, ok := os.LookupEnv("TSPIPE_INGEST_ADDR"); ok {
		cfg.IngestAddr = v
	}
	return nil
}

// Validate rejects settings that would make the pipeline misbehave rather
// than fail fast.
func (c Config) Validate() error {
	if c.WindowSize <= 0 {
		return fmt.Errorf("config: window_size must be positive, got %d", c.WindowSize)
	}
	if c.PartDuration <= 0 {
		return fmt.Errorf("config: part_duration must be positive, got %s", c.PartDuration)
	}
	switch c.LogLevel {
	case "off", "error", "warn", "info", "debug", "trace":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
	return nil
}
