// Package config loads and validates the router's YAML configuration,
// applying environment-variable overrides on top of the file, in the
// same two-phase load/validate shape the rest of the daemon's packages
// follow.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"vecrouter/internal/logger"
)

// FileLoggerConfig configures lumberjack-rotated file output.
type FileLoggerConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"maxSize"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAge     int    `yaml:"maxAge"`
	Compress   bool   `yaml:"compress"`
}

// LoggerConfig configures the structured logger.
type LoggerConfig struct {
	Active   bool             `yaml:"active"`
	Level    string           `yaml:"level"`
	Encoding string           `yaml:"encoding"`
	Mode     string           `yaml:"mode"`
	File     FileLoggerConfig `yaml:"file"`
}

// TracingConfig configures the optional OpenTelemetry tracer.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// TelemetryConfig groups all telemetry settings.
type TelemetryConfig struct {
	Tracing TracingConfig `yaml:"tracing"`
}

// IntervalsConfig controls how often the daemon's background tasks run.
type IntervalsConfig struct {
	Announce time.Duration `yaml:"announce"`
	Monitor  time.Duration `yaml:"monitor"`
	Print    time.Duration `yaml:"print"`
	// NeighborTimeout is how long a neighbor may stay silent before
	// being aged out by the monitor task.
	NeighborTimeout time.Duration `yaml:"neighborTimeout"`
}

// NodeConfig identifies this router on the mesh.
type NodeConfig struct {
	Addr          string `yaml:"addr"`
	NeighborsFile string `yaml:"neighborsFile"`
}

// Config is the full daemon configuration, as loaded from YAML.
type Config struct {
	Logger    LoggerConfig    `yaml:"logger"`
	Node      NodeConfig      `yaml:"node"`
	Intervals IntervalsConfig `yaml:"intervals"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// LoadConfig loads and parses a YAML configuration file. It performs
// only syntactic parsing; call ValidateConfig afterward.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnvOverrides overrides selected fields from environment variables,
// for deployment-time tweaks without editing the YAML file:
//
//	ROUTERD_NODE_ADDR        -> cfg.Node.Addr
//	ROUTERD_NEIGHBORS_FILE   -> cfg.Node.NeighborsFile
//	ROUTERD_LOGGER_ENABLED   -> cfg.Logger.Active
//	ROUTERD_LOGGER_LEVEL     -> cfg.Logger.Level
//	ROUTERD_LOGGER_ENCODING  -> cfg.Logger.Encoding
//	ROUTERD_LOGGER_MODE      -> cfg.Logger.Mode
//	ROUTERD_LOGGER_FILE_PATH -> cfg.Logger.File.Path
//	ROUTERD_TRACE_ENABLED    -> cfg.Telemetry.Tracing.Enabled
//	ROUTERD_TRACE_EXPORTER   -> cfg.Telemetry.Tracing.Exporter
func (cfg *Config) ApplyEnvOverrides() {
	if v := os.Getenv("ROUTERD_NODE_ADDR"); v != "" {
		cfg.Node.Addr = v
	}
	if v := os.Getenv("ROUTERD_NEIGHBORS_FILE"); v != "" {
		cfg.Node.NeighborsFile = v
	}
	if v := os.Getenv("ROUTERD_LOGGER_ENABLED"); v != "" {
		cfg.Logger.Active = truthy(v)
	}
	if v := os.Getenv("ROUTERD_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("ROUTERD_LOGGER_ENCODING"); v != "" {
		cfg.Logger.Encoding = v
	}
	if v := os.Getenv("ROUTERD_LOGGER_MODE"); v != "" {
		cfg.Logger.Mode = v
	}
	if v := os.Getenv("ROUTERD_LOGGER_FILE_PATH"); v != "" {
		cfg.Logger.File.Path = v
	}
	if v := os.Getenv("ROUTERD_TRACE_ENABLED"); v != "" {
		cfg.Telemetry.Tracing.Enabled = truthy(v)
	}
	if v := os.Getenv("ROUTERD_TRACE_EXPORTER"); v != "" {
		cfg.Telemetry.Tracing.Exporter = v
	}
}

func truthy(v string) bool {
	v = strings.ToLower(v)
	return v == "true" || v == "1" || v == "yes"
}

// ValidateConfig performs structural validation of the loaded
// configuration, accumulating every problem found rather than stopping
// at the first one.
func (cfg *Config) ValidateConfig() error {
	var errs []string

	switch cfg.Logger.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid logger.level: %s", cfg.Logger.Level))
	}
	switch cfg.Logger.Encoding {
	case "console", "json":
	default:
		errs = append(errs, fmt.Sprintf("invalid logger.encoding: %s", cfg.Logger.Encoding))
	}
	switch cfg.Logger.Mode {
	case "stdout":
	case "file":
		if cfg.Logger.File.Path == "" {
			errs = append(errs, "logger.file.path is required when mode=file")
		}
		if cfg.Logger.File.MaxSize < 0 || cfg.Logger.File.MaxBackups < 0 || cfg.Logger.File.MaxAge < 0 {
			errs = append(errs, "logger.file.* values must be non-negative")
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid logger.mode: %s", cfg.Logger.Mode))
	}

	if cfg.Node.Addr == "" {
		errs = append(errs, "node.addr is required")
	}

	if cfg.Intervals.Announce <= 0 {
		errs = append(errs, "intervals.announce must be > 0")
	}
	if cfg.Intervals.Monitor <= 0 {
		errs = append(errs, "intervals.monitor must be > 0")
	}
	if cfg.Intervals.Print <= 0 {
		errs = append(errs, "intervals.print must be > 0")
	}
	if cfg.Intervals.NeighborTimeout <= 0 {
		errs = append(errs, "intervals.neighborTimeout must be > 0")
	}

	if cfg.Telemetry.Tracing.Enabled {
		switch cfg.Telemetry.Tracing.Exporter {
		case "stdout":
		default:
			errs = append(errs, fmt.Sprintf("invalid telemetry.tracing.exporter: %s", cfg.Telemetry.Tracing.Exporter))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// LogConfig prints the loaded configuration at DEBUG level, for
// verifying startup state.
func (cfg *Config) LogConfig(lgr logger.Logger) {
	lgr.Debug("loaded configuration",
		logger.F("logger.active", cfg.Logger.Active),
		logger.F("logger.level", cfg.Logger.Level),
		logger.F("logger.encoding", cfg.Logger.Encoding),
		logger.F("logger.mode", cfg.Logger.Mode),
		logger.F("node.addr", cfg.Node.Addr),
		logger.F("node.neighborsFile", cfg.Node.NeighborsFile),
		logger.F("intervals.announce", cfg.Intervals.Announce.String()),
		logger.F("intervals.monitor", cfg.Intervals.Monitor.String()),
		logger.F("intervals.print", cfg.Intervals.Print.String()),
		logger.F("intervals.neighborTimeout", cfg.Intervals.NeighborTimeout.String()),
		logger.F("telemetry.tracing.enabled", cfg.Telemetry.Tracing.Enabled),
		logger.F("telemetry.tracing.exporter", cfg.Telemetry.Tracing.Exporter),
	)
}

// LoadNeighbors reads one IP address per line from path, ignoring blank
// lines. A missing file is not fatal: it yields an empty neighbor list,
// matching a router that starts with no configured peers.
func LoadNeighbors(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		ip := strings.TrimSpace(line)
		if ip != "" {
			out = append(out, ip)
		}
	}
	return out, nil
}
