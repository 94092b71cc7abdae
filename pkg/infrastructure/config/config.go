// Package config loads engine settings from flags, GROUPING_* environment variables
// and an optional YAML file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mrodz/mql-grouping-engine/pkg/optimization"
)

// EnvPrefix prefixes every environment override, e.g. GROUPING_SOLVER_BACKEND
const EnvPrefix = "GROUPING"

// Solver backends
const (
	BackendPBSat      = "pbsat"
	BackendExhaustive = "exhaustive"
)

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Store drivers
const (
	StoreNone     = "none"
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config is the full engine configuration
type Config struct {
	Solver   SolverConfig   `mapstructure:"solver"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Output   OutputConfig   `mapstructure:"output"`
	Store    StoreConfig    `mapstructure:"store"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// SolverConfig selects the optimizer and its budget
type SolverConfig struct {
	Backend   string        `mapstructure:"backend"`
	TimeLimit time.Duration `mapstructure:"time_limit"`
	Workers   int           `mapstructure:"workers"`
	// MaxVars caps the exhaustive backend; 0 keeps its default
	MaxVars int `mapstructure:"max_vars"`
}

// Params converts the solver section to optimizer parameters
func (s SolverConfig) Params() optimization.Params {
	return optimization.Params{TimeLimit: s.TimeLimit, Workers: s.Workers}
}

// UpstreamConfig names the query compiler and candidate matcher commands.
// Commands are split on whitespace.
type UpstreamConfig struct {
	Compiler  string `mapstructure:"compiler"`
	Matcher   string `mapstructure:"matcher"`
	QueryFile string `mapstructure:"query_file"`
	Dir       string `mapstructure:"dir"`
}

// Enabled reports whether requirement sets come from the upstream pipeline
func (u UpstreamConfig) Enabled() bool {
	return u.QueryFile != ""
}

// OutputConfig controls how solutions are reported
type OutputConfig struct {
	Format    string `mapstructure:"format"`
	EchoQuery bool   `mapstructure:"echo_query"`
	Dir       string `mapstructure:"dir"`
}

// StoreConfig selects where solutions are kept
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// ServerConfig configures the HTTP service
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig configures metric export for batch runs
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// SetDefaults registers every default on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("solver.backend", BackendPBSat)
	v.SetDefault("solver.time_limit", optimization.DefaultTimeLimit)
	v.SetDefault("solver.workers", optimization.DefaultWorkers)
	v.SetDefault("solver.max_vars", 0)

	v.SetDefault("upstream.compiler", "mql")
	v.SetDefault("upstream.matcher", "npm run dev --silent")
	v.SetDefault("upstream.query_file", "")
	v.SetDefault("upstream.dir", "")

	v.SetDefault("output.format", FormatText)
	v.SetDefault("output.echo_query", false)
	v.SetDefault("output.dir", "")

	v.SetDefault("store.driver", StoreMemory)
	v.SetDefault("store.dsn", "")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("metrics.textfile", "")
}

// flagKeys maps command-line flags to configuration keys
var flagKeys = map[string]string{
	"backend":    "solver.backend",
	"time-limit": "solver.time_limit",
	"workers":    "solver.workers",
	"max-vars":   "solver.max_vars",
	"compiler":   "upstream.compiler",
	"matcher":    "upstream.matcher",
	"query":      "upstream.query_file",
	"format":     "output.format",
	"echo-query": "output.echo_query",
	"output-dir": "output.dir",
	"store":      "store.driver",
	"dsn":        "store.dsn",
	"addr":       "server.addr",
	"log-level":  "log.level",
	"log-format": "log.format",
	"metrics":    "metrics.textfile",
}

// BindFlags binds every known flag present in flags to its configuration key
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

// New returns a viper instance with defaults and environment overrides registered
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the optional config file into v and decodes the result
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects unknown choices and impossible budgets
func (c *Config) Validate() error {
	var errs []error

	switch c.Solver.Backend {
	case BackendPBSat, BackendExhaustive:
	default:
		errs = append(errs, fmt.Errorf("unknown solver backend %q", c.Solver.Backend))
	}
	if c.Solver.TimeLimit <= 0 {
		errs = append(errs, fmt.Errorf("solver time limit must be positive, got %s", c.Solver.TimeLimit))
	}
	if c.Solver.Workers < 1 {
		errs = append(errs, fmt.Errorf("solver workers must be at least 1, got %d", c.Solver.Workers))
	}
	if c.Solver.MaxVars < 0 {
		errs = append(errs, fmt.Errorf("solver max vars cannot be negative, got %d", c.Solver.MaxVars))
	}

	switch c.Output.Format {
	case FormatText, FormatJSON, FormatYAML:
	default:
		errs = append(errs, fmt.Errorf("unknown output format %q", c.Output.Format))
	}

	switch c.Store.Driver {
	case StoreNone, StoreMemory:
	case StorePostgres:
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("postgres store requires a dsn"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}

	if c.Upstream.Enabled() && (strings.TrimSpace(c.Upstream.Compiler) == "" || strings.TrimSpace(c.Upstream.Matcher) == "") {
		errs = append(errs, errors.New("upstream pipeline requires compiler and matcher commands"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
