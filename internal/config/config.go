// Package config holds the runtime settings of the fanout command.
//
// Every field has a default that reproduces the reference run, so the
// command behaves the same with no flags at all.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

// JoinPolicy selects what Operation B does with failed tasks after the joint wait.
type JoinPolicy string

const (
	// JoinStrict fails the run when any joined task failed.
	JoinStrict JoinPolicy = "strict"
	// JoinPermissive logs failures and carries on.
	JoinPermissive JoinPolicy = "permissive"
)

func (p JoinPolicy) String() string { return string(p) }

// Set implements pflag.Value.
func (p *JoinPolicy) Set(v string) error {
	switch JoinPolicy(strings.ToLower(strings.TrimSpace(v))) {
	case JoinStrict:
		*p = JoinStrict
	case JoinPermissive:
		*p = JoinPermissive
	default:
		return fmt.Errorf("unknown join policy %q (want %s or %s)", v, JoinStrict, JoinPermissive)
	}
	return nil
}

// Type implements pflag.Value.
func (p *JoinPolicy) Type() string { return "policy" }

type Config struct {
	LogLevel       string
	JoinPolicy     JoinPolicy
	MaxConcurrency int
	Metrics        bool
	Trace          bool
}

func Default() Config {
	return Config{
		LogLevel:   zerolog.WarnLevel.String(),
		JoinPolicy: JoinStrict,
	}
}

// BindFlags registers one flag per field on fs, using the current values as defaults.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level written to stderr (trace, debug, info, warn, error, disabled)")
	fs.Var(&c.JoinPolicy, "join-policy", "what to do with failed tasks after the joint wait: strict or permissive")
	fs.IntVar(&c.MaxConcurrency, "max-concurrency", c.MaxConcurrency, "bound on concurrently running tasks, 0 for none")
	fs.BoolVar(&c.Metrics, "metrics", c.Metrics, "dump Prometheus metrics of the run to stderr")
	fs.BoolVar(&c.Trace, "trace", c.Trace, "export OpenTelemetry spans of the run to stderr")
}

// Level parses LogLevel.
func (c Config) Level() (zerolog.Level, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(c.LogLevel)))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log level: %w", err)
	}
	return lvl, nil
}

func (c Config) Validate() error {
	var errs []error
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	switch c.JoinPolicy {
	case JoinStrict, JoinPermissive:
	default:
		errs = append(errs, fmt.Errorf("join policy: unknown value %q", c.JoinPolicy))
	}
	if c.MaxConcurrency < 0 {
		errs = append(errs, fmt.Errorf("max concurrency: must be >= 0, got %d", c.MaxConcurrency))
	}
	return errors.Join(errs...)
}
