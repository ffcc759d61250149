// Package cli wires configuration, logging and observers around the fan-out
// runner and maps its result to a process exit code.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/NetPo4ki/go-fanout/internal/config"
	"github.com/NetPo4ki/go-fanout/internal/fanout"
	"github.com/NetPo4ki/go-fanout/observe/otel"
	"github.com/NetPo4ki/go-fanout/observe/prom"
	"github.com/NetPo4ki/go-fanout/observe/zlog"
	"github.com/NetPo4ki/go-fanout/scope"
)

const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

const consoleTimeFormat = "15:04:05.000"

type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// App is the fanout command. Run defaults to (*fanout.Runner).Run.
type App struct {
	Stdout io.Writer
	Stderr io.Writer
	Run    func(ctx context.Context, r *fanout.Runner) error
}

func (a *App) Command() *cobra.Command {
	cfg := config.Default()
	cmd := &cobra.Command{
		Use:   "fanout",
		Short: "Spawn tasks and wait for them, one by one and then jointly",
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usageError{fmt.Errorf("unexpected arguments: %q", args)}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.Validate(); err != nil {
				return usageError{err}
			}
			return a.execute(cmd.Context(), cfg)
		},
	}
	cfg.BindFlags(cmd.Flags())
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageError{err} })
	return cmd
}

// Execute runs the command with args and returns the process exit code.
func (a *App) Execute(ctx context.Context, args []string) int {
	cmd := a.Command()
	cmd.SetArgs(args)
	cmd.SetOut(a.Stdout)
	cmd.SetErr(a.Stderr)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}
	var ue usageError
	if errors.As(err, &ue) {
		fmt.Fprintf(a.Stderr, "fanout: %v\n", err)
		return ExitUsage
	}
	// the run has already logged the failure
	return ExitFailure
}

func (a *App) logger(lvl zerolog.Level) zerolog.Logger {
	cw := zerolog.ConsoleWriter{Out: zerolog.SyncWriter(a.Stderr), TimeFormat: consoleTimeFormat, NoColor: a.Stderr != os.Stderr}
	return zerolog.New(cw).Level(lvl).With().Timestamp().Logger()
}

func (a *App) execute(ctx context.Context, cfg config.Config) error {
	lvl, err := cfg.Level()
	if err != nil {
		return usageError{err}
	}
	log := a.logger(lvl)

	observers := []scope.Observer{zlog.New(log)}

	var reg *prometheus.Registry
	if cfg.Metrics {
		reg = prometheus.NewRegistry()
		m := prom.New(prom.WithNamespace("fanout"))
		if err := m.Register(reg); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		observers = append(observers, m)
		defer func() {
			if derr := dumpMetrics(a.Stderr, reg); derr != nil {
				log.Warn().Err(derr).Msg("metrics dump failed")
			}
		}()
	}

	if cfg.Trace {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(a.Stderr))
		if err != nil {
			return fmt.Errorf("trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
		defer func() {
			if serr := tp.Shutdown(context.Background()); serr != nil {
				log.Warn().Err(serr).Msg("trace shutdown failed")
			}
		}()
		observers = append(observers, otel.New(tp))
	}

	opts := []scope.Option{scope.WithObserver(scope.Observers(observers...))}
	if cfg.MaxConcurrency > 0 {
		opts = append(opts, scope.WithMaxConcurrency(cfg.MaxConcurrency))
	}
	r := fanout.New(a.Stdout,
		fanout.WithLogger(log),
		fanout.WithScopeOptions(opts...),
		fanout.WithJoinPolicy(cfg.JoinPolicy),
	)

	run := a.Run
	if run == nil {
		run = func(ctx context.Context, r *fanout.Runner) error { return r.Run(ctx) }
	}
	if err := run(ctx, r); err != nil {
		log.Error().Err(err).Msg("run failed")
		return err
	}
	return nil
}

func dumpMetrics(w io.Writer, g prometheus.Gatherer) error {
	mfs, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
