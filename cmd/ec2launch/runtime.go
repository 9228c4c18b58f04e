package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/yairfalse/ec2launch/internal/cancel"
	"github.com/yairfalse/ec2launch/internal/config"
	"github.com/yairfalse/ec2launch/internal/launch"
	"github.com/yairfalse/ec2launch/internal/plugin"
	"github.com/yairfalse/ec2launch/internal/plugin/aws"
	"github.com/yairfalse/ec2launch/internal/plugin/sim"
	"github.com/yairfalse/ec2launch/internal/policy"
	"github.com/yairfalse/ec2launch/internal/report"
	"github.com/yairfalse/ec2launch/internal/telemetry"
	"github.com/yairfalse/ec2launch/pkg/instance"
)

// simPendingCycles is how long simulated instances stay pending.
const simPendingCycles = 2

// newProvider builds the configured compute provider. Tests replace it.
var newProvider = func(ctx context.Context, cfg *config.Config) (plugin.Provider, error) {
	switch cfg.Launch.Provider {
	case aws.Name:
		return aws.New(ctx, aws.Config{
			Region:      cfg.AWS.Region,
			Profile:     cfg.AWS.Profile,
			Endpoint:    cfg.AWS.Endpoint,
			MaxAttempts: cfg.AWS.MaxAttempts,
		})
	case sim.Name:
		return sim.New(sim.Config{PendingCycles: simPendingCycles}), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Launch.Provider)
	}
}

// stdin is watched for a keypress while waiting.
var stdin = os.Stdin

// loadConfig reads the config file (or defaults) and applies flags that
// were set explicitly.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return nil, err
		}
	}

	f := cmd.Flags()
	if f.Changed("region") {
		cfg.AWS.Region = opts.region
	}
	if f.Changed("profile") {
		cfg.AWS.Profile = opts.profile
	}
	if f.Changed("endpoint") {
		cfg.AWS.Endpoint = opts.endpoint
	}
	if f.Changed("provider") {
		cfg.Launch.Provider = opts.provider
	}
	if f.Changed("instance-type") {
		cfg.Launch.InstanceType = opts.instanceType
	}
	if f.Changed("poll-interval") {
		cfg.Launch.PollInterval = opts.pollInterval
	}
	if f.Changed("call-timeout") {
		cfg.Launch.CallTimeout = opts.callTimeout
	}
	if f.Changed("wait-timeout") {
		cfg.Launch.WaitTimeout = opts.waitTimeout
	}
	if f.Changed("policy") {
		cfg.Launch.Policies = opts.policies
	}
	if f.Changed("output") {
		cfg.Output.Format = opts.output
	}
	if f.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadGuard(ctx context.Context, cfg *config.Config) (*policy.Guard, error) {
	modules, err := policy.LoadFiles(cfg.Launch.Policies...)
	if err != nil {
		return nil, err
	}
	return policy.New(ctx, cfg.AWS.Region, modules...)
}

// session is the provider and telemetry for one command run.
type session struct {
	provider  plugin.Provider
	telemetry *telemetry.Provider
}

func openSession(ctx context.Context, cfg *config.Config) (*session, error) {
	tp, err := telemetry.NewProvider(ctx, cfg.OTEL, cfg.Metrics)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	p, err := newProvider(ctx, cfg)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("init provider: %w", err)
	}
	plugin.Register(p)

	provider, ok := plugin.Get(cfg.Launch.Provider)
	if !ok {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("provider %q not registered (have %v)", cfg.Launch.Provider, plugin.Names())
	}

	region := cfg.AWS.Region
	if r, ok := provider.(interface{ Region() string }); ok {
		region = r.Region()
	}
	tp.SetLabels(provider.Name(), region)

	ev := log.Debug().
		Str("provider", provider.Name()).
		Str("region", region)
	if a, ok := provider.(interface{ AccountID() string }); ok {
		ev = ev.Str("account_id", a.AccountID())
	}
	ev.Msg("session ready")

	return &session{provider: provider, telemetry: tp}, nil
}

// close pushes batch metrics and flushes telemetry. Failures are logged
// only; they never change the command's outcome.
func (s *session) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.telemetry.Push(ctx); err != nil {
		log.Warn().Err(err).Msg("metrics push failed")
	}
	if err := s.telemetry.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("telemetry shutdown failed")
	}
}

// waitToken combines the operator stop signals: a keypress on an
// interactive stdin, SIGINT, and the wait timeout. The returned writer
// must be used for console output while the token is open, since the
// keypress token puts the terminal in raw mode. Log output follows the
// same writer until release restores the terminal.
func waitToken(cfg *config.Config, console io.Writer) (tok cancel.Token, out io.Writer, release func()) {
	sig := cancel.Signal(os.Interrupt)
	tokens := []cancel.Token{sig}
	releases := []func(){sig.Stop}
	out = console

	kp, err := cancel.Keypress(stdin)
	switch {
	case err == nil:
		tokens = append(tokens, kp)
		out = crlfWriter{w: console}
		releases = append(releases, redirectLogs(out), func() { _ = kp.Close() })
		fmt.Fprint(out, "Press any key to stop waiting\n")
	case !errors.Is(err, cancel.ErrNotTerminal):
		log.Warn().Err(err).Msg("keypress cancellation unavailable")
	}

	if cfg.Launch.WaitTimeout > 0 {
		tokens = append(tokens, cancel.After(cfg.Launch.WaitTimeout))
	}

	return cancel.Any(tokens...), out, func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
}

// redirectLogs sends console log output to w, keeping the logger's level,
// context and hooks. The returned func restores the previous logger.
func redirectLogs(w io.Writer) (restore func()) {
	prev := log.Logger
	log.Logger = log.Logger.Output(zerolog.ConsoleWriter{Out: w})
	return func() { log.Logger = prev }
}

// crlfWriter turns LF into CRLF for a terminal in raw mode.
type crlfWriter struct {
	w io.Writer
}

func (c crlfWriter) Write(p []byte) (int, error) {
	if _, err := c.w.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}

// runWait runs fn as the main actor of a run group next to a SIGTERM
// handler. SIGTERM cancels fn's context.
func runWait(ctx context.Context, fn func(ctx context.Context) (instance.Result, error)) (instance.Result, error) {
	ctx, cancelFn := context.WithCancel(ctx)
	defer cancelFn()

	var (
		result instance.Result
		g      run.Group
	)
	g.Add(func() error {
		var err error
		result, err = fn(ctx)
		return err
	}, func(error) {
		cancelFn()
	})
	g.Add(run.SignalHandler(ctx, syscall.SIGTERM))

	if err := g.Run(); err != nil {
		var serr run.SignalError
		if errors.As(err, &serr) {
			return instance.Result{}, fmt.Errorf("terminated by %v", serr.Signal)
		}
		return instance.Result{}, err
	}
	return result, nil
}

// serviceFor wires a launch.Service for the session.
func serviceFor(cfg *config.Config, s *session, tok cancel.Token, obs launch.Observer, guard launch.Guard) *launch.Service {
	return launch.NewService(s.provider, launch.ServiceConfig{
		InstanceType: cfg.Launch.InstanceType,
		PollInterval: cfg.Launch.PollInterval,
		CallTimeout:  cfg.Launch.CallTimeout,
		Cancel:       tok,
		Observer:     obs,
		Guard:        guard,
		Recorder:     s.telemetry,
		Tracer:       s.telemetry.Tracer(),
	})
}

// finish ends progress output and prints the final report.
func finish(cmd *cobra.Command, cfg *config.Config, console *report.Console, result instance.Result) error {
	console.Done()
	if !result.Converged() {
		log.Info().Int("instances", len(result.Snapshots)).Msg("stopped waiting before all instances left pending")
	}
	return report.Render(cmd.OutOrStdout(), result, cfg.Output.Format)
}
