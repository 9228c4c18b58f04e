package launch

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/ec2launch/internal/cancel"
	"github.com/yairfalse/ec2launch/internal/plugin"
	"github.com/yairfalse/ec2launch/pkg/instance"
)

// Guard decides whether a launch may be submitted.
type Guard interface {
	Check(ctx context.Context, params instance.LaunchParams, spec instance.LaunchSpec) error
}

// ServiceConfig holds Service settings. Zero values are usable.
type ServiceConfig struct {
	InstanceType string
	PollInterval time.Duration
	CallTimeout  time.Duration
	Cancel       cancel.Token
	Observer     Observer
	Guard        Guard
	Recorder     Recorder
	Tracer       trace.Tracer
}

// Service runs build, guard, submit and wait against one provider.
type Service struct {
	provider     plugin.Provider
	instanceType string
	launcher     *Launcher
	poller       *Poller
	guard        Guard
	recorder     Recorder
	tracer       trace.Tracer
}

// NewService creates a Service for provider.
func NewService(provider plugin.Provider, cfg ServiceConfig) *Service {
	s := &Service{
		provider:     provider,
		instanceType: cfg.InstanceType,
		launcher: NewLauncher(provider, LauncherConfig{
			CallTimeout: cfg.CallTimeout,
			Observer:    cfg.Observer,
		}),
		poller: NewPoller(provider, PollerConfig{
			Interval:    cfg.PollInterval,
			CallTimeout: cfg.CallTimeout,
			Cancel:      cfg.Cancel,
			Observer:    cfg.Observer,
		}),
		guard:    cfg.Guard,
		recorder: cfg.Recorder,
		tracer:   cfg.Tracer,
	}
	if s.recorder == nil {
		s.recorder = nopRecorder{}
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("ec2launch")
	}
	return s
}

// Plan returns the spec Run would submit.
func (s *Service) Plan(params instance.LaunchParams) instance.LaunchSpec {
	return BuildRequest(params, s.instanceType)
}

// Run launches one instance for params and waits for it.
func (s *Service) Run(ctx context.Context, params instance.LaunchParams) (instance.Result, error) {
	ctx, span := s.tracer.Start(ctx, "launch.run", trace.WithAttributes(
		attribute.String("provider", s.provider.Name()),
	))
	defer span.End()

	spec, err := s.Preflight(ctx, params)
	if err != nil {
		failSpan(span, err, "launch rejected")
		return instance.Result{}, err
	}
	span.SetAttributes(
		attribute.String("topology", string(spec.Topology())),
		attribute.String("instance_type", spec.InstanceType),
	)

	handles, err := s.submit(ctx, spec)
	if err != nil {
		failSpan(span, err, "launch failed")
		return instance.Result{}, err
	}

	result, err := s.Wait(ctx, handles)
	if err != nil {
		failSpan(span, err, "wait failed")
		return instance.Result{}, err
	}

	span.SetStatus(codes.Ok, "")
	return result, nil
}

// Preflight plans the spec for params and runs the guard against it.
// Nothing is submitted.
func (s *Service) Preflight(ctx context.Context, params instance.LaunchParams) (instance.LaunchSpec, error) {
	spec := s.Plan(params)
	if err := s.check(ctx, params, spec); err != nil {
		return instance.LaunchSpec{}, err
	}
	return spec, nil
}

// Wait polls existing instances until they leave pending or the wait is
// cancelled.
func (s *Service) Wait(ctx context.Context, handles []instance.Handle) (instance.Result, error) {
	ctx, span := s.tracer.Start(ctx, "launch.await", trace.WithAttributes(
		attribute.Int("instances", len(handles)),
	))
	defer span.End()

	start := time.Now()
	result, err := s.poller.Await(ctx, handles)
	if err != nil {
		s.recordProviderError(ctx, err)
		failSpan(span, err, "await failed")
		return instance.Result{}, err
	}

	s.recorder.RecordWait(ctx, result.Outcome, result.Cycles, time.Since(start))
	span.SetAttributes(
		attribute.String("outcome", string(result.Outcome)),
		attribute.Int("cycles", result.Cycles),
	)
	span.SetStatus(codes.Ok, "")
	return result, nil
}

func (s *Service) check(ctx context.Context, params instance.LaunchParams, spec instance.LaunchSpec) error {
	if s.guard == nil {
		return nil
	}

	ctx, span := s.tracer.Start(ctx, "launch.check")
	defer span.End()

	if err := s.guard.Check(ctx, params, spec); err != nil {
		failSpan(span, err, "policy check failed")
		return err
	}
	return nil
}

func (s *Service) submit(ctx context.Context, spec instance.LaunchSpec) ([]instance.Handle, error) {
	ctx, span := s.tracer.Start(ctx, "launch.submit")
	defer span.End()

	start := time.Now()
	handles, err := s.launcher.Launch(ctx, spec)
	if err != nil {
		s.recordProviderError(ctx, err)
		failSpan(span, err, "submit failed")
		return nil, err
	}

	s.recorder.RecordLaunch(ctx, len(handles), time.Since(start))
	span.SetAttributes(attribute.StringSlice("instance_ids", instance.IDs(handles)))
	return handles, nil
}

func (s *Service) recordProviderError(ctx context.Context, err error) {
	var pe *plugin.ProviderError
	if errors.As(err, &pe) {
		s.recorder.RecordProviderError(ctx, pe.Op, pe.Code)
	}
}

func failSpan(span trace.Span, err error, msg string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
}
