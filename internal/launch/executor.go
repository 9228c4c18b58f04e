package launch

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/yairfalse/ec2launch/pkg/instance"
)

// Submitter is the provider side of a launch.
type Submitter interface {
	Name() string
	RunInstances(ctx context.Context, spec instance.LaunchSpec) (instance.Reservation, error)
}

// LauncherConfig holds Launcher settings.
type LauncherConfig struct {
	CallTimeout time.Duration // bounds the submission; zero means none
	Observer    Observer
}

// Launcher submits launch specs. It never retries.
type Launcher struct {
	provider    Submitter
	callTimeout time.Duration
	observer    Observer
}

// NewLauncher creates a Launcher.
func NewLauncher(provider Submitter, cfg LauncherConfig) *Launcher {
	l := &Launcher{
		provider:    provider,
		callTimeout: cfg.CallTimeout,
		observer:    cfg.Observer,
	}
	if l.observer == nil {
		l.observer = nopObserver{}
	}
	return l
}

// Launch submits spec and returns one handle per created instance in
// response order. Provider errors are returned unchanged.
func (l *Launcher) Launch(ctx context.Context, spec instance.LaunchSpec) ([]instance.Handle, error) {
	callCtx, cancel := callContext(ctx, l.callTimeout)
	defer cancel()

	reservation, err := l.provider.RunInstances(callCtx, spec)
	if err != nil {
		return nil, err
	}

	if len(reservation.Instances) == 0 {
		return nil, &InvariantError{Err: ErrNoInstances, Detail: "reservation " + reservation.ID}
	}

	handles := make([]instance.Handle, 0, len(reservation.Instances))
	for _, s := range reservation.Instances {
		h := instance.Handle{InstanceID: s.InstanceID}
		handles = append(handles, h)

		log.Info().Ctx(ctx).
			Str("instance_id", h.InstanceID).
			Str("reservation_id", reservation.ID).
			Str("provider", l.provider.Name()).
			Msg("instance created")
		l.observer.Launched(h, s)
	}

	return handles, nil
}
