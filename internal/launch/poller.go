package launch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/yairfalse/ec2launch/internal/cancel"
	"github.com/yairfalse/ec2launch/pkg/instance"
)

// DefaultPollInterval is the fixed delay between describe calls.
const DefaultPollInterval = 2 * time.Second

// Describer is the provider side of a wait.
type Describer interface {
	DescribeInstances(ctx context.Context, ids []string) ([]instance.Reservation, error)
}

// PollerConfig holds Poller settings.
type PollerConfig struct {
	Interval    time.Duration // fixed, no backoff; zero uses DefaultPollInterval
	CallTimeout time.Duration // bounds each describe; zero means none
	Cancel      cancel.Token  // checked once per cycle after the delay
	Observer    Observer
}

// Poller waits for launched instances to leave the pending state.
type Poller struct {
	provider    Describer
	interval    time.Duration
	callTimeout time.Duration
	cancel      cancel.Token
	observer    Observer

	sleep func(ctx context.Context, d time.Duration) error
}

// NewPoller creates a Poller.
func NewPoller(provider Describer, cfg PollerConfig) *Poller {
	p := &Poller{
		provider:    provider,
		interval:    cfg.Interval,
		callTimeout: cfg.CallTimeout,
		cancel:      cfg.Cancel,
		observer:    cfg.Observer,
		sleep:       sleepContext,
	}
	if p.interval <= 0 {
		p.interval = DefaultPollInterval
	}
	if p.cancel == nil {
		p.cancel = cancel.Never
	}
	if p.observer == nil {
		p.observer = nopObserver{}
	}
	return p
}

// Await polls until every instance has left pending or the cancel token
// fires. Each cycle is: describe, test convergence, sleep, check cancel.
// A cancelled wait returns the snapshots of the last describe with
// OutcomeCancelled and issues no further describe.
//
// Describe failures and invariant violations end the wait with an error
// and no partial result. ctx cancellation aborts the wait with ctx.Err().
func (p *Poller) Await(ctx context.Context, handles []instance.Handle) (instance.Result, error) {
	if len(handles) == 0 {
		return instance.Result{}, ErrNoHandles
	}
	ids := instance.IDs(handles)

	for cycle := 1; ; cycle++ {
		snapshots, err := p.describe(ctx, ids)
		if err != nil {
			return instance.Result{}, err
		}
		p.observer.Polled(cycle, snapshots)

		pending := countPending(snapshots)
		log.Debug().Ctx(ctx).
			Int("cycle", cycle).
			Int("pending", pending).
			Int("instances", len(snapshots)).
			Msg("poll complete")

		if instance.AllLeftPending(snapshots) {
			return instance.Result{
				Outcome:   instance.OutcomeConverged,
				Cycles:    cycle,
				Snapshots: snapshots,
			}, nil
		}

		if err := p.sleep(ctx, p.interval); err != nil {
			return instance.Result{}, fmt.Errorf("wait for instances: %w", err)
		}

		if p.cancel.Cancelled() {
			log.Info().Ctx(ctx).Int("cycle", cycle).Int("pending", pending).Msg("wait cancelled by operator")
			return instance.Result{
				Outcome:   instance.OutcomeCancelled,
				Cycles:    cycle,
				Snapshots: snapshots,
			}, nil
		}
	}
}

func (p *Poller) describe(ctx context.Context, ids []string) ([]instance.Snapshot, error) {
	callCtx, cancel := callContext(ctx, p.callTimeout)
	defer cancel()

	reservations, err := p.provider.DescribeInstances(callCtx, ids)
	if err != nil {
		return nil, err
	}
	return collect(reservations, ids)
}

// collect checks the single-reservation invariant and returns snapshots in
// the order of ids.
func collect(reservations []instance.Reservation, ids []string) ([]instance.Snapshot, error) {
	switch {
	case len(reservations) == 0:
		return nil, &InvariantError{Err: ErrNoReservation}
	case len(reservations) > 1:
		return nil, &InvariantError{Err: ErrMultipleReservations, Detail: fmt.Sprintf("got %d", len(reservations))}
	}

	got := reservations[0].Instances
	if len(got) != len(ids) {
		return nil, &InvariantError{
			Err:    ErrInstanceCountMismatch,
			Detail: fmt.Sprintf("got %d, want %d", len(got), len(ids)),
		}
	}

	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	byID := make(map[string]instance.Snapshot, len(got))
	for _, s := range got {
		if !wanted[s.InstanceID] {
			return nil, &InvariantError{Err: ErrUnexpectedInstance, Detail: s.InstanceID}
		}
		byID[s.InstanceID] = s
	}

	ordered := make([]instance.Snapshot, 0, len(ids))
	for _, id := range ids {
		s, ok := byID[id]
		if !ok {
			return nil, &InvariantError{Err: ErrInstanceCountMismatch, Detail: "missing " + id}
		}
		ordered = append(ordered, s)
	}
	return ordered, nil
}

func countPending(snapshots []instance.Snapshot) int {
	n := 0
	for _, s := range snapshots {
		if !s.LeftPending() {
			n++
		}
	}
	return n
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
