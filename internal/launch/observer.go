package launch

import (
	"context"
	"time"

	"github.com/yairfalse/ec2launch/pkg/instance"
)

// Observer receives progress while launching and waiting.
type Observer interface {
	// Launched is called once per created instance, in response order.
	Launched(h instance.Handle, s instance.Snapshot)

	// Polled is called after every successful describe.
	Polled(cycle int, snapshots []instance.Snapshot)
}

type nopObserver struct{}

func (nopObserver) Launched(instance.Handle, instance.Snapshot) {}
func (nopObserver) Polled(int, []instance.Snapshot) {}

// Recorder receives launch telemetry.
type Recorder interface {
	RecordLaunch(ctx context.Context, count int, d time.Duration)
	RecordWait(ctx context.Context, outcome instance.Outcome, cycles int, d time.Duration)
	RecordProviderError(ctx context.Context, op, code string)
}

type nopRecorder struct{}

func (nopRecorder) RecordLaunch(context.Context, int, time.Duration) {}
func (nopRecorder) RecordWait(context.Context, instance.Outcome, int, time.Duration) {}
func (nopRecorder) RecordProviderError(context.Context, string, string) {}

// callContext bounds a single provider call. Zero timeout means unbounded.
func callContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
