package cancel

import (
	"os"
	"os/signal"
)

// SignalToken latches once one of its signals is received.
type SignalToken struct {
	ch    chan os.Signal
	fired bool
}

// Signal returns a token cancelled by any of sigs. Call Stop when done so
// the signals regain their default behaviour.
func Signal(sigs ...os.Signal) *SignalToken {
	t := newSignalToken(make(chan os.Signal, 1))
	signal.Notify(t.ch, sigs...)
	return t
}

func newSignalToken(ch chan os.Signal) *SignalToken {
	return &SignalToken{ch: ch}
}

// Cancelled reports whether a signal has arrived. It drains at most one
// pending signal and never blocks.
func (s *SignalToken) Cancelled() bool {
	if s.fired {
		return true
	}
	select {
	case <-s.ch:
		s.fired = true
	default:
	}
	return s.fired
}

// Stop releases the signals.
func (s *SignalToken) Stop() {
	signal.Stop(s.ch)
}
