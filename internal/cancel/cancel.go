// Package cancel provides non-blocking "stop waiting" tokens.
//
// A Token is checked once per poll cycle. Checking never blocks, so the same
// wait loop works with a terminal keypress, a signal, a deadline or any
// combination of them.
package cancel

import (
	"context"
	"time"
)

// Token reports whether the operator asked to stop waiting.
// Implementations must not block.
type Token interface {
	Cancelled() bool
}

// Func adapts a function to a Token.
type Func func() bool

// Cancelled calls f.
func (f Func) Cancelled() bool {
	return f()
}

// Never is a token that is never cancelled.
var Never Token = Func(func() bool { return false })

// FromContext is cancelled once ctx is done.
func FromContext(ctx context.Context) Token {
	return Func(func() bool {
		select {
		case <-ctx.Done():
			return true
		default:
			return false
		}
	})
}

// Deadline is cancelled once the wall clock passes at.
// A zero time never cancels.
func Deadline(at time.Time) Token {
	return deadline(at, time.Now)
}

func deadline(at time.Time, now func() time.Time) Token {
	if at.IsZero() {
		return Never
	}
	return Func(func() bool {
		return !now().Before(at)
	})
}

// After is Deadline(time.Now().Add(d)). Non-positive d never cancels.
func After(d time.Duration) Token {
	if d <= 0 {
		return Never
	}
	return Deadline(time.Now().Add(d))
}

// Any is cancelled when any of the tokens is. Nil tokens are skipped.
// Every token is checked on each call so latching tokens observe their input.
func Any(tokens ...Token) Token {
	live := make([]Token, 0, len(tokens))
	for _, t := range tokens {
		if t != nil {
			live = append(live, t)
		}
	}
	if len(live) == 0 {
		return Never
	}
	return Func(func() bool {
		cancelled := false
		for _, t := range live {
			if t.Cancelled() {
				cancelled = true
			}
		}
		return cancelled
	})
}
