// Package report prints launch progress and final instance state.
package report

import (
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/yairfalse/ec2launch/pkg/instance"
)

// Console writes operator-facing progress: one notice per created
// instance and one dot per poll cycle that still has pending instances.
type Console struct {
	mu   sync.Mutex
	w    io.Writer
	dots int
}

// NewConsole creates a Console writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// Launched prints the creation notice for one instance.
func (c *Console) Launched(h instance.Handle, s instance.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := s.StateName
	if state == "" {
		state = "pending"
	}
	fmt.Fprintf(c.w, "Created instance %s (%s)\n", h.InstanceID, state)
}

// Polled prints a progress dot while any instance is pending.
func (c *Console) Polled(cycle int, snapshots []instance.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending := 0
	for _, s := range snapshots {
		if !s.LeftPending() {
			pending++
		}
	}
	log.Debug().Int("cycle", cycle).Int("pending", pending).Msg("progress")

	if pending == 0 {
		return
	}
	if c.dots == 0 {
		fmt.Fprint(c.w, "Waiting for instances")
	}
	fmt.Fprint(c.w, ".")
	c.dots++
}

// Done terminates an open progress line. Call it once the wait is over
// and the terminal is back in its normal mode.
func (c *Console) Done() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dots > 0 {
		fmt.Fprintln(c.w)
		c.dots = 0
	}
}
