// Package plugin defines the compute provider interface for ec2launch.
package plugin

import (
	"context"
	"sort"
	"sync"

	"github.com/yairfalse/ec2launch/pkg/instance"
)

// Provider is the interface every compute provider must implement.
// Two calls: submit a launch, describe instances. That's it.
type Provider interface {
	// Name returns the provider identifier (e.g., "aws", "sim").
	Name() string

	// RunInstances submits the launch spec and returns the created
	// reservation with instances in response order.
	RunInstances(ctx context.Context, spec instance.LaunchSpec) (instance.Reservation, error)

	// DescribeInstances returns the current state of exactly the given
	// instance ids, grouped into reservations.
	DescribeInstances(ctx context.Context, ids []string) ([]instance.Reservation, error)
}

// Registry holds registered providers.
var (
	registry = make(map[string]Provider)
	mu       sync.RWMutex
)

// Register adds a provider to the registry.
func Register(p Provider) {
	mu.Lock()
	defer mu.Unlock()
	registry[p.Name()] = p
}

// Get returns a provider by name.
func Get(name string) (Provider, bool) {
	mu.RLock()
	defer mu.RUnlock()
	p, ok := registry[name]
	return p, ok
}

// Names returns all registered provider names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clear removes all providers from the registry. Used for testing.
func Clear() {
	mu.Lock()
	defer mu.Unlock()
	registry = make(map[string]Provider)
}
