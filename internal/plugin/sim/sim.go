// Package sim provides an in-memory compute provider. Instances start
// pending and move to running after a fixed number of describe calls.
package sim

import (
	"context"
	"fmt"
	"sync"

	"github.com/yairfalse/ec2launch/internal/plugin"
	"github.com/yairfalse/ec2launch/pkg/instance"
)

// Name is the registry name of the simulated provider.
const Name = "sim"

const (
	codePending = 0
	codeRunning = 16
)

// Config controls simulated behaviour.
type Config struct {
	// PendingCycles is how many describe calls an instance stays pending.
	PendingCycles int

	// RunErr and DescribeErr, when set, fail the matching call.
	RunErr      error
	DescribeErr error
}

type simInstance struct {
	snapshot  instance.Snapshot
	described int
}

// Provider is an in-memory plugin.Provider.
type Provider struct {
	cfg Config

	mu           sync.Mutex
	instances    map[string]*simInstance
	reservations map[string]string // instance id -> reservation id
	nextID       int
	runCalls     int
	describes    int
}

// New creates a simulated provider.
func New(cfg Config) *Provider {
	return &Provider{
		cfg:          cfg,
		instances:    make(map[string]*simInstance),
		reservations: make(map[string]string),
	}
}

// Name returns the plugin identifier.
func (p *Provider) Name() string {
	return Name
}

// RunInstances creates MaxCount pending instances in one reservation.
func (p *Provider) RunInstances(ctx context.Context, spec instance.LaunchSpec) (instance.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return instance.Reservation{}, &plugin.ProviderError{Provider: Name, Op: plugin.OpRunInstances, Err: err}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.runCalls++
	if p.cfg.RunErr != nil {
		return instance.Reservation{}, &plugin.ProviderError{Provider: Name, Op: plugin.OpRunInstances, Err: p.cfg.RunErr}
	}

	count := spec.MaxCount
	if count < 1 {
		count = 1
	}

	p.nextID++
	reservation := instance.Reservation{ID: fmt.Sprintf("r-sim%04d", p.nextID)}

	for i := int32(0); i < count; i++ {
		p.nextID++
		id := fmt.Sprintf("i-sim%08d", p.nextID)
		snap := instance.Snapshot{
			InstanceID:   id,
			StateCode:    codePending,
			StateName:    "pending",
			KeyName:      spec.KeyPairName,
			InstanceType: spec.InstanceType,
		}
		if ni := spec.NetworkInterface; ni != nil {
			snap.SubnetID = ni.SubnetID
			snap.VpcID = "vpc-sim0001"
		}
		p.instances[id] = &simInstance{snapshot: snap}
		p.reservations[id] = reservation.ID
		reservation.Instances = append(reservation.Instances, snap)
	}

	return reservation, nil
}

// DescribeInstances advances each requested instance by one describe.
// Unknown ids fail like a provider not-found error.
func (p *Provider) DescribeInstances(ctx context.Context, ids []string) ([]instance.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, &plugin.ProviderError{Provider: Name, Op: plugin.OpDescribeInstances, Err: err}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.describes++
	if p.cfg.DescribeErr != nil {
		return nil, &plugin.ProviderError{Provider: Name, Op: plugin.OpDescribeInstances, Err: p.cfg.DescribeErr}
	}

	var reservations []instance.Reservation
	index := make(map[string]int)

	for _, id := range ids {
		inst, ok := p.instances[id]
		if !ok {
			return nil, &plugin.ProviderError{
				Provider: Name,
				Op:       plugin.OpDescribeInstances,
				Code:     "InvalidInstanceID.NotFound",
				Err:      fmt.Errorf("instance %s does not exist", id),
			}
		}

		inst.described++
		if inst.described > p.cfg.PendingCycles && inst.snapshot.StateCode == codePending {
			p.start(inst)
		}

		rid := p.reservations[id]
		i, seen := index[rid]
		if !seen {
			i = len(reservations)
			index[rid] = i
			reservations = append(reservations, instance.Reservation{ID: rid})
		}
		reservations[i].Instances = append(reservations[i].Instances, inst.snapshot)
	}

	return reservations, nil
}

func (p *Provider) start(inst *simInstance) {
	n := p.nextID + len(p.instances)
	inst.snapshot.StateCode = codeRunning
	inst.snapshot.StateName = "running"
	inst.snapshot.PublicIP = fmt.Sprintf("198.51.100.%d", n%254+1)
	inst.snapshot.PublicDNS = fmt.Sprintf("ec2-198-51-100-%d.sim.internal", n%254+1)
	inst.snapshot.PrivateIP = fmt.Sprintf("10.0.0.%d", n%254+1)
}

// RunCalls returns the number of RunInstances calls.
func (p *Provider) RunCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runCalls
}

// DescribeCalls returns the number of DescribeInstances calls.
func (p *Provider) DescribeCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.describes
}
