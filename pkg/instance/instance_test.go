package instance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLeftPending(t *testing.T) {
	tests := []struct {
		name string
		code int32
		want bool
	}{
		{"pending", 0, false},
		{"running", 16, true},
		{"shutting-down", 32, true},
		{"terminated", 48, true},
		{"stopped", 80, true},
		{"high byte only", 0x100, false},
		{"high byte with running", 0x110, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LeftPending(tt.code))
		})
	}
}

func TestAllLeftPending(t *testing.T) {
	assert.False(t, AllLeftPending(nil))
	assert.False(t, AllLeftPending([]Snapshot{{StateCode: 0}, {StateCode: 16}}))
	assert.True(t, AllLeftPending([]Snapshot{{StateCode: 16}, {StateCode: 16}}))
	assert.True(t, AllLeftPending([]Snapshot{{StateCode: 16}, {StateCode: 80}}))
}

func TestLaunchSpec_Topology(t *testing.T) {
	flat := LaunchSpec{SecurityGroupIDs: []string{"sg-1"}}
	assert.Equal(t, TopologyFlat, flat.Topology())

	subnet := LaunchSpec{NetworkInterface: &NetworkInterface{SubnetID: "subnet-1"}}
	assert.Equal(t, TopologySubnet, subnet.Topology())
}

func TestIDs(t *testing.T) {
	ids := IDs([]Handle{{InstanceID: "i-1"}, {InstanceID: "i-2"}})
	assert.Equal(t, []string{"i-1", "i-2"}, ids)
	assert.Empty(t, IDs(nil))
}

func TestResult_Converged(t *testing.T) {
	assert.True(t, Result{Outcome: OutcomeConverged}.Converged())
	assert.False(t, Result{Outcome: OutcomeCancelled}.Converged())
}
