// Package instance defines the launch and instance model for ec2launch.
package instance

// DefaultInstanceType is used when no instance type is configured.
const DefaultInstanceType = "t2.micro"

// StateCodeMask selects the low byte of a provider state code. The high
// byte is reserved for provider-internal use.
const StateCodeMask = 0xFF

// Topology is the network shape of a launch request.
type Topology string

const (
	TopologyFlat   Topology = "flat"
	TopologySubnet Topology = "subnet"
)

// LaunchParams are the validated operator inputs for a launch.
type LaunchParams struct {
	SecurityGroupID string `json:"security_group_id" yaml:"security_group_id"`
	ImageID         string `json:"image_id" yaml:"image_id"`
	KeyPairName     string `json:"key_pair_name" yaml:"key_pair_name"`
	SubnetID        string `json:"subnet_id,omitempty" yaml:"subnet_id,omitempty"` // empty means flat networking
}

// HasSubnet reports whether the launch targets a specific subnet.
func (p LaunchParams) HasSubnet() bool {
	return p.SubnetID != ""
}

// NetworkInterface describes the primary interface of a subnet-scoped launch.
type NetworkInterface struct {
	DeviceIndex       int32    `json:"device_index" yaml:"device_index"`
	SubnetID          string   `json:"subnet_id" yaml:"subnet_id"`
	Groups            []string `json:"groups" yaml:"groups"`
	AssociatePublicIP bool     `json:"associate_public_ip" yaml:"associate_public_ip"`
}

// LaunchSpec is the provider-agnostic launch request.
// Exactly one of SecurityGroupIDs and NetworkInterface is set.
type LaunchSpec struct {
	InstanceType     string            `json:"instance_type" yaml:"instance_type"`
	ImageID          string            `json:"image_id" yaml:"image_id"`
	KeyPairName      string            `json:"key_pair_name" yaml:"key_pair_name"`
	MinCount         int32             `json:"min_count" yaml:"min_count"`
	MaxCount         int32             `json:"max_count" yaml:"max_count"`
	SecurityGroupIDs []string          `json:"security_group_ids,omitempty" yaml:"security_group_ids,omitempty"`
	NetworkInterface *NetworkInterface `json:"network_interface,omitempty" yaml:"network_interface,omitempty"`
}

// Topology returns the network shape of the spec.
func (s LaunchSpec) Topology() Topology {
	if s.NetworkInterface != nil {
		return TopologySubnet
	}
	return TopologyFlat
}

// Handle addresses a launched instance in later queries.
type Handle struct {
	InstanceID string `json:"instance_id" yaml:"instance_id"`
}

// IDs returns the instance ids of the handles in order.
func IDs(handles []Handle) []string {
	ids := make([]string, len(handles))
	for i, h := range handles {
		ids[i] = h.InstanceID
	}
	return ids
}

// Snapshot is the state of one instance as seen by a single poll.
type Snapshot struct {
	InstanceID       string `json:"instance_id" yaml:"instance_id"`
	StateCode        int32  `json:"state_code" yaml:"state_code"`
	StateName        string `json:"state_name" yaml:"state_name"`
	VpcID            string `json:"vpc_id,omitempty" yaml:"vpc_id,omitempty"`
	PublicIP         string `json:"public_ip,omitempty" yaml:"public_ip,omitempty"`
	PublicDNS        string `json:"public_dns,omitempty" yaml:"public_dns,omitempty"`
	KeyName          string `json:"key_name" yaml:"key_name"`
	InstanceType     string `json:"instance_type,omitempty" yaml:"instance_type,omitempty"`
	AvailabilityZone string `json:"availability_zone,omitempty" yaml:"availability_zone,omitempty"`
	PrivateIP        string `json:"private_ip,omitempty" yaml:"private_ip,omitempty"`
	SubnetID         string `json:"subnet_id,omitempty" yaml:"subnet_id,omitempty"`
}

// LeftPending reports whether the snapshot is out of the pending state.
func (s Snapshot) LeftPending() bool {
	return LeftPending(s.StateCode)
}

// LeftPending reports whether a provider state code is past pending.
func LeftPending(code int32) bool {
	return code&StateCodeMask > 0
}

// AllLeftPending reports whether every snapshot has left pending.
// An empty set has not converged.
func AllLeftPending(snapshots []Snapshot) bool {
	if len(snapshots) == 0 {
		return false
	}
	for _, s := range snapshots {
		if !s.LeftPending() {
			return false
		}
	}
	return true
}

// Reservation groups instances the way the provider returns them.
type Reservation struct {
	ID        string
	Instances []Snapshot
}

// Outcome tags how a wait ended.
type Outcome string

const (
	OutcomeConverged Outcome = "converged"
	OutcomeCancelled Outcome = "cancelled"
)

// Result holds the final state reported to the operator.
type Result struct {
	Outcome   Outcome    `json:"outcome" yaml:"outcome"`
	Cycles    int        `json:"cycles" yaml:"cycles"`
	Snapshots []Snapshot `json:"instances" yaml:"instances"`
}

// Converged reports whether every instance left pending before the wait ended.
func (r Result) Converged() bool {
	return r.Outcome == OutcomeConverged
}
