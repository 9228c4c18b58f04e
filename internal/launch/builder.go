package launch

import "github.com/yairfalse/ec2launch/pkg/instance"

// BuildRequest maps validated parameters to a launch spec. It is pure:
// the same input always yields an equal spec.
//
// With a subnet the security group rides on a single network interface
// (device 0, public IP on) and no top-level group list is set. Without one
// the group goes on the top-level list and no interface is built.
func BuildRequest(p instance.LaunchParams, instanceType string) instance.LaunchSpec {
	if instanceType == "" {
		instanceType = instance.DefaultInstanceType
	}

	spec := instance.LaunchSpec{
		InstanceType: instanceType,
		ImageID:      p.ImageID,
		KeyPairName:  p.KeyPairName,
		MinCount:     1,
		MaxCount:     1,
	}

	if p.HasSubnet() {
		spec.NetworkInterface = &instance.NetworkInterface{
			DeviceIndex:       0,
			SubnetID:          p.SubnetID,
			Groups:            []string{p.SecurityGroupID},
			AssociatePublicIP: true,
		}
		return spec
	}

	spec.SecurityGroupIDs = []string{p.SecurityGroupID}
	return spec
}
