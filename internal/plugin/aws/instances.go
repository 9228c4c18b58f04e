package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/rs/zerolog/log"

	"github.com/yairfalse/ec2launch/internal/plugin"
	"github.com/yairfalse/ec2launch/pkg/instance"
)

// RunInstances submits the launch spec to EC2.
func (p *Plugin) RunInstances(ctx context.Context, spec instance.LaunchSpec) (instance.Reservation, error) {
	output, err := p.ec2Client.RunInstances(ctx, runInstancesInput(spec))
	if err != nil {
		return instance.Reservation{}, p.providerError(plugin.OpRunInstances, err)
	}

	reservation := instance.Reservation{ID: aws.ToString(output.ReservationId)}
	for _, inst := range output.Instances {
		reservation.Instances = append(reservation.Instances, convertInstance(inst))
	}

	log.Debug().
		Str("reservation_id", reservation.ID).
		Int("count", len(reservation.Instances)).
		Str("region", p.region).
		Msg("run instances complete")

	return reservation, nil
}

// DescribeInstances returns the state of exactly the given instances.
// A reservation split across pages is merged back into one entry.
func (p *Plugin) DescribeInstances(ctx context.Context, ids []string) ([]instance.Reservation, error) {
	var reservations []instance.Reservation
	var nextToken *string
	index := make(map[string]int)

	for {
		output, err := p.ec2Client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
			InstanceIds: ids,
			NextToken:   nextToken,
		})
		if err != nil {
			return nil, p.providerError(plugin.OpDescribeInstances, err)
		}

		for _, r := range output.Reservations {
			id := aws.ToString(r.ReservationId)
			i, ok := index[id]
			if !ok {
				i = len(reservations)
				index[id] = i
				reservations = append(reservations, instance.Reservation{ID: id})
			}
			for _, inst := range r.Instances {
				reservations[i].Instances = append(reservations[i].Instances, convertInstance(inst))
			}
		}

		if output.NextToken == nil {
			break
		}
		nextToken = output.NextToken
	}

	return reservations, nil
}

// runInstancesInput maps the spec to the SDK request. Subnet launches carry
// their groups on the interface; EC2 rejects a top-level group list there.
func runInstancesInput(spec instance.LaunchSpec) *ec2.RunInstancesInput {
	input := &ec2.RunInstancesInput{
		ImageId:      aws.String(spec.ImageID),
		InstanceType: ec2types.InstanceType(spec.InstanceType),
		KeyName:      aws.String(spec.KeyPairName),
		MinCount:     aws.Int32(spec.MinCount),
		MaxCount:     aws.Int32(spec.MaxCount),
	}

	if ni := spec.NetworkInterface; ni != nil {
		input.NetworkInterfaces = []ec2types.InstanceNetworkInterfaceSpecification{
			{
				DeviceIndex:              aws.Int32(ni.DeviceIndex),
				SubnetId:                 aws.String(ni.SubnetID),
				Groups:                   append([]string(nil), ni.Groups...),
				AssociatePublicIpAddress: aws.Bool(ni.AssociatePublicIP),
			},
		}
		return input
	}

	input.SecurityGroupIds = append([]string(nil), spec.SecurityGroupIDs...)
	return input
}

func convertInstance(inst ec2types.Instance) instance.Snapshot {
	s := instance.Snapshot{
		InstanceID:   aws.ToString(inst.InstanceId),
		VpcID:        aws.ToString(inst.VpcId),
		PublicIP:     aws.ToString(inst.PublicIpAddress),
		PublicDNS:    aws.ToString(inst.PublicDnsName),
		KeyName:      aws.ToString(inst.KeyName),
		InstanceType: string(inst.InstanceType),
		PrivateIP:    aws.ToString(inst.PrivateIpAddress),
		SubnetID:     aws.ToString(inst.SubnetId),
	}
	if inst.State != nil {
		s.StateCode = aws.ToInt32(inst.State.Code)
		s.StateName = string(inst.State.Name)
	}
	if inst.Placement != nil {
		s.AvailabilityZone = aws.ToString(inst.Placement.AvailabilityZone)
	}
	return s
}
