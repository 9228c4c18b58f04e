package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/yairfalse/ec2launch/pkg/instance"
)

func sampleResult() instance.Result {
	return instance.Result{
		Outcome: instance.OutcomeConverged,
		Cycles:  2,
		Snapshots: []instance.Snapshot{
			{
				InstanceID: "i-0abc",
				StateCode:  16,
				StateName:  "running",
				VpcID:      "vpc-1",
				PublicIP:   "198.51.100.7",
				PublicDNS:  "ec2-198-51-100-7.compute.amazonaws.com",
				KeyName:    "ops",
			},
			{
				InstanceID: "i-0def",
				StateCode:  16,
				StateName:  "running",
				KeyName:    "ops",
			},
		},
	}
}

func TestConsole_Progress(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	c.Launched(instance.Handle{InstanceID: "i-1"}, instance.Snapshot{InstanceID: "i-1", StateName: "pending"})
	c.Polled(1, []instance.Snapshot{{InstanceID: "i-1", StateCode: 0}})
	c.Polled(2, []instance.Snapshot{{InstanceID: "i-1", StateCode: 0}})
	c.Polled(3, []instance.Snapshot{{InstanceID: "i-1", StateCode: 16}})
	c.Done()

	assert.Equal(t, "Created instance i-1 (pending)\nWaiting for instances..\n", buf.String())
}

func TestConsole_ImmediateConvergence(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	c.Polled(1, []instance.Snapshot{{InstanceID: "i-1", StateCode: 16}})
	c.Done()

	assert.Empty(t, buf.String())
}

func TestConsole_DoneEndsLine(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	c.Polled(1, []instance.Snapshot{{InstanceID: "i-1"}})
	c.Done()
	c.Done()

	assert.Equal(t, "Waiting for instances.\n", buf.String())
}

func TestRender_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleResult(), FormatTable))

	out := buf.String()
	for _, want := range []string{
		"INSTANCE ID", "VPC ID", "PUBLIC DNS", "KEY NAME",
		"i-0abc", "vpc-1", "running", "198.51.100.7", "ec2-198-51-100-7.compute.amazonaws.com", "ops",
		"i-0def",
		"converged after 2",
	} {
		assert.Contains(t, out, want)
	}
}

func TestRender_TableCancelled(t *testing.T) {
	result := sampleResult()
	result.Outcome = instance.OutcomeCancelled

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, result, ""))
	assert.Contains(t, buf.String(), "cancelled after 2")
}

func TestRender_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleResult(), FormatJSON))

	var got struct {
		Outcome   string `json:"outcome"`
		Instances []struct {
			InstanceID string `json:"instance_id"`
			VpcID      string `json:"vpc_id"`
			KeyName    string `json:"key_name"`
		} `json:"instances"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "converged", got.Outcome)
	require.Len(t, got.Instances, 2)
	assert.Equal(t, "vpc-1", got.Instances[0].VpcID)
	assert.Empty(t, got.Instances[1].VpcID)
	assert.Equal(t, "ops", got.Instances[1].KeyName)
}

func TestRender_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleResult(), FormatYAML))

	var got map[string]interface{}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "converged", got["outcome"])
	assert.Equal(t, 2, got["cycles"])
	assert.Len(t, got["instances"], 2)
}

func TestRender_UnknownFormat(t *testing.T) {
	err := Render(&bytes.Buffer{}, sampleResult(), "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestRenderSpec(t *testing.T) {
	spec := instance.LaunchSpec{
		InstanceType: "t2.micro",
		ImageID:      "ami-1",
		KeyPairName:  "ops",
		MinCount:     1,
		MaxCount:     1,
		NetworkInterface: &instance.NetworkInterface{
			SubnetID:          "subnet-1",
			Groups:            []string{"sg-1"},
			AssociatePublicIP: true,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, RenderSpec(&buf, spec, FormatTable))
	assert.Contains(t, buf.String(), "instance_type: t2.micro")
	assert.Contains(t, buf.String(), "subnet_id: subnet-1")
	assert.NotContains(t, buf.String(), "security_group_ids")

	buf.Reset()
	require.NoError(t, RenderSpec(&buf, spec, FormatJSON))
	var got instance.LaunchSpec
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, spec, got)

	assert.Error(t, RenderSpec(&buf, spec, "xml"))
}
