package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/ec2launch/internal/plugin"
)

func TestPluginName(t *testing.T) {
	p := &Plugin{}
	assert.Equal(t, "aws", p.Name())
}

func TestPlugin_ImplementsProvider(t *testing.T) {
	var _ plugin.Provider = (*Plugin)(nil)
}

func TestNewPlugin(t *testing.T) {
	p := newPlugin("eu-west-1", "987654321098", &mockEC2Client{})

	assert.Equal(t, "eu-west-1", p.Region())
	assert.Equal(t, "987654321098", p.AccountID())
}

func TestGetAccountID(t *testing.T) {
	mock := &mockEC2Client{
		describeAccountAttrsFunc: func(_ context.Context, _ *ec2.DescribeAccountAttributesInput, _ ...func(*ec2.Options)) (*ec2.DescribeAccountAttributesOutput, error) {
			return &ec2.DescribeAccountAttributesOutput{
				AccountAttributes: []types.AccountAttribute{
					{AttributeName: aws.String("max-instances")},
					{
						AttributeName:   aws.String("account-id"),
						AttributeValues: []types.AccountAttributeValue{{AttributeValue: aws.String("123456789012")}},
					},
				},
			}, nil
		},
	}

	id, err := getAccountID(context.Background(), mock)
	require.NoError(t, err)
	assert.Equal(t, "123456789012", id)
}

func TestGetAccountID_Missing(t *testing.T) {
	id, err := getAccountID(context.Background(), &mockEC2Client{})
	require.NoError(t, err)
	assert.Equal(t, "unknown", id)
}

func TestGetAccountID_Error(t *testing.T) {
	mock := &mockEC2Client{
		describeAccountAttrsFunc: func(_ context.Context, _ *ec2.DescribeAccountAttributesInput, _ ...func(*ec2.Options)) (*ec2.DescribeAccountAttributesOutput, error) {
			return nil, errors.New("access denied")
		},
	}

	_, err := getAccountID(context.Background(), mock)
	require.Error(t, err)
}
