// Package aws implements the EC2 launch provider for ec2launch.
package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog/log"

	"github.com/yairfalse/ec2launch/internal/plugin"
)

// Name is the registry name of the AWS provider.
const Name = "aws"

// Plugin implements plugin.Provider on top of EC2.
type Plugin struct {
	region    string
	accountID string

	// interface for testability
	ec2Client EC2API
}

// Config holds AWS plugin configuration.
type Config struct {
	Region   string
	Profile  string // shared config profile, optional
	Endpoint string // custom EC2 endpoint (e.g. LocalStack), optional

	// MaxAttempts bounds SDK-level attempts per call. 1 disables retries.
	MaxAttempts int
}

// New creates a new AWS plugin. Credentials are resolved by the SDK.
func New(ctx context.Context, cfg Config) (*Plugin, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.MaxAttempts > 0 {
		opts = append(opts, config.WithRetryMaxAttempts(cfg.MaxAttempts))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	ec2Client := ec2.NewFromConfig(awsCfg, func(o *ec2.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	accountID, err := getAccountID(ctx, ec2Client)
	if err != nil {
		log.Warn().Err(err).Str("region", awsCfg.Region).Msg("account lookup failed")
		accountID = "unknown"
	}

	return newPlugin(awsCfg.Region, accountID, ec2Client), nil
}

func newPlugin(region, accountID string, client EC2API) *Plugin {
	return &Plugin{
		region:    region,
		accountID: accountID,
		ec2Client: client,
	}
}

func getAccountID(ctx context.Context, client EC2API) (string, error) {
	output, err := client.DescribeAccountAttributes(ctx, &ec2.DescribeAccountAttributesInput{})
	if err != nil {
		return "", err
	}

	for _, attr := range output.AccountAttributes {
		if aws.ToString(attr.AttributeName) == "account-id" && len(attr.AttributeValues) > 0 {
			return aws.ToString(attr.AttributeValues[0].AttributeValue), nil
		}
	}

	return "unknown", nil
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return Name
}

// Region returns the region the plugin talks to.
func (p *Plugin) Region() string {
	return p.region
}

// AccountID returns the account id resolved at construction.
func (p *Plugin) AccountID() string {
	return p.accountID
}

// providerError wraps an SDK error, keeping the API error code when present.
func (p *Plugin) providerError(op string, err error) error {
	pe := &plugin.ProviderError{Provider: Name, Op: op, Err: err}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		pe.Code = apiErr.ErrorCode()
	}
	return pe
}
