package plugin

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/ec2launch/pkg/instance"
)

type mockProvider struct {
	name string
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) RunInstances(_ context.Context, _ instance.LaunchSpec) (instance.Reservation, error) {
	return instance.Reservation{}, nil
}

func (m *mockProvider) DescribeInstances(_ context.Context, _ []string) ([]instance.Reservation, error) {
	return nil, nil
}

func TestRegistry(t *testing.T) {
	Clear()
	defer Clear()

	Register(&mockProvider{name: "sim"})
	Register(&mockProvider{name: "aws"})

	p, ok := Get("aws")
	require.True(t, ok)
	assert.Equal(t, "aws", p.Name())

	_, ok = Get("gcp")
	assert.False(t, ok)

	assert.Equal(t, []string{"aws", "sim"}, Names())
}

func TestRegistry_ReplaceSameName(t *testing.T) {
	Clear()
	defer Clear()

	first := &mockProvider{name: "aws"}
	second := &mockProvider{name: "aws"}
	Register(first)
	Register(second)

	p, ok := Get("aws")
	require.True(t, ok)
	assert.Same(t, second, p)
	assert.Len(t, Names(), 1)
}

func TestClear(t *testing.T) {
	Register(&mockProvider{name: "aws"})
	Clear()
	assert.Empty(t, Names())
}

func TestProviderError(t *testing.T) {
	cause := errors.New("request quota exceeded")
	err := &ProviderError{Provider: "aws", Op: OpRunInstances, Code: "InstanceLimitExceeded", Err: cause}

	assert.Equal(t, "aws run_instances: InstanceLimitExceeded: request quota exceeded", err.Error())
	assert.ErrorIs(t, err, cause)

	wrapped := fmt.Errorf("launch: %w", err)
	assert.True(t, IsProviderError(wrapped))
	assert.False(t, IsProviderError(cause))
}

func TestProviderError_NoCode(t *testing.T) {
	err := &ProviderError{Provider: "sim", Op: OpDescribeInstances, Err: errors.New("boom")}
	assert.Equal(t, "sim describe_instances: boom", err.Error())
}
