package plugin

import (
	"errors"
	"fmt"
)

// Provider operations, used as ProviderError.Op.
const (
	OpRunInstances      = "run_instances"
	OpDescribeInstances = "describe_instances"
)

// ProviderError reports a failed provider call. It is never retried.
type ProviderError struct {
	Provider string
	Op       string
	Code     string // provider error code, empty when unknown
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s %s: %s: %v", e.Provider, e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsProviderError reports whether err wraps a ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
