// Package params turns command-line flags into validated launch parameters.
package params

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"

	"github.com/yairfalse/ec2launch/pkg/instance"
)

// Flag names of the four launch inputs.
const (
	KeyGroupID     = "group-id"
	KeyAMIID       = "ami-id"
	KeyKeyPairName = "keypair-name"
	KeySubnetID    = "subnet-id"
)

var keys = []string{KeyGroupID, KeyAMIID, KeyKeyPairName, KeySubnetID}

var (
	validate = newValidator()

	prefixes = map[string]string{
		KeyGroupID:  "sg-",
		KeyAMIID:    "ami-",
		KeySubnetID: "subnet-",
	}
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("flag")
	})
	return v
}

// Values is an immutable key to value mapping of the launch inputs.
type Values struct {
	m map[string]string
}

// NewValues copies m into a Values. Surrounding whitespace is trimmed.
func NewValues(m map[string]string) Values {
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = strings.TrimSpace(v)
	}
	return Values{m: c}
}

// FromFlags collects the launch inputs that were set on fs.
func FromFlags(fs *pflag.FlagSet) Values {
	m := make(map[string]string)
	for _, key := range keys {
		f := fs.Lookup(key)
		if f == nil || !f.Changed {
			continue
		}
		m[key] = f.Value.String()
	}
	return NewValues(m)
}

// Get returns the value for key and whether it was set.
func (v Values) Get(key string) (string, bool) {
	s, ok := v.m[key]
	return s, ok
}

type input struct {
	GroupID  string `flag:"group-id" validate:"required,startswith=sg-,gt=3"`
	ImageID  string `flag:"ami-id" validate:"required,startswith=ami-,gt=4"`
	KeyPair  string `flag:"keypair-name" validate:"required"`
	SubnetID string `flag:"subnet-id" validate:"omitempty,startswith=subnet-,gt=7"`
}

// Validate checks presence and shape of the inputs and returns the launch
// parameters. Every problem is reported in a single *ValidationError.
func Validate(v Values) (instance.LaunchParams, error) {
	in := input{}
	in.GroupID, _ = v.Get(KeyGroupID)
	in.ImageID, _ = v.Get(KeyAMIID)
	in.KeyPair, _ = v.Get(KeyKeyPairName)
	in.SubnetID, _ = v.Get(KeySubnetID)

	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return instance.LaunchParams{}, fmt.Errorf("validate params: %w", err)
		}
		return instance.LaunchParams{}, newValidationError(verrs)
	}

	return instance.LaunchParams{
		SecurityGroupID: in.GroupID,
		ImageID:         in.ImageID,
		KeyPairName:     in.KeyPair,
		SubnetID:        in.SubnetID,
	}, nil
}

// Problem is a single invalid flag.
type Problem struct {
	Flag    string
	Message string
}

// ValidationError reports malformed or missing launch inputs.
type ValidationError struct {
	Problems []Problem

	hint string
}

func newValidationError(verrs validator.ValidationErrors) *ValidationError {
	e := &ValidationError{}
	for _, fe := range verrs {
		e.Problems = append(e.Problems, Problem{
			Flag:    fe.Field(),
			Message: problemMessage(fe),
		})
	}
	return e
}

func problemMessage(fe validator.FieldError) string {
	name := "--" + fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", name)
	case "startswith":
		return fmt.Sprintf("%s must start with %q (got %q)", name, fe.Param(), fe.Value())
	case "gt":
		return fmt.Sprintf("%s must carry an id after the %q prefix", name, prefixes[fe.Field()])
	default:
		return fmt.Sprintf("%s is invalid (%s)", name, fe.Tag())
	}
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Message
	}
	return "invalid arguments: " + strings.Join(msgs, "; ")
}

// Guidance is the help text printed with a validation failure.
func (e *ValidationError) Guidance() string {
	if e.hint != "" {
		return e.hint
	}
	return `Required: -g/--group-id sg-..., -a/--ami-id ami-..., -k/--keypair-name NAME
Optional: -s/--subnet-id subnet-... (launches into the subnet with a public IP)`
}

// ValidateInstanceIDs checks ids given to the wait command and returns
// their handles in order.
func ValidateInstanceIDs(ids []string) ([]instance.Handle, error) {
	verr := &ValidationError{hint: "Usage: wait i-... [i-...] (ids from a single launch)"}
	if len(ids) == 0 {
		verr.Problems = append(verr.Problems, Problem{Flag: "instance-id", Message: "at least one instance id is required"})
		return nil, verr
	}

	handles := make([]instance.Handle, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if err := validate.Var(id, "startswith=i-,gt=2"); err != nil {
			verr.Problems = append(verr.Problems, Problem{
				Flag:    "instance-id",
				Message: fmt.Sprintf("instance id %q must start with \"i-\"", raw),
			})
			continue
		}
		if seen[id] {
			verr.Problems = append(verr.Problems, Problem{
				Flag:    "instance-id",
				Message: fmt.Sprintf("instance id %q given twice", id),
			})
			continue
		}
		seen[id] = true
		handles = append(handles, instance.Handle{InstanceID: id})
	}

	if len(verr.Problems) > 0 {
		return nil, verr
	}
	return handles, nil
}
