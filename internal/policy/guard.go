// Package policy gates launches with OPA/Rego policies.
//
// Policies live in package ec2launch and contribute messages to the deny
// set:
//
//	package ec2launch
//
//	deny contains msg if {
//		input.spec.instance_type != "t2.micro"
//		msg := "only t2.micro may be launched"
//	}
//
// The input document is {"params": ..., "spec": ..., "region": ...}.
package policy

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/ec2launch/pkg/instance"
)

// Query is the rule every policy module contributes to.
const Query = "data.ec2launch.deny"

// Module is a named Rego source.
type Module struct {
	Name   string
	Source string
}

// Input is the document policies are evaluated against.
type Input struct {
	Params instance.LaunchParams `json:"params"`
	Spec   instance.LaunchSpec   `json:"spec"`
	Region string                `json:"region"`
}

// DeniedError reports a launch rejected by policy.
type DeniedError struct {
	Reasons []string
}

func (e *DeniedError) Error() string {
	return "launch denied by policy: " + strings.Join(e.Reasons, "; ")
}

// Guard evaluates deny rules before a launch is submitted.
type Guard struct {
	region  string
	modules []string
	query   *rego.PreparedEvalQuery // nil when no modules are loaded
	tracer  trace.Tracer
}

// New compiles modules into a Guard. With no modules every launch is
// allowed.
func New(ctx context.Context, region string, modules ...Module) (*Guard, error) {
	g := &Guard{
		region: region,
		tracer: otel.Tracer("ec2launch-policy"),
	}
	if len(modules) == 0 {
		return g, nil
	}

	opts := []func(*rego.Rego){rego.Query(Query)}
	for _, m := range modules {
		opts = append(opts, rego.Module(m.Name, m.Source))
		g.modules = append(g.modules, m.Name)
	}

	prepared, err := rego.New(opts...).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile policies: %w", err)
	}
	g.query = &prepared

	log.Debug().Strs("policies", g.modules).Msg("policies loaded")
	return g, nil
}

// Check returns a *DeniedError when any policy denies the launch.
func (g *Guard) Check(ctx context.Context, params instance.LaunchParams, spec instance.LaunchSpec) error {
	if g.query == nil {
		return nil
	}

	ctx, span := g.tracer.Start(ctx, "policy.check",
		trace.WithAttributes(attribute.Int("policy.modules", len(g.modules))))
	defer span.End()

	input := Input{Params: params, Spec: spec, Region: g.region}
	results, err := g.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("evaluate policies: %w", err)
	}

	reasons := denyReasons(results)
	span.SetAttributes(attribute.Int("policy.denials", len(reasons)))
	if len(reasons) == 0 {
		return nil
	}

	log.Warn().Strs("reasons", reasons).Msg("launch denied by policy")
	return &DeniedError{Reasons: reasons}
}

// denyReasons flattens the deny set. OPA returns sets as []interface{}.
func denyReasons(results rego.ResultSet) []string {
	var reasons []string
	for _, res := range results {
		for _, expr := range res.Expressions {
			values, ok := expr.Value.([]interface{})
			if !ok {
				continue
			}
			for _, v := range values {
				if s, ok := v.(string); ok {
					reasons = append(reasons, s)
				} else {
					reasons = append(reasons, fmt.Sprint(v))
				}
			}
		}
	}
	sort.Strings(reasons)
	return reasons
}
