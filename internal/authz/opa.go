package authz

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log"

	"github.com/open-policy-agent/opa/v1/rego"
)

const policyQuery = "allow := data.pushauth.authz.allow; reason := data.pushauth.authz.reason"

//go:embed policy/default.rego
var DefaultPolicy string

// OPAChecker evaluates requests against a Rego policy in package pushauth.authz, which must define
// the rules allow (bool) and reason (string).
type OPAChecker struct {
	query rego.PreparedEvalQuery
}

// NewOPAChecker compiles policy, or DefaultPolicy when policy is empty.
func NewOPAChecker(ctx context.Context, policy string) (*OPAChecker, error) {
	if policy == "" {
		policy = DefaultPolicy
	}
	q, err := rego.New(
		rego.Query(policyQuery),
		rego.Module("authz.rego", policy),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("authz: compile policy: %w", err)
	}
	return &OPAChecker{query: q}, nil
}

// Check evaluates the policy. Evaluation failures deny and are returned as errors.
func (c *OPAChecker) Check(ctx context.Context, req Request) (Decision, error) {
	rs, err := c.query.Eval(ctx, rego.EvalInput(buildInput(req)))
	if err != nil {
		log.Printf("authz: evaluation failed: %v", err)
		return Deny("policy evaluation failed"), fmt.Errorf("authz: eval: %w", err)
	}
	if len(rs) == 0 {
		return Deny("policy returned no decision"), nil
	}
	allow, _ := rs[0].Bindings["allow"].(bool)
	reason, _ := rs[0].Bindings["reason"].(string)
	if allow {
		return Allow(), nil
	}
	return Deny(reason), nil
}

// HealthCheck evaluates a fixed owner request and fails unless the policy allows it.
func (c *OPAChecker) HealthCheck(ctx context.Context) error {
	d, err := c.Check(ctx, Request{
		Subject:  Subject{UserID: "health"},
		Action:   ActionChallengeRead,
		Resource: Resource{Type: "challenge", OwnerID: "health"},
	})
	if err != nil {
		return err
	}
	if !d.Allow {
		return errors.New("authz: policy denies an owner request")
	}
	return nil
}

func buildInput(req Request) map[string]any {
	return map[string]any{
		"subject": map[string]any{
			"user_id":    req.Subject.UserID,
			"session_id": req.Subject.SessionID,
		},
		"action": req.Action,
		"resource": map[string]any{
			"type":     req.Resource.Type,
			"id":       req.Resource.ID,
			"owner_id": req.Resource.OwnerID,
		},
	}
}
