package authz

import (
	"context"
	"testing"
)

func TestOPAChecker_DefaultPolicy(t *testing.T) {
	ctx := context.Background()
	c, err := NewOPAChecker(ctx, "")
	if err != nil {
		t.Fatalf("NewOPAChecker: %v", err)
	}
	if err := c.HealthCheck(ctx); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}

	testCases := []struct {
		name       string
		req        Request
		wantAllow  bool
		wantReason string
	}{
		{"owner", ownerRequest("u1", "u1"), true, ""},
		{"other user", ownerRequest("u1", "u2"), false, "caller does not own the resource"},
		{"anonymous", ownerRequest("", "u2"), false, "authentication required"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := c.Check(ctx, tc.req)
			if err != nil {
				t.Fatalf("Check: %v", err)
			}
			if d.Allow != tc.wantAllow || d.Reason != tc.wantReason {
				t.Errorf("decision = %+v, want allow=%v reason=%q", d, tc.wantAllow, tc.wantReason)
			}
		})
	}
}

func TestOPAChecker_CustomPolicy(t *testing.T) {
	ctx := context.Background()
	policy := `package pushauth.authz

default allow := false

default reason := "reads only"

allow if input.action == "challenge.read"

reason := "" if allow
`
	c, err := NewOPAChecker(ctx, policy)
	if err != nil {
		t.Fatalf("NewOPAChecker: %v", err)
	}
	req := ownerRequest("u1", "u2")
	req.Action = ActionChallengeRead
	if d, err := c.Check(ctx, req); err != nil || !d.Allow {
		t.Errorf("read decision = %+v, %v", d, err)
	}
	req.Action = ActionChallengeCreate
	if d, err := c.Check(ctx, req); err != nil || d.Allow || d.Reason != "reads only" {
		t.Errorf("create decision = %+v, %v", d, err)
	}
	if err := c.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}
}

func TestOPAChecker_HealthCheckFailsClosed(t *testing.T) {
	ctx := context.Background()
	c, err := NewOPAChecker(ctx, "package pushauth.authz\n\ndefault allow := false\n\ndefault reason := \"closed\"\n")
	if err != nil {
		t.Fatalf("NewOPAChecker: %v", err)
	}
	if err := c.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck should fail when the policy denies owners")
	}
}

func TestOPAChecker_InvalidPolicy(t *testing.T) {
	if _, err := NewOPAChecker(context.Background(), "package pushauth.authz\n\nallow if {"); err == nil {
		t.Error("NewOPAChecker should reject a policy that does not parse")
	}
}
