// Package authz holds the explicit access checks handlers run before calling the registry or the
// challenge manager. Checks compose with All; the first denial wins.
package authz

import (
	"context"
	"errors"
)

// Actions checked by the HTTP handlers.
const (
	ActionChallengeCreate = "challenge.create"
	ActionChallengeRead   = "challenge.read"
	ActionDeviceLink      = "device.link"
	ActionDeviceRead      = "device.read"
	ActionDeviceUpdate    = "device.update"
)

var (
	// ErrUnauthenticated is returned by Enforce when the request carries no subject.
	ErrUnauthenticated = errors.New("authz: authentication required")
	// ErrForbidden matches every *DeniedError under errors.Is.
	ErrForbidden = errors.New("authz: permission denied")
)

// DeniedError carries the reason a check denied the request.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string {
	if e.Reason == "" {
		return ErrForbidden.Error()
	}
	return ErrForbidden.Error() + ": " + e.Reason
}

func (e *DeniedError) Is(target error) bool { return target == ErrForbidden }

// Subject is the authenticated caller, taken from a validated access token.
type Subject struct {
	UserID    string
	SessionID string
}

// Resource identifies what is being acted on. OwnerID is the user the resource belongs to.
type Resource struct {
	Type    string
	ID      string
	OwnerID string
}

// Request is the input to a check.
type Request struct {
	Subject  Subject
	Action   string
	Resource Resource
}

// Decision is the outcome of a check.
type Decision struct {
	Allow  bool
	Reason string
}

// Allow returns an allowing decision.
func Allow() Decision { return Decision{Allow: true} }

// Deny returns a denying decision with reason.
func Deny(reason string) Decision { return Decision{Reason: reason} }

// Checker decides whether a request is permitted.
type Checker interface {
	Check(ctx context.Context, req Request) (Decision, error)
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context, req Request) (Decision, error)

func (f CheckerFunc) Check(ctx context.Context, req Request) (Decision, error) { return f(ctx, req) }

// All returns a Checker that allows only when every checker allows. Evaluation stops at the first
// denial or error.
func All(checkers ...Checker) Checker {
	return CheckerFunc(func(ctx context.Context, req Request) (Decision, error) {
		for _, c := range checkers {
			d, err := c.Check(ctx, req)
			if err != nil || !d.Allow {
				return d, err
			}
		}
		return Allow(), nil
	})
}

// RequireAuthenticated allows any request with a subject.
var RequireAuthenticated Checker = CheckerFunc(func(_ context.Context, req Request) (Decision, error) {
	if req.Subject.UserID == "" {
		return Deny("authentication required"), nil
	}
	return Allow(), nil
})

// RequireOwner allows a request whose subject owns the resource.
var RequireOwner Checker = CheckerFunc(func(_ context.Context, req Request) (Decision, error) {
	if req.Resource.OwnerID == "" || req.Subject.UserID != req.Resource.OwnerID {
		return Deny("caller does not own " + req.Resource.Type), nil
	}
	return Allow(), nil
})

// Enforce runs c for req and converts the outcome into an error: ErrUnauthenticated when req has no
// subject, a *DeniedError on denial, or the checker's own error.
func Enforce(ctx context.Context, c Checker, req Request) error {
	if req.Subject.UserID == "" {
		return ErrUnauthenticated
	}
	d, err := c.Check(ctx, req)
	if err != nil {
		return err
	}
	if !d.Allow {
		return &DeniedError{Reason: d.Reason}
	}
	return nil
}
