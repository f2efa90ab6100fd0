package authz

import "context"

type contextKey struct{ name string }

var subjectKey = contextKey{"subject"}

// WithSubject returns a context carrying the authenticated subject.
func WithSubject(ctx context.Context, s Subject) context.Context {
	return context.WithValue(ctx, subjectKey, s)
}

// SubjectFrom returns the subject set by WithSubject and true, or the zero Subject and false.
func SubjectFrom(ctx context.Context) (Subject, bool) {
	s, ok := ctx.Value(subjectKey).(Subject)
	return s, ok && s.UserID != ""
}
