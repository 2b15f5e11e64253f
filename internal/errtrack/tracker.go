// Package errtrack reports upstream dependency failures to an error tracker.
package errtrack

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
)

// Tracker captures errors worth a human's attention.
type Tracker interface {
	CaptureError(ctx context.Context, err error, tags map[string]string)
	Flush(timeout time.Duration)
}

// New returns a Sentry tracker, or a no-op tracker when dsn is empty.
func New(dsn, environment string) (Tracker, error) {
	if dsn == "" {
		return Nop{}, nil
	}
	return NewSentry(dsn, environment)
}

// Sentry sends errors to Sentry.
type Sentry struct {
	hub *sentry.Hub
}

// NewSentry initializes the Sentry SDK.
func NewSentry(dsn, environment string) (*Sentry, error) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
	})
	if err != nil {
		return nil, err
	}
	return &Sentry{hub: sentry.CurrentHub()}, nil
}

func (s *Sentry) CaptureError(ctx context.Context, err error, tags map[string]string) {
	hub := s.hub.Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		if userID, ok := tags["user_id"]; ok {
			scope.SetUser(sentry.User{ID: userID})
		}
	})
	hub.CaptureException(err)
}

func (s *Sentry) Flush(timeout time.Duration) {
	s.hub.Flush(timeout)
}

// Nop discards everything.
type Nop struct{}

func (Nop) CaptureError(context.Context, error, map[string]string) {}
func (Nop) Flush(time.Duration)                                    {}
