// Package notify delivers short-lived user notifications.
package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// Severity of a toast.
type Severity int

const (
	Info Severity = iota
	Success
	Error
)

func (s Severity) String() string {
	switch s {
	case Success:
		return "success"
	case Error:
		return "error"
	default:
		return "info"
	}
}

// Toast is a transient message. It is never persisted.
type Toast struct {
	Severity Severity
	Message  string
}

// Notifier delivers toasts to whoever is looking at the view.
type Notifier interface {
	Notify(ctx context.Context, t Toast)
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, t Toast)

func (f Func) Notify(ctx context.Context, t Toast) { f(ctx, t) }

// Log writes toasts to a logger.
type Log struct {
	Logger zerolog.Logger
}

func (l Log) Notify(_ context.Context, t Toast) {
	ev := l.Logger.Info()
	if t.Severity == Error {
		ev = l.Logger.Error()
	}
	ev.Str("severity", t.Severity.String()).Msg(t.Message)
}

// Recorder keeps toasts in memory.
type Recorder struct {
	Toasts []Toast
}

func (r *Recorder) Notify(_ context.Context, t Toast) {
	r.Toasts = append(r.Toasts, t)
}

// Last returns the most recent toast.
func (r *Recorder) Last() (Toast, bool) {
	if len(r.Toasts) == 0 {
		return Toast{}, false
	}
	return r.Toasts[len(r.Toasts)-1], true
}
