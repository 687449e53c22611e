// Package notify routes user-facing pipeline notifications through an
// abstract sink. Notification delivery is never allowed to affect
// reconciliation correctness: the reporter swallows and logs every sink
// failure, including panics.
package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/agencykit/intake/pkg/logging"
)

// Kind is the presentation class of a notification.
type Kind string

const (
	// KindInfo is a neutral status notification.
	KindInfo Kind = "info"
	// KindSuccess is a completion notification with no residual failures.
	KindSuccess Kind = "success"
	// KindWarning is a completion notification that recovered on retry.
	KindWarning Kind = "warning"
	// KindError is a completion notification with residual failures.
	KindError Kind = "error"
)

// Message is a single user-facing notification.
type Message struct {
	Kind  Kind   `json:"kind"`
	Title string `json:"title"`
	Body  string `json:"body,omitempty"`
}

// Sink delivers notifications to wherever users see them.
type Sink interface {
	Notify(ctx context.Context, msg Message) error
}

// LogSink writes notifications to the structured log. It is the default sink
// when callers do not provide one.
type LogSink struct {
	Logger *zerolog.Logger // defaults to the package logger
}

// Notify implements Sink.
func (s *LogSink) Notify(_ context.Context, msg Message) error {
	logger := s.Logger
	if logger == nil {
		logger = logging.Default()
	}

	event := logger.Info()
	if msg.Kind == KindError {
		event = logger.Error()
	} else if msg.Kind == KindWarning {
		event = logger.Warn()
	}
	event.
		Str("kind", string(msg.Kind)).
		Str("title", msg.Title).
		Str("body", msg.Body).
		Msg("Notification")
	return nil
}
