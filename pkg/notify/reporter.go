package notify

import (
	"context"
	"fmt"

	"github.com/agencykit/intake/pkg/logging"
)

// Completion summarizes a finished run for the completion notification.
type Completion struct {
	Created          int
	Updated          int
	Conflicted       int
	Failed           int
	RecoveredOnRetry int
}

// Reporter emits the pipeline's start, progress, and completion
// notifications. Progress is only emitted for inputs at or above Threshold,
// and then only every Interval processed rows, to avoid notification spam.
// No Reporter method ever returns or propagates an error.
type Reporter struct {
	sink      Sink
	threshold int
	interval  int
}

// NewReporter creates a reporter. A nil sink falls back to the log sink.
func NewReporter(sink Sink, threshold, interval int) *Reporter {
	if sink == nil {
		sink = &LogSink{}
	}
	if interval < 1 {
		interval = 1
	}
	return &Reporter{sink: sink, threshold: threshold, interval: interval}
}

// Start announces that a run over total rows has begun.
func (r *Reporter) Start(ctx context.Context, total int) {
	r.send(ctx, Message{
		Kind:  KindInfo,
		Title: "Upload processing started",
		Body:  fmt.Sprintf("Processing %d rows", total),
	})
}

// Progress announces how far a large run has advanced past prev rows to
// processed rows. Small runs are silent, and so are advances that stay
// within one interval. Batch boundaries rarely land on exact interval
// multiples, so the trigger is crossing a multiple, not hitting one.
func (r *Reporter) Progress(ctx context.Context, prev, processed, total int) {
	if total < r.threshold || processed >= total {
		return
	}
	if prev/r.interval == processed/r.interval {
		return
	}
	r.send(ctx, Message{
		Kind:  KindInfo,
		Title: "Upload processing",
		Body:  fmt.Sprintf("%d of %d rows processed", processed, total),
	})
}

// Complete announces the final state of the run. Three presentations:
// fully clean, clean after retry recovery, and residual failures.
func (r *Reporter) Complete(ctx context.Context, c Completion) {
	body := fmt.Sprintf("%d created, %d updated", c.Created, c.Updated)
	if c.Conflicted > 0 {
		body += fmt.Sprintf(", %d flagged for review", c.Conflicted)
	}

	switch {
	case c.Failed > 0:
		r.send(ctx, Message{
			Kind:  KindError,
			Title: "Upload completed with failures",
			Body:  fmt.Sprintf("%s, %d failed", body, c.Failed),
		})
	case c.RecoveredOnRetry > 0:
		r.send(ctx, Message{
			Kind:  KindWarning,
			Title: "Upload completed after retries",
			Body:  fmt.Sprintf("%s, %d recovered on retry", body, c.RecoveredOnRetry),
		})
	default:
		r.send(ctx, Message{
			Kind:  KindSuccess,
			Title: "Upload completed",
			Body:  body,
		})
	}
}

// send delivers a message, converting any sink error or panic into a log
// entry.
func (r *Reporter) send(ctx context.Context, msg Message) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.FromContext(ctx).Error().
				Interface("panic", rec).
				Str("title", msg.Title).
				Msg("Notification sink panicked")
		}
	}()

	if err := r.sink.Notify(ctx, msg); err != nil {
		logging.FromContext(ctx).Warn().
			Err(err).
			Str("title", msg.Title).
			Msg("Notification delivery failed")
	}
}
