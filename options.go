package intake

import (
	"time"

	"github.com/agencykit/intake/internal/config"
	"github.com/agencykit/intake/pkg/errors"
	"github.com/agencykit/intake/pkg/identity"
	"github.com/agencykit/intake/pkg/notify"
	"github.com/agencykit/intake/pkg/reconcile"
	"github.com/agencykit/intake/pkg/records"
)

// Option is a function that configures an Intake instance.
type Option func(*options) error

// options holds the resolved pipeline configuration.
type options struct {
	resolver          reconcile.ContactResolver
	uploads           records.UploadStore
	sink              notify.Sink
	batchSize         int
	concurrency       int
	batchDelay        time.Duration
	retryDelay        time.Duration
	progressThreshold int
	progressInterval  int
}

// newOptions applies options over the configured defaults and validates the
// result.
func newOptions(opts ...Option) (*options, error) {
	config.Init()
	o := &options{
		batchSize:         config.BatchSize(),
		concurrency:       config.Concurrency(),
		batchDelay:        config.BatchDelay(),
		retryDelay:        config.RetryDelay(),
		progressThreshold: config.ProgressThreshold(),
		progressInterval:  config.ProgressInterval(),
	}

	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	if o.batchSize < 1 {
		return nil, errors.NewValidationError("batch_size", o.batchSize, "must be at least 1")
	}
	if o.concurrency < 1 {
		return nil, errors.NewValidationError("concurrency", o.concurrency, "must be at least 1")
	}
	// The concurrency bound caps simultaneous backend load within a batch;
	// a bound at or above the batch size would make it meaningless.
	if o.concurrency >= o.batchSize && o.batchSize > 1 {
		return nil, errors.NewValidationError("concurrency", o.concurrency, "must be smaller than batch_size")
	}

	return o, nil
}

// WithContactStore enables identity resolution against the given contact
// store, linking records that describe the same person.
func WithContactStore(contacts records.ContactStore) Option {
	return func(o *options) error {
		o.resolver = identity.NewResolver(contacts)
		return nil
	}
}

// WithResolver sets a custom contact resolver.
func WithResolver(resolver reconcile.ContactResolver) Option {
	return func(o *options) error {
		o.resolver = resolver
		return nil
	}
}

// WithUploadStore enables upload provenance records.
func WithUploadStore(uploads records.UploadStore) Option {
	return func(o *options) error {
		o.uploads = uploads
		return nil
	}
}

// WithSink routes notifications through the given sink instead of the log.
func WithSink(sink notify.Sink) Option {
	return func(o *options) error {
		o.sink = sink
		return nil
	}
}

// WithBatchSize sets the number of rows per batch.
func WithBatchSize(n int) Option {
	return func(o *options) error {
		o.batchSize = n
		return nil
	}
}

// WithConcurrency sets the bounded worker count per batch. Must be strictly
// smaller than the batch size.
func WithConcurrency(n int) Option {
	return func(o *options) error {
		o.concurrency = n
		return nil
	}
}

// WithBatchDelay sets the pause between successive batches.
func WithBatchDelay(d time.Duration) Option {
	return func(o *options) error {
		o.batchDelay = d
		return nil
	}
}

// WithRetryDelay sets the pause before each record during the retry pass.
func WithRetryDelay(d time.Duration) Option {
	return func(o *options) error {
		o.retryDelay = d
		return nil
	}
}

// WithProgressThreshold sets the minimum input size for progress
// notifications.
func WithProgressThreshold(n int) Option {
	return func(o *options) error {
		o.progressThreshold = n
		return nil
	}
}

// WithProgressInterval sets how many processed rows separate progress
// notifications.
func WithProgressInterval(n int) Option {
	return func(o *options) error {
		o.progressInterval = n
		return nil
	}
}
