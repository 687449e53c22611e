// Package intake reconciles bulk uploads of lead and renewal rows against a
// keyed record store. Each row is matched by its natural business key,
// inserted when new, merged field-by-field when known, and flagged for human
// review when two sources claim the same record. Rows are processed in fixed
// batches under a bounded concurrency limit, with a single sequential retry
// pass over failures and progress reporting through a pluggable sink.
package intake

import (
	"github.com/agencykit/intake/pkg/errors"
	"github.com/agencykit/intake/pkg/notify"
	"github.com/agencykit/intake/pkg/reconcile"
	"github.com/agencykit/intake/pkg/records"
)

// Intake runs upload reconciliation against a keyed store. Create one with
// New and reuse it across runs; it is safe for concurrent use.
type Intake struct {
	store      records.Store
	uploads    records.UploadStore
	reconciler *reconcile.Reconciler
	reporter   *notify.Reporter
	hooks      *hooks
	options    *options
}

// New creates an Intake pipeline over the given store.
func New(store records.Store, opts ...Option) (*Intake, error) {
	if store == nil {
		return nil, &errors.ValidationError{
			Field:   "store",
			Message: "cannot be nil",
		}
	}

	options, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}

	return &Intake{
		store:      store,
		uploads:    options.uploads,
		reconciler: reconcile.New(store, options.resolver),
		reporter:   notify.NewReporter(options.sink, options.progressThreshold, options.progressInterval),
		hooks:      newHooks(),
		options:    options,
	}, nil
}
