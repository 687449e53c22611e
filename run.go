package intake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agencykit/intake/pkg/errors"
	"github.com/agencykit/intake/pkg/logging"
	"github.com/agencykit/intake/pkg/normalize"
	"github.com/agencykit/intake/pkg/notify"
	"github.com/agencykit/intake/pkg/reconcile"
	"github.com/agencykit/intake/pkg/records"
)

// RunSummary aggregates per-row outcomes for a completed run.
type RunSummary struct {
	Total            int
	Created          int
	Updated          int
	Conflicted       int
	Failed           int
	RecoveredOnRetry int

	// Failures lists rows that failed both the batch pass and the retry
	// pass, in original row order.
	Failures []Failure

	UploadID string
	Duration time.Duration
}

// Failure describes a row that could not be reconciled.
type Failure struct {
	Index   int
	Key     string
	Message string
}

// rowResult holds the per-row outcome of the batch pass.
type rowResult struct {
	outcome reconcile.Outcome
	err     error
}

// Run processes the rows end to end: provenance, batching, bounded fan-out,
// retry pass, and reporting. Individual row failures never abort the run;
// only precondition failures do.
func (in *Intake) Run(ctx context.Context, rows []records.ParsedRow, uctx records.UploadContext) (*RunSummary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(rows) == 0 {
		return nil, errors.ErrEmptyInput
	}
	if uctx.TenantID == "" {
		return nil, errors.NewValidationError("tenant_id", uctx.TenantID, "cannot be empty")
	}

	ctx = logging.WithRunID(ctx, uuid.New().String())
	logger := logging.FromContext(ctx)
	start := time.Now()

	summary := &RunSummary{Total: len(rows)}
	summary.UploadID = in.recordUpload(ctx, rows, uctx)

	logger.Info().
		Str("tenant_id", uctx.TenantID).
		Str("source_id", uctx.SourceID).
		Int("rows", len(rows)).
		Msg("Starting upload run")
	in.reporter.Start(ctx, len(rows))

	// Rows sharing a natural key are grouped so duplicates within one upload
	// serialize through a single worker while distinct keys parallelize.
	groups := groupRows(rows)
	batches := partitionGroups(groups, in.options.batchSize)

	results := make([]rowResult, len(rows))
	processed := 0
	for i, batch := range batches {
		in.runBatch(ctx, batch, rows, uctx, results)

		prev := processed
		processed += rowCount(batch)
		in.reporter.Progress(ctx, prev, processed, len(rows))

		if i < len(batches)-1 {
			if err := sleepCtx(ctx, in.options.batchDelay); err != nil {
				return nil, fmt.Errorf("%w: %v", errors.ErrCanceled, err)
			}
		}
	}

	// First-pass tally; failures keep their original order for the retry pass.
	var failed []int
	for i, res := range results {
		if res.err != nil {
			logger.Error().
				Err(res.err).
				Int("row", i).
				Str("key", res.outcome.Key).
				Msg("Row failed, scheduling retry")
			failed = append(failed, i)
			continue
		}
		summary.tally(res.outcome)
		in.hooks.trigger(res.outcome)
	}

	if err := in.retryFailed(ctx, rows, uctx, failed, summary); err != nil {
		return nil, err
	}

	summary.Duration = time.Since(start)
	in.reporter.Complete(ctx, notify.Completion{
		Created:          summary.Created,
		Updated:          summary.Updated,
		Conflicted:       summary.Conflicted,
		Failed:           summary.Failed,
		RecoveredOnRetry: summary.RecoveredOnRetry,
	})

	logger.Info().
		Int("created", summary.Created).
		Int("updated", summary.Updated).
		Int("conflicted", summary.Conflicted).
		Int("failed", summary.Failed).
		Int("recovered", summary.RecoveredOnRetry).
		Dur("duration", summary.Duration).
		Msg("Upload run complete")

	return summary, nil
}

// RunDetached starts a fire-and-forget run on its own context. The run
// continues to completion regardless of the caller's lifetime; notifications
// are its only user-visible dependency.
func (in *Intake) RunDetached(rows []records.ParsedRow, uctx records.UploadContext) {
	go func() {
		if _, err := in.Run(context.Background(), rows, uctx); err != nil {
			logging.Error().
				Err(err).
				Str("tenant_id", uctx.TenantID).
				Msg("Detached upload run failed")
		}
	}()
}

// runBatch fans the batch's key groups out to workers under the concurrency
// bound, awaiting the full group before returning. Each worker owns a
// disjoint set of result slots, so no locking is needed on results.
func (in *Intake) runBatch(ctx context.Context, batch []keyGroup, rows []records.ParsedRow, uctx records.UploadContext, results []rowResult) {
	sem := make(chan struct{}, in.options.concurrency)
	var wg sync.WaitGroup

	for _, group := range batch {
		wg.Add(1)
		go func(group keyGroup) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			for _, idx := range group.indices {
				outcome, err := in.runRow(ctx, rows[idx], uctx)
				results[idx] = rowResult{outcome: outcome, err: err}
			}
		}(group)
	}

	wg.Wait()
}

// runRow reconciles one row, converting panics into row failures so a bad
// row can never take down sibling workers.
func (in *Intake) runRow(ctx context.Context, row records.ParsedRow, uctx records.UploadContext) (outcome reconcile.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("row reconciliation panicked: %v", r)
		}
	}()
	return in.reconciler.Row(ctx, row, uctx)
}

// retryFailed performs the single sequential retry pass, paced by the retry
// delay. Failures here are terminal for the run.
func (in *Intake) retryFailed(ctx context.Context, rows []records.ParsedRow, uctx records.UploadContext, failed []int, summary *RunSummary) error {
	logger := logging.FromContext(ctx)
	if len(failed) > 0 {
		logger.Info().Int("rows", len(failed)).Msg("Retrying failed rows sequentially")
	}

	for _, idx := range failed {
		if err := sleepCtx(ctx, in.options.retryDelay); err != nil {
			return fmt.Errorf("%w: %v", errors.ErrCanceled, err)
		}

		outcome, err := in.runRow(ctx, rows[idx], uctx)
		if err != nil {
			summary.Failed++
			summary.Failures = append(summary.Failures, Failure{
				Index:   idx,
				Key:     normalize.Key(rows[idx]),
				Message: err.Error(),
			})
			logger.Error().
				Err(err).
				Int("row", idx).
				Msg("Row failed on retry, giving up")
			continue
		}

		summary.RecoveredOnRetry++
		summary.tally(outcome)
		in.hooks.trigger(outcome)
	}

	return nil
}

// recordUpload persists upload provenance. Best-effort: a provenance failure
// is logged and the run proceeds.
func (in *Intake) recordUpload(ctx context.Context, rows []records.ParsedRow, uctx records.UploadContext) string {
	if in.uploads == nil {
		return ""
	}

	upload := &records.Upload{
		TenantID:  uctx.TenantID,
		Filename:  uctx.Filename,
		RowCount:  len(rows),
		ActorID:   uctx.ActorID,
		ActorName: uctx.ActorName,
	}
	upload.RangeStart, upload.RangeEnd = rowDateRange(rows)

	id, err := in.uploads.InsertUpload(ctx, upload)
	if err != nil {
		logging.FromContext(ctx).Warn().
			Err(err).
			Msg("Failed to record upload provenance")
		return ""
	}
	return id
}

// tally folds one outcome into the summary counts.
func (s *RunSummary) tally(outcome reconcile.Outcome) {
	switch outcome.Kind {
	case reconcile.Created:
		s.Created++
	case reconcile.Updated:
		s.Updated++
	}
	if outcome.Conflict {
		s.Conflicted++
	}
}

// keyGroup is the set of row indices sharing one natural key, in input order.
type keyGroup struct {
	key     string
	indices []int
}

// groupRows groups row indices by natural key, preserving first-appearance
// order.
func groupRows(rows []records.ParsedRow) []keyGroup {
	byKey := make(map[string]int, len(rows))
	var groups []keyGroup
	for i, row := range rows {
		key := normalize.Key(row)
		if gi, ok := byKey[key]; ok {
			groups[gi].indices = append(groups[gi].indices, i)
			continue
		}
		byKey[key] = len(groups)
		groups = append(groups, keyGroup{key: key, indices: []int{i}})
	}
	return groups
}

// partitionGroups splits key groups into batches of roughly batchSize rows.
// A group never straddles two batches, so a batch may exceed the target only
// when a single group does.
func partitionGroups(groups []keyGroup, batchSize int) [][]keyGroup {
	var batches [][]keyGroup
	var current []keyGroup
	count := 0

	for _, group := range groups {
		if count > 0 && count+len(group.indices) > batchSize {
			batches = append(batches, current)
			current = nil
			count = 0
		}
		current = append(current, group)
		count += len(group.indices)
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

func rowCount(batch []keyGroup) int {
	count := 0
	for _, group := range batch {
		count += len(group.indices)
	}
	return count
}

// rowDateRange summarizes the dates covered by the rows, preferring renewal
// dates and falling back to lead-received dates.
func rowDateRange(rows []records.ParsedRow) (start, end time.Time) {
	for _, row := range rows {
		date := row.RenewalDate
		if date.IsZero() {
			date = row.ReceivedAt
		}
		if date.IsZero() {
			continue
		}
		if start.IsZero() || date.Before(start) {
			start = date
		}
		if end.IsZero() || date.After(end) {
			end = date
		}
	}
	return start, end
}

// sleepCtx pauses for d or until the context is canceled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
