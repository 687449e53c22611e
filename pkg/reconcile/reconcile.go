// Package reconcile implements the per-row decision function of the intake
// pipeline: look up the stored record by natural key, insert when absent, or
// compute and apply a field-level merge patch when present. Ownership
// conflicts between sources are never resolved silently; they are flagged on
// the record for human review.
package reconcile

import (
	"context"

	"github.com/agencykit/intake/pkg/errors"
	"github.com/agencykit/intake/pkg/logging"
	"github.com/agencykit/intake/pkg/normalize"
	"github.com/agencykit/intake/pkg/records"
)

// ContactResolver finds or creates a shared Contact identity for a row.
// The reconciler treats resolution as best-effort: an error downgrades to a
// missing link at the call site.
type ContactResolver interface {
	Resolve(ctx context.Context, tenantID string, row records.ParsedRow) (string, error)
}

// Reconciler decides, for each incoming row, whether it is a brand-new
// record or an update to an existing one.
type Reconciler struct {
	store    records.Store
	resolver ContactResolver // optional
}

// New creates a Reconciler. The resolver may be nil, in which case records
// are never linked to contacts.
func New(store records.Store, resolver ContactResolver) *Reconciler {
	return &Reconciler{store: store, resolver: resolver}
}

// Row reconciles a single parsed row against the store. Persistence errors
// propagate to the caller so the orchestrator can schedule a retry;
// enrichment failures never do.
func (r *Reconciler) Row(ctx context.Context, row records.ParsedRow, uctx records.UploadContext) (Outcome, error) {
	key := normalize.Key(row)

	existing, err := r.store.FindByKey(ctx, uctx.TenantID, key)
	if err != nil && !errors.IsNotFound(err) {
		return Outcome{Key: key}, errors.WrapStore("find", "record", key, err)
	}

	if existing == nil {
		return r.create(ctx, row, uctx, key)
	}
	return r.update(ctx, existing, row, uctx)
}

// create inserts a new record owned by the row's source.
func (r *Reconciler) create(ctx context.Context, row records.ParsedRow, uctx records.UploadContext, key string) (Outcome, error) {
	rec := &records.Record{
		TenantID:     uctx.TenantID,
		Key:          key,
		Family:       row.Family,
		FirstName:    row.FirstName,
		LastName:     row.LastName,
		Phones:       normalize.Phones(row.Phones),
		Email:        row.Email,
		PostalCode:   row.PostalCode,
		SourceID:     rowSource(row, uctx),
		Status:       records.InitialStatus(row.Family),
		Products:     row.Products,
		PolicyNumber: row.PolicyNumber,
		Product:      row.Product,
		PremiumOld:   row.PremiumOld,
		PremiumNew:   row.PremiumNew,
		RenewalDate:  row.RenewalDate,
		MultiLine:    row.MultiLine,
	}
	rec.ContactID = r.resolve(ctx, uctx.TenantID, row)

	id, err := r.store.Insert(ctx, rec)
	if err != nil {
		return Outcome{Key: key}, errors.WrapStore("insert", "record", key, err)
	}

	return Outcome{Kind: Created, RecordID: id, Key: key}, nil
}

// update builds the merge patch against the existing record and applies it
// only when non-empty.
func (r *Reconciler) update(ctx context.Context, existing *records.Record, row records.ParsedRow, uctx records.UploadContext) (Outcome, error) {
	patch, conflict := buildPatch(existing, row, rowSource(row, uctx))

	// Contact linkage is enrichment like any other fill-if-empty field.
	if existing.ContactID == "" && patch.ContactID == nil {
		if id := r.resolve(ctx, uctx.TenantID, row); id != "" {
			patch.ContactID = &id
		}
	}

	outcome := Outcome{
		Kind:     Updated,
		RecordID: existing.ID,
		Key:      existing.Key,
		Changed:  patch.Fields(),
		Conflict: conflict,
	}

	if patch.IsEmpty() {
		return outcome, nil
	}

	if err := r.store.Update(ctx, existing.ID, patch); err != nil {
		return Outcome{Key: existing.Key}, errors.WrapStore("update", "record", existing.Key, err)
	}
	return outcome, nil
}

// resolve downgrades resolver errors to a missing link. The decision that
// identity failure is non-fatal lives here, not in an exception handler.
func (r *Reconciler) resolve(ctx context.Context, tenantID string, row records.ParsedRow) string {
	if r.resolver == nil {
		return ""
	}
	id, err := r.resolver.Resolve(ctx, tenantID, row)
	if err != nil {
		logging.FromContext(ctx).Warn().
			Err(err).
			Str("tenant_id", tenantID).
			Msg("Contact resolution failed, continuing without link")
		return ""
	}
	return id
}

// rowSource returns the source claiming the row, falling back to the upload
// context's source.
func rowSource(row records.ParsedRow, uctx records.UploadContext) string {
	if row.SourceID != "" {
		return row.SourceID
	}
	return uctx.SourceID
}
