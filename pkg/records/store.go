package records

import "context"

// Store is the abstract keyed store the reconciler reads and writes.
// Implementations must support row-level lookup-then-write; no cross-row
// atomicity is required.
type Store interface {
	// FindByKey returns the record for (tenantID, key), or an error
	// satisfying errors.IsNotFound when no such record exists.
	FindByKey(ctx context.Context, tenantID, key string) (*Record, error)

	// Insert persists a new record and returns its id.
	Insert(ctx context.Context, r *Record) (string, error)

	// Update applies a field-level patch to an existing record.
	Update(ctx context.Context, id string, p Patch) error
}

// ContactStore persists shared Contact identities. Strictly best-effort from
// the pipeline's point of view.
type ContactStore interface {
	// FindContactByName returns the contact with the given normalized name,
	// or an error satisfying errors.IsNotFound.
	FindContactByName(ctx context.Context, tenantID, name string) (*Contact, error)

	// InsertContact persists a new contact and returns its id.
	InsertContact(ctx context.Context, c *Contact) (string, error)
}

// UploadStore persists upload provenance.
type UploadStore interface {
	// InsertUpload persists a new upload and returns its id.
	InsertUpload(ctx context.Context, u *Upload) (string, error)
}
