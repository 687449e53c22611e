// Package identity resolves parsed rows to a shared Contact identity so that
// lead and renewal records about the same person can be linked. Resolution is
// an enrichment: callers are expected to downgrade any error to a missing
// link rather than fail the record.
package identity

import (
	"context"

	"github.com/google/uuid"

	"github.com/agencykit/intake/pkg/errors"
	"github.com/agencykit/intake/pkg/logging"
	"github.com/agencykit/intake/pkg/normalize"
	"github.com/agencykit/intake/pkg/records"
)

// Resolver finds or creates Contact identities in a ContactStore.
type Resolver struct {
	contacts records.ContactStore
}

// NewResolver creates a resolver backed by the given contact store.
func NewResolver(contacts records.ContactStore) *Resolver {
	return &Resolver{contacts: contacts}
}

// Resolve returns the contact id for the row's normalized name, creating the
// contact if it does not exist yet. A row with no usable name resolves to ""
// without error. Any store error is returned for the caller to downgrade.
func (r *Resolver) Resolve(ctx context.Context, tenantID string, row records.ParsedRow) (string, error) {
	name := normalize.Name(row.FirstName, row.LastName)
	if name == "" {
		return "", nil
	}

	existing, err := r.contacts.FindContactByName(ctx, tenantID, name)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.IsNotFound(err) {
		return "", errors.WrapStore("find", "contact", name, err)
	}

	contact := &records.Contact{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		Name:       name,
		PostalCode: row.PostalCode,
		Email:      row.Email,
	}
	if phones := normalize.Phones(row.Phones); len(phones) > 0 {
		contact.Phone = phones[0]
	}

	id, err := r.contacts.InsertContact(ctx, contact)
	if err != nil {
		return "", errors.WrapStore("insert", "contact", name, err)
	}

	logging.FromContext(ctx).Debug().
		Str("tenant_id", tenantID).
		Str("contact_id", id).
		Msg("Created contact identity")

	return id, nil
}
