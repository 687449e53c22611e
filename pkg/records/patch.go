package records

import (
	"reflect"
	"time"

	"github.com/shopspring/decimal"
)

// Patch is a field-level merge patch for a Record. A nil field means
// "unchanged"; the reconciler only issues a store update when at least one
// field is set.
type Patch struct {
	FirstName  *string   `json:"first_name,omitempty"`
	LastName   *string   `json:"last_name,omitempty"`
	Phones     *[]string `json:"phones,omitempty"`
	Email      *string   `json:"email,omitempty"`
	PostalCode *string   `json:"postal_code,omitempty"`

	ContactID *string `json:"contact_id,omitempty"`

	SourceID            *string          `json:"source_id,omitempty"`
	Status              *Status          `json:"status,omitempty"`
	Attention           *bool            `json:"attention,omitempty"`
	AttentionReason     *AttentionReason `json:"attention_reason,omitempty"`
	ConflictingSourceID *string          `json:"conflicting_source_id,omitempty"`

	Products *[]string `json:"products,omitempty"`

	Product     *string          `json:"product,omitempty"`
	PremiumOld  *decimal.Decimal `json:"premium_old,omitempty"`
	PremiumNew  *decimal.Decimal `json:"premium_new,omitempty"`
	RenewalDate *time.Time       `json:"renewal_date,omitempty"`
	MultiLine   *bool            `json:"multi_line,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Fields() == 0
}

// Fields returns the number of fields the patch sets.
func (p Patch) Fields() int {
	v := reflect.ValueOf(p)
	count := 0
	for i := 0; i < v.NumField(); i++ {
		if !v.Field(i).IsNil() {
			count++
		}
	}
	return count
}

// Apply mutates r with every set field of the patch. Store implementations
// use it to keep a single definition of patch semantics.
func (p Patch) Apply(r *Record) {
	if p.FirstName != nil {
		r.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		r.LastName = *p.LastName
	}
	if p.Phones != nil {
		r.Phones = *p.Phones
	}
	if p.Email != nil {
		r.Email = *p.Email
	}
	if p.PostalCode != nil {
		r.PostalCode = *p.PostalCode
	}
	if p.ContactID != nil {
		r.ContactID = *p.ContactID
	}
	if p.SourceID != nil {
		r.SourceID = *p.SourceID
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.Attention != nil {
		r.Attention = *p.Attention
	}
	if p.AttentionReason != nil {
		r.AttentionReason = *p.AttentionReason
	}
	if p.ConflictingSourceID != nil {
		r.ConflictingSourceID = *p.ConflictingSourceID
	}
	if p.Products != nil {
		r.Products = *p.Products
	}
	if p.Product != nil {
		r.Product = *p.Product
	}
	if p.PremiumOld != nil {
		r.PremiumOld = *p.PremiumOld
	}
	if p.PremiumNew != nil {
		r.PremiumNew = *p.PremiumNew
	}
	if p.RenewalDate != nil {
		r.RenewalDate = *p.RenewalDate
	}
	if p.MultiLine != nil {
		r.MultiLine = *p.MultiLine
	}
}
