// Package records defines the entities reconciled by the intake pipeline and
// the store contracts the pipeline depends on. Records are keyed by a natural
// business key, never by a database-generated id, so the same upload can be
// replayed without creating duplicates.
package records

import (
	"time"

	"github.com/agentstation/utc"
	"github.com/shopspring/decimal"
)

// Family identifies which entity family a row or record belongs to.
type Family string

const (
	// FamilyLead is a prospective customer household.
	FamilyLead Family = "lead"
	// FamilyRenewal is a policy renewal record.
	FamilyRenewal Family = "renewal"
)

// Status is the lifecycle state of a stored record.
type Status string

const (
	// Lead lifecycle: lead -> quoted -> sold.
	StatusLead   Status = "lead"
	StatusQuoted Status = "quoted"
	StatusSold   Status = "sold"

	// Renewal lifecycle: uncontacted -> pending -> success/unsuccessful.
	StatusUncontacted  Status = "uncontacted"
	StatusPending      Status = "pending"
	StatusSuccess      Status = "success"
	StatusUnsuccessful Status = "unsuccessful"
)

// InitialStatus returns the lifecycle entry state for a family.
func InitialStatus(f Family) Status {
	if f == FamilyRenewal {
		return StatusUncontacted
	}
	return StatusLead
}

// AttentionReason is the machine-readable reason a record was flagged for
// human review.
type AttentionReason string

const (
	// ReasonSourceConflict marks a record claimed by two distinct sources.
	ReasonSourceConflict AttentionReason = "source_conflict"
)

// ParsedRow is a single typed row produced by the upstream spreadsheet/CSV
// parser. It is consumed exactly once by the reconciler and then discarded.
type ParsedRow struct {
	Family Family `json:"family" yaml:"family"`

	// Contact fields
	FirstName  string   `json:"first_name,omitempty" yaml:"first_name,omitempty"`
	LastName   string   `json:"last_name,omitempty" yaml:"last_name,omitempty"`
	Phones     []string `json:"phones,omitempty" yaml:"phones,omitempty"`
	Email      string   `json:"email,omitempty" yaml:"email,omitempty"`
	PostalCode string   `json:"postal_code,omitempty" yaml:"postal_code,omitempty"`

	// Lead fields
	Products   []string  `json:"products,omitempty" yaml:"products,omitempty"`
	ReceivedAt time.Time `json:"received_at,omitempty" yaml:"received_at,omitempty"`

	// Renewal fields
	PolicyNumber string          `json:"policy_number,omitempty" yaml:"policy_number,omitempty"`
	Product      string          `json:"product,omitempty" yaml:"product,omitempty"`
	PremiumOld   decimal.Decimal `json:"premium_old,omitempty" yaml:"premium_old,omitempty"`
	PremiumNew   decimal.Decimal `json:"premium_new,omitempty" yaml:"premium_new,omitempty"`
	RenewalDate  time.Time       `json:"renewal_date,omitempty" yaml:"renewal_date,omitempty"`
	MultiLine    bool            `json:"multi_line,omitempty" yaml:"multi_line,omitempty"`

	// SourceID identifies the upstream source claiming this row. Empty means
	// the row inherits the upload context's source.
	SourceID string `json:"source_id,omitempty" yaml:"source_id,omitempty"`
}

// Record is a persisted household or renewal record, uniquely identified by
// (TenantID, Key). It is mutated only by the reconciler and never deleted by
// the pipeline.
type Record struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	Key      string `json:"key"`
	Family   Family `json:"family"`

	FirstName  string   `json:"first_name,omitempty"`
	LastName   string   `json:"last_name,omitempty"`
	Phones     []string `json:"phones,omitempty"`
	Email      string   `json:"email,omitempty"`
	PostalCode string   `json:"postal_code,omitempty"`

	// ContactID links the record to a shared Contact identity. Optional;
	// identity linkage is an enrichment, not a correctness requirement.
	ContactID string `json:"contact_id,omitempty"`

	// SourceID is the owning source, set at first write. It must never be
	// silently reassigned; competing claims set the attention flag instead.
	SourceID string `json:"source_id,omitempty"`

	Status Status `json:"status"`

	// Attention marks the record for human review. A flagged record always
	// carries a non-empty reason.
	Attention           bool            `json:"attention"`
	AttentionReason     AttentionReason `json:"attention_reason,omitempty"`
	ConflictingSourceID string          `json:"conflicting_source_id,omitempty"`

	Products []string `json:"products,omitempty"`

	PolicyNumber string          `json:"policy_number,omitempty"`
	Product      string          `json:"product,omitempty"`
	PremiumOld   decimal.Decimal `json:"premium_old,omitempty"`
	PremiumNew   decimal.Decimal `json:"premium_new,omitempty"`
	RenewalDate  time.Time       `json:"renewal_date,omitempty"`
	MultiLine    bool            `json:"multi_line,omitempty"`

	CreatedAt utc.Time `json:"created_at"`
	UpdatedAt utc.Time `json:"updated_at"`
}

// Contact is a shared identity linked across entity families.
type Contact struct {
	ID         string   `json:"id"`
	TenantID   string   `json:"tenant_id"`
	Name       string   `json:"name"` // normalized comparison form
	PostalCode string   `json:"postal_code,omitempty"`
	Phone      string   `json:"phone,omitempty"`
	Email      string   `json:"email,omitempty"`
	CreatedAt  utc.Time `json:"created_at"`
}

// Upload records the provenance of a submitted file. Created once per run,
// never mutated afterward.
type Upload struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	Filename   string    `json:"filename,omitempty"`
	RowCount   int       `json:"row_count"`
	ActorID    string    `json:"actor_id,omitempty"`
	ActorName  string    `json:"actor_name,omitempty"`
	RangeStart time.Time `json:"range_start,omitempty"`
	RangeEnd   time.Time `json:"range_end,omitempty"`
	CreatedAt  utc.Time  `json:"created_at"`
}

// UploadContext carries the explicit per-run identity the pipeline needs.
// Nothing in the pipeline reads ambient session state.
type UploadContext struct {
	TenantID  string
	SourceID  string
	ActorID   string
	ActorName string
	Filename  string
}
