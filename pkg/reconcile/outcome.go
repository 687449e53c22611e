package reconcile

// Kind classifies the result of reconciling one row.
type Kind string

const (
	// Created means a new record was inserted.
	Created Kind = "created"
	// Updated means an existing record was matched. A no-op merge still
	// counts as Updated, with zero changed fields.
	Updated Kind = "updated"
)

// Outcome is the per-row result of reconciliation.
type Outcome struct {
	Kind     Kind
	RecordID string
	Key      string

	// Changed is the number of fields the merge patch set. Zero means the
	// row matched an existing record and nothing needed to change.
	Changed int

	// Conflict reports that the row's source and the record's owning source
	// disagreed. The record keeps its owner and is flagged for review.
	Conflict bool
}
