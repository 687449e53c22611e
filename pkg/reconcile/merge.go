package reconcile

import (
	"github.com/agencykit/intake/pkg/normalize"
	"github.com/agencykit/intake/pkg/records"
)

// buildPatch computes the field-level merge patch for an existing record and
// an incoming row. Merge rules:
//
//   - Phones: union deduplicated by digits-only form, existing entries kept
//     verbatim and first, new unique entries appended.
//   - Enrichment fields: fill only when the existing value is empty. Existing
//     data wins on conflict.
//   - Ownership: set exactly once. An unset owner adopts the incoming source
//     and clears any stale attention flag; a differing owner flags the record
//     with reason source_conflict instead of changing hands.
//
// The returned bool reports whether an ownership conflict was detected,
// whether or not the flag fields needed changing.
func buildPatch(existing *records.Record, row records.ParsedRow, source string) (records.Patch, bool) {
	var p records.Patch

	if merged, changed := mergePhones(existing.Phones, row.Phones); changed {
		p.Phones = &merged
	}

	fillString(&p.FirstName, existing.FirstName, row.FirstName)
	fillString(&p.LastName, existing.LastName, row.LastName)
	fillString(&p.Email, existing.Email, row.Email)
	fillString(&p.PostalCode, existing.PostalCode, row.PostalCode)

	if existing.Family == records.FamilyLead {
		if merged, changed := mergeProducts(existing.Products, row.Products); changed {
			p.Products = &merged
		}
	}

	if existing.Family == records.FamilyRenewal {
		fillString(&p.Product, existing.Product, row.Product)
		if existing.PremiumOld.IsZero() && !row.PremiumOld.IsZero() {
			v := row.PremiumOld
			p.PremiumOld = &v
		}
		if existing.PremiumNew.IsZero() && !row.PremiumNew.IsZero() {
			v := row.PremiumNew
			p.PremiumNew = &v
		}
		if existing.RenewalDate.IsZero() && !row.RenewalDate.IsZero() {
			v := row.RenewalDate
			p.RenewalDate = &v
		}
		// Multi-line is additive: once any source reports it, it stays.
		if row.MultiLine && !existing.MultiLine {
			v := true
			p.MultiLine = &v
		}
	}

	conflict := mergeOwnership(&p, existing, source)
	return p, conflict
}

// mergeOwnership applies the source_id rules and returns whether the row
// conflicted with the record's owner.
func mergeOwnership(p *records.Patch, existing *records.Record, source string) bool {
	switch {
	case source == "" || existing.SourceID == source:
		return false

	case existing.SourceID == "":
		// Unowned record adopts the incoming source.
		p.SourceID = &source
		if existing.Attention && existing.AttentionReason == records.ReasonSourceConflict {
			clearAttention(p)
		}
		return false

	default:
		// Competing claim: keep the owner, flag for review.
		if !existing.Attention || existing.ConflictingSourceID != source {
			flag := true
			reason := records.ReasonSourceConflict
			p.Attention = &flag
			p.AttentionReason = &reason
			p.ConflictingSourceID = &source
		}
		return true
	}
}

func clearAttention(p *records.Patch) {
	flag := false
	reason := records.AttentionReason("")
	conflicting := ""
	p.Attention = &flag
	p.AttentionReason = &reason
	p.ConflictingSourceID = &conflicting
}

// mergePhones unions existing and incoming numbers, deduplicating by the
// digits-only form. Existing entries stay verbatim and in order; new unique
// numbers append in incoming order.
func mergePhones(existing, incoming []string) ([]string, bool) {
	seen := make(map[string]struct{}, len(existing))
	merged := make([]string, 0, len(existing)+len(incoming))
	for _, phone := range existing {
		merged = append(merged, phone)
		if digits := normalize.Phone(phone); digits != "" {
			seen[digits] = struct{}{}
		}
	}

	changed := false
	for _, phone := range incoming {
		digits := normalize.Phone(phone)
		if digits == "" {
			continue
		}
		if _, ok := seen[digits]; ok {
			continue
		}
		seen[digits] = struct{}{}
		merged = append(merged, phone)
		changed = true
	}

	if !changed {
		return nil, false
	}
	return merged, true
}

// mergeProducts appends products of interest not already recorded,
// case-sensitively and order-preserving.
func mergeProducts(existing, incoming []string) ([]string, bool) {
	seen := make(map[string]struct{}, len(existing))
	merged := make([]string, 0, len(existing)+len(incoming))
	for _, product := range existing {
		merged = append(merged, product)
		seen[product] = struct{}{}
	}

	changed := false
	for _, product := range incoming {
		if product == "" {
			continue
		}
		if _, ok := seen[product]; ok {
			continue
		}
		seen[product] = struct{}{}
		merged = append(merged, product)
		changed = true
	}

	if !changed {
		return nil, false
	}
	return merged, true
}

// fillString sets dst when the existing value is empty and the incoming one
// is not. Populated values are never overwritten.
func fillString(dst **string, existing, incoming string) {
	if existing == "" && incoming != "" {
		v := incoming
		*dst = &v
	}
}
