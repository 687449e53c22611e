// Package normalize derives the natural keys and normalized comparison forms
// used for lookups and deduplication. Every function is pure, deterministic,
// and total: malformed input normalizes to an empty value so a downstream
// lookup simply misses instead of failing the batch.
package normalize

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"

	"github.com/agencykit/intake/pkg/records"
)

var folder = cases.Fold()

// Phone reduces a raw phone number to its digits-only comparison form.
func Phone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Phones deduplicates raw phone numbers by their digits-only form,
// preserving order and the first verbatim spelling of each number.
// Entries with no digits are dropped.
func Phones(raws []string) []string {
	seen := make(map[string]struct{}, len(raws))
	var out []string
	for _, raw := range raws {
		digits := Phone(raw)
		if digits == "" {
			continue
		}
		if _, ok := seen[digits]; ok {
			continue
		}
		seen[digits] = struct{}{}
		out = append(out, raw)
	}
	return out
}

// Name returns the canonical case-folded comparison form of a person name,
// "last, first" with collapsed whitespace. Empty when both parts are empty.
func Name(first, last string) string {
	f := foldSpace(first)
	l := foldSpace(last)
	switch {
	case f == "" && l == "":
		return ""
	case l == "":
		return f
	case f == "":
		return l
	}
	return l + ", " + f
}

// Key derives the stable natural key for a parsed row. Lead keys are built
// from the folded last name, first initial, and postal digits; renewal keys
// from the policy number and renewal effective date. A row missing its key
// components yields "".
func Key(row records.ParsedRow) string {
	switch row.Family {
	case records.FamilyLead:
		return leadKey(row)
	case records.FamilyRenewal:
		return renewalKey(row)
	}
	return ""
}

func leadKey(row records.ParsedRow) string {
	last := foldSpace(row.LastName)
	if last == "" {
		return ""
	}
	parts := []string{strings.ReplaceAll(last, " ", "-")}
	if first := foldSpace(row.FirstName); first != "" {
		r, _ := utf8.DecodeRuneInString(first)
		parts = append(parts, string(r))
	}
	if postal := digits(row.PostalCode); postal != "" {
		parts = append(parts, postal)
	}
	return "lead:" + strings.Join(parts, ".")
}

func renewalKey(row records.ParsedRow) string {
	policy := strings.ToUpper(strings.TrimSpace(row.PolicyNumber))
	if policy == "" {
		return ""
	}
	key := "renewal:" + policy
	if !row.RenewalDate.IsZero() {
		key += ":" + row.RenewalDate.Format("2006-01-02")
	}
	return key
}

// foldSpace case-folds a string and collapses runs of whitespace to single
// spaces.
func foldSpace(s string) string {
	return strings.Join(strings.Fields(folder.String(s)), " ")
}

func digits(s string) string {
	return Phone(s)
}
