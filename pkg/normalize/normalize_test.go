package normalize_test

import (
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/agencykit/intake/pkg/normalize"
	"github.com/agencykit/intake/pkg/records"
)

func TestPhone(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"dashes", "555-123-4567", "5551234567"},
		{"parens and spaces", "(555) 123 4567", "5551234567"},
		{"country prefix", "+1 555.123.4567", "15551234567"},
		{"already digits", "5551234", "5551234"},
		{"no digits", "n/a", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalize.Phone(tt.raw))
		})
	}
}

func TestPhones(t *testing.T) {
	t.Run("dedup by digits keeps first spelling", func(t *testing.T) {
		got := normalize.Phones([]string{"555-1234", "5551234", "555-9999"})
		assert.Equal(t, []string{"555-1234", "555-9999"}, got)
	})

	t.Run("drops entries with no digits", func(t *testing.T) {
		got := normalize.Phones([]string{"unknown", "555-1234", ""})
		assert.Equal(t, []string{"555-1234"}, got)
	})

	t.Run("nil input", func(t *testing.T) {
		assert.Nil(t, normalize.Phones(nil))
	})
}

func TestName(t *testing.T) {
	assert.Equal(t, "smith, jane", normalize.Name("Jane", "Smith"))
	assert.Equal(t, "smith", normalize.Name("", "Smith"))
	assert.Equal(t, "jane", normalize.Name("Jane", ""))
	assert.Equal(t, "", normalize.Name("", ""))
	assert.Equal(t, "van der berg, anna", normalize.Name(" Anna ", " Van  Der Berg "))
}

func TestKeyLead(t *testing.T) {
	row := records.ParsedRow{
		Family:     records.FamilyLead,
		FirstName:  "Jane",
		LastName:   "Smith",
		PostalCode: "02134",
	}
	assert.Equal(t, "lead:smith.j.02134", normalize.Key(row))

	// Deterministic regardless of formatting noise
	row2 := row
	row2.LastName = "  SMITH "
	row2.PostalCode = "02134-1234"
	assert.Equal(t, "lead:smith.j.021341234", normalize.Key(row2))

	// Missing last name yields the sentinel empty key
	row.LastName = ""
	assert.Equal(t, "", normalize.Key(row))
}

func TestKeyLeadMultibyteInitial(t *testing.T) {
	row := records.ParsedRow{
		Family:     records.FamilyLead,
		FirstName:  "Émile",
		LastName:   "Dupont",
		PostalCode: "75001",
	}
	key := normalize.Key(row)
	assert.Equal(t, "lead:dupont.é.75001", key)
	assert.True(t, utf8.ValidString(key), "keys must stay valid UTF-8")
}

func TestKeyRenewal(t *testing.T) {
	date := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	row := records.ParsedRow{
		Family:       records.FamilyRenewal,
		PolicyNumber: "hp-1001",
		RenewalDate:  date,
	}
	assert.Equal(t, "renewal:HP-1001:2026-03-01", normalize.Key(row))

	row.RenewalDate = time.Time{}
	assert.Equal(t, "renewal:HP-1001", normalize.Key(row))

	row.PolicyNumber = "   "
	assert.Equal(t, "", normalize.Key(row))
}

func TestKeyUnknownFamily(t *testing.T) {
	assert.Equal(t, "", normalize.Key(records.ParsedRow{Family: "unknown"}))
	assert.Equal(t, "", normalize.Key(records.ParsedRow{}))
}
