package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agencykit/intake/pkg/errors"
	"github.com/agencykit/intake/pkg/records"
)

func TestStoreInsertAndFindByKey(t *testing.T) {
	s := New()
	ctx := context.Background()

	id, err := s.Insert(ctx, &records.Record{
		TenantID: "acme",
		Key:      "lead:smith.j.02134",
		Family:   records.FamilyLead,
		LastName: "Smith",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := s.FindByKey(ctx, "acme", "lead:smith.j.02134")
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "Smith", got.LastName)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestStoreFindByKeyTenantIsolation(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.Insert(ctx, &records.Record{TenantID: "acme", Key: "lead:smith.j.02134"})
	require.NoError(t, err)

	_, err = s.FindByKey(ctx, "other", "lead:smith.j.02134")
	assert.True(t, errors.IsNotFound(err))
}

func TestStoreUpdateAppliesPatch(t *testing.T) {
	s := New()
	ctx := context.Background()

	id, err := s.Insert(ctx, &records.Record{TenantID: "acme", Key: "lead:smith.j.02134"})
	require.NoError(t, err)

	email := "jane@example.com"
	require.NoError(t, s.Update(ctx, id, records.Patch{Email: &email}))

	got, err := s.FindByKey(ctx, "acme", "lead:smith.j.02134")
	require.NoError(t, err)
	assert.Equal(t, email, got.Email)
}

func TestStoreUpdateUnknownID(t *testing.T) {
	s := New()
	err := s.Update(context.Background(), "missing", records.Patch{})
	assert.True(t, errors.IsNotFound(err))
}

func TestStoreFindReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.Insert(ctx, &records.Record{TenantID: "acme", Key: "lead:smith.j.02134"})
	require.NoError(t, err)

	first, err := s.FindByKey(ctx, "acme", "lead:smith.j.02134")
	require.NoError(t, err)
	first.Email = "mutated@example.com"

	second, err := s.FindByKey(ctx, "acme", "lead:smith.j.02134")
	require.NoError(t, err)
	assert.Empty(t, second.Email, "callers must not mutate stored state")
}

func TestStoreFailWrites(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.FailWrites("lead:smith.j.02134", 1)

	_, err := s.Insert(ctx, &records.Record{TenantID: "acme", Key: "lead:smith.j.02134"})
	require.Error(t, err)
	assert.True(t, errors.IsStore(err))

	// The injected failure is consumed; the retry succeeds.
	_, err = s.Insert(ctx, &records.Record{TenantID: "acme", Key: "lead:smith.j.02134"})
	assert.NoError(t, err)
}

func TestStoreContacts(t *testing.T) {
	s := New()
	ctx := context.Background()

	id, err := s.InsertContact(ctx, &records.Contact{TenantID: "acme", Name: "jane smith"})
	require.NoError(t, err)

	got, err := s.FindContactByName(ctx, "acme", "jane smith")
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)

	_, err = s.FindContactByName(ctx, "acme", "nobody")
	assert.True(t, errors.IsNotFound(err))
}

func TestStoreUploads(t *testing.T) {
	s := New()
	ctx := context.Background()

	id, err := s.InsertUpload(ctx, &records.Upload{TenantID: "acme", Filename: "rows.yaml", RowCount: 3})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	uploads := s.Uploads()
	require.Len(t, uploads, 1)
	assert.Equal(t, "rows.yaml", uploads[0].Filename)
}

func TestStoreCanceledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.FindByKey(ctx, "acme", "lead:smith.j.02134")
	assert.ErrorIs(t, err, context.Canceled)
}
