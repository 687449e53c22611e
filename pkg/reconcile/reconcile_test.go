package reconcile_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agencykit/intake/pkg/errors"
	"github.com/agencykit/intake/pkg/identity"
	"github.com/agencykit/intake/pkg/logging"
	"github.com/agencykit/intake/pkg/reconcile"
	"github.com/agencykit/intake/pkg/records"
	"github.com/agencykit/intake/pkg/records/memory"
)

var uctx = records.UploadContext{
	TenantID: "t1",
	SourceID: "S1",
	ActorID:  "agent-7",
}

func leadRow(first, last, postal string) records.ParsedRow {
	return records.ParsedRow{
		Family:     records.FamilyLead,
		FirstName:  first,
		LastName:   last,
		PostalCode: postal,
	}
}

// countingStore wraps a store and counts writes, so tests can assert that
// no-op merges skip the store entirely.
type countingStore struct {
	records.Store
	updates atomic.Int64
	inserts atomic.Int64
}

func (c *countingStore) Insert(ctx context.Context, r *records.Record) (string, error) {
	c.inserts.Add(1)
	return c.Store.Insert(ctx, r)
}

func (c *countingStore) Update(ctx context.Context, id string, p records.Patch) error {
	c.updates.Add(1)
	return c.Store.Update(ctx, id, p)
}

func TestRowCreatesNewRecord(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	r := reconcile.New(store, identity.NewResolver(store))

	row := leadRow("Jane", "Smith", "02134")
	row.Phones = []string{"555-1234", "5551234"}
	row.Email = "jane@example.com"
	row.Products = []string{"home", "auto"}

	outcome, err := r.Row(ctx, row, uctx)
	require.NoError(t, err)
	assert.Equal(t, reconcile.Created, outcome.Kind)
	assert.NotEmpty(t, outcome.RecordID)
	assert.Equal(t, "lead:smith.j.02134", outcome.Key)

	stored, err := store.FindByKey(ctx, "t1", outcome.Key)
	require.NoError(t, err)
	assert.Equal(t, "S1", stored.SourceID)
	assert.Equal(t, records.StatusLead, stored.Status)
	assert.False(t, stored.Attention)
	assert.Equal(t, []string{"555-1234"}, stored.Phones) // deduped at insert
	assert.NotEmpty(t, stored.ContactID)                 // linked to contact
}

func TestRowIdempotentRerun(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	store := &countingStore{Store: mem}
	r := reconcile.New(store, nil)

	row := leadRow("Jane", "Smith", "02134")
	row.Email = "jane@example.com"

	first, err := r.Row(ctx, row, uctx)
	require.NoError(t, err)
	assert.Equal(t, reconcile.Created, first.Kind)

	second, err := r.Row(ctx, row, uctx)
	require.NoError(t, err)
	assert.Equal(t, reconcile.Updated, second.Kind)
	assert.Equal(t, 0, second.Changed)

	assert.Equal(t, int64(1), store.inserts.Load())
	assert.Equal(t, int64(0), store.updates.Load(), "no-op merge must not write")
	assert.Equal(t, 1, mem.Len())
}

func TestRowPhoneUnion(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	r := reconcile.New(store, nil)

	row := leadRow("Jane", "Smith", "02134")
	row.Phones = []string{"555-1234"}
	outcome, err := r.Row(ctx, row, uctx)
	require.NoError(t, err)

	row.Phones = []string{"5551234", "555-9999"}
	updated, err := r.Row(ctx, row, uctx)
	require.NoError(t, err)
	assert.Equal(t, reconcile.Updated, updated.Kind)
	assert.Equal(t, 1, updated.Changed)

	stored, err := store.FindByKey(ctx, "t1", outcome.Key)
	require.NoError(t, err)
	assert.Equal(t, []string{"555-1234", "555-9999"}, stored.Phones)
}

func TestRowEnrichmentNeverOverwrites(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	r := reconcile.New(store, nil)

	row := leadRow("Jane", "Smith", "02134")
	row.Email = "a@x.com"
	outcome, err := r.Row(ctx, row, uctx)
	require.NoError(t, err)

	row.Email = "b@y.com"
	_, err = r.Row(ctx, row, uctx)
	require.NoError(t, err)

	stored, err := store.FindByKey(ctx, "t1", outcome.Key)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", stored.Email)
}

func TestRowEnrichmentFillsEmpty(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	r := reconcile.New(store, nil)

	row := leadRow("Jane", "Smith", "02134")
	outcome, err := r.Row(ctx, row, uctx)
	require.NoError(t, err)

	row.Email = "jane@example.com"
	updated, err := r.Row(ctx, row, uctx)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Changed)

	stored, err := store.FindByKey(ctx, "t1", outcome.Key)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", stored.Email)
}

func TestRowOwnershipConflict(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	r := reconcile.New(store, nil)

	row := leadRow("Jane", "Smith", "02134")
	outcome, err := r.Row(ctx, row, uctx)
	require.NoError(t, err)

	competing := uctx
	competing.SourceID = "S2"
	conflicted, err := r.Row(ctx, row, competing)
	require.NoError(t, err)
	assert.Equal(t, reconcile.Updated, conflicted.Kind)
	assert.True(t, conflicted.Conflict)

	stored, err := store.FindByKey(ctx, "t1", outcome.Key)
	require.NoError(t, err)
	assert.Equal(t, "S1", stored.SourceID, "ownership must not change hands")
	assert.True(t, stored.Attention)
	assert.Equal(t, records.ReasonSourceConflict, stored.AttentionReason)
	assert.Equal(t, "S2", stored.ConflictingSourceID)
}

func TestRowOwnershipConflictAlreadyFlagged(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	store := &countingStore{Store: mem}
	r := reconcile.New(store, nil)

	row := leadRow("Jane", "Smith", "02134")
	_, err := r.Row(ctx, row, uctx)
	require.NoError(t, err)

	competing := uctx
	competing.SourceID = "S2"
	_, err = r.Row(ctx, row, competing)
	require.NoError(t, err)
	writes := store.updates.Load()

	// Same competing source again: conflict reported, but nothing to write.
	again, err := r.Row(ctx, row, competing)
	require.NoError(t, err)
	assert.True(t, again.Conflict)
	assert.Equal(t, 0, again.Changed)
	assert.Equal(t, writes, store.updates.Load())
}

func TestRowOwnershipAdoption(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	r := reconcile.New(store, nil)

	// A record created from a context with no source is unowned.
	unowned := records.UploadContext{TenantID: "t1"}
	row := leadRow("Jane", "Smith", "02134")
	outcome, err := r.Row(ctx, row, unowned)
	require.NoError(t, err)

	_, err = r.Row(ctx, row, uctx)
	require.NoError(t, err)

	stored, err := store.FindByKey(ctx, "t1", outcome.Key)
	require.NoError(t, err)
	assert.Equal(t, "S1", stored.SourceID)
	assert.False(t, stored.Attention)
}

func TestRowRenewalFields(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	r := reconcile.New(store, nil)

	date := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	row := records.ParsedRow{
		Family:       records.FamilyRenewal,
		LastName:     "Smith",
		PolicyNumber: "HP-1001",
		RenewalDate:  date,
		Product:      "homeowners",
		PremiumOld:   decimal.NewFromInt(1200),
		PremiumNew:   decimal.NewFromInt(1350),
	}

	outcome, err := r.Row(ctx, row, uctx)
	require.NoError(t, err)
	assert.Equal(t, reconcile.Created, outcome.Kind)
	assert.Equal(t, "renewal:HP-1001:2026-03-01", outcome.Key)

	stored, err := store.FindByKey(ctx, "t1", outcome.Key)
	require.NoError(t, err)
	assert.Equal(t, records.StatusUncontacted, stored.Status)
	assert.True(t, stored.PremiumNew.Equal(decimal.NewFromInt(1350)))

	// Premiums never overwritten once set
	row.PremiumNew = decimal.NewFromInt(9999)
	_, err = r.Row(ctx, row, uctx)
	require.NoError(t, err)
	stored, err = store.FindByKey(ctx, "t1", outcome.Key)
	require.NoError(t, err)
	assert.True(t, stored.PremiumNew.Equal(decimal.NewFromInt(1350)))
}

type failingResolver struct{}

func (failingResolver) Resolve(context.Context, string, records.ParsedRow) (string, error) {
	return "", errors.New("identity backend down")
}

func TestRowResolverFailureIsNonFatal(t *testing.T) {
	testLogger := logging.NewTestLogger(t)
	ctx := logging.WithLogger(context.Background(), testLogger.Logger)
	store := memory.New()
	r := reconcile.New(store, failingResolver{})

	outcome, err := r.Row(ctx, leadRow("Jane", "Smith", "02134"), uctx)
	require.NoError(t, err)
	assert.Equal(t, reconcile.Created, outcome.Kind)

	stored, err := store.FindByKey(ctx, "t1", outcome.Key)
	require.NoError(t, err)
	assert.Empty(t, stored.ContactID)

	// The downgrade is logged, not swallowed.
	assert.True(t, testLogger.Contains("Contact resolution failed"))
	assert.True(t, testLogger.Contains("identity backend down"))
}

func TestRowStoreErrorPropagates(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	r := reconcile.New(store, nil)

	row := leadRow("Jane", "Smith", "02134")
	store.FailWrites("lead:smith.j.02134", 1)

	_, err := r.Row(ctx, row, uctx)
	require.Error(t, err)
	assert.True(t, errors.IsStore(err))

	// Next attempt succeeds
	outcome, err := r.Row(ctx, row, uctx)
	require.NoError(t, err)
	assert.Equal(t, reconcile.Created, outcome.Kind)
}
