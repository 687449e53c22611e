// Package postgres implements the records store contracts over PostgreSQL
// using sqlx. Lookups and writes are row-level only; the pipeline requires no
// cross-row transactions, so none are used.
package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/agentstation/utc"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/agencykit/intake/pkg/errors"
	"github.com/agencykit/intake/pkg/records"
)

const (
	recordsTable  = "records"
	contactsTable = "contacts"
	uploadsTable  = "uploads"
)

var (
	recordStruct  = sqlbuilder.NewStruct(new(recordRow)).For(sqlbuilder.PostgreSQL)
	contactStruct = sqlbuilder.NewStruct(new(contactRow)).For(sqlbuilder.PostgreSQL)
	uploadStruct  = sqlbuilder.NewStruct(new(uploadRow)).For(sqlbuilder.PostgreSQL)
)

// Store is a PostgreSQL-backed records.Store, records.ContactStore, and
// records.UploadStore.
type Store struct {
	db *sqlx.DB
}

// New creates a store over an open sqlx handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects to PostgreSQL with the given DSN and verifies the
// connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, errors.WrapStore("connect", "database", "", err)
	}
	return New(db), nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// recordRow is the database shape of a records.Record.
type recordRow struct {
	ID       string `db:"id"`
	TenantID string `db:"tenant_id"`
	Key      string `db:"key"`
	Family   string `db:"family"`

	FirstName  string         `db:"first_name"`
	LastName   string         `db:"last_name"`
	Phones     pq.StringArray `db:"phones"`
	Email      string         `db:"email"`
	PostalCode string         `db:"postal_code"`

	ContactID sql.NullString `db:"contact_id"`

	SourceID            string `db:"source_id"`
	Status              string `db:"status"`
	Attention           bool   `db:"attention"`
	AttentionReason     string `db:"attention_reason"`
	ConflictingSourceID string `db:"conflicting_source_id"`

	Products pq.StringArray `db:"products"`

	PolicyNumber string          `db:"policy_number"`
	Product      string          `db:"product"`
	PremiumOld   decimal.Decimal `db:"premium_old"`
	PremiumNew   decimal.Decimal `db:"premium_new"`
	RenewalDate  sql.NullTime    `db:"renewal_date"`
	MultiLine    bool            `db:"multi_line"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func fromRecord(r *records.Record) *recordRow {
	row := &recordRow{
		ID:                  r.ID,
		TenantID:            r.TenantID,
		Key:                 r.Key,
		Family:              string(r.Family),
		FirstName:           r.FirstName,
		LastName:            r.LastName,
		Phones:              pq.StringArray(r.Phones),
		Email:               r.Email,
		PostalCode:          r.PostalCode,
		SourceID:            r.SourceID,
		Status:              string(r.Status),
		Attention:           r.Attention,
		AttentionReason:     string(r.AttentionReason),
		ConflictingSourceID: r.ConflictingSourceID,
		Products:            pq.StringArray(r.Products),
		PolicyNumber:        r.PolicyNumber,
		Product:             r.Product,
		PremiumOld:          r.PremiumOld,
		PremiumNew:          r.PremiumNew,
		MultiLine:           r.MultiLine,
		CreatedAt:           r.CreatedAt.Time,
		UpdatedAt:           r.UpdatedAt.Time,
	}
	if r.ContactID != "" {
		row.ContactID = sql.NullString{String: r.ContactID, Valid: true}
	}
	if !r.RenewalDate.IsZero() {
		row.RenewalDate = sql.NullTime{Time: r.RenewalDate, Valid: true}
	}
	return row
}

func toRecord(row *recordRow) *records.Record {
	r := &records.Record{
		ID:                  row.ID,
		TenantID:            row.TenantID,
		Key:                 row.Key,
		Family:              records.Family(row.Family),
		FirstName:           row.FirstName,
		LastName:            row.LastName,
		Phones:              []string(row.Phones),
		Email:               row.Email,
		PostalCode:          row.PostalCode,
		ContactID:           row.ContactID.String,
		SourceID:            row.SourceID,
		Status:              records.Status(row.Status),
		Attention:           row.Attention,
		AttentionReason:     records.AttentionReason(row.AttentionReason),
		ConflictingSourceID: row.ConflictingSourceID,
		Products:            []string(row.Products),
		PolicyNumber:        row.PolicyNumber,
		Product:             row.Product,
		PremiumOld:          row.PremiumOld,
		PremiumNew:          row.PremiumNew,
		MultiLine:           row.MultiLine,
		CreatedAt:           utc.Time{Time: row.CreatedAt},
		UpdatedAt:           utc.Time{Time: row.UpdatedAt},
	}
	if row.RenewalDate.Valid {
		r.RenewalDate = row.RenewalDate.Time
	}
	return r
}

// FindByKey implements records.Store.
func (s *Store) FindByKey(ctx context.Context, tenantID, key string) (*records.Record, error) {
	sb := recordStruct.SelectFrom(recordsTable)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("key", key),
	)
	query, args := sb.Build()

	var row recordRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("record", key)
		}
		return nil, errors.WrapStore("find", "record", key, err)
	}
	return toRecord(&row), nil
}

// Insert implements records.Store.
func (s *Store) Insert(ctx context.Context, r *records.Record) (string, error) {
	cp := *r
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	now := utc.Now()
	cp.CreatedAt = now
	cp.UpdatedAt = now

	ib := recordStruct.InsertInto(recordsTable, fromRecord(&cp))
	query, args := ib.Build()

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return "", errors.WrapStore("insert", "record", cp.Key, err)
	}
	return cp.ID, nil
}

// Update implements records.Store. Only the patch's set fields appear in the
// UPDATE statement.
func (s *Store) Update(ctx context.Context, id string, p records.Patch) error {
	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update(recordsTable)

	assignments := patchAssignments(ub, p)
	if len(assignments) == 0 {
		return nil
	}
	assignments = append(assignments, ub.Assign("updated_at", utc.Now().Time))
	ub.Set(assignments...)
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.WrapStore("update", "record", id, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return errors.NewNotFoundError("record", id)
	}
	return nil
}

// patchAssignments converts set patch fields into UPDATE assignments.
func patchAssignments(ub *sqlbuilder.UpdateBuilder, p records.Patch) []string {
	var out []string
	if p.FirstName != nil {
		out = append(out, ub.Assign("first_name", *p.FirstName))
	}
	if p.LastName != nil {
		out = append(out, ub.Assign("last_name", *p.LastName))
	}
	if p.Phones != nil {
		out = append(out, ub.Assign("phones", pq.StringArray(*p.Phones)))
	}
	if p.Email != nil {
		out = append(out, ub.Assign("email", *p.Email))
	}
	if p.PostalCode != nil {
		out = append(out, ub.Assign("postal_code", *p.PostalCode))
	}
	if p.ContactID != nil {
		out = append(out, ub.Assign("contact_id", *p.ContactID))
	}
	if p.SourceID != nil {
		out = append(out, ub.Assign("source_id", *p.SourceID))
	}
	if p.Status != nil {
		out = append(out, ub.Assign("status", string(*p.Status)))
	}
	if p.Attention != nil {
		out = append(out, ub.Assign("attention", *p.Attention))
	}
	if p.AttentionReason != nil {
		out = append(out, ub.Assign("attention_reason", string(*p.AttentionReason)))
	}
	if p.ConflictingSourceID != nil {
		out = append(out, ub.Assign("conflicting_source_id", *p.ConflictingSourceID))
	}
	if p.Products != nil {
		out = append(out, ub.Assign("products", pq.StringArray(*p.Products)))
	}
	if p.Product != nil {
		out = append(out, ub.Assign("product", *p.Product))
	}
	if p.PremiumOld != nil {
		out = append(out, ub.Assign("premium_old", *p.PremiumOld))
	}
	if p.PremiumNew != nil {
		out = append(out, ub.Assign("premium_new", *p.PremiumNew))
	}
	if p.RenewalDate != nil {
		out = append(out, ub.Assign("renewal_date", *p.RenewalDate))
	}
	if p.MultiLine != nil {
		out = append(out, ub.Assign("multi_line", *p.MultiLine))
	}
	return out
}

// contactRow is the database shape of a records.Contact.
type contactRow struct {
	ID         string    `db:"id"`
	TenantID   string    `db:"tenant_id"`
	Name       string    `db:"name"`
	PostalCode string    `db:"postal_code"`
	Phone      string    `db:"phone"`
	Email      string    `db:"email"`
	CreatedAt  time.Time `db:"created_at"`
}

// FindContactByName implements records.ContactStore.
func (s *Store) FindContactByName(ctx context.Context, tenantID, name string) (*records.Contact, error) {
	sb := contactStruct.SelectFrom(contactsTable)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("name", name),
	)
	query, args := sb.Build()

	var row contactRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("contact", name)
		}
		return nil, errors.WrapStore("find", "contact", name, err)
	}
	return &records.Contact{
		ID:         row.ID,
		TenantID:   row.TenantID,
		Name:       row.Name,
		PostalCode: row.PostalCode,
		Phone:      row.Phone,
		Email:      row.Email,
		CreatedAt:  utc.Time{Time: row.CreatedAt},
	}, nil
}

// InsertContact implements records.ContactStore.
func (s *Store) InsertContact(ctx context.Context, c *records.Contact) (string, error) {
	cp := *c
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	cp.CreatedAt = utc.Now()

	ib := contactStruct.InsertInto(contactsTable, &contactRow{
		ID:         cp.ID,
		TenantID:   cp.TenantID,
		Name:       cp.Name,
		PostalCode: cp.PostalCode,
		Phone:      cp.Phone,
		Email:      cp.Email,
		CreatedAt:  cp.CreatedAt.Time,
	})
	query, args := ib.Build()

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return "", errors.WrapStore("insert", "contact", cp.Name, err)
	}
	return cp.ID, nil
}

// uploadRow is the database shape of a records.Upload.
type uploadRow struct {
	ID         string       `db:"id"`
	TenantID   string       `db:"tenant_id"`
	Filename   string       `db:"filename"`
	RowCount   int          `db:"row_count"`
	ActorID    string       `db:"actor_id"`
	ActorName  string       `db:"actor_name"`
	RangeStart sql.NullTime `db:"range_start"`
	RangeEnd   sql.NullTime `db:"range_end"`
	CreatedAt  time.Time    `db:"created_at"`
}

// InsertUpload implements records.UploadStore.
func (s *Store) InsertUpload(ctx context.Context, u *records.Upload) (string, error) {
	cp := *u
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	cp.CreatedAt = utc.Now()

	row := &uploadRow{
		ID:        cp.ID,
		TenantID:  cp.TenantID,
		Filename:  cp.Filename,
		RowCount:  cp.RowCount,
		ActorID:   cp.ActorID,
		ActorName: cp.ActorName,
		CreatedAt: cp.CreatedAt.Time,
	}
	if !cp.RangeStart.IsZero() {
		row.RangeStart = sql.NullTime{Time: cp.RangeStart, Valid: true}
	}
	if !cp.RangeEnd.IsZero() {
		row.RangeEnd = sql.NullTime{Time: cp.RangeEnd, Valid: true}
	}

	ib := uploadStruct.InsertInto(uploadsTable, row)
	query, args := ib.Build()

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return "", errors.WrapStore("insert", "upload", cp.Filename, err)
	}
	return cp.ID, nil
}
