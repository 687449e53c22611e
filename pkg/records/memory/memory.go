// Package memory provides an in-memory implementation of the records store
// contracts. It backs the CLI's dry runs and the pipeline's tests, where its
// instrumentation (in-flight gauge, per-key fault injection, configurable
// latency) makes concurrency and retry behavior observable.
package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentstation/utc"
	"github.com/google/uuid"

	"github.com/agencykit/intake/pkg/errors"
	"github.com/agencykit/intake/pkg/records"
)

// Store is a thread-safe in-memory records.Store, records.ContactStore, and
// records.UploadStore.
type Store struct {
	mu       sync.RWMutex
	byKey    map[string]*records.Record // tenantID + "\x00" + key
	byID     map[string]*records.Record
	contacts map[string]*records.Contact // tenantID + "\x00" + name
	uploads  map[string]*records.Upload

	// Latency is an artificial delay applied to every call, so concurrency
	// tests have a window in which overlap is observable.
	Latency time.Duration

	inFlight    atomic.Int64
	maxInFlight atomic.Int64

	failMu    sync.Mutex
	failuresK map[string]int // remaining write failures per natural key
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		byKey:     make(map[string]*records.Record),
		byID:      make(map[string]*records.Record),
		contacts:  make(map[string]*records.Contact),
		uploads:   make(map[string]*records.Upload),
		failuresK: make(map[string]int),
	}
}

// FailWrites makes the next n writes (insert or update) touching the given
// natural key fail with a store error. Used to exercise the retry pass.
func (s *Store) FailWrites(key string, n int) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	s.failuresK[key] = n
}

// MaxInFlight returns the highest number of store calls that were ever in
// flight simultaneously.
func (s *Store) MaxInFlight() int {
	return int(s.maxInFlight.Load())
}

// ResetInFlight clears the in-flight high-water mark.
func (s *Store) ResetInFlight() {
	s.maxInFlight.Store(0)
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byKey)
}

// Records returns a snapshot copy of all stored records.
func (s *Store) Records() []records.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]records.Record, 0, len(s.byKey))
	for _, r := range s.byKey {
		out = append(out, *r)
	}
	return out
}

// Uploads returns a snapshot copy of all stored uploads.
func (s *Store) Uploads() []records.Upload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]records.Upload, 0, len(s.uploads))
	for _, u := range s.uploads {
		out = append(out, *u)
	}
	return out
}

// FindByKey implements records.Store.
func (s *Store) FindByKey(ctx context.Context, tenantID, key string) (*records.Record, error) {
	defer s.track()()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	r, ok := s.byKey[tenantID+"\x00"+key]
	s.mu.RUnlock()
	if !ok {
		return nil, errors.NewNotFoundError("record", key)
	}
	cp := *r
	return &cp, nil
}

// Insert implements records.Store.
func (s *Store) Insert(ctx context.Context, r *records.Record) (string, error) {
	defer s.track()()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := s.maybeFail(r.Key); err != nil {
		return "", err
	}

	cp := *r
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	now := utc.Now()
	cp.CreatedAt = now
	cp.UpdatedAt = now

	s.mu.Lock()
	s.byKey[cp.TenantID+"\x00"+cp.Key] = &cp
	s.byID[cp.ID] = &cp
	s.mu.Unlock()

	return cp.ID, nil
}

// Update implements records.Store.
func (s *Store) Update(ctx context.Context, id string, p records.Patch) error {
	defer s.track()()
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.byID[id]
	if !ok {
		return errors.NewNotFoundError("record", id)
	}
	if err := s.maybeFail(r.Key); err != nil {
		return err
	}

	p.Apply(r)
	r.UpdatedAt = utc.Now()
	return nil
}

// FindContactByName implements records.ContactStore.
func (s *Store) FindContactByName(ctx context.Context, tenantID, name string) (*records.Contact, error) {
	defer s.track()()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	c, ok := s.contacts[tenantID+"\x00"+name]
	s.mu.RUnlock()
	if !ok {
		return nil, errors.NewNotFoundError("contact", name)
	}
	cp := *c
	return &cp, nil
}

// InsertContact implements records.ContactStore.
func (s *Store) InsertContact(ctx context.Context, c *records.Contact) (string, error) {
	defer s.track()()
	if err := ctx.Err(); err != nil {
		return "", err
	}

	cp := *c
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	cp.CreatedAt = utc.Now()

	s.mu.Lock()
	s.contacts[cp.TenantID+"\x00"+cp.Name] = &cp
	s.mu.Unlock()

	return cp.ID, nil
}

// InsertUpload implements records.UploadStore.
func (s *Store) InsertUpload(ctx context.Context, u *records.Upload) (string, error) {
	defer s.track()()
	if err := ctx.Err(); err != nil {
		return "", err
	}

	cp := *u
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	cp.CreatedAt = utc.Now()

	s.mu.Lock()
	s.uploads[cp.ID] = &cp
	s.mu.Unlock()

	return cp.ID, nil
}

// track maintains the in-flight gauge and applies the configured latency.
func (s *Store) track() func() {
	cur := s.inFlight.Add(1)
	for {
		max := s.maxInFlight.Load()
		if cur <= max || s.maxInFlight.CompareAndSwap(max, cur) {
			break
		}
	}
	if s.Latency > 0 {
		time.Sleep(s.Latency)
	}
	return func() { s.inFlight.Add(-1) }
}

func (s *Store) maybeFail(key string) error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	if n := s.failuresK[key]; n > 0 {
		s.failuresK[key] = n - 1
		return errors.WrapStore("write", "record", key, errors.ErrStoreUnavailable)
	}
	return nil
}
