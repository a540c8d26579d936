// Package idempotency deduplicates mutating requests keyed by the
// client-supplied Idempotency-Key header plus a fingerprint of the request
// body.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	pkgerrors "github.com/yDkay/payment-system/pkg/errors"
	"github.com/yDkay/payment-system/pkg/locks"
)

// Record is one cached response. Records are immutable once written and are
// treated as absent after they expire.
type Record struct {
	Fingerprint string    `json:"fingerprint"`
	Status      int       `json:"status"`
	ContentType string    `json:"content_type,omitempty"`
	Body        []byte    `json:"body"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store persists idempotency records with a TTL.
type Store interface {
	// Get returns the live record for key, or nil when absent or expired.
	Get(ctx context.Context, key string) (*Record, error)
	// PutNX stores the record only if no live record exists for key.
	PutNX(ctx context.Context, key string, record *Record, ttl time.Duration) (bool, error)
	// SweepExpired purges expired records and reports how many were removed.
	SweepExpired(ctx context.Context) (int, error)
}

// Fingerprint hashes a normalized request body.
func Fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// Manager enforces at-most-one-execution semantics per key. The check-and-store
// step is made atomic per key with a keyed mutex, so two concurrent requests
// with the same fresh key cannot both run the underlying operation.
type Manager struct {
	store Store
	ttl   time.Duration
	keys  *locks.KeyedMutex
}

// NewManager builds an idempotency manager over the provided store.
func NewManager(store Store, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	return &Manager{
		store: store,
		ttl:   ttl,
		keys:  locks.NewKeyedMutex(),
	}, nil
}

// Execute runs fn at most once for the given key. A replay with a matching
// fingerprint returns the stored response verbatim; a replay with a different
// fingerprint fails without touching the stored record.
func (m *Manager) Execute(ctx context.Context, key, fingerprint string, fn func(ctx context.Context) (*Record, error)) (*Record, bool, error) {
	unlock := m.keys.Lock(key)
	defer unlock()

	stored, err := m.store.Get(ctx, key)
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check idempotency record")
	}
	if stored != nil {
		if stored.Fingerprint != fingerprint {
			return nil, false, pkgerrors.New(pkgerrors.CodeIdempotencyKeyReused, "idempotency key reused with a different request body").
				WithParam("idempotency_key")
		}
		return stored, true, nil
	}

	record, err := fn(ctx)
	if err != nil {
		return nil, false, err
	}
	if record == nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeInternal, "idempotent operation produced no response")
	}
	record.Fingerprint = fingerprint
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	// Server faults are retryable, not replayable.
	if record.Status < http.StatusInternalServerError {
		if _, err := m.store.PutNX(ctx, key, record, m.ttl); err != nil {
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist idempotency record")
		}
	}
	return record, false, nil
}

// Sweep purges expired records from the underlying store.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	return m.store.SweepExpired(ctx)
}
