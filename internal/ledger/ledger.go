// Package ledger keeps a journal of issued certificates.
// Records are stored either in a JSON lines file or in PostgreSQL.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrDuplicateSerial is returned by Save when a record with the same serial
// number already exists.
var ErrDuplicateSerial = errors.New("serial number already issued")

// Record describes one issued certificate.
type Record struct {
	ID          string    `json:"id"`
	Serial      string    `json:"serial"`
	Subject     string    `json:"subject"`
	Issuer      string    `json:"issuer"`
	NotBefore   time.Time `json:"not_before"`
	NotAfter    time.Time `json:"not_after"`
	Fingerprint string    `json:"fingerprint"`
	KeyFile     string    `json:"key_file,omitempty"`
	CertFile    string    `json:"cert_file,omitempty"`
	Requester   string    `json:"requester,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store persists issuance records.
type Store interface {
	// Save stores a record. It returns ErrDuplicateSerial if the serial is taken.
	Save(ctx context.Context, rec *Record) error
	// HasSerial reports whether a record with the serial exists.
	HasSerial(ctx context.Context, serial string) (bool, error)
	// List returns the records of a requester. An empty requester lists every record.
	List(ctx context.Context, requester string) ([]Record, error)
	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
}

// prepare fills the generated fields of a record before it is stored.
func prepare(rec *Record) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
}

// NopStore is a Store that records nothing. It is used when no ledger is configured.
type NopStore struct{}

// Save discards rec.
func (NopStore) Save(context.Context, *Record) error { return nil }

// HasSerial always reports false.
func (NopStore) HasSerial(context.Context, string) (bool, error) { return false, nil }

// List returns no records.
func (NopStore) List(context.Context, string) ([]Record, error) { return nil, nil }

// Ping always succeeds.
func (NopStore) Ping(context.Context) error { return nil }
