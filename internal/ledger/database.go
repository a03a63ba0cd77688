package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the PostgreSQL SQLSTATE of a unique constraint violation.
const uniqueViolation = "23505"

// DBStore is a Store backed by PostgreSQL.
type DBStore struct {
	db *pgxpool.Pool
}

// NewDBStore connects to the database at dsn and makes sure the
// certificates table exists.
func NewDBStore(ctx context.Context, dsn string) (*DBStore, error) {
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := CreateCertificateTable(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &DBStore{db: db}, nil
}

// CreateCertificateTable creates the certificates table if it does not exist.
func CreateCertificateTable(ctx context.Context, db *pgxpool.Pool) error {
	query := `
    CREATE TABLE IF NOT EXISTS certificates (
        id TEXT PRIMARY KEY,
        serial TEXT NOT NULL UNIQUE,
        subject TEXT NOT NULL,
        issuer TEXT NOT NULL,
        not_before TIMESTAMPTZ NOT NULL,
        not_after TIMESTAMPTZ NOT NULL,
        fingerprint TEXT NOT NULL,
        key_file TEXT NOT NULL DEFAULT '',
        cert_file TEXT NOT NULL DEFAULT '',
        requester TEXT NOT NULL DEFAULT '',
        created_at TIMESTAMPTZ NOT NULL
    );
    `
	_, err := db.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("unable to create table: %w", err)
	}
	return nil
}

// Save inserts rec. A serial collision is reported as ErrDuplicateSerial.
func (store *DBStore) Save(ctx context.Context, rec *Record) error {
	prepare(rec)

	_, err := store.db.Exec(ctx, `
        INSERT INTO certificates
            (id, serial, subject, issuer, not_before, not_after, fingerprint, key_file, cert_file, requester, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, rec.Serial, rec.Subject, rec.Issuer, rec.NotBefore, rec.NotAfter,
		rec.Fingerprint, rec.KeyFile, rec.CertFile, rec.Requester, rec.CreatedAt,
	)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateSerial
	}
	return err
}

// HasSerial reports whether serial is recorded.
func (store *DBStore) HasSerial(ctx context.Context, serial string) (bool, error) {
	var exists bool
	err := store.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM certificates WHERE serial = $1)`, serial,
	).Scan(&exists)
	return exists, err
}

// List returns the records of requester, or all records if requester is empty.
func (store *DBStore) List(ctx context.Context, requester string) ([]Record, error) {
	rows, err := store.db.Query(ctx, `
        SELECT id, serial, subject, issuer, not_before, not_after, fingerprint, key_file, cert_file, requester, created_at
        FROM certificates
        WHERE $1 = '' OR requester = $1
        ORDER BY created_at`, requester)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		var rec Record
		err := row.Scan(&rec.ID, &rec.Serial, &rec.Subject, &rec.Issuer, &rec.NotBefore, &rec.NotAfter,
			&rec.Fingerprint, &rec.KeyFile, &rec.CertFile, &rec.Requester, &rec.CreatedAt)
		return rec, err
	})
}

// Ping checks the database connection.
func (store *DBStore) Ping(ctx context.Context) error {
	return store.db.Ping(ctx)
}

// Close releases the connection pool.
func (store *DBStore) Close() {
	store.db.Close()
}
