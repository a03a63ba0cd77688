// Package app implements the issuance service shared by the command line,
// the HTTPS API and the gRPC API.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/KirillZiborov/certissuer/internal/config"
	"github.com/KirillZiborov/certissuer/internal/issuer"
	"github.com/KirillZiborov/certissuer/internal/ledger"
	"github.com/KirillZiborov/certissuer/internal/logging"
	"github.com/KirillZiborov/certissuer/internal/pemutil"
)

// maxAttempts bounds regeneration after a serial number collision.
const maxAttempts = 3

// IssuerService issues certificates and records them in the ledger.
type IssuerService struct {
	Store ledger.Store
	Cfg   *config.Config
	// Issuer generates the certificates. Nil means the package default.
	Issuer *issuer.Issuer
}

func (s *IssuerService) issuer() *issuer.Issuer {
	if s.Issuer != nil {
		return s.Issuer
	}
	return &issuer.Issuer{}
}

// IssueFiles issues a certificate with the configured options, records it in
// the ledger and writes the key and the certificate to the configured paths.
// The record is saved before any file is written, so a ledger failure leaves
// the previous files in place. A serial number already present in the ledger
// causes a new pair to be generated.
func (s *IssuerService) IssueFiles(ctx context.Context) (*issuer.Result, error) {
	opts := s.Cfg.IssuerOptions()

	for attempt := 1; ; attempt++ {
		var rec *ledger.Record
		res, err := s.issuer().IssueWith(ctx, opts, func(bundle *issuer.Bundle) error {
			rec = newRecord(bundle)
			rec.KeyFile = opts.KeyFilePath
			rec.CertFile = opts.CertFilePath
			return s.record(ctx, rec)
		})
		if errors.Is(err, ledger.ErrDuplicateSerial) && attempt < maxAttempts {
			logging.Sugar.Warnw("Serial number collision, issuing again", "serial", rec.Serial, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, err
		}

		logging.Sugar.Infow("Certificate issued",
			"subject", rec.Subject,
			"issuer", rec.Issuer,
			"serial", rec.Serial,
			"not_after", rec.NotAfter,
			"key_file", rec.KeyFile,
			"cert_file", rec.CertFile,
		)
		return res, nil
	}
}

// IssueBundle issues a certificate in memory for requester. Subject and issuer
// names override the configured ones; the other options come from the
// configuration. Nothing is written except the ledger record.
func (s *IssuerService) IssueBundle(ctx context.Context, subject, issuerName, requester string) (*issuer.Bundle, *ledger.Record, error) {
	opts := s.Cfg.IssuerOptions()
	opts.SubjectName = subject
	opts.IssuerName = issuerName

	for attempt := 1; ; attempt++ {
		bundle, err := s.issuer().Generate(ctx, opts)
		if err != nil {
			return nil, nil, err
		}

		rec := newRecord(bundle)
		rec.Requester = requester
		err = s.record(ctx, rec)
		if errors.Is(err, ledger.ErrDuplicateSerial) && attempt < maxAttempts {
			logging.Sugar.Warnw("Serial number collision, issuing again", "serial", rec.Serial, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, nil, err
		}

		logging.Sugar.Infow("Certificate issued",
			"subject", rec.Subject,
			"issuer", rec.Issuer,
			"serial", rec.Serial,
			"not_after", rec.NotAfter,
			"requester", requester,
		)
		return bundle, rec, nil
	}
}

func newRecord(bundle *issuer.Bundle) *ledger.Record {
	cert := bundle.Certificate
	return &ledger.Record{
		Serial:      cert.SerialNumber.String(),
		Subject:     cert.Subject.CommonName,
		Issuer:      cert.Issuer.CommonName,
		NotBefore:   cert.NotBefore,
		NotAfter:    cert.NotAfter,
		Fingerprint: pemutil.Fingerprint(cert),
	}
}

// record checks the serial against the ledger and saves rec.
// A known serial is reported as ledger.ErrDuplicateSerial.
func (s *IssuerService) record(ctx context.Context, rec *ledger.Record) error {
	exists, err := s.Store.HasSerial(ctx, rec.Serial)
	if err != nil {
		return fmt.Errorf("failed to check ledger: %w", err)
	}
	if exists {
		return ledger.ErrDuplicateSerial
	}

	err = s.Store.Save(ctx, rec)
	if errors.Is(err, ledger.ErrDuplicateSerial) {
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to record issuance: %w", err)
	}
	return nil
}

// ServingPair loads the configured key and certificate and verifies that they
// belong together, for use as the TLS identity of the API servers.
func (s *IssuerService) ServingPair() (*issuer.Bundle, error) {
	bundle, err := issuer.LoadPair(s.Cfg.KeyFilePath, s.Cfg.CertFilePath)
	if err != nil {
		return nil, err
	}
	if err := issuer.Verify(bundle); err != nil {
		return nil, fmt.Errorf("invalid serving pair: %w", err)
	}
	return bundle, nil
}

// Certificates lists the ledger records of requester.
func (s *IssuerService) Certificates(ctx context.Context, requester string) ([]ledger.Record, error) {
	return s.Store.List(ctx, requester)
}

// Ping checks the ledger store.
func (s *IssuerService) Ping(ctx context.Context) error {
	return s.Store.Ping(ctx)
}
