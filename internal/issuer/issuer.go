// Package issuer generates self-signed X.509 certificates together with their
// RSA private keys and persists both in PEM form.
package issuer

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/binary"
	"io"
	"math/big"
	"time"

	"github.com/KirillZiborov/certissuer/internal/pemutil"
)

// Bundle holds the artifacts of one generation.
type Bundle struct {
	Certificate *x509.Certificate
	PrivateKey  *rsa.PrivateKey
	// KeyPEM is the unencrypted PKCS#8 private key.
	KeyPEM []byte
	// CertPEM is the signed certificate.
	CertPEM []byte
}

// Result describes a successful Issue call.
type Result struct {
	KeyFile     string
	CertFile    string
	Serial      *big.Int
	NotBefore   time.Time
	NotAfter    time.Time
	Fingerprint string
}

// Issuer generates certificates. The zero value uses crypto/rand and the
// wall clock.
type Issuer struct {
	// Rand is the entropy source for the serial number, the key and the signature.
	Rand io.Reader
	// Now returns the issuance time.
	Now func() time.Time
}

var defaultIssuer = &Issuer{}

// Generate creates a key pair and a certificate with the package default Issuer.
func Generate(ctx context.Context, opts Options) (*Bundle, error) {
	return defaultIssuer.Generate(ctx, opts)
}

// Issue creates a key pair and a certificate with the package default Issuer
// and writes them to opts.KeyFilePath and opts.CertFilePath.
func Issue(ctx context.Context, opts Options) (*Result, error) {
	return defaultIssuer.Issue(ctx, opts)
}

func (is *Issuer) rand() io.Reader {
	if is.Rand != nil {
		return is.Rand
	}
	return rand.Reader
}

func (is *Issuer) now() time.Time {
	if is.Now != nil {
		return is.Now()
	}
	return time.Now()
}

// Generate builds and signs a certificate for opts without touching the filesystem.
// Names and sizes are validated before the key is generated. The context is
// checked between steps; key generation itself runs to completion.
func (is *Issuer) Generate(ctx context.Context, opts Options) (*Bundle, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	// The certificate is valid starting from the creation time.
	// X.509 stores whole seconds, so both bounds are truncated alike.
	notBefore := is.now().UTC().Truncate(time.Second)
	notAfter := notBefore.AddDate(0, 0, opts.ValidityDays)

	serial, err := newSerial(is.rand())
	if err != nil {
		return nil, newError(StepSerial, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, newError(StepCancel, err)
	}
	privateKey, err := rsa.GenerateKey(is.rand(), opts.KeyBits)
	if err != nil {
		return nil, newError(StepKey, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, newError(StepCancel, err)
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: opts.SubjectName},
		NotBefore:    notBefore,
		NotAfter:     notAfter,
		// Both extensions are encoded as critical.
		BasicConstraintsValid: true,
		IsCA:                  opts.IsCA,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		SignatureAlgorithm:    x509.SHA256WithRSA,
	}
	// The issuer field is copied from the parent's subject. The parent carries
	// no public key, so the signature is made and checked with the new key.
	parent := &x509.Certificate{
		Subject: pkix.Name{CommonName: opts.IssuerName},
	}

	der, err := x509.CreateCertificate(is.rand(), template, parent, &privateKey.PublicKey, privateKey)
	if err != nil {
		return nil, newError(StepSign, err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, newError(StepSign, err)
	}

	keyPEM, err := pemutil.EncodePrivateKey(privateKey)
	if err != nil {
		return nil, newError(StepSerialize, err)
	}
	certPEM, err := pemutil.EncodeCertificate(der)
	if err != nil {
		return nil, newError(StepSerialize, err)
	}

	return &Bundle{
		Certificate: cert,
		PrivateKey:  privateKey,
		KeyPEM:      keyPEM,
		CertPEM:     certPEM,
	}, nil
}

// Issue generates a bundle and writes the key and the certificate to the
// paths in opts. It returns the two paths on success.
func (is *Issuer) Issue(ctx context.Context, opts Options) (*Result, error) {
	return is.IssueWith(ctx, opts, nil)
}

// IssueWith is like Issue but calls before once the bundle is generated and
// before any file is written. An error from before aborts the issuance and is
// returned unchanged, leaving both destinations untouched.
func (is *Issuer) IssueWith(ctx context.Context, opts Options, before func(*Bundle) error) (*Result, error) {
	if err := opts.validatePaths(); err != nil {
		return nil, err
	}

	bundle, err := is.Generate(ctx, opts)
	if err != nil {
		return nil, err
	}

	if before != nil {
		if err := before(bundle); err != nil {
			return nil, err
		}
	}

	if err := WriteFiles(bundle, opts.KeyFilePath, opts.CertFilePath); err != nil {
		return nil, err
	}

	return &Result{
		KeyFile:     opts.KeyFilePath,
		CertFile:    opts.CertFilePath,
		Serial:      bundle.Certificate.SerialNumber,
		NotBefore:   bundle.Certificate.NotBefore,
		NotAfter:    bundle.Certificate.NotAfter,
		Fingerprint: pemutil.Fingerprint(bundle.Certificate),
	}, nil
}

// newSerial draws a uniformly random 64-bit serial number. Zero is redrawn
// so the serial is always positive.
func newSerial(r io.Reader) (*big.Int, error) {
	var b [8]byte
	for {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, err
		}
		if v := binary.BigEndian.Uint64(b[:]); v != 0 {
			return new(big.Int).SetUint64(v), nil
		}
	}
}
