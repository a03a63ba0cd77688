package issuer

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"github.com/KirillZiborov/certissuer/internal/pemutil"
)

// ErrKeyMismatch is returned by Verify when the private key does not belong
// to the certificate.
var ErrKeyMismatch = errors.New("private key does not match certificate")

// LoadPair reads a key and a certificate written by Issue.
func LoadPair(keyPath, certPath string) (*Bundle, error) {
	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate file: %w", err)
	}

	key, err := pemutil.DecodePrivateKey(keyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to decode key file %s: %w", keyPath, err)
	}
	cert, err := pemutil.DecodeCertificate(certPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to decode certificate file %s: %w", certPath, err)
	}

	return &Bundle{
		Certificate: cert,
		PrivateKey:  key,
		KeyPEM:      keyPEM,
		CertPEM:     certPEM,
	}, nil
}

// Verify checks that the certificate's signature verifies with its own
// public key and that the private key signs data the certificate's key accepts.
//
// CheckSignatureFrom is not used: it requires the certSign key usage, which
// these certificates do not assert.
func Verify(bundle *Bundle) error {
	cert := bundle.Certificate
	if err := cert.CheckSignature(cert.SignatureAlgorithm, cert.RawTBSCertificate, cert.Signature); err != nil {
		return fmt.Errorf("self-signature check failed: %w", err)
	}

	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("certificate key is %T, want RSA", cert.PublicKey)
	}
	if !pub.Equal(&bundle.PrivateKey.PublicKey) {
		return ErrKeyMismatch
	}

	digest := sha256.Sum256(cert.RawTBSCertificate)
	sig, err := rsa.SignPKCS1v15(rand.Reader, bundle.PrivateKey, crypto.SHA256, digest[:])
	if err != nil {
		return fmt.Errorf("test signature failed: %w", err)
	}
	if err := cert.CheckSignature(x509.SHA256WithRSA, cert.RawTBSCertificate, sig); err != nil {
		return fmt.Errorf("%w: %v", ErrKeyMismatch, err)
	}
	return nil
}
