// Package pemutil encodes and decodes the PEM artifacts produced by the issuer:
// PKCS#8 private keys and X.509 certificates.
package pemutil

import (
	"bytes"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"strings"

	"github.com/pkg/errors"
)

// PEM block types written by this package.
const (
	// TypeCertificate is the PEM block type of an X.509 certificate.
	TypeCertificate = "CERTIFICATE"
	// TypePrivateKey is the PEM block type of a PKCS#8 private key.
	TypePrivateKey = "PRIVATE KEY"
	// TypeRSAPrivateKey is the PEM block type of a PKCS#1 RSA private key.
	TypeRSAPrivateKey = "RSA PRIVATE KEY"
)

var (
	errEncodeKey          = errors.New("encode key")
	errEncodeCert         = errors.New("encode cert")
	errMarshalPrivateKey  = errors.New("marshal private key")
	errParsePrivateKey    = errors.New("parse private key")
	errParseCertificate   = errors.New("parse certificate")
	errNotRSAKey          = errors.New("private key is not RSA")
	errNoCertificateInPEM = errors.New("no certificate in PEM")
	errNoPrivateKeyInPEM  = errors.New("no private key in PEM")
)

// EncodeCertificate wraps DER certificate bytes into a CERTIFICATE PEM block.
func EncodeCertificate(der []byte) ([]byte, error) {
	out := &bytes.Buffer{}
	block := pem.Block{
		Type:  TypeCertificate,
		Bytes: der,
	}
	if err := pem.Encode(out, &block); err != nil {
		return nil, errors.Wrap(err, errEncodeCert.Error())
	}
	return out.Bytes(), nil
}

// EncodePrivateKey marshals the key into an unencrypted PKCS#8 PRIVATE KEY PEM block.
func EncodePrivateKey(priv *rsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, errors.Wrap(err, errMarshalPrivateKey.Error())
	}

	out := &bytes.Buffer{}
	block := pem.Block{
		Type:  TypePrivateKey,
		Bytes: der,
	}
	if err := pem.Encode(out, &block); err != nil {
		return nil, errors.Wrap(err, errEncodeKey.Error())
	}
	return out.Bytes(), nil
}

// DecodeCertificate returns the first certificate found in the PEM data.
// Blocks of other types are skipped.
func DecodeCertificate(data []byte) (*x509.Certificate, error) {
	for len(data) > 0 {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != TypeCertificate {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, errors.Wrap(err, errParseCertificate.Error())
		}
		return cert, nil
	}
	return nil, errNoCertificateInPEM
}

// DecodePrivateKey returns the RSA private key found in the PEM data.
// PKCS#8 is expected; PKCS#1 blocks are accepted too.
func DecodePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	for len(data) > 0 {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}

		switch block.Type {
		case TypePrivateKey:
			key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
			if err != nil {
				return nil, errors.Wrap(err, errParsePrivateKey.Error())
			}
			rsaKey, ok := key.(*rsa.PrivateKey)
			if !ok {
				return nil, errNotRSAKey
			}
			return rsaKey, nil
		case TypeRSAPrivateKey:
			key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
			if err != nil {
				return nil, errors.Wrap(err, errParsePrivateKey.Error())
			}
			return key, nil
		}
	}
	return nil, errNoPrivateKeyInPEM
}

// Fingerprint returns the SHA-256 digest of the certificate DER as
// upper-case hex pairs separated by colons.
func Fingerprint(cert *x509.Certificate) string {
	sum := sha256.Sum256(cert.Raw)
	hexSum := strings.ToUpper(hex.EncodeToString(sum[:]))

	var b strings.Builder
	for i := 0; i < len(hexSum); i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(hexSum[i : i+2])
	}
	return b.String()
}
