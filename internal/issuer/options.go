package issuer

import (
	"fmt"
	"path/filepath"
	"unicode/utf8"
)

// Default issuance parameters.
const (
	// DefaultSubjectName is the Common Name of the issued certificate.
	DefaultSubjectName = "jb.tkirk.land"
	// DefaultIssuerName is the Common Name placed in the issuer field.
	DefaultIssuerName = "Local CA"
	// DefaultValidityDays is the number of calendar days the certificate is valid for.
	DefaultValidityDays = 365
	// DefaultKeyBits is the RSA modulus size.
	DefaultKeyBits = 4096
	// DefaultKeyFilePath specifies the file path for storing the generated private key.
	DefaultKeyFilePath = "server.key"
	// DefaultCertFilePath specifies the file path for storing the generated certificate.
	DefaultCertFilePath = "server.pem"
)

const (
	// minKeyBits is the smallest RSA modulus accepted.
	minKeyBits = 2048
	// maxCommonNameLength is the X.520 upper bound for a Common Name.
	maxCommonNameLength = 64
)

// Options describes a single issuance.
type Options struct {
	// SubjectName is used verbatim as the subject Common Name.
	SubjectName string
	// IssuerName is used verbatim as the issuer Common Name.
	IssuerName string
	// ValidityDays is added to the issuance time in calendar days.
	ValidityDays int
	// KeyBits is the RSA modulus size of the generated key.
	KeyBits int
	// KeyFilePath is where Issue writes the PKCS#8 private key.
	KeyFilePath string
	// CertFilePath is where Issue writes the certificate.
	CertFilePath string
	// IsCA sets the CA flag of the Basic Constraints extension.
	IsCA bool
}

// DefaultOptions returns the options of the reference issuance:
// CN=jb.tkirk.land issued by CN=Local CA, 365 days, RSA 4096, CA=true,
// written to server.key and server.pem.
func DefaultOptions() Options {
	return Options{
		SubjectName:  DefaultSubjectName,
		IssuerName:   DefaultIssuerName,
		ValidityDays: DefaultValidityDays,
		KeyBits:      DefaultKeyBits,
		KeyFilePath:  DefaultKeyFilePath,
		CertFilePath: DefaultCertFilePath,
		IsCA:         true,
	}
}

// validate checks everything that can be checked before the key is generated.
func (o Options) validate() error {
	if err := validateCommonName("subject", o.SubjectName); err != nil {
		return newError(StepName, err)
	}
	if err := validateCommonName("issuer", o.IssuerName); err != nil {
		return newError(StepName, err)
	}

	if o.ValidityDays < 1 {
		return newError(StepValidate, fmt.Errorf("validity must be at least one day, got %d", o.ValidityDays))
	}
	if o.KeyBits < minKeyBits || o.KeyBits%8 != 0 {
		return newError(StepValidate, fmt.Errorf("key size must be a multiple of 8 and at least %d bits, got %d", minKeyBits, o.KeyBits))
	}
	return nil
}

// validatePaths checks the output locations used by Issue.
func (o Options) validatePaths() error {
	if o.KeyFilePath == "" || o.CertFilePath == "" {
		return newError(StepValidate, fmt.Errorf("output paths must not be empty"))
	}
	if filepath.Clean(o.KeyFilePath) == filepath.Clean(o.CertFilePath) {
		return newError(StepValidate, fmt.Errorf("key and certificate paths are the same: %s", o.KeyFilePath))
	}
	return nil
}

func validateCommonName(field, name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%s name is empty", field)
	case !utf8.ValidString(name):
		return fmt.Errorf("%s name is not valid UTF-8", field)
	case utf8.RuneCountInString(name) > maxCommonNameLength:
		return fmt.Errorf("%s name exceeds %d characters", field, maxCommonNameLength)
	}
	return nil
}
