package issuer

import (
	"errors"
	"fmt"
)

// Step identifies the stage of the issuance pipeline an error came from.
type Step int

// Pipeline steps in execution order.
const (
	StepValidate Step = iota
	StepSerial
	StepKey
	StepName
	StepSign
	StepSerialize
	StepWrite
	// StepCancel marks an issuance abandoned because its context was done.
	StepCancel
)

var stepNames = map[Step]string{
	StepValidate:  "validate options",
	StepSerial:    "generate serial number",
	StepKey:       "generate key pair",
	StepName:      "build name",
	StepSign:      "sign certificate",
	StepSerialize: "serialize",
	StepWrite:     "write file",
	StepCancel:    "canceled",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("step(%d)", int(s))
}

var (
	// ErrInvalidOptions is returned when Options fail validation.
	ErrInvalidOptions = errors.New("invalid options")
	// ErrSerialGeneration is returned when the random serial cannot be drawn.
	ErrSerialGeneration = errors.New("serial generation failed")
	// ErrKeyGeneration is returned when the RSA key pair cannot be generated.
	ErrKeyGeneration = errors.New("key generation failed")
	// ErrNameConstruction is returned when a subject or issuer name is unusable.
	ErrNameConstruction = errors.New("name construction failed")
	// ErrSigning is returned when the certificate cannot be signed.
	ErrSigning = errors.New("signing failed")
	// ErrSerialization is returned when the key or certificate cannot be PEM encoded.
	ErrSerialization = errors.New("serialization failed")
	// ErrFileWrite is returned when an output file cannot be written.
	ErrFileWrite = errors.New("file write failed")
	// ErrCanceled is returned when the context is done before the certificate is signed.
	ErrCanceled = errors.New("issuance canceled")
)

var stepKinds = map[Step]error{
	StepValidate:  ErrInvalidOptions,
	StepSerial:    ErrSerialGeneration,
	StepKey:       ErrKeyGeneration,
	StepName:      ErrNameConstruction,
	StepSign:      ErrSigning,
	StepSerialize: ErrSerialization,
	StepWrite:     ErrFileWrite,
	StepCancel:    ErrCanceled,
}

// Error is the error returned by Generate and Issue.
// errors.Is matches it against the sentinel of its step as well as the
// underlying cause.
type Error struct {
	Step Step
	Err  error
}

func newError(step Step, err error) *Error {
	return &Error{Step: step, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for the failing step.
func (e *Error) Is(target error) bool {
	kind, ok := stepKinds[e.Step]
	return ok && kind == target
}
