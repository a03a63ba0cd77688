package issuer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// File modes of the written artifacts.
const (
	keyFileMode  os.FileMode = 0600
	certFileMode os.FileMode = 0644
)

// WriteFiles persists the bundle's key and certificate.
// Both PEMs are first written to temporary files next to their destinations
// and then renamed into place. An existing key is moved aside until the
// certificate is in place and restored if that fails, so a failed call leaves
// the previous pair (or no key at all) rather than a new key next to an old
// certificate.
func WriteFiles(bundle *Bundle, keyPath, certPath string) error {
	keyTmp, err := writeTemp(keyPath, bundle.KeyPEM, keyFileMode)
	if err != nil {
		return newError(StepWrite, err)
	}

	certTmp, err := writeTemp(certPath, bundle.CertPEM, certFileMode)
	if err != nil {
		_ = os.Remove(keyTmp)
		return newError(StepWrite, err)
	}

	backup, err := moveAside(keyPath)
	if err != nil {
		_ = os.Remove(keyTmp)
		_ = os.Remove(certTmp)
		return newError(StepWrite, err)
	}

	if err := os.Rename(keyTmp, keyPath); err != nil {
		_ = os.Remove(keyTmp)
		_ = os.Remove(certTmp)
		return newError(StepWrite, errors.Join(err, restore(backup, keyPath)))
	}
	if err := os.Rename(certTmp, certPath); err != nil {
		_ = os.Remove(certTmp)
		return newError(StepWrite, errors.Join(err, restore(backup, keyPath)))
	}

	if backup != "" {
		_ = os.Remove(backup)
	}
	return nil
}

// moveAside renames an existing file at path to a unique name in the same
// directory and returns that name. It returns "" if path does not exist.
func moveAside(path string) (string, error) {
	backup := tempName(path, "bak")
	err := os.Rename(path, backup)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return backup, nil
}

// restore puts backup back at path, or removes path if there was nothing to back up.
func restore(backup, path string) error {
	if backup == "" {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	}
	return os.Rename(backup, path)
}

func tempName(path, suffix string) string {
	return filepath.Join(filepath.Dir(path), fmt.Sprintf(".%s.%s.%s", filepath.Base(path), uuid.NewString(), suffix))
}

// writeTemp writes data to a uniquely named file in the directory of path
// and returns its name.
func writeTemp(path string, data []byte, mode os.FileMode) (string, error) {
	tmp := tempName(path, "tmp")

	file, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode)
	if err != nil {
		return "", err
	}

	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return "", err
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return "", err
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return tmp, nil
}
