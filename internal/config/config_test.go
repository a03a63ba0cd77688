package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KirillZiborov/certissuer/internal/issuer"
)

// resetFlags avoids the "flag redefined" panic between NewConfig calls.
func resetFlags(args ...string) {
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	os.Args = append([]string{"program"}, args...)
}

func TestConfig(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		resetFlags()

		cfg := NewConfig()

		assert.Equal(t, issuer.DefaultOptions(), cfg.IssuerOptions())
		assert.Empty(t, cfg.LedgerPath)
		assert.Empty(t, cfg.DBPath)
		assert.Empty(t, cfg.Address)
		assert.Empty(t, cfg.GRPCAddress)
	})

	t.Run("flags only", func(t *testing.T) {
		resetFlags("-subject", "example.org", "-issuer", "Dev CA", "-days", "30", "-bits", "2048", "-ca=false", "-key", "a.key", "-cert", "a.pem")

		cfg := NewConfig()

		assert.Equal(t, "example.org", cfg.SubjectName)
		assert.Equal(t, "Dev CA", cfg.IssuerName)
		assert.Equal(t, 30, cfg.ValidityDays)
		assert.Equal(t, 2048, cfg.KeyBits)
		assert.False(t, cfg.IsCA)
		assert.Equal(t, "a.key", cfg.KeyFilePath)
		assert.Equal(t, "a.pem", cfg.CertFilePath)
	})

	t.Run("ENV vars + flags", func(t *testing.T) {
		resetFlags("-subject", "flag.example", "-days", "10")
		t.Setenv("SUBJECT_NAME", "env.example")
		t.Setenv("VALIDITY_DAYS", "20")
		t.Setenv("IS_CA", "false")

		cfg := NewConfig()

		assert.Equal(t, "env.example", cfg.SubjectName)
		assert.Equal(t, 20, cfg.ValidityDays)
		assert.False(t, cfg.IsCA)
	})

	t.Run("malformed ENV vars are ignored", func(t *testing.T) {
		resetFlags("-bits", "3072")
		t.Setenv("KEY_BITS", "many")
		t.Setenv("IS_CA", "maybe")

		cfg := NewConfig()

		assert.Equal(t, 3072, cfg.KeyBits)
		assert.True(t, cfg.IsCA)
	})

	t.Run("config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		content := `{"subject_name":"file.example","validity_days":90,"is_ca":false,"server_address":"localhost:8443"}`
		require.NoError(t, os.WriteFile(path, []byte(content), 0600))

		resetFlags("-config", path, "-days", "45")

		cfg := NewConfig()

		assert.Equal(t, "file.example", cfg.SubjectName)
		assert.Equal(t, "Local CA", cfg.IssuerName, "keys missing from the file keep defaults")
		assert.Equal(t, 45, cfg.ValidityDays, "flags win over the file")
		assert.False(t, cfg.IsCA)
		assert.Equal(t, "localhost:8443", cfg.Address)
	})

	t.Run("missing config file", func(t *testing.T) {
		resetFlags()
		t.Setenv("CONFIG", filepath.Join(t.TempDir(), "absent.json"))

		cfg := NewConfig()

		assert.Equal(t, issuer.DefaultOptions(), cfg.IssuerOptions())
	})
}
