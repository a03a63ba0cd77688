package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KirillZiborov/certissuer/internal/auth"
	"github.com/KirillZiborov/certissuer/internal/config"
	"github.com/KirillZiborov/certissuer/internal/issuer"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.KeyBits = 2048
	cfg.KeyFilePath = filepath.Join(dir, "server.key")
	cfg.CertFilePath = filepath.Join(dir, "server.pem")
	cfg.LedgerPath = filepath.Join(dir, "issued.json")
	return cfg
}

func TestRun(t *testing.T) {
	t.Run("issue", func(t *testing.T) {
		cfg := newTestConfig(t)
		var out bytes.Buffer

		code := run(context.Background(), cfg, nil, &out)

		require.Equal(t, 0, code, out.String())
		assert.Equal(t,
			"Private key file: "+cfg.KeyFilePath+"\nCertificate file: "+cfg.CertFilePath+"\n",
			out.String())

		bundle, err := issuer.LoadPair(cfg.KeyFilePath, cfg.CertFilePath)
		require.NoError(t, err)
		assert.Equal(t, "jb.tkirk.land", bundle.Certificate.Subject.CommonName)
		assert.Equal(t, "Local CA", bundle.Certificate.Issuer.CommonName)
		assert.FileExists(t, cfg.LedgerPath)
	})

	t.Run("default run writes only the pair", func(t *testing.T) {
		dir := t.TempDir()
		wd, err := os.Getwd()
		require.NoError(t, err)
		require.NoError(t, os.Chdir(dir))
		t.Cleanup(func() {
			if err := os.Chdir(wd); err != nil {
				t.Errorf("Failed to restore working directory: %v", err)
			}
		})

		cfg := config.Default()
		cfg.KeyBits = 2048
		var out bytes.Buffer

		code := run(context.Background(), cfg, nil, &out)
		require.Equal(t, 0, code, out.String())
		assert.Equal(t, "Private key file: server.key\nCertificate file: server.pem\n", out.String())

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		assert.Equal(t, []string{"server.key", "server.pem"}, names)
	})

	t.Run("ledger failure keeps previous pair", func(t *testing.T) {
		cfg := newTestConfig(t)
		require.NoError(t, os.Mkdir(cfg.LedgerPath, 0700))
		require.NoError(t, os.WriteFile(cfg.KeyFilePath, []byte("old key"), 0600))
		require.NoError(t, os.WriteFile(cfg.CertFilePath, []byte("old cert"), 0644))
		var out bytes.Buffer

		code := run(context.Background(), cfg, nil, &out)

		assert.Equal(t, 1, code)
		assert.True(t, strings.HasPrefix(out.String(), "There was an error: failed to check ledger:"), out.String())
		key, err := os.ReadFile(cfg.KeyFilePath)
		require.NoError(t, err)
		assert.Equal(t, "old key", string(key))
		cert, err := os.ReadFile(cfg.CertFilePath)
		require.NoError(t, err)
		assert.Equal(t, "old cert", string(cert))
	})

	t.Run("failure exits non-zero", func(t *testing.T) {
		cfg := newTestConfig(t)
		cfg.KeyFilePath = filepath.Join(t.TempDir(), "missing", "server.key")
		var out bytes.Buffer

		code := run(context.Background(), cfg, nil, &out)

		assert.Equal(t, 1, code)
		assert.True(t, strings.HasPrefix(out.String(), "There was an error: write file:"), out.String())
	})

	t.Run("invalid names", func(t *testing.T) {
		cfg := newTestConfig(t)
		cfg.SubjectName = ""
		var out bytes.Buffer

		code := run(context.Background(), cfg, nil, &out)

		assert.Equal(t, 1, code)
		assert.Contains(t, out.String(), "subject name is empty")
		assert.NoFileExists(t, cfg.KeyFilePath)
	})

	t.Run("unknown command", func(t *testing.T) {
		var out bytes.Buffer
		code := run(context.Background(), newTestConfig(t), []string{"renew"}, &out)
		assert.Equal(t, 2, code)
	})

	t.Run("token", func(t *testing.T) {
		cfg := newTestConfig(t)
		cfg.AuthSecret = "supersecretkey"
		var out bytes.Buffer

		code := run(context.Background(), cfg, []string{"token", "alice"}, &out)
		require.Equal(t, 0, code)

		id, err := auth.New(cfg.AuthSecret).RequesterID(strings.TrimSpace(out.String()))
		require.NoError(t, err)
		assert.Equal(t, "alice", id)
	})

	t.Run("token without secret", func(t *testing.T) {
		var out bytes.Buffer
		code := run(context.Background(), newTestConfig(t), []string{"token"}, &out)
		assert.Equal(t, 1, code)
		assert.Contains(t, out.String(), auth.ErrNoSecret.Error())
	})

	t.Run("serve until canceled", func(t *testing.T) {
		cfg := newTestConfig(t)
		cfg.Address = "127.0.0.1:0"
		cfg.GRPCAddress = "127.0.0.1:0"
		cfg.AuthSecret = "supersecretkey"

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan int, 1)
		var out bytes.Buffer
		go func() { done <- run(ctx, cfg, nil, &out) }()

		// The ledger is written once the pair is on disk.
		require.Eventually(t, func() bool {
			_, err := os.Stat(cfg.LedgerPath)
			return err == nil
		}, 30*time.Second, 20*time.Millisecond)
		time.Sleep(100 * time.Millisecond)
		cancel()

		select {
		case code := <-done:
			assert.Equal(t, 0, code)
		case <-time.After(30 * time.Second):
			t.Fatal("servers did not stop")
		}
	})
}
