// Command certissuer issues a self-signed certificate and its private key.
//
// Without arguments it writes server.key and server.pem for CN=jb.tkirk.land
// issued by CN=Local CA into the working directory. See package config for
// the flags and environment variables that change this.
//
// Usage:
//
//	certissuer [flags]               issue the certificate
//	certissuer [flags] token [id]    print an API bearer token for requester id
//
// When -a or -g is set the freshly issued pair is then used to serve the
// HTTPS and gRPC APIs until SIGINT or SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/KirillZiborov/certissuer/internal/app"
	"github.com/KirillZiborov/certissuer/internal/auth"
	"github.com/KirillZiborov/certissuer/internal/config"
	"github.com/KirillZiborov/certissuer/internal/ledger"
	"github.com/KirillZiborov/certissuer/internal/logging"
)

func main() {
	if err := logging.Initialize(); err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logger:", err)
	}

	cfg := config.NewConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, cfg, flag.Args(), os.Stdout)
	stop()

	// Sync fails on terminals that do not support fsync.
	_ = logging.Sugar.Sync()
	os.Exit(code)
}

// run executes the command and returns the process exit code.
func run(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer) int {
	if len(args) > 0 && args[0] == "token" {
		return printToken(cfg, args[1:], stdout)
	}
	if len(args) > 0 {
		fmt.Fprintf(stdout, "There was an error: unknown command %q\n", args[0])
		return 2
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stdout, "There was an error: %v\n", err)
		return 1
	}
	defer closeStore()

	svc := &app.IssuerService{Store: store, Cfg: cfg}

	res, err := svc.IssueFiles(ctx)
	if err != nil {
		logging.Sugar.Errorw("Issuance failed", "error", err)
		fmt.Fprintf(stdout, "There was an error: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Private key file: %s\n", res.KeyFile)
	fmt.Fprintf(stdout, "Certificate file: %s\n", res.CertFile)

	if cfg.Address == "" && cfg.GRPCAddress == "" {
		return 0
	}

	if err := serve(ctx, cfg, svc); err != nil {
		logging.Sugar.Errorw("Server failed", "error", err)
		return 1
	}
	return 0
}

// openStore opens the PostgreSQL ledger if a DSN is configured, the ledger
// file if a path is configured, and a store that records nothing otherwise.
func openStore(ctx context.Context, cfg *config.Config) (ledger.Store, func(), error) {
	if cfg.DBPath == "" {
		if cfg.LedgerPath == "" {
			return ledger.NopStore{}, func() {}, nil
		}
		return ledger.NewFileStore(cfg.LedgerPath), func() {}, nil
	}

	store, err := ledger.NewDBStore(ctx, cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

func printToken(cfg *config.Config, args []string, stdout io.Writer) int {
	var requesterID string
	if len(args) > 0 {
		requesterID = args[0]
	}

	token, err := auth.New(cfg.AuthSecret).BuildJWTString(requesterID)
	if err != nil {
		fmt.Fprintf(stdout, "There was an error: %v\n", err)
		return 1
	}

	fmt.Fprintln(stdout, token)
	return 0
}
