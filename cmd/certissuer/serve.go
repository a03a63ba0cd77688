package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	grpcapi "github.com/KirillZiborov/certissuer/internal/api/grpc"
	"github.com/KirillZiborov/certissuer/internal/api/http/handlers"
	"github.com/KirillZiborov/certissuer/internal/app"
	"github.com/KirillZiborov/certissuer/internal/auth"
	"github.com/KirillZiborov/certissuer/internal/config"
	"github.com/KirillZiborov/certissuer/internal/logging"
)

// shutdownTimeout bounds the graceful shutdown of the HTTPS server.
const shutdownTimeout = 5 * time.Second

// serve runs the configured HTTPS and gRPC servers with the issued pair
// until ctx is done or a server fails. The pair is verified before either
// server starts.
func serve(ctx context.Context, cfg *config.Config, svc *app.IssuerService) error {
	authn := auth.New(cfg.AuthSecret)
	if cfg.AuthSecret == "" {
		logging.Sugar.Warnw("No auth secret configured, API requests will be refused")
	}

	bundle, err := svc.ServingPair()
	if err != nil {
		return err
	}
	tlsCert, err := tls.X509KeyPair(bundle.CertPEM, bundle.KeyPEM)
	if err != nil {
		return fmt.Errorf("failed to load TLS key pair: %w", err)
	}
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{tlsCert},
		MinVersion:   tls.VersionTLS12,
	}

	var lis net.Listener
	if cfg.GRPCAddress != "" {
		lis, err = net.Listen("tcp", cfg.GRPCAddress)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", cfg.GRPCAddress, err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Address != "" {
		srv := &http.Server{
			Addr:              cfg.Address,
			Handler:           handlers.NewRouter(svc, authn),
			ReadHeaderTimeout: 10 * time.Second,
			TLSConfig:         tlsConfig,
		}

		g.Go(func() error {
			logging.Sugar.Infow("Starting HTTPS server at", "addr", cfg.Address)
			err := srv.ListenAndServeTLS("", "")
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if cfg.GRPCAddress != "" {
		s := grpcapi.NewServer(svc, authn, grpc.Creds(credentials.NewTLS(tlsConfig)))

		g.Go(func() error {
			logging.Sugar.Infow("Starting gRPC server at", "addr", cfg.GRPCAddress)
			if err := s.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			s.GracefulStop()
			return nil
		})
	}

	return g.Wait()
}
