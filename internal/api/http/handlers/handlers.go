// Package handlers implements the HTTPS API of the certificate issuer.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi"

	"github.com/KirillZiborov/certissuer/internal/api/http/gzip"
	"github.com/KirillZiborov/certissuer/internal/app"
	"github.com/KirillZiborov/certissuer/internal/auth"
	"github.com/KirillZiborov/certissuer/internal/issuer"
	"github.com/KirillZiborov/certissuer/internal/logging"
)

// NewRouter wires the API routes.
//
//	GET  /certificate       the certificate served by this instance
//	GET  /ping              ledger health
//	POST /api/issue         issue a certificate for the caller
//	GET  /api/certificates  certificates issued for the caller
//
// Routes under /api require a bearer token and, if configured, a client
// address inside the trusted subnet.
func NewRouter(svc *app.IssuerService, authn *auth.Authenticator) chi.Router {
	r := chi.NewRouter()
	r.Use(logging.LoggingMiddleware())
	r.Use(gzip.Middleware)

	r.Get("/certificate", CertificateHandler(svc))
	r.Get("/ping", PingHandler(svc))

	r.Route("/api", func(r chi.Router) {
		r.Use(TrustedSubnetMiddleware(svc))
		r.Use(authn.Middleware())

		r.Post("/issue", IssueHandler(svc))
		r.Get("/certificates", ListHandler(svc))
	})

	return r
}

// CertificateHandler responds with the PEM certificate written by the last
// file issuance.
//
// Possible error codes in response:
// - 500 (Internal Server Error) if the certificate file cannot be read.
func CertificateHandler(svc *app.IssuerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		certPEM, err := os.ReadFile(svc.Cfg.CertFilePath)
		if err != nil {
			logging.Sugar.Errorw("Failed to read certificate file", "error", err, "path", svc.Cfg.CertFilePath)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/x-pem-file")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(certPEM); err != nil {
			logging.Sugar.Errorw("Failed to write certificate", "error", err)
		}
	}
}

// PingHandler checks the ledger store and responds with a 200 OK status.
//
// Possible error codes in response:
// - 500 (Internal Server Error) if the ledger is unreachable.
func PingHandler(svc *app.IssuerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()

		if err := svc.Ping(ctx); err != nil {
			http.Error(w, "Unable to reach the ledger", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}

// IssueRequest holds the names of a certificate to issue.
type IssueRequest struct {
	Subject string `json:"subject"`
	Issuer  string `json:"issuer"`
}

// IssueResponse holds an issued certificate and its private key.
type IssueResponse struct {
	Serial      string    `json:"serial"`
	Subject     string    `json:"subject"`
	Issuer      string    `json:"issuer"`
	NotBefore   time.Time `json:"not_before"`
	NotAfter    time.Time `json:"not_after"`
	Fingerprint string    `json:"fingerprint"`
	Certificate string    `json:"certificate"`
	PrivateKey  string    `json:"private_key"`
}

// IssueHandler issues a certificate for the authenticated requester.
// It expects a POST request with a JSON IssueRequest and responds with
// a 201 Created status and a JSON IssueResponse.
//
// Possible error codes in response:
// - 400 (Bad Request) if the request is malformed or a name is invalid.
// - 401 (Unauthorized) if the authentification token is invalid.
// - 500 (Internal Server Error) if the server fails.
func IssueHandler(svc *app.IssuerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requesterID, ok := auth.RequesterFromContext(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		var req IssueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}

		bundle, rec, err := svc.IssueBundle(r.Context(), req.Subject, req.Issuer, requesterID)
		if errors.Is(err, issuer.ErrNameConstruction) || errors.Is(err, issuer.ErrInvalidOptions) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		} else if err != nil {
			logging.Sugar.Errorw("Failed to issue certificate", "error", err, "requester", requesterID)
			http.Error(w, "Failed to issue certificate", http.StatusInternalServerError)
			return
		}

		resp := IssueResponse{
			Serial:      rec.Serial,
			Subject:     rec.Subject,
			Issuer:      rec.Issuer,
			NotBefore:   rec.NotBefore,
			NotAfter:    rec.NotAfter,
			Fingerprint: rec.Fingerprint,
			Certificate: string(bundle.CertPEM),
			PrivateKey:  string(bundle.KeyPEM),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logging.Sugar.Errorw("Failed to encode response", "error", err)
		}
	}
}

// ListHandler retrieves the certificates issued for the authenticated requester.
// It responds with a JSON array of ledger records and a 200 OK status.
//
// Possible error codes in response:
// - 204 (No Content) if nothing was issued for the requester.
// - 401 (Unauthorized) if the authentification token is invalid.
// - 500 (Internal Server Error) if the server fails.
func ListHandler(svc *app.IssuerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requesterID, ok := auth.RequesterFromContext(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		records, err := svc.Certificates(r.Context(), requesterID)
		if err != nil {
			http.Error(w, "Failed to get a list of certificates", http.StatusInternalServerError)
			return
		}

		// Respond with 204 StatusNoContent if there is no records found in storage.
		if len(records) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(records); err != nil {
			logging.Sugar.Errorw("Failed to encode response", "error", err)
		}
	}
}

// TrustedSubnetMiddleware rejects callers outside the trusted subnet with
// 403 Forbidden. The client address is read from the X-Real-IP header and
// falls back to the connection's remote address.
func TrustedSubnetMiddleware(svc *app.IssuerService) func(h http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := r.Header.Get("X-Real-IP")
			if clientIP == "" {
				clientIP, _, _ = net.SplitHostPort(r.RemoteAddr)
			}

			if err := svc.CheckTrustedSubnet(clientIP); err != nil {
				switch {
				case errors.Is(err, app.ErrIPNotInSubnet), errors.Is(err, app.ErrNoClientIP):
					http.Error(w, "Forbidden", http.StatusForbidden)
				default:
					// CIDR parsing error.
					http.Error(w, "Invalid trusted subnet", http.StatusInternalServerError)
				}
				return
			}

			h.ServeHTTP(w, r)
		})
	}
}
