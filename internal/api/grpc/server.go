package grpcapi

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/KirillZiborov/certissuer/internal/api/grpc/interceptors"
	"github.com/KirillZiborov/certissuer/internal/app"
	"github.com/KirillZiborov/certissuer/internal/auth"
	"github.com/KirillZiborov/certissuer/internal/issuer"
	"github.com/KirillZiborov/certissuer/internal/ledger"
	"github.com/KirillZiborov/certissuer/internal/logging"
)

// GRPCIssuerServer implements CertIssuerServer on top of the issuance service.
type GRPCIssuerServer struct {
	svc *app.IssuerService
}

// NewGRPCIssuerServer creates a new instance of the GRPCIssuerServer struct with the provided service.
func NewGRPCIssuerServer(svc *app.IssuerService) *GRPCIssuerServer {
	return &GRPCIssuerServer{svc: svc}
}

// NewServer creates a gRPC server with the CertIssuer service registered and
// the IP, trusted subnet and authentication interceptors chained in that order.
func NewServer(svc *app.IssuerService, authn *auth.Authenticator, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(
		interceptors.IPInterceptor(),
		interceptors.TrustedSubnetInterceptor(svc),
		interceptors.AuthInterceptor(authn),
	))

	s := grpc.NewServer(opts...)
	RegisterCertIssuerServer(s, NewGRPCIssuerServer(svc))
	return s
}

// Issue is the gRPC equivalent of the HTTP IssueHandler from package handlers.
func (s *GRPCIssuerServer) Issue(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	// Get requester ID from context (using interceptor).
	requesterID, ok := auth.RequesterFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "no requester in context")
	}

	fields := req.GetFields()
	subject := fields["subject"].GetStringValue()
	issuerName := fields["issuer"].GetStringValue()

	bundle, rec, err := s.svc.IssueBundle(ctx, subject, issuerName, requesterID)
	if errors.Is(err, issuer.ErrNameConstruction) || errors.Is(err, issuer.ErrInvalidOptions) {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	} else if err != nil {
		logging.Sugar.Errorw("Failed to issue certificate", "error", err, "requester", requesterID)
		return nil, status.Error(codes.Internal, "failed to issue certificate")
	}

	resp := recordFields(rec)
	resp["certificate"] = string(bundle.CertPEM)
	resp["private_key"] = string(bundle.KeyPEM)

	out, err := structpb.NewStruct(resp)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

// ListCertificates is the gRPC equivalent of the HTTP ListHandler from package handlers.
func (s *GRPCIssuerServer) ListCertificates(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	requesterID, ok := auth.RequesterFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "no requester in context")
	}

	records, err := s.svc.Certificates(ctx, requesterID)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "list certificates: %v", err)
	}

	items := make([]interface{}, 0, len(records))
	for i := range records {
		items = append(items, recordFields(&records[i]))
	}

	out, err := structpb.NewStruct(map[string]interface{}{"certificates": items})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func recordFields(rec *ledger.Record) map[string]interface{} {
	return map[string]interface{}{
		"serial":      rec.Serial,
		"subject":     rec.Subject,
		"issuer":      rec.Issuer,
		"not_before":  rec.NotBefore.Format(time.RFC3339),
		"not_after":   rec.NotAfter.Format(time.RFC3339),
		"fingerprint": rec.Fingerprint,
	}
}
