// Package interceptors provides gRPC interceptors for handling authentication and authorization.
package interceptors

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/KirillZiborov/certissuer/internal/auth"
)

// authorizationHeader is the metadata key carrying the bearer token.
const authorizationHeader = "authorization"

// AuthInterceptor is a gRPC interceptor that authenticates callers by the
// bearer token in the "authorization" metadata, like the HTTPS API does with
// the Authorization header. The requester ID is stored in the context.
func AuthInterceptor(authn *auth.Authenticator) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		// Extract metadata from incoming context.
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		values := md.Get(authorizationHeader)
		if len(values) == 0 {
			return nil, status.Errorf(codes.Unauthenticated, "missing %s", authorizationHeader)
		}

		token, err := auth.BearerToken(values[0])
		if err != nil {
			return nil, status.Errorf(codes.Unauthenticated, "malformed %s", authorizationHeader)
		}

		requesterID, err := authn.RequesterID(token)
		if err != nil {
			return nil, status.Errorf(codes.Unauthenticated, "invalid token in %s", authorizationHeader)
		}

		// Put requester ID in context and call next handler.
		return handler(auth.WithRequester(ctx, requesterID), req)
	}
}

// WithBearerToken returns a client context sending token in the
// "authorization" metadata.
func WithBearerToken(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, authorizationHeader, "Bearer "+token)
}
