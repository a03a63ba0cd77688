package interceptors

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/KirillZiborov/certissuer/internal/app"
)

// ctxKey defines a type of a key for storing IP value in context.
// Defined to avoid staticcheck warnings.
type ctxKey string

// CtxClientIPKey is the key in context where we store client IP.
const CtxClientIPKey ctxKey = "clientIP"

// IPInterceptor extracts an IP address from metadata or from peer.Address.
// It saves the found IP to the context.
func IPInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {

		var clientIP string

		// Extract x-real-ip from metadata.
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			xRealIPHeader := md.Get("x-real-ip")
			if len(xRealIPHeader) > 0 {
				clientIP = strings.TrimSpace(xRealIPHeader[0])
			}
		}

		// Extract IP from peer.Addr if it is not found in metadata.
		if clientIP == "" {
			if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
				clientIP = p.Addr.String()
			}
		}

		// Save IP to the context.
		newCtx := context.WithValue(ctx, CtxClientIPKey, clientIP)

		// Call next handler.
		return handler(newCtx, req)
	}
}

// GetClientIPFromContext extracts IP from context in gRPC methods.
func GetClientIPFromContext(ctx context.Context) string {
	val := ctx.Value(CtxClientIPKey)
	if ip, ok := val.(string); ok {
		return ip
	}
	return ""
}

// TrustedSubnetInterceptor rejects callers outside the trusted subnet with
// codes.PermissionDenied. It must run after IPInterceptor.
func TrustedSubnetInterceptor(svc *app.IssuerService) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		err := svc.CheckTrustedSubnet(GetClientIPFromContext(ctx))
		switch {
		case err == nil:
			return handler(ctx, req)
		case errors.Is(err, app.ErrIPNotInSubnet), errors.Is(err, app.ErrNoClientIP):
			return nil, status.Error(codes.PermissionDenied, "client is not in trusted subnet")
		default:
			return nil, status.Error(codes.Internal, "invalid trusted subnet")
		}
	}
}
