// Package grpcapi provides the gRPC interface of the certificate issuer.
//
// The service exchanges google.protobuf.Struct messages, so clients in any
// language can call it with the well-known types alone:
//
//	certissuer.CertIssuer/Issue             {"subject", "issuer"} -> issued certificate
//	certissuer.CertIssuer/ListCertificates  {} -> {"certificates": [...]}
package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "certissuer.CertIssuer"

// Full method names.
const (
	IssueMethod            = "/" + ServiceName + "/Issue"
	ListCertificatesMethod = "/" + ServiceName + "/ListCertificates"
)

// CertIssuerServer is the server API of the CertIssuer service.
type CertIssuerServer interface {
	Issue(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListCertificates(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

func issueHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CertIssuerServer).Issue(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: IssueMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CertIssuerServer).Issue(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func listCertificatesHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CertIssuerServer).ListCertificates(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ListCertificatesMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CertIssuerServer).ListCertificates(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc is the grpc.ServiceDesc of the CertIssuer service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CertIssuerServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Issue",
			Handler:    issueHandler,
		},
		{
			MethodName: "ListCertificates",
			Handler:    listCertificatesHandler,
		},
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterCertIssuerServer registers srv on s.
func RegisterCertIssuerServer(s grpc.ServiceRegistrar, srv CertIssuerServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client calls the CertIssuer service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient returns a Client using cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Issue asks the server to issue a certificate for subject signed in the name of issuer.
func (c *Client) Issue(ctx context.Context, subject, issuer string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(map[string]interface{}{
		"subject": subject,
		"issuer":  issuer,
	})
	if err != nil {
		return nil, err
	}

	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, IssueMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ListCertificates returns the certificates issued for the caller.
func (c *Client) ListCertificates(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ListCertificatesMethod, &structpb.Struct{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
