package grpcx

import (
	"context"
	"crypto/subtle"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// SecretMetadataKey is the gRPC metadata key that carries the shared secret.
const SecretMetadataKey = "jobpack-secret"

// SecretCredentials is a grpc.PerRPCCredentials that attaches a shared secret
// to every RPC.
//
// It does not require transport security, it is only intended for use over
// the loopback interface.
type SecretCredentials string

// GetRequestMetadata returns the metadata containing the secret.
func (c SecretCredentials) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{
		SecretMetadataKey: string(c),
	}, nil
}

// RequireTransportSecurity returns false.
func (c SecretCredentials) RequireTransportSecurity() bool {
	return false
}

// RequireSecret returns server options that reject any RPC that does not carry
// the given secret.
func RequireSecret(secret string) []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			func(
				ctx context.Context,
				req interface{},
				_ *grpc.UnaryServerInfo,
				h grpc.UnaryHandler,
			) (interface{}, error) {
				if err := CheckSecret(ctx, secret); err != nil {
					return nil, err
				}

				return h(ctx, req)
			},
		),
		grpc.ChainStreamInterceptor(
			func(
				srv interface{},
				ss grpc.ServerStream,
				_ *grpc.StreamServerInfo,
				h grpc.StreamHandler,
			) error {
				if err := CheckSecret(ss.Context(), secret); err != nil {
					return err
				}

				return h(srv, ss)
			},
		),
	}
}

// CheckSecret returns an Unauthenticated status error if the incoming metadata
// in ctx does not carry exactly the given secret.
func CheckSecret(ctx context.Context, secret string) error {
	md, _ := metadata.FromIncomingContext(ctx)
	values := md.Get(SecretMetadataKey)

	if len(values) == 1 &&
		subtle.ConstantTimeCompare([]byte(values[0]), []byte(secret)) == 1 {
		return nil
	}

	return status.Error(codes.Unauthenticated, "invalid or missing secret")
}
