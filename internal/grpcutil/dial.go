package grpcutil

import (
	"context"
	"time"

	grpcprometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	"github.com/arcbox-labs/buildkit-client/internal/codec"
)

// DefaultDialTimeout bounds how long Dial waits for the outer transport to
// the daemon to come up before giving up. There is deliberately no per-call
// timeout beyond this: individual sub-RPC handlers impose their own where it
// matters (see the credentials handler).
const DefaultDialTimeout = 30 * time.Second

// Dial establishes the outer connection to the daemon at addr. The caller is
// responsible for closing the returned connection.
func Dial(ctx context.Context, addr string) (*grpc.ClientConn, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultDialTimeout)
	defer cancel()

	return grpc.DialContext(ctx, addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codec.Name)),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:    20 * time.Second,
			Timeout: 10 * time.Second,
		}),
		grpc.WithUnaryInterceptor(grpcprometheus.UnaryClientInterceptor),
		grpc.WithStreamInterceptor(grpcprometheus.StreamClientInterceptor),
	)
}
