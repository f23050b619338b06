// Package grpcutil holds the small amount of gRPC plumbing shared by the
// control client and the tunnel: client-side Prometheus interceptors, dial
// options for the outer transport, a metrics HTTP endpoint, and error-code
// normalization.
package grpcutil

import (
	"context"
	"errors"
	"net/http"

	grpcprometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc/encoding"

	"github.com/arcbox-labs/buildkit-client/internal/codec"
)

func init() {
	// Registering here (rather than relying on every importer to do it)
	// keeps the codec selection the same regardless of who constructs the
	// ClientConn first.
	encoding.RegisterCodec(codec.GRPCCodec{})

	// Client-side RPC latency/count histograms need this enabled once,
	// before any call is made, to capture per-call handling time.
	grpcprometheus.EnableClientHandlingTimeHistogram()
}

// ServeMetrics starts a Prometheus /metrics endpoint on addr, exposing the
// go-grpc-prometheus client metrics registered against the outer transport
// (spec.md §6.2's ambient observability surface; this system never runs a
// gRPC server of its own, only a client, so only client-side interceptors
// and metrics are wired).
func ServeMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()

	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
