package buildkit

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/arcbox-labs/buildkit-client/internal/filesync"
	"github.com/arcbox-labs/buildkit-client/internal/fsutil"
	"github.com/arcbox-labs/buildkit-client/internal/tunnel"
)

// credentialFetchTimeout bounds the Credentials handler, the one sub-RPC
// the spec calls out as commonly worth a local timeout (spec.md §5).
const credentialFetchTimeout = 10 * time.Second

// channelConn adapts a *tunnel.Channel into the filesync.Conn capability
// the DiffCopy engine expects, marshaling each Packet as one tunnel frame.
type channelConn struct {
	ctx context.Context
	ch  *tunnel.Channel
}

func (c channelConn) Send(p filesync.Packet) error {
	body, err := filesync.EncodePacket(p)
	if err != nil {
		return err
	}
	return c.ch.WriteFrame(c.ctx, body)
}

func (c channelConn) Recv() (filesync.Packet, error) {
	body, err := c.ch.ReadFrame(c.ctx)
	if err != nil {
		if err == io.EOF {
			return filesync.Packet{}, io.EOF
		}
		return filesync.Packet{}, err
	}
	return filesync.DecodePacket(body)
}

// FileSyncHandler serves the DiffCopy sub-RPC (spec.md §4.4) against a
// fixed context root and walk options, one fresh conversation per sub-RPC.
type FileSyncHandler struct {
	ContextRoot string
	WalkOptions fsutil.WalkOptions
}

// Handle implements tunnel.Handler.
func (h FileSyncHandler) Handle(ctx context.Context, ch *tunnel.Channel) error {
	conn := channelConn{ctx: ctx, ch: ch}
	return filesync.Serve(ctx, conn, h.ContextRoot, h.WalkOptions)
}

// CredentialsRequest is the unary request the Credentials sub-RPC reads.
type CredentialsRequest struct {
	Host string `json:"host"`
}

// CredentialsResponse is the unary response the Credentials sub-RPC writes.
// Empty fields mean anonymous access (spec.md §4.4).
type CredentialsResponse struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// CredentialsHandler answers registry credential lookups against a
// CredentialStore built at session construction time; it never reads the
// environment itself (spec.md §9).
type CredentialsHandler struct {
	Store *CredentialStore
}

// Handle implements tunnel.Handler.
func (h CredentialsHandler) Handle(ctx context.Context, ch *tunnel.Channel) error {
	ctx, cancel := context.WithTimeout(ctx, credentialFetchTimeout)
	defer cancel()

	body, err := ch.ReadFrame(ctx)
	if err != nil {
		return status.Errorf(codes.Internal, "credentials: reading request: %v", err)
	}
	var req CredentialsRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return status.Errorf(codes.InvalidArgument, "credentials: decoding request: %v", err)
	}

	var resp CredentialsResponse
	if h.Store != nil {
		if user, pass, ok := h.Store.Lookup(req.Host); ok {
			resp = CredentialsResponse{Username: user, Password: pass}
		}
	}

	respBody, err := json.Marshal(resp)
	if err != nil {
		return status.Errorf(codes.Internal, "credentials: encoding response: %v", err)
	}
	return ch.WriteFrame(ctx, respBody)
}

// TokenRequest is the unary request the FetchToken sub-RPC reads.
type TokenRequest struct {
	Host  string `json:"host"`
	Scope string `json:"scope"`
}

// TokenResponse is the unary response the FetchToken sub-RPC writes. An
// empty Token is permitted (spec.md §4.4).
type TokenResponse struct {
	Token string `json:"token,omitempty"`
}

// TokenFetcher resolves a bearer token for a host/scope pair. Implementations
// that have no token configured should return an empty string, not an error.
type TokenFetcher interface {
	FetchToken(ctx context.Context, host, scope string) (string, error)
}

// TokenFetchHandler answers the FetchToken sub-RPC.
type TokenFetchHandler struct {
	Fetcher TokenFetcher
}

// Handle implements tunnel.Handler.
func (h TokenFetchHandler) Handle(ctx context.Context, ch *tunnel.Channel) error {
	body, err := ch.ReadFrame(ctx)
	if err != nil {
		return status.Errorf(codes.Internal, "fetchtoken: reading request: %v", err)
	}
	var req TokenRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return status.Errorf(codes.InvalidArgument, "fetchtoken: decoding request: %v", err)
	}

	var token string
	if h.Fetcher != nil {
		token, err = h.Fetcher.FetchToken(ctx, req.Host, req.Scope)
		if err != nil {
			return status.Errorf(codes.Internal, "fetchtoken: %v", err)
		}
	}

	respBody, err := json.Marshal(TokenResponse{Token: token})
	if err != nil {
		return status.Errorf(codes.Internal, "fetchtoken: encoding response: %v", err)
	}
	return ch.WriteFrame(ctx, respBody)
}

// TokenAuthorityHandler always reports Unimplemented: the spec resolves the
// source's interop quirk on this sub-RPC by choosing the daemon's documented
// basic-auth fallback path over an empty-success response (spec.md §9).
type TokenAuthorityHandler struct{}

// Handle implements tunnel.Handler. It never reads or writes a frame; the
// dispatcher turns the returned error directly into the terminal status.
func (TokenAuthorityHandler) Handle(ctx context.Context, ch *tunnel.Channel) error {
	return status.Error(codes.Unimplemented, "buildkit: token authority not supported, falling back to basic auth")
}

// HealthResponse is the unary response the health check sub-RPC writes.
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthCheckHandler always reports SERVING: the client, once attached, has
// nothing else to report on (spec.md §4.4).
type HealthCheckHandler struct{}

// Handle implements tunnel.Handler. The request carries no fields worth
// reading, so it responds immediately rather than waiting on one.
func (HealthCheckHandler) Handle(ctx context.Context, ch *tunnel.Channel) error {
	body, err := json.Marshal(HealthResponse{Status: "SERVING"})
	if err != nil {
		return status.Errorf(codes.Internal, "health: encoding response: %v", err)
	}
	return ch.WriteFrame(ctx, body)
}

var (
	_ tunnel.Handler = FileSyncHandler{}
	_ tunnel.Handler = CredentialsHandler{}
	_ tunnel.Handler = TokenFetchHandler{}
	_ tunnel.Handler = TokenAuthorityHandler{}
	_ tunnel.Handler = HealthCheckHandler{}
)
