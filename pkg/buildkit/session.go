package buildkit

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"google.golang.org/grpc/metadata"

	"github.com/arcbox-labs/buildkit-client/internal/tunnel"
)

// Metadata header family the daemon scans for on the outer solve call,
// fixed byte-exact by the daemon (spec.md §6).
const (
	metadataPrefix   = "x-docker-expose-session"
	headerUUID       = metadataPrefix + "-uuid"
	headerName       = metadataPrefix + "-name"
	headerGRPCMethod = metadataPrefix + "-grpc-method"
)

// The fixed sub-service method paths this client always registers: the four
// in the literal block in spec.md §6, plus GetTokenAuthority.
const (
	MethodDiffCopy          = "/moby.filesync.v1.FileSync/DiffCopy"
	MethodCredentials       = "/moby.filesync.v1.Auth/Credentials"
	MethodFetchToken        = "/moby.filesync.v1.Auth/FetchToken"
	MethodGetTokenAuthority = "/moby.filesync.v1.Auth/GetTokenAuthority"
	MethodHealthCheck       = "/grpc.health.v1.Health/Check"
)

// Session owns the identity and handler registry described in spec.md §4.7.
// session_id is immutable for the session's lifetime, a method path appears
// at most once in the registry, and the registry is frozen once start has
// run -- no synchronization is needed on lookups after that point.
type Session struct {
	id        string
	sharedKey string

	mu       sync.Mutex
	handlers map[string]tunnel.Handler
	started  bool

	cancel  context.CancelFunc
	runDone chan error
}

// NewSession mints a fresh session identity: a random UUID for session_id
// and a second random identifier for the shared key the daemon correlates
// the attach stream and solve call with.
func NewSession() *Session {
	return &Session{
		id:        uuid.NewString(),
		sharedKey: uuid.NewString(),
		handlers:  make(map[string]tunnel.Handler),
	}
}

// ID returns the session's immutable identifier.
func (s *Session) ID() string { return s.id }

// SharedKey returns the secondary correlation identifier.
func (s *Session) SharedKey() string { return s.sharedKey }

// Register adds a handler for methodPath. It is only valid before Start;
// registering a duplicate path, or registering after Start, fails.
func (s *Session) Register(methodPath string, h tunnel.Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("buildkit: session %s already started, cannot register %s", s.id, methodPath)
	}
	if _, exists := s.handlers[methodPath]; exists {
		return fmt.Errorf("buildkit: method %s already registered on session %s", methodPath, s.id)
	}
	s.handlers[methodPath] = h
	return nil
}

// Metadata returns the header vector the outer solve call must carry, one
// Grpc-Method entry per registered handler (spec.md §3, §4.7).
func (s *Session) Metadata() metadata.MD {
	s.mu.Lock()
	defer s.mu.Unlock()

	md := metadata.Pairs(
		headerUUID, s.id,
		headerName, s.sharedKey,
	)
	for path := range s.handlers {
		md.Append(headerGRPCMethod, path)
	}
	return md
}

// Start opens the attach stream's dispatcher loop against transport and
// freezes the handler registry. Idempotent calls after the first fail.
func (s *Session) Start(ctx context.Context, transport tunnel.Stream) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("buildkit: session %s already started", s.id)
	}
	s.started = true
	handlers := make(map[string]tunnel.Handler, len(s.handlers))
	for k, v := range s.handlers {
		handlers[k] = v
	}
	s.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.runDone = make(chan error, 1)

	disp := tunnel.NewDispatcher(transport, handlers)
	go func() {
		s.runDone <- disp.Run(runCtx)
	}()

	return nil
}

// Close signals the dispatcher to drain pending writes and exit, and
// blocks until it has. Safe to call once per Start. A context.Canceled or
// io.EOF from the dispatcher just means the attach stream ended the way
// this call (or the peer hanging up after a completed build) expects, not
// a failure worth surfacing.
func (s *Session) Close() error {
	s.mu.Lock()
	cancel := s.cancel
	done := s.runDone
	s.mu.Unlock()

	if cancel == nil || done == nil {
		return nil
	}
	cancel()
	err := <-done
	if err != nil && err != context.Canceled && err != io.EOF {
		return err
	}
	return nil
}
