package buildkit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcbox-labs/buildkit-client/internal/tunnel"
)

func TestSessionMetadataListsOneGrpcMethodPerHandler(t *testing.T) {
	sess := NewSession()
	require.NoError(t, sess.Register(MethodHealthCheck, HealthCheckHandler{}))
	require.NoError(t, sess.Register(MethodDiffCopy, FileSyncHandler{ContextRoot: t.TempDir()}))

	md := sess.Metadata()
	assert.Equal(t, []string{sess.ID()}, md.Get("x-docker-expose-session-uuid"))
	assert.Equal(t, []string{sess.SharedKey()}, md.Get("x-docker-expose-session-name"))

	methods := md.Get("x-docker-expose-session-grpc-method")
	assert.ElementsMatch(t, []string{MethodHealthCheck, MethodDiffCopy}, methods)
}

func TestSessionRegisterRejectsDuplicateMethodPath(t *testing.T) {
	sess := NewSession()
	require.NoError(t, sess.Register(MethodHealthCheck, HealthCheckHandler{}))
	err := sess.Register(MethodHealthCheck, HealthCheckHandler{})
	assert.Error(t, err)
}

func TestSessionStartFreezesRegistryAndRejectsSecondStart(t *testing.T) {
	sess := NewSession()
	require.NoError(t, sess.Register(MethodHealthCheck, HealthCheckHandler{}))

	stream := newFakeAttachStream()
	ctx := context.Background()
	require.NoError(t, sess.Start(ctx, stream))

	err := sess.Register(MethodDiffCopy, FileSyncHandler{})
	assert.Error(t, err, "registering after Start must fail")

	err = sess.Start(ctx, stream)
	assert.Error(t, err, "starting twice must fail")

	close(stream.in)
	require.NoError(t, sess.Close())
}

func TestSessionCloseReturnsAfterThePeerStreamEnds(t *testing.T) {
	sess := NewSession()
	require.NoError(t, sess.Register(MethodHealthCheck, HealthCheckHandler{}))

	stream := newFakeAttachStream()
	require.NoError(t, sess.Start(context.Background(), stream))

	// Simulate the peer ending its half of the attach stream, the same way
	// a real grpc stream's Recv unblocks with io.EOF when its transport
	// closes; Close's job is then just to observe the dispatcher exit.
	close(stream.in)

	closeDone := make(chan error, 1)
	go func() { closeDone <- sess.Close() }()

	select {
	case err := <-closeDone:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Close did not return")
	}
}

var _ tunnel.Stream = (*fakeAttachStream)(nil)
