package buildkit

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/metadata"
)

// BuildOptions configures one RunBuild invocation: the daemon address, the
// recipe to build, where to send progress, and the credential/token
// resolvers injected into the session's callback handlers (never read from
// the environment inside a handler, per spec.md §9).
type BuildOptions struct {
	Addr         string
	Recipe       Recipe
	Sink         ProgressSink
	Credentials  *CredentialStore
	TokenFetcher TokenFetcher
}

// RunBuild is the Control client described in spec.md §4.8: it establishes
// the outer transport, opens the attach stream carrying the tunnel, invokes
// the solve RPC with the session metadata, subscribes to the status
// stream, and tears the attach stream down once the build completes.
func RunBuild(ctx context.Context, opts BuildOptions) (*Result, error) {
	if err := opts.Recipe.Validate(); err != nil {
		return nil, fmt.Errorf("buildkit: %w", err)
	}
	sink := opts.Sink
	if sink == nil {
		sink = SilentSink{}
	}
	creds := opts.Credentials
	if creds == nil {
		creds = NewCredentialStore()
	}
	// Recipe.Credential is the single source of truth for the recipe's own
	// registry: it overrides (or adds to) whatever store the caller passed
	// in, so registerHandlers' CredentialsHandler answers with it for this
	// host. The solve request's exporter attrs do not include it.
	if opts.Recipe.Credential != nil {
		creds.Set(*opts.Recipe.Credential)
	}

	client, err := Dial(ctx, opts.Addr)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	sess := NewSession()
	if err := registerHandlers(sess, opts.Recipe, creds, opts.TokenFetcher); err != nil {
		return nil, err
	}

	attachCtx, cancelAttach := context.WithCancel(ctx)
	defer cancelAttach()

	attach, err := client.openAttachStream(attachCtx, sess.Metadata())
	if err != nil {
		return nil, err
	}
	if err := sess.Start(attachCtx, attach); err != nil {
		return nil, err
	}
	defer sess.Close()

	ref := sess.ID()
	req, err := buildSolveRequest(opts.Recipe, ref, sess.SharedKey())
	if err != nil {
		return nil, err
	}

	result, buildErr := solveAndWatch(ctx, client, req, ref, sess.Metadata(), sink)
	sink.Finish(result, buildErr)
	if buildErr != nil {
		return nil, buildErr
	}
	return result, nil
}

// registerHandlers installs the fixed set of callback handlers the client
// always exposes (spec.md §6's metadata block): file sync, credentials,
// token fetch, token authority, and health check.
func registerHandlers(sess *Session, recipe Recipe, creds *CredentialStore, fetcher TokenFetcher) error {
	fs := FileSyncHandler{
		ContextRoot: recipe.Local.ContextRoot,
	}

	if err := sess.Register(MethodDiffCopy, fs); err != nil {
		return err
	}
	if err := sess.Register(MethodCredentials, CredentialsHandler{Store: creds}); err != nil {
		return err
	}
	if err := sess.Register(MethodFetchToken, TokenFetchHandler{Fetcher: fetcher}); err != nil {
		return err
	}
	if err := sess.Register(MethodGetTokenAuthority, TokenAuthorityHandler{}); err != nil {
		return err
	}
	if err := sess.Register(MethodHealthCheck, HealthCheckHandler{}); err != nil {
		return err
	}
	return nil
}

// solveAndWatch runs the Solve RPC and the Status subscription
// concurrently: the spec requires the client to stream progress while the
// solve call is in flight, not only once it completes (spec.md §2). Either
// leg failing cancels the other.
func solveAndWatch(ctx context.Context, client *Client, req SolveRequest, ref string, md metadata.MD, sink ProgressSink) (*Result, error) {
	g, gctx := errgroup.WithContext(ctx)

	var resp *SolveResponse
	g.Go(func() error {
		r, err := client.solve(gctx, req, md)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	g.Go(func() error {
		return client.subscribeStatus(gctx, ref, sink)
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &Result{}
	if resp != nil {
		result.ExporterResponse = resp.ExporterResponse
		result.ImageDigest = resp.ExporterResponse["containerimage.digest"]
	}
	return result, nil
}
