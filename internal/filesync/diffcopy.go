package filesync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/arcbox-labs/buildkit-client/internal/fsutil"
	"github.com/arcbox-labs/buildkit-client/internal/grpcutil"
)

// chunkSize is the size of one DATA packet's payload while streaming a
// file's content. The spec recommends 32 KiB-1 MiB; this sits in the middle
// of that range.
const chunkSize = 256 * 1024

// Conn is the narrow capability the DiffCopy engine needs from its
// transport: send one packet, receive one packet. The engine streams several
// files' DATA packets concurrently but serializes its own Send calls, so
// implementations need not be safe for concurrent Send.
type Conn interface {
	Send(Packet) error
	// Recv returns io.EOF when the peer has closed its write half without
	// sending FIN -- a graceful abort, not a protocol error.
	Recv() (Packet, error)
}

// Serve runs the full DiffCopy conversation as the server role described in
// spec.md §4.3: announce every entry under root, then serve REQs against
// the file-map built during announce, then exchange FIN.
func Serve(ctx context.Context, conn Conn, root string, opts fsutil.WalkOptions) error {
	fm, err := announce(conn, root, opts)
	if err != nil {
		return err
	}
	return serveAndTerminate(ctx, conn, fm)
}

func announce(conn Conn, root string, opts fsutil.WalkOptions) (*fileMap, error) {
	entries, err := fsutil.Walk(root, opts)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "filesync: walking context: %v", err)
	}

	fm := newFileMap()
	for id, e := range entries {
		pkt := Packet{
			Type:     PacketStat,
			ID:       id,
			Path:     e.Path,
			Mode:     fsutil.EncodeMode(e.Mode),
			Size:     e.Size,
			UID:      e.UID,
			GID:      e.GID,
			ModTime:  e.ModTime,
			Linkname: e.Linkname,
		}
		if err := conn.Send(pkt); err != nil {
			return nil, fmt.Errorf("filesync: sending STAT %d: %w", id, err)
		}
		if e.Kind == fsutil.KindRegular {
			fm.set(id, filepath.Join(root, e.Path))
		}
	}

	if err := conn.Send(StatSentinel()); err != nil {
		return nil, fmt.Errorf("filesync: sending announce sentinel: %w", err)
	}
	return fm, nil
}

// serveAndTerminate implements the serve and terminate phases: it answers
// REQ packets (each on its own goroutine so a slow file read never head-of-
// line blocks the peer's other requests) until FIN arrives, then replies
// with its own FIN.
func serveAndTerminate(ctx context.Context, conn Conn, fm *fileMap) error {
	var sendMu sync.Mutex
	send := func(p Packet) error {
		sendMu.Lock()
		defer sendMu.Unlock()
		return conn.Send(p)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	for {
		pkt, err := conn.Recv()
		if errors.Is(err, io.EOF) {
			// Peer closed its write half before FIN: graceful abort. Stop
			// in-flight file streams so no further frames are produced.
			cancel()
			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("filesync: receiving packet: %w", err)
		}

		switch pkt.Type {
		case PacketReq:
			id := pkt.ID
			path, ok := fm.lookup(id)
			if !ok {
				return status.Errorf(codes.InvalidArgument, "filesync: REQ for unknown or non-regular id %d", id)
			}
			g.Go(func() error {
				return serveFile(gctx, send, id, path)
			})

		case PacketFin:
			if err := g.Wait(); err != nil {
				return err
			}
			return send(Packet{Type: PacketFin})

		default:
			return status.Errorf(codes.InvalidArgument, "filesync: unexpected packet type %v during serve phase", pkt.Type)
		}
	}
}

func serveFile(ctx context.Context, send func(Packet) error, id int, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return grpcutil.AsStatus(fmt.Errorf("filesync: opening %s: %w", path, err), codes.Internal)
	}
	defer f.Close()

	buf := make([]byte, chunkSize)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n, err := f.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if sendErr := send(Packet{Type: PacketData, ID: id, Data: chunk}); sendErr != nil {
				return sendErr
			}
		}
		if errors.Is(err, io.EOF) {
			return send(Packet{Type: PacketData, ID: id, Data: nil})
		}
		if err != nil {
			return grpcutil.AsStatus(fmt.Errorf("filesync: reading %s: %w", path, err), codes.Internal)
		}
	}
}
