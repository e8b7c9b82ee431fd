// Package downstream connects a bridged pipe session to whatever lives on
// the other side: a loopback TCP port or, via a helper process, a Unix
// domain socket. See spec.md §4.4.
package downstream

import (
	"context"
	"io"
)

// ByteStream is an opaque duplex byte connection. The bridge only ever
// reads, writes, and closes it; it never inspects the transport beneath.
type ByteStream interface {
	io.ReadWriteCloser
	// CloseWrite half-closes the write side: TCP shuts down its write
	// half, and the uds helper closes the helper process's stdin while
	// its stdout stays readable.
	CloseWrite() error
}

// Connector opens a new ByteStream to the configured target for each
// incoming pipe session.
type Connector interface {
	Connect(ctx context.Context) (ByteStream, error)
	// Target describes the endpoint for logging, independent of any one
	// connection attempt.
	Target() string
	Close() error
}
