// Package bridge copies bytes bidirectionally between an accepted pipe
// instance and a downstream byte stream, and runs the flush+disconnect
// teardown sequence once both copy directions have finished. See spec.md
// §4.5.
package bridge

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/substratehq/forwarder/pkg/downstream"
)

// PipeSide is the subset of a pipe server instance the bridge needs: a
// duplex byte stream plus the Windows teardown primitives
// (FlushFileBuffers, DisconnectNamedPipe) the accept loop hands off.
type PipeSide interface {
	io.Reader
	io.Writer
	Flush() error
	Disconnect() error
	Close() error
}

// Result names the terminal state of a session, emitted in the final
// structured log line and usable by callers for metrics.
type Result string

const (
	ResultClientClosed          Result = "client_closed"
	ResultDownstreamEOF         Result = "downstream_eof"
	ResultDownstreamUnreachable Result = "downstream_unreachable"
	ResultForceClosed           Result = "force_closed"
	ResultOK                    Result = "ok"
)

// Outcome is the tally returned by Run once a session completes.
type Outcome struct {
	BytesUp   uint64
	BytesDown uint64
	Duration  time.Duration
	Result    Result
}

// Run bridges pipe and downstream until both copy directions complete (or
// the context is cancelled), then executes the teardown sequence in the
// exact order spec.md §4.5 requires: stop both halves, flush the pipe,
// disconnect, drop the handle, close the downstream (which kills any UDS
// helper process), then return the outcome for the caller to log.
//
// gracePeriod bounds how long teardown is given once ctx is cancelled
// before the session is force-closed.
func Run(ctx context.Context, sessionID uint64, kind string, pipe PipeSide, down downstream.ByteStream, gracePeriod time.Duration, log *logrus.Entry) Outcome {
	start := time.Now()

	up := &countingWriter{w: down}
	dn := &countingWriter{w: pipe}

	done := make(chan struct{})
	var once sync.Once
	var copyErr error

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		_, err := io.Copy(up, pipe)
		_ = down.CloseWrite()
		if err != nil {
			once.Do(func() { copyErr = err })
		}
	}()

	go func() {
		defer wg.Done()
		_, err := io.Copy(dn, down)
		if err != nil {
			once.Do(func() { copyErr = err })
		}
	}()

	go func() {
		wg.Wait()
		close(done)
	}()

	result := ResultOK
	forced := false
	select {
	case <-done:
		if up.n == 0 && dn.n == 0 {
			result = ResultClientClosed
		} else if copyErr != nil {
			result = ResultDownstreamUnreachable
		} else {
			result = ResultDownstreamEOF
		}
	case <-ctx.Done():
		select {
		case <-done:
		case <-time.After(gracePeriod):
			result = ResultForceClosed
			forced = true
			// Unblock the blocked reads so the copy goroutines actually
			// stop before teardown reads their byte counts.
			_ = pipe.Close()
			_ = down.Close()
			<-done
		}
	}

	if !forced {
		if err := pipe.Flush(); err != nil && log != nil {
			log.WithError(err).WithField("session", sessionID).Warn("flush_buffers")
		}
		if err := pipe.Disconnect(); err != nil && log != nil {
			log.WithError(err).WithField("session", sessionID).Warn("disconnect_complete")
		}
		_ = pipe.Close()
		_ = down.Close()
	}

	outcome := Outcome{
		BytesUp:   up.n,
		BytesDown: dn.n,
		Duration:  time.Since(start),
		Result:    result,
	}

	if log != nil {
		log.WithFields(logrus.Fields{
			"event":       "stream_closed",
			"session":     sessionID,
			"kind":        kind,
			"bytes_up":    outcome.BytesUp,
			"bytes_down":  outcome.BytesDown,
			"duration_ms": outcome.Duration.Milliseconds(),
			"result":      outcome.Result,
		}).Info("session ended")
	}

	return outcome
}

type countingWriter struct {
	w io.Writer
	n uint64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += uint64(n)
	return n, err
}
