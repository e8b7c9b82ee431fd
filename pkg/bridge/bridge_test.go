package bridge

import (
	"io"
	"testing"
	"time"

	"context"
)

// fakePipe implements PipeSide over an in-memory pipe pair.
type fakePipe struct {
	r          io.ReadCloser
	w          io.Writer
	flushed    bool
	disconnect bool
	closed     bool
}

func (f *fakePipe) Read(p []byte) (int, error)  { return f.r.Read(p) }
func (f *fakePipe) Write(p []byte) (int, error) { return f.w.Write(p) }
func (f *fakePipe) Flush() error                { f.flushed = true; return nil }
func (f *fakePipe) Disconnect() error           { f.disconnect = true; return nil }
func (f *fakePipe) Close() error {
	f.closed = true
	return f.r.Close()
}

// fakeStream implements downstream.ByteStream over an in-memory pipe pair.
type fakeStream struct {
	r      io.ReadCloser
	w      io.WriteCloser
	closed bool
}

func (f *fakeStream) Read(p []byte) (int, error)  { return f.r.Read(p) }
func (f *fakeStream) Write(p []byte) (int, error) { return f.w.Write(p) }
func (f *fakeStream) CloseWrite() error           { return f.w.Close() }
func (f *fakeStream) Close() error {
	f.closed = true
	_ = f.r.Close()
	return f.w.Close()
}

type discardWriteCloser struct{}

func (discardWriteCloser) Write(p []byte) (int, error) { return len(p), nil }
func (discardWriteCloser) Close() error                { return nil }

func TestRunCopiesBothDirectionsAndReportsBytes(t *testing.T) {
	// client <-> pipe server
	pipeServerR, pipeClientW := io.Pipe()
	pipeClientR, pipeServerW := io.Pipe()
	pipe := &fakePipe{r: pipeServerR, w: pipeServerW}

	// downstream server <-> forwarder
	downR, downTestW := io.Pipe()
	downTestR, downW := io.Pipe()
	down := &fakeStream{r: downR, w: downW}

	go func() {
		pipeClientW.Write([]byte("PING"))
		buf := make([]byte, 4)
		io.ReadFull(downTestR, buf)
		downTestW.Write([]byte("PONG"))
		buf2 := make([]byte, 4)
		io.ReadFull(pipeClientR, buf2)
		pipeClientW.Close()
		downTestW.Close()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan Outcome, 1)
	go func() {
		done <- Run(ctx, 1, "pipe", pipe, down, time.Second, nil)
	}()

	select {
	case o := <-done:
		if o.BytesUp == 0 || o.BytesDown == 0 {
			t.Errorf("expected nonzero byte counts in both directions, got %+v", o)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not complete")
	}

	if !pipe.flushed || !pipe.disconnect || !pipe.closed {
		t.Errorf("expected flush/disconnect/close on the pipe side, got %+v", pipe)
	}
	if !down.closed {
		t.Errorf("expected the downstream to be closed")
	}
}

func TestRunForceClosesOnShutdownDeadline(t *testing.T) {
	pipeR, _ := io.Pipe() // never written to, so the copy blocks forever
	pipe := &fakePipe{r: pipeR, w: discardWriteCloser{}}

	downR, _ := io.Pipe()
	down := &fakeStream{r: downR, w: discardWriteCloser{}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := Run(ctx, 2, "pipe", pipe, down, 50*time.Millisecond, nil)
	if o.Result != ResultForceClosed {
		t.Fatalf("Result = %q, want %q", o.Result, ResultForceClosed)
	}
	if !pipe.closed {
		t.Errorf("expected the pipe handle to be closed on force-close")
	}
}
