//go:build windows

package pipeforwarder

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ListenerState tracks where a Listener is in its lifecycle. Grounded on
// the teacher's win32PipeListener, which uses a similar shutdownStartedCh
// / shutdownFinishedCh pair around its accept worker pool; here the same
// cooperative-drain idea is expressed as an explicit state machine since
// there is exactly one accept path to coordinate instead of a pool.
type ListenerState int

const (
	StateUninitialized ListenerState = iota
	StateFirstInstancePending
	StateAccepting
	StateDraining
	StateTerminated
)

// ErrListenerClosed is returned by AcceptNext once Shutdown has been
// called or has completed.
var ErrListenerClosed = errors.New("pipe listener: closed")

// AcceptedInstance is the listener's handoff to a caller: one connected
// pipe instance, ready to be wrapped as a bridge.PipeSide. The listener
// never touches it again once returned.
type AcceptedInstance struct {
	Instance *Instance
}

// Listener owns a named pipe's server-side instances. It always tries to
// keep one instance (the "successor") pre-created and listening so that
// a second client can connect the instant the first one is accepted,
// without a window where CreateFile on the name would get
// ERROR_FILE_NOT_FOUND (spec.md §4.3).
type Listener struct {
	path string
	cfg  PipeConfig

	mu        sync.Mutex
	state     ListenerState
	current   *Instance
	successor *Instance

	closed    chan struct{}
	closeOnce sync.Once
}

// Start runs the preflight dial (to turn a competing owner's
// ACCESS_DENIED into a diagnosable AddrInUse) and creates the first pipe
// instance with FILE_FLAG_FIRST_PIPE_INSTANCE set.
func Start(path string, cfg PipeConfig) (*Listener, error) {
	if err := preflight(path, 2*time.Second); err != nil {
		return nil, err
	}

	first, err := createInstance(path, cfg, true)
	if err != nil {
		return nil, err
	}

	l := &Listener{
		path:    path,
		cfg:     cfg,
		state:   StateFirstInstancePending,
		current: first,
		closed:  make(chan struct{}),
	}

	if succ, err := createInstance(path, cfg, false); err == nil {
		l.successor = succ
	}
	l.state = StateAccepting

	return l, nil
}

// AcceptNext waits for a client to connect to the current instance,
// promotes the pre-created successor to current, and creates a fresh
// successor before returning. It returns ErrListenerClosed once Shutdown
// has been called, and ctx.Err() if ctx is done first (in both cases the
// pending instance is closed to unblock the synchronous ConnectNamedPipe
// call).
//
// The new successor is created synchronously, before the just-connected
// instance is handed back to the caller (spec.md §4.3 step 3, §9): a
// detached background create would let a second client race ahead of it,
// landing on the succ==nil fallback below with no instance pending at
// all until that fallback's own createInstance returns. Doing it inline
// here keeps at least one instance pending (normally two: the new current
// and the new successor) across back-to-back accepts.
//
// Closing a handle out from under a synchronous call blocked on it in
// another goroutine is the cancellation mechanism this package accepts
// as the cost of avoiding FILE_FLAG_OVERLAPPED (see the package doc in
// doc.go): it reliably unblocks ConnectNamedPipe in practice, but unlike
// CancelIoEx it is not a documented Win32 cancellation API.
func (l *Listener) AcceptNext(ctx context.Context) (*AcceptedInstance, error) {
	l.mu.Lock()
	if l.state == StateDraining || l.state == StateTerminated {
		l.mu.Unlock()
		return nil, ErrListenerClosed
	}
	cur := l.current
	l.mu.Unlock()
	if cur == nil {
		return nil, ErrListenerClosed
	}

	connectDone := make(chan error, 1)
	go func() { connectDone <- cur.connect() }()

	select {
	case err := <-connectDone:
		if err != nil {
			return nil, &ListenerError{Kind: ErrTransient, Path: l.path, Err: err}
		}
	case <-ctx.Done():
		_ = cur.Close()
		<-connectDone
		return nil, ctx.Err()
	case <-l.closed:
		_ = cur.Close()
		<-connectDone
		return nil, ErrListenerClosed
	}

	l.mu.Lock()
	succ := l.successor
	l.successor = nil
	l.current = succ
	l.mu.Unlock()

	if succ == nil {
		// The previous successor create failed (in Start or in the
		// previous AcceptNext). Create the new current synchronously so
		// the name doesn't go briefly unlistenable.
		if next, err := createInstance(l.path, l.cfg, false); err == nil {
			l.mu.Lock()
			l.current = next
			l.mu.Unlock()
		}
	}

	// Replenish the successor now, before returning cur to the caller —
	// not in a background goroutine — so the next AcceptNext call always
	// finds one already pending.
	if next, err := createInstance(l.path, l.cfg, false); err == nil {
		l.mu.Lock()
		if l.state != StateDraining && l.state != StateTerminated {
			l.successor = next
			next = nil
		}
		l.mu.Unlock()
		if next != nil {
			_ = next.Close()
		}
	}

	return &AcceptedInstance{Instance: cur}, nil
}

// Shutdown stops accepting new clients: it closes any instance that
// isn't yet serving a session (the current pending-accept instance and
// the pre-created successor) so a blocked AcceptNext returns promptly.
// Instances already handed off to a caller are the caller's
// responsibility (see pkg/supervisor for the drain of in-flight
// sessions).
func (l *Listener) Shutdown(_ context.Context) error {
	l.mu.Lock()
	if l.state == StateTerminated {
		l.mu.Unlock()
		return nil
	}
	l.state = StateDraining
	succ := l.successor
	l.successor = nil
	cur := l.current
	l.current = nil
	l.mu.Unlock()

	l.closeOnce.Do(func() { close(l.closed) })

	if succ != nil {
		_ = succ.Close()
	}
	if cur != nil {
		_ = cur.Close()
	}

	l.mu.Lock()
	l.state = StateTerminated
	l.mu.Unlock()
	return nil
}
