// Package supervisor tracks in-flight forwarder sessions and drives a
// graceful shutdown across all of them.
//
// Modeled on the teacher's three-piece shutdown protocol in
// win32PipeListener (pipe.go): a "shutdown started" signal, a per-worker
// sync.WaitGroup, and a mutex-guarded critical section around state
// transitions (closeMux). The teacher applies that protocol to its fixed
// pool of listener workers; here it tracks a dynamically growing and
// shrinking set of session goroutines, one per accepted client.
package supervisor

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Session is anything the supervisor can track and ask to stop. Bridge
// sessions satisfy this by wrapping bridge.Run with a context-cancel
// Stop.
type Session interface {
	// ID uniquely identifies the session for logging.
	ID() uint64
	// Stop asks the session to wind down; it does not block until the
	// session has actually finished (Supervisor.Shutdown does that).
	Stop()
}

// Supervisor is a mutex-guarded registry of running sessions plus the
// shutdownStartedCh/wg pair the teacher uses to drain a worker pool.
type Supervisor struct {
	log *logrus.Entry

	mu       sync.Mutex
	sessions map[uint64]Session
	draining bool

	wg sync.WaitGroup

	shutdownStartedCh chan struct{}
	closeShutdownOnce sync.Once
}

// New creates an empty Supervisor. log may be nil to disable logging.
func New(log *logrus.Entry) *Supervisor {
	return &Supervisor{
		log:               log,
		sessions:          make(map[uint64]Session),
		shutdownStartedCh: make(chan struct{}),
	}
}

// ErrDraining is returned by Track if Shutdown has already begun;
// callers should close the newly accepted instance and continue the
// accept loop's own shutdown handling instead of starting a session.
type ErrDraining struct{}

func (ErrDraining) Error() string { return "supervisor: shutting down, rejecting new session" }

// Track registers a session and returns a done func the caller must
// invoke exactly once when the session's work function returns, to
// deregister it and release the WaitGroup slot. It mirrors the
// register/unregister pairing the teacher does implicitly via
// wg.Add(1)/wg.Done() around each listenerWorker.
func (s *Supervisor) Track(sess Session) (done func(), err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.draining {
		return nil, ErrDraining{}
	}

	s.sessions[sess.ID()] = sess
	s.wg.Add(1)

	return func() {
		s.mu.Lock()
		delete(s.sessions, sess.ID())
		s.mu.Unlock()
		s.wg.Done()
	}, nil
}

// Count reports the number of sessions currently tracked.
func (s *Supervisor) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Shutdown closes shutdownStartedCh (visible to callers that want to
// stop accepting new work), asks every tracked session to Stop, and
// waits for them to finish or for ctx to be done, whichever comes
// first.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.draining = true
	toStop := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		toStop = append(toStop, sess)
	}
	s.mu.Unlock()

	s.closeShutdownOnce.Do(func() { close(s.shutdownStartedCh) })

	if s.log != nil {
		s.log.WithFields(logrus.Fields{"event": "shutdown", "sessions": len(toStop)}).Info("draining sessions")
	}

	for _, sess := range toStop {
		sess.Stop()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ShutdownStarted reports whether Shutdown has been called, for accept
// loops that want to stop admitting new sessions without themselves
// holding a reference to the Supervisor's internal state.
func (s *Supervisor) ShutdownStarted() <-chan struct{} {
	return s.shutdownStartedCh
}
