package supervisor

import (
	"context"
	"testing"
	"time"
)

type fakeSession struct {
	id      uint64
	stopped chan struct{}
	stopFn  func()
}

func newFakeSession(id uint64) *fakeSession {
	return &fakeSession{id: id, stopped: make(chan struct{})}
}

func (f *fakeSession) ID() uint64 { return f.id }
func (f *fakeSession) Stop() {
	select {
	case <-f.stopped:
	default:
		close(f.stopped)
	}
	if f.stopFn != nil {
		f.stopFn()
	}
}

func TestTrackAndCountRoundTrip(t *testing.T) {
	s := New(nil)
	sess := newFakeSession(1)

	done, err := s.Track(sess)
	if err != nil {
		t.Fatalf("Track: %v", err)
	}
	if got := s.Count(); got != 1 {
		t.Fatalf("Count() = %d, want 1", got)
	}

	done()
	if got := s.Count(); got != 0 {
		t.Fatalf("Count() after done = %d, want 0", got)
	}
}

func TestShutdownStopsAllSessionsAndWaits(t *testing.T) {
	s := New(nil)

	var dones []func()
	for i := uint64(1); i <= 3; i++ {
		sess := newFakeSession(i)
		done, err := s.Track(sess)
		if err != nil {
			t.Fatalf("Track(%d): %v", i, err)
		}
		sess.stopFn = done
		dones = append(dones, done)
	}
	_ = dones

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if got := s.Count(); got != 0 {
		t.Fatalf("Count() after Shutdown = %d, want 0", got)
	}
}

func TestTrackRejectsAfterShutdownBegins(t *testing.T) {
	s := New(nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownDone := make(chan error, 1)
	go func() { shutdownDone <- s.Shutdown(ctx) }()

	<-s.ShutdownStarted()

	_, err := s.Track(newFakeSession(99))
	if _, ok := err.(ErrDraining); !ok {
		t.Fatalf("expected ErrDraining, got %v", err)
	}

	cancel()
	<-shutdownDone
}

func TestShutdownReturnsCtxErrIfSessionsDontStop(t *testing.T) {
	s := New(nil)
	sess := newFakeSession(1)
	// Never call done(), so wg.Wait() blocks forever.
	if _, err := s.Track(sess); err != nil {
		t.Fatalf("Track: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.Shutdown(ctx)
	if err == nil {
		t.Fatalf("expected Shutdown to time out")
	}
}
