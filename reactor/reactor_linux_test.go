//go:build linux

// File: reactor/reactor_linux_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor_test

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/spdtest/api"
	"github.com/momentics/spdtest/reactor"
)

func newPair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func newReactor(t *testing.T) reactor.Reactor {
	t.Helper()
	r, err := reactor.New()
	if err != nil {
		t.Fatalf("reactor.New: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestWaitTimeout(t *testing.T) {
	r := newReactor(t)
	events := make([]reactor.Event, 4)

	start := time.Now()
	n, err := r.Wait(events, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if n != 0 {
		t.Errorf("expected no events, got %d", n)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Error("Wait returned before timeout")
	}
}

func TestWritableReadiness(t *testing.T) {
	r := newReactor(t)
	a, _ := newPair(t)

	if err := r.Add(a, api.InterestWrite); err != nil {
		t.Fatalf("Add: %v", err)
	}

	events := make([]reactor.Event, 4)
	n, err := r.Wait(events, time.Second)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if n != 1 || events[0].FD != a || !events[0].Writable {
		t.Fatalf("expected writable event for fd %d, got %+v", a, events[:n])
	}
}

func TestReadableAfterPeerWrite(t *testing.T) {
	r := newReactor(t)
	a, b := newPair(t)

	if err := r.Add(a, api.InterestRead); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := unix.Write(b, []byte("ping")); err != nil {
		t.Fatalf("peer write: %v", err)
	}

	events := make([]reactor.Event, 4)
	n, err := r.Wait(events, time.Second)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if n != 1 || events[0].FD != a || !events[0].Readable {
		t.Fatalf("expected readable event for fd %d, got %+v", a, events[:n])
	}
}

func TestModifyToSilence(t *testing.T) {
	r := newReactor(t)
	a, _ := newPair(t)

	if err := r.Add(a, api.InterestWrite); err != nil {
		t.Fatalf("Add: %v", err)
	}
	// Zero interest keeps the registration but stops notifications.
	if err := r.Modify(a, 0); err != nil {
		t.Fatalf("Modify: %v", err)
	}

	events := make([]reactor.Event, 4)
	n, err := r.Wait(events, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if n != 0 {
		t.Errorf("silenced watcher still fired: %+v", events[:n])
	}

	// Re-arming brings events back.
	if err := r.Modify(a, api.InterestWrite); err != nil {
		t.Fatalf("re-arm Modify: %v", err)
	}
	n, err = r.Wait(events, time.Second)
	if err != nil || n != 1 {
		t.Fatalf("re-armed watcher did not fire: n=%d err=%v", n, err)
	}
}

func TestRemove(t *testing.T) {
	r := newReactor(t)
	a, _ := newPair(t)

	if err := r.Add(a, api.InterestWrite); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := r.Remove(a); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	events := make([]reactor.Event, 4)
	n, err := r.Wait(events, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if n != 0 {
		t.Errorf("removed watcher still fired: %+v", events[:n])
	}

	if err := r.Remove(a); err == nil {
		t.Error("double Remove should fail")
	}
}

func TestAddDuplicateFails(t *testing.T) {
	r := newReactor(t)
	a, _ := newPair(t)

	if err := r.Add(a, api.InterestRead); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := r.Add(a, api.InterestRead); err == nil {
		t.Error("duplicate Add should fail")
	}
}
