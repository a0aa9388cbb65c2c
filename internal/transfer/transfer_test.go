// File: internal/transfer/transfer_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Construction, registration, and pump bookkeeping tests that need no
// real sockets.

package transfer

import (
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/momentics/spdtest/api"
)

func discard(p []byte) int { return len(p) }

func TestNewValidation(t *testing.T) {
	cases := []struct {
		name string
		url  string
		opts []Option
	}{
		{"https scheme", "https://example.com/x", []Option{WithWriteFunc(discard)}},
		{"no host", "http:///path", []Option{WithWriteFunc(discard)}},
		{"garbage url", "http://bad\x00host/", []Option{WithWriteFunc(discard)}},
		{"download without sink", "http://example.com/x", nil},
		{"bad timeout", "http://example.com/x", []Option{WithWriteFunc(discard), WithTimeout(0)}},
		{"bad redirect limit", "http://example.com/x", []Option{WithWriteFunc(discard), WithFollowRedirects(0)}},
		{"nil write func", "http://example.com/x", []Option{WithWriteFunc(nil)}},
		{"upload negative size", "http://example.com/x", []Option{WithUpload(-1, func(p []byte) int { return 0 })}},
		{"upload nil source", "http://example.com/x", []Option{WithUpload(1, nil)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.url, tc.opts...); err == nil {
				t.Errorf("New(%q) accepted invalid configuration", tc.url)
			}
		})
	}
}

func TestNewDefaults(t *testing.T) {
	tr, err := New("http://example.com/file", WithWriteFunc(discard))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if tr.timeout != defaultTimeout {
		t.Errorf("timeout = %v, want %v", tr.timeout, defaultTimeout)
	}
	if tr.fd != -1 || tr.state != stateIdle {
		t.Errorf("fresh transfer not idle: fd=%d state=%v", tr.fd, tr.state)
	}
}

func TestAddAssignsIDAndKickTimer(t *testing.T) {
	m := NewMulti()
	tr, err := New("http://example.com/file", WithWriteFunc(discard))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := m.Add(tr)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if tr.ID() == 0 {
		t.Error("no ID assigned")
	}
	if res.Active != 1 {
		t.Errorf("Active = %d, want 1", res.Active)
	}
	if res.Timer == nil || res.Timer.Timeout != kickDelay {
		t.Errorf("Add did not request the kick timer: %+v", res.Timer)
	}
	if len(res.Sockets) != 0 {
		t.Errorf("Add requested watchers before any pump: %+v", res.Sockets)
	}
}

func TestAddRejectsDuplicates(t *testing.T) {
	m := NewMulti()
	tr, _ := New("http://example.com/f", WithWriteFunc(discard))
	if _, err := m.Add(tr); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := m.Add(tr); !errors.Is(err, api.ErrAlreadyRegistered) {
		t.Errorf("duplicate Add error = %v", err)
	}
}

func TestRemoveUnregistered(t *testing.T) {
	m := NewMulti()
	tr, _ := New("http://example.com/f", WithWriteFunc(discard))
	if _, err := m.Remove(tr); !errors.Is(err, api.ErrNotRegistered) {
		t.Errorf("Remove error = %v", err)
	}
}

func TestAddOnClosedMulti(t *testing.T) {
	m := NewMulti()
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	tr, _ := New("http://example.com/f", WithWriteFunc(discard))
	if _, err := m.Add(tr); !errors.Is(err, api.ErrMultiClosed) {
		t.Errorf("Add on closed multi error = %v", err)
	}
}

func TestResolveFailureCompletesTransfer(t *testing.T) {
	m := NewMulti()
	m.resolve = func(host string) ([]net.IP, error) {
		return nil, fmt.Errorf("no such host %q", host)
	}

	tr, _ := New("http://nowhere.invalid/f", WithWriteFunc(discard))
	if _, err := m.Add(tr); err != nil {
		t.Fatalf("Add: %v", err)
	}

	res, err := m.PerformTimeout()
	if err != nil {
		t.Fatalf("PerformTimeout: %v", err)
	}
	if res.Active != 0 {
		t.Errorf("Active = %d, want 0", res.Active)
	}
	if res.Timer == nil || res.Timer.Timeout >= 0 {
		t.Errorf("expected disarm timer request, got %+v", res.Timer)
	}

	c, ok := m.NextCompleted()
	if !ok {
		t.Fatal("no completion queued")
	}
	if c.ID != tr.ID() || c.Code != api.CodeResolve {
		t.Errorf("completion = %+v", c)
	}
	if code, _ := tr.Outcome(); code != api.CodeResolve {
		t.Errorf("transfer outcome = %v", code)
	}

	// Draining an empty queue is a no-op, not a duplicate.
	if _, ok := m.NextCompleted(); ok {
		t.Error("duplicate completion drained")
	}
	if _, ok := m.NextCompleted(); ok {
		t.Error("third drain still produced a completion")
	}
}

func TestRemoveDropsReferences(t *testing.T) {
	m := NewMulti()
	m.resolve = func(string) ([]net.IP, error) { return nil, fmt.Errorf("down") }

	tr, _ := New("http://nowhere.invalid/f", WithWriteFunc(discard))
	if _, err := m.Add(tr); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := m.PerformTimeout(); err != nil {
		t.Fatalf("PerformTimeout: %v", err)
	}

	res, err := m.Remove(tr)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if res.Active != 0 {
		t.Errorf("Active after Remove = %d", res.Active)
	}
	if tr.multi != nil {
		t.Error("multi back-reference not cleared")
	}
	if _, err := m.Remove(tr); !errors.Is(err, api.ErrNotRegistered) {
		t.Errorf("second Remove error = %v", err)
	}
}

func TestFinishPumpDeadlineTimer(t *testing.T) {
	m := NewMulti()
	base := time.Now()
	m.now = func() time.Time { return base }
	m.resolve = func(string) ([]net.IP, error) { return nil, fmt.Errorf("unused") }

	tr, _ := New("http://example.com/f", WithWriteFunc(discard), WithTimeout(30*time.Second))
	if _, err := m.Add(tr); err != nil {
		t.Fatalf("Add: %v", err)
	}
	// Simulate a started transfer waiting on I/O.
	tr.state = stateRecvHead
	tr.deadline = base.Add(30 * time.Second)

	var res api.PumpResult
	m.finishPump(&res)
	if res.Timer == nil || res.Timer.Timeout != 30*time.Second {
		t.Errorf("timer request = %+v, want 30s deadline", res.Timer)
	}
}
