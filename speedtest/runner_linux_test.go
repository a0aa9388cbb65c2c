//go:build linux

// File: speedtest/runner_linux_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Full-stack runs against loopback HTTP servers: reactor, engine,
// multi context, and real sockets.

package speedtest

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/momentics/spdtest/api"
	"github.com/momentics/spdtest/internal/transfer"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	r, err := NewRunner(quietLogger())
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRunDownload(t *testing.T) {
	payload := bytes.Repeat([]byte("download-data-"), 4096)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	r := newTestRunner(t)
	res, err := r.RunDownload(srv.URL+"/file", 3)
	if err != nil {
		t.Fatalf("RunDownload: %v", err)
	}
	if res.Label != "Download" || res.Requested != 3 || res.Registered != 3 {
		t.Errorf("result header = %+v", res)
	}
	if want := int64(3 * len(payload)); res.Bytes != want {
		t.Errorf("Bytes = %d, want %d", res.Bytes, want)
	}
	if res.Duration <= 0 {
		t.Errorf("Duration = %v", res.Duration)
	}
}

func TestRunUpload(t *testing.T) {
	const size int64 = 128 << 10
	var received atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, _ := io.Copy(io.Discard, r.Body)
		received.Add(n)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	r := newTestRunner(t)
	res, err := r.RunUpload(srv.URL+"/up", 2, size)
	if err != nil {
		t.Fatalf("RunUpload: %v", err)
	}
	if res.Label != "Upload" || res.Registered != 2 {
		t.Errorf("result header = %+v", res)
	}
	if res.Bytes != 2*size {
		t.Errorf("Bytes = %d, want %d", res.Bytes, 2*size)
	}
	srv.Close()
	if received.Load() != 2*size {
		t.Errorf("server received %d bytes, want %d", received.Load(), 2*size)
	}
}

func TestRunConnectionBounds(t *testing.T) {
	r := newTestRunner(t)
	for _, n := range []int{0, -1, MaxConnections + 1} {
		if _, err := r.RunDownload("http://example.com/", n); !errors.Is(err, api.ErrInvalidArgument) {
			t.Errorf("RunDownload with %d connections: err = %v", n, err)
		}
	}
}

func TestRunContinuesPastConfigurationFailure(t *testing.T) {
	payload := bytes.Repeat([]byte("z"), 8192)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	r := newTestRunner(t)
	calls := 0
	r.newTransfer = func(rawURL string, options ...transfer.Option) (*transfer.Transfer, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("simulated handle allocation failure")
		}
		return transfer.New(rawURL, options...)
	}

	res, err := r.RunDownload(srv.URL, 3)
	if err != nil {
		t.Fatalf("RunDownload: %v", err)
	}
	if res.Requested != 3 || res.Registered != 2 {
		t.Errorf("Requested/Registered = %d/%d, want 3/2", res.Requested, res.Registered)
	}
	if want := int64(2 * len(payload)); res.Bytes != want {
		t.Errorf("Bytes = %d, want %d", res.Bytes, want)
	}
}

func TestRunFailsWhenNothingRegisters(t *testing.T) {
	r := newTestRunner(t)
	r.newTransfer = func(string, ...transfer.Option) (*transfer.Transfer, error) {
		return nil, errors.New("simulated failure")
	}
	if _, err := r.RunDownload("http://example.com/", 2); !errors.Is(err, api.ErrNoConnections) {
		t.Errorf("err = %v, want %v", err, api.ErrNoConnections)
	}
}

func TestRunSurvivesFailedTransfer(t *testing.T) {
	payload := bytes.Repeat([]byte("q"), 16384)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			// Kill the first connection before any response bytes.
			conn, _, err := w.(http.Hijacker).Hijack()
			if err == nil {
				conn.Close()
			}
			return
		}
		w.Write(payload)
	}))
	defer srv.Close()

	r := newTestRunner(t)
	res, err := r.RunDownload(srv.URL, 2)
	if err != nil {
		t.Fatalf("RunDownload: %v", err)
	}
	if res.Registered != 2 {
		t.Errorf("Registered = %d", res.Registered)
	}
	// Only the surviving connection contributes bytes.
	if want := int64(len(payload)); res.Bytes != want {
		t.Errorf("Bytes = %d, want %d", res.Bytes, want)
	}
}
