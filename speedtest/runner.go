// File: speedtest/runner.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// TestRun orchestration: download and upload variants over one shared
// engine.

package speedtest

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/momentics/spdtest/api"
	"github.com/momentics/spdtest/engine"
	"github.com/momentics/spdtest/internal/transfer"
	"github.com/momentics/spdtest/reactor"
)

const (
	// MaxConnections bounds one run. The CLI validates against the
	// same limit; the engine itself has no such constraint.
	MaxConnections = 10

	downloadTimeout = 60 * time.Second
	uploadTimeout   = 120 * time.Second
	maxRedirects    = 10
)

// Runner holds the process-wide engine context: one reactor, one
// multi context, one deadline clock, shared by every run.
type Runner struct {
	reactor reactor.Reactor
	multi   *transfer.Multi
	engine  *engine.Engine
	log     *slog.Logger

	// accum collects download bytes for the run in progress. It is
	// reset at run start and only touched on the loop goroutine.
	accum int64

	// newTransfer is swapped by tests to simulate per-connection
	// configuration rejections.
	newTransfer func(rawURL string, options ...transfer.Option) (*transfer.Transfer, error)
}

// NewRunner builds the engine context. Failure here is fatal to the
// process; there is no degraded mode without a reactor.
func NewRunner(logger *slog.Logger) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r, err := reactor.New()
	if err != nil {
		return nil, fmt.Errorf("create reactor: %w", err)
	}
	m := transfer.NewMulti()
	return &Runner{
		reactor:     r,
		multi:       m,
		engine:      engine.New(r, m, logger),
		log:         logger,
		newTransfer: transfer.New,
	}, nil
}

// Close releases the engine context.
func (r *Runner) Close() error {
	if err := r.multi.Close(); err != nil {
		return err
	}
	return r.reactor.Close()
}

// pending tracks one registered request through the run.
type pending struct {
	t    *transfer.Transfer
	src  *Source // uploads only
	done bool
	code api.ErrorCode
}

// RunDownload measures download throughput over the given number of
// concurrent connections.
func (r *Runner) RunDownload(rawURL string, connections int) (Result, error) {
	return r.run("Download", rawURL, connections, nil)
}

// RunUpload measures upload throughput; every connection streams the
// same shared payload of the given size.
func (r *Runner) RunUpload(rawURL string, connections int, payloadSize int64) (Result, error) {
	if payloadSize == 0 {
		payloadSize = DefaultPayloadSize
	}
	payload, err := NewPayload(payloadSize)
	if err != nil {
		return Result{}, fmt.Errorf("upload payload: %w", err)
	}
	return r.run("Upload", rawURL, connections, payload)
}

// run is the shared skeleton of both variants. payload == nil selects
// the download path.
func (r *Runner) run(label, rawURL string, connections int, payload *Payload) (Result, error) {
	if connections < 1 || connections > MaxConnections {
		return Result{}, fmt.Errorf("connections %d outside [1,%d]: %w",
			connections, MaxConnections, api.ErrInvalidArgument)
	}

	r.accum = 0
	start := time.Now()

	var requests []*pending
	byID := make(map[api.TransferID]*pending)
	for i := 1; i <= connections; i++ {
		p, err := r.register(rawURL, payload)
		if err != nil {
			// A single failed connection never aborts the run.
			r.log.Warn("connection skipped", "test", label, "index", i, "err", err)
			continue
		}
		requests = append(requests, p)
		byID[p.t.ID()] = p
	}
	if len(requests) == 0 {
		return Result{}, fmt.Errorf("%s run: %w", label, api.ErrNoConnections)
	}

	r.engine.OnCompletion(func(c api.Completion) {
		p, ok := byID[c.ID]
		if !ok || p.done {
			return
		}
		p.done = true
		p.code = c.Code
		if !c.Code.OK() {
			r.log.Warn("transfer failed", "test", label, "id", c.ID,
				"code", c.Code.String(), "err", c.Err)
		}
		// Drop the multiplexer's references first; the handle itself
		// is released only after the loop finishes.
		if res, err := r.multi.Remove(p.t); err == nil {
			r.engine.Apply(res)
		}
	})

	runErr := r.engine.Run()
	duration := time.Since(start)

	var bytes int64
	if payload != nil {
		// Per-request cursors are the source of truth for uploads.
		for _, p := range requests {
			bytes += p.src.Sent()
		}
	} else {
		bytes = r.accum
	}

	for _, p := range requests {
		if err := p.t.Close(); err != nil {
			r.log.Debug("handle release", "id", p.t.ID(), "err", err)
		}
	}
	r.engine.OnCompletion(nil)

	if runErr != nil {
		return Result{}, fmt.Errorf("%s run: %w", label, runErr)
	}

	return Result{
		Label:      label,
		Requested:  connections,
		Registered: len(requests),
		Bytes:      bytes,
		Duration:   duration,
		Mbps:       Throughput(bytes, duration),
	}, nil
}

// register configures and registers one request. Failures are
// per-connection: the caller logs and moves on.
func (r *Runner) register(rawURL string, payload *Payload) (*pending, error) {
	var (
		t   *transfer.Transfer
		src *Source
		err error
	)
	if payload != nil {
		src = payload.NewSource()
		t, err = r.newTransfer(rawURL,
			transfer.WithTimeout(uploadTimeout),
			transfer.WithUpload(payload.Size(), src.Fill),
		)
	} else {
		t, err = r.newTransfer(rawURL,
			transfer.WithTimeout(downloadTimeout),
			transfer.WithFollowRedirects(maxRedirects),
			transfer.WithWriteFunc(func(p []byte) int {
				r.accum += int64(len(p))
				return len(p) // consume everything, always
			}),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("configure: %w", err)
	}

	res, err := r.multi.Add(t)
	if err != nil {
		_ = t.Close()
		return nil, fmt.Errorf("register: %w", err)
	}
	r.engine.Apply(res)
	return &pending{t: t, src: src}, nil
}
