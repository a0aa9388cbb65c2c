// File: internal/transfer/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Functional options for Transfer construction.

package transfer

import (
	"time"

	"github.com/momentics/spdtest/api"
)

// Option customizes a Transfer at construction time.
type Option func(*Transfer) error

// WithTimeout bounds the whole transfer, connect included.
func WithTimeout(d time.Duration) Option {
	return func(t *Transfer) error {
		if d <= 0 {
			return api.ErrInvalidArgument
		}
		t.timeout = d
		return nil
	}
}

// WithFollowRedirects enables redirect following up to max hops.
func WithFollowRedirects(max int) Option {
	return func(t *Transfer) error {
		if max < 1 {
			return api.ErrInvalidArgument
		}
		t.followRedirects = true
		t.maxRedirects = max
		return nil
	}
}

// WithWriteFunc installs the response body sink.
func WithWriteFunc(fn api.WriteFunc) Option {
	return func(t *Transfer) error {
		if fn == nil {
			return api.ErrInvalidArgument
		}
		t.writeFn = fn
		return nil
	}
}

// WithUpload switches the transfer into upload mode: a PUT carrying
// exactly size body bytes pulled from fn.
func WithUpload(size int64, fn api.ReadFunc) Option {
	return func(t *Transfer) error {
		if size < 0 || fn == nil {
			return api.ErrInvalidArgument
		}
		t.upload = true
		t.uploadSize = size
		t.readFn = fn
		return nil
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(t *Transfer) error {
		if ua == "" {
			return api.ErrInvalidArgument
		}
		t.userAgent = ua
		return nil
	}
}
