// File: protocol/response.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Incremental HTTP/1.1 response head parsing and body framing.

package protocol

import (
	"bytes"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Framing describes how the response body is delimited.
type Framing int

const (
	FramingNone        Framing = iota // no body (204, 304, HEAD)
	FramingLength                     // Content-Length
	FramingChunked                    // Transfer-Encoding: chunked
	FramingUntilClose                 // body runs to connection close
)

// Response holds a parsed response head.
type Response struct {
	StatusCode int
	Reason     string
	headers    []headerField
}

type headerField struct {
	name  string // lower-cased
	value string
}

// Header returns the first value of a header, case-insensitively.
func (r *Response) Header(name string) string {
	name = strings.ToLower(name)
	for _, f := range r.headers {
		if f.name == name {
			return f.value
		}
	}
	return ""
}

// ContentLength returns the declared body length, or -1 when absent
// or malformed.
func (r *Response) ContentLength() int64 {
	v := r.Header("Content-Length")
	if v == "" {
		return -1
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return -1
	}
	return n
}

// BodyFraming decides how the body following this head is delimited.
func (r *Response) BodyFraming() Framing {
	if r.StatusCode == 204 || r.StatusCode == 304 || (r.StatusCode >= 100 && r.StatusCode < 200) {
		return FramingNone
	}
	if strings.Contains(strings.ToLower(r.Header("Transfer-Encoding")), "chunked") {
		return FramingChunked
	}
	if r.ContentLength() >= 0 {
		return FramingLength
	}
	return FramingUntilClose
}

// IsRedirect reports whether the status is a followable redirect.
func (r *Response) IsRedirect() bool {
	switch r.StatusCode {
	case 301, 302, 303, 307, 308:
		return true
	}
	return false
}

// RedirectTarget resolves the Location header against the request URL.
func (r *Response) RedirectTarget(base *url.URL) (*url.URL, error) {
	loc := r.Header("Location")
	if loc == "" {
		return nil, fmt.Errorf("redirect status %d without Location", r.StatusCode)
	}
	ref, err := url.Parse(loc)
	if err != nil {
		return nil, fmt.Errorf("parse Location %q: %w", loc, err)
	}
	return base.ResolveReference(ref), nil
}

var headSep = []byte("\r\n\r\n")

// HeadParser accumulates bytes until a full response head is seen.
type HeadParser struct {
	buf  []byte
	resp *Response
}

// maxHeadBytes bounds head accumulation against hostile peers.
const maxHeadBytes = 64 << 10

// Feed appends data and attempts to complete the head. When the head
// terminator is found it returns the parsed response and any bytes
// that followed it (the body prefix). Until then resp is nil.
func (p *HeadParser) Feed(data []byte) (resp *Response, rest []byte, err error) {
	p.buf = append(p.buf, data...)
	idx := bytes.Index(p.buf, headSep)
	if idx < 0 {
		if len(p.buf) > maxHeadBytes {
			return nil, nil, fmt.Errorf("response head exceeds %d bytes", maxHeadBytes)
		}
		return nil, nil, nil
	}
	head := p.buf[:idx]
	rest = p.buf[idx+len(headSep):]
	resp, err = parseHead(head)
	if err != nil {
		return nil, nil, err
	}
	p.resp = resp
	return resp, rest, nil
}

func parseHead(head []byte) (*Response, error) {
	lines := strings.Split(string(head), "\r\n")
	if len(lines) == 0 {
		return nil, fmt.Errorf("empty response head")
	}
	resp := &Response{}
	if err := parseStatusLine(lines[0], resp); err != nil {
		return nil, err
	}
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("malformed header line %q", line)
		}
		resp.headers = append(resp.headers, headerField{
			name:  strings.ToLower(strings.TrimSpace(name)),
			value: strings.TrimSpace(value),
		})
	}
	return resp, nil
}

func parseStatusLine(line string, resp *Response) error {
	version, rest, ok := strings.Cut(line, " ")
	if !ok || !strings.HasPrefix(version, "HTTP/1.") {
		return fmt.Errorf("malformed status line %q", line)
	}
	codeStr, reason, _ := strings.Cut(rest, " ")
	code, err := strconv.Atoi(codeStr)
	if err != nil || code < 100 || code > 599 {
		return fmt.Errorf("malformed status code in %q", line)
	}
	resp.StatusCode = code
	resp.Reason = reason
	return nil
}
