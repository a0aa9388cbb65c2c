// File: protocol/request.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// HTTP/1.1 request serialization.

package protocol

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
)

// DefaultUserAgent identifies spdtest on the wire.
const DefaultUserAgent = "spdtest/1.0"

// RequestTarget returns the origin-form target for u: path plus raw
// query, with "/" standing in for an empty path.
func RequestTarget(u *url.URL) string {
	target := u.EscapedPath()
	if target == "" {
		target = "/"
	}
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}
	return target
}

// HostHeader returns the Host header value for u, dropping the port
// when it matches the scheme default.
func HostHeader(u *url.URL) string {
	host := u.Host
	if strings.HasSuffix(host, ":80") && u.Scheme == "http" {
		host = strings.TrimSuffix(host, ":80")
	}
	return host
}

// BuildRequest serializes a request head. contentLength < 0 means the
// request carries no body; otherwise a Content-Length header is
// emitted and the caller streams exactly that many body bytes.
func BuildRequest(method string, u *url.URL, userAgent string, contentLength int64) []byte {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s %s HTTP/1.1\r\n", method, RequestTarget(u))
	fmt.Fprintf(&b, "Host: %s\r\n", HostHeader(u))
	fmt.Fprintf(&b, "User-Agent: %s\r\n", userAgent)
	b.WriteString("Accept: */*\r\n")
	if contentLength >= 0 {
		fmt.Fprintf(&b, "Content-Length: %d\r\n", contentLength)
	}
	b.WriteString("Connection: close\r\n")
	b.WriteString("\r\n")
	return b.Bytes()
}
