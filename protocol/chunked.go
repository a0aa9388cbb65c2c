// File: protocol/chunked.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Incremental Transfer-Encoding: chunked decoding.

package protocol

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

type chunkState int

const (
	chunkSize chunkState = iota // accumulating the size line
	chunkData                   // consuming chunk payload
	chunkCRLF                   // expecting the CRLF after payload
	chunkTrailer                // consuming trailer lines after the 0 chunk
	chunkDone
)

// ChunkedDecoder decodes a chunked body fed in arbitrary fragments.
// Payload bytes are delivered through emit; fragment boundaries never
// align with chunk boundaries in general, so the decoder carries state
// across Feed calls.
type ChunkedDecoder struct {
	state     chunkState
	line      []byte
	remaining int64
}

// maxChunkLine bounds size-line and trailer-line accumulation.
const maxChunkLine = 8 << 10

// Done reports whether the terminal chunk and trailers were consumed.
func (d *ChunkedDecoder) Done() bool { return d.state == chunkDone }

// Feed consumes data, invoking emit for each run of payload bytes.
// It returns true once the body is complete; trailing bytes beyond
// the terminal chunk are an error for a Connection: close transfer.
func (d *ChunkedDecoder) Feed(data []byte, emit func(p []byte)) (bool, error) {
	for len(data) > 0 {
		switch d.state {
		case chunkSize, chunkTrailer:
			idx := bytes.IndexByte(data, '\n')
			if idx < 0 {
				d.line = append(d.line, data...)
				if len(d.line) > maxChunkLine {
					return false, fmt.Errorf("chunk line exceeds %d bytes", maxChunkLine)
				}
				return false, nil
			}
			d.line = append(d.line, data[:idx+1]...)
			data = data[idx+1:]
			line := strings.TrimRight(string(d.line), "\r\n")
			d.line = d.line[:0]

			if d.state == chunkTrailer {
				if line == "" {
					d.state = chunkDone
					if len(data) > 0 {
						return false, fmt.Errorf("%d bytes after terminal chunk", len(data))
					}
					return true, nil
				}
				continue
			}

			// Chunk extensions after ";" are ignored.
			if i := strings.IndexByte(line, ';'); i >= 0 {
				line = line[:i]
			}
			size, err := strconv.ParseInt(strings.TrimSpace(line), 16, 64)
			if err != nil || size < 0 {
				return false, fmt.Errorf("malformed chunk size %q", line)
			}
			if size == 0 {
				d.state = chunkTrailer
				continue
			}
			d.remaining = size
			d.state = chunkData

		case chunkData:
			n := int64(len(data))
			if n > d.remaining {
				n = d.remaining
			}
			if emit != nil {
				emit(data[:n])
			}
			data = data[n:]
			d.remaining -= n
			if d.remaining == 0 {
				d.state = chunkCRLF
			}

		case chunkCRLF:
			// Tolerate the CRLF split across reads.
			for len(data) > 0 && d.remaining < 2 {
				c := data[0]
				if (d.remaining == 0 && c != '\r') || (d.remaining == 1 && c != '\n') {
					return false, fmt.Errorf("missing CRLF after chunk payload")
				}
				data = data[1:]
				d.remaining++
			}
			if d.remaining == 2 {
				d.remaining = 0
				d.state = chunkSize
			}

		case chunkDone:
			return false, fmt.Errorf("%d bytes after terminal chunk", len(data))
		}
	}
	return d.state == chunkDone, nil
}
