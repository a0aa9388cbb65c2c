// File: speedtest/result.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Run results, throughput math, and the human-readable report.

package speedtest

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
)

// Result aggregates one finished test run.
type Result struct {
	Label      string // "Download" or "Upload"
	Requested  int    // connections asked for
	Registered int    // connections that actually entered the run
	Bytes      int64  // total payload bytes moved
	Duration   time.Duration
	Mbps       float64
}

// minMeasurable is the duration below which throughput is reported as
// zero rather than as a wildly amplified figure.
const minMeasurable = time.Millisecond

// Throughput converts a byte count over a duration into decimal
// megabits per second. Runs too short to measure, or runs that moved
// nothing, yield 0.
func Throughput(bytes int64, d time.Duration) float64 {
	if d <= minMeasurable || bytes <= 0 {
		return 0
	}
	return float64(bytes) * 8 / d.Seconds() / 1e6
}

// Report renders a result in the classic console layout.
func Report(w io.Writer, r Result) {
	fmt.Fprintf(w, "\n--- %s Test Results ---\n", r.Label)
	fmt.Fprintf(w, "Connections: %d\n", r.Registered)
	fmt.Fprintf(w, "Total Bytes: %s (%s)\n", humanize.Comma(r.Bytes), humanize.Bytes(uint64(r.Bytes)))
	fmt.Fprintf(w, "Time Taken: %.2f seconds\n", r.Duration.Seconds())
	switch {
	case r.Mbps > 0:
		fmt.Fprintf(w, "Speed: %.2f Mbps\n", r.Mbps)
	case r.Bytes > 0:
		fmt.Fprintf(w, "Speed: N/A (duration too short for a reliable figure)\n")
	default:
		fmt.Fprintf(w, "Speed: 0.00 Mbps (no data transferred)\n")
	}
	fmt.Fprintf(w, "---------------------------\n\n")
}
