// File: speedtest/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package speedtest orchestrates throughput test runs: it registers N
// concurrent transfers against one shared engine, runs the reactor
// loop to completion, and aggregates bytes moved into a throughput
// figure. It is the facade consumed by cmd/spdtest.
package speedtest
