// File: cmd/spdtest/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// spdtest: HTTP throughput tester over the reactor-driven engine.

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/c2h5oh/datasize"
	"github.com/jpillora/opts"
	"github.com/lmittmann/tint"

	"github.com/momentics/spdtest/speedtest"
)

var version = "0.0.0-src" // set with ldflags

type config struct {
	Download    bool   `help:"perform a download speed test" short:"d"`
	Upload      bool   `help:"perform an upload speed test" short:"u"`
	URL         string `help:"target URL for tests" short:"l"`
	Connections int    `help:"number of concurrent connections (1-10)" short:"c"`
	Payload     string `help:"upload payload size, e.g. 10MB"`
	Verbose     bool   `help:"enable debug logging"`
}

func main() {
	c := config{
		URL:         "http://speedtest.tele2.net/1MB.zip",
		Connections: 1,
		Payload:     "10MB",
	}
	opts.New(&c).Name("spdtest").Version(version).Parse()

	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05",
		}),
	))
	log := slog.Default()

	if !c.Download && !c.Upload {
		fmt.Fprintln(os.Stderr, "error: at least one test type (-d or -u) must be specified")
		os.Exit(1)
	}
	if c.URL == "" {
		fmt.Fprintln(os.Stderr, "error: target URL is missing or empty")
		os.Exit(1)
	}
	if c.Connections < 1 || c.Connections > speedtest.MaxConnections {
		fmt.Fprintf(os.Stderr, "error: number of connections must be between 1 and %d\n",
			speedtest.MaxConnections)
		os.Exit(1)
	}
	var payloadSize datasize.ByteSize
	if err := payloadSize.UnmarshalText([]byte(c.Payload)); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid payload size %q: %v\n", c.Payload, err)
		os.Exit(1)
	}

	log.Info("spdtest starting", "url", c.URL, "connections", c.Connections,
		"download", c.Download, "upload", c.Upload)

	runner, err := speedtest.NewRunner(log)
	if err != nil {
		log.Error("engine construction failed", "err", err)
		os.Exit(1)
	}
	defer runner.Close()

	if c.Download {
		res, err := runner.RunDownload(c.URL, c.Connections)
		if err != nil {
			log.Error("download run aborted", "err", err)
			os.Exit(1)
		}
		speedtest.Report(os.Stdout, res)
	}
	if c.Upload {
		log.Info("ensure the URL accepts uploads for a meaningful test", "url", c.URL)
		res, err := runner.RunUpload(c.URL, c.Connections, int64(payloadSize.Bytes()))
		if err != nil {
			log.Error("upload run aborted", "err", err)
			os.Exit(1)
		}
		speedtest.Report(os.Stdout, res)
	}
}
