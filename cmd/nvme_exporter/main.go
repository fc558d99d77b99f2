// Copyright 2022 The Prometheus Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	kingpin "github.com/alecthomas/kingpin/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/common/promlog"
	promlogflag "github.com/prometheus/common/promlog/flag"
	"github.com/prometheus/common/version"

	"github.com/prometheus-community/nvme_exporter/collector"
	"github.com/prometheus-community/nvme_exporter/config"
)

func main() {
	app := kingpin.New("nvme_exporter", "Prometheus exporter for NVMe health metrics")
	cfg := config.Register(app)

	promlogConfig := &promlog.Config{}
	promlogflag.AddFlags(app, promlogConfig)
	app.Version(version.Print("nvme_exporter"))
	app.HelpFlag.Short('h')

	if _, err := app.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "nvme_exporter: error parsing arguments: %v\n", err)
		app.Usage(os.Args[1:])
		os.Exit(1)
	}

	logger := promlog.New(promlogConfig)
	level.Info(logger).Log("msg", "starting nvme_exporter", "version", version.Info())
	level.Info(logger).Log("msg", "build context", "build_context", version.BuildContext())

	c := collector.New(cfg, logger)
	if err := c.ValidateStartupDevices(); err != nil {
		level.Error(logger).Log("msg", "no readable NVMe devices at startup", "err", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", landingPageHandler)
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/metrics", metricsHandler(c, logger))

	srv := &http.Server{
		Addr:    cfg.ListenAddress,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		level.Info(logger).Log("msg", "listening", "address", cfg.ListenAddress)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			level.Error(logger).Log("msg", "server failed", "err", err)
			os.Exit(1)
		}
	case sig := <-sigCh:
		level.Info(logger).Log("msg", "shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			level.Error(logger).Log("msg", "graceful shutdown failed", "err", err)
			os.Exit(1)
		}
	}
}

func landingPageHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(`<html>
<head><title>NVMe Exporter</title></head>
<body>
<h1>NVMe Exporter</h1>
<p><a href="/metrics">Metrics</a></p>
</body>
</html>
`))
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func metricsHandler(c *collector.Collector, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		output, err := c.Scrape()
		if err != nil {
			level.Error(logger).Log("msg", "scrape failed", "err", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(output))
	}
}
