/* {{{ Copyright (C) 2022 Ali Mosajjal
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>. }}} */

package util

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	prometheusmetrics "github.com/deathowl/go-metrics-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rcrowley/go-metrics"
	log "github.com/sirupsen/logrus"
	statsd "github.com/syntaqx/go-metrics-datadog"
	"golang.org/x/sync/errgroup"
)

// MetricOptions selects where the capture counters of metrics.DefaultRegistry are reported.
type MetricOptions struct {
	MetricEndpointType       string        `long:"metricendpointtype"       ini-name:"metricendpointtype"       env:"GOPCAP_METRICENDPOINTTYPE"       default:"stderr"  description:"Metric Endpoint Service"                                        choice:"statsd" choice:"prometheus" choice:"stderr"`
	MetricStatsdAgent        string        `long:"metricstatsdagent"        ini-name:"metricstatsdagent"        env:"GOPCAP_METRICSTATSDAGENT"        default:""        description:"Statsd endpoint. Example: 127.0.0.1:8125 "`
	MetricPrometheusEndpoint string        `long:"metricprometheusendpoint" ini-name:"metricprometheusendpoint" env:"GOPCAP_METRICPROMETHEUSENDPOINT" default:""        description:"Prometheus Registry endpoint. Example: http://0.0.0.0:2112/metric"`
	MetricStderrFormat       string        `long:"metricstderrformat"       ini-name:"metricstderrformat"       env:"GOPCAP_METRICSTDERRFORMAT"       default:"json"    description:"Format for stderr output."                                      choice:"json"   choice:"kv"`
	MetricFlushInterval      time.Duration `long:"metricflushinterval"      ini-name:"metricflushinterval"      env:"GOPCAP_METRICFLUSHINTERVAL"      default:"10s"     description:"Interval between sending results to Metric Endpoint"`
	ServerName               string        `long:"servername"               ini-name:"servername"               env:"GOPCAP_SERVERNAME"               default:"default" description:"Name of the server used to index the metrics."`

	// stderr is replaced in tests
	stderr io.Writer
}

// Setup starts the reporter goroutines. They stop when ctx is done; Wait on
// the returned group to collect their errors.
func (c MetricOptions) Setup(ctx context.Context) (*errgroup.Group, error) {
	if c.MetricFlushInterval <= 0 {
		return nil, fmt.Errorf("invalid metric flush interval %s", c.MetricFlushInterval)
	}
	g, gCtx := errgroup.WithContext(ctx)
	switch c.MetricEndpointType {
	case "statsd":
		if c.MetricStatsdAgent == "" {
			return nil, fmt.Errorf("statsd Agent is required")
		}
		statsdOptions := []statsd.ReporterOption{
			statsd.UseFlushInterval(c.MetricFlushInterval),
			statsd.UsePercentiles([]float64{0.25, 0.99}),
		}
		reporter, err := statsd.NewReporter(metrics.DefaultRegistry, c.MetricStatsdAgent, statsdOptions...)
		if err != nil {
			return nil, fmt.Errorf("failed to create statsd reporter: %w", err)
		}
		g.Go(func() error {
			ticker := time.NewTicker(c.MetricFlushInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if err := reporter.FlushOnce(); err != nil {
						log.Warnf("failed to send metrics to statsd: %v", err)
					}
				case <-gCtx.Done():
					log.Debug("exiting statsd metrics goroutine")
					if err := reporter.FlushOnce(); err != nil {
						log.Warnf("failed to send metrics to statsd: %v", err)
					}
					return reporter.Client.Close()
				}
			}
		})

	case "prometheus":
		if c.MetricPrometheusEndpoint == "" {
			return nil, fmt.Errorf("promethus Registry is required")
		}
		u, err := url.Parse(c.MetricPrometheusEndpoint)
		if err != nil || u.Path == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid URL for Prometheus: %q", c.MetricPrometheusEndpoint)
		}
		lis, err := net.Listen("tcp", u.Host)
		if err != nil {
			return nil, fmt.Errorf("failed to listen for prometheus: %w", err)
		}
		log.Infof("Prometheus Metrics enabled on %s%s", lis.Addr(), u.Path)

		prometheusClient := prometheusmetrics.NewPrometheusProvider(metrics.DefaultRegistry, "gopcap", c.ServerName, prometheus.DefaultRegisterer, time.Second)
		g.Go(func() error {
			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					prometheusClient.UpdatePrometheusMetrics()
				case <-gCtx.Done():
					log.Debug("exiting prometheus metrics update goroutine")
					return nil
				}
			}
		})

		mux := http.NewServeMux()
		mux.Handle(u.Path, promhttp.Handler())
		server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		g.Go(func() error {
			<-gCtx.Done()
			log.Info("shutting down prometheus HTTP server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
		g.Go(func() error {
			if err := server.Serve(lis); err != http.ErrServerClosed {
				return err
			}
			return nil
		})

	case "stderr":
		out := c.stderr
		if out == nil {
			out = os.Stderr
		}
		if c.MetricStderrFormat != "json" && c.MetricStderrFormat != "kv" {
			return nil, fmt.Errorf("stderr format %s is not supported", c.MetricStderrFormat)
		}
		g.Go(func() error {
			ticker := time.NewTicker(c.MetricFlushInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					fmt.Fprintf(out, "%s metrics: %s\n", time.Now().Format(time.RFC3339), formatMetrics(metrics.DefaultRegistry, c.MetricStderrFormat))
				case <-gCtx.Done():
					log.Debug("exiting out of metrics goroutine")
					return nil
				}
			}
		})

	default:
		return nil, fmt.Errorf("endpoint Type %s is not supported", c.MetricEndpointType)
	}

	return g, nil
}

// formatMetrics renders a registry as JSON, or as sorted key=value pairs
// holding the first field of each metric.
func formatMetrics(r metrics.Registry, format string) string {
	all := r.GetAll()
	if format == "json" {
		j, err := json.Marshal(all)
		if err != nil {
			log.Warnf("failed to convert metrics to JSON: %v", err)
			return ""
		}
		return string(j)
	}
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)
	var sb strings.Builder
	for _, name := range names {
		fields := all[name]
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		if len(keys) == 0 {
			continue
		}
		sort.Strings(keys)
		fmt.Fprintf(&sb, "%s=%v ", name, fields[keys[0]])
	}
	return strings.TrimSpace(sb.String())
}

// vim: foldmethod=marker
