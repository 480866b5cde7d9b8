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
	"bytes"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestMetricOptionsErrors(t *testing.T) {
	tests := []struct {
		name string
		opts MetricOptions
	}{
		{"statsd without agent", MetricOptions{MetricEndpointType: "statsd", MetricFlushInterval: time.Second}},
		{"prometheus without endpoint", MetricOptions{MetricEndpointType: "prometheus", MetricFlushInterval: time.Second}},
		{"prometheus without path", MetricOptions{MetricEndpointType: "prometheus", MetricPrometheusEndpoint: "http://127.0.0.1:2112", MetricFlushInterval: time.Second}},
		{"unknown endpoint", MetricOptions{MetricEndpointType: "carbon", MetricFlushInterval: time.Second}},
		{"stderr format", MetricOptions{MetricEndpointType: "stderr", MetricStderrFormat: "xml", MetricFlushInterval: time.Second}},
		{"zero interval", MetricOptions{MetricEndpointType: "stderr", MetricStderrFormat: "json"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g, err := tc.opts.Setup(context.Background())
			require.Error(t, err)
			require.Nil(t, g)
		})
	}
}

func TestMetricOptionsStderr(t *testing.T) {
	metrics.GetOrRegisterCounter("utilTestPackets", metrics.DefaultRegistry).Inc(5)

	for _, format := range []string{"kv", "json"} {
		t.Run(format, func(t *testing.T) {
			out := &syncBuffer{}
			opts := MetricOptions{
				MetricEndpointType:  "stderr",
				MetricStderrFormat:  format,
				MetricFlushInterval: 10 * time.Millisecond,
				stderr:              out,
			}
			ctx, cancel := context.WithCancel(context.Background())
			g, err := opts.Setup(ctx)
			require.NoError(t, err)

			want := "utilTestPackets=5"
			if format == "json" {
				want = `"utilTestPackets":{"count":5}`
			}
			require.Eventually(t, func() bool { return bytes.Contains([]byte(out.String()), []byte(want)) }, 2*time.Second, 5*time.Millisecond)
			cancel()
			require.NoError(t, g.Wait())
		})
	}
}

func TestMetricOptionsStatsd(t *testing.T) {
	agent, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer agent.Close()
	metrics.GetOrRegisterCounter("statsdTestPackets", metrics.DefaultRegistry).Inc(3)

	ctx, cancel := context.WithCancel(context.Background())
	g, err := MetricOptions{
		MetricEndpointType:  "statsd",
		MetricStatsdAgent:   agent.LocalAddr().String(),
		MetricFlushInterval: 10 * time.Millisecond,
	}.Setup(ctx)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	cancel()

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("statsd reporter did not stop after cancel")
	}

	var received strings.Builder
	buf := make([]byte, 65536)
	require.NoError(t, agent.SetReadDeadline(time.Now().Add(2*time.Second)))
	for !strings.Contains(received.String(), "statsdTestPackets") {
		n, _, err := agent.ReadFrom(buf)
		if err != nil {
			break
		}
		received.Write(buf[:n])
	}
	require.Contains(t, received.String(), "statsdTestPackets")
}

func TestMetricOptionsPrometheus(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	g, err := MetricOptions{
		MetricEndpointType:       "prometheus",
		MetricPrometheusEndpoint: "http://127.0.0.1:0/metrics",
		MetricFlushInterval:      time.Second,
		ServerName:               "test",
	}.Setup(ctx)
	require.NoError(t, err)
	cancel()
	require.NoError(t, g.Wait())
}

func TestFormatMetrics(t *testing.T) {
	r := metrics.NewRegistry()
	metrics.GetOrRegisterCounter("packets", r).Inc(7)
	metrics.GetOrRegisterGauge("dropped", r).Update(2)
	require.Equal(t, "dropped=2 packets=7", formatMetrics(r, "kv"))
	require.JSONEq(t, `{"dropped":{"value":2},"packets":{"count":7}}`, formatMetrics(r, "json"))
}

// vim: foldmethod=marker
