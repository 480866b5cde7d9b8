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

package capture

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rcrowley/go-metrics"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mosajjal/gopcap/pcap"
)

// Looper is the part of a pcap.Session that Run drives.
type Looper interface {
	Loop(maxCount int, h pcap.Handler) pcap.Status
	BreakLoop()
	Statistics() (pcap.Statistics, error)
}

// a loop blocked in the kernel only sees a break once it wakes up, and a
// break sent before the loop started is ignored, so it is repeated.
const breakRetryInterval = 100 * time.Millisecond

var (
	packetsCaptured   = metrics.GetOrRegisterGauge("packetsCaptured", metrics.DefaultRegistry)
	packetsDropped    = metrics.GetOrRegisterGauge("packetsDropped", metrics.DefaultRegistry)
	packetsIfDropped  = metrics.GetOrRegisterGauge("packetsIfDropped", metrics.DefaultRegistry)
	packetLossPercent = metrics.GetOrRegisterGaugeFloat64("packetLossPercent", metrics.DefaultRegistry)
)

// Run calls s.Loop on its own goroutine with h until count packets were
// handled (0 for no limit), the source ends, the loop fails or ctx is done.
// Every statsDelay, and once at the end, the capture statistics are published
// as gauges. A failed loop is returned as an error, an interrupted one is not.
func Run(ctx context.Context, s Looper, count int, statsDelay time.Duration, h pcap.Handler) (pcap.Status, error) {
	g, gCtx := errgroup.WithContext(ctx)
	done := make(chan struct{})
	var status pcap.Status

	g.Go(func() error {
		defer close(done)
		status = s.Loop(count, h)
		if status.Kind == pcap.StatusError {
			return errors.WithStack(status.Err)
		}
		return nil
	})

	g.Go(func() error {
		var tick <-chan time.Time
		if statsDelay > 0 {
			captureStatsTicker := time.NewTicker(statsDelay)
			defer captureStatsTicker.Stop()
			tick = captureStatsTicker.C
		}
		for {
			select {
			case <-done:
				publishStats(s)
				return nil
			case <-tick:
				publishStats(s)
			case <-gCtx.Done():
				log.Info("Stopping capture...")
				for {
					s.BreakLoop()
					select {
					case <-done:
						publishStats(s)
						return nil
					case <-time.After(breakRetryInterval):
					}
				}
			}
		}
	})

	err := g.Wait()
	return status, err
}

func publishStats(s Looper) {
	st, err := s.Statistics()
	if err != nil {
		log.Debugf("capture statistics unavailable: %v", err)
		return
	}
	packetsCaptured.Update(int64(st.Received))
	packetsDropped.Update(int64(st.Dropped))
	packetsIfDropped.Update(int64(st.IfDropped))
	if st.Received > 0 {
		packetLossPercent.Update(float64(st.Dropped) * 100.0 / float64(st.Received))
	}
}

// vim: foldmethod=marker
