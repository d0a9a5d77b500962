/*
   plugchain - extension-point runtime
   Copyright (C) 2025  the plugchain Contributors

   This program is free software: you can redistribute it and/or modify
   it under the terms of the GNU Affero General Public License as published by
   the Free Software Foundation, version 3.

   This program is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
   GNU Affero General Public License for more details.

   You should have received a copy of the GNU Affero General Public License
   along with this program.  If not, see <http://www.gnu.org/licenses/>.
*/

package hook

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeReturned = "returned"
	outcomeTerminal = "terminal"
	outcomeOverride = "override"
	outcomeError    = "error"
)

var hookMetrics = struct {
	dispatches       *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	links            *prometheus.GaugeVec
}{
	dispatches: prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plugchain",
			Name:      "dispatch_total",
			Help:      "Chain dispatches by extension point and outcome",
		},
		[]string{"extension_point", "outcome"},
	),
	dispatchDuration: prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "plugchain",
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent dispatching an extension point",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"extension_point"},
	),
	links: prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "plugchain",
			Name:      "links",
			Help:      "Links hooked up per extension point and stage",
		},
		[]string{"extension_point", "stage"},
	),
}

var metricsRegister sync.Once

func registerMetrics() {
	metricsRegister.Do(func() {
		prometheus.MustRegister(hookMetrics.dispatches)
		prometheus.MustRegister(hookMetrics.dispatchDuration)
		prometheus.MustRegister(hookMetrics.links)
	})
}

func recordDispatch(id, outcome string, d time.Duration) {
	hookMetrics.dispatches.WithLabelValues(id, outcome).Inc()
	hookMetrics.dispatchDuration.WithLabelValues(id).Observe(d.Seconds())
}

func recordLinks(id string, capture, execute int) {
	hookMetrics.links.WithLabelValues(id, string(captureStage)).Set(float64(capture))
	hookMetrics.links.WithLabelValues(id, string(executeStage)).Set(float64(execute))
}
