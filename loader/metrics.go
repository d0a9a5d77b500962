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

package loader

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var loaderMetrics = struct {
	actionDuration *prometheus.HistogramVec
}{
	actionDuration: prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "plugchain",
			Name:      "boot_action_duration_seconds",
			Help:      "Time spent running each boot action",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"action"},
	),
}

var metricsRegister sync.Once

func registerMetrics() {
	metricsRegister.Do(func() {
		prometheus.MustRegister(loaderMetrics.actionDuration)
	})
}

func recordActionDuration(action string, d time.Duration) {
	loaderMetrics.actionDuration.WithLabelValues(action).Observe(d.Seconds())
}
