/**
* Copyright 2018 Comcast Cable Communications Management, LLC
* Licensed under the Apache License, Version 2.0 (the "License");
* you may not use this file except in compliance with the License.
* You may obtain a copy of the License at
* http://www.apache.org/licenses/LICENSE-2.0
* Unless required by applicable law or agreed to in writing, software
* distributed under the License is distributed on an "AS IS" BASIS,
* WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
* See the License for the specific language governing permissions and
* limitations under the License.
 */

// Package metrics defines the application metrics and the standalone
// metrics listener.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/Comcast/hrw/internal/config"
	"github.com/Comcast/hrw/internal/util/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RulesEvaluated counts rule evaluations per hook and outcome
var RulesEvaluated *prometheus.CounterVec

// OperatorsExecuted counts operator executions per operator tag
var OperatorsExecuted *prometheus.CounterVec

// RuleCounters backs the COUNTER operator; one series per configured counter name
var RuleCounters *prometheus.CounterVec

// HookDuration observes per-hook engine latency in seconds
var HookDuration *prometheus.HistogramVec

func init() {
	RulesEvaluated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrw_rules_evaluated_total",
			Help: "Count of rewrite rules evaluated, by hook and whether the condition group matched",
		},
		[]string{"hook", "matched"},
	)
	OperatorsExecuted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrw_operators_executed_total",
			Help: "Count of rewrite operators executed, by operator",
		},
		[]string{"operator"},
	)
	RuleCounters = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hrw_rule_counters_total",
			Help: "Process-wide non-persistent counters incremented by the counter operator",
		},
		[]string{"name"},
	)
	HookDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hrw_hook_duration_seconds",
			Help:    "Histogram of engine execution time per hook",
			Buckets: []float64{0.000005, 0.00005, 0.0005, 0.005, 0.05},
		},
		[]string{"hook"},
	)

	prometheus.MustRegister(RulesEvaluated)
	prometheus.MustRegister(OperatorsExecuted)
	prometheus.MustRegister(RuleCounters)
	prometheus.MustRegister(HookDuration)
}

// ListenAndServe starts the metrics listener when configured
func ListenAndServe() {
	if config.Metrics != nil && config.Metrics.ListenPort > 0 {
		log.Info("metrics http endpoint starting", log.Pairs{"address": config.Metrics.ListenAddress, "port": fmt.Sprintf("%d", config.Metrics.ListenPort)})
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(fmt.Sprintf("%s:%d", config.Metrics.ListenAddress, config.Metrics.ListenPort), nil); err != nil {
				log.Error("unable to start metrics http server", log.Pairs{"detail": err.Error()})
			}
		}()
	}
}
