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

package rewrite

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Comcast/hrw/internal/util/metrics"
)

func TestCounterOperator(t *testing.T) {
	rules := "cond %{METHOD} =GET\n" +
		"counter test.counter.get\n"

	rc := compileRules(t, rules, HookReadRequest)
	series := metrics.RuleCounters.WithLabelValues("test.counter.get")
	base := testutil.ToFloat64(series)

	// Two matching requests and one non-matching.
	for _, m := range []string{"GET", "GET", "POST"} {
		Run(rc, HookReadRequest, newFakeHost(t, m, "http://ex/"), nil)
	}

	if got := testutil.ToFloat64(series) - base; got != 2 {
		t.Errorf("counter incremented %v times, want 2", got)
	}
}

func TestCounterCreatedAtCompileTime(t *testing.T) {
	compileRules(t, "counter test.counter.precreated\n", HookReadRequest)
	series := metrics.RuleCounters.WithLabelValues("test.counter.precreated")
	if testutil.ToFloat64(series) != 0 {
		t.Error("counter should exist at zero before any match")
	}
}

func TestCounterRequiresName(t *testing.T) {
	if _, err := tryCompileRules("counter\n", HookReadRequest); err == nil {
		t.Error("empty counter name must fail the load")
	}
}
