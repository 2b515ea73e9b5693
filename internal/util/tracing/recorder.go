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

package tracing

import (
	"context"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/api/global"
	export "go.opentelemetry.io/otel/sdk/export/trace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// SpanRecorder is an in-memory exporter that keeps finished spans for
// inspection. Tests use it to assert which hook and serving spans the
// engine emitted.
type SpanRecorder struct {
	mu    sync.Mutex
	spans []*export.SpanData
}

// ExportSpan implements the exporter interface.
func (e *SpanRecorder) ExportSpan(_ context.Context, data *export.SpanData) {
	e.mu.Lock()
	e.spans = append(e.spans, data)
	e.mu.Unlock()
}

// Len returns the number of recorded spans.
func (e *SpanRecorder) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.spans)
}

// Names returns the recorded span names in export order.
func (e *SpanRecorder) Names() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.spans))
	for _, s := range e.spans {
		names = append(names, s.Name)
	}
	return names
}

// HookSpans returns the recorded rewrite-hook span names, stripped of
// their "rewrite." prefix and of the "<tracer name>/" prefix the SDK puts
// in front of every span name.
func (e *SpanRecorder) HookSpans() []string {
	var hooks []string
	for _, n := range e.Names() {
		if i := strings.LastIndex(n, "/rewrite."); i >= 0 {
			n = n[i+1:]
		}
		if strings.HasPrefix(n, "rewrite.") {
			hooks = append(hooks, strings.TrimPrefix(n, "rewrite."))
		}
	}
	return hooks
}

// Reset drops all recorded spans.
func (e *SpanRecorder) Reset() {
	e.mu.Lock()
	e.spans = nil
	e.mu.Unlock()
}

// SetRecorderTracer installs a recording tracer as the global provider and
// returns the recorder, sampling at the given rate.
func SetRecorderTracer(sampleRate float64) (*SpanRecorder, func(), error) {
	rec := &SpanRecorder{}
	tp, err := sdktrace.NewProvider(
		sdktrace.WithConfig(sdktrace.Config{DefaultSampler: sdktrace.ProbabilitySampler(sampleRate)}),
		sdktrace.WithSyncer(rec))
	if err != nil {
		return nil, nil, err
	}
	global.SetTraceProvider(tp)
	return rec, func() {}, nil
}
