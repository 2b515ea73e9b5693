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

	"go.opentelemetry.io/otel/api/global"
	"go.opentelemetry.io/otel/api/trace"

	"github.com/Comcast/hrw/internal/config"
)

const (
	// StdoutTracerImplementation is the fallback tracer implementation
	StdoutTracerImplementation TracerImplementation = iota

	// JaegerTracer reports to a Jaeger collector
	JaegerTracer
)

// TracerImplementation enumerates the supported trace exporters
type TracerImplementation int

var (
	tracerImplemetationStrings = []string{
		"stdout",
		"jaeger",
	}

	// TracerImplementations maps the configuration value to its implementation
	TracerImplementations = map[string]TracerImplementation{
		tracerImplemetationStrings[StdoutTracerImplementation]: StdoutTracerImplementation,
		tracerImplemetationStrings[JaegerTracer]:               JaegerTracer,
	}
)

// GlobalTracer returns the tracer recorded in ctx, or a noop tracer
func GlobalTracer(ctx context.Context) trace.Tracer {
	tracerName, ok := ctx.Value(tracerCtxKey).(string)
	if !ok {
		return trace.NoopTracer{}
	}
	return global.TraceProvider().Tracer(tracerName)
}

func (t TracerImplementation) String() string {
	if t < StdoutTracerImplementation || t > JaegerTracer {
		return "unknown-tracer"
	}
	return tracerImplemetationStrings[t]
}

// SetTracer installs the given trace exporter as the global provider
func SetTracer(t TracerImplementation, collectorURL string) (func(), error) {
	switch t {
	case JaegerTracer:
		return setJaegerTracer(collectorURL)
	default:
		return setStdOutTracer()
	}
}

// Init installs the tracer selected by the running configuration; an
// unknown implementation name falls back to stdout with a loader warning.
func Init() (func(), error) {
	impl := StdoutTracerImplementation
	collector := ""
	if config.Tracing != nil {
		t, ok := TracerImplementations[config.Tracing.Implementation]
		if ok {
			impl = t
		} else if config.Tracing.Implementation != "" {
			config.LoaderWarnings = append(config.LoaderWarnings,
				"unknown tracer implementation '"+config.Tracing.Implementation+"', using stdout")
		}
		collector = config.Tracing.CollectorEndpoint
	}
	return SetTracer(impl, collector)
}
