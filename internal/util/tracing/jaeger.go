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
	"errors"

	"go.opentelemetry.io/otel/api/core"
	"go.opentelemetry.io/otel/api/global"
	"go.opentelemetry.io/otel/api/key"
	"go.opentelemetry.io/otel/exporter/trace/jaeger"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Comcast/hrw/internal/config"
	"github.com/Comcast/hrw/internal/runtime"
)

// setJaegerTracer installs the Jaeger exporter pointed at the configured
// collector, identifying this process by instance id when several run on
// one host.
func setJaegerTracer(collectorURL string) (func(), error) {
	if collectorURL == "" {
		return nil, errors.New("jaeger tracer requires a collector endpoint")
	}

	tags := []core.KeyValue{
		key.String("exporter", "jaeger"),
		key.String("version", runtime.ApplicationVersion),
	}
	if config.Main != nil && config.Main.InstanceID > 0 {
		tags = append(tags, key.Int("instance", config.Main.InstanceID))
	}

	exporter, err := jaeger.NewExporter(
		jaeger.WithCollectorEndpoint(collectorURL),
		jaeger.WithProcess(jaeger.Process{
			ServiceName: ServiceName,
			Tags:        tags,
		}),
	)
	if err != nil {
		return nil, err
	}

	tp, err := sdktrace.NewProvider(
		sdktrace.WithConfig(sdktrace.Config{DefaultSampler: sdktrace.AlwaysSample()}),
		sdktrace.WithSyncer(exporter))
	if err != nil {
		return nil, err
	}
	global.SetTraceProvider(tp)

	return func() {
		exporter.Flush()
	}, nil
}
