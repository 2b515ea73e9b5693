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
	"fmt"
	"net/http"

	"github.com/Comcast/hrw/internal/runtime"
	"go.opentelemetry.io/otel/api/core"
	"go.opentelemetry.io/otel/api/distributedcontext"
	"go.opentelemetry.io/otel/api/global"
	"go.opentelemetry.io/otel/api/key"
	"go.opentelemetry.io/otel/api/trace"
	"go.opentelemetry.io/otel/plugin/httptrace"
)

// ServiceName is the service tag reported to the trace collector
const ServiceName = "hrw"

// Name returns the tracer name for this application
func Name() string {
	return fmt.Sprintf("%s/%s", runtime.ApplicationName, runtime.ApplicationVersion)
}

// SpanFromContext starts a span as a child of the span recorded in ctx by
// PrepareRequest
func SpanFromContext(ctx context.Context, spanName string) (context.Context, trace.Span) {
	tracerName, ok := ctx.Value(tracerCtxKey).(string)
	if !ok {
		tracerName = Name()
	}
	tr := global.TraceProvider().Tracer(tracerName)

	attrs, _ := ctx.Value(attrKey).([]core.KeyValue)
	spanCtx, ok := ctx.Value(spanCtxKey).(core.SpanContext)
	if !ok {
		return tr.Start(ctx, spanName, trace.WithAttributes(attrs...))
	}

	return tr.Start(
		ctx,
		spanName,
		trace.WithAttributes(attrs...),
		trace.ChildOf(spanCtx),
	)
}

// NewChildSpan starts a child span of whatever span is current in ctx
func NewChildSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	tr := GlobalTracer(ctx)
	return tr.Start(ctx, spanName)
}

// NewHookSpan starts the span around one rewrite-hook firing, tagged with
// the hook name and the number of rules compiled onto that hook's chain.
func NewHookSpan(ctx context.Context, hook string, rules int) (context.Context, trace.Span) {
	ctx, span := SpanFromContext(ctx, "rewrite."+hook)
	span.AddEvent(ctx, "hook fire",
		key.String("hrw.hook", hook),
		key.Int("hrw.rules", rules),
	)
	return ctx, span
}

// PrepareRequest extracts the distributed trace context from an inbound
// request and starts the serving span
func PrepareRequest(r *http.Request, tracerName string, spanName string) (*http.Request, trace.Span) {

	attrs, entries, spanCtx := httptrace.Extract(r.Context(), r)

	ctx := distributedcontext.WithMap(
		r.Context(),
		distributedcontext.NewMap(
			distributedcontext.MapUpdate{
				MultiKV: entries,
			},
		),
	)

	ctx = context.WithValue(ctx, attrKey, attrs)
	ctx = context.WithValue(ctx, spanCtxKey, spanCtx)
	ctx = context.WithValue(ctx, tracerCtxKey, tracerName)

	tr := global.TraceProvider().Tracer(tracerName)

	ctx, span := tr.Start(
		ctx,
		spanName,
		trace.WithAttributes(attrs...),
		trace.ChildOf(spanCtx),
	)

	return r.WithContext(ctx), span
}

type ctxSpanType struct{}
type ctxAttrType struct{}
type tracerCtxType struct{}

var (
	attrKey      = ctxAttrType{}
	spanCtxKey   = &ctxSpanType{}
	tracerCtxKey = &tracerCtxType{}
)
