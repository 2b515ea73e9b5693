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
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPrepareRequestStartsSpan(t *testing.T) {
	if _, err := SetTracer(StdoutTracerImplementation, ""); err != nil {
		t.Fatal(err)
	}

	r := httptest.NewRequest(http.MethodGet, "http://example.com/test", nil)
	r2, span := PrepareRequest(r, "test-tracer", "serve")
	if span == nil {
		t.Fatal("expected a span")
	}
	defer span.End()

	ctx, child := SpanFromContext(r2.Context(), "child")
	if child == nil {
		t.Fatal("expected a child span")
	}
	child.End()

	if tr := GlobalTracer(ctx); tr == nil {
		t.Error("expected a tracer from context")
	}
}

func TestRecorderCapturesHookSpans(t *testing.T) {
	rec, flush, err := SetRecorderTracer(1.0)
	if err != nil {
		t.Fatal(err)
	}
	defer flush()

	r := httptest.NewRequest(http.MethodGet, "http://example.com/x", nil)
	r2, serving := PrepareRequest(r, "test-tracer", "serve")

	ctx, span := NewHookSpan(r2.Context(), "READ_REQUEST_HDR_HOOK", 3)
	span.End()
	_, span = NewHookSpan(ctx, "REMAP_PSEUDO_HOOK", 1)
	span.End()
	serving.End()

	hooks := rec.HookSpans()
	if len(hooks) != 2 || hooks[0] != "READ_REQUEST_HDR_HOOK" || hooks[1] != "REMAP_PSEUDO_HOOK" {
		t.Errorf("hook spans = %v", hooks)
	}
	if rec.Len() != 3 {
		t.Errorf("recorded %d spans, want 3", rec.Len())
	}

	rec.Reset()
	if rec.Len() != 0 {
		t.Error("reset should drop spans")
	}
}

func TestTracerImplementationString(t *testing.T) {
	if StdoutTracerImplementation.String() != "stdout" || JaegerTracer.String() != "jaeger" {
		t.Error("tracer implementation names wrong")
	}
	if TracerImplementation(99).String() != "unknown-tracer" {
		t.Error("out of range should be unknown")
	}
}
