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
	"strings"
	"testing"
)

func TestValueLiteral(t *testing.T) {
	var v Value
	if err := v.Set("300"); err != nil {
		t.Fatal(err)
	}
	if v.GetInt() != 300 {
		t.Errorf("int = %d", v.GetInt())
	}
	var b strings.Builder
	v.AppendValue(&b, NewResources(newFakeHost(t, "GET", ""), nil))
	if b.String() != "300" {
		t.Errorf("append = %q", b.String())
	}
}

func TestValueTemplate(t *testing.T) {
	host := newFakeHost(t, "GET", "http://ex/a")
	res := NewResources(host, nil)

	var v Value
	if err := v.Set("method=%{METHOD} done"); err != nil {
		t.Fatal(err)
	}
	var b strings.Builder
	v.AppendValue(&b, res)
	if b.String() != "method=GET done" {
		t.Errorf("expanded = %q", b.String())
	}
}

func TestValueBadTemplateFailsLoad(t *testing.T) {
	var v Value
	if err := v.Set("%{NO-SUCH-THING}"); err == nil {
		t.Error("unknown template condition must fail the load")
	}
}

func TestExpanderTokens(t *testing.T) {
	host := newFakeHost(t, "GET", "http://ex:8080/deep/path?q=1")
	res := NewResources(host, nil)

	out := NewVariableExpander("p=%<proto> port=%<port> m=%<cqhm>").Expand(res)
	if out != "p=http port=8080 m=GET" {
		t.Errorf("expanded = %q", out)
	}
}

func TestExpanderUnknownTokenLeftAlone(t *testing.T) {
	host := newFakeHost(t, "GET", "http://ex/")
	res := NewResources(host, nil)

	out := NewVariableExpander("keep %<bogus> and %<cqhm>").Expand(res)
	if out != "keep %<bogus> and GET" {
		t.Errorf("expanded = %q", out)
	}
}

func TestExpanderInboundTokens(t *testing.T) {
	host := newFakeHost(t, "GET", "http://ex/")
	res := NewResources(host, nil)

	out := NewVariableExpander("%<INBOUND:REMOTE-ADDR>").Expand(res)
	if out != "192.0.2.10" {
		t.Errorf("expanded = %q", out)
	}
}
