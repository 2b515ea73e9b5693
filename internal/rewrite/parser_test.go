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

import "testing"

func TestParseLineCondition(t *testing.T) {
	p, err := ParseLine("cond %{STATUS} >399 [AND]")
	if err != nil {
		t.Fatal(err)
	}
	if !p.IsCond() || p.Op() != "STATUS" || p.Arg() != ">399" {
		t.Errorf("op=%q arg=%q", p.Op(), p.Arg())
	}
	if !p.ModExist("AND") {
		t.Error("AND modifier lost")
	}
}

func TestParseLineCondKeywordOptional(t *testing.T) {
	p, err := ParseLine("%{METHOD} =GET [OR]")
	if err != nil {
		t.Fatal(err)
	}
	if !p.IsCond() || p.Op() != "METHOD" || p.Arg() != "=GET" {
		t.Errorf("op=%q arg=%q", p.Op(), p.Arg())
	}
}

func TestParseLineOperator(t *testing.T) {
	p, err := ParseLine(`set-header X-Name "quoted value here" [L]`)
	if err != nil {
		t.Fatal(err)
	}
	if p.IsCond() || p.Op() != "set-header" || p.Arg() != "X-Name" {
		t.Errorf("op=%q arg=%q", p.Op(), p.Arg())
	}
	if p.Value() != "quoted value here" {
		t.Errorf("value=%q", p.Value())
	}
	if !p.ModExist("L") {
		t.Error("L modifier lost")
	}
}

func TestParseLineRegex(t *testing.T) {
	p, err := ParseLine(`cond %{PATH} /^user\/(\d+)$/`)
	if err != nil {
		t.Fatal(err)
	}
	if p.Arg() != `/^user\/(\d+)$/` {
		t.Errorf("arg=%q", p.Arg())
	}
	op, data := parseMatcherOp(p.Arg())
	if op != MatchRegex || data != `^user\/(\d+)$` {
		t.Errorf("op=%d data=%q", op, data)
	}
}

func TestParseLineModsList(t *testing.T) {
	p, err := ParseLine("set-redirect 302 http://example.com/ [QSA,L]")
	if err != nil {
		t.Fatal(err)
	}
	if !p.ModExist("QSA") || !p.ModExist("L") {
		t.Errorf("mods=%v", p.Mods())
	}
	if p.Arg() != "302" || p.Value() != "http://example.com/" {
		t.Errorf("arg=%q value=%q", p.Arg(), p.Value())
	}
}

func TestParseLineCommentsAndBlank(t *testing.T) {
	for _, line := range []string{"", "   ", "# a comment", "   # indented comment"} {
		p, err := ParseLine(line)
		if err != nil {
			t.Fatalf("%q: %v", line, err)
		}
		if !p.Empty() {
			t.Errorf("%q should be empty", line)
		}
	}
}

func TestParseLineElse(t *testing.T) {
	p, err := ParseLine("else")
	if err != nil {
		t.Fatal(err)
	}
	if !p.IsElse() {
		t.Error("else not detected")
	}
}

func TestParseLineUnterminatedQuote(t *testing.T) {
	if _, err := ParseLine(`set-header X "unterminated`); err == nil {
		t.Error("expected a syntax error")
	}
}

func TestParseLineEscapes(t *testing.T) {
	p, err := ParseLine(`set-header X-Esc value\ with\ spaces`)
	if err != nil {
		t.Fatal(err)
	}
	if p.Arg() != "X-Esc" || p.Value() != "value with spaces" {
		t.Errorf("arg=%q value=%q", p.Arg(), p.Value())
	}
	// The escaped spaces keep the value one token.
	if len(p.Tokens()) != 3 {
		t.Errorf("tokens=%v", p.Tokens())
	}
}

func TestCondIsHook(t *testing.T) {
	p, err := ParseLine("cond %{READ_RESPONSE_HDR_HOOK}")
	if err != nil {
		t.Fatal(err)
	}
	hook, ok := p.CondIsHook()
	if !ok || hook != HookReadResponse {
		t.Errorf("hook=%v ok=%v", hook, ok)
	}

	p2, _ := ParseLine("cond %{METHOD} =GET")
	if _, ok := p2.CondIsHook(); ok {
		t.Error("METHOD is not a hook selector")
	}
}

func TestSimpleTokenize(t *testing.T) {
	tokens := simpleTokenize("prefix %{LAST-CAPTURE:1} mid %<proto> end")
	want := []string{"prefix ", "%{LAST-CAPTURE:1}", " mid ", "%<proto>", " end"}
	if len(tokens) != len(want) {
		t.Fatalf("tokens=%v", tokens)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Errorf("token %d = %q want %q", i, tokens[i], want[i])
		}
	}
}
