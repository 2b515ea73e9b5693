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

// probeCond records whether it was evaluated.
type probeCond struct {
	condBase
	result bool
	hits   int
}

func (c *probeCond) Eval(*Resources) bool {
	c.hits++
	return c.result
}

func (c *probeCond) AppendValue(*strings.Builder, *Resources) {}

func TestCondGroupOrShortCircuits(t *testing.T) {
	first := &probeCond{result: true}
	first.mods |= CondOr
	second := &probeCond{result: false}

	g := &CondGroup{}
	g.Add(first)
	g.Add(second)

	res := NewResources(newFakeHost(t, "GET", "http://ex/"), nil)
	if !g.Eval(res) {
		t.Fatal("OR group should be true")
	}
	if second.hits != 0 {
		t.Error("OR must short-circuit; second condition was evaluated")
	}

	// With the first false, the second decides.
	first.result = false
	second.result = true
	if !g.Eval(res) {
		t.Error("OR group should fall through to the second condition")
	}
	if second.hits != 1 {
		t.Errorf("second condition evaluated %d times", second.hits)
	}
}

func TestCondGroupAndShortCircuits(t *testing.T) {
	first := &probeCond{result: false}
	second := &probeCond{result: true}

	g := &CondGroup{}
	g.Add(first)
	g.Add(second)

	res := NewResources(newFakeHost(t, "GET", "http://ex/"), nil)
	if g.Eval(res) {
		t.Fatal("AND group should be false")
	}
	if second.hits != 0 {
		t.Error("AND must short-circuit; second condition was evaluated")
	}
}

func TestCondGroupNot(t *testing.T) {
	c := &probeCond{result: false}
	c.mods |= CondNot

	g := &CondGroup{}
	g.Add(c)

	res := NewResources(newFakeHost(t, "GET", "http://ex/"), nil)
	if !g.Eval(res) {
		t.Error("NOT should invert the local result")
	}
}

func TestStringMatcherModifiers(t *testing.T) {
	cases := []struct {
		mods  CondModifiers
		data  string
		input string
		want  bool
	}{
		{CondNone, "GET", "GET", true},
		{CondNone, "GET", "get", false},
		{CondNoCase, "GET", "get", true},
		{CondPre, "/api", "/api/v2/users", true},
		{CondSuf, ".js", "app.min.js", true},
		{CondMid, "admin", "/x/admin/y", true},
		{CondExt, "jpg", "photo.jpg", true},
		{CondExt, "jpg", "photojpg", false},
	}
	for _, c := range cases {
		m, err := NewStringMatcher(MatchEqual, c.data, c.mods)
		if err != nil {
			t.Fatal(err)
		}
		res := NewResources(newFakeHost(t, "GET", ""), nil)
		if got := m.Test(c.input, res); got != c.want {
			t.Errorf("mods=%#x data=%q input=%q: got %v", c.mods, c.data, c.input, got)
		}
	}
}

func TestStringMatcherRegexCaptures(t *testing.T) {
	m, err := NewStringMatcher(MatchRegex, `^user/(\d+)$`, CondNone)
	if err != nil {
		t.Fatal(err)
	}
	res := NewResources(newFakeHost(t, "GET", ""), nil)
	if !m.Test("user/42", res) {
		t.Fatal("regex should match")
	}
	if got := res.Capture(1); got != "42" {
		t.Errorf("capture 1 = %q", got)
	}
	if got := res.Capture(0); got != "user/42" {
		t.Errorf("capture 0 = %q", got)
	}
}

func TestStringMatcherBadRegexFailsConstruction(t *testing.T) {
	if _, err := NewStringMatcher(MatchRegex, "(unclosed", CondNone); err == nil {
		t.Error("expected compile error")
	}
}

func TestIPMatcher(t *testing.T) {
	m, err := NewIPMatcher("192.0.2.0/24,10.1.2.3")
	if err != nil {
		t.Fatal(err)
	}
	res := NewResources(newFakeHost(t, "GET", ""), nil)
	_ = res
	if !m.Test(addrIP(newFakeHost(t, "GET", "").ClientAddr())) {
		t.Error("192.0.2.10 should be in 192.0.2.0/24")
	}
	if m.Test(nil) {
		t.Error("nil IP must not match")
	}
}

func TestCondStateOps(t *testing.T) {
	host := newFakeHost(t, "GET", "http://ex/")
	res := NewResources(host, nil)

	// set-state-flag 3 then read it back through the condition.
	pOp, _ := ParseLine("set-state-flag 3 1")
	op, err := operatorFactory(pOp, "test", 1)
	if err != nil {
		t.Fatal(err)
	}
	op.Exec(res)

	pCond, _ := ParseLine("cond %{STATE-FLAG:3}")
	c, err := conditionFactory(pCond, "test", 2)
	if err != nil {
		t.Fatal(err)
	}
	if !c.Eval(res) {
		t.Error("state flag 3 should be set")
	}

	// int8 lane 1 and the int16 lane are independent of the flags.
	pOp8, _ := ParseLine("set-state-int8 1 200")
	op8, err := operatorFactory(pOp8, "test", 3)
	if err != nil {
		t.Fatal(err)
	}
	op8.Exec(res)

	pOp16, _ := ParseLine("set-state-int16 40000")
	op16, err := operatorFactory(pOp16, "test", 4)
	if err != nil {
		t.Fatal(err)
	}
	op16.Exec(res)

	pC8, _ := ParseLine("cond %{STATE-INT8:1} =200")
	c8, _ := conditionFactory(pC8, "test", 5)
	if !c8.Eval(res) {
		t.Error("int8 lane 1 should read back 200")
	}
	pC16, _ := ParseLine("cond %{STATE-INT16} =40000")
	c16, _ := conditionFactory(pC16, "test", 6)
	if !c16.Eval(res) {
		t.Error("int16 lane should read back 40000")
	}
	if host.state&(1<<3) == 0 {
		t.Error("flag bit lost by lane writes")
	}
}

func TestCookieHelpers(t *testing.T) {
	h := "a=1; session=abc; b=2"
	if v, ok := cookieValue(h, "session"); !ok || v != "abc" {
		t.Errorf("cookieValue = %q %v", v, ok)
	}
	if _, ok := cookieValue(h, "missing"); ok {
		t.Error("missing cookie found")
	}
	if got := setCookieValue(h, "session", "xyz"); !strings.Contains(got, "session=xyz") || strings.Contains(got, "abc") {
		t.Errorf("setCookieValue = %q", got)
	}
	if got := rmCookieValue(h, "session"); strings.Contains(got, "session") {
		t.Errorf("rmCookieValue = %q", got)
	}
}
