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
	"strconv"
	"strings"
)

// Value is an operator's value slot: either a plain literal (with its
// numeric interpretations precomputed) or a lazily-expanded template of
// literal segments and %{COND:qualifier} substitutions.
type Value struct {
	value      string
	intValue   int
	floatValue float64
	condVals   []Condition
	needExpand bool
	rsrc       ResourceIDs
}

// Set parses the raw value text. Template substitution conditions compile
// here so a bad template fails the config load.
func (v *Value) Set(val string) error {
	v.value = val
	v.needExpand = strings.Contains(val, "%<")

	if !strings.Contains(val, "%{") {
		v.intValue, _ = strconv.Atoi(strings.TrimSpace(val))
		v.floatValue, _ = strconv.ParseFloat(strings.TrimSpace(val), 64)
		return nil
	}

	for _, token := range simpleTokenize(val) {
		var cv Condition
		if strings.HasPrefix(token, "%{") && strings.HasSuffix(token, "}") {
			// The token format is "COND:qualifier" or "COND:qualifier arg".
			inner := token[2 : len(token)-1]
			name := inner
			arg := ""
			if sp := strings.IndexByte(inner, ' '); sp >= 0 {
				name = inner[:sp]
				arg = inner[sp+1:]
			}
			c, err := makeValueCondition(name, arg)
			if err != nil {
				return err
			}
			cv = c
			v.rsrc |= c.ResourceIDs()
		} else {
			cv = &condStringLiteral{text: token}
		}
		v.condVals = append(v.condVals, cv)
	}
	return nil
}

// AppendValue expands the value against the Resources.
func (v *Value) AppendValue(b *strings.Builder, res *Resources) {
	if len(v.condVals) == 0 {
		b.WriteString(v.value)
		return
	}
	for _, c := range v.condVals {
		c.AppendValue(b, res)
	}
}

// Get returns the raw value text.
func (v *Value) Get() string { return v.value }

// GetInt returns the literal's integer interpretation.
func (v *Value) GetInt() int { return v.intValue }

// GetFloat returns the literal's float interpretation.
func (v *Value) GetFloat() float64 { return v.floatValue }

// Empty reports an empty raw value.
func (v *Value) Empty() bool { return v.value == "" }

// NeedExpansion reports whether the expanded string still carries %<...>
// log-style tokens for the variable expander.
func (v *Value) NeedExpansion() bool { return v.needExpand }

// ResourceIDs returns the resources the template substitutions need.
func (v *Value) ResourceIDs() ResourceIDs { return v.rsrc }

// makeValueCondition builds the condition behind one %{...} template token.
// A bare number (%{1}) is shorthand for the matching capture group of the
// most recent regex condition.
func makeValueCondition(name, arg string) (Condition, error) {
	if isAllDigits(name) {
		p := &LineParser{cond: true, op: "LAST-CAPTURE:" + name}
		return conditionFactory(p, "", 0)
	}
	p := &LineParser{cond: true, op: name, arg: arg}
	return conditionFactory(p, "", 0)
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
