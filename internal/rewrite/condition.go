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
)

// Condition is one predicate of a rule. Conditions also serve as the value
// producers for %{...} template expansion through AppendValue.
type Condition interface {
	// Eval tests the condition against the transaction.
	Eval(res *Resources) bool
	// AppendValue appends the condition's produced value, for templates.
	AppendValue(b *strings.Builder, res *Resources)
	// Modifiers returns the condition's modifier bits.
	Modifiers() CondModifiers
	// ResourceIDs returns the resources the condition needs gathered.
	ResourceIDs() ResourceIDs
	// SetHook binds the condition to a hook, failing if it is not legal
	// there.
	SetHook(h HookID) bool
}

// condBase carries the plumbing every condition shares: the qualifier, the
// parsed matcher op and argument, modifier bits, resource requirements and
// the allowed-hook set.
type condBase struct {
	qualifier string
	arg       string
	op        MatcherOp
	mods      CondModifiers
	rsrc      ResourceIDs
	allowed   []HookID
	hook      HookID
}

func (b *condBase) Modifiers() CondModifiers { return b.mods }

func (b *condBase) ResourceIDs() ResourceIDs { return b.rsrc }

// SetHook implements Condition.
func (b *condBase) SetHook(h HookID) bool {
	hooks := b.allowed
	if hooks == nil {
		hooks = allHooks
	}
	for _, a := range hooks {
		if a == h {
			b.hook = h
			return true
		}
	}
	return false
}

func (b *condBase) require(ids ResourceIDs) { b.rsrc |= ids }

// initialize parses the shared condition state out of a rule line: the
// modifier list and the comparison operator prefix of the argument.
func (b *condBase) initialize(p *LineParser) error {
	if p.ModExist("OR") {
		if p.ModExist("AND") {
			return &ModifierConflictError{Msg: "can't have both AND and OR in mods"}
		}
		b.mods |= CondOr
	} else if p.ModExist("AND") {
		b.mods |= CondAnd
	}
	if p.ModExist("NOT") {
		b.mods |= CondNot
	}
	if p.ModExist("L") {
		b.mods |= CondLast
	}
	if p.ModExist("NOCASE") {
		b.mods |= CondNoCase
	}
	if p.ModExist("EXT") {
		b.mods |= CondExt
	}
	if p.ModExist("PRE") {
		b.mods |= CondPre
	}
	if p.ModExist("SUF") {
		b.mods |= CondSuf
	}
	if p.ModExist("MID") {
		b.mods |= CondMid
	}

	b.op, b.arg = parseMatcherOp(p.Arg())
	if b.op == MatchError {
		return &SyntaxError{Msg: "invalid comparison operator", Token: p.Arg()}
	}
	return nil
}

// stringMatcher builds the condition's string matcher from the parsed arg.
func (b *condBase) stringMatcher() (*StringMatcher, error) {
	return NewStringMatcher(b.op, b.arg, b.mods)
}

// intMatcher builds the condition's integer matcher from the parsed arg.
func (b *condBase) intMatcher() (*IntMatcher, error) {
	return NewIntMatcher(b.op, b.arg)
}

// CondGroup is a flattened AND/OR tree: conditions evaluated in declared
// order with short-circuiting.
type CondGroup struct {
	conds []Condition
}

// Add appends a condition to the group.
func (g *CondGroup) Add(c Condition) { g.conds = append(g.conds, c) }

// HasConditions reports a non-empty group.
func (g *CondGroup) HasConditions() bool { return len(g.conds) > 0 }

// Conditions returns the group's conditions in declared order.
func (g *CondGroup) Conditions() []Condition { return g.conds }

// Eval walks the group: NOT inverts a local result, OR short-circuits on
// the first true, the default AND short-circuits on the first false. An
// empty group is true.
func (g *CondGroup) Eval(res *Resources) bool {
	for i, c := range g.conds {
		rt := c.Eval(res)
		if c.Modifiers()&CondNot != 0 {
			rt = !rt
		}
		if i == len(g.conds)-1 {
			return rt
		}
		if c.Modifiers()&CondOr != 0 {
			if rt {
				return true
			}
		} else {
			if !rt {
				return false
			}
		}
	}
	return true
}

// Last reports whether any condition carries the L modifier, which makes
// the enclosing rule the last one evaluated in its hook.
func (g *CondGroup) Last() bool {
	for _, c := range g.conds {
		if c.Modifiers()&CondLast != 0 {
			return true
		}
	}
	return false
}

// ResourceIDs aggregates the group's resource needs.
func (g *CondGroup) ResourceIDs() ResourceIDs {
	ids := RsrcNone
	for _, c := range g.conds {
		ids |= c.ResourceIDs()
	}
	return ids
}
