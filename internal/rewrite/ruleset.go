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

// CondClause tags the sections of an OperatorIf.
type CondClause int

// Section clauses.
const (
	ClauseIf CondClause = iota
	ClauseElif
	ClauseElse
)

// section binds one condition group to one operator chain inside an
// OperatorIf.
type section struct {
	clause   CondClause
	group    CondGroup
	opers    []Operator
	operMods OperModifiers
}

// OperatorIf is the pseudo-operator binding a condition group to an
// operator chain, with optional elif/else continuation sections. Sections
// are a list, not deep nesting.
type OperatorIf struct {
	sections []section
}

func newOperatorIf() *OperatorIf {
	return &OperatorIf{sections: []section{{clause: ClauseIf}}}
}

func (oi *OperatorIf) curSection() *section {
	return &oi.sections[len(oi.sections)-1]
}

// NewSection opens an elif or else continuation.
func (oi *OperatorIf) NewSection(clause CondClause) {
	oi.sections = append(oi.sections, section{clause: clause})
}

// HasOperator reports whether any section carries an operator.
func (oi *OperatorIf) HasOperator() bool {
	for i := range oi.sections {
		if len(oi.sections[i].opers) > 0 {
			return true
		}
	}
	return false
}

// Exec evaluates the sections in order and executes the first section
// whose condition group is true, returning the accumulated operator
// modifiers of the chain that ran.
func (oi *OperatorIf) Exec(res *Resources) (OperModifiers, bool) {
	for i := range oi.sections {
		sec := &oi.sections[i]
		if sec.clause == ClauseElse || sec.group.Eval(res) {
			for _, op := range sec.opers {
				op.Exec(res)
			}
			return sec.operMods, true
		}
	}
	return OperNone, false
}

// RuleSet is one compiled rule: an OperatorIf bound to a hook, linked into
// the per-hook chain.
type RuleSet struct {
	// Next links the per-hook chain.
	Next *RuleSet

	opIf *OperatorIf
	hook HookID
	ids  ResourceIDs
	last bool

	// group stack for %{GROUP} nesting during compilation
	groupStack []*CondGroup
}

// NewRuleSet returns an empty rule bound to the given hook.
func NewRuleSet(hook HookID) *RuleSet {
	return &RuleSet{opIf: newOperatorIf(), hook: hook}
}

// Append adds a rule to the end of the chain.
func (rs *RuleSet) Append(rule *RuleSet) {
	cur := rs
	for cur.Next != nil {
		cur = cur.Next
	}
	cur.Next = rule
}

// Hook returns the hook this rule runs in.
func (rs *RuleSet) Hook() HookID { return rs.hook }

// SetHook rebinds the rule (used by hook-selector conditions).
func (rs *RuleSet) SetHook(h HookID) { rs.hook = h }

// Last reports whether a condition carried the L modifier.
func (rs *RuleSet) Last() bool { return rs.last }

// ResourceIDs returns the rule's aggregated resource bits.
func (rs *RuleSet) ResourceIDs() ResourceIDs { return rs.ids }

// AllResourceIDs aggregates the resource bits of the whole chain.
func (rs *RuleSet) AllResourceIDs() ResourceIDs {
	ids := RsrcNone
	for cur := rs; cur != nil; cur = cur.Next {
		ids |= cur.ids
	}
	return ids
}

// HasOperator reports whether the rule has at least one operator; rules
// without one are dropped at finalize time.
func (rs *RuleSet) HasOperator() bool { return rs.opIf.HasOperator() }

// CurrentGroup returns the condition group new conditions are added to,
// honoring any open %{GROUP} nesting.
func (rs *RuleSet) CurrentGroup() *CondGroup {
	if n := len(rs.groupStack); n > 0 {
		return rs.groupStack[n-1]
	}
	return &rs.opIf.curSection().group
}

// OpenGroup pushes a nested condition group.
func (rs *RuleSet) OpenGroup(c *condGroup) {
	rs.CurrentGroup().Add(c)
	rs.groupStack = append(rs.groupStack, c.group)
}

// CloseGroup pops the innermost nested group.
func (rs *RuleSet) CloseGroup() bool {
	if len(rs.groupStack) == 0 {
		return false
	}
	rs.groupStack = rs.groupStack[:len(rs.groupStack)-1]
	return true
}

// NewSection opens an elif/else section and resets group nesting.
func (rs *RuleSet) NewSection(clause CondClause) {
	rs.groupStack = nil
	rs.opIf.NewSection(clause)
}

// AddCondition compiles one condition line into the current group.
func (rs *RuleSet) AddCondition(p *LineParser, file string, line int) error {
	c, err := conditionFactory(p, file, line)
	if err != nil {
		return err
	}
	if !c.SetHook(rs.hook) {
		return &HookMismatchError{File: file, Line: line, Name: "%{" + p.Op() + "}", Hook: rs.hook}
	}
	rs.last = rs.last || c.Modifiers()&CondLast != 0
	rs.ids |= c.ResourceIDs()
	rs.CurrentGroup().Add(c)
	return nil
}

// AddOperator compiles one operator line into the current section's chain.
// The first operator of a section closes its condition group.
func (rs *RuleSet) AddOperator(p *LineParser, file string, line int) error {
	op, err := operatorFactory(p, file, line)
	if err != nil {
		return err
	}
	if !op.SetHook(rs.hook) {
		return &HookMismatchError{File: file, Line: line, Name: p.Op(), Hook: rs.hook}
	}
	sec := rs.opIf.curSection()
	sec.opers = append(sec.opers, op)
	sec.operMods |= op.OperMods()
	rs.ids |= op.ResourceIDs()
	return nil
}

// Exec evaluates the rule and returns the operator modifiers of the chain
// that ran, plus whether any section matched.
func (rs *RuleSet) Exec(res *Resources) (OperModifiers, bool) {
	return rs.opIf.Exec(res)
}

// Sections returns the number of sections, for diagnostics.
func (rs *RuleSet) Sections() int { return len(rs.opIf.sections) }
