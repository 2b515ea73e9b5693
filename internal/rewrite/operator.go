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

// OperModifiers are the per-operator modifier bits. A rule's operator chain
// accumulates them; the engine inspects the union after executing the chain.
type OperModifiers uint8

// Operator modifiers.
const (
	OperNone OperModifiers = 0
	// OperLast stops rule evaluation for the hook after this rule.
	OperLast OperModifiers = 1 << 0
	// OperQSA appends the original query string on URL rewrites.
	OperQSA OperModifiers = 1 << 1
	// OperInv inverts an operator's boolean argument where one applies.
	OperInv OperModifiers = 1 << 2
)

// Operator is one action of a rule. Operators are synchronous and their
// runtime failures are recovered: a failing operator is a no-op.
type Operator interface {
	// Exec applies the operator's side effect to the Resources.
	Exec(res *Resources)
	// OperMods returns the operator's modifier bits.
	OperMods() OperModifiers
	// ResourceIDs returns the resources the operator needs gathered.
	ResourceIDs() ResourceIDs
	// SetHook binds the operator to a hook, failing if it is not legal
	// there.
	SetHook(h HookID) bool
}

// operBase carries the plumbing every operator shares.
type operBase struct {
	mods    OperModifiers
	rsrc    ResourceIDs
	allowed []HookID
	hook    HookID
}

func (b *operBase) OperMods() OperModifiers { return b.mods }

func (b *operBase) ResourceIDs() ResourceIDs { return b.rsrc }

// SetHook implements Operator.
func (b *operBase) SetHook(h HookID) bool {
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

func (b *operBase) require(ids ResourceIDs) { b.rsrc |= ids }

// initialize parses the shared operator modifier list.
func (b *operBase) initialize(p *LineParser) error {
	if p.ModExist("L") {
		b.mods |= OperLast
	}
	if p.ModExist("QSA") {
		b.mods |= OperQSA
	}
	if p.ModExist("I") || p.ModExist("INV") {
		b.mods |= OperInv
	}
	return nil
}

// invert applies the INV modifier to a boolean operator argument.
func (b *operBase) invert(v bool) bool {
	if b.mods&OperInv != 0 {
		return !v
	}
	return v
}
