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

import "fmt"

// SyntaxError reports a malformed rule line with its position.
type SyntaxError struct {
	File  string
	Line  int
	Msg   string
	Token string
}

func (e *SyntaxError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("%s:%d: %s: %q", e.File, e.Line, e.Msg, e.Token)
	}
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

// UnknownConditionError reports a condition name outside the closed set.
type UnknownConditionError struct {
	File string
	Line int
	Name string
}

func (e *UnknownConditionError) Error() string {
	return fmt.Sprintf("%s:%d: unknown condition: %%{%s}", e.File, e.Line, e.Name)
}

// UnknownOperatorError reports an operator name outside the closed set.
type UnknownOperatorError struct {
	File string
	Line int
	Name string
}

func (e *UnknownOperatorError) Error() string {
	return fmt.Sprintf("%s:%d: unknown operator: %s", e.File, e.Line, e.Name)
}

// HookMismatchError reports a statement used in a hook it is not legal in.
type HookMismatchError struct {
	File string
	Line int
	Name string
	Hook HookID
}

func (e *HookMismatchError) Error() string {
	return fmt.Sprintf("%s:%d: can't use %s in hook=%s", e.File, e.Line, e.Name, e.Hook)
}

// ModifierConflictError reports an illegal modifier combination.
type ModifierConflictError struct {
	File string
	Line int
	Msg  string
}

func (e *ModifierConflictError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}
