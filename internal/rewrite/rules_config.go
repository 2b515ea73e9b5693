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
	"bufio"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/Comcast/hrw/internal/config"
	"github.com/Comcast/hrw/internal/util/log"
)

// CompilerSuffix marks rule files that are piped through the external DSL
// compiler before parsing.
const CompilerSuffix = ".hrw4u"

// RulesConfig is an immutable, hook-indexed compiled ruleset. It is shared
// by all transactions without locking; a config reload builds a new one and
// swaps it atomically.
type RulesConfig struct {
	rules  [HookLast]*RuleSet
	resids [HookLast]ResourceIDs

	timezone        int
	inboundIPSource int
}

// NewRulesConfig returns an empty config carrying the engine tuning knobs.
func NewRulesConfig(timezone, inboundIPSource int) *RulesConfig {
	return &RulesConfig{timezone: timezone, inboundIPSource: inboundIPSource}
}

// Timezone returns the NOW condition's timezone selector.
func (rc *RulesConfig) Timezone() int { return rc.timezone }

// InboundIPSource returns the IP condition's inbound source selector.
func (rc *RulesConfig) InboundIPSource() int { return rc.inboundIPSource }

// Rule returns the rule chain for a hook, or nil.
func (rc *RulesConfig) Rule(hook HookID) *RuleSet {
	if hook < 0 || hook >= HookLast {
		return nil
	}
	return rc.rules[hook]
}

// RuleCount returns the number of rules on a hook's chain.
func (rc *RulesConfig) RuleCount(hook HookID) int {
	n := 0
	for rule := rc.Rule(hook); rule != nil; rule = rule.Next {
		n++
	}
	return n
}

// ResID returns the aggregated resource bits for a hook, computed at
// compile time.
func (rc *RulesConfig) ResID(hook HookID) ResourceIDs {
	if hook < 0 || hook >= HookLast {
		return RsrcNone
	}
	return rc.resids[hook]
}

func (rc *RulesConfig) addRule(rule *RuleSet) {
	if rule == nil || !rule.HasOperator() {
		return
	}
	h := rule.Hook()
	if rc.rules[h] == nil {
		rc.rules[h] = rule
	} else {
		rc.rules[h].Append(rule)
	}
	rc.resids[h] = rc.rules[h].AllResourceIDs()
}

// LoadConfig compiles one rule file into a RulesConfig using the running
// configuration's tuning knobs. Errors are structured and any error fails
// the whole load.
func LoadConfig(path string) (*RulesConfig, error) {
	tz, src := config.TimezoneLocal, config.InboundIPSourcePeer
	compiler := ""
	if config.Rules != nil {
		tz = config.Rules.Timezone
		src = config.Rules.InboundIPSource
		compiler = config.Rules.CompilerPath
		if err := OpenGeoDatabase(config.Rules.GeoDatabasePath); err != nil {
			return nil, err
		}
	}
	rc := NewRulesConfig(tz, src)
	if err := rc.ParseFile(path, HookReadResponse, compiler); err != nil {
		return nil, err
	}
	return rc, nil
}

// ParseFile compiles one rule file into this config. Files with the
// compiler suffix are piped through the external DSL compiler; the parser
// is agnostic to which it gets.
func (rc *RulesConfig) ParseFile(path string, defaultHook HookID, compilerPath string) error {
	reader, cleanup, err := openConfig(path, compilerPath)
	if err != nil {
		return err
	}
	defer cleanup()
	return rc.parse(reader, path, defaultHook)
}

// openConfig opens a rule file, forking the external compiler when the
// file name asks for it. The compiler's stdout feeds the parser and its
// stderr is logged.
func openConfig(path, compilerPath string) (io.Reader, func(), error) {
	if strings.HasSuffix(path, CompilerSuffix) && compilerPath != "" {
		if _, err := os.Stat(compilerPath); err == nil {
			cmd := exec.Command(compilerPath, path)
			stdout, err := cmd.StdoutPipe()
			if err != nil {
				return nil, nil, err
			}
			stderr, err := cmd.StderrPipe()
			if err != nil {
				return nil, nil, err
			}
			if err := cmd.Start(); err != nil {
				return nil, nil, err
			}
			go func() {
				sc := bufio.NewScanner(stderr)
				for sc.Scan() {
					log.Error("rule compiler stderr", log.Pairs{"file": path, "line": sc.Text()})
				}
			}()
			cleanup := func() {
				if err := cmd.Wait(); err != nil {
					log.Error("rule compiler exited with error", log.Pairs{"file": path, "detail": err.Error()})
				}
			}
			return stdout, cleanup, nil
		}
		log.Warn("rule compiler not found, parsing file raw", log.Pairs{"file": path, "compiler": compilerPath})
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

// parse is the line-oriented semantic pass: hook selectors rebind the
// rule's hook, cond lines grow the condition group, the first non-cond
// line opens the operator chain, an else line opens a new section, and a
// blank line finalizes the rule.
func (rc *RulesConfig) parse(r io.Reader, file string, defaultHook HookID) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var rule *RuleSet
	lineno := 0

	finalize := func() {
		if rule != nil && rule.HasOperator() {
			rc.addRule(rule)
		}
		rule = nil
	}

	for sc.Scan() {
		lineno++
		line := strings.TrimSpace(sc.Text())

		if line == "" {
			finalize()
			continue
		}

		p, err := ParseLine(line)
		if err != nil {
			if se, ok := err.(*SyntaxError); ok {
				se.File, se.Line = file, lineno
			}
			return err
		}
		if p.Empty() {
			continue
		}

		if p.IsElse() {
			if rule == nil || !rule.HasOperator() {
				return &SyntaxError{File: file, Line: lineno, Msg: "else without a preceding operator"}
			}
			if p.IsCond() {
				rule.NewSection(ClauseElif)
			} else {
				rule.NewSection(ClauseElse)
			}
			continue
		}

		if p.IsCond() {
			// A %{GROUP} condition opens a nested group; %{GROUP:END}
			// closes it.
			name, qual := splitCondName(p.Op())
			if name == "GROUP" {
				if rule == nil {
					rule = NewRuleSet(defaultHook)
				}
				if qual == "END" {
					if !rule.CloseGroup() {
						return &SyntaxError{File: file, Line: lineno, Msg: "GROUP:END without open group"}
					}
					continue
				}
				g, err := newCondGroup(p)
				if err != nil {
					return err
				}
				rule.OpenGroup(g)
				continue
			}

			// The first condition of a rule may be a hook selector; it
			// rebinds the rule's hook and is not evaluated at runtime.
			if hook, ok := p.CondIsHook(); ok {
				if rule != nil && (rule.CurrentGroup().HasConditions() || rule.HasOperator()) {
					return &SyntaxError{File: file, Line: lineno, Msg: "hook selector must open its rule", Token: p.Op()}
				}
				rule = NewRuleSet(hook)
				continue
			}

			if rule == nil {
				rule = NewRuleSet(defaultHook)
			} else if rule.HasOperator() && len(rule.groupStack) == 0 {
				// A condition after operators starts the next rule.
				finalize()
				rule = NewRuleSet(defaultHook)
			}
			if err := rule.AddCondition(p, file, lineno); err != nil {
				return err
			}
			continue
		}

		// Operator line.
		if rule == nil {
			rule = NewRuleSet(defaultHook)
		}
		if err := rule.AddOperator(p, file, lineno); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}

	finalize()
	return nil
}
