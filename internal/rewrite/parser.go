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
	"unicode"
)

// tokenizer states for one rule line.
const (
	parserDefault = iota
	parserInQuote
	parserInRegex
	parserInExpansion
	parserInBrace
	parserInParen
)

// LineParser tokenizes one rule line and classifies it as a condition, an
// operator or an else marker, splitting off the trailing modifier list.
type LineParser struct {
	tokens []string
	mods   []string

	op  string
	arg string
	val string

	cond  bool
	els   bool
	empty bool
}

// ParseLine tokenizes one physical rule line. A nil error with Empty() true
// means the line was blank or a comment.
func ParseLine(original string) (*LineParser, error) {
	p := &LineParser{}
	if err := p.parse(original); err != nil {
		return nil, err
	}
	return p, nil
}

// Empty reports a blank or comment line.
func (p *LineParser) Empty() bool { return p.empty }

// IsCond reports a condition line.
func (p *LineParser) IsCond() bool { return p.cond }

// IsElse reports an else section marker.
func (p *LineParser) IsElse() bool { return p.els }

// Op returns the condition or operator name.
func (p *LineParser) Op() string { return p.op }

// Arg returns the argument (with any comparison operator prefix retained).
func (p *LineParser) Arg() string { return p.arg }

// Value returns the operator value slot.
func (p *LineParser) Value() string { return p.val }

// Tokens returns the raw token list.
func (p *LineParser) Tokens() []string { return p.tokens }

// ModExist reports whether the modifier list contains m.
func (p *LineParser) ModExist(m string) bool {
	for _, v := range p.mods {
		if v == m {
			return true
		}
	}
	return false
}

// Mods returns the modifier list.
func (p *LineParser) Mods() []string { return p.mods }

// CondIsHook reports whether this condition is a hook selector, and which
// hook it selects.
func (p *LineParser) CondIsHook() (HookID, bool) {
	if !p.cond {
		return 0, false
	}
	return HookByName(p.op)
}

func (p *LineParser) parse(original string) error {
	line := []rune(original)
	state := parserDefault
	extracting := false
	start := 0

	push := func(end int) {
		if end > start {
			p.tokens = append(p.tokens, string(line[start:end]))
		}
	}

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case state == parserDefault && (unicode.IsSpace(c) || c == '='):
			if extracting {
				push(i)
				extracting = false
			} else if !unicode.IsSpace(c) {
				// a standalone =
				p.tokens = append(p.tokens, string(c))
			}
		case state != parserInQuote && c == '/':
			// Regex span; nothing gets escaped or quoted in here.
			if state != parserInRegex && !extracting {
				state = parserInRegex
				extracting = true
				start = i
			} else if state == parserInRegex && extracting && line[i-1] != '\\' {
				push(i + 1)
				state = parserDefault
				extracting = false
			}
		case state != parserInRegex && c == '\\':
			if !extracting {
				extracting = true
				start = i
			}
			// Drop the backslash; the loop increment skips the escaped
			// character so it cannot terminate the token.
			line = append(line[:i], line[i+1:]...)
		case state != parserInRegex && state != parserInParen && c == '"':
			if state != parserInQuote && !extracting {
				state = parserInQuote
				extracting = true
				start = i + 1 // eat the leading quote
			} else if state == parserInQuote && extracting {
				push(i)
				state = parserDefault
				extracting = false
			} else {
				return &SyntaxError{Msg: "malformed line, misplaced quote", Token: original}
			}
		case state == parserDefault && c == '{' && (i == 0 || line[i-1] != '%'):
			state = parserInBrace
			extracting = true
			start = i
		case state == parserInBrace && c == '}':
			push(i + 1)
			state = parserDefault
			extracting = false
		case state == parserDefault && c == '(' && !extracting:
			state = parserInParen
			extracting = true
			start = i
		case state == parserInParen && c == ')':
			push(i + 1)
			state = parserDefault
			extracting = false
		case !extracting:
			if len(p.tokens) == 0 && c == '#' {
				// comment line, possibly after leading whitespace
				p.empty = true
				return nil
			}
			if c == '+' {
				p.tokens = append(p.tokens, string(c))
				continue
			}
			extracting = true
			start = i
		}
	}

	if extracting {
		if state == parserInQuote {
			return &SyntaxError{Msg: "malformed line, unterminated quotation", Token: original}
		}
		push(len(line))
	}

	if len(p.tokens) == 0 {
		p.empty = true
		return nil
	}
	return p.preprocess(append([]string(nil), p.tokens...))
}

// preprocess consumes the trailing modifier list and splits the tokens into
// op, arg and value.
func (p *LineParser) preprocess(tokens []string) error {
	if len(tokens) > 0 {
		m := tokens[len(tokens)-1]
		if m != "" && m[0] == '[' {
			if m[len(m)-1] != ']' {
				return &SyntaxError{Msg: "mods have to be enclosed in []", Token: m}
			}
			for _, t := range strings.Split(m[1:len(m)-1], ",") {
				if t != "" {
					p.mods = append(p.mods, t)
				}
			}
			tokens = tokens[:len(tokens)-1]
		}
	}
	if len(tokens) == 0 {
		p.empty = true
		return nil
	}

	if strings.HasPrefix(tokens[0], "%{") {
		p.cond = true
	} else if tokens[0] == "cond" {
		p.cond = true
		tokens = tokens[1:]
		if len(tokens) == 0 {
			return &SyntaxError{Msg: "cond with no condition"}
		}
	} else if tokens[0] == "else" {
		p.els = true
		return nil
	} else if tokens[0] == "elif" {
		p.els = true
		p.cond = true
		return nil
	}

	if p.cond {
		t0 := tokens[0]
		if !strings.HasPrefix(t0, "%{") || !strings.HasSuffix(t0, "}") {
			return &SyntaxError{Msg: "conditions must be embraced in %{}", Token: t0}
		}
		p.op = t0[2 : len(t0)-1]
		if len(tokens) > 2 && (tokens[1] == "=" || tokens[1] == ">" || tokens[1] == "<") {
			p.arg = tokens[1] + tokens[2]
		} else if len(tokens) > 1 {
			p.arg = tokens[1]
		}
		return nil
	}

	p.op = tokens[0]
	if len(tokens) > 1 {
		p.arg = tokens[1]
		if len(tokens) > 2 {
			p.val = strings.Join(tokens[2:], " ")
		}
	}
	return nil
}

// simpleTokenize splits a value template into literal segments and %{...} /
// %<...> expansion tokens, preserving order.
func simpleTokenize(s string) []string {
	var tokens []string
	state := parserDefault
	start := 0
	extracting := false

	for i := 0; i < len(s); i++ {
		extracting = true
		switch state {
		case parserDefault:
			if (s[i] == '{' || s[i] == '<') && i > 0 && s[i-1] == '%' {
				if i-1 > start {
					tokens = append(tokens, s[start:i-1])
				}
				start = i - 1
				state = parserInExpansion
				extracting = false
			}
		case parserInExpansion:
			if s[i] == '}' || s[i] == '>' {
				tokens = append(tokens, s[start:i+1])
				start = i + 1
				state = parserDefault
				extracting = false
			}
		}
	}
	if extracting && start < len(s) {
		tokens = append(tokens, s[start:])
	}
	return tokens
}
