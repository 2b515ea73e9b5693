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

package url

import (
	"strconv"
	"strings"
)

// Parse tokenizes a URL in strict mode: invalid URL characters are rejected.
func (u *URL) Parse(s string) error {
	return u.parse(s, true, false)
}

// ParseLenient tokenizes a URL accepting any input byte.
func (u *URL) ParseLenient(s string) error {
	return u.parse(s, false, false)
}

// ParseRegex tokenizes a URL whose components may embed regex
// back-references. The first '/' ends the authority; a '?' before it is
// authority content, not a query separator.
func (u *URL) ParseRegex(s string) error {
	return u.parse(s, false, true)
}

func strictValid(c byte) bool {
	if c <= 0x20 || c >= 0x7F {
		return false
	}
	switch c {
	case '<', '>', '"', '\\', '^', '`', '{', '}', '|':
		return false
	}
	return true
}

func schemeValid(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.') {
			return false
		}
	}
	return len(s) > 0
}

func (u *URL) parse(s string, strict, regexMode bool) error {
	if strict {
		for i := 0; i < len(s); i++ {
			if !strictValid(s[i]) {
				return ErrParse
			}
		}
	}

	rest := s
	hasAuthority := false

	if idx := strings.Index(rest, "://"); idx > 0 && schemeValid(rest[:idx]) {
		u.SetScheme(rest[:idx], true)
		rest = rest[idx+3:]
		hasAuthority = true
	} else if strings.HasPrefix(rest, "//") {
		u.SetScheme("", true)
		rest = rest[2:]
		hasAuthority = true
	}

	if hasAuthority {
		end := len(rest)
		for i := 0; i < len(rest); i++ {
			c := rest[i]
			if c == '/' {
				end = i
				break
			}
			if !regexMode && (c == '?' || c == '#') {
				end = i
				break
			}
		}
		if err := u.parseAuthority(rest[:end], strict); err != nil {
			return err
		}
		rest = rest[end:]
	}

	if rest == "" {
		u.pathEmpty = true
		return nil
	}

	// Fragment first so '#' never leaks into earlier components.
	if i := strings.IndexByte(rest, '#'); i >= 0 {
		u.SetFragment(rest[i+1:], true)
		rest = rest[:i]
	}
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		u.SetQuery(rest[i+1:], true)
		rest = rest[:i]
	}
	if i := strings.IndexByte(rest, ';'); i >= 0 {
		u.SetParams(rest[i+1:], true)
		rest = rest[:i]
	}

	if strings.HasPrefix(rest, "/") {
		u.SetPath(rest[1:], true)
	} else if rest != "" {
		u.SetPath(rest, true)
	} else {
		// Delimited components with an absolutely empty path.
		u.set(&u.path, "", true)
		u.pathEmpty = false
	}
	return nil
}

func (u *URL) parseAuthority(a string, strict bool) error {
	if i := strings.LastIndexByte(a, '@'); i >= 0 {
		userinfo := a[:i]
		a = a[i+1:]
		if j := strings.IndexByte(userinfo, ':'); j >= 0 {
			u.SetUser(userinfo[:j], true)
			u.SetPassword(userinfo[j+1:], true)
		} else {
			u.SetUser(userinfo, true)
		}
	}

	host := a
	if i := strings.LastIndexByte(a, ':'); i >= 0 && strings.IndexByte(a[i+1:], ']') < 0 {
		portPart := a[i+1:]
		if portPart != "" {
			p, err := strconv.ParseUint(portPart, 10, 16)
			if err != nil {
				if strict {
					return ErrParse
				}
			} else {
				host = a[:i]
				u.SetPort(uint16(p))
			}
		} else {
			host = a[:i]
		}
	}
	u.SetHost(host, true)
	return nil
}
