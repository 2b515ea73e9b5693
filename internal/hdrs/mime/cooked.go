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

package mime

import (
	"math"
	"strings"

	"github.com/Comcast/hrw/internal/hdrs/wks"
)

// ParseInteger parses a directive argument: an optional sign followed by
// digits only. Quotes, spaces, decimal points and trailing junk all fail.
func ParseInteger(s string) (int32, bool) {
	if s == "" {
		return 0, false
	}
	i := 0
	neg := false
	if s[0] == '-' || s[0] == '+' {
		neg = s[0] == '-'
		i++
		if i == len(s) {
			return 0, false
		}
	}
	var v int64
	for ; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		v = v*10 + int64(c-'0')
		if v > math.MaxInt32 {
			v = math.MaxInt32
		}
	}
	if neg {
		v = -v
	}
	return int32(v), true
}

// RecomputeCooked rebuilds the cooked Cache-Control / Pragma summary from
// every live cooked field. Malformed directives contribute nothing.
func (m *Hdr) RecomputeCooked() {
	m.cooked = Cooked{}
	for b := &m.first; b != nil; b = b.next {
		for i := 0; i < b.freetop; i++ {
			f := &b.slots[i]
			if !f.Live() {
				continue
			}
			switch int(f.WksIdx) {
			case wks.CacheControl:
				m.cookCacheControl(m.h.Str(f.value))
			case wks.Pragma:
				m.cookPragma(m.h.Str(f.value))
			}
		}
	}
}

// cookCacheControl folds one Cache-Control value into the cooked summary.
// Directives are comma separated; a ';' is part of a directive token, not a
// separator, so "public; max-age=30" contributes neither bit.
func (m *Hdr) cookCacheControl(value string) {
	for _, directive := range strings.Split(value, ",") {
		directive = strings.Trim(directive, " \t")
		if directive == "" {
			continue
		}

		name := directive
		arg := ""
		hasArg := false
		if eq := strings.IndexByte(directive, '='); eq >= 0 {
			name = directive[:eq]
			arg = directive[eq+1:]
			hasArg = true
		}

		idx := wks.TokenizeValue(name)
		if idx == wks.Invalid {
			continue
		}
		mask := wks.CCMask(idx)
		if mask == 0 {
			continue
		}

		if !wks.CCTakesIntArg(idx) {
			m.cooked.CCMask |= mask
			continue
		}

		// Integer-argument directives. max-stale with no '=' saturates.
		if !hasArg {
			if idx == wks.ValueMaxStale {
				m.cooked.CCMask |= mask
				m.cooked.MaxStale = math.MaxInt32
			}
			continue
		}
		secs, ok := ParseInteger(arg)
		if !ok {
			continue
		}
		m.cooked.CCMask |= mask
		switch idx {
		case wks.ValueMaxAge:
			m.cooked.MaxAge = secs
		case wks.ValueSMaxage:
			m.cooked.SMaxage = secs
		case wks.ValueMaxStale:
			m.cooked.MaxStale = secs
		case wks.ValueMinFresh:
			m.cooked.MinFresh = secs
		}
	}
}

// cookPragma sets no_cache iff any directive tokenizes to no-cache.
func (m *Hdr) cookPragma(value string) {
	for _, directive := range strings.Split(value, ",") {
		directive = strings.Trim(directive, " \t")
		if wks.TokenizeValue(directive) == wks.ValueNoCache {
			m.cooked.PragmaNoCache = true
			return
		}
	}
}
