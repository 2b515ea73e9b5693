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

package wks

import "testing"

func TestTokenizeFieldNames(t *testing.T) {
	if idx := Tokenize("Cache-Control"); idx != CacheControl {
		t.Errorf("expected %d got %d", CacheControl, idx)
	}
	if idx := Tokenize("cache-control"); idx != CacheControl {
		t.Errorf("field name lookup should be case-insensitive, got %d", idx)
	}
	if idx := Tokenize("CACHE-CONTROL"); idx != CacheControl {
		t.Errorf("field name lookup should be case-insensitive, got %d", idx)
	}
	if idx := Tokenize("X-Not-A-WKS"); idx != Invalid {
		t.Errorf("expected Invalid got %d", idx)
	}
}

func TestTokenizeValueCaseSensitive(t *testing.T) {
	if idx := TokenizeValue("no-cache"); idx != ValueNoCache {
		t.Errorf("expected %d got %d", ValueNoCache, idx)
	}
	if idx := TokenizeValue("No-Cache"); idx != Invalid {
		t.Errorf("value tokens are case-sensitive, got %d", idx)
	}
}

func TestPresenceMasksUnique(t *testing.T) {
	var seen uint64
	for i := 0; i < numFieldNames; i++ {
		m := PresenceMask(i)
		if m == 0 {
			t.Fatalf("field name %q has no presence mask", Canonical(i))
		}
		if seen&m != 0 {
			t.Fatalf("presence mask for %q is not unique", Canonical(i))
		}
		seen |= m
	}
	if PresenceMask(ValueNoCache) != 0 {
		t.Error("value tokens must not carry a presence mask")
	}
}

func TestSlotAccelRange(t *testing.T) {
	count := 0
	for i := 0; i < numFieldNames; i++ {
		if a := SlotAccel(i); a != SlotAccelNone {
			if a < 0 || a > 31 {
				t.Fatalf("slot accel id %d out of range for %q", a, Canonical(i))
			}
			count++
		}
	}
	if count != 32 {
		t.Errorf("expected 32 accelerated names, got %d", count)
	}
}

func TestCanonicalRoundTrip(t *testing.T) {
	for i := 0; i < Count(); i++ {
		name := Canonical(i)
		if name == "" {
			t.Fatalf("index %d has no canonical name", i)
		}
		if Length(i) != len(name) {
			t.Errorf("Length(%d) = %d, want %d", i, Length(i), len(name))
		}
	}
}

func TestCCMetadata(t *testing.T) {
	if CCMask(ValueMaxAge) != CCMaskMaxAge {
		t.Error("max-age should contribute CCMaskMaxAge")
	}
	if !CCTakesIntArg(ValueMaxAge) || !CCTakesIntArg(ValueSMaxage) || !CCTakesIntArg(ValueMaxStale) || !CCTakesIntArg(ValueMinFresh) {
		t.Error("integer-argument directives misconfigured")
	}
	if CCTakesIntArg(ValuePublic) {
		t.Error("public takes no integer argument")
	}
	if CCMask(Host) != 0 {
		t.Error("field names contribute no cooked mask")
	}
}
