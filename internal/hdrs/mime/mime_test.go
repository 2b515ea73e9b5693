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
	"testing"

	"github.com/Comcast/hrw/internal/hdrs/heap"
	"github.com/Comcast/hrw/internal/hdrs/wks"
)

func newHdr(t *testing.T) *Hdr {
	t.Helper()
	m, err := New(heap.New())
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestAttachAndFind(t *testing.T) {
	m := newHdr(t)
	m.Attach("Host", "example.com")
	m.Attach("X-Custom", "one")

	f := m.FieldFind("host")
	if f == nil || m.Value(f) != "example.com" {
		t.Fatal("WKS find failed")
	}
	if m.Presence()&wks.PresenceMask(wks.Host) == 0 {
		t.Error("presence bit not set")
	}

	g := m.FieldFind("x-custom")
	if g == nil || m.Value(g) != "one" {
		t.Fatal("non-WKS case-insensitive find failed")
	}
	if m.FieldFind("Via") != nil {
		t.Error("absent WKS should miss through the presence bitmap")
	}
}

func TestDupChainInvariants(t *testing.T) {
	m := newHdr(t)
	a, _ := m.Attach("Via", "1.1 a")
	b, _ := m.Attach("Via", "1.1 b")
	c, _ := m.Attach("Via", "1.1 c")

	if a.Flags()&FlagDupHead == 0 {
		t.Error("first dup must be the head")
	}
	if b.Flags()&FlagDupHead != 0 || c.Flags()&FlagDupHead != 0 {
		t.Error("only the head carries DUP_HEAD")
	}
	// Slot numbers strictly increase along the chain.
	prev := -1
	for f := m.FieldFind("Via"); f != nil; f = f.NextDup() {
		if f.Slot() <= prev {
			t.Fatal("dup chain slots not strictly increasing")
		}
		prev = f.Slot()
	}
	if m.FieldsCount() != 3 {
		t.Errorf("fields count = %d", m.FieldsCount())
	}
}

func TestAcceleratorPointsAtHead(t *testing.T) {
	m := newHdr(t)
	m.Attach("Server", "srv")
	m.Attach("Via", "1.1 a")

	slot := m.AccelSlot(wks.Via)
	if slot == SlotUnknown {
		t.Fatal("hot WKS in first block should be accelerated")
	}
	f := m.FieldGet(int(slot))
	// Slot 1 in the first block is Via's head.
	if head := m.FieldFind("Via"); head == nil || head.Slot() != int(slot) {
		t.Errorf("accelerator slot %d does not match head %v", slot, f)
	}
}

func TestDeleteHeadPromotesNextDup(t *testing.T) {
	m := newHdr(t)
	m.Attach("Via", "1.1 a")
	m.Attach("Via", "1.1 b")

	head := m.FieldFind("Via")
	m.Delete(head)

	next := m.FieldFind("Via")
	if next == nil || m.Value(next) != "1.1 b" {
		t.Fatal("next dup not promoted")
	}
	if next.Flags()&FlagDupHead == 0 {
		t.Error("promoted dup must carry DUP_HEAD")
	}
	if m.Presence()&wks.PresenceMask(wks.Via) == 0 {
		t.Error("presence bit must survive while dups remain")
	}

	m.Delete(next)
	if m.FieldFind("Via") != nil {
		t.Error("find after last delete")
	}
	if m.Presence()&wks.PresenceMask(wks.Via) != 0 {
		t.Error("presence bit must clear with the last occurrence")
	}
	if m.FieldsCount() != 0 {
		t.Errorf("count = %d", m.FieldsCount())
	}
}

func TestBlockChainGrowth(t *testing.T) {
	m := newHdr(t)
	for i := 0; i < BlockSlots+5; i++ {
		m.Attach("X-Pad", strings.Repeat("v", 4))
	}
	if m.FieldsCount() != BlockSlots+5 {
		t.Errorf("count = %d", m.FieldsCount())
	}
	// All dups reachable across the block boundary.
	n := 0
	for f := m.FieldFind("X-Pad"); f != nil; f = f.NextDup() {
		n++
	}
	if n != BlockSlots+5 {
		t.Errorf("dup chain length = %d", n)
	}
}

func TestCookedCacheControl(t *testing.T) {
	m := newHdr(t)
	f, _ := m.Attach("Cache-Control", "public, max-age=300, s-maxage=600")

	cc := m.CookedCC()
	want := wks.CCMaskPublic | wks.CCMaskMaxAge | wks.CCMaskSMaxage
	if cc.CCMask != want {
		t.Errorf("mask = %#x want %#x", cc.CCMask, want)
	}
	if cc.MaxAge != 300 || cc.SMaxage != 600 {
		t.Errorf("max-age=%d s-maxage=%d", cc.MaxAge, cc.SMaxage)
	}

	// A ';' is part of the directive token: both halves are malformed.
	m.SetValue(f, "public; max-age=30")
	cc = m.CookedCC()
	if cc.CCMask != 0 {
		t.Errorf("semicolon directive contributed mask %#x", cc.CCMask)
	}
	if cc.MaxAge != 0 {
		t.Errorf("max-age = %d", cc.MaxAge)
	}
}

func TestCookedMalformedArguments(t *testing.T) {
	cases := []struct {
		value string
		mask  uint32
	}{
		{"max-age=30.5", 0},
		{"max-age=\"30\"", 0},
		{"max-age= 30", 0},
		{"max-age =30", 0},
		{"max-age=30x", 0},
		{"max-age=30", wks.CCMaskMaxAge},
		{"no-cache", wks.CCMaskNoCache},
		{"Public", 0}, // directive tokens are case-sensitive
	}
	for _, c := range cases {
		m := newHdr(t)
		m.Attach("Cache-Control", c.value)
		if got := m.CookedCC().CCMask; got != c.mask {
			t.Errorf("%q: mask = %#x want %#x", c.value, got, c.mask)
		}
	}
}

func TestCookedMaxStaleSaturates(t *testing.T) {
	m := newHdr(t)
	m.Attach("Cache-Control", "max-stale")
	cc := m.CookedCC()
	if cc.CCMask&wks.CCMaskMaxStale == 0 {
		t.Error("max-stale bit missing")
	}
	if cc.MaxStale != math.MaxInt32 {
		t.Errorf("max-stale = %d", cc.MaxStale)
	}

	m2 := newHdr(t)
	m2.Attach("Cache-Control", "max-stale=120")
	if m2.CookedCC().MaxStale != 120 {
		t.Errorf("max-stale = %d", m2.CookedCC().MaxStale)
	}
}

func TestCookedPragma(t *testing.T) {
	m := newHdr(t)
	f, _ := m.Attach("Pragma", "no-cache")
	if !m.CookedCC().PragmaNoCache {
		t.Error("pragma no-cache not cooked")
	}
	m.SetValue(f, "other")
	if m.CookedCC().PragmaNoCache {
		t.Error("pragma should clear on mutation")
	}
	m.Delete(f)
	if m.CookedCC().PragmaNoCache {
		t.Error("pragma should clear on delete")
	}
}

func TestParseFields(t *testing.T) {
	m := newHdr(t)
	data := []byte("Host: example.com\r\nVia: 1.1 a\r\nVia: 1.1 b\r\n\r\ntrailing")
	n, err := m.ParseFields(data, false)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(data)-len("trailing") {
		t.Errorf("consumed %d", n)
	}
	if m.FieldsCount() != 3 {
		t.Errorf("count = %d", m.FieldsCount())
	}
	if f := m.FieldFind("Host"); f == nil || m.Value(f) != "example.com" {
		t.Error("Host not parsed")
	}
}

func TestParseFoldedContinuation(t *testing.T) {
	m := newHdr(t)
	_, err := m.ParseFields([]byte("X-Long: part one\r\n part two\r\n\r\n"), false)
	if err != nil {
		t.Fatal(err)
	}
	f := m.FieldFind("X-Long")
	if f == nil {
		t.Fatal("folded field missing")
	}
	if got := m.Value(f); got != "part one   part two" && !strings.Contains(got, "part two") {
		t.Errorf("folded value = %q", got)
	}
	if m.FieldsCount() != 1 {
		t.Errorf("count = %d", m.FieldsCount())
	}
}

func TestParseErrors(t *testing.T) {
	m := newHdr(t)
	if _, err := m.ParseFields([]byte("Host : bad\r\n\r\n"), false); err != ErrWhitespaceBeforeColon {
		t.Errorf("space before colon: got %v", err)
	}
	m2 := newHdr(t)
	if _, err := m2.ParseFields([]byte("Host: a\x00b\r\n\r\n"), false); err != ErrEmbeddedNul {
		t.Errorf("embedded NUL: got %v", err)
	}
	m3 := newHdr(t)
	if _, err := m3.ParseFields([]byte("Host: pending\r\n"), false); err != ErrTruncatedInput {
		t.Errorf("missing terminator: got %v", err)
	}
	m4 := newHdr(t)
	long := "X-Big: " + strings.Repeat("v", MaxFieldLength+1) + "\r\n\r\n"
	if _, err := m4.ParseFields([]byte(long), false); err != ErrFieldTooLong {
		t.Errorf("oversize field: got %v", err)
	}
}

func TestParseEOFLastField(t *testing.T) {
	m := newHdr(t)
	if _, err := m.ParseFields([]byte("Host: tail-field"), true); err != nil {
		t.Fatal(err)
	}
	if f := m.FieldFind("Host"); f == nil || m.Value(f) != "tail-field" {
		t.Error("unterminated last field at EOF should attach")
	}
}

func TestParseDropsNonTokenNames(t *testing.T) {
	m := newHdr(t)
	if _, err := m.ParseFields([]byte("(weird): x\r\n@internal: y\r\nGood: z\r\n\r\n"), false); err != nil {
		t.Fatal(err)
	}
	if m.FieldFind("Good") == nil || m.FieldFind("@internal") == nil {
		t.Error("token and @-names should attach")
	}
	if m.FieldsCount() != 2 {
		t.Errorf("count = %d", m.FieldsCount())
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	m := newHdr(t)
	m.ParseFields([]byte("Host: example.com\r\nVia: 1.1 a\r\nVia: 1.1 b\r\nCache-Control: max-age=60\r\nX-Custom: v\r\n\r\n"), false)

	h := m.Heap()
	n, err := h.MarshalLength()
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, n)
	if _, err := h.Marshal(buf); err != nil {
		t.Fatal(err)
	}

	_, root, err := heap.Unmarshal(buf, heap.ObjMIMEHeader)
	if err != nil {
		t.Fatal(err)
	}
	m2 := root.(*Hdr)
	if m2.FieldsCount() != m.FieldsCount() {
		t.Errorf("count %d != %d", m2.FieldsCount(), m.FieldsCount())
	}
	if f := m2.FieldFind("Via"); f == nil || m2.Value(f) != "1.1 a" {
		t.Error("dup head lost in round trip")
	} else if f.NextDup() == nil || m2.Value(f.NextDup()) != "1.1 b" {
		t.Error("dup chain lost in round trip")
	}
	if m2.CookedCC().MaxAge != 60 {
		t.Errorf("cooked max-age = %d", m2.CookedCC().MaxAge)
	}
	if m2.Presence() != m.Presence() {
		t.Errorf("presence %#x != %#x", m2.Presence(), m.Presence())
	}
}

func TestSetHeaderScenario(t *testing.T) {
	// Spec scenario: overwrite the first dup, delete the rest.
	m := newHdr(t)
	m.ParseFields([]byte("Via: 1.1 a\r\nVia: 1.1 b\r\n\r\n"), false)
	before := m.FieldsCount()

	f := m.FieldFind("Via")
	m.SetValue(f, "1.1 proxy")
	for d := f.NextDup(); d != nil; {
		next := d.NextDup()
		m.Delete(d)
		d = next
	}

	if m.FieldsCount() != before-1 {
		t.Errorf("count = %d want %d", m.FieldsCount(), before-1)
	}
	g := m.FieldFind("Via")
	if g == nil || m.Value(g) != "1.1 proxy" {
		t.Errorf("value = %q", m.Value(g))
	}
	if g.NextDup() != nil {
		t.Error("dups should be gone")
	}
}
