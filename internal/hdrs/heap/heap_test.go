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

package heap

import (
	"bytes"
	"strings"
	"testing"
)

// rawObj is a minimal heap object used to exercise the arena without
// dragging in the url/mime packages.
type rawObj struct {
	ref StrRef
}

func (r *rawObj) HeapObjType() ObjType { return ObjRaw }

func (r *rawObj) MoveStrings(move func(StrRef) StrRef) {
	r.ref = move(r.ref)
}

func (r *rawObj) StrSize() int { return int(r.ref.N) }

func (r *rawObj) MarshalObj(m *Marshaller) error {
	m.Ref(r.ref)
	return nil
}

func init() {
	RegisterType(ObjRaw, func(u *Unmarshaller) (Object, error) {
		ref, err := u.Ref()
		if err != nil {
			return nil, err
		}
		return &rawObj{ref: ref}, nil
	})
}

func TestAllocStrAndRead(t *testing.T) {
	h := New()
	ref, err := h.WriteStr("hello")
	if err != nil {
		t.Fatal(err)
	}
	if got := h.Str(ref); got != "hello" {
		t.Errorf("got %q", got)
	}
	if _, err := h.AllocStr(MaxObjSize + 1); err != ErrAllocTooBig {
		t.Errorf("expected ErrAllocTooBig, got %v", err)
	}
}

func TestDemoteOnFull(t *testing.T) {
	h := New()
	big := strings.Repeat("x", DefaultStrHeapSize-10)
	ref1, _ := h.WriteStr(big)
	firstID := ref1.HeapID

	// This cannot fit in the remaining RW space; the RW heap must demote.
	ref2, _ := h.WriteStr(strings.Repeat("y", 100))
	if ref2.HeapID == firstID {
		t.Fatal("expected a fresh RW heap after demote")
	}
	// The demoted heap is still resolvable.
	if got := h.Str(ref1); got != big {
		t.Error("demoted heap contents lost")
	}
}

func TestCoalesceOnLostSpace(t *testing.T) {
	h := New()
	obj := &rawObj{}
	if err := h.AllocObj(obj); err != nil {
		t.Fatal(err)
	}
	obj.ref, _ = h.WriteStr("keep me")

	// Burn and free strings until the lost-space threshold is crossed.
	refs := make([]StrRef, 12)
	for i := range refs {
		refs[i], _ = h.WriteStr(strings.Repeat("z", 100))
	}
	for _, ref := range refs {
		h.FreeStr(ref)
	}
	if h.LostSpace() <= MaxLostStrSpace {
		t.Fatal("test setup did not exceed lost-space threshold")
	}

	before := h.Count()
	if _, err := h.AllocStr(10); err != nil {
		t.Fatal(err)
	}
	if h.LostSpace() != 0 {
		t.Error("coalesce should reset lost space")
	}
	if h.Count() != before {
		t.Error("coalesce must not change the object count")
	}
	if got := h.Str(obj.ref); got != "keep me" {
		t.Errorf("live string lost in coalesce: %q", got)
	}
}

func TestCoalesceFillsAllRonlySlots(t *testing.T) {
	h := New()
	obj := &rawObj{}
	h.AllocObj(obj)
	obj.ref, _ = h.WriteStr("pinned")

	// Demote repeatedly: filling all three RO slots plus one more demotion
	// forces a full coalesce.
	filler := strings.Repeat("f", DefaultStrHeapSize)
	for i := 0; i < 16; i++ {
		ref, _ := h.WriteStr(filler)
		h.FreeStr(ref)
	}
	if got := h.Str(obj.ref); got != "pinned" {
		t.Errorf("string lost across demote/coalesce cycles: %q", got)
	}
}

func TestAliasSurvivesCoalesce(t *testing.T) {
	h := New()
	obj := &rawObj{}
	h.AllocObj(obj)
	obj.ref = h.Alias("external backing")

	h.coalesce(0)
	if got := h.Str(obj.ref); got != "external backing" {
		t.Errorf("aliased string should keep its original backing, got %q", got)
	}
}

func TestExpandStrInPlace(t *testing.T) {
	h := New()
	ref, _ := h.WriteStr("abc")
	out, err := h.ExpandStr(ref, 6)
	if err != nil {
		t.Fatal(err)
	}
	if out.Off != ref.Off || out.HeapID != ref.HeapID {
		t.Error("tail allocation should expand in place")
	}
	if out.N != 6 {
		t.Errorf("expanded length = %d", out.N)
	}
	if got := h.Str(out)[:3]; got != "abc" {
		t.Errorf("prefix lost: %q", got)
	}
}

func TestInheritStrHeaps(t *testing.T) {
	src := New()
	obj := &rawObj{}
	src.AllocObj(obj)
	obj.ref, _ = src.WriteStr("shared")

	dst := New()
	if err := dst.InheritStrHeaps(src); err != nil {
		t.Fatal(err)
	}
	// The ref from src now resolves through dst without a copy.
	if got := dst.Str(obj.ref); got != "shared" {
		t.Errorf("inherited ref unresolvable: %q", got)
	}
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	h := New()
	obj := &rawObj{}
	h.AllocObj(obj)
	obj.ref, _ = h.WriteStr("round trip payload")

	n, err := h.MarshalLength()
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, n)
	written, err := h.Marshal(buf)
	if err != nil {
		t.Fatal(err)
	}
	if written != n {
		t.Errorf("MarshalLength=%d but Marshal wrote %d", n, written)
	}

	h2, root, err := Unmarshal(buf, ObjRaw)
	if err != nil {
		t.Fatal(err)
	}
	r2, ok := root.(*rawObj)
	if !ok {
		t.Fatalf("root is %T", root)
	}
	if got := h2.Str(r2.ref); got != "round trip payload" {
		t.Errorf("payload mismatch: %q", got)
	}

	// And the image round-trips bit-exact.
	buf2 := make([]byte, n)
	if _, err := h2.Marshal(buf2); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, buf2) {
		t.Error("re-marshalled image differs")
	}
}

func TestMarshalBufferTooSmall(t *testing.T) {
	h := New()
	obj := &rawObj{}
	h.AllocObj(obj)
	obj.ref, _ = h.WriteStr("does not fit")

	n, err := h.Marshal(make([]byte, 4))
	if err != ErrBufferTooSmall {
		t.Errorf("expected ErrBufferTooSmall, got %v", err)
	}
	if n != -1 {
		t.Errorf("overflowing marshal should return -1, got %d", n)
	}
}

func TestUnmarshalRejectsCorruptImages(t *testing.T) {
	h := New()
	obj := &rawObj{}
	h.AllocObj(obj)
	obj.ref, _ = h.WriteStr("payload")
	n, _ := h.MarshalLength()
	buf := make([]byte, n)
	h.Marshal(buf)

	if _, _, err := Unmarshal(buf[:8], ObjRaw); err != ErrTruncatedHeader {
		t.Errorf("short buffer: got %v", err)
	}

	bad := append([]byte(nil), buf...)
	bad[0] ^= 0xFF
	if _, _, err := Unmarshal(bad, ObjRaw); err != ErrBadMagic {
		t.Errorf("bad magic: got %v", err)
	}

	// Self-reported size larger than the buffer.
	oversize := append([]byte(nil), buf...)
	oversize[4] = 0xFF
	oversize[5] = 0xFF
	if _, _, err := Unmarshal(oversize, ObjRaw); err != ErrTruncatedHeader {
		t.Errorf("oversize: got %v", err)
	}

	if _, _, err := Unmarshal(buf, ObjMIMEHeader); err != ErrUnknownObjectType {
		t.Errorf("root type mismatch: got %v", err)
	}
}

func TestDeallocObj(t *testing.T) {
	h := New()
	a, b := &rawObj{}, &rawObj{}
	h.AllocObj(a)
	h.AllocObj(b)
	if h.Count() != 2 {
		t.Fatalf("count=%d", h.Count())
	}
	h.DeallocObj(a)
	if h.Count() != 1 {
		t.Errorf("count=%d after dealloc", h.Count())
	}
}
