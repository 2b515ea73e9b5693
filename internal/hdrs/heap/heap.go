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

// Package heap implements the header heap: an arena that owns typed header
// objects (URLs, MIME headers, field blocks) together with the string heaps
// their names and values live in. A heap carries at most one read/write
// string heap plus up to three read-only, reference-counted string heaps.
// When the RW heap fills up it is demoted to a free RO slot and a fresh RW
// heap is allocated; when no slot is free, or too much freed string space
// has accumulated, the heap coalesces every live string into one new RW
// heap. The whole arena can be marshalled to a relocatable byte image and
// read back bit-exact.
package heap

import (
	"errors"
	"sync/atomic"
)

// ObjType identifies the kind of a heap object. The values are frozen; they
// appear in marshalled images.
type ObjType uint8

// Heap object types.
const (
	ObjEmpty ObjType = iota
	ObjRaw
	ObjURL
	ObjHTTPHeader
	ObjMIMEHeader
	ObjFieldBlock
)

const (
	// Magic marks the head of a marshalled heap image.
	Magic uint32 = 0x0FEEB1E0

	// DefaultStrHeapSize is the initial capacity of a string heap.
	DefaultStrHeapSize = 2048

	// MaxLostStrSpace is the number of freed string bytes a heap tolerates
	// before the next allocation forces a coalesce.
	MaxLostStrSpace = 1024

	// RonlyHeaps is the number of read-only string heap slots.
	RonlyHeaps = 3

	// MaxObjSize is the largest single object allocation; the object header
	// carries a 20-bit length.
	MaxObjSize = 1 << 20
)

// Failure kinds surfaced by allocation and marshal/unmarshal.
var (
	ErrAllocTooBig       = errors.New("heap: allocation exceeds max object size")
	ErrBadMagic          = errors.New("heap: bad magic in marshalled image")
	ErrTruncatedHeader   = errors.New("heap: truncated image header")
	ErrUnknownObjectType = errors.New("heap: unknown object type in image")
	ErrZeroLengthObject  = errors.New("heap: zero-length object in image")
	ErrBufferTooSmall    = errors.New("heap: marshal buffer too small")
	ErrTooManyStrHeaps   = errors.New("heap: no free read-only heap slot for inherit")
)

// StrRef locates a string inside a heap. A zero StrRef is the null string.
// Refs with HeapID 0 alias caller-owned strings that were attached without
// copying; all other refs point into the RW heap or one of the RO heaps.
type StrRef struct {
	HeapID int32
	Off    int32
	N      int32
}

// Empty reports whether the ref holds no bytes.
func (r StrRef) Empty() bool { return r.N == 0 }

// Object is the capability every heap-resident typed object implements. The
// heap walks objects during coalesce and marshal; the concrete types live in
// the url and mime packages and register their decoders at startup.
type Object interface {
	// HeapObjType returns the object's wire type.
	HeapObjType() ObjType
	// MoveStrings is called during coalesce and inherit; the object must
	// pass every string ref it owns through move and store the result back.
	MoveStrings(move func(StrRef) StrRef)
	// StrSize returns the total number of live string bytes the object owns.
	StrSize() int
	// MarshalObj appends the object payload using the marshaller's string
	// translation.
	MarshalObj(m *Marshaller) error
}

// Decoder reconstructs an object of one type from an image.
type Decoder func(u *Unmarshaller) (Object, error)

var decoders [16]Decoder

// RegisterType installs the decoder for one object type. Called from the url
// and mime package init functions, before any unmarshal can run.
func RegisterType(t ObjType, d Decoder) {
	decoders[t] = d
}

var heapIDCounter int32

func nextHeapID() int32 {
	return atomic.AddInt32(&heapIDCounter, 1)
}

type strHeap struct {
	id   int32
	buf  []byte
	used int
	refs int32
}

func newStrHeap(size int) *strHeap {
	if size < DefaultStrHeapSize {
		size = DefaultStrHeapSize
	}
	return &strHeap{id: nextHeapID(), buf: make([]byte, size), refs: 1}
}

func (s *strHeap) avail() int { return len(s.buf) - s.used }

type objSlot struct {
	obj  Object
	live bool
}

// Heap is the header heap.
type Heap struct {
	rw    *strHeap
	ronly [RonlyHeaps]*strHeap
	ext   []string // aliased caller-owned strings
	lost  int      // freed string bytes not yet reclaimed
	objs  []objSlot
}

// New returns an empty heap with a default-sized RW string heap.
func New() *Heap {
	return &Heap{rw: newStrHeap(DefaultStrHeapSize)}
}

// AllocObj attaches a typed object to the heap. Objects are never moved once
// allocated; deallocation only marks the slot empty.
func (h *Heap) AllocObj(o Object) error {
	if o.StrSize() > MaxObjSize {
		return ErrAllocTooBig
	}
	h.objs = append(h.objs, objSlot{obj: o, live: true})
	return nil
}

// DeallocObj marks the object's slot empty. The space is reclaimed only when
// the heap is marshalled and read back.
func (h *Heap) DeallocObj(o Object) {
	for i := range h.objs {
		if h.objs[i].obj == o {
			h.objs[i].live = false
			return
		}
	}
}

// Count returns the number of live objects.
func (h *Heap) Count() int {
	n := 0
	for _, s := range h.objs {
		if s.live {
			n++
		}
	}
	return n
}

// LostSpace returns the accumulated freed string bytes.
func (h *Heap) LostSpace() int { return h.lost }

// AllocStr reserves n bytes of string space and returns a ref to it. The
// returned bytes are writable through Bytes. Allocation may demote the RW
// heap or coalesce; callers must not hold raw byte slices across calls.
func (h *Heap) AllocStr(n int) (StrRef, error) {
	if n > MaxObjSize {
		return StrRef{}, ErrAllocTooBig
	}
	if n == 0 {
		return StrRef{}, nil
	}
	if h.lost > MaxLostStrSpace {
		h.coalesce(n)
	}
	if h.rw == nil || h.rw.avail() < n {
		h.demoteRW(n)
	}
	ref := StrRef{HeapID: h.rw.id, Off: int32(h.rw.used), N: int32(n)}
	h.rw.used += n
	return ref, nil
}

// WriteStr copies s into the heap and returns its ref.
func (h *Heap) WriteStr(s string) (StrRef, error) {
	ref, err := h.AllocStr(len(s))
	if err != nil {
		return StrRef{}, err
	}
	copy(h.Bytes(ref), s)
	return ref, nil
}

// DupStr copies the bytes of ref (possibly from another heap) into this heap.
func (h *Heap) DupStr(src *Heap, ref StrRef) (StrRef, error) {
	b := src.Bytes(ref)
	out, err := h.AllocStr(len(b))
	if err != nil {
		return StrRef{}, err
	}
	copy(h.Bytes(out), b)
	return out, nil
}

// Alias attaches a caller-owned string without copying. The ref remains
// valid across coalesce; the backing is the caller's string.
func (h *Heap) Alias(s string) StrRef {
	h.ext = append(h.ext, s)
	return StrRef{HeapID: 0, Off: int32(len(h.ext) - 1), N: int32(len(s))}
}

// Bytes resolves a ref to its backing bytes. Refs into the RW heap are
// writable; aliased refs are not (the byte slice is a copy).
func (h *Heap) Bytes(ref StrRef) []byte {
	if ref.N == 0 {
		return nil
	}
	if ref.HeapID == 0 {
		return []byte(h.ext[ref.Off])[:ref.N]
	}
	if s := h.findHeap(ref.HeapID); s != nil {
		return s.buf[ref.Off : ref.Off+ref.N]
	}
	return nil
}

// Str resolves a ref to a string.
func (h *Heap) Str(ref StrRef) string {
	if ref.N == 0 {
		return ""
	}
	if ref.HeapID == 0 {
		return h.ext[ref.Off][:ref.N]
	}
	return string(h.Bytes(ref))
}

// ExpandStr grows a previously allocated string in place when it is the most
// recent RW allocation, otherwise relocates it. The old ref is freed.
func (h *Heap) ExpandStr(ref StrRef, newN int) (StrRef, error) {
	if newN <= int(ref.N) {
		return ref, nil
	}
	if h.rw != nil && ref.HeapID == h.rw.id && int(ref.Off+ref.N) == h.rw.used && h.rw.avail() >= newN-int(ref.N) {
		h.rw.used += newN - int(ref.N)
		ref.N = int32(newN)
		return ref, nil
	}
	old := h.Bytes(ref)
	out, err := h.AllocStr(newN)
	if err != nil {
		return StrRef{}, err
	}
	copy(h.Bytes(out), old)
	h.FreeStr(ref)
	return out, nil
}

// FreeStr gives up a string. Nothing is reclaimed; the bytes are charged to
// the lost-space counter that eventually triggers a coalesce.
func (h *Heap) FreeStr(ref StrRef) {
	if ref.HeapID == 0 || ref.N == 0 {
		return
	}
	h.lost += int(ref.N)
}

func (h *Heap) findHeap(id int32) *strHeap {
	if h.rw != nil && h.rw.id == id {
		return h.rw
	}
	for _, s := range h.ronly {
		if s != nil && s.id == id {
			return s
		}
	}
	return nil
}

// demoteRW moves the current RW heap into a free RO slot and allocates a new
// RW heap large enough for the pending allocation. When every RO slot is
// taken the heap coalesces instead.
func (h *Heap) demoteRW(incoming int) {
	slot := -1
	for i := range h.ronly {
		if h.ronly[i] == nil {
			slot = i
			break
		}
	}
	if slot < 0 {
		h.coalesce(incoming)
		return
	}
	if h.rw != nil && h.rw.used > 0 {
		h.ronly[slot] = h.rw
	}
	size := DefaultStrHeapSize
	if h.rw != nil {
		size = len(h.rw.buf) * 2
	}
	for size < incoming {
		size *= 2
	}
	h.rw = newStrHeap(size)
}

// liveStrSize sums the string bytes owned by live objects.
func (h *Heap) liveStrSize() int {
	total := 0
	for _, s := range h.objs {
		if s.live {
			total += s.obj.StrSize()
		}
	}
	return total
}

// coalesce allocates one new RW heap sized for every live string plus the
// incoming allocation, walks all live objects moving their strings into it,
// and releases the old heaps. Raw refs held outside objects are invalidated.
func (h *Heap) coalesce(incoming int) {
	size := h.liveStrSize() + incoming
	fresh := newStrHeap(size)

	move := func(ref StrRef) StrRef {
		if ref.HeapID == 0 || ref.N == 0 {
			return ref
		}
		b := h.Bytes(ref)
		if b == nil {
			return ref
		}
		out := StrRef{HeapID: fresh.id, Off: int32(fresh.used), N: ref.N}
		copy(fresh.buf[fresh.used:], b)
		fresh.used += int(ref.N)
		return out
	}
	for _, s := range h.objs {
		if s.live {
			s.obj.MoveStrings(move)
		}
	}

	h.releaseStrHeaps()
	h.rw = fresh
	h.lost = 0
}

func (h *Heap) releaseStrHeaps() {
	if h.rw != nil {
		atomic.AddInt32(&h.rw.refs, -1)
		h.rw = nil
	}
	for i := range h.ronly {
		if h.ronly[i] != nil {
			atomic.AddInt32(&h.ronly[i].refs, -1)
			h.ronly[i] = nil
		}
	}
}

// InheritStrHeaps attaches src's string heaps into this heap's free RO slots
// by bumping reference counts instead of copying. If there are not enough
// free slots, or the projected lost space crosses the threshold, this heap
// coalesces first. Refs into src's heaps then resolve through this heap too.
func (h *Heap) InheritStrHeaps(src *Heap) error {
	var incoming []*strHeap
	if src.rw != nil && src.rw.used > 0 {
		incoming = append(incoming, src.rw)
	}
	for _, s := range src.ronly {
		if s != nil {
			incoming = append(incoming, s)
		}
	}
	if len(incoming) == 0 {
		return nil
	}

	free := 0
	for _, s := range h.ronly {
		if s == nil {
			free++
		}
	}
	if free < len(incoming) || h.lost > MaxLostStrSpace {
		h.coalesce(0)
		free = RonlyHeaps
	}
	if free < len(incoming) {
		return ErrTooManyStrHeaps
	}

	slot := 0
	for _, in := range incoming {
		for h.ronly[slot] != nil {
			slot++
		}
		atomic.AddInt32(&in.refs, 1)
		h.ronly[slot] = in
	}

	// Aliased strings travel by value.
	for _, e := range src.ext {
		h.ext = append(h.ext, e)
	}
	return nil
}

// Destroy drops the heap's string heap references. Heaps shared through
// InheritStrHeaps stay alive until their last reference is gone.
func (h *Heap) Destroy() {
	h.releaseStrHeaps()
	h.objs = nil
	h.ext = nil
}
