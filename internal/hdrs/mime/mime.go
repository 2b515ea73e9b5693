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

// Package mime implements the MIME header: an ordered multimap of fields
// with duplicate chains, stored in fixed-capacity field blocks inside a
// header heap. Lookup by well-known name is accelerated by a 64-bit
// presence bitmap and a per-header slot-accelerator table; Cache-Control
// and Pragma are additionally maintained as a cooked numeric summary that
// is recomputed on every mutation of a cooked field.
package mime

import (
	"strings"

	"github.com/Comcast/hrw/internal/hdrs/heap"
	"github.com/Comcast/hrw/internal/hdrs/wks"
)

// BlockSlots is the number of field slots per block.
const BlockSlots = 16

// SlotUnknown is the accelerator nibble meaning "not in the first block".
const SlotUnknown = 15

// Readiness is the lifecycle state of a field slot.
type Readiness uint8

// Field slot states.
const (
	ReadinessEmpty Readiness = iota
	ReadinessDetached
	ReadinessLive
	ReadinessDeleted
)

// FieldFlags carry per-field bits.
type FieldFlags uint8

// Field flags.
const (
	// FlagDupHead marks the head of a duplicate chain; only the head is
	// indexed by the presence bitmap and the slot accelerator.
	FlagDupHead FieldFlags = 1 << 0
	// FlagCooked marks a field whose mutation must recompute the cooked
	// Cache-Control / Pragma cache.
	FlagCooked FieldFlags = 1 << 1
)

// Field is one slot of a field block. Fields are addressed by pointer and
// never move once attached.
type Field struct {
	WksIdx    int16
	name      heap.StrRef
	value     heap.StrRef
	nextDup   *Field
	readiness Readiness
	flags     FieldFlags
	slot      int // global slot number, strictly increasing in block order
}

// Live reports whether the slot holds an attached field.
func (f *Field) Live() bool { return f.readiness == ReadinessLive }

// Flags returns the field's flag bits.
func (f *Field) Flags() FieldFlags { return f.flags }

// Slot returns the field's global slot number.
func (f *Field) Slot() int { return f.slot }

// NextDup returns the next field with the same name, in slot order.
func (f *Field) NextDup() *Field { return f.nextDup }

// Block is a fixed-capacity run of field slots. Blocks are chained and
// never compacted; deleted slots are skipped.
type Block struct {
	freetop int
	next    *Block
	slots   [BlockSlots]Field
}

// Cooked is the precomputed Cache-Control / Pragma summary.
type Cooked struct {
	CCMask        uint32
	MaxAge        int32
	SMaxage       int32
	MaxStale      int32
	MinFresh      int32
	PragmaNoCache bool
}

// Hdr is a MIME header. It must not be copied after first use: fields are
// addressed by pointers into its inline first block.
type Hdr struct {
	h        *heap.Heap
	presence uint64
	accel    [4]uint32
	cooked   Cooked
	first    Block
	tail     *Block
	nslots   int // total slots ever allocated, for global slot numbering
}

func init() {
	heap.RegisterType(heap.ObjMIMEHeader, decodeHdr)
}

// New allocates a MIME header in the given heap.
func New(h *heap.Heap) (*Hdr, error) {
	m := &Hdr{h: h}
	m.tail = &m.first
	m.accel = [4]uint32{^uint32(0), ^uint32(0), ^uint32(0), ^uint32(0)}
	if err := h.AllocObj(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Heap returns the owning heap.
func (m *Hdr) Heap() *heap.Heap { return m.h }

// Presence returns the presence bitmap.
func (m *Hdr) Presence() uint64 { return m.presence }

// CookedCC returns the cooked summary.
func (m *Hdr) CookedCC() Cooked { return m.cooked }

func (m *Hdr) accelGet(id int) uint32 {
	return (m.accel[id>>3] >> (uint(id&7) * 4)) & 0xF
}

func (m *Hdr) accelSet(id int, v uint32) {
	shift := uint(id&7) * 4
	word := &m.accel[id>>3]
	*word = (*word &^ (0xF << shift)) | (v&0xF)<<shift
}

// AccelSlot returns the accelerator nibble for a WKS index, or SlotUnknown.
func (m *Hdr) AccelSlot(wksIdx int) uint32 {
	id := wks.SlotAccel(wksIdx)
	if id == wks.SlotAccelNone {
		return SlotUnknown
	}
	return m.accelGet(id)
}

// Name returns a field's name.
func (m *Hdr) Name(f *Field) string {
	if f.WksIdx >= 0 {
		return wks.Canonical(int(f.WksIdx))
	}
	return m.h.Str(f.name)
}

// Value returns a field's value.
func (m *Hdr) Value(f *Field) string { return m.h.Str(f.value) }

// FieldsCount returns the number of live fields across all blocks.
func (m *Hdr) FieldsCount() int {
	n := 0
	for b := &m.first; b != nil; b = b.next {
		for i := 0; i < b.freetop; i++ {
			if b.slots[i].Live() {
				n++
			}
		}
	}
	return n
}

// FieldGet returns the idx'th live field in block order, or nil.
func (m *Hdr) FieldGet(idx int) *Field {
	n := 0
	for b := &m.first; b != nil; b = b.next {
		for i := 0; i < b.freetop; i++ {
			if b.slots[i].Live() {
				if n == idx {
					return &b.slots[i]
				}
				n++
			}
		}
	}
	return nil
}

// FieldFind locates the dup head for a name. Well-known names miss in O(1)
// through the presence bitmap and hit in O(1) through the slot accelerator
// when the head sits in the first block; everything else is a linear walk.
func (m *Hdr) FieldFind(name string) *Field {
	idx := wks.Tokenize(name)
	if idx >= 0 {
		if m.presence&wks.PresenceMask(idx) == 0 {
			return nil
		}
		if id := wks.SlotAccel(idx); id != wks.SlotAccelNone {
			if slot := m.accelGet(id); slot != SlotUnknown {
				f := &m.first.slots[slot]
				if f.Live() && int(f.WksIdx) == idx {
					return f
				}
			}
		}
		for b := &m.first; b != nil; b = b.next {
			for i := 0; i < b.freetop; i++ {
				f := &b.slots[i]
				if f.Live() && int(f.WksIdx) == idx {
					return f
				}
			}
		}
		return nil
	}

	for b := &m.first; b != nil; b = b.next {
		for i := 0; i < b.freetop; i++ {
			f := &b.slots[i]
			if f.Live() && f.WksIdx < 0 && strings.EqualFold(m.h.Str(f.name), name) {
				return f
			}
		}
	}
	return nil
}

// allocSlot hands out the next free slot, extending the block chain when
// the tail block is full.
func (m *Hdr) allocSlot() *Field {
	if m.tail.freetop == BlockSlots {
		b := &Block{}
		m.tail.next = b
		m.tail = b
	}
	f := &m.tail.slots[m.tail.freetop]
	m.tail.freetop++
	f.slot = m.nslots
	m.nslots++
	return f
}

// Attach adds a new field with the given name and value. Duplicates are
// spliced into the name's dup chain in slot order; the head is the field
// with the smallest slot number and the only one the presence bitmap and
// accelerator index.
func (m *Hdr) Attach(name, value string) (*Field, error) {
	f := m.allocSlot()
	f.WksIdx = int16(wks.Tokenize(name))
	if f.WksIdx < 0 {
		ref, err := m.h.WriteStr(name)
		if err != nil {
			return nil, err
		}
		f.name = ref
	}
	ref, err := m.h.WriteStr(value)
	if err != nil {
		return nil, err
	}
	f.value = ref
	f.readiness = ReadinessLive
	f.nextDup = nil
	f.flags = 0
	if int(f.WksIdx) == wks.CacheControl || int(f.WksIdx) == wks.Pragma {
		f.flags |= FlagCooked
	}

	if head := m.findDupHead(f); head != nil {
		// Splice in slot order. New slots are always the largest, so the
		// new field goes to the end of the chain and the head is unchanged.
		last := head
		for last.nextDup != nil {
			last = last.nextDup
		}
		last.nextDup = f
	} else {
		f.flags |= FlagDupHead
		if f.WksIdx >= 0 {
			m.presence |= wks.PresenceMask(int(f.WksIdx))
			m.updateAccel(f)
		}
	}

	if f.flags&FlagCooked != 0 {
		m.RecomputeCooked()
	}
	return f, nil
}

// findDupHead returns the existing dup head for f's name, ignoring f itself.
func (m *Hdr) findDupHead(f *Field) *Field {
	for b := &m.first; b != nil; b = b.next {
		for i := 0; i < b.freetop; i++ {
			g := &b.slots[i]
			if g == f || !g.Live() || g.flags&FlagDupHead == 0 {
				continue
			}
			if f.WksIdx >= 0 {
				if g.WksIdx == f.WksIdx {
					return g
				}
			} else if g.WksIdx < 0 && strings.EqualFold(m.h.Str(g.name), m.h.Str(f.name)) {
				return g
			}
		}
	}
	return nil
}

// updateAccel records the dup head's slot in the accelerator iff the head
// sits in the first block and its index fits in 4 bits.
func (m *Hdr) updateAccel(head *Field) {
	if head.WksIdx < 0 {
		return
	}
	id := wks.SlotAccel(int(head.WksIdx))
	if id == wks.SlotAccelNone {
		return
	}
	if head.slot < SlotUnknown {
		m.accelSet(id, uint32(head.slot))
	} else {
		m.accelSet(id, SlotUnknown)
	}
}

func (m *Hdr) clearAccel(wksIdx int16) {
	if wksIdx < 0 {
		return
	}
	if id := wks.SlotAccel(int(wksIdx)); id != wks.SlotAccelNone {
		m.accelSet(id, SlotUnknown)
	}
}

// Detach unlinks a field from its dup chain without releasing its strings.
func (m *Hdr) Detach(f *Field) {
	m.unlink(f)
	f.readiness = ReadinessDetached
}

// Delete removes a field and releases its strings. Removing a dup head
// promotes the next dup; removing the last occurrence clears the presence
// bit. The last chained block is unlinked once it is full and holds no live
// slot; other empty blocks stay in the chain.
func (m *Hdr) Delete(f *Field) {
	cooked := f.flags&FlagCooked != 0
	m.unlink(f)
	f.readiness = ReadinessDeleted
	m.h.FreeStr(f.name)
	m.h.FreeStr(f.value)
	f.name = heap.StrRef{}
	f.value = heap.StrRef{}
	m.pruneBlocks()
	if cooked {
		m.RecomputeCooked()
	}
}

// DeleteAllDups removes every field in a name's dup chain.
func (m *Hdr) DeleteAllDups(name string) {
	for f := m.FieldFind(name); f != nil; f = m.FieldFind(name) {
		m.Delete(f)
	}
}

func (m *Hdr) unlink(f *Field) {
	if f.flags&FlagDupHead != 0 {
		f.flags &^= FlagDupHead
		next := f.nextDup
		if next != nil {
			next.flags |= FlagDupHead
			m.updateAccel(next)
		} else if f.WksIdx >= 0 {
			m.presence &^= wks.PresenceMask(int(f.WksIdx))
			m.clearAccel(f.WksIdx)
		}
	} else {
		// Walk from the head to the predecessor.
		head := m.FieldFind(m.Name(f))
		for head != nil && head.nextDup != f {
			head = head.nextDup
		}
		if head != nil {
			head.nextDup = f.nextDup
		}
	}
	f.nextDup = nil
}

// pruneBlocks unlinks the last chained block when it is full and no longer
// holds any live slot. Earlier chained blocks are never unlinked.
func (m *Hdr) pruneBlocks() {
	prev := &m.first
	for b := m.first.next; b != nil; b = b.next {
		live := false
		for i := 0; i < b.freetop; i++ {
			if b.slots[i].Live() {
				live = true
				break
			}
		}
		if !live && b.freetop == BlockSlots && b.next == nil {
			prev.next = nil
			m.tail = prev
			return
		}
		prev = b
	}
}

// SetValue overwrites a field's value. Mutating a cooked field recomputes
// the cooked cache for the whole header.
func (m *Hdr) SetValue(f *Field, value string) error {
	m.h.FreeStr(f.value)
	ref, err := m.h.WriteStr(value)
	if err != nil {
		return err
	}
	f.value = ref
	if f.flags&FlagCooked != 0 {
		m.RecomputeCooked()
	}
	return nil
}

// AppendValue appends to a field's value with a ", " separator.
func (m *Hdr) AppendValue(f *Field, value string) error {
	old := m.h.Str(f.value)
	if old == "" {
		return m.SetValue(f, value)
	}
	return m.SetValue(f, old+", "+value)
}

// HeapObjType implements heap.Object.
func (m *Hdr) HeapObjType() heap.ObjType { return heap.ObjMIMEHeader }

// MoveStrings implements heap.Object.
func (m *Hdr) MoveStrings(move func(heap.StrRef) heap.StrRef) {
	for b := &m.first; b != nil; b = b.next {
		for i := 0; i < b.freetop; i++ {
			f := &b.slots[i]
			if !f.Live() {
				continue
			}
			f.name = move(f.name)
			f.value = move(f.value)
		}
	}
}

// StrSize implements heap.Object.
func (m *Hdr) StrSize() int {
	total := 0
	for b := &m.first; b != nil; b = b.next {
		for i := 0; i < b.freetop; i++ {
			f := &b.slots[i]
			if f.Live() {
				total += int(f.name.N + f.value.N)
			}
		}
	}
	return total
}
