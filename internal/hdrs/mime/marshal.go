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
	"github.com/Comcast/hrw/internal/hdrs/heap"
	"github.com/Comcast/hrw/internal/hdrs/wks"
)

// MarshalObj implements heap.Object. The header payload nests one
// field-block record per block in the chain; dup chains are encoded as
// global slot numbers and the accelerators are recomputed on unmarshal.
func (m *Hdr) MarshalObj(ma *heap.Marshaller) error {
	ma.U64(m.presence)
	for _, w := range m.accel {
		ma.U32(w)
	}
	ma.U32(m.cooked.CCMask)
	ma.I32(m.cooked.MaxAge)
	ma.I32(m.cooked.SMaxage)
	ma.I32(m.cooked.MaxStale)
	ma.I32(m.cooked.MinFresh)
	if m.cooked.PragmaNoCache {
		ma.U8(1)
	} else {
		ma.U8(0)
	}

	nblocks := uint32(0)
	for b := &m.first; b != nil; b = b.next {
		nblocks++
	}
	ma.U32(nblocks)

	for b := &m.first; b != nil; b = b.next {
		ma.Begin(heap.ObjFieldBlock, 0)
		ma.U8(uint8(b.freetop))
		for i := 0; i < b.freetop; i++ {
			f := &b.slots[i]
			ma.U16(uint16(f.WksIdx))
			ma.U8(uint8(f.readiness))
			ma.U8(uint8(f.flags))
			ma.U32(uint32(f.slot))
			next := int32(-1)
			if f.nextDup != nil {
				next = int32(f.nextDup.slot)
			}
			ma.I32(next)
			ma.Ref(f.name)
			ma.Ref(f.value)
		}
		ma.End()
	}
	return nil
}

func decodeHdr(u *heap.Unmarshaller) (heap.Object, error) {
	m := &Hdr{h: u.TargetHeap()}
	m.presence = u.U64()
	for i := range m.accel {
		m.accel[i] = u.U32()
	}
	m.cooked.CCMask = u.U32()
	m.cooked.MaxAge = u.I32()
	m.cooked.SMaxage = u.I32()
	m.cooked.MaxStale = u.I32()
	m.cooked.MinFresh = u.I32()
	m.cooked.PragmaNoCache = u.U8() != 0

	nblocks := int(u.U32())
	bySlot := make(map[int]*Field)
	nextDups := make(map[int]int32)

	var prev *Block
	maxSlot := -1
	for bi := 0; bi < nblocks; bi++ {
		t, _, err := u.Begin()
		if err != nil {
			return nil, err
		}
		if t != heap.ObjFieldBlock {
			return nil, heap.ErrUnknownObjectType
		}
		var b *Block
		if bi == 0 {
			b = &m.first
		} else {
			b = &Block{}
			prev.next = b
		}
		b.freetop = int(u.U8())
		if b.freetop > BlockSlots {
			return nil, heap.ErrTruncatedHeader
		}
		for i := 0; i < b.freetop; i++ {
			f := &b.slots[i]
			f.WksIdx = int16(u.U16())
			f.readiness = Readiness(u.U8())
			f.flags = FieldFlags(u.U8())
			f.slot = int(u.U32())
			nd := u.I32()
			name, err := u.Ref()
			if err != nil {
				return nil, err
			}
			value, err := u.Ref()
			if err != nil {
				return nil, err
			}
			f.name = name
			f.value = value
			bySlot[f.slot] = f
			if nd >= 0 {
				nextDups[f.slot] = nd
			}
			if f.slot > maxSlot {
				maxSlot = f.slot
			}
		}
		u.Align()
		prev = b
		m.tail = b
	}
	if m.tail == nil {
		m.tail = &m.first
	}
	m.nslots = maxSlot + 1

	for slot, nd := range nextDups {
		if target, ok := bySlot[int(nd)]; ok {
			bySlot[slot].nextDup = target
		}
	}

	// Presence and the slot accelerator are derived state; recompute them
	// rather than trusting the image.
	m.presence = 0
	m.accel = [4]uint32{^uint32(0), ^uint32(0), ^uint32(0), ^uint32(0)}
	for b := &m.first; b != nil; b = b.next {
		for i := 0; i < b.freetop; i++ {
			f := &b.slots[i]
			if f.Live() && f.flags&FlagDupHead != 0 && f.WksIdx >= 0 {
				m.presence |= wks.PresenceMask(int(f.WksIdx))
				m.updateAccel(f)
			}
		}
	}
	return m, nil
}
