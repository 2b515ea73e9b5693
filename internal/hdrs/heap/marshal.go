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
	"encoding/binary"
)

// Image layout:
//
//	magic u32 | image length u32 | object count u32 | string section length u32
//	root type u8 | pad[3]
//	object records (8-byte aligned): type u8 | flags u8 | pad u16 | length u32 | payload
//	string section
//
// String refs inside payloads are {offset u32, length u32} relative to the
// string section, so the image is position independent.

const imageHeaderSize = 20
const objHeaderSize = 8

// Marshaller accumulates object payloads and the string section during
// Heap.Marshal. Typed objects write their fields through it.
type Marshaller struct {
	heap  *Heap
	obj   []byte
	str   []byte
	dedup map[StrRef]uint32
	stack []int
}

// Begin opens an object record; the length is patched by End.
func (m *Marshaller) Begin(t ObjType, flags uint8) {
	m.stack = append(m.stack, len(m.obj))
	m.obj = append(m.obj, byte(t), flags, 0, 0, 0, 0, 0, 0)
}

// End closes the innermost open object record, padding the payload to an
// 8-byte boundary.
func (m *Marshaller) End() {
	for len(m.obj)%8 != 0 {
		m.obj = append(m.obj, 0)
	}
	start := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	binary.LittleEndian.PutUint32(m.obj[start+4:], uint32(len(m.obj)-start))
}

// U8 appends one byte.
func (m *Marshaller) U8(v uint8) { m.obj = append(m.obj, v) }

// U16 appends a 16-bit value.
func (m *Marshaller) U16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	m.obj = append(m.obj, b[:]...)
}

// U32 appends a 32-bit value.
func (m *Marshaller) U32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	m.obj = append(m.obj, b[:]...)
}

// U64 appends a 64-bit value.
func (m *Marshaller) U64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	m.obj = append(m.obj, b[:]...)
}

// I32 appends a signed 32-bit value.
func (m *Marshaller) I32(v int32) { m.U32(uint32(v)) }

// Ref translates a string ref into a string-section offset and appends it.
// Identical refs are written to the section once.
func (m *Marshaller) Ref(ref StrRef) {
	if ref.N == 0 {
		m.U32(0)
		m.U32(0)
		return
	}
	off, ok := m.dedup[ref]
	if !ok {
		off = uint32(len(m.str))
		m.str = append(m.str, m.heap.Bytes(ref)...)
		m.dedup[ref] = off
	}
	m.U32(off)
	m.U32(uint32(ref.N))
}

// Marshal writes a relocatable, self-contained image of every live object
// into buf. It returns the number of bytes written, or -1 with
// ErrBufferTooSmall when buf cannot hold the image.
func (h *Heap) Marshal(buf []byte) (int, error) {
	m := &Marshaller{heap: h, dedup: make(map[StrRef]uint32)}

	count := 0
	rootType := ObjEmpty
	for _, s := range h.objs {
		if !s.live {
			continue
		}
		if count == 0 {
			rootType = s.obj.HeapObjType()
		}
		m.Begin(s.obj.HeapObjType(), 0)
		if err := s.obj.MarshalObj(m); err != nil {
			return -1, err
		}
		m.End()
		count++
	}

	total := imageHeaderSize + len(m.obj) + len(m.str)
	if total > len(buf) {
		return -1, ErrBufferTooSmall
	}

	binary.LittleEndian.PutUint32(buf[0:], Magic)
	binary.LittleEndian.PutUint32(buf[4:], uint32(total))
	binary.LittleEndian.PutUint32(buf[8:], uint32(count))
	binary.LittleEndian.PutUint32(buf[12:], uint32(len(m.str)))
	buf[16] = byte(rootType)
	buf[17], buf[18], buf[19] = 0, 0, 0
	copy(buf[imageHeaderSize:], m.obj)
	copy(buf[imageHeaderSize+len(m.obj):], m.str)
	return total, nil
}

// MarshalLength returns the image size Marshal would produce.
func (h *Heap) MarshalLength() (int, error) {
	m := &Marshaller{heap: h, dedup: make(map[StrRef]uint32)}
	for _, s := range h.objs {
		if !s.live {
			continue
		}
		m.Begin(s.obj.HeapObjType(), 0)
		if err := s.obj.MarshalObj(m); err != nil {
			return -1, err
		}
		m.End()
	}
	return imageHeaderSize + len(m.obj) + len(m.str), nil
}

// Unmarshaller decodes object payloads out of an image. The string section
// has already been installed as the new heap's RW string heap, so Ref turns
// image offsets straight into live refs.
type Unmarshaller struct {
	heap    *Heap
	data    []byte
	pos     int
	strHeap int32
	strLen  int32
}

// TargetHeap returns the heap being reconstructed.
func (u *Unmarshaller) TargetHeap() *Heap { return u.heap }

// Begin reads the next object record header and returns its type and the
// payload length (header excluded).
func (u *Unmarshaller) Begin() (ObjType, int, error) {
	if u.pos+objHeaderSize > len(u.data) {
		return ObjEmpty, 0, ErrTruncatedHeader
	}
	t := ObjType(u.data[u.pos])
	length := int(binary.LittleEndian.Uint32(u.data[u.pos+4:]))
	if length == 0 {
		return ObjEmpty, 0, ErrZeroLengthObject
	}
	if u.pos+length > len(u.data) {
		return ObjEmpty, 0, ErrTruncatedHeader
	}
	u.pos += objHeaderSize
	return t, length - objHeaderSize, nil
}

// Align skips the padding End inserted after a payload.
func (u *Unmarshaller) Align() {
	for (u.pos-imageHeaderSize)%8 != 0 {
		u.pos++
	}
}

// U8 reads one byte.
func (u *Unmarshaller) U8() uint8 {
	v := u.data[u.pos]
	u.pos++
	return v
}

// U16 reads a 16-bit value.
func (u *Unmarshaller) U16() uint16 {
	v := binary.LittleEndian.Uint16(u.data[u.pos:])
	u.pos += 2
	return v
}

// U32 reads a 32-bit value.
func (u *Unmarshaller) U32() uint32 {
	v := binary.LittleEndian.Uint32(u.data[u.pos:])
	u.pos += 4
	return v
}

// U64 reads a 64-bit value.
func (u *Unmarshaller) U64() uint64 {
	v := binary.LittleEndian.Uint64(u.data[u.pos:])
	u.pos += 8
	return v
}

// I32 reads a signed 32-bit value.
func (u *Unmarshaller) I32() int32 { return int32(u.U32()) }

// Ref reads a string-section reference and swizzles it into a live ref.
func (u *Unmarshaller) Ref() (StrRef, error) {
	off := u.U32()
	n := u.U32()
	if n == 0 {
		return StrRef{}, nil
	}
	if int32(off)+int32(n) > u.strLen {
		return StrRef{}, ErrTruncatedHeader
	}
	return StrRef{HeapID: u.strHeap, Off: int32(off), N: int32(n)}, nil
}

// Unmarshal validates and reconstructs a heap from an image produced by
// Marshal. The first object must have the expected root type; it is returned
// along with the new heap. Inputs whose self-reported sizes exceed the
// buffer are refused.
func Unmarshal(buf []byte, expectedRoot ObjType) (*Heap, Object, error) {
	if len(buf) < imageHeaderSize {
		return nil, nil, ErrTruncatedHeader
	}
	if binary.LittleEndian.Uint32(buf[0:]) != Magic {
		return nil, nil, ErrBadMagic
	}
	total := int(binary.LittleEndian.Uint32(buf[4:]))
	count := int(binary.LittleEndian.Uint32(buf[8:]))
	strLen := int(binary.LittleEndian.Uint32(buf[12:]))
	rootType := ObjType(buf[16])
	if total > len(buf) || strLen > total-imageHeaderSize {
		return nil, nil, ErrTruncatedHeader
	}
	if rootType != expectedRoot {
		return nil, nil, ErrUnknownObjectType
	}

	h := &Heap{}
	str := newStrHeap(strLen)
	copy(str.buf, buf[total-strLen:total])
	str.used = strLen
	h.rw = str

	u := &Unmarshaller{
		heap:    h,
		data:    buf[:total-strLen],
		pos:     imageHeaderSize,
		strHeap: str.id,
		strLen:  int32(strLen),
	}

	var root Object
	for i := 0; i < count; i++ {
		t, _, err := u.Begin()
		if err != nil {
			return nil, nil, err
		}
		if int(t) >= len(decoders) || decoders[t] == nil {
			return nil, nil, ErrUnknownObjectType
		}
		obj, err := decoders[t](u)
		if err != nil {
			return nil, nil, err
		}
		u.Align()
		if err := h.AllocObj(obj); err != nil {
			return nil, nil, err
		}
		if root == nil {
			root = obj
		}
	}
	return h, root, nil
}
