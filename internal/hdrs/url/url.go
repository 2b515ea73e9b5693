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

// Package url implements the tokenized URL object that lives in a header
// heap: nine component references (scheme through fragment) plus the port,
// the URL type and its RFC-1738 type code. The printed form and the printed
// length always agree, and the content hash folds in an optional cache
// generation so a whole generation can be invalidated without touching keys.
package url

import (
	"crypto/md5"
	"encoding/binary"
	"errors"
	"strconv"
	"strings"

	"github.com/Comcast/hrw/internal/hdrs/heap"
)

// Type is the URL scheme family.
type Type uint8

// URL types.
const (
	TypeNone Type = iota
	TypeHTTP
	TypeHTTPS
)

// NormFlags control printing normalization.
type NormFlags uint8

// Normalization flags.
const (
	NormNone NormFlags = 0
	// NormImpliedScheme prints the scheme implied by the URL type when no
	// scheme component is stored.
	NormImpliedScheme NormFlags = 1 << 0
	// NormLCSchemeHost prints scheme and host lowercased.
	NormLCSchemeHost NormFlags = 1 << 1
)

// ErrParse is returned by strict parsing on invalid input characters.
var ErrParse = errors.New("url: invalid character in strict parse")

// URL is a heap-resident tokenized URL.
type URL struct {
	h *heap.Heap

	scheme   heap.StrRef
	user     heap.StrRef
	password heap.StrRef
	host     heap.StrRef
	portStr  heap.StrRef
	path     heap.StrRef
	params   heap.StrRef
	query    heap.StrRef
	fragment heap.StrRef

	port     uint16
	urlType  Type
	typeCode byte
	// pathEmpty records that the parsed URL had no path at all, as opposed
	// to the root path.
	pathEmpty bool

	printed      string
	printedFlags NormFlags
	printedValid bool
}

func init() {
	heap.RegisterType(heap.ObjURL, decode)
}

// New allocates a URL object in the given heap.
func New(h *heap.Heap) (*URL, error) {
	u := &URL{h: h, pathEmpty: true}
	if err := h.AllocObj(u); err != nil {
		return nil, err
	}
	return u, nil
}

// Heap returns the owning heap.
func (u *URL) Heap() *heap.Heap { return u.h }

// HeapObjType implements heap.Object.
func (u *URL) HeapObjType() heap.ObjType { return heap.ObjURL }

// MoveStrings implements heap.Object.
func (u *URL) MoveStrings(move func(heap.StrRef) heap.StrRef) {
	u.scheme = move(u.scheme)
	u.user = move(u.user)
	u.password = move(u.password)
	u.host = move(u.host)
	u.portStr = move(u.portStr)
	u.path = move(u.path)
	u.params = move(u.params)
	u.query = move(u.query)
	u.fragment = move(u.fragment)
}

// StrSize implements heap.Object.
func (u *URL) StrSize() int {
	return int(u.scheme.N + u.user.N + u.password.N + u.host.N + u.portStr.N +
		u.path.N + u.params.N + u.query.N + u.fragment.N)
}

// MarshalObj implements heap.Object.
func (u *URL) MarshalObj(m *heap.Marshaller) error {
	m.Ref(u.scheme)
	m.Ref(u.user)
	m.Ref(u.password)
	m.Ref(u.host)
	m.Ref(u.portStr)
	m.Ref(u.path)
	m.Ref(u.params)
	m.Ref(u.query)
	m.Ref(u.fragment)
	m.U16(u.port)
	m.U8(uint8(u.urlType))
	m.U8(u.typeCode)
	if u.pathEmpty {
		m.U8(1)
	} else {
		m.U8(0)
	}
	return nil
}

func decode(um *heap.Unmarshaller) (heap.Object, error) {
	u := &URL{h: um.TargetHeap()}
	refs := []*heap.StrRef{
		&u.scheme, &u.user, &u.password, &u.host, &u.portStr,
		&u.path, &u.params, &u.query, &u.fragment,
	}
	for _, r := range refs {
		ref, err := um.Ref()
		if err != nil {
			return nil, err
		}
		*r = ref
	}
	u.port = um.U16()
	u.urlType = Type(um.U8())
	u.typeCode = um.U8()
	u.pathEmpty = um.U8() != 0
	return u, nil
}

func (u *URL) set(dst *heap.StrRef, v string, copyString bool) {
	if !dst.Empty() {
		u.h.FreeStr(*dst)
	}
	if v == "" {
		*dst = heap.StrRef{}
	} else if copyString {
		ref, err := u.h.WriteStr(v)
		if err != nil {
			*dst = u.h.Alias(v)
		} else {
			*dst = ref
		}
	} else {
		*dst = u.h.Alias(v)
	}
	u.printedValid = false
}

// SetScheme stores the scheme and derives the URL type and type code.
func (u *URL) SetScheme(v string, copyString bool) {
	u.set(&u.scheme, v, copyString)
	switch strings.ToLower(v) {
	case "http":
		u.urlType = TypeHTTP
		u.typeCode = 'h'
	case "https":
		u.urlType = TypeHTTPS
		u.typeCode = 's'
	default:
		u.urlType = TypeNone
		u.typeCode = 0
	}
}

// SetUser stores the user component.
func (u *URL) SetUser(v string, copyString bool) { u.set(&u.user, v, copyString) }

// SetPassword stores the password component.
func (u *URL) SetPassword(v string, copyString bool) { u.set(&u.password, v, copyString) }

// SetHost stores the host component.
func (u *URL) SetHost(v string, copyString bool) { u.set(&u.host, v, copyString) }

// SetPort stores the numeric port and its printed form.
func (u *URL) SetPort(port uint16) {
	u.port = port
	if port == 0 {
		u.set(&u.portStr, "", true)
	} else {
		u.set(&u.portStr, strconv.Itoa(int(port)), true)
	}
}

// SetPath stores the path component, without any leading slash.
func (u *URL) SetPath(v string, copyString bool) {
	u.set(&u.path, v, copyString)
	u.pathEmpty = false
}

// SetParams stores the matrix-params component.
func (u *URL) SetParams(v string, copyString bool) { u.set(&u.params, v, copyString) }

// SetQuery stores the query component, without the leading '?'.
func (u *URL) SetQuery(v string, copyString bool) { u.set(&u.query, v, copyString) }

// SetFragment stores the fragment component.
func (u *URL) SetFragment(v string, copyString bool) { u.set(&u.fragment, v, copyString) }

// Scheme returns the stored scheme.
func (u *URL) Scheme() string { return u.h.Str(u.scheme) }

// User returns the stored user.
func (u *URL) User() string { return u.h.Str(u.user) }

// Password returns the stored password.
func (u *URL) Password() string { return u.h.Str(u.password) }

// Host returns the stored host.
func (u *URL) Host() string { return u.h.Str(u.host) }

// Path returns the stored path (no leading slash).
func (u *URL) Path() string { return u.h.Str(u.path) }

// Params returns the stored matrix params.
func (u *URL) Params() string { return u.h.Str(u.params) }

// Query returns the stored query.
func (u *URL) Query() string { return u.h.Str(u.query) }

// Fragment returns the stored fragment.
func (u *URL) Fragment() string { return u.h.Str(u.fragment) }

// RawPort returns the stored port number, 0 when unset.
func (u *URL) RawPort() uint16 { return u.port }

// URLType returns the scheme family.
func (u *URL) URLType() Type { return u.urlType }

// TypeCode returns the 1-character RFC-1738 type code.
func (u *URL) TypeCode() byte { return u.typeCode }

// CanonicalPort returns the effective port: 80 for HTTP and 443 for HTTPS
// when no port is stored, otherwise the stored port.
func (u *URL) CanonicalPort() uint16 {
	if u.port != 0 {
		return u.port
	}
	switch u.urlType {
	case TypeHTTP:
		return 80
	case TypeHTTPS:
		return 443
	}
	return 0
}

func (u *URL) impliedScheme() string {
	switch u.urlType {
	case TypeHTTP:
		return "http"
	case TypeHTTPS:
		return "https"
	}
	return ""
}

// Print renders the URL under the given normalization flags. The result is
// cached until the next mutation.
func (u *URL) Print(flags NormFlags) string {
	if u.printedValid && u.printedFlags == flags {
		return u.printed
	}
	var b strings.Builder

	scheme := u.Scheme()
	if scheme == "" && flags&NormImpliedScheme != 0 {
		scheme = u.impliedScheme()
	}
	if scheme != "" {
		if flags&NormLCSchemeHost != 0 {
			scheme = strings.ToLower(scheme)
		}
		b.WriteString(scheme)
		b.WriteString("://")
	}

	if user := u.User(); user != "" {
		b.WriteString(user)
		if pw := u.Password(); pw != "" {
			b.WriteByte(':')
			b.WriteString(pw)
		}
		b.WriteByte('@')
	}

	host := u.Host()
	if flags&NormLCSchemeHost != 0 {
		host = strings.ToLower(host)
	}
	b.WriteString(host)

	if !u.portStr.Empty() {
		b.WriteByte(':')
		b.WriteString(u.h.Str(u.portStr))
	}

	if !u.pathEmpty || !u.path.Empty() {
		b.WriteByte('/')
		b.WriteString(u.Path())
	}
	if p := u.Params(); p != "" {
		b.WriteByte(';')
		b.WriteString(p)
	}
	if q := u.Query(); q != "" {
		b.WriteByte('?')
		b.WriteString(q)
	}
	if f := u.Fragment(); f != "" {
		b.WriteByte('#')
		b.WriteString(f)
	}

	u.printed = b.String()
	u.printedFlags = flags
	u.printedValid = true
	return u.printed
}

// LengthGet returns the printed length under the given flags. It agrees
// bit-for-bit with Print.
func (u *URL) LengthGet(flags NormFlags) int {
	return len(u.Print(flags))
}

// Hash computes the content hash over scheme, host, canonical port, path,
// params, the query (unless ignored) and the type code. A cacheGeneration
// of zero or more is folded into the hash so rotating it invalidates the
// generation without touching stored keys.
func (u *URL) Hash(ignoreQuery bool, cacheGeneration int64) [md5.Size]byte {
	d := md5.New()
	d.Write([]byte(u.Scheme()))
	d.Write([]byte{0})
	d.Write([]byte(u.Host()))
	var port [2]byte
	binary.BigEndian.PutUint16(port[:], u.CanonicalPort())
	d.Write(port[:])
	d.Write([]byte(u.Path()))
	d.Write([]byte{0})
	d.Write([]byte(u.Params()))
	d.Write([]byte{0})
	if !ignoreQuery {
		d.Write([]byte(u.Query()))
		d.Write([]byte{0})
	}
	d.Write([]byte{u.typeCode})
	if cacheGeneration >= 0 {
		var gen [8]byte
		binary.BigEndian.PutUint64(gen[:], uint64(cacheGeneration))
		d.Write(gen[:])
	}
	var out [md5.Size]byte
	d.Sum(out[:0])
	return out
}
