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

// Package wks implements the well-known-string table: a closed, build-time
// set of canonical header names and directive values. Each entry carries a
// stable integer index that the rest of the header machinery uses as a fast
// identity, a unique presence-mask bit, an optional slot-accelerator id for
// the hottest names, and type-specific metadata such as the Cache-Control
// cooked-mask bit a directive contributes.
package wks

import "strings"

// Invalid is returned by Tokenize for names outside the closed set.
const Invalid = -1

// SlotAccelNone indicates a WKS with no slot-accelerator entry.
const SlotAccelNone = -1

// Cache-Control cooked mask bits. A directive WKS contributes exactly one of
// these to the cooked mask of any header it appears in.
const (
	CCMaskMaxAge uint32 = 1 << iota
	CCMaskNoCache
	CCMaskNoStore
	CCMaskNoTransform
	CCMaskMaxStale
	CCMaskMinFresh
	CCMaskOnlyIfCached
	CCMaskPublic
	CCMaskPrivate
	CCMaskMustRevalidate
	CCMaskProxyRevalidate
	CCMaskSMaxage
	CCMaskNeedRevalidateOnce
)

// Well-known field name indices. The order here is frozen; marshalled header
// heaps embed these values.
const (
	Accept = iota
	AcceptCharset
	AcceptEncoding
	AcceptLanguage
	Age
	Authorization
	CacheControl
	Connection
	ContentEncoding
	ContentLanguage
	ContentLength
	ContentType
	Cookie
	Date
	ETag
	Expires
	Host
	IfMatch
	IfModifiedSince
	IfNoneMatch
	IfRange
	IfUnmodifiedSince
	LastModified
	Location
	Pragma
	ProxyAuthenticate
	ProxyAuthorization
	ProxyConnection
	Range
	Referer
	Server
	SetCookie
	TE
	TransferEncoding
	Upgrade
	UserAgent
	Vary
	Via
	Warning
	WWWAuthenticate
	XForwardedFor

	numFieldNames
)

// Well-known value token indices (case-sensitive). These carry no presence
// bit; they exist for the cooked Cache-Control / Pragma computation.
const (
	ValueMaxAge = numFieldNames + iota
	ValueNoCache
	ValueNoStore
	ValueNoTransform
	ValueMaxStale
	ValueMinFresh
	ValueOnlyIfCached
	ValuePublic
	ValuePrivate
	ValueMustRevalidate
	ValueProxyRevalidate
	ValueSMaxage

	numTokens
)

type entry struct {
	name      string
	mask      uint64 // presence bit, 0 for value tokens
	slotAccel int8
	ccMask    uint32 // cooked mask contribution, 0 for field names
	intArg    bool   // directive takes an integer argument after '='
}

var table [numTokens]entry

// byFoldedName maps lowercased field names to their index.
var byFoldedName map[string]int

// byValue maps value tokens (exact case) to their index.
var byValue map[string]int

func init() {
	names := []struct {
		idx  int
		name string
	}{
		{Accept, "Accept"},
		{AcceptCharset, "Accept-Charset"},
		{AcceptEncoding, "Accept-Encoding"},
		{AcceptLanguage, "Accept-Language"},
		{Age, "Age"},
		{Authorization, "Authorization"},
		{CacheControl, "Cache-Control"},
		{Connection, "Connection"},
		{ContentEncoding, "Content-Encoding"},
		{ContentLanguage, "Content-Language"},
		{ContentLength, "Content-Length"},
		{ContentType, "Content-Type"},
		{Cookie, "Cookie"},
		{Date, "Date"},
		{ETag, "ETag"},
		{Expires, "Expires"},
		{Host, "Host"},
		{IfMatch, "If-Match"},
		{IfModifiedSince, "If-Modified-Since"},
		{IfNoneMatch, "If-None-Match"},
		{IfRange, "If-Range"},
		{IfUnmodifiedSince, "If-Unmodified-Since"},
		{LastModified, "Last-Modified"},
		{Location, "Location"},
		{Pragma, "Pragma"},
		{ProxyAuthenticate, "Proxy-Authenticate"},
		{ProxyAuthorization, "Proxy-Authorization"},
		{ProxyConnection, "Proxy-Connection"},
		{Range, "Range"},
		{Referer, "Referer"},
		{Server, "Server"},
		{SetCookie, "Set-Cookie"},
		{TE, "TE"},
		{TransferEncoding, "Transfer-Encoding"},
		{Upgrade, "Upgrade"},
		{UserAgent, "User-Agent"},
		{Vary, "Vary"},
		{Via, "Via"},
		{Warning, "Warning"},
		{WWWAuthenticate, "WWW-Authenticate"},
		{XForwardedFor, "X-Forwarded-For"},
	}

	byFoldedName = make(map[string]int, len(names))
	for _, n := range names {
		table[n.idx] = entry{name: n.name, mask: 1 << uint(n.idx), slotAccel: SlotAccelNone}
		byFoldedName[strings.ToLower(n.name)] = n.idx
	}

	// The 32 hottest field names get a slot-accelerator id. The remaining
	// names fall back to the presence bitmap plus a linear walk.
	hot := []int{
		Accept, AcceptEncoding, AcceptLanguage, Age, Authorization,
		CacheControl, Connection, ContentEncoding, ContentLength,
		ContentType, Cookie, Date, ETag, Expires, Host, IfMatch,
		IfModifiedSince, IfNoneMatch, IfRange, LastModified, Location,
		Pragma, ProxyConnection, Range, Referer, Server, SetCookie,
		TransferEncoding, UserAgent, Vary, Via, XForwardedFor,
	}
	for i, idx := range hot {
		table[idx].slotAccel = int8(i)
	}

	values := []struct {
		idx    int
		name   string
		ccMask uint32
		intArg bool
	}{
		{ValueMaxAge, "max-age", CCMaskMaxAge, true},
		{ValueNoCache, "no-cache", CCMaskNoCache, false},
		{ValueNoStore, "no-store", CCMaskNoStore, false},
		{ValueNoTransform, "no-transform", CCMaskNoTransform, false},
		{ValueMaxStale, "max-stale", CCMaskMaxStale, true},
		{ValueMinFresh, "min-fresh", CCMaskMinFresh, true},
		{ValueOnlyIfCached, "only-if-cached", CCMaskOnlyIfCached, false},
		{ValuePublic, "public", CCMaskPublic, false},
		{ValuePrivate, "private", CCMaskPrivate, false},
		{ValueMustRevalidate, "must-revalidate", CCMaskMustRevalidate, false},
		{ValueProxyRevalidate, "proxy-revalidate", CCMaskProxyRevalidate, false},
		{ValueSMaxage, "s-maxage", CCMaskSMaxage, true},
	}

	byValue = make(map[string]int, len(values))
	for _, v := range values {
		table[v.idx] = entry{name: v.name, slotAccel: SlotAccelNone, ccMask: v.ccMask, intArg: v.intArg}
		byValue[v.name] = v.idx
	}
}

// Tokenize returns the stable index for a field name, or Invalid if the name
// is not in the closed set. Field-name lookup is case-insensitive.
func Tokenize(name string) int {
	if idx, ok := byFoldedName[name]; ok {
		return idx
	}
	if idx, ok := byFoldedName[strings.ToLower(name)]; ok {
		return idx
	}
	return Invalid
}

// TokenizeValue returns the stable index for a directive value token, or
// Invalid. Value-token lookup is case-sensitive.
func TokenizeValue(tok string) int {
	if idx, ok := byValue[tok]; ok {
		return idx
	}
	return Invalid
}

// Canonical returns the canonical spelling for an index.
func Canonical(idx int) string {
	if idx < 0 || idx >= numTokens {
		return ""
	}
	return table[idx].name
}

// Length returns the canonical length for an index.
func Length(idx int) int {
	if idx < 0 || idx >= numTokens {
		return 0
	}
	return len(table[idx].name)
}

// PresenceMask returns the unique presence bit for a field-name index, or 0
// for value tokens and invalid indices.
func PresenceMask(idx int) uint64 {
	if idx < 0 || idx >= numTokens {
		return 0
	}
	return table[idx].mask
}

// SlotAccel returns the slot-accelerator id in [0,31] for a hot field name,
// or SlotAccelNone.
func SlotAccel(idx int) int {
	if idx < 0 || idx >= numTokens {
		return SlotAccelNone
	}
	return int(table[idx].slotAccel)
}

// CCMask returns the cooked Cache-Control mask bit a directive token
// contributes, or 0.
func CCMask(idx int) uint32 {
	if idx < 0 || idx >= numTokens {
		return 0
	}
	return table[idx].ccMask
}

// CCTakesIntArg reports whether a directive token takes an integer argument
// after '=' (max-age, s-maxage, max-stale, min-fresh).
func CCTakesIntArg(idx int) bool {
	if idx < 0 || idx >= numTokens {
		return false
	}
	return table[idx].intArg
}

// Count returns the total number of well-known strings.
func Count() int {
	return numTokens
}
