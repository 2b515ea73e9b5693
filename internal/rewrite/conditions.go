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

package rewrite

import (
	"fmt"
	"math/rand"
	"net"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Comcast/hrw/internal/config"
	hdrsurl "github.com/Comcast/hrw/internal/hdrs/url"
	"github.com/Comcast/hrw/internal/util/log"
)

// condTrue always matches.
type condTrue struct{ condBase }

func (c *condTrue) Eval(*Resources) bool { return true }

func (c *condTrue) AppendValue(b *strings.Builder, _ *Resources) { b.WriteString("TRUE") }

// condFalse never matches.
type condFalse struct{ condBase }

func (c *condFalse) Eval(*Resources) bool { return false }

func (c *condFalse) AppendValue(b *strings.Builder, _ *Resources) { b.WriteString("FALSE") }

// condStatus matches the response status.
type condStatus struct {
	condBase
	m *IntMatcher
}

func newCondStatus(p *LineParser) (Condition, error) {
	c := &condStatus{}
	c.allowed = []HookID{HookReadResponse, HookSendResponse, HookRemap}
	if err := c.initialize(p); err != nil {
		return nil, err
	}
	m, err := c.intMatcher()
	if err != nil {
		return nil, err
	}
	c.m = m
	c.require(RsrcResponseStatus | RsrcServerResponseHeaders | RsrcClientResponseHeaders)
	return c, nil
}

func (c *condStatus) Eval(res *Resources) bool {
	return c.m.Test(int64(res.RespStatus))
}

func (c *condStatus) AppendValue(b *strings.Builder, res *Resources) {
	b.WriteString(strconv.Itoa(res.RespStatus))
}

// condMethod matches the client request method.
type condMethod struct {
	condBase
	m *StringMatcher
}

func newCondMethod(p *LineParser) (Condition, error) {
	c := &condMethod{}
	if err := c.initialize(p); err != nil {
		return nil, err
	}
	m, err := c.stringMatcher()
	if err != nil {
		return nil, err
	}
	c.m = m
	c.require(RsrcClientRequestHeaders)
	return c, nil
}

func (c *condMethod) AppendValue(b *strings.Builder, res *Resources) {
	b.WriteString(res.Host.Method())
}

func (c *condMethod) Eval(res *Resources) bool {
	var b strings.Builder
	c.AppendValue(&b, res)
	return c.m.Test(b.String(), res)
}

// condRandom matches a random draw in [0,max).
type condRandom struct {
	condBase
	max int
	m   *IntMatcher
}

func newCondRandom(p *LineParser, qual string) (Condition, error) {
	c := &condRandom{}
	if err := c.initialize(p); err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(qual)
	if err != nil || n <= 0 {
		return nil, &SyntaxError{Msg: "RANDOM requires a positive bound", Token: qual}
	}
	c.max = n
	m, err := c.intMatcher()
	if err != nil {
		return nil, err
	}
	c.m = m
	return c, nil
}

func (c *condRandom) draw() int { return rand.Intn(c.max) }

func (c *condRandom) Eval(*Resources) bool {
	return c.m.Test(int64(c.draw()))
}

func (c *condRandom) AppendValue(b *strings.Builder, _ *Resources) {
	b.WriteString(strconv.Itoa(c.draw()))
}

// accessCacheTTL is how long an ACCESS result may be reused. Readers may
// see a stale value; the cost of an extra access(2) is accepted.
const accessCacheTTL = 2 * time.Second

type accessResult struct {
	when time.Time
	ok   bool
}

// condAccess tests that a filesystem path is readable.
type condAccess struct {
	condBase
	path   string
	cached atomic.Value // accessResult
}

func newCondAccess(p *LineParser, qual string) (Condition, error) {
	c := &condAccess{path: qual}
	if err := c.initialize(p); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *condAccess) Eval(*Resources) bool {
	if v, ok := c.cached.Load().(accessResult); ok && time.Since(v.when) < accessCacheTTL {
		return v.ok
	}
	f, err := os.Open(c.path)
	ok := err == nil
	if ok {
		f.Close()
	} else if log.DebugOn() {
		log.Debug("access check failed", log.Pairs{"path": c.path, "detail": err.Error()})
	}
	c.cached.Store(accessResult{when: time.Now(), ok: ok})
	return ok
}

func (c *condAccess) AppendValue(b *strings.Builder, res *Resources) {
	if c.Eval(res) {
		b.WriteString("1")
	}
}

// condCookie matches one cookie of the client request.
type condCookie struct {
	condBase
	name string
	m    *StringMatcher
}

func newCondCookie(p *LineParser, qual string) (Condition, error) {
	c := &condCookie{name: qual}
	if err := c.initialize(p); err != nil {
		return nil, err
	}
	m, err := c.stringMatcher()
	if err != nil {
		return nil, err
	}
	c.m = m
	c.require(RsrcClientRequestHeaders)
	return c, nil
}

// cookieValue extracts one cookie from a Cookie header value.
func cookieValue(header, name string) (string, bool) {
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if eq := strings.IndexByte(part, '='); eq > 0 {
			if part[:eq] == name {
				return part[eq+1:], true
			}
		}
	}
	return "", false
}

func (c *condCookie) AppendValue(b *strings.Builder, res *Resources) {
	if res.ClientReqHdr == nil {
		return
	}
	f := res.ClientReqHdr.FieldFind("Cookie")
	if f == nil {
		return
	}
	if v, ok := cookieValue(res.ClientReqHdr.Value(f), c.name); ok {
		b.WriteString(v)
	}
}

func (c *condCookie) Eval(res *Resources) bool {
	var b strings.Builder
	c.AppendValue(&b, res)
	if b.Len() == 0 {
		return false
	}
	return c.m.Test(b.String(), res)
}

// condHeader matches a header field of the hook's header, or of the client
// request when the CLIENT flavor is used.
type condHeader struct {
	condBase
	name   string
	client bool
	m      *StringMatcher
}

func newCondHeader(p *LineParser, qual string, client bool) (Condition, error) {
	c := &condHeader{name: qual, client: client}
	if err := c.initialize(p); err != nil {
		return nil, err
	}
	m, err := c.stringMatcher()
	if err != nil {
		return nil, err
	}
	c.m = m
	if client {
		c.require(RsrcClientRequestHeaders)
	} else {
		c.require(RsrcClientRequestHeaders | RsrcServerRequestHeaders | RsrcServerResponseHeaders | RsrcClientResponseHeaders)
	}
	return c, nil
}

func (c *condHeader) AppendValue(b *strings.Builder, res *Resources) {
	hdr := res.Hdr
	if c.client {
		hdr = res.ClientReqHdr
	}
	if hdr == nil {
		return
	}
	f := hdr.FieldFind(c.name)
	if f == nil {
		return
	}
	// Dups are appended in chain order, comma separated, like a combined
	// field value.
	first := true
	for ; f != nil; f = f.NextDup() {
		if !first {
			b.WriteString(", ")
		}
		b.WriteString(hdr.Value(f))
		first = false
	}
}

func (c *condHeader) Eval(res *Resources) bool {
	var b strings.Builder
	c.AppendValue(&b, res)
	if b.Len() == 0 {
		return false
	}
	return c.m.Test(b.String(), res)
}

// URL component qualifiers shared by the URL conditions and the
// destination operators.
type urlQual int

const (
	urlQualNone urlQual = iota
	urlQualHost
	urlQualPort
	urlQualPath
	urlQualQuery
	urlQualScheme
	urlQualURL
)

func parseURLQualifier(q string) (urlQual, error) {
	switch q {
	case "HOST":
		return urlQualHost, nil
	case "PORT":
		return urlQualPort, nil
	case "PATH":
		return urlQualPath, nil
	case "QUERY":
		return urlQualQuery, nil
	case "SCHEME":
		return urlQualScheme, nil
	case "URL":
		return urlQualURL, nil
	}
	return urlQualNone, &SyntaxError{Msg: "invalid URL qualifier", Token: q}
}

// urlSource selects which URL a condURL reads.
type urlSource int

const (
	urlSourceClient urlSource = iota
	urlSourceFrom
	urlSourceTo
)

// condURL matches one component of the client, from- or to-URL.
type condURL struct {
	condBase
	src  urlSource
	qual urlQual
	m    *StringMatcher
}

func newCondURL(p *LineParser, qual string, src urlSource) (Condition, error) {
	c := &condURL{src: src}
	if err := c.initialize(p); err != nil {
		return nil, err
	}
	q, err := parseURLQualifier(qual)
	if err != nil {
		return nil, err
	}
	c.qual = q
	m, err := c.stringMatcher()
	if err != nil {
		return nil, err
	}
	c.m = m
	c.require(RsrcClientRequestHeaders)
	return c, nil
}

func (c *condURL) url(res *Resources) *hdrsurl.URL {
	switch c.src {
	case urlSourceFrom:
		if res.RRI != nil {
			return res.RRI.FromURL
		}
		return nil
	case urlSourceTo:
		if res.RRI != nil {
			return res.RRI.ToURL
		}
		return nil
	}
	return res.Host.PristineURL()
}

func appendURLComponent(b *strings.Builder, u *hdrsurl.URL, qual urlQual) {
	if u == nil {
		return
	}
	switch qual {
	case urlQualHost:
		b.WriteString(u.Host())
	case urlQualPort:
		b.WriteString(strconv.Itoa(int(u.CanonicalPort())))
	case urlQualPath:
		b.WriteString(u.Path())
	case urlQualQuery:
		b.WriteString(u.Query())
	case urlQualScheme:
		b.WriteString(u.Scheme())
	case urlQualURL:
		b.WriteString(u.Print(hdrsurl.NormNone))
	}
}

func (c *condURL) AppendValue(b *strings.Builder, res *Resources) {
	appendURLComponent(b, c.url(res), c.qual)
}

func (c *condURL) Eval(res *Resources) bool {
	var b strings.Builder
	c.AppendValue(&b, res)
	return c.m.Test(b.String(), res)
}

// condPath matches the pristine request path.
type condPath struct {
	condBase
	m *StringMatcher
}

func newCondPath(p *LineParser) (Condition, error) {
	c := &condPath{}
	if err := c.initialize(p); err != nil {
		return nil, err
	}
	m, err := c.stringMatcher()
	if err != nil {
		return nil, err
	}
	c.m = m
	c.require(RsrcClientRequestHeaders)
	return c, nil
}

func (c *condPath) AppendValue(b *strings.Builder, res *Resources) {
	if u := res.Host.PristineURL(); u != nil {
		b.WriteString(u.Path())
	}
}

func (c *condPath) Eval(res *Resources) bool {
	var b strings.Builder
	c.AppendValue(&b, res)
	return c.m.Test(b.String(), res)
}

// condQuery matches the remap request query string.
type condQuery struct {
	condBase
	m *StringMatcher
}

func newCondQuery(p *LineParser) (Condition, error) {
	c := &condQuery{}
	if err := c.initialize(p); err != nil {
		return nil, err
	}
	m, err := c.stringMatcher()
	if err != nil {
		return nil, err
	}
	c.m = m
	c.require(RsrcClientRequestHeaders)
	return c, nil
}

func (c *condQuery) AppendValue(b *strings.Builder, res *Resources) {
	if res.RRI != nil && res.RRI.RequestURL != nil {
		b.WriteString(res.RRI.RequestURL.Query())
		return
	}
	if u := res.Host.EffectiveURL(); u != nil {
		b.WriteString(u.Query())
	}
}

func (c *condQuery) Eval(res *Resources) bool {
	var b strings.Builder
	c.AppendValue(&b, res)
	return c.m.Test(b.String(), res)
}

// condDBM looks a key up in a host-provided DBM file.
type condDBM struct {
	condBase
	file string
	key  *Value
	m    *StringMatcher
}

func newCondDBM(p *LineParser, qual string) (Condition, error) {
	c := &condDBM{}
	if err := c.initialize(p); err != nil {
		return nil, err
	}
	parts := strings.SplitN(qual, ",", 2)
	if len(parts) != 2 {
		return nil, &SyntaxError{Msg: "DBM requires file,key", Token: qual}
	}
	c.file = parts[0]
	v := &Value{}
	if err := v.Set(parts[1]); err != nil {
		return nil, err
	}
	c.key = v
	m, err := c.stringMatcher()
	if err != nil {
		return nil, err
	}
	c.m = m
	return c, nil
}

func (c *condDBM) AppendValue(b *strings.Builder, res *Resources) {
	var kb strings.Builder
	c.key.AppendValue(&kb, res)
	if v, ok := res.Host.LookupDBM(c.file, kb.String()); ok {
		b.WriteString(v)
	}
}

func (c *condDBM) Eval(res *Resources) bool {
	var b strings.Builder
	c.AppendValue(&b, res)
	if b.Len() == 0 {
		return false
	}
	return c.m.Test(b.String(), res)
}

// condInternalTxn matches host-internal transactions.
type condInternalTxn struct{ condBase }

func (c *condInternalTxn) Eval(res *Resources) bool { return res.Host.IsInternal() }

func (c *condInternalTxn) AppendValue(b *strings.Builder, res *Resources) {
	if res.Host.IsInternal() {
		b.WriteString("1")
	}
}

// ipQual selects which address the IP condition reads.
type ipQual int

const (
	ipQualClient ipQual = iota
	ipQualInbound
	ipQualServer
	ipQualOutbound
)

// condIP matches a transaction address against ranges or a string matcher.
type condIP struct {
	condBase
	qual   ipQual
	ranges *IPMatcher
	m      *StringMatcher
}

func newCondIP(p *LineParser, qual string) (Condition, error) {
	c := &condIP{}
	if err := c.initialize(p); err != nil {
		return nil, err
	}
	switch qual {
	case "CLIENT", "":
		c.qual = ipQualClient
	case "INBOUND":
		c.qual = ipQualInbound
	case "SERVER":
		c.qual = ipQualServer
	case "OUTBOUND":
		c.qual = ipQualOutbound
	default:
		return nil, &SyntaxError{Msg: "invalid IP qualifier", Token: qual}
	}
	// Range lists precompile when the argument looks like one; otherwise
	// the address is matched as a string.
	if c.op == MatchEqual || c.op == MatchSet {
		if ranges, err := NewIPMatcher(c.arg); err == nil {
			c.ranges = ranges
			return c, nil
		}
	}
	m, err := c.stringMatcher()
	if err != nil {
		return nil, err
	}
	c.m = m
	return c, nil
}

func addrIP(a net.Addr) net.IP {
	switch t := a.(type) {
	case *net.TCPAddr:
		return t.IP
	case *net.UDPAddr:
		return t.IP
	case *net.IPAddr:
		return t.IP
	}
	if a != nil {
		if host, _, err := net.SplitHostPort(a.String()); err == nil {
			return net.ParseIP(host)
		}
		return net.ParseIP(a.String())
	}
	return nil
}

func addrPort(a net.Addr) int {
	switch t := a.(type) {
	case *net.TCPAddr:
		return t.Port
	case *net.UDPAddr:
		return t.Port
	}
	if a != nil {
		if _, port, err := net.SplitHostPort(a.String()); err == nil {
			if p, err := strconv.Atoi(port); err == nil {
				return p
			}
		}
	}
	return 0
}

func (c *condIP) addr(res *Resources) net.Addr {
	switch c.qual {
	case ipQualInbound:
		// The host surfaces the proxy-protocol address through ClientAddr
		// when the inbound source selector asks for it.
		return res.Host.ClientAddr()
	case ipQualServer:
		return res.Host.ServerAddr()
	case ipQualOutbound:
		return res.Host.OutboundLocalAddr()
	}
	return res.Host.ClientAddr()
}

func (c *condIP) AppendValue(b *strings.Builder, res *Resources) {
	if ip := addrIP(c.addr(res)); ip != nil {
		b.WriteString(ip.String())
	}
}

func (c *condIP) Eval(res *Resources) bool {
	ip := addrIP(c.addr(res))
	if ip == nil {
		return false
	}
	if c.ranges != nil {
		return c.ranges.Test(ip)
	}
	return c.m.Test(ip.String(), res)
}

// condTxnCount matches the transaction count on the inbound session.
type condTxnCount struct {
	condBase
	m *IntMatcher
}

func newCondTxnCount(p *LineParser) (Condition, error) {
	c := &condTxnCount{}
	if err := c.initialize(p); err != nil {
		return nil, err
	}
	m, err := c.intMatcher()
	if err != nil {
		return nil, err
	}
	c.m = m
	return c, nil
}

func (c *condTxnCount) Eval(res *Resources) bool {
	return c.m.Test(int64(res.Host.TxnCount()))
}

func (c *condTxnCount) AppendValue(b *strings.Builder, res *Resources) {
	b.WriteString(strconv.Itoa(res.Host.TxnCount()))
}

// condSsnTxnCount matches the session's transaction count.
type condSsnTxnCount struct {
	condBase
	m *IntMatcher
}

func newCondSsnTxnCount(p *LineParser) (Condition, error) {
	c := &condSsnTxnCount{}
	if err := c.initialize(p); err != nil {
		return nil, err
	}
	m, err := c.intMatcher()
	if err != nil {
		return nil, err
	}
	c.m = m
	return c, nil
}

func (c *condSsnTxnCount) Eval(res *Resources) bool {
	return c.m.Test(int64(res.Host.SsnTxnCount()))
}

func (c *condSsnTxnCount) AppendValue(b *strings.Builder, res *Resources) {
	b.WriteString(strconv.Itoa(res.Host.SsnTxnCount()))
}

// nowQual selects a component of the current time.
type nowQual int

const (
	nowQualEpoch nowQual = iota
	nowQualYear
	nowQualMonth
	nowQualDay
	nowQualHour
	nowQualMinute
	nowQualWeekday
	nowQualYearday
)

// condNow matches a component of the current time, in the configured
// timezone.
type condNow struct {
	condBase
	qual nowQual
	m    *IntMatcher
}

func newCondNow(p *LineParser, qual string) (Condition, error) {
	c := &condNow{}
	if err := c.initialize(p); err != nil {
		return nil, err
	}
	switch qual {
	case "", "EPOCH":
		c.qual = nowQualEpoch
	case "YEAR":
		c.qual = nowQualYear
	case "MONTH":
		c.qual = nowQualMonth
	case "DAY":
		c.qual = nowQualDay
	case "HOUR":
		c.qual = nowQualHour
	case "MINUTE":
		c.qual = nowQualMinute
	case "WEEKDAY":
		c.qual = nowQualWeekday
	case "YEARDAY":
		c.qual = nowQualYearday
	default:
		return nil, &SyntaxError{Msg: "invalid NOW qualifier", Token: qual}
	}
	m, err := c.intMatcher()
	if err != nil {
		return nil, err
	}
	c.m = m
	return c, nil
}

func (c *condNow) value(res *Resources) int64 {
	now := time.Now()
	if res.Timezone == config.TimezoneGMT {
		now = now.UTC()
	}
	switch c.qual {
	case nowQualYear:
		return int64(now.Year())
	case nowQualMonth:
		return int64(now.Month())
	case nowQualDay:
		return int64(now.Day())
	case nowQualHour:
		return int64(now.Hour())
	case nowQualMinute:
		return int64(now.Minute())
	case nowQualWeekday:
		return int64(now.Weekday())
	case nowQualYearday:
		return int64(now.YearDay())
	}
	return now.Unix()
}

func (c *condNow) Eval(res *Resources) bool {
	return c.m.Test(c.value(res))
}

func (c *condNow) AppendValue(b *strings.Builder, res *Resources) {
	b.WriteString(strconv.FormatInt(c.value(res), 10))
}

// idQual selects which identifier the ID condition produces.
type idQual int

const (
	idQualRequest idQual = iota
	idQualProcess
	idQualUnique
)

var processUUID = fmt.Sprintf("%08x-%04x", time.Now().Unix(), os.Getpid())

// condID matches the request, process or unique identifier.
type condID struct {
	condBase
	qual idQual
	m    *StringMatcher
}

func newCondID(p *LineParser, qual string) (Condition, error) {
	c := &condID{}
	if err := c.initialize(p); err != nil {
		return nil, err
	}
	switch qual {
	case "REQUEST", "":
		c.qual = idQualRequest
	case "PROCESS":
		c.qual = idQualProcess
	case "UNIQUE":
		c.qual = idQualUnique
	default:
		return nil, &SyntaxError{Msg: "invalid ID qualifier", Token: qual}
	}
	m, err := c.stringMatcher()
	if err != nil {
		return nil, err
	}
	c.m = m
	return c, nil
}

func (c *condID) AppendValue(b *strings.Builder, res *Resources) {
	switch c.qual {
	case idQualProcess:
		b.WriteString(processUUID)
	case idQualUnique:
		b.WriteString(processUUID)
		b.WriteByte('-')
		b.WriteString(strconv.FormatUint(res.Host.RequestID(), 10))
	default:
		b.WriteString(strconv.FormatUint(res.Host.RequestID(), 10))
	}
}

func (c *condID) Eval(res *Resources) bool {
	var b strings.Builder
	c.AppendValue(&b, res)
	return c.m.Test(b.String(), res)
}

// condCidr matches the client address masked to the configured prefix
// lengths.
type condCidr struct {
	condBase
	v4len int
	v6len int
	m     *StringMatcher
}

func newCondCidr(p *LineParser, qual string) (Condition, error) {
	c := &condCidr{v4len: 24, v6len: 48}
	if err := c.initialize(p); err != nil {
		return nil, err
	}
	if qual != "" {
		parts := strings.SplitN(qual, ",", 2)
		n, err := strconv.Atoi(parts[0])
		if err != nil || n < 0 || n > 32 {
			return nil, &SyntaxError{Msg: "invalid CIDR v4 length", Token: qual}
		}
		c.v4len = n
		if len(parts) == 2 {
			n, err = strconv.Atoi(parts[1])
			if err != nil || n < 0 || n > 128 {
				return nil, &SyntaxError{Msg: "invalid CIDR v6 length", Token: qual}
			}
			c.v6len = n
		}
	}
	m, err := c.stringMatcher()
	if err != nil {
		return nil, err
	}
	c.m = m
	return c, nil
}

func (c *condCidr) AppendValue(b *strings.Builder, res *Resources) {
	ip := addrIP(res.Host.ClientAddr())
	if ip == nil {
		return
	}
	if v4 := ip.To4(); v4 != nil {
		b.WriteString(v4.Mask(net.CIDRMask(c.v4len, 32)).String())
	} else {
		b.WriteString(ip.Mask(net.CIDRMask(c.v6len, 128)).String())
	}
}

func (c *condCidr) Eval(res *Resources) bool {
	var b strings.Builder
	c.AppendValue(&b, res)
	if b.Len() == 0 {
		return false
	}
	return c.m.Test(b.String(), res)
}

// netQual selects a network-session fact for INBOUND.
type netQual int

const (
	netQualLocalAddr netQual = iota
	netQualLocalPort
	netQualRemoteAddr
	netQualRemotePort
	netQualTLS
	netQualH2
	netQualIPv4
	netQualIPv6
	netQualIPFamily
	netQualStack
)

func parseNetQualifier(q string) (netQual, error) {
	switch q {
	case "LOCAL-ADDR":
		return netQualLocalAddr, nil
	case "LOCAL-PORT":
		return netQualLocalPort, nil
	case "REMOTE-ADDR":
		return netQualRemoteAddr, nil
	case "REMOTE-PORT":
		return netQualRemotePort, nil
	case "TLS":
		return netQualTLS, nil
	case "H2":
		return netQualH2, nil
	case "IPV4":
		return netQualIPv4, nil
	case "IPV6":
		return netQualIPv6, nil
	case "IP-FAMILY":
		return netQualIPFamily, nil
	case "STACK":
		return netQualStack, nil
	}
	return 0, &SyntaxError{Msg: "invalid INBOUND qualifier", Token: q}
}

// appendInbound writes an inbound network-session fact; it is shared with
// the variable expander.
func appendInbound(b *strings.Builder, res *Resources, q netQual) {
	switch q {
	case netQualLocalAddr:
		if ip := addrIP(res.Host.InboundLocalAddr()); ip != nil {
			b.WriteString(ip.String())
		}
	case netQualLocalPort:
		b.WriteString(strconv.Itoa(addrPort(res.Host.InboundLocalAddr())))
	case netQualRemoteAddr:
		if ip := addrIP(res.Host.ClientAddr()); ip != nil {
			b.WriteString(ip.String())
		}
	case netQualRemotePort:
		b.WriteString(strconv.Itoa(addrPort(res.Host.ClientAddr())))
	case netQualTLS:
		b.WriteString(res.Host.TLSProtocol())
	case netQualH2:
		if res.Host.HTTPVersion() == "h2" {
			b.WriteString("h2")
		}
	case netQualIPv4:
		if ip := addrIP(res.Host.ClientAddr()); ip != nil && ip.To4() != nil {
			b.WriteString("ipv4")
		}
	case netQualIPv6:
		if ip := addrIP(res.Host.ClientAddr()); ip != nil && ip.To4() == nil {
			b.WriteString("ipv6")
		}
	case netQualIPFamily:
		if ip := addrIP(res.Host.ClientAddr()); ip != nil {
			if ip.To4() != nil {
				b.WriteString("ipv4")
			} else {
				b.WriteString("ipv6")
			}
		}
	case netQualStack:
		parts := make([]string, 0, 3)
		if ip := addrIP(res.Host.ClientAddr()); ip != nil {
			if ip.To4() != nil {
				parts = append(parts, "ipv4")
			} else {
				parts = append(parts, "ipv6")
			}
		}
		if tls := res.Host.TLSProtocol(); tls != "" {
			parts = append(parts, tls)
		}
		parts = append(parts, res.Host.HTTPVersion())
		b.WriteString(strings.Join(parts, ","))
	}
}

// condInbound matches inbound network-session facts.
type condInbound struct {
	condBase
	qual netQual
	m    *StringMatcher
}

func newCondInbound(p *LineParser, qual string) (Condition, error) {
	c := &condInbound{}
	if err := c.initialize(p); err != nil {
		return nil, err
	}
	q, err := parseNetQualifier(qual)
	if err != nil {
		return nil, err
	}
	c.qual = q
	m, err := c.stringMatcher()
	if err != nil {
		return nil, err
	}
	c.m = m
	return c, nil
}

func (c *condInbound) AppendValue(b *strings.Builder, res *Resources) {
	appendInbound(b, res, c.qual)
}

func (c *condInbound) Eval(res *Resources) bool {
	var b strings.Builder
	c.AppendValue(&b, res)
	if c.arg == "" {
		// No comparand: true when the fact is non-empty.
		return b.Len() > 0
	}
	return c.m.Test(b.String(), res)
}

// condTcpInfo matches a TCP_INFO field of the inbound connection.
type condTcpInfo struct {
	condBase
	field string
	m     *IntMatcher
}

func newCondTcpInfo(p *LineParser, qual string) (Condition, error) {
	c := &condTcpInfo{field: qual}
	c.allowed = []HookID{HookTxnStart, HookSendResponse, HookTxnClose}
	if err := c.initialize(p); err != nil {
		return nil, err
	}
	switch qual {
	case "", "rtt", "rttvar", "cwnd", "retrans":
	default:
		return nil, &SyntaxError{Msg: "invalid TCP-INFO qualifier", Token: qual}
	}
	if c.arg != "" {
		m, err := c.intMatcher()
		if err != nil {
			return nil, err
		}
		c.m = m
	}
	return c, nil
}

func (c *condTcpInfo) value(res *Resources) (int64, bool) {
	ti, ok := res.Host.TCPInfo()
	if !ok {
		return 0, false
	}
	switch c.field {
	case "rttvar":
		return int64(ti.RTTVar), true
	case "cwnd":
		return int64(ti.SndCwnd), true
	case "retrans":
		return int64(ti.Retrans), true
	}
	return int64(ti.RTT), true
}

func (c *condTcpInfo) Eval(res *Resources) bool {
	v, ok := c.value(res)
	if !ok {
		return false
	}
	if c.m == nil {
		return true
	}
	return c.m.Test(v)
}

func (c *condTcpInfo) AppendValue(b *strings.Builder, res *Resources) {
	if v, ok := c.value(res); ok {
		b.WriteString(strconv.FormatInt(v, 10))
	}
}

// condCache matches the host's cache-lookup status string.
type condCache struct {
	condBase
	m *StringMatcher
}

func newCondCache(p *LineParser) (Condition, error) {
	c := &condCache{}
	c.allowed = []HookID{HookSendRequest, HookReadResponse, HookSendResponse, HookTxnClose}
	if err := c.initialize(p); err != nil {
		return nil, err
	}
	m, err := c.stringMatcher()
	if err != nil {
		return nil, err
	}
	c.m = m
	return c, nil
}

func (c *condCache) AppendValue(b *strings.Builder, res *Resources) {
	b.WriteString(res.Host.CacheStatus())
}

func (c *condCache) Eval(res *Resources) bool {
	var b strings.Builder
	c.AppendValue(&b, res)
	return c.m.Test(b.String(), res)
}

// condNextHop matches the parent-selection result.
type condNextHop struct {
	condBase
	port bool
	m    *StringMatcher
}

func newCondNextHop(p *LineParser, qual string) (Condition, error) {
	c := &condNextHop{}
	c.allowed = []HookID{HookSendRequest, HookReadResponse, HookSendResponse, HookTxnClose}
	if err := c.initialize(p); err != nil {
		return nil, err
	}
	switch qual {
	case "HOST", "":
	case "PORT":
		c.port = true
	default:
		return nil, &SyntaxError{Msg: "invalid NEXT-HOP qualifier", Token: qual}
	}
	m, err := c.stringMatcher()
	if err != nil {
		return nil, err
	}
	c.m = m
	return c, nil
}

func (c *condNextHop) AppendValue(b *strings.Builder, res *Resources) {
	host, port := res.Host.NextHop()
	if c.port {
		b.WriteString(strconv.Itoa(port))
	} else {
		b.WriteString(host)
	}
}

func (c *condNextHop) Eval(res *Resources) bool {
	var b strings.Builder
	c.AppendValue(&b, res)
	return c.m.Test(b.String(), res)
}

// condHTTPCntl matches a host HTTP control flag.
type condHTTPCntl struct {
	condBase
	cntl string
}

func newCondHTTPCntl(p *LineParser, qual string) (Condition, error) {
	c := &condHTTPCntl{cntl: qual}
	if err := c.initialize(p); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *condHTTPCntl) Eval(res *Resources) bool {
	return res.Host.HTTPCntl(c.cntl)
}

func (c *condHTTPCntl) AppendValue(b *strings.Builder, res *Resources) {
	if res.Host.HTTPCntl(c.cntl) {
		b.WriteString("TRUE")
	} else {
		b.WriteString("FALSE")
	}
}

// Transaction-state layout inside the shared 64-bit word: 16 flag bits,
// four int8 lanes at bits 16-47 and one int16 lane at bits 48-63.
const (
	numStateFlags = 16
	numStateInt8s = 4
)

func stateInt8Shift(ix int) uint { return uint(16 + 8*ix) }

// condStateFlag matches one transaction-state flag bit.
type condStateFlag struct {
	condBase
	ix int
}

func newCondStateFlag(p *LineParser, qual string) (Condition, error) {
	c := &condStateFlag{}
	if err := c.initialize(p); err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(qual)
	if err != nil || n < 0 || n >= numStateFlags {
		return nil, &SyntaxError{Msg: "STATE-FLAG index out of range", Token: qual}
	}
	c.ix = n
	return c, nil
}

func (c *condStateFlag) Eval(res *Resources) bool {
	st := res.Host.TxnState()
	return st != nil && *st&(1<<uint(c.ix)) != 0
}

func (c *condStateFlag) AppendValue(b *strings.Builder, res *Resources) {
	if c.Eval(res) {
		b.WriteString("1")
	} else {
		b.WriteString("0")
	}
}

// condStateInt8 matches one int8 lane of the transaction state.
type condStateInt8 struct {
	condBase
	ix int
	m  *IntMatcher
}

func newCondStateInt8(p *LineParser, qual string) (Condition, error) {
	c := &condStateInt8{}
	if err := c.initialize(p); err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(qual)
	if err != nil || n < 0 || n >= numStateInt8s {
		return nil, &SyntaxError{Msg: "STATE-INT8 index out of range", Token: qual}
	}
	c.ix = n
	m, err := c.intMatcher()
	if err != nil {
		return nil, err
	}
	c.m = m
	return c, nil
}

func (c *condStateInt8) value(res *Resources) int64 {
	st := res.Host.TxnState()
	if st == nil {
		return 0
	}
	return int64((*st >> stateInt8Shift(c.ix)) & 0xFF)
}

func (c *condStateInt8) Eval(res *Resources) bool {
	return c.m.Test(c.value(res))
}

func (c *condStateInt8) AppendValue(b *strings.Builder, res *Resources) {
	b.WriteString(strconv.FormatInt(c.value(res), 10))
}

// condStateInt16 matches the int16 lane of the transaction state.
type condStateInt16 struct {
	condBase
	m *IntMatcher
}

func newCondStateInt16(p *LineParser) (Condition, error) {
	c := &condStateInt16{}
	if err := c.initialize(p); err != nil {
		return nil, err
	}
	m, err := c.intMatcher()
	if err != nil {
		return nil, err
	}
	c.m = m
	return c, nil
}

func (c *condStateInt16) value(res *Resources) int64 {
	st := res.Host.TxnState()
	if st == nil {
		return 0
	}
	return int64((*st >> 48) & 0xFFFF)
}

func (c *condStateInt16) Eval(res *Resources) bool {
	return c.m.Test(c.value(res))
}

func (c *condStateInt16) AppendValue(b *strings.Builder, res *Resources) {
	b.WriteString(strconv.FormatInt(c.value(res), 10))
}

// condLastCapture produces a capture group of the most recent regex match.
type condLastCapture struct {
	condBase
	ix int
	m  *StringMatcher
}

func newCondLastCapture(p *LineParser, qual string) (Condition, error) {
	c := &condLastCapture{}
	if err := c.initialize(p); err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(qual)
	if err != nil || n < 0 {
		return nil, &SyntaxError{Msg: "LAST-CAPTURE index out of range", Token: qual}
	}
	c.ix = n
	m, err := c.stringMatcher()
	if err != nil {
		return nil, err
	}
	c.m = m
	return c, nil
}

func (c *condLastCapture) AppendValue(b *strings.Builder, res *Resources) {
	b.WriteString(res.Capture(c.ix))
}

func (c *condLastCapture) Eval(res *Resources) bool {
	v := res.Capture(c.ix)
	if c.arg == "" {
		return v != ""
	}
	return c.m.Test(v, res)
}

// condStringLiteral is a literal template segment.
type condStringLiteral struct {
	condBase
	text string
}

func (c *condStringLiteral) Eval(*Resources) bool { return true }

func (c *condStringLiteral) AppendValue(b *strings.Builder, _ *Resources) {
	b.WriteString(c.text)
}

// condExpandableString is a literal run through the %<...> variable
// expander at evaluation time.
type condExpandableString struct {
	condBase
	text string
}

func (c *condExpandableString) Eval(*Resources) bool { return true }

func (c *condExpandableString) AppendValue(b *strings.Builder, res *Resources) {
	b.WriteString(NewVariableExpander(c.text).Expand(res))
}

// condGroup wraps a nested condition group opened with %{GROUP}.
type condGroup struct {
	condBase
	group *CondGroup
}

func newCondGroup(p *LineParser) (*condGroup, error) {
	c := &condGroup{group: &CondGroup{}}
	if err := c.initialize(p); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *condGroup) Eval(res *Resources) bool {
	return c.group.Eval(res)
}

func (c *condGroup) AppendValue(b *strings.Builder, res *Resources) {
	if c.Eval(res) {
		b.WriteString("TRUE")
	} else {
		b.WriteString("FALSE")
	}
}

func (c *condGroup) ResourceIDs() ResourceIDs {
	return c.rsrc | c.group.ResourceIDs()
}
