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
	"net"
	"strconv"
	"strings"

	"github.com/Comcast/hrw/internal/util/log"
	"github.com/Comcast/hrw/internal/util/metrics"
)

// expandValue expands an operator value slot, running the variable
// expander when the template still carries %<...> tokens.
func expandValue(v *Value, res *Resources) string {
	var b strings.Builder
	v.AppendValue(&b, res)
	s := b.String()
	if v.NeedExpansion() {
		s = NewVariableExpander(s).Expand(res)
	}
	return s
}

// opSetHeader overwrites the first occurrence of a header and deletes its
// dups; an empty expansion is a no-op.
type opSetHeader struct {
	operBase
	header string
	value  Value
}

func newOpSetHeader(p *LineParser) (Operator, error) {
	o := &opSetHeader{header: p.Arg()}
	if err := o.initialize(p); err != nil {
		return nil, err
	}
	if err := o.value.Set(p.Value()); err != nil {
		return nil, err
	}
	o.require(headerResources | o.value.ResourceIDs())
	return o, nil
}

// headerResources is what the header operators need: whichever header pair
// the bound hook selects.
const headerResources = RsrcServerResponseHeaders | RsrcServerRequestHeaders |
	RsrcClientRequestHeaders | RsrcClientResponseHeaders

func (o *opSetHeader) Exec(res *Resources) {
	if res.Hdr == nil {
		return
	}
	value := expandValue(&o.value, res)
	// Never set an empty header.
	if value == "" {
		log.Trace("would set header to empty value, skipping", log.Pairs{"header": o.header})
		return
	}
	metrics.OperatorsExecuted.WithLabelValues("set-header").Inc()

	f := res.Hdr.FieldFind(o.header)
	if f == nil {
		res.Hdr.Attach(o.header, value)
		return
	}
	res.Hdr.SetValue(f, value)
	for d := f.NextDup(); d != nil; {
		next := d.NextDup()
		res.Hdr.Delete(d)
		d = next
	}
}

// opAddHeader always appends a new field, never merges.
type opAddHeader struct {
	operBase
	header string
	value  Value
}

func newOpAddHeader(p *LineParser) (Operator, error) {
	o := &opAddHeader{header: p.Arg()}
	if err := o.initialize(p); err != nil {
		return nil, err
	}
	if err := o.value.Set(p.Value()); err != nil {
		return nil, err
	}
	o.require(headerResources | o.value.ResourceIDs())
	return o, nil
}

func (o *opAddHeader) Exec(res *Resources) {
	if res.Hdr == nil {
		return
	}
	value := expandValue(&o.value, res)
	if value == "" {
		log.Trace("would add header with empty value, skipping", log.Pairs{"header": o.header})
		return
	}
	metrics.OperatorsExecuted.WithLabelValues("add-header").Inc()
	res.Hdr.Attach(o.header, value)
}

// opRMHeader deletes all dups of a header.
type opRMHeader struct {
	operBase
	header string
}

func newOpRMHeader(p *LineParser) (Operator, error) {
	o := &opRMHeader{header: p.Arg()}
	if err := o.initialize(p); err != nil {
		return nil, err
	}
	o.require(headerResources)
	return o, nil
}

func (o *opRMHeader) Exec(res *Resources) {
	if res.Hdr == nil {
		return
	}
	metrics.OperatorsExecuted.WithLabelValues("rm-header").Inc()
	res.Hdr.DeleteAllDups(o.header)
}

// opSetStatus sets the response status; the reason phrase is left unchanged.
type opSetStatus struct {
	operBase
	status Value
}

func newOpSetStatus(p *LineParser) (Operator, error) {
	o := &opSetStatus{}
	o.allowed = []HookID{HookReadResponse, HookSendResponse, HookReadRequest, HookPreRemap, HookRemap}
	if err := o.initialize(p); err != nil {
		return nil, err
	}
	if err := o.status.Set(p.Arg()); err != nil {
		return nil, err
	}
	o.require(RsrcServerResponseHeaders | RsrcClientResponseHeaders | RsrcResponseStatus)
	return o, nil
}

func (o *opSetStatus) Exec(res *Resources) {
	metrics.OperatorsExecuted.WithLabelValues("set-status").Inc()
	res.Host.SetStatus(o.status.GetInt())
	res.RespStatus = o.status.GetInt()
}

// opSetStatusReason sets the response reason phrase.
type opSetStatusReason struct {
	operBase
	reason Value
}

func newOpSetStatusReason(p *LineParser) (Operator, error) {
	o := &opSetStatusReason{}
	o.allowed = []HookID{HookReadResponse, HookSendResponse}
	if err := o.initialize(p); err != nil {
		return nil, err
	}
	if err := o.reason.Set(p.Arg()); err != nil {
		return nil, err
	}
	o.require(RsrcClientResponseHeaders | RsrcServerResponseHeaders)
	return o, nil
}

func (o *opSetStatusReason) Exec(res *Resources) {
	reason := expandValue(&o.reason, res)
	if reason == "" {
		return
	}
	metrics.OperatorsExecuted.WithLabelValues("set-status-reason").Inc()
	res.Host.SetStatusReason(reason)
}

// opSetDestination mutates one component of the effective request URL.
type opSetDestination struct {
	operBase
	qual  urlQual
	value Value
}

func newOpSetDestination(p *LineParser) (Operator, error) {
	o := &opSetDestination{}
	if err := o.initialize(p); err != nil {
		return nil, err
	}
	q, err := parseURLQualifier(p.Arg())
	if err != nil {
		return nil, err
	}
	o.qual = q
	if err := o.value.Set(p.Value()); err != nil {
		return nil, err
	}
	o.require(RsrcClientRequestHeaders | RsrcServerRequestHeaders | o.value.ResourceIDs())
	return o, nil
}

func (o *opSetDestination) Exec(res *Resources) {
	u := res.Host.EffectiveURL()
	if res.RRI != nil && res.RRI.RequestURL != nil {
		u = res.RRI.RequestURL
	}
	if u == nil {
		log.Debug("set-destination has no request url to mutate", log.Pairs{})
		return
	}
	metrics.OperatorsExecuted.WithLabelValues("set-destination").Inc()

	value := expandValue(&o.value, res)

	// Never set an empty destination component.
	switch o.qual {
	case urlQualHost:
		if value == "" {
			return
		}
		u.SetHost(value, true)
		res.ChangedURL = true
	case urlQualPath:
		if value == "" {
			return
		}
		u.SetPath(strings.TrimPrefix(value, "/"), true)
		res.ChangedURL = true
	case urlQualQuery:
		if value == "" {
			return
		}
		if o.mods&OperQSA != 0 {
			orig := u.Query()
			if orig != "" {
				value = value + "&" + orig
			}
		}
		u.SetQuery(value, true)
		res.ChangedURL = true
	case urlQualPort:
		port := o.value.GetInt()
		if port <= 0 || port > 0xFFFF {
			log.Debug("would set destination port out of range, skipping", log.Pairs{"port": port})
			return
		}
		u.SetPort(uint16(port))
		res.ChangedURL = true
	case urlQualScheme:
		if value == "" {
			return
		}
		u.SetScheme(value, true)
		res.ChangedURL = true
	case urlQualURL:
		if value == "" {
			return
		}
		if err := u.ParseLenient(value); err == nil {
			res.ChangedURL = true
		}
	}
}

// opRMDestination clears one component of the effective request URL.
type opRMDestination struct {
	operBase
	qual urlQual
}

func newOpRMDestination(p *LineParser) (Operator, error) {
	o := &opRMDestination{}
	if err := o.initialize(p); err != nil {
		return nil, err
	}
	q, err := parseURLQualifier(p.Arg())
	if err != nil {
		return nil, err
	}
	o.qual = q
	o.require(RsrcClientRequestHeaders)
	return o, nil
}

func (o *opRMDestination) Exec(res *Resources) {
	u := res.Host.EffectiveURL()
	if res.RRI != nil && res.RRI.RequestURL != nil {
		u = res.RRI.RequestURL
	}
	if u == nil {
		return
	}
	metrics.OperatorsExecuted.WithLabelValues("rm-destination").Inc()
	switch o.qual {
	case urlQualQuery:
		u.SetQuery("", true)
		res.ChangedURL = true
	case urlQualPath:
		u.SetPath("", true)
		res.ChangedURL = true
	case urlQualPort:
		u.SetPort(0)
		res.ChangedURL = true
	}
}

const redirectBodyHead = "<HTML>\n<HEAD>\n<TITLE>Document Has Moved</TITLE>\n</HEAD>\n" +
	"<BODY BGCOLOR=\"white\" FGCOLOR=\"black\">\n" +
	"<H1>Document Has Moved</H1>\n<HR>\n<FONT FACE=\"Helvetica,Arial\"><B>\n" +
	"Description: The document you requested has moved to a new location." +
	" The new location is \""

const redirectBodyTail = "\".\n</B></FONT>\n<HR>\n</BODY>\n"

// opSetRedirect sets a 301/302 redirect: in a remap context it rewrites the
// request URL and status; otherwise it synthesises a Location header and a
// small HTML body.
type opSetRedirect struct {
	operBase
	status   Value
	location Value
}

func newOpSetRedirect(p *LineParser) (Operator, error) {
	o := &opSetRedirect{}
	if err := o.initialize(p); err != nil {
		return nil, err
	}
	if err := o.status.Set(p.Arg()); err != nil {
		return nil, err
	}
	if err := o.location.Set(p.Value()); err != nil {
		return nil, err
	}
	if s := o.status.GetInt(); s != 301 && s != 302 {
		return nil, &SyntaxError{Msg: "unsupported redirect status", Token: p.Arg()}
	}
	o.require(RsrcServerResponseHeaders | RsrcClientResponseHeaders | RsrcClientRequestHeaders | RsrcResponseStatus | o.location.ResourceIDs())
	return o, nil
}

func (o *opSetRedirect) Exec(res *Resources) {
	value := expandValue(&o.location, res)

	srcURL := res.Host.PristineURL()
	if res.RRI != nil && res.RRI.RequestURL != nil {
		srcURL = res.RRI.RequestURL
	}

	// Replace %{PATH} with the original request path.
	if pos := strings.Index(value, "%{PATH}"); pos >= 0 {
		path := ""
		if srcURL != nil {
			path = srcURL.Path()
		}
		value = value[:pos] + path + value[pos+len("%{PATH}"):]
	}

	// Append the original query string.
	if o.mods&OperQSA != 0 && srcURL != nil {
		if q := srcURL.Query(); q != "" {
			connector := "?"
			if strings.Contains(value, "?") {
				connector = "&"
			}
			value = value + connector + q
		}
	}

	metrics.OperatorsExecuted.WithLabelValues("set-redirect").Inc()
	status := o.status.GetInt()

	if res.RRI != nil && res.RRI.RequestURL != nil {
		if err := res.RRI.RequestURL.ParseLenient(value); err != nil {
			log.Error("set-redirect could not parse location", log.Pairs{"location": value, "detail": err.Error()})
			return
		}
		res.Host.SetStatus(status)
		res.RespStatus = status
		res.ChangedURL = true
		res.RRI.Redirect = true
		return
	}

	hdr := res.Hdr
	if hdr == nil {
		hdr = res.Host.ClientResponse()
	}
	if hdr != nil {
		hdr.DeleteAllDups("Location")
		hdr.Attach("Location", value)
	}
	res.Host.SetStatus(status)
	res.RespStatus = status
	res.Host.SetErrorBody(redirectBodyHead+value+redirectBodyTail, "text/html")
}

// opNoOp does nothing.
type opNoOp struct{ operBase }

func (o *opNoOp) Exec(*Resources) {}

// opSetTimeoutOut adjusts one of the outbound timeouts.
type opSetTimeoutOut struct {
	operBase
	kind    TimeoutKind
	timeout Value
}

func newOpSetTimeoutOut(p *LineParser) (Operator, error) {
	o := &opSetTimeoutOut{}
	if err := o.initialize(p); err != nil {
		return nil, err
	}
	switch p.Arg() {
	case "active":
		o.kind = TimeoutActive
	case "inactive":
		o.kind = TimeoutInactive
	case "connect":
		o.kind = TimeoutConnect
	case "dns":
		o.kind = TimeoutDNS
	default:
		return nil, &SyntaxError{Msg: "unsupported timeout qualifier", Token: p.Arg()}
	}
	if err := o.timeout.Set(p.Value()); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *opSetTimeoutOut) Exec(res *Resources) {
	metrics.OperatorsExecuted.WithLabelValues("set-timeout-out").Inc()
	res.Host.SetTimeout(o.kind, o.timeout.GetInt())
}

// opSkipRemap tells the host to skip remapping.
type opSkipRemap struct {
	operBase
	skip bool
}

func newOpSkipRemap(p *LineParser) (Operator, error) {
	o := &opSkipRemap{}
	o.allowed = []HookID{HookReadRequest}
	if err := o.initialize(p); err != nil {
		return nil, err
	}
	switch p.Arg() {
	case "1", "true", "TRUE":
		o.skip = true
	}
	return o, nil
}

func (o *opSkipRemap) Exec(res *Resources) {
	metrics.OperatorsExecuted.WithLabelValues("skip-remap").Inc()
	res.Host.SetSkipRemap(o.invert(o.skip))
}

// opCounter increments a process-wide non-persistent counter.
type opCounter struct {
	operBase
	name string
}

func newOpCounter(p *LineParser) (Operator, error) {
	o := &opCounter{name: p.Arg()}
	if err := o.initialize(p); err != nil {
		return nil, err
	}
	if o.name == "" {
		return nil, &SyntaxError{Msg: "counter name is empty"}
	}
	// Create the series at compile time so the counter exists at zero.
	metrics.RuleCounters.WithLabelValues(o.name)
	return o, nil
}

func (o *opCounter) Exec(*Resources) {
	metrics.RuleCounters.WithLabelValues(o.name).Inc()
}

// Cookie rewriting happens on the client request Cookie header.

func setCookieValue(header, name, value string) string {
	var parts []string
	found := false
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if eq := strings.IndexByte(part, '='); eq > 0 && part[:eq] == name {
			parts = append(parts, name+"="+value)
			found = true
			continue
		}
		parts = append(parts, part)
	}
	if !found {
		parts = append(parts, name+"="+value)
	}
	return strings.Join(parts, "; ")
}

func rmCookieValue(header, name string) string {
	var parts []string
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if eq := strings.IndexByte(part, '='); eq > 0 && part[:eq] == name {
			continue
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, "; ")
}

// opSetCookie sets or overwrites one cookie in the request Cookie header.
type opSetCookie struct {
	operBase
	name  string
	value Value
	// addOnly makes the operator a no-op when the cookie already exists.
	addOnly bool
}

func newOpSetCookie(p *LineParser, addOnly bool) (Operator, error) {
	o := &opSetCookie{name: p.Arg(), addOnly: addOnly}
	if err := o.initialize(p); err != nil {
		return nil, err
	}
	if err := o.value.Set(p.Value()); err != nil {
		return nil, err
	}
	o.require(RsrcClientRequestHeaders | o.value.ResourceIDs())
	return o, nil
}

func (o *opSetCookie) Exec(res *Resources) {
	hdr := res.ClientReqHdr
	if hdr == nil {
		return
	}
	value := expandValue(&o.value, res)
	tag := "set-cookie"
	if o.addOnly {
		tag = "add-cookie"
	}
	metrics.OperatorsExecuted.WithLabelValues(tag).Inc()

	f := hdr.FieldFind("Cookie")
	if f == nil {
		hdr.Attach("Cookie", o.name+"="+value)
		return
	}
	current := hdr.Value(f)
	if o.addOnly {
		if _, exists := cookieValue(current, o.name); exists {
			return
		}
	}
	hdr.SetValue(f, setCookieValue(current, o.name, value))
}

// opRMCookie removes one cookie from the request Cookie header.
type opRMCookie struct {
	operBase
	name string
}

func newOpRMCookie(p *LineParser) (Operator, error) {
	o := &opRMCookie{name: p.Arg()}
	if err := o.initialize(p); err != nil {
		return nil, err
	}
	o.require(RsrcClientRequestHeaders)
	return o, nil
}

func (o *opRMCookie) Exec(res *Resources) {
	hdr := res.ClientReqHdr
	if hdr == nil {
		return
	}
	f := hdr.FieldFind("Cookie")
	if f == nil {
		return
	}
	metrics.OperatorsExecuted.WithLabelValues("rm-cookie").Inc()
	rest := rmCookieValue(hdr.Value(f), o.name)
	if rest == "" {
		hdr.Delete(f)
		return
	}
	hdr.SetValue(f, rest)
}

// opSetConfig sets a host per-transaction config overridable.
type opSetConfig struct {
	operBase
	key   string
	value Value
}

func newOpSetConfig(p *LineParser) (Operator, error) {
	o := &opSetConfig{key: p.Arg()}
	if err := o.initialize(p); err != nil {
		return nil, err
	}
	if err := o.value.Set(p.Value()); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *opSetConfig) Exec(res *Resources) {
	metrics.OperatorsExecuted.WithLabelValues("set-config").Inc()
	if err := res.Host.ConfigSet(o.key, expandValue(&o.value, res)); err != nil {
		log.ErrorOnce("set-config."+o.key, "no such host config", log.Pairs{"config": o.key, "detail": err.Error()})
	}
}

// opSetConnDSCP marks the client connection's DSCP.
type opSetConnDSCP struct {
	operBase
	value Value
}

func newOpSetConnDSCP(p *LineParser) (Operator, error) {
	o := &opSetConnDSCP{}
	o.allowed = []HookID{HookReadRequest, HookSendResponse, HookRemap}
	if err := o.initialize(p); err != nil {
		return nil, err
	}
	if err := o.value.Set(p.Arg()); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *opSetConnDSCP) Exec(res *Resources) {
	metrics.OperatorsExecuted.WithLabelValues("set-conn-dscp").Inc()
	res.Host.SetConnDSCP(o.value.GetInt())
}

// opSetConnMark marks the client connection.
type opSetConnMark struct {
	operBase
	value Value
}

func newOpSetConnMark(p *LineParser) (Operator, error) {
	o := &opSetConnMark{}
	o.allowed = []HookID{HookReadRequest, HookSendResponse, HookRemap}
	if err := o.initialize(p); err != nil {
		return nil, err
	}
	if err := o.value.Set(p.Arg()); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *opSetConnMark) Exec(res *Resources) {
	metrics.OperatorsExecuted.WithLabelValues("set-conn-mark").Inc()
	res.Host.SetConnMark(o.value.GetInt())
}

// opSetDebug turns on transaction debugging.
type opSetDebug struct{ operBase }

func newOpSetDebug(p *LineParser) (Operator, error) {
	o := &opSetDebug{}
	o.allowed = []HookID{HookReadRequest, HookRemap}
	if err := o.initialize(p); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *opSetDebug) Exec(res *Resources) {
	metrics.OperatorsExecuted.WithLabelValues("set-debug").Inc()
	res.Host.SetDebug(o.invert(true))
}

// opSetBody replaces the response body.
type opSetBody struct {
	operBase
	value Value
}

func newOpSetBody(p *LineParser) (Operator, error) {
	o := &opSetBody{}
	if err := o.initialize(p); err != nil {
		return nil, err
	}
	if err := o.value.Set(p.Arg()); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *opSetBody) Exec(res *Resources) {
	metrics.OperatorsExecuted.WithLabelValues("set-body").Inc()
	res.Host.SetBody(expandValue(&o.value, res))
}

// opSetBodyFrom sources the response body from a URL.
type opSetBodyFrom struct {
	operBase
	value Value
}

func newOpSetBodyFrom(p *LineParser) (Operator, error) {
	o := &opSetBodyFrom{}
	if err := o.initialize(p); err != nil {
		return nil, err
	}
	if err := o.value.Set(p.Arg()); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *opSetBodyFrom) Exec(res *Resources) {
	metrics.OperatorsExecuted.WithLabelValues("set-body-from").Inc()
	res.Host.SetBodyFrom(expandValue(&o.value, res))
}

// opSetHTTPCntl flips a host HTTP control.
type opSetHTTPCntl struct {
	operBase
	cntl string
	flag bool
}

func newOpSetHTTPCntl(p *LineParser) (Operator, error) {
	o := &opSetHTTPCntl{cntl: p.Arg()}
	if err := o.initialize(p); err != nil {
		return nil, err
	}
	switch strings.ToUpper(p.Value()) {
	case "1", "TRUE", "ON":
		o.flag = true
	}
	return o, nil
}

func (o *opSetHTTPCntl) Exec(res *Resources) {
	metrics.OperatorsExecuted.WithLabelValues("set-http-cntl").Inc()
	if !res.Host.SetHTTPCntl(o.cntl, o.invert(o.flag)) {
		log.ErrorOnce("set-http-cntl."+o.cntl, "no such http control", log.Pairs{"control": o.cntl})
	}
}

// opSetPluginCntl forwards a control knob to the host's plugin layer.
type opSetPluginCntl struct {
	operBase
	name  string
	value Value
}

func newOpSetPluginCntl(p *LineParser) (Operator, error) {
	o := &opSetPluginCntl{name: p.Arg()}
	if err := o.initialize(p); err != nil {
		return nil, err
	}
	if err := o.value.Set(p.Value()); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *opSetPluginCntl) Exec(res *Resources) {
	metrics.OperatorsExecuted.WithLabelValues("set-plugin-cntl").Inc()
	if !res.Host.SetPluginCntl(o.name, expandValue(&o.value, res)) {
		log.ErrorOnce("set-plugin-cntl."+o.name, "no such plugin control", log.Pairs{"control": o.name})
	}
}

// opRunPlugin invokes a host-registered plugin with arguments.
type opRunPlugin struct {
	operBase
	plugin string
	args   []string
}

func newOpRunPlugin(p *LineParser) (Operator, error) {
	o := &opRunPlugin{plugin: p.Arg()}
	if err := o.initialize(p); err != nil {
		return nil, err
	}
	if v := p.Value(); v != "" {
		o.args = strings.Fields(v)
	}
	return o, nil
}

func (o *opRunPlugin) Exec(res *Resources) {
	metrics.OperatorsExecuted.WithLabelValues("run-plugin").Inc()
	if !res.Host.RunPlugin(o.plugin, o.args) {
		log.ErrorOnce("run-plugin."+o.plugin, "no such plugin", log.Pairs{"plugin": o.plugin})
	}
}

// opSetStateFlag mutates one transaction-state flag bit.
type opSetStateFlag struct {
	operBase
	ix  int
	set bool
}

func newOpSetStateFlag(p *LineParser) (Operator, error) {
	o := &opSetStateFlag{}
	if err := o.initialize(p); err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(p.Arg())
	if err != nil || n < 0 || n >= numStateFlags {
		return nil, &SyntaxError{Msg: "STATE-FLAG index out of range", Token: p.Arg()}
	}
	o.ix = n
	switch strings.ToUpper(p.Value()) {
	case "", "1", "TRUE", "ON":
		o.set = true
	}
	return o, nil
}

func (o *opSetStateFlag) Exec(res *Resources) {
	st := res.Host.TxnState()
	if st == nil {
		return
	}
	metrics.OperatorsExecuted.WithLabelValues("set-state-flag").Inc()
	if o.invert(o.set) {
		*st |= 1 << uint(o.ix)
	} else {
		*st &^= 1 << uint(o.ix)
	}
}

// opSetStateInt8 writes one int8 lane of the transaction state.
type opSetStateInt8 struct {
	operBase
	ix    int
	value Value
}

func newOpSetStateInt8(p *LineParser) (Operator, error) {
	o := &opSetStateInt8{}
	if err := o.initialize(p); err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(p.Arg())
	if err != nil || n < 0 || n >= numStateInt8s {
		return nil, &SyntaxError{Msg: "STATE-INT8 index out of range", Token: p.Arg()}
	}
	o.ix = n
	if err := o.value.Set(p.Value()); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *opSetStateInt8) Exec(res *Resources) {
	st := res.Host.TxnState()
	if st == nil {
		return
	}
	metrics.OperatorsExecuted.WithLabelValues("set-state-int8").Inc()
	shift := stateInt8Shift(o.ix)
	*st = (*st &^ (0xFF << shift)) | (uint64(uint8(o.value.GetInt())) << shift)
}

// opSetStateInt16 writes the int16 lane of the transaction state.
type opSetStateInt16 struct {
	operBase
	value Value
}

func newOpSetStateInt16(p *LineParser) (Operator, error) {
	o := &opSetStateInt16{}
	if err := o.initialize(p); err != nil {
		return nil, err
	}
	if err := o.value.Set(p.Arg()); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *opSetStateInt16) Exec(res *Resources) {
	st := res.Host.TxnState()
	if st == nil {
		return
	}
	metrics.OperatorsExecuted.WithLabelValues("set-state-int16").Inc()
	*st = (*st &^ (uint64(0xFFFF) << 48)) | (uint64(uint16(o.value.GetInt())) << 48)
}

// opSetEffectiveAddress overrides the client address the host attributes
// the transaction to.
type opSetEffectiveAddress struct {
	operBase
	value Value
}

func newOpSetEffectiveAddress(p *LineParser) (Operator, error) {
	o := &opSetEffectiveAddress{}
	o.allowed = []HookID{HookReadRequest, HookPreRemap, HookRemap}
	if err := o.initialize(p); err != nil {
		return nil, err
	}
	if err := o.value.Set(p.Arg()); err != nil {
		return nil, err
	}
	o.require(o.value.ResourceIDs())
	return o, nil
}

func (o *opSetEffectiveAddress) Exec(res *Resources) {
	addr := expandValue(&o.value, res)
	ip := net.ParseIP(addr)
	if ip == nil {
		log.Debug("set-effective-address could not parse address", log.Pairs{"address": addr})
		return
	}
	metrics.OperatorsExecuted.WithLabelValues("set-effective-address").Inc()
	if err := res.Host.SetEffectiveAddr(ip); err != nil {
		log.Debug("set-effective-address rejected by host", log.Pairs{"address": addr, "detail": err.Error()})
	}
}

// opSetNextHopStrategy selects the host's parent-selection strategy.
type opSetNextHopStrategy struct {
	operBase
	strategy string
}

func newOpSetNextHopStrategy(p *LineParser) (Operator, error) {
	o := &opSetNextHopStrategy{strategy: p.Arg()}
	o.allowed = []HookID{HookReadRequest, HookPreRemap, HookRemap, HookSendRequest}
	if err := o.initialize(p); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *opSetNextHopStrategy) Exec(res *Resources) {
	metrics.OperatorsExecuted.WithLabelValues("set-next-hop-strategy").Inc()
	res.Host.SetNextHopStrategy(o.strategy)
}

// opSetCCAlgorithm selects the congestion-control algorithm for the
// inbound connection.
type opSetCCAlgorithm struct {
	operBase
	alg string
}

func newOpSetCCAlgorithm(p *LineParser) (Operator, error) {
	o := &opSetCCAlgorithm{alg: p.Arg()}
	o.allowed = []HookID{HookTxnStart, HookReadRequest, HookRemap}
	if err := o.initialize(p); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *opSetCCAlgorithm) Exec(res *Resources) {
	metrics.OperatorsExecuted.WithLabelValues("set-cc-alg").Inc()
	res.Host.SetCCAlgorithm(o.alg)
}
