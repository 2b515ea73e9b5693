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

	"github.com/Comcast/hrw/internal/hdrs/mime"
	"github.com/Comcast/hrw/internal/hdrs/url"
)

// ResourceIDs is a bitmask of the per-transaction resources a statement
// needs. The engine gathers the union for a hook before walking its rules.
type ResourceIDs uint32

// Resource bits.
const (
	RsrcNone                  ResourceIDs = 0
	RsrcServerResponseHeaders ResourceIDs = 1 << 0
	RsrcServerRequestHeaders  ResourceIDs = 1 << 1
	RsrcClientRequestHeaders  ResourceIDs = 1 << 2
	RsrcClientResponseHeaders ResourceIDs = 1 << 3
	RsrcResponseStatus        ResourceIDs = 1 << 4
)

// Disposition is what the engine reports back to the host after a hook.
type Disposition int

// Dispositions.
const (
	DispContinue Disposition = iota
	DispNoRemap
	DispDidRemap
)

// TimeoutKind selects which outbound timeout a set-timeout operator adjusts.
type TimeoutKind int

// Outbound timeout kinds.
const (
	TimeoutActive TimeoutKind = iota
	TimeoutInactive
	TimeoutConnect
	TimeoutDNS
)

// TCPInfo is a subset of the kernel's TCP_INFO for the inbound connection.
type TCPInfo struct {
	RTT     uint32 // smoothed RTT, microseconds
	RTTVar  uint32
	SndCwnd uint32
	Retrans uint32
}

// TxnHost is the narrow capability interface the proxy exposes to the
// engine. Everything the conditions read and the operators mutate flows
// through it; the engine performs no I/O of its own.
type TxnHost interface {
	// Header access. Absent headers (e.g. no server response yet) are nil.
	ClientRequest() *mime.Hdr
	ClientResponse() *mime.Hdr
	ServerRequest() *mime.Hdr
	ServerResponse() *mime.Hdr

	// EffectiveURL is the remappable request URL; PristineURL is the URL as
	// the client sent it.
	EffectiveURL() *url.URL
	PristineURL() *url.URL

	Method() string
	Status() int
	SetStatus(status int)
	SetStatusReason(reason string)
	SetErrorBody(body, contentType string)

	// Addresses. Any of these may be nil when the connection leg does not
	// exist (e.g. cache hit).
	ClientAddr() net.Addr
	InboundLocalAddr() net.Addr
	ServerAddr() net.Addr
	OutboundLocalAddr() net.Addr

	// Connection / session facts.
	IsInternal() bool
	TxnCount() int
	SsnTxnCount() int
	CacheStatus() string
	NextHop() (host string, port int)
	TLSProtocol() string
	HTTPVersion() string
	RequestID() uint64
	TCPInfo() (TCPInfo, bool)

	// TxnState returns the transaction-local 64-bit state word the
	// SET-STATE operators and STATE conditions share.
	TxnState() *uint64

	// Side-effect capabilities.
	SetTimeout(kind TimeoutKind, msecs int)
	SetSkipRemap(skip bool)
	SetDebug(on bool)
	SetConnDSCP(dscp int)
	SetConnMark(mark int)
	SetHTTPCntl(name string, flag bool) bool
	HTTPCntl(name string) bool
	ConfigSet(name, value string) error
	SetEffectiveAddr(ip net.IP) error
	SetNextHopStrategy(strategy string)
	SetCCAlgorithm(alg string)
	SetPluginCntl(name, value string) bool
	RunPlugin(name string, args []string) bool
	SetBody(body string)
	SetBodyFrom(src string)
	LookupDBM(file, key string) (string, bool)
}

// HostDefaults provides no-op implementations for the optional TxnHost
// capabilities so hosts only implement what they support.
type HostDefaults struct{}

// ClientRequest implements TxnHost.
func (HostDefaults) ClientRequest() *mime.Hdr { return nil }

// ClientResponse implements TxnHost.
func (HostDefaults) ClientResponse() *mime.Hdr { return nil }

// ServerRequest implements TxnHost.
func (HostDefaults) ServerRequest() *mime.Hdr { return nil }

// ServerResponse implements TxnHost.
func (HostDefaults) ServerResponse() *mime.Hdr { return nil }

// EffectiveURL implements TxnHost.
func (HostDefaults) EffectiveURL() *url.URL { return nil }

// PristineURL implements TxnHost.
func (HostDefaults) PristineURL() *url.URL { return nil }

// Method implements TxnHost.
func (HostDefaults) Method() string { return "" }

// Status implements TxnHost.
func (HostDefaults) Status() int { return 0 }

// SetStatus implements TxnHost.
func (HostDefaults) SetStatus(int) {}

// SetStatusReason implements TxnHost.
func (HostDefaults) SetStatusReason(string) {}

// SetErrorBody implements TxnHost.
func (HostDefaults) SetErrorBody(string, string) {}

// ClientAddr implements TxnHost.
func (HostDefaults) ClientAddr() net.Addr { return nil }

// InboundLocalAddr implements TxnHost.
func (HostDefaults) InboundLocalAddr() net.Addr { return nil }

// ServerAddr implements TxnHost.
func (HostDefaults) ServerAddr() net.Addr { return nil }

// OutboundLocalAddr implements TxnHost.
func (HostDefaults) OutboundLocalAddr() net.Addr { return nil }

// IsInternal implements TxnHost.
func (HostDefaults) IsInternal() bool { return false }

// TxnCount implements TxnHost.
func (HostDefaults) TxnCount() int { return 0 }

// SsnTxnCount implements TxnHost.
func (HostDefaults) SsnTxnCount() int { return 0 }

// CacheStatus implements TxnHost.
func (HostDefaults) CacheStatus() string { return "none" }

// NextHop implements TxnHost.
func (HostDefaults) NextHop() (string, int) { return "", 0 }

// TLSProtocol implements TxnHost.
func (HostDefaults) TLSProtocol() string { return "" }

// HTTPVersion implements TxnHost.
func (HostDefaults) HTTPVersion() string { return "http/1.1" }

// RequestID implements TxnHost.
func (HostDefaults) RequestID() uint64 { return 0 }

// TCPInfo implements TxnHost.
func (HostDefaults) TCPInfo() (TCPInfo, bool) { return TCPInfo{}, false }

// TxnState implements TxnHost.
func (HostDefaults) TxnState() *uint64 { return nil }

// SetTimeout implements TxnHost.
func (HostDefaults) SetTimeout(TimeoutKind, int) {}

// SetSkipRemap implements TxnHost.
func (HostDefaults) SetSkipRemap(bool) {}

// SetDebug implements TxnHost.
func (HostDefaults) SetDebug(bool) {}

// SetConnDSCP implements TxnHost.
func (HostDefaults) SetConnDSCP(int) {}

// SetConnMark implements TxnHost.
func (HostDefaults) SetConnMark(int) {}

// SetHTTPCntl implements TxnHost.
func (HostDefaults) SetHTTPCntl(string, bool) bool { return false }

// HTTPCntl implements TxnHost.
func (HostDefaults) HTTPCntl(string) bool { return false }

// ConfigSet implements TxnHost.
func (HostDefaults) ConfigSet(string, string) error { return nil }

// SetEffectiveAddr implements TxnHost.
func (HostDefaults) SetEffectiveAddr(net.IP) error { return nil }

// SetNextHopStrategy implements TxnHost.
func (HostDefaults) SetNextHopStrategy(string) {}

// SetCCAlgorithm implements TxnHost.
func (HostDefaults) SetCCAlgorithm(string) {}

// SetPluginCntl implements TxnHost.
func (HostDefaults) SetPluginCntl(string, string) bool { return false }

// RunPlugin implements TxnHost.
func (HostDefaults) RunPlugin(string, []string) bool { return false }

// SetBody implements TxnHost.
func (HostDefaults) SetBody(string) {}

// SetBodyFrom implements TxnHost.
func (HostDefaults) SetBodyFrom(string) {}

// LookupDBM implements TxnHost.
func (HostDefaults) LookupDBM(string, string) (string, bool) { return "", false }

// RemapRequestInfo carries the remap pseudo-hook's request view.
type RemapRequestInfo struct {
	RequestURL *url.URL
	FromURL    *url.URL
	ToURL      *url.URL
	Redirect   bool
}

// Resources holds the per-hook view passed to every condition and operator
// evaluation: the transaction capabilities, the header pair selected for the
// hook, the regex capture state, and the changed-url latch the remap
// disposition is derived from.
type Resources struct {
	Host TxnHost
	Hook HookID
	RRI  *RemapRequestInfo

	// Hdr is the header the hook operates on; ClientReqHdr is always the
	// client request when gathered.
	Hdr          *mime.Hdr
	ClientReqHdr *mime.Hdr

	RespStatus int

	// Regex capture state from the most recent successful regex condition.
	OvecText  string
	Ovec      []int
	OvecCount int

	ChangedURL bool

	// Timezone selects LOCAL or GMT for the NOW condition.
	Timezone int
	// InboundIPSource selects the IP condition's inbound address source.
	InboundIPSource int

	ready bool
}

// NewResources builds a Resources view for one hook firing.
func NewResources(host TxnHost, rri *RemapRequestInfo) *Resources {
	return &Resources{Host: host, RRI: rri}
}

// Ready reports whether Gather completed.
func (r *Resources) Ready() bool { return r.ready }

// Gather fills the header and status fields demanded by the hook's
// aggregated resource bits.
func (r *Resources) Gather(ids ResourceIDs, hook HookID) {
	r.Hook = hook

	if ids&RsrcClientRequestHeaders != 0 {
		r.ClientReqHdr = r.Host.ClientRequest()
	}

	switch hook {
	case HookReadResponse:
		if ids&RsrcServerResponseHeaders != 0 {
			r.Hdr = r.Host.ServerResponse()
		}
		if ids&RsrcResponseStatus != 0 {
			r.RespStatus = r.Host.Status()
		}
	case HookSendRequest:
		if ids&RsrcServerRequestHeaders != 0 {
			r.Hdr = r.Host.ServerRequest()
		}
	case HookReadRequest, HookPreRemap:
		if ids&RsrcClientRequestHeaders != 0 {
			r.Hdr = r.ClientReqHdr
		}
	case HookSendResponse:
		if ids&RsrcClientResponseHeaders != 0 {
			r.Hdr = r.Host.ClientResponse()
		}
		if ids&RsrcResponseStatus != 0 {
			r.RespStatus = r.Host.Status()
		}
	case HookRemap, HookTxnStart:
		if r.ClientReqHdr == nil {
			r.ClientReqHdr = r.Host.ClientRequest()
		}
		r.Hdr = r.ClientReqHdr
	case HookTxnClose:
		r.Hdr = r.Host.ClientResponse()
	}

	r.ready = true
}

// Capture returns regex capture group n from the most recent regex match,
// or the empty string.
func (r *Resources) Capture(n int) string {
	if n < 0 || n >= r.OvecCount {
		return ""
	}
	start, end := r.Ovec[2*n], r.Ovec[2*n+1]
	if start < 0 || end > len(r.OvecText) || start > end {
		return ""
	}
	return r.OvecText[start:end]
}
