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

// Package host adapts net/http server transactions to the engine's TxnHost
// capability interface, so the rewrite engine can run as middleware inside
// a Go reverse proxy.
package host

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"syscall"

	"github.com/Comcast/hrw/internal/hdrs/heap"
	"github.com/Comcast/hrw/internal/hdrs/mime"
	hdrsurl "github.com/Comcast/hrw/internal/hdrs/url"
	"github.com/Comcast/hrw/internal/rewrite"
	"github.com/Comcast/hrw/internal/util/log"
	"github.com/Comcast/hrw/internal/util/tracing"
)

type connCtxType struct{}

var connCtxKey = &connCtxType{}

// ConnContext stores the inbound connection in the request context. Wire it
// into http.Server.ConnContext so the TCP-INFO condition can read the
// socket the transaction arrived on.
func ConnContext(ctx context.Context, c net.Conn) context.Context {
	return context.WithValue(ctx, connCtxKey, c)
}

var requestIDs uint64

// Txn is one HTTP server transaction exposed to the engine.
type Txn struct {
	rewrite.HostDefaults

	r *http.Request

	hp         *heap.Heap
	clientReq  *mime.Hdr
	clientResp *mime.Hdr
	serverReq  *mime.Hdr
	serverResp *mime.Hdr

	effective *hdrsurl.URL
	pristine  *hdrsurl.URL

	status    int
	reason    string
	body      string
	bodyType  string
	skipRemap bool
	state     uint64
	reqID     uint64
	cacheStat string
	debug     bool
}

// NewTxn builds the transaction view for an inbound request.
func NewTxn(r *http.Request) (*Txn, error) {
	t := &Txn{r: r, hp: heap.New(), reqID: atomic.AddUint64(&requestIDs, 1), cacheStat: "none"}

	var err error
	if t.clientReq, err = mime.New(t.hp); err != nil {
		return nil, err
	}
	for name, vals := range r.Header {
		for _, v := range vals {
			if _, err := t.clientReq.Attach(name, v); err != nil {
				return nil, err
			}
		}
	}
	if r.Host != "" {
		if f := t.clientReq.FieldFind("Host"); f == nil {
			t.clientReq.Attach("Host", r.Host)
		}
	}

	if t.clientResp, err = mime.New(t.hp); err != nil {
		return nil, err
	}

	if t.effective, err = hdrsurl.New(t.hp); err != nil {
		return nil, err
	}
	if t.pristine, err = hdrsurl.New(t.hp); err != nil {
		return nil, err
	}
	full := requestURLString(r)
	t.effective.ParseLenient(full)
	t.pristine.ParseLenient(full)

	return t, nil
}

func requestURLString(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

// Heap returns the transaction's header heap.
func (t *Txn) Heap() *heap.Heap { return t.hp }

// ClientRequest implements rewrite.TxnHost.
func (t *Txn) ClientRequest() *mime.Hdr { return t.clientReq }

// ClientResponse implements rewrite.TxnHost.
func (t *Txn) ClientResponse() *mime.Hdr { return t.clientResp }

// ServerRequest implements rewrite.TxnHost.
func (t *Txn) ServerRequest() *mime.Hdr { return t.serverReq }

// ServerResponse implements rewrite.TxnHost.
func (t *Txn) ServerResponse() *mime.Hdr { return t.serverResp }

// SetServerRequest installs the outbound request header view.
func (t *Txn) SetServerRequest(h *mime.Hdr) { t.serverReq = h }

// SetServerResponse installs the origin response header view.
func (t *Txn) SetServerResponse(h *mime.Hdr) { t.serverResp = h }

// EffectiveURL implements rewrite.TxnHost.
func (t *Txn) EffectiveURL() *hdrsurl.URL { return t.effective }

// PristineURL implements rewrite.TxnHost.
func (t *Txn) PristineURL() *hdrsurl.URL { return t.pristine }

// Method implements rewrite.TxnHost.
func (t *Txn) Method() string { return t.r.Method }

// Status implements rewrite.TxnHost.
func (t *Txn) Status() int { return t.status }

// SetStatus implements rewrite.TxnHost.
func (t *Txn) SetStatus(status int) { t.status = status }

// SetStatusReason implements rewrite.TxnHost.
func (t *Txn) SetStatusReason(reason string) { t.reason = reason }

// SetErrorBody implements rewrite.TxnHost.
func (t *Txn) SetErrorBody(body, contentType string) {
	t.body = body
	t.bodyType = contentType
}

// ClientAddr implements rewrite.TxnHost.
func (t *Txn) ClientAddr() net.Addr {
	if host, port, err := net.SplitHostPort(t.r.RemoteAddr); err == nil {
		if ip := net.ParseIP(host); ip != nil {
			p, _ := strconv.Atoi(port)
			return &net.TCPAddr{IP: ip, Port: p}
		}
	}
	return nil
}

// InboundLocalAddr implements rewrite.TxnHost.
func (t *Txn) InboundLocalAddr() net.Addr {
	if a, ok := t.r.Context().Value(http.LocalAddrContextKey).(net.Addr); ok {
		return a
	}
	return nil
}

// IsInternal implements rewrite.TxnHost.
func (t *Txn) IsInternal() bool { return false }

// TLSProtocol implements rewrite.TxnHost.
func (t *Txn) TLSProtocol() string {
	if t.r.TLS == nil {
		return ""
	}
	switch t.r.TLS.Version {
	case tls.VersionTLS13:
		return "TLSv1.3"
	case tls.VersionTLS12:
		return "TLSv1.2"
	case tls.VersionTLS11:
		return "TLSv1.1"
	case tls.VersionTLS10:
		return "TLSv1"
	}
	return "TLS"
}

// HTTPVersion implements rewrite.TxnHost.
func (t *Txn) HTTPVersion() string {
	if t.r.ProtoMajor == 2 {
		return "h2"
	}
	return "http/1.1"
}

// RequestID implements rewrite.TxnHost.
func (t *Txn) RequestID() uint64 { return t.reqID }

// TCPInfo implements rewrite.TxnHost by reading TCP_INFO off the inbound
// connection recorded by ConnContext.
func (t *Txn) TCPInfo() (rewrite.TCPInfo, bool) {
	conn, ok := t.r.Context().Value(connCtxKey).(syscall.Conn)
	if !ok {
		return rewrite.TCPInfo{}, false
	}
	return rewrite.ConnTCPInfo(conn)
}

// TxnState implements rewrite.TxnHost.
func (t *Txn) TxnState() *uint64 { return &t.state }

// CacheStatus implements rewrite.TxnHost.
func (t *Txn) CacheStatus() string { return t.cacheStat }

// SetCacheStatus records the cache-lookup result for the CACHE condition.
func (t *Txn) SetCacheStatus(s string) { t.cacheStat = s }

// SetSkipRemap implements rewrite.TxnHost.
func (t *Txn) SetSkipRemap(skip bool) { t.skipRemap = skip }

// SkipRemap reports whether a rule asked to skip remapping.
func (t *Txn) SkipRemap() bool { return t.skipRemap }

// SetDebug implements rewrite.TxnHost.
func (t *Txn) SetDebug(on bool) { t.debug = on }

// ApplyResponse writes the transaction's client response view to w: the
// rewritten headers, the status (with any synthesized body) and returns
// whether the response was fully written here.
func (t *Txn) ApplyResponse(w http.ResponseWriter) bool {
	for i := 0; ; i++ {
		f := t.clientResp.FieldGet(i)
		if f == nil {
			break
		}
		w.Header().Add(t.clientResp.Name(f), t.clientResp.Value(f))
	}
	if t.body != "" {
		if t.bodyType != "" {
			w.Header().Set("Content-Type", t.bodyType)
		}
		status := t.status
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		w.Write([]byte(t.body))
		return true
	}
	return false
}

// Middleware runs the engine's request-side hooks before the next handler
// and applies URL rewrites back onto the request. The RulesConfig pointer
// is read through an atomic.Value so config reloads swap in new rules
// without touching in-flight transactions.
func Middleware(conf *atomic.Value, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rc, ok := conf.Load().(*rewrite.RulesConfig)
		if !ok || rc == nil {
			next.ServeHTTP(w, r)
			return
		}

		txn, err := NewTxn(r)
		if err != nil {
			log.Error("could not build rewrite transaction", log.Pairs{"detail": err.Error()})
			next.ServeHTTP(w, r)
			return
		}

		ctx, span := tracing.NewHookSpan(r.Context(), rewrite.HookReadRequest.String(), rc.RuleCount(rewrite.HookReadRequest))
		rewrite.Run(rc, rewrite.HookReadRequest, txn, nil)
		span.End()

		rri := &rewrite.RemapRequestInfo{RequestURL: txn.EffectiveURL()}
		_, span = tracing.NewHookSpan(ctx, rewrite.HookRemap.String(), rc.RuleCount(rewrite.HookRemap))
		disp := rewrite.Run(rc, rewrite.HookRemap, txn, rri)
		span.End()

		// A synthesized redirect or error response ends the transaction.
		if txn.ApplyResponse(w) {
			return
		}
		if rri.Redirect {
			loc := txn.EffectiveURL().Print(hdrsurl.NormNone)
			w.Header().Set("Location", loc)
			w.WriteHeader(txn.status)
			w.Write([]byte("Redirecting to " + loc + "\n"))
			return
		}

		if disp == rewrite.DispDidRemap {
			u := txn.EffectiveURL()
			r.URL.Scheme = u.Scheme()
			r.URL.Host = u.Host()
			r.URL.Path = "/" + u.Path()
			r.URL.RawQuery = u.Query()
			r.Host = u.Host()
		}

		// Propagate client request header mutations.
		rebuilt := make(http.Header)
		for i := 0; ; i++ {
			f := txn.clientReq.FieldGet(i)
			if f == nil {
				break
			}
			rebuilt.Add(txn.clientReq.Name(f), txn.clientReq.Value(f))
		}
		r.Header = rebuilt

		if txn.status >= 300 && txn.status < 400 {
			// Redirect set without a body: emit the Location headers.
			for i := 0; ; i++ {
				f := txn.clientResp.FieldGet(i)
				if f == nil {
					break
				}
				w.Header().Add(txn.clientResp.Name(f), txn.clientResp.Value(f))
			}
			w.WriteHeader(txn.status)
			return
		}

		next.ServeHTTP(w, r)
	})
}
