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

package host

import (
	"io/ioutil"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/Comcast/hrw/internal/config"
	"github.com/Comcast/hrw/internal/rewrite"
)

func compile(t *testing.T, text string, hook rewrite.HookID) *rewrite.RulesConfig {
	t.Helper()
	f, err := ioutil.TempFile("", "hrw-host-*.conf")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(f.Name())
	f.WriteString(text)
	f.Close()

	rc := rewrite.NewRulesConfig(config.TimezoneLocal, config.InboundIPSourcePeer)
	if err := rc.ParseFile(f.Name(), hook, ""); err != nil {
		t.Fatal(err)
	}
	return rc
}

func TestNewTxnBuildsHeaderViews(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://example.com/a/b?x=1", nil)
	r.Header.Set("Via", "1.1 upstream")

	txn, err := NewTxn(r)
	if err != nil {
		t.Fatal(err)
	}
	if f := txn.ClientRequest().FieldFind("Via"); f == nil {
		t.Error("request headers not mirrored")
	}
	if txn.EffectiveURL().Host() != "example.com" {
		t.Errorf("host = %q", txn.EffectiveURL().Host())
	}
	if txn.EffectiveURL().Query() != "x=1" {
		t.Errorf("query = %q", txn.EffectiveURL().Query())
	}
	if txn.Method() != http.MethodGet {
		t.Errorf("method = %q", txn.Method())
	}
}

func TestMiddlewareRewritesHeadersAndURL(t *testing.T) {
	rc := compile(t, "cond %{READ_REQUEST_HDR_HOOK}\nset-header X-From-Rule yes\n"+
		"\ncond %{REMAP_PSEUDO_HOOK}\nset-destination HOST backend.internal\n", rewrite.HookReadRequest)

	var conf atomic.Value
	conf.Store(rc)

	var seenHeader, seenHost string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenHeader = r.Header.Get("X-From-Rule")
		seenHost = r.URL.Host
	})

	srv := Middleware(&conf, next)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://example.com/p", nil))

	if seenHeader != "yes" {
		t.Errorf("X-From-Rule = %q", seenHeader)
	}
	if seenHost != "backend.internal" {
		t.Errorf("proxied host = %q", seenHost)
	}
}

func TestMiddlewareSynthesizesRedirect(t *testing.T) {
	rc := compile(t, "cond %{REMAP_PSEUDO_HOOK}\n"+
		"cond %{PATH} /old/\n"+
		"set-redirect 302 http://example.com/new [QSA]\n", rewrite.HookRemap)

	var conf atomic.Value
	conf.Store(rc)

	nextRan := false
	srv := Middleware(&conf, http.HandlerFunc(func(http.ResponseWriter, *http.Request) { nextRan = true }))

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://example.com/old?x=1", nil))

	if nextRan {
		t.Error("redirect must short-circuit the proxy")
	}
	if w.Code != 302 {
		t.Errorf("code = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "http://example.com/new?x=1") {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestTCPInfoWithoutConnIsUnavailable(t *testing.T) {
	txn, err := NewTxn(httptest.NewRequest(http.MethodGet, "http://ex/", nil))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := txn.TCPInfo(); ok {
		t.Error("no recorded conn means no TCP_INFO")
	}
}

func TestTCPInfoThroughConnContext(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()
	server := <-accepted
	defer server.Close()

	r := httptest.NewRequest(http.MethodGet, "http://ex/", nil)
	r = r.WithContext(ConnContext(r.Context(), server))
	txn, err := NewTxn(r)
	if err != nil {
		t.Fatal(err)
	}

	info, ok := txn.TCPInfo()
	if runtime.GOOS == "linux" {
		if !ok {
			t.Fatal("TCP_INFO should be readable through the recorded conn")
		}
		if info.SndCwnd == 0 {
			t.Error("snd_cwnd should be non-zero on a fresh connection")
		}
	} else if ok {
		t.Error("TCP_INFO is linux-only")
	}
}

func TestMiddlewareWithoutConfigPassesThrough(t *testing.T) {
	var conf atomic.Value
	ran := false
	srv := Middleware(&conf, http.HandlerFunc(func(http.ResponseWriter, *http.Request) { ran = true }))
	srv.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "http://x/", nil))
	if !ran {
		t.Error("missing config must pass the request through")
	}
}
