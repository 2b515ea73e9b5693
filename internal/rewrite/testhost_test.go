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
	"testing"

	"github.com/Comcast/hrw/internal/hdrs/heap"
	"github.com/Comcast/hrw/internal/hdrs/mime"
	hdrsurl "github.com/Comcast/hrw/internal/hdrs/url"
)

// fakeHost is a minimal TxnHost for engine tests.
type fakeHost struct {
	HostDefaults

	clientReq  *mime.Hdr
	clientResp *mime.Hdr
	serverResp *mime.Hdr

	effective *hdrsurl.URL
	pristine  *hdrsurl.URL

	method string
	status int
	reason string
	body   string

	clientAddr net.Addr
	state      uint64
	txnCount   int
	internal   bool
	cacheStat  string
	tcpInfo    TCPInfo
	hasTCPInfo bool
}

func newFakeHost(t *testing.T, method, rawurl string) *fakeHost {
	t.Helper()
	hp := heap.New()
	f := &fakeHost{method: method, cacheStat: "none"}

	var err error
	if f.clientReq, err = mime.New(hp); err != nil {
		t.Fatal(err)
	}
	if f.clientResp, err = mime.New(hp); err != nil {
		t.Fatal(err)
	}
	if f.serverResp, err = mime.New(hp); err != nil {
		t.Fatal(err)
	}
	if f.effective, err = hdrsurl.New(hp); err != nil {
		t.Fatal(err)
	}
	if f.pristine, err = hdrsurl.New(hp); err != nil {
		t.Fatal(err)
	}
	if rawurl != "" {
		if err := f.effective.ParseLenient(rawurl); err != nil {
			t.Fatal(err)
		}
		if err := f.pristine.ParseLenient(rawurl); err != nil {
			t.Fatal(err)
		}
	}
	f.clientAddr = &net.TCPAddr{IP: net.ParseIP("192.0.2.10"), Port: 42000}
	return f
}

func (f *fakeHost) ClientRequest() *mime.Hdr     { return f.clientReq }
func (f *fakeHost) ClientResponse() *mime.Hdr    { return f.clientResp }
func (f *fakeHost) ServerResponse() *mime.Hdr    { return f.serverResp }
func (f *fakeHost) EffectiveURL() *hdrsurl.URL   { return f.effective }
func (f *fakeHost) PristineURL() *hdrsurl.URL    { return f.pristine }
func (f *fakeHost) Method() string               { return f.method }
func (f *fakeHost) Status() int                  { return f.status }
func (f *fakeHost) SetStatus(s int)              { f.status = s }
func (f *fakeHost) SetStatusReason(r string)     { f.reason = r }
func (f *fakeHost) SetErrorBody(b, _ string)     { f.body = b }
func (f *fakeHost) ClientAddr() net.Addr         { return f.clientAddr }
func (f *fakeHost) TxnState() *uint64            { return &f.state }
func (f *fakeHost) TxnCount() int                { return f.txnCount }
func (f *fakeHost) IsInternal() bool             { return f.internal }
func (f *fakeHost) CacheStatus() string          { return f.cacheStat }
func (f *fakeHost) TCPInfo() (TCPInfo, bool)     { return f.tcpInfo, f.hasTCPInfo }
