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
	"strings"
	"testing"
)

func evalTcpInfoCond(t *testing.T, line string, host *fakeHost, hook HookID) bool {
	t.Helper()
	p, err := ParseLine(line)
	if err != nil {
		t.Fatal(err)
	}
	c, err := conditionFactory(p, "test", 1)
	if err != nil {
		t.Fatal(err)
	}
	if !c.SetHook(hook) {
		t.Fatalf("TCP-INFO should be legal in %s", hook)
	}
	return c.Eval(NewResources(host, nil))
}

func TestCondTcpInfoFields(t *testing.T) {
	host := newFakeHost(t, "GET", "http://ex/")
	host.tcpInfo = TCPInfo{RTT: 5000, RTTVar: 250, SndCwnd: 10, Retrans: 2}
	host.hasTCPInfo = true

	if !evalTcpInfoCond(t, "cond %{TCP-INFO:rtt} >1000", host, HookTxnStart) {
		t.Error("rtt 5000 should match >1000")
	}
	if evalTcpInfoCond(t, "cond %{TCP-INFO:rtt} <1000", host, HookTxnStart) {
		t.Error("rtt 5000 must not match <1000")
	}
	if !evalTcpInfoCond(t, "cond %{TCP-INFO:cwnd} =10", host, HookTxnClose) {
		t.Error("cwnd should read back 10")
	}
	if !evalTcpInfoCond(t, "cond %{TCP-INFO:retrans} =2", host, HookSendResponse) {
		t.Error("retrans should read back 2")
	}
}

func TestCondTcpInfoUnavailableIsFalse(t *testing.T) {
	host := newFakeHost(t, "GET", "http://ex/")
	// hasTCPInfo stays false: the capability is missing, so even a
	// comparand-free condition is a non-match.
	if evalTcpInfoCond(t, "cond %{TCP-INFO:rtt}", host, HookTxnStart) {
		t.Error("missing TCP_INFO must evaluate to false")
	}
}

func TestCondTcpInfoAppendValue(t *testing.T) {
	host := newFakeHost(t, "GET", "http://ex/")
	host.tcpInfo = TCPInfo{RTT: 777}
	host.hasTCPInfo = true

	p, _ := ParseLine("cond %{TCP-INFO:rtt}")
	c, err := conditionFactory(p, "test", 1)
	if err != nil {
		t.Fatal(err)
	}
	var b strings.Builder
	c.AppendValue(&b, NewResources(host, nil))
	if b.String() != "777" {
		t.Errorf("append = %q", b.String())
	}
}

func TestCondTcpInfoHookLegality(t *testing.T) {
	p, _ := ParseLine("cond %{TCP-INFO:rtt} >0")
	c, err := conditionFactory(p, "test", 1)
	if err != nil {
		t.Fatal(err)
	}
	if c.SetHook(HookSendRequest) {
		t.Error("TCP-INFO is not legal in the send-request hook")
	}
}
