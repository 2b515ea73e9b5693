// Copyright 2018 Comcast Cable Communications Management, LLC
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// http://www.apache.org/licenses/LICENSE-2.0
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// +build linux

package rewrite

import (
	"net"
	"testing"
)

func TestConnTCPInfoOnLiveSocket(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	done := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			done <- c
		}
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()
	server := <-done
	defer server.Close()

	tcp, ok := server.(*net.TCPConn)
	if !ok {
		t.Fatalf("accepted conn is %T", server)
	}
	info, ok := ConnTCPInfo(tcp)
	if !ok {
		t.Fatal("TCP_INFO should be readable on a live socket")
	}
	if info.SndCwnd == 0 {
		t.Error("snd_cwnd should be non-zero on a fresh connection")
	}
}
