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
	"syscall"

	"golang.org/x/sys/unix"
)

// ConnTCPInfo reads the kernel's TCP_INFO for a connection, for hosts that
// want to satisfy the TCP-INFO capability from a raw conn.
func ConnTCPInfo(conn syscall.Conn) (TCPInfo, bool) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return TCPInfo{}, false
	}
	var info *unix.TCPInfo
	var serr error
	err = raw.Control(func(fd uintptr) {
		info, serr = unix.GetsockoptTCPInfo(int(fd), unix.IPPROTO_TCP, unix.TCP_INFO)
	})
	if err != nil || serr != nil || info == nil {
		return TCPInfo{}, false
	}
	return TCPInfo{
		RTT:     info.Rtt,
		RTTVar:  info.Rttvar,
		SndCwnd: info.Snd_cwnd,
		Retrans: info.Total_retrans,
	}, true
}
