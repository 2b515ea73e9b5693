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

package store

import (
	"testing"
	"time"

	"github.com/Comcast/hrw/internal/cache/memory"
	"github.com/Comcast/hrw/internal/config"
	"github.com/Comcast/hrw/internal/hdrs/heap"
	"github.com/Comcast/hrw/internal/hdrs/mime"
)

func newMemCache(t *testing.T, compress bool) *memory.Cache {
	t.Helper()
	cfg := config.NewCacheConfig()
	cfg.Compression = compress
	c := &memory.Cache{Name: "test", Config: cfg}
	if err := c.Connect(); err != nil {
		t.Fatal(err)
	}
	return c
}

func TestWriteReadHeapRoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		c := newMemCache(t, compress)

		hp := heap.New()
		m, err := mime.New(hp)
		if err != nil {
			t.Fatal(err)
		}
		m.ParseFields([]byte("Host: example.com\r\nCache-Control: max-age=300\r\n\r\n"), false)

		if err := WriteHeap(c, "k1", hp, time.Minute); err != nil {
			t.Fatal(err)
		}

		_, root, err := ReadHeap(c, "k1", heap.ObjMIMEHeader)
		if err != nil {
			t.Fatal(err)
		}
		m2 := root.(*mime.Hdr)
		if f := m2.FieldFind("Host"); f == nil || m2.Value(f) != "example.com" {
			t.Errorf("compress=%v: Host lost in cache round trip", compress)
		}
		if m2.CookedCC().MaxAge != 300 {
			t.Errorf("compress=%v: cooked max-age = %d", compress, m2.CookedCC().MaxAge)
		}
	}
}

func TestReadHeapMiss(t *testing.T) {
	c := newMemCache(t, false)
	if _, _, err := ReadHeap(c, "absent", heap.ObjMIMEHeader); err == nil {
		t.Error("expected a miss error")
	}
}

func TestReadHeapRejectsCorruptPayload(t *testing.T) {
	c := newMemCache(t, false)
	c.Store("bad", []byte("definitely not a heap image"), 0)
	if _, _, err := ReadHeap(c, "bad", heap.ObjMIMEHeader); err == nil {
		t.Error("corrupt payloads must be refused")
	}
}
