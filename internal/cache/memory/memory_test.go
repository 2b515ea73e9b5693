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

package memory

import (
	"bytes"
	"testing"
	"time"

	"github.com/Comcast/hrw/internal/cache"
	"github.com/Comcast/hrw/internal/config"
)

func newCache(t *testing.T) *Cache {
	t.Helper()
	c := &Cache{Name: "test", Config: config.NewCacheConfig()}
	if err := c.Connect(); err != nil {
		t.Fatal(err)
	}
	return c
}

func TestStoreRetrieveRemove(t *testing.T) {
	c := newCache(t)
	payload := []byte("payload")
	if err := c.Store("k", payload, 0); err != nil {
		t.Fatal(err)
	}
	got, err := c.Retrieve("k")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("got %q", got)
	}
	c.Remove("k")
	if _, err := c.Retrieve("k"); err != cache.ErrKNF {
		t.Errorf("expected ErrKNF, got %v", err)
	}
}

func TestTTLExpiry(t *testing.T) {
	c := newCache(t)
	c.Store("k", []byte("v"), time.Nanosecond)
	time.Sleep(time.Millisecond)
	if _, err := c.Retrieve("k"); err != cache.ErrKNF {
		t.Errorf("expired key should miss, got %v", err)
	}
}

func TestStoreCopiesData(t *testing.T) {
	c := newCache(t)
	data := []byte("abc")
	c.Store("k", data, 0)
	data[0] = 'x'
	got, _ := c.Retrieve("k")
	if string(got) != "abc" {
		t.Errorf("cache must not alias caller memory, got %q", got)
	}
}
