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

package redis

import (
	"bytes"
	"testing"
	"time"

	"github.com/alicebob/miniredis"

	"github.com/Comcast/hrw/internal/cache"
	"github.com/Comcast/hrw/internal/config"
)

func setupRedisCache(t *testing.T) (*Cache, func()) {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.NewCacheConfig()
	cfg.CacheType = "redis"
	cfg.CacheTypeID = config.CacheTypeRedis
	cfg.Redis.Endpoint = s.Addr()

	c := &Cache{Name: "test", Config: cfg}
	if err := c.Connect(); err != nil {
		s.Close()
		t.Fatal(err)
	}
	return c, func() {
		c.Close()
		s.Close()
	}
}

func TestRedisStoreRetrieveRemove(t *testing.T) {
	c, done := setupRedisCache(t)
	defer done()

	payload := []byte("heap image bytes")
	if err := c.Store("k", payload, time.Minute); err != nil {
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
