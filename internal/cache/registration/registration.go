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

// Package registration instantiates the configured cache backends and
// hands them out by name.
package registration

import (
	"fmt"

	"github.com/Comcast/hrw/internal/cache"
	"github.com/Comcast/hrw/internal/cache/badger"
	"github.com/Comcast/hrw/internal/cache/bbolt"
	"github.com/Comcast/hrw/internal/cache/memory"
	"github.com/Comcast/hrw/internal/cache/redis"
	"github.com/Comcast/hrw/internal/config"
)

// Caches maintains a list of active caches
var Caches = make(map[string]cache.Cache)

// GetCache returns the Cache named cacheName if it is registered
func GetCache(cacheName string) (cache.Cache, error) {
	if c, ok := Caches[cacheName]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("could not find cache named [%s]", cacheName)
}

// LoadCachesFromConfig instantiates the configured caches
func LoadCachesFromConfig() error {
	for k, v := range config.Caches {
		c, err := NewCache(k, v)
		if err != nil {
			return err
		}
		Caches[k] = c
	}
	return nil
}

// CloseCaches closes the registered caches
func CloseCaches() {
	for _, c := range Caches {
		c.Close()
	}
}

// NewCache returns a Cache object based on the provided config.CachingConfig
func NewCache(cacheName string, cfg *config.CachingConfig) (cache.Cache, error) {
	var c cache.Cache

	switch cfg.CacheTypeID {
	case config.CacheTypeMemory:
		c = &memory.Cache{Name: cacheName, Config: cfg}
	case config.CacheTypeBBolt:
		c = &bbolt.Cache{Name: cacheName, Config: cfg}
	case config.CacheTypeBadger:
		c = &badger.Cache{Name: cacheName, Config: cfg}
	case config.CacheTypeRedis:
		c = &redis.Cache{Name: cacheName, Config: cfg}
	default:
		return nil, fmt.Errorf("unknown cache type for cache [%s]", cacheName)
	}

	if err := c.Connect(); err != nil {
		return nil, err
	}
	return c, nil
}
