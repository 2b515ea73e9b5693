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

// Package memory is the in-process memory cache
package memory

import (
	"sync"
	"time"

	"github.com/Comcast/hrw/internal/cache"
	"github.com/Comcast/hrw/internal/config"
	"github.com/Comcast/hrw/internal/util/log"
)

type cacheObject struct {
	data    []byte
	expires time.Time
}

// Cache defines a a Memory Cache client that conforms to the Cache interface
type Cache struct {
	Name   string
	Config *config.CachingConfig

	client sync.Map
}

// Configuration returns the Configuration for the Cache object
func (c *Cache) Configuration() *config.CachingConfig {
	return c.Config
}

// Connect initializes the Cache
func (c *Cache) Connect() error {
	log.Info("memorycache setup", log.Pairs{"name": c.Name})
	c.client = sync.Map{}
	return nil
}

// Store places an object in the cache using the specified key and ttl
func (c *Cache) Store(cacheKey string, data []byte, ttl time.Duration) error {
	log.Debug("memorycache cache store", log.Pairs{"key": cacheKey, "length": len(data), "ttl": ttl})
	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	b := make([]byte, len(data))
	copy(b, data)
	c.client.Store(cacheKey, cacheObject{data: b, expires: expires})
	return nil
}

// Retrieve looks for an object in cache and returns it (or an error if not found)
func (c *Cache) Retrieve(cacheKey string) ([]byte, error) {
	record, ok := c.client.Load(cacheKey)
	if !ok {
		log.Debug("memorycache cache miss", log.Pairs{"key": cacheKey})
		return nil, cache.ErrKNF
	}
	o := record.(cacheObject)
	if !o.expires.IsZero() && o.expires.Before(time.Now()) {
		c.client.Delete(cacheKey)
		return nil, cache.ErrKNF
	}
	log.Debug("memorycache cache retrieve", log.Pairs{"key": cacheKey, "length": len(o.data)})
	return o.data, nil
}

// Remove removes an object in cache, if present
func (c *Cache) Remove(cacheKey string) {
	log.Debug("memorycache cache remove", log.Pairs{"key": cacheKey})
	c.client.Delete(cacheKey)
}

// Close is not used for Cache, and is here to fully prototype the Cache Interface
func (c *Cache) Close() error {
	return nil
}
