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

// Package bbolt is the bbolt implementation of the Cache interface
package bbolt

import (
	"encoding/binary"
	"fmt"
	"time"

	bolt "github.com/coreos/bbolt"

	"github.com/Comcast/hrw/internal/cache"
	"github.com/Comcast/hrw/internal/config"
	"github.com/Comcast/hrw/internal/util/log"
)

// Cache describes a BBolt Cache
type Cache struct {
	Name   string
	Config *config.CachingConfig

	dbh *bolt.DB
}

// Configuration returns the Configuration for the Cache object
func (c *Cache) Configuration() *config.CachingConfig {
	return c.Config
}

// Connect opens the configured BBolt database
func (c *Cache) Connect() error {
	log.Info("bbolt cache setup", log.Pairs{"name": c.Name, "cacheFile": c.Config.BBolt.Filename})

	var err error
	c.dbh, err = bolt.Open(c.Config.BBolt.Filename, 0644, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return err
	}

	return c.dbh.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(c.Config.BBolt.Bucket))
		if err != nil {
			return fmt.Errorf("create bucket: %s", err)
		}
		return nil
	})
}

// record layout: 8-byte big-endian expiration (unix nanos, 0 = no expiry)
// followed by the payload.

// Store places an object in the cache using the specified key and ttl
func (c *Cache) Store(cacheKey string, data []byte, ttl time.Duration) error {
	log.Debug("bbolt cache store", log.Pairs{"key": cacheKey, "length": len(data), "ttl": ttl})
	var expires int64
	if ttl > 0 {
		expires = time.Now().Add(ttl).UnixNano()
	}
	record := make([]byte, 8+len(data))
	binary.BigEndian.PutUint64(record, uint64(expires))
	copy(record[8:], data)

	return c.dbh.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(c.Config.BBolt.Bucket))
		return b.Put([]byte(cacheKey), record)
	})
}

// Retrieve looks for an object in cache and returns it (or an error if not found)
func (c *Cache) Retrieve(cacheKey string) ([]byte, error) {
	var data []byte
	err := c.dbh.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(c.Config.BBolt.Bucket))
		v := b.Get([]byte(cacheKey))
		if v == nil {
			log.Debug("bbolt cache miss", log.Pairs{"key": cacheKey})
			return cache.ErrKNF
		}
		data = make([]byte, len(v))
		copy(data, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(data) < 8 {
		return nil, cache.ErrKNF
	}
	expires := int64(binary.BigEndian.Uint64(data))
	if expires != 0 && time.Now().UnixNano() > expires {
		c.Remove(cacheKey)
		return nil, cache.ErrKNF
	}
	log.Debug("bbolt cache retrieve", log.Pairs{"key": cacheKey, "length": len(data) - 8})
	return data[8:], nil
}

// Remove removes an object in cache, if present
func (c *Cache) Remove(cacheKey string) {
	log.Debug("bbolt cache remove", log.Pairs{"key": cacheKey})
	c.dbh.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(c.Config.BBolt.Bucket))
		return b.Delete([]byte(cacheKey))
	})
}

// Close closes the Cache
func (c *Cache) Close() error {
	return c.dbh.Close()
}
