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

// Package badger is the BadgerDB implementation of the Cache interface
package badger

import (
	"time"

	"github.com/dgraph-io/badger"

	"github.com/Comcast/hrw/internal/cache"
	"github.com/Comcast/hrw/internal/config"
	"github.com/Comcast/hrw/internal/util/log"
)

// Cache describes a Badger Cache
type Cache struct {
	Name   string
	Config *config.CachingConfig

	dbh *badger.DB
}

// Configuration returns the Configuration for the Cache object
func (c *Cache) Configuration() *config.CachingConfig {
	return c.Config
}

// Connect opens the configured Badger key-value store
func (c *Cache) Connect() error {
	log.Info("badger cache setup", log.Pairs{"name": c.Name, "cacheDir": c.Config.Badger.Directory})

	opts := badger.DefaultOptions(c.Config.Badger.Directory)
	opts.ValueDir = c.Config.Badger.ValueDirectory
	opts.Logger = nil

	var err error
	c.dbh, err = badger.Open(opts)
	return err
}

// Store places an object in the cache using the specified key and ttl
func (c *Cache) Store(cacheKey string, data []byte, ttl time.Duration) error {
	log.Debug("badger cache store", log.Pairs{"key": cacheKey, "length": len(data), "ttl": ttl})
	return c.dbh.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(cacheKey), data)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
}

// Retrieve looks for an object in cache and returns it (or an error if not found)
func (c *Cache) Retrieve(cacheKey string) ([]byte, error) {
	var data []byte
	err := c.dbh.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(cacheKey))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		log.Debug("badger cache miss", log.Pairs{"key": cacheKey})
		return nil, cache.ErrKNF
	}
	if err != nil {
		return nil, err
	}
	log.Debug("badger cache retrieve", log.Pairs{"key": cacheKey, "length": len(data)})
	return data, nil
}

// Remove removes an object in cache, if present
func (c *Cache) Remove(cacheKey string) {
	log.Debug("badger cache remove", log.Pairs{"key": cacheKey})
	c.dbh.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(cacheKey))
	})
}

// Close closes the Cache
func (c *Cache) Close() error {
	return c.dbh.Close()
}
