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

// Package redis is the redis implementation of the Cache interface
package redis

import (
	"time"

	"github.com/go-redis/redis"

	"github.com/Comcast/hrw/internal/cache"
	"github.com/Comcast/hrw/internal/config"
	"github.com/Comcast/hrw/internal/util/log"
)

// Cache represents a redis cache object that conforms to the Cache interface
type Cache struct {
	Name   string
	Config *config.CachingConfig

	client *redis.Client
}

// Configuration returns the Configuration for the Cache object
func (c *Cache) Configuration() *config.CachingConfig {
	return c.Config
}

// Connect connects to the configured Redis endpoint
func (c *Cache) Connect() error {
	log.Info("connecting to redis", log.Pairs{"protocol": c.Config.Redis.Protocol, "endpoint": c.Config.Redis.Endpoint})
	opts := &redis.Options{
		Network: c.Config.Redis.Protocol,
		Addr:    c.Config.Redis.Endpoint,
		DB:      c.Config.Redis.DB,
	}
	if c.Config.Redis.Password != "" {
		opts.Password = c.Config.Redis.Password
	}
	c.client = redis.NewClient(opts)
	return c.client.Ping().Err()
}

// Store places an object in the cache using the specified key and ttl
func (c *Cache) Store(cacheKey string, data []byte, ttl time.Duration) error {
	log.Debug("redis cache store", log.Pairs{"key": cacheKey, "length": len(data), "ttl": ttl})
	return c.client.Set(cacheKey, data, ttl).Err()
}

// Retrieve gets data from the Redis Cache using the provided Key
func (c *Cache) Retrieve(cacheKey string) ([]byte, error) {
	res, err := c.client.Get(cacheKey).Result()
	if err == redis.Nil {
		log.Debug("redis cache miss", log.Pairs{"key": cacheKey})
		return nil, cache.ErrKNF
	}
	if err != nil {
		return nil, err
	}
	log.Debug("redis cache retrieve", log.Pairs{"key": cacheKey, "length": len(res)})
	return []byte(res), nil
}

// Remove removes an object in cache, if present
func (c *Cache) Remove(cacheKey string) {
	log.Debug("redis cache remove", log.Pairs{"key": cacheKey})
	c.client.Del(cacheKey)
}

// Close disconnects from the Redis Cache
func (c *Cache) Close() error {
	log.Info("closing redis connection", log.Pairs{})
	return c.client.Close()
}
