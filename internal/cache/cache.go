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

// Package cache defines the Cache interface the header-heap store writes
// marshalled images through, and the error taxonomy shared by the backends.
package cache

import (
	"errors"
	"time"

	"github.com/Comcast/hrw/internal/config"
)

// ErrKNF is returned when a cache key is not found
var ErrKNF = errors.New("key not found in cache")

// Cache is the interface for the supported caching backends
type Cache interface {
	Connect() error
	Store(cacheKey string, data []byte, ttl time.Duration) error
	Retrieve(cacheKey string) ([]byte, error)
	Remove(cacheKey string)
	Close() error
	Configuration() *config.CachingConfig
}
