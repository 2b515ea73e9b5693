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

// Package store writes marshalled header heaps to a cache backend and
// reads them back. The on-wire form is the heap's relocatable image,
// optionally snappy-compressed per the cache configuration.
package store

import (
	"time"

	"github.com/golang/snappy"

	"github.com/Comcast/hrw/internal/cache"
	"github.com/Comcast/hrw/internal/hdrs/heap"
	"github.com/Comcast/hrw/internal/util/log"
)

// WriteHeap marshals a header heap and stores its image under key.
func WriteHeap(c cache.Cache, key string, h *heap.Heap, ttl time.Duration) error {
	n, err := h.MarshalLength()
	if err != nil {
		return err
	}
	buf := make([]byte, n)
	if _, err := h.Marshal(buf); err != nil {
		return err
	}

	if c.Configuration().Compression {
		key += ".sz"
		log.Debug("compressing cached heap", log.Pairs{"cacheKey": key})
		buf = snappy.Encode(nil, buf)
	}

	return c.Store(key, buf, ttl)
}

// ReadHeap retrieves a heap image from the cache and reconstructs it. The
// root object must have the expected type.
func ReadHeap(c cache.Cache, key string, root heap.ObjType) (*heap.Heap, heap.Object, error) {
	inflate := c.Configuration().Compression
	if inflate {
		key += ".sz"
	}

	data, err := c.Retrieve(key)
	if err != nil {
		return nil, nil, err
	}

	if inflate {
		log.Debug("decompressing cached heap", log.Pairs{"cacheKey": key})
		b, err := snappy.Decode(nil, data)
		if err == nil {
			data = b
		}
	}
	return heap.Unmarshal(data, root)
}
