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

package config

// CacheType enumerates the cache backends
type CacheType int

// Cache backend types
const (
	CacheTypeMemory CacheType = iota
	CacheTypeBBolt
	CacheTypeBadger
	CacheTypeRedis
)

// CacheTypeNames maps the cache_type configuration value to its CacheType
var CacheTypeNames = map[string]CacheType{
	"memory": CacheTypeMemory,
	"bbolt":  CacheTypeBBolt,
	"badger": CacheTypeBadger,
	"redis":  CacheTypeRedis,
}

const (
	defaultLogFile  = ""
	defaultLogLevel = "INFO"

	defaultFrontendListenPort    = 9090
	defaultFrontendListenAddress = ""

	defaultMetricsListenPort    = 8082
	defaultMetricsListenAddress = ""

	defaultTracerImplemetation = "stdout"

	defaultCacheType        = "memory"
	defaultCacheTypeID      = CacheTypeMemory
	defaultCacheCompression = true

	defaultCachePath = "/tmp/hrw"

	defaultRedisProtocol = "tcp"
	defaultRedisEndpoint = "redis:6379"

	defaultBBoltFile   = "hrw.db"
	defaultBBoltBucket = "hrw"

	defaultTimezoneName        = "LOCAL"
	defaultInboundIPSourceName = "peer"
	defaultRulesCacheName      = "default"

	defaultConfigHandlerPath = "/hrw/config"
	defaultPingHandlerPath   = "/hrw/ping"
)
