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

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the Running Configuration for HRW
var Config *HRWConfig

// Main is the Main subsection of the Running Configuration
var Main *MainConfig

// Rules is the Rewrite Rules subsection of the Running Configuration
var Rules *RulesFileConfig

// Caches is the Cache Map subsection of the Running Configuration
var Caches map[string]*CachingConfig

// Frontend is the Debug Server subsection of the Running Configuration
var Frontend *FrontendConfig

// Logging is the Logging subsection of the Running Configuration
var Logging *LoggingConfig

// Metrics is the Metrics subsection of the Running Configuration
var Metrics *MetricsConfig

// Tracing defines distributed trace options for the Running Configuration
var Tracing *TracingConfig

// Flags is a collection of command line flags that HRW loads.
var Flags = HRWFlags{}

// LoaderWarnings holds warnings generated during config load (before the logger is initialized),
// so they can be logged at the end of the loading process
var LoaderWarnings = make([]string, 0, 0)

// Timezone selectors consulted by the NOW condition.
const (
	TimezoneLocal = 0
	TimezoneGMT   = 1
)

// Inbound IP source selectors consulted by the IP condition.
const (
	InboundIPSourcePeer       = 0
	InboundIPSourceProxyProto = 1
)

// HRWConfig is the main configuration object
type HRWConfig struct {
	// Main is the primary MainConfig section
	Main *MainConfig `toml:"main"`
	// Rules configures the rewrite rule files and engine tuning knobs
	Rules *RulesFileConfig `toml:"rules"`
	// Caches is a map of CacheConfigs
	Caches map[string]*CachingConfig `toml:"caches"`
	// Frontend provides configurations about the Debug Server Front End
	Frontend *FrontendConfig `toml:"frontend"`
	// Logging provides configurations that affect logging behavior
	Logging *LoggingConfig `toml:"logging"`
	// Metrics provides configurations for collecting Metrics about the application
	Metrics *MetricsConfig `toml:"metrics"`
	// Tracing provides the distributed tracing configuration
	Tracing *TracingConfig `toml:"tracing"`

	activeCaches map[string]bool
}

// MainConfig is a collection of general configuration values.
type MainConfig struct {
	// InstanceID represents a unique ID for the current instance, when multiple instances on the same host
	InstanceID int `toml:"instance_id"`
	// ConfigHandlerPath provides the path to register the Config Handler for outputting the running configuration
	ConfigHandlerPath string `toml:"config_handler_path"`
	// PingHandlerPath provides the path to register the Ping Handler for checking that HRW is running
	PingHandlerPath string `toml:"ping_handler_path"`
}

// RulesFileConfig configures the rewrite rule files plus the tuning values
// consulted by the NOW and IP conditions and the GEO condition database.
type RulesFileConfig struct {
	// Files lists the rule files to compile at startup
	Files []string `toml:"files"`
	// TimezoneName selects LOCAL or GMT for the NOW condition
	TimezoneName string `toml:"timezone"`
	// InboundIPSourceName selects where the IP condition reads the inbound address from
	InboundIPSourceName string `toml:"inbound_ip_source"`
	// GeoDatabasePath is the optional path to a MaxMind database for the GEO condition
	GeoDatabasePath string `toml:"geo_database_path"`
	// CompilerPath is the optional external DSL compiler invoked for .hrw4u files
	CompilerPath string `toml:"compiler_path"`
	// CacheName provides the name of the configured cache for marshalled header heaps
	CacheName string `toml:"cache_name"`

	// Synthesized Configurations
	//
	// Timezone is the parsed value of TimezoneName
	Timezone int `toml:"-"`
	// InboundIPSource is the parsed value of InboundIPSourceName
	InboundIPSource int `toml:"-"`
}

// CachingConfig is a collection defining the Header Heap Caching Behavior
type CachingConfig struct {
	// Name is the Name of the cache, taken from the Key in the Caches map[string]*CachingConfig
	Name string `toml:"-"`
	// CacheType represents the type of cache that we wish to use: "memory", "bbolt", "badger" or "redis"
	CacheType string `toml:"cache_type"`
	// Compression determines whether marshalled heaps should be compressed when writing to the cache
	Compression bool `toml:"compression"`
	// Redis provides options for Redis caching
	Redis RedisCacheConfig `toml:"redis"`
	// BBolt provides options for BBolt caching
	BBolt BBoltCacheConfig `toml:"bbolt"`
	// Badger provides options for BadgerDB caching
	Badger BadgerCacheConfig `toml:"badger"`

	// CacheTypeID represents the internal constant for the provided CacheType string
	// and is automatically populated at startup
	CacheTypeID CacheType `toml:"-"`
}

// RedisCacheConfig is a collection of Configurations for Connecting to Redis
type RedisCacheConfig struct {
	// Protocol represents the connection method (e.g., "tcp", "unix", etc.)
	Protocol string `toml:"protocol"`
	// Endpoint represents FQDN:port or IPAddress:Port of the Redis Endpoint
	Endpoint string `toml:"endpoint"`
	// Password can be set when using password protected redis instance.
	Password string `toml:"password"`
	// DB is the Database to be selected after connecting to the server.
	DB int `toml:"db"`
}

// BadgerCacheConfig is a collection of Configurations for storing cached data in a Badger key-value store
type BadgerCacheConfig struct {
	// Directory represents the path on disk where the Badger database should store data
	Directory string `toml:"directory"`
	// ValueDirectory represents the path on disk where the Badger database will store its value log.
	ValueDirectory string `toml:"value_directory"`
}

// BBoltCacheConfig is a collection of Configurations for storing cached data on the Filesystem
type BBoltCacheConfig struct {
	// Filename represents the filename (including path) of the BBolt database
	Filename string `toml:"filename"`
	// Bucket represents the name of the bucket within BBolt under which keys will be stored.
	Bucket string `toml:"bucket"`
}

// FrontendConfig is a collection of configurations for the debug http frontend for the application
type FrontendConfig struct {
	// ListenAddress is IP address for the debug http listener for the application
	ListenAddress string `toml:"listen_address"`
	// ListenPort is TCP Port for the debug http listener for the application
	ListenPort int `toml:"listen_port"`
}

// LoggingConfig is a collection of Logging configurations
type LoggingConfig struct {
	// LogFile provides the filepath to the instance's logfile. Set as empty string to Log to Console
	LogFile string `toml:"log_file"`
	// LogLevel provides the most granular level (e.g., DEBUG, INFO, ERROR) to log
	LogLevel string `toml:"log_level"`
}

// MetricsConfig is a collection of Metrics Collection configurations
type MetricsConfig struct {
	// ListenAddress is IP address from which the Application Metrics are available for pulling at /metrics
	ListenAddress string `toml:"listen_address"`
	// ListenPort is TCP Port from which the Application Metrics are available for pulling at /metrics
	ListenPort int `toml:"listen_port"`
}

// TracingConfig provides the distributed tracing configuration
type TracingConfig struct {
	// Implementation is the particular implementation to use
	Implementation string `toml:"tracer_implementation"`
	// CollectorEndpoint is the URL of the trace collector
	CollectorEndpoint string `toml:"tracing_collector"`
}

// NewConfig returns a Config initialized with default values.
func NewConfig() *HRWConfig {
	return &HRWConfig{
		Caches: map[string]*CachingConfig{
			"default": NewCacheConfig(),
		},
		Logging: &LoggingConfig{
			LogFile:  defaultLogFile,
			LogLevel: defaultLogLevel,
		},
		Main: &MainConfig{
			ConfigHandlerPath: defaultConfigHandlerPath,
			PingHandlerPath:   defaultPingHandlerPath,
		},
		Metrics: &MetricsConfig{
			ListenPort: defaultMetricsListenPort,
		},
		Tracing: &TracingConfig{
			Implementation:    defaultTracerImplemetation,
			CollectorEndpoint: "",
		},
		Rules: &RulesFileConfig{
			TimezoneName:        defaultTimezoneName,
			InboundIPSourceName: defaultInboundIPSourceName,
			CacheName:           defaultRulesCacheName,
		},
		Frontend: &FrontendConfig{
			ListenPort: defaultFrontendListenPort,
		},
	}
}

// NewCacheConfig will return a pointer to a CachingConfig with the default configuration settings
func NewCacheConfig() *CachingConfig {
	return &CachingConfig{
		CacheType:   defaultCacheType,
		CacheTypeID: defaultCacheTypeID,
		Compression: defaultCacheCompression,
		Redis:       RedisCacheConfig{Protocol: defaultRedisProtocol, Endpoint: defaultRedisEndpoint},
		BBolt:       BBoltCacheConfig{Filename: defaultBBoltFile, Bucket: defaultBBoltBucket},
		Badger:      BadgerCacheConfig{Directory: defaultCachePath, ValueDirectory: defaultCachePath},
	}
}

// loadFile loads application configuration from a TOML-formatted file.
func (c *HRWConfig) loadFile() error {
	md, err := toml.DecodeFile(Flags.ConfigPath, c)
	if err != nil {
		c.setDefaults(&toml.MetaData{})
		return err
	}
	err = c.setDefaults(&md)
	return err
}

func (c *HRWConfig) setDefaults(metadata *toml.MetaData) error {
	c.processRulesConfig()
	c.processCachingConfigs(metadata)
	return c.validateConfigMappings()
}

func (c *HRWConfig) validateConfigMappings() error {
	if c.Rules.CacheName != "" {
		if _, ok := c.Caches[c.Rules.CacheName]; !ok {
			return fmt.Errorf("invalid cache name [%s] provided in rules config", c.Rules.CacheName)
		}
	}
	return nil
}

func (c *HRWConfig) processRulesConfig() {
	if c.Rules == nil {
		c.Rules = NewConfig().Rules
	}
	r := c.Rules

	switch strings.ToUpper(r.TimezoneName) {
	case "GMT", "UTC":
		r.Timezone = TimezoneGMT
	case "LOCAL", "":
		r.Timezone = TimezoneLocal
	default:
		LoaderWarnings = append(LoaderWarnings, fmt.Sprintf("unknown timezone %q, using LOCAL", r.TimezoneName))
		r.Timezone = TimezoneLocal
	}

	switch strings.ToLower(r.InboundIPSourceName) {
	case "proxy-protocol":
		r.InboundIPSource = InboundIPSourceProxyProto
	case "peer", "":
		r.InboundIPSource = InboundIPSourcePeer
	default:
		LoaderWarnings = append(LoaderWarnings, fmt.Sprintf("unknown inbound ip source %q, using peer", r.InboundIPSourceName))
		r.InboundIPSource = InboundIPSourcePeer
	}

	c.activeCaches = map[string]bool{r.CacheName: true}
}

func (c *HRWConfig) processCachingConfigs(metadata *toml.MetaData) {

	for k, v := range c.Caches {

		if _, ok := c.activeCaches[k]; !ok {
			// a configured cache is not used by the rules engine. don't even instantiate it
			delete(c.Caches, k)
			continue
		}

		cc := NewCacheConfig()
		cc.Name = k

		if metadata.IsDefined("caches", k, "cache_type") {
			cc.CacheType = strings.ToLower(v.CacheType)
			if n, ok := CacheTypeNames[cc.CacheType]; ok {
				cc.CacheTypeID = n
			}
		}

		if metadata.IsDefined("caches", k, "compression") {
			cc.Compression = v.Compression
		}

		if metadata.IsDefined("caches", k, "redis", "protocol") {
			cc.Redis.Protocol = v.Redis.Protocol
		}

		if metadata.IsDefined("caches", k, "redis", "endpoint") {
			cc.Redis.Endpoint = v.Redis.Endpoint
		}

		if metadata.IsDefined("caches", k, "redis", "password") {
			cc.Redis.Password = v.Redis.Password
		}

		if metadata.IsDefined("caches", k, "redis", "db") {
			cc.Redis.DB = v.Redis.DB
		}

		if metadata.IsDefined("caches", k, "bbolt", "filename") {
			cc.BBolt.Filename = v.BBolt.Filename
		}

		if metadata.IsDefined("caches", k, "bbolt", "bucket") {
			cc.BBolt.Bucket = v.BBolt.Bucket
		}

		if metadata.IsDefined("caches", k, "badger", "directory") {
			cc.Badger.Directory = v.Badger.Directory
		}

		if metadata.IsDefined("caches", k, "badger", "value_directory") {
			cc.Badger.ValueDirectory = v.Badger.ValueDirectory
		}

		c.Caches[k] = cc
	}
}

func (c *HRWConfig) String() string {
	cp := NewConfig()

	cp.Main.ConfigHandlerPath = c.Main.ConfigHandlerPath
	cp.Main.InstanceID = c.Main.InstanceID
	cp.Main.PingHandlerPath = c.Main.PingHandlerPath

	cp.Logging.LogFile = c.Logging.LogFile
	cp.Logging.LogLevel = c.Logging.LogLevel

	cp.Metrics.ListenAddress = c.Metrics.ListenAddress
	cp.Metrics.ListenPort = c.Metrics.ListenPort

	cp.Tracing.Implementation = c.Tracing.Implementation
	cp.Tracing.CollectorEndpoint = c.Tracing.CollectorEndpoint

	cp.Frontend.ListenAddress = c.Frontend.ListenAddress
	cp.Frontend.ListenPort = c.Frontend.ListenPort

	r := *c.Rules
	cp.Rules = &r

	cp.Caches = make(map[string]*CachingConfig)
	for k, v := range c.Caches {
		cc := *v
		// strip Redis password
		if cc.Redis.Password != "" {
			cc.Redis.Password = "*****"
		}
		cp.Caches[k] = &cc
	}

	var buf bytes.Buffer
	e := toml.NewEncoder(&buf)
	e.Encode(cp)
	return buf.String()
}
