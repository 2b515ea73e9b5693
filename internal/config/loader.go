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
	"os"
)

// Load returns the Application Configuration, starting with a default config,
// then overriding with any provided config file, then env vars, and finally flags
func Load(applicationName string, applicationVersion string, arguments []string) error {

	LoaderWarnings = make([]string, 0, 0)

	c := NewConfig()
	c.parseFlags(applicationName, arguments) // Parse here to get config file path and version flags
	if Flags.PrintVersion {
		return nil
	}
	if err := c.loadFile(); err != nil && Flags.customPath {
		// a user-provided path couldn't be loaded. return the error for the application to handle
		return err
	}

	c.loadEnvVars()
	c.loadFlags() // load parsed flags to override file and envs

	Config = c
	Main = c.Main
	Rules = c.Rules
	Caches = c.Caches
	Frontend = c.Frontend
	Logging = c.Logging
	Metrics = c.Metrics
	Tracing = c.Tracing

	return nil
}

// loadEnvVars applies the environment-like tuning values honoured at load
// time: the NOW timezone, the inbound IP source and the GEO database path.
func (c *HRWConfig) loadEnvVars() {
	if v := os.Getenv("HRW_TIMEZONE"); v != "" {
		c.Rules.TimezoneName = v
	}
	if v := os.Getenv("HRW_INBOUND_IP_SOURCE"); v != "" {
		c.Rules.InboundIPSourceName = v
	}
	if v := os.Getenv("HRW_GEO_DATABASE"); v != "" {
		c.Rules.GeoDatabasePath = v
	}
	c.processRulesConfig()
}
