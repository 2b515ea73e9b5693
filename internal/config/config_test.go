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
	"io/ioutil"
	"os"
	"strings"
	"testing"
)

const testConfig = `
[main]
instance_id = 2

[rules]
files = [ "/etc/hrw/rules.conf" ]
timezone = "GMT"
inbound_ip_source = "peer"
cache_name = "default"

[caches]
  [caches.default]
  cache_type = "redis"
    [caches.default.redis]
    endpoint = "redis-host:6379"
    password = "supersecret"

[logging]
log_level = "debug"
`

func loadTestConfig(t *testing.T, body string) {
	t.Helper()
	f, err := ioutil.TempFile("", "hrw-conf-*.conf")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(f.Name())
	f.WriteString(body)
	f.Close()

	if err := Load("hrw-test", "test", []string{"-c", f.Name()}); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfigFile(t *testing.T) {
	loadTestConfig(t, testConfig)

	if Main.InstanceID != 2 {
		t.Errorf("instance id = %d", Main.InstanceID)
	}
	if Rules.Timezone != TimezoneGMT {
		t.Errorf("timezone = %d", Rules.Timezone)
	}
	if len(Rules.Files) != 1 || Rules.Files[0] != "/etc/hrw/rules.conf" {
		t.Errorf("files = %v", Rules.Files)
	}
	cc, ok := Caches["default"]
	if !ok {
		t.Fatal("default cache missing")
	}
	if cc.CacheTypeID != CacheTypeRedis {
		t.Errorf("cache type = %d", cc.CacheTypeID)
	}
	if cc.Redis.Endpoint != "redis-host:6379" {
		t.Errorf("redis endpoint = %q", cc.Redis.Endpoint)
	}
	if Logging.LogLevel != "debug" {
		t.Errorf("log level = %q", Logging.LogLevel)
	}
}

func TestConfigStringMasksSecrets(t *testing.T) {
	loadTestConfig(t, testConfig)
	out := Config.String()
	if strings.Contains(out, "supersecret") {
		t.Error("redis password must be masked")
	}
	if !strings.Contains(out, "*****") {
		t.Error("masked password marker missing")
	}
}

func TestEnvVarOverrides(t *testing.T) {
	os.Setenv("HRW_TIMEZONE", "LOCAL")
	os.Setenv("HRW_GEO_DATABASE", "/tmp/geo.mmdb")
	defer os.Unsetenv("HRW_TIMEZONE")
	defer os.Unsetenv("HRW_GEO_DATABASE")

	loadTestConfig(t, testConfig)
	if Rules.Timezone != TimezoneLocal {
		t.Errorf("env timezone override lost, tz = %d", Rules.Timezone)
	}
	if Rules.GeoDatabasePath != "/tmp/geo.mmdb" {
		t.Errorf("geo db = %q", Rules.GeoDatabasePath)
	}
}

func TestDefaults(t *testing.T) {
	c := NewConfig()
	if c.Rules.TimezoneName != "LOCAL" || c.Rules.CacheName != "default" {
		t.Error("rule defaults wrong")
	}
	if c.Caches["default"].CacheType != "memory" {
		t.Error("default cache should be memory")
	}
}
