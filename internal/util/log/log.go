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

// Package log provides the common structured logging facility. Events are
// logged as an event string plus a Pairs map of details; output goes to the
// console or to a rotated log file, depending on the running configuration.
package log

import (
	"os"
	"sort"
	"strings"
	"sync"

	kitlog "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/Comcast/hrw/internal/config"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the handle to the common logging facility
var Logger kitlog.Logger

var logLevel = "info"
var onceRegistry = struct {
	sync.Mutex
	seen map[string]bool
}{seen: map[string]bool{}}

// Pairs represents a key=value pair that helps to describe a log event
type Pairs map[string]interface{}

// Init establishes the logger from the running configuration
func Init() {
	wr := kitlog.NewSyncWriter(os.Stdout)
	if config.Logging != nil && config.Logging.LogFile != "" {
		wr = kitlog.NewSyncWriter(&lumberjack.Logger{
			Filename:   config.Logging.LogFile,
			MaxSize:    256,
			MaxBackups: 10,
			MaxAge:     7,
		})
	}
	l := kitlog.NewLogfmtLogger(wr)
	l = kitlog.With(l, "time", kitlog.DefaultTimestampUTC, "app", "hrw")

	if config.Logging != nil {
		logLevel = strings.ToLower(config.Logging.LogLevel)
	}

	switch logLevel {
	case "debug", "trace":
		l = level.NewFilter(l, level.AllowDebug())
	case "warn":
		l = level.NewFilter(l, level.AllowWarn())
	case "error":
		l = level.NewFilter(l, level.AllowError())
	default:
		l = level.NewFilter(l, level.AllowInfo())
	}
	Logger = l
}

func logger() kitlog.Logger {
	if Logger == nil {
		Init()
	}
	return Logger
}

func keyvals(event string, detail Pairs) []interface{} {
	kv := make([]interface{}, 0, 2+len(detail)*2)
	kv = append(kv, "event", event)
	keys := make([]string, 0, len(detail))
	for k := range detail {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		kv = append(kv, k, detail[k])
	}
	return kv
}

// DebugOn reports whether debug-level output is enabled, for callers that
// want to skip building expensive detail Pairs.
func DebugOn() bool {
	return logLevel == "debug" || logLevel == "trace"
}

// TraceOn reports whether trace-level output is enabled.
func TraceOn() bool {
	return logLevel == "trace"
}

// Debug sends a debug-level event to the logger
func Debug(event string, detail Pairs) {
	level.Debug(logger()).Log(keyvals(event, detail)...)
}

// Trace sends an extra-verbose debug event to the logger; it is dropped
// unless the level is trace.
func Trace(event string, detail Pairs) {
	if TraceOn() {
		level.Debug(logger()).Log(keyvals(event, detail)...)
	}
}

// Info sends an info-level event to the logger
func Info(event string, detail Pairs) {
	level.Info(logger()).Log(keyvals(event, detail)...)
}

// Warn sends a warn-level event to the logger
func Warn(event string, detail Pairs) {
	level.Warn(logger()).Log(keyvals(event, detail)...)
}

// WarnOnce sends a warn-level event to the logger the first time it is
// called for the given key, and drops it afterwards
func WarnOnce(key string, event string, detail Pairs) {
	onceRegistry.Lock()
	seen := onceRegistry.seen[key]
	onceRegistry.seen[key] = true
	onceRegistry.Unlock()
	if !seen {
		Warn(event, detail)
	}
}

// Error sends an error-level event to the logger
func Error(event string, detail Pairs) {
	level.Error(logger()).Log(keyvals(event, detail)...)
}

// ErrorOnce sends an error-level event to the logger the first time it is
// called for the given key, and drops it afterwards
func ErrorOnce(key string, event string, detail Pairs) {
	onceRegistry.Lock()
	seen := onceRegistry.seen[key]
	onceRegistry.seen[key] = true
	onceRegistry.Unlock()
	if !seen {
		Error(event, detail)
	}
}
