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

package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/fatih/color"

	cr "github.com/Comcast/hrw/internal/cache/registration"
	"github.com/Comcast/hrw/internal/config"
	"github.com/Comcast/hrw/internal/host"
	"github.com/Comcast/hrw/internal/rewrite"
	"github.com/Comcast/hrw/internal/routing"
	"github.com/Comcast/hrw/internal/runtime"
	"github.com/Comcast/hrw/internal/util/log"
	"github.com/Comcast/hrw/internal/util/metrics"
	"github.com/Comcast/hrw/internal/util/tracing"
)

const (
	applicationName    = "hrw"
	applicationVersion = "1.0.0"
)

// RulesConfigHolder holds the active compiled ruleset read by the frontend
// middleware. A SIGHUP recompiles the rule files and swaps it atomically;
// in-flight transactions keep the config they started with.
var RulesConfigHolder atomic.Value

func main() {

	var err error

	runtime.ApplicationName = applicationName
	runtime.ApplicationVersion = applicationVersion

	err = config.Load(runtime.ApplicationName, runtime.ApplicationVersion, os.Args[1:])
	if err != nil {
		fmt.Println("Could not load configuration:", err.Error())
		os.Exit(1)
	}

	if config.Flags.PrintVersion {
		fmt.Println(runtime.ApplicationVersion)
		os.Exit(0)
	}

	log.Init()
	defer log.Info("application exiting", log.Pairs{})

	log.Info("application starting",
		log.Pairs{"name": runtime.ApplicationName, "version": runtime.ApplicationVersion})

	for _, w := range config.LoaderWarnings {
		log.Warn(w, log.Pairs{})
	}

	// Compile every configured rule file; any error fails the load.
	ok := true
	for _, f := range config.Rules.Files {
		rc, err := rewrite.LoadConfig(f)
		if err != nil {
			color.Red("%s: FAILED", f)
			color.Red("  %s", err.Error())
			ok = false
			continue
		}
		color.Green("%s: OK", f)
		printRules(rc)
		RulesConfigHolder.Store(rc)
	}
	if !ok {
		os.Exit(1)
	}
	if config.Flags.ValidateOnly {
		os.Exit(0)
	}

	if _, err = tracing.Init(); err != nil {
		log.Error("unable to set tracer", log.Pairs{"detail": err.Error()})
	}

	if err = cr.LoadCachesFromConfig(); err != nil {
		log.Error("unable to load caches", log.Pairs{"detail": err.Error()})
		os.Exit(1)
	}
	defer cr.CloseCaches()

	metrics.ListenAndServe()
	routing.RegisterDebugRoutes()

	go watchReload()

	// The frontend serves through the rewrite middleware, so the compiled
	// rules apply to its requests and reloads are observable immediately.
	if err = routing.ListenAndServe(host.Middleware(&RulesConfigHolder, routing.Router)); err != nil {
		log.Error("debug http endpoint stopped", log.Pairs{"detail": err.Error()})
		os.Exit(1)
	}
}

// watchReload recompiles the configured rule files on SIGHUP and swaps the
// result into RulesConfigHolder. A file that fails to compile leaves the
// running ruleset untouched.
func watchReload() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGHUP)
	for range ch {
		for _, f := range config.Rules.Files {
			rc, err := rewrite.LoadConfig(f)
			if err != nil {
				log.Error("rule reload failed", log.Pairs{"file": f, "detail": err.Error()})
				continue
			}
			RulesConfigHolder.Store(rc)
			log.Info("rules reloaded", log.Pairs{"file": f})
		}
	}
}

// printRules summarizes the compiled per-hook chains for the operator.
func printRules(rc *rewrite.RulesConfig) {
	for h := rewrite.HookID(0); h < rewrite.HookLast; h++ {
		n := 0
		for rule := rc.Rule(h); rule != nil; rule = rule.Next {
			n++
		}
		if n > 0 {
			fmt.Printf("  %-28s %d rule(s), resources=0x%x\n", h.String(), n, rc.ResID(h))
		}
	}
}
