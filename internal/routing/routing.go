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

// Package routing registers the debug frontend routes: the running-config
// handler, the ping handler and the prometheus metrics endpoint.
package routing

import (
	"fmt"
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Comcast/hrw/internal/config"
	"github.com/Comcast/hrw/internal/util/log"
)

// Router is the debug frontend's request router
var Router = mux.NewRouter()

// RegisterDebugRoutes registers the config, ping and metrics handlers
// per the running configuration
func RegisterDebugRoutes() {
	if config.Main.ConfigHandlerPath != "" {
		log.Debug("registering config handler path", log.Pairs{"path": config.Main.ConfigHandlerPath})
		Router.HandleFunc(config.Main.ConfigHandlerPath, configHandler).Methods(http.MethodGet)
	}
	if config.Main.PingHandlerPath != "" {
		log.Debug("registering ping handler path", log.Pairs{"path": config.Main.PingHandlerPath})
		Router.HandleFunc(config.Main.PingHandlerPath, pingHandler).Methods(http.MethodGet)
	}
	Router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

// ListenAndServe starts the debug frontend when configured. The handler
// usually wraps Router (e.g. in the rewrite middleware); nil serves the
// bare Router.
func ListenAndServe(h http.Handler) error {
	if config.Frontend == nil || config.Frontend.ListenPort <= 0 {
		return nil
	}
	if h == nil {
		h = Router
	}
	addr := fmt.Sprintf("%s:%d", config.Frontend.ListenAddress, config.Frontend.ListenPort)
	log.Info("debug http endpoint starting", log.Pairs{"address": addr})
	return http.ListenAndServe(addr, handlers.CombinedLoggingHandler(os.Stdout, h))
}

func configHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(config.Config.String()))
}

func pingHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}
