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

package rewrite

import (
	"time"

	"github.com/Comcast/hrw/internal/util/log"
	"github.com/Comcast/hrw/internal/util/metrics"
)

// Run fires one hook: it materialises a Resources view from the hook's
// aggregated resource bits, walks the hook's rule chain in declared order,
// and returns the disposition. For the remap pseudo-hook the disposition
// reports whether any operator changed the request URL.
//
// The engine is per-transaction single-threaded and holds no state across
// hooks; all runtime errors are recovered, so a faulty rule is simply a
// non-match.
func Run(rc *RulesConfig, hook HookID, host TxnHost, rri *RemapRequestInfo) Disposition {
	start := time.Now()

	res := NewResources(host, rri)
	res.Timezone = rc.Timezone()
	res.InboundIPSource = rc.InboundIPSource()
	res.Gather(rc.ResID(hook), hook)

	hookTag := hook.String()
	for rule := rc.Rule(hook); rule != nil; rule = rule.Next {
		mods, matched := rule.Exec(res)
		if matched {
			metrics.RulesEvaluated.WithLabelValues(hookTag, "true").Inc()
		} else {
			metrics.RulesEvaluated.WithLabelValues(hookTag, "false").Inc()
		}
		if rule.Last() || mods&OperLast != 0 {
			log.Trace("rule chain stopped by LAST", log.Pairs{"hook": hookTag})
			break
		}
	}

	metrics.HookDuration.WithLabelValues(hookTag).Observe(time.Since(start).Seconds())

	if hook == HookRemap {
		if res.ChangedURL {
			return DispDidRemap
		}
		return DispNoRemap
	}
	return DispContinue
}
