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

// factory.go: factory functions for operators and conditions.

package rewrite

import (
	"strings"
)

// splitCondName splits "NAME:qualifier" into its parts.
func splitCondName(op string) (name, qualifier string) {
	if i := strings.IndexByte(op, ':'); i >= 0 {
		return op[:i], op[i+1:]
	}
	return op, ""
}

// conditionFactory builds one condition from a parsed line. Unknown names
// fail the load with UnknownConditionError.
func conditionFactory(p *LineParser, file string, line int) (Condition, error) {
	name, qual := splitCondName(p.Op())

	var c Condition
	var err error

	switch name {
	case "TRUE":
		t := &condTrue{}
		err = t.initialize(p)
		c = t
	case "FALSE":
		f := &condFalse{}
		err = f.initialize(p)
		c = f
	case "STATUS":
		c, err = newCondStatus(p)
	case "METHOD":
		c, err = newCondMethod(p)
	case "RANDOM":
		c, err = newCondRandom(p, qual)
	case "ACCESS":
		c, err = newCondAccess(p, qual)
	case "COOKIE":
		c, err = newCondCookie(p, qual)
	case "HEADER":
		c, err = newCondHeader(p, qual, false)
	case "CLIENT-HEADER":
		c, err = newCondHeader(p, qual, true)
	case "PATH":
		c, err = newCondPath(p)
	case "QUERY":
		c, err = newCondQuery(p)
	case "CLIENT-URL":
		c, err = newCondURL(p, qual, urlSourceClient)
	case "FROM-URL":
		c, err = newCondURL(p, qual, urlSourceFrom)
	case "TO-URL":
		c, err = newCondURL(p, qual, urlSourceTo)
	case "DBM":
		c, err = newCondDBM(p, qual)
	case "INTERNAL-TRANSACTION", "INTERNAL-TXN":
		t := &condInternalTxn{}
		err = t.initialize(p)
		c = t
	case "IP":
		c, err = newCondIP(p, qual)
	case "TXN-COUNT":
		c, err = newCondTxnCount(p)
	case "SSN-TXN-COUNT":
		c, err = newCondSsnTxnCount(p)
	case "NOW":
		c, err = newCondNow(p, qual)
	case "GEO":
		c, err = newCondGeo(p, qual)
	case "ID":
		c, err = newCondID(p, qual)
	case "CIDR":
		c, err = newCondCidr(p, qual)
	case "INBOUND":
		c, err = newCondInbound(p, qual)
	case "TCP-INFO":
		c, err = newCondTcpInfo(p, qual)
	case "CACHE":
		c, err = newCondCache(p)
	case "NEXT-HOP":
		c, err = newCondNextHop(p, qual)
	case "HTTP-CNTL":
		c, err = newCondHTTPCntl(p, qual)
	case "STATE-FLAG":
		c, err = newCondStateFlag(p, qual)
	case "STATE-INT8":
		c, err = newCondStateInt8(p, qual)
	case "STATE-INT16":
		c, err = newCondStateInt16(p)
	case "LAST-CAPTURE":
		c, err = newCondLastCapture(p, qual)
	default:
		return nil, &UnknownConditionError{File: file, Line: line, Name: p.Op()}
	}

	if err != nil {
		if se, ok := err.(*SyntaxError); ok {
			se.File, se.Line = file, line
		}
		if mc, ok := err.(*ModifierConflictError); ok {
			mc.File, mc.Line = file, line
		}
		return nil, err
	}
	return c, nil
}

// operatorFactory builds one operator from a parsed line. Unknown names
// fail the load with UnknownOperatorError.
func operatorFactory(p *LineParser, file string, line int) (Operator, error) {
	var o Operator
	var err error

	switch p.Op() {
	case "set-header":
		o, err = newOpSetHeader(p)
	case "add-header":
		o, err = newOpAddHeader(p)
	case "rm-header":
		o, err = newOpRMHeader(p)
	case "set-config":
		o, err = newOpSetConfig(p)
	case "set-status":
		o, err = newOpSetStatus(p)
	case "set-status-reason":
		o, err = newOpSetStatusReason(p)
	case "set-destination":
		o, err = newOpSetDestination(p)
	case "rm-destination":
		o, err = newOpRMDestination(p)
	case "set-redirect":
		o, err = newOpSetRedirect(p)
	case "set-timeout-out":
		o, err = newOpSetTimeoutOut(p)
	case "skip-remap":
		o, err = newOpSkipRemap(p)
	case "no-op":
		n := &opNoOp{}
		err = n.initialize(p)
		o = n
	case "counter":
		o, err = newOpCounter(p)
	case "rm-cookie":
		o, err = newOpRMCookie(p)
	case "set-cookie":
		o, err = newOpSetCookie(p, false)
	case "add-cookie":
		o, err = newOpSetCookie(p, true)
	case "set-conn-dscp":
		o, err = newOpSetConnDSCP(p)
	case "set-conn-mark":
		o, err = newOpSetConnMark(p)
	case "set-debug":
		o, err = newOpSetDebug(p)
	case "set-body":
		o, err = newOpSetBody(p)
	case "set-body-from":
		o, err = newOpSetBodyFrom(p)
	case "set-http-cntl":
		o, err = newOpSetHTTPCntl(p)
	case "set-plugin-cntl":
		o, err = newOpSetPluginCntl(p)
	case "run-plugin":
		o, err = newOpRunPlugin(p)
	case "set-state-flag":
		o, err = newOpSetStateFlag(p)
	case "set-state-int8":
		o, err = newOpSetStateInt8(p)
	case "set-state-int16":
		o, err = newOpSetStateInt16(p)
	case "set-effective-address":
		o, err = newOpSetEffectiveAddress(p)
	case "set-next-hop-strategy":
		o, err = newOpSetNextHopStrategy(p)
	case "set-cc-alg":
		o, err = newOpSetCCAlgorithm(p)
	default:
		return nil, &UnknownOperatorError{File: file, Line: line, Name: p.Op()}
	}

	if err != nil {
		if se, ok := err.(*SyntaxError); ok {
			se.File, se.Line = file, line
		}
		return nil, err
	}
	return o, nil
}
