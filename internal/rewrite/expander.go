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
	"strconv"
	"strings"

	hdrsurl "github.com/Comcast/hrw/internal/hdrs/url"
)

// VariableExpander replaces %<...> log-style tokens in an expanded value.
// Unknown tokens are left as literal text.
type VariableExpander struct {
	source string
}

// NewVariableExpander wraps a source string for expansion.
func NewVariableExpander(source string) *VariableExpander {
	return &VariableExpander{source: source}
}

// Expand resolves every %<...> token against the Resources.
func (ve *VariableExpander) Expand(res *Resources) string {
	result := ve.source
	for {
		start := strings.Index(result, "%<")
		if start < 0 {
			break
		}
		end := strings.IndexByte(result[start:], '>')
		if end < 0 {
			break
		}
		end += start

		variable := result[start : end+1]
		var b strings.Builder

		switch variable {
		case "%<proto>":
			if u := res.Host.PristineURL(); u != nil {
				b.WriteString(u.Scheme())
			}
		case "%<port>":
			if u := res.Host.PristineURL(); u != nil {
				b.WriteString(strconv.Itoa(int(u.CanonicalPort())))
			}
		case "%<chi>":
			if ip := addrIP(res.Host.ClientAddr()); ip != nil {
				b.WriteString(ip.String())
			}
		case "%<cqhl>":
			if h := res.ClientReqHdr; h != nil {
				length := 0
				for i := 0; ; i++ {
					f := h.FieldGet(i)
					if f == nil {
						break
					}
					// name: value\r\n
					length += len(h.Name(f)) + 2 + len(h.Value(f)) + 2
				}
				b.WriteString(strconv.Itoa(length))
			}
		case "%<cqhm>":
			b.WriteString(res.Host.Method())
		case "%<cquup>":
			if u := res.Host.PristineURL(); u != nil {
				b.WriteString(u.Path())
			}
		case "%<cque>":
			if u := res.Host.EffectiveURL(); u != nil {
				b.WriteString(u.Print(hdrsurl.NormNone))
			}
		case "%<INBOUND:REMOTE-ADDR>":
			appendInbound(&b, res, netQualRemoteAddr)
		case "%<INBOUND:REMOTE-PORT>":
			appendInbound(&b, res, netQualRemotePort)
		case "%<INBOUND:LOCAL-ADDR>":
			appendInbound(&b, res, netQualLocalAddr)
		case "%<INBOUND:LOCAL-PORT>":
			appendInbound(&b, res, netQualLocalPort)
		case "%<INBOUND:TLS>":
			appendInbound(&b, res, netQualTLS)
		case "%<INBOUND:H2>":
			appendInbound(&b, res, netQualH2)
		case "%<INBOUND:IPV4>":
			appendInbound(&b, res, netQualIPv4)
		case "%<INBOUND:IPV6>":
			appendInbound(&b, res, netQualIPv6)
		case "%<INBOUND:IP-FAMILY>":
			appendInbound(&b, res, netQualIPFamily)
		case "%<INBOUND:STACK>":
			appendInbound(&b, res, netQualStack)
		default:
			// Unknown token: keep it as literal text and move past it.
			return result[:end+1] + ve.expandRest(result[end+1:], res)
		}

		result = result[:start] + b.String() + result[end+1:]
	}
	return result
}

func (ve *VariableExpander) expandRest(rest string, res *Resources) string {
	return NewVariableExpander(rest).Expand(res)
}
