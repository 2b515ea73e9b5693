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
	"sync/atomic"

	"github.com/Comcast/hrw/internal/util/log"
	"github.com/oschwald/maxminddb-golang"
)

// geoUnknown is what GEO produces when no database is loaded or the lookup
// fails.
const geoUnknown = "(unknown)"

var geoDB atomic.Value // *maxminddb.Reader

// OpenGeoDatabase loads the MaxMind database consulted by the GEO
// condition. Called at config-load time; a missing path leaves GEO
// answering "(unknown)".
func OpenGeoDatabase(path string) error {
	if path == "" {
		return nil
	}
	r, err := maxminddb.Open(path)
	if err != nil {
		return err
	}
	geoDB.Store(r)
	log.Info("geo database loaded", log.Pairs{"path": path})
	return nil
}

func geoReader() *maxminddb.Reader {
	if r, ok := geoDB.Load().(*maxminddb.Reader); ok {
		return r
	}
	return nil
}

// geoQual selects which GEO fact the condition produces.
type geoQual int

const (
	geoQualCountry geoQual = iota
	geoQualCountryISO
	geoQualASN
	geoQualASNName
)

// condGeo matches a GeoIP fact about the client address.
type condGeo struct {
	condBase
	qual geoQual
	m    *StringMatcher
}

func newCondGeo(p *LineParser, qual string) (Condition, error) {
	c := &condGeo{}
	if err := c.initialize(p); err != nil {
		return nil, err
	}
	switch qual {
	case "COUNTRY", "":
		c.qual = geoQualCountry
	case "COUNTRY-ISO":
		c.qual = geoQualCountryISO
	case "ASN":
		c.qual = geoQualASN
	case "ASN-NAME":
		c.qual = geoQualASNName
	default:
		return nil, &SyntaxError{Msg: "invalid GEO qualifier", Token: qual}
	}
	m, err := c.stringMatcher()
	if err != nil {
		return nil, err
	}
	c.m = m
	return c, nil
}

func (c *condGeo) lookup(res *Resources) string {
	r := geoReader()
	ip := addrIP(res.Host.ClientAddr())
	if r == nil || ip == nil {
		return geoUnknown
	}

	switch c.qual {
	case geoQualASN, geoQualASNName:
		var rec struct {
			Number uint   `maxminddb:"autonomous_system_number"`
			Org    string `maxminddb:"autonomous_system_organization"`
		}
		if err := r.Lookup(ip, &rec); err != nil {
			log.ErrorOnce("geo.asn", "geo lookup failed", log.Pairs{"detail": err.Error()})
			return geoUnknown
		}
		if c.qual == geoQualASN {
			if rec.Number == 0 {
				return geoUnknown
			}
			return strconv.FormatUint(uint64(rec.Number), 10)
		}
		if rec.Org == "" {
			return geoUnknown
		}
		return rec.Org
	default:
		var rec struct {
			Country struct {
				ISOCode string            `maxminddb:"iso_code"`
				Names   map[string]string `maxminddb:"names"`
			} `maxminddb:"country"`
		}
		if err := r.Lookup(ip, &rec); err != nil {
			log.ErrorOnce("geo.country", "geo lookup failed", log.Pairs{"detail": err.Error()})
			return geoUnknown
		}
		if c.qual == geoQualCountryISO {
			if rec.Country.ISOCode == "" {
				return geoUnknown
			}
			return rec.Country.ISOCode
		}
		if n, ok := rec.Country.Names["en"]; ok && n != "" {
			return n
		}
		if rec.Country.ISOCode != "" {
			return rec.Country.ISOCode
		}
		return geoUnknown
	}
}

func (c *condGeo) AppendValue(b *strings.Builder, res *Resources) {
	b.WriteString(c.lookup(res))
}

func (c *condGeo) Eval(res *Resources) bool {
	return c.m.Test(c.lookup(res), res)
}
