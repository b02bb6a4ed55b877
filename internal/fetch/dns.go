// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// dnsTypes maps the record types the dig command accepts to their codes.
var dnsTypes = map[string]int{
	"A":     1,
	"NS":    2,
	"CNAME": 5,
	"SOA":   6,
	"MX":    15,
	"TXT":   16,
	"AAAA":  28,
}

type (
	// DNS resolves records through a DNS-over-HTTPS JSON endpoint.
	DNS struct {
		client  *Client
		baseURL string
	}

	// DNSAnswer is one resource record of a reply.
	DNSAnswer struct {
		Name string `json:"name"`
		Type int    `json:"type"`
		TTL  int    `json:"TTL"`
		Data string `json:"data"`
	}

	// DNSReply is a decoded DoH JSON reply.
	DNSReply struct {
		Status int         `json:"Status"`
		Answer []DNSAnswer `json:"Answer"`
	}
)

// TypeName returns the mnemonic of a record type code.
func TypeName(code int) string {
	for name, c := range dnsTypes {
		if c == code {
			return name
		}
	}
	return fmt.Sprintf("TYPE%d", code)
}

// Lookup queries name for records of type rrType (A when empty).
func (d *DNS) Lookup(ctx context.Context, name, rrType string) (*DNSReply, error) {
	if rrType == "" {
		rrType = "A"
	}
	rrType = strings.ToUpper(rrType)
	if _, ok := dnsTypes[rrType]; !ok {
		return nil, fmt.Errorf("dig: unsupported record type %s", rrType)
	}

	q := url.Values{}
	q.Set("name", name)
	q.Set("type", rrType)
	h := http.Header{}
	h.Set("Accept", "application/dns-json")

	var reply DNSReply
	if err := d.client.GetJSON(ctx, d.baseURL+"/dns-query?"+q.Encode(), h, &reply); err != nil {
		return nil, fmt.Errorf("dns %s %s: %w", rrType, name, err)
	}
	return &reply, nil
}
