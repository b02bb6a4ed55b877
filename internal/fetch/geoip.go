// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"fmt"
	"net/url"
)

type (
	// GeoIP locates IP addresses and hostnames.
	GeoIP struct {
		client  *Client
		baseURL string
	}

	// Location is an ip-api.com reply.
	Location struct {
		Status   string  `json:"status"`
		Message  string  `json:"message"`
		Query    string  `json:"query"`
		Country  string  `json:"country"`
		Region   string  `json:"regionName"`
		City     string  `json:"city"`
		ISP      string  `json:"isp"`
		Org      string  `json:"org"`
		Timezone string  `json:"timezone"`
		Lat      float64 `json:"lat"`
		Lon      float64 `json:"lon"`
	}
)

// Locate looks up target. An empty target locates the caller's address.
func (g *GeoIP) Locate(ctx context.Context, target string) (*Location, error) {
	reqURL := g.baseURL + "/json/"
	if target != "" {
		reqURL += url.PathEscape(target)
	}
	var loc Location
	if err := g.client.GetJSON(ctx, reqURL, nil, &loc); err != nil {
		return nil, fmt.Errorf("geoip %s: %w", target, err)
	}
	if loc.Status != "" && loc.Status != "success" {
		return nil, fmt.Errorf("geoip %s: %s", target, loc.Message)
	}
	return &loc, nil
}
