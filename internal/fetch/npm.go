// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

type (
	// NPM reads package metadata from the npm registry.
	NPM struct {
		client  *Client
		baseURL string
	}

	// NPMPackage is the latest published version of a package.
	NPMPackage struct {
		Name        string     `json:"name"`
		Version     string     `json:"version"`
		Description string     `json:"description"`
		License     npmLicense `json:"license"`
		Homepage    string     `json:"homepage"`
	}

	// npmLicense accepts both the SPDX string form and the legacy
	// {"type": "..."} object form.
	npmLicense string
)

// UnmarshalJSON implements json.Unmarshaler.
func (l *npmLicense) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = npmLicense(s)
		return nil
	}
	var obj struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*l = npmLicense(obj.Type)
	return nil
}

// Latest returns the latest version of pkg. Scoped names ("@scope/name")
// are supported.
func (n *NPM) Latest(ctx context.Context, pkg string) (*NPMPackage, error) {
	if pkg == "" || strings.Count(pkg, "/") > 1 {
		return nil, fmt.Errorf("npm package %q: invalid name", pkg)
	}
	var p NPMPackage
	reqURL := n.baseURL + "/" + strings.ReplaceAll(url.PathEscape(pkg), "%2F", "/") + "/latest"
	if err := n.client.GetJSON(ctx, reqURL, nil, &p); err != nil {
		return nil, fmt.Errorf("npm package %s: %w", pkg, err)
	}
	return &p, nil
}

// LicenseName returns the license identifier.
func (p *NPMPackage) LicenseName() string {
	return string(p.License)
}
