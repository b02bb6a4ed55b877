// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"errors"
	"strings"
)

// ErrMissingAPIKey is returned by services that need a key nobody configured.
var ErrMissingAPIKey = errors.New("service is not configured (missing API key)")

type (
	// Endpoints holds the base URL of every upstream. Empty fields take the
	// public defaults; tests point them all at one httptest server.
	Endpoints struct {
		GitHub    string
		NPM       string
		Weather   string
		DNS       string
		GeoIP     string
		Shortener string
		Music     string
		Video     string
		Anthropic string
	}

	// Config configures NewServices.
	Config struct {
		Endpoints Endpoints
		// GitHubToken is optional and raises the GitHub rate limit.
		GitHubToken string
		// YouTubeAPIKey enables video search.
		YouTubeAPIKey string
		// AnthropicAPIKey enables the AI chat.
		AnthropicAPIKey string
		// AnthropicModel defaults to DefaultAnthropicModel.
		AnthropicModel string
		// AIMaxTokens defaults to DefaultAIMaxTokens.
		AIMaxTokens int64
	}

	// Services bundles every upstream wrapper behind one value for the shell.
	Services struct {
		Client    *Client
		GitHub    *GitHub
		NPM       *NPM
		Weather   *Weather
		DNS       *DNS
		GeoIP     *GeoIP
		Shortener *Shortener
		Music     *Music
		Video     *Video
		AI        Chatter
	}
)

// DefaultEndpoints returns the public service URLs.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		GitHub:    "https://api.github.com",
		NPM:       "https://registry.npmjs.org",
		Weather:   "https://wttr.in",
		DNS:       "https://cloudflare-dns.com",
		GeoIP:     "http://ip-api.com",
		Shortener: "https://is.gd",
		Music:     "https://itunes.apple.com",
		Video:     "https://www.googleapis.com",
		Anthropic: "https://api.anthropic.com",
	}
}

// Fill returns e with every empty field taken from DefaultEndpoints and
// trailing slashes trimmed.
func (e Endpoints) Fill() Endpoints {
	d := DefaultEndpoints()
	pick := func(v, def string) string {
		if v == "" {
			v = def
		}
		return strings.TrimRight(v, "/")
	}
	return Endpoints{
		GitHub:    pick(e.GitHub, d.GitHub),
		NPM:       pick(e.NPM, d.NPM),
		Weather:   pick(e.Weather, d.Weather),
		DNS:       pick(e.DNS, d.DNS),
		GeoIP:     pick(e.GeoIP, d.GeoIP),
		Shortener: pick(e.Shortener, d.Shortener),
		Music:     pick(e.Music, d.Music),
		Video:     pick(e.Video, d.Video),
		Anthropic: pick(e.Anthropic, d.Anthropic),
	}
}

// NewServices wires every service wrapper onto c.
func NewServices(c *Client, cfg Config) *Services {
	ep := cfg.Endpoints.Fill()
	return &Services{
		Client:    c,
		GitHub:    &GitHub{client: c, baseURL: ep.GitHub, token: cfg.GitHubToken},
		NPM:       &NPM{client: c, baseURL: ep.NPM},
		Weather:   &Weather{client: c, baseURL: ep.Weather},
		DNS:       &DNS{client: c, baseURL: ep.DNS},
		GeoIP:     &GeoIP{client: c, baseURL: ep.GeoIP},
		Shortener: &Shortener{client: c, baseURL: ep.Shortener},
		Music:     &Music{client: c, baseURL: ep.Music},
		Video:     &Video{client: c, baseURL: ep.Video, apiKey: cfg.YouTubeAPIKey},
		AI:        NewAnthropicChat(c, ep.Anthropic, cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.AIMaxTokens),
	}
}
