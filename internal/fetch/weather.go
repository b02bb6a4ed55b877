// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"fmt"
	"net/url"
)

type (
	// Weather reads current conditions from wttr.in.
	Weather struct {
		client  *Client
		baseURL string
	}

	// Conditions is the current weather at a location.
	Conditions struct {
		Location    string
		Description string
		TempC       string
		FeelsLikeC  string
		Humidity    string
		WindKmph    string
	}

	wttrResponse struct {
		CurrentCondition []struct {
			TempC       string `json:"temp_C"`
			FeelsLikeC  string `json:"FeelsLikeC"`
			Humidity    string `json:"humidity"`
			WindKmph    string `json:"windspeedKmph"`
			WeatherDesc []struct {
				Value string `json:"value"`
			} `json:"weatherDesc"`
		} `json:"current_condition"`
		NearestArea []struct {
			AreaName []struct {
				Value string `json:"value"`
			} `json:"areaName"`
			Country []struct {
				Value string `json:"value"`
			} `json:"country"`
		} `json:"nearest_area"`
	}
)

// Current returns the conditions for location, a city name or coordinates.
func (w *Weather) Current(ctx context.Context, location string) (*Conditions, error) {
	var raw wttrResponse
	reqURL := w.baseURL + "/" + url.PathEscape(location) + "?format=j1"
	if err := w.client.GetJSON(ctx, reqURL, nil, &raw); err != nil {
		return nil, fmt.Errorf("weather %s: %w", location, err)
	}
	if len(raw.CurrentCondition) == 0 {
		return nil, fmt.Errorf("weather %s: no current conditions in response", location)
	}

	cur := raw.CurrentCondition[0]
	c := &Conditions{
		Location:   location,
		TempC:      cur.TempC,
		FeelsLikeC: cur.FeelsLikeC,
		Humidity:   cur.Humidity,
		WindKmph:   cur.WindKmph,
	}
	if len(cur.WeatherDesc) > 0 {
		c.Description = cur.WeatherDesc[0].Value
	}
	if len(raw.NearestArea) > 0 {
		area := raw.NearestArea[0]
		if len(area.AreaName) > 0 && area.AreaName[0].Value != "" {
			c.Location = area.AreaName[0].Value
			if len(area.Country) > 0 && area.Country[0].Value != "" {
				c.Location += ", " + area.Country[0].Value
			}
		}
	}
	return c, nil
}
