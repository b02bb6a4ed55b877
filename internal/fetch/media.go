// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

const defaultSearchLimit = 5

type (
	// Music searches the iTunes catalogue.
	Music struct {
		client  *Client
		baseURL string
	}

	// Track is one music search hit.
	Track struct {
		Name       string `json:"trackName"`
		Artist     string `json:"artistName"`
		Album      string `json:"collectionName"`
		PreviewURL string `json:"previewUrl"`
		ViewURL    string `json:"trackViewUrl"`
	}

	// Video searches YouTube.
	Video struct {
		client  *Client
		baseURL string
		apiKey  string
	}

	// VideoHit is one video search hit.
	VideoHit struct {
		ID      string
		Title   string
		Channel string
	}

	youtubeSearch struct {
		Items []struct {
			ID struct {
				VideoID string `json:"videoId"`
			} `json:"id"`
			Snippet struct {
				Title        string `json:"title"`
				ChannelTitle string `json:"channelTitle"`
			} `json:"snippet"`
		} `json:"items"`
	}
)

// Search returns up to limit tracks matching term.
func (m *Music) Search(ctx context.Context, term string, limit int) ([]Track, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	q := url.Values{}
	q.Set("term", term)
	q.Set("media", "music")
	q.Set("entity", "song")
	q.Set("limit", strconv.Itoa(limit))

	var resp struct {
		Results []Track `json:"results"`
	}
	if err := m.client.GetJSON(ctx, m.baseURL+"/search?"+q.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("music search %q: %w", term, err)
	}
	return resp.Results, nil
}

// URL returns the watch URL of the hit.
func (h VideoHit) URL() string {
	return "https://www.youtube.com/watch?v=" + h.ID
}

// Search returns up to limit videos matching query.
func (v *Video) Search(ctx context.Context, query string, limit int) ([]VideoHit, error) {
	if v.apiKey == "" {
		return nil, fmt.Errorf("video search: %w", ErrMissingAPIKey)
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("type", "video")
	q.Set("maxResults", strconv.Itoa(limit))
	q.Set("q", query)
	q.Set("key", v.apiKey)

	var resp youtubeSearch
	if err := v.client.GetJSON(ctx, v.baseURL+"/youtube/v3/search?"+q.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("video search %q: %w", query, err)
	}
	hits := make([]VideoHit, 0, len(resp.Items))
	for _, it := range resp.Items {
		hits = append(hits, VideoHit{ID: it.ID.VideoID, Title: it.Snippet.Title, Channel: it.Snippet.ChannelTitle})
	}
	return hits, nil
}
