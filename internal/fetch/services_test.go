// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// newTestServices starts a server answering every upstream route and returns
// Services pointed at it.
func newTestServices(t *testing.T, cfg Config) (*Services, *httptest.Server) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /users/{login}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("login") == "ghost" {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, map[string]any{
			"login": r.PathValue("login"), "name": "Octo Cat", "public_repos": 8,
			"followers": 100, "following": 1, "html_url": "https://github.com/octocat",
			"auth": r.Header.Get("Authorization"),
		})
	})
	mux.HandleFunc("GET /repos/{owner}/{name}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"full_name": r.PathValue("owner") + "/" + r.PathValue("name"), "description": "demo",
			"language": "Go", "stargazers_count": 42, "forks_count": 7, "open_issues_count": 3,
		})
	})
	mux.HandleFunc("GET /left-pad/latest", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"name": "left-pad", "version": "1.3.0", "description": "pad", "license": "WTFPL"})
	})
	mux.HandleFunc("GET /@scope/old/latest", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"name": "@scope/old", "version": "0.1.0", "license": map[string]string{"type": "MIT"}})
	})
	mux.HandleFunc("GET /Paris", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("format") != "j1" {
			http.Error(w, "format", http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]any{
			"current_condition": []map[string]any{{
				"temp_C": "18", "FeelsLikeC": "17", "humidity": "60", "windspeedKmph": "11",
				"weatherDesc": []map[string]string{{"value": "Partly cloudy"}},
			}},
			"nearest_area": []map[string]any{{
				"areaName": []map[string]string{{"value": "Paris"}},
				"country":  []map[string]string{{"value": "France"}},
			}},
		})
	})
	mux.HandleFunc("GET /dns-query", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "application/dns-json" {
			http.Error(w, "accept", http.StatusBadRequest)
			return
		}
		writeJSON(w, map[string]any{"Status": 0, "Answer": []map[string]any{
			{"name": r.URL.Query().Get("name") + ".", "type": 1, "TTL": 300, "data": "93.184.216.34"},
		}})
	})
	mux.HandleFunc("GET /json/{target}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("target") == "bogus" {
			writeJSON(w, map[string]any{"status": "fail", "message": "invalid query"})
			return
		}
		writeJSON(w, map[string]any{"status": "success", "query": r.PathValue("target"),
			"country": "Australia", "city": "Sydney", "isp": "APNIC"})
	})
	mux.HandleFunc("GET /create.php", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Query().Get("url"), "https://") {
			_, _ = w.Write([]byte("Error: Please enter a valid URL to shorten"))
			return
		}
		_, _ = w.Write([]byte("https://is.gd/abc123\n"))
	})
	mux.HandleFunc("HEAD /s/one", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/s/two", http.StatusMovedPermanently)
	})
	mux.HandleFunc("HEAD /s/two", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusFound)
	})
	mux.HandleFunc("HEAD /s/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/s/loop", http.StatusFound)
	})
	mux.HandleFunc("GET /final", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("landed"))
	})
	mux.HandleFunc("GET /search", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"results": []map[string]string{
			{"trackName": "Song for " + r.URL.Query().Get("term"), "artistName": "Band", "collectionName": "Album"},
		}})
	})
	mux.HandleFunc("GET /youtube/v3/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "yt-key" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		writeJSON(w, map[string]any{"items": []map[string]any{
			{"id": map[string]string{"videoId": "dQw4w9WgXcQ"}, "snippet": map[string]string{"title": "Clip", "channelTitle": "Chan"}},
		}})
	})
	mux.HandleFunc("GET /broken", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})
	mux.HandleFunc("POST /v1/messages", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "ai-key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role string `json:"role"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, map[string]any{
			"id": "msg_test", "type": "message", "role": "assistant", "model": body.Model,
			"stop_reason": "end_turn",
			"content":     []map[string]any{{"type": "text", "text": "turns=" + strings.Repeat("x", len(body.Messages))}},
			"usage":       map[string]any{"input_tokens": 3, "output_tokens": 2},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg.Endpoints = Endpoints{
		GitHub: srv.URL, NPM: srv.URL, Weather: srv.URL, DNS: srv.URL, GeoIP: srv.URL,
		Shortener: srv.URL, Music: srv.URL, Video: srv.URL, Anthropic: srv.URL,
	}
	client := NewClient(WithGuard(NewGuard(GuardConfig{AllowPrivate: true})))
	return NewServices(client, cfg), srv
}

func TestGitHub(t *testing.T) {
	t.Parallel()

	svc, _ := newTestServices(t, Config{GitHubToken: "gh-token"})
	ctx := t.Context()

	u, err := svc.GitHub.User(ctx, "octocat")
	if err != nil {
		t.Fatalf("User() error = %v", err)
	}
	if u.Login != "octocat" || u.PublicRepos != 8 || u.Followers != 100 {
		t.Errorf("User() = %+v", u)
	}

	if _, err := svc.GitHub.User(ctx, "ghost"); !IsNotFound(err) {
		t.Errorf("User(ghost) error = %v, want 404 StatusError", err)
	}

	r, err := svc.GitHub.Repo(ctx, "golang/go")
	if err != nil {
		t.Fatalf("Repo() error = %v", err)
	}
	want := GitHubRepo{FullName: "golang/go", Description: "demo", Language: "Go", Stars: 42, Forks: 7, OpenIssues: 3}
	if diff := cmp.Diff(want, *r); diff != "" {
		t.Errorf("Repo() mismatch (-want +got):\n%s", diff)
	}

	if _, err := svc.GitHub.Repo(ctx, "no-slash"); err == nil {
		t.Error("Repo(no-slash) should fail")
	}
}

func TestNPM_Latest(t *testing.T) {
	t.Parallel()

	svc, _ := newTestServices(t, Config{})

	p, err := svc.NPM.Latest(t.Context(), "left-pad")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if p.Version != "1.3.0" || p.LicenseName() != "WTFPL" {
		t.Errorf("Latest() = %+v", p)
	}

	scoped, err := svc.NPM.Latest(t.Context(), "@scope/old")
	if err != nil {
		t.Fatalf("Latest(scoped) error = %v", err)
	}
	if scoped.LicenseName() != "MIT" {
		t.Errorf("legacy license object = %q, want MIT", scoped.LicenseName())
	}
}

func TestWeather_Current(t *testing.T) {
	t.Parallel()

	svc, _ := newTestServices(t, Config{})
	got, err := svc.Weather.Current(t.Context(), "Paris")
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	want := Conditions{Location: "Paris, France", Description: "Partly cloudy", TempC: "18", FeelsLikeC: "17", Humidity: "60", WindKmph: "11"}
	if diff := cmp.Diff(want, *got); diff != "" {
		t.Errorf("Current() mismatch (-want +got):\n%s", diff)
	}
}

func TestDNS_Lookup(t *testing.T) {
	t.Parallel()

	svc, _ := newTestServices(t, Config{})
	reply, err := svc.DNS.Lookup(t.Context(), "example.com", "a")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if len(reply.Answer) != 1 || reply.Answer[0].Data != "93.184.216.34" || TypeName(reply.Answer[0].Type) != "A" {
		t.Errorf("Lookup() = %+v", reply)
	}
	if _, err := svc.DNS.Lookup(t.Context(), "example.com", "BOGUS"); err == nil {
		t.Error("Lookup(BOGUS) should fail")
	}
	if got := TypeName(99); got != "TYPE99" {
		t.Errorf("TypeName(99) = %q", got)
	}
}

func TestGeoIP_Locate(t *testing.T) {
	t.Parallel()

	svc, _ := newTestServices(t, Config{})
	loc, err := svc.GeoIP.Locate(t.Context(), "1.1.1.1")
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if loc.Query != "1.1.1.1" || loc.City != "Sydney" {
		t.Errorf("Locate() = %+v", loc)
	}
	if _, err := svc.GeoIP.Locate(t.Context(), "bogus"); err == nil || !strings.Contains(err.Error(), "invalid query") {
		t.Errorf("Locate(bogus) error = %v", err)
	}
}

func TestShortener(t *testing.T) {
	t.Parallel()

	svc, srv := newTestServices(t, Config{})
	ctx := t.Context()

	short, err := svc.Shortener.Shorten(ctx, "https://example.com/a/long/path")
	if err != nil {
		t.Fatalf("Shorten() error = %v", err)
	}
	if short != "https://is.gd/abc123" {
		t.Errorf("Shorten() = %q", short)
	}
	if _, err := svc.Shortener.Shorten(ctx, "ftp://example.com"); err == nil {
		t.Error("Shorten(ftp) should fail")
	}

	chain, err := svc.Shortener.Expand(ctx, srv.URL+"/s/one")
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	want := []string{srv.URL + "/s/one", srv.URL + "/s/two", srv.URL + "/final"}
	if diff := cmp.Diff(want, chain); diff != "" {
		t.Errorf("Expand() mismatch (-want +got):\n%s", diff)
	}

	if _, err := svc.Shortener.Expand(ctx, srv.URL+"/s/loop"); !errors.Is(err, ErrTooManyRedirects) {
		t.Errorf("Expand(loop) error = %v, want ErrTooManyRedirects", err)
	}
}

func TestMusicAndVideo(t *testing.T) {
	t.Parallel()

	svc, _ := newTestServices(t, Config{YouTubeAPIKey: "yt-key"})
	ctx := t.Context()

	tracks, err := svc.Music.Search(ctx, "jazz", 0)
	if err != nil {
		t.Fatalf("Music.Search() error = %v", err)
	}
	if len(tracks) != 1 || tracks[0].Name != "Song for jazz" {
		t.Errorf("Music.Search() = %+v", tracks)
	}

	hits, err := svc.Video.Search(ctx, "cats", 3)
	if err != nil {
		t.Fatalf("Video.Search() error = %v", err)
	}
	if len(hits) != 1 || hits[0].URL() != "https://www.youtube.com/watch?v=dQw4w9WgXcQ" {
		t.Errorf("Video.Search() = %+v", hits)
	}

	noKey, _ := newTestServices(t, Config{})
	if _, err := noKey.Video.Search(ctx, "cats", 3); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Video.Search() without key error = %v, want ErrMissingAPIKey", err)
	}
}

func TestAnthropicChat(t *testing.T) {
	t.Parallel()

	svc, _ := newTestServices(t, Config{AnthropicAPIKey: "ai-key"})
	reply, err := svc.AI.Reply(t.Context(), []Turn{
		{Role: "user", Text: "hi"},
		{Role: "assistant", Text: "hello"},
		{Role: "user", Text: "how are you?"},
	})
	if err != nil {
		t.Fatalf("Reply() error = %v", err)
	}
	if reply != "turns=xxx" {
		t.Errorf("Reply() = %q, want turns=xxx", reply)
	}

	noKey, _ := newTestServices(t, Config{})
	if _, err := noKey.AI.Reply(t.Context(), []Turn{{Role: "user", Text: "hi"}}); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Reply() without key error = %v, want ErrMissingAPIKey", err)
	}
}

func TestClient_FetchCheckAndStatus(t *testing.T) {
	t.Parallel()

	svc, srv := newTestServices(t, Config{})
	ctx := t.Context()

	page, err := svc.Client.Fetch(ctx, srv.URL+"/final", 3)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if page.StatusCode != http.StatusOK || page.Body != "lan" || !page.Truncated {
		t.Errorf("Fetch() = %+v", page)
	}

	avail, err := svc.Client.Check(ctx, srv.URL+"/broken")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if avail.Up || avail.StatusCode != http.StatusBadGateway {
		t.Errorf("Check(broken) = %+v", avail)
	}

	var out map[string]any
	err = svc.Client.GetJSON(ctx, srv.URL+"/broken?key=secret", nil, &out)
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusBadGateway {
		t.Fatalf("GetJSON(broken) error = %v, want StatusError 502", err)
	}
	if strings.Contains(err.Error(), "secret") {
		t.Errorf("StatusError leaks the query string: %v", err)
	}
}

func TestClient_GuardBlocksByDefault(t *testing.T) {
	t.Parallel()

	_, srv := newTestServices(t, Config{})
	strict := NewClient()
	if _, err := strict.Fetch(t.Context(), srv.URL+"/final", 0); !errors.Is(err, ErrBlockedDestination) {
		t.Errorf("Fetch(loopback) error = %v, want ErrBlockedDestination", err)
	}
	if _, err := strict.Ping(t.Context(), "127.0.0.1", 80); !errors.Is(err, ErrBlockedDestination) {
		t.Errorf("Ping(loopback) error = %v, want ErrBlockedDestination", err)
	}
}

func TestClient_Ping(t *testing.T) {
	t.Parallel()

	svc, srv := newTestServices(t, Config{})
	host, port := splitHostPort(t, srv.URL)
	if _, err := svc.Client.Ping(t.Context(), host, port); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}
