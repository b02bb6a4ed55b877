// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

type (
	// GitHub queries public users and repositories.
	GitHub struct {
		client  *Client
		baseURL string
		token   string
	}

	// GitHubUser is the subset of a user profile the terminal shows.
	GitHubUser struct {
		Login       string `json:"login"`
		Name        string `json:"name"`
		Bio         string `json:"bio"`
		PublicRepos int    `json:"public_repos"`
		Followers   int    `json:"followers"`
		Following   int    `json:"following"`
		HTMLURL     string `json:"html_url"`
	}

	// GitHubRepo is the subset of a repository the terminal shows.
	GitHubRepo struct {
		FullName    string `json:"full_name"`
		Description string `json:"description"`
		Language    string `json:"language"`
		Stars       int    `json:"stargazers_count"`
		Forks       int    `json:"forks_count"`
		OpenIssues  int    `json:"open_issues_count"`
		HTMLURL     string `json:"html_url"`
	}
)

// User fetches a profile by login.
func (g *GitHub) User(ctx context.Context, login string) (*GitHubUser, error) {
	var u GitHubUser
	if err := g.client.GetJSON(ctx, g.baseURL+"/users/"+url.PathEscape(login), g.header(), &u); err != nil {
		return nil, fmt.Errorf("github user %s: %w", login, err)
	}
	return &u, nil
}

// Repo fetches a repository given as "owner/name".
func (g *GitHub) Repo(ctx context.Context, fullName string) (*GitHubRepo, error) {
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return nil, fmt.Errorf("github repo %q: expected owner/name", fullName)
	}
	var r GitHubRepo
	reqURL := fmt.Sprintf("%s/repos/%s/%s", g.baseURL, url.PathEscape(owner), url.PathEscape(name))
	if err := g.client.GetJSON(ctx, reqURL, g.header(), &r); err != nil {
		return nil, fmt.Errorf("github repo %s: %w", fullName, err)
	}
	return &r, nil
}

func (g *GitHub) header() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/vnd.github+json")
	h.Set("X-GitHub-Api-Version", "2022-11-28")
	if g.token != "" {
		h.Set("Authorization", "Bearer "+g.token)
	}
	return h
}
