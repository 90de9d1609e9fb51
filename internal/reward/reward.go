// Package reward fetches the winner's reward artifact. The winning side is
// the only writer: it fetches once, then broadcasts the URL so the loser
// renders the same artifact.
package reward

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var ErrNoURL = errors.New("reward response had no url")

// Fetcher resolves an artifact URL for the race winner.
type Fetcher interface {
	Fetch(ctx context.Context) (url string, err error)
}

// HTTPFetcher fetches from a JSON endpoint shaped {"url": "..."}.
type HTTPFetcher struct {
	Endpoint string
	Client   *http.Client
}

func (f HTTPFetcher) Fetch(ctx context.Context) (string, error) {
	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.Endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch reward: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch reward: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode reward: %w", err)
	}
	if body.URL == "" {
		return "", ErrNoURL
	}
	return body.URL, nil
}

// Static always returns the same URL. Tests and offline play.
type Static string

func (s Static) Fetch(context.Context) (string, error) { return string(s), nil }
