package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// RawMatch is a single web hit as returned by a search provider.
type RawMatch struct {
	Title  string `json:"title"`
	Source string `json:"source"`
	Link   string `json:"link"`
}

// SearchProvider runs reverse-image and text image searches.
type SearchProvider interface {
	Name() string
	// VisualMatches runs a reverse-image lookup for the media at mediaURL.
	VisualMatches(ctx context.Context, mediaURL string) ([]RawMatch, error)
	// ImageSearch runs a plain text image search.
	ImageSearch(ctx context.Context, query string) ([]RawMatch, error)
}

var ErrNoProvider = errors.New("no search provider configured")

// NewSearchProvider picks the provider named in config. It returns
// ErrNoProvider when the selected provider has no API key.
func NewSearchProvider(config SearchConfig, client *http.Client) (SearchProvider, error) {
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}
	switch strings.ToLower(config.Provider) {
	case "", "serper":
		if config.SerperKey == "" {
			return nil, ErrNoProvider
		}
		return &SerperProvider{
			BaseURL:  strings.TrimRight(config.SerperURL, "/"),
			APIKey:   config.SerperKey,
			Country:  config.Country,
			Language: config.Language,
			Client:   client,
		}, nil
	case "searchapi":
		if config.SearchAPIKey == "" {
			return nil, ErrNoProvider
		}
		return &SearchAPIProvider{
			Endpoint: config.SearchAPIURL,
			APIKey:   config.SearchAPIKey,
			Country:  config.Country,
			Language: config.Language,
			Client:   client,
		}, nil
	}
	return nil, fmt.Errorf("unknown search provider %q", config.Provider)
}

// StatusError is returned when a provider answers with a non-2xx status.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Provider, e.Code, e.Body)
}

const maxProviderBody = 4 << 20

func doJSON(client *http.Client, req *http.Request, provider string, out interface{}) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request failed: %w", provider, err)
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, maxProviderBody)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(body, 256))
		return &StatusError{Provider: provider, Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", provider, err)
	}
	return nil
}
