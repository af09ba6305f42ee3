package services

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
)

// SerperProvider talks to google.serper.dev (Google Lens and Google Images).
type SerperProvider struct {
	BaseURL  string
	APIKey   string
	Country  string
	Language string
	Client   *http.Client
}

func (p *SerperProvider) Name() string { return "serper" }

type serperResponse struct {
	VisualMatches []RawMatch `json:"visualMatches"`
	Organic       []RawMatch `json:"organic"`
	Images        []RawMatch `json:"images"`
}

func (p *SerperProvider) post(ctx context.Context, path string, payload map[string]string) (*serperResponse, error) {
	payload["gl"] = p.Country
	payload["hl"] = p.Language
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", p.APIKey)
	req.Header.Set("Content-Type", "application/json")

	var out serperResponse
	if err := doJSON(p.Client, req, p.Name(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *SerperProvider) VisualMatches(ctx context.Context, mediaURL string) ([]RawMatch, error) {
	res, err := p.post(ctx, "/lens", map[string]string{"url": mediaURL})
	if err != nil {
		return nil, err
	}
	// A present but empty visualMatches is still a completed lookup.
	if res.VisualMatches != nil {
		return res.VisualMatches, nil
	}
	// Some lens responses put the same hits under "organic".
	return res.Organic, nil
}

func (p *SerperProvider) ImageSearch(ctx context.Context, query string) ([]RawMatch, error) {
	res, err := p.post(ctx, "/images", map[string]string{"q": query})
	if err != nil {
		return nil, err
	}
	return res.Images, nil
}
