package services

import (
	"context"
	"net/http"
	"net/url"
)

// SearchAPIProvider talks to searchapi.io using its google_lens and
// google_images engines.
type SearchAPIProvider struct {
	Endpoint string
	APIKey   string
	Country  string
	Language string
	Client   *http.Client
}

func (p *SearchAPIProvider) Name() string { return "searchapi" }

type searchAPILensResponse struct {
	VisualMatches []RawMatch `json:"visual_matches"`
}

type searchAPIImagesResponse struct {
	Images []struct {
		Title  string `json:"title"`
		Source struct {
			Name string `json:"name"`
			Link string `json:"link"`
		} `json:"source"`
		Original struct {
			Link string `json:"link"`
		} `json:"original"`
	} `json:"images"`
}

func (p *SearchAPIProvider) get(ctx context.Context, params url.Values, out interface{}) error {
	params.Set("api_key", p.APIKey)
	params.Set("gl", p.Country)
	params.Set("hl", p.Language)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	return doJSON(p.Client, req, p.Name(), out)
}

func (p *SearchAPIProvider) VisualMatches(ctx context.Context, mediaURL string) ([]RawMatch, error) {
	var out searchAPILensResponse
	if err := p.get(ctx, url.Values{"engine": {"google_lens"}, "url": {mediaURL}}, &out); err != nil {
		return nil, err
	}
	return out.VisualMatches, nil
}

func (p *SearchAPIProvider) ImageSearch(ctx context.Context, query string) ([]RawMatch, error) {
	var out searchAPIImagesResponse
	if err := p.get(ctx, url.Values{"engine": {"google_images"}, "q": {query}}, &out); err != nil {
		return nil, err
	}
	matches := make([]RawMatch, 0, len(out.Images))
	for _, img := range out.Images {
		link := img.Source.Link
		if link == "" {
			link = img.Original.Link
		}
		matches = append(matches, RawMatch{Title: img.Title, Source: img.Source.Name, Link: link})
	}
	return matches, nil
}
