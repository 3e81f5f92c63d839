// README: Atlas bus search; route-page link check and city directory.
package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultAtlasBaseURL = "https://atlasbus.ru"

// httpClient guards against stalled connections; context cancellation still applies per request.
var httpClient = &http.Client{Timeout: 30 * time.Second}

type AtlasSearcher struct {
	baseURL string
	client  *http.Client
}

func NewAtlasSearcher(baseURL string) *AtlasSearcher {
	if baseURL == "" {
		baseURL = defaultAtlasBaseURL
	}
	return &AtlasSearcher{baseURL: strings.TrimRight(baseURL, "/"), client: httpClient}
}

// RoutesURL is the public route page for a city pair and date.
func (a *AtlasSearcher) RoutesURL(q Query) string {
	return fmt.Sprintf("%s/Маршруты/%s/%s?date=%s",
		a.baseURL, url.PathEscape(q.Origin), url.PathEscape(q.Destination), url.QueryEscape(q.Date))
}

// Search reports the route page when it exists.
func (a *AtlasSearcher) Search(ctx context.Context, q Query) ([]Option, error) {
	link := a.RoutesURL(q)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("atlas: build request: %w", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("atlas: do request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("atlas: unexpected status %d", resp.StatusCode)
	}
	return []Option{{
		Title:    fmt.Sprintf("Bus %s → %s on %s", q.Origin, q.Destination, q.Date),
		URL:      link,
		Provider: "atlas",
	}}, nil
}

type atlasCity struct {
	ID   json.Number `json:"id"`
	Name string      `json:"name"`
}

type atlasCitiesResponse struct {
	Cities []atlasCity `json:"cities"`
	Items  []atlasCity `json:"items"`
}

// LookupCity returns the first city Atlas knows under name.
func (a *AtlasSearcher) LookupCity(ctx context.Context, name string) (string, bool, error) {
	endpoint := a.baseURL + "/api/geo/v1/cities/search?term=" + url.QueryEscape(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", false, fmt.Errorf("atlas: build request: %w", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("atlas: do request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("atlas: city search status %d", resp.StatusCode)
	}

	var body atlasCitiesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", false, fmt.Errorf("atlas: decode cities: %w", err)
	}
	cities := body.Cities
	if len(cities) == 0 {
		cities = body.Items
	}
	if len(cities) == 0 || strings.TrimSpace(cities[0].Name) == "" {
		return "", false, nil
	}
	return cities[0].Name, true, nil
}
