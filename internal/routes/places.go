// README: City lookups against Google Places, and chaining of city directories.
package routes

import (
	"context"
	"fmt"
	"strings"

	"googlemaps.github.io/maps"
)

// PlacesDirectory resolves city names through Places text search restricted to localities.
type PlacesDirectory struct {
	client   *maps.Client
	language string
}

func NewPlacesDirectory(apiKey, language string) (*PlacesDirectory, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	if language == "" {
		language = "en"
	}
	return &PlacesDirectory{client: client, language: language}, nil
}

// LookupCity returns the name of the first locality matching name.
func (p *PlacesDirectory) LookupCity(ctx context.Context, name string) (string, bool, error) {
	resp, err := p.client.TextSearch(ctx, &maps.TextSearchRequest{
		Query:    name,
		Type:     "locality",
		Language: p.language,
	})
	if err != nil {
		return "", false, fmt.Errorf("places api error: %w", err)
	}
	for _, r := range resp.Results {
		if isLocality(r.Types) && strings.TrimSpace(r.Name) != "" {
			return r.Name, true, nil
		}
	}
	return "", false, nil
}

func isLocality(types []string) bool {
	for _, t := range types {
		if t == "locality" || t == "administrative_area_level_3" {
			return true
		}
	}
	return false
}

// CityLookup is the shape shared by AtlasSearcher and PlacesDirectory.
type CityLookup interface {
	LookupCity(ctx context.Context, name string) (string, bool, error)
}

// Directories asks each lookup in turn. The first hit wins; an error is returned only when
// every lookup failed.
type Directories []CityLookup

func (d Directories) LookupCity(ctx context.Context, name string) (string, bool, error) {
	var firstErr error
	failed := 0
	for _, l := range d {
		city, ok, err := l.LookupCity(ctx, name)
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if ok {
			return city, true, nil
		}
	}
	if len(d) > 0 && failed == len(d) {
		return "", false, firstErr
	}
	return "", false, nil
}
