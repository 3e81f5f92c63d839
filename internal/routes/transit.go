// README: Google Maps transit directions as a train/bus availability check.
package routes

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"googlemaps.github.io/maps"
)

const maxTransitOptions = 3

// TransitSearcher handles interactions with the Google Maps Directions API.
type TransitSearcher struct {
	client *maps.Client
	mode   maps.TransitMode
	loc    *time.Location
}

// NewTransitSearcher creates a searcher for one transit mode (rail or bus).
func NewTransitSearcher(apiKey string, mode maps.TransitMode, loc *time.Location) (*TransitSearcher, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	if loc == nil {
		loc = time.Local
	}
	return &TransitSearcher{client: client, mode: mode, loc: loc}, nil
}

// Search asks for transit routes departing at 09:00 local time on the query date.
func (s *TransitSearcher) Search(ctx context.Context, q Query) ([]Option, error) {
	day, err := time.ParseInLocation("2006-01-02", q.Date, s.loc)
	if err != nil {
		return nil, fmt.Errorf("transit: bad date %q: %w", q.Date, err)
	}
	departure := day.Add(9 * time.Hour)

	r := &maps.DirectionsRequest{
		Origin:        q.Origin,
		Destination:   q.Destination,
		Mode:          maps.TravelModeTransit,
		TransitMode:   []maps.TransitMode{s.mode},
		DepartureTime: strconv.FormatInt(departure.Unix(), 10),
		Alternatives:  true,
		Language:      "en",
	}
	found, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("maps api error: %w", err)
	}

	link := directionsURL(q)
	var out []Option
	for _, route := range found {
		if len(route.Legs) == 0 {
			continue
		}
		leg := route.Legs[0]
		title := route.Summary
		if title == "" {
			title = fmt.Sprintf("%s → %s", q.Origin, q.Destination)
		}
		out = append(out, Option{
			Title:    fmt.Sprintf("%s, %s, %s", title, leg.Duration.Round(time.Minute), leg.Distance.HumanReadable),
			URL:      link,
			Provider: "google_maps",
		})
		if len(out) == maxTransitOptions {
			break
		}
	}
	return out, nil
}

func directionsURL(q Query) string {
	v := url.Values{}
	v.Set("api", "1")
	v.Set("origin", q.Origin)
	v.Set("destination", q.Destination)
	v.Set("travelmode", "transit")
	return "https://www.google.com/maps/dir/?" + v.Encode()
}
