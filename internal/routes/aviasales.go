// README: Aviasales flight search links built from IATA city codes.
package routes

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const defaultAviasalesBaseURL = "https://www.aviasales.ru"

// cityIATA maps canonical city names to IATA city codes.
var cityIATA = map[string]string{
	"moscow":           "MOW",
	"saint petersburg": "LED",
	"kazan":            "KZN",
	"nizhny novgorod":  "GOJ",
	"samara":           "KUF",
	"sochi":            "AER",
	"grodno":           "GNA",
	"minsk":            "MSQ",
	"brest":            "BQT",
	"vitebsk":          "VTB",
	"gomel":            "GME",
	"mogilev":          "MVQ",
	"vilnius":          "VNO",
	"warsaw":           "WAW",
	"riga":             "RIX",
	"yekaterinburg":    "SVX",
	"novosibirsk":      "OVB",
	"voronezh":         "VOZ",
	"rostov-on-don":    "ROV",
}

type AviasalesSearcher struct {
	baseURL string
}

func NewAviasalesSearcher(baseURL string) *AviasalesSearcher {
	if baseURL == "" {
		baseURL = defaultAviasalesBaseURL
	}
	return &AviasalesSearcher{baseURL: strings.TrimRight(baseURL, "/")}
}

// Search returns a one-way search link. Cities without a known code yield no options.
func (a *AviasalesSearcher) Search(_ context.Context, q Query) ([]Option, error) {
	from, ok1 := cityIATA[strings.ToLower(q.Origin)]
	to, ok2 := cityIATA[strings.ToLower(q.Destination)]
	if !ok1 || !ok2 {
		return nil, nil
	}
	d, err := time.Parse("2006-01-02", q.Date)
	if err != nil {
		return nil, fmt.Errorf("aviasales: bad date %q: %w", q.Date, err)
	}
	link := fmt.Sprintf("%s/search/%s%s%s1", a.baseURL, from, d.Format("0201"), to)
	return []Option{{
		Title:    fmt.Sprintf("Flights %s → %s on %s", q.Origin, q.Destination, q.Date),
		URL:      link,
		Provider: "aviasales",
	}}, nil
}
