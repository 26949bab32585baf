// Package canteen fetches the school canteen menu from the Strava.cz API.
package canteen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/oto-macenauer/school-summary/internal/platform/errors"
)

// DefaultURL is the public Strava.cz menu endpoint.
const DefaultURL = "https://app.strava.cz/api/jidelnicky"

var czechDays = []string{"Pondělí", "Úterý", "Středa", "Čtvrtek", "Pátek", "Sobota", "Neděle"}

// Allergen is a code/name pair attached to a meal.
type Allergen struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Meal is one item on the menu. Kind codes follow the Strava convention
// (PR, PO, OB, DO, SV, OD).
type Meal struct {
	Kind      string     `json:"kind"`
	KindLabel string     `json:"kind_label"`
	Name      string     `json:"name"`
	Allergens []Allergen `json:"allergens,omitempty"`
}

// Day is all meals offered on one date.
type Day struct {
	Date  time.Time `json:"-"`
	Meals []Meal    `json:"meals"`
}

// MarshalJSON adds the formatted date fields the dashboard expects.
func (d Day) MarshalJSON() ([]byte, error) {
	type alias Day
	return json.Marshal(struct {
		DateISO   string `json:"date"`
		DateLabel string `json:"date_label"`
		DayName   string `json:"day_name"`
		alias
	}{
		DateISO:   d.Date.Format("2006-01-02"),
		DateLabel: d.Date.Format("02.01.2006"),
		DayName:   czechDays[(int(d.Date.Weekday())+6)%7],
		alias:     alias(d),
	})
}

// Menu is the full fetched menu.
type Menu struct {
	Days      []Day     `json:"days"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Module fetches the menu for the whole school; it is not tied to a student.
type Module struct {
	http   *http.Client
	url    string
	number string
	lang   string
	logger *slog.Logger
}

// NewModule creates a canteen module for the given canteen number.
func NewModule(apiURL, number string, logger *slog.Logger) *Module {
	if apiURL == "" {
		apiURL = DefaultURL
	}
	return &Module{
		http:   &http.Client{Timeout: 30 * time.Second},
		url:    apiURL,
		number: number,
		lang:   "CZ",
		logger: logger,
	}
}

// FetchMenu downloads and parses the current menu.
func (m *Module) FetchMenu(ctx context.Context) (*Menu, error) {
	payload, _ := json.Marshal(map[string]any{
		"cislo":      m.number,
		"s5url":      m.url,
		"lang":       m.lang,
		"ignoreCert": false,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(errors.KindCanteen, "fetch", "build request", err)
	}
	// The API refuses requests without browser-looking headers.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/144.0.0.0 Safari/537.36")
	req.Header.Set("Content-Type", "text/plain;charset=UTF-8")
	req.Header.Set("Origin", "https://app.strava.cz")
	req.Header.Set("Referer", "https://app.strava.cz/jidelnicky?jidelna="+m.number)

	resp, err := m.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.KindCanteen, "fetch", "request menu", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(errors.KindCanteen, "fetch", "read response", err)
	}

	// Errors come back as an object even with a 200 status.
	var errResp struct {
		State   string `json:"state"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &errResp) == nil && errResp.State == "error" {
		return nil, errors.New(errors.KindCanteen, "fetch",
			fmt.Sprintf("strava api error: %s", errResp.Message))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(errors.KindCanteen, "fetch",
			fmt.Sprintf("strava api returned status %d", resp.StatusCode))
	}

	var raw []map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errors.Wrap(errors.KindCanteen, "fetch", "decode response", err)
	}

	days := parseMenu(raw)
	m.logger.Debug("fetched canteen menu", slog.Int("days", len(days)))
	return &Menu{Days: days, FetchedAt: time.Now()}, nil
}

type rawMeal struct {
	Datum     string  `json:"datum"`
	Druh      string  `json:"druh"`
	DruhPopis string  `json:"druh_popis"`
	Nazev     string  `json:"nazev"`
	Alergeny  [][]any `json:"alergeny"`
}

// parseMenu flattens the "table*" keys of the first response entry into
// days sorted by date.
func parseMenu(data []map[string]json.RawMessage) []Day {
	if len(data) == 0 {
		return nil
	}
	entry := data[0]

	keys := make([]string, 0, len(entry))
	for k := range entry {
		if strings.HasPrefix(k, "table") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	byDate := map[string][]Meal{}
	for _, key := range keys {
		var items []rawMeal
		if err := json.Unmarshal(entry[key], &items); err != nil {
			continue
		}
		for _, item := range items {
			if _, err := time.Parse("02.01.2006", item.Datum); err != nil {
				continue
			}
			name := strings.TrimSpace(item.Nazev)
			if name == "" {
				continue
			}
			meal := Meal{
				Kind:      item.Druh,
				KindLabel: strings.TrimSpace(item.DruhPopis),
				Name:      name,
			}
			for _, pair := range item.Alergeny {
				if len(pair) == 2 {
					code, _ := pair[0].(string)
					aname, _ := pair[1].(string)
					meal.Allergens = append(meal.Allergens, Allergen{Code: code, Name: aname})
				}
			}
			byDate[item.Datum] = append(byDate[item.Datum], meal)
		}
	}

	days := make([]Day, 0, len(byDate))
	for datum, meals := range byDate {
		date, _ := time.Parse("02.01.2006", datum)
		days = append(days, Day{Date: date, Meals: meals})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
	return days
}
