// Package weather provides weather and air pollution data via the
// OpenWeatherMap API: geocoding, current conditions, 5-day forecast and air
// quality.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mcravo/ava/internal/automation"
)

const defaultBaseURL = "https://api.openweathermap.org"

// Doer abstracts the HTTP client for testability.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Module implements automation.Module for OpenWeatherMap.
type Module struct {
	httpc   Doer
	apiKey  string
	baseURL string
}

// New creates a weather Module. The API key is mandatory; without it the
// module fails to load and the assistant simply runs without weather support.
func New(apiKey string) (*Module, error) {
	if apiKey == "" {
		return nil, errors.New("OpenWeatherMap API key is not configured")
	}
	return &Module{
		httpc:   &http.Client{Timeout: 15 * time.Second},
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
	}, nil
}

func (m *Module) Description() string {
	return "provide weather, forecast and air pollution data via the OpenWeatherMap API"
}

func (m *Module) Actions() map[string]automation.Action {
	return map[string]automation.Action{
		"get_current_weather": {
			Handler:     automation.Typed(m.currentWeather),
			Description: "Get the current weather for a location. Can specify city, lat/lon, or zip/country_code.",
			Example:     `{"action":"get_current_weather","city":"London","units":"metric"}`,
		},
		"get_forecast": {
			Handler:     automation.Typed(m.forecast),
			Description: "Get a 5-day weather forecast in 3-hour intervals for a location. Can specify city, lat/lon, or zip/country_code.",
			Example:     `{"action":"get_forecast","city":"Paris","units":"imperial"}`,
		},
		"get_air_pollution": {
			Handler:     automation.Typed(m.airPollution),
			Description: "Get current air pollution data for a location. Can specify city, lat/lon, or zip/country_code.",
			Example:     `{"action":"get_air_pollution","lat":51.5,"lon":-0.1}`,
		},
	}
}

// locationRequest covers every way the LLM may describe a location.
type locationRequest struct {
	City        string   `mapstructure:"city"`
	StateCode   string   `mapstructure:"state_code"`
	CountryCode string   `mapstructure:"country_code"`
	Zip         string   `mapstructure:"zip"`
	Lat         *float64 `mapstructure:"lat"`
	Lon         *float64 `mapstructure:"lon"`
	Units       string   `mapstructure:"units"`
}

func (r locationRequest) Validate() error {
	if r.Lat != nil && r.Lon != nil {
		return nil
	}
	if r.Zip != "" && r.CountryCode != "" {
		return nil
	}
	if r.City != "" {
		return nil
	}
	return errors.New("insufficient location information: provide lat/lon, city, or zip + country_code")
}

func (r locationRequest) units() string {
	switch r.Units {
	case "metric", "imperial", "standard":
		return r.Units
	default:
		return "metric"
	}
}

// unitSuffix maps the units parameter to a temperature suffix.
func unitSuffix(units string) string {
	switch units {
	case "imperial":
		return "°F"
	case "standard":
		return "K"
	default:
		return "°C"
	}
}

// place is a resolved location.
type place struct {
	Lat     float64
	Lon     float64
	City    string
	Country string
}

func (m *Module) currentWeather(ctx context.Context, req locationRequest) (automation.Result, error) {
	loc, err := m.resolveCoordinates(ctx, req)
	if err != nil {
		return automation.Result{}, err
	}

	var data struct {
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
		Main struct {
			Temp      float64 `json:"temp"`
			FeelsLike float64 `json:"feels_like"`
			Humidity  int     `json:"humidity"`
			Pressure  int     `json:"pressure"`
		} `json:"main"`
		Wind struct {
			Speed float64 `json:"speed"`
			Deg   int     `json:"deg"`
		} `json:"wind"`
		Clouds struct {
			All int `json:"all"`
		} `json:"clouds"`
	}
	params := url.Values{
		"lat":   {formatFloat(loc.Lat)},
		"lon":   {formatFloat(loc.Lon)},
		"units": {req.units()},
	}
	if err := m.get(ctx, "/data/2.5/weather", params, &data); err != nil {
		return automation.Result{}, fmt.Errorf("fetching current weather: %w", err)
	}

	unit := unitSuffix(req.units())
	var b strings.Builder
	fmt.Fprintf(&b, "Weather Report for %s, %s\n", loc.City, loc.Country)
	if len(data.Weather) > 0 {
		fmt.Fprintf(&b, "- Condition: %s\n", capitalise(data.Weather[0].Description))
	}
	fmt.Fprintf(&b, "- Temperature: %.1f%s (feels like %.1f%s)\n",
		data.Main.Temp, unit, data.Main.FeelsLike, unit)
	fmt.Fprintf(&b, "- Humidity: %d%%\n", data.Main.Humidity)
	fmt.Fprintf(&b, "- Pressure: %d hPa\n", data.Main.Pressure)
	fmt.Fprintf(&b, "- Wind: %.1f m/s from %d°\n", data.Wind.Speed, data.Wind.Deg)
	fmt.Fprintf(&b, "- Cloudiness: %d%%", data.Clouds.All)

	return automation.OK(b.String()), nil
}

func (m *Module) forecast(ctx context.Context, req locationRequest) (automation.Result, error) {
	loc, err := m.resolveCoordinates(ctx, req)
	if err != nil {
		return automation.Result{}, err
	}

	var data struct {
		List []struct {
			Dt      int64 `json:"dt"`
			Weather []struct {
				Description string `json:"description"`
			} `json:"weather"`
			Main struct {
				Temp float64 `json:"temp"`
			} `json:"main"`
		} `json:"list"`
		City struct {
			Timezone int `json:"timezone"`
		} `json:"city"`
	}
	params := url.Values{
		"lat":   {formatFloat(loc.Lat)},
		"lon":   {formatFloat(loc.Lon)},
		"units": {req.units()},
	}
	if err := m.get(ctx, "/data/2.5/forecast", params, &data); err != nil {
		return automation.Result{}, fmt.Errorf("fetching forecast: %w", err)
	}

	unit := unitSuffix(req.units())
	var b strings.Builder
	fmt.Fprintf(&b, "5-Day Weather Forecast for %s, %s:", loc.City, loc.Country)
	for _, item := range data.List {
		when := time.Unix(item.Dt+int64(data.City.Timezone), 0).UTC().Format("02/01 15:04")
		desc := "No description"
		if len(item.Weather) > 0 {
			desc = capitalise(item.Weather[0].Description)
		}
		fmt.Fprintf(&b, "\n- [%s] %s, %.1f%s", when, desc, item.Main.Temp, unit)
	}

	return automation.OK(b.String()), nil
}

// aqiNames maps the OpenWeatherMap air quality index to its meaning.
var aqiNames = map[int]string{
	1: "Good",
	2: "Fair",
	3: "Moderate",
	4: "Poor",
	5: "Very Poor",
}

func (m *Module) airPollution(ctx context.Context, req locationRequest) (automation.Result, error) {
	loc, err := m.resolveCoordinates(ctx, req)
	if err != nil {
		return automation.Result{}, err
	}

	var data struct {
		List []struct {
			Main struct {
				AQI int `json:"aqi"`
			} `json:"main"`
			Components map[string]float64 `json:"components"`
		} `json:"list"`
	}
	params := url.Values{
		"lat": {formatFloat(loc.Lat)},
		"lon": {formatFloat(loc.Lon)},
	}
	if err := m.get(ctx, "/data/2.5/air_pollution", params, &data); err != nil {
		return automation.Result{}, fmt.Errorf("fetching air pollution: %w", err)
	}
	if len(data.List) == 0 {
		return automation.Result{}, errors.New("no air pollution data returned")
	}

	current := data.List[0]
	meaning, ok := aqiNames[current.Main.AQI]
	if !ok {
		meaning = "Unknown"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Air Quality Report in %s, %s:\n- AQI: %d (%s)", loc.City, loc.Country, current.Main.AQI, meaning)

	names := make([]string, 0, len(current.Components))
	for name := range current.Components {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "\n- %s: %g µg/m³", strings.ToUpper(name), current.Components[name])
	}

	return automation.OK(b.String()), nil
}

// resolveCoordinates turns whatever location fields the intent carried into
// lat/lon plus a display name, using the geocoding endpoints.
func (m *Module) resolveCoordinates(ctx context.Context, req locationRequest) (place, error) {
	switch {
	case req.Lat != nil && req.Lon != nil:
		var results []struct {
			Name    string `json:"name"`
			Country string `json:"country"`
		}
		params := url.Values{
			"lat":   {formatFloat(*req.Lat)},
			"lon":   {formatFloat(*req.Lon)},
			"limit": {"1"},
		}
		if err := m.get(ctx, "/geo/1.0/reverse", params, &results); err != nil {
			return place{}, fmt.Errorf("reverse geocoding: %w", err)
		}
		if len(results) == 0 {
			return place{}, errors.New("no results found for the given coordinates")
		}
		return place{Lat: *req.Lat, Lon: *req.Lon, City: results[0].Name, Country: results[0].Country}, nil

	case req.Zip != "" && req.CountryCode != "":
		var result struct {
			Name    string  `json:"name"`
			Lat     float64 `json:"lat"`
			Lon     float64 `json:"lon"`
			Country string  `json:"country"`
		}
		params := url.Values{"zip": {req.Zip + "," + req.CountryCode}}
		if err := m.get(ctx, "/geo/1.0/zip", params, &result); err != nil {
			return place{}, fmt.Errorf("zip geocoding: %w", err)
		}
		if result.Name == "" {
			return place{}, errors.New("no results found for the given zip code and country code")
		}
		return place{Lat: result.Lat, Lon: result.Lon, City: result.Name, Country: result.Country}, nil

	default:
		q := req.City
		if req.StateCode != "" {
			q += "," + req.StateCode
		}
		if req.CountryCode != "" {
			q += "," + req.CountryCode
		}
		var results []struct {
			Name    string  `json:"name"`
			Lat     float64 `json:"lat"`
			Lon     float64 `json:"lon"`
			Country string  `json:"country"`
		}
		params := url.Values{"q": {q}, "limit": {"1"}}
		if err := m.get(ctx, "/geo/1.0/direct", params, &results); err != nil {
			return place{}, fmt.Errorf("geocoding city %q: %w", req.City, err)
		}
		if len(results) == 0 {
			return place{}, fmt.Errorf("no results found for city %q", req.City)
		}
		return place{Lat: results[0].Lat, Lon: results[0].Lon, City: results[0].Name, Country: results[0].Country}, nil
	}
}

// get performs one API request and decodes the JSON response into out.
func (m *Module) get(ctx context.Context, path string, params url.Values, out any) error {
	params.Set("appid", m.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := m.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("openweathermap returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	return json.Unmarshal(body, out)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func capitalise(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
