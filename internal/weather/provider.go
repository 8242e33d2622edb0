package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/hpungsan/tripkit/internal/errors"
	"github.com/hpungsan/tripkit/internal/logging"
	"github.com/hpungsan/tripkit/internal/trip"
)

// Provider fetches a forecast for a location.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, loc trip.Location) (Forecast, error)
}

// OpenWeatherConfig configures OpenWeatherProvider.
type OpenWeatherConfig struct {
	APIKey            string
	BaseURL           string
	Units             string
	RequestsPerMinute int
	Timeout           time.Duration
}

// OpenWeatherProvider reads the OpenWeather 5 day / 3 hour forecast.
type OpenWeatherProvider struct {
	cfg     OpenWeatherConfig
	client  *http.Client
	limiter *rate.Limiter
	log     *logrus.Entry
}

// NewOpenWeatherProvider creates a provider. An empty API key is allowed;
// Fetch then reports the upstream as unavailable without calling it.
func NewOpenWeatherProvider(cfg OpenWeatherConfig, logger logrus.FieldLogger) *OpenWeatherProvider {
	if cfg.Units == "" {
		cfg.Units = "metric"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Limit(cfg.RequestsPerMinute) / 60 // per second
	}
	return &OpenWeatherProvider{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		log:     logging.Component(logger, "weather").WithField("provider", "openweather"),
	}
}

// Name returns the provider name.
func (p *OpenWeatherProvider) Name() string {
	return "openweather"
}

type owmResponse struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Weather []struct {
			ID   int    `json:"id"`
			Main string `json:"main"`
		} `json:"weather"`
		Pop float64 `json:"pop"`
	} `json:"list"`
	City struct {
		Name     string `json:"name"`
		Timezone int    `json:"timezone"`
	} `json:"city"`
}

// Fetch calls the forecast endpoint, waiting on the rate limiter first.
func (p *OpenWeatherProvider) Fetch(ctx context.Context, loc trip.Location) (Forecast, error) {
	if p.cfg.APIKey == "" {
		return Forecast{}, errors.NewUpstreamUnavailable(p.Name(), fmt.Errorf("no API key configured"))
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return Forecast{}, errors.NewUpstreamUnavailable(p.Name(), err)
	}

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(loc.Lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(loc.Lon, 'f', -1, 64))
	q.Set("units", p.cfg.Units)
	q.Set("appid", p.cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return Forecast{}, errors.NewUpstreamUnavailable(p.Name(), err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "tripkit/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return Forecast{}, errors.NewUpstreamUnavailable(p.Name(), fmt.Errorf("failed to make request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return Forecast{}, errors.NewUpstreamUnavailable(p.Name(), err)
	}
	if resp.StatusCode != http.StatusOK {
		p.log.WithFields(logging.Fields{
			"status_code":   resp.StatusCode,
			"response_body": truncate(string(body), 200),
		}).Warn("forecast request failed")
		return Forecast{}, errors.NewUpstreamUnavailable(p.Name(), fmt.Errorf("HTTP %d", resp.StatusCode))
	}

	var decoded owmResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return Forecast{}, errors.NewUpstreamUnavailable(p.Name(), fmt.Errorf("failed to decode forecast: %w", err))
	}

	f := Forecast{
		Location:       decoded.City.Name,
		TimezoneOffset: decoded.City.Timezone,
		Slots:          make([]Slot, 0, len(decoded.List)),
	}
	if f.Location == "" {
		f.Location = loc.Name
	}
	for _, e := range decoded.List {
		s := Slot{Time: e.Dt, Temp: e.Main.Temp, Pop: e.Pop}
		if len(e.Weather) > 0 {
			s.Code = e.Weather[0].ID
			s.Condition = e.Weather[0].Main
		}
		f.Slots = append(f.Slots, s)
	}

	p.log.WithField("slots", len(f.Slots)).Debug("forecast fetched")
	return f, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
