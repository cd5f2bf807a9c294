package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"

	"melobot/internal/domain"
)

const defaultWeatherAPIBase = "https://api.openweathermap.org/data/2.5"

// Weather failure messages shown to end users. Upstream errors never leak.
const (
	msgWeatherUnavailable = "Desculpe, não consigo verificar o clima no momento. Tente novamente mais tarde."
	msgWeatherNoLocation  = "Por favor, me diga qual cidade você quer saber o clima."
	msgWeatherFailed      = "Não foi possível obter o tempo para esta localização no momento."
)

// UserError is an expected failure carrying a ready-to-show PT-BR message.
type UserError struct {
	Msg string
}

func (e *UserError) Error() string { return e.Msg }

// WeatherReport is a successful OpenWeatherMap lookup, already converted to
// the units the bot speaks in (°C, km/h).
type WeatherReport struct {
	Location    string
	Temperature int
	Description string
	Humidity    int
	WindSpeed   int
	FeelsLike   int
	Icon        string
}

// WeatherTool fetches current conditions for a city from OpenWeatherMap.
type WeatherTool struct {
	apiKey  string
	apiBase string
	client  *http.Client
	logger  *slog.Logger
}

type WeatherConfig struct {
	APIKey  string
	APIBase string
	Logger  *slog.Logger
}

func NewWeatherTool(cfg WeatherConfig) *WeatherTool {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultWeatherAPIBase
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &WeatherTool{
		apiKey:  cfg.APIKey,
		apiBase: cfg.APIBase,
		client:  &http.Client{Timeout: defaultToolTimeout},
		logger:  cfg.Logger,
	}
}

func (t *WeatherTool) Name() string { return "getWeather" }

func (t *WeatherTool) Description() string {
	return "Obtém informações meteorológicas para uma localização específica (cidade)."
}

func (t *WeatherTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"location": {Type: "string", Description: "Nome da cidade para obter o clima (ex: São Paulo, Rio de Janeiro, Curitiba)"},
		},
		[]string{"location"},
	)
}

type owmResponse struct {
	Name string `json:"name"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Cod     json.Number `json:"cod"`
	Message string      `json:"message"`
}

// Lookup fetches the weather for location. The returned error is always a
// *UserError whose message can go straight to the end user.
func (t *WeatherTool) Lookup(ctx context.Context, location string) (*WeatherReport, error) {
	if t.apiKey == "" {
		t.logger.Error("weather API key not configured")
		return nil, &UserError{Msg: msgWeatherUnavailable}
	}
	if location == "" {
		return nil, &UserError{Msg: msgWeatherNoLocation}
	}

	endpoint := fmt.Sprintf("%s/weather?q=%s&appid=%s&units=metric&lang=pt_br",
		t.apiBase, url.QueryEscape(location), url.QueryEscape(t.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &UserError{Msg: msgWeatherFailed}
	}
	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.Warn("weather request failed", "location", location, "err", err)
		return nil, &UserError{Msg: msgWeatherFailed}
	}
	defer resp.Body.Close()

	var data owmResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		t.logger.Warn("weather response unreadable", "err", err)
		return nil, &UserError{Msg: msgWeatherFailed}
	}

	if resp.StatusCode != http.StatusOK {
		if data.Cod.String() == "404" || data.Message == "city not found" {
			return nil, &UserError{Msg: fmt.Sprintf("Não encontrei informações do tempo para \"%s\". Pode verificar o nome da cidade?", location)}
		}
		t.logger.Warn("weather upstream error", "status", resp.StatusCode, "message", data.Message)
		return nil, &UserError{Msg: msgWeatherFailed}
	}

	report := &WeatherReport{
		Location:    data.Name,
		Temperature: int(math.Round(data.Main.Temp)),
		Humidity:    data.Main.Humidity,
		// Upstream reports m/s; the bot speaks km/h.
		WindSpeed: int(math.Round(data.Wind.Speed * 3.6)),
		FeelsLike: int(math.Round(data.Main.FeelsLike)),
	}
	if len(data.Weather) > 0 {
		report.Description = data.Weather[0].Description
		report.Icon = data.Weather[0].Icon
	}
	return report, nil
}

func (t *WeatherTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	report, err := t.Lookup(ctx, ArgsString(args, "location"))
	if err != nil {
		return map[string]any{"error": err.Error()}, nil
	}
	return map[string]any{
		"location":    report.Location,
		"temperature": report.Temperature,
		"description": report.Description,
		"humidity":    report.Humidity,
		"windSpeed":   report.WindSpeed,
		"feelsLike":   report.FeelsLike,
		"icon":        report.Icon,
	}, nil
}

var _ domain.Tool = (*WeatherTool)(nil)
