// Package fastpath answers well-known intents (time/date, weather) directly
// from the server, before the model is ever invoked. A match here is
// authoritative: the request never reaches the conversation loop, which
// saves a provider round-trip on the most common questions.
package fastpath

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"melobot/internal/tool"
)

// Trigger phrases, Portuguese first. Matching is lowercase substring.
var timeDateWordsPT = []string{
	"que horas são", "qual a hora", "me diga a hora", "me diga as horas",
	"que dia é hoje", "qual a data", "data de hoje", "hora atual", "data atual",
	"horas", "horário", "dia de hoje", "dia atual", "hora agora", "que horas",
	"hora exata", "pode me dizer que horas são", "diga a hora",
	"que data e hora", "data e hora", "hora e data", "que dia e hora", "dia e hora",
	"hora e dia", "me diga a data e hora", "me diga a hora e data", "me diga o dia e hora",
	"me diga a hora e dia", "me diga o horário", "me diga o dia", "me diga a data",
}

var timeDateWordsEN = []string{
	"what time", "what's the time", "tell me the time",
	"what day", "what's the date", "tell me the date",
	"current time", "current date", "what time is it",
	"what day is it", "what's today", "what's the current time",
}

var weatherWords = []string{
	"clima", "tempo", "previsão", "temperatura", "chuva",
	"weather", "forecast", "temperature", "rain", "frio",
	"calor", "umidade", "vento", "nublado", "ensolarado",
}

// leakPhrases mark provider responses (or echoed history) where an internal
// tool directive leaked into user-visible text.
var leakPhrases = []string{"getcurrenttime", "aguardando execução", "awaiting execution"}

var questionPrefixes = []string{"what", "que", "qual", "me diga", "tell me"}

// cityPattern captures the text after a weather keyword and an optional
// preposition, up to the next punctuation mark.
var cityPattern = regexp.MustCompile(`(?:clima|tempo|previsão|weather|forecast)(?:\s+de|\s+em|\s+para)?\s+([^,.!?]+)`)

const (
	msgAskCity        = "Me diga qual cidade você quer saber o clima, meu amor! 💕"
	msgWeatherCrashed = "Desculpe, meu amor! 💕 Não consegui verificar o clima agora. Pode tentar novamente em alguns instantes?"

	musicSuggestionWeather = "\nQue tal ouvirmos uma música que combine com esse clima? 🎵 Posso te ajudar a encontrar uma música específica ou explorar um gênero que você goste!"
	musicSuggestionTime    = "\n\n--------------------\n\nQue tal ouvirmos uma música para celebrar esse momento? 🎵\nPosso te ajudar a encontrar uma música específica ou explorar um gênero que você goste! 🎸"
)

// Clock yields a consistent wall-clock snapshot.
type Clock interface {
	Read() tool.ClockReading
}

// WeatherLookup resolves current conditions for a city; failures come back
// as user-facing errors.
type WeatherLookup interface {
	Lookup(ctx context.Context, location string) (*tool.WeatherReport, error)
}

// Detector classifies raw user messages and produces deterministic answers
// for the recognized intents.
type Detector struct {
	clock   Clock
	weather WeatherLookup
	logger  *slog.Logger
}

func NewDetector(clock Clock, weather WeatherLookup, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{clock: clock, weather: weather, logger: logger}
}

// Detect returns (reply, true) when the message is a deterministic-answer
// query. Weather is checked before time/date because "tempo" appears in both
// keyword sets and the weather reading is the more specific intent.
func (d *Detector) Detect(ctx context.Context, message string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(message))
	if lower == "" {
		return "", false
	}

	if containsAny(lower, weatherWords) {
		return d.answerWeather(ctx, lower), true
	}

	isTimeDate := containsAny(lower, timeDateWordsPT) || containsAny(lower, timeDateWordsEN)
	isQuestion := strings.Contains(lower, "?") || hasAnyPrefix(lower, questionPrefixes)
	mentionsLeak := containsAny(lower, leakPhrases)

	if (isTimeDate && isQuestion) || mentionsLeak {
		return d.answerTimeDate(lower), true
	}
	return "", false
}

func (d *Detector) answerWeather(ctx context.Context, lower string) string {
	city := extractCity(lower)
	if city == "" {
		return msgAskCity
	}

	d.logger.Info("fast-path weather lookup", "city", city)
	report, err := d.weather.Lookup(ctx, city)
	if err != nil {
		var userErr *tool.UserError
		if errors.As(err, &userErr) {
			// The tool already phrased this for the end user.
			return userErr.Msg
		}
		d.logger.Error("weather lookup failed unexpectedly", "city", city, "err", err)
		return msgWeatherCrashed
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Em %s agora está:\n\n", report.Location)
	fmt.Fprintf(&b, "🌡️ Temperatura: %d°C\n", report.Temperature)
	fmt.Fprintf(&b, "🌤️ %s\n", capitalize(report.Description))
	fmt.Fprintf(&b, "💨 Vento: %d km/h\n", report.WindSpeed)
	fmt.Fprintf(&b, "💧 Umidade: %d%%\n", report.Humidity)
	if report.FeelsLike != report.Temperature {
		fmt.Fprintf(&b, "🌡️ Sensação térmica: %d°C\n", report.FeelsLike)
	}
	b.WriteString(musicSuggestionWeather)
	return b.String()
}

func (d *Detector) answerTimeDate(lower string) string {
	reading := d.clock.Read()

	wantsDate := strings.Contains(lower, "dia") || strings.Contains(lower, "data") ||
		strings.Contains(lower, "date") || strings.Contains(lower, "day")
	wantsTime := strings.Contains(lower, "hora") || strings.Contains(lower, "horário") ||
		strings.Contains(lower, "time") || strings.Contains(lower, "hour")

	var response string
	switch {
	case wantsDate && wantsTime:
		response = fmt.Sprintf("Olá! 😊\n\nAgora são:\n%s 🕒", reading.Formatted)
	case wantsDate:
		response = fmt.Sprintf("Olá! 😊\n\nHoje é:\n%s, %d de %s de %d 📅",
			reading.DayOfWeek, reading.DayOfMonth, reading.Month, reading.Year)
	default:
		response = fmt.Sprintf("Olá! 😊\n\nAgora são:\n%d:%02d:%02d 🕒",
			reading.Hours, reading.Minutes, reading.Seconds)
	}
	return response + musicSuggestionTime
}

func extractCity(lower string) string {
	m := cityPattern.FindStringSubmatch(lower)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
