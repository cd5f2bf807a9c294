package fastpath

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"

	"melobot/internal/tool"
)

type stubClock struct {
	reading tool.ClockReading
}

func (s stubClock) Read() tool.ClockReading { return s.reading }

type stubWeather struct {
	report   *tool.WeatherReport
	err      error
	calls    int
	lastCity string
}

func (s *stubWeather) Lookup(ctx context.Context, location string) (*tool.WeatherReport, error) {
	s.calls++
	s.lastCity = location
	return s.report, s.err
}

func newDetector(weather *stubWeather) (*Detector, *stubWeather) {
	if weather == nil {
		weather = &stubWeather{}
	}
	clock := stubClock{reading: tool.ClockReading{
		Formatted:  "domingo, 1 de junho de 2025, 14:03:07",
		DayOfWeek:  "domingo",
		DayOfMonth: 1,
		Month:      "junho",
		Year:       2025,
		Hours:      14,
		Minutes:    3,
		Seconds:    7,
	}}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewDetector(clock, weather, logger), weather
}

func TestDetect_TimeQuestion(t *testing.T) {
	d, weather := newDetector(nil)
	reply, ok := d.Detect(context.Background(), "que horas são?")
	if !ok {
		t.Fatal("expected fast-path match")
	}
	if !strings.Contains(reply, "14:03:07") {
		t.Fatalf("reply missing current time: %q", reply)
	}
	if !strings.Contains(reply, "Que tal ouvirmos uma música") {
		t.Fatalf("reply missing music suggestion: %q", reply)
	}
	if weather.calls != 0 {
		t.Fatal("time question must not hit the weather tool")
	}
}

func TestDetect_DateQuestion(t *testing.T) {
	d, _ := newDetector(nil)
	reply, ok := d.Detect(context.Background(), "que dia é hoje?")
	if !ok {
		t.Fatal("expected fast-path match")
	}
	if !strings.Contains(reply, "domingo, 1 de junho de 2025") {
		t.Fatalf("reply missing date: %q", reply)
	}
	if strings.Contains(reply, "14:03:07") {
		t.Fatalf("date-only question should not include the time: %q", reply)
	}
}

func TestDetect_DateAndTimeQuestion(t *testing.T) {
	d, _ := newDetector(nil)
	reply, ok := d.Detect(context.Background(), "me diga a data e hora")
	if !ok {
		t.Fatal("expected fast-path match")
	}
	if !strings.Contains(reply, "domingo, 1 de junho de 2025, 14:03:07") {
		t.Fatalf("combined question should use full formatted stamp: %q", reply)
	}
}

func TestDetect_LeakPhraseWithoutQuestion(t *testing.T) {
	d, _ := newDetector(nil)
	reply, ok := d.Detect(context.Background(), "aguardando execução")
	if !ok {
		t.Fatal("leak phrase must force a time/date match")
	}
	if !strings.Contains(reply, "14:03:07") {
		t.Fatalf("leak recovery missing time: %q", reply)
	}
}

func TestDetect_TimeWordsWithoutQuestionShape(t *testing.T) {
	d, _ := newDetector(nil)
	if _, ok := d.Detect(context.Background(), "adoro passar horas ouvindo jazz"); ok {
		t.Fatal("non-question time mention should not match")
	}
}

func TestDetect_WeatherSuccess(t *testing.T) {
	d, weather := newDetector(&stubWeather{report: &tool.WeatherReport{
		Location:    "Curitiba",
		Temperature: 18,
		Description: "nublado",
		Humidity:    80,
		WindSpeed:   36,
		FeelsLike:   15,
	}})
	reply, ok := d.Detect(context.Background(), "como está o clima em Curitiba hoje")
	if !ok {
		t.Fatal("expected weather match")
	}
	if weather.lastCity != "curitiba hoje" {
		t.Fatalf("unexpected extracted city %q", weather.lastCity)
	}
	for _, want := range []string{
		"Em Curitiba agora está:",
		"🌡️ Temperatura: 18°C",
		"🌤️ Nublado",
		"💨 Vento: 36 km/h",
		"💧 Umidade: 80%",
		"🌡️ Sensação térmica: 15°C",
		"música que combine com esse clima",
	} {
		if !strings.Contains(reply, want) {
			t.Fatalf("reply missing %q:\n%s", want, reply)
		}
	}
}

func TestDetect_WeatherFeelsLikeSuppressed(t *testing.T) {
	d, _ := newDetector(&stubWeather{report: &tool.WeatherReport{
		Location:    "Natal",
		Temperature: 30,
		FeelsLike:   30,
		Description: "ensolarado",
	}})
	reply, _ := d.Detect(context.Background(), "clima em Natal")
	if strings.Contains(reply, "Sensação térmica") {
		t.Fatalf("feels-like equal to temperature must be omitted: %q", reply)
	}
}

func TestDetect_WeatherToolErrorForwarded(t *testing.T) {
	d, _ := newDetector(&stubWeather{err: &tool.UserError{Msg: "Não foi possível obter o tempo para esta localização no momento."}})
	reply, ok := d.Detect(context.Background(), "clima em Curitiba")
	if !ok {
		t.Fatal("expected weather match")
	}
	if reply != "Não foi possível obter o tempo para esta localização no momento." {
		t.Fatalf("tool error must be forwarded unchanged, got %q", reply)
	}
}

func TestDetect_WeatherWithoutCity(t *testing.T) {
	d, weather := newDetector(nil)
	reply, ok := d.Detect(context.Background(), "previsão")
	if !ok {
		t.Fatal("expected weather match")
	}
	if reply != msgAskCity {
		t.Fatalf("expected ask-city message, got %q", reply)
	}
	if weather.calls != 0 {
		t.Fatal("missing city must not invoke the weather tool")
	}
}

func TestDetect_NoMatch(t *testing.T) {
	d, _ := newDetector(nil)
	if _, ok := d.Detect(context.Background(), "me conte uma curiosidade sobre a bossa nova"); ok {
		t.Fatal("ordinary message should not match")
	}
}
