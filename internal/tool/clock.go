package tool

import (
	"context"
	"fmt"
	"time"

	"melobot/internal/domain"
)

// Portuguese lexicon for weekday and month names. These are fixed: the bot
// always speaks PT-BR regardless of the host locale.
var (
	weekdayNames = [...]string{
		"domingo", "segunda-feira", "terça-feira", "quarta-feira",
		"quinta-feira", "sexta-feira", "sábado",
	}
	monthNames = [...]string{
		"janeiro", "fevereiro", "março", "abril", "maio", "junho",
		"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
	}
)

// ClockReading is one consistent wall-clock snapshot in Brasília time.
type ClockReading struct {
	Formatted  string
	DayOfWeek  string
	DayOfMonth int
	Month      string
	Year       int
	Hours      int
	Minutes    int
	Seconds    int
	IsDay      bool
	Timestamp  int64
}

// ClockTool reports the current date and time in the Brasília time zone.
type ClockTool struct {
	now func() time.Time
	loc *time.Location
}

func NewClockTool() *ClockTool {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		// Hosts without tzdata still get the right offset.
		loc = time.FixedZone("-03", -3*60*60)
	}
	return &ClockTool{now: time.Now, loc: loc}
}

// NewClockToolAt pins the tool to a caller-supplied time source. Test hook.
func NewClockToolAt(now func() time.Time, loc *time.Location) *ClockTool {
	if loc == nil {
		loc = time.UTC
	}
	return &ClockTool{now: now, loc: loc}
}

func (t *ClockTool) Name() string { return "getCurrentTime" }

func (t *ClockTool) Description() string {
	return "Retorna a hora e data atuais no Brasil (fuso horário de Brasília), com informações detalhadas sobre o dia, mês, ano e horário."
}

func (t *ClockTool) Parameters() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

// Read takes a single wall-clock sample and decomposes it. All fields come
// from the same instant so they can never tear across a minute boundary.
func (t *ClockTool) Read() ClockReading {
	now := t.now().In(t.loc)

	hour, min, sec := now.Clock()
	reading := ClockReading{
		DayOfWeek:  weekdayNames[int(now.Weekday())],
		DayOfMonth: now.Day(),
		Month:      monthNames[int(now.Month())-1],
		Year:       now.Year(),
		Hours:      hour,
		Minutes:    min,
		Seconds:    sec,
		IsDay:      hour >= 6 && hour < 18,
		Timestamp:  now.UnixMilli(),
	}
	reading.Formatted = fmt.Sprintf("%s, %d de %s de %d, %02d:%02d:%02d",
		reading.DayOfWeek, reading.DayOfMonth, reading.Month, reading.Year,
		reading.Hours, reading.Minutes, reading.Seconds)
	return reading
}

func (t *ClockTool) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	r := t.Read()
	return map[string]any{
		"currentTime": r.Formatted,
		"dayOfWeek":   r.DayOfWeek,
		"dayOfMonth":  r.DayOfMonth,
		"month":       r.Month,
		"year":        r.Year,
		"hours":       r.Hours,
		"minutes":     r.Minutes,
		"seconds":     r.Seconds,
		"isDay":       r.IsDay,
		"timestamp":   r.Timestamp,
	}, nil
}

var _ domain.Tool = (*ClockTool)(nil)
