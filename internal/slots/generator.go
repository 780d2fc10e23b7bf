// Package slots builds the daily catalog of bookable time slots and resolves
// which contiguous runs of them a booking may claim.
package slots

import (
	"fmt"
	"strconv"
	"strings"
)

// TimeSlot is a wall-clock time of day at slot granularity.
type TimeSlot struct {
	Hour   int
	Minute int
}

// Minutes returns minutes since midnight.
func (t TimeSlot) Minutes() int {
	return t.Hour*60 + t.Minute
}

// Before orders slots by (hour, minute).
func (t TimeSlot) Before(o TimeSlot) bool {
	return t.Minutes() < o.Minutes()
}

// Add returns the slot shifted by d minutes, wrapping at midnight.
func (t TimeSlot) Add(d int) TimeSlot {
	m := ((t.Minutes()+d)%(24*60) + 24*60) % (24 * 60)
	return TimeSlot{Hour: m / 60, Minute: m % 60}
}

// Label renders the persisted form, e.g. "3:00 PM".
func (t TimeSlot) Label() string {
	h := t.Hour % 12
	if h == 0 {
		h = 12
	}
	suffix := "AM"
	if t.Hour >= 12 {
		suffix = "PM"
	}
	return fmt.Sprintf("%d:%02d %s", h, t.Minute, suffix)
}

// Clock renders the 24-hour form, e.g. "15:00".
func (t TimeSlot) Clock() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeSlot) String() string {
	return t.Label()
}

// ParseTimeSlot accepts "3:00 PM", "3:00pm" and "15:00".
func ParseTimeSlot(s string) (TimeSlot, error) {
	raw := strings.ToUpper(strings.TrimSpace(s))
	if raw == "" {
		return TimeSlot{}, fmt.Errorf("empty time")
	}

	meridiem := ""
	switch {
	case strings.HasSuffix(raw, "AM"):
		meridiem = "AM"
	case strings.HasSuffix(raw, "PM"):
		meridiem = "PM"
	}
	clock := strings.TrimSpace(strings.TrimSuffix(raw, meridiem))

	hs, ms, ok := strings.Cut(clock, ":")
	if !ok || len(ms) != 2 {
		return TimeSlot{}, fmt.Errorf("invalid time format: %s", s)
	}
	hour, err := strconv.Atoi(hs)
	if err != nil {
		return TimeSlot{}, fmt.Errorf("invalid hour: %w", err)
	}
	minute, err := strconv.Atoi(ms)
	if err != nil || minute < 0 || minute > 59 {
		return TimeSlot{}, fmt.Errorf("invalid minute in %s", s)
	}

	if meridiem != "" {
		if hour < 1 || hour > 12 {
			return TimeSlot{}, fmt.Errorf("invalid hour in %s", s)
		}
		if meridiem == "PM" && hour != 12 {
			hour += 12
		}
		if meridiem == "AM" && hour == 12 {
			hour = 0
		}
	} else if hour < 0 || hour > 23 {
		return TimeSlot{}, fmt.Errorf("invalid hour in %s", s)
	}

	return TimeSlot{Hour: hour, Minute: minute}, nil
}

// Hours describes business hours; EndHour is exclusive.
type Hours struct {
	StartHour          int `yaml:"start_hour"`
	EndHour            int `yaml:"end_hour"`
	GranularityMinutes int `yaml:"granularity_minutes"`
}

// DefaultHours is 12:00 to 21:00 in half-hour steps.
var DefaultHours = Hours{StartHour: 12, EndHour: 21, GranularityMinutes: 30}

// Normalize clamps out-of-range values.
func (h Hours) Normalize() Hours {
	if h.GranularityMinutes <= 0 {
		h.GranularityMinutes = 30
	}
	if h.StartHour < 0 {
		h.StartHour = 0
	}
	if h.EndHour > 24 {
		h.EndHour = 24
	}
	return h
}

// Generator produces the slot catalog for a day.
type Generator struct {
	hours Hours
}

// NewGenerator creates a generator for the given business hours.
func NewGenerator(hours Hours) *Generator {
	return &Generator{hours: hours.Normalize()}
}

// Hours returns the normalized configuration.
func (g *Generator) Hours() Hours {
	return g.hours
}

// Granularity returns the slot length in minutes.
func (g *Generator) Granularity() int {
	return g.hours.GranularityMinutes
}

// Generate returns every slot from StartHour:00 up to but excluding EndHour:00.
func (g *Generator) Generate() []TimeSlot {
	start := g.hours.StartHour * 60
	end := g.hours.EndHour * 60
	if end <= start {
		return nil
	}

	step := g.hours.GranularityMinutes
	out := make([]TimeSlot, 0, (end-start)/step+1)
	for m := start; m < end; m += step {
		out = append(out, TimeSlot{Hour: m / 60, Minute: m % 60})
	}
	return out
}

// Labels returns Generate rendered with Label.
func (g *Generator) Labels() []string {
	catalog := g.Generate()
	out := make([]string, len(catalog))
	for i, s := range catalog {
		out[i] = s.Label()
	}
	return out
}

// IndexOf returns the position of slot in catalog or -1.
func IndexOf(catalog []TimeSlot, slot TimeSlot) int {
	for i, s := range catalog {
		if s == slot {
			return i
		}
	}
	return -1
}

// FormatDuration renders minutes as "45 min", "1 hour", "2 hours" or "1h 30min".
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	hours := minutes / 60
	mins := minutes % 60
	if mins == 0 {
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	return fmt.Sprintf("%dh %dmin", hours, mins)
}
