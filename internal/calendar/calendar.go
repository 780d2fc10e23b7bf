// Package calendar decides which dates can be booked.
package calendar

import (
	"fmt"
	"strings"
	"time"

	"salonbook/internal/model"
)

// DefaultHorizon is how far ahead bookings are accepted.
const DefaultHorizon = 365 * 24 * time.Hour

// Policy holds the closed days of the salon.
type Policy struct {
	DaysOff  []time.Weekday
	Holidays map[string]string // YYYY-MM-DD -> name
	Horizon  time.Duration
}

// DefaultPolicy closes on weekends and accepts bookings a year ahead.
func DefaultPolicy() Policy {
	return Policy{
		DaysOff: []time.Weekday{time.Saturday, time.Sunday},
		Horizon: DefaultHorizon,
	}
}

// ParseWeekdays converts names like "saturday" or "Sun" to weekdays.
func ParseWeekdays(names []string) ([]time.Weekday, error) {
	out := make([]time.Weekday, 0, len(names))
	for _, n := range names {
		wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", n)
		}
		out = append(out, wd)
	}
	return out, nil
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// ParseDate parses YYYY-MM-DD as local midnight.
func ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(model.DateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return d, nil
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(model.DateLayout)
}

// Midnight truncates t to the start of its local day.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func (p Policy) horizonDays() int {
	h := p.Horizon
	if h <= 0 {
		h = DefaultHorizon
	}
	return int(h / (24 * time.Hour))
}

// IsDayOff reports whether date falls on a closed weekday or holiday.
func (p Policy) IsDayOff(date time.Time) bool {
	for _, wd := range p.DaysOff {
		if date.Weekday() == wd {
			return true
		}
	}
	_, holiday := p.Holidays[FormatDate(date)]
	return holiday
}

// IsSelectable reports whether date is open and within [today, today+horizon].
func (p Policy) IsSelectable(date, today time.Time) bool {
	day := Midnight(date)
	start, end := p.Window(today)
	if day.Before(start) || day.After(end) {
		return false
	}
	return !p.IsDayOff(day)
}

// Window returns the first and last bookable calendar days.
func (p Policy) Window(today time.Time) (time.Time, time.Time) {
	start := Midnight(today)
	return start, start.AddDate(0, 0, p.horizonDays())
}

// DisabledDates lists every closed date inside the booking window.
func (p Policy) DisabledDates(today time.Time) []string {
	start, end := p.Window(today)
	var out []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if p.IsDayOff(d) {
			out = append(out, FormatDate(d))
		}
	}
	return out
}

// MonthDays returns the dates of a month in order.
func MonthDays(year int, month time.Month) []time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.Local)
	var out []time.Time
	for d := first; d.Month() == month; d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}
