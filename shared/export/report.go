package export

import (
	"bytes"
	"context"
	"sort"

	"salonbook/internal/model"
)

// DaySummary aggregates one date.
type DaySummary struct {
	Date    string
	Count   int
	Minutes int
	Revenue model.Money
}

func summarize(bookings []model.Booking) []DaySummary {
	byDate := make(map[string]*DaySummary)
	for _, b := range bookings {
		d, ok := byDate[b.Date]
		if !ok {
			d = &DaySummary{Date: b.Date}
			byDate[b.Date] = d
		}
		d.Count++
		d.Minutes += b.DurationMinutes
		d.Revenue += b.TotalPrice
	}

	out := make([]DaySummary, 0, len(byDate))
	for _, d := range byDate {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// BookingsWorkbook renders bookings to xlsx bytes. dir may be nil.
func BookingsWorkbook(ctx context.Context, bookings []model.Booking, dir ClientDirectory) ([]byte, error) {
	w, err := NewWorkbook(dir)
	if err != nil {
		return nil, err
	}
	defer w.Close()

	if err := w.Add(ctx, bookings...); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
