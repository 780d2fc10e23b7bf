package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in      string
		want    Money
		wantErr bool
	}{
		{"30", 3000, false},
		{"30.5", 3050, false},
		{"30.05", 3005, false},
		{" 7 ", 700, false},
		{"", 0, true},
		{"abc", 0, true},
		{"1.234", 0, true},
		{"-5", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseMoney(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input: %q", tt.in)
			continue
		}
		require.NoError(t, err, "input: %q", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestMoneyString(t *testing.T) {
	assert.Equal(t, "35", Money(3500).String())
	assert.Equal(t, "35.50", Money(3550).String())
	assert.Equal(t, "0", Money(0).String())
	assert.Equal(t, "-1.05", Money(-105).String())
	assert.Equal(t, Money(4500), Dollars(45))
}

func TestBooking_OccupiesSlot(t *testing.T) {
	b := Booking{Date: "2025-03-04", TimeSlots: []string{"3:00 PM", "3:30 PM"}}

	assert.True(t, b.OnDate("2025-03-04"))
	assert.False(t, b.OnDate("2025-03-05"))
	assert.True(t, b.OccupiesSlot("3:30 PM"))
	assert.False(t, b.OccupiesSlot("4:00 PM"))
}

func TestBookingRequest_Validate(t *testing.T) {
	valid := func() BookingRequest {
		return BookingRequest{
			UserID:          "u1",
			Date:            "2025-03-04",
			StartTime:       "3:00 PM",
			DurationMinutes: 45,
			TimeSlots:       []string{"3:00 PM", "3:30 PM"},
			Services:        []string{"Shellac manicure"},
			TotalPrice:      3000,
		}
	}

	tests := []struct {
		name   string
		mutate func(r *BookingRequest)
		field  string
	}{
		{"valid", func(r *BookingRequest) {}, ""},
		{"missing user", func(r *BookingRequest) { r.UserID = " " }, "user_id"},
		{"bad date", func(r *BookingRequest) { r.Date = "04.03.2025" }, "date"},
		{"zero duration", func(r *BookingRequest) { r.DurationMinutes = 0 }, "duration"},
		{"no services", func(r *BookingRequest) { r.Services = nil }, "services"},
		{"too few slots", func(r *BookingRequest) { r.TimeSlots = r.TimeSlots[:1] }, "time_slots"},
		{"wrong first slot", func(r *BookingRequest) { r.TimeSlots = []string{"2:30 PM", "3:00 PM"} }, "time_slots"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.mutate(&r)
			err := r.Validate(30)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestBookingFilter_Matches(t *testing.T) {
	b := &Booking{UserID: "u1", Date: "2025-03-04"}

	assert.True(t, BookingFilter{}.Matches(b))
	assert.True(t, BookingFilter{UserID: "u1"}.Matches(b))
	assert.False(t, BookingFilter{UserID: "u2"}.Matches(b))
	assert.True(t, BookingFilter{UserID: "u1", Date: "2025-03-04"}.Matches(b))
	assert.False(t, BookingFilter{Date: "2025-03-05"}.Matches(b))
}
