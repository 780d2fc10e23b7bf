package slots

import (
	"errors"
	"fmt"
	"testing"

	"salonbook/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDate = "2025-03-04"

func booking(date string, labels ...string) model.Booking {
	return model.Booking{ID: "b-" + date, Date: date, TimeSlots: labels}
}

func TestSlotsNeeded(t *testing.T) {
	tests := []struct {
		duration, want int
	}{
		{0, 0},
		{-10, 0},
		{1, 1},
		{30, 1},
		{31, 2},
		{45, 2},
		{60, 2},
		{61, 3},
		{90, 3},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SlotsNeeded(tt.duration, 30), "duration %d", tt.duration)
	}
	assert.Equal(t, 3, SlotsNeeded(45, 15))
}

func TestIsSlotBooked(t *testing.T) {
	bookings := []model.Booking{
		booking(testDate, "2:00 PM"),
		booking("2025-03-05", "3:00 PM"),
	}

	assert.True(t, IsSlotBooked(testDate, "2:00 PM", bookings))
	assert.False(t, IsSlotBooked(testDate, "3:00 PM", bookings), "other dates do not count")
	assert.True(t, IsSlotBooked("2025-03-05", "3:00 PM", bookings))
	assert.False(t, IsSlotBooked(testDate, "2:00 PM", nil))
}

func TestSelectStartTime(t *testing.T) {
	catalog := NewGenerator(DefaultHours).Generate()
	r := NewResolver(30)
	existing := []model.Booking{booking(testDate, "2:00 PM")}

	tests := []struct {
		name      string
		requested TimeSlot
		duration  int
		bookings  []model.Booking
		want      []TimeSlot
		wantErr   error
	}{
		{
			name:      "run overlaps an existing booking",
			requested: TimeSlot{13, 30},
			duration:  90,
			bookings:  existing,
			wantErr:   ErrSlotConflict,
		},
		{
			name:      "free run after the booking",
			requested: TimeSlot{15, 0},
			duration:  90,
			bookings:  existing,
			want:      []TimeSlot{{15, 0}, {15, 30}, {16, 0}},
		},
		{
			name:      "45 minutes take two slots",
			requested: TimeSlot{12, 0},
			duration:  45,
			want:      []TimeSlot{{12, 0}, {12, 30}},
		},
		{
			name:      "requested time outside catalog",
			requested: TimeSlot{11, 30},
			duration:  30,
			wantErr:   ErrSlotNotFound,
		},
		{
			name:      "requested time off grid",
			requested: TimeSlot{12, 15},
			duration:  30,
			wantErr:   ErrSlotNotFound,
		},
		{
			name:      "run extends past closing",
			requested: TimeSlot{20, 30},
			duration:  60,
			wantErr:   ErrInsufficientTrailingCapacity,
		},
		{
			name:      "last slot fits exactly",
			requested: TimeSlot{20, 0},
			duration:  60,
			want:      []TimeSlot{{20, 0}, {20, 30}},
		},
		{
			name:      "zero duration",
			requested: TimeSlot{12, 0},
			duration:  0,
			wantErr:   ErrDurationUnset,
		},
		{
			name:      "booking on another date is ignored",
			requested: TimeSlot{14, 0},
			duration:  30,
			bookings:  []model.Booking{booking("2025-03-05", "2:00 PM")},
			want:      []TimeSlot{{14, 0}},
		},
		{
			name:      "booked start slot",
			requested: TimeSlot{14, 0},
			duration:  30,
			bookings:  existing,
			wantErr:   ErrSlotConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.SelectStartTime(testDate, tt.requested, tt.duration, catalog, tt.bookings)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectStartTime_RunIsContiguousAndFree(t *testing.T) {
	catalog := NewGenerator(DefaultHours).Generate()
	r := NewResolver(30)
	bookings := []model.Booking{booking(testDate, "1:00 PM", "1:30 PM"), booking(testDate, "5:00 PM")}

	for _, start := range catalog {
		for _, d := range []int{15, 30, 45, 60, 90, 120, 150} {
			run, err := r.SelectStartTime(testDate, start, d, catalog, bookings)
			if err != nil {
				continue
			}
			require.Len(t, run, SlotsNeeded(d, 30))
			assert.Equal(t, start, run[0])
			for i, s := range run {
				assert.False(t, IsSlotBooked(testDate, s.Label(), bookings))
				if i > 0 {
					assert.Equal(t, 30, s.Minutes()-run[i-1].Minutes())
				}
			}
		}
	}
}

func TestSelectStartTime_DoesNotAliasCatalog(t *testing.T) {
	catalog := NewGenerator(DefaultHours).Generate()
	run, err := NewResolver(30).SelectStartTime(testDate, TimeSlot{12, 0}, 60, catalog, nil)
	require.NoError(t, err)

	run[0] = TimeSlot{1, 0}
	assert.Equal(t, TimeSlot{12, 0}, catalog[0])
}

func TestRender(t *testing.T) {
	catalog := NewGenerator(DefaultHours).Generate()
	r := NewResolver(30)
	bookings := []model.Booking{booking(testDate, "2:00 PM")}

	t.Run("zero duration disables everything except booked", func(t *testing.T) {
		views := r.Render(testDate, 0, catalog, bookings, nil)
		require.Len(t, views, len(catalog))
		for _, v := range views {
			if v.Label == "2:00 PM" {
				assert.Equal(t, StatusBooked, v.Status)
				continue
			}
			assert.Equal(t, StatusDisabled, v.Status, v.Label)
			assert.False(t, v.Startable)
		}
	})

	t.Run("selected run and startable flags", func(t *testing.T) {
		selected := []TimeSlot{{15, 0}, {15, 30}}
		views := r.Render(testDate, 60, catalog, bookings, selected)

		byLabel := make(map[string]SlotView, len(views))
		for _, v := range views {
			byLabel[v.Label] = v
		}
		assert.Equal(t, StatusSelected, byLabel["3:00 PM"].Status)
		assert.Equal(t, StatusSelected, byLabel["3:30 PM"].Status)
		assert.Equal(t, StatusAvailable, byLabel["4:00 PM"].Status)
		assert.Equal(t, StatusBooked, byLabel["2:00 PM"].Status)
		assert.False(t, byLabel["1:30 PM"].Startable, "run would hit the 2:00 PM booking")
		assert.True(t, byLabel["2:30 PM"].Startable)
		assert.False(t, byLabel["8:30 PM"].Startable, "run would pass closing")
	})
}

func TestStartOptions(t *testing.T) {
	catalog := NewGenerator(Hours{StartHour: 12, EndHour: 14, GranularityMinutes: 30}).Generate()
	r := NewResolver(30)
	bookings := []model.Booking{booking(testDate, "1:00 PM")}

	got := r.StartOptions(testDate, 60, catalog, bookings)
	assert.Equal(t, []TimeSlot{{12, 0}}, got)
	assert.Nil(t, r.StartOptions(testDate, 0, catalog, bookings))
}

func TestReason(t *testing.T) {
	assert.Equal(t, "", Reason(nil))
	assert.Equal(t, "slot_conflict", Reason(fmt.Errorf("wrap: %w", ErrSlotConflict)))
	assert.Equal(t, "insufficient_capacity", Reason(ErrInsufficientTrailingCapacity))
	assert.Equal(t, "slot_not_found", Reason(ErrSlotNotFound))
	assert.Equal(t, "duration_unset", Reason(ErrDurationUnset))
	assert.Equal(t, "other", Reason(errors.New("boom")))
}
