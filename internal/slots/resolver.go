package slots

import (
	"errors"

	"salonbook/internal/model"
)

var (
	ErrSlotNotFound                 = errors.New("requested time is not in the slot catalog")
	ErrInsufficientTrailingCapacity = errors.New("not enough slots left in the day for this duration")
	ErrSlotConflict                 = errors.New("one or more slots in the run are already booked")
	ErrDurationUnset                = errors.New("select at least one service first")
)

// Reason maps a resolver error to a short machine code.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSlotNotFound):
		return "slot_not_found"
	case errors.Is(err, ErrInsufficientTrailingCapacity):
		return "insufficient_capacity"
	case errors.Is(err, ErrSlotConflict):
		return "slot_conflict"
	case errors.Is(err, ErrDurationUnset):
		return "duration_unset"
	default:
		return "other"
	}
}

// SlotsNeeded is ceil(duration/granularity).
func SlotsNeeded(durationMinutes, granularity int) int {
	if durationMinutes <= 0 {
		return 0
	}
	if granularity <= 0 {
		granularity = 30
	}
	return (durationMinutes + granularity - 1) / granularity
}

// BookedSet holds the slot labels claimed on one date.
type BookedSet map[string]struct{}

// OccupancyForDate projects bookings onto the slot labels they claim on date.
func OccupancyForDate(date string, bookings []model.Booking) BookedSet {
	set := make(BookedSet)
	for i := range bookings {
		if !bookings[i].OnDate(date) {
			continue
		}
		for _, label := range bookings[i].TimeSlots {
			set[label] = struct{}{}
		}
	}
	return set
}

// Contains reports whether label is claimed.
func (s BookedSet) Contains(label string) bool {
	_, ok := s[label]
	return ok
}

// IsSlotBooked reports whether any booking on date lists label.
func IsSlotBooked(date, label string, bookings []model.Booking) bool {
	for i := range bookings {
		if bookings[i].OnDate(date) && bookings[i].OccupiesSlot(label) {
			return true
		}
	}
	return false
}

// SlotStatus is the render state of a slot.
type SlotStatus string

const (
	StatusAvailable SlotStatus = "available"
	StatusBooked    SlotStatus = "booked"
	StatusDisabled  SlotStatus = "disabled"
	StatusSelected  SlotStatus = "selected"
)

// SlotView is one rendered slot.
type SlotView struct {
	Slot   TimeSlot   `json:"-"`
	Label  string     `json:"label"`
	Status SlotStatus `json:"status"`
	// Startable is true when a run of the current duration can begin here.
	Startable bool `json:"startable"`
}

// Resolver decides which runs of slots a booking may reserve.
type Resolver struct {
	granularity int
}

// NewResolver creates a resolver for the given slot granularity.
func NewResolver(granularity int) *Resolver {
	if granularity <= 0 {
		granularity = 30
	}
	return &Resolver{granularity: granularity}
}

// Granularity returns the slot length in minutes.
func (r *Resolver) Granularity() int {
	return r.granularity
}

// SelectStartTime returns the contiguous run beginning at requested that covers
// durationMinutes on date. The run is all-or-nothing: any booked slot rejects it.
func (r *Resolver) SelectStartTime(
	date string,
	requested TimeSlot,
	durationMinutes int,
	catalog []TimeSlot,
	bookings []model.Booking,
) ([]TimeSlot, error) {
	idx := IndexOf(catalog, requested)
	if idx < 0 {
		return nil, ErrSlotNotFound
	}
	if durationMinutes <= 0 {
		return nil, ErrDurationUnset
	}

	need := SlotsNeeded(durationMinutes, r.granularity)
	if idx+need > len(catalog) {
		return nil, ErrInsufficientTrailingCapacity
	}

	run := catalog[idx : idx+need]
	booked := OccupancyForDate(date, bookings)
	for _, s := range run {
		if booked.Contains(s.Label()) {
			return nil, ErrSlotConflict
		}
	}

	out := make([]TimeSlot, need)
	copy(out, run)
	return out, nil
}

// Render returns the status of every catalog slot on date. Booked wins over
// disabled, disabled over selected.
func (r *Resolver) Render(
	date string,
	durationMinutes int,
	catalog []TimeSlot,
	bookings []model.Booking,
	selected []TimeSlot,
) []SlotView {
	booked := OccupancyForDate(date, bookings)
	chosen := make(map[TimeSlot]struct{}, len(selected))
	for _, s := range selected {
		chosen[s] = struct{}{}
	}

	need := SlotsNeeded(durationMinutes, r.granularity)
	out := make([]SlotView, len(catalog))
	for i, s := range catalog {
		label := s.Label()
		view := SlotView{Slot: s, Label: label, Status: StatusAvailable}
		switch {
		case booked.Contains(label):
			view.Status = StatusBooked
		case durationMinutes <= 0:
			view.Status = StatusDisabled
		default:
			if _, ok := chosen[s]; ok {
				view.Status = StatusSelected
			}
		}
		if need > 0 && view.Status != StatusBooked {
			view.Startable = runIsFree(catalog, i, need, booked)
		}
		out[i] = view
	}
	return out
}

// StartOptions lists every slot from which a run of durationMinutes fits.
func (r *Resolver) StartOptions(date string, durationMinutes int, catalog []TimeSlot, bookings []model.Booking) []TimeSlot {
	need := SlotsNeeded(durationMinutes, r.granularity)
	if need == 0 {
		return nil
	}
	booked := OccupancyForDate(date, bookings)
	var out []TimeSlot
	for i := range catalog {
		if runIsFree(catalog, i, need, booked) {
			out = append(out, catalog[i])
		}
	}
	return out
}

func runIsFree(catalog []TimeSlot, start, need int, booked BookedSet) bool {
	if start+need > len(catalog) {
		return false
	}
	for _, s := range catalog[start : start+need] {
		if booked.Contains(s.Label()) {
			return false
		}
	}
	return true
}

// Labels renders a run with Label.
func Labels(run []TimeSlot) []string {
	out := make([]string, len(run))
	for i, s := range run {
		out[i] = s.Label()
	}
	return out
}
