package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"salonbook/internal/calendar"
	"salonbook/internal/catalog"
	"salonbook/internal/events"
	"salonbook/internal/metrics"
	"salonbook/internal/model"
	"salonbook/internal/selection"
	"salonbook/internal/slots"

	"github.com/rs/zerolog"
)

var (
	ErrDateNotSelectable = errors.New("date is closed or outside the booking window")
	ErrNoDateSelected    = errors.New("choose a date first")
	ErrNoTimeChosen      = errors.New("choose a start time first")
	ErrNothingSelected   = errors.New("no services selected")
)

// ErrorCode maps flow errors to stable machine codes.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrDateNotSelectable):
		return "date_not_selectable"
	case errors.Is(err, ErrNoDateSelected):
		return "no_date_selected"
	case errors.Is(err, ErrNoTimeChosen):
		return "no_time_chosen"
	case errors.Is(err, ErrNothingSelected):
		return "nothing_selected"
	case errors.Is(err, catalog.ErrUnknownService):
		return "unknown_service"
	case model.IsValidationError(err):
		return "invalid_request"
	}
	return slots.Reason(err)
}

// Service orchestrates the booking flow over a Store.
type Service struct {
	store     Store
	catalog   *catalog.Catalog
	generator *slots.Generator
	resolver  *slots.Resolver
	policy    calendar.Policy
	fsm       *FSM
	bus       *events.EventBus
	now       func() time.Time
	logger    zerolog.Logger
}

// NewService creates a booking service. bus may be nil.
func NewService(
	store Store,
	c *catalog.Catalog,
	hours slots.Hours,
	policy calendar.Policy,
	bus *events.EventBus,
	logger zerolog.Logger,
) *Service {
	gen := slots.NewGenerator(hours)
	return &Service{
		store:     store,
		catalog:   c,
		generator: gen,
		resolver:  slots.NewResolver(gen.Granularity()),
		policy:    policy,
		fsm:       NewFSM(),
		bus:       bus,
		now:       time.Now,
		logger:    logger.With().Str("component", "booking").Logger(),
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Catalog returns the service menu.
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

// Policy returns the date policy.
func (s *Service) Policy() calendar.Policy {
	return s.policy
}

// Today returns the current local date.
func (s *Service) Today() time.Time {
	return calendar.Midnight(s.now())
}

// SlotCatalog returns the day's slots.
func (s *Service) SlotCatalog() []slots.TimeSlot {
	return s.generator.Generate()
}

// Availability is the rendered slot grid for a date.
type Availability struct {
	Date            string           `json:"date"`
	DurationMinutes int              `json:"duration"`
	SlotsNeeded     int              `json:"slots_needed"`
	Slots           []slots.SlotView `json:"slots"`
	StartTimes      []string         `json:"start_times"`
}

// Availability renders every slot of date for the given duration. It may be
// served from a cache; SelectTime and Confirm always re-read storage.
func (s *Service) Availability(ctx context.Context, date string, durationMinutes int, selected []slots.TimeSlot) (Availability, error) {
	if _, err := calendar.ParseDate(date); err != nil {
		return Availability{}, &model.ValidationError{Field: "date", Reason: err.Error()}
	}
	bookings, err := s.store.FetchBookings(ctx, model.BookingFilter{Date: date})
	if err != nil {
		return Availability{}, fmt.Errorf("fetch bookings for %s: %w", date, err)
	}
	catalog := s.SlotCatalog()
	return Availability{
		Date:            date,
		DurationMinutes: durationMinutes,
		SlotsNeeded:     slots.SlotsNeeded(durationMinutes, s.resolver.Granularity()),
		Slots:           s.resolver.Render(date, durationMinutes, catalog, bookings, selected),
		StartTimes:      slots.Labels(s.resolver.StartOptions(date, durationMinutes, catalog, bookings)),
	}, nil
}

// SessionAvailability renders the slot grid for the session's date.
func (s *Service) SessionAvailability(ctx context.Context, session *Session) (Availability, error) {
	v := session.Snapshot()
	if v.Date == "" {
		return Availability{}, ErrNoDateSelected
	}
	return s.Availability(ctx, v.Date, v.Totals.DurationMinutes, v.Reserved)
}

// ToggleService flips a service in the session. A changed duration drops any
// chosen time.
func (s *Service) ToggleService(session *Session, name string) (selection.Totals, error) {
	session.op.Lock()
	defer session.op.Unlock()
	session.mu.Lock()
	defer session.mu.Unlock()

	totals, err := session.Selection.Toggle(name)
	if err != nil {
		return totals, err
	}
	metrics.IncServiceToggled(name)
	if session.State == StateTimeChosen {
		session.Draft.Start = slots.TimeSlot{}
		session.Draft.Reserved = nil
		s.fsm.transitionLocked(session, StateDateSelected)
	}
	session.touch()
	return totals, nil
}

// ResetSelection clears services and the chosen time, keeping the date.
func (s *Service) ResetSelection(session *Session) {
	session.op.Lock()
	defer session.op.Unlock()
	session.mu.Lock()
	defer session.mu.Unlock()

	session.Selection.Reset()
	session.Draft.Start = slots.TimeSlot{}
	session.Draft.Reserved = nil
	if session.State == StateTimeChosen {
		s.fsm.transitionLocked(session, StateDateSelected)
	}
	session.touch()
}

// SelectDate sets the session date. Any chosen time is dropped.
func (s *Service) SelectDate(session *Session, date string) error {
	d, err := calendar.ParseDate(date)
	if err != nil {
		return &model.ValidationError{Field: "date", Reason: err.Error()}
	}
	if !s.policy.IsSelectable(d, s.now()) {
		return fmt.Errorf("%s: %w", date, ErrDateNotSelectable)
	}

	session.op.Lock()
	defer session.op.Unlock()
	session.mu.Lock()
	defer session.mu.Unlock()

	if !s.fsm.transitionLocked(session, StateDateSelected) {
		return fmt.Errorf("cannot select date from %s", session.State)
	}
	session.Draft = Draft{Date: calendar.FormatDate(d)}
	return nil
}

// SelectTime reserves the run starting at label for the session's duration.
// A rejected request leaves the session untouched.
func (s *Service) SelectTime(ctx context.Context, session *Session, label string) ([]slots.TimeSlot, error) {
	session.op.Lock()
	defer session.op.Unlock()

	session.mu.Lock()
	if !s.fsm.CanTransition(session.State, StateTimeChosen) {
		session.mu.Unlock()
		return nil, ErrNoDateSelected
	}
	date := session.Draft.Date
	duration := session.Selection.Totals().DurationMinutes
	session.mu.Unlock()

	run, err := s.resolve(ctx, date, duration, label)
	if err != nil {
		metrics.IncSlotRejected(ErrorCode(err))
		s.logger.Debug().
			Err(err).
			Str("user_id", session.UserID).
			Str("date", date).
			Str("time", label).
			Msg("start time rejected")
		return nil, err
	}

	session.mu.Lock()
	session.Draft.Start = run[0]
	session.Draft.Reserved = run
	s.fsm.transitionLocked(session, StateTimeChosen)
	session.mu.Unlock()
	return append([]slots.TimeSlot(nil), run...), nil
}

// resolve checks label against bookings read straight from storage.
func (s *Service) resolve(ctx context.Context, date string, duration int, label string) ([]slots.TimeSlot, error) {
	requested, err := slots.ParseTimeSlot(label)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", label, slots.ErrSlotNotFound)
	}
	if duration <= 0 {
		return nil, slots.ErrDurationUnset
	}

	bookings, err := s.store.FetchBookings(ctx, model.BookingFilter{Date: date, Fresh: true})
	if err != nil {
		return nil, fmt.Errorf("fetch bookings for %s: %w", date, err)
	}
	return s.resolver.SelectStartTime(date, requested, duration, s.SlotCatalog(), bookings)
}

// Confirm re-checks the chosen run against the latest bookings and persists it.
// On any failure the session is left as it was.
func (s *Service) Confirm(ctx context.Context, session *Session) (model.Booking, error) {
	session.op.Lock()
	created, req, err := s.confirm(ctx, session)
	session.op.Unlock()

	if s.bus == nil {
		return created, err
	}
	switch {
	case err == nil:
		if perr := s.bus.PublishJSON(events.BookingCreated, created); perr != nil {
			s.logger.Error().Err(perr).Msg("publish booking event")
		}
	case req != nil:
		if perr := s.bus.PublishJSON(events.BookingFailed, FailedBooking{Request: *req, Error: err.Error()}); perr != nil {
			s.logger.Error().Err(perr).Msg("publish booking event")
		}
	}
	return created, err
}

// FailedBooking is the payload of events.BookingFailed: a valid request the
// store could not save.
type FailedBooking struct {
	Request model.BookingRequest `json:"request"`
	Error   string               `json:"error"`
}

// confirm runs with session.op held. req is non-nil only when persisting failed.
func (s *Service) confirm(ctx context.Context, session *Session) (model.Booking, *model.BookingRequest, error) {
	session.mu.Lock()
	if session.Selection.Empty() {
		session.mu.Unlock()
		return model.Booking{}, nil, ErrNothingSelected
	}
	if session.State != StateTimeChosen {
		session.mu.Unlock()
		return model.Booking{}, nil, ErrNoTimeChosen
	}
	picked := session.Selection.Clone()
	date, start := session.Draft.Date, session.Draft.Start
	session.mu.Unlock()

	totals := picked.Totals()
	run, err := s.resolve(ctx, date, totals.DurationMinutes, start.Label())
	if err != nil {
		metrics.IncSlotRejected(ErrorCode(err))
		return model.Booking{}, nil, err
	}

	req := model.BookingRequest{
		UserID:          session.UserID,
		Date:            date,
		StartTime:       run[0].Label(),
		DurationMinutes: totals.DurationMinutes,
		TimeSlots:       slots.Labels(run),
		Services:        picked.Selected(),
		TotalPrice:      totals.Price,
	}
	if err := req.Validate(s.resolver.Granularity()); err != nil {
		return model.Booking{}, nil, err
	}

	created, err := s.store.InsertBooking(ctx, req)
	if err != nil {
		if errors.Is(err, slots.ErrSlotConflict) {
			metrics.IncSlotRejected(ErrorCode(err))
			return model.Booking{}, nil, err
		}
		metrics.IncBookingCreated("failed")
		s.logger.Error().Err(err).Str("user_id", req.UserID).Str("date", req.Date).Msg("persist booking failed")
		return model.Booking{}, &req, fmt.Errorf("persist booking: %w", err)
	}

	metrics.IncBookingCreated("created")
	s.logger.Info().
		Str("booking_id", created.ID).
		Str("user_id", created.UserID).
		Str("date", created.Date).
		Str("start", created.StartTime).
		Int("duration", created.DurationMinutes).
		Msg("booking created")

	session.mu.Lock()
	session.Selection.Reset()
	session.Draft = Draft{}
	s.fsm.transitionLocked(session, StateNoDateSelected)
	session.mu.Unlock()
	return created, nil, nil
}

// BookRequest is a one-shot booking without a stored session.
type BookRequest struct {
	UserID    string
	Date      string
	StartTime string
	Services  []string
}

// Book runs the whole flow for req in one call.
func (s *Service) Book(ctx context.Context, req BookRequest) (model.Booking, error) {
	session := NewSession(req.UserID, s.catalog)
	if _, err := session.Selection.Set(req.Services); err != nil {
		return model.Booking{}, err
	}
	if session.Selection.Empty() {
		return model.Booking{}, ErrNothingSelected
	}
	if err := s.SelectDate(session, req.Date); err != nil {
		return model.Booking{}, err
	}
	if _, err := s.SelectTime(ctx, session, req.StartTime); err != nil {
		return model.Booking{}, err
	}
	return s.Confirm(ctx, session)
}

// ListBookings returns the user's bookings, or everyone's when all is set,
// newest date first.
func (s *Service) ListBookings(ctx context.Context, userID string, all bool) ([]model.Booking, error) {
	filter := model.BookingFilter{UserID: userID}
	if all {
		filter.UserID = ""
	}
	list, err := s.store.FetchBookings(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("fetch bookings: %w", err)
	}
	SortNewestFirst(list)
	return list, nil
}

// SortNewestFirst orders by date descending, then start time ascending.
func SortNewestFirst(list []model.Booking) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Date != list[j].Date {
			return list[i].Date > list[j].Date
		}
		return startMinutes(list[i]) < startMinutes(list[j])
	})
}

func startMinutes(b model.Booking) int {
	t, err := slots.ParseTimeSlot(b.StartTime)
	if err != nil {
		return 0
	}
	return t.Minutes()
}
