package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"salonbook/internal/booking"
	"salonbook/internal/metrics"
	"salonbook/internal/model"
	"salonbook/internal/slots"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// Replica is a booking.Store that can also take bookings recorded elsewhere
// as they are.
type Replica interface {
	booking.Store
	ImportBooking(ctx context.Context, b model.Booking) error
}

// FailoverStore serves from primary and switches to fallback while primary is
// unavailable. Primary is retried once per recoveryInterval.
//
// Bookings taken by the fallback are replayed into primary once it answers
// again. Until that has succeeded, reads from primary are merged with the
// fallback's so those bookings stay visible. Successful primary writes are
// copied to the fallback so it can check slots during an outage.
type FailoverStore struct {
	primary  Replica
	fallback Replica
	logger   zerolog.Logger

	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time

	// dirty counts fallback writes; synced is the count the last successful
	// reconcile saw. They differ while the fallback may hold bookings
	// primary lacks.
	dirty  atomic.Int64
	synced atomic.Int64
	syncMu sync.Mutex
}

func NewFailoverStore(primary, fallback Replica, logger zerolog.Logger) *FailoverStore {
	r := &FailoverStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger.With().Str("component", "failover_store").Logger(),
	}
	// the fallback may still hold bookings from an earlier run
	r.dirty.Store(1)
	return r
}

// Degraded reports whether requests currently go to the fallback.
func (r *FailoverStore) Degraded() bool {
	return r.isDown.Load()
}

func (r *FailoverStore) pending() bool {
	return r.dirty.Load() != r.synced.Load()
}

func (r *FailoverStore) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if time.Since(r.lastCheck) > recoveryInterval {
		r.lastCheck = time.Now()
		return true
	}
	return false
}

func (r *FailoverStore) markDown(err error) {
	if !r.isDown.Swap(true) {
		r.logger.Warn().Err(err).Msg("primary store unavailable, switching to fallback")
	}
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()
	metrics.IncStoreFailover()
}

func (r *FailoverStore) markUp(ctx context.Context) {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("primary store recovered")
	}
	if r.pending() {
		if err := r.reconcile(ctx); err != nil {
			r.logger.Warn().Err(err).Msg("fallback replay failed, will retry")
		}
	}
}

// outage reports whether err means primary could not be reached. Anything
// else is an answer from primary and goes back to the caller.
func outage(ctx context.Context, err error) bool {
	return ctx.Err() == nil && errors.Is(err, booking.ErrStoreUnavailable)
}

func (r *FailoverStore) FetchBookings(ctx context.Context, filter model.BookingFilter) ([]model.Booking, error) {
	if r.usePrimary() {
		list, err := r.primary.FetchBookings(ctx, filter)
		if err == nil {
			// list was read before any replay markUp runs
			held := r.pending()
			r.markUp(ctx)
			if held {
				return r.mergeFallback(ctx, filter, list), nil
			}
			return list, nil
		}
		if !outage(ctx, err) {
			return nil, err
		}
		r.markDown(err)
	}
	return r.fallback.FetchBookings(ctx, filter)
}

// InsertBooking gives req an ID before the first attempt, so a primary write
// that failed after committing and the fallback copy are the same booking.
func (r *FailoverStore) InsertBooking(ctx context.Context, req model.BookingRequest) (model.Booking, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if r.usePrimary() {
		b, err := r.primary.InsertBooking(ctx, req)
		if err == nil {
			r.markUp(ctx)
			if err := r.fallback.ImportBooking(ctx, b); err != nil {
				r.logger.Warn().Err(err).Str("booking_id", b.ID).Msg("copy to fallback failed")
			}
			return b, nil
		}
		if !outage(ctx, err) {
			return model.Booking{}, err
		}
		r.markDown(err)
	}

	b, err := r.fallback.InsertBooking(ctx, req)
	if err != nil {
		return model.Booking{}, err
	}
	r.dirty.Add(1)
	r.logger.Info().Str("booking_id", b.ID).Str("date", b.Date).Msg("booking held in fallback")
	return b, nil
}

func (r *FailoverStore) mergeFallback(ctx context.Context, filter model.BookingFilter, list []model.Booking) []model.Booking {
	held, err := r.fallback.FetchBookings(ctx, filter)
	if err != nil {
		r.logger.Warn().Err(err).Msg("read fallback for merge failed")
		return list
	}
	seen := make(map[string]bool, len(list))
	for _, b := range list {
		seen[b.ID] = true
	}
	added := false
	for _, b := range held {
		if !seen[b.ID] {
			list = append(list, b)
			added = true
		}
	}
	if added {
		booking.SortNewestFirst(list)
	}
	return list
}

// reconcile replays fallback-only bookings into primary and copies
// primary-only bookings into the fallback. Only one runs at a time; a caller
// that finds one in progress returns at once.
func (r *FailoverStore) reconcile(ctx context.Context) error {
	if !r.syncMu.TryLock() {
		return nil
	}
	defer r.syncMu.Unlock()

	gen := r.dirty.Load()
	if gen == r.synced.Load() {
		return nil
	}

	inPrimary, err := r.primary.FetchBookings(ctx, model.BookingFilter{})
	if err != nil {
		return fmt.Errorf("read primary: %w", err)
	}
	inFallback, err := r.fallback.FetchBookings(ctx, model.BookingFilter{})
	if err != nil {
		return fmt.Errorf("read fallback: %w", err)
	}

	primaryIDs := make(map[string]bool, len(inPrimary))
	for _, b := range inPrimary {
		primaryIDs[b.ID] = true
	}
	fallbackIDs := make(map[string]bool, len(inFallback))
	for _, b := range inFallback {
		fallbackIDs[b.ID] = true
	}

	replayed := 0
	for _, b := range inFallback {
		if primaryIDs[b.ID] {
			continue
		}
		if overlapsAny(b, inPrimary) {
			r.logger.Warn().Str("booking_id", b.ID).Str("date", b.Date).Str("start", b.StartTime).
				Msg("replayed booking overlaps one made elsewhere during the outage")
		}
		if err := r.primary.ImportBooking(ctx, b); err != nil {
			return fmt.Errorf("replay %s: %w", b.ID, err)
		}
		replayed++
	}

	copied := 0
	for _, b := range inPrimary {
		if fallbackIDs[b.ID] {
			continue
		}
		if err := r.fallback.ImportBooking(ctx, b); err != nil {
			r.logger.Warn().Err(err).Str("booking_id", b.ID).Msg("copy to fallback failed")
			continue
		}
		copied++
	}

	r.synced.Store(gen)
	if replayed > 0 || copied > 0 {
		r.logger.Info().Int("replayed", replayed).Int("copied", copied).Msg("stores reconciled")
	}
	return nil
}

func overlapsAny(b model.Booking, others []model.Booking) bool {
	taken := slots.OccupancyForDate(b.Date, others)
	for _, label := range b.TimeSlots {
		if taken.Contains(label) {
			return true
		}
	}
	return false
}
