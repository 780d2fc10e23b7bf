package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"salonbook/internal/booking"
	"salonbook/internal/model"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const keyPrefix = "salonbook:bookings"

// Store is a Redis read-through cache in front of another booking.Store.
type Store struct {
	next   booking.Store
	redis  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewStore wraps next. A nil client or non-positive ttl disables caching.
func NewStore(next booking.Store, client *redis.Client, ttl time.Duration, logger zerolog.Logger) *Store {
	return &Store{
		next:   next,
		redis:  client,
		ttl:    ttl,
		logger: logger.With().Str("component", "booking_cache").Logger(),
	}
}

func (s *Store) enabled() bool {
	return s.redis != nil && s.ttl > 0
}

func cacheKey(filter model.BookingFilter) string {
	return fmt.Sprintf("%s:u=%s:d=%s", keyPrefix, filter.UserID, filter.Date)
}

// FetchBookings serves listings from Redis. A Fresh filter always reads the
// wrapped store and refreshes the cached copy.
func (s *Store) FetchBookings(ctx context.Context, filter model.BookingFilter) ([]model.Booking, error) {
	key := cacheKey(filter)
	var list []model.Booking
	if !filter.Fresh && s.readCache(ctx, key, &list) {
		return list, nil
	}

	list, err := s.next.FetchBookings(ctx, filter)
	if err != nil {
		return nil, err
	}
	s.writeCache(ctx, key, list)
	return list, nil
}

// InsertBooking writes through and drops every cached listing the new booking
// could appear in.
func (s *Store) InsertBooking(ctx context.Context, req model.BookingRequest) (model.Booking, error) {
	b, err := s.next.InsertBooking(ctx, req)
	if err != nil {
		return model.Booking{}, err
	}
	s.invalidate(ctx, b)
	return b, nil
}

func (s *Store) invalidate(ctx context.Context, b model.Booking) {
	if !s.enabled() {
		return
	}
	keys := []string{
		cacheKey(model.BookingFilter{}),
		cacheKey(model.BookingFilter{UserID: b.UserID}),
		cacheKey(model.BookingFilter{Date: b.Date}),
		cacheKey(model.BookingFilter{UserID: b.UserID, Date: b.Date}),
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn().Err(err).Str("date", b.Date).Msg("cache invalidation failed")
	}
}

func (s *Store) readCache(ctx context.Context, key string, out any) bool {
	if !s.enabled() {
		return false
	}
	val, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (s *Store) writeCache(ctx context.Context, key string, val any) {
	if !s.enabled() {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = s.redis.Set(ctx, key, data, s.ttl).Err()
}
