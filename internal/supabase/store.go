package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/url"
	"strings"
	"time"

	"salonbook/internal/booking"
	"salonbook/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"
)

// Store keeps bookings in a Supabase (PostgREST) table.
type Store struct {
	client *supa.Client
	table  string
	logger zerolog.Logger
	now    func() time.Time
}

// NewStore connects to the project at url with a service key.
func NewStore(url, key, table string, logger zerolog.Logger) (*Store, error) {
	client, err := supa.NewClient(url, key, nil)
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	if table == "" {
		table = "bookings"
	}
	return &Store{
		client: client,
		table:  table,
		logger: logger.With().Str("component", "supabase").Logger(),
		now:    time.Now,
	}, nil
}

// bookingRow is the table layout. total_price is a numeric dollar amount.
type bookingRow struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Date       string    `json:"date"`
	StartTime  string    `json:"start_time"`
	Duration   int       `json:"duration"`
	TimeSlots  []string  `json:"time_slots"`
	Services   []string  `json:"services"`
	TotalPrice float64   `json:"total_price"`
	CreatedAt  time.Time `json:"created_at"`
}

func toRow(b model.Booking) bookingRow {
	return bookingRow{
		ID:         b.ID,
		UserID:     b.UserID,
		Date:       b.Date,
		StartTime:  b.StartTime,
		Duration:   b.DurationMinutes,
		TimeSlots:  b.TimeSlots,
		Services:   b.Services,
		TotalPrice: b.TotalPrice.Float(),
		CreatedAt:  b.CreatedAt,
	}
}

func (r bookingRow) toBooking() model.Booking {
	return model.Booking{
		ID:              r.ID,
		UserID:          r.UserID,
		Date:            r.Date,
		StartTime:       r.StartTime,
		DurationMinutes: r.Duration,
		TimeSlots:       r.TimeSlots,
		Services:        r.Services,
		TotalPrice:      model.Money(math.Round(r.TotalPrice * 100)),
		CreatedAt:       r.CreatedAt,
	}
}

// FetchBookings returns bookings matching filter, newest date first.
func (s *Store) FetchBookings(ctx context.Context, filter model.BookingFilter) ([]model.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query := s.client.From(s.table).Select("*", "", false)
	if filter.UserID != "" {
		query = query.Eq("user_id", filter.UserID)
	}
	if filter.Date != "" {
		query = query.Eq("date", filter.Date)
	}
	query = query.Order("date", &postgrest.OrderOpts{Ascending: false})

	data, _, err := query.Execute()
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", s.table, classify(err))
	}

	var rows []bookingRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.table, err)
	}

	list := make([]model.Booking, 0, len(rows))
	for _, r := range rows {
		list = append(list, r.toBooking())
	}
	return list, nil
}

// InsertBooking stores req and returns the row as written. A request with an
// ID is upserted on that ID, so a retry after an ambiguous failure stays one
// row.
func (s *Store) InsertBooking(ctx context.Context, req model.BookingRequest) (model.Booking, error) {
	if err := ctx.Err(); err != nil {
		return model.Booking{}, err
	}

	b := model.Booking{
		ID:              req.ID,
		UserID:          req.UserID,
		Date:            req.Date,
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
		TimeSlots:       append([]string(nil), req.TimeSlots...),
		Services:        append([]string(nil), req.Services...),
		TotalPrice:      req.TotalPrice,
		CreatedAt:       s.now().UTC(),
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}

	stored, err := s.write(b, req.ID != "")
	if err != nil {
		return model.Booking{}, err
	}
	s.logger.Debug().Str("booking_id", stored.ID).Str("date", stored.Date).Msg("booking stored")
	return stored, nil
}

// ImportBooking upserts a booking recorded by another store, keeping its ID
// and creation time.
func (s *Store) ImportBooking(ctx context.Context, b model.Booking) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.ID == "" {
		return &model.ValidationError{Field: "id", Reason: "required"}
	}
	if _, err := s.write(b, true); err != nil {
		return err
	}
	s.logger.Debug().Str("booking_id", b.ID).Str("date", b.Date).Msg("booking imported")
	return nil
}

func (s *Store) write(b model.Booking, upsert bool) (model.Booking, error) {
	onConflict := ""
	if upsert {
		onConflict = "id"
	}
	data, _, err := s.client.From(s.table).Insert(toRow(b), upsert, onConflict, "representation", "").Execute()
	if err != nil {
		return model.Booking{}, fmt.Errorf("insert into %s: %w", s.table, classify(err))
	}

	var rows []bookingRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return model.Booking{}, fmt.Errorf("decode inserted %s row: %w", s.table, err)
	}
	if len(rows) == 1 {
		b = rows[0].toBooking()
	}
	return b, nil
}

// unavailableCodes are PostgREST and Postgres error code prefixes that mean
// the database could not be reached or could not serve the request.
var unavailableCodes = []string{
	"PGRST000", "PGRST001", "PGRST002", "PGRST003",
	"08", // connection exception
	"53", // insufficient resources
	"57", // operator intervention
	"58", // system error
	"XX", // internal error
}

// classify marks transport failures and server-side outages with
// booking.ErrStoreUnavailable. Anything else is the row being rejected.
func classify(err error) error {
	var (
		urlErr *url.Error
		netErr net.Error
	)
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", booking.ErrStoreUnavailable, err)
	}

	msg := err.Error()
	// non-JSON bodies come from proxies in front of PostgREST
	if strings.HasPrefix(msg, "error parsing error response") {
		return fmt.Errorf("%w: %w", booking.ErrStoreUnavailable, err)
	}
	if strings.HasPrefix(msg, "(") {
		if end := strings.IndexByte(msg, ')'); end > 0 {
			code := msg[1:end]
			for _, prefix := range unavailableCodes {
				if strings.HasPrefix(code, prefix) {
					return fmt.Errorf("%w: %w", booking.ErrStoreUnavailable, err)
				}
			}
		}
	}
	return err
}
