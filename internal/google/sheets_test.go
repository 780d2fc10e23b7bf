package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"salonbook/internal/events"
	"salonbook/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

type stubClients map[string][2]string

func (s stubClients) Client(_ context.Context, userID string) (string, string) {
	c := s[userID]
	return c[0], c[1]
}

func TestFilterActiveBookings(t *testing.T) {
	s := &SheetsService{}

	bookings := []model.Booking{
		{ID: "1", Date: "2025-03-01"},
		{ID: "2", Date: "2025-03-03"},
		{ID: "3", Date: "2025-03-04"},
		{ID: "4", Date: "2025-02-28"},
	}

	active := s.filterActiveBookings(bookings, "2025-03-03")
	require.Len(t, active, 2)
	assert.Equal(t, "2", active[0].ID)
	assert.Equal(t, "3", active[1].ID)
}

func TestBookingRowValues(t *testing.T) {
	b := &model.Booking{
		ID:              "b-123",
		UserID:          "tg:456",
		Date:            "2025-03-04",
		StartTime:       "3:00 PM",
		DurationMinutes: 90,
		Services:        []string{"Gel Manicure", "Nail Art"},
		TotalPrice:      model.Money(5550),
		CreatedAt:       time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	values := bookingRowValues(b, "Ann", "+12015550123")

	expected := []interface{}{
		"b-123",
		"tg:456",
		"Ann",
		"+12015550123",
		"2025-03-04",
		"3:00 PM",
		90,
		"Gel Manicure, Nail Art",
		55.5,
		"2025-03-01 10:00:00",
	}
	assert.Equal(t, expected, values)
	assert.Len(t, values, len(headerRow))
}

func TestCacheOperations(t *testing.T) {
	s := &SheetsService{rowCache: make(map[string]int)}

	s.setCachedRow("a", 5)
	row, ok := s.getCachedRow("a")
	assert.True(t, ok)
	assert.Equal(t, 5, row)

	s.ClearCache()
	_, ok = s.getCachedRow("a")
	assert.False(t, ok, "cache cleared")
}

func TestRowFromRange(t *testing.T) {
	n, ok := rowFromRange("Bookings!A5:J5")
	assert.True(t, ok)
	assert.Equal(t, 5, n)

	_, ok = rowFromRange("garbage")
	assert.False(t, ok)
}

func TestPrepareDateHeaders(t *testing.T) {
	s := &SheetsService{}
	start := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)

	headers, cols := s.prepareDateHeaders(start, end)
	assert.Equal(t, 3, cols)
	assert.Equal(t, []string{"Time", "03/03", "03/04", "03/05"}, headers)
}

func TestFormatScheduleCell(t *testing.T) {
	s := &SheetsService{}

	t.Run("Free", func(t *testing.T) {
		val, color := s.formatScheduleCell(nil, "")
		assert.Equal(t, "Free", val)
		assert.Equal(t, freeColor, color)
	})

	t.Run("Booked", func(t *testing.T) {
		b := &model.Booking{UserID: "tg:1", Services: []string{"Pedicure"}}
		val, color := s.formatScheduleCell(b, "Ann")
		assert.Equal(t, "Ann (Pedicure)", val)
		assert.Equal(t, bookedColor, color)

		val, _ = s.formatScheduleCell(b, "")
		assert.Equal(t, "tg:1 (Pedicure)", val, "falls back to user ID")
	})
}

func newFakeSheets(t *testing.T, handler http.HandlerFunc) *SheetsService {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	srv, err := sheets.NewService(context.Background(),
		option.WithHTTPClient(ts.Client()),
		option.WithEndpoint(ts.URL+"/"),
	)
	require.NoError(t, err)
	return NewSheetsServiceWith(srv, "sheet-1", "", stubClients{"tg:1": {"Ann", "+12015550123"}}, zerolog.Nop())
}

func TestAppendBooking_ViaEvent(t *testing.T) {
	var calls atomic.Int32
	var got sheets.ValueRange
	s := newFakeSheets(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":append") {
			http.NotFound(w, r)
			return
		}
		calls.Add(1)
		assert.Equal(t, "RAW", r.URL.Query().Get("valueInputOption"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"updates":{"updatedRange":"Bookings!A7:J7"}}`))
	})

	bus := events.NewEventBus(zerolog.Nop())
	s.Subscribe(bus)

	b := model.Booking{ID: "b1", UserID: "tg:1", Date: "2025-03-04", StartTime: "3:00 PM", Services: []string{"Pedicure"}}
	require.NoError(t, bus.PublishJSON(events.BookingCreated, b))
	require.NoError(t, bus.PublishJSON(events.BookingCreated, b))

	assert.EqualValues(t, 1, calls.Load(), "second event for the same booking is skipped")
	require.Len(t, got.Values, 1)
	assert.Equal(t, "Ann", got.Values[0][2])

	row, ok := s.getCachedRow("b1")
	assert.True(t, ok)
	assert.Equal(t, 7, row)
}

func TestAppendBooking_ClientTextIsLiteral(t *testing.T) {
	var got sheets.ValueRange
	var input string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		input = r.URL.Query().Get("valueInputOption")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"updates":{"updatedRange":"Bookings!A2:J2"}}`))
	}))
	t.Cleanup(ts.Close)
	srv, err := sheets.NewService(context.Background(), option.WithHTTPClient(ts.Client()), option.WithEndpoint(ts.URL+"/"))
	require.NoError(t, err)
	clients := stubClients{"tg:9": {`=HYPERLINK("http://evil","x")`, "+12015550199"}}
	s := NewSheetsServiceWith(srv, "sheet-1", "", clients, zerolog.Nop())

	require.NoError(t, s.AppendBooking(context.Background(), &model.Booking{ID: "b9", UserID: "tg:9", Date: "2025-03-04"}))

	assert.Equal(t, "RAW", input, "formulas and leading + are not interpreted")
	require.Len(t, got.Values, 1)
	assert.Equal(t, `=HYPERLINK("http://evil","x")`, got.Values[0][2])
	assert.Equal(t, "+12015550199", got.Values[0][3])
}

func TestAppendBooking_Error(t *testing.T) {
	s := newFakeSheets(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"denied"}}`, http.StatusForbidden)
	})

	err := s.AppendBooking(context.Background(), &model.Booking{ID: "b1"})
	require.Error(t, err)
	_, ok := s.getCachedRow("b1")
	assert.False(t, ok)
}

type stubSource []model.Booking

func (s stubSource) FetchBookings(_ context.Context, _ model.BookingFilter) ([]model.Booking, error) {
	return s, nil
}

func TestSync(t *testing.T) {
	var cleared, updated, batched atomic.Int32
	var written sheets.ValueRange
	var batch sheets.BatchUpdateSpreadsheetRequest
	s := newFakeSheets(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, ":clear"):
			cleared.Add(1)
			_, _ = w.Write([]byte(`{}`))
		case strings.HasSuffix(r.URL.Path, ":batchUpdate"):
			batched.Add(1)
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&batch))
			_, _ = w.Write([]byte(`{}`))
		case r.Method == http.MethodPut:
			updated.Add(1)
			assert.Equal(t, "RAW", r.URL.Query().Get("valueInputOption"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&written))
			_, _ = w.Write([]byte(`{}`))
		case r.Method == http.MethodGet:
			_, _ = w.Write([]byte(`{"sheets":[{"properties":{"sheetId":3,"title":"Bookings"}},{"properties":{"sheetId":5,"title":"Schedule"}}]}`))
		default:
			http.NotFound(w, r)
		}
	})

	source := stubSource{
		{ID: "old", UserID: "tg:1", Date: "2025-03-01", TimeSlots: []string{"12:00 PM"}},
		{ID: "b1", UserID: "tg:1", Date: "2025-03-04", StartTime: "12:30 PM", TimeSlots: []string{"12:30 PM"}},
	}
	today := time.Date(2025, 3, 3, 9, 0, 0, 0, time.Local)
	require.NoError(t, s.Sync(context.Background(), source, []string{"12:00 PM", "12:30 PM"}, today, 3))

	assert.EqualValues(t, 1, cleared.Load())
	assert.EqualValues(t, 1, updated.Load())
	assert.EqualValues(t, 1, batched.Load())

	require.Len(t, written.Values, 2, "header plus the upcoming booking")
	assert.Equal(t, "b1", written.Values[1][0])
	row, ok := s.getCachedRow("b1")
	assert.True(t, ok)
	assert.Equal(t, 2, row)

	require.Len(t, batch.Requests, 1)
	uc := batch.Requests[0].UpdateCells
	require.NotNil(t, uc)
	assert.EqualValues(t, 5, uc.Start.SheetId)
	require.Len(t, uc.Rows, 3)
	assert.Len(t, uc.Rows[0].Values, 4, "time column plus three days")
	assert.Equal(t, "Free", *uc.Rows[2].Values[1].UserEnteredValue.StringValue)
	assert.Contains(t, *uc.Rows[2].Values[2].UserEnteredValue.StringValue, "Ann")
}
