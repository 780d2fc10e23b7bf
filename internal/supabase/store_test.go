package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"salonbook/internal/access"
	"salonbook/internal/booking"
	"salonbook/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRest is a tiny PostgREST stand-in for the bookings table.
type fakeRest struct {
	mu       sync.Mutex
	rows     []bookingRow
	queries  []string
	fail     bool
	reject   string
	lastBody []byte
	prefer   string
	users    map[string]access.Profile
}

func (f *fakeRest) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if r.URL.Path == "/rest/v1/users" {
		f.serveUsers(w, r)
		return
	}
	if r.URL.Path != "/rest/v1/bookings" {
		http.NotFound(w, r)
		return
	}
	if f.fail {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"code":"XX000","message":"database unavailable"}`))
		return
	}

	switch r.Method {
	case http.MethodGet:
		f.queries = append(f.queries, r.URL.RawQuery)
		out := make([]bookingRow, 0)
		for _, row := range f.rows {
			if v := r.URL.Query().Get("user_id"); v != "" && v != "eq."+row.UserID {
				continue
			}
			if v := r.URL.Query().Get("date"); v != "" && v != "eq."+row.Date {
				continue
			}
			out = append(out, row)
		}
		_ = json.NewEncoder(w).Encode(out)
	case http.MethodPost:
		body, _ := io.ReadAll(r.Body)
		f.lastBody = body
		f.prefer = r.Header.Get("Prefer")
		if f.reject != "" {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"code":"` + f.reject + `","message":"rejected"}`))
			return
		}
		var row bookingRow
		if err := json.Unmarshal(body, &row); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":"PGRST102","message":"bad body"}`))
			return
		}
		replaced := false
		for i := range f.rows {
			if f.rows[i].ID == row.ID && strings.Contains(f.prefer, "merge-duplicates") {
				f.rows[i] = row
				replaced = true
			}
		}
		if !replaced {
			f.rows = append(f.rows, row)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode([]bookingRow{row})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeRest) serveUsers(w http.ResponseWriter, r *http.Request) {
	if f.users == nil {
		f.users = make(map[string]access.Profile)
	}
	switch r.Method {
	case http.MethodGet:
		out := make([]access.Profile, 0)
		if p, ok := f.users[strings.TrimPrefix(r.URL.Query().Get("id"), "eq.")]; ok {
			out = append(out, p)
		}
		_ = json.NewEncoder(w).Encode(out)
	case http.MethodPost:
		var p access.Profile
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.users[p.UserID] = p
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("[]"))
	}
}

func newTestStore(t *testing.T) (*Store, *fakeRest) {
	t.Helper()
	fake := &fakeRest{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	store, err := NewStore(srv.URL, "service-key", "", zerolog.Nop())
	require.NoError(t, err)
	store.now = func() time.Time { return time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC) }
	return store, fake
}

func TestRowMapping(t *testing.T) {
	b := model.Booking{
		ID:              "b1",
		UserID:          "u1",
		Date:            "2025-03-04",
		StartTime:       "3:00 PM",
		DurationMinutes: 45,
		TimeSlots:       []string{"3:00 PM", "3:30 PM"},
		Services:        []string{"Full Face Wax"},
		TotalPrice:      model.Money(3550),
		CreatedAt:       time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC),
	}

	row := toRow(b)
	assert.InDelta(t, 35.50, row.TotalPrice, 0.0001)
	assert.Equal(t, 45, row.Duration)
	assert.Equal(t, b, row.toBooking())

	// float dollars that are not exact in binary still land on the right cent
	row.TotalPrice = 0.29
	assert.Equal(t, model.Money(29), row.toBooking().TotalPrice)
}

func TestNewStore_RequiresCredentials(t *testing.T) {
	_, err := NewStore("", "", "", zerolog.Nop())
	assert.Error(t, err)
}

func TestInsertAndFetch(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()

	created, err := store.InsertBooking(ctx, model.BookingRequest{
		UserID:          "u1",
		Date:            "2025-03-04",
		StartTime:       "3:00 PM",
		DurationMinutes: 60,
		TimeSlots:       []string{"3:00 PM", "3:30 PM"},
		Services:        []string{"Eyebrows", "Lip"},
		TotalPrice:      model.Dollars(25),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, model.Dollars(25), created.TotalPrice)

	var sent map[string]any
	require.NoError(t, json.Unmarshal(fake.lastBody, &sent))
	assert.Equal(t, 25.0, sent["total_price"])
	assert.Equal(t, "2025-03-04", sent["date"])

	list, err := store.FetchBookings(ctx, model.BookingFilter{Date: "2025-03-04"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)
	assert.Equal(t, []string{"3:00 PM", "3:30 PM"}, list[0].TimeSlots)

	list, err = store.FetchBookings(ctx, model.BookingFilter{UserID: "someone-else"})
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NotEmpty(t, fake.queries)
	assert.Contains(t, fake.queries[0], "order=date.desc")
}

func TestFetchBookings_Error(t *testing.T) {
	store, fake := newTestStore(t)
	fake.fail = true

	_, err := store.FetchBookings(context.Background(), model.BookingFilter{})
	assert.ErrorIs(t, err, booking.ErrStoreUnavailable)

	_, err = store.InsertBooking(context.Background(), model.BookingRequest{UserID: "u1"})
	assert.ErrorIs(t, err, booking.ErrStoreUnavailable)
}

func TestInsertBooking_RejectionIsNotAnOutage(t *testing.T) {
	store, fake := newTestStore(t)
	fake.reject = "23514"

	_, err := store.InsertBooking(context.Background(), model.BookingRequest{UserID: "u1"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, booking.ErrStoreUnavailable)
}

func TestFetchBookings_Unreachable(t *testing.T) {
	store, err := NewStore("http://127.0.0.1:1", "service-key", "", zerolog.Nop())
	require.NoError(t, err)

	_, err = store.FetchBookings(context.Background(), model.BookingFilter{})
	assert.ErrorIs(t, err, booking.ErrStoreUnavailable)
}

func TestInsertBooking_RetryWithIDIsOneRow(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()
	req := model.BookingRequest{
		ID: "fixed-id", UserID: "u1", Date: "2025-03-04", StartTime: "3:00 PM",
		DurationMinutes: 30, TimeSlots: []string{"3:00 PM"}, Services: []string{"Lip"},
	}

	first, err := store.InsertBooking(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", first.ID)
	assert.Contains(t, fake.prefer, "merge-duplicates")

	_, err = store.InsertBooking(ctx, req)
	require.NoError(t, err)
	assert.Len(t, fake.rows, 1)
}

func TestImportBooking(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()
	b := model.Booking{
		ID: "from-sqlite", UserID: "u2", Date: "2025-03-05", StartTime: "1:00 PM",
		DurationMinutes: 30, TimeSlots: []string{"1:00 PM"},
		CreatedAt: time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC),
	}

	require.NoError(t, store.ImportBooking(ctx, b))
	require.NoError(t, store.ImportBooking(ctx, b))
	require.Len(t, fake.rows, 1)
	assert.Equal(t, "from-sqlite", fake.rows[0].ID)
	assert.Equal(t, b.CreatedAt, fake.rows[0].CreatedAt)

	err := store.ImportBooking(ctx, model.Booking{UserID: "u2"})
	assert.True(t, model.IsValidationError(err))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		unavailable bool
	}{
		{"transport", &url.Error{Op: "Post", URL: "http://x", Err: errors.New("connection refused")}, true},
		{"connection exception", errors.New("(08006) connection failure"), true},
		{"pool timeout", errors.New("(PGRST003) timed out acquiring connection"), true},
		{"proxy page", errors.New("error parsing error response: invalid character '<'"), true},
		{"check violation", errors.New("(23514) new row violates check constraint"), false},
		{"bad body", errors.New("(PGRST102) bad body"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.unavailable, errors.Is(classify(tt.err), booking.ErrStoreUnavailable))
		})
	}
}

func TestCanceledContext(t *testing.T) {
	store, fake := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.FetchBookings(ctx, model.BookingFilter{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fake.queries)
}

func TestProfiles(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, ok, err := store.Profile(ctx, "user_1")
	require.NoError(t, err)
	assert.False(t, ok)

	want := access.Profile{UserID: "user_1", Name: "Ann", Phone: "+12015550100"}
	require.NoError(t, store.SaveProfile(ctx, want))

	got, ok, err := store.Profile(ctx, "user_1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
}
