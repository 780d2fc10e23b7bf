package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"salonbook/internal/booking"
	"salonbook/internal/model"
	"salonbook/internal/slots"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) FetchBookings(ctx context.Context, filter model.BookingFilter) ([]model.Booking, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Booking), args.Error(1)
}

func (m *mockStore) InsertBooking(ctx context.Context, req model.BookingRequest) (model.Booking, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(model.Booking), args.Error(1)
}

func (m *mockStore) ImportBooking(ctx context.Context, b model.Booking) error {
	return m.Called(ctx, b).Error(0)
}

func forUser(userID string) any {
	return mock.MatchedBy(func(req model.BookingRequest) bool {
		return req.UserID == userID && req.ID != ""
	})
}

var errDown = fmt.Errorf("select bookings: %w", booking.ErrStoreUnavailable)

func TestFailoverStore(t *testing.T) {
	primary := new(mockStore)
	fallback := new(mockStore)
	repo := NewFailoverStore(primary, fallback, zerolog.Nop())
	repo.synced.Store(repo.dirty.Load())
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		filter := model.BookingFilter{Date: "2025-03-04"}
		want := []model.Booking{{ID: "b1"}}
		primary.On("FetchBookings", ctx, filter).Return(want, nil).Once()

		got, err := repo.FetchBookings(ctx, filter)
		assert.NoError(t, err)
		assert.Equal(t, want, got)
		assert.False(t, repo.Degraded())
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryUnavailableFallbackSuccess", func(t *testing.T) {
		filter := model.BookingFilter{UserID: "u2"}
		want := []model.Booking{{ID: "b2"}}
		primary.On("FetchBookings", ctx, filter).Return(nil, errDown).Once()
		fallback.On("FetchBookings", ctx, filter).Return(want, nil).Once()

		got, err := repo.FetchBookings(ctx, filter)
		assert.NoError(t, err)
		assert.Equal(t, want, got)
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("StaysOnFallbackUntilRecoveryWindow", func(t *testing.T) {
		fallback.On("InsertBooking", ctx, forUser("u3")).Return(model.Booking{ID: "fb"}, nil).Once()

		got, err := repo.InsertBooking(ctx, model.BookingRequest{UserID: "u3", Date: "2025-03-04"})
		assert.NoError(t, err)
		assert.Equal(t, "fb", got.ID)
		primary.AssertNotCalled(t, "InsertBooking", mock.Anything, mock.Anything)
		fallback.AssertExpectations(t)
		assert.True(t, repo.pending())
	})

	t.Run("RecoveryReplaysFallback", func(t *testing.T) {
		repo.isDown.Store(true)
		repo.lastCheck = time.Now().Add(-2 * time.Minute)

		held := model.Booking{ID: "fb", UserID: "u3", Date: "2025-03-04", TimeSlots: []string{"1:00 PM"}}
		stored := model.Booking{ID: "p", UserID: "u4", Date: "2025-03-05"}
		primary.On("InsertBooking", ctx, forUser("u4")).Return(stored, nil).Once()
		primary.On("FetchBookings", ctx, model.BookingFilter{}).Return([]model.Booking{stored}, nil).Once()
		fallback.On("FetchBookings", ctx, model.BookingFilter{}).Return([]model.Booking{held}, nil).Once()
		primary.On("ImportBooking", ctx, held).Return(nil).Once()
		fallback.On("ImportBooking", ctx, stored).Return(nil)

		got, err := repo.InsertBooking(ctx, model.BookingRequest{UserID: "u4", Date: "2025-03-05"})
		assert.NoError(t, err)
		assert.Equal(t, "p", got.ID)
		assert.False(t, repo.isDown.Load())
		assert.False(t, repo.pending())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("ConflictIsNotAnOutage", func(t *testing.T) {
		primary.On("InsertBooking", ctx, forUser("u5")).Return(model.Booking{}, slots.ErrSlotConflict).Once()

		_, err := repo.InsertBooking(ctx, model.BookingRequest{UserID: "u5", Date: "2025-03-05"})
		assert.ErrorIs(t, err, slots.ErrSlotConflict)
		assert.False(t, repo.Degraded())
		fallback.AssertNotCalled(t, "InsertBooking", mock.Anything, forUser("u5"))
	})

	t.Run("RejectionIsNotAnOutage", func(t *testing.T) {
		rejected := errors.New("(23514) new row violates check constraint")
		primary.On("InsertBooking", ctx, forUser("u6")).Return(model.Booking{}, rejected).Once()

		_, err := repo.InsertBooking(ctx, model.BookingRequest{UserID: "u6", Date: "2025-03-05"})
		assert.ErrorIs(t, err, rejected)
		assert.False(t, repo.Degraded())
		fallback.AssertNotCalled(t, "InsertBooking", mock.Anything, forUser("u6"))
	})
}

// memReplica is an in-memory Replica that can be switched off.
type memReplica struct {
	mu       sync.Mutex
	byID     map[string]model.Booking
	down     bool
	commitUp bool // commit the insert, then report an outage
}

func newMemReplica() *memReplica {
	return &memReplica{byID: make(map[string]model.Booking)}
}

func (m *memReplica) setDown(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.down = down
}

func (m *memReplica) FetchBookings(_ context.Context, filter model.BookingFilter) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return nil, errDown
	}
	var out []model.Booking
	for _, b := range m.byID {
		if filter.Matches(&b) {
			out = append(out, b)
		}
	}
	booking.SortNewestFirst(out)
	return out, nil
}

func (m *memReplica) InsertBooking(_ context.Context, req model.BookingRequest) (model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return model.Booking{}, errDown
	}
	if b, ok := m.byID[req.ID]; ok {
		return b, nil
	}
	var day []model.Booking
	for _, b := range m.byID {
		day = append(day, b)
	}
	taken := slots.OccupancyForDate(req.Date, day)
	for _, label := range req.TimeSlots {
		if taken.Contains(label) {
			return model.Booking{}, slots.ErrSlotConflict
		}
	}
	b := model.Booking{
		ID: req.ID, UserID: req.UserID, Date: req.Date, StartTime: req.StartTime,
		DurationMinutes: req.DurationMinutes, TimeSlots: req.TimeSlots,
	}
	m.byID[b.ID] = b
	if m.commitUp {
		m.down = true
		return model.Booking{}, errDown
	}
	return b, nil
}

func (m *memReplica) ImportBooking(_ context.Context, b model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return errDown
	}
	m.byID[b.ID] = b
	return nil
}

func (m *memReplica) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

func slotRequest(user, date string, labels ...string) model.BookingRequest {
	return model.BookingRequest{
		UserID: user, Date: date, StartTime: labels[0],
		DurationMinutes: 30 * len(labels), TimeSlots: labels,
	}
}

func TestFailoverStore_OutageBookingSurvivesRecovery(t *testing.T) {
	primary, fallback := newMemReplica(), newMemReplica()
	repo := NewFailoverStore(primary, fallback, zerolog.Nop())
	ctx := context.Background()

	before, err := repo.InsertBooking(ctx, slotRequest("u1", "2025-03-04", "12:00 PM"))
	require.NoError(t, err)
	assert.Equal(t, 1, fallback.len(), "primary writes are copied to the fallback")

	primary.setDown(true)
	during, err := repo.InsertBooking(ctx, slotRequest("u2", "2025-03-04", "3:00 PM", "3:30 PM"))
	require.NoError(t, err)
	assert.True(t, repo.Degraded())

	_, err = repo.InsertBooking(ctx, slotRequest("u3", "2025-03-04", "12:00 PM"))
	assert.ErrorIs(t, err, slots.ErrSlotConflict, "fallback knows about bookings made before the outage")

	primary.setDown(false)
	repo.lastCheck = time.Now().Add(-2 * recoveryInterval)

	day, err := repo.FetchBookings(ctx, model.BookingFilter{Date: "2025-03-04"})
	require.NoError(t, err)
	assert.False(t, repo.Degraded())
	assert.ElementsMatch(t, []string{before.ID, during.ID}, ids(day))

	assert.Equal(t, 2, primary.len(), "outage booking was replayed")
	assert.False(t, repo.pending())

	_, err = repo.InsertBooking(ctx, slotRequest("u4", "2025-03-04", "3:30 PM"))
	assert.ErrorIs(t, err, slots.ErrSlotConflict, "primary now enforces the replayed booking")
}

func TestFailoverStore_MergesUntilReplayed(t *testing.T) {
	primary, fallback := newMemReplica(), newMemReplica()
	require.NoError(t, fallback.ImportBooking(context.Background(), model.Booking{
		ID: "held", UserID: "u1", Date: "2025-03-04", TimeSlots: []string{"2:00 PM"},
	}))
	repo := NewFailoverStore(&importFails{memReplica: primary}, fallback, zerolog.Nop())

	day, err := repo.FetchBookings(context.Background(), model.BookingFilter{Date: "2025-03-04"})
	require.NoError(t, err)
	assert.Equal(t, []string{"held"}, ids(day), "held booking is visible while replay keeps failing")
	assert.True(t, repo.pending())
	assert.Zero(t, primary.len())
}

func TestFailoverStore_AmbiguousCommitIsOneBooking(t *testing.T) {
	primary, fallback := newMemReplica(), newMemReplica()
	repo := NewFailoverStore(primary, fallback, zerolog.Nop())
	ctx := context.Background()

	primary.commitUp = true
	b, err := repo.InsertBooking(ctx, slotRequest("u1", "2025-03-04", "5:00 PM"))
	require.NoError(t, err)
	assert.True(t, repo.Degraded())
	assert.Equal(t, 1, primary.len(), "primary committed before failing")

	primary.commitUp = false
	primary.setDown(false)
	repo.lastCheck = time.Now().Add(-2 * recoveryInterval)

	all, err := repo.FetchBookings(ctx, model.BookingFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, ids(all))
	assert.Equal(t, 1, primary.len())
}

// importFails accepts everything but imports, as a primary that rejects
// replayed rows would.
type importFails struct {
	*memReplica
}

func (f *importFails) ImportBooking(context.Context, model.Booking) error {
	return errors.New("(42501) permission denied")
}

func ids(list []model.Booking) []string {
	out := make([]string, len(list))
	for i, b := range list {
		out[i] = b.ID
	}
	return out
}
