// Package booking drives a customer from service selection through date and
// time choice to a persisted appointment.
package booking

import (
	"sync"
	"time"

	"salonbook/internal/catalog"
	"salonbook/internal/selection"
	"salonbook/internal/slots"
)

// State is the position of a session in the booking flow.
type State string

const (
	StateNoDateSelected State = "no_date_selected"
	StateDateSelected   State = "date_selected"
	StateTimeChosen     State = "time_chosen"
)

// Draft is the appointment being assembled.
type Draft struct {
	Date     string
	Start    slots.TimeSlot
	Reserved []slots.TimeSlot
}

// Session is one customer's booking flow.
type Session struct {
	UserID    string
	State     State
	Selection *selection.Selection
	Draft     Draft
	StartedAt time.Time
	UpdatedAt time.Time

	// op serializes flow steps and is held across store calls.
	// mu guards the fields above and is never held during I/O.
	op sync.Mutex
	mu sync.Mutex
}

// NewSession creates a session with an empty selection.
func NewSession(userID string, c *catalog.Catalog) *Session {
	now := time.Now()
	return &Session{
		UserID:    userID,
		State:     StateNoDateSelected,
		Selection: selection.New(c),
		StartedAt: now,
		UpdatedAt: now,
	}
}

// View is a copy of the session safe to read without locking.
type View struct {
	UserID   string
	State    State
	Date     string
	Start    slots.TimeSlot
	Reserved []slots.TimeSlot
	Services []string
	Totals   selection.Totals
}

// Snapshot copies the session under its lock.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	reserved := make([]slots.TimeSlot, len(s.Draft.Reserved))
	copy(reserved, s.Draft.Reserved)
	return View{
		UserID:   s.UserID,
		State:    s.State,
		Date:     s.Draft.Date,
		Start:    s.Draft.Start,
		Reserved: reserved,
		Services: s.Selection.Selected(),
		Totals:   s.Selection.Totals(),
	}
}

// IsExpired checks if session has been idle longer than timeout.
func (s *Session) IsExpired(timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.UpdatedAt) > timeout
}

func (s *Session) touch() {
	s.UpdatedAt = time.Now()
}

// SessionStore keeps sessions in memory keyed by user ID.
type SessionStore struct {
	sessions map[string]*Session
	catalog  *catalog.Catalog
	mu       sync.RWMutex
	timeout  time.Duration
}

// NewSessionStore creates a new session store.
func NewSessionStore(c *catalog.Catalog, timeout time.Duration) *SessionStore {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &SessionStore{
		sessions: make(map[string]*Session),
		catalog:  c,
		timeout:  timeout,
	}
}

// Get returns a session for user or nil.
func (ss *SessionStore) Get(userID string) *Session {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return ss.sessions[userID]
}

// GetOrCreate returns the live session or starts a new one.
func (ss *SessionStore) GetOrCreate(userID string) *Session {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	session, ok := ss.sessions[userID]
	if ok && !session.IsExpired(ss.timeout) {
		return session
	}

	session = NewSession(userID, ss.catalog)
	ss.sessions[userID] = session
	return session
}

// Delete removes a session.
func (ss *SessionStore) Delete(userID string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	delete(ss.sessions, userID)
}

// Len returns the number of sessions held.
func (ss *SessionStore) Len() int {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return len(ss.sessions)
}

// Cleanup removes expired sessions.
func (ss *SessionStore) Cleanup() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	removed := 0
	for userID, session := range ss.sessions {
		if session.IsExpired(ss.timeout) {
			delete(ss.sessions, userID)
			removed++
		}
	}
	return removed
}

// FSM holds the allowed state transitions.
type FSM struct {
	transitions map[State][]State
}

// NewFSM creates the booking flow transition table.
func NewFSM() *FSM {
	return &FSM{
		transitions: map[State][]State{
			StateNoDateSelected: {StateDateSelected},
			StateDateSelected:   {StateDateSelected, StateTimeChosen, StateNoDateSelected},
			StateTimeChosen:     {StateTimeChosen, StateDateSelected, StateNoDateSelected},
		},
	}
}

// CanTransition checks if transition is allowed.
func (f *FSM) CanTransition(from, to State) bool {
	for _, s := range f.transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// transitionLocked moves the session if allowed; the caller holds s.mu.
func (f *FSM) transitionLocked(s *Session, to State) bool {
	if !f.CanTransition(s.State, to) {
		return false
	}
	s.State = to
	s.touch()
	return true
}
