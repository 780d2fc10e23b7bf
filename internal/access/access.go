// Package access resolves who is booking and whether they may see everyone's bookings.
package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Identity is the caller as seen by the booking flow.
type Identity struct {
	UserID     string
	Phone      string
	Privileged bool
}

// Profile is the contact record kept per user.
type Profile struct {
	UserID string `json:"id"`
	Name   string `json:"name"`
	Phone  string `json:"phone_number"`
}

// ProfileStore persists profiles.
type ProfileStore interface {
	SaveProfile(ctx context.Context, p Profile) error
	// Profile returns ok=false when the user never shared contact details.
	Profile(ctx context.Context, userID string) (Profile, bool, error)
}

// Service decides privilege from a static phone allow-list.
type Service struct {
	adminPhones map[string]struct{}
	profiles    ProfileStore
	logger      zerolog.Logger
}

// NewService builds the allow-list. Entries that are not valid phone numbers are skipped.
func NewService(adminPhones []string, profiles ProfileStore, logger zerolog.Logger) *Service {
	logger = logger.With().Str("component", "access").Logger()
	set := make(map[string]struct{}, len(adminPhones))
	for _, raw := range adminPhones {
		p, ok := NormalizePhone(raw)
		if !ok {
			logger.Warn().Str("phone", raw).Msg("ignoring invalid admin phone")
			continue
		}
		set[digitsKey(p)] = struct{}{}
	}
	if profiles == nil {
		profiles = NewMemoryProfiles()
	}
	return &Service{adminPhones: set, profiles: profiles, logger: logger}
}

// IsPrivileged reports whether phone is on the allow-list.
func (s *Service) IsPrivileged(phone string) bool {
	p, ok := NormalizePhone(phone)
	if !ok {
		return false
	}
	_, found := s.adminPhones[digitsKey(p)]
	return found
}

// Identify builds the identity for userID from its stored profile.
func (s *Service) Identify(ctx context.Context, userID string) (Identity, error) {
	p, ok, err := s.profiles.Profile(ctx, userID)
	if err != nil {
		return Identity{}, fmt.Errorf("load profile %s: %w", userID, err)
	}
	id := Identity{UserID: userID}
	if ok {
		id.Phone = p.Phone
		id.Privileged = s.IsPrivileged(p.Phone)
	}
	return id, nil
}

// WithPhone completes an identity whose phone came from a trusted token.
func (s *Service) WithPhone(userID, phone string) Identity {
	return Identity{UserID: userID, Phone: phone, Privileged: s.IsPrivileged(phone)}
}

// Register stores the contact a user shared.
func (s *Service) Register(ctx context.Context, userID, name, rawPhone string) (Identity, error) {
	phone, ok := NormalizePhone(rawPhone)
	if !ok {
		return Identity{}, ErrInvalidPhone
	}
	if err := s.profiles.SaveProfile(ctx, Profile{UserID: userID, Name: name, Phone: phone}); err != nil {
		return Identity{}, err
	}
	id := s.WithPhone(userID, phone)
	s.logger.Info().Str("user_id", userID).Bool("privileged", id.Privileged).Msg("contact registered")
	return id, nil
}

// Profile returns the stored profile, if any.
func (s *Service) Profile(ctx context.Context, userID string) (Profile, bool, error) {
	return s.profiles.Profile(ctx, userID)
}

// Client returns the display name and phone for userID, empty when unknown.
func (s *Service) Client(ctx context.Context, userID string) (name, phone string) {
	p, ok, err := s.profiles.Profile(ctx, userID)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("profile lookup failed")
		return "", ""
	}
	if !ok {
		return "", ""
	}
	return p.Name, p.Phone
}

// RequirePrivileged returns an AccessDeniedError for non-privileged identities.
func (s *Service) RequirePrivileged(id Identity) error {
	if !id.Privileged {
		return &AccessDeniedError{Reason: "This is only available to the salon owner."}
	}
	return nil
}

var ErrInvalidPhone = errors.New("phone number must have 10 to 15 digits")

// AccessDeniedError is returned when user access is denied.
type AccessDeniedError struct {
	Reason string
}

func (e *AccessDeniedError) Error() string {
	return e.Reason
}

// IsAccessDenied checks if error is access denied.
func IsAccessDenied(err error) bool {
	var ade *AccessDeniedError
	return errors.As(err, &ade)
}

// NormalizePhone strips separators and keeps a leading '+'. It reports false
// unless 10 to 15 digits remain.
func NormalizePhone(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	repl := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "", "\t", "")
	s = repl.Replace(s)
	plus := strings.HasPrefix(s, "+")
	digits := filterDigits(s)
	if len(digits) < 10 || len(digits) > 15 {
		return "", false
	}
	if plus {
		return "+" + digits, true
	}
	return digits, true
}

// digitsKey drops the '+' so "+12015550100" and "12015550100" compare equal.
func digitsKey(phone string) string {
	return strings.TrimPrefix(phone, "+")
}

func filterDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// MemoryProfiles is a process-local ProfileStore.
type MemoryProfiles struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

func NewMemoryProfiles() *MemoryProfiles {
	return &MemoryProfiles{profiles: make(map[string]Profile)}
}

func (m *MemoryProfiles) SaveProfile(_ context.Context, p Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.UserID] = p
	return nil
}

func (m *MemoryProfiles) Profile(_ context.Context, userID string) (Profile, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[userID]
	return p, ok, nil
}
