package access

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"+1 (201) 555-0100", "+12015550100", true},
		{"201.555.0100", "2015550100", true},
		{"  +12015550100 ", "+12015550100", true},
		{"555-0100", "", false},
		{"+1234567890123456", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := NormalizePhone(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsPrivileged(t *testing.T) {
	svc := NewService([]string{"+1 201 555 0100", "not a phone"}, nil, zerolog.Nop())

	assert.True(t, svc.IsPrivileged("+12015550100"))
	assert.True(t, svc.IsPrivileged("12015550100"), "plus sign is not significant")
	assert.False(t, svc.IsPrivileged("+12015550101"))
	assert.False(t, svc.IsPrivileged(""))
	assert.Len(t, svc.adminPhones, 1)
}

func TestRegisterAndIdentify(t *testing.T) {
	svc := NewService([]string{"+12015550100"}, NewMemoryProfiles(), zerolog.Nop())
	ctx := context.Background()

	id, err := svc.Identify(ctx, "tg:1")
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "tg:1"}, id)

	_, err = svc.Register(ctx, "tg:1", "Ann", "12")
	assert.ErrorIs(t, err, ErrInvalidPhone)

	id, err = svc.Register(ctx, "tg:1", "Ann", "+1 (201) 555-0100")
	require.NoError(t, err)
	assert.True(t, id.Privileged)
	assert.Equal(t, "+12015550100", id.Phone)

	id, err = svc.Identify(ctx, "tg:1")
	require.NoError(t, err)
	assert.True(t, id.Privileged)

	p, ok, err := svc.Profile(ctx, "tg:1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Ann", p.Name)

	name, phone := svc.Client(ctx, "tg:1")
	assert.Equal(t, "Ann", name)
	assert.Equal(t, "+12015550100", phone)

	name, phone = svc.Client(ctx, "tg:2")
	assert.Empty(t, name)
	assert.Empty(t, phone)
}

func TestRequirePrivileged(t *testing.T) {
	svc := NewService(nil, nil, zerolog.Nop())

	err := svc.RequirePrivileged(Identity{UserID: "u1"})
	assert.True(t, IsAccessDenied(err))
	assert.NoError(t, svc.RequirePrivileged(Identity{UserID: "u1", Privileged: true}))
	assert.False(t, IsAccessDenied(ErrInvalidPhone))
}

func TestTokenVerifier(t *testing.T) {
	now := time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)
	v := NewTokenVerifier("secret")
	v.now = func() time.Time { return now }

	token, err := v.Issue("user_123", "+12015550100", time.Hour)
	require.NoError(t, err)

	userID, phone, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user_123", userID)
	assert.Equal(t, "+12015550100", phone)

	t.Run("wrong secret", func(t *testing.T) {
		_, _, err := NewTokenVerifier("other").Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		later := NewTokenVerifier("secret")
		later.now = func() time.Time { return now.Add(2 * time.Hour) }
		_, _, err := later.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("user_id claim", func(t *testing.T) {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"user_id": "legacy",
			"exp":     now.Add(time.Hour).Unix(),
		}).SignedString([]byte("secret"))
		require.NoError(t, err)

		userID, phone, err := v.Verify(raw)
		require.NoError(t, err)
		assert.Equal(t, "legacy", userID)
		assert.Empty(t, phone)
	})

	t.Run("no subject", func(t *testing.T) {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"exp": now.Add(time.Hour).Unix(),
		}).SignedString([]byte("secret"))
		require.NoError(t, err)

		_, _, err = v.Verify(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("none alg", func(t *testing.T) {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "x"}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, _, err = v.Verify(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
