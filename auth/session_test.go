package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func idToken(t *testing.T, email string, exp time.Time) string {
	t.Helper()
	claims := Claims{
		Email:            email,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("whatever"))
	require.NoError(t, err)
	return tok
}

func TestParseIdentity(t *testing.T) {
	now := time.Now()

	email, err := ParseIdentity(idToken(t, " Ana@Example.com", now.Add(time.Hour)), now)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", email)

	_, err = ParseIdentity(idToken(t, "ana@example.com", now.Add(-time.Minute)), now)
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, err = ParseIdentity(idToken(t, "", now.Add(time.Hour)), now)
	assert.ErrorIs(t, err, ErrMissingEmail)

	_, err = ParseIdentity("not-a-jwt", now)
	assert.Error(t, err)
}

func TestSessionNotifiesSubscribers(t *testing.T) {
	s := NewSession()
	var seen []string
	unsubscribe := s.Subscribe(func(id string) { seen = append(seen, id) })

	require.NoError(t, s.SignIn(Tokens{AccessToken: "at", IDToken: idToken(t, "ana@example.com", time.Now().Add(time.Hour))}))
	assert.Equal(t, "ana@example.com", s.Current())
	assert.Equal(t, "at", s.AccessToken())

	assert.Error(t, s.SignIn(Tokens{IDToken: "garbage"}))
	assert.Equal(t, "ana@example.com", s.Current())

	s.SignOut()
	assert.Equal(t, "", s.Current())
	assert.Equal(t, "", s.AccessToken())

	unsubscribe()
	s.SignOut()
	assert.Equal(t, []string{"ana@example.com", ""}, seen)
}
