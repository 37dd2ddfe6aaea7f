package auth

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingEmail = errors.New("id token has no email claim")
	ErrTokenExpired = errors.New("id token expired")
)

// Claims are the id token fields the client cares about. The signature is
// checked by the API, never here.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Tokens is what the login endpoint hands back to the client.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	IDToken      string `json:"idToken"`
}

// Session tracks the signed-in identity and tells subscribers when it
// changes.
type Session struct {
	mu        sync.RWMutex
	email     string
	tokens    Tokens
	listeners map[int]func(identity string)
	nextID    int
	now       func() time.Time
}

func NewSession() *Session {
	return &Session{listeners: make(map[int]func(string)), now: time.Now}
}

// ParseIdentity extracts the email claim from an id token without verifying
// its signature.
func ParseIdentity(idToken string, now time.Time) (string, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return "", fmt.Errorf("parse id token: %w", err)
	}
	if claims.ExpiresAt != nil && !claims.ExpiresAt.Time.After(now) {
		return "", ErrTokenExpired
	}
	email := strings.ToLower(strings.TrimSpace(claims.Email))
	if email == "" {
		return "", ErrMissingEmail
	}
	return email, nil
}

// SignIn adopts the identity carried by t.IDToken.
func (s *Session) SignIn(t Tokens) error {
	email, err := ParseIdentity(t.IDToken, s.now())
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.email = email
	s.tokens = t
	s.mu.Unlock()
	log.Printf("[Session] signed in")
	s.notify(email)
	return nil
}

// SignOut drops the identity.
func (s *Session) SignOut() {
	s.mu.Lock()
	s.email = ""
	s.tokens = Tokens{}
	s.mu.Unlock()
	log.Printf("[Session] signed out")
	s.notify("")
}

// Current returns the signed-in email, or "" when signed out.
func (s *Session) Current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.email
}

// AccessToken returns the bearer token for API calls.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens.AccessToken
}

// Subscribe registers fn for identity changes and returns its remover.
func (s *Session) Subscribe(fn func(identity string)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Session) notify(identity string) {
	s.mu.RLock()
	fns := make([]func(string), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()
	for _, fn := range fns {
		fn(identity)
	}
}
