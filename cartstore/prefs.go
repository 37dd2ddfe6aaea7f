package cartstore

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"
)

// ShiftPrefix namespaces the remembered pickup shift per identity.
const ShiftPrefix = "optimeal.shift.v1:"

// ShiftPreference remembers the last pickup shift chosen at checkout.
type ShiftPreference struct {
	backend Backend
	timeout time.Duration
}

func NewShiftPreference(b Backend) *ShiftPreference {
	return &ShiftPreference{backend: b, timeout: 3 * time.Second}
}

func shiftKey(identity string) string {
	return ShiftPrefix + strings.TrimPrefix(Namespace(identity), KeyPrefix)
}

// Load returns the remembered shift, or "" when none is stored.
func (p *ShiftPreference) Load(ctx context.Context, identity string) string {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	v, err := p.backend.Get(ctx, shiftKey(identity))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Printf("[ShiftPreference] load: %v", err)
		}
		return ""
	}
	return string(v)
}

// Save remembers shift; failures are only logged.
func (p *ShiftPreference) Save(ctx context.Context, identity, shift string) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.backend.Set(ctx, shiftKey(identity), []byte(shift)); err != nil {
		log.Printf("[ShiftPreference] save: %v", err)
	}
}
