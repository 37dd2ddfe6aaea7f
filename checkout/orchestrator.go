package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"optimeal/cart"
)

// Phase of a checkout session.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseValidating
	PhaseSubmitting
	PhaseRedirected
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseValidating:
		return "validating"
	case PhaseSubmitting:
		return "submitting"
	case PhaseRedirected:
		return "redirected_to_payment"
	case PhaseFailed:
		return "failed"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

var (
	ErrSubmissionInFlight = errors.New("an order submission is already in progress")
	ErrUnknownShift       = errors.New("shift is not offered")
)

// Submitter is the order-submission collaborator.
type Submitter interface {
	SubmitCheckout(ctx context.Context, req Request) (SubmitResult, error)
}

// ShiftCatalog is the shift-catalog collaborator.
type ShiftCatalog interface {
	AvailableShifts(ctx context.Context) ([]string, error)
}

// ShiftMemory remembers the last chosen shift per identity.
type ShiftMemory interface {
	Load(ctx context.Context, identity string) string
	Save(ctx context.Context, identity, shift string)
}

// Cart is the part of the cart engine checkout needs.
type Cart interface {
	State() cart.State
	Clear() bool
}

// Identity yields the signed-in email, "" when signed out.
type Identity interface {
	Current() string
}

// Status is a point-in-time view of the session for the UI.
type Status struct {
	Phase         Phase     `json:"phase"`
	Shifts        []string  `json:"shifts"`
	SelectedShift string    `json:"selectedShift"`
	RedirectURL   string    `json:"redirectUrl,omitempty"`
	Failure       *Failure  `json:"failure,omitempty"`
	Problems      []Problem `json:"problems,omitempty"`
}

// Orchestrator drives Idle -> Validating -> Submitting -> Redirected|Failed.
// It never clears the cart on its own; only ConfirmPayment does.
type Orchestrator struct {
	cart      Cart
	catalog   ShiftCatalog
	submitter Submitter
	memory    ShiftMemory
	identity  Identity
	now       func() time.Time

	mu       sync.Mutex
	phase    Phase
	shifts   []string
	selected string
	redirect string
	failure  *Failure
	problems []Problem
}

func NewOrchestrator(c Cart, catalog ShiftCatalog, submitter Submitter, memory ShiftMemory, identity Identity) *Orchestrator {
	return &Orchestrator{
		cart:      c,
		catalog:   catalog,
		submitter: submitter,
		memory:    memory,
		identity:  identity,
		now:       time.Now,
	}
}

// Begin starts a checkout session: fetches the shifts once and preselects one.
func (o *Orchestrator) Begin(ctx context.Context) error {
	raw, err := o.catalog.AvailableShifts(ctx)
	if err != nil {
		f := Categorize(err)
		f.Message = "could not load pickup shifts"
		o.mu.Lock()
		o.shifts, o.selected = nil, ""
		o.mu.Unlock()
		log.Printf("[Checkout] shifts: %v", err)
		return f
	}
	shifts := FilterShifts(raw)
	stored := o.memory.Load(ctx, o.identity.Current())

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.phase == PhaseSubmitting {
		return ErrSubmissionInFlight
	}
	o.shifts = shifts
	o.selected = AutoSelectShift(shifts, stored, o.now())
	o.phase = PhaseIdle
	o.redirect, o.failure, o.problems = "", nil, nil
	return nil
}

// SelectShift changes the pickup shift and remembers it.
func (o *Orchestrator) SelectShift(ctx context.Context, shift string) error {
	o.mu.Lock()
	if !slices.Contains(o.shifts, shift) {
		o.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownShift, shift)
	}
	o.selected = shift
	o.mu.Unlock()

	o.memory.Save(ctx, o.identity.Current(), shift)
	return nil
}

// Check runs validation without changing the phase.
func (o *Orchestrator) Check() error {
	o.mu.Lock()
	shifts, selected := o.shifts, o.selected
	o.mu.Unlock()
	return Validate(o.cart.State(), shifts, selected)
}

// Submit validates and sends the order. On success it returns the payment
// redirect. Validation problems come back as *ValidationError with the
// session back in Idle; collaborator failures as *Failure with the session in
// Failed. The cart is left untouched in every case.
func (o *Orchestrator) Submit(ctx context.Context) (string, error) {
	o.mu.Lock()
	if o.phase == PhaseSubmitting || o.phase == PhaseValidating {
		o.mu.Unlock()
		return "", ErrSubmissionInFlight
	}
	o.phase = PhaseValidating
	o.failure, o.problems, o.redirect = nil, nil, ""
	shifts, selected := o.shifts, o.selected
	o.mu.Unlock()

	state := o.cart.State()
	if err := Validate(state, shifts, selected); err != nil {
		var verr *ValidationError
		errors.As(err, &verr)
		o.mu.Lock()
		o.phase = PhaseIdle
		o.problems = verr.Problems
		o.mu.Unlock()
		return "", err
	}

	shift, err := ParseShift(selected)
	if err != nil {
		return "", o.fail(Categorize(err))
	}
	req := BuildRequest(state, shift, o.now())

	o.mu.Lock()
	o.phase = PhaseSubmitting
	o.mu.Unlock()

	res, err := o.submitter.SubmitCheckout(ctx, req)
	if err != nil {
		log.Printf("[Checkout] submit failed: %v", err)
		return "", o.fail(Categorize(err))
	}
	if !res.Success || res.PaymentRedirectURL == "" {
		msg := res.Message
		if msg == "" {
			msg = "could not create the order, try again"
		}
		return "", o.fail(&Failure{Category: CategoryGeneric, Message: msg})
	}

	o.mu.Lock()
	o.phase = PhaseRedirected
	o.redirect = res.PaymentRedirectURL
	o.mu.Unlock()
	log.Printf("[Checkout] order submitted lines=%d shift=%s", len(req.Items), req.Shift)
	return res.PaymentRedirectURL, nil
}

func (o *Orchestrator) fail(f *Failure) error {
	o.mu.Lock()
	o.phase = PhaseFailed
	o.failure = f
	o.mu.Unlock()
	return f
}

// Dismiss returns a failed session to Idle with cart and selection intact.
func (o *Orchestrator) Dismiss() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.phase == PhaseFailed {
		o.phase = PhaseIdle
		o.failure = nil
	}
}

// ConfirmPayment is the payment-success signal: the cart is cleared and the
// session ends.
func (o *Orchestrator) ConfirmPayment() {
	o.cart.Clear()
	o.mu.Lock()
	o.phase = PhaseIdle
	o.redirect, o.failure, o.problems = "", nil, nil
	o.mu.Unlock()
	log.Println("[Checkout] payment confirmed, cart cleared")
}

// Status returns the session state.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Status{
		Phase:         o.phase,
		Shifts:        slices.Clone(o.shifts),
		SelectedShift: o.selected,
		RedirectURL:   o.redirect,
		Failure:       o.failure,
		Problems:      slices.Clone(o.problems),
	}
}
