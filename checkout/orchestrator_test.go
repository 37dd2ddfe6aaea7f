package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"optimeal/cart"
	"optimeal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticCatalog struct {
	shifts []string
	err    error
}

func (c staticCatalog) AvailableShifts(context.Context) ([]string, error) { return c.shifts, c.err }

type memory struct {
	mu    sync.Mutex
	saved map[string]string
}

func (m *memory) Load(_ context.Context, id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved[id]
}

func (m *memory) Save(_ context.Context, id, shift string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		m.saved = map[string]string{}
	}
	m.saved[id] = shift
}

type user string

func (u user) Current() string { return string(u) }

type submitFunc func(context.Context, Request) (SubmitResult, error)

func (f submitFunc) SubmitCheckout(ctx context.Context, r Request) (SubmitResult, error) {
	return f(ctx, r)
}

type httpErr int

func (e httpErr) Error() string   { return http.StatusText(int(e)) }
func (e httpErr) StatusCode() int { return int(e) }

var sides = []models.Side{{ID: "s1", Name: "Fries", IsActive: true}}

func newOrchestrator(t *testing.T, submit submitFunc) (*Orchestrator, *cart.Engine, *memory) {
	t.Helper()
	e := cart.NewEngine()
	mem := &memory{}
	o := NewOrchestrator(e, staticCatalog{shifts: []string{"all", "12:00-13:00", "15:00-16:00"}}, submit, mem, user("ana@example.com"))
	o.now = func() time.Time { return at("14:50") }
	require.NoError(t, o.Begin(context.Background()))
	return o, e, mem
}

func TestBeginPreselectsShift(t *testing.T) {
	o, _, _ := newOrchestrator(t, nil)
	st := o.Status()
	assert.Equal(t, []string{"12:00-13:00", "15:00-16:00"}, st.Shifts)
	assert.Equal(t, "12:00-13:00", st.SelectedShift)
	assert.Equal(t, PhaseIdle, st.Phase)
}

func TestBeginReusesRememberedShift(t *testing.T) {
	o, _, mem := newOrchestrator(t, nil)
	require.NoError(t, o.SelectShift(context.Background(), "15:00-16:00"))
	assert.Equal(t, "15:00-16:00", mem.saved["ana@example.com"])

	require.NoError(t, o.Begin(context.Background()))
	assert.Equal(t, "15:00-16:00", o.Status().SelectedShift)

	assert.ErrorIs(t, o.SelectShift(context.Background(), "all"), ErrUnknownShift)
}

func TestBeginShiftCatalogFailure(t *testing.T) {
	o := NewOrchestrator(cart.NewEngine(), staticCatalog{err: httpErr(http.StatusBadGateway)}, nil, &memory{}, user(""))
	err := o.Begin(context.Background())
	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, CategoryGeneric, f.Category)
	assert.Empty(t, o.Status().Shifts)
}

func TestSubmitRequiresSides(t *testing.T) {
	called := false
	o, e, _ := newOrchestrator(t, func(context.Context, Request) (SubmitResult, error) {
		called = true
		return SubmitResult{}, nil
	})
	e.Add(models.Product{ID: "1", Name: "Burger", Price: 100, Stock: 3, Sides: sides})
	e.Add(models.Product{ID: "2", Name: "Soda", Price: 50, Stock: 3})

	_, err := o.Submit(context.Background())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has(ProblemSideRequired))
	assert.Len(t, verr.Problems, 1)
	assert.Equal(t, "1", verr.Problems[0].Key)
	assert.False(t, called)
	assert.Equal(t, PhaseIdle, o.Status().Phase)
}

func TestSubmitRejectsEmptyCart(t *testing.T) {
	o, _, _ := newOrchestrator(t, nil)
	_, err := o.Submit(context.Background())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has(ProblemEmptyCart))
	assert.False(t, verr.Has(ProblemInvalidShift))
	assert.Equal(t, []Problem{verr.Problems[0]}, o.Status().Problems)
}

func TestValidateInvalidShift(t *testing.T) {
	s, _ := cart.Reduce(cart.Empty(), cart.Add{Product: models.Product{ID: "1", Price: 1, Stock: 1}})
	err := Validate(s, []string{"12:00-13:00"}, "15:00-16:00")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has(ProblemInvalidShift))

	assert.NoError(t, Validate(s, []string{"12:00-13:00"}, "12:00-13:00"))
	assert.Error(t, Validate(s, []string{"12:00-13:00"}, ""))
}

func TestValidateIgnoresInactiveSides(t *testing.T) {
	inactiveOnly, _ := cart.Reduce(cart.Empty(), cart.AddItem{Item: models.CartItem{
		ProductID: "2", Quantity: 1, Stock: 2, Price: 1,
		Sides: []models.Side{{ID: "old", Name: "Retired", IsActive: false}},
	}})
	assert.NoError(t, Validate(inactiveOnly, []string{"12:00-13:00"}, "12:00-13:00"))
}

func TestCategorize(t *testing.T) {
	assert.Equal(t, CategoryAuth, Categorize(httpErr(http.StatusForbidden)).Category)
	assert.Equal(t, CategoryValidation, Categorize(httpErr(http.StatusConflict)).Category)
	assert.Equal(t, CategoryGeneric, Categorize(httpErr(http.StatusInternalServerError)).Category)

	f := &Failure{Category: CategoryAuth, Message: "x"}
	assert.Same(t, f, Categorize(fmt.Errorf("wrapped: %w", f)))

	base := httpErr(http.StatusUnauthorized)
	assert.ErrorIs(t, Categorize(base), base)
}

func TestSubmitSuccessKeepsCart(t *testing.T) {
	var got Request
	o, e, _ := newOrchestrator(t, func(_ context.Context, r Request) (SubmitResult, error) {
		got = r
		return SubmitResult{Success: true, PaymentRedirectURL: "https://pay.example/abc"}, nil
	})
	e.AddItem(models.CartItem{ProductID: "1", Name: "Burger", Price: 100, Quantity: 2, Stock: 3, Sides: sides, SelectedSide: "s1", Clarification: "no onion"})
	e.Add(models.Product{ID: "2", Name: "Soda", Price: 50, Stock: 3})

	url, err := o.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/abc", url)

	assert.Equal(t, Request{
		Items: []RequestItem{
			{ProductID: "1", Quantity: 2, SideID: "s1", Notes: "no onion"},
			{ProductID: "2", Quantity: 1},
		},
		PickupTime: "2026-03-10T12:00:00Z",
		Shift:      "12:00-13:00",
	}, got)

	st := o.Status()
	assert.Equal(t, PhaseRedirected, st.Phase)
	assert.Equal(t, 2, e.State().Len())

	o.ConfirmPayment()
	assert.True(t, e.State().IsEmpty())
	assert.Equal(t, PhaseIdle, o.Status().Phase)
}

func TestSubmitFailureCategories(t *testing.T) {
	tests := []struct {
		name string
		res  SubmitResult
		err  error
		want Category
	}{
		{"expired session", SubmitResult{}, httpErr(http.StatusUnauthorized), CategoryAuth},
		{"server validation", SubmitResult{}, httpErr(http.StatusUnprocessableEntity), CategoryValidation},
		{"network", SubmitResult{}, errors.New("connection reset"), CategoryGeneric},
		{"unsuccessful answer", SubmitResult{Success: false, Message: "kitchen closed"}, nil, CategoryGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, e, _ := newOrchestrator(t, func(context.Context, Request) (SubmitResult, error) { return tt.res, tt.err })
			e.Add(models.Product{ID: "2", Name: "Soda", Price: 50, Stock: 3})
			before := e.State()

			_, err := o.Submit(context.Background())
			var f *Failure
			require.ErrorAs(t, err, &f)
			assert.Equal(t, tt.want, f.Category)
			assert.NotEmpty(t, f.Message)

			st := o.Status()
			assert.Equal(t, PhaseFailed, st.Phase)
			assert.True(t, e.State().Equal(before))
			assert.Equal(t, "12:00-13:00", st.SelectedShift)

			o.Dismiss()
			assert.Equal(t, PhaseIdle, o.Status().Phase)
		})
	}
}

func TestSubmitWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	o, e, _ := newOrchestrator(t, func(context.Context, Request) (SubmitResult, error) {
		close(entered)
		<-release
		return SubmitResult{Success: true, PaymentRedirectURL: "https://pay.example/1"}, nil
	})
	e.Add(models.Product{ID: "2", Name: "Soda", Price: 50, Stock: 3})

	done := make(chan error, 1)
	go func() {
		_, err := o.Submit(context.Background())
		done <- err
	}()
	<-entered
	assert.Equal(t, PhaseSubmitting, o.Status().Phase)

	_, err := o.Submit(context.Background())
	assert.ErrorIs(t, err, ErrSubmissionInFlight)

	close(release)
	require.NoError(t, <-done)
}
