package checkout

import (
	"fmt"
	"slices"
	"strings"

	"optimeal/cart"
)

// ProblemKind names a reason checkout is blocked.
type ProblemKind string

const (
	ProblemEmptyCart    ProblemKind = "empty_cart"
	ProblemSideRequired ProblemKind = "side_required"
	ProblemInvalidShift ProblemKind = "invalid_shift"
)

// Problem is one blocking condition; Key names the cart line when the
// problem belongs to one.
type Problem struct {
	Kind    ProblemKind `json:"kind"`
	Key     string      `json:"key,omitempty"`
	Message string      `json:"message"`
}

// ValidationError lists everything that keeps the order from being submitted.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, p.Message)
	}
	return "checkout blocked: " + strings.Join(msgs, "; ")
}

// Has reports whether a problem of kind k is present.
func (e *ValidationError) Has(k ProblemKind) bool {
	return slices.ContainsFunc(e.Problems, func(p Problem) bool { return p.Kind == k })
}

// Validate checks the cart and the selected shift against the offered shifts.
// It returns nil or a *ValidationError.
func Validate(state cart.State, shifts []string, selected string) error {
	var problems []Problem
	if state.IsEmpty() {
		problems = append(problems, Problem{Kind: ProblemEmptyCart, Message: "the cart is empty"})
	}
	for _, key := range state.Keys() {
		it, _ := state.Item(key)
		if it.HasActiveSides() && it.SelectedSide == "" {
			problems = append(problems, Problem{
				Kind: ProblemSideRequired, Key: key,
				Message: fmt.Sprintf("select a side for %s", it.Name),
			})
		}
	}
	if selected == "" || !slices.Contains(shifts, selected) {
		problems = append(problems, Problem{Kind: ProblemInvalidShift, Message: "select a valid pickup shift"})
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
