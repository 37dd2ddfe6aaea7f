package checkout

import (
	"errors"
	"net/http"
)

// Category classifies a collaborator failure for the message shown to the user.
type Category string

const (
	CategoryAuth       Category = "auth"
	CategoryValidation Category = "validation"
	CategoryGeneric    Category = "generic"
)

// statusCoder is implemented by transport errors that carry an HTTP status.
type statusCoder interface {
	StatusCode() int
}

// Failure is an order-submission or shift-catalog failure. The cart is never
// touched when one occurs.
type Failure struct {
	Category Category `json:"category"`
	Message  string   `json:"message"`
	Err      error    `json:"-"`
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return string(f.Category) + ": " + f.Err.Error()
	}
	return string(f.Category) + ": " + f.Message
}

func (f *Failure) Unwrap() error { return f.Err }

// Categorize wraps err into a Failure with a user-facing message.
func Categorize(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		switch sc.StatusCode() {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &Failure{Category: CategoryAuth, Message: "your session expired, sign in again", Err: err}
		case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
			return &Failure{Category: CategoryValidation, Message: "the order was rejected, review it and try again", Err: err}
		}
	}
	return &Failure{Category: CategoryGeneric, Message: "could not create the order, try again", Err: err}
}
