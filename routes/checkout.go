package routes

import (
	"errors"
	"net/http"

	"optimeal/checkout"
	"optimeal/utils"

	"github.com/julienschmidt/httprouter"
)

// respondCheckoutError maps orchestrator errors onto HTTP statuses and always
// includes the session status so the UI can redraw.
func respondCheckoutError(w http.ResponseWriter, b *Bridge, err error) {
	var (
		verr *checkout.ValidationError
		fail *checkout.Failure
	)
	status := b.Checkout.Status()
	switch {
	case errors.As(err, &verr):
		utils.RespondWithJSON(w, http.StatusUnprocessableEntity, utils.M{
			"error":    "checkout blocked",
			"problems": verr.Problems,
			"checkout": status,
		})
	case errors.As(err, &fail):
		code := http.StatusBadGateway
		switch fail.Category {
		case checkout.CategoryAuth:
			code = http.StatusUnauthorized
		case checkout.CategoryValidation:
			code = http.StatusUnprocessableEntity
		}
		utils.RespondWithJSON(w, code, utils.M{
			"error":    fail.Message,
			"category": fail.Category,
			"checkout": status,
		})
	case errors.Is(err, checkout.ErrSubmissionInFlight):
		utils.RespondWithJSON(w, http.StatusConflict, utils.M{"error": err.Error(), "checkout": status})
	case errors.Is(err, checkout.ErrUnknownShift):
		utils.RespondWithJSON(w, http.StatusBadRequest, utils.M{"error": err.Error(), "checkout": status})
	default:
		utils.RespondWithError(w, http.StatusInternalServerError, err.Error())
	}
}

func CheckoutStatus(b *Bridge) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		utils.RespondWithJSON(w, http.StatusOK, b.Checkout.Status())
	}
}

// BeginCheckout loads the shift catalog and preselects a shift.
func BeginCheckout(b *Bridge) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if err := b.Checkout.Begin(r.Context()); err != nil {
			respondCheckoutError(w, b, err)
			return
		}
		utils.RespondWithJSON(w, http.StatusOK, b.Checkout.Status())
	}
}

func SelectShift(b *Bridge) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var body struct {
			Shift string `json:"shift"`
		}
		if err := utils.DecodeJSON(r, &body); err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := b.Checkout.SelectShift(r.Context(), body.Shift); err != nil {
			respondCheckoutError(w, b, err)
			return
		}
		utils.RespondWithJSON(w, http.StatusOK, b.Checkout.Status())
	}
}

// SubmitCheckout sends the order and hands back the payment redirect.
func SubmitCheckout(b *Bridge) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		url, err := b.Checkout.Submit(r.Context())
		if err != nil {
			respondCheckoutError(w, b, err)
			return
		}
		utils.RespondWithJSON(w, http.StatusOK, utils.M{
			"paymentRedirectUrl": url,
			"checkout":           b.Checkout.Status(),
		})
	}
}

func DismissFailure(b *Bridge) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		b.Checkout.Dismiss()
		utils.RespondWithJSON(w, http.StatusOK, b.Checkout.Status())
	}
}

// ConfirmPayment is called once the payment page reports success.
func ConfirmPayment(b *Bridge) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		b.Checkout.ConfirmPayment()
		utils.RespondWithJSON(w, http.StatusOK, utils.M{
			"checkout": b.Checkout.Status(),
			"cart":     viewOf(b.Cart.State()),
		})
	}
}
