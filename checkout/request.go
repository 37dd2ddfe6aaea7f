package checkout

import (
	"time"

	"optimeal/cart"
)

// RequestItem is one ordered line.
type RequestItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	SideID    string `json:"sideId,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// Request is the order submission payload.
type Request struct {
	Items      []RequestItem `json:"items"`
	PickupTime string        `json:"pickupTime"`
	Shift      string        `json:"shift"`
}

// SubmitResult is what the order-submission collaborator answers.
type SubmitResult struct {
	Success            bool   `json:"success"`
	Message            string `json:"message,omitempty"`
	PaymentRedirectURL string `json:"paymentRedirectUrl,omitempty"`
}

// BuildRequest turns the cart into a submission for shift, picked up at the
// shift's start on the day of now.
func BuildRequest(state cart.State, shift Shift, now time.Time) Request {
	items := make([]RequestItem, 0, state.Len())
	for _, it := range state.Items() {
		items = append(items, RequestItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			SideID:    it.SelectedSide,
			Notes:     it.Clarification,
		})
	}
	return Request{
		Items:      items,
		PickupTime: shift.StartOn(now).Format(time.RFC3339),
		Shift:      shift.Label,
	}
}
