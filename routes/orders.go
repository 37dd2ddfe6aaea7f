package routes

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"net/http"

	"optimeal/api"
	"optimeal/models"
	"optimeal/receipt"
	"optimeal/utils"

	"github.com/julienschmidt/httprouter"
)

type ordersView struct {
	Orders  []models.Order `json:"orders"`
	Loading bool           `json:"loading"`
	Error   string         `json:"error,omitempty"`
}

// ListOrders serves the mirror. ?view=active|history narrows the list.
func ListOrders(b *Bridge) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var list []models.Order
		switch r.URL.Query().Get("view") {
		case "", "all":
			list = b.Orders.Orders()
		case "active":
			list = b.Orders.ActiveOrders()
		case "history":
			list = b.Orders.HistoricalOrders()
		default:
			utils.RespondWithError(w, http.StatusBadRequest, "view must be active, history or all")
			return
		}
		if list == nil {
			list = []models.Order{}
		}
		v := ordersView{Orders: list, Loading: b.Orders.Loading()}
		if err := b.Orders.FetchError(); err != nil {
			v.Error = err.Error()
		}
		utils.RespondWithJSON(w, http.StatusOK, v)
	}
}

// RefreshOrders reruns the authoritative fetch, the pull-to-refresh path.
func RefreshOrders(b *Bridge) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if err := b.Orders.Refetch(r.Context()); err != nil {
			log.Printf("[Orders] refresh: %v", err)
			utils.RespondWithError(w, http.StatusBadGateway, err.Error())
			return
		}
		ListOrders(b)(w, r, ps)
	}
}

func lookupStatus(err error) int {
	var se *api.StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return http.StatusNotFound
	}
	return http.StatusBadGateway
}

func GetOrder(b *Bridge) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		id, err := utils.ParseID(ps, "id")
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		o, err := b.Orders.Lookup(r.Context(), id)
		if err != nil {
			utils.RespondWithError(w, lookupStatus(err), err.Error())
			return
		}
		utils.RespondWithJSON(w, http.StatusOK, o)
	}
}

// OrderReceipt streams the pickup ticket as a PDF.
func OrderReceipt(b *Bridge) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		id, err := utils.ParseID(ps, "id")
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		o, err := b.Orders.Lookup(r.Context(), id)
		if err != nil {
			utils.RespondWithError(w, lookupStatus(err), err.Error())
			return
		}

		var buf bytes.Buffer
		if err := receipt.Render(&buf, o); err != nil {
			if errors.Is(err, receipt.ErrNotPickable) {
				utils.RespondWithError(w, http.StatusConflict, err.Error())
				return
			}
			log.Printf("[Orders] receipt %d: %v", id, err)
			utils.RespondWithError(w, http.StatusInternalServerError, "could not render receipt")
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=order-%d.pdf", id))
		w.Write(buf.Bytes())
	}
}
