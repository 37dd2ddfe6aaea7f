package routes

import (
	"net/http"

	"optimeal/cart"
	"optimeal/models"
	"optimeal/utils"

	"github.com/julienschmidt/httprouter"
)

type cartLine struct {
	Key string `json:"key"`
	models.CartItem
	SideName  string `json:"sideName,omitempty"`
	LineTotal int64  `json:"lineTotal"`
}

type cartView struct {
	Items    []cartLine `json:"items"`
	Subtotal int64      `json:"subtotal"`
	Count    int        `json:"count"`
	Changed  *bool      `json:"changed,omitempty"`
}

func viewOf(s cart.State) cartView {
	v := cartView{Items: make([]cartLine, 0, s.Len()), Subtotal: s.Subtotal()}
	for _, key := range s.Keys() {
		it, _ := s.Item(key)
		v.Items = append(v.Items, cartLine{Key: key, CartItem: it, SideName: it.SideName(), LineTotal: it.LineTotal()})
		v.Count += it.Quantity
	}
	return v
}

// respondCart answers with the cart after a command. Rejected or no-op
// commands are not errors; changed tells the UI whether anything moved.
func respondCart(w http.ResponseWriter, b *Bridge, changed bool) {
	v := viewOf(b.Cart.State())
	v.Changed = &changed
	utils.RespondWithJSON(w, http.StatusOK, v)
}

func GetCart(b *Bridge) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		utils.RespondWithJSON(w, http.StatusOK, viewOf(b.Cart.State()))
	}
}

func ClearCart(b *Bridge) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		respondCart(w, b, b.Cart.Clear())
	}
}

// AddProduct adds one unit of a product without a side.
func AddProduct(b *Bridge) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var p models.Product
		if err := utils.DecodeJSON(r, &p); err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		if p.ID == "" {
			utils.RespondWithError(w, http.StatusBadRequest, "product id is required")
			return
		}
		if !cart.ValidID(p.ID) {
			utils.RespondWithError(w, http.StatusBadRequest, "product id must not contain "+cart.KeySeparator)
			return
		}
		respondCart(w, b, b.Cart.Add(p))
	}
}

func decodeItem(w http.ResponseWriter, r *http.Request) (models.CartItem, bool) {
	var it models.CartItem
	if err := utils.DecodeJSON(r, &it); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return it, false
	}
	if it.ProductID == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "productId is required")
		return it, false
	}
	if !cart.ValidID(it.ProductID) || !cart.ValidID(it.SelectedSide) {
		utils.RespondWithError(w, http.StatusBadRequest, "ids must not contain "+cart.KeySeparator)
		return it, false
	}
	if len([]rune(it.Clarification)) > models.MaxClarificationLen {
		utils.RespondWithError(w, http.StatusBadRequest, "clarification is too long")
		return it, false
	}
	return it, true
}

// AddCartItem upserts a configured line.
func AddCartItem(b *Bridge) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		it, ok := decodeItem(w, r)
		if !ok {
			return
		}
		respondCart(w, b, b.Cart.AddItem(it))
	}
}

// UpdateCartItem rewrites the line at :key, which may move to a new key when
// the side changed.
func UpdateCartItem(b *Bridge) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		it, ok := decodeItem(w, r)
		if !ok {
			return
		}
		respondCart(w, b, b.Cart.UpdateItem(it, ps.ByName("key")))
	}
}

func RemoveCartItem(b *Bridge) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		respondCart(w, b, b.Cart.Remove(ps.ByName("key")))
	}
}

func IncreaseCartItem(b *Bridge) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		respondCart(w, b, b.Cart.Increase(ps.ByName("key")))
	}
}

func DecreaseCartItem(b *Bridge) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		respondCart(w, b, b.Cart.Decrease(ps.ByName("key")))
	}
}

func SetCartItemQuantity(b *Bridge) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		var body struct {
			Quantity *int `json:"quantity"`
		}
		if err := utils.DecodeJSON(r, &body); err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		if body.Quantity == nil || *body.Quantity < 0 {
			utils.RespondWithError(w, http.StatusBadRequest, "quantity must be zero or more")
			return
		}
		respondCart(w, b, b.Cart.SetQuantity(ps.ByName("key"), *body.Quantity))
	}
}
