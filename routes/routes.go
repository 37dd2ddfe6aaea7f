package routes

import (
	"fmt"
	"net/http"

	"optimeal/auth"
	"optimeal/cart"
	"optimeal/cartstore"
	"optimeal/checkout"
	"optimeal/middleware"
	"optimeal/orders"
	"optimeal/ratelim"
	"optimeal/realtime"

	"github.com/julienschmidt/httprouter"
)

// Bridge holds the engine parts the local HTTP routes expose to the UI.
type Bridge struct {
	Session  *auth.Session
	Cart     *cart.Engine
	Store    *cartstore.Store
	Checkout *checkout.Orchestrator
	Orders   *orders.Mirror
	Hub      *realtime.Hub
	Channel  string
}

// Index is a simple health check handler.
func Index(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	fmt.Fprint(w, "200")
}

func AddSessionRoutes(router *httprouter.Router, b *Bridge) {
	router.POST("/session", SignIn(b))
	router.DELETE("/session", SignOut(b))
	router.GET("/session", CurrentSession(b))
}

func AddCartRoutes(router *httprouter.Router, b *Bridge) {
	router.GET("/cart", GetCart(b))
	router.DELETE("/cart", ClearCart(b))
	router.POST("/cart/products", AddProduct(b))
	router.POST("/cart/items", AddCartItem(b))
	router.PUT("/cart/items/:key", UpdateCartItem(b))
	router.DELETE("/cart/items/:key", RemoveCartItem(b))
	router.POST("/cart/items/:key/increase", IncreaseCartItem(b))
	router.POST("/cart/items/:key/decrease", DecreaseCartItem(b))
	router.PUT("/cart/items/:key/quantity", SetCartItemQuantity(b))
}

func AddCheckoutRoutes(router *httprouter.Router, b *Bridge, rateLimiter *ratelim.RateLimiter) {
	authed := middleware.Authenticate(b.Session)
	router.GET("/checkout", authed(CheckoutStatus(b)))
	router.POST("/checkout/begin", authed(BeginCheckout(b)))
	router.PUT("/checkout/shift", authed(SelectShift(b)))
	router.POST("/checkout/submit", authed(rateLimiter.Limit(SubmitCheckout(b))))
	router.POST("/checkout/dismiss", authed(DismissFailure(b)))
	router.POST("/checkout/confirm", authed(ConfirmPayment(b)))
}

func AddOrderRoutes(router *httprouter.Router, b *Bridge) {
	authed := middleware.Authenticate(b.Session)
	router.GET("/orders", authed(ListOrders(b)))
	router.POST("/orders/refresh", authed(RefreshOrders(b)))
	router.GET("/orders/:id", authed(GetOrder(b)))
	router.GET("/orders/:id/receipt", authed(OrderReceipt(b)))
	router.GET("/ws/orders", authed(realtime.WebSocketHandler(b.Hub, b.Channel)))
}
