package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"optimeal/api"
	"optimeal/auth"
	"optimeal/cart"
	"optimeal/cartstore"
	"optimeal/checkout"
	"optimeal/config"
	"optimeal/db"
	"optimeal/identity"
	"optimeal/middleware"
	"optimeal/orders"
	"optimeal/ratelim"
	"optimeal/rdx"
	"optimeal/realtime"
	"optimeal/routes"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
)

// securityHeaders applies a set of recommended HTTP security headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// XSS, content sniffing, framing
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "frame-ancestors 'none'")
		// Referrer and permissions
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		// Cart and order state must never be cached
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs each request method, path, remote address, and duration.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s from %s - %v", r.Method, r.URL.Path, r.RemoteAddr, time.Since(start))
	})
}

// openBackend picks where cart snapshots live. The returned func releases it.
func openBackend(ctx context.Context, cfg config.Config) (cartstore.Backend, func(), error) {
	switch cfg.CartStore {
	case "redis":
		client, err := rdx.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return cartstore.NewRedisBackend(client), func() { client.Close() }, nil
	case "mongo":
		client, err := db.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			client.Disconnect(dctx)
		}
		return cartstore.NewMongoBackend(db.Carts(client, cfg.MongoDB)), closeFn, nil
	default:
		log.Println("[Main] carts kept in memory; they will not survive a restart")
		return cartstore.NewMemoryBackend(), func() {}, nil
	}
}

// openChannel picks the transport order events arrive on.
func openChannel(ctx context.Context, cfg config.Config) (realtime.Channel, func(), error) {
	switch cfg.Realtime {
	case "redis":
		client, err := rdx.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return realtime.NewRedisChannel(client), func() { client.Close() }, nil
	case "websocket":
		return realtime.NewWSChannel(cfg.RealtimeURL), func() {}, nil
	default:
		log.Println("[Main] no realtime transport; orders refresh on fetch only")
		return realtime.NewLocalChannel(), func() {}, nil
	}
}

func setupRouter(b *routes.Bridge, rateLimiter *ratelim.RateLimiter) *httprouter.Router {
	router := httprouter.New()
	router.GET("/health", routes.Index)

	routes.AddSessionRoutes(router, b)
	routes.AddCartRoutes(router, b)
	routes.AddCheckoutRoutes(router, b, rateLimiter)
	routes.AddOrderRoutes(router, b)
	return router
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ config: %v", err)
	}
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	backend, closeBackend, err := openBackend(ctx, cfg)
	if err != nil {
		log.Fatalf("❌ cart store: %v", err)
	}
	channel, closeChannel, err := openChannel(ctx, cfg)
	if err != nil {
		log.Fatalf("❌ realtime: %v", err)
	}

	store := cartstore.New(backend, cartstore.Options{
		IdleDelay:       cfg.CartIdleDelay,
		WritesPerSecond: cfg.CartWritesPerSec,
	})
	session := auth.NewSession()
	engine := cart.NewEngine()
	coordinator := identity.NewCoordinator(engine, store, session)
	coordinator.Start(ctx)

	client := api.New(cfg.APIBaseURL, session, nil)
	orchestrator := checkout.NewOrchestrator(engine, client, client, cartstore.NewShiftPreference(backend), session)

	mirror := orders.NewMirror(client, channel, cfg.OrdersChannel)
	session.Subscribe(func(id string) {
		if err := mirror.Start(ctx, id != ""); err != nil {
			log.Printf("[Main] %v", err)
		}
	})

	// local UI sockets get the same order events the mirror consumes
	hub := realtime.NewHub()
	go hub.Run()
	session.Subscribe(func(id string) {
		if id == "" {
			hub.CloseRoom(cfg.OrdersChannel)
		}
	})
	go func() {
		if err := hub.Relay(ctx, channel, cfg.OrdersChannel); err != nil {
			log.Printf("[Main] relay stopped: %v", err)
		}
	}()

	// order submissions are limited per signed-in user
	rateLimiter := ratelim.NewRateLimiter(6, 3, func(r *http.Request) string {
		return middleware.IdentityFrom(r.Context())
	})

	router := setupRouter(&routes.Bridge{
		Session:  session,
		Cart:     engine,
		Store:    store,
		Checkout: orchestrator,
		Orders:   mirror,
		Hub:      hub,
		Channel:  cfg.OrdersChannel,
	}, rateLimiter)

	// apply middleware: CORS → security headers → logging → router
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // the UI runs on the same device
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(router)

	handler := loggingMiddleware(securityHeaders(corsHandler))

	server := &http.Server{
		Addr:              cfg.Port,
		Handler:           handler,
		ReadTimeout:       7 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	// on shutdown: stop realtime, flush carts, release backends
	cleaned := make(chan struct{})
	server.RegisterOnShutdown(func() {
		defer close(cleaned)
		log.Println("🛑 Stopping order mirror and hub...")
		stop()
		hub.Stop()
		mirror.Stop()
		coordinator.Stop()

		fctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(fctx); err != nil {
			log.Printf("[Main] flushing carts: %v", err)
		}
		closeChannel()
		closeBackend()
	})

	go func() {
		log.Printf("🚀 Server listening on %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ ListenAndServe error: %v", err)
		}
	}()

	// wait for interrupt or SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("🛑 Shutdown signal received; shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("❌ Graceful shutdown failed: %v", err)
	}
	select {
	case <-cleaned:
	case <-shutdownCtx.Done():
		log.Println("⚠️ cleanup did not finish in time")
	}

	log.Println("✅ Server stopped cleanly")
}
