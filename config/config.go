// Package config reads the bridge's settings from the environment, loading a
// .env file first when one exists.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port             string
	APIBaseURL       string
	CartStore        string // redis, mongo or memory
	RedisURL         string
	MongoURI         string
	MongoDB          string
	Realtime         string // redis, websocket or none
	RealtimeURL      string
	OrdersChannel    string
	CartIdleDelay    time.Duration
	CartWritesPerSec float64
}

// Load reads .env files (missing ones are fine) and then the environment.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil {
		log.Println("No .env file found; using system environment")
	}
	return FromEnv()
}

// FromEnv reads the configuration from the process environment.
func FromEnv() (Config, error) {
	c := Config{
		Port:          env("PORT", ":8080"),
		APIBaseURL:    env("API_BASE_URL", "http://localhost:3000/api"),
		CartStore:     strings.ToLower(env("CART_STORE", "memory")),
		RedisURL:      env("REDIS_URL", "redis://localhost:6379/0"),
		MongoURI:      env("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:       env("MONGO_DB", "optimeal"),
		Realtime:      strings.ToLower(env("REALTIME", "none")),
		RealtimeURL:   env("REALTIME_URL", ""),
		OrdersChannel: env("ORDERS_CHANNEL", "orders-realtime"),
	}
	if c.Port[0] != ':' && !strings.Contains(c.Port, ":") {
		c.Port = ":" + c.Port
	}

	var err error
	if c.CartIdleDelay, err = time.ParseDuration(env("CART_IDLE_DELAY", "50ms")); err != nil {
		return Config{}, fmt.Errorf("CART_IDLE_DELAY: %w", err)
	}
	if c.CartWritesPerSec, err = strconv.ParseFloat(env("CART_WRITES_PER_SEC", "20"), 64); err != nil {
		return Config{}, fmt.Errorf("CART_WRITES_PER_SEC: %w", err)
	}

	switch c.CartStore {
	case "redis", "mongo", "memory":
	default:
		return Config{}, fmt.Errorf("CART_STORE: unknown backend %q", c.CartStore)
	}
	switch c.Realtime {
	case "redis", "none":
	case "websocket":
		if c.RealtimeURL == "" {
			return Config{}, fmt.Errorf("REALTIME_URL is required for websocket realtime")
		}
	default:
		return Config{}, fmt.Errorf("REALTIME: unknown transport %q", c.Realtime)
	}
	return c, nil
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
