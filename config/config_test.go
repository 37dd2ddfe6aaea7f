package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"PORT", "API_BASE_URL", "CART_STORE", "REDIS_URL", "MONGO_URI", "MONGO_DB",
	"REALTIME", "REALTIME_URL", "ORDERS_CHANNEL", "CART_IDLE_DELAY", "CART_WRITES_PER_SEC",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	c, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", c.Port)
	assert.Equal(t, "memory", c.CartStore)
	assert.Equal(t, "none", c.Realtime)
	assert.Equal(t, "orders-realtime", c.OrdersChannel)
	assert.Equal(t, 50*time.Millisecond, c.CartIdleDelay)
	assert.Equal(t, 20.0, c.CartWritesPerSec)
}

func TestOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("CART_STORE", "Redis")
	t.Setenv("REALTIME", "websocket")
	t.Setenv("REALTIME_URL", "ws://localhost:8081/ws/orders")
	t.Setenv("CART_IDLE_DELAY", "250ms")

	c, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":9090", c.Port)
	assert.Equal(t, "redis", c.CartStore)
	assert.Equal(t, "websocket", c.Realtime)
	assert.Equal(t, 250*time.Millisecond, c.CartIdleDelay)
}

func TestInvalid(t *testing.T) {
	tests := map[string]string{
		"CART_STORE":          "sqlite",
		"REALTIME":            "carrier-pigeon",
		"CART_IDLE_DELAY":     "soon",
		"CART_WRITES_PER_SEC": "many",
	}
	for k, v := range tests {
		t.Run(k, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(k, v)
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}

	clearEnv(t)
	t.Setenv("REALTIME", "websocket")
	_, err := FromEnv()
	assert.Error(t, err, "websocket needs a url")
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("MONGO_DB")
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("MONGO_DB=from_file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("MONGO_DB") })

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from_file", c.MongoDB)
}
