package cart

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineNotifiesOnAcceptedTransitions(t *testing.T) {
	e := NewEngine()
	var seen []int64
	unsubscribe := e.Subscribe(func(s State) { seen = append(seen, s.Subtotal()) })

	require.True(t, e.Add(product("A", 100, 1)))
	require.False(t, e.Add(product("A", 100, 1)))
	require.True(t, e.Increase("missing") == false)
	require.True(t, e.Clear())

	assert.Equal(t, []int64{100, 0}, seen)

	unsubscribe()
	unsubscribe()
	e.Add(product("B", 5, 1))
	assert.Len(t, seen, 2)
	assert.Equal(t, int64(5), e.Subtotal())
}

func TestEngineQueries(t *testing.T) {
	e := NewEngine()
	e.Add(product("A", 100, 5))
	e.Add(product("A", 100, 5))
	assert.Equal(t, 2, e.TotalQuantityForProduct("A"))
	assert.Len(t, e.ItemsForProduct("A"), 1)
}

func TestEngineConcurrentDispatch(t *testing.T) {
	e := NewEngine()
	var mu sync.Mutex
	var last State
	e.Subscribe(func(s State) {
		mu.Lock()
		last = s
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Add(product("A", 10, 30))
		}()
	}
	wg.Wait()

	it, ok := e.State().Item("A")
	require.True(t, ok)
	assert.Equal(t, 30, it.Quantity)
	assert.True(t, last.Equal(e.State()))
}

func TestApplyIsOneTransition(t *testing.T) {
	e := NewEngine()
	e.Add(product("A", 100, 5))

	var seen []State
	e.Subscribe(func(s State) { seen = append(seen, s) })

	require.True(t, e.Apply(Clear{}, Add{Product: product("B", 7, 2)}, Increase{Key: "B"}))
	require.Len(t, seen, 1)
	assert.Equal(t, []string{"B"}, seen[0].Keys())
	assert.Equal(t, int64(14), seen[0].Subtotal())

	// a round trip back to the same cart is not a change
	before := e.State()
	assert.False(t, e.Apply(Increase{Key: "missing"}))
	assert.False(t, e.Apply(Decrease{Key: "B"}, Increase{Key: "B"}))
	assert.True(t, e.State().Equal(before))
	assert.Len(t, seen, 1)
}

func TestExclusiveHoldsDispatch(t *testing.T) {
	e := NewEngine()
	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	go e.Exclusive(func(apply func(...Command) bool) {
		apply(Add{Product: product("A", 1, 9)})
		close(entered)
		<-release
		apply(Clear{})
	})
	<-entered

	go func() {
		e.Add(product("B", 1, 9))
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("dispatch ran inside an exclusive section")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)
	<-done

	assert.Equal(t, []string{"B"}, e.State().Keys())
}
