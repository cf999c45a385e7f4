package bus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvent_EmitIsSynchronousInSubscriptionOrder(t *testing.T) {
	var e Event[int]
	var order []int

	e.Subscribe(func(v int) { order = append(order, v*10) })
	e.Subscribe(func(v int) { order = append(order, v*100) })
	e.Emit(1)

	assert.Equal(t, []int{10, 100}, order)
}

func TestAsyncEvent_DeliversInFIFOOrder(t *testing.T) {
	e := NewAsyncEvent[int]()
	var mu sync.Mutex
	var got []int
	done := make(chan struct{})

	e.Subscribe(func(v int) {
		mu.Lock()
		got = append(got, v)
		if v == 2 {
			close(done)
		}
		mu.Unlock()
	})

	e.Emit(0)
	e.Emit(1)
	e.Emit(2)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for async delivery")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2}, got)
}
