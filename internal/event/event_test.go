package event

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventName(t *testing.T) {
	ev := Event{Source: "Fridge", Endpoint: "setpoint", Payload: 68.0}
	assert.Equal(t, "Fridge.setpoint", ev.Name())
}

func TestPublishDeliversToMatchingSubscribers(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	var got []any
	record := func(payload any) error {
		mu.Lock()
		got = append(got, payload)
		mu.Unlock()
		return nil
	}

	bus.Register("Fridge.setpoint", record)
	bus.Register("Fridge.setpoint", record)
	bus.Register("Heater.setpoint", func(any) error {
		t.Error("unexpected delivery to Heater.setpoint")
		return nil
	})

	bus.Notify("Fridge", "setpoint", 66.5)
	bus.Wait()

	assert.Equal(t, []any{66.5, 66.5}, got)
}

func TestSubscriberSeesPublishOrder(t *testing.T) {
	bus := NewBus()
	const n = 2000

	var (
		mu  sync.Mutex
		got []int
	)
	bus.Register("Fridge.setpoint", func(payload any) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, payload.(int))
		return nil
	})

	for i := 0; i < n; i++ {
		bus.Notify("Fridge", "setpoint", i)
	}
	bus.Wait()

	require.Len(t, got, n)
	for i, v := range got {
		require.Equal(t, i, v, "delivery %d out of order", i)
	}
}

func TestOrderHoldsAcrossPanics(t *testing.T) {
	bus := NewBus()

	var (
		mu  sync.Mutex
		got []int
	)
	bus.Register("Fridge.power", func(payload any) error {
		v := payload.(int)
		if v == 1 {
			panic("boom")
		}
		mu.Lock()
		defer mu.Unlock()
		got = append(got, v)
		return nil
	})

	for i := 0; i < 4; i++ {
		bus.Notify("Fridge", "power", i)
	}
	bus.Wait()

	assert.Equal(t, []int{0, 2, 3}, got)
}

func TestPublishWithoutSubscribers(t *testing.T) {
	bus := NewBus()
	assert.NotPanics(t, func() {
		bus.Notify("Fridge", "enabled", true)
		bus.Wait()
	})
}

func TestSlowSubscriberDoesNotBlockPublisher(t *testing.T) {
	bus := NewBus()
	release := make(chan struct{})
	var fast atomic.Int32

	bus.Register("Probe.temperature", func(any) error {
		<-release
		return nil
	})
	bus.Register("Probe.temperature", func(any) error {
		fast.Add(1)
		return nil
	})

	done := make(chan struct{})
	go func() {
		bus.Notify("Probe", "temperature", 68.1)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}

	require.Eventually(t, func() bool { return fast.Load() == 1 }, time.Second, 5*time.Millisecond)

	close(release)
	bus.Wait()
}

func TestFailingSubscribersAreIsolated(t *testing.T) {
	bus := NewBus()
	var delivered atomic.Int32

	bus.Register("Fridge.power", func(any) error {
		panic("boom")
	})
	bus.Register("Fridge.power", func(any) error {
		return fmt.Errorf("refused")
	})
	bus.Register("Fridge.power", func(any) error {
		delivered.Add(1)
		return nil
	})

	assert.NotPanics(t, func() {
		bus.Notify("Fridge", "power", 100)
		bus.Wait()
	})
	assert.Equal(t, int32(1), delivered.Load())
}
