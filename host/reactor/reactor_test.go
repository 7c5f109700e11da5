package reactor

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReactor_TimersFireInWakeOrder(t *testing.T) {
	r := New()
	var mu sync.Mutex
	var order []int

	record := func(n int) Handler {
		return func(now float64) float64 {
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			return Never
		}
	}

	now := r.Monotonic()
	r.RegisterTimer(now+0.15, record(2))
	r.RegisterTimer(now+0.05, record(1))
	r.RegisterTimer(now+0.25, record(3))

	go r.Run()
	defer r.Stop()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 3
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []int{1, 2, 3}, order)
}

func TestReactor_UpdateTimerReschedules(t *testing.T) {
	r := New()
	fired := make(chan float64, 1)
	id := r.RegisterTimer(Never, func(now float64) float64 {
		fired <- now
		return Never
	})
	r.UpdateTimer(id, r.Monotonic()+0.02)

	go r.Run()
	defer r.Stop()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired after UpdateTimer")
	}
}

func TestReactor_RemoveTimerPreventsFiring(t *testing.T) {
	r := New()
	fired := false
	id := r.RegisterTimer(r.Monotonic()+0.05, func(now float64) float64 {
		fired = true
		return Never
	})
	r.RemoveTimer(id)

	go r.Run()
	defer r.Stop()
	time.Sleep(150 * time.Millisecond)
	require.False(t, fired)
}

func TestReactor_PauseBlocksUntilWaketime(t *testing.T) {
	r := New()
	start := r.Monotonic()
	r.Pause(start + 0.05)
	require.GreaterOrEqual(t, r.Monotonic()-start, 0.04)
}

func TestReactor_StopWakesPause(t *testing.T) {
	r := New()
	done := make(chan struct{})
	go func() {
		r.Pause(r.Monotonic() + 10)
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	r.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Pause did not unblock on Stop")
	}
}
