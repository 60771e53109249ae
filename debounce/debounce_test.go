package debounce_test

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/issue-tracker-client/debounce"
	"github.com/stretchr/testify/require"
)

// manualClock fires timers only when Advance moves past their deadline
type manualClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
}

type manualTimer struct {
	clock    *manualClock
	deadline time.Duration
	f        func()
	stopped  bool
	fired    bool
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) debounce.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, deadline: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Advance moves the clock to now+d and runs due timers in deadline order
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*manualTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.deadline <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].deadline < due[j].deadline })
	for _, t := range due {
		t.f()
	}
}

func (c *manualClock) active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func newValue(clock *manualClock) *debounce.Value[string] {
	return debounce.New("", 500*time.Millisecond, debounce.WithAfterFunc(clock.AfterFunc))
}

func TestValue(t *testing.T) {
	t.Run("Rapid changes settle once on the last value", func(t *testing.T) {
		clock := &manualClock{}
		v := newValue(clock)

		require.Equal(t, "", v.Observe("a"))
		clock.Advance(100 * time.Millisecond)
		require.Equal(t, "", v.Observe("ab"))
		clock.Advance(100 * time.Millisecond)
		require.Equal(t, "", v.Observe("abc"))
		require.Equal(t, 1, clock.active())

		// 699ms after the first keystroke: still inside the window of "abc"
		clock.Advance(499 * time.Millisecond)
		require.Equal(t, "", v.Settled())

		clock.Advance(1 * time.Millisecond)
		require.Equal(t, "abc", v.Settled())
		require.Equal(t, "abc", <-v.Changes())
		require.Empty(t, v.Changes())
	})

	t.Run("Single change settles after the delay", func(t *testing.T) {
		clock := &manualClock{}
		v := newValue(clock)

		v.Observe("x")
		clock.Advance(500 * time.Millisecond)
		require.Equal(t, "x", v.Settled())
		require.Equal(t, "x", v.Observe("x"))
		require.Zero(t, clock.active())
	})

	t.Run("Equal values do not restart the window", func(t *testing.T) {
		clock := &manualClock{}
		v := newValue(clock)

		v.Observe("q")
		clock.Advance(300 * time.Millisecond)
		v.Observe("q")
		clock.Advance(200 * time.Millisecond)
		require.Equal(t, "q", v.Settled())
		require.Len(t, clock.timers, 1)
	})

	t.Run("Settled value observed again schedules nothing", func(t *testing.T) {
		clock := &manualClock{}
		v := newValue(clock)

		v.Observe("")
		require.Empty(t, clock.timers)
	})

	t.Run("Returning to the settled value before expiry", func(t *testing.T) {
		clock := &manualClock{}
		v := newValue(clock)

		v.Observe("a")
		clock.Advance(100 * time.Millisecond)
		v.Observe("")
		clock.Advance(500 * time.Millisecond)
		require.Equal(t, "", v.Settled())
		require.Zero(t, clock.active())
	})

	t.Run("Only the latest unread value is kept", func(t *testing.T) {
		clock := &manualClock{}
		v := newValue(clock)

		v.Observe("one")
		clock.Advance(500 * time.Millisecond)
		v.Observe("two")
		clock.Advance(500 * time.Millisecond)
		require.Equal(t, "two", <-v.Changes())
		require.Empty(t, v.Changes())
	})

	t.Run("Flush settles immediately", func(t *testing.T) {
		clock := &manualClock{}
		v := newValue(clock)

		v.Observe("now")
		require.Equal(t, "now", v.Flush())
		require.Zero(t, clock.active())

		// Nothing pending
		require.Equal(t, "now", v.Flush())
	})

	t.Run("SetDelay applies to new windows", func(t *testing.T) {
		clock := &manualClock{}
		v := newValue(clock)
		v.SetDelay(50 * time.Millisecond)

		v.Observe("fast")
		clock.Advance(50 * time.Millisecond)
		require.Equal(t, "fast", v.Settled())
	})

	t.Run("Stop discards the pending value and closes Changes", func(t *testing.T) {
		clock := &manualClock{}
		v := newValue(clock)

		v.Observe("lost")
		v.Stop()
		clock.Advance(time.Second)
		require.Equal(t, "", v.Settled())

		_, open := <-v.Changes()
		require.False(t, open)

		require.Equal(t, "", v.Observe("ignored"))
		v.Stop()
	})

	t.Run("Stale timer firing late is ignored", func(t *testing.T) {
		var fire []func()
		v := debounce.New(0, time.Second, debounce.WithAfterFunc(func(d time.Duration, f func()) debounce.Timer {
			fire = append(fire, f)
			return stubTimer{}
		}))

		v.Observe(1)
		v.Observe(2)
		// The first timer could not be stopped in time
		fire[0]()
		require.Equal(t, 0, v.Settled())
		fire[1]()
		require.Equal(t, 2, v.Settled())
	})
}

type stubTimer struct{}

func (stubTimer) Stop() bool { return false }

func TestValueRealTimer(t *testing.T) {
	v := debounce.New("", 20*time.Millisecond)
	defer v.Stop()

	v.Observe("a")
	v.Observe("ab")
	v.Observe("abc")

	select {
	case got := <-v.Changes():
		require.Equal(t, "abc", got)
	case <-time.After(2 * time.Second):
		t.Fatal("value never settled")
	}
}
