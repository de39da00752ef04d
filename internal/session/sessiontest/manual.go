// Package sessiontest provides a hand-cranked scheduler so timer driven code
// can be tested without sleeping.
package sessiontest

import (
	"sync"
	"time"

	"github.com/jose-valero/simulator-bot/internal/session"
)

type Timer struct {
	Delay   time.Duration
	Fn      func()
	stopped bool
	fired   bool
	mu      *sync.Mutex
}

func (t *Timer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

// Active reports whether the timer is neither stopped nor fired.
func (t *Timer) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.stopped && !t.fired
}

type Scheduler struct {
	mu     sync.Mutex
	timers []*Timer
}

func New() *Scheduler { return &Scheduler{} }

// Schedule satisfies session.Scheduler.
func (s *Scheduler) Schedule(d time.Duration, fn func()) session.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &Timer{Delay: d, Fn: fn, mu: &s.mu}
	s.timers = append(s.timers, t)
	return t
}

// Active returns timers that would still fire.
func (s *Scheduler) Active() []*Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Timer
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

// Last returns the most recently scheduled timer, nil if none.
func (s *Scheduler) Last() *Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.timers) == 0 {
		return nil
	}
	return s.timers[len(s.timers)-1]
}

// Fire runs t's callback as if its delay elapsed. Firing a stopped timer
// still runs the callback, which is how a late timer is simulated.
func (s *Scheduler) Fire(t *Timer) {
	s.mu.Lock()
	t.fired = true
	s.mu.Unlock()
	t.Fn()
}

// FireAll fires every active timer with a delay equal to d.
func (s *Scheduler) FireAll(d time.Duration) int {
	n := 0
	for _, t := range s.Active() {
		if t.Delay == d {
			s.Fire(t)
			n++
		}
	}
	return n
}

// Registry is a session registry driven by s.
func (s *Scheduler) Registry() *session.Registry {
	return session.NewRegistry(session.WithScheduler(s.Schedule))
}
