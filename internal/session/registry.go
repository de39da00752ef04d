// Package session owns every timer the bot arms: tournament inactivity,
// match nudges and walkover windows. Keys are scoped by tournament or channel
// so a terminal transition can tear down everything it armed at once.
package session

import (
	"strings"
	"sync"
	"time"
)

// Timer is the part of *time.Timer the registry needs.
type Timer interface {
	Stop() bool
}

// Scheduler runs fn once after d.
type Scheduler func(d time.Duration, fn func()) Timer

func realScheduler(d time.Duration, fn func()) Timer { return time.AfterFunc(d, fn) }

type entry struct {
	gen   uint64
	timer Timer
}

type Registry struct {
	mu       sync.Mutex
	timers   map[string]entry
	gen      uint64
	schedule Scheduler
}

type Option func(*Registry)

// WithScheduler replaces time.AfterFunc, mostly for tests.
func WithScheduler(s Scheduler) Option {
	return func(r *Registry) { r.schedule = s }
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		timers:   make(map[string]entry),
		schedule: realScheduler,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Key joins a scope and a name, e.g. Key("t-123", "inactivity").
func Key(scope string, parts ...string) string {
	return scope + "/" + strings.Join(parts, "/")
}

// Arm schedules fn under key, replacing any timer already armed there.
// A replaced or disarmed timer never runs its callback even if it already
// fired and is waiting on the lock.
func (r *Registry) Arm(key string, d time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.timers[key]; ok {
		old.timer.Stop()
	}
	r.gen++
	gen := r.gen
	t := r.schedule(d, func() {
		if !r.take(key, gen) {
			return
		}
		fn()
	})
	r.timers[key] = entry{gen: gen, timer: t}
}

func (r *Registry) take(key string, gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.timers[key]
	if !ok || e.gen != gen {
		return false
	}
	delete(r.timers, key)
	return true
}

// Disarm stops the timer under key and reports whether one was armed.
func (r *Registry) Disarm(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.timers[key]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(r.timers, key)
	return true
}

// DisarmScope stops every timer whose key starts with scope.
func (r *Registry) DisarmScope(scope string) int {
	prefix := scope + "/"
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k, e := range r.timers {
		if strings.HasPrefix(k, prefix) {
			e.timer.Stop()
			delete(r.timers, k)
			n++
		}
	}
	return n
}

func (r *Registry) Armed(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.timers[key]
	return ok
}

// Len is the number of armed timers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}
