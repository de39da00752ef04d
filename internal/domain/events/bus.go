// Package events is a small typed in-process bus. Subscribers are keyed by
// the event's Go type; Publish runs them synchronously in subscription order.
package events

import (
	"log"
	"reflect"
	"sync"
)

type subscriber struct {
	id uint64
	fn func(any)
}

type Bus struct {
	mu   sync.RWMutex
	seq  uint64
	subs map[string][]subscriber // type name -> subs
}

func NewBus() *Bus {
	return &Bus{subs: map[string][]subscriber{}}
}

func typeNameOf[T any]() string {
	var zero *T
	rt := reflect.TypeOf(zero).Elem() // *T -> T, without dereferencing nil
	return rt.PkgPath() + "." + rt.Name()
}

// Subscribe registers fn for events of type T and returns its cancel func.
func Subscribe[T any](b *Bus, fn func(T)) func() {
	name := typeNameOf[T]()
	wrapped := func(v any) {
		if ev, ok := v.(T); ok {
			fn(ev)
		}
	}

	b.mu.Lock()
	b.seq++
	id := b.seq
	b.subs[name] = append(b.subs[name], subscriber{id: id, fn: wrapped})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		ss := b.subs[name]
		for i, s := range ss {
			if s.id == id {
				b.subs[name] = append(ss[:i:i], ss[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers ev to every subscriber of T. A panicking subscriber is
// logged and does not stop delivery to the others.
func Publish[T any](b *Bus, ev T) {
	if b == nil {
		return
	}
	name := typeNameOf[T]()
	b.mu.RLock()
	ss := append([]subscriber(nil), b.subs[name]...)
	b.mu.RUnlock()
	for _, s := range ss {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[bus] subscriber panic on %s: %v", name, r)
				}
			}()
			s.fn(ev)
		}()
	}
}

// Count returns how many subscribers T currently has.
func Count[T any](b *Bus) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[typeNameOf[T]()])
}
