// internal/app/subscribers.go
package app

import (
	"log"
	"sync/atomic"

	events "github.com/jose-valero/simulator-bot/internal/domain/events"
)

// stats counts lifecycle events for the ops endpoint.
type stats struct {
	Started  atomic.Int64
	Resolved atomic.Int64
	Finished atomic.Int64
	Cancel   atomic.Int64
}

type statsView struct {
	Started   int64 `json:"started"`
	Resolved  int64 `json:"resolved"`
	Finished  int64 `json:"finished"`
	Cancelled int64 `json:"cancelled"`
}

func (s *stats) view() statsView {
	return statsView{
		Started:   s.Started.Load(),
		Resolved:  s.Resolved.Load(),
		Finished:  s.Finished.Load(),
		Cancelled: s.Cancel.Load(),
	}
}

func (b *Bot) StartEventSubscribers() func() {
	bus := b.Sim.Bus()
	var cancels []func()

	// ---------- TOURNAMENT STARTED ----------
	cancels = append(cancels, events.Subscribe(bus, func(e events.TournamentStarted) {
		b.stats.Started.Add(1)
		log.Printf("[bus] TournamentStarted %s guild=%s", e.TournamentID, e.GuildID)
	}))

	// ---------- MATCH RESOLVED ----------
	cancels = append(cancels, events.Subscribe(bus, func(e events.MatchResolved) {
		b.stats.Resolved.Add(1)
		log.Printf("[bus] MatchResolved %s/%s walkover=%t", e.TournamentID, e.MatchID, e.Walkover)
	}))

	// ---------- TOURNAMENT CLOSED ----------
	cancels = append(cancels, events.Subscribe(bus, func(e events.TournamentClosed) {
		if e.State == "finished" {
			b.stats.Finished.Add(1)
		} else {
			b.stats.Cancel.Add(1)
		}
		log.Printf("[bus] TournamentClosed %s → %s (%d channels)", e.TournamentID, e.State, len(e.ChannelIDs))
	}))

	log.Printf("[bus] counts: TournamentStarted=%d MatchResolved=%d TournamentClosed=%d",
		events.Count[events.TournamentStarted](bus),
		events.Count[events.MatchResolved](bus),
		events.Count[events.TournamentClosed](bus),
	)

	return func() {
		for _, c := range cancels {
			c()
		}
	}
}
