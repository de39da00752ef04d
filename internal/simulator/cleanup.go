package simulator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

const (
	defaultCleanupInterval = 5 * time.Second
	cleanupBatch           = 20
	maxCleanupAttempts     = 8
)

// CleanupWorker drains the persisted cleanup outbox. Every job is idempotent,
// so a job that ran but was not marked complete is simply run again.
type CleanupWorker struct {
	store    Store
	notify   Notifier
	interval time.Duration
	now      func() time.Time
}

func NewCleanupWorker(store Store, notify Notifier, interval time.Duration) *CleanupWorker {
	if interval <= 0 {
		interval = defaultCleanupInterval
	}
	return &CleanupWorker{store: store, notify: notify, interval: interval, now: time.Now}
}

// Run ticks until ctx is done.
func (w *CleanupWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("[cleanup] %v", err)
			}
		}
	}
}

// RunOnce executes every due job and returns how many completed.
func (w *CleanupWorker) RunOnce(ctx context.Context) (int, error) {
	jobs, err := w.store.DueCleanup(ctx, w.now(), cleanupBatch)
	if err != nil {
		return 0, fmt.Errorf("due cleanup: %w", err)
	}
	done := 0
	for _, j := range jobs {
		if err := w.exec(ctx, j); err != nil {
			w.retry(ctx, j, err)
			continue
		}
		if err := w.store.CompleteCleanup(ctx, j.ID); err != nil {
			log.Printf("[cleanup] complete %s: %v", j.ID, err)
			continue
		}
		done++
	}
	return done, nil
}

func (w *CleanupWorker) exec(ctx context.Context, j CleanupJob) error {
	switch j.Kind {
	case CleanupChannel:
		return w.notify.DeleteChannel(ctx, j.Target)
	case CleanupGroup:
		return w.notify.DeleteGroup(ctx, j.Target)
	case CleanupRecord:
		err := w.store.DeleteTournament(ctx, j.Target)
		if errors.Is(err, ErrTournamentNotFound) {
			return nil
		}
		return err
	}
	return fmt.Errorf("unknown cleanup kind %q", j.Kind)
}

func (w *CleanupWorker) retry(ctx context.Context, j CleanupJob, cause error) {
	attempts := j.Attempts + 1
	if attempts >= maxCleanupAttempts {
		log.Printf("[cleanup] giving up on %s %s after %d attempts: %v", j.Kind, j.Target, attempts, cause)
		if err := w.store.CompleteCleanup(ctx, j.ID); err != nil {
			log.Printf("[cleanup] drop %s: %v", j.ID, err)
		}
		return
	}
	next := w.now().Add(backoff(attempts))
	log.Printf("[cleanup] %s %s failed (attempt %d), next at %s: %v", j.Kind, j.Target, attempts, next.Format(time.RFC3339), cause)
	if err := w.store.RetryCleanup(ctx, j.ID, next, cause.Error()); err != nil {
		log.Printf("[cleanup] reschedule %s: %v", j.ID, err)
	}
}

// backoff doubles from 10s, capped at 10m.
func backoff(attempt int) time.Duration {
	d := 10 * time.Second
	for i := 1; i < attempt && d < 10*time.Minute; i++ {
		d *= 2
	}
	if d > 10*time.Minute {
		d = 10 * time.Minute
	}
	return d
}
