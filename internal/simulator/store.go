package simulator

import (
	"context"
	"time"

	"github.com/jose-valero/simulator-bot/internal/bracket"
)

// Store persists tournaments. Implementations must return ErrTournamentNotFound
// for unknown ids and ErrVersionConflict when Commit sees a stale Version.
type Store interface {
	CreateTournament(ctx context.Context, t *Tournament) error
	GetTournament(ctx context.Context, id string) (*Tournament, error)
	// Commit writes c.Tournament if its Version still matches, bumps Version,
	// and records the cleanup jobs and rank deltas in the same transaction.
	Commit(ctx context.Context, c Commit) error
	DeleteTournament(ctx context.Context, id string) error
	ListTournaments(ctx context.Context) ([]*Tournament, error)
	IsBanned(ctx context.Context, guildID, userID string) (bool, error)

	DueCleanup(ctx context.Context, now time.Time, limit int) ([]CleanupJob, error)
	CompleteCleanup(ctx context.Context, jobID string) error
	// RetryCleanup bumps Attempts and moves RunAt to next.
	RetryCleanup(ctx context.Context, jobID string, next time.Time, lastErr string) error
}

// Notifier reflects tournament state on the chat platform.
// Every call is best-effort from the manager's point of view.
type Notifier interface {
	SendPanel(ctx context.Context, t *Tournament) (messageID string, err error)
	EditPanel(ctx context.Context, t *Tournament) error
	CreateGroup(ctx context.Context, t *Tournament) (groupID string, err error)
	CreateMatchChannel(ctx context.Context, t *Tournament, groupID string, m *bracket.Match) (channelID string, err error)
	DeleteChannel(ctx context.Context, channelID string) error
	DeleteGroup(ctx context.Context, groupID string) error
	GrantAccess(ctx context.Context, channelID, userID string) error
	RevokeAccess(ctx context.Context, channelID, userID string) error
	PostMessage(ctx context.Context, channelID, text string) error
}
