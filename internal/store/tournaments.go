package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	sqlite "github.com/mattn/go-sqlite3"

	"github.com/jose-valero/simulator-bot/internal/simulator"
)

// ErrDuplicate is returned when a tournament id already exists.
var ErrDuplicate = errors.New("store: duplicate key")

type tournamentRow struct {
	ID        string `db:"id"`
	GuildID   string `db:"guild_id"`
	ChannelID string `db:"channel_id"`
	CreatorID string `db:"creator_id"`
	State     string `db:"state"`
	Version   int64  `db:"version"`
	Data      string `db:"data"`
	CreatedAt int64  `db:"created_at"`
	UpdatedAt int64  `db:"updated_at"`
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite.ErrConstraint
	}
	return false
}

func toRow(t *simulator.Tournament) (tournamentRow, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return tournamentRow{}, fmt.Errorf("encode tournament %s: %w", t.ID, err)
	}
	return tournamentRow{
		ID:        t.ID,
		GuildID:   t.GuildID,
		ChannelID: t.ChannelID,
		CreatorID: t.CreatorID,
		State:     string(t.State),
		Version:   t.Version,
		Data:      string(data),
		CreatedAt: t.CreatedAt.UnixMilli(),
		UpdatedAt: t.UpdatedAt.UnixMilli(),
	}, nil
}

func fromRow(r tournamentRow) (*simulator.Tournament, error) {
	var t simulator.Tournament
	if err := json.Unmarshal([]byte(r.Data), &t); err != nil {
		return nil, fmt.Errorf("decode tournament %s: %w", r.ID, err)
	}
	t.Version = r.Version
	return &t, nil
}

func (s *SQLStore) CreateTournament(ctx context.Context, t *simulator.Tournament) error {
	row, err := toRow(t)
	if err != nil {
		return err
	}
	_, err = s.db.NamedExecContext(ctx, `INSERT INTO tournaments
		(id, guild_id, channel_id, creator_id, state, version, data, created_at, updated_at)
		VALUES (:id, :guild_id, :channel_id, :creator_id, :state, :version, :data, :created_at, :updated_at)`, row)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: tournament %s", ErrDuplicate, t.ID)
	}
	return err
}

func (s *SQLStore) GetTournament(ctx context.Context, id string) (*simulator.Tournament, error) {
	var row tournamentRow
	err := s.db.GetContext(ctx, &row, s.q("SELECT * FROM tournaments WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, simulator.ErrTournamentNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromRow(row)
}

func (s *SQLStore) ListTournaments(ctx context.Context) ([]*simulator.Tournament, error) {
	var rows []tournamentRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT * FROM tournaments ORDER BY created_at ASC"); err != nil {
		return nil, err
	}
	out := make([]*simulator.Tournament, 0, len(rows))
	for _, r := range rows {
		t, err := fromRow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *SQLStore) DeleteTournament(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.q("DELETE FROM tournaments WHERE id = ?"), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return simulator.ErrTournamentNotFound
	}
	return nil
}

type jobRow struct {
	ID           string `db:"id"`
	TournamentID string `db:"tournament_id"`
	Kind         string `db:"kind"`
	Target       string `db:"target"`
	RunAt        int64  `db:"run_at"`
	Attempts     int    `db:"attempts"`
	LastError    string `db:"last_error"`
}

// Commit updates the record if its version is unchanged and stores the
// implied cleanup jobs and rank deltas, all in one transaction.
func (s *SQLStore) Commit(ctx context.Context, c simulator.Commit) error {
	t := c.Tournament
	next := *t
	next.Version = t.Version + 1
	row, err := toRow(&next)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, s.q(`UPDATE tournaments
		SET state = ?, version = ?, data = ?, updated_at = ?
		WHERE id = ? AND version = ?`),
		row.State, row.Version, row.Data, row.UpdatedAt, t.ID, t.Version)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		err := tx.GetContext(ctx, &exists, s.q("SELECT COUNT(*) FROM tournaments WHERE id = ?"), t.ID)
		if err != nil {
			return err
		}
		if exists == 0 {
			return simulator.ErrTournamentNotFound
		}
		return simulator.ErrVersionConflict
	}

	if len(c.Cleanup) > 0 {
		jobs := make([]jobRow, 0, len(c.Cleanup))
		for _, j := range c.Cleanup {
			if j.ID == "" {
				j.ID = uuid.NewString()
			}
			jobs = append(jobs, jobRow{
				ID: j.ID, TournamentID: j.TournamentID, Kind: string(j.Kind), Target: j.Target,
				RunAt: j.RunAt.UnixMilli(), Attempts: j.Attempts, LastError: j.LastError,
			})
		}
		_, err = tx.NamedExecContext(ctx, `INSERT INTO cleanup_jobs
			(id, tournament_id, kind, target, run_at, attempts, last_error)
			VALUES (:id, :tournament_id, :kind, :target, :run_at, :attempts, :last_error)`, jobs)
		if err != nil {
			return fmt.Errorf("enqueue cleanup: %w", err)
		}
	}

	for _, d := range c.Ranks {
		if err := addRank(ctx, tx, d); err != nil {
			return fmt.Errorf("rank %s: %w", d.UserID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	t.Version = next.Version
	return nil
}

func (s *SQLStore) DueCleanup(ctx context.Context, now time.Time, limit int) ([]simulator.CleanupJob, error) {
	var rows []jobRow
	err := s.db.SelectContext(ctx, &rows,
		s.q("SELECT * FROM cleanup_jobs WHERE run_at <= ? ORDER BY run_at ASC LIMIT ?"), now.UnixMilli(), limit)
	if err != nil {
		return nil, err
	}
	out := make([]simulator.CleanupJob, 0, len(rows))
	for _, r := range rows {
		out = append(out, simulator.CleanupJob{
			ID:           r.ID,
			TournamentID: r.TournamentID,
			Kind:         simulator.CleanupKind(r.Kind),
			Target:       r.Target,
			RunAt:        time.UnixMilli(r.RunAt),
			Attempts:     r.Attempts,
			LastError:    r.LastError,
		})
	}
	return out, nil
}

func (s *SQLStore) CompleteCleanup(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, s.q("DELETE FROM cleanup_jobs WHERE id = ?"), jobID)
	return err
}

func (s *SQLStore) RetryCleanup(ctx context.Context, jobID string, next time.Time, lastErr string) error {
	_, err := s.db.ExecContext(ctx,
		s.q("UPDATE cleanup_jobs SET attempts = attempts + 1, run_at = ?, last_error = ? WHERE id = ?"),
		next.UnixMilli(), lastErr, jobID)
	return err
}
