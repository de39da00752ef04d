package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jose-valero/simulator-bot/internal/simulator"
)

// GlobalScope is the guild id of the cross-guild ranking and of global bans.
const GlobalScope = ""

type Standing struct {
	GuildID string `db:"guild_id"`
	UserID  string `db:"user_id"`
	Wins    int    `db:"wins"`
	Losses  int    `db:"losses"`
	Points  int    `db:"points"`
}

func addRank(ctx context.Context, tx *sqlx.Tx, d simulator.RankDelta) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO ranks (guild_id, user_id, wins, losses, points)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (guild_id, user_id) DO UPDATE SET
			wins = ranks.wins + excluded.wins,
			losses = ranks.losses + excluded.losses,
			points = ranks.points + excluded.points`),
		d.GuildID, d.UserID, d.Wins, d.Losses, d.Points)
	return err
}

// AddRank applies one additive delta outside of a tournament commit.
func (s *SQLStore) AddRank(ctx context.Context, d simulator.RankDelta) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := addRank(ctx, tx, d); err != nil {
		return err
	}
	return tx.Commit()
}

// Rank returns the top standings of a guild, or the global ranking for GlobalScope.
func (s *SQLStore) Rank(ctx context.Context, guildID string, limit int) ([]Standing, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []Standing
	err := s.db.SelectContext(ctx, &out, s.q(`SELECT guild_id, user_id, wins, losses, points FROM ranks
		WHERE guild_id = ? ORDER BY points DESC, wins DESC, user_id ASC LIMIT ?`), guildID, limit)
	return out, err
}

// PlayerStanding returns one player's standing; zero values if they never won.
func (s *SQLStore) PlayerStanding(ctx context.Context, guildID, userID string) (Standing, error) {
	st := Standing{GuildID: guildID, UserID: userID}
	err := s.db.GetContext(ctx, &st, s.q(`SELECT guild_id, user_id, wins, losses, points FROM ranks
		WHERE guild_id = ? AND user_id = ?`), guildID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return st, nil
	}
	return st, err
}

// Ban blocks userID in guildID, or everywhere with GlobalScope.
func (s *SQLStore) Ban(ctx context.Context, guildID, userID, reason string) error {
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO bans (guild_id, user_id, reason, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (guild_id, user_id) DO UPDATE SET reason = excluded.reason`),
		guildID, userID, reason, time.Now().UnixMilli())
	return err
}

// Unban reports whether a ban was lifted.
func (s *SQLStore) Unban(ctx context.Context, guildID, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.q("DELETE FROM bans WHERE guild_id = ? AND user_id = ?"), guildID, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// IsBanned checks both the guild ban list and the global one.
func (s *SQLStore) IsBanned(ctx context.Context, guildID, userID string) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n, s.q(`SELECT COUNT(*) FROM bans
		WHERE user_id = ? AND (guild_id = ? OR guild_id = ?)`), userID, guildID, GlobalScope)
	return n > 0, err
}

func (s *SQLStore) ReadConfig(ctx context.Context, key, def string) (string, error) {
	var v string
	err := s.db.GetContext(ctx, &v, s.q("SELECT value FROM settings WHERE name = ?"), key)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	return v, nil
}

func (s *SQLStore) WriteConfig(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO settings (name, value) VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET value = excluded.value`), key, value)
	return err
}
