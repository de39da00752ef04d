package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jose-valero/simulator-bot/internal/bracket"
	"github.com/jose-valero/simulator-bot/internal/simulator"
)

func setupTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := Open(context.Background(), DriverSQLite, "file::memory:")
	require.NoError(t, err, "open in-memory store")
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleTournament() *simulator.Tournament {
	now := time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)
	return &simulator.Tournament{
		ID:             uuid.NewString(),
		GuildID:        "g1",
		ChannelID:      "control",
		CreatorID:      "creator",
		Mode:           simulator.Mode1v1,
		MaxPlayers:     2,
		PlayersPerTeam: 1,
		TotalTeams:     2,
		TeamSelection:  simulator.SelectionRandom,
		StartMode:      simulator.StartAutomatic,
		Players:        []string{"a"},
		State:          simulator.StateOpen,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(10 * time.Minute),
	}
}

func TestTournamentRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	tr := sampleTournament()
	require.NoError(t, s.CreateTournament(ctx, tr))

	err := s.CreateTournament(ctx, tr)
	require.ErrorIs(t, err, ErrDuplicate)

	got, err := s.GetTournament(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, tr.Players, got.Players)
	assert.Equal(t, tr.Mode, got.Mode)
	assert.True(t, tr.ExpiresAt.Equal(got.ExpiresAt))
	assert.Equal(t, int64(0), got.Version)

	list, err := s.ListTournaments(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, s.DeleteTournament(ctx, tr.ID))
	_, err = s.GetTournament(ctx, tr.ID)
	require.ErrorIs(t, err, simulator.ErrTournamentNotFound)
	require.ErrorIs(t, s.DeleteTournament(ctx, tr.ID), simulator.ErrTournamentNotFound)
}

func TestCommit_VersionCheck(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	tr := sampleTournament()
	require.NoError(t, s.CreateTournament(ctx, tr))

	a, err := s.GetTournament(ctx, tr.ID)
	require.NoError(t, err)
	b, err := s.GetTournament(ctx, tr.ID)
	require.NoError(t, err)

	a.Players = append(a.Players, "b")
	require.NoError(t, s.Commit(ctx, simulator.Commit{Tournament: a}))
	assert.Equal(t, int64(1), a.Version)

	b.Players = append(b.Players, "c")
	err = s.Commit(ctx, simulator.Commit{Tournament: b})
	require.ErrorIs(t, err, simulator.ErrVersionConflict)

	got, err := s.GetTournament(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.Players)
	assert.Equal(t, int64(1), got.Version)

	ghost := sampleTournament()
	err = s.Commit(ctx, simulator.Commit{Tournament: ghost})
	require.ErrorIs(t, err, simulator.ErrTournamentNotFound)
}

func TestCommit_WritesJobsAndRanksAtomically(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	tr := sampleTournament()
	tr.Players = []string{"a", "b"}
	tr.State = simulator.StateRunning
	tr.Bracket = &bracket.Bracket{Mode: "1v1", CurrentRound: 1, TotalRounds: 1, Matches: []*bracket.Match{
		{ID: "round1-match1", Round: 1, Order: 1, Team1: []string{"a"}, Team2: []string{"b"}, Status: bracket.StatusPending, ChannelID: "c1"},
	}}
	require.NoError(t, s.CreateTournament(ctx, tr))

	_, err := tr.Bracket.Advance("round1-match1", []string{"a"})
	require.NoError(t, err)
	tr.State = simulator.StateFinished
	runAt := time.Now().Add(-time.Second)
	commit := simulator.Commit{
		Tournament: tr,
		Cleanup: []simulator.CleanupJob{
			{TournamentID: tr.ID, Kind: simulator.CleanupChannel, Target: "c1", RunAt: runAt},
			{TournamentID: tr.ID, Kind: simulator.CleanupRecord, Target: tr.ID, RunAt: runAt.Add(time.Hour)},
		},
		Ranks: []simulator.RankDelta{
			{GuildID: GlobalScope, UserID: "a", Wins: 1, Points: 1},
			{GuildID: "g1", UserID: "a", Wins: 1, Points: 1},
		},
	}
	require.NoError(t, s.Commit(ctx, commit))

	got, err := s.GetTournament(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, simulator.StateFinished, got.State)
	assert.Equal(t, []string{"a"}, got.Bracket.Champion())

	due, err := s.DueCleanup(ctx, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "c1", due[0].Target)
	assert.NotEmpty(t, due[0].ID)

	require.NoError(t, s.RetryCleanup(ctx, due[0].ID, time.Now().Add(time.Minute), "rate limited"))
	due, err = s.DueCleanup(ctx, time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	later, err := s.DueCleanup(ctx, time.Now().Add(2*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, later, 2)
	for _, j := range later {
		if j.Kind == simulator.CleanupChannel {
			assert.Equal(t, 1, j.Attempts)
			assert.Equal(t, "rate limited", j.LastError)
		}
		require.NoError(t, s.CompleteCleanup(ctx, j.ID))
	}
	later, err = s.DueCleanup(ctx, time.Now().Add(2*time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, later)

	global, err := s.PlayerStanding(ctx, GlobalScope, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, global.Wins)
	local, err := s.PlayerStanding(ctx, "g1", "a")
	require.NoError(t, err)
	assert.Equal(t, 1, local.Points)
}

func TestRanksAreAdditive(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.AddRank(ctx, simulator.RankDelta{GuildID: "g1", UserID: "a", Wins: 1, Points: 2}))
	}
	require.NoError(t, s.AddRank(ctx, simulator.RankDelta{GuildID: "g1", UserID: "b", Wins: 1, Points: 1, Losses: 1}))

	top, err := s.Rank(ctx, "g1", 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "a", top[0].UserID)
	assert.Equal(t, 3, top[0].Wins)
	assert.Equal(t, 6, top[0].Points)
	assert.Equal(t, 1, top[1].Losses)

	none, err := s.PlayerStanding(ctx, "g2", "a")
	require.NoError(t, err)
	assert.Zero(t, none.Wins)
}

func TestBans(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Ban(ctx, "g1", "local", "toxic"))
	require.NoError(t, s.Ban(ctx, GlobalScope, "global", "cheating"))
	require.NoError(t, s.Ban(ctx, "g1", "local", "still toxic"))

	for _, c := range []struct {
		guild, user string
		want        bool
	}{
		{"g1", "local", true},
		{"g2", "local", false},
		{"g2", "global", true},
		{"g1", "clean", false},
	} {
		got, err := s.IsBanned(ctx, c.guild, c.user)
		require.NoError(t, err)
		assert.Equal(t, c.want, got, "%s in %s", c.user, c.guild)
	}

	lifted, err := s.Unban(ctx, "g1", "local")
	require.NoError(t, err)
	assert.True(t, lifted)
	lifted, err = s.Unban(ctx, "g1", "local")
	require.NoError(t, err)
	assert.False(t, lifted)
}

func TestConfig(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	v, err := s.ReadConfig(ctx, "assistant:g1", "on")
	require.NoError(t, err)
	assert.Equal(t, "on", v)

	require.NoError(t, s.WriteConfig(ctx, "assistant:g1", "off"))
	require.NoError(t, s.WriteConfig(ctx, "assistant:g1", "off"))
	v, err = s.ReadConfig(ctx, "assistant:g1", "on")
	require.NoError(t, err)
	assert.Equal(t, "off", v)
}

func TestOpen_RejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "whatever")
	assert.Error(t, err)
}

var _ simulator.Store = (*SQLStore)(nil)
