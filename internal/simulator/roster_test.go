package simulator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jose-valero/simulator-bot/internal/bracket"
	"github.com/jose-valero/simulator-bot/internal/domain/events"
)

func TestJoin_ConcurrentLastSlot(t *testing.T) {
	h := newHarness(t)
	tr := h.create(t, Mode1v1, 8, SelectionRandom, StartManual)
	h.fill(t, tr.ID, 7)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ok   int
		full int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.m.Join(context.Background(), tr.ID, fmt.Sprintf("late%d", i))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrTournamentFull):
				full++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, 9, full)
	cur, err := h.m.Get(context.Background(), tr.ID)
	require.NoError(t, err)
	assert.Len(t, cur.Players, 8)
}

func TestJoin_Rejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tr := h.create(t, Mode1v1, 4, SelectionRandom, StartManual)

	_, err := h.m.Join(ctx, tr.ID, "u1")
	require.NoError(t, err)
	_, err = h.m.Join(ctx, tr.ID, "u1")
	require.ErrorIs(t, err, ErrAlreadyJoined)
	assert.Equal(t, KindConflict, KindOf(err))

	h.store.bans["g1|cheater"] = true
	h.store.bans["|global"] = true
	_, err = h.m.Join(ctx, tr.ID, "cheater")
	require.ErrorIs(t, err, ErrBanned)
	assert.Equal(t, KindAuthorization, KindOf(err))
	_, err = h.m.Join(ctx, tr.ID, "global")
	require.ErrorIs(t, err, ErrBanned)

	_, err = h.m.Join(ctx, "missing", "u2")
	require.ErrorIs(t, err, ErrTournamentNotFound)
	_, err = h.m.Join(ctx, tr.ID, "")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestJoin_PublishesRosterChanged(t *testing.T) {
	h := newHarness(t)
	var got []events.RosterChanged
	events.Subscribe(h.m.Bus(), func(e events.RosterChanged) { got = append(got, e) })

	tr := h.create(t, Mode1v1, 4, SelectionRandom, StartManual)
	h.fill(t, tr.ID, 2)

	require.Len(t, got, 2)
	assert.Equal(t, tr.ID, got[0].TournamentID)
	assert.Equal(t, 2, h.notif.edits)
}

func TestJoin_ManualSelectionUsesFirstOpenTeam(t *testing.T) {
	h := newHarness(t)
	tr := h.create(t, Mode2v2, 4, SelectionManual, StartManual)
	tr = h.fill(t, tr.ID, 3)

	assert.Equal(t, []string{"u01", "u02"}, tr.Teams["team1"])
	assert.Equal(t, []string{"u03"}, tr.Teams["team2"])
	assert.Equal(t, []string{"u01", "u02", "u03"}, tr.Players)
}

func TestAssignTeam(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	random := h.create(t, Mode2v2, 4, SelectionRandom, StartManual)
	_, err := h.m.AssignTeam(ctx, random.ID, "u1", "team1")
	require.ErrorIs(t, err, ErrNotManual)

	tr := h.create(t, Mode2v2, 4, SelectionManual, StartManual)
	_, err = h.m.AssignTeam(ctx, tr.ID, "u1", "team9")
	require.ErrorIs(t, err, ErrUnknownTeam)

	for _, u := range []string{"u1", "u2"} {
		_, err = h.m.AssignTeam(ctx, tr.ID, u, "team1")
		require.NoError(t, err)
	}
	_, err = h.m.AssignTeam(ctx, tr.ID, "u1", "team1")
	require.ErrorIs(t, err, ErrNoOpChange)
	_, err = h.m.AssignTeam(ctx, tr.ID, "u3", "team1")
	require.ErrorIs(t, err, ErrTeamFull)

	tr, err = h.m.AssignTeam(ctx, tr.ID, "u2", "team2")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, tr.Teams["team1"])
	assert.Equal(t, []string{"u2"}, tr.Teams["team2"])
	assert.Len(t, tr.Players, 2)
}

func TestAssignTeam_FillingLastSlotAutoStarts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tr := h.create(t, Mode1v1, 2, SelectionManual, StartAutomatic)

	_, err := h.m.AssignTeam(ctx, tr.ID, "a", "team2")
	require.NoError(t, err)
	tr, err = h.m.AssignTeam(ctx, tr.ID, "b", "team1")
	require.NoError(t, err)
	assert.Equal(t, StateRunning, tr.State)
}

func TestLeave(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tr := h.create(t, Mode2v2, 4, SelectionManual, StartManual)
	h.fill(t, tr.ID, 2)

	_, err := h.m.Leave(ctx, tr.ID, "nobody")
	require.ErrorIs(t, err, ErrNotInRoster)

	tr, err = h.m.Leave(ctx, tr.ID, "u01")
	require.NoError(t, err)
	assert.Equal(t, []string{"u02"}, tr.Players)
	assert.Equal(t, []string{"u02"}, tr.Teams["team1"])

	auto := h.create(t, Mode1v1, 2, SelectionRandom, StartAutomatic)
	h.fill(t, auto.ID, 2)
	_, err = h.m.Leave(ctx, auto.ID, "u01")
	require.ErrorIs(t, err, ErrNotOpen)
}

func TestSubstitute_RunningTournament(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tr := h.create(t, Mode2v2, 8, SelectionRandom, StartManual)
	h.fill(t, tr.ID, 8)
	tr, err := h.m.Start(ctx, tr.ID, creator)
	require.NoError(t, err)
	r1 := tr.Bracket.Round(1)
	require.Len(t, r1, 2)

	_, err = h.m.DeclareWinner(ctx, tr.ID, r1[0].ID, bracket.SideTeam1, creator)
	require.NoError(t, err)

	eliminated := r1[0].Team2[0]
	tr, err = h.m.Substitute(ctx, tr.ID, eliminated, "sub1", creator)
	require.NoError(t, err)
	done, _ := tr.Bracket.Match(r1[0].ID)
	assert.Contains(t, done.Team2, eliminated, "completed matches keep their history")
	assert.Contains(t, tr.Players, "sub1")
	assert.NotContains(t, tr.Players, eliminated)
	assert.Empty(t, h.notif.grants)

	out := r1[1].Team1[0]
	tr, err = h.m.Substitute(ctx, tr.ID, out, "sub2", creator)
	require.NoError(t, err)
	pending, _ := tr.Bracket.Match(r1[1].ID)
	assert.Contains(t, pending.Team1, "sub2")
	assert.NotContains(t, pending.Team1, out)
	assert.Equal(t, []string{pending.ChannelID + ":sub2"}, h.notif.grants)
	assert.Equal(t, []string{pending.ChannelID + ":" + out}, h.notif.revokes)

	_, err = h.m.Substitute(ctx, tr.ID, "sub2", r1[1].Team2[0], creator)
	require.ErrorIs(t, err, ErrAlreadyJoined)
	_, err = h.m.Substitute(ctx, tr.ID, "ghost", "x", creator)
	require.ErrorIs(t, err, ErrNotInRoster)
	_, err = h.m.Substitute(ctx, tr.ID, "sub2", "x", Actor{UserID: "sub2"})
	require.ErrorIs(t, err, ErrNotCreator)

	h.store.bans["g1|x"] = true
	_, err = h.m.Substitute(ctx, tr.ID, "sub2", "x", creator)
	require.ErrorIs(t, err, ErrBanned)
}

func TestRemovePlayer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	solo := h.create(t, Mode1v1, 4, SelectionRandom, StartAutomatic)
	solo = h.fill(t, solo.ID, 4)
	lone := solo.Bracket.Round(1)[0].Team1[0]
	_, err := h.m.RemovePlayer(ctx, solo.ID, lone, "", creator)
	require.ErrorIs(t, err, ErrLastTeamMember)
	assert.Equal(t, KindConflict, KindOf(err))

	duo := h.create(t, Mode2v2, 4, SelectionRandom, StartAutomatic)
	duo = h.fill(t, duo.ID, 4)
	m := duo.Bracket.Round(1)[0]
	first, second := m.Team1[0], m.Team1[1]

	duo, err = h.m.RemovePlayer(ctx, duo.ID, first, "", creator)
	require.NoError(t, err)
	cur, _ := duo.Bracket.Match(m.ID)
	assert.Equal(t, []string{second}, cur.Team1)
	assert.Len(t, duo.Players, 3)
	assert.Contains(t, h.notif.revokes, m.ChannelID+":"+first)

	_, err = h.m.RemovePlayer(ctx, duo.ID, second, "", creator)
	require.ErrorIs(t, err, ErrLastTeamMember)

	duo, err = h.m.RemovePlayer(ctx, duo.ID, second, "bench", creator)
	require.NoError(t, err)
	cur, _ = duo.Bracket.Match(m.ID)
	assert.Equal(t, []string{"bench"}, cur.Team1)
}
