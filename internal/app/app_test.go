package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jose-valero/simulator-bot/internal/ident"
	"github.com/jose-valero/simulator-bot/internal/simulator"
	"github.com/jose-valero/simulator-bot/internal/store"
)

func setupBot(t *testing.T) (*Bot, *store.SQLStore) {
	t.Helper()
	st, err := store.Open(context.Background(), store.DriverSQLite, "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	b := &Bot{Store: st, Sim: simulator.NewManager(st, nil, simulator.Options{}), stats: &stats{}}
	return b, st
}

func seed(t *testing.T, st *store.SQLStore, id, channel string, state simulator.State, created time.Time) {
	t.Helper()
	require.NoError(t, st.CreateTournament(context.Background(), &simulator.Tournament{
		ID: id, GuildID: "g1", ChannelID: channel, CreatorID: "boss",
		Mode: simulator.Mode1v1, MaxPlayers: 2, PlayersPerTeam: 1, TotalTeams: 2,
		TeamSelection: simulator.SelectionRandom, StartMode: simulator.StartManual,
		State: state, CreatedAt: created, UpdatedAt: created,
	}))
}

func TestErrorReply_OneLinePerKind(t *testing.T) {
	assert.Equal(t, "⚠️ "+simulator.ErrNotFull.Error(), errorReply(simulator.ErrNotFull))
	assert.Equal(t, "⛔ "+simulator.ErrNotCreator.Error(), errorReply(simulator.ErrNotCreator))
	assert.Equal(t, "🔎 "+simulator.ErrTournamentNotFound.Error(), errorReply(simulator.ErrTournamentNotFound))
	assert.Equal(t, "🚧 "+simulator.ErrTournamentFull.Error(), errorReply(simulator.ErrTournamentFull))
	wrapped := fmt.Errorf("%w: 1v1 accepts 2, 4", simulator.ErrInvalidQuantity)
	assert.Equal(t, "⚠️ "+wrapped.Error(), errorReply(wrapped))
	assert.Contains(t, errorReply(ident.ErrInvalid), "could not be recognized")
	assert.Contains(t, errorReply(errors.New("db down")), "Something went wrong")
}

func slash(opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:      discordgo.InteractionApplicationCommand,
		GuildID:   "g1",
		ChannelID: "control",
		Member:    &discordgo.Member{User: &discordgo.User{ID: "boss"}},
		Data:      discordgo.ApplicationCommandInteractionData{Name: "simulator", Options: opts},
	}}
}

func strOpt(name, v string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionString, Value: v}
}

func TestCreateParams(t *testing.T) {
	i := slash(
		strOpt("mode", "2V2"),
		&discordgo.ApplicationCommandInteractionDataOption{Name: "players", Type: discordgo.ApplicationCommandOptionInteger, Value: float64(8)},
		strOpt("teams", "Manual"),
		strOpt("start", "automatic"),
		strOpt("prize", "  Nitro "),
	)
	p, err := createParams(i, optionsOf(i))
	require.NoError(t, err)
	assert.Equal(t, simulator.CreateParams{
		GuildID: "g1", ChannelID: "control", CreatorID: "boss",
		Mode: simulator.Mode2v2, MaxPlayers: 8,
		TeamSelection: simulator.SelectionManual, StartMode: simulator.StartAutomatic,
		Prize: "Nitro",
	}, p)

	bad := slash(strOpt("mode", "5v5"))
	_, err = createParams(bad, optionsOf(bad))
	assert.ErrorIs(t, err, simulator.ErrInvalidMode)
}

func TestOptions_User(t *testing.T) {
	o := options{
		"in":  {Name: "in", Type: discordgo.ApplicationCommandOptionUser, Value: "<@!42>"},
		"bad": {Name: "bad", Type: discordgo.ApplicationCommandOptionUser, Value: ""},
	}
	id, err := o.user("in")
	require.NoError(t, err)
	assert.Equal(t, "42", id)

	id, err = o.user("missing")
	require.NoError(t, err)
	assert.Empty(t, id)

	_, err = o.user("bad")
	assert.ErrorIs(t, err, ident.ErrInvalid)
}

func TestResolveTournament(t *testing.T) {
	b, st := setupBot(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)
	seed(t, st, "old", "control", simulator.StateOpen, base)
	seed(t, st, "new", "control", simulator.StateOpen, base.Add(time.Minute))
	seed(t, st, "done", "control", simulator.StateFinished, base.Add(time.Hour))
	seed(t, st, "elsewhere", "other", simulator.StateOpen, base.Add(time.Hour))

	id, err := b.resolveTournament(ctx, "", "control")
	require.NoError(t, err)
	assert.Equal(t, "new", id)

	id, err = b.resolveTournament(ctx, "explicit", "control")
	require.NoError(t, err)
	assert.Equal(t, "explicit", id)

	_, err = b.resolveTournament(ctx, "", "nowhere")
	assert.ErrorIs(t, err, simulator.ErrTournamentNotFound)
}

func TestOpsRouter(t *testing.T) {
	b, st := setupBot(t)
	seed(t, st, "t1", "control", simulator.StateOpen, time.Now())
	b.stats.Started.Add(2)
	srv := httptest.NewServer(b.opsRouter())
	defer srv.Close()

	res, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	var health struct {
		Status string    `json:"status"`
		Events statsView `json:"events"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, int64(2), health.Events.Started)

	res2, err := http.Get(srv.URL + "/tournaments/t1")
	require.NoError(t, err)
	defer res2.Body.Close()
	assert.Equal(t, http.StatusOK, res2.StatusCode)
	var tr simulator.Tournament
	require.NoError(t, json.NewDecoder(res2.Body).Decode(&tr))
	assert.Equal(t, "t1", tr.ID)

	res3, err := http.Get(srv.URL + "/tournaments/missing")
	require.NoError(t, err)
	defer res3.Body.Close()
	assert.Equal(t, http.StatusNotFound, res3.StatusCode)
}
