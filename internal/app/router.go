// internal/app/router.go
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	d "github.com/jose-valero/simulator-bot/internal/adapters/discord"
	"github.com/jose-valero/simulator-bot/internal/ident"
	"github.com/jose-valero/simulator-bot/internal/simulator"
	"github.com/jose-valero/simulator-bot/internal/store"
	"github.com/jose-valero/simulator-bot/internal/ui"
)

const opTimeout = 2 * time.Minute

func (b *Bot) HandleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleSlash(s, i)
	case discordgo.InteractionMessageComponent:
		b.handleComponent(s, i)
	}
}

// errorReply maps a rejected operation to exactly one user-facing line.
func errorReply(err error) string {
	switch simulator.KindOf(err) {
	case simulator.KindValidation:
		return "⚠️ " + err.Error()
	case simulator.KindAuthorization:
		return "⛔ " + err.Error()
	case simulator.KindNotFound:
		return "🔎 " + err.Error()
	case simulator.KindConflict:
		return "🚧 " + err.Error()
	}
	if errors.Is(err, ident.ErrInvalid) {
		return "⚠️ That user could not be recognized."
	}
	log.Printf("[router] unexpected error: %v", err)
	return "💥 Something went wrong, please try again."
}

// run acks the interaction, executes op and fills in the single reply.
func (b *Bot) run(s *discordgo.Session, i *discordgo.InteractionCreate, op func(ctx context.Context) (string, error)) {
	if err := d.DeferEphemeral(s, i); err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	msg, err := op(ctx)
	if err != nil {
		msg = errorReply(err)
	}
	_ = d.EditDeferred(s, i, msg)
}

// ------------------- Slash -------------------

type options map[string]*discordgo.ApplicationCommandInteractionDataOption

func optionsOf(i *discordgo.InteractionCreate) options {
	o := options{}
	for _, opt := range i.ApplicationCommandData().Options {
		o[opt.Name] = opt
	}
	return o
}

func (o options) str(name string) string {
	if v, ok := o[name]; ok && v.Type == discordgo.ApplicationCommandOptionString {
		return strings.TrimSpace(v.StringValue())
	}
	return ""
}

func (o options) int(name string) int {
	if v, ok := o[name]; ok && v.Type == discordgo.ApplicationCommandOptionInteger {
		return int(v.IntValue())
	}
	return 0
}

// user returns "" when the option is absent.
func (o options) user(name string) (string, error) {
	v, ok := o[name]
	if !ok || v.Value == nil {
		return "", nil
	}
	return ident.Normalize(v.Value)
}

func createParams(i *discordgo.InteractionCreate, o options) (simulator.CreateParams, error) {
	mode, err := simulator.ParseMode(o.str("mode"))
	if err != nil {
		return simulator.CreateParams{}, err
	}
	u := d.UserOf(i)
	if u == nil {
		return simulator.CreateParams{}, simulator.ErrInvalidInput
	}
	return simulator.CreateParams{
		GuildID:       i.GuildID,
		ChannelID:     i.ChannelID,
		CreatorID:     u.ID,
		Mode:          mode,
		MaxPlayers:    o.int("players"),
		TeamSelection: simulator.TeamSelection(strings.ToLower(o.str("teams"))),
		StartMode:     simulator.StartMode(strings.ToLower(o.str("start"))),
		Prize:         o.str("prize"),
	}, nil
}

// resolveTournament picks the explicit id, else the tournament owning this
// match channel, else the newest live tournament of this control channel.
func (b *Bot) resolveTournament(ctx context.Context, explicit, channelID string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if ref, ok, err := b.Sim.MatchByChannel(ctx, channelID); err != nil {
		return "", err
	} else if ok {
		return ref.TournamentID, nil
	}
	ts, err := b.Store.ListTournaments(ctx)
	if err != nil {
		return "", err
	}
	var best *simulator.Tournament
	for _, t := range ts {
		if t.ChannelID != channelID || t.State.Terminal() {
			continue
		}
		if best == nil || t.CreatedAt.After(best.CreatedAt) {
			best = t
		}
	}
	if best == nil {
		return "", simulator.ErrTournamentNotFound
	}
	return best.ID, nil
}

func scopeOf(o options, guildID string) (string, string) {
	if o.str("scope") == "global" {
		return store.GlobalScope, "every server"
	}
	return guildID, "this server"
}

func (b *Bot) handleSlash(s *discordgo.Session, i *discordgo.InteractionCreate) {
	name := i.ApplicationCommandData().Name
	o := optionsOf(i)
	actor := b.Policy.Actor(i)
	log.Printf("[slash] %s by %s in channel %s", name, d.SafeName(d.UserOf(i)), i.ChannelID)

	switch name {
	case "simulator":
		b.run(s, i, func(ctx context.Context) (string, error) {
			p, err := createParams(i, o)
			if err != nil {
				return "", err
			}
			t, err := b.Sim.Create(ctx, p)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("✅ Simulator %s created (`%s`). Players join from the panel.", t.Mode, t.ID), nil
		})

	case "substitute":
		b.run(s, i, func(ctx context.Context) (string, error) {
			out, err := o.user("out")
			if err != nil {
				return "", err
			}
			in, err := o.user("in")
			if err != nil {
				return "", err
			}
			id, err := b.resolveTournament(ctx, o.str("tournament"), i.ChannelID)
			if err != nil {
				return "", err
			}
			if _, err := b.Sim.Substitute(ctx, id, out, in, actor); err != nil {
				return "", err
			}
			return fmt.Sprintf("🔁 %s replaces %s.", ident.Mention(in), ident.Mention(out)), nil
		})

	case "removeplayer":
		b.run(s, i, func(ctx context.Context) (string, error) {
			player, err := o.user("player")
			if err != nil {
				return "", err
			}
			repl, err := o.user("replacement")
			if err != nil {
				return "", err
			}
			id, err := b.resolveTournament(ctx, o.str("tournament"), i.ChannelID)
			if err != nil {
				return "", err
			}
			if _, err := b.Sim.RemovePlayer(ctx, id, player, repl, actor); err != nil {
				return "", err
			}
			if repl != "" {
				return fmt.Sprintf("🔁 %s replaces %s.", ident.Mention(repl), ident.Mention(player)), nil
			}
			return fmt.Sprintf("🗑️ %s was removed.", ident.Mention(player)), nil
		})

	case "rank":
		b.handleRank(s, i, o)

	case "assistant":
		if !b.Policy.RequirePrivileged(s, i) {
			return
		}
		state := o.str("state")
		b.run(s, i, func(ctx context.Context) (string, error) {
			if state != "on" && state != "off" {
				return "", simulator.ErrInvalidOption
			}
			if err := b.Store.WriteConfig(ctx, assistantKey(i.GuildID), state); err != nil {
				return "", err
			}
			return "🤖 Result assistant is now **" + state + "**.", nil
		})

	case "ban", "unban":
		if !b.Policy.RequirePrivileged(s, i) {
			return
		}
		b.run(s, i, func(ctx context.Context) (string, error) {
			user, err := o.user("user")
			if err != nil {
				return "", err
			}
			if user == "" {
				return "", simulator.ErrInvalidInput
			}
			guild, where := scopeOf(o, i.GuildID)
			if name == "ban" {
				if err := b.Store.Ban(ctx, guild, user, o.str("reason")); err != nil {
					return "", err
				}
				return fmt.Sprintf("🔨 %s is banned from simulators in %s.", ident.Mention(user), where), nil
			}
			lifted, err := b.Store.Unban(ctx, guild, user)
			if err != nil {
				return "", err
			}
			if !lifted {
				return fmt.Sprintf("ℹ️ %s was not banned in %s.", ident.Mention(user), where), nil
			}
			return fmt.Sprintf("✅ %s can play again in %s.", ident.Mention(user), where), nil
		})
	}
}

func (b *Bot) handleRank(s *discordgo.Session, i *discordgo.InteractionCreate, o options) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	guild, where := scopeOf(o, i.GuildID)
	player, err := o.user("player")
	if err != nil {
		_ = d.SendEphemeral(s, i, errorReply(err))
		return
	}

	var rows []store.Standing
	if player != "" {
		st, err := b.Store.PlayerStanding(ctx, guild, player)
		if err != nil {
			_ = d.SendEphemeral(s, i, errorReply(err))
			return
		}
		rows = append(rows, st)
	} else if rows, err = b.Store.Rank(ctx, guild, 10); err != nil {
		_ = d.SendEphemeral(s, i, errorReply(err))
		return
	}
	_ = d.SendEphemeralEmbed(s, i, ui.RankEmbed(where, standings(rows)))
}

func standings(rows []store.Standing) []ui.Standing {
	out := make([]ui.Standing, 0, len(rows))
	for _, r := range rows {
		out = append(out, ui.Standing{UserID: r.UserID, Wins: r.Wins, Losses: r.Losses, Points: r.Points})
	}
	return out
}

// ------------------- Components -------------------

func (b *Bot) handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.MessageComponentData()
	cid, ok := ui.ParseCustomID(data.CustomID)
	if !ok {
		return
	}
	u := d.UserOf(i)
	if u == nil {
		_ = d.SendEphemeral(s, i, "⚠️ Could not identify you.")
		return
	}
	actor := b.Policy.Actor(i)
	log.Printf("[component] %s by %s", data.CustomID, d.SafeName(u))

	b.run(s, i, func(ctx context.Context) (string, error) {
		switch cid.Action {
		case ui.ActionJoin:
			t, err := b.Sim.Join(ctx, cid.TournamentID, u.ID)
			if err != nil {
				return "", err
			}
			if t.State == simulator.StateRunning {
				return "🙌 You're in! The roster is full and the bracket is ready.", nil
			}
			if team := t.TeamOf(u.ID); team != "" {
				return "🙌 You're in, playing for **" + team + "**.", nil
			}
			return "🙌 You're in!", nil

		case ui.ActionLeave:
			if _, err := b.Sim.Leave(ctx, cid.TournamentID, u.ID); err != nil {
				return "", err
			}
			return "👋 You left the simulator.", nil

		case ui.ActionTeam:
			if len(data.Values) == 0 {
				return "", simulator.ErrUnknownTeam
			}
			if _, err := b.Sim.AssignTeam(ctx, cid.TournamentID, u.ID, data.Values[0]); err != nil {
				return "", err
			}
			return "✅ You're on **" + data.Values[0] + "**.", nil

		case ui.ActionStart:
			if _, err := b.Sim.Start(ctx, cid.TournamentID, actor); err != nil {
				return "", err
			}
			return "▶️ Simulator started.", nil

		case ui.ActionCancel:
			if _, err := b.Sim.Cancel(ctx, cid.TournamentID, actor); err != nil {
				return "", err
			}
			return "🚫 Simulator cancelled.", nil

		case ui.ActionWin, ui.ActionWO:
			var (
				out *simulator.Outcome
				err error
			)
			if cid.Action == ui.ActionWO {
				out, err = b.Sim.DeclareWalkover(ctx, cid.TournamentID, cid.MatchID, cid.Side, actor)
			} else {
				out, err = b.Sim.DeclareWinner(ctx, cid.TournamentID, cid.MatchID, cid.Side, actor)
			}
			if err != nil {
				return "", err
			}
			return "✅ " + ui.MatchLine(out.Match), nil
		}
		return "", simulator.ErrInvalidOption
	})
}
