package discord

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/simulator-bot/internal/bracket"
	"github.com/jose-valero/simulator-bot/internal/simulator"
	"github.com/jose-valero/simulator-bot/internal/ui"
)

const memberAllow = discordgo.PermissionViewChannel |
	discordgo.PermissionSendMessages |
	discordgo.PermissionReadMessageHistory |
	discordgo.PermissionAttachFiles

// Notifier reflects tournament state on Discord: the panel, the match
// category and one private text channel per match.
type Notifier struct {
	s      *discordgo.Session
	panels panels
	now    func() time.Time
}

func NewNotifier(s *discordgo.Session) *Notifier {
	return &Notifier{s: s, now: time.Now}
}

var _ simulator.Notifier = (*Notifier)(nil)

func (n *Notifier) botID() string {
	if n.s.State != nil && n.s.State.User != nil {
		return n.s.State.User.ID
	}
	return ""
}

func (n *Notifier) CreateGroup(ctx context.Context, t *simulator.Tournament) (string, error) {
	ch, err := n.s.GuildChannelCreateComplex(t.GuildID, discordgo.GuildChannelCreateData{
		Name: fmt.Sprintf("🏆 simulator %s %s", t.Mode, shortID(t.ID)),
		Type: discordgo.ChannelTypeGuildCategory,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	log.Printf("[notifier] category %s for tournament %s", ch.ID, t.ID)
	return ch.ID, nil
}

// CreateMatchChannel opens a channel only the match players, the creator and
// the bot can see, and posts the match card with the decision buttons.
func (n *Notifier) CreateMatchChannel(ctx context.Context, t *simulator.Tournament, groupID string, m *bracket.Match) (string, error) {
	overwrites := []*discordgo.PermissionOverwrite{
		{ID: t.GuildID, Type: discordgo.PermissionOverwriteTypeRole, Deny: discordgo.PermissionViewChannel},
	}
	allowed := append(m.Participants(), t.CreatorID)
	if bot := n.botID(); bot != "" {
		allowed = append(allowed, bot)
	}
	seen := map[string]bool{}
	for _, id := range allowed {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID: id, Type: discordgo.PermissionOverwriteTypeMember, Allow: memberAllow,
		})
	}

	ch, err := n.s.GuildChannelCreateComplex(t.GuildID, discordgo.GuildChannelCreateData{
		Name:                 channelName(m),
		Type:                 discordgo.ChannelTypeGuildText,
		ParentID:             groupID,
		Topic:                fmt.Sprintf("Simulator %s • %s", t.Mode, m.ID),
		PermissionOverwrites: overwrites,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}

	_, err = n.s.ChannelMessageSendComplex(ch.ID, &discordgo.MessageSend{
		Content:    strings.Join(mentionAll(m.Participants()), " "),
		Embeds:     []*discordgo.MessageEmbed{ui.MatchEmbed(t, m)},
		Components: ui.MatchComponents(t, m),
	}, discordgo.WithContext(ctx))
	if err != nil {
		log.Printf("[notifier] match card in %s: %v", ch.ID, err)
	}
	return ch.ID, nil
}

// DeleteChannel treats an already missing channel as deleted.
func (n *Notifier) DeleteChannel(ctx context.Context, channelID string) error {
	if channelID == "" {
		return nil
	}
	_, err := n.s.ChannelDelete(channelID, discordgo.WithContext(ctx))
	if isDiscordCode(err, discordgo.ErrCodeUnknownChannel) {
		return nil
	}
	return err
}

func (n *Notifier) DeleteGroup(ctx context.Context, groupID string) error {
	return n.DeleteChannel(ctx, groupID)
}

func (n *Notifier) GrantAccess(ctx context.Context, channelID, userID string) error {
	return n.s.ChannelPermissionSet(channelID, userID, discordgo.PermissionOverwriteTypeMember,
		memberAllow, 0, discordgo.WithContext(ctx))
}

func (n *Notifier) RevokeAccess(ctx context.Context, channelID, userID string) error {
	return n.s.ChannelPermissionDelete(channelID, userID, discordgo.WithContext(ctx))
}

func (n *Notifier) PostMessage(ctx context.Context, channelID, text string) error {
	_, err := n.s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:         text,
		AllowedMentions: &discordgo.MessageAllowedMentions{Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeUsers}},
	}, discordgo.WithContext(ctx))
	return err
}

func channelName(m *bracket.Match) string {
	return strings.ReplaceAll(m.ID, "match", "m")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func mentionAll(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = "<@" + id + ">"
	}
	return out
}
