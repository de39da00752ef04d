package discord

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/simulator-bot/internal/simulator"
	"github.com/jose-valero/simulator-bot/internal/ui"
)

// panels remembers the live panel message per tournament. It wins over the
// id stored on the record because a recreated panel is not persisted.
type panels struct {
	ids   sync.Map // tournamentID -> messageID
	locks sync.Map // tournamentID -> *sync.Mutex
}

func (p *panels) lock(id string) *sync.Mutex {
	v, _ := p.locks.LoadOrStore(id, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (p *panels) messageID(t *simulator.Tournament) string {
	if v, ok := p.ids.Load(t.ID); ok {
		return v.(string)
	}
	return t.PanelMessageID
}

func (p *panels) remember(tournamentID, messageID string) {
	if tournamentID != "" && messageID != "" {
		p.ids.Store(tournamentID, messageID)
	}
}

func (p *panels) forget(tournamentID string) {
	p.ids.Delete(tournamentID)
	p.locks.Delete(tournamentID)
}

func isDiscordCode(err error, code int) bool {
	var re *discordgo.RESTError
	return errors.As(err, &re) && re.Message != nil && re.Message.Code == code
}

// SendPanel posts a fresh panel and remembers its id.
func (n *Notifier) SendPanel(ctx context.Context, t *simulator.Tournament) (string, error) {
	mu := n.panels.lock(t.ID)
	mu.Lock()
	defer mu.Unlock()
	return n.sendPanel(ctx, t)
}

func (n *Notifier) sendPanel(ctx context.Context, t *simulator.Tournament) (string, error) {
	msg, err := n.s.ChannelMessageSendComplex(t.ChannelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{ui.PanelEmbed(t, n.now())},
		Components: ui.PanelComponents(t),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	log.Printf("[publisher] CREATE id=%s tournament=%s ch=%s", msg.ID, t.ID, t.ChannelID)
	n.panels.remember(t.ID, msg.ID)
	return msg.ID, nil
}

// EditPanel re-renders the panel. A deleted panel (10008) is posted again.
func (n *Notifier) EditPanel(ctx context.Context, t *simulator.Tournament) error {
	mu := n.panels.lock(t.ID)
	mu.Lock()
	defer mu.Unlock()

	msgID := n.panels.messageID(t)
	if msgID == "" {
		_, err := n.sendPanel(ctx, t)
		return err
	}
	embeds := []*discordgo.MessageEmbed{ui.PanelEmbed(t, n.now())}
	comps := ui.PanelComponents(t)
	_, err := n.s.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    t.ChannelID,
		ID:         msgID,
		Embeds:     &embeds,
		Components: &comps,
	}, discordgo.WithContext(ctx))
	if isDiscordCode(err, discordgo.ErrCodeUnknownMessage) {
		log.Printf("[publisher] panel %s gone, recreating tournament=%s", msgID, t.ID)
		n.panels.ids.Delete(t.ID)
		_, err = n.sendPanel(ctx, t)
	}
	if err == nil && t.State.Terminal() {
		n.panels.forget(t.ID)
	}
	return err
}
