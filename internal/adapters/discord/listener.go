package discord

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/simulator-bot/internal/confirm"
)

// MessageSink consumes chat messages from match channels.
type MessageSink interface {
	HandleMessage(ctx context.Context, msg confirm.Message) confirm.Action
}

// ChatListener forwards human messages to the confirmation protocol.
// Gateway resumes can replay a MessageCreate, so each message id is handled once.
type ChatListener struct {
	sink    MessageSink
	timeout time.Duration

	recent sync.Map // messageID -> time.Time
	ttl    time.Duration
	now    func() time.Time
}

func NewChatListener(sink MessageSink) *ChatListener {
	return &ChatListener{sink: sink, timeout: 20 * time.Second, ttl: 2 * time.Minute, now: time.Now}
}

func (l *ChatListener) allowOnce(key string) bool {
	now := l.now()
	if v, ok := l.recent.Load(key); ok && now.Sub(v.(time.Time)) < l.ttl {
		return false
	}
	l.recent.Store(key, now)
	return true
}

// sweep drops dedupe entries older than the ttl.
func (l *ChatListener) sweep() {
	now := l.now()
	l.recent.Range(func(k, v any) bool {
		if now.Sub(v.(time.Time)) >= l.ttl {
			l.recent.Delete(k)
		}
		return true
	})
}

// toMessage reports false for anything the protocol should never see.
func toMessage(m *discordgo.Message) (confirm.Message, bool) {
	if m == nil || m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return confirm.Message{}, false
	}
	text := strings.TrimSpace(m.Content)
	if text == "" {
		return confirm.Message{}, false
	}
	return confirm.Message{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		AuthorID:  m.Author.ID,
		Content:   text,
	}, true
}

func (l *ChatListener) HandleMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil {
		return
	}
	msg, ok := toMessage(m.Message)
	if !ok || !l.allowOnce(m.ID) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	if act := l.sink.HandleMessage(ctx, msg); act != confirm.ActionIgnored {
		log.Printf("[listener] ch=%s author=%s → %s", msg.ChannelID, msg.AuthorID, act)
	}
}

// Run sweeps the dedupe cache until ctx is done.
func (l *ChatListener) Run(ctx context.Context) {
	t := time.NewTicker(l.ttl)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.sweep()
		}
	}
}
