package discord

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jose-valero/simulator-bot/internal/confirm"
)

type sinkRecorder struct {
	mu   sync.Mutex
	msgs []confirm.Message
}

func (s *sinkRecorder) HandleMessage(_ context.Context, m confirm.Message) confirm.Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, m)
	return confirm.ActionCounted
}

func create(id, guild, author, content string, bot bool) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{Message: &discordgo.Message{
		ID: id, GuildID: guild, ChannelID: "chan-1", Content: content,
		Author: &discordgo.User{ID: author, Bot: bot},
	}}
}

func TestChatListener_ForwardsHumanGuildMessages(t *testing.T) {
	sink := &sinkRecorder{}
	l := NewChatListener(sink)

	l.HandleMessageCreate(nil, create("m1", "g1", "a1", "  we won gg  ", false))

	require.Len(t, sink.msgs, 1)
	assert.Equal(t, confirm.Message{GuildID: "g1", ChannelID: "chan-1", AuthorID: "a1", Content: "we won gg"}, sink.msgs[0])
}

func TestChatListener_Filters(t *testing.T) {
	sink := &sinkRecorder{}
	l := NewChatListener(sink)

	l.HandleMessageCreate(nil, create("m1", "g1", "bot", "we won", true))
	l.HandleMessageCreate(nil, create("m2", "", "a1", "we won", false))
	l.HandleMessageCreate(nil, create("m3", "g1", "a1", "   ", false))
	l.HandleMessageCreate(nil, &discordgo.MessageCreate{Message: &discordgo.Message{ID: "m4", GuildID: "g1", Content: "x"}})
	l.HandleMessageCreate(nil, nil)

	assert.Empty(t, sink.msgs)
}

func TestChatListener_DedupesReplays(t *testing.T) {
	sink := &sinkRecorder{}
	l := NewChatListener(sink)
	now := time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.HandleMessageCreate(nil, create("m1", "g1", "a1", "we won", false))
	l.HandleMessageCreate(nil, create("m1", "g1", "a1", "we won", false))
	require.Len(t, sink.msgs, 1)

	now = now.Add(3 * time.Minute)
	l.sweep()
	_, kept := l.recent.Load("m1")
	assert.False(t, kept)
}
