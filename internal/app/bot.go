package app

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"

	disc "github.com/jose-valero/simulator-bot/internal/adapters/discord"
	"github.com/jose-valero/simulator-bot/internal/adapters/openai"
	"github.com/jose-valero/simulator-bot/internal/confirm"
	"github.com/jose-valero/simulator-bot/internal/simulator"
	"github.com/jose-valero/simulator-bot/internal/store"
	"github.com/jose-valero/simulator-bot/pkg/config"
)

// Records is the storage the app layer needs beyond the simulator contract.
type Records interface {
	simulator.Store
	Rank(ctx context.Context, guildID string, limit int) ([]store.Standing, error)
	PlayerStanding(ctx context.Context, guildID, userID string) (store.Standing, error)
	Ban(ctx context.Context, guildID, userID, reason string) error
	Unban(ctx context.Context, guildID, userID string) (bool, error)
	ReadConfig(ctx context.Context, key, def string) (string, error)
	WriteConfig(ctx context.Context, key, value string) error
	Ping(ctx context.Context) error
}

type Bot struct {
	Sess   *discordgo.Session
	Cfg    *config.Config
	Store  Records
	Sim    *simulator.Manager
	Proto  *confirm.Protocol
	Policy *disc.Policy

	listener *disc.ChatListener
	worker   *simulator.CleanupWorker
	ops      *http.Server
	stats    *stats

	cancels []func()
	stop    context.CancelFunc
}

func NewBot(s *discordgo.Session, cfg *config.Config, st Records) *Bot {
	notifier := disc.NewNotifier(s)
	sim := simulator.NewManager(st, notifier, simulator.Options{
		InactivityTimeout: cfg.InactivityTimeout,
		CleanupDelay:      cfg.CleanupDelay,
		MinRankedPlayers:  cfg.MinRankedPlayers,
	})

	var cls confirm.Classifier = confirm.KeywordClassifier{}
	if cfg.AssistantAvailable() {
		cls = openai.NewClassifier(cfg.OpenAIKey, cfg.OpenAIModel)
	}

	b := &Bot{
		Sess:   s,
		Cfg:    cfg,
		Store:  st,
		Sim:    sim,
		Policy: disc.NewPolicy(cfg.AdminRoleIDs, cfg.AdminUserIDs),
		worker: simulator.NewCleanupWorker(st, notifier, 5*time.Second),
		stats:  &stats{},
	}
	b.Proto = confirm.New(sim, notifier, cls, sim.Sessions(), confirm.Options{
		WalkoverWindow: cfg.WalkoverWindow,
		NudgeWindow:    cfg.NudgeWindow,
		PauseWindow:    cfg.PauseWindow,
		Budget:         cfg.ConfirmBudget,
		Enabled:        b.assistantEnabled,
	})
	b.listener = disc.NewChatListener(b.Proto)
	return b
}

func assistantKey(guildID string) string { return "assistant:" + guildID }

func (b *Bot) assistantEnabled(ctx context.Context, guildID string) bool {
	v, err := b.Store.ReadConfig(ctx, assistantKey(guildID), "on")
	if err != nil {
		log.Printf("[bot] read assistant flag guild=%s: %v", guildID, err)
	}
	return v == "on"
}

func (b *Bot) RegisterHandlers() {
	// 1) chat listener for match channels
	b.Sess.AddHandler(b.listener.HandleMessageCreate)

	// 2) interaction router (slash/buttons/selects)
	b.Sess.AddHandler(b.HandleInteraction)

	// 3) bus subscribers: protocol + app bookkeeping
	b.cancels = append(b.cancels, b.Proto.Attach(b.Sim.Bus()), b.StartEventSubscribers())
}

// Start restores persisted tournaments, registers commands and runs the
// background loops. Call it after the gateway is open.
func (b *Bot) Start(ctx context.Context) error {
	ctx, b.stop = context.WithCancel(ctx)
	if err := b.Sim.Restore(ctx); err != nil {
		return err
	}
	if err := RegisterCommands(b.Sess, b.Cfg.AppID, b.Cfg.GuildID); err != nil {
		log.Printf("[bot] register commands: %v", err)
	}
	go b.worker.Run(ctx)
	go b.listener.Run(ctx)
	if b.Cfg.OpsAddr != "" {
		b.ops = &http.Server{Addr: b.Cfg.OpsAddr, Handler: b.opsRouter(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := b.ops.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("[ops] server: %v", err)
			}
		}()
		log.Printf("[ops] listening on %s", b.Cfg.OpsAddr)
	}
	return nil
}

func (b *Bot) Stop() {
	for _, c := range b.cancels {
		c()
	}
	b.cancels = nil
	if b.stop != nil {
		b.stop()
	}
	if b.ops != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = b.ops.Shutdown(ctx)
	}
}
