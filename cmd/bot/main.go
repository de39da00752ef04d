// Command bot starts the simulator discord bot process
//
// this binary:
//  1. loads config from environment variables (.env during dev)
//  2. opens the database and applies migrations
//  3. creates a discord session and registers the app handlers
//  4. opens the gateway, restores tournaments and waits for a signal from the OS to exit
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"

	"github.com/jose-valero/simulator-bot/internal/app"
	"github.com/jose-valero/simulator-bot/internal/store"
	"github.com/jose-valero/simulator-bot/pkg/config"
)

func main() {
	// load .env for local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	st, err := store.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("store error: %v", err)
	}
	defer st.Close()

	// the prefix "Bot " is required for bot tokens
	sess, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		log.Fatalf("discord session error: %v", err)
	}

	sess.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages | // MessageCreate in match channels
		discordgo.IntentsMessageContent // the assistant reads what players write

	b := app.NewBot(sess, cfg, st)
	b.RegisterHandlers()

	if err := sess.Open(); err != nil {
		log.Fatalf("open gateway error: %v", err)
	}
	defer sess.Close()

	if err := b.Start(ctx); err != nil {
		log.Fatalf("start error: %v", err)
	}
	defer b.Stop()

	log.Printf("🤖 bot ready - %s", cfg.Redacted())

	// block till SIGINT/SIGTERM for a clean shutdown
	<-ctx.Done()
	log.Printf("shutting down")
}
