package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Token   string
	AppID   string
	GuildID string // empty registers commands globally

	AdminRoleIDs []string
	AdminUserIDs []string

	DatabaseDriver string
	DatabaseURL    string

	OpenAIKey   string
	OpenAIModel string

	InactivityTimeout time.Duration
	CleanupDelay      time.Duration
	MinRankedPlayers  int

	WalkoverWindow time.Duration
	NudgeWindow    time.Duration
	PauseWindow    time.Duration
	ConfirmBudget  int

	OpsAddr string // empty disables the ops HTTP server
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Token:          os.Getenv("DISCORD_BOT_TOKEN"),
		AppID:          os.Getenv("DISCORD_APP_ID"),
		GuildID:        os.Getenv("DISCORD_GUILD_ID"),
		AdminRoleIDs:   splitList(os.Getenv("ADMIN_ROLE_IDS")),
		AdminUserIDs:   splitList(os.Getenv("ADMIN_USER_IDS")),
		DatabaseDriver: firstNonEmpty(os.Getenv("DATABASE_DRIVER"), "sqlite3"),
		DatabaseURL:    firstNonEmpty(os.Getenv("DATABASE_URL"), "file:simulator.db?_busy_timeout=5000"),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:    os.Getenv("OPENAI_MODEL"),
		OpsAddr:        os.Getenv("OPS_ADDR"),
	}

	var errs []error
	dur := func(key string, def time.Duration) time.Duration {
		d, err := durationEnv(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return d
	}
	num := func(key string, def int) int {
		n, err := intEnv(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return n
	}
	cfg.InactivityTimeout = dur("SIM_INACTIVITY_TIMEOUT", 10*time.Minute)
	cfg.CleanupDelay = dur("SIM_CLEANUP_DELAY", 10*time.Second)
	cfg.MinRankedPlayers = num("SIM_MIN_RANKED_PLAYERS", 3)
	cfg.WalkoverWindow = dur("CONFIRM_WALKOVER_WINDOW", 2*time.Minute)
	cfg.NudgeWindow = dur("CONFIRM_NUDGE_WINDOW", 5*time.Minute)
	cfg.PauseWindow = dur("CONFIRM_PAUSE_WINDOW", 3*time.Minute)
	cfg.ConfirmBudget = num("CONFIRM_BUDGET", 8)

	if cfg.Token == "" {
		errs = append(errs, errors.New("missing DISCORD_BOT_TOKEN"))
	}
	if cfg.AppID == "" {
		errs = append(errs, errors.New("missing DISCORD_APP_ID"))
	}
	switch cfg.DatabaseDriver {
	case "sqlite3", "postgres":
	default:
		errs = append(errs, fmt.Errorf("DATABASE_DRIVER must be sqlite3 or postgres, got %q", cfg.DatabaseDriver))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func firstNonEmpty(v, d string) string {
	if v == "" {
		return d
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, id := range strings.Split(raw, ",") {
		id = strings.Trim(strings.TrimSpace(id), `"'`)
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return def, fmt.Errorf("%s: invalid duration %q", key, raw)
	}
	return d, nil
}

func intEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def, fmt.Errorf("%s: invalid number %q", key, raw)
	}
	return n, nil
}

// AssistantAvailable reports whether the OpenAI classifier can be used.
func (c *Config) AssistantAvailable() bool { return c.OpenAIKey != "" }

func (c *Config) Redacted() string {
	tok := "[set]"
	if c.Token == "" {
		tok = "[empty]"
	}
	ai := "keywords"
	if c.AssistantAvailable() {
		ai = "openai:" + firstNonEmpty(c.OpenAIModel, "default")
	}
	return fmt.Sprintf(
		"appID=%s guildID=%s db=%s admins=%d/%d classifier=%s inactivity=%s ops=%q token=%s",
		c.AppID, c.GuildID, c.DatabaseDriver, len(c.AdminRoleIDs), len(c.AdminUserIDs),
		ai, c.InactivityTimeout, c.OpsAddr, tok,
	)
}
