package ui

import (
	"fmt"
	"strings"
	"time"
)

func stateTitle(s string) string {
	switch s {
	case "open":
		return "🔓 Registration open"
	case "running":
		return "⚔️ In progress"
	case "finished":
		return "🏁 Finished"
	case "cancelled":
		return "🚫 Cancelled"
	}
	return s
}

func stateColor(s string) int {
	switch s {
	case "open":
		return 0x57F287
	case "running":
		return 0xFEE75C
	case "finished":
		return 0x5865F2
	}
	return 0x808080
}

// humanUntil renders the time left before a deadline.
func humanUntil(now, t time.Time) string {
	if t.IsZero() {
		return "—"
	}
	d := t.Sub(now)
	if d <= 0 {
		return "now"
	}
	if d < time.Minute {
		return "in seconds"
	}
	if d < time.Hour {
		return fmt.Sprintf("in %d min", int(d.Minutes()))
	}
	return fmt.Sprintf("in %dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

// fallback to falsy data
func safe(s string) string {
	t := strings.TrimSpace(s)
	if t == "" || t == "-" {
		return "—"
	}
	return t
}

func mention(id string) string { return "<@" + id + ">" }

func mentionList(ids []string) string {
	if len(ids) == 0 {
		return "—"
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = mention(id)
	}
	return strings.Join(out, ", ")
}

func bulletList(ids []string, max int) string {
	if len(ids) == 0 {
		return "—"
	}
	extra := 0
	if max > 0 && len(ids) > max {
		extra = len(ids) - max
		ids = ids[:max]
	}
	var b strings.Builder
	for _, p := range ids {
		fmt.Fprintf(&b, "• %s\n", mention(p))
	}
	if extra > 0 {
		fmt.Fprintf(&b, "… and %d more\n", extra)
	}
	return strings.TrimRight(b.String(), "\n")
}

func quoteBlock(s string) string {
	if s == "" {
		return "> —"
	}
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = "> " + lines[i]
	}
	return strings.Join(lines, "\n")
}

// clip keeps embed field values under Discord's 1024 character limit.
func clip(s string) string {
	const limit = 1024
	if len(s) <= limit {
		return s
	}
	return s[:limit-1] + "…"
}
