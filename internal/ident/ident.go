// Package ident turns the many shapes a user or team reference takes at the
// Discord boundary into one canonical string id.
package ident

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
)

var ErrInvalid = errors.New("invalid identifier")

// Normalize accepts plain ids, mentions (<@id>, <@!id>), integers, json
// numbers, discord users and members, and maps carrying an "id" key.
func Normalize(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", ErrInvalid
	case string:
		return normString(x)
	case json.Number:
		return normString(x.String())
	case int:
		return nonNegative(int64(x))
	case int64:
		return nonNegative(x)
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float64:
		// discordgo decodes untyped option values as float64
		if x < 0 || x != math.Trunc(x) || x > 1<<53 {
			return "", fmt.Errorf("%w: %v", ErrInvalid, x)
		}
		return strconv.FormatInt(int64(x), 10), nil
	case *discordgo.User:
		if x == nil {
			return "", ErrInvalid
		}
		return normString(x.ID)
	case *discordgo.Member:
		if x == nil || x.User == nil {
			return "", ErrInvalid
		}
		return normString(x.User.ID)
	case map[string]any:
		id, ok := x["id"]
		if !ok {
			return "", fmt.Errorf("%w: object without id", ErrInvalid)
		}
		return Normalize(id)
	case fmt.Stringer:
		return normString(x.String())
	}
	return "", fmt.Errorf("%w: unsupported %T", ErrInvalid, v)
}

// All normalizes a list and drops duplicates, keeping first occurrence order.
func All(vs []any) ([]string, error) {
	out := make([]string, 0, len(vs))
	seen := make(map[string]struct{}, len(vs))
	for _, v := range vs {
		id, err := Normalize(v)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

// Mention renders id the way Discord pings a user.
func Mention(id string) string { return "<@" + id + ">" }

func normString(s string) (string, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "<@") && strings.HasSuffix(s, ">") {
		s = strings.TrimPrefix(strings.TrimSuffix(s[2:], ">"), "!")
	}
	if s == "" || strings.ContainsAny(s, " \t\n<>@") {
		return "", fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	return s, nil
}

func nonNegative(n int64) (string, error) {
	if n < 0 {
		return "", fmt.Errorf("%w: %d", ErrInvalid, n)
	}
	return strconv.FormatInt(n, 10), nil
}
