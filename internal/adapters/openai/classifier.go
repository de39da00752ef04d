// Package openai classifies match-channel chat with a chat completion model.
// Any API or parsing failure falls back to the keyword classifier.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	gpt "github.com/sashabaranov/go-openai"

	"github.com/jose-valero/simulator-bot/internal/bracket"
	"github.com/jose-valero/simulator-bot/internal/confirm"
)

const systemPrompt = `You read one chat message written by a player inside a private match channel of a gaming tournament.
Classify it and answer with a JSON object only:
{"intent": "...", "winner": "...", "confidence": 0.0}

intent is one of:
- "victory": the message states who won the match
- "walkover": the message says the other team did not show up or abandoned
- "confirm": the message agrees with a result someone else reported
- "deny": the message disputes a result someone else reported
- "in_progress": the match is still being played
- "none": anything else

winner is "author" if the author's team won, "opponent" if the other team won, "none" otherwise.
confidence is between 0 and 1. Messages may be in English, Spanish or Portuguese.`

type Classifier struct {
	client      *gpt.Client
	model       string
	maxTokens   int
	temperature float32
	fallback    confirm.Classifier
}

func NewClassifier(apiKey, model string) *Classifier {
	return NewClassifierWithClient(gpt.NewClient(apiKey), model)
}

func NewClassifierWithClient(client *gpt.Client, model string) *Classifier {
	if model == "" {
		model = gpt.GPT4oMini
	}
	return &Classifier{
		client:      client,
		model:       model,
		maxTokens:   60,
		temperature: 0,
		fallback:    confirm.KeywordClassifier{},
	}
}

type reply struct {
	Intent     string  `json:"intent"`
	Winner     string  `json:"winner"`
	Confidence float64 `json:"confidence"`
}

func (c *Classifier) Classify(ctx context.Context, text string, rc confirm.RosterContext) (confirm.Classification, error) {
	out, err := c.classify(ctx, text, rc)
	if err != nil {
		log.Printf("[assistant] falling back to keywords: %v", err)
		return c.fallback.Classify(ctx, text, rc)
	}
	return out, nil
}

func (c *Classifier) classify(ctx context.Context, text string, rc confirm.RosterContext) (confirm.Classification, error) {
	user := text
	if rc.Pending {
		user = "(a result claim from the other team is waiting for an answer)\n" + text
	}
	resp, err := c.client.CreateChatCompletion(ctx, gpt.ChatCompletionRequest{
		Model: c.model,
		Messages: []gpt.ChatCompletionMessage{
			{Role: gpt.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: gpt.ChatMessageRoleUser, Content: user},
		},
		MaxTokens:      c.maxTokens,
		Temperature:    c.temperature,
		ResponseFormat: &gpt.ChatCompletionResponseFormat{Type: gpt.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return confirm.Classification{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return confirm.Classification{}, fmt.Errorf("no response from OpenAI")
	}
	return parseReply(resp.Choices[0].Message.Content, rc.AuthorSide)
}

func parseReply(raw string, author bracket.Side) (confirm.Classification, error) {
	var r reply
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &r); err != nil {
		return confirm.Classification{}, fmt.Errorf("decode reply %q: %w", raw, err)
	}
	intent := confirm.Intent(strings.ToLower(r.Intent))
	switch intent {
	case confirm.IntentVictory, confirm.IntentWalkover, confirm.IntentConfirm,
		confirm.IntentDeny, confirm.IntentInProgress, confirm.IntentNone:
	default:
		return confirm.Classification{}, fmt.Errorf("unknown intent %q", r.Intent)
	}
	out := confirm.Classification{Intent: intent, Confidence: r.Confidence}
	switch strings.ToLower(r.Winner) {
	case "author":
		out.Winner = author
	case "opponent":
		out.Winner = author.Opponent()
	}
	if intent == confirm.IntentWalkover && out.Winner == bracket.SideNone {
		out.Winner = author
	}
	return out, nil
}
