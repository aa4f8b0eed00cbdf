package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"psymatch/internal/models"
)

// Envelope kinds.
const (
	KindText      = "text"
	KindPrompt    = "prompt"
	KindCandidate = "candidate"
)

// ProfileView is a rendered candidate profile.
type ProfileView struct {
	CandidateID int64   `json:"candidate_id"`
	Text        string  `json:"text"`
	PhotoRef    *string `json:"photo_ref,omitempty"`
}

// Envelope is the JSON document published for the transport gateway.
type Envelope struct {
	Kind      string          `json:"kind"`
	UserID    int64           `json:"user_id"`
	Text      string          `json:"text,omitempty"`
	Choices   []models.Choice `json:"choices,omitempty"`
	Candidate *ProfileView    `json:"candidate,omitempty"`
}

// Gateway is the outbound boundary to the chat transport.
type Gateway interface {
	Notify(ctx context.Context, userID int64, text string) error
	PromptWithChoices(ctx context.Context, userID int64, text string, choices []models.Choice) error
	PresentCandidate(ctx context.Context, userID int64, view ProfileView, actions []models.Choice) error
}

// RedisGateway publishes envelopes on the user's notification channel.
type RedisGateway struct {
	notifier *Notifier
}

// NewRedisGateway returns a gateway publishing through n.
func NewRedisGateway(n *Notifier) *RedisGateway {
	return &RedisGateway{notifier: n}
}

func (g *RedisGateway) publish(ctx context.Context, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return g.notifier.PublishUser(ctx, env.UserID, string(payload))
}

// Notify publishes a plain text message.
func (g *RedisGateway) Notify(ctx context.Context, userID int64, text string) error {
	return g.publish(ctx, Envelope{Kind: KindText, UserID: userID, Text: text})
}

// PromptWithChoices publishes a message with reply tokens.
func (g *RedisGateway) PromptWithChoices(ctx context.Context, userID int64, text string, choices []models.Choice) error {
	return g.publish(ctx, Envelope{Kind: KindPrompt, UserID: userID, Text: text, Choices: choices})
}

// PresentCandidate publishes a candidate card with its action tokens.
func (g *RedisGateway) PresentCandidate(ctx context.Context, userID int64, view ProfileView, actions []models.Choice) error {
	return g.publish(ctx, Envelope{Kind: KindCandidate, UserID: userID, Candidate: &view, Choices: actions})
}

// LogGateway writes envelopes to a logger. Used when Redis is unavailable.
type LogGateway struct {
	logger *slog.Logger
}

// NewLogGateway returns a gateway that only logs.
func NewLogGateway(logger *slog.Logger) *LogGateway {
	return &LogGateway{logger: logger}
}

func (g *LogGateway) log(ctx context.Context, env Envelope) error {
	g.logger.InfoContext(ctx, "outbound message",
		slog.String("kind", env.Kind),
		slog.Int64("user_id", env.UserID),
		slog.String("text", env.Text),
		slog.Int("choices", len(env.Choices)),
	)
	return nil
}

// Notify logs a plain text message.
func (g *LogGateway) Notify(ctx context.Context, userID int64, text string) error {
	return g.log(ctx, Envelope{Kind: KindText, UserID: userID, Text: text})
}

// PromptWithChoices logs a prompt.
func (g *LogGateway) PromptWithChoices(ctx context.Context, userID int64, text string, choices []models.Choice) error {
	return g.log(ctx, Envelope{Kind: KindPrompt, UserID: userID, Text: text, Choices: choices})
}

// PresentCandidate logs a candidate card.
func (g *LogGateway) PresentCandidate(ctx context.Context, userID int64, view ProfileView, actions []models.Choice) error {
	return g.log(ctx, Envelope{Kind: KindCandidate, UserID: userID, Text: view.Text, Choices: actions})
}
