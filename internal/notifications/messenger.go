package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"psymatch/internal/models"
	"psymatch/internal/observability"

	"github.com/sony/gobreaker"
)

// Messenger is the fire-and-forget face of a Gateway. Every failure, including a
// panic inside the gateway or an open circuit, is logged and counted, never returned.
type Messenger struct {
	gateway Gateway
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// MessengerConfig tunes the delivery circuit breaker.
type MessengerConfig struct {
	// ConsecutiveFailures trips the breaker. Zero disables tripping.
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

// NewMessenger wraps gateway with a circuit breaker.
func NewMessenger(gateway Gateway, cfg MessengerConfig, logger *slog.Logger) *Messenger {
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = observability.GlobalLogger
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "notifications",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return cfg.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	return &Messenger{gateway: gateway, breaker: breaker, logger: logger}
}

func (m *Messenger) deliver(ctx context.Context, kind string, userID int64, send func() error) {
	_, err := m.breaker.Execute(func() (result interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("gateway panic: %v", r)
			}
		}()
		return nil, send()
	})

	switch {
	case err == nil:
		observability.NotificationsTotal.WithLabelValues(kind, "delivered").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		observability.NotificationsTotal.WithLabelValues(kind, "dropped").Inc()
		m.logger.WarnContext(ctx, "notification dropped, circuit open",
			slog.String("kind", kind), slog.Int64("recipient", userID))
	default:
		observability.NotificationsTotal.WithLabelValues(kind, "failed").Inc()
		m.logger.WarnContext(ctx, "notification delivery failed",
			slog.String("kind", kind), slog.Int64("recipient", userID), slog.String("error", err.Error()))
	}
}

// Notify sends plain text.
func (m *Messenger) Notify(ctx context.Context, userID int64, text string) {
	m.deliver(ctx, KindText, userID, func() error {
		return m.gateway.Notify(ctx, userID, text)
	})
}

// Prompt sends text with a set of reply tokens.
func (m *Messenger) Prompt(ctx context.Context, userID int64, text string, choices []models.Choice) {
	m.deliver(ctx, KindPrompt, userID, func() error {
		return m.gateway.PromptWithChoices(ctx, userID, text, choices)
	})
}

// PresentCandidate sends a candidate card with its action tokens.
func (m *Messenger) PresentCandidate(ctx context.Context, userID int64, view ProfileView, actions []models.Choice) {
	m.deliver(ctx, KindCandidate, userID, func() error {
		return m.gateway.PresentCandidate(ctx, userID, view, actions)
	})
}

// BreakerState reports the delivery breaker state, for readiness checks.
func (m *Messenger) BreakerState() gobreaker.State {
	return m.breaker.State()
}
