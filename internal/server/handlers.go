package server

import (
	"log/slog"
	"strconv"
	"time"

	"psymatch/internal/bot"
	"psymatch/internal/middleware"
	"psymatch/internal/models"

	"github.com/gofiber/fiber/v2"
)

// HandleUpdate accepts one transport update and dispatches it synchronously.
func (s *Server) HandleUpdate(c *fiber.Ctx) error {
	var u bot.Update
	if err := c.BodyParser(&u); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body", err))
	}

	if !s.allowUpdate(c, u.UserID) {
		return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
			Error: "Too many updates from this user",
		})
	}

	if err := s.dispatcher.Dispatch(c.UserContext(), u); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": "processed"})
}

// allowUpdate applies the per-user update limit. Without Redis, or when Redis
// fails, updates are let through.
func (s *Server) allowUpdate(c *fiber.Ctx, userID int64) bool {
	if s.redis == nil {
		return true
	}
	allowed, err := middleware.CheckRateLimit(c.UserContext(), s.redis, "updates",
		strconv.FormatInt(userID, 10), s.config.UpdateRateLimit, time.Minute)
	if err != nil {
		middleware.Logger.WarnContext(c.UserContext(), "update rate limit check failed",
			slog.Int64("user_id", userID), slog.String("error", err.Error()))
		return true
	}
	return allowed
}

// GetGlobalStats returns service-wide counts.
func (s *Server) GetGlobalStats(c *fiber.Ctx) error {
	stats, err := s.matches.GlobalStats(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stats)
}

// GetUser returns a user with profile and like counts.
func (s *Server) GetUser(c *fiber.Ctx) error {
	id, err := parseUserID(c)
	if err != nil {
		return nil
	}

	ctx := c.UserContext()
	user, err := s.profiles.GetUser(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	if user == nil {
		return respondError(c, models.NewNotFoundError("User", id, models.ErrUserMissing))
	}

	body := fiber.Map{"user": user}
	switch user.Role {
	case models.RoleProvider:
		p, err := s.profiles.GetProviderProfile(ctx, id)
		if err != nil {
			return respondError(c, err)
		}
		body["profile"] = p
	case models.RoleSeeker:
		p, err := s.profiles.GetSeekerProfile(ctx, id)
		if err != nil {
			return respondError(c, err)
		}
		body["profile"] = p
	}

	stats, err := s.matches.UserStats(ctx, user)
	if err != nil {
		return respondError(c, err)
	}
	body["stats"] = stats
	return c.JSON(body)
}

// PurgeUser deletes a user and everything that references them.
func (s *Server) PurgeUser(c *fiber.Ctx) error {
	id, err := parseUserID(c)
	if err != nil {
		return nil
	}
	if err := s.dispatcher.PurgeUser(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ResetViews clears a user's viewed candidates.
func (s *Server) ResetViews(c *fiber.Ctx) error {
	id, err := parseUserID(c)
	if err != nil {
		return nil
	}
	n, err := s.deck.ResetViews(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"reset": n})
}
