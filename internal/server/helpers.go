package server

import (
	"errors"
	"strconv"

	"psymatch/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten means a helper already wrote the HTTP response. Handlers
// return nil when they see it so the ErrorHandler does not overwrite it.
var errResponseWritten = errors.New("response already written")

// parseUserID reads the :id route parameter as a transport user id. Transport
// ids exceed 32 bits, so ParamsInt is not used.
func parseUserID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid user ID"))
		return 0, errResponseWritten
	}
	return id, nil
}

func respondError(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, models.StatusFor(err), err)
}
