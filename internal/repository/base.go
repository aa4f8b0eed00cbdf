// Package repository provides the gorm-backed stores: profiles, the like graph and view history.
package repository

import (
	"context"
	"errors"

	"psymatch/internal/models"
	"psymatch/internal/observability"

	"gorm.io/gorm"
)

func isPostgres(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}

// fail passes AppErrors through and wraps anything else as an internal error,
// logging it with the table and operation.
func fail(ctx context.Context, log *observability.RepoLogger, operation string, err error) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	log.LogError(ctx, err, operation)
	return models.NewInternalError(err)
}

func toSet(ids []int64) models.IDSet {
	set := make(models.IDSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
