package repository

import (
	"context"

	"psymatch/internal/models"
	"psymatch/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ViewedRepository remembers which candidates each viewer has already been shown.
type ViewedRepository interface {
	// MarkViewed is idempotent.
	MarkViewed(ctx context.Context, viewerID, candidateID int64) error
	Viewed(ctx context.Context, viewerID int64) (models.IDSet, error)
	// ResetViewed forgets the viewer's history and returns how many records were removed.
	ResetViewed(ctx context.Context, viewerID int64) (int64, error)
}

type viewedRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewViewedRepository creates a new view history repository
func NewViewedRepository(db *gorm.DB) ViewedRepository {
	return &viewedRepository{db: db, log: observability.NewRepoLogger("viewed_records")}
}

func (r *viewedRepository) MarkViewed(ctx context.Context, viewerID, candidateID int64) error {
	defer observability.TrackQuery("insert", "viewed_records")()

	record := models.ViewedRecord{ViewerID: viewerID, CandidateID: candidateID}
	if err := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&record).Error; err != nil {
		return fail(ctx, r.log, "mark_viewed", err)
	}
	return nil
}

func (r *viewedRepository) Viewed(ctx context.Context, viewerID int64) (models.IDSet, error) {
	defer observability.TrackQuery("select", "viewed_records")()

	var ids []int64
	if err := r.db.WithContext(ctx).
		Model(&models.ViewedRecord{}).
		Where("viewer_id = ?", viewerID).
		Pluck("candidate_id", &ids).Error; err != nil {
		return nil, fail(ctx, r.log, "viewed", err)
	}
	return toSet(ids), nil
}

func (r *viewedRepository) ResetViewed(ctx context.Context, viewerID int64) (int64, error) {
	defer observability.TrackQuery("delete", "viewed_records")()

	res := r.db.WithContext(ctx).Where("viewer_id = ?", viewerID).Delete(&models.ViewedRecord{})
	if res.Error != nil {
		return 0, fail(ctx, r.log, "reset_viewed", res.Error)
	}
	r.log.LogWrite(ctx, "reset_viewed", "viewer_id", viewerID, "removed", res.RowsAffected)
	return res.RowsAffected, nil
}
