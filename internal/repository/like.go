package repository

import (
	"context"
	"encoding/binary"
	"hash/fnv"

	"psymatch/internal/keylock"
	"psymatch/internal/models"
	"psymatch/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LikeRepository stores directed like edges and answers mutuality queries.
type LikeRepository interface {
	// CreateLike records from→to. A repeated like returns Created=false and is not an error.
	CreateLike(ctx context.Context, from, to int64) (models.LikeResult, error)
	OutgoingTargets(ctx context.Context, userID int64) (models.IDSet, error)
	// IncomingLikers lists who liked userID, newest first.
	IncomingLikers(ctx context.Context, userID int64) ([]models.Liker, error)
	MutualPartners(ctx context.Context, userID int64) ([]models.MutualPartner, error)
	CountMutualPairs(ctx context.Context) (int64, error)
	CountLikes(ctx context.Context) (int64, error)
	UserCounts(ctx context.Context, userID int64) (given, received, mutual int64, err error)
}

// pairLocks serializes like writes per unordered pair within this process.
// Postgres additionally takes a transaction-scoped advisory lock on the same pair.
var pairLocks keylock.Map[keylock.Pair]

type likeRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewLikeRepository creates a new like repository
func NewLikeRepository(db *gorm.DB) LikeRepository {
	return &likeRepository{db: db, log: observability.NewRepoLogger("like_edges")}
}

func advisoryKey(p keylock.Pair) int64 {
	h := fnv.New64a()
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(p.Low))
	binary.BigEndian.PutUint64(buf[8:], uint64(p.High))
	_, _ = h.Write(buf[:])
	return int64(h.Sum64())
}

func (r *likeRepository) CreateLike(ctx context.Context, from, to int64) (models.LikeResult, error) {
	if from == to {
		return models.LikeResult{}, models.NewValidationError("you cannot like your own profile", models.ErrSelfLike)
	}
	defer observability.TrackQuery("insert", "like_edges")()

	pair := keylock.PairOf(from, to)
	unlock := pairLocks.Lock(pair)
	defer unlock()

	var result models.LikeResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if isPostgres(tx) {
			if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", advisoryKey(pair)).Error; err != nil {
				return err
			}
		}

		var known int64
		if err := tx.Model(&models.User{}).Where("id IN ?", []int64{from, to}).Count(&known).Error; err != nil {
			return err
		}
		if known != 2 {
			missing := to
			var fromKnown int64
			if err := tx.Model(&models.User{}).Where("id = ?", from).Count(&fromKnown).Error; err != nil {
				return err
			}
			if fromKnown == 0 {
				missing = from
			}
			return models.NewNotFoundError("User", missing, models.ErrUserMissing)
		}

		edge := models.LikeEdge{FromUserID: from, ToUserID: to}
		res := tx.Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(&edge)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		result.Created = true

		reverse := tx.Model(&models.LikeEdge{}).
			Where("from_user_id = ? AND to_user_id = ?", to, from).
			Update("mutual", true)
		if reverse.Error != nil {
			return reverse.Error
		}
		if reverse.RowsAffected == 0 {
			return nil
		}

		if err := tx.Model(&models.LikeEdge{}).
			Where("from_user_id = ? AND to_user_id = ?", from, to).
			Update("mutual", true).Error; err != nil {
			return err
		}
		result.Mutual = true
		return nil
	})
	if err != nil {
		return models.LikeResult{}, fail(ctx, r.log, "create_like", err)
	}

	if result.Created {
		r.log.LogWrite(ctx, "create_like", "from", from, "to", to, "mutual", result.Mutual)
	}
	return result, nil
}

func (r *likeRepository) OutgoingTargets(ctx context.Context, userID int64) (models.IDSet, error) {
	defer observability.TrackQuery("select", "like_edges")()

	var ids []int64
	if err := r.db.WithContext(ctx).
		Model(&models.LikeEdge{}).
		Where("from_user_id = ?", userID).
		Pluck("to_user_id", &ids).Error; err != nil {
		return nil, fail(ctx, r.log, "outgoing_targets", err)
	}
	return toSet(ids), nil
}

func (r *likeRepository) IncomingLikers(ctx context.Context, userID int64) ([]models.Liker, error) {
	defer observability.TrackQuery("select", "like_edges")()

	likers := []models.Liker{}
	if err := r.db.WithContext(ctx).
		Model(&models.LikeEdge{}).
		Select("from_user_id AS user_id, created_at AS liked_at, mutual").
		Where("to_user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Scan(&likers).Error; err != nil {
		return nil, fail(ctx, r.log, "incoming_likers", err)
	}
	return likers, nil
}

// MutualPartners resolves each mutual partner's profile name from whichever
// profile table matches the partner's role.
func (r *likeRepository) MutualPartners(ctx context.Context, userID int64) ([]models.MutualPartner, error) {
	defer observability.TrackQuery("select", "like_edges")()

	partners := []models.MutualPartner{}
	if err := r.db.WithContext(ctx).
		Table("like_edges AS e").
		Select(`u.id AS partner_id, u.role, u.handle, u.first_name, u.last_name,
			COALESCE(pp.name, sp.name, '') AS name`).
		Joins("JOIN users u ON u.id = e.to_user_id").
		Joins("LEFT JOIN provider_profiles pp ON pp.user_id = u.id").
		Joins("LEFT JOIN seeker_profiles sp ON sp.user_id = u.id").
		Where("e.from_user_id = ? AND e.mutual = ?", userID, true).
		Order("e.created_at DESC, e.id DESC").
		Scan(&partners).Error; err != nil {
		return nil, fail(ctx, r.log, "mutual_partners", err)
	}
	return partners, nil
}

// CountMutualPairs counts pairs, not edges: every mutual pair is stored twice.
func (r *likeRepository) CountMutualPairs(ctx context.Context) (int64, error) {
	defer observability.TrackQuery("count", "like_edges")()

	var edges int64
	if err := r.db.WithContext(ctx).
		Model(&models.LikeEdge{}).
		Where("mutual = ?", true).
		Count(&edges).Error; err != nil {
		return 0, fail(ctx, r.log, "count_mutual_pairs", err)
	}
	return edges / 2, nil
}

func (r *likeRepository) CountLikes(ctx context.Context) (int64, error) {
	defer observability.TrackQuery("count", "like_edges")()

	var n int64
	if err := r.db.WithContext(ctx).Model(&models.LikeEdge{}).Count(&n).Error; err != nil {
		return 0, fail(ctx, r.log, "count_likes", err)
	}
	return n, nil
}

func (r *likeRepository) UserCounts(ctx context.Context, userID int64) (given, received, mutual int64, err error) {
	defer observability.TrackQuery("count", "like_edges")()

	db := r.db.WithContext(ctx)
	if err := db.Model(&models.LikeEdge{}).Where("from_user_id = ?", userID).Count(&given).Error; err != nil {
		return 0, 0, 0, fail(ctx, r.log, "count_given", err)
	}
	if err := db.Model(&models.LikeEdge{}).Where("to_user_id = ?", userID).Count(&received).Error; err != nil {
		return 0, 0, 0, fail(ctx, r.log, "count_received", err)
	}
	if err := db.Model(&models.LikeEdge{}).Where("from_user_id = ? AND mutual = ?", userID, true).Count(&mutual).Error; err != nil {
		return 0, 0, 0, fail(ctx, r.log, "count_mutual", err)
	}
	return given, received, mutual, nil
}
