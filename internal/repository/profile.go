package repository

import (
	"context"
	"errors"
	"time"

	"psymatch/internal/models"
	"psymatch/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfileRepository stores users and their role-specific profiles.
type ProfileRepository interface {
	CreateOrReplaceUser(ctx context.Context, id int64, contact models.Contact, role models.Role) (*models.User, error)
	// GetUser returns nil, nil when the user does not exist.
	GetUser(ctx context.Context, id int64) (*models.User, error)
	TouchLastActive(ctx context.Context, id int64) error
	UpsertProviderProfile(ctx context.Context, profile *models.ProviderProfile) error
	UpsertSeekerProfile(ctx context.Context, profile *models.SeekerProfile) error
	// GetProviderProfile returns nil, nil when the profile does not exist.
	GetProviderProfile(ctx context.Context, id int64) (*models.ProviderProfile, error)
	// GetSeekerProfile returns nil, nil when the profile does not exist.
	GetSeekerProfile(ctx context.Context, id int64) (*models.SeekerProfile, error)
	ListProviders(ctx context.Context) ([]models.ProviderProfile, error)
	ListSeekers(ctx context.Context) ([]models.SeekerProfile, error)
	PurgeUser(ctx context.Context, id int64) error
	CountProfiles(ctx context.Context) (providers, seekers int64, err error)
}

type profileRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db, log: observability.NewRepoLogger("users")}
}

// CreateOrReplaceUser registers the user or refreshes the contact fields of an
// existing one. The role of an existing user cannot change.
func (r *profileRepository) CreateOrReplaceUser(ctx context.Context, id int64, contact models.Contact, role models.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, models.NewValidationError("unknown role " + string(role))
	}
	defer observability.TrackQuery("upsert", "users")()

	var user models.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		err := tx.First(&user, id).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			user = models.User{
				ID:           id,
				Handle:       contact.Handle,
				FirstName:    contact.FirstName,
				LastName:     contact.LastName,
				Role:         role,
				RegisteredAt: now,
				LastActiveAt: now,
			}
			return tx.Create(&user).Error
		case err != nil:
			return err
		}

		if user.Role != role {
			return models.NewConflictError("role is already set; restart to change it", models.ErrRoleMismatch)
		}
		user.Handle = contact.Handle
		user.FirstName = contact.FirstName
		user.LastName = contact.LastName
		user.LastActiveAt = now
		return tx.Save(&user).Error
	})
	if err != nil {
		return nil, fail(ctx, r.log, "create_or_replace_user", err)
	}
	r.log.LogWrite(ctx, "upsert_user", "user_id", id, "role", role)
	return &user, nil
}

func (r *profileRepository) GetUser(ctx context.Context, id int64) (*models.User, error) {
	defer observability.TrackQuery("select", "users")()

	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fail(ctx, r.log, "get_user", err)
	}
	return &user, nil
}

func (r *profileRepository) TouchLastActive(ctx context.Context, id int64) error {
	defer observability.TrackQuery("update", "users")()

	if err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("last_active_at", time.Now().UTC()).Error; err != nil {
		return fail(ctx, r.log, "touch_last_active", err)
	}
	return nil
}

// ownerCheck loads the owning user inside tx and verifies its role.
func ownerCheck(tx *gorm.DB, id int64, want models.Role) error {
	var user models.User
	if err := tx.Select("id", "role").First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("User", id, models.ErrUserMissing)
		}
		return err
	}
	if user.Role != want {
		return models.NewConflictError("profile kind does not match the user's role", models.ErrRoleMismatch)
	}
	return nil
}

func upsertClause() clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}
}

func (r *profileRepository) UpsertProviderProfile(ctx context.Context, profile *models.ProviderProfile) error {
	defer observability.TrackQuery("upsert", "provider_profiles")()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ownerCheck(tx, profile.UserID, models.RoleProvider); err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Clauses(upsertClause()).Create(profile).Error
	})
	if err != nil {
		return fail(ctx, r.log, "upsert_provider_profile", err)
	}
	r.log.LogWrite(ctx, "upsert_provider_profile", "user_id", profile.UserID)
	return nil
}

func (r *profileRepository) UpsertSeekerProfile(ctx context.Context, profile *models.SeekerProfile) error {
	defer observability.TrackQuery("upsert", "seeker_profiles")()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ownerCheck(tx, profile.UserID, models.RoleSeeker); err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Clauses(upsertClause()).Create(profile).Error
	})
	if err != nil {
		return fail(ctx, r.log, "upsert_seeker_profile", err)
	}
	r.log.LogWrite(ctx, "upsert_seeker_profile", "user_id", profile.UserID)
	return nil
}

func ownerOf(u *models.User) models.Owner {
	if u == nil {
		return models.Owner{}
	}
	return models.Owner{Handle: u.Handle, FirstName: u.FirstName, LastName: u.LastName}
}

func (r *profileRepository) GetProviderProfile(ctx context.Context, id int64) (*models.ProviderProfile, error) {
	defer observability.TrackQuery("select", "provider_profiles")()

	var p models.ProviderProfile
	if err := r.db.WithContext(ctx).
		Joins("User").
		Where("provider_profiles.user_id = ?", id).
		First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fail(ctx, r.log, "get_provider_profile", err)
	}
	p.Owner = ownerOf(p.User)
	return &p, nil
}

func (r *profileRepository) GetSeekerProfile(ctx context.Context, id int64) (*models.SeekerProfile, error) {
	defer observability.TrackQuery("select", "seeker_profiles")()

	var p models.SeekerProfile
	if err := r.db.WithContext(ctx).
		Joins("User").
		Where("seeker_profiles.user_id = ?", id).
		First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fail(ctx, r.log, "get_seeker_profile", err)
	}
	p.Owner = ownerOf(p.User)
	return &p, nil
}

// ListProviders returns every provider profile in primary key order.
func (r *profileRepository) ListProviders(ctx context.Context) ([]models.ProviderProfile, error) {
	defer observability.TrackQuery("select", "provider_profiles")()

	var profiles []models.ProviderProfile
	if err := r.db.WithContext(ctx).
		Joins("User").
		Order("provider_profiles.user_id ASC").
		Find(&profiles).Error; err != nil {
		return nil, fail(ctx, r.log, "list_providers", err)
	}
	for i := range profiles {
		profiles[i].Owner = ownerOf(profiles[i].User)
	}
	return profiles, nil
}

// ListSeekers returns every seeker profile in primary key order.
func (r *profileRepository) ListSeekers(ctx context.Context) ([]models.SeekerProfile, error) {
	defer observability.TrackQuery("select", "seeker_profiles")()

	var profiles []models.SeekerProfile
	if err := r.db.WithContext(ctx).
		Joins("User").
		Order("seeker_profiles.user_id ASC").
		Find(&profiles).Error; err != nil {
		return nil, fail(ctx, r.log, "list_seekers", err)
	}
	for i := range profiles {
		profiles[i].Owner = ownerOf(profiles[i].User)
	}
	return profiles, nil
}

// PurgeUser removes the user and everything that references it in one transaction.
// Purging an unknown id is a no-op.
func (r *profileRepository) PurgeUser(ctx context.Context, id int64) error {
	defer observability.TrackQuery("delete", "users")()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		steps := []struct {
			model any
			where string
		}{
			{&models.ViewedRecord{}, "viewer_id = ? OR candidate_id = ?"},
			{&models.LikeEdge{}, "from_user_id = ? OR to_user_id = ?"},
		}
		for _, s := range steps {
			if err := tx.Where(s.where, id, id).Delete(s.model).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.ProviderProfile{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.SeekerProfile{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.User{}).Error
	})
	if err != nil {
		return fail(ctx, r.log, "purge_user", err)
	}
	r.log.LogWrite(ctx, "purge_user", "user_id", id)
	return nil
}

// CountProfiles counts completed provider and seeker profiles.
func (r *profileRepository) CountProfiles(ctx context.Context) (providers, seekers int64, err error) {
	defer observability.TrackQuery("count", "profiles")()

	db := r.db.WithContext(ctx)
	if err := db.Model(&models.ProviderProfile{}).Count(&providers).Error; err != nil {
		return 0, 0, fail(ctx, r.log, "count_providers", err)
	}
	if err := db.Model(&models.SeekerProfile{}).Count(&seekers).Error; err != nil {
		return 0, 0, fail(ctx, r.log, "count_seekers", err)
	}
	return providers, seekers, nil
}
