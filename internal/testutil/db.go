// Package testutil holds helpers shared by package tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"psymatch/internal/database"
	"psymatch/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbCounter atomic.Int64

// NewTestDB opens a private in-memory sqlite database with the full schema.
// The pool is limited to one connection, matching how the service runs on sqlite.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := database.SQLiteDSN(fmt.Sprintf("file:psymatch_test_%d?mode=memory&cache=shared", dbCounter.Add(1)))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// SeedUser inserts a bare user row with the given role.
func SeedUser(t testing.TB, db *gorm.DB, id int64, role models.Role, handle string) *models.User {
	t.Helper()
	first := fmt.Sprintf("User%d", id)
	now := time.Now().UTC()
	u := &models.User{
		ID:           id,
		Handle:       models.StringPtr(handle),
		FirstName:    &first,
		Role:         role,
		RegisteredAt: now,
		LastActiveAt: now,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}
