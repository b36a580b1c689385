package crud

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"miniTweet/domain"
)

// newTestServices returns all crud services backed by a fresh in-memory sqlite database
// with foreign keys enforced, so cascades behave like they do on postgres.
func newTestServices(t *testing.T) *Services {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:?_foreign_keys=on"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Every new connection would get its own empty in-memory database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		require.NoError(t, sqlDB.Close())
	})

	s, err := NewServices(db,
		WithUser("test-pepper", "test-hmac-key"),
		WithOAuth(),
		WithTweet(),
		WithLike(),
	)
	require.NoError(t, err)
	require.NoError(t, s.AutoMigrate())
	return s
}

func createUser(t *testing.T, s *Services, name string) *domain.User {
	t.Helper()
	user := &domain.User{
		Name:     name,
		Email:    strings.ToLower(name) + "@example.com",
		Password: "correct horse",
	}
	require.NoError(t, s.User.Create(context.Background(), user))
	return user
}

func createTweet(t *testing.T, s *Services, author *domain.User, body string) *domain.Tweet {
	t.Helper()
	tweet := &domain.Tweet{UserID: author.ID, Body: body}
	require.NoError(t, s.Tweet.Create(context.Background(), tweet))
	return tweet
}

func countRows(t *testing.T, s *Services, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, s.db.Model(model).Count(&n).Error)
	return n
}
