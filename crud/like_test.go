package crud

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"miniTweet/domain"
	"miniTweet/errs"
)

func TestLikeIsIdempotent(t *testing.T) {
	s := newTestServices(t)
	a := createUser(t, s, "Alice")
	b := createUser(t, s, "Bob")
	tweet := createTweet(t, s, b, "hello")
	ctx := context.Background()

	first, err := s.Like.Like(ctx, a.ID, tweet.ID)
	require.NoError(t, err)
	require.Equal(t, &domain.LikeState{Liked: true, LikesCount: 1}, first)

	second, err := s.Like.Like(ctx, a.ID, tweet.ID)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.EqualValues(t, 1, countRows(t, s, &domain.Like{}))

	other, err := s.Like.Like(ctx, b.ID, tweet.ID)
	require.NoError(t, err)
	require.Equal(t, 2, other.LikesCount)
}

func TestUnlikeIsIdempotent(t *testing.T) {
	s := newTestServices(t)
	a := createUser(t, s, "Alice")
	b := createUser(t, s, "Bob")
	tweet := createTweet(t, s, b, "hello")
	ctx := context.Background()

	_, err := s.Like.Like(ctx, b.ID, tweet.ID)
	require.NoError(t, err)

	// a never liked the tweet, so nothing changes.
	state, err := s.Like.Unlike(ctx, a.ID, tweet.ID)
	require.NoError(t, err)
	require.Equal(t, &domain.LikeState{Liked: false, LikesCount: 1}, state)

	_, err = s.Like.Like(ctx, a.ID, tweet.ID)
	require.NoError(t, err)
	state, err = s.Like.Unlike(ctx, a.ID, tweet.ID)
	require.NoError(t, err)
	require.Equal(t, &domain.LikeState{Liked: false, LikesCount: 1}, state)
	state, err = s.Like.Unlike(ctx, a.ID, tweet.ID)
	require.NoError(t, err)
	require.Equal(t, &domain.LikeState{Liked: false, LikesCount: 1}, state)
}

func TestLikeUnknownTweet(t *testing.T) {
	s := newTestServices(t)
	a := createUser(t, s, "Alice")
	ctx := context.Background()

	_, err := s.Like.Like(ctx, a.ID, 404)
	require.Equal(t, errs.ENOTFOUND, errs.ErrorCode(err))
	_, err = s.Like.Unlike(ctx, a.ID, 404)
	require.Equal(t, errs.ENOTFOUND, errs.ErrorCode(err))
	require.Zero(t, countRows(t, s, &domain.Like{}))
}

func TestLikeRequiresUser(t *testing.T) {
	s := newTestServices(t)
	b := createUser(t, s, "Bob")
	tweet := createTweet(t, s, b, "hello")
	ctx := context.Background()

	_, err := s.Like.Like(ctx, 0, tweet.ID)
	require.Equal(t, errs.EUNAUTHORIZED, errs.ErrorCode(err))
	_, err = s.Like.Unlike(ctx, 0, tweet.ID)
	require.Equal(t, errs.EUNAUTHORIZED, errs.ErrorCode(err))
}

func newMockLikeService(t *testing.T) (*LikeService, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn: sqlDB,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return NewLikeService(gdb), mock
}

func TestLikeSkipsDuplicatesOnPostgres(t *testing.T) {
	ls, mock := newMockLikeService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT count\(\*\) FROM "tweets" WHERE id = \$1`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec(`INSERT INTO "likes" .+ ON CONFLICT DO NOTHING`).
		WithArgs(3, 7).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "likes" WHERE tweet_id = \$1`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectCommit()

	state, err := ls.Like(context.Background(), 3, 7)
	require.NoError(t, err)
	require.Equal(t, &domain.LikeState{Liked: true, LikesCount: 4}, state)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLikeRollsBackWhenTweetIsMissingOnPostgres(t *testing.T) {
	ls, mock := newMockLikeService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT count\(\*\) FROM "tweets" WHERE id = \$1`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectRollback()

	_, err := ls.Like(context.Background(), 3, 7)
	require.Equal(t, errs.ENOTFOUND, errs.ErrorCode(err))
	require.NoError(t, mock.ExpectationsWereMet())
}
