package crud

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"miniTweet/domain"
	"miniTweet/errs"
)

// LikeService manages Likes.
// It implements the domain.LikeService interface.
type LikeService struct {
	likeValidator
}

// likeValidator runs validations on incoming Like data.
// On success, it passes the data on to likeGorm.
// Otherwise, it returns the error of the validation that has failed.
type likeValidator struct {
	likeGorm
}

// likeGorm runs CRUD operations on the database using incoming Like data.
// It assumes that data has been validated. On success, it returns nil.
// Otherwise, it returns the error of the operation that has failed.
type likeGorm struct {
	db *gorm.DB
}

// NewLikeService returns an instance of LikeService.
func NewLikeService(db *gorm.DB) *LikeService {
	return &LikeService{
		likeValidator{
			likeGorm{
				db: db,
			},
		},
	}
}

// Ensure the LikeService struct properly implements the domain.LikeService interface.
// If it does not, then this expression becomes invalid and won't compile.
var _ domain.LikeService = &LikeService{}

// Like runs validations needed for liking a tweet.
func (lv *likeValidator) Like(ctx context.Context, userID, tweetID int) (*domain.LikeState, error) {
	err := runLikeValFns(&domain.Like{UserID: userID, TweetID: tweetID}, lv.userIdValid)
	if err != nil {
		return nil, err
	}
	return lv.likeGorm.Like(ctx, userID, tweetID)
}

// Unlike runs validations needed for unliking a tweet.
func (lv *likeValidator) Unlike(ctx context.Context, userID, tweetID int) (*domain.LikeState, error) {
	err := runLikeValFns(&domain.Like{UserID: userID, TweetID: tweetID}, lv.userIdValid)
	if err != nil {
		return nil, err
	}
	return lv.likeGorm.Unlike(ctx, userID, tweetID)
}

// runLikeValFns runs any number of functions of type likeValFn on the passed in Like object.
// If none of them returns an error, it returns nil. Otherwise, it returns the respective error.
func runLikeValFns(like *domain.Like, fns ...likeValFn) error {
	for _, fn := range fns {
		if err := fn(like); err != nil {
			return err
		}
	}
	return nil
}

// A likeValFn is any function that takes in a pointer to a domain.Like object and returns an error.
type likeValFn func(like *domain.Like) error

// userIdValid ensures that the like belongs to a user.
func (lv *likeValidator) userIdValid(like *domain.Like) error {
	if like.UserID <= 0 {
		return errs.Errorf(errs.EUNAUTHORIZED, "Unauthenticated.")
	}
	return nil
}

// tweetExists makes sure that the liked or unliked tweet exists.
func tweetExists(tx *gorm.DB, tweetID int) error {
	var count int64
	if err := tx.Model(&domain.Tweet{}).Where("id = ?", tweetID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return errs.Errorf(errs.ENOTFOUND, "The tweet does not exist.")
	}
	return nil
}

// countLikes returns the number of users liking a tweet.
func countLikes(tx *gorm.DB, tweetID int) (int, error) {
	var count int64
	if err := tx.Model(&domain.Like{}).Where("tweet_id = ?", tweetID).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// Like makes sure the user likes the tweet. Liking a tweet twice is not an error: the
// composite primary key rejects the duplicate and the insert does nothing, so concurrent
// likes of the same pair end up as a single row.
func (lg *likeGorm) Like(ctx context.Context, userID, tweetID int) (*domain.LikeState, error) {
	state := &domain.LikeState{Liked: true}
	err := lg.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tweetExists(tx, tweetID); err != nil {
			return err
		}
		like := domain.Like{UserID: userID, TweetID: tweetID}
		err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Omit(clause.Associations).
			Create(&like).Error
		if err != nil {
			return err
		}
		state.LikesCount, err = countLikes(tx, tweetID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// Unlike makes sure the user doesn't like the tweet. Unliking a tweet that isn't
// liked is a no-op.
func (lg *likeGorm) Unlike(ctx context.Context, userID, tweetID int) (*domain.LikeState, error) {
	state := &domain.LikeState{Liked: false}
	err := lg.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tweetExists(tx, tweetID); err != nil {
			return err
		}
		err := tx.Where("user_id = ? AND tweet_id = ?", userID, tweetID).
			Delete(&domain.Like{}).Error
		if err != nil {
			return err
		}
		state.LikesCount, err = countLikes(tx, tweetID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}
