package crud

import (
	"context"
	"math"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"miniTweet/domain"
	"miniTweet/errs"
)

// TweetService manages Tweets.
// It implements the domain.TweetService interface.
type TweetService struct {
	tweetValidator
}

// tweetValidator runs validations on incoming Tweet data.
// On success, it passes the data on to tweetGorm.
// Otherwise, it returns the error of the validation that has failed.
type tweetValidator struct {
	tweetGorm
}

// tweetGorm runs CRUD operations on the database using incoming Tweet data.
// It assumes that data has been validated. On success, it returns nil.
// Otherwise, it returns the error of the operation that has failed.
type tweetGorm struct {
	db *gorm.DB
}

// NewTweetService returns an instance of TweetService.
func NewTweetService(db *gorm.DB) *TweetService {
	return &TweetService{
		tweetValidator{
			tweetGorm{
				db: db,
			},
		},
	}
}

// Ensure the TweetService struct properly implements the domain.TweetService interface.
// If it does not, then this expression becomes invalid and won't compile.
var _ domain.TweetService = &TweetService{}

// Create runs validations needed for creating new Tweet database records.
func (tv *tweetValidator) Create(ctx context.Context, tweet *domain.Tweet) error {
	err := runTweetValFns(tweet,
		tv.userIdValid,
		tv.bodyRequired,
		tv.bodyMaxLength)
	if err != nil {
		return err
	}
	return tv.tweetGorm.Create(ctx, tweet)
}

// maxFeedPage is the highest page number the feed serves. Larger numbers are
// clamped to it, so the row offset can't overflow.
const maxFeedPage = math.MaxInt32 / domain.FeedPageSize

// Feed makes sure the requested page number is between 1 and maxFeedPage.
func (tv *tweetValidator) Feed(ctx context.Context, viewerID, page int) (*domain.Feed, error) {
	if page < 1 {
		page = 1
	}
	if page > maxFeedPage {
		page = maxFeedPage
	}
	return tv.tweetGorm.Feed(ctx, viewerID, page)
}

// runTweetValFns runs any number of functions of type tweetValFn on the passed in Tweet object.
// If none of them returns an error, it returns nil. Otherwise, it returns the respective error.
func runTweetValFns(tweet *domain.Tweet, fns ...tweetValFn) error {
	for _, fn := range fns {
		if err := fn(tweet); err != nil {
			return err
		}
	}
	return nil
}

// A tweetValFn is any function that takes in a pointer to a domain.Tweet object and returns an error.
type tweetValFn = func(tweet *domain.Tweet) error

// bodyRequired makes sure that the Tweet's body is not empty or blank.
// A body that passes is stored exactly as sent.
func (tv *tweetValidator) bodyRequired(tweet *domain.Tweet) error {
	if strings.TrimSpace(tweet.Body) == "" {
		return errs.FieldErrorf("body", "The body field is required.")
	}
	return nil
}

// bodyMaxLength makes sure that the Tweet's body does not exceed the maximum length,
// counted in characters rather than bytes.
func (tv *tweetValidator) bodyMaxLength(tweet *domain.Tweet) error {
	if utf8.RuneCountInString(tweet.Body) > domain.TweetMaxLength {
		return errs.FieldErrorf("body", "The body may not be greater than %d characters.", domain.TweetMaxLength)
	}
	return nil
}

// userIdValid ensures that the tweet has an author.
func (tv *tweetValidator) userIdValid(tweet *domain.Tweet) error {
	if tweet.UserID <= 0 {
		return errs.Errorf(errs.EUNAUTHORIZED, "Unauthenticated.")
	}
	return nil
}

// authorSummary preloads only the public fields of a tweet's author.
func authorSummary(db *gorm.DB) *gorm.DB {
	return db.Select("id", "name", "email")
}

// Feed retrieves one page of tweets, latest first, along with their authors and likes.
// Tweets sharing a timestamp are ordered by ID, so pages stay stable.
// It fetches one extra row to find out whether there is a next page.
func (tg *tweetGorm) Feed(ctx context.Context, viewerID, page int) (*domain.Feed, error) {
	var tweets []domain.Tweet
	err := tg.db.WithContext(ctx).
		Preload("User", authorSummary).
		Order("created_at desc").
		Order("id desc").
		Offset((page - 1) * domain.FeedPageSize).
		Limit(domain.FeedPageSize + 1).
		Find(&tweets).Error
	if err != nil {
		return nil, err
	}

	feed := &domain.Feed{
		Tweets:      tweets,
		CurrentPage: page,
	}
	if len(tweets) > domain.FeedPageSize && page < maxFeedPage {
		feed.NextPage = page + 1
	}
	if len(tweets) > domain.FeedPageSize {
		feed.Tweets = tweets[:domain.FeedPageSize]
	}
	if err := tg.setLikes(ctx, viewerID, feed.Tweets); err != nil {
		return nil, err
	}
	return feed, nil
}

// setLikes loads the likes of the given tweets in a single query and sets their
// LikedBy, LikesCount and Liked fields, the latter from the viewer's point of view.
func (tg *tweetGorm) setLikes(ctx context.Context, viewerID int, tweets []domain.Tweet) error {
	if len(tweets) == 0 {
		return nil
	}
	ids := make([]int, len(tweets))
	for i, t := range tweets {
		ids[i] = t.ID
	}
	var likes []domain.Like
	err := tg.db.WithContext(ctx).
		Select("user_id", "tweet_id").
		Where("tweet_id IN ?", ids).
		Order("user_id").
		Find(&likes).Error
	if err != nil {
		return err
	}

	likers := make(map[int][]domain.Liker, len(tweets))
	for _, l := range likes {
		likers[l.TweetID] = append(likers[l.TweetID], domain.Liker{ID: l.UserID})
	}
	for i := range tweets {
		tweets[i].LikedBy = likers[tweets[i].ID]
		if tweets[i].LikedBy == nil {
			tweets[i].LikedBy = []domain.Liker{}
		}
		tweets[i].LikesCount = len(tweets[i].LikedBy)
		for _, liker := range tweets[i].LikedBy {
			if liker.ID == viewerID {
				tweets[i].Liked = true
				break
			}
		}
	}
	return nil
}

// ByID retrieves a single Tweet by ID, along with its author.
// If the record doesn't exist, it returns errs.ENOTFOUND.
func (tg *tweetGorm) ByID(ctx context.Context, id int) (*domain.Tweet, error) {
	var tweet domain.Tweet
	err := tg.db.WithContext(ctx).
		Preload("User", authorSummary).
		First(&tweet, "id = ?", id).
		Error
	if err != nil {
		return nil, notFound(err, "The tweet does not exist.")
	}
	return &tweet, nil
}

// Create stores the data from the Tweet object in a new database record.
// The author is loaded first, so that a missing author is reported as errs.ENOTFOUND
// and the json response contains the author's summary. A new tweet has no likes yet.
func (tg *tweetGorm) Create(ctx context.Context, tweet *domain.Tweet) error {
	tweet.ID = 0
	tweet.User = nil
	return tg.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var author domain.User
		if err := authorSummary(tx).First(&author, "id = ?", tweet.UserID).Error; err != nil {
			return notFound(err, "The author does not exist.")
		}
		if err := tx.Omit("User").Create(tweet).Error; err != nil {
			return err
		}
		tweet.User = &author
		tweet.LikedBy = []domain.Liker{}
		tweet.LikesCount = 0
		tweet.Liked = false
		return nil
	})
}
