package domain

import (
	"context"
	"time"
)

const (
	// TweetMaxLength is the maximum number of characters (unicode code points) of a Tweet's body.
	TweetMaxLength = 280
	// FeedPageSize is the number of Tweets on a single page of the feed.
	FeedPageSize = 20
)

// Tweet is a short text message posted by a User. Tweets are never edited. They are only
// deleted along with their author, the database cascades that deletion to their Likes.
// User, LikedBy, LikesCount and Liked are filled in when a Tweet is read, they are not
// columns of the tweets table.
type Tweet struct {
	ID     int    `json:"id"`
	UserID int    `json:"user_id" gorm:"notNull;index"`
	User   *User  `json:"user,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	Body   string `json:"body" gorm:"type:varchar(280);notNull"`

	LikedBy    []Liker `json:"liked_by" gorm:"-"`
	LikesCount int     `json:"likes_count" gorm:"-"`
	Liked      bool    `json:"liked" gorm:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Liker identifies a User that likes a Tweet.
type Liker struct {
	ID int `json:"id"`
}

// Feed is a single page of Tweets, latest first. NextPage is 0 on the last page.
type Feed struct {
	Tweets      []Tweet
	CurrentPage int
	NextPage    int
}

// TweetService is a set of methods to manipulate and work with the Tweet model.
type TweetService interface {
	ByID(ctx context.Context, id int) (*Tweet, error)
	Feed(ctx context.Context, viewerID, page int) (*Feed, error)
	Create(ctx context.Context, tweet *Tweet) error
}
