package domain

import "context"

// Like represents a many-to-many relationship between a User and a Tweet. It has no
// life of its own: a user either likes a tweet or doesn't, so the pair of IDs is the
// primary key and the likes table has no other columns.
type Like struct {
	UserID  int   `json:"user_id" gorm:"primaryKey;autoIncrement:false"`
	User    User  `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	TweetID int   `json:"tweet_id" gorm:"primaryKey;autoIncrement:false;index"`
	Tweet   Tweet `json:"-" gorm:"constraint:OnDelete:CASCADE"`
}

// LikeState is the result of liking or unliking a Tweet, as seen by the user who did it.
type LikeState struct {
	Liked      bool `json:"liked"`
	LikesCount int  `json:"likes_count"`
}

// LikeService is a set of methods to manipulate and work with the Like model.
type LikeService interface {
	Like(ctx context.Context, userID, tweetID int) (*LikeState, error)
	Unlike(ctx context.Context, userID, tweetID int) (*LikeState, error)
}
