package client

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"miniTweet/domain"
	"miniTweet/errs"
)

// Timeline is the local state of the feed screen: the signed in user and the tweets
// loaded so far. Likes are applied optimistically and rolled back if the API refuses them.
type Timeline struct {
	c *Client

	mu      sync.Mutex
	user    *domain.User
	tweets  []domain.Tweet
	page    int
	hasMore bool
}

// NewTimeline returns an empty timeline. Call Load to fill it.
func NewTimeline(c *Client) *Timeline {
	return &Timeline{c: c}
}

// Load fetches the signed in user and the first page of the feed.
func (tl *Timeline) Load(ctx context.Context) error {
	var (
		user *domain.User
		fp   *FeedPage
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		user, err = tl.c.Me(ctx)
		return err
	})
	g.Go(func() (err error) {
		fp, err = tl.c.Feed(ctx, 1)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.user = user
	tl.setPage(fp)
	return nil
}

// Reconcile replaces the local tweets with the first page from the server.
func (tl *Timeline) Reconcile(ctx context.Context) error {
	fp, err := tl.c.Feed(ctx, 1)
	if err != nil {
		return err
	}
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.setPage(fp)
	return nil
}

// LoadMore appends the next page of the feed. It reports false when there was none.
func (tl *Timeline) LoadMore(ctx context.Context) (bool, error) {
	tl.mu.Lock()
	next, hasMore := tl.page+1, tl.hasMore
	tl.mu.Unlock()
	if !hasMore {
		return false, nil
	}

	fp, err := tl.c.Feed(ctx, next)
	if err != nil {
		return false, err
	}

	tl.mu.Lock()
	defer tl.mu.Unlock()
	seen := make(map[int]bool, len(tl.tweets))
	for _, t := range tl.tweets {
		seen[t.ID] = true
	}
	// Tweets posted in the meantime push older ones onto the next page.
	for _, t := range fp.Data {
		if !seen[t.ID] {
			tl.tweets = append(tl.tweets, t)
		}
	}
	tl.page = fp.CurrentPage
	tl.hasMore = fp.NextPageURL != nil
	return true, nil
}

func (tl *Timeline) setPage(fp *FeedPage) {
	tl.tweets = append([]domain.Tweet(nil), fp.Data...)
	tl.page = fp.CurrentPage
	tl.hasMore = fp.NextPageURL != nil
}

// User returns the signed in user, or nil before Load.
func (tl *Timeline) User() *domain.User {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.user
}

// Tweets returns a copy of the tweets currently shown, latest first.
func (tl *Timeline) Tweets() []domain.Tweet {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	out := make([]domain.Tweet, len(tl.tweets))
	for i, t := range tl.tweets {
		t.LikedBy = append([]domain.Liker(nil), t.LikedBy...)
		out[i] = t
	}
	return out
}

// Post trims the body, checks its length and posts it. The created tweet goes on top.
func (tl *Timeline) Post(ctx context.Context, body string) (*domain.Tweet, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, errs.FieldErrorf("body", "The body field is required.")
	}
	if utf8.RuneCountInString(body) > domain.TweetMaxLength {
		return nil, errs.FieldErrorf("body", "The body may not be greater than %d characters.", domain.TweetMaxLength)
	}

	tweet, err := tl.c.CreateTweet(ctx, body)
	if err != nil {
		return nil, err
	}

	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.tweets = append([]domain.Tweet{*tweet}, tl.tweets...)
	return tweet, nil
}

// ToggleLike likes or unlikes a tweet. The change shows up locally right away. If the API
// call fails it's undone and the error returned, otherwise the server's count is adopted.
func (tl *Timeline) ToggleLike(ctx context.Context, tweetID int) error {
	tl.mu.Lock()
	if tl.user == nil {
		tl.mu.Unlock()
		return errs.Errorf(errs.EUNAUTHORIZED, "Unauthenticated.")
	}
	t := tl.find(tweetID)
	if t == nil {
		tl.mu.Unlock()
		return errs.Errorf(errs.ENOTFOUND, "The tweet does not exist.")
	}
	before := likeSnapshot{
		liked:   t.Liked,
		count:   t.LikesCount,
		likedBy: append([]domain.Liker(nil), t.LikedBy...),
	}
	wasLiked := t.Liked
	if wasLiked {
		t.Liked = false
		t.LikesCount--
		t.LikedBy = withoutLiker(t.LikedBy, tl.user.ID)
	} else {
		t.Liked = true
		t.LikesCount++
		t.LikedBy = append(withoutLiker(t.LikedBy, tl.user.ID), domain.Liker{ID: tl.user.ID})
	}
	userID := tl.user.ID
	tl.mu.Unlock()

	var (
		state *domain.LikeState
		err   error
	)
	if wasLiked {
		state, err = tl.c.Unlike(ctx, tweetID)
	} else {
		state, err = tl.c.Like(ctx, tweetID)
	}

	tl.mu.Lock()
	defer tl.mu.Unlock()
	// The tweet may be gone after a concurrent Reconcile.
	t = tl.find(tweetID)
	if err != nil {
		zap.L().Warn("like toggle failed, rolling back",
			zap.Int("tweet_id", tweetID),
			zap.Bool("was_liked", wasLiked),
			zap.Error(err),
		)
		if t != nil {
			t.Liked, t.LikesCount, t.LikedBy = before.liked, before.count, before.likedBy
		}
		return err
	}
	if t != nil {
		t.Liked = state.Liked
		t.LikesCount = state.LikesCount
		if !state.Liked {
			t.LikedBy = withoutLiker(t.LikedBy, userID)
		}
	}
	return nil
}

type likeSnapshot struct {
	liked   bool
	count   int
	likedBy []domain.Liker
}

func (tl *Timeline) find(id int) *domain.Tweet {
	for i := range tl.tweets {
		if tl.tweets[i].ID == id {
			return &tl.tweets[i]
		}
	}
	return nil
}

func withoutLiker(likers []domain.Liker, userID int) []domain.Liker {
	out := make([]domain.Liker, 0, len(likers))
	for _, l := range likers {
		if l.ID != userID {
			out = append(out, l)
		}
	}
	return out
}
