package http

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"miniTweet/domain"
)

func TestLikeAndUnlike(t *testing.T) {
	s, _ := newTestServer(t)
	ada, _ := signUp(t, s, "Ada")
	bob, bobUser := signUp(t, s, "Bob")

	w := ada.do(http.MethodPost, "/api/tweets", map[string]string{"body": "hello"})
	require.Equal(t, http.StatusCreated, w.Code)
	var tweet domain.Tweet
	decode(t, w, &tweet)
	target := fmt.Sprintf("/api/tweets/%d/like", tweet.ID)

	for _, tc := range []struct {
		name   string
		method string
		want   string
	}{
		{name: "like", method: http.MethodPost, want: `{"liked":true,"likes_count":1}`},
		{name: "like again", method: http.MethodPost, want: `{"liked":true,"likes_count":1}`},
		{name: "unlike", method: http.MethodDelete, want: `{"liked":false,"likes_count":0}`},
		{name: "unlike again", method: http.MethodDelete, want: `{"liked":false,"likes_count":0}`},
		{name: "like once more", method: http.MethodPost, want: `{"liked":true,"likes_count":1}`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			w := bob.do(tc.method, target, nil)
			require.Equal(t, http.StatusOK, w.Code)
			require.JSONEq(t, tc.want, w.Body.String())
		})
	}

	// The feed shows the like to everyone, but only Bob sees it as his own.
	var page feedResponse
	decode(t, ada.do(http.MethodGet, "/api/tweets", nil), &page)
	require.Len(t, page.Data, 1)
	require.Equal(t, []domain.Liker{{ID: bobUser.ID}}, page.Data[0].LikedBy)
	require.Equal(t, 1, page.Data[0].LikesCount)
	require.False(t, page.Data[0].Liked)

	page = feedResponse{}
	decode(t, bob.do(http.MethodGet, "/api/tweets", nil), &page)
	require.True(t, page.Data[0].Liked)
}

func TestLikeUnknownTweet(t *testing.T) {
	s, _ := newTestServer(t)
	c, _ := signUp(t, s, "Ada")

	for _, target := range []string{"/api/tweets/999/like", "/api/tweets/99999999999999999999999/like"} {
		w := c.do(http.MethodPost, target, nil)
		require.Equal(t, http.StatusNotFound, w.Code)
		require.JSONEq(t, `{"message":"The tweet does not exist."}`, w.Body.String())
	}

	w := c.do(http.MethodDelete, "/api/tweets/999/like", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	// Non-numeric ids don't match the route at all.
	w = c.do(http.MethodPost, "/api/tweets/abc/like", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}
