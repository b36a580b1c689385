package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"miniTweet/auth"
	"miniTweet/domain"
	"miniTweet/errs"
	"miniTweet/metrics"
)

// registerLikeRoutes is a helper for registering all Like routes.
func (s *Server) registerLikeRoutes(r *mux.Router) {
	// Like a tweet.
	r.HandleFunc("/api/tweets/{id:[0-9]+}/like", s.handleLike).Methods("POST")

	// Unlike a tweet.
	r.HandleFunc("/api/tweets/{id:[0-9]+}/like", s.handleUnlike).Methods("DELETE")
}

// handleLike handles the route "POST /api/tweets/:id/like".
// Liking an already liked tweet changes nothing and still succeeds.
func (s *Server) handleLike(w http.ResponseWriter, r *http.Request) {
	s.toggleLike(w, r, "like", s.ls.Like)
}

// handleUnlike handles the route "DELETE /api/tweets/:id/like".
// Unliking a tweet that isn't liked changes nothing and still succeeds.
func (s *Server) handleUnlike(w http.ResponseWriter, r *http.Request) {
	s.toggleLike(w, r, "unlike", s.ls.Unlike)
}

// toggleLike runs a like or unlike for the signed in user and the tweet in the url,
// and returns the tweet's resulting like state.
func (s *Server) toggleLike(
	w http.ResponseWriter,
	r *http.Request,
	action string,
	fn func(ctx context.Context, userID, tweetID int) (*domain.LikeState, error),
) {
	// Parse the tweet ID from the url. Ids too large for an int can't exist.
	tweetID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		errs.ReturnError(w, r, errs.Errorf(errs.ENOTFOUND, "The tweet does not exist."))
		return
	}

	user := auth.GetUser(r.Context())
	state, err := fn(r.Context(), user.ID, tweetID)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	metrics.Liked(action)

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(state); err != nil {
		errs.LogError(r, err)
	}
}
