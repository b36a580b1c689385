package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"miniTweet/auth"
	"miniTweet/domain"
	"miniTweet/errs"
	"miniTweet/metrics"
)

// feedRouteName names the feed route, so that page links can be built from it.
const feedRouteName = "feed"

// registerTweetRoutes is a helper for registering all Tweet routes.
func (s *Server) registerTweetRoutes(r *mux.Router) {
	// Get a page of the feed, latest tweets first.
	r.HandleFunc("/api/tweets", s.handleFeed).Methods("GET").Name(feedRouteName)

	// Post a new tweet as the signed in user.
	r.HandleFunc("/api/tweets", s.handleCreateTweet).Methods("POST")
}

// feedResponse is a page of the feed. NextPageURL is null on the last page.
type feedResponse struct {
	Data        []domain.Tweet `json:"data"`
	CurrentPage int            `json:"current_page"`
	NextPageURL *string        `json:"next_page_url"`
}

// handleFeed handles the route "GET /api/tweets?page=N".
// Missing or malformed page numbers fall back to the first page.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	user := auth.GetUser(r.Context())
	feed, err := s.ts.Feed(r.Context(), user.ID, page)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	resp := feedResponse{
		Data:        feed.Tweets,
		CurrentPage: feed.CurrentPage,
	}
	if resp.Data == nil {
		resp.Data = []domain.Tweet{}
	}
	if feed.NextPage > 0 {
		next, err := s.pageURL(r, feed.NextPage)
		if err != nil {
			errs.ReturnError(w, r, err)
			return
		}
		resp.NextPageURL = &next
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(&resp); err != nil {
		errs.LogError(r, err)
	}
}

// pageURL returns the absolute link to the given page of the feed, on the host
// the request was sent to.
func (s *Server) pageURL(r *http.Request, page int) (string, error) {
	u, err := s.router.Get(feedRouteName).URL()
	if err != nil {
		return "", err
	}
	u.Scheme = "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		u.Scheme = "https"
	}
	u.Host = r.Host
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type tweetForm struct {
	Body string `json:"body"`
}

// handleCreateTweet handles the route "POST /api/tweets".
// The author is always the signed in user, whatever the request body says.
func (s *Server) handleCreateTweet(w http.ResponseWriter, r *http.Request) {
	var form tweetForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		errs.ReturnError(w, r, errs.Errorf(errs.EBADREQUEST, "Invalid json body."))
		return
	}

	user := auth.GetUser(r.Context())
	tweet := domain.Tweet{
		UserID: user.ID,
		Body:   form.Body,
	}
	if err := s.ts.Create(r.Context(), &tweet); err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	metrics.TweetCreated()

	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(&tweet); err != nil {
		errs.LogError(r, err)
	}
}
