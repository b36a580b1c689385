package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/api/tweets/{id:[0-9]+}/like", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}).Methods(http.MethodPost)
	r.Use(Middleware)

	counter := httpRequests.WithLabelValues(http.MethodPost, "/api/tweets/{id:[0-9]+}/like", "404")
	before := testutil.ToFloat64(counter)

	for _, id := range []string{"1", "2"} {
		req := httptest.NewRequest(http.MethodPost, "/api/tweets/"+id+"/like", nil)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	require.Equal(t, before+2, testutil.ToFloat64(counter))
}

func TestDomainCounters(t *testing.T) {
	created := testutil.ToFloat64(tweetsCreated)
	liked := testutil.ToFloat64(likes.WithLabelValues("like"))

	TweetCreated()
	Liked("like")
	Liked("like")

	require.Equal(t, created+1, testutil.ToFloat64(tweetsCreated))
	require.Equal(t, liked+2, testutil.ToFloat64(likes.WithLabelValues("like")))
}

func TestHandlerExposesRegistry(t *testing.T) {
	TweetCreated()

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, strings.Contains(w.Body.String(), "minitweet_tweets_created_total"))
}
