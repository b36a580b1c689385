package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/csrf"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"miniTweet/crud"
	"miniTweet/domain"
	"miniTweet/metrics"
)

// githubUserURL is the Github API endpoint returning the signed in Github user.
const githubUserURL = "https://api.github.com/user"

// Config holds what the Server needs to know about its environment.
type Config struct {
	// IsProd switches cookies to Secure and SameSite=None, and makes the CSRF
	// protection check the Referer of TLS requests.
	IsProd bool
	// ClientURL is the origin of the single page app. It's allowed to make
	// credentialed cross-origin requests, and Github logins redirect back to it.
	ClientURL string
	// CSRFKey authenticates the CSRF cookie. It must be 32 bytes long.
	CSRFKey []byte
	// Github configures signing in with Github. Nil disables it.
	Github *oauth2.Config
}

// Server provides most of the http functionality of this app, namely routing,
// request handling, and middleware. It also performs authentication and
// authorization before handing things over to one of the crud services.
type Server struct {
	router  *mux.Router
	handler http.Handler

	us domain.UserService
	ts domain.TweetService
	ls domain.LikeService
	os domain.OAuthService

	github        *oauth2.Config
	githubUserURL string
	clientURL     *url.URL
	isProd        bool
}

// NewServer returns a new instance of the server, registers all necessary
// routes and gives their handlers access to the app services passed in.
func NewServer(cfg Config, services *crud.Services) (*Server, error) {
	if len(cfg.CSRFKey) != 32 {
		return nil, errors.New("http: csrf key must be 32 bytes long")
	}
	clientURL, err := url.Parse(cfg.ClientURL)
	if err != nil {
		return nil, err
	}

	// Construct a new Server with a gorilla router and the services passed in.
	s := &Server{
		router:        mux.NewRouter(),
		us:            services.User,
		ts:            services.Tweet,
		ls:            services.Like,
		os:            services.OAuth,
		github:        cfg.Github,
		githubUserURL: githubUserURL,
		clientURL:     clientURL,
		isProd:        cfg.IsProd,
	}

	// Construct the CSRF protection middleware. The client asks for a token by requesting
	// /csrf-cookie, and has to send it back in the X-XSRF-TOKEN header of every
	// request that isn't a GET, HEAD, OPTIONS or TRACE request.
	sameSite := csrf.SameSiteLaxMode
	if cfg.IsProd {
		sameSite = csrf.SameSiteNoneMode
	}
	var trusted []string
	if clientURL.Host != "" {
		trusted = append(trusted, clientURL.Host)
	}
	csrfMw := csrf.Protect(cfg.CSRFKey,
		csrf.Secure(cfg.IsProd),
		csrf.SameSite(sameSite),
		csrf.Path("/"),
		csrf.RequestHeader(csrfHeaderName),
		csrf.TrustedOrigins(trusted),
		csrf.ErrorHandler(http.HandlerFunc(s.handleCSRFError)),
	)

	// Set up middleware that needs to run on every matched request.
	s.router.Use(metrics.Middleware, setContentTypeJSON, s.checkUser)
	s.router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(s.handleMethodNotAllowed)

	// Routes that neither need a user nor CSRF protection.
	s.router.Handle("/metrics", metrics.Handler()).Methods("GET")
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods("GET")

	// Routes open to guests. Guests still need a CSRF token to register or log in.
	guest := s.router.NewRoute().Subrouter()
	guest.Use(csrfMw)
	s.registerAuthRoutes(guest)
	s.registerOAuthRoutes(guest)

	// Routes requiring a signed in user. The user check runs first, so that guests
	// get a 401 no matter what they send.
	authed := s.router.NewRoute().Subrouter()
	authed.Use(s.requireAuth, csrfMw)
	s.registerSessionRoutes(authed)
	s.registerTweetRoutes(authed)
	s.registerLikeRoutes(authed)

	s.handler = s.cors(s.logRequests(s.markPlaintext(s.router)))
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Run listens on addr and serves the app until ctx is cancelled, then shuts down
// gracefully, giving in-flight requests a few seconds to finish.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       time.Minute,
	}

	errc := make(chan error, 1)
	go func() {
		zap.L().Info("listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
