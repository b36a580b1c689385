package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"miniTweet/auth"
	"miniTweet/domain"
	"miniTweet/errs"
)

const oauthStateCookieName = "oauth_state"

func (s *Server) registerOAuthRoutes(r *mux.Router) {
	r.HandleFunc("/oauth/github/login", s.handleGithubLogin).Methods("GET")
	r.HandleFunc("/oauth/github/callback", s.handleGithubCallback).Methods("GET")
}

// handleGithubLogin handles the route "GET /oauth/github/login".
// It remembers a random state in a cookie and redirects to Github's consent page.
func (s *Server) handleGithubLogin(w http.ResponseWriter, r *http.Request) {
	if s.github == nil {
		errs.ReturnError(w, r, errs.Errorf(errs.ENOTFOUND, "Github login is not configured."))
		return
	}
	state, err := auth.String(32)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    state,
		Path:     "/oauth",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   s.isProd,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, s.github.AuthCodeURL(state), http.StatusFound)
}

// githubUser is the part of Github's user resource needed to sign someone in.
type githubUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// handleGithubCallback handles the route "GET /oauth/github/callback".
// It trades the code for a token, looks up the Github account, signs in the user linked
// to it (linking or creating one first if needed) and redirects back to the client.
func (s *Server) handleGithubCallback(w http.ResponseWriter, r *http.Request) {
	if s.github == nil {
		errs.ReturnError(w, r, errs.Errorf(errs.ENOTFOUND, "Github login is not configured."))
		return
	}

	// Compare the state Github sent back with the one stored before the redirect.
	cookie, err := r.Cookie(oauthStateCookieName)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		errs.ReturnError(w, r, errs.Errorf(errs.EBADREQUEST, "Invalid oauth state."))
		return
	}
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookieName, Path: "/oauth", MaxAge: -1})

	gu, err := s.fetchGithubUser(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		zap.L().Warn("github login failed",
			zap.String("request_id", r.Header.Get(requestIDHeader)),
			zap.Error(err),
		)
		errs.ReturnError(w, r, errs.Errorf(errs.EBADREQUEST, "Github login failed."))
		return
	}

	user, err := s.githubAccountUser(r.Context(), gu)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	if err := s.signIn(w, r.Context(), user); err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	http.Redirect(w, r, s.clientURL.String(), http.StatusFound)
}

// fetchGithubUser exchanges the authorization code and requests the Github user with the token.
func (s *Server) fetchGithubUser(ctx context.Context, code string) (*githubUser, error) {
	if code == "" {
		return nil, fmt.Errorf("missing authorization code")
	}
	token, err := s.github.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchanging code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.githubUserURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := s.github.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting user: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("requesting user: unexpected status %d", resp.StatusCode)
	}

	var gu githubUser
	if err := json.NewDecoder(resp.Body).Decode(&gu); err != nil {
		return nil, fmt.Errorf("decoding user: %w", err)
	}
	if gu.ID == 0 {
		return nil, fmt.Errorf("github user has no id")
	}
	return &gu, nil
}

// githubAccountUser returns the user linked to a Github account. Accounts seen for the
// first time are linked to the user with the same email address, or to a new user
// without a password.
func (s *Server) githubAccountUser(ctx context.Context, gu *githubUser) (*domain.User, error) {
	providerID := strconv.FormatInt(gu.ID, 10)

	link, err := s.os.ByProvider(ctx, domain.OAuthProviderGithub, providerID)
	if err == nil {
		return link.User, nil
	}
	if errs.ErrorCode(err) != errs.ENOTFOUND {
		return nil, err
	}

	email := gu.Email
	if email == "" {
		email = fmt.Sprintf("%d+%s@users.noreply.github.com", gu.ID, gu.Login)
	}

	user, err := s.us.ByEmail(ctx, email)
	switch errs.ErrorCode(err) {
	case "":
	case errs.ENOTFOUND:
		name := gu.Name
		if name == "" {
			name = gu.Login
		}
		user = &domain.User{Name: name, Email: email, NoPasswordNeeded: true}
		if err := s.us.Create(ctx, user); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	link = &domain.OAuth{
		UserID:     user.ID,
		Provider:   domain.OAuthProviderGithub,
		ProviderID: providerID,
	}
	if err := s.os.Create(ctx, link); err != nil {
		return nil, err
	}
	return user, nil
}
