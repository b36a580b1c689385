package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/csrf"
	"github.com/gorilla/mux"

	"miniTweet/auth"
	"miniTweet/domain"
	"miniTweet/errs"
)

const (
	rememberCookieName = "remember_token"
	xsrfCookieName     = "XSRF-TOKEN"
	rememberDuration   = 30 * 24 * time.Hour
)

// registerAuthRoutes is a helper for registering the routes open to guests.
func (s *Server) registerAuthRoutes(r *mux.Router) {
	// Hand out a CSRF token the client must send back on every unsafe request.
	r.HandleFunc("/csrf-cookie", s.handleCSRFCookie).Methods("GET")

	r.HandleFunc("/register", s.handleRegister).Methods("POST")
	r.HandleFunc("/login", s.handleLogin).Methods("POST")
}

// registerSessionRoutes is a helper for registering the routes about the signed in user.
func (s *Server) registerSessionRoutes(r *mux.Router) {
	r.HandleFunc("/logout", s.handleLogout).Methods("POST")
	r.HandleFunc("/api/user", s.handleMe).Methods("GET")
}

// handleCSRFCookie handles the route "GET /csrf-cookie".
// It stores a fresh masked CSRF token in the XSRF-TOKEN cookie. The cookie is readable by
// scripts, so the client can copy its value into the X-XSRF-TOKEN header.
func (s *Server) handleCSRFCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     xsrfCookieName,
		Value:    csrf.Token(r),
		Path:     "/",
		MaxAge:   int((12 * time.Hour).Seconds()),
		Secure:   s.isProd,
		SameSite: s.sameSite(),
	})
	w.WriteHeader(http.StatusNoContent)
}

type registerForm struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// handleRegister handles the route "POST /register".
// It creates a new user from the submitted name, email and password and signs them in.
// The password has to be typed twice.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var form registerForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		errs.ReturnError(w, r, errs.Errorf(errs.EBADREQUEST, "Invalid json body."))
		return
	}
	if form.Password != "" && form.Password != form.PasswordConfirmation {
		errs.ReturnError(w, r, errs.FieldErrorf("password", "The password confirmation does not match."))
		return
	}

	user := domain.User{
		Name:     form.Name,
		Email:    form.Email,
		Password: form.Password,
	}
	if err := s.us.Create(r.Context(), &user); err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	if err := s.signIn(w, r.Context(), &user); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(&user); err != nil {
		errs.LogError(r, err)
	}
}

type loginForm struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleLogin handles the route "POST /login".
// It checks the submitted credentials and signs the user in.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var form loginForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		errs.ReturnError(w, r, errs.Errorf(errs.EBADREQUEST, "Invalid json body."))
		return
	}
	if form.Email == "" {
		errs.ReturnError(w, r, errs.FieldErrorf("email", "The email field is required."))
		return
	}
	if form.Password == "" {
		errs.ReturnError(w, r, errs.FieldErrorf("password", "The password field is required."))
		return
	}

	user, err := s.us.Authenticate(r.Context(), form.Email, form.Password)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	if err := s.signIn(w, r.Context(), user); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(user); err != nil {
		errs.LogError(r, err)
	}
}

// handleLogout handles the route "POST /logout".
// It expires the remember cookie and rotates the user's remember token, so that a
// copy of the old cookie can't be used anymore.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())

	token, err := s.us.MakeRememberToken()
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	user.Remember = token
	if err := s.us.Update(r.Context(), user); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	http.SetCookie(w, s.rememberCookie("", -1))
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]string{"message": "Logged out."}); err != nil {
		errs.LogError(r, err)
	}
}

// handleMe handles the route "GET /api/user" and returns the signed in user.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(user); err != nil {
		errs.LogError(r, err)
	}
}

// signIn is used to sign the given user in via cookies. Users loaded from the database
// don't carry their remember token, so a new one is created and stored.
func (s *Server) signIn(w http.ResponseWriter, ctx context.Context, user *domain.User) error {
	if user.Remember == "" {
		token, err := s.us.MakeRememberToken()
		if err != nil {
			return err
		}
		user.Remember = token
		if err := s.us.Update(ctx, user); err != nil {
			return err
		}
	}
	http.SetCookie(w, s.rememberCookie(user.Remember, int(rememberDuration.Seconds())))
	return nil
}

func (s *Server) rememberCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     rememberCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.isProd,
		SameSite: s.sameSite(),
	}
}

// sameSite returns the SameSite mode of the app's cookies. The client runs on its own
// origin, so in production its requests are cross-site and need SameSite=None.
func (s *Server) sameSite() http.SameSite {
	if s.isProd {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

// checkUser identifies the user by the remember token in the request's cookie and
// stores them in the request context. Requests without a valid cookie carry on as guests.
func (s *Server) checkUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(rememberCookieName)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}
		user, err := s.us.ByRemember(r.Context(), cookie.Value)
		if err != nil {
			if code := errs.ErrorCode(err); code != errs.ENOTFOUND && code != errs.EUNAUTHORIZED {
				errs.LogError(r, err)
			}
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.SetUser(r.Context(), user)))
	})
}

// requireAuth rejects guests with a 401.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.GetUser(r.Context()) == nil {
			errs.ReturnError(w, r, errs.Errorf(errs.EUNAUTHORIZED, "Unauthenticated."))
			return
		}
		next.ServeHTTP(w, r)
	})
}
