package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"miniTweet/crud"
	"miniTweet/domain"
)

const testClientURL = "http://localhost:3000"

func newTestServer(t *testing.T) (*Server, *crud.Services) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:?_foreign_keys=on"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	services, err := crud.NewServices(db,
		crud.WithUser("test-pepper", "test-hmac-key"),
		crud.WithOAuth(),
		crud.WithTweet(),
		crud.WithLike(),
	)
	require.NoError(t, err)
	require.NoError(t, services.AutoMigrate())

	s, err := NewServer(Config{
		ClientURL: testClientURL,
		CSRFKey:   []byte(strings.Repeat("k", 32)),
	}, services)
	require.NoError(t, err)
	return s, services
}

// session is a browser stand-in: it keeps the cookies the server sets and echoes the
// XSRF-TOKEN cookie in the X-XSRF-TOKEN header, like the client app does.
type session struct {
	t       *testing.T
	s       *Server
	cookies map[string]*http.Cookie
}

func newSession(t *testing.T, s *Server) *session {
	return &session{t: t, s: s, cookies: map[string]*http.Cookie{}}
}

// guest returns a session that already picked up a CSRF token.
func guest(t *testing.T, s *Server) *session {
	c := newSession(t, s)
	w := c.do(http.MethodGet, "/csrf-cookie", nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Contains(t, c.cookies, xsrfCookieName)
	return c
}

// signUp registers a new user and returns their signed in session.
func signUp(t *testing.T, s *Server, name string) (*session, domain.User) {
	c := guest(t, s)
	w := c.do(http.MethodPost, "/register", map[string]string{
		"name":                  name,
		"email":                 strings.ToLower(name) + "@example.com",
		"password":              "correct horse",
		"password_confirmation": "correct horse",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var user domain.User
	decode(t, w, &user)
	return c, user
}

func (c *session) do(method, target string, body interface{}) *httptest.ResponseRecorder {
	c.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, rd)
	req.Header.Set("Content-Type", "application/json")
	for _, ck := range c.cookies {
		req.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
	}
	if ck, ok := c.cookies[xsrfCookieName]; ok {
		req.Header.Set(csrfHeaderName, ck.Value)
	}

	w := httptest.NewRecorder()
	c.s.ServeHTTP(w, req)

	for _, ck := range w.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}
