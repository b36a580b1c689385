// Package client talks to the miniTweet API the way the browser app does: it keeps the
// session cookies, and echoes the XSRF-TOKEN cookie in the X-XSRF-TOKEN header of every
// request that changes something.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"

	"miniTweet/domain"
)

const (
	xsrfCookieName = "XSRF-TOKEN"
	xsrfHeaderName = "X-XSRF-TOKEN"
)

// APIError is returned for every response outside the 2xx range.
type APIError struct {
	StatusCode int
	Message    string
	Errors     map[string][]string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("client: %d %s", e.StatusCode, e.Message)
}

// FeedPage is one page of the feed as the API returns it.
type FeedPage struct {
	Data        []domain.Tweet `json:"data"`
	CurrentPage int            `json:"current_page"`
	NextPageURL *string        `json:"next_page_url"`
}

// Client is an API client with its own cookie session. It's safe for concurrent use.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// New returns a client for the API at baseURL, e.g. "http://localhost:8080".
func New(baseURL string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: u,
		http:    &http.Client{Jar: jar},
	}, nil
}

// CSRFCookie asks the server for a fresh CSRF token.
func (c *Client) CSRFCookie(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/csrf-cookie", nil, nil)
}

// Register creates an account and signs it in.
func (c *Client) Register(ctx context.Context, name, email, password, passwordConfirmation string) (*domain.User, error) {
	in := map[string]string{
		"name":                  name,
		"email":                 email,
		"password":              password,
		"password_confirmation": passwordConfirmation,
	}
	var user domain.User
	if err := c.do(ctx, http.MethodPost, "/register", in, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login signs in with an email address and password.
func (c *Client) Login(ctx context.Context, email, password string) (*domain.User, error) {
	in := map[string]string{"email": email, "password": password}
	var user domain.User
	if err := c.do(ctx, http.MethodPost, "/login", in, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout ends the session.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/logout", nil, nil)
}

// Me returns the signed in user.
func (c *Client) Me(ctx context.Context) (*domain.User, error) {
	var user domain.User
	if err := c.do(ctx, http.MethodGet, "/api/user", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Feed returns a page of the feed, latest tweets first.
func (c *Client) Feed(ctx context.Context, page int) (*FeedPage, error) {
	var fp FeedPage
	if err := c.do(ctx, http.MethodGet, "/api/tweets?page="+strconv.Itoa(page), nil, &fp); err != nil {
		return nil, err
	}
	return &fp, nil
}

// CreateTweet posts a tweet as the signed in user.
func (c *Client) CreateTweet(ctx context.Context, body string) (*domain.Tweet, error) {
	var tweet domain.Tweet
	if err := c.do(ctx, http.MethodPost, "/api/tweets", map[string]string{"body": body}, &tweet); err != nil {
		return nil, err
	}
	return &tweet, nil
}

// Like likes a tweet and returns its new like state.
func (c *Client) Like(ctx context.Context, tweetID int) (*domain.LikeState, error) {
	return c.likeState(ctx, http.MethodPost, tweetID)
}

// Unlike takes back a like and returns the tweet's new like state.
func (c *Client) Unlike(ctx context.Context, tweetID int) (*domain.LikeState, error) {
	return c.likeState(ctx, http.MethodDelete, tweetID)
}

func (c *Client) likeState(ctx context.Context, method string, tweetID int) (*domain.LikeState, error) {
	var state domain.LikeState
	if err := c.do(ctx, method, fmt.Sprintf("/api/tweets/%d/like", tweetID), nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// xsrfToken returns the CSRF token the server stored in the cookie jar, if any.
func (c *Client) xsrfToken() string {
	for _, ck := range c.http.Jar.Cookies(c.baseURL) {
		if ck.Name == xsrfCookieName {
			return ck.Value
		}
	}
	return ""
}

// do sends a json request and decodes the json response into out. Requests that change
// something fetch a CSRF token first if the session has none yet.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	ref, err := url.Parse(path)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.ResolveReference(ref).String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if method != http.MethodGet && method != http.MethodHead {
		if c.xsrfToken() == "" {
			if err := c.CSRFCookie(ctx); err != nil {
				return err
			}
		}
		req.Header.Set(xsrfHeaderName, c.xsrfToken())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseAPIError(resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

// parseAPIError reads the message and field errors of an error response. Bodies that
// aren't json, like those of a proxy in front of the API, fall back to the status text.
func parseAPIError(status int, data []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	if gjson.ValidBytes(data) {
		res := gjson.ParseBytes(data)
		apiErr.Message = res.Get("message").String()
		res.Get("errors").ForEach(func(field, msgs gjson.Result) bool {
			if apiErr.Errors == nil {
				apiErr.Errors = map[string][]string{}
			}
			for _, m := range msgs.Array() {
				apiErr.Errors[field.String()] = append(apiErr.Errors[field.String()], m.String())
			}
			return true
		})
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
