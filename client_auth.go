package reelclient

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/MrEthical07/reelclient/session"
)

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, username, password string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrEmptyCredentials
	}

	r, err := jsonRequest(http.MethodPost, "/auth/register", registerRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return nil, err
	}

	var user User
	if err := c.do(ctx, r, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login exchanges credentials for a token through the password form flow
// and installs it in the session. Rejected credentials arrive as a 401 and
// therefore also run the unauthorized path.
func (c *Client) Login(ctx context.Context, username, password string) (*session.Identity, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrEmptyCredentials
	}

	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	r := request{
		method:      http.MethodPost,
		path:        "/auth/token",
		body:        strings.NewReader(form.Encode()),
		contentType: contentTypeForm,
	}

	var tok TokenResponse
	if err := c.do(ctx, r, &tok); err != nil {
		c.loginFailed(ctx, username, err)
		return nil, err
	}
	if err := c.session.SetToken(ctx, tok.AccessToken); err != nil {
		c.loginFailed(ctx, username, err)
		return nil, err
	}

	c.metrics.Inc(MetricLoginSuccess)
	c.emit(ctx, Event{Type: EventLoginSuccess, Username: username})
	return c.session.Identity(), nil
}

func (c *Client) loginFailed(ctx context.Context, username string, err error) {
	c.metrics.Inc(MetricLoginFailure)
	c.emit(ctx, Event{Type: EventLoginFailure, Username: username, Error: err.Error()})
}

// Logout clears the session. It is idempotent and only fails when the
// persisted token could not be removed.
func (c *Client) Logout(ctx context.Context) error {
	return c.session.Logout(ctx)
}

// SetToken installs a token obtained elsewhere.
func (c *Client) SetToken(ctx context.Context, token string) error {
	return c.session.SetToken(ctx, token)
}
