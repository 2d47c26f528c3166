// Package authclient talks to the remote authentication service.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/edunirix/portal/internal/auth"
)

const maxBodyBytes = 1 << 20

// Client calls the login and change-password endpoints.
type Client struct {
	loginURL          string
	changePasswordURL string
	hc                *http.Client
}

// Config configures a Client.
type Config struct {
	LoginURL          string
	ChangePasswordURL string
	Timeout           time.Duration
	HTTPClient        *http.Client
}

// New constructs a Client.
func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		loginURL:          cfg.LoginURL,
		changePasswordURL: cfg.ChangePasswordURL,
		hc:                hc,
	}
}

type errorBody struct {
	Message string `json:"message"`
}

type changePasswordBody struct {
	User auth.User `json:"user"`
}

// Login exchanges credentials for a token and user record.
func (c *Client) Login(ctx context.Context, creds auth.Credentials) (*auth.LoginResult, error) {
	var result auth.LoginResult
	if err := c.post(ctx, c.loginURL, "", creds, &result); err != nil {
		return nil, err
	}
	if result.Token == "" {
		return nil, &TransportError{Op: "decode login", Err: errors.New("response has no token")}
	}
	return &result, nil
}

// ChangePassword replaces the password of the account owning token and
// returns the updated user.
func (c *Client) ChangePassword(ctx context.Context, token string, change auth.PasswordChange) (*auth.User, error) {
	var body changePasswordBody
	if err := c.post(ctx, c.changePasswordURL, token, change, &body); err != nil {
		return nil, err
	}
	return &body.User, nil
}

func (c *Client) post(ctx context.Context, url, token string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return &TransportError{Op: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return &TransportError{Op: "post " + url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &TransportError{Op: "read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		_ = json.Unmarshal(body, &eb)
		return &AuthenticationError{StatusCode: resp.StatusCode, Message: eb.Message}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &TransportError{Op: "decode response", Err: err}
	}
	return nil
}
