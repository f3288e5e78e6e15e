package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"authgate/internal/session"
)

const (
	// DefaultTimeout bounds every provider call so a hung provider cannot
	// pin a sign-in or refresh indefinitely.
	DefaultTimeout = 5 * time.Second

	apiKeyHeader = "apikey"
)

// Config configures the provider client.
type Config struct {
	// BaseURL is the root of the provider's auth API, without trailing slash
	BaseURL string
	// AnonKey is the publishable API key sent with every request
	AnonKey string
	// Timeout bounds each request; DefaultTimeout when zero
	Timeout time.Duration
	// HTTPClient overrides the transport, mainly for tests
	HTTPClient *http.Client
}

// Client talks to the identity provider with the publishable key. It holds
// no session state; persistence belongs to the session stores.
type Client struct {
	baseURL string
	anonKey string
	timeout time.Duration
	http    *http.Client
}

// NewClient creates a provider client from the given configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("provider base URL is required")
	}
	if cfg.AnonKey == "" {
		return nil, errors.New("provider anon key is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		anonKey: cfg.AnonKey,
		timeout: timeout,
		http:    httpClient,
	}, nil
}

// SignInWithPassword exchanges credentials for a grant.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Grant, error) {
	var resp tokenResponse
	err := c.do(ctx, http.MethodPost, "/token?grant_type=password",
		passwordGrantRequest{Email: email, Password: password}, "", &resp)
	if err != nil {
		return nil, err
	}
	return c.grantFromToken(&resp)
}

// RefreshSession redeems a refresh token for a new grant.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*Grant, error) {
	var resp tokenResponse
	err := c.do(ctx, http.MethodPost, "/token?grant_type=refresh_token",
		refreshGrantRequest{RefreshToken: refreshToken}, "", &resp)
	if err != nil {
		return nil, err
	}
	return c.grantFromToken(&resp)
}

// SignOut asks the provider to invalidate the access token.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodPost, "/logout", nil, accessToken, nil)
}

// GetUser fetches the profile behind an access token.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*session.User, error) {
	var resp wireUser
	if err := c.do(ctx, http.MethodGet, "/user", nil, accessToken, &resp); err != nil {
		return nil, err
	}
	return &session.User{
		ID:       resp.ID,
		Email:    resp.Email,
		FullName: resp.UserMetadata.FullName,
	}, nil
}

// grantFromToken normalizes a token response. Expiry comes from the
// response when present, from the access token's claims otherwise.
func (c *Client) grantFromToken(resp *tokenResponse) (*Grant, error) {
	g := &Grant{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		User: session.User{
			ID:       resp.User.ID,
			Email:    resp.User.Email,
			FullName: resp.User.UserMetadata.FullName,
		},
	}

	switch {
	case resp.ExpiresAt > 0:
		g.ExpiresAt = time.Unix(resp.ExpiresAt, 0)
	case resp.ExpiresIn > 0:
		g.ExpiresAt = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}

	// Some deployments omit expiry or user fields from the grant body; the
	// access token's claims carry both.
	if claims, err := parseAccessToken(resp.AccessToken); err == nil {
		if g.ExpiresAt.IsZero() && claims.ExpiresAt != nil {
			g.ExpiresAt = claims.ExpiresAt.Time
		}
		if g.User.ID == "" {
			g.User.ID = claims.Subject
		}
		if g.User.Email == "" {
			g.User.Email = claims.Email
		}
		if g.User.FullName == "" {
			g.User.FullName = claims.UserMetadata.FullName
		}
	}

	if g.AccessToken == "" || g.User.ID == "" {
		return nil, &Error{Kind: KindProvider, Message: "provider returned an incomplete grant"}
	}
	return g, nil
}

// do performs one provider request with the bounded timeout, sending the
// publishable key and an optional bearer token, and normalizes failures
// into tagged errors.
func (c *Client) do(ctx context.Context, method, path string, body any, bearer string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reqBody bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&reqBody).Encode(body); err != nil {
			return &Error{Kind: KindProvider, Message: fmt.Sprintf("failed to encode request: %v", err)}
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &reqBody)
	if err != nil {
		return &Error{Kind: KindProvider, Message: err.Error()}
	}
	req.Header.Set(apiKeyHeader, c.anonKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return networkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return classifyFailure(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &Error{Kind: KindProvider, Message: fmt.Sprintf("failed to decode response: %v", err), Status: resp.StatusCode}
		}
	}
	return nil
}

// classifyFailure maps a provider error response onto the error taxonomy.
// Rejected credentials surface as invalid_grant on the token endpoints.
func classifyFailure(resp *http.Response) *Error {
	var body errorResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)

	kind := KindProvider
	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
		switch {
		case body.ErrorField == "invalid_grant",
			body.ErrorCode == "invalid_credentials",
			strings.Contains(body.Msg, "Invalid login credentials"):
			kind = KindInvalidCredentials
		}
	}

	return &Error{Kind: kind, Message: body.message(), Status: resp.StatusCode}
}
