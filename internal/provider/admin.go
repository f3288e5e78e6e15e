package provider

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"authgate/internal/session"
)

// Admin is the privileged provider handle, constructed from the
// service-role key. It is deliberately a separate type from Client: code
// holding a Client can never reach privileged endpoints by aliasing, and a
// grep for Admin finds every privileged call site. The hosting UI never
// touches it; it exists for server-side jobs run by the deployment.
type Admin struct {
	client *Client
}

// NewAdmin creates a privileged handle. The service-role key replaces the
// publishable key on every request.
func NewAdmin(baseURL, serviceRoleKey string, timeout time.Duration) (*Admin, error) {
	if serviceRoleKey == "" {
		return nil, errors.New("service role key is required")
	}
	c, err := NewClient(Config{BaseURL: baseURL, AnonKey: serviceRoleKey, Timeout: timeout})
	if err != nil {
		return nil, err
	}
	return &Admin{client: c}, nil
}

// GetUserByID looks a user up server-side, bypassing access tokens.
func (a *Admin) GetUserByID(ctx context.Context, id string) (*session.User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, &Error{Kind: KindProvider, Message: "user id is required"}
	}

	var resp wireUser
	err := a.client.do(ctx, http.MethodGet, "/admin/users/"+id, nil, a.client.anonKey, &resp)
	if err != nil {
		return nil, err
	}
	return &session.User{
		ID:       resp.ID,
		Email:    resp.Email,
		FullName: resp.UserMetadata.FullName,
	}, nil
}
