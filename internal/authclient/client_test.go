package authclient

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"authgate/internal/provider"
	"authgate/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockAPI is a hand-rolled provider.API for exercising the client without a
// network.
type mockAPI struct {
	signInFunc  func(ctx context.Context, email, password string) (*provider.Grant, error)
	refreshFunc func(ctx context.Context, refreshToken string) (*provider.Grant, error)
	signOutFunc func(ctx context.Context, accessToken string) error

	signInCalls  atomic.Int64
	refreshCalls atomic.Int64
	signOutCalls atomic.Int64
}

func (m *mockAPI) SignInWithPassword(ctx context.Context, email, password string) (*provider.Grant, error) {
	m.signInCalls.Add(1)
	if m.signInFunc != nil {
		return m.signInFunc(ctx, email, password)
	}
	return nil, &provider.Error{Kind: provider.KindProvider, Message: "not configured"}
}

func (m *mockAPI) RefreshSession(ctx context.Context, refreshToken string) (*provider.Grant, error) {
	m.refreshCalls.Add(1)
	if m.refreshFunc != nil {
		return m.refreshFunc(ctx, refreshToken)
	}
	return nil, &provider.Error{Kind: provider.KindProvider, Message: "not configured"}
}

func (m *mockAPI) SignOut(ctx context.Context, accessToken string) error {
	m.signOutCalls.Add(1)
	if m.signOutFunc != nil {
		return m.signOutFunc(ctx, accessToken)
	}
	return nil
}

func (m *mockAPI) GetUser(ctx context.Context, accessToken string) (*session.User, error) {
	return nil, &provider.Error{Kind: provider.KindProvider, Message: "not configured"}
}

func grantFor(email string, expiresAt time.Time) *provider.Grant {
	return &provider.Grant{
		AccessToken:  "access-" + email,
		RefreshToken: "refresh-" + email,
		ExpiresAt:    expiresAt,
		User:         session.User{ID: "user-1", Email: email},
	}
}

func acceptingAPI() *mockAPI {
	return &mockAPI{
		signInFunc: func(ctx context.Context, email, password string) (*provider.Grant, error) {
			if password != "correct-pw" {
				return nil, &provider.Error{Kind: provider.KindInvalidCredentials, Message: "Invalid login credentials"}
			}
			return grantFor(email, time.Now().Add(time.Hour)), nil
		},
	}
}

func TestSignInPersistsSession(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	defer store.Close()
	client := New(acceptingAPI(), store)

	sess, err := client.SignIn(ctx, "dev@example.com", "correct-pw")
	require.NoError(t, err)
	assert.Equal(t, "dev@example.com", sess.User.Email)

	current, err := client.CurrentSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "dev@example.com", current.User.Email)
}

func TestSignInInvalidCredentialsLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	defer store.Close()
	api := acceptingAPI()
	client := New(api, store)

	_, err := client.SignIn(ctx, "dev@example.com", "wrong-pw")
	require.Error(t, err)
	assert.Equal(t, provider.KindInvalidCredentials, provider.KindOf(err))

	current, err := client.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)

	// One submission, no silent retry
	assert.EqualValues(t, 1, api.signInCalls.Load())
}

func TestSignInNotifiesSubscribers(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	defer store.Close()
	client := New(acceptingAPI(), store)

	var seen []*session.Session
	unsubscribe := client.Subscribe(func(s *session.Session) { seen = append(seen, s) })
	defer unsubscribe()

	_, err := client.SignIn(ctx, "dev@example.com", "correct-pw")
	require.NoError(t, err)
	require.NoError(t, client.SignOut(ctx))

	require.Len(t, seen, 2)
	require.NotNil(t, seen[0])
	assert.Equal(t, "dev@example.com", seen[0].User.Email)
	assert.Nil(t, seen[1])
}

func TestSignOutClearsLocallyDespiteProviderFailure(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	defer store.Close()

	api := acceptingAPI()
	api.signOutFunc = func(ctx context.Context, accessToken string) error {
		return &provider.Error{Kind: provider.KindNetwork, Message: "connection refused"}
	}
	client := New(api, store)

	_, err := client.SignIn(ctx, "dev@example.com", "correct-pw")
	require.NoError(t, err)

	err = client.SignOut(ctx)
	require.Error(t, err) // surfaced for non-blocking notification only
	assert.Equal(t, provider.KindNetwork, provider.KindOf(err))

	current, err := client.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, current, "local logout must succeed even when the provider call fails")
}

func TestSignOutIsIdempotentWhenNoSession(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	defer store.Close()
	api := acceptingAPI()
	client := New(api, store)

	require.NoError(t, client.SignOut(ctx))
	assert.EqualValues(t, 0, api.signOutCalls.Load(), "no provider call without a token to invalidate")
}

func TestCurrentSessionFreshSkipsProvider(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	defer store.Close()
	api := acceptingAPI()
	client := New(api, store)

	_, err := client.SignIn(ctx, "dev@example.com", "correct-pw")
	require.NoError(t, err)

	_, err = client.CurrentSession(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, api.refreshCalls.Load())
}

func seedExpiredSession(t *testing.T, store session.Store) {
	t.Helper()
	err := store.Set(context.Background(), &session.Session{
		AccessToken:  "stale-access",
		RefreshToken: "stale-refresh",
		ExpiresAt:    time.Now().Add(-time.Minute),
		User:         session.User{ID: "user-1", Email: "dev@example.com"},
	})
	require.NoError(t, err)
}

func TestCurrentSessionRefreshesExpired(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	defer store.Close()

	api := acceptingAPI()
	api.refreshFunc = func(ctx context.Context, refreshToken string) (*provider.Grant, error) {
		assert.Equal(t, "stale-refresh", refreshToken)
		return grantFor("dev@example.com", time.Now().Add(time.Hour)), nil
	}
	client := New(api, store)
	seedExpiredSession(t, store)

	sess, err := client.CurrentSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.False(t, sess.Expired(0))
	assert.EqualValues(t, 1, api.refreshCalls.Load())

	// The refreshed session is persisted
	stored, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, sess.AccessToken, stored.AccessToken)
}

func TestCurrentSessionRefreshFailureClearsStore(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	defer store.Close()

	api := acceptingAPI()
	api.refreshFunc = func(ctx context.Context, refreshToken string) (*provider.Grant, error) {
		return nil, &provider.Error{Kind: provider.KindProvider, Message: "refresh token revoked"}
	}
	client := New(api, store)
	seedExpiredSession(t, store)

	sess, err := client.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, sess)

	stored, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, stored)

	// Exactly one refresh attempt, then the session is gone for good
	assert.EqualValues(t, 1, api.refreshCalls.Load())
	sess, err = client.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, sess)
	assert.EqualValues(t, 1, api.refreshCalls.Load())
}

func TestConcurrentExpiredReadsRefreshOnce(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	defer store.Close()

	api := acceptingAPI()
	api.refreshFunc = func(ctx context.Context, refreshToken string) (*provider.Grant, error) {
		time.Sleep(50 * time.Millisecond) // let the other readers pile up
		return grantFor("dev@example.com", time.Now().Add(time.Hour)), nil
	}
	client := New(api, store)
	seedExpiredSession(t, store)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess, err := client.CurrentSession(ctx)
			assert.NoError(t, err)
			assert.NotNil(t, sess)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, api.refreshCalls.Load())
}
