package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSession(email string) *Session {
	return &Session{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    time.Now().Add(time.Hour),
		User: User{
			ID:       "user-1",
			Email:    email,
			FullName: "Dev User",
		},
	}
}

func TestSessionValid(t *testing.T) {
	assert.True(t, testSession("dev@example.com").Valid())

	var nilSession *Session
	assert.False(t, nilSession.Valid())

	partial := testSession("dev@example.com")
	partial.AccessToken = ""
	assert.False(t, partial.Valid())

	partial = testSession("dev@example.com")
	partial.User.Email = ""
	assert.False(t, partial.Valid())
}

func TestSessionExpired(t *testing.T) {
	s := testSession("dev@example.com")
	assert.False(t, s.Expired(0))

	s.ExpiresAt = time.Now().Add(-time.Minute)
	assert.True(t, s.Expired(0))

	// Leeway treats a soon-to-expire token as already expired
	s.ExpiresAt = time.Now().Add(10 * time.Second)
	assert.True(t, s.Expired(30*time.Second))

	var nilSession *Session
	assert.True(t, nilSession.Expired(0))
}

func TestMemoryStoreSetGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()

	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	want := testSession("dev@example.com")
	require.NoError(t, store.Set(ctx, want))

	got, err = store.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "dev@example.com", got.User.Email)

	// Mutating the returned record must not reach the stored one
	got.User.Email = "mutated@example.com"
	again, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "dev@example.com", again.User.Email)
}

func TestMemoryStoreRejectsIncompleteSession(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()

	s := testSession("dev@example.com")
	s.AccessToken = ""

	err := store.Set(ctx, s)
	require.ErrorIs(t, err, ErrIncompleteSession)

	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStoreNotifiesAllListeners(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()

	// Two listeners standing in for two tabs of the same browser profile
	var tabA, tabB []*Session
	store.Subscribe(func(s *Session) { tabA = append(tabA, s) })
	store.Subscribe(func(s *Session) { tabB = append(tabB, s) })

	require.NoError(t, store.Set(ctx, testSession("dev@example.com")))
	require.NoError(t, store.Clear(ctx))

	for _, seen := range [][]*Session{tabA, tabB} {
		require.Len(t, seen, 2)
		require.NotNil(t, seen[0])
		assert.Equal(t, "dev@example.com", seen[0].User.Email)
		assert.Nil(t, seen[1])
	}
}

func TestMemoryStoreUnsubscribe(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()

	var calls int
	unsubscribe := store.Subscribe(func(*Session) { calls++ })

	require.NoError(t, store.Set(ctx, testSession("dev@example.com")))
	unsubscribe()
	require.NoError(t, store.Clear(ctx))

	assert.Equal(t, 1, calls)
}

func TestMemoryStoreClosed(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Close())

	_, err := store.Get(ctx)
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.ErrorIs(t, store.Set(ctx, testSession("dev@example.com")), ErrStoreClosed)
	assert.ErrorIs(t, store.Clear(ctx), ErrStoreClosed)
}
