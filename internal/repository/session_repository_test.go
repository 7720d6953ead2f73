package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"testdesk/internal/domain"
	"testdesk/pkg/redis"
)

func setupSessionStore(t *testing.T) (*miniredis.Miniredis, *SessionRepository) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := redis.NewClient("redis://"+mr.Addr(), "test", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return mr, NewSessionRepository(client)
}

func testSession(token, pollUUID string) *domain.Session {
	return &domain.Session{
		Token:       token,
		Fingerprint: "fp-1",
		PollUUID:    pollUUID,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
}

func TestSessionRepository_InsertAndFind(t *testing.T) {
	_, store := setupSessionStore(t)
	ctx := context.Background()

	expiresAt := time.Now().UTC().Add(30 * time.Minute).Truncate(time.Second)
	session := testSession("tok-1", "poll-1")
	session.ExpiresAt = &expiresAt

	require.NoError(t, store.Insert(ctx, session))

	found, err := store.FindByToken(ctx, "tok-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "tok-1", found.Token)
	assert.Equal(t, "fp-1", found.Fingerprint)
	assert.Equal(t, "poll-1", found.PollUUID)
	assert.Equal(t, session.CreatedAt, found.CreatedAt)
	require.NotNil(t, found.ExpiresAt)
	assert.Equal(t, expiresAt, *found.ExpiresAt)
	assert.False(t, found.Expired)
	assert.False(t, found.Answered)
}

func TestSessionRepository_FindMissing(t *testing.T) {
	_, store := setupSessionStore(t)

	found, err := store.FindByToken(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestSessionRepository_NoExpiry(t *testing.T) {
	_, store := setupSessionStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testSession("tok-1", "poll-1")))

	found, err := store.FindByToken(ctx, "tok-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Nil(t, found.ExpiresAt)
	assert.True(t, found.Fresh(time.Now().Add(1000*time.Hour)))
}

func TestSessionRepository_MarkExpired(t *testing.T) {
	_, store := setupSessionStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testSession("tok-1", "poll-1")))

	require.NoError(t, store.MarkExpired(ctx, "tok-1"))
	// idempotent
	require.NoError(t, store.MarkExpired(ctx, "tok-1"))

	found, err := store.FindByToken(ctx, "tok-1")
	require.NoError(t, err)
	assert.True(t, found.Expired)

	assert.ErrorIs(t, store.MarkExpired(ctx, "missing"), ErrSessionNotFound)
}

func TestSessionRepository_MarkAnswered(t *testing.T) {
	_, store := setupSessionStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testSession("tok-1", "poll-1")))
	require.NoError(t, store.Insert(ctx, testSession("tok-2", "poll-1")))

	count, err := store.MarkAnswered(ctx, "tok-1", "poll-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = store.MarkAnswered(ctx, "tok-2", "poll-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	found, err := store.FindByToken(ctx, "tok-1")
	require.NoError(t, err)
	assert.True(t, found.Answered)
}

func TestSessionRepository_MarkAnswered_Conflict(t *testing.T) {
	_, store := setupSessionStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testSession("tok-1", "poll-1")))

	_, err := store.MarkAnswered(ctx, "tok-1", "poll-1")
	require.NoError(t, err)

	// the second flip must lose, not double count
	_, err = store.MarkAnswered(ctx, "tok-1", "poll-1")
	assert.ErrorIs(t, err, ErrAlreadyAnswered)

	_, err = store.MarkAnswered(ctx, "missing", "poll-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionRepository_MarkAnswered_Expired(t *testing.T) {
	_, store := setupSessionStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testSession("tok-1", "poll-1")))
	require.NoError(t, store.MarkExpired(ctx, "tok-1"))

	_, err := store.MarkAnswered(ctx, "tok-1", "poll-1")
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestSessionRepository_UnmarkAnswered(t *testing.T) {
	_, store := setupSessionStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testSession("tok-1", "poll-1")))

	count, err := store.MarkAnswered(ctx, "tok-1", "poll-1")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	require.NoError(t, store.UnmarkAnswered(ctx, "tok-1", "poll-1"))

	// the slot is free again
	count, err = store.MarkAnswered(ctx, "tok-1", "poll-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSessionRepository_CountAndList(t *testing.T) {
	_, store := setupSessionStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testSession("tok-1", "poll-1")))
	require.NoError(t, store.Insert(ctx, testSession("tok-2", "poll-1")))
	require.NoError(t, store.Insert(ctx, testSession("tok-3", "poll-2")))

	count, err := store.CountByPoll(ctx, "poll-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	sessions, err := store.ListByPoll(ctx, "poll-1")
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	sessions, err = store.ListByPoll(ctx, "poll-2")
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
	assert.Equal(t, "tok-3", sessions[0].Token)
}

func TestSessionRepository_PurgeByPoll(t *testing.T) {
	_, store := setupSessionStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testSession("tok-1", "poll-1")))
	require.NoError(t, store.Insert(ctx, testSession("tok-2", "poll-1")))
	require.NoError(t, store.Insert(ctx, testSession("tok-3", "poll-2")))

	_, err := store.MarkAnswered(ctx, "tok-1", "poll-1")
	require.NoError(t, err)
	_, err = store.ReserveActive(ctx, "poll-1", "fp-1", time.Minute)
	require.NoError(t, err)

	require.NoError(t, store.PurgeByPoll(ctx, "poll-1"))

	count, err := store.CountByPoll(ctx, "poll-1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	found, err := store.FindByToken(ctx, "tok-1")
	require.NoError(t, err)
	assert.Nil(t, found)

	// the reservation fell with the purge
	free, err := store.ReserveActive(ctx, "poll-1", "fp-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, free)

	// other polls untouched
	count, err = store.CountByPoll(ctx, "poll-2")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSessionRepository_ReserveActive(t *testing.T) {
	mr, store := setupSessionStore(t)
	ctx := context.Background()

	free, err := store.ReserveActive(ctx, "poll-1", "fp-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, free)

	free, err = store.ReserveActive(ctx, "poll-1", "fp-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, free)

	// a different fingerprint or poll is unaffected
	free, err = store.ReserveActive(ctx, "poll-1", "fp-2", time.Minute)
	require.NoError(t, err)
	assert.True(t, free)
	free, err = store.ReserveActive(ctx, "poll-2", "fp-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, free)

	// the reservation frees itself with the session TTL
	mr.FastForward(2 * time.Minute)
	free, err = store.ReserveActive(ctx, "poll-1", "fp-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, free)
}
