package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"testdesk/internal/domain"
	"testdesk/pkg/redis"
)

// Store-level sentinels surfaced by SessionStore implementations
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrAlreadyAnswered = errors.New("session already answered")
)

// markAnsweredScript flips answered false->true as a single store-side
// conditional write. The pre-checks and the write cannot interleave with a
// concurrent submission or sweep, which closes the double-submit race and
// rejects a session the sweeper flagged after it was validated. Returns the
// poll's answered count after the flip, -1 when already answered, -2 when
// the session hash is gone, -3 when the session is expired.
var markAnsweredScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -2
end
if redis.call('HGET', KEYS[1], 'expired') == 'true' then
  return -3
end
if redis.call('HGET', KEYS[1], 'answered') == 'true' then
  return -1
end
redis.call('HSET', KEYS[1], 'answered', 'true')
redis.call('SADD', KEYS[2], ARGV[1])
return redis.call('SCARD', KEYS[2])
`)

// SessionRepository stores participation sessions in Redis: one hash per
// token plus per-poll token sets for counting and sweeping.
type SessionRepository struct {
	client *redis.Client
}

// NewSessionRepository creates a Redis-backed session store
func NewSessionRepository(client *redis.Client) *SessionRepository {
	return &SessionRepository{client: client}
}

// Insert stores a new session document
func (r *SessionRepository) Insert(ctx context.Context, session *domain.Session) error {
	key := r.client.KeyBuilder.KeySession(session.Token)

	expiresAt := ""
	if session.ExpiresAt != nil {
		expiresAt = session.ExpiresAt.UTC().Format(time.RFC3339)
	}

	err := r.client.HSet(ctx, key,
		"fingerprint", session.Fingerprint,
		"poll_uuid", session.PollUUID,
		"created_at", session.CreatedAt.UTC().Format(time.RFC3339),
		"expires_at", expiresAt,
		"expired", fmt.Sprintf("%t", session.Expired),
		"answered", fmt.Sprintf("%t", session.Answered),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	if err := r.client.SAdd(ctx, r.client.KeyBuilder.KeyPollSessions(session.PollUUID), session.Token); err != nil {
		return fmt.Errorf("failed to index session: %w", err)
	}
	return nil
}

// FindByToken returns the session for a token, or nil when absent
func (r *SessionRepository) FindByToken(ctx context.Context, token string) (*domain.Session, error) {
	fields, err := r.client.HGetAll(ctx, r.client.KeyBuilder.KeySession(token))
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return sessionFromFields(token, fields)
}

// MarkExpired sets expired=true; setting it twice is harmless
func (r *SessionRepository) MarkExpired(ctx context.Context, token string) error {
	key := r.client.KeyBuilder.KeySession(token)
	n, err := r.client.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to check session: %w", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	if err := r.client.HSet(ctx, key, "expired", "true"); err != nil {
		return fmt.Errorf("failed to expire session: %w", err)
	}
	return nil
}

// MarkAnswered flips answered false->true conditionally and returns the new
// answered count for the poll.
func (r *SessionRepository) MarkAnswered(ctx context.Context, token, pollUUID string) (int, error) {
	keys := []string{
		r.client.KeyBuilder.KeySession(token),
		r.client.KeyBuilder.KeyPollAnswered(pollUUID),
	}
	res, err := r.client.Eval(ctx, markAnsweredScript, keys, token)
	if err != nil {
		return 0, fmt.Errorf("failed to mark session answered: %w", err)
	}
	count, ok := res.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected script result %v", res)
	}
	switch count {
	case -1:
		return 0, ErrAlreadyAnswered
	case -2:
		return 0, ErrSessionNotFound
	case -3:
		return 0, ErrSessionExpired
	}
	return int(count), nil
}

// UnmarkAnswered reverts MarkAnswered. Used only for compensation when the
// relational write failed after the flag was taken.
func (r *SessionRepository) UnmarkAnswered(ctx context.Context, token, pollUUID string) error {
	if err := r.client.HSet(ctx, r.client.KeyBuilder.KeySession(token), "answered", "false"); err != nil {
		return fmt.Errorf("failed to unmark session: %w", err)
	}
	if err := r.client.SRem(ctx, r.client.KeyBuilder.KeyPollAnswered(pollUUID), token); err != nil {
		return fmt.Errorf("failed to unmark session: %w", err)
	}
	return nil
}

// CountByPoll returns how many sessions were ever issued for the poll
func (r *SessionRepository) CountByPoll(ctx context.Context, pollUUID string) (int, error) {
	n, err := r.client.SCard(ctx, r.client.KeyBuilder.KeyPollSessions(pollUUID))
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return int(n), nil
}

// ListByPoll returns all session documents of a poll
func (r *SessionRepository) ListByPoll(ctx context.Context, pollUUID string) ([]domain.Session, error) {
	tokens, err := r.client.SMembers(ctx, r.client.KeyBuilder.KeyPollSessions(pollUUID))
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	sessions := make([]domain.Session, 0, len(tokens))
	for _, token := range tokens {
		session, err := r.FindByToken(ctx, token)
		if err != nil {
			return nil, err
		}
		if session == nil {
			// hash evicted while still indexed; skip
			continue
		}
		sessions = append(sessions, *session)
	}
	return sessions, nil
}

// PurgeByPoll deletes every session of a poll, its indexes and reservations
func (r *SessionRepository) PurgeByPoll(ctx context.Context, pollUUID string) error {
	tokens, err := r.client.SMembers(ctx, r.client.KeyBuilder.KeyPollSessions(pollUUID))
	if err != nil {
		return fmt.Errorf("failed to list sessions for purge: %w", err)
	}

	keys := make([]string, 0, len(tokens)+2)
	for _, token := range tokens {
		keys = append(keys, r.client.KeyBuilder.KeySession(token))
	}
	keys = append(keys,
		r.client.KeyBuilder.KeyPollSessions(pollUUID),
		r.client.KeyBuilder.KeyPollAnswered(pollUUID),
	)

	reservations, err := r.client.Keys(ctx, r.client.KeyBuilder.KeyActiveSession(pollUUID, "*"))
	if err == nil {
		keys = append(keys, reservations...)
	}

	if err := r.client.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("failed to purge sessions: %w", err)
	}
	return nil
}

// ReserveActive takes the poll+fingerprint reservation via SetNX. The
// reservation carries the session TTL so an expired session frees its slot
// without any explicit release.
func (r *SessionRepository) ReserveActive(ctx context.Context, pollUUID, fingerprint string, ttl time.Duration) (bool, error) {
	key := r.client.KeyBuilder.KeyActiveSession(pollUUID, fingerprint)
	ok, err := r.client.SetNX(ctx, key, "1", ttl)
	if err != nil {
		return false, fmt.Errorf("failed to reserve session: %w", err)
	}
	return ok, nil
}

// sessionFromFields rebuilds a session document from its hash fields
func sessionFromFields(token string, fields map[string]string) (*domain.Session, error) {
	session := &domain.Session{
		Token:       token,
		Fingerprint: fields["fingerprint"],
		PollUUID:    fields["poll_uuid"],
		Expired:     fields["expired"] == "true",
		Answered:    fields["answered"] == "true",
	}

	if raw := fields["created_at"]; raw != "" {
		createdAt, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("malformed session created_at: %w", err)
		}
		session.CreatedAt = createdAt
	}

	if raw := fields["expires_at"]; raw != "" {
		expiresAt, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("malformed session expires_at: %w", err)
		}
		session.ExpiresAt = &expiresAt
	}

	return session, nil
}
