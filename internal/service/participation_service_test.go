package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"testdesk/internal/domain"
	"testdesk/internal/repository"
	apperrors "testdesk/pkg/errors"
	"testdesk/pkg/logger"
	"testdesk/pkg/redis"
	"testdesk/pkg/token"
)

type participationFixture struct {
	svc       *ParticipationService
	polls     *fakePollRepo
	responses *fakeResponseRepo
	store     *repository.SessionRepository
	mr        *miniredis.Miniredis
	codec     *token.Codec
}

func newParticipationFixture(t *testing.T) *participationFixture {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := redis.NewClient("redis://"+mr.Addr(), "test", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	polls := newFakePollRepo()
	responses := newFakeResponseRepo()
	store := repository.NewSessionRepository(client)
	codec := token.NewCodec("test-secret", 15*time.Minute, time.Hour)

	svc := NewParticipationService(polls, responses, store, codec, true, logger.NewNop())

	return &participationFixture{
		svc:       svc,
		polls:     polls,
		responses: responses,
		store:     store,
		mr:        mr,
		codec:     codec,
	}
}

func intPtr(v int) *int { return &v }

// seedPoll stores a poll with one question of each type and returns it
func (f *participationFixture) seedPoll(t *testing.T, status domain.PollStatus, maxParticipants, activeDuration *int) *domain.Poll {
	poll := &domain.Poll{
		UUID:            uuid.New(),
		Title:           "Team survey",
		Status:          status,
		MaxParticipants: maxParticipants,
		ActiveDuration:  activeDuration,
		UserID:          1,
		Questions: []domain.Question{
			{
				Type: domain.QuestionTypeSingle,
				Text: "Pick one",
				Choices: []domain.Choice{
					{Text: "Red"},
					{Text: "Blue"},
				},
			},
			{
				Type: domain.QuestionTypePlural,
				Text: "Pick many",
				Choices: []domain.Choice{
					{Text: "Mon"},
					{Text: "Tue"},
					{Text: "Wed"},
				},
			},
			{
				Type: domain.QuestionTypeFree,
				Text: "Name three things",
			},
			{
				Type: domain.QuestionTypeFreeText,
				Text: "Anything else?",
			},
		},
	}
	require.NoError(t, f.polls.Create(context.Background(), poll))
	return poll
}

// startSession opens a session and resolves it back into a document
func (f *participationFixture) startSession(t *testing.T, poll *domain.Poll, fingerprint string) (*domain.StartSessionResponse, *domain.Session) {
	ctx := context.Background()
	started, err := f.svc.StartSession(ctx, poll.UUID, &domain.StartSessionRequest{Fingerprint: fingerprint})
	require.NoError(t, err)

	session, err := f.svc.ResolveSession(ctx, started.Token, fingerprint, poll.UUID)
	require.NoError(t, err)
	require.NotNil(t, session)
	return started, session
}

// fullAnswers answers every question of a seeded poll correctly
func fullAnswers(poll *domain.Poll) *domain.SubmitResponsesRequest {
	single, plural, free, freeText := poll.Questions[0], poll.Questions[1], poll.Questions[2], poll.Questions[3]
	return &domain.SubmitResponsesRequest{
		Responses: []domain.AnswerPayload{
			{QuestionID: single.ID, ChoiceID: intPtr(single.Choices[0].ID)},
			{QuestionID: plural.ID, ChoiceIDs: []int{plural.Choices[0].ID, plural.Choices[2].ID}},
			{QuestionID: free.ID, AnswerText: []string{"coffee", "tea", "water"}},
			{QuestionID: freeText.ID, AnswerText: []string{"all good"}},
		},
	}
}

func assertErrType(t *testing.T, err error, expected apperrors.ErrorType) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, expected), "expected %s error, got %v", expected, err)
}

func TestStartSession_IssuesTokenBoundToPoll(t *testing.T) {
	f := newParticipationFixture(t)
	poll := f.seedPoll(t, domain.PollStatusPublished, nil, intPtr(30))

	started, session := f.startSession(t, poll, "fp-1")

	assert.NotEmpty(t, started.Token)
	assert.NotEmpty(t, started.SessionID)
	assert.Equal(t, poll.UUID.String(), session.PollUUID)
	assert.Equal(t, "fp-1", session.Fingerprint)
	require.NotNil(t, session.ExpiresAt)

	claims, err := f.codec.ValidateSessionToken(started.Token)
	require.NoError(t, err)
	assert.Equal(t, poll.UUID.String(), claims.PollUUID)
}

func TestStartSession_PollNotFound(t *testing.T) {
	f := newParticipationFixture(t)

	_, err := f.svc.StartSession(context.Background(), uuid.New(), &domain.StartSessionRequest{Fingerprint: "fp-1"})
	assertErrType(t, err, apperrors.ErrorTypeNotFound)
}

func TestStartSession_RejectsUnpublishedPoll(t *testing.T) {
	f := newParticipationFixture(t)

	for _, status := range []domain.PollStatus{
		domain.PollStatusDraft,
		domain.PollStatusClosed,
		domain.PollStatusEnded,
		domain.PollStatusArchived,
	} {
		poll := f.seedPoll(t, status, nil, nil)
		_, err := f.svc.StartSession(context.Background(), poll.UUID, &domain.StartSessionRequest{Fingerprint: "fp-1"})
		assertErrType(t, err, apperrors.ErrorTypeConflict)
	}
}

func TestStartSession_RequiresFingerprint(t *testing.T) {
	f := newParticipationFixture(t)
	poll := f.seedPoll(t, domain.PollStatusPublished, nil, nil)

	_, err := f.svc.StartSession(context.Background(), poll.UUID, &domain.StartSessionRequest{})
	assertErrType(t, err, apperrors.ErrorTypeValidation)
}

func TestStartSession_CapacityLimit(t *testing.T) {
	f := newParticipationFixture(t)
	poll := f.seedPoll(t, domain.PollStatusPublished, intPtr(1), nil)

	_, err := f.svc.StartSession(context.Background(), poll.UUID, &domain.StartSessionRequest{Fingerprint: "fp-1"})
	require.NoError(t, err)

	_, err = f.svc.StartSession(context.Background(), poll.UUID, &domain.StartSessionRequest{Fingerprint: "fp-2"})
	assertErrType(t, err, apperrors.ErrorTypeConflict)
}

func TestStartSession_ZeroCapacityAdmitsNobody(t *testing.T) {
	f := newParticipationFixture(t)
	poll := f.seedPoll(t, domain.PollStatusPublished, intPtr(0), nil)

	_, err := f.svc.StartSession(context.Background(), poll.UUID, &domain.StartSessionRequest{Fingerprint: "fp-1"})
	assertErrType(t, err, apperrors.ErrorTypeConflict)
}

func TestStartSession_SingleActivePerFingerprint(t *testing.T) {
	f := newParticipationFixture(t)
	poll := f.seedPoll(t, domain.PollStatusPublished, nil, intPtr(30))

	_, err := f.svc.StartSession(context.Background(), poll.UUID, &domain.StartSessionRequest{Fingerprint: "fp-1"})
	require.NoError(t, err)

	_, err = f.svc.StartSession(context.Background(), poll.UUID, &domain.StartSessionRequest{Fingerprint: "fp-1"})
	assertErrType(t, err, apperrors.ErrorTypeConflict)

	// a different respondent is unaffected
	_, err = f.svc.StartSession(context.Background(), poll.UUID, &domain.StartSessionRequest{Fingerprint: "fp-2"})
	require.NoError(t, err)
}

func TestStartSession_ReservationExpiresWithSession(t *testing.T) {
	f := newParticipationFixture(t)
	poll := f.seedPoll(t, domain.PollStatusPublished, nil, intPtr(1))

	_, err := f.svc.StartSession(context.Background(), poll.UUID, &domain.StartSessionRequest{Fingerprint: "fp-1"})
	require.NoError(t, err)

	f.mr.FastForward(2 * time.Minute)

	_, err = f.svc.StartSession(context.Background(), poll.UUID, &domain.StartSessionRequest{Fingerprint: "fp-1"})
	require.NoError(t, err)
}

func TestStartSession_PolicyDisabledAllowsSecondStart(t *testing.T) {
	f := newParticipationFixture(t)
	f.svc.singleActive = false
	poll := f.seedPoll(t, domain.PollStatusPublished, nil, intPtr(30))

	_, err := f.svc.StartSession(context.Background(), poll.UUID, &domain.StartSessionRequest{Fingerprint: "fp-1"})
	require.NoError(t, err)
	_, err = f.svc.StartSession(context.Background(), poll.UUID, &domain.StartSessionRequest{Fingerprint: "fp-1"})
	require.NoError(t, err)
}

func TestResolveSession_NoToken(t *testing.T) {
	f := newParticipationFixture(t)
	poll := f.seedPoll(t, domain.PollStatusPublished, nil, nil)

	session, err := f.svc.ResolveSession(context.Background(), "", "fp-1", poll.UUID)
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestResolveSession_TokenForDifferentPoll(t *testing.T) {
	f := newParticipationFixture(t)
	first := f.seedPoll(t, domain.PollStatusPublished, nil, nil)
	second := f.seedPoll(t, domain.PollStatusPublished, nil, nil)

	started, _ := f.startSession(t, first, "fp-1")

	// the same token presented against another poll asks for a new session
	session, err := f.svc.ResolveSession(context.Background(), started.Token, "fp-1", second.UUID)
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestResolveSession_GarbageToken(t *testing.T) {
	f := newParticipationFixture(t)
	poll := f.seedPoll(t, domain.PollStatusPublished, nil, nil)

	_, err := f.svc.ResolveSession(context.Background(), "not-a-jwt", "fp-1", poll.UUID)
	assertErrType(t, err, apperrors.ErrorTypeAuthentication)
}

func TestResolveSession_UnknownButValidToken(t *testing.T) {
	f := newParticipationFixture(t)
	poll := f.seedPoll(t, domain.PollStatusPublished, nil, nil)

	// well signed, never inserted into the store
	tokenString, _, err := f.codec.GenerateSessionToken(poll.UUID.String())
	require.NoError(t, err)

	_, err = f.svc.ResolveSession(context.Background(), tokenString, "fp-1", poll.UUID)
	assertErrType(t, err, apperrors.ErrorTypeNotFound)
}

func TestResolveSession_FingerprintMismatch(t *testing.T) {
	f := newParticipationFixture(t)
	poll := f.seedPoll(t, domain.PollStatusPublished, nil, nil)

	started, _ := f.startSession(t, poll, "fp-1")

	_, err := f.svc.ResolveSession(context.Background(), started.Token, "fp-other", poll.UUID)
	assertErrType(t, err, apperrors.ErrorTypeAuthentication)
}

func TestResolveSession_LazyExpiry(t *testing.T) {
	f := newParticipationFixture(t)
	poll := f.seedPoll(t, domain.PollStatusPublished, nil, intPtr(30))

	started, _ := f.startSession(t, poll, "fp-1")

	// move service time past the session deadline
	f.svc.now = func() time.Time { return time.Now().Add(31 * time.Minute) }

	_, err := f.svc.ResolveSession(context.Background(), started.Token, "fp-1", poll.UUID)
	assertErrType(t, err, apperrors.ErrorTypeAuthentication)

	// the overdue check was written through to the store
	stored, err := f.store.FindByToken(context.Background(), started.Token)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.Expired)
}

func TestResolveSession_AnsweredIsConflict(t *testing.T) {
	f := newParticipationFixture(t)
	poll := f.seedPoll(t, domain.PollStatusPublished, nil, nil)

	started, session := f.startSession(t, poll, "fp-1")

	_, err := f.svc.SubmitResponses(context.Background(), poll.UUID, session, fullAnswers(poll))
	require.NoError(t, err)

	_, err = f.svc.ResolveSession(context.Background(), started.Token, "fp-1", poll.UUID)
	assertErrType(t, err, apperrors.ErrorTypeConflict)
}

func TestSubmitResponses_RecordsAllAnswerShapes(t *testing.T) {
	f := newParticipationFixture(t)
	poll := f.seedPoll(t, domain.PollStatusPublished, nil, nil)

	_, session := f.startSession(t, poll, "fp-1")

	saved, err := f.svc.SubmitResponses(context.Background(), poll.UUID, session, fullAnswers(poll))
	require.NoError(t, err)
	require.Len(t, saved, 4)

	single, plural, free, freeText := saved[0], saved[1], saved[2], saved[3]
	assert.Equal(t, []int{poll.Questions[0].Choices[0].ID}, single.AnswerChoice)
	assert.Len(t, plural.AnswerChoice, 2)
	assert.Equal(t, []string{"coffee", "tea", "water"}, free.AnswerText)
	assert.Equal(t, []string{"all good"}, freeText.AnswerText)
	for _, r := range saved {
		assert.Equal(t, session.Token, r.SessionToken)
		assert.Equal(t, poll.ID, r.PollID)
	}
}

func TestSubmitResponses_ValidationFailures(t *testing.T) {
	f := newParticipationFixture(t)
	poll := f.seedPoll(t, domain.PollStatusPublished, nil, nil)
	single, plural, free, freeText := poll.Questions[0], poll.Questions[1], poll.Questions[2], poll.Questions[3]

	tests := []struct {
		name   string
		answer domain.AnswerPayload
	}{
		{
			name:   "single answer without choice",
			answer: domain.AnswerPayload{QuestionID: single.ID, AnswerText: []string{"nope"}},
		},
		{
			name:   "single answer with foreign choice",
			answer: domain.AnswerPayload{QuestionID: single.ID, ChoiceID: intPtr(plural.Choices[0].ID)},
		},
		{
			name:   "single answer with several choices",
			answer: domain.AnswerPayload{QuestionID: single.ID, ChoiceID: intPtr(single.Choices[0].ID), ChoiceIDs: []int{single.Choices[1].ID}},
		},
		{
			name:   "plural answer without choices",
			answer: domain.AnswerPayload{QuestionID: plural.ID},
		},
		{
			name:   "plural answer with duplicate choice",
			answer: domain.AnswerPayload{QuestionID: plural.ID, ChoiceIDs: []int{plural.Choices[0].ID, plural.Choices[0].ID}},
		},
		{
			name:   "free answer without text",
			answer: domain.AnswerPayload{QuestionID: free.ID},
		},
		{
			name:   "free answer with blank text",
			answer: domain.AnswerPayload{QuestionID: free.ID, AnswerText: []string{"ok", "  "}},
		},
		{
			name:   "free text answer with two fields",
			answer: domain.AnswerPayload{QuestionID: freeText.ID, AnswerText: []string{"a", "b"}},
		},
		{
			name:   "free text answer with choice",
			answer: domain.AnswerPayload{QuestionID: freeText.ID, ChoiceID: intPtr(single.Choices[0].ID), AnswerText: []string{"a"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, session := f.startSession(t, poll, "fp-"+tt.name)

			_, err := f.svc.SubmitResponses(context.Background(), poll.UUID, session, &domain.SubmitResponsesRequest{
				Responses: []domain.AnswerPayload{tt.answer},
			})
			assertErrType(t, err, apperrors.ErrorTypeValidation)

			// nothing was persisted and the session survived for a retry
			resolved, err := f.svc.ResolveSession(context.Background(), session.Token, session.Fingerprint, poll.UUID)
			require.NoError(t, err)
			assert.NotNil(t, resolved)
		})
	}
}

func TestSubmitResponses_UnknownQuestion(t *testing.T) {
	f := newParticipationFixture(t)
	poll := f.seedPoll(t, domain.PollStatusPublished, nil, nil)

	_, session := f.startSession(t, poll, "fp-1")

	_, err := f.svc.SubmitResponses(context.Background(), poll.UUID, session, &domain.SubmitResponsesRequest{
		Responses: []domain.AnswerPayload{{QuestionID: 99999, AnswerText: []string{"x"}}},
	})
	assertErrType(t, err, apperrors.ErrorTypeNotFound)
}

func TestSubmitResponses_EmptySubmission(t *testing.T) {
	f := newParticipationFixture(t)
	poll := f.seedPoll(t, domain.PollStatusPublished, nil, nil)

	_, session := f.startSession(t, poll, "fp-1")

	_, err := f.svc.SubmitResponses(context.Background(), poll.UUID, session, &domain.SubmitResponsesRequest{})
	assertErrType(t, err, apperrors.ErrorTypeValidation)
}

func TestSubmitResponses_DoubleSubmitLosesOnce(t *testing.T) {
	f := newParticipationFixture(t)
	poll := f.seedPoll(t, domain.PollStatusPublished, nil, nil)

	_, session := f.startSession(t, poll, "fp-1")

	_, err := f.svc.SubmitResponses(context.Background(), poll.UUID, session, fullAnswers(poll))
	require.NoError(t, err)

	// same session document submitted again, as a racing request would
	_, err = f.svc.SubmitResponses(context.Background(), poll.UUID, session, fullAnswers(poll))
	assertErrType(t, err, apperrors.ErrorTypeConflict)

	// the loser wrote no rows
	rows, err := f.responses.ListByPoll(context.Background(), poll.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestSubmitResponses_CapacityEndsPoll(t *testing.T) {
	f := newParticipationFixture(t)
	poll := f.seedPoll(t, domain.PollStatusPublished, intPtr(1), nil)

	_, session := f.startSession(t, poll, "fp-1")

	_, err := f.svc.SubmitResponses(context.Background(), poll.UUID, session, fullAnswers(poll))
	require.NoError(t, err)

	stored, err := f.polls.GetByUUID(context.Background(), poll.UUID)
	require.NoError(t, err)
	assert.Equal(t, domain.PollStatusEnded, stored.Status)
}

func TestSubmitResponses_BelowCapacityKeepsPollOpen(t *testing.T) {
	f := newParticipationFixture(t)
	poll := f.seedPoll(t, domain.PollStatusPublished, intPtr(2), nil)

	_, session := f.startSession(t, poll, "fp-1")

	_, err := f.svc.SubmitResponses(context.Background(), poll.UUID, session, fullAnswers(poll))
	require.NoError(t, err)

	stored, err := f.polls.GetByUUID(context.Background(), poll.UUID)
	require.NoError(t, err)
	assert.Equal(t, domain.PollStatusPublished, stored.Status)
}

func TestSubmitResponses_StoreFailureFreesSession(t *testing.T) {
	f := newParticipationFixture(t)
	poll := f.seedPoll(t, domain.PollStatusPublished, nil, nil)

	_, session := f.startSession(t, poll, "fp-1")

	f.responses.createErr = fmt.Errorf("connection lost")
	_, err := f.svc.SubmitResponses(context.Background(), poll.UUID, session, fullAnswers(poll))
	assertErrType(t, err, apperrors.ErrorTypeInternal)

	// the consumed flag was reverted, a retry succeeds
	f.responses.createErr = nil
	saved, err := f.svc.SubmitResponses(context.Background(), poll.UUID, session, fullAnswers(poll))
	require.NoError(t, err)
	assert.Len(t, saved, 4)
}

func TestSubmitResponses_RejectsNonPublishedPoll(t *testing.T) {
	f := newParticipationFixture(t)
	poll := f.seedPoll(t, domain.PollStatusPublished, nil, nil)

	_, session := f.startSession(t, poll, "fp-1")

	// the owner closed the poll while the respondent was answering
	require.NoError(t, f.polls.UpdateStatus(context.Background(), poll.ID, domain.PollStatusClosed))

	_, err := f.svc.SubmitResponses(context.Background(), poll.UUID, session, fullAnswers(poll))
	assertErrType(t, err, apperrors.ErrorTypeConflict)
}

func TestSubmitResponses_RejectsOverdueSession(t *testing.T) {
	f := newParticipationFixture(t)
	poll := f.seedPoll(t, domain.PollStatusPublished, nil, intPtr(1))

	_, session := f.startSession(t, poll, "fp-1")

	// the window closed while the respondent was still typing
	f.svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	_, err := f.svc.SubmitResponses(context.Background(), poll.UUID, session, fullAnswers(poll))
	assertErrType(t, err, apperrors.ErrorTypeAuthentication)

	rows, err := f.responses.ListByPoll(context.Background(), poll.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)

	// the expiry was written through, later lookups see it too
	stored, err := f.store.FindByToken(context.Background(), session.Token)
	require.NoError(t, err)
	assert.True(t, stored.Expired)
}

func TestSubmitResponses_RejectsSweptSession(t *testing.T) {
	f := newParticipationFixture(t)
	poll := f.seedPoll(t, domain.PollStatusPublished, nil, intPtr(30))

	_, session := f.startSession(t, poll, "fp-1")

	// the sweeper flagged the session after this request resolved it
	require.NoError(t, f.store.MarkExpired(context.Background(), session.Token))

	_, err := f.svc.SubmitResponses(context.Background(), poll.UUID, session, fullAnswers(poll))
	assertErrType(t, err, apperrors.ErrorTypeAuthentication)

	rows, err := f.responses.ListByPoll(context.Background(), poll.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestGetPoll_RespondentView(t *testing.T) {
	f := newParticipationFixture(t)
	poll := f.seedPoll(t, domain.PollStatusPublished, nil, nil)

	got, err := f.svc.GetPoll(context.Background(), poll.UUID)
	require.NoError(t, err)
	assert.Equal(t, poll.UUID, got.UUID)
	assert.Len(t, got.Questions, 4)

	draft := f.seedPoll(t, domain.PollStatusDraft, nil, nil)
	_, err = f.svc.GetPoll(context.Background(), draft.UUID)
	assertErrType(t, err, apperrors.ErrorTypeConflict)

	_, err = f.svc.GetPoll(context.Background(), uuid.New())
	assertErrType(t, err, apperrors.ErrorTypeNotFound)
}
