package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"testdesk/internal/domain"
	"testdesk/internal/repository"
	apperrors "testdesk/pkg/errors"
	"testdesk/pkg/logger"
	"testdesk/pkg/token"
)

// defaultReservationTTL bounds the poll+fingerprint reservation for polls
// without an active duration, so an abandoned session eventually frees its
// slot.
const defaultReservationTTL = 24 * time.Hour

// ParticipationService owns the anonymous side of a poll: issuing sessions,
// validating the bearer token on every participation request and recording
// submitted answers exactly once per session.
type ParticipationService struct {
	pollRepo     repository.PollRepository
	responseRepo repository.ResponseRepository
	sessions     repository.SessionStore
	codec        *token.Codec
	singleActive bool
	logger       *logger.Logger
	now          func() time.Time
}

// NewParticipationService creates a new participation service
func NewParticipationService(
	pollRepo repository.PollRepository,
	responseRepo repository.ResponseRepository,
	sessions repository.SessionStore,
	codec *token.Codec,
	singleActive bool,
	log *logger.Logger,
) *ParticipationService {
	return &ParticipationService{
		pollRepo:     pollRepo,
		responseRepo: responseRepo,
		sessions:     sessions,
		codec:        codec,
		singleActive: singleActive,
		logger:       log,
		now:          time.Now,
	}
}

// StartSession opens a participation session for a published poll and
// returns the bearer token the respondent presents from then on.
func (s *ParticipationService) StartSession(ctx context.Context, pollUUID uuid.UUID, req *domain.StartSessionRequest) (*domain.StartSessionResponse, error) {
	fingerprint := strings.TrimSpace(req.Fingerprint)
	if fingerprint == "" {
		return nil, apperrors.NewValidationError("Fingerprint is required", nil)
	}

	poll, err := s.pollRepo.GetByUUID(ctx, pollUUID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load poll for session start")
		return nil, apperrors.NewInternalError("Failed to start session", err)
	}
	if poll == nil {
		return nil, apperrors.NewNotFoundError("Poll not found")
	}
	if !poll.Status.AcceptsParticipants() {
		return nil, apperrors.NewConflictError("Poll is not open for participation")
	}

	if poll.MaxParticipants != nil {
		issued, err := s.sessions.CountByPoll(ctx, poll.UUID.String())
		if err != nil {
			s.logger.WithError(err).Error("Failed to count sessions for session start")
			return nil, apperrors.NewInternalError("Failed to start session", err)
		}
		if issued >= *poll.MaxParticipants {
			return nil, apperrors.NewConflictError("Poll has reached its participant limit")
		}
	}

	if s.singleActive {
		ttl := defaultReservationTTL
		if poll.ActiveDuration != nil {
			ttl = time.Duration(*poll.ActiveDuration) * time.Minute
		}
		free, err := s.sessions.ReserveActive(ctx, poll.UUID.String(), fingerprint, ttl)
		if err != nil {
			s.logger.WithError(err).Error("Failed to reserve session slot")
			return nil, apperrors.NewInternalError("Failed to start session", err)
		}
		if !free {
			return nil, apperrors.NewConflictError("An active session already exists for this poll")
		}
	}

	tokenString, sessionID, err := s.codec.GenerateSessionToken(poll.UUID.String())
	if err != nil {
		s.logger.WithError(err).Error("Failed to sign session token")
		return nil, apperrors.NewInternalError("Failed to start session", err)
	}

	now := s.now()
	session := &domain.Session{
		Token:       tokenString,
		Fingerprint: fingerprint,
		PollUUID:    poll.UUID.String(),
		CreatedAt:   now,
	}
	if poll.ActiveDuration != nil {
		expiresAt := now.Add(time.Duration(*poll.ActiveDuration) * time.Minute)
		session.ExpiresAt = &expiresAt
	}

	if err := s.sessions.Insert(ctx, session); err != nil {
		s.logger.WithError(err).Error("Failed to store session")
		return nil, apperrors.NewInternalError("Failed to start session", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"poll_uuid":  poll.UUID.String(),
		"session_id": sessionID,
	}).Info("Participation session started")

	return &domain.StartSessionResponse{Token: tokenString, SessionID: sessionID}, nil
}

// ResolveSession validates a participation token against the poll it was
// issued for. It returns (nil, nil) when there is no token or the token is
// bound to a different poll, meaning the caller should start a new session.
func (s *ParticipationService) ResolveSession(ctx context.Context, tokenString, fingerprint string, pollUUID uuid.UUID) (*domain.Session, error) {
	if tokenString == "" {
		return nil, nil
	}

	claims, err := s.codec.ValidateSessionToken(tokenString)
	if err != nil {
		return nil, apperrors.NewAuthenticationError("Could not validate credentials")
	}
	if claims.PollUUID != pollUUID.String() {
		return nil, nil
	}

	session, err := s.sessions.FindByToken(ctx, tokenString)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load session")
		return nil, apperrors.NewInternalError("Failed to validate session", err)
	}
	if session == nil {
		return nil, apperrors.NewNotFoundError("Session not found")
	}

	if fingerprint != "" && session.Fingerprint != fingerprint {
		return nil, apperrors.NewAuthenticationError("Invalid fingerprint")
	}

	if session.Expired {
		return nil, apperrors.NewAuthenticationError("Session expired")
	}
	if !session.Fresh(s.now()) {
		// write the flag through so every later path agrees
		if err := s.sessions.MarkExpired(ctx, session.Token); err != nil {
			s.logger.WithError(err).Warn("Failed to persist lazy session expiry")
		}
		return nil, apperrors.NewAuthenticationError("Session expired")
	}

	if session.Answered {
		return nil, apperrors.NewConflictError("You have already completed this poll")
	}

	return session, nil
}

// GetPoll returns the respondent view of a published poll
func (s *ParticipationService) GetPoll(ctx context.Context, pollUUID uuid.UUID) (*domain.Poll, error) {
	poll, err := s.pollRepo.GetByUUID(ctx, pollUUID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load poll")
		return nil, apperrors.NewInternalError("Failed to load poll", err)
	}
	if poll == nil {
		return nil, apperrors.NewNotFoundError("Poll not found")
	}
	if !poll.Status.AcceptsParticipants() {
		return nil, apperrors.NewConflictError("Poll is not open for participation")
	}
	return poll, nil
}

// SubmitResponses records all answers of one session in a single shot. The
// session is consumed first through a conditional store-side flip, so a
// concurrent double submit loses before any row is written; the relational
// write that follows is one transaction.
func (s *ParticipationService) SubmitResponses(ctx context.Context, pollUUID uuid.UUID, session *domain.Session, req *domain.SubmitResponsesRequest) ([]domain.Response, error) {
	poll, err := s.pollRepo.GetByUUID(ctx, pollUUID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load poll for submission")
		return nil, apperrors.NewInternalError("Failed to record responses", err)
	}
	if poll == nil {
		return nil, apperrors.NewNotFoundError("Poll not found")
	}
	if !poll.Status.AcceptsParticipants() {
		return nil, apperrors.NewConflictError("Poll is not open for participation")
	}

	// a session can run out between validation and submission
	if session.Expired {
		return nil, apperrors.NewAuthenticationError("Session expired")
	}
	if !session.Fresh(s.now()) {
		if err := s.sessions.MarkExpired(ctx, session.Token); err != nil {
			s.logger.WithError(err).Warn("Failed to persist lazy session expiry")
		}
		return nil, apperrors.NewAuthenticationError("Session expired")
	}

	if len(req.Responses) == 0 {
		return nil, apperrors.NewValidationError("At least one answer is required", nil)
	}

	questions := make(map[int]*domain.Question, len(poll.Questions))
	for i := range poll.Questions {
		questions[poll.Questions[i].ID] = &poll.Questions[i]
	}

	rows := make([]domain.Response, 0, len(req.Responses))
	for _, answer := range req.Responses {
		question, ok := questions[answer.QuestionID]
		if !ok {
			return nil, apperrors.NewNotFoundError("Question not found")
		}
		row, err := buildResponseRow(poll.ID, question, answer, session.Token)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	answered, err := s.sessions.MarkAnswered(ctx, session.Token, poll.UUID.String())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrAlreadyAnswered):
			return nil, apperrors.NewConflictError("You have already completed this poll")
		case errors.Is(err, repository.ErrSessionNotFound):
			return nil, apperrors.NewNotFoundError("Session not found")
		case errors.Is(err, repository.ErrSessionExpired):
			return nil, apperrors.NewAuthenticationError("Session expired")
		}
		s.logger.WithError(err).Error("Failed to consume session")
		return nil, apperrors.NewInternalError("Failed to record responses", err)
	}

	saved, err := s.responseRepo.CreateBatch(ctx, rows)
	if err != nil {
		// give the slot back so the respondent can retry
		if revertErr := s.sessions.UnmarkAnswered(ctx, session.Token, poll.UUID.String()); revertErr != nil {
			s.logger.WithError(revertErr).Error("Failed to revert consumed session")
		}
		s.logger.WithError(err).Error("Failed to persist responses")
		return nil, apperrors.NewInternalError("Failed to record responses", err)
	}

	if poll.MaxParticipants != nil && answered >= *poll.MaxParticipants {
		if err := s.pollRepo.UpdateStatus(ctx, poll.ID, domain.PollStatusEnded); err != nil {
			s.logger.WithError(err).Error("Failed to end full poll")
		} else {
			s.logger.WithField("poll_uuid", poll.UUID.String()).Info("Poll reached its participant limit and was ended")
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"poll_uuid": poll.UUID.String(),
		"answers":   len(saved),
	}).Info("Responses recorded")

	return saved, nil
}

// buildResponseRow validates one answer against its question's type and
// shapes the row to persist.
func buildResponseRow(pollID int, question *domain.Question, answer domain.AnswerPayload, sessionToken string) (domain.Response, error) {
	row := domain.Response{
		PollID:       pollID,
		QuestionID:   question.ID,
		SessionToken: sessionToken,
	}

	switch question.Type {
	case domain.QuestionTypeSingle:
		if answer.ChoiceID == nil || len(answer.ChoiceIDs) > 0 || len(answer.AnswerText) > 0 {
			return row, apperrors.NewValidationError("Single answer questions take exactly one choice", nil)
		}
		if question.ChoiceByID(*answer.ChoiceID) == nil {
			return row, apperrors.NewValidationError("Choice does not belong to this question", nil)
		}
		row.AnswerChoice = []int{*answer.ChoiceID}

	case domain.QuestionTypePlural:
		if len(answer.ChoiceIDs) == 0 || answer.ChoiceID != nil || len(answer.AnswerText) > 0 {
			return row, apperrors.NewValidationError("Plural answer questions take one or more choices", nil)
		}
		seen := make(map[int]bool, len(answer.ChoiceIDs))
		for _, choiceID := range answer.ChoiceIDs {
			if question.ChoiceByID(choiceID) == nil {
				return row, apperrors.NewValidationError("Choice does not belong to this question", nil)
			}
			if seen[choiceID] {
				return row, apperrors.NewValidationError("Duplicate choice in answer", nil)
			}
			seen[choiceID] = true
		}
		row.AnswerChoice = answer.ChoiceIDs

	case domain.QuestionTypeFree:
		if len(answer.AnswerText) == 0 || answer.ChoiceID != nil || len(answer.ChoiceIDs) > 0 {
			return row, apperrors.NewValidationError("Free answer questions take text fields", nil)
		}
		for _, text := range answer.AnswerText {
			if strings.TrimSpace(text) == "" {
				return row, apperrors.NewValidationError("Text answers must not be empty", nil)
			}
		}
		row.AnswerText = answer.AnswerText

	case domain.QuestionTypeFreeText:
		if len(answer.AnswerText) != 1 || answer.ChoiceID != nil || len(answer.ChoiceIDs) > 0 {
			return row, apperrors.NewValidationError("Free text questions take exactly one text field", nil)
		}
		if strings.TrimSpace(answer.AnswerText[0]) == "" {
			return row, apperrors.NewValidationError("Text answers must not be empty", nil)
		}
		row.AnswerText = answer.AnswerText

	default:
		return row, apperrors.NewValidationError("Unknown question type", nil)
	}

	return row, nil
}
