package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"testdesk/internal/domain"
	"testdesk/internal/repository"
	apperrors "testdesk/pkg/errors"
	"testdesk/pkg/logger"
)

// PollService owns the authenticated side of a poll's lifecycle: CRUD,
// status transitions and reporting.
type PollService struct {
	pollRepo      repository.PollRepository
	responseRepo  repository.ResponseRepository
	sessions      repository.SessionStore
	publicBaseURL string
	logger        *logger.Logger
}

// NewPollService creates a new poll service
func NewPollService(
	pollRepo repository.PollRepository,
	responseRepo repository.ResponseRepository,
	sessions repository.SessionStore,
	publicBaseURL string,
	log *logger.Logger,
) *PollService {
	return &PollService{
		pollRepo:      pollRepo,
		responseRepo:  responseRepo,
		sessions:      sessions,
		publicBaseURL: publicBaseURL,
		logger:        log,
	}
}

// Create stores a new draft poll for the user
func (s *PollService) Create(ctx context.Context, userID int, req *domain.CreatePollRequest) (*domain.Poll, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, apperrors.NewValidationError("Title is required", nil)
	}
	if req.MaxParticipants != nil && *req.MaxParticipants < 0 {
		return nil, apperrors.NewValidationError("Participant limit must not be negative", nil)
	}
	if req.ActiveDuration != nil && *req.ActiveDuration < 1 {
		return nil, apperrors.NewValidationError("Active duration must be at least one minute", nil)
	}
	if err := validateQuestions(req.Questions); err != nil {
		return nil, err
	}

	poll := &domain.Poll{
		UUID:            uuid.New(),
		Title:           req.Title,
		Description:     req.Description,
		PollCover:       req.PollCover,
		Status:          domain.PollStatusDraft,
		MaxParticipants: req.MaxParticipants,
		ActiveDuration:  req.ActiveDuration,
		UserID:          userID,
	}
	for _, q := range req.Questions {
		question := domain.Question{
			Type:              q.Type,
			Text:              q.Text,
			QuestionCover:     q.QuestionCover,
			OptionPass:        q.OptionPass,
			OptionOtherAnswer: q.OptionOtherAnswer,
			SortOrder:         q.SortOrder,
		}
		for _, c := range q.Choices {
			question.Choices = append(question.Choices, domain.Choice{
				Text:            c.Text,
				ChoiceCover:     c.ChoiceCover,
				TextFieldsCount: c.TextFieldsCount,
			})
		}
		poll.Questions = append(poll.Questions, question)
	}

	if err := s.pollRepo.Create(ctx, poll); err != nil {
		s.logger.WithError(err).Error("Failed to create poll")
		return nil, apperrors.NewInternalError("Failed to create poll", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"poll_id": poll.ID,
		"user_id": userID,
	}).Info("Poll created")
	return poll, nil
}

// List returns one page of the user's polls
func (s *PollService) List(ctx context.Context, userID int, sortBy, query string, page, pageSize int) (*domain.PollPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	polls, total, err := s.pollRepo.ListByUser(ctx, userID, sortBy, query, page, pageSize)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list polls")
		return nil, apperrors.NewInternalError("Failed to list polls", err)
	}

	return &domain.PollPage{
		Polls:      polls,
		TotalPolls: total,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// Get returns the user's poll with its full question tree
func (s *PollService) Get(ctx context.Context, pollID, userID int) (*domain.Poll, error) {
	poll, err := s.pollRepo.GetByID(ctx, pollID, userID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load poll")
		return nil, apperrors.NewInternalError("Failed to load poll", err)
	}
	if poll == nil {
		return nil, apperrors.NewNotFoundError("Poll not found")
	}
	return poll, nil
}

// Update applies metadata changes and, for drafts, replaces the question tree
func (s *PollService) Update(ctx context.Context, pollID, userID int, req *domain.UpdatePollRequest) (*domain.Poll, error) {
	poll, err := s.Get(ctx, pollID, userID)
	if err != nil {
		return nil, err
	}

	if req.Questions != nil && poll.Status != domain.PollStatusDraft {
		return nil, apperrors.NewConflictError("Only draft polls can change their questions")
	}

	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			return nil, apperrors.NewValidationError("Title is required", nil)
		}
		poll.Title = *req.Title
	}
	if req.Description != nil {
		poll.Description = *req.Description
	}
	if req.PollCover != nil {
		poll.PollCover = req.PollCover
	}
	if req.MaxParticipants != nil {
		if *req.MaxParticipants < 0 {
			return nil, apperrors.NewValidationError("Participant limit must not be negative", nil)
		}
		poll.MaxParticipants = req.MaxParticipants
	}
	if req.ActiveDuration != nil {
		if *req.ActiveDuration < 1 {
			return nil, apperrors.NewValidationError("Active duration must be at least one minute", nil)
		}
		poll.ActiveDuration = req.ActiveDuration
	}

	if err := s.pollRepo.Update(ctx, poll); err != nil {
		s.logger.WithError(err).Error("Failed to update poll")
		return nil, apperrors.NewInternalError("Failed to update poll", err)
	}

	if req.Questions != nil {
		if err := validateQuestions(req.Questions); err != nil {
			return nil, err
		}
		if err := s.pollRepo.ReplaceQuestions(ctx, poll.ID, req.Questions); err != nil {
			s.logger.WithError(err).Error("Failed to replace questions")
			return nil, apperrors.NewInternalError("Failed to update poll", err)
		}
	}

	return s.Get(ctx, pollID, userID)
}

// Delete removes the user's poll and purges its sessions
func (s *PollService) Delete(ctx context.Context, pollID, userID int) error {
	poll, err := s.Get(ctx, pollID, userID)
	if err != nil {
		return err
	}

	if err := s.sessions.PurgeByPoll(ctx, poll.UUID.String()); err != nil {
		s.logger.WithError(err).Error("Failed to purge sessions of deleted poll")
		return apperrors.NewInternalError("Failed to delete poll", err)
	}
	if err := s.pollRepo.Delete(ctx, pollID, userID); err != nil {
		s.logger.WithError(err).Error("Failed to delete poll")
		return apperrors.NewInternalError("Failed to delete poll", err)
	}

	s.logger.WithField("poll_id", pollID).Info("Poll deleted")
	return nil
}

// Clone creates a fresh draft copy of the poll under a new public identifier
func (s *PollService) Clone(ctx context.Context, pollID, userID int) (*domain.Poll, error) {
	poll, err := s.Get(ctx, pollID, userID)
	if err != nil {
		return nil, err
	}

	req := &domain.CreatePollRequest{
		Title:           poll.Title,
		Description:     poll.Description,
		PollCover:       poll.PollCover,
		MaxParticipants: poll.MaxParticipants,
		ActiveDuration:  poll.ActiveDuration,
	}
	for _, q := range poll.Questions {
		question := domain.CreateQuestionRequest{
			Type:              q.Type,
			Text:              q.Text,
			QuestionCover:     q.QuestionCover,
			OptionPass:        q.OptionPass,
			OptionOtherAnswer: q.OptionOtherAnswer,
			SortOrder:         q.SortOrder,
		}
		for _, c := range q.Choices {
			question.Choices = append(question.Choices, domain.CreateChoiceRequest{
				Text:            c.Text,
				ChoiceCover:     c.ChoiceCover,
				TextFieldsCount: c.TextFieldsCount,
			})
		}
		req.Questions = append(req.Questions, question)
	}

	return s.Create(ctx, userID, req)
}

// ChangeStatus moves the poll through its lifecycle. Publishing checks the
// poll is answerable, ending discards the live sessions, reverting to draft
// additionally discards every recorded response.
func (s *PollService) ChangeStatus(ctx context.Context, pollID, userID int, next domain.PollStatus) (*domain.Poll, error) {
	if !next.Valid() {
		return nil, apperrors.NewValidationError("Unknown poll status", nil)
	}

	poll, err := s.Get(ctx, pollID, userID)
	if err != nil {
		return nil, err
	}
	if poll.Status == next {
		return nil, apperrors.NewConflictError("Poll is already in this status")
	}

	switch next {
	case domain.PollStatusPublished:
		if poll.Status != domain.PollStatusDraft && poll.Status != domain.PollStatusClosed {
			return nil, transitionError(poll.Status, next)
		}
		if err := validatePublishable(poll); err != nil {
			return nil, err
		}
	case domain.PollStatusClosed:
		if poll.Status != domain.PollStatusPublished {
			return nil, transitionError(poll.Status, next)
		}
	case domain.PollStatusEnded:
		if poll.Status != domain.PollStatusPublished && poll.Status != domain.PollStatusClosed {
			return nil, transitionError(poll.Status, next)
		}
		if err := s.sessions.PurgeByPoll(ctx, poll.UUID.String()); err != nil {
			s.logger.WithError(err).Error("Failed to purge sessions of ended poll")
			return nil, apperrors.NewInternalError("Failed to change poll status", err)
		}
	case domain.PollStatusDraft:
		if err := s.sessions.PurgeByPoll(ctx, poll.UUID.String()); err != nil {
			s.logger.WithError(err).Error("Failed to purge sessions of reverted poll")
			return nil, apperrors.NewInternalError("Failed to change poll status", err)
		}
		if err := s.responseRepo.DeleteByPoll(ctx, poll.ID); err != nil {
			s.logger.WithError(err).Error("Failed to purge responses of reverted poll")
			return nil, apperrors.NewInternalError("Failed to change poll status", err)
		}
	case domain.PollStatusArchived:
		// any live status may be archived
	}

	if err := s.pollRepo.UpdateStatus(ctx, poll.ID, next); err != nil {
		s.logger.WithError(err).Error("Failed to update poll status")
		return nil, apperrors.NewInternalError("Failed to change poll status", err)
	}

	if next == domain.PollStatusPublished && poll.PollURL == nil {
		url := fmt.Sprintf("%s/polls/%s", strings.TrimRight(s.publicBaseURL, "/"), poll.UUID)
		poll.PollURL = &url
		if err := s.pollRepo.Update(ctx, poll); err != nil {
			s.logger.WithError(err).Error("Failed to store poll URL")
			return nil, apperrors.NewInternalError("Failed to change poll status", err)
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"poll_id": poll.ID,
		"from":    string(poll.Status),
		"to":      string(next),
	}).Info("Poll status changed")

	return s.Get(ctx, pollID, userID)
}

// Responses lists every recorded response of the user's poll
func (s *PollService) Responses(ctx context.Context, pollID, userID int) ([]domain.Response, error) {
	poll, err := s.Get(ctx, pollID, userID)
	if err != nil {
		return nil, err
	}

	responses, err := s.responseRepo.ListByPoll(ctx, poll.ID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list responses")
		return nil, apperrors.NewInternalError("Failed to list responses", err)
	}
	return responses, nil
}

// Report aggregates the poll's responses per question: choice tallies for
// choice questions, collected texts for text questions.
func (s *PollService) Report(ctx context.Context, pollID, userID int) (*domain.PollReport, error) {
	poll, err := s.Get(ctx, pollID, userID)
	if err != nil {
		return nil, err
	}

	responses, err := s.responseRepo.ListByPoll(ctx, poll.ID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load responses for report")
		return nil, apperrors.NewInternalError("Failed to build report", err)
	}

	byQuestion := make(map[int][]domain.Response)
	respondents := make(map[string]bool)
	for _, r := range responses {
		byQuestion[r.QuestionID] = append(byQuestion[r.QuestionID], r)
		respondents[r.SessionToken] = true
	}

	report := &domain.PollReport{
		PollID:         poll.ID,
		Title:          poll.Title,
		TotalResponses: len(respondents),
	}
	for _, question := range poll.Questions {
		qr := domain.QuestionReport{
			QuestionID:  question.ID,
			Text:        question.Text,
			Type:        question.Type,
			AnswerCount: len(byQuestion[question.ID]),
		}
		if question.Type.TakesChoices() {
			qr.ChoiceCounts = make(map[int]int)
			for _, choice := range question.Choices {
				qr.ChoiceCounts[choice.ID] = 0
			}
			for _, r := range byQuestion[question.ID] {
				for _, choiceID := range r.AnswerChoice {
					qr.ChoiceCounts[choiceID]++
				}
			}
		} else {
			for _, r := range byQuestion[question.ID] {
				qr.TextAnswers = append(qr.TextAnswers, r.AnswerText...)
			}
		}
		report.Questions = append(report.Questions, qr)
	}

	return report, nil
}

// validateQuestions rejects malformed question trees before they are stored
func validateQuestions(questions []domain.CreateQuestionRequest) error {
	for _, q := range questions {
		if !q.Type.Valid() {
			return apperrors.NewValidationError("Unknown question type", nil)
		}
		if strings.TrimSpace(q.Text) == "" {
			return apperrors.NewValidationError("Question text is required", nil)
		}
		if !q.Type.TakesChoices() && len(q.Choices) > 0 {
			return apperrors.NewValidationError("Text questions must not carry choices", nil)
		}
		for _, c := range q.Choices {
			if strings.TrimSpace(c.Text) == "" {
				return apperrors.NewValidationError("Choice text is required", nil)
			}
		}
	}
	return nil
}

// validatePublishable enforces that a poll can actually be answered
func validatePublishable(poll *domain.Poll) error {
	if len(poll.Questions) == 0 {
		return apperrors.NewValidationError("Poll must have at least one question to be published", nil)
	}
	for _, q := range poll.Questions {
		if q.Type.TakesChoices() && len(q.Choices) == 0 {
			return apperrors.NewValidationError("Choice questions must have at least one choice", nil)
		}
	}
	return nil
}

func transitionError(from, to domain.PollStatus) error {
	return apperrors.NewConflictError(fmt.Sprintf("Cannot move poll from %s to %s", from, to))
}
