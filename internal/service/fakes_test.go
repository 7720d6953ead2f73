package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"testdesk/internal/domain"
)

// fakePollRepo is an in-memory PollRepository
type fakePollRepo struct {
	mu     sync.Mutex
	polls  map[int]*domain.Poll
	nextID int

	updateStatusErr error
}

func newFakePollRepo() *fakePollRepo {
	return &fakePollRepo{polls: make(map[int]*domain.Poll), nextID: 1}
}

func (f *fakePollRepo) nextIDLocked() int {
	id := f.nextID
	f.nextID++
	return id
}

func (f *fakePollRepo) assignIDsLocked(poll *domain.Poll) {
	for i := range poll.Questions {
		q := &poll.Questions[i]
		if q.ID == 0 {
			q.ID = f.nextIDLocked()
		}
		q.PollID = poll.ID
		for j := range q.Choices {
			c := &q.Choices[j]
			if c.ID == 0 {
				c.ID = f.nextIDLocked()
			}
			c.QuestionID = q.ID
		}
	}
}

func (f *fakePollRepo) Create(ctx context.Context, poll *domain.Poll) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	poll.ID = f.nextIDLocked()
	poll.CreatedAt = time.Now().UTC()
	f.assignIDsLocked(poll)
	f.polls[poll.ID] = poll
	return nil
}

func (f *fakePollRepo) GetByID(ctx context.Context, pollID, userID int) (*domain.Poll, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	poll, ok := f.polls[pollID]
	if !ok || poll.UserID != userID {
		return nil, nil
	}
	copied := *poll
	return &copied, nil
}

func (f *fakePollRepo) GetByUUID(ctx context.Context, pollUUID uuid.UUID) (*domain.Poll, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, poll := range f.polls {
		if poll.UUID == pollUUID {
			copied := *poll
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakePollRepo) ListByUser(ctx context.Context, userID int, sortBy, query string, page, pageSize int) ([]domain.Poll, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var polls []domain.Poll
	for _, poll := range f.polls {
		if poll.UserID != userID {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(poll.Title), strings.ToLower(query)) {
			continue
		}
		polls = append(polls, *poll)
	}
	sort.Slice(polls, func(i, j int) bool { return polls[i].ID < polls[j].ID })
	total := len(polls)

	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return polls[start:end], total, nil
}

func (f *fakePollRepo) ListByStatus(ctx context.Context, status domain.PollStatus) ([]domain.Poll, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var polls []domain.Poll
	for _, poll := range f.polls {
		if poll.Status == status {
			polls = append(polls, *poll)
		}
	}
	return polls, nil
}

func (f *fakePollRepo) Update(ctx context.Context, poll *domain.Poll) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.polls[poll.ID]
	if !ok || stored.UserID != poll.UserID {
		return fmt.Errorf("no rows")
	}
	stored.Title = poll.Title
	stored.Description = poll.Description
	stored.PollCover = poll.PollCover
	stored.PollURL = poll.PollURL
	stored.MaxParticipants = poll.MaxParticipants
	stored.ActiveDuration = poll.ActiveDuration
	return nil
}

func (f *fakePollRepo) UpdateStatus(ctx context.Context, pollID int, status domain.PollStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateStatusErr != nil {
		return f.updateStatusErr
	}
	poll, ok := f.polls[pollID]
	if !ok {
		return fmt.Errorf("no rows")
	}
	poll.Status = status
	return nil
}

func (f *fakePollRepo) ReplaceQuestions(ctx context.Context, pollID int, questions []domain.CreateQuestionRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	poll, ok := f.polls[pollID]
	if !ok {
		return fmt.Errorf("no rows")
	}
	poll.Questions = nil
	for _, q := range questions {
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
	f.assignIDsLocked(poll)
	return nil
}

func (f *fakePollRepo) Delete(ctx context.Context, pollID, userID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	poll, ok := f.polls[pollID]
	if !ok || poll.UserID != userID {
		return fmt.Errorf("no rows")
	}
	delete(f.polls, pollID)
	return nil
}

// fakeResponseRepo is an in-memory ResponseRepository
type fakeResponseRepo struct {
	mu        sync.Mutex
	responses []domain.Response
	nextID    int

	createErr error
}

func newFakeResponseRepo() *fakeResponseRepo {
	return &fakeResponseRepo{nextID: 1}
}

func (f *fakeResponseRepo) CreateBatch(ctx context.Context, responses []domain.Response) ([]domain.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	saved := make([]domain.Response, 0, len(responses))
	for _, r := range responses {
		r.ID = f.nextID
		f.nextID++
		r.CreatedAt = time.Now().UTC()
		f.responses = append(f.responses, r)
		saved = append(saved, r)
	}
	return saved, nil
}

func (f *fakeResponseRepo) ListByPoll(ctx context.Context, pollID int) ([]domain.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var responses []domain.Response
	for _, r := range f.responses {
		if r.PollID == pollID {
			responses = append(responses, r)
		}
	}
	return responses, nil
}

func (f *fakeResponseRepo) DeleteByPoll(ctx context.Context, pollID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.responses[:0]
	for _, r := range f.responses {
		if r.PollID != pollID {
			kept = append(kept, r)
		}
	}
	f.responses = kept
	return nil
}

// fakeInvitationRepo is an in-memory InvitationRepository
type fakeInvitationRepo struct {
	mu          sync.Mutex
	invitations map[int]*domain.Invitation
	nextID      int
}

func newFakeInvitationRepo() *fakeInvitationRepo {
	return &fakeInvitationRepo{invitations: make(map[int]*domain.Invitation), nextID: 1}
}

func (f *fakeInvitationRepo) Create(ctx context.Context, invitation *domain.Invitation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	invitation.ID = f.nextID
	f.nextID++
	f.invitations[invitation.ID] = invitation
	return nil
}

func (f *fakeInvitationRepo) GetByID(ctx context.Context, id int) (*domain.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.invitations[id]
	if !ok {
		return nil, nil
	}
	copied := *inv
	return &copied, nil
}

func (f *fakeInvitationRepo) GetByToken(ctx context.Context, token string) (*domain.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, inv := range f.invitations {
		if inv.Token == token {
			copied := *inv
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeInvitationRepo) ListByCompany(ctx context.Context, companyID int) ([]domain.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var invitations []domain.Invitation
	for _, inv := range f.invitations {
		if inv.CompanyID == companyID {
			invitations = append(invitations, *inv)
		}
	}
	return invitations, nil
}

func (f *fakeInvitationRepo) Delete(ctx context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.invitations, id)
	return nil
}

func (f *fakeInvitationRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var deleted int64
	for id, inv := range f.invitations {
		if inv.ExpiresAt.Before(now) {
			delete(f.invitations, id)
			deleted++
		}
	}
	return deleted, nil
}

// fakeUserRepo is an in-memory UserRepository
type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[int]*domain.User
	nextID int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int]*domain.User), nextID: 1}
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id int) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) Create(ctx context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user.ID = f.nextID
	f.nextID++
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserRepo) List(ctx context.Context, companyID *int) ([]domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var users []domain.User
	for _, user := range f.users {
		if companyID != nil && (user.CompanyID == nil || *user.CompanyID != *companyID) {
			continue
		}
		users = append(users, *user)
	}
	return users, nil
}

// fakeCompanyRepo is an in-memory CompanyRepository
type fakeCompanyRepo struct {
	mu        sync.Mutex
	companies map[int]*domain.Company
	nextID    int
}

func newFakeCompanyRepo() *fakeCompanyRepo {
	return &fakeCompanyRepo{companies: make(map[int]*domain.Company), nextID: 1}
}

func (f *fakeCompanyRepo) Create(ctx context.Context, company *domain.Company) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	company.ID = f.nextID
	f.nextID++
	f.companies[company.ID] = company
	return nil
}

func (f *fakeCompanyRepo) GetByID(ctx context.Context, id int) (*domain.Company, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	company, ok := f.companies[id]
	if !ok {
		return nil, nil
	}
	copied := *company
	return &copied, nil
}

func (f *fakeCompanyRepo) List(ctx context.Context) ([]domain.Company, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var companies []domain.Company
	for _, company := range f.companies {
		companies = append(companies, *company)
	}
	return companies, nil
}

func (f *fakeCompanyRepo) Update(ctx context.Context, company *domain.Company) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.companies[company.ID]; !ok {
		return fmt.Errorf("no rows")
	}
	f.companies[company.ID] = company
	return nil
}

func (f *fakeCompanyRepo) Delete(ctx context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.companies, id)
	return nil
}
