package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"testdesk/internal/domain"
	apperrors "testdesk/pkg/errors"
	"testdesk/pkg/logger"
	"testdesk/pkg/mailer"
)

type companyFixture struct {
	svc         *CompanyService
	companies   *fakeCompanyRepo
	invitations *fakeInvitationRepo
	users       *fakeUserRepo
}

func newCompanyFixture(t *testing.T) *companyFixture {
	t.Helper()
	companies := newFakeCompanyRepo()
	invitations := newFakeInvitationRepo()
	users := newFakeUserRepo()
	svc := NewCompanyService(companies, invitations, users,
		mailer.New(mailer.Config{}, nil), 72*time.Hour, "https://polls.example.com", logger.NewNop())
	return &companyFixture{svc: svc, companies: companies, invitations: invitations, users: users}
}

func companyRequest() *domain.CreateCompanyRequest {
	return &domain.CreateCompanyRequest{
		Name:       "Acme",
		AdminEmail: "admin@acme.example",
		Licenses:   3,
	}
}

func TestCompanyService_CreateInvitesAdmin(t *testing.T) {
	f := newCompanyFixture(t)

	company, err := f.svc.Create(context.Background(), companyRequest())
	require.NoError(t, err)
	assert.NotZero(t, company.ID)

	invitations, err := f.svc.Invitations(context.Background(), company.ID)
	require.NoError(t, err)
	require.Len(t, invitations, 1)
	assert.Equal(t, "admin@acme.example", invitations[0].Email)
	assert.Equal(t, domain.RoleAdmin, invitations[0].Roles)
	assert.NotEmpty(t, invitations[0].Token)
	assert.True(t, invitations[0].ExpiresAt.After(time.Now()))
}

func TestCompanyService_CreateValidation(t *testing.T) {
	f := newCompanyFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*domain.CreateCompanyRequest)
	}{
		{name: "missing name", mutate: func(r *domain.CreateCompanyRequest) { r.Name = " " }},
		{name: "missing admin email", mutate: func(r *domain.CreateCompanyRequest) { r.AdminEmail = "" }},
		{name: "zero licenses", mutate: func(r *domain.CreateCompanyRequest) { r.Licenses = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := companyRequest()
			tt.mutate(req)
			_, err := f.svc.Create(ctx, req)
			assertErrType(t, err, apperrors.ErrorTypeValidation)
		})
	}
}

func TestCompanyService_InviteDefaultsRole(t *testing.T) {
	f := newCompanyFixture(t)
	ctx := context.Background()

	company, err := f.svc.Create(ctx, companyRequest())
	require.NoError(t, err)

	invitation, err := f.svc.Invite(ctx, company.ID, &domain.CreateInvitationRequest{
		Email: "Worker@Acme.Example",
	})
	require.NoError(t, err)

	assert.Equal(t, "worker@acme.example", invitation.Email)
	assert.Equal(t, domain.RoleUser, invitation.Roles)
}

func TestCompanyService_InviteRejectsExistingUser(t *testing.T) {
	f := newCompanyFixture(t)
	ctx := context.Background()

	company, err := f.svc.Create(ctx, companyRequest())
	require.NoError(t, err)

	require.NoError(t, f.users.Create(ctx, &domain.User{
		Email: "taken@acme.example", IsActive: true, Roles: domain.RoleUser,
	}))

	_, err = f.svc.Invite(ctx, company.ID, &domain.CreateInvitationRequest{Email: "taken@acme.example"})
	assertErrType(t, err, apperrors.ErrorTypeConflict)
}

func TestCompanyService_InviteEnforcesLicenses(t *testing.T) {
	f := newCompanyFixture(t)
	ctx := context.Background()

	req := companyRequest()
	req.Licenses = 1
	company, err := f.svc.Create(ctx, req)
	require.NoError(t, err)

	require.NoError(t, f.users.Create(ctx, &domain.User{
		Email: "seat@acme.example", IsActive: true, Roles: domain.RoleUser, CompanyID: &company.ID,
	}))

	_, err = f.svc.Invite(ctx, company.ID, &domain.CreateInvitationRequest{Email: "extra@acme.example"})
	assertErrType(t, err, apperrors.ErrorTypeConflict)
}

func TestCompanyService_InviteUnknownCompany(t *testing.T) {
	f := newCompanyFixture(t)

	_, err := f.svc.Invite(context.Background(), 404, &domain.CreateInvitationRequest{Email: "x@example.com"})
	assertErrType(t, err, apperrors.ErrorTypeNotFound)
}

func TestCompanyService_Revoke(t *testing.T) {
	f := newCompanyFixture(t)
	ctx := context.Background()

	company, err := f.svc.Create(ctx, companyRequest())
	require.NoError(t, err)

	invitations, err := f.svc.Invitations(ctx, company.ID)
	require.NoError(t, err)
	require.Len(t, invitations, 1)

	require.NoError(t, f.svc.Revoke(ctx, company.ID, invitations[0].ID))

	invitations, err = f.svc.Invitations(ctx, company.ID)
	require.NoError(t, err)
	assert.Empty(t, invitations)
}

func TestCompanyService_RevokeScopedToCompany(t *testing.T) {
	f := newCompanyFixture(t)
	ctx := context.Background()

	company, err := f.svc.Create(ctx, companyRequest())
	require.NoError(t, err)

	other := companyRequest()
	other.Name = "Globex"
	other.AdminEmail = "admin@globex.example"
	otherCompany, err := f.svc.Create(ctx, other)
	require.NoError(t, err)

	invitations, err := f.svc.Invitations(ctx, company.ID)
	require.NoError(t, err)
	require.Len(t, invitations, 1)

	// another company cannot revoke it
	err = f.svc.Revoke(ctx, otherCompany.ID, invitations[0].ID)
	assertErrType(t, err, apperrors.ErrorTypeNotFound)

	err = f.svc.Revoke(ctx, company.ID, 404)
	assertErrType(t, err, apperrors.ErrorTypeNotFound)

	invitations, err = f.svc.Invitations(ctx, company.ID)
	require.NoError(t, err)
	assert.Len(t, invitations, 1)
}
