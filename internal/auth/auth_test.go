package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/parisrizo/clinic-booking/internal/clinic"
)

// adminRepo stubs just the lookup Sessions needs.
type adminRepo struct {
	clinic.Repository
	admin *clinic.AdminUser
}

func (r *adminRepo) GetAdminByEmail(ctx context.Context, email string) (*clinic.AdminUser, error) {
	if r.admin != nil && r.admin.Email == email {
		return r.admin, nil
	}
	return nil, clinic.ErrAdminNotFound
}

func newTestSessions(t *testing.T, password string) (*Sessions, *clinic.AdminUser) {
	t.Helper()

	hash, err := HashPassword(password)
	assert.NoError(t, err)

	admin := &clinic.AdminUser{
		ID:           uuid.New(),
		Email:        "doctor@clinic.test",
		PasswordHash: hash,
	}
	return NewSessions(&adminRepo{admin: admin}, "test-secret", time.Hour), admin
}

func TestSignInWithPasswordIssuesValidToken(t *testing.T) {
	sessions, admin := newTestSessions(t, "hunter22")

	token, err := sessions.SignInWithPassword(context.Background(), admin.Email, "hunter22")
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := sessions.ValidateToken(token)
	assert.NoError(t, err)
	assert.Equal(t, admin.Email, claims.Email)
	assert.Equal(t, admin.ID.String(), claims.Subject)
}

func TestSignInWithPasswordRejectsWrongPassword(t *testing.T) {
	sessions, admin := newTestSessions(t, "hunter22")

	_, err := sessions.SignInWithPassword(context.Background(), admin.Email, "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSignInWithPasswordRejectsUnknownEmail(t *testing.T) {
	sessions, _ := newTestSessions(t, "hunter22")

	_, err := sessions.SignInWithPassword(context.Background(), "nobody@clinic.test", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateTokenRejectsForgedToken(t *testing.T) {
	sessions, admin := newTestSessions(t, "hunter22")
	other := NewSessions(&adminRepo{admin: admin}, "other-secret", time.Hour)

	token, err := other.SignInWithPassword(context.Background(), admin.Email, "hunter22")
	assert.NoError(t, err)

	_, err = sessions.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRejectsExpiredToken(t *testing.T) {
	hash, err := HashPassword("pw")
	assert.NoError(t, err)

	admin := &clinic.AdminUser{ID: uuid.New(), Email: "doctor@clinic.test", PasswordHash: hash}
	sessions := NewSessions(&adminRepo{admin: admin}, "test-secret", -time.Minute)

	token, err := sessions.SignInWithPassword(context.Background(), admin.Email, "pw")
	assert.NoError(t, err)

	_, err = sessions.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
