package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "userhub/internal/errors"
	"userhub/internal/model"
)

func TestJWTService_SessionRoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret")
	userID := uuid.New()

	token, err := svc.IssueSessionToken(userID, model.RoleAdmin, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.VerifySession(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, model.RoleAdmin, claims.Role)
}

func TestJWTService_SessionExpired(t *testing.T) {
	svc := NewJWTService("test-secret")

	token, err := svc.IssueSessionToken(uuid.New(), model.RoleUser, -time.Minute)
	require.NoError(t, err)

	_, err = svc.VerifySession(token)
	assert.ErrorIs(t, err, apperrors.ErrTokenExpired)
}

func TestJWTService_SessionTampered(t *testing.T) {
	svc := NewJWTService("test-secret")
	other := NewJWTService("other-secret")

	token, err := svc.IssueSessionToken(uuid.New(), model.RoleUser, time.Hour)
	require.NoError(t, err)

	_, err = other.VerifySession(token)
	assert.ErrorIs(t, err, apperrors.ErrTokenInvalid)

	_, err = svc.VerifySession("not-a-token")
	assert.ErrorIs(t, err, apperrors.ErrTokenInvalid)
}

func TestJWTService_SessionRejectsVerificationToken(t *testing.T) {
	svc := NewJWTService("test-secret")

	token, err := svc.IssueVerificationToken(uuid.New(), PurposeEmailVerify, time.Hour)
	require.NoError(t, err)

	// A verification token has no role claim and must not pass as a session.
	_, err = svc.VerifySession(token)
	assert.ErrorIs(t, err, apperrors.ErrTokenInvalid)
}

func TestJWTService_VerificationRoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret")
	userID := uuid.New()

	token, err := svc.IssueVerificationToken(userID, PurposeEmailVerify, 30*time.Minute)
	require.NoError(t, err)

	claims, err := svc.VerifyVerificationToken(token, PurposeEmailVerify)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, PurposeEmailVerify, claims.Purpose)
	assert.NotEmpty(t, claims.ID)
}

func TestJWTService_VerificationWrongPurpose(t *testing.T) {
	svc := NewJWTService("test-secret")

	token, err := svc.IssueVerificationToken(uuid.New(), PurposePasswordReset, 30*time.Minute)
	require.NoError(t, err)

	_, err = svc.VerifyVerificationToken(token, PurposeEmailVerify)
	assert.ErrorIs(t, err, apperrors.ErrWrongPurpose)
}

func TestJWTService_VerificationExpired(t *testing.T) {
	svc := NewJWTService("test-secret")

	token, err := svc.IssueVerificationToken(uuid.New(), PurposeEmailVerify, -time.Minute)
	require.NoError(t, err)

	_, err = svc.VerifyVerificationToken(token, PurposeEmailVerify)
	assert.ErrorIs(t, err, apperrors.ErrTokenExpired)
}

func TestJWTService_VerificationTokensHaveUniqueIDs(t *testing.T) {
	svc := NewJWTService("test-secret")
	userID := uuid.New()

	first, err := svc.IssueVerificationToken(userID, PurposeEmailVerify, time.Hour)
	require.NoError(t, err)
	second, err := svc.IssueVerificationToken(userID, PurposeEmailVerify, time.Hour)
	require.NoError(t, err)

	firstClaims, err := svc.VerifyVerificationToken(first, PurposeEmailVerify)
	require.NoError(t, err)
	secondClaims, err := svc.VerifyVerificationToken(second, PurposeEmailVerify)
	require.NoError(t, err)

	assert.NotEqual(t, firstClaims.ID, secondClaims.ID)
}
