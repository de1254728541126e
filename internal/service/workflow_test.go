package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"userhub/internal/auth"
	apperrors "userhub/internal/errors"
	"userhub/internal/model"
)

// memoryUserRepo is an in-memory identity store enforcing the email/username
// uniqueness constraint, standing in for MySQL in workflow tests.
type memoryUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*model.User
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: map[uuid.UUID]*model.User{}}
}

func (r *memoryUserRepo) Create(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email || u.Username == user.Username {
			return apperrors.ErrDuplicateIdentity
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *memoryUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *u
	return &clone, nil
}

func (r *memoryUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memoryUserRepo) FindByEmailOrUsername(ctx context.Context, userInfo string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == userInfo || u.Username == userInfo {
			clone := *u
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memoryUserRepo) Update(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *memoryUserRepo) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for k, v := range fields {
		switch k {
		case "verified":
			u.Verified = v.(bool)
		case "password_hash":
			u.PasswordHash = v.(string)
		case "first_name":
			u.FirstName = v.(string)
		case "last_name":
			u.LastName = v.(string)
		case "phone_number":
			u.PhoneNumber = v.(string)
		case "avatar":
			u.Avatar = v.(string)
		}
	}
	return nil
}

func (r *memoryUserRepo) List(ctx context.Context) ([]model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, *u)
	}
	return out, nil
}

func (r *memoryUserRepo) CreditWallet(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.WalletBalance = u.WalletBalance.Add(amount)
	return nil
}

// memoryTokenStore remembers consumed JTIs.
type memoryTokenStore struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemoryTokenStore() *memoryTokenStore {
	return &memoryTokenStore{seen: map[string]bool{}}
}

func (s *memoryTokenStore) ConsumeToken(ctx context.Context, jti string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[jti] {
		return apperrors.ErrTokenConsumed
	}
	if ttl <= 0 {
		return apperrors.ErrTokenExpired
	}
	s.seen[jti] = true
	return nil
}

// memoryOTPStore keeps the latest code per user.
type memoryOTPStore struct {
	mu    sync.Mutex
	codes map[string]string
}

func newMemoryOTPStore() *memoryOTPStore {
	return &memoryOTPStore{codes: map[string]string{}}
}

func (s *memoryOTPStore) Save(ctx context.Context, userID, code string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[userID] = code
	return nil
}

func (s *memoryOTPStore) Consume(ctx context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.codes[userID]
	if !ok {
		return "", apperrors.ErrOTPNotFound
	}
	delete(s.codes, userID)
	return code, nil
}

func (s *memoryOTPStore) peek(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[userID]
}

// recordingMailer captures outgoing mail.
type recordingMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *recordingMailer) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to+": "+subject)
	return nil
}

func newWorkflowService(t *testing.T) (UserService, *memoryUserRepo, *memoryOTPStore, *auth.JWTService) {
	t.Helper()
	repo := newMemoryUserRepo()
	otps := newMemoryOTPStore()
	jwtService := auth.NewJWTService("workflow-secret")
	svc := NewUserService(repo, jwtService, newMemoryTokenStore(), otps, &recordingMailer{}, nil, Options{
		SessionTokenTTL: time.Hour,
		VerifyTokenTTL:  30 * time.Minute,
		OTPTTL:          5 * time.Minute,
		AppBaseURL:      "http://localhost:8080",
	})
	return svc, repo, otps, jwtService
}

func TestWorkflow_RegisterVerifyLoginChangePassword(t *testing.T) {
	ctx := context.Background()
	svc, _, _, jwtService := newWorkflowService(t)

	input := RegisterInput{
		FirstName: "Temitope", LastName: "Adejolu", Username: "Topmost",
		Email: "Tadejolu@gmail.com", PhoneNumber: "08161564659",
		Password: "1111", ConfirmPassword: "1111",
	}

	user, verifyToken, err := svc.Register(ctx, input)
	require.NoError(t, err)
	require.NotEmpty(t, verifyToken)
	assert.False(t, user.Verified)

	// Same email again fails with a duplicate identity.
	_, _, err = svc.Register(ctx, input)
	assert.ErrorIs(t, err, apperrors.ErrDuplicateIdentity)

	// Fresh accounts cannot log in before verification.
	_, _, err = svc.Login(ctx, input.Email, "1111")
	assert.ErrorIs(t, err, apperrors.ErrNotVerified)

	require.NoError(t, svc.Verify(ctx, verifyToken))

	// A consumed verification token is rejected on reuse.
	assert.ErrorIs(t, svc.Verify(ctx, verifyToken), apperrors.ErrTokenConsumed)

	sessionToken, loggedIn, err := svc.Login(ctx, input.Email, "1111")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)

	claims, err := jwtService.VerifySession(sessionToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.UserID)
	assert.Equal(t, model.RoleUser, claims.Role)

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, input.Email, users[0].Email)

	// Change password with the live session, then re-login.
	require.NoError(t, svc.ChangePassword(ctx, user.ID, "12345", "12345", PasswordChangeAuth{Session: claims}))

	_, _, err = svc.Login(ctx, input.Email, "1111")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, input.Email, "12345")
	assert.NoError(t, err)
}

func TestWorkflow_AdminElevationWithOTP(t *testing.T) {
	ctx := context.Background()
	svc, repo, otps, jwtService := newWorkflowService(t)

	// Bootstrap the first admin directly through the store, the way the seed
	// command does.
	hash, err := bcrypt.GenerateFromPassword([]byte("root-pass"), 10)
	require.NoError(t, err)
	admin := &model.User{
		FirstName: "Root", LastName: "Admin", Username: "root",
		Email: "root@userhub.local", PasswordHash: string(hash),
		Role: model.RoleAdmin, Verified: true,
	}
	require.NoError(t, repo.Create(ctx, admin))

	adminToken, _, err := svc.Login(ctx, "root@userhub.local", "root-pass")
	require.NoError(t, err)
	adminClaims, err := jwtService.VerifySession(adminToken)
	require.NoError(t, err)

	draft := RegisterInput{
		FirstName: "Samuel", LastName: "Adewunmi", Username: "Sam",
		Email: "ppatsamuel@gmail.com", Password: "1111", ConfirmPassword: "1111",
	}

	// Without a live OTP the elevation is refused.
	_, _, err = svc.CreateAdmin(ctx, adminClaims, "000000", draft)
	assert.ErrorIs(t, err, apperrors.ErrOTPNotFound)

	require.NoError(t, svc.SendOTP(ctx, adminClaims))
	code := otps.peek(admin.ID.String())
	require.NotEmpty(t, code)

	newAdmin, newAdminToken, err := svc.CreateAdmin(ctx, adminClaims, code, draft)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, newAdmin.Role)

	newClaims, err := jwtService.VerifySession(newAdminToken)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, newClaims.Role)

	// The OTP was consumed: replaying the elevation fails.
	_, _, err = svc.CreateAdmin(ctx, adminClaims, code, RegisterInput{
		FirstName: "Other", LastName: "Admin", Username: "other",
		Email: "other@example.com", Password: "1111", ConfirmPassword: "1111",
	})
	assert.ErrorIs(t, err, apperrors.ErrOTPNotFound)

	// A non-admin session cannot elevate even with a valid OTP.
	userDraft := RegisterInput{
		FirstName: "Plain", LastName: "User", Username: "plain",
		Email: "plain@example.com", Password: "1111", ConfirmPassword: "1111",
	}
	plain, verifyToken, err := svc.Register(ctx, userDraft)
	require.NoError(t, err)
	require.NoError(t, svc.Verify(ctx, verifyToken))
	plainToken, _, err := svc.Login(ctx, plain.Email, "1111")
	require.NoError(t, err)
	plainClaims, err := jwtService.VerifySession(plainToken)
	require.NoError(t, err)
	require.NoError(t, svc.SendOTP(ctx, plainClaims))

	_, _, err = svc.CreateAdmin(ctx, plainClaims, otps.peek(plain.ID.String()), draft)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestWorkflow_PasswordResetToken(t *testing.T) {
	ctx := context.Background()
	svc, _, _, jwtService := newWorkflowService(t)

	user, verifyToken, err := svc.Register(ctx, RegisterInput{
		FirstName: "Temitope", LastName: "Adejolu", Username: "Topmost",
		Email: "Tadejolu@gmail.com", Password: "1111", ConfirmPassword: "1111",
	})
	require.NoError(t, err)
	require.NoError(t, svc.Verify(ctx, verifyToken))

	require.NoError(t, svc.ForgotPassword(ctx, user.Email))

	// Reset tokens are issued out of band; mint one the same way the
	// forgot-password flow does.
	resetToken, err := jwtService.IssueVerificationToken(user.ID, auth.PurposePasswordReset, 30*time.Minute)
	require.NoError(t, err)

	require.NoError(t, svc.ChangePassword(ctx, user.ID, "12345", "12345", PasswordChangeAuth{ResetToken: resetToken}))

	// The reset token is single-use.
	err = svc.ChangePassword(ctx, user.ID, "67890", "67890", PasswordChangeAuth{ResetToken: resetToken})
	assert.ErrorIs(t, err, apperrors.ErrTokenConsumed)

	_, _, err = svc.Login(ctx, user.Email, "12345")
	assert.NoError(t, err)
}

func TestWorkflow_WalletCredit(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, jwtService := newWorkflowService(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("root-pass"), 10)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, &model.User{
		FirstName: "Root", LastName: "Admin", Username: "root",
		Email: "root@userhub.local", PasswordHash: string(hash),
		Role: model.RoleAdmin, Verified: true,
	}))

	adminToken, _, err := svc.Login(ctx, "root", "root-pass")
	require.NoError(t, err)
	adminClaims, err := jwtService.VerifySession(adminToken)
	require.NoError(t, err)

	target, verifyToken, err := svc.Register(ctx, RegisterInput{
		FirstName: "Ime", LastName: "U", Username: "imeu",
		Email: "imeu@gmail.com", Password: "12345", ConfirmPassword: "12345",
	})
	require.NoError(t, err)
	require.NoError(t, svc.Verify(ctx, verifyToken))

	updated, err := svc.CreditWallet(ctx, adminClaims, target.Email, decimal.NewFromInt(1000))
	require.NoError(t, err)
	assert.True(t, updated.WalletBalance.Equal(decimal.NewFromInt(1000)))

	updated, err = svc.CreditWallet(ctx, adminClaims, target.Email, decimal.NewFromInt(500))
	require.NoError(t, err)
	assert.True(t, updated.WalletBalance.Equal(decimal.NewFromInt(1500)))
}
