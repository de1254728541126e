package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"userhub/internal/auth"
	"userhub/internal/cache"
	apperrors "userhub/internal/errors"
	"userhub/internal/mail"
	"userhub/internal/model"
	"userhub/internal/repository"
)

const (
	bcryptCost   = 10
	userCacheTTL = 5 * time.Minute
)

// RegisterInput carries the fields needed to create an account.
type RegisterInput struct {
	FirstName       string
	LastName        string
	Username        string
	Email           string
	PhoneNumber     string
	Password        string
	ConfirmPassword string
}

// ProfilePatch holds the non-sensitive attributes a user may update. Nil
// fields are left untouched. Password, role and email are deliberately not
// part of this surface.
type ProfilePatch struct {
	FirstName   *string
	LastName    *string
	PhoneNumber *string
	Avatar      *string
}

// PasswordChangeAuth is the proof presented for a password change: either a
// live session or a password-reset token. An empty proof is rejected.
type PasswordChangeAuth struct {
	Session    *auth.SessionClaims
	ResetToken string
}

// Options tunes token lifetimes and link construction.
type Options struct {
	SessionTokenTTL time.Duration
	VerifyTokenTTL  time.Duration
	OTPTTL          time.Duration
	AppBaseURL      string
}

// UserService exposes the identity workflows.
type UserService interface {
	Register(ctx context.Context, input RegisterInput) (*model.User, string, error)
	Verify(ctx context.Context, token string) error
	Login(ctx context.Context, userInfo, password string) (string, *model.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	CreateAdmin(ctx context.Context, requester *auth.SessionClaims, otpCode string, input RegisterInput) (*model.User, string, error)
	ForgotPassword(ctx context.Context, email string) error
	ChangePassword(ctx context.Context, userID uuid.UUID, newPassword, confirmPassword string, proof PasswordChangeAuth) error
	UpdateProfile(ctx context.Context, requester *auth.SessionClaims, userID uuid.UUID, patch ProfilePatch) (*model.User, error)
	SendOTP(ctx context.Context, requester *auth.SessionClaims) error
	CreditWallet(ctx context.Context, requester *auth.SessionClaims, email string, amount decimal.Decimal) (*model.User, error)
}

type userService struct {
	repo   repository.UserRepository
	jwt    *auth.JWTService
	tokens auth.TokenStoreInterface
	otps   auth.OTPStore
	mailer mail.Mailer
	cache  *cache.Client
	opts   Options
}

// NewUserService builds a UserService from its collaborators.
func NewUserService(
	repo repository.UserRepository,
	jwtService *auth.JWTService,
	tokenStore auth.TokenStoreInterface,
	otpStore auth.OTPStore,
	mailer mail.Mailer,
	cacheClient *cache.Client,
	opts Options,
) UserService {
	return &userService{
		repo:   repo,
		jwt:    jwtService,
		tokens: tokenStore,
		otps:   otpStore,
		mailer: mailer,
		cache:  cacheClient,
		opts:   opts,
	}
}

func (s *userService) cacheKey(id uuid.UUID) string {
	return fmt.Sprintf("user:%s", id)
}

// Register creates an unverified account and mails a verification link. The
// raw token is returned alongside the record for test and ops convenience.
func (s *userService) Register(ctx context.Context, input RegisterInput) (*model.User, string, error) {
	user, err := s.createAccount(ctx, input, model.RoleUser, false)
	if err != nil {
		return nil, "", err
	}

	token, err := s.jwt.IssueVerificationToken(user.ID, auth.PurposeEmailVerify, s.opts.VerifyTokenTTL)
	if err != nil {
		return nil, "", fmt.Errorf("issue verification token: %w", err)
	}

	link := fmt.Sprintf("%s/users/verify/%s", s.opts.AppBaseURL, token)
	s.sendMail(ctx, user.Email, "Verify your account", "Click the link to verify your account: "+link)

	return user, token, nil
}

// Verify consumes an email-verify token and marks the account verified.
// Re-visiting a consumed token fails; verification never reverts.
func (s *userService) Verify(ctx context.Context, token string) error {
	claims, err := s.jwt.VerifyVerificationToken(token, auth.PurposeEmailVerify)
	if err != nil {
		return err
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return apperrors.ErrTokenInvalid
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrUserNotFound
		}
		return fmt.Errorf("find user: %w", err)
	}
	if user.Verified {
		return apperrors.ErrTokenConsumed
	}

	if err := s.repo.UpdateFields(ctx, userID, map[string]interface{}{"verified": true}); err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}

	// Consumed only after the flag is set, so a transient update failure
	// leaves the token usable. The verified check above already rejects
	// replays; a concurrent consume is not an error here.
	if err := s.tokens.ConsumeToken(ctx, claims.ID, time.Until(claims.ExpiresAt.Time)); err != nil && !errors.Is(err, apperrors.ErrTokenConsumed) {
		log.Printf("consume verification token: %v", err)
	}

	_ = s.cache.Delete(ctx, s.cacheKey(userID))
	return nil
}

// Login authenticates by email or username and issues a session token.
// Unknown identity and wrong password produce the same error.
func (s *userService) Login(ctx context.Context, userInfo, password string) (string, *model.User, error) {
	user, err := s.repo.FindByEmailOrUsername(ctx, userInfo)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, apperrors.ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, apperrors.ErrInvalidCredentials
	}

	if !user.Verified {
		return "", nil, apperrors.ErrNotVerified
	}

	token, err := s.jwt.IssueSessionToken(user.ID, user.Role, s.opts.SessionTokenTTL)
	if err != nil {
		return "", nil, fmt.Errorf("issue session token: %w", err)
	}

	return token, user, nil
}

// GetUser retrieves a user by ID with caching.
func (s *userService) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	if data, _ := s.cache.Get(ctx, s.cacheKey(id)); data != nil {
		var cached model.User
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if payload, err := json.Marshal(user); err == nil {
		_ = s.cache.Set(ctx, s.cacheKey(id), payload, userCacheTTL)
	}
	return user, nil
}

// ListUsers returns every account.
func (s *userService) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.repo.List(ctx)
}

// CreateAdmin mints a new admin account. Only an existing admin holding a
// live OTP may do so; the OTP is invalidated whether or not it matches.
func (s *userService) CreateAdmin(ctx context.Context, requester *auth.SessionClaims, otpCode string, input RegisterInput) (*model.User, string, error) {
	if err := requireAdmin(requester); err != nil {
		return nil, "", err
	}

	code, err := s.otps.Consume(ctx, requester.UserID)
	if err != nil {
		return nil, "", err
	}
	if code != otpCode {
		return nil, "", apperrors.ErrOTPMismatch
	}

	user, err := s.createAccount(ctx, input, model.RoleAdmin, true)
	if err != nil {
		return nil, "", err
	}

	token, err := s.jwt.IssueSessionToken(user.ID, user.Role, s.opts.SessionTokenTTL)
	if err != nil {
		return nil, "", fmt.Errorf("issue session token: %w", err)
	}

	return user, token, nil
}

// ForgotPassword mails a password-reset token. The caller always gets a
// generic success, whether or not the email exists.
func (s *userService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// No enumeration: silently skip delivery.
			return nil
		}
		return fmt.Errorf("find user: %w", err)
	}

	token, err := s.jwt.IssueVerificationToken(user.ID, auth.PurposePasswordReset, s.opts.VerifyTokenTTL)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}

	link := fmt.Sprintf("%s/reset-password?token=%s", s.opts.AppBaseURL, token)
	s.sendMail(ctx, user.Email, "Reset your password", "Click the link to reset your password: "+link)
	return nil
}

// ChangePassword updates the stored hash. The caller must present either a
// password-reset token for the target user or a session belonging to the
// target user (or an admin).
func (s *userService) ChangePassword(ctx context.Context, userID uuid.UUID, newPassword, confirmPassword string, proof PasswordChangeAuth) error {
	if newPassword != confirmPassword {
		return apperrors.ErrPasswordMismatch
	}

	switch {
	case proof.ResetToken != "":
		claims, err := s.jwt.VerifyVerificationToken(proof.ResetToken, auth.PurposePasswordReset)
		if err != nil {
			return err
		}
		if claims.UserID != userID.String() {
			return apperrors.ErrForbidden
		}
		if err := s.tokens.ConsumeToken(ctx, claims.ID, time.Until(claims.ExpiresAt.Time)); err != nil {
			return err
		}
	case proof.Session != nil:
		if err := authorizeSelfOrAdmin(proof.Session, userID); err != nil {
			return err
		}
	default:
		return apperrors.ErrUnauthorized
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.repo.UpdateFields(ctx, userID, map[string]interface{}{"password_hash": string(hash)}); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrUserNotFound
		}
		return fmt.Errorf("update password: %w", err)
	}
	_ = s.cache.Delete(ctx, s.cacheKey(userID))
	return nil
}

// UpdateProfile applies a non-sensitive patch to the target user. Requires
// the session to belong to the target or an admin.
func (s *userService) UpdateProfile(ctx context.Context, requester *auth.SessionClaims, userID uuid.UUID, patch ProfilePatch) (*model.User, error) {
	if err := authorizeSelfOrAdmin(requester, userID); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if patch.FirstName != nil {
		fields["first_name"] = *patch.FirstName
	}
	if patch.LastName != nil {
		fields["last_name"] = *patch.LastName
	}
	if patch.PhoneNumber != nil {
		fields["phone_number"] = *patch.PhoneNumber
	}
	if patch.Avatar != nil {
		fields["avatar"] = *patch.Avatar
	}

	if len(fields) > 0 {
		if err := s.repo.UpdateFields(ctx, userID, fields); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.ErrUserNotFound
			}
			return nil, fmt.Errorf("update profile: %w", err)
		}
		_ = s.cache.Delete(ctx, s.cacheKey(userID))
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

// SendOTP issues a fresh one-time code for the requester and mails it.
// The latest code replaces any earlier one.
func (s *userService) SendOTP(ctx context.Context, requester *auth.SessionClaims) error {
	if requester == nil {
		return apperrors.ErrUnauthorized
	}

	userID, err := uuid.Parse(requester.UserID)
	if err != nil {
		return apperrors.ErrTokenInvalid
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrUserNotFound
		}
		return fmt.Errorf("find user: %w", err)
	}

	code, err := auth.GenerateOTP()
	if err != nil {
		return err
	}
	if err := s.otps.Save(ctx, requester.UserID, code, s.opts.OTPTTL); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}

	s.sendMail(ctx, user.Email, "Your one-time code", "Your one-time code is "+code+". It expires shortly and can be used once.")
	return nil
}

// CreditWallet increments the target user's wallet balance. Admin only,
// positive amounts only.
func (s *userService) CreditWallet(ctx context.Context, requester *auth.SessionClaims, email string, amount decimal.Decimal) (*model.User, error) {
	if err := requireAdmin(requester); err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, apperrors.ErrInvalidAmount
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if err := s.repo.CreditWallet(ctx, user.ID, amount); err != nil {
		return nil, fmt.Errorf("credit wallet: %w", err)
	}
	_ = s.cache.Delete(ctx, s.cacheKey(user.ID))

	updated, err := s.repo.FindByID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("reload user: %w", err)
	}
	return updated, nil
}

func (s *userService) createAccount(ctx context.Context, input RegisterInput, role model.Role, verified bool) (*model.User, error) {
	if input.Password != input.ConfirmPassword {
		return nil, apperrors.ErrPasswordMismatch
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		ID:           uuid.New(),
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Username:     input.Username,
		Email:        input.Email,
		PhoneNumber:  input.PhoneNumber,
		PasswordHash: string(hash),
		Role:         role,
		Verified:     verified,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrDuplicateIdentity) {
			return nil, apperrors.ErrDuplicateIdentity
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// sendMail delivers best-effort; a failed send never fails the workflow.
func (s *userService) sendMail(ctx context.Context, to, subject, body string) {
	if err := s.mailer.Send(ctx, to, subject, body); err != nil {
		log.Printf("mail delivery to %s failed: %v", to, err)
	}
}

func requireAdmin(claims *auth.SessionClaims) error {
	if claims == nil {
		return apperrors.ErrUnauthorized
	}
	switch claims.Role {
	case model.RoleAdmin:
		return nil
	case model.RoleUser:
		return apperrors.ErrForbidden
	default:
		return apperrors.ErrForbidden
	}
}

func authorizeSelfOrAdmin(claims *auth.SessionClaims, target uuid.UUID) error {
	if claims == nil {
		return apperrors.ErrUnauthorized
	}
	switch claims.Role {
	case model.RoleAdmin:
		return nil
	case model.RoleUser:
		if claims.UserID == target.String() {
			return nil
		}
		return apperrors.ErrForbidden
	default:
		return apperrors.ErrForbidden
	}
}
