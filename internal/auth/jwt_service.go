package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "userhub/internal/errors"
	"userhub/internal/model"
)

// Purpose scopes a verification token to a single workflow.
type Purpose string

const (
	// PurposeEmailVerify marks tokens minted at registration.
	PurposeEmailVerify Purpose = "email-verify"
	// PurposePasswordReset marks tokens minted by the forgot-password flow.
	PurposePasswordReset Purpose = "password-reset"
)

// SessionClaims is the payload of a bearer session token. Validity is purely
// signature plus expiry; no server-side session table exists.
type SessionClaims struct {
	UserID string     `json:"user_id"`
	Role   model.Role `json:"role"`
	jwt.RegisteredClaims
}

// VerificationClaims is the payload of a single-use verification token. The
// JTI identifies the token in the consumed-token store.
type VerificationClaims struct {
	UserID  string  `json:"user_id"`
	Purpose Purpose `json:"purpose"`
	jwt.RegisteredClaims
}

// JWTService issues and validates session and verification tokens.
type JWTService struct {
	secret []byte
}

// NewJWTService creates a new JWT service with the given secret.
func NewJWTService(secret string) *JWTService {
	return &JWTService{
		secret: []byte(secret),
	}
}

// IssueSessionToken signs a bearer token carrying the user's id and role.
func (s *JWTService) IssueSessionToken(userID uuid.UUID, role model.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &SessionClaims{
		UserID: userID.String(),
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// VerifySession validates a bearer token and returns its claims.
func (s *JWTService) VerifySession(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, s.keyFunc)
	if err != nil {
		return nil, mapTokenError(err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, apperrors.ErrTokenInvalid
	}
	if !claims.Role.Valid() {
		return nil, apperrors.ErrTokenInvalid
	}

	return claims, nil
}

// IssueVerificationToken signs a purpose-scoped token with a unique JTI so it
// can be consumed exactly once.
func (s *JWTService) IssueVerificationToken(userID uuid.UUID, purpose Purpose, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &VerificationClaims{
		UserID:  userID.String(),
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// VerifyVerificationToken validates a verification token and checks that it
// was minted for the expected purpose.
func (s *JWTService) VerifyVerificationToken(tokenString string, purpose Purpose) (*VerificationClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &VerificationClaims{}, s.keyFunc)
	if err != nil {
		return nil, mapTokenError(err)
	}

	claims, ok := token.Claims.(*VerificationClaims)
	if !ok || !token.Valid {
		return nil, apperrors.ErrTokenInvalid
	}
	if claims.Purpose != purpose {
		return nil, apperrors.ErrWrongPurpose
	}
	if claims.ID == "" {
		return nil, apperrors.ErrTokenInvalid
	}

	return claims, nil
}

func (s *JWTService) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.New("unexpected signing method")
	}
	return s.secret, nil
}

func mapTokenError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return apperrors.ErrTokenExpired
	}
	return apperrors.ErrTokenInvalid
}
