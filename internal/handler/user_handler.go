package handler

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"userhub/internal/auth"
	apperrors "userhub/internal/errors"
	"userhub/internal/service"
)

// UserHandler bundles the HTTP handlers for the identity workflows.
type UserHandler struct {
	svc                 service.UserService
	jwt                 *auth.JWTService
	verifiedRedirectURL string
}

// NewUserHandler creates a handler layer.
func NewUserHandler(svc service.UserService, jwtService *auth.JWTService, verifiedRedirectURL string) *UserHandler {
	return &UserHandler{
		svc:                 svc,
		jwt:                 jwtService,
		verifiedRedirectURL: verifiedRedirectURL,
	}
}

// RegisterRequest represents a registration payload.
type RegisterRequest struct {
	FirstName       string `json:"firstName" validate:"required"`
	LastName        string `json:"lastName" validate:"required"`
	Username        string `json:"username" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	PhoneNumber     string `json:"phoneNumber"`
	Password        string `json:"password" validate:"required,min=4"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

// LoginRequest represents a login payload; userInfo is email or username.
type LoginRequest struct {
	UserInfo string `json:"userInfo" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// CreateAdminRequest is a registration payload plus the requester's OTP.
type CreateAdminRequest struct {
	RegisterRequest
	OTP string `json:"otp" validate:"required"`
}

// ForgotPasswordRequest represents a forgot-password payload.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ChangePasswordRequest represents a password-change payload. ResetToken is
// required unless the request carries a Bearer session for the target user.
type ChangePasswordRequest struct {
	Password        string `json:"password" validate:"required,min=4"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
	ResetToken      string `json:"resetToken"`
}

// UpdateProfileRequest carries the non-sensitive profile fields. Absent
// fields are left unchanged.
type UpdateProfileRequest struct {
	FirstName   *string `json:"firstName"`
	LastName    *string `json:"lastName"`
	PhoneNumber *string `json:"phoneNumber"`
	Avatar      *string `json:"avatar" validate:"omitempty,url"`
}

// CreditWalletRequest represents a wallet credit payload.
type CreditWalletRequest struct {
	Email             string          `json:"email" validate:"required,email"`
	AmountTransferred decimal.Decimal `json:"amountTransferred"`
}

// Register godoc
// @Summary Register a new user
// @Tags users
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration data"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /users/register [post]
func (h *UserHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, token, err := h.svc.Register(c.Request().Context(), registerInput(req))
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "User created successfully",
		"record":  user,
		"token":   token,
	})
}

// Verify godoc
// @Summary Consume an email verification token
// @Tags users
// @Param token path string true "Verification token"
// @Success 302
// @Failure 400 {object} errors.ErrorResponse
// @Failure 410 {object} errors.ErrorResponse
// @Router /users/verify/{token} [get]
func (h *UserHandler) Verify(c echo.Context) error {
	if err := h.svc.Verify(c.Request().Context(), c.Param("token")); err != nil {
		return httpError(err)
	}
	return c.Redirect(http.StatusFound, h.verifiedRedirectURL)
}

// Login godoc
// @Summary Login with email or username
// @Tags users
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} errors.ErrorResponse
// @Router /users/login [post]
func (h *UserHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	token, user, err := h.svc.Login(c.Request().Context(), req.UserInfo, req.Password)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "Login successful",
		"token":   token,
		"User":    user,
	})
}

// ListUsers godoc
// @Summary List all users
// @Tags users
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /users/getAllUsers [get]
func (h *UserHandler) ListUsers(c echo.Context) error {
	users, err := h.svc.ListUsers(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Successfully fetched all users",
		"users":   users,
	})
}

// GetUser godoc
// @Summary Get a single user by id
// @Tags users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} errors.ErrorResponse
// @Router /users/single-user/{id} [get]
func (h *UserHandler) GetUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	user, err := h.svc.GetUser(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": user})
}

// CreateAdmin godoc
// @Summary Create an admin account (admin session + OTP required)
// @Tags users
// @Accept json
// @Produce json
// @Param request body CreateAdminRequest true "Admin data"
// @Success 201 {object} map[string]interface{}
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Security BearerAuth
// @Router /users/createAdmin [post]
func (h *UserHandler) CreateAdmin(c echo.Context) error {
	claims, err := currentClaims(c)
	if err != nil {
		return httpError(err)
	}

	var req CreateAdminRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, token, err := h.svc.CreateAdmin(c.Request().Context(), claims, req.OTP, registerInput(req.RegisterRequest))
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Admin created successfully",
		"record":  user,
		"token":   token,
	})
}

// ForgotPassword godoc
// @Summary Request a password-reset email
// @Tags users
// @Accept json
// @Produce json
// @Param request body ForgotPasswordRequest true "Account email"
// @Success 200 {object} map[string]interface{}
// @Router /users/forgotpassword [post]
func (h *UserHandler) ForgotPassword(c echo.Context) error {
	var req ForgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.svc.ForgotPassword(c.Request().Context(), req.Email); err != nil {
		return httpError(err)
	}

	// Same response whether or not the account exists.
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Check email for the verification link",
	})
}

// ChangePassword godoc
// @Summary Change a user's password
// @Tags users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param request body ChangePasswordRequest true "New password and proof"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /users/change-password/{id} [patch]
func (h *UserHandler) ChangePassword(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req ChangePasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	// A reset token in the body takes precedence; the bearer header is only
	// consulted when no reset token was supplied, so a stale session cannot
	// block a valid reset.
	proof := service.PasswordChangeAuth{ResetToken: req.ResetToken}
	if req.ResetToken == "" {
		if token := bearerToken(c); token != "" {
			claims, err := h.jwt.VerifySession(token)
			if err != nil {
				return httpError(apperrors.ErrUnauthorized)
			}
			proof.Session = claims
		}
	}

	if err := h.svc.ChangePassword(c.Request().Context(), id, req.Password, req.ConfirmPassword, proof); err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "Password Successfully Changed",
	})
}

// UpdateProfile godoc
// @Summary Update non-sensitive profile fields
// @Tags users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param request body UpdateProfileRequest true "Profile patch"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Security BearerAuth
// @Router /users/update/{id} [patch]
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	claims, err := currentClaims(c)
	if err != nil {
		return httpError(err)
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, err := h.svc.UpdateProfile(c.Request().Context(), claims, id, service.ProfilePatch{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
		Avatar:      req.Avatar,
	})
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "Update Successful",
		"record":  user,
	})
}

// GetOTP godoc
// @Summary Issue a one-time code for the authenticated user
// @Tags users
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} errors.ErrorResponse
// @Security BearerAuth
// @Router /users/getOTP [patch]
func (h *UserHandler) GetOTP(c echo.Context) error {
	claims, err := currentClaims(c)
	if err != nil {
		return httpError(err)
	}

	if err := h.svc.SendOTP(c.Request().Context(), claims); err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "OTP sent to your email",
	})
}

// CreditWallet godoc
// @Summary Credit a user's wallet (admin only)
// @Tags users
// @Accept json
// @Produce json
// @Param request body CreditWalletRequest true "Target email and amount"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Security BearerAuth
// @Router /users/creditWallet [patch]
func (h *UserHandler) CreditWallet(c echo.Context) error {
	claims, err := currentClaims(c)
	if err != nil {
		return httpError(err)
	}

	var req CreditWalletRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, err := h.svc.CreditWallet(c.Request().Context(), claims, req.Email, req.AmountTransferred)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "Wallet credited successfully",
		"record":  user,
	})
}

func registerInput(req RegisterRequest) service.RegisterInput {
	return service.RegisterInput{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Username:        req.Username,
		Email:           req.Email,
		PhoneNumber:     req.PhoneNumber,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	}
}

// currentClaims reads the session claims stored by the JWT middleware. The
// middleware only checks signature and expiry, so the role is validated here;
// a verification token decodes to an empty role and must not act as a session.
func currentClaims(c echo.Context) (*auth.SessionClaims, error) {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok {
		return nil, apperrors.ErrUnauthorized
	}
	claims, ok := token.Claims.(*auth.SessionClaims)
	if !ok || !claims.Role.Valid() {
		return nil, apperrors.ErrUnauthorized
	}
	return claims, nil
}

// bearerToken extracts the raw token from the authorization header, if any.
func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

func httpError(err error) *echo.HTTPError {
	he := apperrors.MapErrorToHTTP(err)
	return echo.NewHTTPError(he.StatusCode, he.ToErrorResponse())
}
