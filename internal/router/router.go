package router

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"userhub/internal/auth"
	"userhub/internal/config"
	"userhub/internal/handler"
)

// Register wires routes and middleware.
func Register(e *echo.Echo, cfg *config.Config, userHandler *handler.UserHandler) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Add validator
	e.Validator = &CustomValidator{validator: validator.New()}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/api-docs/*", echoSwagger.WrapHandler)

	users := e.Group("/users")

	// Public routes
	users.POST("/register", userHandler.Register)
	users.GET("/verify/:token", userHandler.Verify)
	users.POST("/login", userHandler.Login)
	users.GET("/getAllUsers", userHandler.ListUsers)
	users.GET("/single-user/:id", userHandler.GetUser)
	users.POST("/forgotpassword", userHandler.ForgotPassword)
	// Guarded in the handler: accepts a reset token or a Bearer session.
	users.PATCH("/change-password/:id", userHandler.ChangePassword)

	// Secured routes (require a Bearer session token)
	secured := users.Group("", echojwt.WithConfig(echojwt.Config{
		SigningKey: []byte(cfg.JWTSecret),
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(auth.SessionClaims)
		},
	}))

	secured.POST("/createAdmin", userHandler.CreateAdmin)
	secured.PATCH("/update/:id", userHandler.UpdateProfile)
	secured.PATCH("/getOTP", userHandler.GetOTP)
	secured.PATCH("/creditWallet", userHandler.CreditWallet)
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
