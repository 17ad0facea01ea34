package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/vidsum/backend/api/handler"
)

type Handlers struct {
	Auth         *apiHandler.AuthHandler
	Verification *apiHandler.VerificationHandler
	Health       *apiHandler.HealthHandler
}

func New(handlers Handlers, sessionGuard func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	// Auth routes
	r.POST("/api/v1/auth/signup", handlers.Auth.SignUp)
	r.POST("/api/v1/auth/signin", handlers.Auth.SignIn)
	r.POST("/api/v1/auth/oauth", handlers.Auth.OAuth)
	r.POST("/api/v1/auth/reset-password", handlers.Auth.ResetPassword)
	r.POST("/api/v1/auth/resend-verification", handlers.Auth.ResendVerification)
	r.POST("/api/v1/auth/signout", handlers.Auth.SignOut)
	r.GET("/api/v1/auth/session", handlers.Auth.Session)

	// Verification-link callback and flow
	r.GET("/auth/callback", handlers.Verification.Callback)
	r.GET("/api/v1/verification/status", handlers.Verification.Status)
	r.POST("/api/v1/verification/resend", handlers.Verification.Resend)

	// Protected routes
	r.GET("/api/v1/me", sessionGuard(handlers.Auth.Me))

	return r
}
