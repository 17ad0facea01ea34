package middleware

import (
	"encoding/json"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/vidsum/backend/api/transport"
	"github.com/vidsum/backend/domain"
	authUC "github.com/vidsum/backend/usecase/auth"
	"github.com/vidsum/backend/usecase/verification"
)

// RequireSession gates protected routes through the verification gate: no
// user means sign in first, an unconfirmed email (when requireVerification
// is set) means verify first. The bearer token must match the cached
// session.
func RequireSession(controller *authUC.Controller, requireVerification bool, logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			user := controller.CurrentUser()
			session := controller.CurrentSession()

			switch verification.Decide(user, session, controller.Loading(), requireVerification) {
			case verification.ShowLoading:
				reject(ctx, fasthttp.StatusServiceUnavailable, string(domain.ErrCodeInternal), "auth state not settled, retry")
				return
			case verification.RedirectSignIn:
				reject(ctx, fasthttp.StatusUnauthorized, string(domain.ErrCodeUnauthorized), domain.ErrUnauthorized.Message)
				return
			case verification.RedirectVerify:
				reject(ctx, fasthttp.StatusForbidden, string(domain.ErrCodeForbidden), domain.ErrNotVerified.Message)
				return
			}

			if token := extractToken(ctx); session == nil || token != session.AccessToken {
				logger.Warn("bearer token does not match active session")
				reject(ctx, fasthttp.StatusUnauthorized, string(domain.ErrCodeUnauthorized), domain.ErrUnauthorized.Message)
				return
			}

			if user != nil {
				ctx.Request.Header.Set("X-User-ID", user.ID)
			}
			next(ctx)
		}
	}
}

func reject(ctx *fasthttp.RequestCtx, status int, code, message string) {
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(status)
	body, _ := json.Marshal(transport.NewError(code, message, nil))
	ctx.SetBody(body)
}

func extractToken(ctx *fasthttp.RequestCtx) string {
	header := string(ctx.Request.Header.Peek("Authorization"))
	if header == "" {
		return ""
	}
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return header
}
