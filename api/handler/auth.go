package handler

import (
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/vidsum/backend/api/transport"
	"github.com/vidsum/backend/domain"
	"github.com/vidsum/backend/pkg/httpcontext"
	authUC "github.com/vidsum/backend/usecase/auth"
	"github.com/vidsum/backend/usecase/ratelimit"
)

type AuthHandler struct {
	baseHandler
	controller *authUC.Controller
	limiter    *ratelimit.Limiter
}

func NewAuthHandler(controller *authUC.Controller, limiter *ratelimit.Limiter, adapter *httpcontext.Adapter, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		controller:  controller,
		limiter:     limiter,
	}
}

// @Summary Register a new account; verification is always required
// @Tags auth
// @Router /api/v1/auth/signup [post]
func (h *AuthHandler) SignUp(ctx *fasthttp.RequestCtx) {
	var req transport.SignUpRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.Email == "" || req.Password == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result, err := h.controller.SignUp(stdCtx, req.Email, req.Password, req.DisplayName)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, map[string]any{
		"requires_verification": result.RequiresVerification,
	})
}

// @Summary Sign in with email and password
// @Tags auth
// @Router /api/v1/auth/signin [post]
func (h *AuthHandler) SignIn(ctx *fasthttp.RequestCtx) {
	var req transport.SignInRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.Email == "" || req.Password == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.controller.SignIn(stdCtx, req.Email, req.Password); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, h.sessionView())
}

// @Summary Start an OAuth redirect flow
// @Tags auth
// @Router /api/v1/auth/oauth [post]
func (h *AuthHandler) OAuth(ctx *fasthttp.RequestCtx) {
	var req transport.OAuthRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.Provider == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	redirectURL, err := h.controller.SignInWithOAuth(stdCtx, req.Provider)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]string{"url": redirectURL})
}

// @Summary Dispatch a password-reset email
// @Tags auth
// @Router /api/v1/auth/reset-password [post]
func (h *AuthHandler) ResetPassword(ctx *fasthttp.RequestCtx) {
	var req transport.ResetPasswordRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	ok, err := h.limiter.CanSend(stdCtx, ratelimit.KeyPasswordReset)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	if !ok {
		remaining, _ := h.limiter.Remaining(stdCtx, ratelimit.KeyPasswordReset)
		h.respondJSON(ctx, http.StatusTooManyRequests, transport.NewError(
			string(domain.ErrCodeRateLimited),
			authUC.ResetRateLimitMessage,
			map[string]int{"retry_after_seconds": remaining}))
		return
	}

	result, err := h.controller.ResetPassword(stdCtx, req.Email)
	if err != nil {
		if result != nil && result.RateLimited {
			h.respondJSON(ctx, http.StatusTooManyRequests,
				transport.NewError(string(domain.ErrCodeRateLimited), authUC.ResetRateLimitMessage, nil))
			return
		}
		h.respondError(ctx, err)
		return
	}

	if err := h.limiter.Start(stdCtx, ratelimit.KeyPasswordReset); err != nil {
		h.logger.Warn("starting reset cooldown failed", zap.Error(err))
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]string{"message": result.Message})
}

// @Summary Resend the sign-up verification email, subject to cooldown
// @Tags auth
// @Router /api/v1/auth/resend-verification [post]
func (h *AuthHandler) ResendVerification(ctx *fasthttp.RequestCtx) {
	var req transport.ResendVerificationRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.Email == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	ok, err := h.limiter.CanSend(stdCtx, ratelimit.KeyVerificationResend)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	if !ok {
		remaining, _ := h.limiter.Remaining(stdCtx, ratelimit.KeyVerificationResend)
		h.respondJSON(ctx, http.StatusTooManyRequests, transport.NewError(
			string(domain.ErrCodeRateLimited),
			"resend available in "+ratelimit.FormatTime(remaining),
			map[string]int{"retry_after_seconds": remaining}))
		return
	}

	if err := h.controller.ResendVerification(stdCtx, req.Email); err != nil {
		h.respondError(ctx, err)
		return
	}
	if err := h.limiter.Start(stdCtx, ratelimit.KeyVerificationResend); err != nil {
		h.logger.Warn("starting resend cooldown failed", zap.Error(err))
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]string{
		"message": "Please check your inbox for the verification link.",
	})
}

// @Summary Terminate the current session
// @Tags auth
// @Router /api/v1/auth/signout [post]
func (h *AuthHandler) SignOut(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.controller.SignOut(stdCtx); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, nil)
}

// @Summary Inspect the cached auth state
// @Tags auth
// @Router /api/v1/auth/session [get]
func (h *AuthHandler) Session(ctx *fasthttp.RequestCtx) {
	h.respondSuccess(ctx, http.StatusOK, h.sessionView())
}

// @Summary Profile of the verified, signed-in user
// @Tags auth
// @Router /api/v1/me [get]
func (h *AuthHandler) Me(ctx *fasthttp.RequestCtx) {
	user := h.controller.CurrentUser()
	if user == nil {
		h.respondError(ctx, domain.ErrUnauthorized)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, user)
}

func (h *AuthHandler) sessionView() map[string]any {
	view := map[string]any{
		"state":               string(h.controller.State()),
		"verification_status": string(h.controller.VerificationStatus()),
	}
	if user := h.controller.CurrentUser(); user != nil {
		view["user"] = user
	}
	if session := h.controller.CurrentSession(); session != nil {
		view["session"] = map[string]any{
			"access_token":  session.AccessToken,
			"refresh_token": session.RefreshToken,
			"expires_at":    session.ExpiresAt,
		}
	}
	return view
}
