package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/vidsum/backend/pkg/httpcontext"
	"github.com/vidsum/backend/usecase/ratelimit"
	"github.com/vidsum/backend/usecase/verification"
)

type VerificationHandler struct {
	baseHandler
	flow       *verification.Flow
	limiter    *ratelimit.Limiter
	landingURL string
}

func NewVerificationHandler(flow *verification.Flow, limiter *ratelimit.Limiter, landingURL string, adapter *httpcontext.Adapter, logger *zap.Logger) *VerificationHandler {
	return &VerificationHandler{
		baseHandler: newBaseHandler(adapter, logger),
		flow:        flow,
		limiter:     limiter,
		landingURL:  landingURL,
	}
}

// @Summary Consume a verification-link visit
// @Tags verification
// @Router /auth/callback [get]
func (h *VerificationHandler) Callback(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	params := verification.ParamsFromQuery(string(ctx.URI().QueryString()))
	state := h.flow.HandleCallback(stdCtx, params)

	// The consumed tokens never reappear in a URL the browser can keep.
	scrubbed := verification.ScrubURL(string(ctx.URI().FullURI()))

	view := map[string]any{
		"state":        string(state),
		"email":        h.flow.Email(),
		"scrubbed_url": scrubbed,
	}
	switch state {
	case verification.StateVerified:
		view["redirect_url"] = h.landingURL
		view["redirect_after_ms"] = verification.RedirectDelay.Milliseconds()
	case verification.StateFailed:
		if err := h.flow.Err(); err != nil {
			view["error"] = err.Error()
		}
		view["recoveries"] = []string{"resend", "sign-in"}
	case verification.StateAwaitingLink:
		remaining, _ := h.limiter.Remaining(stdCtx, ratelimit.KeyVerificationResend)
		view["resend_available"] = remaining <= 0
		view["resend_in"] = ratelimit.FormatTime(remaining)
	}
	h.respondSuccess(ctx, http.StatusOK, view)
}

// @Summary Current state of the verification flow
// @Tags verification
// @Router /api/v1/verification/status [get]
func (h *VerificationHandler) Status(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	remaining, err := h.limiter.Remaining(stdCtx, ratelimit.KeyVerificationResend)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]any{
		"state":            string(h.flow.State()),
		"email":            h.flow.Email(),
		"resend_available": remaining <= 0,
		"resend_in":        ratelimit.FormatTime(remaining),
	})
}

// @Summary Resend the verification email for the pending address
// @Tags verification
// @Router /api/v1/verification/resend [post]
func (h *VerificationHandler) Resend(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.flow.Resend(stdCtx); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]string{
		"message": "Please check your inbox for the verification link.",
	})
}
