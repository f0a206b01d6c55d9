package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/plonguo/portfolio-api/internal/ai"
	"github.com/plonguo/portfolio-api/internal/common"
	"github.com/plonguo/portfolio-api/internal/guard"
	"github.com/plonguo/portfolio-api/internal/quota"
)

type chatReq struct {
	Message        string       `json:"message"`
	SessionID      string       `json:"sessionId"`
	History        []ai.Message `json:"history"`
	TurnstileToken string       `json:"turnstileToken"`
}

// doneSentinel terminates a normal stream; its absence tells the client the
// stream ended abnormally.
const doneSentinel = "[DONE]"

// ChatStream is the request-gated chat proxy: guard, verification gate,
// quota admission, then SSE relay of the completion stream. Each gate
// short-circuits the rest.
func (h *Handler) ChatStream(c *gin.Context) {
	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, common.CodeValidation, "Message is required")
		return
	}

	if vr := guard.ValidateInput(req.Message, h.Cfg.MaxInputLength); !vr.Valid {
		common.Fail(c, http.StatusBadRequest, common.CodeValidation, vr.Error)
		return
	}
	sanitized := guard.Sanitize(req.Message)

	ip := quota.ClientIP(c.Request)

	// Verification runs whenever the client presents a token; the periodic
	// re-challenge cadence is driven client-side.
	if req.TurnstileToken != "" {
		if !h.Verifier.Verify(c.Request.Context(), req.TurnstileToken, ip) {
			common.Fail(c, http.StatusForbidden, common.CodeVerificationFailed,
				"Verification failed. Please try again.")
			return
		}
	}

	identity := quota.IdentityKey(ip, req.SessionID)
	if d := h.Quota.CheckAndAdmit(c.Request.Context(), identity); !d.Allowed {
		common.Fail(c, http.StatusTooManyRequests, common.CodeRateLimit, d.Reason)
		return
	}

	ctx := c.Request.Context()
	chunks, errs := h.ChatSvc.Stream(ctx, sanitized, req.History)

	flusher, okF := c.Writer.(http.Flusher)
	if !okF {
		common.Fail(c, http.StatusInternalServerError, common.CodeServerError,
			"Something went wrong. Please try again.")
		return
	}

	started := false
	startSSE := func() {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no") // helpful behind nginx
		c.Status(http.StatusOK)
		started = true
	}

	writeEvent := func(payload any) {
		b, err := json.Marshal(payload)
		if err != nil {
			return
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", b)
		flusher.Flush()
	}

	totalTokens := 0

	for chunks != nil || errs != nil {
		select {
		case content, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			if !started {
				startSSE()
			}
			// one unit per non-empty increment; exactness is not required
			totalTokens++
			writeEvent(gin.H{"content": content})

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err == nil {
				continue
			}
			// the select picks arbitrarily when both channels are ready, so
			// flush any already-generated content before the terminal event
			for drained := true; drained && chunks != nil; {
				select {
				case content, open := <-chunks:
					if !open {
						chunks = nil
						continue
					}
					if !started {
						startSSE()
					}
					totalTokens++
					writeEvent(gin.H{"content": content})
				default:
					drained = false
				}
			}
			log.Printf("[ChatStream] upstream failure identity=%s err=%v", identity, err)
			if !started {
				common.Fail(c, http.StatusInternalServerError, common.CodeServerError,
					"Something went wrong. Please try again.")
				return
			}
			// headers already sent: a degraded in-band error event is the
			// only remaining contract; no [DONE] follows.
			writeEvent(gin.H{"error": "Stream interrupted"})
			return

		case <-ctx.Done():
			// client went away; an early end is a normal termination, and
			// whatever was generated still counts against the token budget
			h.ChatSvc.ReportUsage(identity, totalTokens)
			return
		}
	}

	if !started {
		startSSE()
	}
	fmt.Fprintf(c.Writer, "data: %s\n\n", doneSentinel)
	flusher.Flush()

	h.ChatSvc.ReportUsage(identity, totalTokens)
}
