package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mentorbridge/internal/domain/assessment"
	"github.com/yungbote/mentorbridge/internal/domain/expert"
	"github.com/yungbote/mentorbridge/internal/http/response"
	"github.com/yungbote/mentorbridge/internal/platform/ctxutil"
	"github.com/yungbote/mentorbridge/internal/services"
	"github.com/yungbote/mentorbridge/internal/wizard"
)

type WizardHandler struct {
	wizards services.WizardService
	now     func() time.Time
}

func NewWizardHandler(wizards services.WizardService, now func() time.Time) *WizardHandler {
	if now == nil {
		now = time.Now
	}
	return &WizardHandler{wizards: wizards, now: now}
}

type otpView struct {
	SentTo            string `json:"sentTo,omitempty"`
	Verified          bool   `json:"verified"`
	ResendSecondsLeft int    `json:"resendSecondsLeft"`
	DevCode           string `json:"devCode,omitempty"`
}

type wizardView struct {
	ID        string          `json:"id"`
	Step      wizard.Step     `json:"step"`
	StepName  string          `json:"stepName"`
	CanGoBack bool            `json:"canGoBack"`
	Form      assessment.Form `json:"form"`
	OTP       otpView         `json:"otp"`
	Experts   []expert.Match  `json:"experts,omitempty"`
	Failure   *wizard.Failure `json:"failure,omitempty"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func (h *WizardHandler) view(w *wizard.Wizard) wizardView {
	return wizardView{
		ID:        w.ID,
		Step:      w.Step,
		StepName:  w.Step.String(),
		CanGoBack: w.Step != wizard.StepRole,
		Form:      w.Form,
		OTP: otpView{
			SentTo:            w.OTP.SentTo,
			Verified:          w.OTP.Verified,
			ResendSecondsLeft: w.OTP.SecondsLeft(h.now()),
			DevCode:           w.OTP.DevCode,
		},
		Experts:   w.Experts,
		Failure:   w.Failure,
		UpdatedAt: w.UpdatedAt,
	}
}

// respond renders the wizard; on failure the current state rides along with
// the error so the UI can stay on its step.
func (h *WizardHandler) respond(c *gin.Context, w *wizard.Wizard, err error) {
	if err != nil {
		extra := gin.H{}
		var soon *wizard.ResendTooSoonError
		if errors.As(err, &soon) {
			c.Header("Retry-After", strconv.Itoa(soon.SecondsLeft))
			extra["retryAfterSeconds"] = soon.SecondsLeft
		}
		if w != nil {
			extra["wizard"] = h.view(w)
		}
		if len(extra) == 0 {
			response.RespondAPIError(c, err)
			return
		}
		response.RespondAPIErrorWith(c, err, extra)
		return
	}
	response.RespondOK(c, gin.H{"wizard": h.view(w)})
}

// GET /api/wizard/catalog
func (h *WizardHandler) Catalog(c *gin.Context) {
	response.RespondOK(c, gin.H{"catalog": h.wizards.Catalog()})
}

// POST /api/wizard
// body: { "resume": true }
func (h *WizardHandler) Start(c *gin.Context) {
	var req struct {
		Resume bool `json:"resume"`
	}
	// An empty body means a fresh start.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	ctx := c.Request.Context()
	w, err := h.wizards.Start(ctx, ctxutil.SessionID(ctx), req.Resume)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"wizard": h.view(w)})
}

// GET /api/wizard/:id
func (h *WizardHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	w, err := h.wizards.Get(ctx, ctxutil.SessionID(ctx), c.Param("id"))
	h.respond(c, w, err)
}

// POST /api/wizard/:id/answers
func (h *WizardHandler) Answer(c *gin.Context) {
	var req wizard.Answers
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	ctx := c.Request.Context()
	w, err := h.wizards.Answer(ctx, ctxutil.SessionID(ctx), c.Param("id"), req)
	h.respond(c, w, err)
}

// POST /api/wizard/:id/next
func (h *WizardHandler) Next(c *gin.Context) {
	ctx := c.Request.Context()
	w, err := h.wizards.Next(ctx, ctxutil.SessionID(ctx), c.Param("id"))
	h.respond(c, w, err)
}

// POST /api/wizard/:id/back
func (h *WizardHandler) Back(c *gin.Context) {
	ctx := c.Request.Context()
	w, err := h.wizards.Back(ctx, ctxutil.SessionID(ctx), c.Param("id"))
	h.respond(c, w, err)
}

// POST /api/wizard/:id/otp/send
func (h *WizardHandler) SendOTP(c *gin.Context) {
	ctx := c.Request.Context()
	w, err := h.wizards.SendOTP(ctx, ctxutil.SessionID(ctx), c.Param("id"))
	h.respond(c, w, err)
}

// POST /api/wizard/:id/otp/verify
// body: { "otp": "123456" }
func (h *WizardHandler) VerifyOTP(c *gin.Context) {
	var req struct {
		OTP string `json:"otp" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	ctx := c.Request.Context()
	w, err := h.wizards.VerifyOTP(ctx, ctxutil.SessionID(ctx), c.Param("id"), req.OTP)
	h.respond(c, w, err)
}

// POST /api/wizard/:id/expertise
// body: { "expertise": "AI/ML" }
func (h *WizardHandler) PickExpertise(c *gin.Context) {
	var req struct {
		Expertise string `json:"expertise" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	ctx := c.Request.Context()
	w, err := h.wizards.PickExpertise(ctx, ctxutil.SessionID(ctx), c.Param("id"), req.Expertise)
	h.respond(c, w, err)
}

// POST /api/wizard/:id/retry
func (h *WizardHandler) Retry(c *gin.Context) {
	ctx := c.Request.Context()
	w, err := h.wizards.Retry(ctx, ctxutil.SessionID(ctx), c.Param("id"))
	h.respond(c, w, err)
}

// POST /api/wizard/:id/select
// body: { "expertId": "..." }
func (h *WizardHandler) Select(c *gin.Context) {
	var req struct {
		ExpertID string `json:"expertId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	ctx := c.Request.Context()
	handoff, err := h.wizards.Select(ctx, ctxutil.SessionID(ctx), c.Param("id"), req.ExpertID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"handoff": handoff})
}

// DELETE /api/wizard/:id
func (h *WizardHandler) Close(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.wizards.Close(ctx, ctxutil.SessionID(ctx), c.Param("id")); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
