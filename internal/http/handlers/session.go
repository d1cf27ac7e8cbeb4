package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mentorbridge/internal/domain/session"
	"github.com/yungbote/mentorbridge/internal/http/response"
	"github.com/yungbote/mentorbridge/internal/platform/ctxutil"
	"github.com/yungbote/mentorbridge/internal/services"
)

type SessionHandler struct {
	sessions    services.SessionService
	clearCookie func(c *gin.Context)
}

func NewSessionHandler(sessions services.SessionService, clearCookie func(c *gin.Context)) *SessionHandler {
	return &SessionHandler{sessions: sessions, clearCookie: clearCookie}
}

type sessionView struct {
	Kind          session.Kind     `json:"kind"`
	Authenticated bool             `json:"authenticated"`
	Profile       *session.Profile `json:"profile,omitempty"`
}

// GET /api/session
func (h *SessionHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	id := ctxutil.SessionID(ctx)
	st, err := h.sessions.Ensure(ctx, id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	if st.Authenticated() {
		profile, err := h.sessions.FetchUser(ctx, id, false)
		switch {
		case errors.Is(err, services.ErrUnauthenticated):
			// The backend token was revoked; the session is anonymous again.
			st, _ = h.sessions.Ensure(ctx, id)
		case err != nil:
			response.RespondAPIError(c, err)
			return
		default:
			st.Profile = profile
		}
	}
	response.RespondOK(c, gin.H{"session": viewOf(st)})
}

// POST /api/session/refresh
func (h *SessionHandler) Refresh(c *gin.Context) {
	ctx := c.Request.Context()
	id := ctxutil.SessionID(ctx)
	profile, err := h.sessions.FetchUser(ctx, id, true)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	st, err := h.sessions.Ensure(ctx, id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	st.Profile = profile
	response.RespondOK(c, gin.H{"session": viewOf(st)})
}

// POST /api/session/phone
// body: { "phoneNumber": "+91..." }
func (h *SessionHandler) UpdatePhone(c *gin.Context) {
	var req struct {
		PhoneNumber string `json:"phoneNumber" binding:"required,min=7,max=20"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	ctx := c.Request.Context()
	profile, err := h.sessions.UpdatePhone(ctx, ctxutil.SessionID(ctx), req.PhoneNumber)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"profile": profile})
}

// POST /api/session/logout
func (h *SessionHandler) Logout(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.sessions.Logout(ctx, ctxutil.SessionID(ctx)); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	if h.clearCookie != nil {
		h.clearCookie(c)
	}
	response.RespondOK(c, gin.H{"ok": true})
}

func viewOf(st *session.State) sessionView {
	v := sessionView{Kind: st.Kind, Authenticated: st.Authenticated()}
	if v.Authenticated {
		v.Profile = st.Profile
	}
	return v
}
