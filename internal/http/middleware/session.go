package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mentorbridge/internal/platform/ctxutil"
	"github.com/yungbote/mentorbridge/internal/platform/logger"
	"github.com/yungbote/mentorbridge/internal/services"
)

const SessionCookieName = "mb_session"

type SessionCookieConfig struct {
	Domain string
	Secure bool
}

// SessionMiddleware binds every request to a browser session. Visitors
// without a valid cookie get a new anonymous session and a fresh cookie.
type SessionMiddleware struct {
	log    *logger.Logger
	tokens services.SessionTokenService
	cfg    SessionCookieConfig
}

func NewSessionMiddleware(log *logger.Logger, tokens services.SessionTokenService, cfg SessionCookieConfig) *SessionMiddleware {
	return &SessionMiddleware{
		log:    log.With("Middleware", "SessionMiddleware"),
		tokens: tokens,
		cfg:    cfg,
	}
}

func (sm *SessionMiddleware) Attach() gin.HandlerFunc {
	return func(c *gin.Context) {
		sd := &ctxutil.SessionData{}
		if raw, err := c.Cookie(SessionCookieName); err == nil && raw != "" {
			id, perr := sm.tokens.Parse(raw)
			if perr != nil {
				sm.log.Debug("Rejected session cookie", "error", perr)
			} else {
				sd.SessionID = id
			}
		}
		if sd.SessionID == "" {
			sd.SessionID = sm.tokens.NewSessionID()
			sd.Fresh = true
		}
		// Every response slides the cookie expiry forward.
		if !sm.setCookie(c, sd.SessionID) {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": gin.H{"message": "could not start session", "code": "session_unavailable"},
			})
			return
		}

		c.Request = c.Request.WithContext(ctxutil.WithSessionData(c.Request.Context(), sd))
		c.Set("session_id", sd.SessionID)
		c.Next()
	}
}

// Clear expires the session cookie, used on logout.
func (sm *SessionMiddleware) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, "", -1, "/", sm.cfg.Domain, sm.cfg.Secure, true)
}

func (sm *SessionMiddleware) setCookie(c *gin.Context, sessionID string) bool {
	token, err := sm.tokens.Issue(sessionID)
	if err != nil {
		sm.log.Error("Issue session token failed", "error", err)
		return false
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, token, int(sm.tokens.TTL()/time.Second), "/", sm.cfg.Domain, sm.cfg.Secure, true)
	return true
}
