package wizard

import (
	"time"

	"github.com/yungbote/mentorbridge/internal/domain/assessment"
	"github.com/yungbote/mentorbridge/internal/domain/expert"
)

// DefaultResendCooldown is how long the OTP resend control stays disabled.
const DefaultResendCooldown = 30 * time.Second

// OTPGate tracks the email verification round-trip at the contact step.
type OTPGate struct {
	SentTo   string    `json:"sentTo,omitempty"`
	SentAt   time.Time `json:"sentAt,omitempty"`
	ResendAt time.Time `json:"resendAt,omitempty"`
	// DevCode is only populated when the backend runs in diagnostic mode.
	DevCode  string `json:"devCode,omitempty"`
	Verified bool   `json:"verified"`
}

func (g OTPGate) Sent() bool { return !g.SentAt.IsZero() }

func (g OTPGate) CanSend(now time.Time) bool {
	return !g.Sent() || !now.Before(g.ResendAt)
}

// forgetAddress drops the verification tied to the previous email. SentAt and
// ResendAt stay so switching addresses cannot skip the countdown.
func (g *OTPGate) forgetAddress() {
	g.SentTo = ""
	g.DevCode = ""
	g.Verified = false
}

// SecondsLeft is the remaining countdown, rounded up, never negative.
func (g OTPGate) SecondsLeft(now time.Time) int {
	if !g.Sent() || !now.Before(g.ResendAt) {
		return 0
	}
	d := g.ResendAt.Sub(now)
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}

// Failure is the retryable error panel state of the wizard.
type Failure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Wizard is one in-progress assessment owned by a browser session.
type Wizard struct {
	ID        string          `json:"id"`
	SessionID string          `json:"sessionId"`
	Step      Step            `json:"step"`
	Form      assessment.Form `json:"form"`
	OTP       OTPGate         `json:"otp"`
	Experts   []expert.Match  `json:"experts,omitempty"`
	Failure   *Failure        `json:"failure,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func New(id, sessionID string, now time.Time) *Wizard {
	return &Wizard{
		ID:        id,
		SessionID: sessionID,
		Step:      StepRole,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Authenticated is true once the OTP round-trip succeeded for the current email.
func (w *Wizard) Authenticated() bool {
	return w.OTP.Verified && w.OTP.SentTo == w.Form.Email
}

func (w *Wizard) touch(now time.Time) { w.UpdatedAt = now }
