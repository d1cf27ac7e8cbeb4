package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/yungbote/mentorbridge/internal/domain/assessment"
	"github.com/yungbote/mentorbridge/internal/domain/expert"
	"github.com/yungbote/mentorbridge/internal/domain/payment"
	"github.com/yungbote/mentorbridge/internal/domain/session"
)

type SendOTPResponse struct {
	// OTP is only present when the backend runs in diagnostic mode.
	OTP string `json:"otp,omitempty"`
}

type VerifyOTPRequest struct {
	Email          string          `json:"email"`
	OTP            string          `json:"otp"`
	Role           string          `json:"role"`
	AssessmentData assessment.Form `json:"assessmentData"`
}

type VerifyOTPResponse struct {
	Token string           `json:"token,omitempty"`
	User  *session.Profile `json:"user,omitempty"`
}

type SubmitResponse struct {
	Success bool           `json:"success"`
	Experts []expert.Match `json:"experts"`
}

type CreateOrderRequest struct {
	Amount      int64               `json:"amount"`
	BookingType payment.BookingType `json:"bookingType"`
	ID          string              `json:"id"`
}

type CreateOrderResponse struct {
	Success  bool   `json:"success"`
	OrderID  string `json:"orderId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type VerifyPaymentResponse struct {
	Success bool `json:"success"`
	Payment struct {
		ID string `json:"_id"`
	} `json:"payment"`
}

type UserDetailsPatch struct {
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// tokenCookie is the cookie some backend builds use instead of a body token.
const tokenCookie = "token"

func (c *client) SendEmailOTP(ctx context.Context, email string) (*SendOTPResponse, error) {
	var out SendOTPResponse
	if _, err := c.do(ctx, http.MethodPost, "/user/auth/send-email-otp", nil, map[string]string{"email": email}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) VerifyEmailOTP(ctx context.Context, req VerifyOTPRequest) (*VerifyOTPResponse, error) {
	var out VerifyOTPResponse
	resp, err := c.do(ctx, http.MethodPost, "/user/auth/verify-email-otp", nil, req, &out)
	if err != nil {
		return nil, err
	}
	if out.Token == "" && resp != nil {
		for _, ck := range resp.Cookies() {
			if ck.Name == tokenCookie && ck.Value != "" {
				out.Token = ck.Value
				break
			}
		}
	}
	return &out, nil
}

func (c *client) SubmitAssessment(ctx context.Context, sub *assessment.Submission) (*SubmitResponse, error) {
	if sub == nil {
		return nil, fmt.Errorf("submission required")
	}
	var out SubmitResponse
	if _, err := c.do(ctx, http.MethodPost, "/assessment/submit", nil, sub, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchExperts encodes the expertise list as repeated "expertise[]" keys.
func (c *client) SearchExperts(ctx context.Context, filter string, expertise []string) ([]expert.Match, error) {
	q := url.Values{}
	q.Set("filter", strings.TrimSpace(filter))
	for _, e := range expertise {
		if e = strings.TrimSpace(e); e != "" {
			q.Add("expertise[]", e)
		}
	}
	var out struct {
		Data []expert.Match `json:"data"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/expert/search", q, nil, &out); err != nil {
		return nil, err
	}
	if out.Data == nil {
		out.Data = []expert.Match{}
	}
	return out.Data, nil
}

func (c *client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResponse, error) {
	var out CreateOrderResponse
	if _, err := c.do(ctx, http.MethodPost, "/payment/create-order", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) VerifyPayment(ctx context.Context, res payment.Result) (*VerifyPaymentResponse, error) {
	var out VerifyPaymentResponse
	if _, err := c.do(ctx, http.MethodPost, "/payment/verify-payment", nil, res, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) RecordPurchase(ctx context.Context, bt payment.BookingType, targetID, paymentID string) error {
	path := fmt.Sprintf("/%s/%s/purchase", bt.Path(), url.PathEscape(targetID))
	_, err := c.do(ctx, http.MethodPost, path, nil, map[string]string{"paymentId": paymentID}, nil)
	return err
}

// UserDetails accepts the bare profile as well as {user: ...} and {data: ...} envelopes.
func (c *client) UserDetails(ctx context.Context) (*session.Profile, error) {
	var out struct {
		session.Profile
		User *session.Profile `json:"user"`
		Data *session.Profile `json:"data"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/user/details", nil, nil, &out); err != nil {
		return nil, err
	}
	switch {
	case out.User != nil:
		return out.User, nil
	case out.Data != nil:
		return out.Data, nil
	}
	p := out.Profile
	return &p, nil
}

func (c *client) UpdateUserDetails(ctx context.Context, patch UserDetailsPatch) error {
	_, err := c.do(ctx, http.MethodPut, "/user/details", nil, patch, nil)
	return err
}

func (c *client) Offering(ctx context.Context, bt payment.BookingType, id string) (*payment.Offering, error) {
	var out struct {
		payment.Offering
		Data *payment.Offering `json:"data"`
	}
	path := fmt.Sprintf("/%s/%s", bt.Path(), url.PathEscape(id))
	if _, err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	if out.Data != nil {
		return out.Data, nil
	}
	o := out.Offering
	return &o, nil
}
