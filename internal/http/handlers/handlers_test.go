package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"

	"github.com/yungbote/mentorbridge/internal/checkout"
	"github.com/yungbote/mentorbridge/internal/data/stores"
	"github.com/yungbote/mentorbridge/internal/domain/expert"
	"github.com/yungbote/mentorbridge/internal/domain/payment"
	"github.com/yungbote/mentorbridge/internal/platform/apierr"
	"github.com/yungbote/mentorbridge/internal/platform/ctxutil"
	"github.com/yungbote/mentorbridge/internal/services"
	"github.com/yungbote/mentorbridge/internal/wizard"
)

const testSession = "sess-1"

var testNow = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		ctx := ctxutil.WithSessionData(c.Request.Context(), &ctxutil.SessionData{SessionID: testSession})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Error *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
	Wizard *wizardView `json:"wizard"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return env
}

// fakeWizards embeds the interface; tests override only the calls they expect.
type fakeWizards struct {
	services.WizardService
	w         *wizard.Wizard
	err       error
	sessionID string
	answers   wizard.Answers
	otp       string
}

func (f *fakeWizards) Start(_ context.Context, sessionID string, _ bool) (*wizard.Wizard, error) {
	f.sessionID = sessionID
	return f.w, f.err
}

func (f *fakeWizards) Answer(_ context.Context, sessionID, _ string, a wizard.Answers) (*wizard.Wizard, error) {
	f.sessionID = sessionID
	f.answers = a
	return f.w, f.err
}

func (f *fakeWizards) SendOTP(_ context.Context, sessionID, _ string) (*wizard.Wizard, error) {
	f.sessionID = sessionID
	return f.w, f.err
}

func (f *fakeWizards) VerifyOTP(_ context.Context, _, _, code string) (*wizard.Wizard, error) {
	f.otp = code
	return f.w, f.err
}

func (f *fakeWizards) Get(_ context.Context, _, _ string) (*wizard.Wizard, error) {
	return nil, f.err
}

func (f *fakeWizards) Select(_ context.Context, _, _, expertID string) (*services.Handoff, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &services.Handoff{Expert: expert.Match{ID: expertID, Name: "Meera Iyer"}}, nil
}

func (f *fakeWizards) Close(_ context.Context, _, _ string) error { return f.err }

func wizardRouter(t *testing.T, f *fakeWizards) *gin.Engine {
	r := newTestRouter(t)
	h := NewWizardHandler(f, func() time.Time { return testNow })
	r.POST("/api/wizard", h.Start)
	r.GET("/api/wizard/:id", h.Get)
	r.DELETE("/api/wizard/:id", h.Close)
	r.POST("/api/wizard/:id/answers", h.Answer)
	r.POST("/api/wizard/:id/otp/send", h.SendOTP)
	r.POST("/api/wizard/:id/otp/verify", h.VerifyOTP)
	r.POST("/api/wizard/:id/select", h.Select)
	return r
}

func TestWizardStartRendersView(t *testing.T) {
	f := &fakeWizards{w: wizard.New("w1", testSession, testNow)}
	rec := doJSON(t, wizardRouter(t, f), http.MethodPost, "/api/wizard", nil)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if f.sessionID != testSession {
		t.Fatalf("session=%q", f.sessionID)
	}
	env := decode(t, rec)
	if env.Wizard == nil || env.Wizard.ID != "w1" || env.Wizard.StepName != "role" || env.Wizard.CanGoBack {
		t.Fatalf("unexpected view: %+v", env.Wizard)
	}
}

func TestWizardSendOTPCountdown(t *testing.T) {
	w := wizard.New("w1", testSession, testNow)
	w.Step = wizard.StepContact
	w.OTP = wizard.OTPGate{
		SentTo:   "asha@example.com",
		SentAt:   testNow.Add(-10 * time.Second),
		ResendAt: testNow.Add(20*time.Second + 300*time.Millisecond),
	}
	rec := doJSON(t, wizardRouter(t, &fakeWizards{w: w}), http.MethodPost, "/api/wizard/w1/otp/send", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	env := decode(t, rec)
	want := otpView{SentTo: "asha@example.com", ResendSecondsLeft: 21}
	if diff := cmp.Diff(want, env.Wizard.OTP); diff != "" {
		t.Fatalf("otp view mismatch (-want +got):\n%s", diff)
	}
}

func TestWizardResendTooSoonReportsCountdown(t *testing.T) {
	w := wizard.New("w1", testSession, testNow)
	w.Step = wizard.StepContact
	err := apierr.New(http.StatusTooManyRequests, "otp_resend_too_soon", &wizard.ResendTooSoonError{SecondsLeft: 28})
	rec := doJSON(t, wizardRouter(t, &fakeWizards{w: w, err: err}), http.MethodPost, "/api/wizard/w1/otp/send", nil)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Retry-After"); got != "28" {
		t.Fatalf("Retry-After=%q want 28", got)
	}
	var body struct {
		RetryAfterSeconds int         `json:"retryAfterSeconds"`
		Wizard            *wizardView `json:"wizard"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.RetryAfterSeconds != 28 || body.Wizard == nil {
		t.Fatalf("body=%s", rec.Body.String())
	}
}

func TestWizardErrorsCarryState(t *testing.T) {
	w := wizard.New("w1", testSession, testNow)
	w.Step = wizard.StepContact

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		w          *wizard.Wizard
		err        error
		wantStatus int
		wantCode   string
		wantWizard bool
	}{
		{
			name:       "busy",
			method:     http.MethodPost,
			path:       "/api/wizard/w1/otp/send",
			w:          w,
			err:        apierr.Conflict("busy", stores.ErrBusy),
			wantStatus: http.StatusConflict,
			wantCode:   "busy",
			wantWizard: true,
		},
		{
			name:       "resend too soon",
			method:     http.MethodPost,
			path:       "/api/wizard/w1/otp/send",
			w:          w,
			err:        apierr.New(http.StatusTooManyRequests, "otp_resend_too_soon", wizard.ErrResendTooSoon),
			wantStatus: http.StatusTooManyRequests,
			wantCode:   "otp_resend_too_soon",
			wantWizard: true,
		},
		{
			name:       "not found",
			method:     http.MethodGet,
			path:       "/api/wizard/nope",
			err:        apierr.NotFound("not_found", services.ErrWizardNotFound),
			wantStatus: http.StatusNotFound,
			wantCode:   "not_found",
		},
		{
			name:       "malformed answers",
			method:     http.MethodPost,
			path:       "/api/wizard/w1/answers",
			body:       `{"role":`,
			w:          w,
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
		},
		{
			name:       "missing otp",
			method:     http.MethodPost,
			path:       "/api/wizard/w1/otp/verify",
			body:       map[string]string{},
			w:          w,
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
		},
		{
			name:       "unclassified error hides text",
			method:     http.MethodPost,
			path:       "/api/wizard/w1/otp/send",
			w:          w,
			err:        errors.New("dial tcp 10.0.0.1: refused"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "internal_error",
			wantWizard: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeWizards{w: tt.w, err: tt.err}
			rec := doJSON(t, wizardRouter(t, f), tt.method, tt.path, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status=%d want %d body=%s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			env := decode(t, rec)
			if env.Error == nil || env.Error.Code != tt.wantCode {
				t.Fatalf("error=%+v want code %q", env.Error, tt.wantCode)
			}
			if tt.wantCode == "internal_error" && env.Error.Message != "internal server error" {
				t.Fatalf("internal error text leaked: %q", env.Error.Message)
			}
			if (env.Wizard != nil) != tt.wantWizard {
				t.Fatalf("wizard present=%v want %v", env.Wizard != nil, tt.wantWizard)
			}
		})
	}
}

func TestWizardAnswerBindsPartialUpdate(t *testing.T) {
	f := &fakeWizards{w: wizard.New("w1", testSession, testNow)}
	rec := doJSON(t, wizardRouter(t, f), http.MethodPost, "/api/wizard/w1/answers", map[string]any{"role": "Student"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if f.answers.Role == nil || *f.answers.Role != "Student" || f.answers.Email != nil {
		t.Fatalf("answers=%+v", f.answers)
	}
}

func TestWizardSelectAndClose(t *testing.T) {
	f := &fakeWizards{}
	r := wizardRouter(t, f)

	rec := doJSON(t, r, http.MethodPost, "/api/wizard/w1/select", map[string]string{"expertId": "e2"})
	if rec.Code != http.StatusOK {
		t.Fatalf("select status=%d body=%s", rec.Code, rec.Body.String())
	}
	var got struct {
		Handoff services.Handoff `json:"handoff"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Handoff.Expert.ID != "e2" {
		t.Fatalf("handoff=%+v", got.Handoff)
	}

	rec = doJSON(t, r, http.MethodDelete, "/api/wizard/w1", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("close status=%d", rec.Code)
	}
}

type fakeExperts struct {
	filter    string
	expertise []string
}

func (f *fakeExperts) Search(_ context.Context, _ string, filter string, expertise []string) ([]expert.Match, error) {
	f.filter = filter
	f.expertise = expertise
	return nil, nil
}

func TestExpertSearchQuery(t *testing.T) {
	f := &fakeExperts{}
	r := newTestRouter(t)
	r.GET("/api/experts/search", NewExpertHandler(f).Search)

	rec := doJSON(t, r, http.MethodGet, "/api/experts/search?filter=design&expertise=AI/ML,%20Web&expertise=Cloud", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if f.filter != "design" {
		t.Fatalf("filter=%q", f.filter)
	}
	if diff := cmp.Diff([]string{"AI/ML", "Web", "Cloud"}, f.expertise); diff != "" {
		t.Fatalf("expertise mismatch (-want +got):\n%s", diff)
	}
	if rec.Body.String() != `{"experts":[]}` {
		t.Fatalf("body=%s", rec.Body.String())
	}
}

type fakePurchases struct {
	bt       payment.BookingType
	targetID string
	result   checkout.Result
	err      error
}

func (f *fakePurchases) Start(_ context.Context, _ string, bt payment.BookingType, targetID string) (*services.CheckoutStart, error) {
	f.bt, f.targetID = bt, targetID
	if f.err != nil {
		return nil, f.err
	}
	return &services.CheckoutStart{
		ScriptURL: checkout.DefaultScriptURL,
		Options:   checkout.Options{Key: "rzp_test_key", OrderID: "order_1", Amount: 49900, Currency: "INR"},
	}, nil
}

func (f *fakePurchases) Complete(_ context.Context, _ string, _ payment.Result) (checkout.Result, error) {
	return f.result, f.err
}

func checkoutRouter(t *testing.T, f *fakePurchases) *gin.Engine {
	r := newTestRouter(t)
	h := NewCheckoutHandler(f)
	r.POST("/api/checkout/:type/:id/order", h.Start)
	r.POST("/api/checkout/callback", h.Callback)
	return r
}

func TestCheckoutStart(t *testing.T) {
	t.Run("parses booking type", func(t *testing.T) {
		f := &fakePurchases{}
		rec := doJSON(t, checkoutRouter(t, f), http.MethodPost, "/api/checkout/cohort/c1/order", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
		}
		if f.bt != payment.BookingCohort || f.targetID != "c1" {
			t.Fatalf("bt=%q target=%q", f.bt, f.targetID)
		}
	})
	t.Run("unknown booking type", func(t *testing.T) {
		f := &fakePurchases{}
		rec := doJSON(t, checkoutRouter(t, f), http.MethodPost, "/api/checkout/webinar/c1/order", nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status=%d", rec.Code)
		}
		if f.targetID != "" {
			t.Fatal("service called for invalid booking type")
		}
	})
	t.Run("gate failure", func(t *testing.T) {
		f := &fakePurchases{err: apierr.Conflict("phone_required", services.ErrPhoneRequired)}
		rec := doJSON(t, checkoutRouter(t, f), http.MethodPost, "/api/checkout/course/c1/order", nil)
		if rec.Code != http.StatusConflict || decode(t, rec).Error.Code != "phone_required" {
			t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
		}
	})
}

func TestCheckoutCallbackReportsFailedVerification(t *testing.T) {
	f := &fakePurchases{result: checkout.Result{Status: checkout.StatusFailed, Message: "Payment verification failed."}}
	body := payment.Result{OrderID: "order_1", PaymentID: "pay_1", Signature: "sig"}
	rec := doJSON(t, checkoutRouter(t, f), http.MethodPost, "/api/checkout/callback", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	want := `{"result":{"status":"failed","message":"Payment verification failed."}}`
	if rec.Body.String() != want {
		t.Fatalf("body=%s want %s", rec.Body.String(), want)
	}
}

func TestReadyReportsFailingProbe(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHealthHandler(map[string]Probe{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	r := gin.New()
	r.GET("/readyz", h.Ready)
	r.GET("/healthcheck", h.HealthCheck)

	rec := doJSON(t, r, http.MethodGet, "/readyz", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rec.Code)
	}
	if rec.Body.String() != `{"checks":{"redis":"connection refused"}}` {
		t.Fatalf("body=%s", rec.Body.String())
	}
	if rec := doJSON(t, r, http.MethodGet, "/healthcheck", nil); rec.Code != http.StatusOK {
		t.Fatalf("healthcheck status=%d", rec.Code)
	}
}
