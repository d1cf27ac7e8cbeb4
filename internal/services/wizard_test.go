package services

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/yungbote/mentorbridge/internal/data/repos"
	"github.com/yungbote/mentorbridge/internal/data/repos/testutil"
	"github.com/yungbote/mentorbridge/internal/data/stores"
	"github.com/yungbote/mentorbridge/internal/domain/assessment"
	"github.com/yungbote/mentorbridge/internal/domain/expert"
	"github.com/yungbote/mentorbridge/internal/domain/session"
	"github.com/yungbote/mentorbridge/internal/platform/apierr"
	"github.com/yungbote/mentorbridge/internal/wizard"
)

func strp(s string) *string { return &s }
func intp(i int) *int       { return &i }

type wizardHarness struct {
	*harness
	svc    WizardService
	locker *stores.MemoryLocker
}

func newWizardHarness(t *testing.T, drafts repos.DraftRepo) *wizardHarness {
	t.Helper()
	return newWizardHarnessWith(t, drafts, WizardConfig{ResendCooldown: 30 * time.Second})
}

func newWizardHarnessWith(t *testing.T, drafts repos.DraftRepo, cfg WizardConfig) *wizardHarness {
	t.Helper()
	h := newHarness(t)
	cat, err := wizard.DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog: %v", err)
	}
	locker := stores.NewMemoryLocker(h.clock.Now)
	cfg.Now = h.clock.Now
	svc := NewWizardService(h.log, cat,
		stores.NewMemoryWizardStore(time.Hour, h.clock.Now),
		locker, drafts, h.sessions, h.be,
		cfg,
	)
	return &wizardHarness{harness: h, svc: svc, locker: locker}
}

func assertCode(t *testing.T, err error, status int, code string) {
	t.Helper()
	var ae *apierr.Error
	if !errors.As(err, &ae) {
		t.Fatalf("got %v, want api error %s", err, code)
	}
	if ae.Status != status || ae.Code != code {
		t.Fatalf("got %d/%s want %d/%s", ae.Status, ae.Code, status, code)
	}
}

// toExpertise walks a junior through every step up to the expertise question.
func (h *wizardHarness) toExpertise(t *testing.T, sessionID string) *wizard.Wizard {
	t.Helper()
	ctx := context.Background()
	w, err := h.svc.Start(ctx, sessionID, false)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	steps := []struct {
		answers wizard.Answers
		want    wizard.Step
	}{
		{wizard.Answers{Role: strp(string(assessment.RoleJunior))}, wizard.StepContact},
	}
	for _, s := range steps {
		if _, err := h.svc.Answer(ctx, sessionID, w.ID, s.answers); err != nil {
			t.Fatalf("Answer: %v", err)
		}
		if w, err = h.svc.Next(ctx, sessionID, w.ID); err != nil {
			t.Fatalf("Next: %v", err)
		}
		if w.Step != s.want {
			t.Fatalf("step=%s want %s", w.Step, s.want)
		}
	}

	if _, err := h.svc.Answer(ctx, sessionID, w.ID, wizard.Answers{
		FullName:        strp("Asha Rao"),
		PhoneNumber:     strp("+91 98765 43210"),
		Email:           strp("asha@example.com"),
		CityOfResidence: strp("Pune"),
	}); err != nil {
		t.Fatalf("Answer contact: %v", err)
	}
	if w, err = h.svc.SendOTP(ctx, sessionID, w.ID); err != nil {
		t.Fatalf("SendOTP: %v", err)
	}
	if w.OTP.DevCode != "123456" {
		t.Fatalf("dev code=%q", w.OTP.DevCode)
	}
	if w, err = h.svc.VerifyOTP(ctx, sessionID, w.ID, "123456"); err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}
	if w.Step != wizard.StepJourney {
		t.Fatalf("verification should advance to journey, step=%s", w.Step)
	}

	if _, err := h.svc.Answer(ctx, sessionID, w.ID, wizard.Answers{Confusion: intp(7), CareerJourney: strp(assessment.JourneyGuidance)}); err != nil {
		t.Fatalf("Answer journey: %v", err)
	}
	if w, err = h.svc.Next(ctx, sessionID, w.ID); err != nil {
		t.Fatalf("Next journey: %v", err)
	}
	if _, err := h.svc.Answer(ctx, sessionID, w.ID, wizard.Answers{LearningStyle: strp("group")}); err != nil {
		t.Fatalf("Answer learning: %v", err)
	}
	if w, err = h.svc.Next(ctx, sessionID, w.ID); err != nil {
		t.Fatalf("Next learning: %v", err)
	}
	if w.Step != wizard.StepExpertise {
		t.Fatalf("step=%s want expertise", w.Step)
	}
	return w
}

func TestWizardServiceEndToEnd(t *testing.T) {
	h := newWizardHarness(t, nil)
	ctx := context.Background()
	w := h.toExpertise(t, "s1")

	st, err := h.sessions.Ensure(ctx, "s1")
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if st.Kind != session.KindStudent || st.BackendToken != "backend-token" {
		t.Fatalf("session after verification: %+v", st)
	}
	if h.be.verifyReq.Role != "student" || h.be.verifyReq.AssessmentData.Role != assessment.RoleJunior {
		t.Fatalf("verify request=%+v", h.be.verifyReq)
	}

	w, err = h.svc.PickExpertise(ctx, "s1", w.ID, "AI/ML")
	if err != nil {
		t.Fatalf("PickExpertise: %v", err)
	}
	if w.Step != wizard.StepResults || len(w.Experts) != 2 || w.Failure != nil {
		t.Fatalf("results state: step=%s experts=%d failure=%+v", w.Step, len(w.Experts), w.Failure)
	}
	if got := h.be.count("SubmitAssessment"); got != 1 {
		t.Fatalf("submit calls=%d want 1", got)
	}
	if got := h.be.bearer("SubmitAssessment"); got != "backend-token" {
		t.Fatalf("submit bearer=%q", got)
	}
	sub := h.be.submissions[0]
	if sub.RawFormData.CareerJourney != "guidance" || sub.PersonalInfo.Email != "asha@example.com" {
		t.Fatalf("submission=%+v", sub)
	}

	handoff, err := h.svc.Select(ctx, "s1", w.ID, "e2")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	want := expert.Match{ID: "e2", Name: "Ravi Kumar", Expertise: []string{"AI/ML"}, Rating: 4.6}
	if diff := cmp.Diff(want, handoff.Expert); diff != "" {
		t.Fatalf("handoff expert mismatch (-want +got):\n%s", diff)
	}
	if handoff.Form.ExpertisePreference != "AI/ML" {
		t.Fatalf("handoff form=%+v", handoff.Form)
	}

	_, err = h.svc.Get(ctx, "s1", w.ID)
	assertCode(t, err, http.StatusNotFound, "not_found")
}

func TestWizardServiceSubmitFailureIsRetryable(t *testing.T) {
	h := newWizardHarness(t, nil)
	ctx := context.Background()
	w := h.toExpertise(t, "s1")

	experts := h.be.submit.Experts
	h.be.submit.Experts = nil
	got, err := h.svc.PickExpertise(ctx, "s1", w.ID, "AI/ML")
	assertCode(t, err, http.StatusUnprocessableEntity, "no_experts")
	if got == nil || got.Step != wizard.StepResults || got.Failure == nil || got.Failure.Code != "no_experts" {
		t.Fatalf("failed submit should stay on results with a failure panel: %+v", got)
	}

	w, err = h.svc.Get(ctx, "s1", w.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if w.Failure == nil {
		t.Fatalf("failure was not persisted")
	}

	h.be.submit.Experts = experts
	w, err = h.svc.Retry(ctx, "s1", w.ID)
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if w.Failure != nil || len(w.Experts) != 2 {
		t.Fatalf("retry state: failure=%+v experts=%d", w.Failure, len(w.Experts))
	}
	if got := h.be.count("SubmitAssessment"); got != 2 {
		t.Fatalf("submit calls=%d want 2", got)
	}

	w, err = h.svc.Back(ctx, "s1", w.ID)
	if err != nil {
		t.Fatalf("Back: %v", err)
	}
	if w.Step != wizard.StepExpertise || w.Experts != nil {
		t.Fatalf("back from results: step=%s experts=%d", w.Step, len(w.Experts))
	}
}

func TestWizardServiceBusy(t *testing.T) {
	h := newWizardHarness(t, nil)
	ctx := context.Background()
	w, err := h.svc.Start(ctx, "s1", false)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	release, err := h.locker.Acquire(ctx, lockKey(w.ID), time.Minute)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	_, err = h.svc.Answer(ctx, "s1", w.ID, wizard.Answers{Role: strp(string(assessment.RoleGraduate))})
	assertCode(t, err, http.StatusConflict, "busy")

	release()
	if _, err := h.svc.Answer(ctx, "s1", w.ID, wizard.Answers{Role: strp(string(assessment.RoleGraduate))}); err != nil {
		t.Fatalf("Answer after release: %v", err)
	}
}

func TestWizardServiceOTPErrors(t *testing.T) {
	h := newWizardHarness(t, nil)
	ctx := context.Background()
	w, _ := h.svc.Start(ctx, "s1", false)
	h.svc.Answer(ctx, "s1", w.ID, wizard.Answers{Role: strp(string(assessment.RoleJunior))})
	h.svc.Next(ctx, "s1", w.ID)

	_, err := h.svc.SendOTP(ctx, "s1", w.ID)
	assertCode(t, err, http.StatusBadRequest, "invalid_email")

	h.svc.Answer(ctx, "s1", w.ID, wizard.Answers{Email: strp("asha@example.com")})
	if _, err := h.svc.SendOTP(ctx, "s1", w.ID); err != nil {
		t.Fatalf("SendOTP: %v", err)
	}
	h.clock.Advance(10 * time.Second)
	_, err = h.svc.SendOTP(ctx, "s1", w.ID)
	assertCode(t, err, http.StatusTooManyRequests, "otp_resend_too_soon")

	_, err = h.svc.VerifyOTP(ctx, "s1", w.ID, "12ab")
	assertCode(t, err, http.StatusBadRequest, "invalid_otp")

	_, err = h.svc.VerifyOTP(ctx, "s1", w.ID, "999999")
	assertCode(t, err, http.StatusBadRequest, "backend_rejected")

	w, err = h.svc.Next(ctx, "s1", w.ID)
	assertCode(t, err, http.StatusBadRequest, "step_incomplete")
	if w.Step != wizard.StepContact {
		t.Fatalf("step=%s want contact", w.Step)
	}

	// Switching the address away and back keeps the countdown.
	h.svc.Answer(ctx, "s1", w.ID, wizard.Answers{Email: strp("other@example.com")})
	h.svc.Answer(ctx, "s1", w.ID, wizard.Answers{Email: strp("asha@example.com")})
	_, err = h.svc.SendOTP(ctx, "s1", w.ID)
	assertCode(t, err, http.StatusTooManyRequests, "otp_resend_too_soon")
	var soon *wizard.ResendTooSoonError
	if !errors.As(err, &soon) || soon.SecondsLeft != 20 {
		t.Fatalf("countdown after email switch: %v", err)
	}
	if got := h.be.count("SendEmailOTP"); got != 1 {
		t.Fatalf("backend OTP sends=%d want 1", got)
	}
}

func TestWizardServiceForeignSession(t *testing.T) {
	h := newWizardHarness(t, nil)
	ctx := context.Background()
	w, _ := h.svc.Start(ctx, "s1", false)

	_, err := h.svc.Get(ctx, "s2", w.ID)
	assertCode(t, err, http.StatusNotFound, "not_found")
	_, err = h.svc.Answer(ctx, "s2", w.ID, wizard.Answers{Role: strp(string(assessment.RoleJunior))})
	assertCode(t, err, http.StatusNotFound, "not_found")
}

func TestWizardServiceResumeFromDraft(t *testing.T) {
	db := testutil.DB(t)
	drafts := repos.NewDraftRepo(db, testutil.Logger(t))
	h := newWizardHarness(t, drafts)
	ctx := context.Background()
	sessionID := "resume-" + time.Now().Format("150405.000000000")

	w := h.toExpertise(t, sessionID)
	if err := h.svc.Close(ctx, sessionID, w.ID); err != nil {
		t.Fatalf("Close: %v", err)
	}
	fresh, err := h.svc.Start(ctx, sessionID, true)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if fresh.Step != wizard.StepRole {
		t.Fatalf("closed wizard should leave no draft, step=%s", fresh.Step)
	}

	w = h.toExpertise(t, sessionID)
	resumed, err := h.svc.Start(ctx, sessionID, true)
	if err != nil {
		t.Fatalf("Start resume: %v", err)
	}
	if resumed.Step != wizard.StepContact {
		t.Fatalf("resumed step=%s want contact", resumed.Step)
	}
	if resumed.OTP.Verified || resumed.OTP.DevCode != "" {
		t.Fatalf("draft leaked OTP state: %+v", resumed.OTP)
	}
	if resumed.Form.LearningStyle != "group" || resumed.Form.Role != assessment.RoleJunior {
		t.Fatalf("resumed form=%+v", resumed.Form)
	}
	if resumed.ID != w.ID {
		t.Fatalf("resumed id=%s want %s", resumed.ID, w.ID)
	}
}

func TestWizardServiceConcurrentOTPSendsCallBackendOnce(t *testing.T) {
	h := newWizardHarness(t, nil)
	ctx := context.Background()
	w, _ := h.svc.Start(ctx, "s1", false)
	h.svc.Answer(ctx, "s1", w.ID, wizard.Answers{Role: strp(string(assessment.RoleJunior))})
	h.svc.Next(ctx, "s1", w.ID)
	h.svc.Answer(ctx, "s1", w.ID, wizard.Answers{Email: strp("asha@example.com")})

	gate := make(chan struct{})
	h.be.otpGate = gate
	first := make(chan error, 1)
	go func() {
		_, err := h.svc.SendOTP(ctx, "s1", w.ID)
		first <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for h.be.count("SendEmailOTP") == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("first send never reached the backend")
		}
		time.Sleep(5 * time.Millisecond)
	}

	_, err := h.svc.SendOTP(ctx, "s1", w.ID)
	assertCode(t, err, http.StatusConflict, "busy")

	close(gate)
	if err := <-first; err != nil {
		t.Fatalf("first SendOTP: %v", err)
	}
	if got := h.be.count("SendEmailOTP"); got != 1 {
		t.Fatalf("backend OTP sends=%d want 1", got)
	}
}

func TestWizardServiceBusyTTLCoversBackendCalls(t *testing.T) {
	cases := []struct {
		name        string
		callTimeout time.Duration
		busyTTL     time.Duration
		want        time.Duration
	}{
		{name: "defaults", want: 30 * time.Second},
		{name: "derived_from_call_timeout", callTimeout: 15 * time.Second, want: 35 * time.Second},
		{name: "configured_too_short", callTimeout: 40 * time.Second, busyTTL: 30 * time.Second, want: 85 * time.Second},
		{name: "configured_long_enough", callTimeout: 15 * time.Second, busyTTL: time.Minute, want: time.Minute},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newWizardHarnessWith(t, nil, WizardConfig{CallTimeout: tc.callTimeout, BusyTTL: tc.busyTTL})
			svc := h.svc.(*wizardService)
			if svc.busyTTL != tc.want {
				t.Fatalf("busyTTL=%s want %s", svc.busyTTL, tc.want)
			}
			if svc.timeout >= svc.busyTTL {
				t.Fatalf("action timeout %s must end before the lease %s", svc.timeout, svc.busyTTL)
			}
		})
	}
}

func TestWizardServiceSlowBackendKeepsLease(t *testing.T) {
	h := newWizardHarnessWith(t, nil, WizardConfig{ResendCooldown: 30 * time.Second, CallTimeout: 20 * time.Second})
	ctx := context.Background()
	w, _ := h.svc.Start(ctx, "s1", false)
	h.svc.Answer(ctx, "s1", w.ID, wizard.Answers{Role: strp(string(assessment.RoleJunior))})
	h.svc.Next(ctx, "s1", w.ID)
	h.svc.Answer(ctx, "s1", w.ID, wizard.Answers{Email: strp("asha@example.com")})

	gate := make(chan struct{})
	h.be.otpGate = gate
	first := make(chan error, 1)
	go func() {
		_, err := h.svc.SendOTP(ctx, "s1", w.ID)
		first <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for h.be.count("SendEmailOTP") == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("first send never reached the backend")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if d, ok := h.be.deadline("SendEmailOTP"); !ok || time.Until(d) > 40*time.Second {
		t.Fatalf("backend call deadline=%v set=%v, want within the 45s lease", d, ok)
	}

	// Two full backend calls into the action the lease still holds.
	h.clock.Advance(40 * time.Second)
	_, err := h.svc.SendOTP(ctx, "s1", w.ID)
	assertCode(t, err, http.StatusConflict, "busy")

	close(gate)
	if err := <-first; err != nil {
		t.Fatalf("first SendOTP: %v", err)
	}
	if got := h.be.count("SendEmailOTP"); got != 1 {
		t.Fatalf("backend OTP sends=%d want 1", got)
	}
}
