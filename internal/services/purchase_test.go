package services

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/yungbote/mentorbridge/internal/checkout"
	"github.com/yungbote/mentorbridge/internal/domain/payment"
)

type okLoader struct{}

func (okLoader) Ensure(ctx context.Context) error { return nil }
func (okLoader) Loaded() bool                     { return true }

type purchaseHarness struct {
	*harness
	svc    PurchaseService
	bridge *checkout.Bridge
}

func newPurchaseHarness(t *testing.T) *purchaseHarness {
	t.Helper()
	h := newHarness(t)
	hs, err := checkout.NewHandshake(h.log, h.be, okLoader{}, checkout.Config{
		KeyID:        "rzp_test_key",
		MerchantName: "MentorBridge",
		ScriptURL:    checkout.DefaultScriptURL,
	})
	if err != nil {
		t.Fatalf("NewHandshake: %v", err)
	}
	bridge := checkout.NewBridge()
	return &purchaseHarness{
		harness: h,
		bridge:  bridge,
		svc:     NewPurchaseService(h.log, h.sessions, h.be, hs, bridge, PurchaseConfig{AbandonAfter: 5 * time.Second}),
	}
}

func TestPurchaseGates(t *testing.T) {
	cases := []struct {
		name   string
		signIn bool
		setup  func(h *purchaseHarness)
		status int
		code   string
	}{
		{name: "anonymous", signIn: false, status: http.StatusUnauthorized, code: "unauthenticated"},
		{
			name: "expert", signIn: true,
			setup:  func(h *purchaseHarness) { h.be.profile.Role = "expert" },
			status: http.StatusForbidden, code: "student_required",
		},
		{
			name: "not_approved", signIn: true,
			setup:  func(h *purchaseHarness) { h.be.offering.Status = "pending" },
			status: http.StatusConflict, code: "not_approved",
		},
		{
			name: "no_phone", signIn: true,
			setup:  func(h *purchaseHarness) { h.be.profile.PhoneNumber = "" },
			status: http.StatusConflict, code: "phone_required",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newPurchaseHarness(t)
			if tc.setup != nil {
				tc.setup(h)
			}
			if tc.signIn {
				h.signIn(t, "s1")
			}
			_, err := h.svc.Start(context.Background(), "s1", payment.BookingCourse, "c1")
			assertCode(t, err, tc.status, tc.code)
			if h.be.count("CreateOrder") != 0 {
				t.Fatalf("order created despite failed gate")
			}
			if h.bridge.Pending() != 0 {
				t.Fatalf("attempt left pending")
			}
		})
	}
}

func TestPurchaseSuccessRecordsOnce(t *testing.T) {
	h := newPurchaseHarness(t)
	ctx := context.Background()
	h.signIn(t, "s1")
	h.be.verifyPay.Payment.ID = "pay_doc_1"

	start, err := h.svc.Start(ctx, "s1", payment.BookingCohort, "c1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if start.Options.OrderID != "order_1" || start.Options.Key != "rzp_test_key" || start.Options.Amount != 49900 {
		t.Fatalf("options=%+v", start.Options)
	}
	if start.Options.Prefill == nil || start.Options.Prefill.Contact != "+919876543210" {
		t.Fatalf("prefill=%+v", start.Options.Prefill)
	}
	if start.ScriptURL != checkout.DefaultScriptURL {
		t.Fatalf("script url=%q", start.ScriptURL)
	}
	if got := h.be.bearer("CreateOrder"); got != "backend-token" {
		t.Fatalf("create order bearer=%q", got)
	}
	refreshes := h.be.count("UserDetails")

	res, err := h.svc.Complete(ctx, "s1", payment.Result{OrderID: "order_1", PaymentID: "pay_1", Signature: "sig"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !res.OK() || res.Data.PaymentID != "pay_doc_1" {
		t.Fatalf("result=%+v", res)
	}
	if len(h.be.purchases) != 1 || h.be.purchases[0] != "cohort/c1/pay_doc_1" {
		t.Fatalf("purchases=%v", h.be.purchases)
	}
	if h.be.count("UserDetails") != refreshes+1 {
		t.Fatalf("profile was not refreshed after purchase")
	}

	_, err = h.svc.Complete(ctx, "s1", payment.Result{OrderID: "order_1", PaymentID: "pay_1", Signature: "sig"})
	assertCode(t, err, http.StatusNotFound, "unknown_order")
}

func TestPurchaseStartCanceledReleasesAttempt(t *testing.T) {
	h := newPurchaseHarness(t)
	h.signIn(t, "s1")
	h.be.orderGate = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := h.svc.Start(ctx, "s1", payment.BookingCourse, "c1")
		done <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for h.be.count("CreateOrder") == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("order was never requested")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Start: got %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Start did not return after the request ended")
	}
	if h.be.count("CreateOrderCanceled") != 1 {
		t.Fatalf("order call kept running after the request ended")
	}
	if h.bridge.Pending() != 0 {
		t.Fatalf("attempt left pending")
	}
	_, err := h.svc.Complete(context.Background(), "s1", payment.Result{OrderID: "order_1", PaymentID: "pay_1", Signature: "sig"})
	assertCode(t, err, http.StatusNotFound, "unknown_order")
}

func TestPurchaseFailedVerificationNeverRecords(t *testing.T) {
	h := newPurchaseHarness(t)
	ctx := context.Background()
	h.signIn(t, "s1")
	h.be.verifyPay.Success = false

	if _, err := h.svc.Start(ctx, "s1", payment.BookingCourse, "c1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	res, err := h.svc.Complete(ctx, "s1", payment.Result{OrderID: "order_1", PaymentID: "pay_1", Signature: "sig"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if res.OK() || !errors.Is(res.Err, checkout.ErrVerificationFailed) {
		t.Fatalf("result=%+v", res)
	}
	if h.be.count("RecordPurchase") != 0 {
		t.Fatalf("purchase recorded after failed verification")
	}
}

func TestPurchaseCompleteRejectsForeignSession(t *testing.T) {
	h := newPurchaseHarness(t)
	ctx := context.Background()
	h.signIn(t, "s1")

	if _, err := h.svc.Start(ctx, "s1", payment.BookingCourse, "c1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	_, err := h.svc.Complete(ctx, "s2", payment.Result{OrderID: "order_1", PaymentID: "pay_1", Signature: "sig"})
	assertCode(t, err, http.StatusNotFound, "unknown_order")

	_, err = h.svc.Complete(ctx, "s1", payment.Result{})
	assertCode(t, err, http.StatusBadRequest, "invalid_payment_result")

	// Finish the attempt so no goroutine outlives the test.
	if _, err := h.svc.Complete(ctx, "s1", payment.Result{OrderID: "order_1", PaymentID: "pay_1", Signature: "sig"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
}

func TestExpertSearchForwardsBearer(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "s1")
	svc := NewExpertService(h.log, h.sessions, h.be)
	if _, err := svc.Search(context.Background(), "s1", "  data ", []string{"AI/ML"}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := h.be.bearer("SearchExperts"); got != "backend-token" {
		t.Fatalf("bearer=%q", got)
	}
}
