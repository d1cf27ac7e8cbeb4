package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/mentorbridge/internal/checkout"
	"github.com/yungbote/mentorbridge/internal/clients/backend"
	"github.com/yungbote/mentorbridge/internal/domain/payment"
	"github.com/yungbote/mentorbridge/internal/domain/session"
	"github.com/yungbote/mentorbridge/internal/observability"
	"github.com/yungbote/mentorbridge/internal/platform/apierr"
	"github.com/yungbote/mentorbridge/internal/platform/logger"
)

// CheckoutStart is what the browser needs to open the hosted checkout.
type CheckoutStart struct {
	ScriptURL string           `json:"scriptUrl"`
	Options   checkout.Options `json:"options"`
}

type PurchaseService interface {
	Start(ctx context.Context, sessionID string, bt payment.BookingType, targetID string) (*CheckoutStart, error)
	Complete(ctx context.Context, sessionID string, res payment.Result) (checkout.Result, error)
}

type PurchaseConfig struct {
	// AbandonAfter releases attempts whose hosted UI never reported back.
	AbandonAfter time.Duration
}

type purchaseService struct {
	log       *logger.Logger
	sessions  SessionService
	backend   backend.Client
	handshake *checkout.Handshake
	bridge    *checkout.Bridge
	abandon   time.Duration
}

func NewPurchaseService(
	log *logger.Logger,
	sessions SessionService,
	be backend.Client,
	handshake *checkout.Handshake,
	bridge *checkout.Bridge,
	cfg PurchaseConfig,
) PurchaseService {
	if cfg.AbandonAfter <= 0 {
		cfg.AbandonAfter = 30 * time.Minute
	}
	return &purchaseService{
		log:       log.With("service", "PurchaseService"),
		sessions:  sessions,
		backend:   be,
		handshake: handshake,
		bridge:    bridge,
		abandon:   cfg.AbandonAfter,
	}
}

type gates struct {
	state    *session.State
	profile  *session.Profile
	offering *payment.Offering
}

// checkGates evaluates the caller-side preconditions concurrently.
func (s *purchaseService) checkGates(ctx context.Context, sessionID string, bt payment.BookingType, targetID string) (*gates, error) {
	st, err := s.sessions.Ensure(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !st.Authenticated() {
		return nil, ErrUnauthenticated
	}

	out := &gates{state: st}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.sessions.FetchUser(gctx, sessionID, false)
		if err != nil {
			return err
		}
		out.profile = p
		return nil
	})
	g.Go(func() error {
		o, err := s.backend.Offering(s.sessions.Outgoing(gctx, st), bt, targetID)
		if err != nil {
			return fmt.Errorf("load %s %s: %w", bt.Path(), targetID, err)
		}
		out.offering = o
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if kind := session.KindFromRole(out.profile.Role); kind != session.KindStudent {
		return nil, ErrStudentRequired
	}
	if !out.offering.Approved() {
		return nil, ErrNotApproved
	}
	if !out.profile.HasPhone() {
		return nil, ErrPhoneRequired
	}
	return out, nil
}

func (s *purchaseService) Start(ctx context.Context, sessionID string, bt payment.BookingType, targetID string) (*CheckoutStart, error) {
	g, err := s.checkGates(ctx, sessionID, bt, targetID)
	if err != nil {
		return nil, apiError(err)
	}

	order := checkout.Order{
		Amount:      g.offering.Price,
		BookingType: bt,
		TargetID:    targetID,
		Description: g.offering.Title,
		Prefill: &checkout.Prefill{
			Name:    g.profile.FullName,
			Email:   g.profile.Email,
			Contact: g.profile.PhoneNumber,
		},
	}

	att := s.bridge.Begin(sessionID)
	// The attempt outlives this request: it waits for the browser's callback.
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(s.sessions.Outgoing(ctx, g.state)), s.abandon)
	go func() {
		defer cancel()
		res := s.run(runCtx, sessionID, order, att)
		observability.Current().IncCheckout(string(bt), string(res.Status), failureReason(res.Err))
		att.Finish(res)
		observability.Current().SetCheckoutPending(s.bridge.Pending())
	}()

	select {
	case opts := <-att.Opened():
		observability.Current().SetCheckoutPending(s.bridge.Pending())
		return &CheckoutStart{ScriptURL: s.handshake.ScriptURL(), Options: opts}, nil
	case <-att.Done():
		res := att.Result()
		return nil, apiError(res.Err)
	case <-ctx.Done():
		// Nobody will see these options; release the attempt instead of
		// leaving it registered until it is abandoned.
		cancel()
		<-att.Done()
		return nil, apiError(ctx.Err())
	}
}

// run is the handshake plus the purchase recording that only follows a
// verified payment.
func (s *purchaseService) run(ctx context.Context, sessionID string, order checkout.Order, ui checkout.HostedUI) checkout.Result {
	res := s.handshake.Run(ctx, order, ui)
	if !res.OK() {
		return res
	}
	if err := s.backend.RecordPurchase(ctx, order.BookingType, order.TargetID, res.Data.PaymentID); err != nil {
		s.log.Error("Record purchase failed after verified payment",
			"booking_type", order.BookingType,
			"target_id", order.TargetID,
			"payment_id", res.Data.PaymentID,
			"error", err,
		)
		res.Message = "Payment received, but enrollment is still being processed. Please contact support if it does not appear shortly."
		return res
	}
	if _, err := s.sessions.FetchUser(ctx, sessionID, true); err != nil {
		s.log.Warn("Profile refresh after purchase failed", "session_id", sessionID, "error", err)
	}
	return res
}

func (s *purchaseService) Complete(ctx context.Context, sessionID string, res payment.Result) (checkout.Result, error) {
	if res.OrderID == "" {
		return checkout.Result{}, apierr.Validation("invalid_payment_result", errors.New("razorpay_order_id required"))
	}
	out, err := s.bridge.Deliver(ctx, sessionID, res)
	if err != nil {
		return checkout.Result{}, apiError(err)
	}
	return out, nil
}

func failureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, checkout.ErrOrderRejected):
		return "order_rejected"
	case errors.Is(err, checkout.ErrScriptLoad):
		return "script_load"
	case errors.Is(err, checkout.ErrAbandoned):
		return "abandoned"
	case errors.Is(err, checkout.ErrIncompletePayment), errors.Is(err, checkout.ErrOrderMismatch):
		return "invalid_result"
	case errors.Is(err, checkout.ErrVerificationFailed):
		return "verification_failed"
	default:
		return "backend"
	}
}
