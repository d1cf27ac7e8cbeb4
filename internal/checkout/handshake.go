package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/mentorbridge/internal/clients/backend"
	"github.com/yungbote/mentorbridge/internal/domain/payment"
	"github.com/yungbote/mentorbridge/internal/observability"
	"github.com/yungbote/mentorbridge/internal/platform/envutil"
	"github.com/yungbote/mentorbridge/internal/platform/logger"
)

var (
	ErrOrderRejected      = errors.New("order creation rejected")
	ErrScriptLoad         = errors.New("checkout script failed to load")
	ErrAbandoned          = errors.New("checkout abandoned")
	ErrIncompletePayment  = errors.New("payment result incomplete")
	ErrOrderMismatch      = errors.New("payment result is for a different order")
	ErrVerificationFailed = errors.New("payment verification failed")
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Receipt is the data of a successful handshake.
type Receipt struct {
	PaymentID string         `json:"paymentId"`
	OrderID   string         `json:"orderId"`
	Intent    payment.Intent `json:"intent"`
}

// Result is the tagged outcome of Run. Err is kept for callers that branch on
// the failure kind; it is not serialised.
type Result struct {
	Status  Status   `json:"status"`
	Data    *Receipt `json:"data,omitempty"`
	Message string   `json:"message,omitempty"`
	Err     error    `json:"-"`
}

func (r Result) OK() bool { return r.Status == StatusSuccess }

func failed(msg string, err error) Result {
	return Result{Status: StatusFailed, Message: msg, Err: err}
}

// Order is what the caller wants to buy.
type Order struct {
	Amount      int64
	BookingType payment.BookingType
	TargetID    string
	Description string
	Prefill     *Prefill
}

type Prefill struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Contact string `json:"contact,omitempty"`
}

type Theme struct {
	Color string `json:"color,omitempty"`
}

// Options configure the hosted checkout UI.
type Options struct {
	Key         string   `json:"key"`
	Amount      int64    `json:"amount"`
	Currency    string   `json:"currency"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	OrderID     string   `json:"order_id"`
	Theme       Theme    `json:"theme"`
	Prefill     *Prefill `json:"prefill,omitempty"`
}

// HostedUI opens the external checkout surface and blocks until it reports a
// payment result or ctx ends.
type HostedUI interface {
	Open(ctx context.Context, opts Options) (payment.Result, error)
}

// Gateway is the subset of the backend the handshake needs.
type Gateway interface {
	CreateOrder(ctx context.Context, req backend.CreateOrderRequest) (*backend.CreateOrderResponse, error)
	VerifyPayment(ctx context.Context, res payment.Result) (*backend.VerifyPaymentResponse, error)
}

type Config struct {
	KeyID        string
	MerchantName string
	ThemeColor   string
	ScriptURL    string
}

const DefaultScriptURL = "https://checkout.razorpay.com/v1/checkout.js"

func ConfigFromEnv() Config {
	return Config{
		KeyID:        envutil.String("RAZORPAY_KEY_ID", ""),
		MerchantName: envutil.String("CHECKOUT_MERCHANT_NAME", "MentorBridge"),
		ThemeColor:   envutil.String("CHECKOUT_THEME_COLOR", "#3399cc"),
		ScriptURL:    envutil.String("RAZORPAY_CHECKOUT_URL", DefaultScriptURL),
	}
}

type Handshake struct {
	log    *logger.Logger
	gw     Gateway
	loader ScriptLoader
	cfg    Config
}

func NewHandshake(log *logger.Logger, gw Gateway, loader ScriptLoader, cfg Config) (*Handshake, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if gw == nil {
		return nil, fmt.Errorf("gateway required")
	}
	if loader == nil {
		return nil, fmt.Errorf("script loader required")
	}
	if strings.TrimSpace(cfg.KeyID) == "" {
		return nil, fmt.Errorf("missing RAZORPAY_KEY_ID")
	}
	return &Handshake{log: log.With("component", "CheckoutHandshake"), gw: gw, loader: loader, cfg: cfg}, nil
}

// Run performs order creation, hosted checkout and verification in that order.
// Any failure ends the attempt; a retry starts again from order creation.
func (h *Handshake) Run(ctx context.Context, order Order, ui HostedUI) Result {
	ctx, span := observability.Tracer().Start(ctx, "checkout.handshake", trace.WithAttributes(
		attribute.String("booking_type", string(order.BookingType)),
		attribute.String("target_id", order.TargetID),
		attribute.Int64("amount", order.Amount),
	))
	defer span.End()

	res := h.run(ctx, order, ui)
	span.SetAttributes(attribute.String("status", string(res.Status)))
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Message)
	}
	return res
}

func (h *Handshake) run(ctx context.Context, order Order, ui HostedUI) Result {
	created, err := h.gw.CreateOrder(ctx, backend.CreateOrderRequest{
		Amount:      order.Amount,
		BookingType: order.BookingType,
		ID:          order.TargetID,
	})
	if err != nil {
		h.log.Warn("Create order failed", "booking_type", order.BookingType, "target_id", order.TargetID, "error", err)
		return failed("Could not create the order. Please try again.", err)
	}
	if !created.Success || strings.TrimSpace(created.OrderID) == "" {
		return failed("Could not create the order. Please try again.", ErrOrderRejected)
	}
	intent := payment.Intent{
		OrderID:     created.OrderID,
		Amount:      created.Amount,
		Currency:    created.Currency,
		BookingType: order.BookingType,
		TargetID:    order.TargetID,
	}

	if err := h.loader.Ensure(ctx); err != nil {
		h.log.Warn("Checkout script load failed", "error", err)
		return failed("Payment window could not be loaded. Please try again.", fmt.Errorf("%w: %v", ErrScriptLoad, err))
	}

	res, err := ui.Open(ctx, h.options(intent, order))
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, ErrAbandoned) {
			err = fmt.Errorf("%w: %v", ErrAbandoned, err)
		}
		h.log.Info("Hosted checkout ended without payment", "order_id", intent.OrderID, "error", err)
		return failed("Payment was not completed.", err)
	}
	if !res.Complete() {
		return failed("Payment was not completed.", ErrIncompletePayment)
	}
	if res.OrderID != intent.OrderID {
		return failed("Payment does not match this order.", ErrOrderMismatch)
	}

	verified, err := h.gw.VerifyPayment(ctx, res)
	if err != nil {
		h.log.Warn("Verify payment failed", "order_id", intent.OrderID, "error", err)
		return failed("Payment verification failed.", fmt.Errorf("%w: %v", ErrVerificationFailed, err))
	}
	if !verified.Success {
		return failed("Payment verification failed.", ErrVerificationFailed)
	}

	paymentID := verified.Payment.ID
	if paymentID == "" {
		paymentID = res.PaymentID
	}
	h.log.Info("Checkout verified", "order_id", intent.OrderID, "payment_id", paymentID)
	return Result{
		Status: StatusSuccess,
		Data:   &Receipt{PaymentID: paymentID, OrderID: intent.OrderID, Intent: intent},
	}
}

func (h *Handshake) options(intent payment.Intent, order Order) Options {
	desc := order.Description
	if desc == "" {
		desc = fmt.Sprintf("%s purchase", intent.BookingType)
	}
	return Options{
		Key:         h.cfg.KeyID,
		Amount:      intent.Amount,
		Currency:    intent.Currency,
		Name:        h.cfg.MerchantName,
		Description: desc,
		OrderID:     intent.OrderID,
		Theme:       Theme{Color: h.cfg.ThemeColor},
		Prefill:     order.Prefill,
	}
}

func (h *Handshake) ScriptURL() string { return h.cfg.ScriptURL }
