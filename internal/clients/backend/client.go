package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/yungbote/mentorbridge/internal/domain/assessment"
	"github.com/yungbote/mentorbridge/internal/domain/expert"
	"github.com/yungbote/mentorbridge/internal/domain/payment"
	"github.com/yungbote/mentorbridge/internal/domain/session"
	"github.com/yungbote/mentorbridge/internal/observability"
	"github.com/yungbote/mentorbridge/internal/platform/ctxutil"
	"github.com/yungbote/mentorbridge/internal/platform/envutil"
	"github.com/yungbote/mentorbridge/internal/platform/logger"
)

// Client talks to the marketplace REST backend. Failures are returned as-is;
// the user is the retry policy.
type Client interface {
	SendEmailOTP(ctx context.Context, email string) (*SendOTPResponse, error)
	VerifyEmailOTP(ctx context.Context, req VerifyOTPRequest) (*VerifyOTPResponse, error)
	SubmitAssessment(ctx context.Context, sub *assessment.Submission) (*SubmitResponse, error)
	SearchExperts(ctx context.Context, filter string, expertise []string) ([]expert.Match, error)
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResponse, error)
	VerifyPayment(ctx context.Context, res payment.Result) (*VerifyPaymentResponse, error)
	RecordPurchase(ctx context.Context, bt payment.BookingType, targetID, paymentID string) error
	UserDetails(ctx context.Context) (*session.Profile, error)
	UpdateUserDetails(ctx context.Context, patch UserDetailsPatch) error
	Offering(ctx context.Context, bt payment.BookingType, id string) (*payment.Offering, error)
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

func ConfigFromEnv() Config {
	timeoutSec := envutil.Int("BACKEND_TIMEOUT_SECONDS", 15)
	return Config{
		BaseURL: envutil.String("BACKEND_BASE_URL", ""),
		Timeout: time.Duration(timeoutSec) * time.Second,
	}
}

func NewFromEnv(log *logger.Logger) (Client, error) {
	return New(log, ConfigFromEnv())
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("missing BACKEND_BASE_URL")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid BACKEND_BASE_URL: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &client{
		log:        log.With("client", "BackendClient"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type client struct {
	log        *logger.Logger
	cfg        Config
	httpClient *http.Client
}

type bearerKey struct{}

// WithBearer attaches the session's backend token to outgoing calls made with ctx.
func WithBearer(ctx context.Context, token string) context.Context {
	return context.WithValue(ctxutil.Default(ctx), bearerKey{}, strings.TrimSpace(token))
}

func BearerFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	tok, _ := ctx.Value(bearerKey{}).(string)
	return tok
}

// ErrUnsuccessful is returned when the backend answers 2xx with success=false.
var ErrUnsuccessful = errors.New("backend reported success=false")

type HTTPError struct {
	StatusCode int
	Body       string
	Message    string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "backend: <nil error>"
	}
	if e.Message != "" {
		return fmt.Sprintf("backend http %d: %s", e.StatusCode, e.Message)
	}
	msg := strings.TrimSpace(e.Body)
	if msg == "" {
		msg = "<empty body>"
	}
	if len(msg) > 2000 {
		msg = msg[:2000] + "..."
	}
	return fmt.Sprintf("backend http %d: %s", e.StatusCode, msg)
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// StatusCode extracts the backend status from err, or 0 for transport failures.
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode
	}
	return 0
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (c *client) do(ctx context.Context, method, path string, query url.Values, body any, out any) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		rdr = &buf
	}

	u := c.cfg.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), method, u, rdr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := BearerFrom(ctx); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	if td := ctxutil.GetTraceData(ctx); td != nil && td.RequestID != "" {
		req.Header.Set("X-Request-ID", td.RequestID)
	}
	otel.GetTextMapPropagator().Inject(req.Context(), propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.Current().ObserveBackend(method, routeLabel(path), "error", time.Since(start))
		c.log.Warn("Backend request failed", "method", method, "path", path, "error", err)
		return nil, err
	}
	observability.Current().ObserveBackend(method, routeLabel(path), strconv.Itoa(resp.StatusCode), time.Since(start))
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	c.log.Debug("Backend request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if readErr != nil {
		return resp, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		he := &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
		var eb errorBody
		if json.Unmarshal(raw, &eb) == nil {
			he.Message = strings.TrimSpace(eb.Message)
			if he.Message == "" {
				he.Message = strings.TrimSpace(eb.Error)
			}
		}
		return resp, he
	}

	if out != nil && len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return resp, nil
}

// routeLabel collapses ids in backend paths so metric labels stay bounded.
func routeLabel(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i := 1; i < len(parts); i++ {
		if parts[i-1] == "course" || parts[i-1] == "cohort" {
			parts[i] = ":id"
		}
	}
	return "/" + strings.Join(parts, "/")
}
