package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/yungbote/mentorbridge/internal/domain/payment"
)

var (
	ErrUnknownOrder     = errors.New("no open checkout for this order")
	ErrAlreadyDelivered = errors.New("payment result already delivered")
)

// Bridge is the HostedUI of the HTTP service: the order request receives the
// options once the UI "opens", and the browser's callback delivers the result.
type Bridge struct {
	mu       sync.Mutex
	attempts map[string]*Attempt
}

func NewBridge() *Bridge {
	return &Bridge{attempts: map[string]*Attempt{}}
}

// Attempt is one purchase attempt of one browser session.
type Attempt struct {
	SessionID string

	bridge  *Bridge
	opened  chan Options
	results chan payment.Result
	done    chan struct{}
	once    sync.Once
	final   Result
}

func (b *Bridge) Begin(sessionID string) *Attempt {
	return &Attempt{
		SessionID: sessionID,
		bridge:    b,
		opened:    make(chan Options, 1),
		results:   make(chan payment.Result, 1),
		done:      make(chan struct{}),
	}
}

// Open implements HostedUI.
func (a *Attempt) Open(ctx context.Context, opts Options) (payment.Result, error) {
	a.bridge.register(opts.OrderID, a)
	defer a.bridge.unregister(opts.OrderID, a)

	a.opened <- opts
	select {
	case res := <-a.results:
		return res, nil
	case <-ctx.Done():
		return payment.Result{}, fmt.Errorf("%w: %v", ErrAbandoned, ctx.Err())
	}
}

// Opened yields the options once the handshake reaches the hosted UI step.
func (a *Attempt) Opened() <-chan Options { return a.opened }

func (a *Attempt) Done() <-chan struct{} { return a.done }

// Result is valid once Done is closed.
func (a *Attempt) Result() Result {
	<-a.done
	return a.final
}

// Finish records the final outcome; only the first call counts.
func (a *Attempt) Finish(r Result) {
	a.once.Do(func() {
		a.final = r
		close(a.done)
	})
}

// Deliver hands the browser's payment result to the attempt waiting on that
// order and waits for the attempt's final outcome.
func (b *Bridge) Deliver(ctx context.Context, sessionID string, res payment.Result) (Result, error) {
	b.mu.Lock()
	a, ok := b.attempts[res.OrderID]
	b.mu.Unlock()
	if !ok || a.SessionID != sessionID {
		return Result{}, ErrUnknownOrder
	}

	select {
	case a.results <- res:
	default:
		return Result{}, ErrAlreadyDelivered
	}

	select {
	case <-a.done:
		return a.final, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Pending reports how many attempts are waiting on the hosted UI.
func (b *Bridge) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.attempts)
}

func (b *Bridge) register(orderID string, a *Attempt) {
	b.mu.Lock()
	b.attempts[orderID] = a
	b.mu.Unlock()
}

func (b *Bridge) unregister(orderID string, a *Attempt) {
	b.mu.Lock()
	if b.attempts[orderID] == a {
		delete(b.attempts, orderID)
	}
	b.mu.Unlock()
}
