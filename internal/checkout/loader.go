package checkout

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/yungbote/mentorbridge/internal/platform/logger"
)

// ScriptLoader makes the hosted checkout script available before the UI opens.
type ScriptLoader interface {
	Ensure(ctx context.Context) error
	Loaded() bool
}

// HTTPScriptLoader checks the checkout script URL once per process. A failed
// check is not remembered, so the next attempt tries again.
type HTTPScriptLoader struct {
	log    *logger.Logger
	url    string
	client *http.Client

	mu     sync.Mutex
	loaded bool
}

func NewHTTPScriptLoader(log *logger.Logger, url string, timeout time.Duration) *HTTPScriptLoader {
	if url == "" {
		url = DefaultScriptURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPScriptLoader{
		log:    log.With("component", "CheckoutScriptLoader"),
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (l *HTTPScriptLoader) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded
}

func (l *HTTPScriptLoader) Ensure(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loaded {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("GET %s: status %d", l.url, resp.StatusCode)
	}

	l.loaded = true
	l.log.Info("Checkout script available", "url", l.url)
	return nil
}
