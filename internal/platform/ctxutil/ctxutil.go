package ctxutil

import "context"

type (
	traceDataKey   struct{}
	sessionDataKey struct{}
)

type TraceData struct {
	TraceID   string
	RequestID string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if td, ok := ctx.Value(traceDataKey{}).(*TraceData); ok {
		return td
	}
	return nil
}

// SessionData identifies the browser session a request belongs to.
type SessionData struct {
	SessionID string
	// Fresh is set when the session cookie was minted on this request.
	Fresh bool
}

func WithSessionData(ctx context.Context, sd *SessionData) context.Context {
	return context.WithValue(ctx, sessionDataKey{}, sd)
}

func GetSessionData(ctx context.Context) *SessionData {
	if sd, ok := ctx.Value(sessionDataKey{}).(*SessionData); ok {
		return sd
	}
	return nil
}

// SessionID returns the session id attached to ctx, or "".
func SessionID(ctx context.Context) string {
	if sd := GetSessionData(ctx); sd != nil {
		return sd.SessionID
	}
	return ""
}

// Default returns ctx, or context.Background when ctx is nil.
func Default(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
