package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/yungbote/mentorbridge/internal/clients/backend"
	"github.com/yungbote/mentorbridge/internal/data/stores"
	"github.com/yungbote/mentorbridge/internal/domain/session"
	"github.com/yungbote/mentorbridge/internal/platform/logger"
)

const DefaultCacheExpiry = 5 * time.Minute

// SessionService is the explicit replacement for a global session store:
// handlers receive it and read or refresh the visitor's state through it.
type SessionService interface {
	Ensure(ctx context.Context, id string) (*session.State, error)
	FetchUser(ctx context.Context, id string, forceRefresh bool) (*session.Profile, error)
	MarkStudent(ctx context.Context, id, token string) (*session.State, error)
	UpdatePhone(ctx context.Context, id, phone string) (*session.Profile, error)
	Logout(ctx context.Context, id string) error
	// Outgoing attaches the session's backend token to ctx.
	Outgoing(ctx context.Context, st *session.State) context.Context
}

type SessionConfig struct {
	CacheExpiry time.Duration
	Now         func() time.Time
}

type sessionService struct {
	log     *logger.Logger
	store   stores.SessionStore
	backend backend.Client
	expiry  time.Duration
	now     func() time.Time
	group   singleflight.Group
}

func NewSessionService(log *logger.Logger, store stores.SessionStore, be backend.Client, cfg SessionConfig) SessionService {
	if cfg.CacheExpiry <= 0 {
		cfg.CacheExpiry = DefaultCacheExpiry
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &sessionService{
		log:     log.With("service", "SessionService"),
		store:   store,
		backend: be,
		expiry:  cfg.CacheExpiry,
		now:     cfg.Now,
	}
}

func (s *sessionService) Ensure(ctx context.Context, id string) (*session.State, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("session id required")
	}
	st, err := s.store.Get(ctx, id)
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, stores.ErrNotFound) {
		return nil, err
	}
	now := s.now()
	st = &session.State{ID: id, Kind: session.KindAnonymous, CreatedAt: now, UpdatedAt: now}
	if err := s.store.Put(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *sessionService) Outgoing(ctx context.Context, st *session.State) context.Context {
	if st == nil || st.BackendToken == "" {
		return ctx
	}
	return backend.WithBearer(ctx, st.BackendToken)
}

// FetchUser serves the cached profile while it is fresh; forceRefresh always
// goes to the backend. Concurrent fetches for one session share a call.
func (s *sessionService) FetchUser(ctx context.Context, id string, forceRefresh bool) (*session.Profile, error) {
	st, err := s.Ensure(ctx, id)
	if err != nil {
		return nil, err
	}
	if !forceRefresh && st.Fresh(s.now(), s.expiry) {
		return st.Profile, nil
	}
	if !st.Authenticated() {
		return nil, ErrUnauthenticated
	}

	key := id
	if forceRefresh {
		key += ":force"
	}
	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.refresh(ctx, st)
	})
	if err != nil {
		return nil, err
	}
	return v.(*session.Profile), nil
}

func (s *sessionService) refresh(ctx context.Context, st *session.State) (*session.Profile, error) {
	profile, err := s.backend.UserDetails(s.Outgoing(ctx, st))
	if err != nil {
		if backend.StatusCode(err) == http.StatusUnauthorized {
			s.log.Info("Backend token rejected, downgrading session", "session_id", st.ID)
			st.Kind = session.KindAnonymous
			st.BackendToken = ""
			st.Profile = nil
			st.FetchedAt = time.Time{}
			st.UpdatedAt = s.now()
			if perr := s.store.Put(ctx, st); perr != nil {
				s.log.Warn("Persist downgraded session failed", "session_id", st.ID, "error", perr)
			}
			return nil, ErrUnauthenticated
		}
		return nil, err
	}

	now := s.now()
	st.Profile = profile
	st.FetchedAt = now
	st.UpdatedAt = now
	st.Kind = session.KindFromRole(profile.Role)
	if err := s.store.Put(ctx, st); err != nil {
		return nil, err
	}
	return profile, nil
}

// MarkStudent is called after a successful email verification. The profile
// refresh is best effort; the verification already succeeded.
func (s *sessionService) MarkStudent(ctx context.Context, id, token string) (*session.State, error) {
	st, err := s.Ensure(ctx, id)
	if err != nil {
		return nil, err
	}
	st.Kind = session.KindStudent
	if token = strings.TrimSpace(token); token != "" {
		st.BackendToken = token
	}
	st.FetchedAt = time.Time{}
	st.UpdatedAt = s.now()
	if err := s.store.Put(ctx, st); err != nil {
		return nil, err
	}
	if !st.Authenticated() {
		s.log.Warn("Verified session has no backend token", "session_id", id)
		return st, nil
	}
	if _, err := s.FetchUser(ctx, id, true); err != nil {
		s.log.Warn("Profile refresh after verification failed", "session_id", id, "error", err)
	}
	return s.Ensure(ctx, id)
}

func (s *sessionService) UpdatePhone(ctx context.Context, id, phone string) (*session.Profile, error) {
	st, err := s.Ensure(ctx, id)
	if err != nil {
		return nil, err
	}
	if !st.Authenticated() {
		return nil, ErrUnauthenticated
	}
	if err := s.backend.UpdateUserDetails(s.Outgoing(ctx, st), backend.UserDetailsPatch{PhoneNumber: phone}); err != nil {
		return nil, err
	}
	return s.FetchUser(ctx, id, true)
}

func (s *sessionService) Logout(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}
