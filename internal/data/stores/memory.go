package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/yungbote/mentorbridge/internal/domain/session"
	"github.com/yungbote/mentorbridge/internal/wizard"
)

type entry struct {
	raw       []byte
	expiresAt time.Time
}

// memoryKV stores JSON copies so callers never share mutable state with the store.
type memoryKV struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	data map[string]entry
}

func newMemoryKV(ttl time.Duration, now func() time.Time) *memoryKV {
	if now == nil {
		now = time.Now
	}
	return &memoryKV{ttl: ttl, now: now, data: map[string]entry{}}
}

func (m *memoryKV) get(id string, out any) error {
	m.mu.Lock()
	e, ok := m.data[id]
	if ok && m.ttl > 0 && !m.now().Before(e.expiresAt) {
		delete(m.data, id)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(e.raw, out)
}

func (m *memoryKV) put(id string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[id] = entry{raw: raw, expiresAt: m.now().Add(m.ttl)}
	m.mu.Unlock()
	return nil
}

func (m *memoryKV) delete(id string) {
	m.mu.Lock()
	delete(m.data, id)
	m.mu.Unlock()
}

// sweep drops expired entries; reads already ignore them.
func (m *memoryKV) sweep() int {
	if m.ttl <= 0 {
		return 0
	}
	now := m.now()
	n := 0
	m.mu.Lock()
	for k, e := range m.data {
		if !now.Before(e.expiresAt) {
			delete(m.data, k)
			n++
		}
	}
	m.mu.Unlock()
	return n
}

type MemorySessionStore struct{ kv *memoryKV }

func NewMemorySessionStore(ttl time.Duration, now func() time.Time) *MemorySessionStore {
	return &MemorySessionStore{kv: newMemoryKV(ttl, now)}
}

func (s *MemorySessionStore) Get(_ context.Context, id string) (*session.State, error) {
	var st session.State
	if err := s.kv.get(id, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *MemorySessionStore) Put(_ context.Context, st *session.State) error {
	if st == nil || st.ID == "" {
		return fmt.Errorf("session id required")
	}
	return s.kv.put(st.ID, st)
}

func (s *MemorySessionStore) Delete(_ context.Context, id string) error {
	s.kv.delete(id)
	return nil
}

func (s *MemorySessionStore) Sweep() int { return s.kv.sweep() }

type MemoryWizardStore struct{ kv *memoryKV }

func NewMemoryWizardStore(ttl time.Duration, now func() time.Time) *MemoryWizardStore {
	return &MemoryWizardStore{kv: newMemoryKV(ttl, now)}
}

func (s *MemoryWizardStore) Get(_ context.Context, id string) (*wizard.Wizard, error) {
	var w wizard.Wizard
	if err := s.kv.get(id, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *MemoryWizardStore) Put(_ context.Context, w *wizard.Wizard) error {
	if w == nil || w.ID == "" {
		return fmt.Errorf("wizard id required")
	}
	return s.kv.put(w.ID, w)
}

func (s *MemoryWizardStore) Delete(_ context.Context, id string) error {
	s.kv.delete(id)
	return nil
}

func (s *MemoryWizardStore) Sweep() int { return s.kv.sweep() }

type MemoryLocker struct {
	mu    sync.Mutex
	now   func() time.Time
	held  map[string]lease
	token uint64
}

type lease struct {
	token     uint64
	expiresAt time.Time
}

func NewMemoryLocker(now func() time.Time) *MemoryLocker {
	if now == nil {
		now = time.Now
	}
	return &MemoryLocker{now: now, held: map[string]lease{}}
}

func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if cur, ok := l.held[key]; ok && now.Before(cur.expiresAt) {
		return nil, ErrBusy
	}
	l.token++
	tok := l.token
	l.held[key] = lease{token: tok, expiresAt: now.Add(ttl)}
	return func() {
		l.mu.Lock()
		if cur, ok := l.held[key]; ok && cur.token == tok {
			delete(l.held, key)
		}
		l.mu.Unlock()
	}, nil
}
