package processor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"ghiblyze/internal/domain"
)

const (
	DefaultSessionTTL = 30 * time.Minute
	DefaultSweepSpec  = "@every 5m"
)

type ManagerOptions struct {
	TTL       time.Duration
	SweepSpec string
}

// Manager owns one Session per owner and closes sessions left idle past TTL.
type Manager struct {
	deps Deps
	ttl  time.Duration
	now  func() time.Time
	cron *cron.Cron

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(deps Deps, opts ManagerOptions) (*Manager, error) {
	if deps.Generator == nil || deps.Gallery == nil || deps.Fetcher == nil {
		return nil, fmt.Errorf("processor: generator, fetcher and gallery are required")
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	spec := strings.TrimSpace(opts.SweepSpec)
	if spec == "" {
		spec = DefaultSweepSpec
	}

	m := &Manager{
		deps:     deps,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
	m.cron = cron.New()
	if _, err := m.cron.AddFunc(spec, func() {
		if n := m.Sweep(); n > 0 {
			deps.Logger.Info().Int("closed", n).Msg("processor: swept idle sessions")
		}
	}); err != nil {
		return nil, fmt.Errorf("processor: sweep schedule %q: %w", spec, err)
	}
	return m, nil
}

// Start runs the sweep schedule in the background.
func (m *Manager) Start() {
	m.cron.Start()
}

// Session returns the owner's session, creating it on first use.
func (m *Manager) Session(ownerID string) (*Session, error) {
	if err := domain.RequireOwner(ownerID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[ownerID]; ok {
		return s, nil
	}
	s := newSession(ownerID, m.deps, m.now)
	m.sessions[ownerID] = s
	return s, nil
}

// Sweep closes sessions idle for longer than the TTL and returns how many.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.ttl)

	m.mu.Lock()
	var stale []*Session
	for owner, s := range m.sessions {
		last, busy := s.idleSince()
		if busy || last.After(cutoff) {
			continue
		}
		delete(m.sessions, owner)
		stale = append(stale, s)
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.Close()
	}
	return len(stale)
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Stop halts the sweep schedule and closes every session.
func (m *Manager) Stop(ctx context.Context) error {
	stopped := m.cron.Stop()

	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}

	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
