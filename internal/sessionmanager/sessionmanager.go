// Package sessionmanager tracks in-flight /prove sessions, enforcing the
// concurrency ceiling and per-source-IP token bucket from spec.md §5 and
// reaping sessions that overrun the global deadline. Adapted from the
// teacher's session_manager.go, which tracked long-lived network
// sessions across many protocol-step RPCs; here one "session" spans a
// single HTTP request.
package sessionmanager

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type item struct {
	id        string
	startedAt time.Time
	cancel    context.CancelFunc
}

// Manager is the process-wide bookkeeping for in-flight sessions.
type Manager struct {
	log zerolog.Logger

	sem chan struct{} // concurrency ceiling

	mu          sync.Mutex
	sessions    map[string]*item
	limiters    map[string]*rate.Limiter
	ratePerSec  float64
	burst       int
	deadline    time.Duration
	destroyChan chan string
	stopMonitor chan struct{}
}

// New builds a Manager with the given concurrency ceiling, per-IP token
// bucket parameters, and global session deadline.
func New(log zerolog.Logger, maxConcurrent int, ratePerSec float64, burst int, deadline time.Duration) *Manager {
	m := &Manager{
		log:         log.With().Str("module", "sessionmanager").Logger(),
		sem:         make(chan struct{}, maxConcurrent),
		sessions:    make(map[string]*item),
		limiters:    make(map[string]*rate.Limiter),
		ratePerSec:  ratePerSec,
		burst:       burst,
		deadline:    deadline,
		destroyChan: make(chan string),
		stopMonitor: make(chan struct{}),
	}
	go m.monitor()
	go m.monitorDestroyChan()
	return m
}

// Admit applies the backpressure policy from spec.md §5 for a request
// from sourceIP. It returns false immediately (no queueing) if either the
// concurrency ceiling or the per-IP token bucket rejects the request.
func (m *Manager) Admit(sourceIP string) bool {
	if !m.limiterFor(sourceIP).Allow() {
		return false
	}
	select {
	case m.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

func (m *Manager) limiterFor(sourceIP string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.limiters[sourceIP]
	if !ok {
		l = rate.NewLimiter(rate.Limit(m.ratePerSec), m.burst)
		m.limiters[sourceIP] = l
	}
	return l
}

// Begin registers a new session and returns a context bounded by the
// global session deadline plus a release function the caller must defer.
func (m *Manager) Begin(ctx context.Context, correlationID string) (context.Context, func()) {
	sessCtx, cancel := context.WithTimeout(ctx, m.deadline)

	m.mu.Lock()
	m.sessions[correlationID] = &item{id: correlationID, startedAt: time.Now(), cancel: cancel}
	m.mu.Unlock()

	release := func() {
		cancel()
		m.remove(correlationID)
		<-m.sem
	}
	return sessCtx, release
}

func (m *Manager) remove(correlationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, correlationID)
}

// monitor reaps sessions that have outrun the global deadline even if
// their handler never returned, the same stale-session-reaping role the
// teacher's monitorSessions() goroutine plays.
func (m *Manager) monitor() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopMonitor:
			return
		case <-ticker.C:
			now := time.Now()
			m.mu.Lock()
			for id, it := range m.sessions {
				if now.Sub(it.startedAt) > m.deadline {
					m.log.Warn().Str("session", id).Msg("reaping session past deadline")
					it.cancel()
					delete(m.sessions, id)
				}
			}
			m.mu.Unlock()
		}
	}
}

func (m *Manager) monitorDestroyChan() {
	for {
		select {
		case <-m.stopMonitor:
			return
		case id := <-m.destroyChan:
			m.mu.Lock()
			it, ok := m.sessions[id]
			delete(m.sessions, id)
			m.mu.Unlock()
			if ok {
				m.log.Warn().Str("session", id).Msg("destroying session after mpc protocol failure")
				it.cancel()
			}
		}
	}
}

// Destroy requests immediate teardown of a session, e.g. on a detected
// MPC protocol failure (spec.md §4.2, §7): it cancels the session's
// context right away rather than waiting for its handler to unwind on
// its own, so nothing keeps running against an origin connection that
// the MPC protocol has already declared failed.
func (m *Manager) Destroy(correlationID string) {
	select {
	case m.destroyChan <- correlationID:
	case <-m.stopMonitor:
	}
}

// Close stops the manager's background goroutines.
func (m *Manager) Close() {
	close(m.stopMonitor)
}
