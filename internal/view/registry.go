package view

import (
	"sync"
	"time"

	"github.com/sentinelhealth/fraudmap/pkg/logger"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// DefaultSessionTTL is how long an untouched session survives.
	DefaultSessionTTL = 15 * time.Minute

	defaultSweepInterval = time.Minute
)

// Registry tracks open sessions and reaps the ones nobody has touched
// for a while.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	ttl  time.Duration
	done chan struct{}
	once sync.Once
}

// NewRegistry creates a registry and starts its idle sweeper.
func NewRegistry(ttl, sweepInterval time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if sweepInterval <= 0 {
		sweepInterval = defaultSweepInterval
	}

	r := &Registry{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		done:     make(chan struct{}),
	}
	go r.sweep(sweepInterval)
	return r
}

// Open creates a session under a fresh id and registers it.
func (r *Registry) Open(params NewSessionParams) *Session {
	params.ID = gonanoid.Must()
	session := NewSession(params)

	r.mu.Lock()
	r.sessions[session.ID()] = session
	r.mu.Unlock()
	return session
}

// Get returns the session for id and marks it active.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	session, ok := r.sessions[id]
	r.mu.Unlock()
	if ok {
		session.Touch()
	}
	return session, ok
}

// Remove closes the session for id and drops it from the registry.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	session, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		session.Close()
	}
	return ok
}

// Len reports the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// CloseAll stops the sweeper and closes every open session.
func (r *Registry) CloseAll() {
	r.once.Do(func() { close(r.done) })

	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		sessions = append(sessions, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

func (r *Registry) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.reapIdle(time.Now())
		}
	}
}

func (r *Registry) reapIdle(now time.Time) {
	r.mu.Lock()
	var expired []*Session
	for id, s := range r.sessions {
		if now.Sub(s.IdleSince()) > r.ttl {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		logger.Info("reaping idle session", "session", s.ID())
		s.Close()
	}
}
