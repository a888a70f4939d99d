package service

import (
	"log"
	"sync"
	"time"
)

// ReaperConfig holds configuration for the session reaper.
type ReaperConfig struct {
	// IdleThreshold is how long a session without streams may stay unused.
	// Default: 30 minutes
	IdleThreshold time.Duration

	// Interval is how often the reaper runs.
	// Default: 5 minutes
	Interval time.Duration
}

// DefaultReaperConfig returns default reaper configuration.
func DefaultReaperConfig() ReaperConfig {
	return ReaperConfig{
		IdleThreshold: 30 * time.Minute,
		Interval:      5 * time.Minute,
	}
}

// SessionReaper periodically closes idle sessions, tearing down their
// subscriptions.
type SessionReaper struct {
	sessions  *SessionManager
	config    ReaperConfig
	ticker    *time.Ticker
	stopCh    chan struct{}
	stopOnce  sync.Once
	isRunning bool
	mu        sync.Mutex
}

// NewSessionReaper creates a new session reaper.
func NewSessionReaper(sessions *SessionManager, config ReaperConfig) *SessionReaper {
	defaults := DefaultReaperConfig()
	if config.IdleThreshold <= 0 {
		config.IdleThreshold = defaults.IdleThreshold
	}
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}

	return &SessionReaper{
		sessions: sessions,
		config:   config,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the reaper loop.
func (r *SessionReaper) Start() {
	r.mu.Lock()
	if r.isRunning {
		r.mu.Unlock()
		return
	}
	r.isRunning = true
	r.ticker = time.NewTicker(r.config.Interval)
	r.mu.Unlock()

	log.Printf("[SessionReaper] Started - Interval: %v, Idle threshold: %v",
		r.config.Interval, r.config.IdleThreshold)

	go r.run()
}

func (r *SessionReaper) run() {
	for {
		select {
		case <-r.ticker.C:
			r.RunNow()
		case <-r.stopCh:
			log.Printf("[SessionReaper] Stopped")
			return
		}
	}
}

// RunNow closes idle sessions immediately and returns how many were closed.
func (r *SessionReaper) RunNow() int {
	closed := r.sessions.CloseIdle(r.config.IdleThreshold)
	if closed > 0 {
		log.Printf("[SessionReaper] Closed %d idle sessions (%d live)", closed, r.sessions.Count())
	}
	return closed
}

// Stop stops the reaper.
func (r *SessionReaper) Stop() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		if r.ticker != nil {
			r.ticker.Stop()
		}
		close(r.stopCh)
		r.isRunning = false
	})
}
