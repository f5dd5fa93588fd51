package web

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"
)

// BasicAuth checks HTTP basic credentials against a bcrypt hash.
type BasicAuth struct {
	username     string
	passwordHash []byte
	limiter      *LoginRateLimiter
	log          *slog.Logger
}

func NewBasicAuth(username, passwordHash string, limiter *LoginRateLimiter, log *slog.Logger) *BasicAuth {
	return &BasicAuth{
		username:     username,
		passwordHash: []byte(passwordHash),
		limiter:      limiter,
		log:          log,
	}
}

// Check reports whether r carries valid credentials. Failed attempts count
// towards the lockout of the client address.
func (a *BasicAuth) Check(r *http.Request) (ok, locked bool) {
	ip := clientIP(r)
	if a.limiter.IsLocked(ip) {
		return false, true
	}

	username, password, present := r.BasicAuth()
	if !present {
		return false, false
	}
	if username != a.username {
		a.limiter.RecordFailure(ip)
		a.log.Warn("status auth failed: wrong username", "ip", ip)
		return false, false
	}
	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)); err != nil {
		a.limiter.RecordFailure(ip)
		a.log.Warn("status auth failed: wrong password", "ip", ip)
		return false, false
	}

	a.limiter.ClearIP(ip)
	return true, false
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// LoginRateLimiter tracks failed auth attempts per IP.
type LoginRateLimiter struct {
	mu              sync.Mutex
	attempts        map[string]*loginAttempt
	maxAttempts     int
	lockoutDuration time.Duration
	clock           clockwork.Clock
}

type loginAttempt struct {
	failCount   int
	lastFailure time.Time
	lockedAt    time.Time
}

func NewLoginRateLimiter(maxAttempts int, lockout time.Duration, clock clockwork.Clock) *LoginRateLimiter {
	return &LoginRateLimiter{
		attempts:        make(map[string]*loginAttempt),
		maxAttempts:     maxAttempts,
		lockoutDuration: lockout,
		clock:           clock,
	}
}

// IsLocked returns true if the IP is currently locked out.
func (rl *LoginRateLimiter) IsLocked(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	a, ok := rl.attempts[ip]
	if !ok || a.failCount < rl.maxAttempts {
		return false
	}
	if rl.clock.Since(a.lockedAt) < rl.lockoutDuration {
		return true
	}
	// Lockout expired, reset
	delete(rl.attempts, ip)
	return false
}

// RecordFailure increments the failure count for an IP.
func (rl *LoginRateLimiter) RecordFailure(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	a, ok := rl.attempts[ip]
	if !ok {
		a = &loginAttempt{}
		rl.attempts[ip] = a
	}
	a.failCount++
	a.lastFailure = rl.clock.Now()
	if a.failCount >= rl.maxAttempts {
		a.lockedAt = a.lastFailure
	}
}

// ClearIP removes the failure record for an IP on successful auth.
func (rl *LoginRateLimiter) ClearIP(ip string) {
	rl.mu.Lock()
	delete(rl.attempts, ip)
	rl.mu.Unlock()
}

// Prune drops records whose last failure is older than the lockout window.
func (rl *LoginRateLimiter) Prune() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, a := range rl.attempts {
		if rl.clock.Since(a.lastFailure) >= rl.lockoutDuration {
			delete(rl.attempts, ip)
		}
	}
}

// Cleanup prunes every interval until ctx is cancelled.
func (rl *LoginRateLimiter) Cleanup(ctx context.Context, every time.Duration) {
	ticker := rl.clock.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			rl.Prune()
		}
	}
}
