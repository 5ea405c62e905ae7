package auth

import (
	"sync"
	"time"
)

// Revocations tracks logged-out sessions and per-account cutoffs. A session
// is revoked when its id was revoked directly or when it was issued no later
// than its account's cutoff (set on password change or deactivation).
// Entries are dropped once the session would have expired anyway.
type Revocations struct {
	mu       sync.RWMutex
	sessions map[string]time.Time // session id -> token expiry
	cutoffs  map[string]cutoff    // account id -> account-wide revocation
	maxTTL   time.Duration
	now      func() time.Time
	done     chan struct{}
}

// NewRevocations starts a background sweep every 5 minutes. maxTTL is the
// longest session lifetime; account cutoffs older than it are dropped.
func NewRevocations(maxTTL time.Duration) *Revocations {
	r := &Revocations{
		sessions: make(map[string]time.Time),
		cutoffs:  make(map[string]cutoff),
		maxTTL:   maxTTL,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	go r.cleanupLoop()
	return r
}

// Revoke ends a single session.
func (r *Revocations) Revoke(sessionID string, expiresAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sessionID] = expiresAt
}

type cutoff struct {
	at   time.Time
	keep string
}

// RevokeAccount ends every session of accountID issued up to now.
func (r *Revocations) RevokeAccount(accountID string) {
	r.RevokeAccountExcept(accountID, "")
}

// RevokeAccountExcept ends every session of accountID issued up to now
// except keep. iat has second precision, so sessions issued later in the
// cutoff second are revoked too; keep is how a caller spares the session it
// just handed out.
func (r *Revocations) RevokeAccountExcept(accountID, keep string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cutoffs[accountID] = cutoff{at: r.now().Truncate(time.Second), keep: keep}
}

// IsRevoked checks a parsed session.
func (r *Revocations) IsRevoked(c *Claims) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.sessions[c.ID]; ok {
		return true
	}
	cut, ok := r.cutoffs[c.Subject]
	if !ok || (cut.keep != "" && c.ID == cut.keep) {
		return false
	}
	if c.IssuedAt == nil {
		return true
	}
	return !c.IssuedAt.Time.After(cut.at)
}

// Count returns the number of individually revoked sessions.
func (r *Revocations) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close stops the sweep. Safe to call more than once.
func (r *Revocations) Close() {
	select {
	case <-r.done:
	default:
		close(r.done)
	}
}

func (r *Revocations) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.cleanup()
		}
	}
}

func (r *Revocations) cleanup() {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	for id, exp := range r.sessions {
		if now.After(exp) {
			delete(r.sessions, id)
		}
	}
	for account, cut := range r.cutoffs {
		if now.Sub(cut.at) > r.maxTTL {
			delete(r.cutoffs, account)
		}
	}
}
