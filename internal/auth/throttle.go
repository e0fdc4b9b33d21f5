// Package auth implements the login throttling state machine that gates
// access to the credential store.
package auth

import (
	"strings"
	"sync"
	"time"
)

// Default lockout policy.
const (
	DefaultMaxAttempts     = 3
	DefaultLockoutDuration = 5 * time.Minute
)

// Identity describes a successfully authenticated user. The JSON field names
// match the login response consumed by existing frontends.
type Identity struct {
	UserID   int    `json:"UserId"`
	Username string `json:"Username"`
}

// VerifyFunc compares a username/password pair against the credential store
// and returns the matched identity. The throttle only invokes it when the
// account is not locked out.
type VerifyFunc func(username, password string) (*Identity, bool)

// Status classifies the outcome of a login attempt.
type Status int

const (
	// StatusAccepted means the credentials matched and the failure record
	// for the account was cleared.
	StatusAccepted Status = iota
	// StatusRejected means the credentials did not match and attempts remain
	// before lockout.
	StatusRejected
	// StatusLockedNow means this failure tripped the lockout threshold.
	StatusLockedNow
	// StatusLocked means the account was already locked before this attempt;
	// the credentials were never compared.
	StatusLocked
)

// Result carries the outcome of a single login attempt.
type Result struct {
	Status      Status
	Identity    *Identity // set when Status is StatusAccepted
	Remaining   int       // set when Status is StatusRejected
	LockedUntil time.Time // set for both locked statuses
}

type attemptRecord struct {
	failCount    int
	lockoutUntil time.Time
}

// Throttle tracks failed login attempts per username and enforces temporary
// lockouts. The table lives in process memory only, so a restart clears all
// lockouts; that lifetime is deliberate.
type Throttle struct {
	mu          sync.Mutex
	attempts    map[string]*attemptRecord
	maxAttempts int
	lockout     time.Duration
	now         func() time.Time
}

// NewThrottle returns a throttle with the given failure threshold and lockout
// duration. Non-positive values fall back to the defaults.
func NewThrottle(maxAttempts int, lockout time.Duration) *Throttle {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if lockout <= 0 {
		lockout = DefaultLockoutDuration
	}
	return &Throttle{
		attempts:    make(map[string]*attemptRecord),
		maxAttempts: maxAttempts,
		lockout:     lockout,
		now:         time.Now,
	}
}

// Attempt runs one login attempt. Usernames are case-folded, so "Alice" and
// "alice" share one failure record. The lockout check happens before verify
// is called: a locked account never reaches the credential comparison and so
// never leaks whether the password would have matched. The whole sequence
// runs under one mutex, keeping concurrent attempts on the same account from
// racing past the threshold.
func (t *Throttle) Attempt(username, password string, verify VerifyFunc) Result {
	key := strings.ToLower(username)

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	rec := t.attempts[key]
	if rec != nil && now.Before(rec.lockoutUntil) {
		return Result{Status: StatusLocked, LockedUntil: rec.lockoutUntil}
	}

	if identity, ok := verify(username, password); ok {
		delete(t.attempts, key)
		return Result{Status: StatusAccepted, Identity: identity}
	}

	if rec == nil {
		rec = &attemptRecord{}
		t.attempts[key] = rec
	}
	rec.failCount++
	if rec.failCount >= t.maxAttempts {
		rec.lockoutUntil = now.Add(t.lockout)
		return Result{Status: StatusLockedNow, LockedUntil: rec.lockoutUntil}
	}
	return Result{Status: StatusRejected, Remaining: t.maxAttempts - rec.failCount}
}
