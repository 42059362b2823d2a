package session

import "sync"

// Provider exposes the authentication state the engine is gated on.
// Both the sync cycle and the presence heartbeat refuse to run while
// Authenticated reports false.
type Provider interface {
	// UserID returns the id of the current user, or "" when logged out.
	UserID() string
	// Authenticated reports whether a valid session exists.
	Authenticated() bool
}

// Static is a Provider backed by a fixed user id and a switchable flag.
// The daemon uses it with credentials from the config file; tests flip
// the flag to exercise the auth gates.
type Static struct {
	mu     sync.RWMutex
	userID string
	authed bool
}

// NewStatic creates a Static provider. It starts authenticated when
// userID is non-empty.
func NewStatic(userID string) *Static {
	return &Static{userID: userID, authed: userID != ""}
}

func (s *Static) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.authed {
		return ""
	}
	return s.userID
}

func (s *Static) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authed
}

// SetAuthenticated flips the session state, e.g. on logout.
func (s *Static) SetAuthenticated(v bool) {
	s.mu.Lock()
	s.authed = v
	s.mu.Unlock()
}
