// Package session implements the client-side authentication state store for
// the SANAA360 creator CLI. The store is the single source of truth for the
// mirrored session: it owns the profile, the authenticated flag, the last
// failure, and the token-expiry hint, and it mediates every identity-related
// call to the backend. A subset of its state survives process restarts
// through a JSON snapshot in the auth directory.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/sanaa360/creator-cli/internal/backend"
	"github.com/sanaa360/creator-cli/internal/logging"
	log "github.com/sirupsen/logrus"
)

// Backend is the remote auth service surface the store depends on.
// *backend.Client implements it; tests substitute a scripted double.
type Backend interface {
	ProcessCallback(ctx context.Context, code, state string) (*backend.ExchangeResult, *backend.Error)
	Status(ctx context.Context) (*backend.StatusResult, *backend.Error)
	RefreshToken(ctx context.Context) (*backend.RefreshResult, *backend.Error)
	RevokeAccess(ctx context.Context) *backend.Error
}

// Persister stores and loads the durable session snapshot.
// A nil Persister disables persistence entirely.
type Persister interface {
	Load() (*Snapshot, error)
	Save(*Snapshot) error
}

// State is a point-in-time copy of the store's observable state.
type State struct {
	User            *backend.Profile
	IsAuthenticated bool
	IsLoading       bool
	Err             string
	ErrDetails      *backend.Error
	TokenExpiry     *time.Time
}

// Store holds the mirrored authentication session. All mutations go through
// its operations; UI code only ever reads State snapshots. A single mutex
// serializes state access so overlapping callers (a status check racing a
// manual refresh) resolve to last-completion-wins without corruption.
type Store struct {
	backend     Backend
	persister   Persister
	refreshLead time.Duration

	mu            sync.Mutex
	user          *backend.Profile
	authenticated bool
	loading       bool
	errMsg        string
	errDetails    *backend.Error
	tokenExpiry   *time.Time
}

// New constructs a store bound to the given backend. When persister is
// non-nil the durable snapshot is rehydrated immediately; error and loading
// always start clean. refreshLead is the lookahead window for proactive
// refresh; zero or negative falls back to 15 minutes.
func New(b Backend, persister Persister, refreshLead time.Duration) *Store {
	if refreshLead <= 0 {
		refreshLead = 15 * time.Minute
	}
	s := &Store{
		backend:     b,
		persister:   persister,
		refreshLead: refreshLead,
	}
	s.rehydrate()
	return s
}

func (s *Store) rehydrate() {
	if s.persister == nil {
		return
	}
	snap, err := s.persister.Load()
	if err != nil {
		log.Warnf("session snapshot load failed: %v", err)
		return
	}
	if snap == nil {
		return
	}
	// Authenticated without a user would violate the store invariant, so a
	// snapshot in that shape is discarded instead of trusted.
	if snap.IsAuthenticated && snap.User == nil {
		log.Warn("discarding inconsistent session snapshot (authenticated without user)")
		return
	}
	s.mu.Lock()
	s.user = snap.User
	s.authenticated = snap.IsAuthenticated
	s.tokenExpiry = snap.TokenExpiry
	s.mu.Unlock()
}

// State returns a copy of the current observable state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		User:            s.user,
		IsAuthenticated: s.authenticated,
		IsLoading:       s.loading,
		Err:             s.errMsg,
		ErrDetails:      s.errDetails,
		TokenExpiry:     s.tokenExpiry,
	}
}

// SetUser marks the session authenticated with the given profile and clears
// any previous error. The snapshot is written through when persistence is on.
func (s *Store) SetUser(profile *backend.Profile) {
	if profile == nil {
		return
	}
	s.mu.Lock()
	s.user = profile
	s.authenticated = true
	s.errMsg = ""
	s.errDetails = nil
	s.persistLocked()
	s.mu.Unlock()
}

// ExchangeCode trades the one-time authorization code for a backend session.
// On success the profile and expiry hint are installed. On failure the error
// state is set but an existing authenticated session is left untouched; the
// user may retry without being logged out. The store does not deduplicate
// retries of the same code; that policy belongs to the callback controller.
func (s *Store) ExchangeCode(ctx context.Context, code, state string) bool {
	s.beginOp()

	result, errExchange := s.backend.ProcessCallback(ctx, code, state)
	if errExchange != nil {
		s.failOp(errExchange)
		return false
	}

	s.mu.Lock()
	s.user = result.User
	s.authenticated = true
	s.tokenExpiry = result.TokenExpiry
	s.loading = false
	s.errMsg = ""
	s.errDetails = nil
	s.persistLocked()
	s.mu.Unlock()

	log.WithField("request_id", logging.GetRequestID(ctx)).Infof("exchange succeeded for %s", result.User.Username)
	return true
}

// CheckStatus asks the backend whether the session is still authenticated.
// A local expiry hint inside the refresh window triggers a proactive refresh
// first, so the status call doesn't round-trip just to report a stale token.
// A clean "not authenticated" clears the session without error; a 401 clears
// it with a session-expired error; any other failure leaves the session
// untouched, because a transient outage must never log the user out.
func (s *Store) CheckStatus(ctx context.Context) bool {
	s.mu.Lock()
	needsRefresh := s.authenticated && s.expiryWithinLeadLocked()
	s.mu.Unlock()

	if needsRefresh {
		if !s.RefreshToken(ctx) {
			s.mu.Lock()
			stillAuthed := s.authenticated
			s.mu.Unlock()
			if !stillAuthed {
				// Refresh token was invalid; the session is already cleared.
				return false
			}
			// Soft refresh failure: fall through and let the status call decide.
		}
	}

	s.beginOp()
	result, errStatus := s.backend.Status(ctx)
	if errStatus != nil {
		if errStatus.Kind == backend.KindSessionExpired {
			s.clearSession("session expired, please log in again", errStatus)
			return false
		}
		// Transient failure: report it, keep the session.
		s.failOp(errStatus)
		return false
	}

	if !result.Authenticated {
		s.clearSession("", nil)
		return false
	}

	s.mu.Lock()
	if result.User != nil {
		s.user = result.User
	}
	if s.user == nil {
		// Backend claims authenticated but sent no profile and none is cached.
		// Without a user the session is unusable; treat as logged out.
		s.authenticated = false
		s.tokenExpiry = nil
		s.loading = false
		s.persistLocked()
		s.mu.Unlock()
		return false
	}
	s.authenticated = true
	if result.TokenExpiry != nil {
		s.tokenExpiry = result.TokenExpiry
	}
	s.loading = false
	s.errMsg = ""
	s.errDetails = nil
	s.persistLocked()
	tokenExpired := result.TokenExpired
	s.mu.Unlock()

	if tokenExpired {
		return s.RefreshToken(ctx)
	}
	return true
}

// RefreshToken requests a fresh access token through the backend session.
// An explicit reauth signal is a hard failure that clears the whole session;
// anything else leaves the session intact and only records the error.
func (s *Store) RefreshToken(ctx context.Context) bool {
	s.beginOp()

	result, errRefresh := s.backend.RefreshToken(ctx)
	if errRefresh != nil {
		if errRefresh.Kind == backend.KindRefreshInvalid {
			s.clearSession("your TikTok connection has expired, please reconnect", errRefresh)
			return false
		}
		s.failOp(errRefresh)
		return false
	}
	if !result.Success {
		s.failOp(&backend.Error{
			Kind:    backend.KindServer,
			Message: "token refresh was not accepted by the server",
		})
		return false
	}

	s.mu.Lock()
	if result.User != nil {
		s.user = result.User
		s.authenticated = true
	}
	if result.TokenExpiry != nil {
		s.tokenExpiry = result.TokenExpiry
	}
	s.loading = false
	s.errMsg = ""
	s.errDetails = nil
	s.persistLocked()
	s.mu.Unlock()
	return true
}

// CheckAndRefreshIfNeeded is the guard run before authenticated actions such
// as uploads. With no session or no tracked expiry it passes immediately
// (unknown expiry is treated as valid so incomplete data never blocks an
// action). An expiry inside the lookahead window delegates to RefreshToken.
func (s *Store) CheckAndRefreshIfNeeded(ctx context.Context) bool {
	s.mu.Lock()
	if !s.authenticated || s.tokenExpiry == nil {
		s.mu.Unlock()
		return true
	}
	needsRefresh := s.expiryWithinLeadLocked()
	s.mu.Unlock()

	if !needsRefresh {
		return true
	}
	return s.RefreshToken(ctx)
}

// Logout revokes the backend session and clears local state. The local
// session is cleared even when the server-side revoke fails, so a backend
// outage cannot trap the user in a logged-in client; the return value only
// reports whether the revoke itself succeeded, for diagnostic display.
func (s *Store) Logout(ctx context.Context) bool {
	s.beginOp()
	errRevoke := s.backend.RevokeAccess(ctx)
	if errRevoke != nil {
		log.Warnf("server-side revoke failed: %v", errRevoke)
		s.clearSession("disconnected locally, but the server-side revoke failed", errRevoke)
		return false
	}
	s.clearSession("", nil)
	return true
}

// expiryWithinLeadLocked reports whether the tracked expiry falls inside the
// proactive-refresh window. Callers hold the mutex.
func (s *Store) expiryWithinLeadLocked() bool {
	if s.tokenExpiry == nil {
		return false
	}
	return time.Until(*s.tokenExpiry) <= s.refreshLead
}

// beginOp marks a network operation in flight and resets the error state.
func (s *Store) beginOp() {
	s.mu.Lock()
	s.loading = true
	s.errMsg = ""
	s.errDetails = nil
	s.mu.Unlock()
}

// failOp records a classified failure without touching the session fields.
func (s *Store) failOp(errOp *backend.Error) {
	s.mu.Lock()
	s.loading = false
	s.errMsg = errOp.Message
	s.errDetails = errOp
	s.mu.Unlock()
	log.WithField("kind", string(errOp.Kind)).Warnf("auth operation failed: %s", errOp.Message)
}

// clearSession drops the user, flag, and expiry, persists the cleared
// snapshot, and installs the given error (which may be empty for a clean
// logout). Only explicit session loss may route here; transient failures use
// failOp instead.
func (s *Store) clearSession(msg string, errDetails *backend.Error) {
	s.mu.Lock()
	s.user = nil
	s.authenticated = false
	s.tokenExpiry = nil
	s.loading = false
	s.errMsg = msg
	s.errDetails = errDetails
	s.persistLocked()
	s.mu.Unlock()
}
