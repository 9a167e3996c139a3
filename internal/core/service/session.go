// Package service provides domain services for SigMesh.
//
// SessionManager owns the session registry and every session state
// transition: Active -> Rotated | Closed | Expired. All terminal
// transitions remove the session from both indexes.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yndnr/sigmesh/internal/core/domain"
	"github.com/yndnr/sigmesh/pkg/token"
)

// DefaultExpiryGrace is added to the refresh lifetime before a session is
// expired, so a refresh token is never valid for a session already removed.
const DefaultExpiryGrace = time.Second

// SessionManagerConfig holds dependencies and options for SessionManager.
type SessionManagerConfig struct {
	Credentials *CredentialStore
	Tokens      *TokenIssuer

	// Scheduler runs expiry tasks (default: RealScheduler).
	Scheduler Scheduler

	// Clock overrides time.Now.
	Clock Clock

	// Observer receives lifecycle events (default: no-op).
	Observer Observer

	// Logger receives lifecycle logs (default: slog.Default()).
	Logger *slog.Logger

	// ExpiryGrace is added to the refresh lifetime (default: 1s).
	ExpiryGrace time.Duration

	// StrictInvariants panics on registry inconsistency instead of logging.
	StrictInvariants bool
}

type sessionEntry struct {
	session *domain.Session
	timer   Timer
}

// SessionManager creates, rotates, closes and expires sessions.
//
// Every registry read and write of one operation happens under mu, and
// no I/O is performed while mu is held.
type SessionManager struct {
	creds     *CredentialStore
	tokens    *TokenIssuer
	scheduler Scheduler
	now       Clock
	observer  Observer
	logger    *slog.Logger
	grace     time.Duration
	strict    bool

	mu       sync.Mutex
	sessions map[string]*sessionEntry
	byClient map[string]map[string]struct{}
	stopped  bool
}

// NewSessionManager creates a SessionManager.
func NewSessionManager(config *SessionManagerConfig) *SessionManager {
	m := &SessionManager{
		creds:     config.Credentials,
		tokens:    config.Tokens,
		scheduler: config.Scheduler,
		now:       clockOrDefault(config.Clock),
		observer:  config.Observer,
		logger:    config.Logger,
		grace:     config.ExpiryGrace,
		strict:    config.StrictInvariants,
		sessions:  make(map[string]*sessionEntry),
		byClient:  make(map[string]map[string]struct{}),
	}
	if m.tokens == nil {
		m.tokens = NewTokenIssuer(&TokenIssuerConfig{Clock: config.Clock})
	}
	if m.scheduler == nil {
		m.scheduler = RealScheduler{}
	}
	if m.observer == nil {
		m.observer = NopObserver()
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.grace <= 0 {
		m.grace = DefaultExpiryGrace
	}
	return m
}

// ============================================================================
// Authenticate
// ============================================================================

// AuthenticateRequest contains parameters for session creation.
type AuthenticateRequest struct {
	ClientID string // Required (tid)
	Secret   string // Required pre-shared secret
	ClientIP string // Caller address the session is bound to
}

// Authenticate verifies a client's secret and opens a new session.
func (m *SessionManager) Authenticate(ctx context.Context, req *AuthenticateRequest) (*domain.Session, error) {
	if req.ClientID == "" {
		return nil, domain.ErrMissingArgument.WithDetails("tid is required")
	}
	if req.Secret == "" {
		return nil, domain.ErrMissingArgument.WithDetails("secret is required")
	}

	cred, err := m.creds.Lookup(req.ClientID)
	if err != nil {
		m.observer.AuthFailure(RejectionReason(err))
		return nil, err
	}
	if !m.creds.VerifySecret(req.ClientID, req.Secret) {
		m.observer.AuthFailure(RejectionReason(domain.ErrInvalidCredential))
		return nil, domain.ErrInvalidCredential
	}

	session, err := m.newSession(cred.ID, req.ClientIP)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil, domain.ErrServiceUnavailable
	}
	if n := len(m.byClient[cred.ID]); n >= cred.MaxSessions {
		m.mu.Unlock()
		m.observer.AuthFailure(RejectionReason(domain.ErrCapacityExceeded))
		return nil, domain.ErrCapacityExceeded.WithDetails(
			fmt.Sprintf("client has %d sessions (max %d)", n, cred.MaxSessions),
		)
	}
	if err := m.registerLocked(session); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.checkInvariantsLocked()
	active := len(m.sessions)
	m.mu.Unlock()

	m.observer.SessionTransition(TransitionCreated, active)
	m.logger.InfoContext(ctx, "session created",
		"tid", session.ClientID,
		"sid", token.MaskID(session.ID),
		"client_ip", session.ClientIP)
	return session, nil
}

// ============================================================================
// Authorize
// ============================================================================

// AuthorizeRequest contains parameters for authorizing a call on a session.
type AuthorizeRequest struct {
	SessionID string
	ClientIP  string
	Kind      domain.TokenKind
	Token     string // Presented bearer token
}

// Authorize checks that the session exists, the caller IP matches the
// bound IP, and the presented token is the session's live token of Kind.
func (m *SessionManager) Authorize(ctx context.Context, req *AuthorizeRequest) (*domain.Session, error) {
	session, err := m.Get(req.SessionID)
	if err != nil {
		return nil, err
	}
	if session.ClientIP != req.ClientIP {
		m.observer.TokenRejected(RejectionReason(domain.ErrIPMismatch))
		return nil, domain.ErrIPMismatch
	}
	if req.Token == "" {
		m.observer.TokenRejected(RejectionReason(domain.ErrMissingAuthorization))
		return nil, domain.ErrMissingAuthorization
	}
	if err := m.tokens.Validate(req.Token, session.Salt, session.ID, session.Token(req.Kind)); err != nil {
		m.observer.TokenRejected(RejectionReason(err))
		m.logger.DebugContext(ctx, "token rejected",
			"sid", token.MaskID(session.ID),
			"kind", req.Kind.String(),
			"reason", RejectionReason(err))
		return nil, err
	}
	return session, nil
}

// Get returns the live session for sid.
func (m *SessionManager) Get(sid string) (*domain.Session, error) {
	m.mu.Lock()
	entry, ok := m.sessions[sid]
	m.mu.Unlock()
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return entry.session, nil
}

// ============================================================================
// Rotate / Close / Reset
// ============================================================================

// Rotate replaces sid with a new session for the same client and IP.
//
// The new session is registered before the old one is removed, all inside
// one critical section, so the client's count never drops in between and
// no other operation observes an intermediate state.
func (m *SessionManager) Rotate(ctx context.Context, sid string) (*domain.Session, error) {
	old, err := m.Get(sid)
	if err != nil {
		return nil, err
	}

	next, err := m.newSession(old.ClientID, old.ClientIP)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil, domain.ErrServiceUnavailable
	}
	if _, ok := m.sessions[sid]; !ok {
		// Closed or expired while the replacement was being minted.
		m.mu.Unlock()
		return nil, domain.ErrSessionNotFound
	}
	if err := m.registerLocked(next); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.removeLocked(old.ClientID, sid)
	m.checkInvariantsLocked()
	active := len(m.sessions)
	m.mu.Unlock()

	m.observer.SessionTransition(TransitionRotated, active)
	m.logger.InfoContext(ctx, "session rotated",
		"tid", old.ClientID,
		"sid", token.MaskID(sid),
		"new_sid", token.MaskID(next.ID))
	return next, nil
}

// Close removes sid and cancels its expiry.
func (m *SessionManager) Close(ctx context.Context, sid string) error {
	m.mu.Lock()
	entry, ok := m.sessions[sid]
	if !ok {
		m.mu.Unlock()
		return domain.ErrSessionNotFound
	}
	tid := entry.session.ClientID
	m.removeLocked(tid, sid)
	m.checkInvariantsLocked()
	active := len(m.sessions)
	m.mu.Unlock()

	m.observer.SessionTransition(TransitionClosed, active)
	m.logger.InfoContext(ctx, "session closed",
		"tid", tid,
		"sid", token.MaskID(sid),
		"reason", "client")
	return nil
}

// ResetClientRequest contains parameters for closing all of a client's sessions.
type ResetClientRequest struct {
	ClientID    string // Required (tid)
	ResetCookie string // Required
}

// ResetClient closes every session of a client that proves possession of
// its reset cookie. It returns the number of sessions closed.
func (m *SessionManager) ResetClient(ctx context.Context, req *ResetClientRequest) (int, error) {
	if req.ClientID == "" {
		return 0, domain.ErrMissingArgument.WithDetails("tid is required")
	}
	if req.ResetCookie == "" {
		return 0, domain.ErrMissingArgument.WithDetails("reset_cookie is required")
	}
	if _, err := m.creds.Lookup(req.ClientID); err != nil {
		m.observer.AuthFailure(RejectionReason(err))
		return 0, err
	}
	if !m.creds.VerifyResetCookie(req.ClientID, req.ResetCookie) {
		m.observer.AuthFailure(RejectionReason(domain.ErrInvalidCredential))
		return 0, domain.ErrInvalidCredential
	}

	m.mu.Lock()
	sids := make([]string, 0, len(m.byClient[req.ClientID]))
	for sid := range m.byClient[req.ClientID] {
		sids = append(sids, sid)
	}
	for _, sid := range sids {
		m.removeLocked(req.ClientID, sid)
	}
	m.checkInvariantsLocked()
	active := len(m.sessions)
	m.mu.Unlock()

	for range sids {
		m.observer.SessionTransition(TransitionReset, active)
	}
	m.logger.InfoContext(ctx, "client sessions reset",
		"tid", req.ClientID,
		"closed", len(sids))
	return len(sids), nil
}

// expire is the scheduled terminal transition for a session.
// It is a no-op when the session was already rotated or closed.
func (m *SessionManager) expire(tid, sid string) {
	m.mu.Lock()
	entry, ok := m.sessions[sid]
	if !ok || entry.session.ClientID != tid {
		m.mu.Unlock()
		return
	}
	m.removeLocked(tid, sid)
	m.checkInvariantsLocked()
	active := len(m.sessions)
	m.mu.Unlock()

	m.observer.SessionTransition(TransitionExpired, active)
	m.logger.Info("session expired",
		"tid", tid,
		"sid", token.MaskID(sid))
}

// ============================================================================
// Introspection / Shutdown
// ============================================================================

// Count returns the number of live sessions.
func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// ClientCount returns the number of live sessions of tid.
func (m *SessionManager) ClientCount(tid string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byClient[tid])
}

// ClientSessions returns the live session IDs of tid.
func (m *SessionManager) ClientSessions(tid string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	sids := make([]string, 0, len(m.byClient[tid]))
	for sid := range m.byClient[tid] {
		sids = append(sids, sid)
	}
	return sids
}

// Shutdown cancels all pending expiry tasks and refuses new sessions.
// Live sessions are dropped; nothing is persisted.
func (m *SessionManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, entry := range m.sessions {
		if entry.timer != nil {
			entry.timer.Stop()
		}
	}
	m.sessions = make(map[string]*sessionEntry)
	m.byClient = make(map[string]map[string]struct{})
	m.stopped = true
	return nil
}

// ============================================================================
// Internal helpers
// ============================================================================

// newSession builds a session with fresh identifiers and tokens.
// It touches no shared state.
func (m *SessionManager) newSession(tid, ip string) (*domain.Session, error) {
	sid, err := token.GenerateSessionID()
	if err != nil {
		return nil, domain.ErrInternalServer.WithCause(err)
	}
	salt, err := token.GenerateSalt()
	if err != nil {
		return nil, domain.ErrInternalServer.WithCause(err)
	}

	access, err := m.tokens.Mint(sid, domain.TokenAccess, salt)
	if err != nil {
		return nil, err
	}
	refresh, err := m.tokens.Mint(sid, domain.TokenRefresh, salt)
	if err != nil {
		return nil, err
	}

	return &domain.Session{
		ID:           sid,
		ClientID:     tid,
		ClientIP:     ip,
		Salt:         salt,
		AccessToken:  access,
		RefreshToken: refresh,
		CreatedAt:    m.now(),
	}, nil
}

// registerLocked adds session to both indexes and schedules its expiry.
func (m *SessionManager) registerLocked(session *domain.Session) error {
	if _, exists := m.sessions[session.ID]; exists {
		return domain.ErrInternalServer.WithDetails("session id collision")
	}

	tid, sid := session.ClientID, session.ID
	entry := &sessionEntry{session: session}
	m.sessions[sid] = entry

	set, ok := m.byClient[tid]
	if !ok {
		set = make(map[string]struct{})
		m.byClient[tid] = set
	}
	set[sid] = struct{}{}

	entry.timer = m.scheduler.AfterFunc(m.tokens.Lifetime(domain.TokenRefresh)+m.grace, func() {
		m.expire(tid, sid)
	})
	return nil
}

// removeLocked deletes sid from both indexes and stops its expiry task.
func (m *SessionManager) removeLocked(tid, sid string) {
	if entry, ok := m.sessions[sid]; ok {
		if entry.timer != nil {
			entry.timer.Stop()
		}
		delete(m.sessions, sid)
	}
	if set, ok := m.byClient[tid]; ok {
		delete(set, sid)
		if len(set) == 0 {
			delete(m.byClient, tid)
		}
	}
}

// checkInvariantsLocked verifies both indexes agree and no client is over
// capacity.
func (m *SessionManager) checkInvariantsLocked() {
	var problem string
	indexed := 0

	for tid, set := range m.byClient {
		if cred, err := m.creds.Lookup(tid); err == nil && len(set) > cred.MaxSessions {
			problem = fmt.Sprintf("client %s holds %d sessions (max %d)", tid, len(set), cred.MaxSessions)
			break
		}
		for sid := range set {
			entry, ok := m.sessions[sid]
			if !ok {
				problem = fmt.Sprintf("client index has unknown session for %s", tid)
				break
			}
			if entry.session.ClientID != tid {
				problem = fmt.Sprintf("session indexed under %s belongs to %s", tid, entry.session.ClientID)
				break
			}
			indexed++
		}
		if problem != "" {
			break
		}
	}
	if problem == "" && indexed != len(m.sessions) {
		problem = fmt.Sprintf("session index has %d entries, client index %d", len(m.sessions), indexed)
	}
	if problem == "" {
		return
	}

	if m.strict {
		panic("session registry invariant violated: " + problem)
	}
	m.logger.Error("session registry invariant violated", "problem", problem)
}
