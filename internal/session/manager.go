package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/termgate/termgate/internal/errdefs"
	"github.com/termgate/termgate/internal/executor"
	"github.com/termgate/termgate/internal/families"
	"github.com/termgate/termgate/internal/logging"
	"github.com/termgate/termgate/internal/prompt"
	"github.com/termgate/termgate/internal/transport"
)

// Default session timing, applied when neither the profile nor the manager
// config sets a value.
const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultCommandTimeout = 15 * time.Second
	DefaultIdleTimeout    = 30 * time.Minute
	defaultHistorySize    = 100
)

// ErrNotFound is returned for operations on an unknown session ID.
var ErrNotFound = errors.New("session not found")

// ErrProfileBusy is returned when a profile already has a live session.
// The existing session must be closed or expire before open succeeds again.
var ErrProfileBusy = errors.New("profile already has a live session")

// Config carries Manager construction parameters. Zero values fall back to
// the package defaults.
type Config struct {
	// Families resolves a profile's family name to its pager-disable
	// commands and prompt suffixes. Nil uses the built-in table.
	Families *families.Table

	// Executor runs commands and enforces the deny-list. Nil uses the
	// default rules.
	Executor *executor.Executor

	ConnectTimeout time.Duration
	CommandTimeout time.Duration
	IdleTimeout    time.Duration

	// SettleDuration is the quiet period the post-connect handshake waits
	// for when draining the login banner.
	SettleDuration time.Duration
	// LoginTimeout bounds each step of the telnet scripted login.
	LoginTimeout time.Duration

	// HistorySize caps each session's command result ring.
	HistorySize int

	// Dial opens transport connections. Nil uses transport.Dial; tests
	// substitute a fake.
	Dial func(ctx context.Context, opts transport.Options) (transport.Conn, error)
}

// Manager owns every live Session and enforces the lifecycle rules: one
// session per profile, serialized execution, idle expiry on access, release
// of the transport handle exactly once. All methods are safe for concurrent
// use.
type Manager struct {
	cfg  Config
	exec *executor.Executor

	mu        sync.RWMutex
	sessions  map[string]*Session // session ID → session, Ready and later
	byProfile map[string]string   // profile ID → session ID, reserved at open
	callbacks []TransitionCallback
}

// NewManager returns a Manager with the given configuration.
func NewManager(cfg Config) *Manager {
	if cfg.Families == nil {
		cfg.Families = families.NewTable()
	}
	if cfg.Executor == nil {
		cfg.Executor = executor.New(nil)
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = DefaultCommandTimeout
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = defaultHistorySize
	}
	if cfg.Dial == nil {
		cfg.Dial = transport.Dial
	}
	return &Manager{
		cfg:       cfg,
		exec:      cfg.Executor,
		sessions:  make(map[string]*Session),
		byProfile: make(map[string]string),
	}
}

// OnTransition registers a callback invoked on every session state change.
func (m *Manager) OnTransition(cb TransitionCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, cb)
}

// notify copies the callback list under the lock and invokes it outside.
func (m *Manager) notify(sessionID string, from, to State, reason string) {
	m.mu.RLock()
	cbs := make([]TransitionCallback, len(m.callbacks))
	copy(cbs, m.callbacks)
	m.mu.RUnlock()

	for _, cb := range cbs {
		cb(sessionID, from, to, reason)
	}
}

// Open connects to the device described by profile and returns a Ready
// session. The secret is the decrypted credential for the profile; it is
// used for the connect step only and never retained.
//
// Open refuses to run while the profile already has a session that is not
// Disconnected or Expired. On any failure the transport resource is
// released before Open returns and the profile slot is free again.
func (m *Manager) Open(ctx context.Context, profile Profile, secret string) (*Session, error) {
	if profile.ID == "" {
		return nil, fmt.Errorf("open: profile has no ID")
	}
	if !profile.Transport.Valid() {
		return nil, errdefs.Transport("open", fmt.Errorf("unknown transport kind %q", profile.Transport))
	}

	s := newSession(profile, m.cfg.HistorySize)
	s.notify = m.notify

	// Reserve the profile slot before dialing so a concurrent Open fails
	// fast instead of racing the handshake. The session itself becomes
	// visible only once it is Ready.
	if err := m.reserve(profile.ID, s.ID); err != nil {
		return nil, err
	}

	fam := m.cfg.Families.Lookup(profile.Family)
	s.det = prompt.New(fam.PromptSuffixes)

	s.setState(StateConnecting, "open requested")

	connectTimeout := profile.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = m.cfg.ConnectTimeout
	}
	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	conn, err := m.cfg.Dial(dialCtx, transport.Options{
		Kind:           profile.Transport,
		Host:           profile.Host,
		Port:           profile.Port,
		Username:       profile.Username,
		Password:       secret,
		Device:         profile.Device,
		BaudRate:       profile.BaudRate,
		PromptSuffixes: fam.PromptSuffixes,
		ConnectTimeout: connectTimeout,
		LoginTimeout:   m.cfg.LoginTimeout,
	})
	if err != nil {
		s.setState(StateDisconnected, "connect failed: "+err.Error())
		m.unreserve(profile.ID, s.ID)
		return nil, err
	}
	s.conn = conn
	s.setState(StateAuthenticated, "transport connected and authenticated")

	if err := transport.Handshake(ctx, conn, fam, m.cfg.SettleDuration); err != nil {
		s.releaseConn()
		s.setState(StateDisconnected, "handshake failed: "+err.Error())
		m.unreserve(profile.ID, s.ID)
		return nil, err
	}

	s.setState(StateReady, "pager disabled, banner drained")

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	logging.L().WithFields(logrus.Fields{
		"session_id": s.ID,
		"profile":    profile.Name,
		"transport":  profile.Transport,
		"family":     fam.Name,
	}).Info("session ready")
	return s, nil
}

// reserve claims the single-session slot for a profile. An existing live
// session (anything but Disconnected or Expired) refuses the claim; a dead
// one is evicted and force-closed. The eviction transition happens outside
// the manager lock because state changes fan out through notify.
func (m *Manager) reserve(profileID, sessionID string) error {
	m.mu.Lock()
	var evicted *Session
	if prevID, ok := m.byProfile[profileID]; ok {
		prev, exists := m.sessions[prevID]
		if !exists {
			// Another Open holds the reservation and is still connecting.
			m.mu.Unlock()
			return fmt.Errorf("open profile %s: %w", profileID, ErrProfileBusy)
		}
		switch prev.State() {
		case StateDisconnected, StateExpired:
			delete(m.sessions, prevID)
			evicted = prev
		default:
			m.mu.Unlock()
			return fmt.Errorf("open profile %s: %w", profileID, ErrProfileBusy)
		}
	}
	m.byProfile[profileID] = sessionID
	m.mu.Unlock()

	if evicted != nil {
		evicted.releaseConn()
		evicted.setState(StateDisconnected, "replaced by new open")
	}
	return nil
}

// unreserve releases a profile slot after a failed open, unless another
// open has claimed it since.
func (m *Manager) unreserve(profileID, sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byProfile[profileID] == sessionID {
		delete(m.byProfile, profileID)
	}
}

// Get returns the session with the given ID, or nil. The idle check runs
// opportunistically on every access.
func (m *Manager) Get(id string) *Session {
	m.mu.RLock()
	s := m.sessions[id]
	m.mu.RUnlock()
	if s != nil {
		m.checkIdle(s)
	}
	return s
}

// List returns all tracked sessions, running the idle check on each.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()

	for _, s := range out {
		m.checkIdle(s)
	}
	return out
}

// Execute runs one command on the session. Calls on the same session are
// serialized: a second Execute blocks until the in-flight one finishes.
// A zero timeout falls back to the profile's command timeout, then the
// manager default.
//
// Deny-listed commands fail with a policy error before anything reaches
// the wire. An expired session fails with a transport error without device
// contact. A transport failure ends the session: the handle is released
// and the state drops to Disconnected; reconnecting is the caller's call.
func (m *Manager) Execute(ctx context.Context, id, command string, timeout time.Duration) (executor.Result, error) {
	m.mu.RLock()
	s := m.sessions[id]
	m.mu.RUnlock()
	if s == nil {
		return executor.Result{}, fmt.Errorf("execute %s: %w", id, ErrNotFound)
	}

	// Reject deny-listed commands before touching session state, so a
	// blocked command leaves no Executing blip and no wire traffic.
	if err := m.exec.Check(command); err != nil {
		logging.L().WithFields(logrus.Fields{
			"session_id": s.ID,
			"profile":    s.Profile.Name,
			"command":    logging.Sanitize(command),
		}).Warn("dangerous command blocked")
		return executor.Result{}, err
	}

	s.execMu.Lock()
	defer s.execMu.Unlock()

	m.checkIdle(s)
	if err := s.claim(); err != nil {
		return executor.Result{}, err
	}

	if timeout <= 0 {
		timeout = s.Profile.CommandTimeout
	}
	if timeout <= 0 {
		timeout = m.cfg.CommandTimeout
	}

	res, err := m.exec.Execute(ctx, s.conn, s.det, command, timeout)
	if err != nil {
		// The executor only errors on transport failure here; the session
		// is over. No automatic reconnect, the caller decides.
		s.releaseConn()
		s.setState(StateDisconnected, "transport failure: "+err.Error())
		logging.L().WithFields(logrus.Fields{
			"session_id": s.ID,
			"profile":    s.Profile.Name,
		}).WithError(err).Warn("session ended by transport failure")
		return executor.Result{}, err
	}

	s.appendHistory(res)
	s.setState(StateReady, "command finished")
	return res, nil
}

// History returns the retained command results for a session.
func (m *Manager) History(id string) ([]executor.Result, error) {
	m.mu.RLock()
	s := m.sessions[id]
	m.mu.RUnlock()
	if s == nil {
		return nil, fmt.Errorf("history %s: %w", id, ErrNotFound)
	}
	return s.History(), nil
}

// Close tears a session down: the transport handle is released and the
// session is removed from the manager. Closing an expired session is fine;
// an unknown or already-removed id yields ErrNotFound.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
		if m.byProfile[s.Profile.ID] == id {
			delete(m.byProfile, s.Profile.ID)
		}
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("close %s: %w", id, ErrNotFound)
	}

	m.closeSession(s, "closed by caller")
	return nil
}

// CloseAll tears down every session. Used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.sessions = make(map[string]*Session)
	m.byProfile = make(map[string]string)
	m.mu.Unlock()

	for _, s := range all {
		m.closeSession(s, "shutdown")
	}
}

func (m *Manager) closeSession(s *Session, reason string) {
	s.releaseConn()
	s.setState(StateDisconnected, reason)
	logging.L().WithFields(logrus.Fields{
		"session_id": s.ID,
		"profile":    s.Profile.Name,
	}).Info("session closed")
}

// Sweep expires every Ready session that crossed its idle timeout and
// returns how many it expired. The expiry path is the same one the
// opportunistic per-access check uses, so a sweep never adds concurrent
// access to a session's transport handle.
func (m *Manager) Sweep() int {
	m.mu.RLock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.RUnlock()

	expired := 0
	for _, s := range all {
		if m.checkIdle(s) {
			expired++
		}
	}
	return expired
}

// Count returns the number of tracked sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// checkIdle runs the opportunistic idle check for one session.
func (m *Manager) checkIdle(s *Session) bool {
	idle := s.Profile.IdleTimeout
	if idle <= 0 {
		idle = m.cfg.IdleTimeout
	}
	if !s.expireIfIdle(idle) {
		return false
	}
	logging.L().WithFields(logrus.Fields{
		"session_id": s.ID,
		"profile":    s.Profile.Name,
		"idle":       idle.String(),
	}).Warn("session expired")
	return true
}
