package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/telewatch/server/internal/logger"
	"github.com/telewatch/server/internal/model"
)

// deactivateTimeout bounds the store write that marks a session
// inactive after its listener dies.
const deactivateTimeout = 5 * time.Second

// ReconnectPolicy controls how a listener recovers from a dropped
// platform connection. MaxAttempts of zero disables reconnection.
type ReconnectPolicy struct {
	MaxAttempts uint64
	BaseDelay   time.Duration
}

// Monitors owns the set of running listeners. At most one listener runs
// per (user, session) pair; Start and Stop are safe to call
// concurrently from any number of request handlers.
type Monitors struct {
	sessions model.SessionStore
	filters  model.FilterStore
	dialer   model.Dialer
	engine   *Filters
	forward  *Forwarder
	policy   ReconnectPolicy
	logger   *logger.Logger

	mu      sync.Mutex
	running map[model.MonitorHandle]*runner
}

func NewMonitors(
	sessions model.SessionStore,
	filters model.FilterStore,
	dialer model.Dialer,
	engine *Filters,
	forward *Forwarder,
	policy ReconnectPolicy,
	logger *logger.Logger,
) *Monitors {
	return &Monitors{
		sessions: sessions,
		filters:  filters,
		dialer:   dialer,
		engine:   engine,
		forward:  forward,
		policy:   policy,
		logger:   logger,
		running:  make(map[model.MonitorHandle]*runner),
	}
}

// runner is the state of one listener goroutine. conn is guarded by
// Monitors.mu so that Stop can close it while the listener is blocked
// receiving.
type runner struct {
	handle model.MonitorHandle
	ctx    context.Context
	cancel context.CancelFunc
	conn   model.Conn
	finish sync.Once
	done   chan struct{}
}

func (r *runner) markDone() {
	r.finish.Do(func() {
		close(r.done)
	})
}

// Start dials the session's stored credential and launches a listener.
// The registry slot is reserved before dialing so that two concurrent
// Start calls for the same session cannot both connect. A session whose
// credential was marked dead is treated as absent.
func (m *Monitors) Start(ctx context.Context, userID int64, sessionName string) error {
	rec, err := m.sessions.Get(ctx, userID, sessionName)
	if err != nil {
		return err
	}
	if !rec.Active {
		return fmt.Errorf("session %s is deactivated: %w", sessionName, model.ErrNotFound)
	}

	handle := model.MonitorHandle{UserID: userID, SessionName: sessionName}
	runCtx, cancel := context.WithCancel(context.Background())
	r := &runner{
		handle: handle,
		ctx:    runCtx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	m.mu.Lock()
	if _, ok := m.running[handle]; ok {
		m.mu.Unlock()
		cancel()
		return fmt.Errorf("monitor for %s is already running: %w", sessionName, model.ErrAlreadyActive)
	}
	m.running[handle] = r
	m.mu.Unlock()

	conn, err := m.dialer.Dial(runCtx, rec.CredentialBlob)
	if err != nil {
		m.removeIfCurrent(r)
		cancel()
		r.markDone()
		// The credential did not produce a connection; mark it dead so
		// the session list reflects it.
		if serr := m.sessions.SetActive(ctx, userID, sessionName, false); serr != nil {
			m.logger.Error("failed to mark session inactive", "session", sessionName, "error", serr)
		}
		return asConnErr(err)
	}

	m.mu.Lock()
	if m.running[handle] != r {
		// Stopped while we were dialing.
		m.mu.Unlock()
		_ = conn.Close()
		cancel()
		r.markDone()
		return fmt.Errorf("monitor stopped during start: %w", context.Canceled)
	}
	r.conn = conn
	m.mu.Unlock()

	go m.listen(r)

	m.logger.Info("monitor started", "user_id", userID, "session", sessionName)
	return nil
}

// Stop halts the session's listener and waits for it to exit,
// reporting whether one was running. The stored credential stays
// active; only connection failures deactivate it.
func (m *Monitors) Stop(_ context.Context, userID int64, sessionName string) bool {
	handle := model.MonitorHandle{UserID: userID, SessionName: sessionName}

	m.mu.Lock()
	r, ok := m.running[handle]
	if !ok {
		m.mu.Unlock()
		return false
	}
	delete(m.running, handle)
	conn := r.conn
	m.mu.Unlock()

	m.halt(r, conn)

	m.logger.Info("monitor stopped", "user_id", userID, "session", sessionName)
	return true
}

// StopAll halts every listener of the user and returns how many were
// running. Concurrent StopAll calls for the same user never count the
// same listener twice.
func (m *Monitors) StopAll(_ context.Context, userID int64) int {
	type victim struct {
		r    *runner
		conn model.Conn
	}

	m.mu.Lock()
	var victims []victim
	for handle, r := range m.running {
		if handle.UserID == userID {
			victims = append(victims, victim{r: r, conn: r.conn})
			delete(m.running, handle)
		}
	}
	m.mu.Unlock()

	for _, v := range victims {
		m.halt(v.r, v.conn)
	}

	if len(victims) > 0 {
		m.logger.Info("monitors stopped", "user_id", userID, "count", len(victims))
	}
	return len(victims)
}

// Active returns the names of the user's running monitors, sorted.
func (m *Monitors) Active(userID int64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var names []string
	for handle := range m.running {
		if handle.UserID == userID {
			names = append(names, handle.SessionName)
		}
	}
	sort.Strings(names)
	return names
}

// Running reports whether the session's monitor is running.
func (m *Monitors) Running(userID int64, sessionName string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.running[model.MonitorHandle{UserID: userID, SessionName: sessionName}]
	return ok
}

// Shutdown halts every listener across all users.
func (m *Monitors) Shutdown() {
	m.mu.Lock()
	var victims []*runner
	conns := make(map[*runner]model.Conn)
	for handle, r := range m.running {
		victims = append(victims, r)
		conns[r] = r.conn
		delete(m.running, handle)
	}
	m.mu.Unlock()

	for _, r := range victims {
		m.halt(r, conns[r])
	}
}

func (m *Monitors) halt(r *runner, conn model.Conn) {
	r.cancel()
	if conn != nil {
		_ = conn.Close()
	}
	<-r.done
}

func (m *Monitors) removeIfCurrent(r *runner) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running[r.handle] == r {
		delete(m.running, r.handle)
		return true
	}
	return false
}

func (m *Monitors) connOf(r *runner) model.Conn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return r.conn
}

// listen consumes the connection's inbound stream until the monitor is
// stopped or the connection dies beyond recovery.
func (m *Monitors) listen(r *runner) {
	defer r.markDone()
	defer func() {
		if p := recover(); p != nil {
			m.logger.Error("listener panicked",
				"user_id", r.handle.UserID, "session", r.handle.SessionName, "panic", p)
			m.deactivate(r)
		}
	}()

	for {
		conn := m.connOf(r)
		select {
		case <-r.ctx.Done():
			return
		case msg, ok := <-conn.Events():
			if !ok {
				if r.ctx.Err() != nil {
					return
				}
				if err := m.reconnect(r); err != nil {
					if r.ctx.Err() != nil {
						return
					}
					m.logger.Error("listener giving up",
						"user_id", r.handle.UserID, "session", r.handle.SessionName, "error", err)
					m.deactivate(r)
					return
				}
				continue
			}
			m.handleMessage(r, msg)
		}
	}
}

// handleMessage evaluates one inbound message against the session's
// current rules. Rules are reloaded per message so that filter updates
// take effect without restarting the monitor.
func (m *Monitors) handleMessage(r *runner, msg model.InboundMessage) {
	if !msg.Private {
		return
	}

	rules, err := m.filters.ListBySession(r.ctx, r.handle.UserID, r.handle.SessionName)
	if err != nil {
		m.logger.Error("failed to load filter rules, skipping message",
			"session", r.handle.SessionName, "error", err)
		return
	}

	if !m.engine.Evaluate(rules, msg) {
		return
	}
	m.forward.Deliver(r.ctx, r.handle, msg)
}

// reconnect redials the session with fibonacci backoff and swaps the
// connection in place.
func (m *Monitors) reconnect(r *runner) error {
	if m.policy.MaxAttempts == 0 {
		return errors.New("reconnect disabled")
	}

	m.logger.Info("connection lost, reconnecting",
		"user_id", r.handle.UserID, "session", r.handle.SessionName)

	b := retry.NewFibonacci(m.policy.BaseDelay)
	return retry.Do(r.ctx, retry.WithMaxRetries(m.policy.MaxAttempts, b), func(ctx context.Context) error {
		rec, err := m.sessions.Get(ctx, r.handle.UserID, r.handle.SessionName)
		if err != nil {
			// A deleted session is not coming back.
			if errors.Is(err, model.ErrNotFound) {
				return err
			}
			return retry.RetryableError(err)
		}

		conn, err := m.dialer.Dial(ctx, rec.CredentialBlob)
		if err != nil {
			return retry.RetryableError(err)
		}

		m.mu.Lock()
		if m.running[r.handle] != r {
			m.mu.Unlock()
			_ = conn.Close()
			return fmt.Errorf("monitor stopped during reconnect: %w", context.Canceled)
		}
		r.conn = conn
		m.mu.Unlock()
		return nil
	})
}

// deactivate removes the runner's own registry entry after an
// unrecoverable failure and marks the session inactive. When a Stop
// won the race for the entry, the flag is left to the stopper.
func (m *Monitors) deactivate(r *runner) {
	if !m.removeIfCurrent(r) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), deactivateTimeout)
	defer cancel()
	if err := m.sessions.SetActive(ctx, r.handle.UserID, r.handle.SessionName, false); err != nil {
		m.logger.Error("failed to mark session inactive",
			"session", r.handle.SessionName, "error", err)
	}
}
