package mcp

import (
	"log/slog"
	"time"
)

// session is one HTTP transport session record, created from a successful
// initialize reply and destroyed by DELETE, inactivity expiry, or shutdown.
type session struct {
	id              SessionID
	protocolVersion string
	createdAt       time.Time
	lastActivity    time.Time
	initialized     bool
}

func (s *session) expired(timeout time.Duration, now time.Time) bool {
	return now.Sub(s.lastActivity) > timeout
}

// createSession stores a new session record. When the table is full, expired
// entries are reaped first; if it is still full the record is dropped and the
// client's follow-up requests will fail the session gate.
func (t *StreamableHTTP) createSession(id SessionID, protocolVersion string) {
	now := time.Now()

	t.sessionMu.Lock()
	var reaped []SessionID
	if len(t.sessions) >= t.maxSessions {
		reaped = t.reapExpiredLocked(now)
	}
	full := len(t.sessions) >= t.maxSessions
	if !full {
		t.sessions[id] = &session{
			id:              id,
			protocolVersion: protocolVersion,
			createdAt:       now,
			lastActivity:    now,
		}
	}
	t.sessionMu.Unlock()

	for _, rid := range reaped {
		t.dropSessionConns(rid)
	}
	if full {
		t.logger.Warn("session table full, dropping new session",
			slog.String("sessionID", string(id)))
	}
}

// touchSession validates id and refreshes its activity timestamp. Expired
// sessions are reaped on the spot, along with their SSE connections.
func (t *StreamableHTTP) touchSession(id SessionID) bool {
	now := time.Now()

	t.sessionMu.Lock()
	sess, ok := t.sessions[id]
	if !ok {
		t.sessionMu.Unlock()
		return false
	}
	if sess.expired(t.sessionTimeout, now) {
		delete(t.sessions, id)
		t.sessionMu.Unlock()
		t.dropSessionConns(id)
		t.logger.Info("session expired", slog.String("sessionID", string(id)))
		return false
	}
	sess.lastActivity = now
	t.sessionMu.Unlock()
	return true
}

func (t *StreamableHTTP) markSessionInitialized(id SessionID) {
	t.sessionMu.Lock()
	defer t.sessionMu.Unlock()

	if sess, ok := t.sessions[id]; ok {
		sess.initialized = true
	}
}

// terminateSession removes the session and every SSE connection bound to it.
// It reports whether the session existed.
func (t *StreamableHTTP) terminateSession(id SessionID) bool {
	t.sessionMu.Lock()
	_, ok := t.sessions[id]
	if ok {
		delete(t.sessions, id)
	}
	t.sessionMu.Unlock()

	if ok {
		t.dropSessionConns(id)
	}
	return ok
}

// reapExpiredLocked removes every expired session. Callers hold sessionMu;
// the expired sessions' SSE connections are pruned afterwards by id.
func (t *StreamableHTTP) reapExpiredLocked(now time.Time) []SessionID {
	var reaped []SessionID
	for id, sess := range t.sessions {
		if sess.expired(t.sessionTimeout, now) {
			delete(t.sessions, id)
			reaped = append(reaped, id)
		}
	}
	return reaped
}

func (t *StreamableHTTP) sessionCount() int {
	t.sessionMu.Lock()
	defer t.sessionMu.Unlock()

	return len(t.sessions)
}
