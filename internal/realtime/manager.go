package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/okhamid/interviewly/internal/models"
	"github.com/okhamid/interviewly/internal/utils"
)

// Manager maps connection ids to session orchestrators. It is the only
// shared mutable structure in the pipeline: registration and unregistration
// write under the lock, dispatch is a read-mostly lookup.
type Manager struct {
	deps Deps
	log  *logrus.Logger

	mu        sync.RWMutex
	byConn    map[string]*Orchestrator
	bySession map[string]string // session id -> connection id
}

func NewManager(deps Deps) *Manager {
	log := deps.Logger
	if log == nil {
		log = logrus.New()
	}
	return &Manager{
		deps:      deps,
		log:       log,
		byConn:    make(map[string]*Orchestrator),
		bySession: make(map[string]string),
	}
}

// Register binds a connection to a session and starts its orchestrator.
// A session already bound to a live connection is refused with
// DUPLICATE_SESSION; an unknown or ended session with SESSION_NOT_FOUND.
// sampleRate/channels come from connection-start negotiation; zero means the
// configured default.
func (m *Manager) Register(ctx context.Context, connID, sessionID string, sampleRate, channels int32) (*Orchestrator, error) {
	const op = "Manager.Register"

	sess, err := m.deps.Store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status == models.SessionEnded {
		return nil, utils.E(utils.CodeSessionNotFound, op, "session already ended", nil)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, bound := m.bySession[sessionID]; bound {
		return nil, utils.E(utils.CodeDuplicateSession, op, "session already bound to a live connection", nil)
	}
	if _, exists := m.byConn[connID]; exists {
		return nil, utils.E(utils.CodeConflict, op, "connection already registered", nil)
	}

	o := NewOrchestrator(sess, m.deps, sampleRate, channels)
	o.Start()

	m.byConn[connID] = o
	m.bySession[sessionID] = connID

	m.log.WithFields(logrus.Fields{
		"connection_id": connID,
		"session_id":    sessionID,
	}).Info("connected")

	return o, nil
}

// DispatchAudio routes one inbound binary frame.
func (m *Manager) DispatchAudio(connID string, payload []byte) error {
	o, err := m.lookup(connID)
	if err != nil {
		return err
	}
	o.HandleAudio(payload)
	return nil
}

// DispatchControl routes one inbound text frame. A payload that is not a
// known control shape is reported to the client and logged; the connection
// stays open.
func (m *Manager) DispatchControl(connID string, payload []byte) error {
	const op = "Manager.DispatchControl"

	o, err := m.lookup(connID)
	if err != nil {
		return err
	}

	var msg ControlMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		merr := utils.E(utils.CodeMalformedMessage, op, "control message is not valid json", err)
		m.log.WithError(merr).WithField("connection_id", connID).Warn("malformed message")
		o.EmitError(merr)
		return nil
	}

	switch msg.Type {
	case ControlStop, ControlPause, ControlResume:
	case ControlRegenerate:
		if msg.QuestionID == "" {
			merr := utils.E(utils.CodeMalformedMessage, op, "regenerate_answer requires question_id", nil)
			m.log.WithError(merr).WithField("connection_id", connID).Warn("malformed message")
			o.EmitError(merr)
			return nil
		}
	default:
		merr := utils.E(utils.CodeMalformedMessage, op, "unknown control message type", nil)
		m.log.WithError(merr).WithField("connection_id", connID).Warn("malformed message")
		o.EmitError(merr)
		return nil
	}

	o.HandleControl(msg)
	return nil
}

// Unregister tears the connection's orchestrator down and releases the
// session binding. Idempotent.
func (m *Manager) Unregister(connID string) {
	m.mu.Lock()
	o, ok := m.byConn[connID]
	if ok {
		delete(m.byConn, connID)
		delete(m.bySession, o.SessionID())
	}
	m.mu.Unlock()

	if !ok {
		return
	}

	o.Teardown(reasonDisconnect)
	m.log.WithFields(logrus.Fields{
		"connection_id": connID,
		"session_id":    o.SessionID(),
	}).Info("disconnected")
}

// ActiveSessions reports how many sessions are currently bound.
func (m *Manager) ActiveSessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bySession)
}

func (m *Manager) lookup(connID string) (*Orchestrator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.byConn[connID]
	if !ok {
		return nil, utils.E(utils.CodeNotFound, "Manager", "unknown connection", nil)
	}
	return o, nil
}
