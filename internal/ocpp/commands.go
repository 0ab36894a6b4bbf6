package ocpp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"evquota/internal/metrics"
	"evquota/internal/ocpp/protocol"
)

type CommandStatus string

var idGenerator = uuid.NewString

const (
	CommandStatusPending  CommandStatus = "pending"
	CommandStatusAccepted CommandStatus = "accepted"
	CommandStatusRejected CommandStatus = "rejected"
	CommandStatusFailed   CommandStatus = "failed"
	CommandStatusTimeout  CommandStatus = "timeout"
)

var (
	ErrNotConnected   = errors.New("ocpp: charger not connected")
	ErrConnectionLost = errors.New("ocpp: connection lost")
	ErrCommandTimeout = errors.New("ocpp: timeout waiting for response")
)

// CommandResult describes how an outbound call ended.
type CommandResult struct {
	MessageID  string
	StationID  string
	Action     protocol.Action
	Status     CommandStatus
	Payload    json.RawMessage
	Err        error
	SentAt     time.Time
	OccurredAt time.Time
}

type CommandCallback func(CommandResult)

// FrameSender queues a raw frame on a charger connection.
type FrameSender interface {
	SendFrame(frame []byte) error
}

type CommandManagerConfig struct {
	Timeout time.Duration
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

type pendingCommand struct {
	messageID string
	action    protocol.Action
	sentAt    time.Time
	timer     *time.Timer
	callback  CommandCallback
}

type stationSession struct {
	mu      sync.Mutex
	conn    FrameSender
	pending map[string]*pendingCommand
}

// CommandManager sends central-system calls and correlates their replies.
// Each callback runs exactly once, on its own goroutine.
type CommandManager struct {
	mu       sync.Mutex
	sessions map[string]*stationSession
	timeout  time.Duration
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

func NewCommandManager(cfg CommandManagerConfig) *CommandManager {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommandManager{
		sessions: make(map[string]*stationSession),
		timeout:  timeout,
		logger:   logger.Named("commands"),
		metrics:  cfg.Metrics,
	}
}

func (m *CommandManager) getOrCreateSessionLocked(stationID string) *stationSession {
	sess, ok := m.sessions[stationID]
	if !ok {
		sess = &stationSession{pending: make(map[string]*pendingCommand)}
		m.sessions[stationID] = sess
	}
	return sess
}

func (m *CommandManager) getSession(stationID string) *stationSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[stationID]
}

// AttachConnection makes conn the route for stationID's commands.
func (m *CommandManager) AttachConnection(stationID string, conn FrameSender) {
	m.mu.Lock()
	sess := m.getOrCreateSessionLocked(stationID)
	m.mu.Unlock()

	sess.mu.Lock()
	sess.conn = conn
	sess.mu.Unlock()
}

// DetachConnection fails every pending command sent over conn. It is a no-op when a newer
// connection has already replaced conn.
func (m *CommandManager) DetachConnection(stationID string, conn FrameSender) {
	sess := m.getSession(stationID)
	if sess == nil {
		return
	}

	sess.mu.Lock()
	if sess.conn != conn {
		sess.mu.Unlock()
		return
	}
	sess.conn = nil
	pending := sess.pending
	sess.pending = make(map[string]*pendingCommand)
	sess.mu.Unlock()

	for _, cmd := range pending {
		cmd.timer.Stop()
		m.complete(stationID, cmd, CommandStatusFailed, nil, ErrConnectionLost)
	}
}

// Send issues action to stationID without waiting for the reply. cb is only invoked when
// Send returns nil.
func (m *CommandManager) Send(stationID string, action protocol.Action, payload interface{}, cb CommandCallback) (string, error) {
	stationID = strings.TrimSpace(stationID)
	if stationID == "" {
		return "", errors.New("ocpp: station id is required")
	}

	sess := m.getSession(stationID)
	if sess == nil {
		return "", ErrNotConnected
	}

	messageID := idGenerator()
	frame, err := BuildCall(messageID, action, payload)
	if err != nil {
		return "", fmt.Errorf("ocpp: encode %s: %w", action, err)
	}

	cmd := &pendingCommand{messageID: messageID, action: action, sentAt: time.Now().UTC(), callback: cb}

	sess.mu.Lock()
	conn := sess.conn
	if conn == nil {
		sess.mu.Unlock()
		return "", ErrNotConnected
	}
	sess.pending[messageID] = cmd
	cmd.timer = time.AfterFunc(m.timeout, func() {
		m.handleTimeout(stationID, messageID)
	})
	sess.mu.Unlock()

	if err := conn.SendFrame(frame); err != nil {
		if taken := sess.takePending(messageID); taken != nil {
			taken.timer.Stop()
		}
		m.metrics.CommandResult(string(action), "send_failed")
		return "", fmt.Errorf("ocpp: send %s: %w", action, err)
	}

	m.metrics.CommandSent(string(action))
	m.logger.Info("command sent", zap.String("station_id", stationID), zap.String("action", string(action)), zap.String("message_id", messageID))
	return messageID, nil
}

// HandleCallResult completes the command answered by a CALLRESULT. A "status" field of
// Rejected maps to rejected, any other non-empty status other than Accepted to failed.
func (m *CommandManager) HandleCallResult(stationID, messageID string, payload json.RawMessage) {
	cmd := m.take(stationID, messageID)
	if cmd == nil {
		m.logger.Debug("call result without pending command", zap.String("station_id", stationID), zap.String("message_id", messageID))
		return
	}

	status := strings.TrimSpace(gjson.GetBytes(payload, "status").String())
	switch strings.ToLower(status) {
	case "accepted", "":
		m.complete(stationID, cmd, CommandStatusAccepted, payload, nil)
	case "rejected":
		m.complete(stationID, cmd, CommandStatusRejected, payload, nil)
	default:
		m.complete(stationID, cmd, CommandStatusFailed, payload, fmt.Errorf("unexpected status: %s", status))
	}
}

// HandleCallError completes the command answered by a CALLERROR.
func (m *CommandManager) HandleCallError(stationID, messageID, errorCode, description string, details json.RawMessage) {
	cmd := m.take(stationID, messageID)
	if cmd == nil {
		m.logger.Debug("call error without pending command", zap.String("station_id", stationID), zap.String("message_id", messageID))
		return
	}
	m.complete(stationID, cmd, CommandStatusFailed, details, fmt.Errorf("%s: %s", errorCode, description))
}

func (m *CommandManager) handleTimeout(stationID, messageID string) {
	sess := m.getSession(stationID)
	if sess == nil {
		return
	}
	cmd := sess.takePending(messageID)
	if cmd == nil {
		return
	}
	m.complete(stationID, cmd, CommandStatusTimeout, nil, ErrCommandTimeout)
}

// Pending returns the number of unanswered commands for stationID.
func (m *CommandManager) Pending(stationID string) int {
	sess := m.getSession(stationID)
	if sess == nil {
		return 0
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return len(sess.pending)
}

func (m *CommandManager) take(stationID, messageID string) *pendingCommand {
	sess := m.getSession(stationID)
	if sess == nil {
		return nil
	}
	cmd := sess.takePending(messageID)
	if cmd != nil {
		cmd.timer.Stop()
	}
	return cmd
}

func (m *CommandManager) complete(stationID string, cmd *pendingCommand, status CommandStatus, payload json.RawMessage, err error) {
	m.metrics.CommandResult(string(cmd.action), string(status))

	fields := []zap.Field{
		zap.String("station_id", stationID),
		zap.String("action", string(cmd.action)),
		zap.String("message_id", cmd.messageID),
		zap.String("status", string(status)),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	m.logger.Info("command completed", fields...)

	if cmd.callback == nil {
		return
	}
	result := CommandResult{
		MessageID:  cmd.messageID,
		StationID:  stationID,
		Action:     cmd.action,
		Status:     status,
		Payload:    payload,
		Err:        err,
		SentAt:     cmd.sentAt,
		OccurredAt: time.Now().UTC(),
	}
	go cmd.callback(result)
}

func (s *stationSession) takePending(messageID string) *pendingCommand {
	s.mu.Lock()
	defer s.mu.Unlock()
	cmd, ok := s.pending[messageID]
	if ok {
		delete(s.pending, messageID)
	}
	return cmd
}
