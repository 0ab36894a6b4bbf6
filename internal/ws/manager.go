package ws

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"evquota/internal/metrics"
	"evquota/internal/ocpp"
	"evquota/internal/ocpp/protocol"
	"evquota/internal/registry"
)

// ManagerConfig wires the manager to the shared services it updates on connect and disconnect.
type ManagerConfig struct {
	PingInterval time.Duration
	Registry     *registry.Registry
	Commands     *ocpp.CommandManager
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
}

// Manager tracks station connections.
type Manager struct {
	mu           sync.RWMutex
	connections  map[string]*Connection
	pingInterval time.Duration
	registry     *registry.Registry
	commands     *ocpp.CommandManager
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

// NewManager builds connection manager.
func NewManager(cfg ManagerConfig) *Manager {
	pingInterval := cfg.PingInterval
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		connections:  make(map[string]*Connection),
		pingInterval: pingInterval,
		registry:     cfg.Registry,
		commands:     cfg.Commands,
		metrics:      cfg.Metrics,
		logger:       logger.Named("ws"),
	}
}

// Add registers conn as the live connection of its station, closing any connection it
// replaces.
func (m *Manager) Add(conn *Connection) {
	id := conn.StationID()

	m.mu.Lock()
	previous := m.connections[id]
	m.connections[id] = conn
	m.mu.Unlock()

	if m.commands != nil {
		m.commands.AttachConnection(id, conn)
	}
	m.metrics.Connected()
	m.logger.Info("station connected", zap.String("station_id", id))

	if previous != nil && previous != conn {
		m.logger.Warn("station reconnected, closing previous connection", zap.String("station_id", id))
		m.metrics.Disconnected()
		previous.Close()
	}
}

// Remove unregisters conn if it is still the live connection of stationID. It reports
// whether anything was removed.
func (m *Manager) Remove(stationID string, conn *Connection) bool {
	m.mu.Lock()
	current, ok := m.connections[stationID]
	if !ok || current != conn {
		m.mu.Unlock()
		return false
	}
	delete(m.connections, stationID)
	m.mu.Unlock()

	m.metrics.Disconnected()
	if m.commands != nil {
		m.commands.DetachConnection(stationID, conn)
	}
	if m.registry != nil {
		event := m.registry.UpdateStatus(context.Background(), stationID, protocol.StatusOffline, 0)
		if event.Changed() {
			m.metrics.StateTransition(event.Previous, event.Current)
		}
	}
	m.logger.Info("station disconnected", zap.String("station_id", stationID))
	return true
}

// Get returns the live connection of stationID.
func (m *Manager) Get(stationID string) (*Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, ok := m.connections[stationID]
	return conn, ok
}

// Count returns the number of live connections.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// Start begins ping loop to keep connections active.
func (m *Manager) Start(ctx context.Context) {
	ticker := time.NewTicker(m.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.RLock()
			conns := make([]*Connection, 0, len(m.connections))
			for _, conn := range m.connections {
				conns = append(conns, conn)
			}
			m.mu.RUnlock()

			for _, conn := range conns {
				if err := conn.Ping(); err != nil {
					m.logger.Warn("ping failed", zap.String("station_id", conn.StationID()), zap.Error(err))
				}
			}
		}
	}
}

// CloseAll ends every live connection.
func (m *Manager) CloseAll() {
	m.mu.RLock()
	conns := make([]*Connection, 0, len(m.connections))
	for _, conn := range m.connections {
		conns = append(conns, conn)
	}
	m.mu.RUnlock()

	for _, conn := range conns {
		conn.Close()
	}
}
