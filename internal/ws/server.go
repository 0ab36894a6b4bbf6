package ws

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"evquota/internal/ocpp/protocol"
)

// Session is the per-connection protocol handler.
type Session interface {
	MessageProcessor
	// Connected runs once the connection is registered and can send. ctx ends with the
	// connection.
	Connected(ctx context.Context)
}

// SessionFactory builds the session for a newly connected station.
type SessionFactory func(stationID string) Session

// Authenticator validates the upgrade request of a station. nil disables authentication.
type Authenticator interface {
	Authenticate(r *http.Request, stationID string) error
}

// ServerConfig configures the upgrade endpoint.
type ServerConfig struct {
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
	Auth         Authenticator
}

// Server upgrades HTTP connections to WebSockets for OCPP.
type Server struct {
	manager    *Manager
	newSession SessionFactory
	cfg        ServerConfig
	logger     *zap.Logger
	upgrader   websocket.Upgrader
}

// NewServer builds ws server.
func NewServer(manager *Manager, newSession SessionFactory, cfg ServerConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		manager:    manager,
		newSession: newSession,
		cfg:        cfg,
		logger:     logger.Named("ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			Subprotocols:    []string{protocol.Subprotocol},
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// StationIDFromRequest takes the last path segment (/ocpp/<id> or /<id>) and falls back
// to the station_id query parameter.
func StationIDFromRequest(r *http.Request) string {
	path := strings.Trim(r.URL.Path, "/")
	if path != "" {
		segments := strings.Split(path, "/")
		if last := segments[len(segments)-1]; last != "" && !(len(segments) == 1 && last == "ocpp") {
			return last
		}
	}
	return strings.TrimSpace(r.URL.Query().Get("station_id"))
}

// HandleWS is HTTP handler for the OCPP endpoint.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	stationID := StationIDFromRequest(r)
	if stationID == "" {
		http.Error(w, "station id is required", http.StatusBadRequest)
		return
	}

	if s.cfg.Auth != nil {
		if err := s.cfg.Auth.Authenticate(r, stationID); err != nil {
			s.logger.Warn("station authentication failed", zap.String("station_id", stationID), zap.Error(err))
			w.Header().Set("WWW-Authenticate", `Basic realm="ocpp"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.String("station_id", stationID), zap.Error(err))
		return
	}
	if conn.Subprotocol() != protocol.Subprotocol {
		s.logger.Warn("station did not negotiate ocpp1.6", zap.String("station_id", stationID),
			zap.Strings("requested", websocket.Subprotocols(r)))
	}

	session := s.newSession(stationID)
	ctx, cancel := context.WithCancel(context.Background())
	connection := NewConnection(stationID, conn, session, s.cfg.WriteTimeout, s.cfg.ReadTimeout, s.logger, func(c *Connection) {
		s.manager.Remove(stationID, c)
		cancel()
	})
	s.manager.Add(connection)
	session.Connected(ctx)

	go connection.Start(ctx)
}
