package ocpp

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"evquota/internal/metrics"
	"evquota/internal/ocpp/protocol"
)

// Handler answers every charger-initiated action. Methods must always return a reply;
// the router substitutes a default one if a method panics or the payload cannot be decoded.
type Handler interface {
	BootNotification(ctx context.Context, req protocol.BootNotificationRequest) protocol.BootNotificationResponse
	Heartbeat(ctx context.Context, req protocol.HeartbeatRequest) protocol.HeartbeatResponse
	Authorize(ctx context.Context, req protocol.AuthorizeRequest) protocol.AuthorizeResponse
	StartTransaction(ctx context.Context, req protocol.StartTransactionRequest) protocol.StartTransactionResponse
	StopTransaction(ctx context.Context, req protocol.StopTransactionRequest) protocol.StopTransactionResponse
	MeterValues(ctx context.Context, req protocol.MeterValuesRequest) protocol.MeterValuesResponse
	StatusNotification(ctx context.Context, req protocol.StatusNotificationRequest) protocol.StatusNotificationResponse
	SecurityEventNotification(ctx context.Context, req protocol.SecurityEventNotificationRequest) protocol.SecurityEventNotificationResponse
}

// Defaults produces the reply sent when a handler cannot produce one.
type Defaults struct {
	HeartbeatInterval int
	Now               func() time.Time
}

func (d Defaults) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func (d Defaults) boot() protocol.BootNotificationResponse {
	return protocol.BootNotificationResponse{CurrentTime: d.now(), Interval: d.HeartbeatInterval, Status: protocol.RegistrationAccepted}
}

func (d Defaults) heartbeat() protocol.HeartbeatResponse {
	return protocol.HeartbeatResponse{CurrentTime: d.now()}
}

func invalidTag() protocol.IdTagInfo {
	return protocol.IdTagInfo{Status: protocol.AuthorizationInvalid}
}

// Router decodes payloads and dispatches them onto a Handler.
type Router struct {
	defaults Defaults
	logger   *zap.Logger
}

// NewRouter returns router.
func NewRouter(defaults Defaults, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{defaults: defaults, logger: logger}
}

// Route executes the handler method for action and returns its reply.
func (r *Router) Route(ctx context.Context, h Handler, stationID string, action protocol.Action, payload json.RawMessage) (interface{}, error) {
	log := r.logger.With(zap.String("station_id", stationID), zap.String("action", string(action)))
	d := r.defaults

	switch action {
	case protocol.ActionBootNotification:
		return invoke(ctx, log, payload, h.BootNotification, d.boot), nil
	case protocol.ActionHeartbeat:
		return invoke(ctx, log, payload, h.Heartbeat, d.heartbeat), nil
	case protocol.ActionAuthorize:
		return invoke(ctx, log, payload, h.Authorize, func() protocol.AuthorizeResponse {
			return protocol.AuthorizeResponse{IdTagInfo: invalidTag()}
		}), nil
	case protocol.ActionStartTransaction:
		return invoke(ctx, log, payload, h.StartTransaction, func() protocol.StartTransactionResponse {
			return protocol.StartTransactionResponse{TransactionID: 0, IdTagInfo: invalidTag()}
		}), nil
	case protocol.ActionStopTransaction:
		return invoke(ctx, log, payload, h.StopTransaction, func() protocol.StopTransactionResponse {
			return protocol.StopTransactionResponse{IdTagInfo: &protocol.IdTagInfo{Status: protocol.AuthorizationAccepted}}
		}), nil
	case protocol.ActionMeterValues:
		return invoke(ctx, log, payload, h.MeterValues, func() protocol.MeterValuesResponse {
			return protocol.MeterValuesResponse{}
		}), nil
	case protocol.ActionStatusNotification:
		return invoke(ctx, log, payload, h.StatusNotification, func() protocol.StatusNotificationResponse {
			return protocol.StatusNotificationResponse{}
		}), nil
	case protocol.ActionSecurityEventNotification:
		return invoke(ctx, log, payload, h.SecurityEventNotification, func() protocol.SecurityEventNotificationResponse {
			return protocol.SecurityEventNotificationResponse{}
		}), nil
	default:
		return nil, fmt.Errorf("ocpp: unsupported action %s", action)
	}
}

func invoke[Req, Resp any](ctx context.Context, log *zap.Logger, payload json.RawMessage, fn func(context.Context, Req) Resp, fallback func() Resp) (resp Resp) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("ocpp handler panicked, sending default reply",
				zap.Any("panic", rec), zap.ByteString("stack", debug.Stack()))
			resp = fallback()
		}
	}()

	req, err := Decode[Req](payload)
	if err != nil {
		log.Warn("decode ocpp payload failed, sending default reply", zap.Error(err))
		return fallback()
	}
	return fn(ctx, req)
}

// Processor ties together parsing, routing, command correlation and response encoding
// for one charger connection.
type Processor struct {
	parser   *Parser
	router   *Router
	handler  Handler
	commands *CommandManager
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewProcessor builds Processor. commands and m may be nil.
func NewProcessor(parser *Parser, router *Router, handler Handler, commands *CommandManager, m *metrics.Metrics, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		parser:   parser,
		router:   router,
		handler:  handler,
		commands: commands,
		metrics:  m,
		logger:   logger,
	}
}

// Process handles raw message and returns response frame bytes, or nil when the frame
// needs no reply.
func (p *Processor) Process(ctx context.Context, stationID string, raw []byte) ([]byte, error) {
	msg, err := p.parser.Parse(raw)
	if err != nil {
		return nil, err
	}

	switch msg.MessageType {
	case protocol.MessageTypeCallResult:
		if p.commands != nil {
			p.commands.HandleCallResult(stationID, msg.UniqueID, msg.Payload)
		}
		return nil, nil
	case protocol.MessageTypeCallError:
		if p.commands != nil {
			p.commands.HandleCallError(stationID, msg.UniqueID, msg.ErrorCode, msg.ErrorDescription, msg.ErrorDetails)
		}
		return nil, nil
	}

	p.metrics.MessageReceived(msg.Action)

	action, ok := protocol.ParseAction(msg.Action)
	if !ok {
		p.logger.Warn("unsupported ocpp action", zap.String("station_id", stationID), zap.String("action", msg.Action))
		return BuildCallError(msg.UniqueID, protocol.ErrorNotImplemented, fmt.Sprintf("action %s is not implemented", msg.Action))
	}

	responsePayload, err := p.router.Route(ctx, p.handler, stationID, action, msg.Payload)
	if err != nil {
		p.logger.Warn("ocpp handler failed", zap.String("action", msg.Action), zap.Error(err))
		return BuildCallError(msg.UniqueID, protocol.ErrorInternalError, err.Error())
	}

	respBytes, err := BuildCallResult(msg.UniqueID, responsePayload)
	if err != nil {
		p.logger.Error("encode ocpp response failed", zap.Error(err))
		return nil, err
	}
	return respBytes, nil
}

// Decode convenience helper for handlers. An empty payload decodes to the zero value.
func Decode[T any](payload json.RawMessage) (T, error) {
	var target T
	if len(payload) == 0 || string(payload) == "null" {
		return target, nil
	}
	if err := json.Unmarshal(payload, &target); err != nil {
		var zero T
		return zero, err
	}
	return target, nil
}
