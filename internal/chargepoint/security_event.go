package chargepoint

import (
	"context"

	"go.uber.org/zap"

	"evquota/internal/ocpp/protocol"
)

// SecurityEventNotification logs the event and acknowledges it.
func (cp *ChargePoint) SecurityEventNotification(_ context.Context, req protocol.SecurityEventNotificationRequest) protocol.SecurityEventNotificationResponse {
	cp.logger.Warn("security event",
		zap.String("type", req.Type),
		zap.String("timestamp", req.Timestamp.String()),
		zap.String("tech_info", req.TechInfo))
	return protocol.SecurityEventNotificationResponse{}
}
