package chargepoint

import (
	"context"

	"go.uber.org/zap"

	"evquota/internal/ocpp/protocol"
)

// StatusNotification updates the charger state.
func (cp *ChargePoint) StatusNotification(ctx context.Context, req protocol.StatusNotificationRequest) protocol.StatusNotificationResponse {
	if req.Status == "" {
		req.Status = protocol.StatusAvailable
	}
	if req.ErrorCode != "" && req.ErrorCode != "NoError" {
		cp.logger.Warn("charger reported error",
			zap.Int("connector_id", req.ConnectorID),
			zap.String("error_code", req.ErrorCode),
			zap.String("info", req.Info),
			zap.String("vendor_error_code", req.VendorErrorCode))
	}
	cp.setStatus(ctx, req.Status, req.ConnectorID)
	return protocol.StatusNotificationResponse{}
}
