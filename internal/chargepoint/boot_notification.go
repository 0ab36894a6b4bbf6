package chargepoint

import (
	"context"

	"go.uber.org/zap"

	"evquota/internal/ocpp/protocol"
)

// BootNotification registers the charger and always accepts it.
func (cp *ChargePoint) BootNotification(ctx context.Context, req protocol.BootNotificationRequest) protocol.BootNotificationResponse {
	status := cp.registry.RegisterBoot(ctx, cp.id, req.ChargePointVendor, req.ChargePointModel)
	cp.logger.Info("charger booted",
		zap.String("vendor", status.Brand),
		zap.String("model", status.Model),
		zap.String("firmware", req.FirmwareVersion),
		zap.String("energy_unit", status.EnergyUnit))

	return protocol.BootNotificationResponse{
		CurrentTime: cp.now().UTC(),
		Interval:    cp.cfg.HeartbeatInterval,
		Status:      protocol.RegistrationAccepted,
	}
}
