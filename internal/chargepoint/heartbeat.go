package chargepoint

import (
	"context"

	"evquota/internal/ocpp/protocol"
)

// Heartbeat refreshes liveness and returns server time.
func (cp *ChargePoint) Heartbeat(ctx context.Context, _ protocol.HeartbeatRequest) protocol.HeartbeatResponse {
	cp.registry.Heartbeat(ctx, cp.id)
	return protocol.HeartbeatResponse{CurrentTime: cp.now().UTC()}
}
