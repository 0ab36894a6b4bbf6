package chargepoint

import (
	"context"

	"go.uber.org/zap"

	"evquota/internal/ocpp/protocol"
)

// StopTransaction closes the session, books its energy against the charger and frees it.
func (cp *ChargePoint) StopTransaction(ctx context.Context, req protocol.StopTransactionRequest) protocol.StopTransactionResponse {
	sess, ok := cp.ledger.EndSession(ctx, req.TransactionID, cp.toKWh(req.MeterStop))
	if ok {
		cp.registry.AddDeliveredEnergy(ctx, cp.id, sess.DeliveredKWh())
	} else {
		cp.logger.Warn("stop for unknown transaction", zap.Int64("transaction_id", req.TransactionID))
	}

	successful := !protocol.FailedStopReasons[req.Reason]
	cp.metrics.TransactionFinished(successful)
	cp.logger.Info("transaction stopped",
		zap.Int64("transaction_id", req.TransactionID),
		zap.String("reason", req.Reason),
		zap.Bool("successful", successful))

	cp.setStatus(ctx, protocol.StatusAvailable, 0)

	return protocol.StopTransactionResponse{IdTagInfo: &protocol.IdTagInfo{Status: protocol.AuthorizationAccepted}}
}
