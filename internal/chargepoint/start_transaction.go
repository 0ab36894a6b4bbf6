package chargepoint

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"evquota/internal/ocpp/protocol"
)

// StartTransaction re-checks the quota and opens a session. A denied start is answered
// with transaction id 0 and status Invalid.
func (cp *ChargePoint) StartTransaction(ctx context.Context, req protocol.StartTransactionRequest) protocol.StartTransactionResponse {
	tag := strings.TrimSpace(req.IdTag)
	allowed, reason := cp.admit(tag)
	if !allowed {
		cp.metrics.TransactionStarted(false)
		cp.logger.Warn("start transaction denied", zap.String("id_tag", tag), zap.String("reason", reason))
		return protocol.StartTransactionResponse{
			TransactionID: 0,
			IdTagInfo:     protocol.IdTagInfo{Status: protocol.AuthorizationInvalid},
		}
	}

	id := cp.ledger.NextSessionID()
	cp.ledger.StartSession(ctx, id, tag, cp.toKWh(req.MeterStart), cp.id)
	cp.setStatus(ctx, protocol.StatusCharging, req.ConnectorID)
	cp.metrics.TransactionStarted(true)

	return protocol.StartTransactionResponse{
		TransactionID: id,
		IdTagInfo:     protocol.IdTagInfo{Status: protocol.AuthorizationAccepted},
	}
}
