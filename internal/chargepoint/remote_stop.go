package chargepoint

import (
	"go.uber.org/zap"

	"evquota/internal/ocpp"
	"evquota/internal/ocpp/protocol"
)

// requestStop asks the charger to end transaction id. The stop-pending guard set by the
// ledger stays armed unless the charger refuses or the command cannot be delivered; a
// timeout is treated as a provisional success.
func (cp *ChargePoint) requestStop(id int64) {
	log := cp.logger.With(zap.Int64("transaction_id", id))
	if cp.commands == nil {
		log.Error("no command channel, cannot stop over-quota session")
		cp.ledger.ClearStopPending(id)
		return
	}

	req := protocol.RemoteStopTransactionRequest{TransactionID: id}
	_, err := cp.commands.Send(cp.id, protocol.ActionRemoteStopTransaction, req, func(res ocpp.CommandResult) {
		switch res.Status {
		case ocpp.CommandStatusAccepted:
			log.Info("remote stop accepted")
		case ocpp.CommandStatusTimeout:
			log.Warn("remote stop unanswered, assuming it took effect")
		case ocpp.CommandStatusRejected:
			log.Warn("remote stop rejected, re-arming quota check")
			cp.ledger.ClearStopPending(id)
		default:
			log.Warn("remote stop failed, re-arming quota check", zap.Error(res.Err))
			cp.ledger.ClearStopPending(id)
		}
	})
	if err != nil {
		log.Warn("remote stop not sent", zap.Error(err))
		cp.ledger.ClearStopPending(id)
	}
}
