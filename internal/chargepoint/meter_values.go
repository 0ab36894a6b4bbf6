package chargepoint

import (
	"context"

	"go.uber.org/zap"

	"evquota/internal/models"
	"evquota/internal/ocpp/protocol"
	"evquota/internal/telemetry"
)

// MeterValues accounts the cumulative energy reading against open sessions and forwards
// the formatted reading to telemetry.
func (cp *ChargePoint) MeterValues(ctx context.Context, req protocol.MeterValuesRequest) protocol.MeterValuesResponse {
	targets := cp.meterTargets(req.TransactionID)

	userName := ""
	if len(targets) > 0 {
		if sess, ok := cp.ledger.Session(targets[0]); ok {
			userName = sess.FullName
		}
	}

	if raw, ok := cumulativeEnergy(req.MeterValue); ok {
		meterKWh := cp.toKWh(raw)
		for _, id := range targets {
			if cp.ledger.UpdateUsage(ctx, id, meterKWh) {
				cp.metrics.QuotaStop()
				cp.requestStop(id)
			}
		}
	} else {
		cp.logger.Debug("meter values without energy register", zap.Int("connector_id", req.ConnectorID))
	}

	if reading, ok := telemetry.Format(cp.id, req, userName); ok {
		cp.registry.AppendReading(ctx, reading)
		cp.forward(reading)
	}

	return protocol.MeterValuesResponse{}
}

// meterTargets returns the sessions a sample applies to: the referenced transaction when
// it is open, otherwise every open session on this charger.
func (cp *ChargePoint) meterTargets(transactionID *int64) []int64 {
	if transactionID != nil {
		if _, ok := cp.ledger.Session(*transactionID); ok {
			return []int64{*transactionID}
		}
	}
	return cp.ledger.SessionsOnCharger(cp.id)
}

// forward hands the reading to the gateway without holding up the reply.
func (cp *ChargePoint) forward(reading models.Reading) {
	if cp.gateway == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), cp.cfg.TelemetryTimeout)
		defer cancel()

		err := cp.gateway.Forward(ctx, reading)
		cp.metrics.TelemetryForwarded(err == nil)
		if err != nil {
			cp.logger.Warn("telemetry forward failed", zap.String("reading_id", reading.ID), zap.Error(err))
		}
	}()
}
