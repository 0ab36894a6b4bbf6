package chargepoint

import (
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"evquota/internal/ocpp"
	"evquota/internal/ocpp/protocol"
)

// RequestConfiguration pulls the charger's full configuration. The outcome is only logged.
func (cp *ChargePoint) RequestConfiguration() {
	if cp.commands == nil {
		return
	}
	_, err := cp.commands.Send(cp.id, protocol.ActionGetConfiguration, protocol.GetConfigurationRequest{}, cp.logConfiguration)
	if err != nil {
		cp.logger.Warn("get configuration not sent", zap.Error(err))
	}
}

func (cp *ChargePoint) logConfiguration(res ocpp.CommandResult) {
	if res.Status != ocpp.CommandStatusAccepted {
		cp.logger.Warn("get configuration failed", zap.String("status", string(res.Status)), zap.Error(res.Err))
		return
	}

	keys := gjson.GetBytes(res.Payload, "configurationKey")
	keys.ForEach(func(_, kv gjson.Result) bool {
		cp.logger.Info("charger configuration",
			zap.String("key", kv.Get("key").String()),
			zap.String("value", kv.Get("value").String()),
			zap.Bool("readonly", kv.Get("readonly").Bool()))
		return true
	})
	for _, unknown := range gjson.GetBytes(res.Payload, "unknownKey").Array() {
		cp.logger.Info("charger configuration unknown key", zap.String("key", unknown.String()))
	}
	cp.logger.Info("charger configuration received", zap.Int("keys", len(keys.Array())))
}
