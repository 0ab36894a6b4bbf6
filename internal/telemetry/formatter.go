// Package telemetry turns OCPP meter samples into the reading format consumed by the
// building-energy platform.
package telemetry

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"

	"evquota/internal/models"
	"evquota/internal/ocpp/protocol"
)

const (
	groupID     = "EVSE"
	groupName   = "Electric Vehicle Supply Equipment"
	deviceType  = "EVSE"
	gridHz      = 50.0
	unknownUser = "Unknown"
)

// ReadingID derives a stable 12 hex character id from charger and the sample
// timestamp exactly as the charger sent it.
func ReadingID(chargerID, timestamp string) string {
	sum := md5.Sum([]byte(chargerID + "_" + timestamp))
	return hex.EncodeToString(sum[:])[:12]
}

// Format builds a reading from the first meter value of req. ok is false when the
// request carries no meter values.
func Format(chargerID string, req protocol.MeterValuesRequest, userName string) (models.Reading, bool) {
	if len(req.MeterValue) == 0 {
		return models.Reading{}, false
	}
	mv := req.MeterValue[0]

	ts := mv.Timestamp.String()
	if strings.TrimSpace(userName) == "" {
		userName = unknownUser
	}

	reading := models.Reading{
		ID:          ReadingID(chargerID, ts),
		GroupID:     groupID,
		GroupName:   groupName,
		DeviceType:  deviceType,
		Timestamp:   ts,
		UserName:    userName,
		Frequency:   gridHz,
		ChargerName: chargerID,
	}

	for _, sv := range mv.SampledValue {
		value, err := strconv.ParseFloat(strings.TrimSpace(sv.Value), 64)
		if err != nil {
			continue
		}
		switch sv.Measurand {
		case protocol.MeasurandPowerActiveImport:
			reading.TotalPower = value
			perPhase := value / 3
			reading.Phase1Power = perPhase
			reading.Phase2Power = perPhase
			reading.Phase3Power = perPhase
		case protocol.MeasurandEnergyActiveImportRegister:
			reading.DeliveredEnergy = value
		}
	}
	return reading, true
}
