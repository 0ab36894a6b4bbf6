package telemetry

import (
	"crypto/md5"
	"encoding/hex"
	"testing"

	"evquota/internal/ocpp/protocol"
)

func TestFormatSplitsPowerAcrossPhases(t *testing.T) {
	req := protocol.MeterValuesRequest{
		ConnectorID: 1,
		MeterValue: []protocol.MeterValue{{
			Timestamp: "2024-05-01T12:00:00Z",
			SampledValue: []protocol.SampledValue{
				{Value: "7200", Measurand: protocol.MeasurandPowerActiveImport, Unit: "W"},
				{Value: "45000", Measurand: protocol.MeasurandEnergyActiveImportRegister, Unit: "Wh"},
				{Value: "n/a", Measurand: "Voltage"},
			},
		}},
	}

	reading, ok := Format("CP-1", req, "Ada Lovelace")
	if !ok {
		t.Fatalf("expected a reading")
	}
	if reading.TotalPower != 7200 || reading.Phase1Power != 2400 || reading.Phase3Power != 2400 {
		t.Fatalf("unexpected power split %+v", reading)
	}
	if reading.DeliveredEnergy != 45000 {
		t.Fatalf("delivered energy must be the raw register value, got %v", reading.DeliveredEnergy)
	}
	if reading.Frequency != 50 || reading.GroupID != "EVSE" || reading.ChargerName != "CP-1" || reading.UserName != "Ada Lovelace" {
		t.Fatalf("unexpected static fields %+v", reading)
	}
	if reading.Timestamp != "2024-05-01T12:00:00Z" {
		t.Fatalf("unexpected timestamp %q", reading.Timestamp)
	}
	if len(reading.ID) != 12 || reading.ID != ReadingID("CP-1", reading.Timestamp) {
		t.Fatalf("unexpected id %q", reading.ID)
	}
}

func TestFormatWithoutValues(t *testing.T) {
	if _, ok := Format("CP-1", protocol.MeterValuesRequest{}, ""); ok {
		t.Fatalf("expected no reading for empty request")
	}

	reading, ok := Format("CP-1", protocol.MeterValuesRequest{MeterValue: []protocol.MeterValue{{}}}, " ")
	if !ok || reading.UserName != "Unknown" {
		t.Fatalf("expected Unknown user, got %+v", reading)
	}
}

func TestFormatKeepsRawTimestamp(t *testing.T) {
	raw := "2024-05-01T12:00:00.250+03:00"
	sample := func(ts string) protocol.MeterValuesRequest {
		return protocol.MeterValuesRequest{MeterValue: []protocol.MeterValue{{Timestamp: protocol.Timestamp(ts)}}}
	}

	reading, ok := Format("CP-1", sample(raw), "")
	if !ok {
		t.Fatalf("expected a reading")
	}
	if reading.Timestamp != raw {
		t.Fatalf("timestamp rewritten: %q", reading.Timestamp)
	}
	sum := md5.Sum([]byte("CP-1_" + raw))
	if want := hex.EncodeToString(sum[:])[:12]; reading.ID != want {
		t.Fatalf("id = %q, want %q", reading.ID, want)
	}

	next, _ := Format("CP-1", sample("2024-05-01T12:00:00.750+03:00"), "")
	if next.ID == reading.ID {
		t.Fatalf("samples within one second must get distinct ids")
	}
}
