package ocpp

import (
	"encoding/json"
	"testing"

	"evquota/internal/ocpp/protocol"
)

func TestParseFrames(t *testing.T) {
	p := NewParser()

	call, err := p.Parse([]byte(`[2,"19223201","BootNotification",{"chargePointVendor":"VendorX","chargePointModel":"SingleSocket"}]`))
	if err != nil {
		t.Fatalf("parse call: %v", err)
	}
	if call.MessageType != protocol.MessageTypeCall || call.UniqueID != "19223201" || call.Action != "BootNotification" {
		t.Fatalf("unexpected call %+v", call)
	}

	result, err := p.Parse([]byte(`[3,"abc",{"status":"Accepted"}]`))
	if err != nil {
		t.Fatalf("parse result: %v", err)
	}
	if result.MessageType != protocol.MessageTypeCallResult || string(result.Payload) != `{"status":"Accepted"}` {
		t.Fatalf("unexpected result %+v", result)
	}

	callErr, err := p.Parse([]byte(`[4,"abc","NotSupported","nope",{}]`))
	if err != nil {
		t.Fatalf("parse error frame: %v", err)
	}
	if callErr.ErrorCode != "NotSupported" || callErr.ErrorDescription != "nope" {
		t.Fatalf("unexpected error frame %+v", callErr)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	p := NewParser()
	for _, raw := range []string{
		`{}`,
		`[2,"id"]`,
		`[2,"id","Heartbeat"]`,
		`[9,"id",{}]`,
		`["x","id",{}]`,
		`[4,"id","Code"]`,
	} {
		if _, err := p.Parse([]byte(raw)); err == nil {
			t.Fatalf("expected error for %s", raw)
		}
	}
}

func TestBuildFrames(t *testing.T) {
	frame, err := BuildCall("m-1", protocol.ActionRemoteStopTransaction, protocol.RemoteStopTransactionRequest{TransactionID: 42})
	if err != nil {
		t.Fatalf("build call: %v", err)
	}
	var decoded []json.RawMessage
	if err := json.Unmarshal(frame, &decoded); err != nil || len(decoded) != 4 {
		t.Fatalf("unexpected call frame %s", frame)
	}
	if string(decoded[2]) != `"RemoteStopTransaction"` || string(decoded[3]) != `{"transactionId":42}` {
		t.Fatalf("unexpected call frame %s", frame)
	}

	errFrame, err := BuildCallError("m-2", protocol.ErrorNotImplemented, "unknown action")
	if err != nil {
		t.Fatalf("build error: %v", err)
	}
	if string(errFrame) != `[4,"m-2","NotImplemented","unknown action",{}]` {
		t.Fatalf("unexpected error frame %s", errFrame)
	}
}
