package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"evquota/internal/config"
	"evquota/internal/ocpp/protocol"
	"evquota/libs/logging"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	dir := t.TempDir()
	roster := filepath.Join(dir, "users1.csv")
	if err := os.WriteFile(roster, []byte("id_tag,header name,surname,quota_kwh,unlimited\nU1,Ada,Lovelace,150,FALSE\n"), 0o600); err != nil {
		t.Fatalf("write roster: %v", err)
	}

	cfg := config.Default()
	cfg.Storage.DataDir = filepath.Join(dir, "data")
	cfg.Quota.RosterPath = roster
	cfg.OCPP.ConfigPullDelaySeconds = 60

	logger, err := logging.NewLogger()
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	a, err := New(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

func TestHealthAndMetrics(t *testing.T) {
	srv := httptest.NewServer(newTestApp(t).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	var body map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("unexpected health response %d %v", resp.StatusCode, body)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected metrics status %d", resp.StatusCode)
	}
}

func TestAuthorizeOverWebSocket(t *testing.T) {
	srv := httptest.NewServer(newTestApp(t).Handler())
	defer srv.Close()

	dialer := websocket.Dialer{Subprotocols: []string{protocol.Subprotocol}}
	conn, _, err := dialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ocpp/CP-1", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	exchange := func(frame string) []json.RawMessage {
		t.Helper()
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			t.Fatalf("write: %v", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var parts []json.RawMessage
		if err := json.Unmarshal(raw, &parts); err != nil {
			t.Fatalf("decode reply %s: %v", raw, err)
		}
		return parts
	}

	known := exchange(`[2,"a1","Authorize",{"idTag":"U1"}]`)
	if len(known) != 3 || !strings.Contains(string(known[2]), `"Accepted"`) {
		t.Fatalf("unexpected reply for known user %s", known)
	}
	unknown := exchange(`[2,"a2","Authorize",{"idTag":"U999"}]`)
	if !strings.Contains(string(unknown[2]), `"Invalid"`) {
		t.Fatalf("unexpected reply for unknown user %s", unknown)
	}
	notImplemented := exchange(`[2,"a3","DataTransfer",{}]`)
	if string(notImplemented[0]) != "4" || !strings.Contains(string(notImplemented[2]), "NotImplemented") {
		t.Fatalf("expected NotImplemented error, got %s", notImplemented)
	}
}
