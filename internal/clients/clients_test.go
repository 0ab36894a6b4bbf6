package clients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"evquota/internal/models"
)

func TestTelemetryClientPostsReading(t *testing.T) {
	var (
		gotKey  string
		gotAuth string
		gotBody models.Reading
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewTelemetryClient(TelemetryClientConfig{URL: srv.URL, APIKey: "k-1", JWTSecret: "s3cret", JWTIssuer: "ocpp-server"}, nil)
	if err := c.Forward(context.Background(), models.Reading{ID: "abc", ChargerName: "CP-1"}); err != nil {
		t.Fatalf("forward: %v", err)
	}

	if gotKey != "k-1" || gotBody.ID != "abc" {
		t.Fatalf("unexpected request key=%q body=%+v", gotKey, gotBody)
	}
	raw := strings.TrimPrefix(gotAuth, "Bearer ")
	token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(*jwt.Token) (interface{}, error) {
		return []byte("s3cret"), nil
	})
	if err != nil || !token.Valid {
		t.Fatalf("invalid bearer token: %v", err)
	}
	if sub, _ := token.Claims.GetSubject(); sub != "CP-1" {
		t.Fatalf("unexpected subject %q", sub)
	}
}

func TestTelemetryClientFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewTelemetryClient(TelemetryClientConfig{URL: srv.URL, APIKey: "k"}, nil)
	if err := c.Forward(context.Background(), models.Reading{}); err == nil {
		t.Fatalf("expected error for 502")
	}

	disabled := NewTelemetryClient(TelemetryClientConfig{URL: srv.URL}, nil)
	if err := disabled.Forward(context.Background(), models.Reading{}); !errors.Is(err, ErrTelemetryDisabled) {
		t.Fatalf("expected ErrTelemetryDisabled without api key, got %v", err)
	}
}

type recordingGateway struct {
	calls int
	err   error
}

func (g *recordingGateway) Forward(context.Context, models.Reading) error {
	g.calls++
	return g.err
}

func TestMultiGatewayJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	ok := &recordingGateway{}
	failing := &recordingGateway{err: boom}

	err := MultiGateway{ok, nil, failing}.Forward(context.Background(), models.Reading{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if ok.calls != 1 || failing.calls != 1 {
		t.Fatalf("every gateway must be called")
	}
	if err := (MultiGateway{ok}).Forward(context.Background(), models.Reading{}); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}
