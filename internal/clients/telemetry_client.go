package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"evquota/internal/models"
)

const apiKeyHeader = "X-API-Key"

// ErrTelemetryDisabled is returned when the client has no endpoint or API key.
var ErrTelemetryDisabled = errors.New("telemetry: endpoint or api key not configured")

// TelemetryClientConfig configures the HTTP readings endpoint.
type TelemetryClientConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
	// JWTSecret, when set, adds an HS256 bearer token signed per request.
	JWTSecret string
	JWTIssuer string
}

// TelemetryClient posts readings to the building-energy platform.
type TelemetryClient struct {
	url       string
	apiKey    string
	jwtSecret []byte
	jwtIssuer string
	client    *http.Client
	logger    *zap.Logger
}

// NewTelemetryClient returns client wrapper.
func NewTelemetryClient(cfg TelemetryClientConfig, logger *zap.Logger) *TelemetryClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TelemetryClient{
		url:       strings.TrimSpace(cfg.URL),
		apiKey:    strings.TrimSpace(cfg.APIKey),
		jwtSecret: []byte(cfg.JWTSecret),
		jwtIssuer: cfg.JWTIssuer,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Enabled reports whether both endpoint and API key are configured.
func (c *TelemetryClient) Enabled() bool {
	return c.url != "" && c.apiKey != ""
}

// Forward sends one reading. Only 200, 201 and 202 count as delivered.
func (c *TelemetryClient) Forward(ctx context.Context, reading models.Reading) error {
	if !c.Enabled() {
		c.logger.Debug("telemetry client disabled, skipping reading")
		return ErrTelemetryDisabled
	}
	data, err := json.Marshal(reading)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(apiKeyHeader, c.apiKey)

	if len(c.jwtSecret) > 0 {
		token, err := c.signToken(reading.ChargerName)
		if err != nil {
			return fmt.Errorf("telemetry: sign token: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.logger.Warn("telemetry client request failed", zap.Error(err))
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
		return nil
	default:
		c.logger.Warn("telemetry client returned non-success", zap.Int("status", resp.StatusCode))
		return fmt.Errorf("telemetry: unexpected status %d", resp.StatusCode)
	}
}

func (c *TelemetryClient) signToken(subject string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    c.jwtIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(5 * time.Minute)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.jwtSecret)
}
