// Package chargepoint implements the per-connection OCPP behavior of the central system:
// quota checks at authorization and start, usage accounting from meter samples, and the
// corrective remote stop when a user runs out of allowance.
package chargepoint

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"evquota/internal/clients"
	"evquota/internal/energy"
	"evquota/internal/ledger"
	"evquota/internal/metrics"
	"evquota/internal/ocpp"
	"evquota/internal/ocpp/protocol"
	"evquota/internal/registry"
)

// CommandSender issues central-system calls to a connected charger.
type CommandSender interface {
	Send(stationID string, action protocol.Action, payload interface{}, cb ocpp.CommandCallback) (string, error)
}

// Config holds the behavior knobs shared by every charger session.
type Config struct {
	HeartbeatInterval int
	ExemptChargers    []string
	TelemetryTimeout  time.Duration
}

// Dependencies are the shared services a ChargePoint works against.
type Dependencies struct {
	Ledger   *ledger.Ledger
	Registry *registry.Registry
	Commands CommandSender
	// Gateway may be nil when no telemetry consumer is configured.
	Gateway clients.Gateway
	Metrics *metrics.Metrics
	Logger  *zap.Logger
	Now     func() time.Time
}

// ChargePoint handles the OCPP traffic of one connected charger.
type ChargePoint struct {
	id       string
	cfg      Config
	ledger   *ledger.Ledger
	registry *registry.Registry
	commands CommandSender
	gateway  clients.Gateway
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

var _ ocpp.Handler = (*ChargePoint)(nil)

// New returns the session for charger id.
func New(id string, cfg Config, deps Dependencies) *ChargePoint {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 60
	}
	if cfg.TelemetryTimeout <= 0 {
		cfg.TelemetryTimeout = 10 * time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &ChargePoint{
		id:       id,
		cfg:      cfg,
		ledger:   deps.Ledger,
		registry: deps.Registry,
		commands: deps.Commands,
		gateway:  deps.Gateway,
		metrics:  deps.Metrics,
		logger:   logger.With(zap.String("station_id", id)),
		now:      now,
	}
}

// ID returns the charger identifier taken from the connection URL.
func (cp *ChargePoint) ID() string {
	return cp.id
}

func (cp *ChargePoint) exempt() bool {
	for _, id := range cp.cfg.ExemptChargers {
		if strings.EqualFold(strings.TrimSpace(id), cp.id) {
			return true
		}
	}
	return false
}

func (cp *ChargePoint) toKWh(raw float64) float64 {
	return energy.ToKWh(raw, cp.registry.EnergyUnit(cp.id))
}

// setStatus stores a new charger state and counts the transition.
func (cp *ChargePoint) setStatus(ctx context.Context, state string, connectorID int) {
	event := cp.registry.UpdateStatus(ctx, cp.id, state, connectorID)
	if event.Changed() {
		cp.metrics.StateTransition(event.Previous, event.Current)
		cp.logger.Info("charger state changed", zap.String("from", event.Previous), zap.String("to", event.Current))
	}
}

// cumulativeEnergy returns the last energy register value in meterValues, in the
// charger's native unit.
func cumulativeEnergy(meterValues []protocol.MeterValue) (float64, bool) {
	var (
		value float64
		found bool
	)
	for _, mv := range meterValues {
		for _, sv := range mv.SampledValue {
			switch sv.Measurand {
			case protocol.MeasurandEnergyActiveImportRegister, protocol.MeasurandEnergy, "":
			default:
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(sv.Value), 64)
			if err != nil {
				continue
			}
			value, found = v, true
		}
	}
	return value, found
}
