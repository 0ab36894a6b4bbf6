// Package registry keeps the persisted operational status of every charger that
// ever connected, plus a sliding window of the most recent formatted readings.
package registry

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"evquota/internal/energy"
	"evquota/internal/models"
	"evquota/internal/storage"
)

// DefaultReadingCap bounds the reading log.
const DefaultReadingCap = 500

const unknownVendor = "Unknown"

// StatusEvent describes one recorded state change.
type StatusEvent struct {
	ChargerID  string
	Previous   string
	Current    string
	RecordedAt time.Time
}

// Changed reports whether the state differs from the previous one.
func (e StatusEvent) Changed() bool {
	return e.Previous != e.Current
}

// Registry stores charger status records and the reading log.
type Registry struct {
	mu         sync.Mutex
	store      storage.Store
	resolver   *energy.Resolver
	readingCap int
	logger     *zap.Logger
	now        func() time.Time

	chargers map[string]*models.ChargerStatus
	readings []models.Reading
}

// New builds an empty registry. resolver may be nil, in which case every charger is kWh.
func New(store storage.Store, resolver *energy.Resolver, readingCap int, logger *zap.Logger) *Registry {
	if readingCap <= 0 {
		readingCap = DefaultReadingCap
	}
	if resolver == nil {
		resolver = energy.NewResolver(nil, nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		store:      store,
		resolver:   resolver,
		readingCap: readingCap,
		logger:     logger.Named("registry"),
		now:        time.Now,
		chargers:   make(map[string]*models.ChargerStatus),
	}
}

// Load restores charger records and the reading log. Unreadable documents start empty.
func (r *Registry) Load(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	chargers := make(map[string]*models.ChargerStatus)
	if err := storage.LoadJSON(ctx, r.store, storage.DocChargers, &chargers); err != nil && !errors.Is(err, storage.ErrNotFound) {
		r.logger.Error("charger document unreadable, starting empty", zap.Error(err))
		chargers = make(map[string]*models.ChargerStatus)
	}
	for id, c := range chargers {
		if c == nil {
			delete(chargers, id)
			continue
		}
		c.ID = id
	}
	r.chargers = chargers

	var readings []models.Reading
	if err := storage.LoadJSON(ctx, r.store, storage.DocReadings, &readings); err != nil && !errors.Is(err, storage.ErrNotFound) {
		r.logger.Error("reading log unreadable, starting empty", zap.Error(err))
		readings = nil
	}
	if len(readings) > r.readingCap {
		readings = readings[len(readings)-r.readingCap:]
	}
	r.readings = readings

	r.logger.Info("registry loaded", zap.Int("chargers", len(r.chargers)), zap.Int("readings", len(r.readings)))
}

func (r *Registry) getOrCreateLocked(id string) *models.ChargerStatus {
	c, ok := r.chargers[id]
	if !ok {
		c = &models.ChargerStatus{
			ID:          id,
			Brand:       unknownVendor,
			Model:       unknownVendor,
			Status:      "Available",
			ConnectorID: 1,
		}
		r.chargers[id] = c
	}
	return c
}

// RegisterBoot records vendor and model and resolves the charger's energy unit.
func (r *Registry) RegisterBoot(ctx context.Context, id, vendor, model string) models.ChargerStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.getOrCreateLocked(id)
	if vendor = strings.TrimSpace(vendor); vendor != "" {
		c.Brand = vendor
	}
	if model = strings.TrimSpace(model); model != "" {
		c.Model = model
	}
	c.LastHeartbeat = r.now().UTC()
	c.EnergyUnit = string(r.resolver.Resolve(id))

	r.persistChargersLocked(ctx)
	return *c
}

// Heartbeat refreshes the liveness timestamp.
func (r *Registry) Heartbeat(ctx context.Context, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.getOrCreateLocked(id)
	c.LastHeartbeat = r.now().UTC()
	r.persistChargersLocked(ctx)
}

// UpdateStatus records a new state. connectorID 0 leaves the stored connector unchanged.
func (r *Registry) UpdateStatus(ctx context.Context, id, state string, connectorID int) StatusEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, existed := r.chargers[id]
	c := r.getOrCreateLocked(id)
	previous := c.Status
	if !existed {
		previous = ""
	}

	now := r.now().UTC()
	c.Status = state
	c.LastHeartbeat = now
	if connectorID > 0 {
		c.ConnectorID = connectorID
	}

	r.persistChargersLocked(ctx)
	return StatusEvent{ChargerID: id, Previous: previous, Current: state, RecordedAt: now}
}

// AddDeliveredEnergy adds a completed session's energy to the lifetime counter.
func (r *Registry) AddDeliveredEnergy(ctx context.Context, id string, kwh float64) {
	if kwh <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.getOrCreateLocked(id)
	c.TotalEnergyDelivered += kwh
	r.persistChargersLocked(ctx)
}

// AppendReading adds a reading and discards the oldest beyond the cap.
func (r *Registry) AppendReading(ctx context.Context, reading models.Reading) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.readings = append(r.readings, reading)
	if over := len(r.readings) - r.readingCap; over > 0 {
		r.readings = append(r.readings[:0:0], r.readings[over:]...)
	}
	if err := storage.SaveJSON(ctx, r.store, storage.DocReadings, r.readings); err != nil {
		r.logger.Error("persist reading log failed", zap.Error(err))
	}
}

// EnergyUnit returns the unit stored at boot, or resolves it if the charger never booted.
func (r *Registry) EnergyUnit(id string) energy.Unit {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.chargers[id]; ok {
		if unit, ok := energy.ParseUnit(c.EnergyUnit); ok {
			return unit
		}
	}
	return r.resolver.Resolve(id)
}

// Get returns a copy of the charger record.
func (r *Registry) Get(id string) (models.ChargerStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chargers[id]
	if !ok {
		return models.ChargerStatus{}, false
	}
	return *c, true
}

// Snapshot returns all charger records ordered by id.
func (r *Registry) Snapshot() []models.ChargerStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.ChargerStatus, 0, len(r.chargers))
	for _, c := range r.chargers {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Readings returns a copy of the reading log, oldest first.
func (r *Registry) Readings() []models.Reading {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Reading(nil), r.readings...)
}

func (r *Registry) persistChargersLocked(ctx context.Context) {
	if err := storage.SaveJSON(ctx, r.store, storage.DocChargers, r.chargers); err != nil {
		r.logger.Error("persist charger status failed", zap.Error(err))
	}
}
