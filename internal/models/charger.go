package models

import "time"

// ChargerStatus is the persisted operational record of one charge point.
type ChargerStatus struct {
	ID                   string    `json:"name"`
	Brand                string    `json:"brand"`
	Model                string    `json:"model"`
	Status               string    `json:"status"`
	LastHeartbeat        time.Time `json:"last_heartbeat"`
	TotalEnergyDelivered float64   `json:"total_energy_delivered"`
	UptimeHours          float64   `json:"uptime_hours"`
	ConnectorID          int       `json:"connector_id"`
	EnergyUnit           string    `json:"energy_unit,omitempty"`
}
