package models

import "time"

// ActiveSession is an open charging transaction as stored in active_transactions.json.
type ActiveSession struct {
	ID         int64     `json:"-"`
	IDTag      string    `json:"id_tag"`
	FullName   string    `json:"full_name"`
	ChargerID  string    `json:"charger_id"`
	StartMeter float64   `json:"start_meter"`
	LastMeter  float64   `json:"last_meter"`
	StartTime  time.Time `json:"start_time"`
	// StopPending marks an in-flight remote stop. It is never persisted.
	StopPending bool `json:"-"`
}

// DeliveredKWh returns the energy metered between start and the watermark.
func (s ActiveSession) DeliveredKWh() float64 {
	if s.LastMeter <= s.StartMeter {
		return 0
	}
	return s.LastMeter - s.StartMeter
}
