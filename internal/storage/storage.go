// Package storage persists whole JSON documents by name. Every backend replaces a
// document atomically: readers see either the previous or the new body, never a mix.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Document names shared with the read-side dashboard service.
const (
	DocUsage       = "energy_usage.json"
	DocSessions    = "active_transactions.json"
	DocChargers    = "charger_status.json"
	DocReadings    = "meter_data_log.json"
	DocResetMarker = "last_reset.txt"
)

// WriteTimeout bounds a single document write.
const WriteTimeout = 5 * time.Second

// ErrNotFound is returned when a document has never been written.
var ErrNotFound = errors.New("storage: document not found")

// Store reads and replaces named documents.
type Store interface {
	Get(ctx context.Context, name string) ([]byte, error)
	Put(ctx context.Context, name string, body []byte) error
	Close() error
}

// LoadJSON decodes a document into target. A missing document leaves target untouched
// and returns ErrNotFound.
func LoadJSON(ctx context.Context, s Store, name string, target any) error {
	body, err := s.Get(ctx, name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("storage: decode %s: %w", name, err)
	}
	return nil
}

// SaveJSON encodes value with indentation and replaces the document through Save.
func SaveJSON(ctx context.Context, s Store, name string, value any) error {
	body, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", name, err)
	}
	return Save(ctx, s, name, body)
}

// Save replaces a document. The write ignores cancellation of ctx and is bounded by
// WriteTimeout, so a closing connection cannot leave the store behind memory.
func Save(ctx context.Context, s Store, name string, body []byte) error {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), WriteTimeout)
	defer cancel()
	return s.Put(writeCtx, name, body)
}
