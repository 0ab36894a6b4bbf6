// Package energy resolves the unit a charger reports cumulative energy in and
// normalizes readings to kWh.
package energy

import "strings"

// Unit is the cumulative energy unit reported by a charger.
type Unit string

const (
	UnitWh  Unit = "Wh"
	UnitKWh Unit = "kWh"
)

// DefaultWhFamilies are charger id fragments of vendors known to report Wh.
var DefaultWhFamilies = []string{"SCHNEIDER", "EVLINKPROAC", "EVLINK"}

// ParseUnit accepts Wh/kWh in any case. ok is false for anything else.
func ParseUnit(raw string) (Unit, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "wh":
		return UnitWh, true
	case "kwh":
		return UnitKWh, true
	default:
		return "", false
	}
}

// Resolver picks a charger's unit: explicit configuration first, then the
// id substring heuristic, then kWh.
type Resolver struct {
	configured map[string]Unit
	whFamilies []string
}

// NewResolver builds a resolver. Unparseable configured units are ignored.
func NewResolver(configured map[string]string, whFamilies []string) *Resolver {
	r := &Resolver{configured: make(map[string]Unit, len(configured))}
	for id, raw := range configured {
		if unit, ok := ParseUnit(raw); ok {
			r.configured[strings.ToUpper(strings.TrimSpace(id))] = unit
		}
	}
	for _, family := range whFamilies {
		if family = strings.ToUpper(strings.TrimSpace(family)); family != "" {
			r.whFamilies = append(r.whFamilies, family)
		}
	}
	return r
}

// Resolve returns the unit for chargerID.
func (r *Resolver) Resolve(chargerID string) Unit {
	id := strings.ToUpper(strings.TrimSpace(chargerID))
	if unit, ok := r.configured[id]; ok {
		return unit
	}
	for _, family := range r.whFamilies {
		if strings.Contains(id, family) {
			return UnitWh
		}
	}
	return UnitKWh
}

// ToKWh converts a raw reading in unit to kWh.
func ToKWh(value float64, unit Unit) float64 {
	if unit == UnitWh {
		return value / 1000
	}
	return value
}
