package domain

import (
	"strings"
	"time"
)

// FacilityKind distinguishes processing plants from storage warehouses.
type FacilityKind string

const (
	KindProcessing FacilityKind = "processing"
	KindStorage    FacilityKind = "storage"
)

// ParseFacilityKind accepts "warehouse" as a synonym for storage.
func ParseFacilityKind(value string) (FacilityKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "processing", "plant":
		return KindProcessing, nil
	case "storage", "warehouse":
		return KindStorage, nil
	default:
		return "", Validationf("unrecognized facility kind %q", value)
	}
}

// Facility is a processing plant or storage warehouse. CurrentStock is
// derived from the tracking events recorded against it.
type Facility struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Kind         FacilityKind `json:"kind"`
	Location     string       `json:"location"`
	Capacity     float64      `json:"capacity"`
	CurrentStock float64      `json:"current_stock"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Utilization is current stock divided by capacity. Over-capacity and
// negative stock are both representable, so the result is not clamped.
func (f *Facility) Utilization() float64 {
	if f == nil || f.Capacity <= 0 {
		return 0
	}
	return f.CurrentStock / f.Capacity
}
