// Package models contains the persistence-layer types shared by
// repositories, services, and handlers.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Location identifies a place the portal tracks data for. Locations are
// seeded at setup time and read-only afterwards; Name is the natural key
// used by refresh triggers.
type Location struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	CreatedAt time.Time `json:"created_at"`
}
