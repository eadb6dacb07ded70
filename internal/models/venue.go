package models

import (
	"encoding/json"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Venue is a point of interest owned by the host map editor. The layer
// engine only ever reads venues or asks the host to create/update them;
// it never assumes exclusive ownership.
type Venue struct {
	ID         string
	Name       string
	Aliases    []string
	Categories []string
	Geometry   orb.Geometry
}

// venueJSON is the wire shape of a venue; geometry travels as GeoJSON.
type venueJSON struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Aliases    []string          `json:"aliases,omitempty"`
	Categories []string          `json:"categories"`
	Geometry   *geojson.Geometry `json:"geometry,omitempty"`
}

func (v Venue) MarshalJSON() ([]byte, error) {
	raw := venueJSON{
		ID:         v.ID,
		Name:       v.Name,
		Aliases:    v.Aliases,
		Categories: v.Categories,
	}
	if v.Geometry != nil {
		raw.Geometry = geojson.NewGeometry(v.Geometry)
	}
	return json.Marshal(raw)
}

func (v *Venue) UnmarshalJSON(data []byte) error {
	var raw venueJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v.ID = raw.ID
	v.Name = raw.Name
	v.Aliases = raw.Aliases
	v.Categories = raw.Categories
	v.Geometry = nil
	if raw.Geometry != nil {
		v.Geometry = raw.Geometry.Geometry()
	}
	return nil
}

// VenueDraft describes a venue to be created by the host.
type VenueDraft struct {
	Name       string
	Point      orb.Point
	Categories []string
}

// VenueUpdate carries partial venue fields. A nil Geometry leaves the
// venue's geometry untouched.
type VenueUpdate struct {
	Name       string
	Aliases    []string
	Categories []string
	Geometry   orb.Geometry
}
