package models

import (
	"encoding/json"
	"fmt"
	"math"
)

// StopRecord is one row of the remote stop dataset. Records are
// read-only once fetched; a re-fetch replaces the cached record
// wholesale, it is never mutated in place.
type StopRecord struct {
	Number               json.Number  `json:"number"`
	Designation          string       `json:"designation"`
	DesignationOfficial  string       `json:"designationofficial"`
	MunicipalityName     string       `json:"municipalityname"`
	MeansOfTransport     string       `json:"meansoftransport"`
	OperatorAbbreviation string       `json:"businessorganisationabbreviationde"`
	OperatorDescription  string       `json:"businessorganisationdescriptionde"`
	Position             *GeoPosition `json:"geopos_haltestelle"`
}

// GeoPosition is the provider-specific nested coordinate pair.
// The dataset occasionally serves coordinates as strings, so both
// fields go through json.Number.
type GeoPosition struct {
	Lat json.Number `json:"lat"`
	Lon json.Number `json:"lon"`
}

// ID returns the stable external identifier of the stop as a string.
func (s StopRecord) ID() string {
	return s.Number.String()
}

// LatLon parses the record's coordinates. It returns an error when the
// position is missing, unparsable, or not a finite coordinate pair.
func (s StopRecord) LatLon() (lat, lon float64, err error) {
	if s.Position == nil {
		return 0, 0, fmt.Errorf("stop %s: no position", s.ID())
	}
	lat, err = s.Position.Lat.Float64()
	if err != nil {
		return 0, 0, fmt.Errorf("stop %s: bad latitude %q: %w", s.ID(), s.Position.Lat, err)
	}
	lon, err = s.Position.Lon.Float64()
	if err != nil {
		return 0, 0, fmt.Errorf("stop %s: bad longitude %q: %w", s.ID(), s.Position.Lon, err)
	}
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return 0, 0, fmt.Errorf("stop %s: non-finite position", s.ID())
	}
	return lat, lon, nil
}

// Viewport is a map viewport extent in lon/lat degrees.
type Viewport struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}

// Contains reports whether the given coordinate falls inside the viewport.
func (v Viewport) Contains(lat, lon float64) bool {
	return lat >= v.MinLat && lat <= v.MaxLat && lon >= v.MinLon && lon <= v.MaxLon
}
