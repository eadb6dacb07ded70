// Package match decides whether a transit stop already has a
// corresponding venue on the map, and which existing venues are close
// enough to be offered to the user as merge candidates.
//
// Two different radii are in play on purpose: the tight exact-match
// radius suppresses duplicate rendering without false positives, while
// the looser fuzzy radius surfaces plausible candidates for a human to
// judge.
package match

import (
	"strings"

	"github.com/paulmach/orb"

	"stoplayer.opentransportdata.swiss/internal/geomath"
	"stoplayer.opentransportdata.swiss/internal/models"
)

// ExactMatchRadiusMeters is the radius of the duplicate-suppression
// test. A venue further away than this is never an exact match, no
// matter how equal its name is.
const ExactMatchRadiusMeters = 5

// FindMatchingVenues returns the venues that share a category with the
// stop, lie within radiusMeters of it, and whose name contains the
// stop's short name (case-insensitive). Input order is preserved.
func FindMatchingVenues(venues []models.Venue, lon, lat float64, shortName string, categories []string, radiusMeters float64) []models.Venue {
	point := orb.Point{lon, lat}
	needle := strings.ToLower(shortName)

	var matches []models.Venue
	for _, venue := range venues {
		if !categoriesIntersect(venue.Categories, categories) {
			continue
		}
		if !geomath.IsWithinRadius(point, venue.Geometry, radiusMeters) {
			continue
		}
		if !strings.Contains(strings.ToLower(venue.Name), needle) {
			continue
		}
		matches = append(matches, venue)
	}
	return matches
}

// HasExactMatch reports whether any venue duplicates the stop: same
// name (case-sensitive), an overlapping category, and within
// ExactMatchRadiusMeters.
func HasExactMatch(venues []models.Venue, lon, lat float64, name string, categories []string) bool {
	point := orb.Point{lon, lat}
	for _, venue := range venues {
		if venue.Name != name {
			continue
		}
		if !categoriesIntersect(venue.Categories, categories) {
			continue
		}
		if geomath.IsWithinRadius(point, venue.Geometry, ExactMatchRadiusMeters) {
			return true
		}
	}
	return false
}

func categoriesIntersect(a, b []string) bool {
	for _, ca := range a {
		for _, cb := range b {
			if ca == cb {
				return true
			}
		}
	}
	return false
}
