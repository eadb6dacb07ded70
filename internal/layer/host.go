// Package layer contains the feature-layer reconciliation engine and
// the public-transport-stops layer built on top of it. The host map
// editor is consumed strictly through the small interfaces in this
// file; nothing in the package knows how the host renders, stores or
// asks things.
package layer

import (
	"context"

	"github.com/paulmach/orb"

	"stoplayer.opentransportdata.swiss/internal/models"
)

// Host editor event names.
const (
	// EventEditorReady fires once when the editor has finished booting;
	// used to restore persisted layer visibility.
	EventEditorReady = "editor-ready"

	// EventLayerCheckboxToggled fires when the user flips a layer
	// checkbox in the layer switcher.
	EventLayerCheckboxToggled = "layer-checkbox-toggled"

	// EventMapMoveEnd fires after a pan or zoom settles.
	EventMapMoveEnd = "map-move-end"

	// EventFeatureClicked fires when the user clicks a feature on a
	// script-owned layer.
	EventFeatureClicked = "layer-feature-clicked"
)

// Event is one host editor event. Only the fields relevant to the
// event's name are populated.
type Event struct {
	Name      string
	Layer     string
	FeatureID string
	Checked   bool
}

// Feature is a drawable map object, distinct from the data record
// backing it. Stop features are always points.
type Feature struct {
	ID    string
	Point orb.Point
}

// Canvas is the host's drawing surface.
type Canvas interface {
	AddVectorLayer(name string, zIndex int) error
	AddTileLayer(name, urlTemplate string, zIndex int) error
	RemoveLayer(name string) error
	AddFeatures(layerName string, features []Feature) error
	RemoveFeature(layerName, featureID string) error
}

// MapView exposes viewport queries and camera control.
type MapView interface {
	Viewport() models.Viewport
	Zoom() float64
	Loading() bool
	SetCenterAndZoom(lon, lat, zoom float64)
}

// Switcher is the host's layer-switcher checkbox UI.
type Switcher interface {
	AddCheckbox(layerName string) error
	SetChecked(layerName string, checked bool)
	Checked(layerName string) bool
}

// EventBus delivers host editor events. Subscribe returns an
// unsubscribe closure; a layer runs every closure it collected when it
// is disabled.
type EventBus interface {
	Subscribe(event string, fn func(Event)) func() error
}

// VenueDirectory is the host's venue data model. The engine never
// assumes exclusive write access to it.
type VenueDirectory interface {
	Venues(ctx context.Context) ([]models.Venue, error)
	Venue(ctx context.Context, id string) (models.Venue, error)
	AddVenue(ctx context.Context, draft models.VenueDraft) (models.Venue, error)
	UpdateVenue(ctx context.Context, id string, update models.VenueUpdate) error
}

// Selector drives the host's selection UI.
type Selector interface {
	Select(ids []string, objectType string)
}

// Choice is one option offered to the user by a Prompter.
type Choice struct {
	ID    string
	Label string
}

// Prompter asks the user to pick among a fixed set of choices. It
// blocks until the user answers; the returned string is the ID of the
// picked Choice.
type Prompter interface {
	Choose(ctx context.Context, question string, choices []Choice) (string, error)
}

// Settings persists layer visibility across editor sessions. A missing
// or corrupt backing store behaves as "nothing enabled".
type Settings interface {
	Enabled(layerName string) bool
	SetEnabled(layerName string, enabled bool) error
}
