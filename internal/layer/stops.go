package layer

import (
	"context"
	"log/slog"
	"strings"

	"github.com/paulmach/orb"

	"stoplayer.opentransportdata.swiss/internal/i18n"
	"stoplayer.opentransportdata.swiss/internal/match"
	"stoplayer.opentransportdata.swiss/internal/models"
	"stoplayer.opentransportdata.swiss/internal/nameformat"
)

const (
	stopsMinZoom   = 15
	stopsFocusZoom = 17

	// DefaultMergeRadiusMeters bounds the fuzzy search for venues a
	// clicked stop may be merged into.
	DefaultMergeRadiusMeters = 75

	venueObjectType        = "venue"
	categoryTransportation = "TRANSPORTATION"
)

// Prompt choice IDs for the merge dialog.
const (
	choiceMerge       = "merge"
	choiceMergeCoords = "merge-coords"
	choiceSaveNew     = "save-new"
	choiceCancel      = "cancel"
)

// StopFetchFunc supplies stop records for a viewport. It decouples the
// layer from any one backend; both the dataset API client and the GTFS
// bundle source satisfy it.
type StopFetchFunc func(ctx context.Context, viewport models.Viewport) Cursor[models.StopRecord]

// StopsLayer is the public transport stops layer. It draws every stop
// in view that has no exactly matching venue yet, and turns a click
// into a venue merge or creation.
type StopsLayer struct {
	fetch       StopFetchFunc
	venues      VenueDirectory
	selector    Selector
	prompter    Prompter
	translator  *i18n.Translator
	logger      *slog.Logger
	mergeRadius float64
}

// NewStopsLayer wires a stops layer over the given backends.
func NewStopsLayer(fetch StopFetchFunc, venues VenueDirectory, selector Selector, prompter Prompter, translator *i18n.Translator, logger *slog.Logger) *StopsLayer {
	if translator == nil {
		translator = i18n.New(i18n.DefaultLocale, i18n.DefaultResources())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StopsLayer{
		fetch:       fetch,
		venues:      venues,
		selector:    selector,
		prompter:    prompter,
		translator:  translator,
		logger:      logger,
		mergeRadius: DefaultMergeRadiusMeters,
	}
}

// SetMergeRadius overrides the fuzzy-match radius in meters.
func (l *StopsLayer) SetMergeRadius(meters float64) {
	l.mergeRadius = meters
}

// Name returns the localized layer title.
func (l *StopsLayer) Name() string {
	return l.translator.T("stops.layer_name", "Arrêts de transports publics", nil)
}

// MinZoom implements Source.
func (l *StopsLayer) MinZoom() float64 {
	return stopsMinZoom
}

// RecordID implements Source.
func (l *StopsLayer) RecordID(rec models.StopRecord) string {
	return rec.ID()
}

// Feature implements Source. A record whose coordinates do not parse
// still gets a feature, pinned at the origin; such records are drawn so
// a human notices them, and their click handler refuses to act.
func (l *StopsLayer) Feature(rec models.StopRecord) Feature {
	lat, lon, err := rec.LatLon()
	if err != nil {
		return Feature{ID: rec.ID()}
	}
	return Feature{ID: rec.ID(), Point: orb.Point{lon, lat}}
}

// Fetch implements Source.
func (l *StopsLayer) Fetch(ctx context.Context, viewport models.Viewport) Cursor[models.StopRecord] {
	return l.fetch(ctx, viewport)
}

// FilterContext implements Source: the venue list is fetched fresh for
// every pass so concurrent venue edits are seen within one render.
func (l *StopsLayer) FilterContext(ctx context.Context) (any, error) {
	return l.venues.Venues(ctx)
}

// ShouldDraw reports whether a stop still lacks an exactly matching
// venue. Stops without any means of transport are never drawn; stops
// with unparsable coordinates are always drawn.
func (l *StopsLayer) ShouldDraw(rec models.StopRecord, filterCtx any) bool {
	if strings.TrimSpace(rec.MeansOfTransport) == "" {
		return false
	}
	lat, lon, err := rec.LatLon()
	if err != nil {
		return true
	}
	venues, _ := filterCtx.([]models.Venue)
	formatted := nameformat.Format(rec)
	return !match.HasExactMatch(venues, lon, lat, formatted.Name, VenueCategories(rec.MeansOfTransport))
}

// VenueCategories maps a stop's pipe-delimited transport modes to the
// venue category vocabulary.
func VenueCategories(meansOfTransport string) []string {
	modes := strings.Split(meansOfTransport, "|")
	categories := make([]string, 0, len(modes))
	for _, mode := range modes {
		switch strings.ToUpper(strings.TrimSpace(mode)) {
		case "METRO":
			categories = append(categories, "SUBWAY_STATION")
		case "BOAT":
			categories = append(categories, "SEAPORT_MARINA_HARBOR")
		case "CHAIRLIFT":
			categories = append(categories, categoryTransportation)
		default:
			categories = append(categories, strings.ToUpper(strings.TrimSpace(mode))+"_STATION")
		}
	}
	return categories
}

// Clicked implements Source. Below the working zoom it only moves the
// camera closer. At working zoom it searches for nearby similar venues,
// asks the user what to do when it finds some, then creates or updates
// venues, selects the result and removes the stop's feature.
func (l *StopsLayer) Clicked(ctx context.Context, ctl Control, rec models.StopRecord, featureID string) error {
	lat, lon, err := rec.LatLon()
	if err != nil {
		// Without coordinates neither zooming nor matching can work, so
		// the click does nothing instead of guessing.
		l.logger.Warn("clicked stop has unusable coordinates",
			slog.String("stop", rec.ID()), slog.Any("error", err))
		return nil
	}

	if ctl.Zoom() < stopsFocusZoom {
		return ctl.Focus(ctx, lon, lat, stopsFocusZoom)
	}

	formatted := nameformat.Format(rec)
	categories := VenueCategories(rec.MeansOfTransport)

	all, err := l.venues.Venues(ctx)
	if err != nil {
		return err
	}
	var candidates []models.Venue
	for _, venue := range all {
		if sharesCategory(venue, categories) {
			candidates = append(candidates, venue)
		}
	}

	type mergeTarget struct {
		venue        models.Venue
		updateCoords bool
	}
	var targets []mergeTarget

	if len(candidates) > 0 {
		matches := match.FindMatchingVenues(candidates, lon, lat, formatted.ShortName, categories, l.mergeRadius)
		if len(matches) > 0 {
			ids := make([]string, len(matches))
			for i, m := range matches {
				ids[i] = m.ID
			}
			l.selector.Select(ids, venueObjectType)

			question := l.translator.T("stops.prompt.question",
				"Des lieux similaires existent près de «{name}». Que faire ?",
				map[string]string{"name": formatted.Name})
			choice, err := l.prompter.Choose(ctx, question, []Choice{
				{ID: choiceMerge, Label: l.translator.T("stops.prompt.merge", "Fusionner", nil)},
				{ID: choiceMergeCoords, Label: l.translator.T("stops.prompt.merge_coords", "Fusionner et mettre à jour les coordonnées", nil)},
				{ID: choiceSaveNew, Label: l.translator.T("stops.prompt.save_new", "Enregistrer le nouveau", nil)},
				{ID: choiceCancel, Label: l.translator.T("stops.prompt.cancel", "Annuler", nil)},
			})
			if err != nil {
				return err
			}

			switch choice {
			case choiceCancel:
				return nil
			case choiceMerge:
				for _, m := range matches {
					targets = append(targets, mergeTarget{venue: m})
				}
			case choiceMergeCoords:
				for _, m := range matches {
					targets = append(targets, mergeTarget{venue: m, updateCoords: true})
				}
			case choiceSaveNew:
				// fall through to creation below
			}
		}
	}

	if len(targets) == 0 {
		created, err := l.venues.AddVenue(ctx, models.VenueDraft{
			Name:       formatted.Name,
			Point:      orb.Point{lon, lat},
			Categories: []string{categoryTransportation},
		})
		if err != nil {
			return err
		}
		targets = append(targets, mergeTarget{venue: created})
	}

	updated := make([]string, 0, len(targets))
	for _, target := range targets {
		update := models.VenueUpdate{
			Name:       formatted.Name,
			Aliases:    formatted.Aliases,
			Categories: categories,
		}
		if target.updateCoords {
			update.Geometry = orb.Point{lon, lat}
		}
		if err := l.venues.UpdateVenue(ctx, target.venue.ID, update); err != nil {
			return err
		}
		updated = append(updated, target.venue.ID)
	}

	l.selector.Select(updated, venueObjectType)
	return ctl.RemoveFeature(featureID)
}

func sharesCategory(venue models.Venue, categories []string) bool {
	for _, have := range venue.Categories {
		for _, want := range categories {
			if have == want {
				return true
			}
		}
	}
	return false
}
