package layer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"

	"stoplayer.opentransportdata.swiss/internal/models"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// In-memory host fakes shared by the engine and stops layer tests.

type fakeCanvas struct {
	mu         sync.Mutex
	layers     map[string]map[string]Feature
	tileLayers []TileLayer
	addErr     error
}

func newFakeCanvas() *fakeCanvas {
	return &fakeCanvas{layers: make(map[string]map[string]Feature)}
}

func (c *fakeCanvas) AddVectorLayer(name string, zIndex int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.layers[name]; !ok {
		c.layers[name] = make(map[string]Feature)
	}
	return nil
}

func (c *fakeCanvas) AddTileLayer(name, urlTemplate string, zIndex int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tileLayers = append(c.tileLayers, TileLayer{Name: name, URLTemplate: urlTemplate, ZIndex: zIndex})
	return nil
}

func (c *fakeCanvas) RemoveLayer(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.layers, name)
	return nil
}

func (c *fakeCanvas) AddFeatures(layerName string, features []Feature) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.addErr != nil {
		return c.addErr
	}
	layer, ok := c.layers[layerName]
	if !ok {
		return errors.New("no such layer: " + layerName)
	}
	for _, f := range features {
		layer[f.ID] = f
	}
	return nil
}

func (c *fakeCanvas) RemoveFeature(layerName, featureID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	layer, ok := c.layers[layerName]
	if !ok {
		return errors.New("no such layer: " + layerName)
	}
	delete(layer, featureID)
	return nil
}

func (c *fakeCanvas) drawn(layerName string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var ids []string
	for id := range c.layers[layerName] {
		ids = append(ids, id)
	}
	return ids
}

func (c *fakeCanvas) has(layerName, featureID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.layers[layerName][featureID]
	return ok
}

type fakeView struct {
	mu           sync.Mutex
	viewport     models.Viewport
	zoom         float64
	loadingPolls int
	centerLon    float64
	centerLat    float64
}

func (v *fakeView) Viewport() models.Viewport {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.viewport
}

func (v *fakeView) Zoom() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.zoom
}

// Loading reports true for the first loadingPolls calls, then false.
func (v *fakeView) Loading() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.loadingPolls > 0 {
		v.loadingPolls--
		return true
	}
	return false
}

func (v *fakeView) SetCenterAndZoom(lon, lat, zoom float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.centerLon, v.centerLat, v.zoom = lon, lat, zoom
}

type fakeSwitcher struct {
	mu         sync.Mutex
	checkboxes []string
	checked    map[string]bool
}

func newFakeSwitcher() *fakeSwitcher {
	return &fakeSwitcher{checked: make(map[string]bool)}
}

func (s *fakeSwitcher) AddCheckbox(layerName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkboxes = append(s.checkboxes, layerName)
	return nil
}

func (s *fakeSwitcher) SetChecked(layerName string, checked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checked[layerName] = checked
}

func (s *fakeSwitcher) Checked(layerName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checked[layerName]
}

type fakeBus struct {
	mu      sync.Mutex
	nextID  int
	subs    map[string]map[int]func(Event)
	cancels int
}

func newFakeBus() *fakeBus {
	return &fakeBus{subs: make(map[string]map[int]func(Event))}
}

func (b *fakeBus) Subscribe(event string, fn func(Event)) func() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[event] == nil {
		b.subs[event] = make(map[int]func(Event))
	}
	id := b.nextID
	b.nextID++
	b.subs[event][id] = fn
	return func() error {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[event], id)
		b.cancels++
		return nil
	}
}

func (b *fakeBus) publish(ev Event) {
	b.mu.Lock()
	fns := make([]func(Event), 0, len(b.subs[ev.Name]))
	for _, fn := range b.subs[ev.Name] {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (b *fakeBus) subscriberCount(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[event])
}

type fakeSettings struct {
	mu      sync.Mutex
	enabled map[string]bool
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{enabled: make(map[string]bool)}
}

func (s *fakeSettings) Enabled(layerName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled[layerName]
}

func (s *fakeSettings) SetEnabled(layerName string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled[layerName] = enabled
	return nil
}

type venueUpdateCall struct {
	id     string
	update models.VenueUpdate
}

type fakeVenueDirectory struct {
	mu       sync.Mutex
	venues   []models.Venue
	listErr  error
	nextID   int
	added    []models.VenueDraft
	updates  []venueUpdateCall
	listings int
}

func (d *fakeVenueDirectory) Venues(ctx context.Context) ([]models.Venue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listings++
	if d.listErr != nil {
		return nil, d.listErr
	}
	out := make([]models.Venue, len(d.venues))
	copy(out, d.venues)
	return out, nil
}

func (d *fakeVenueDirectory) Venue(ctx context.Context, id string) (models.Venue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, v := range d.venues {
		if v.ID == id {
			return v, nil
		}
	}
	return models.Venue{}, errors.New("no such venue: " + id)
}

func (d *fakeVenueDirectory) AddVenue(ctx context.Context, draft models.VenueDraft) (models.Venue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.added = append(d.added, draft)
	d.nextID++
	created := models.Venue{
		ID:         "created-" + strconv.Itoa(d.nextID),
		Name:       draft.Name,
		Categories: draft.Categories,
		Geometry:   draft.Point,
	}
	d.venues = append(d.venues, created)
	return created, nil
}

func (d *fakeVenueDirectory) UpdateVenue(ctx context.Context, id string, update models.VenueUpdate) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.updates = append(d.updates, venueUpdateCall{id: id, update: update})
	for i := range d.venues {
		if d.venues[i].ID == id {
			d.venues[i].Name = update.Name
			d.venues[i].Aliases = update.Aliases
			d.venues[i].Categories = update.Categories
			if update.Geometry != nil {
				d.venues[i].Geometry = update.Geometry
			}
		}
	}
	return nil
}

type selection struct {
	ids        []string
	objectType string
}

type fakeSelector struct {
	mu         sync.Mutex
	selections []selection
}

func (s *fakeSelector) Select(ids []string, objectType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selections = append(s.selections, selection{ids: ids, objectType: objectType})
}

type fakePrompter struct {
	mu        sync.Mutex
	answer    string
	questions []string
	choices   [][]Choice
}

func (p *fakePrompter) Choose(ctx context.Context, question string, choices []Choice) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.questions = append(p.questions, question)
	p.choices = append(p.choices, choices)
	return p.answer, nil
}

// sliceCursor serves pre-baked pages; the last page being under-full
// ends iteration like the real dataset cursor.
type sliceCursor[R any] struct {
	pages [][]R
	err   error
	next  int
}

func (c *sliceCursor[R]) More() bool {
	return c.next < len(c.pages)
}

func (c *sliceCursor[R]) Next(ctx context.Context) ([]R, error) {
	if c.err != nil {
		c.next = len(c.pages)
		return nil, c.err
	}
	if c.next >= len(c.pages) {
		return nil, nil
	}
	page := c.pages[c.next]
	c.next++
	return page, nil
}

// stubSource is a minimal Source for engine tests: records are served
// from a slice and the draw predicate is pluggable.
type stubSource struct {
	name       string
	minZoom    float64
	records    []models.StopRecord
	fetchErr   error
	fetchCount int
	shouldDraw func(rec models.StopRecord, filterCtx any) bool
	clicked    func(ctx context.Context, ctl Control, rec models.StopRecord, featureID string) error

	mu sync.Mutex
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) MinZoom() float64 { return s.minZoom }

func (s *stubSource) RecordID(rec models.StopRecord) string { return rec.ID() }

func (s *stubSource) Feature(rec models.StopRecord) Feature {
	return Feature{ID: rec.ID()}
}

func (s *stubSource) Fetch(ctx context.Context, viewport models.Viewport) Cursor[models.StopRecord] {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchCount++
	if s.fetchErr != nil {
		return &sliceCursor[models.StopRecord]{pages: [][]models.StopRecord{nil}, err: s.fetchErr}
	}
	records := make([]models.StopRecord, len(s.records))
	copy(records, s.records)
	return &sliceCursor[models.StopRecord]{pages: [][]models.StopRecord{records}}
}

func (s *stubSource) FilterContext(ctx context.Context) (any, error) { return nil, nil }

func (s *stubSource) ShouldDraw(rec models.StopRecord, filterCtx any) bool {
	if s.shouldDraw == nil {
		return true
	}
	return s.shouldDraw(rec, filterCtx)
}

func (s *stubSource) Clicked(ctx context.Context, ctl Control, rec models.StopRecord, featureID string) error {
	if s.clicked == nil {
		return nil
	}
	return s.clicked(ctx, ctl, rec, featureID)
}

func (s *stubSource) setRecords(records []models.StopRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
}

func (s *stubSource) fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchCount
}

func stopAt(id string, lon, lat float64) models.StopRecord {
	return models.StopRecord{
		Number:           json.Number(id),
		Designation:      "Stop " + id,
		MunicipalityName: "Testville",
		MeansOfTransport: "BUS",
		Position: &models.GeoPosition{
			Lat: json.Number(strconv.FormatFloat(lat, 'f', -1, 64)),
			Lon: json.Number(strconv.FormatFloat(lon, 'f', -1, 64)),
		},
	}
}
