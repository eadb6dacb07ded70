package layer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"stoplayer.opentransportdata.swiss/internal/metrics"
	"stoplayer.opentransportdata.swiss/internal/models"
)

// Cursor is a forward-only page iterator over remote records. More
// reports whether another Next call may yield records; after Next
// returns an error the cursor is exhausted.
type Cursor[R any] interface {
	More() bool
	Next(ctx context.Context) ([]R, error)
}

// Source supplies the layer-specific halves of the engine: where
// records come from, how they become features, whether a record should
// currently be drawn, and what a click on its feature means.
type Source[R any] interface {
	// Name doubles as the canvas layer name and the switcher label.
	Name() string

	// MinZoom is the zoom level below which render passes are skipped.
	MinZoom() float64

	RecordID(rec R) string
	Feature(rec R) Feature
	Fetch(ctx context.Context, viewport models.Viewport) Cursor[R]

	// FilterContext is computed once per render or refilter pass and
	// handed to every ShouldDraw call of that pass.
	FilterContext(ctx context.Context) (any, error)
	ShouldDraw(rec R, filterCtx any) bool

	// Clicked handles a user click on one of the source's features. The
	// record passed is the cached one for the clicked feature ID.
	Clicked(ctx context.Context, ctl Control, rec R, featureID string) error
}

// Control is the slice of engine capability a Source may use from
// inside Clicked.
type Control interface {
	Zoom() float64
	Focus(ctx context.Context, lon, lat, zoom float64) error
	Refilter(ctx context.Context) error
	RemoveFeature(featureID string) error
}

// Idle-wait tuning. The host exposes no "tiles settled" signal, so the
// engine polls Loading and then waits one extra settle delay.
const (
	defaultIdlePollInterval = 200 * time.Millisecond
	defaultIdleMaxTries     = 25
	defaultIdleSettleDelay  = 500 * time.Millisecond
)

// Host bundles the editor-side collaborators an engine needs.
type Host struct {
	Canvas   Canvas
	View     MapView
	Switcher Switcher
	Bus      EventBus

	// Settings is optional; without it layer visibility simply is not
	// persisted across sessions.
	Settings Settings
}

// Engine reconciles one feature layer against its remote source. All
// exported methods are safe for concurrent use; overlapping render
// requests are coalesced into at most one follow-up pass.
type Engine[R any] struct {
	source Source[R]
	host   Host
	logger *slog.Logger
	zIndex int

	idlePollInterval time.Duration
	idleMaxTries     int
	idleSettleDelay  time.Duration

	// mu guards features and visible. Every ID in visible has an entry
	// in features; the reverse does not hold.
	mu       sync.Mutex
	features map[string]R
	visible  map[string]struct{}

	flightMu  sync.Mutex
	rendering bool
	pending   bool

	cleanupMu sync.Mutex
	cleanups  []func() error
}

// NewEngine returns an engine for source drawn on the given host at
// zIndex. Nothing is registered or drawn until Register and Enable.
func NewEngine[R any](source Source[R], host Host, zIndex int, logger *slog.Logger) *Engine[R] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine[R]{
		source:           source,
		host:             host,
		logger:           logger.With(slog.String("layer", source.Name())),
		zIndex:           zIndex,
		idlePollInterval: defaultIdlePollInterval,
		idleMaxTries:     defaultIdleMaxTries,
		idleSettleDelay:  defaultIdleSettleDelay,
		features:         make(map[string]R),
		visible:          make(map[string]struct{}),
	}
}

// Register adds the layer's switcher checkbox and wires the lifecycle
// events. The checkbox and editor-ready subscriptions live for the
// whole editor session and are not torn down on Disable.
func (e *Engine[R]) Register(ctx context.Context) error {
	name := e.source.Name()
	if err := e.host.Switcher.AddCheckbox(name); err != nil {
		return fmt.Errorf("failed to register layer %s: %w", name, err)
	}

	e.host.Bus.Subscribe(EventLayerCheckboxToggled, func(ev Event) {
		if ev.Layer != name {
			return
		}
		if e.host.Settings != nil {
			if err := e.host.Settings.SetEnabled(name, ev.Checked); err != nil {
				e.logger.Warn("failed to persist layer visibility", slog.Any("error", err))
			}
		}
		if ev.Checked {
			if err := e.Enable(ctx); err != nil {
				e.logger.Error("failed to enable layer", slog.Any("error", err))
			}
		} else {
			e.Disable()
		}
	})

	e.host.Bus.Subscribe(EventEditorReady, func(Event) {
		if e.host.Settings == nil || !e.host.Settings.Enabled(name) {
			return
		}
		e.host.Switcher.SetChecked(name, true)
		if err := e.Enable(ctx); err != nil {
			e.logger.Error("failed to restore layer", slog.Any("error", err))
		}
	})

	return nil
}

// Enable creates the vector layer, starts tracking map events and runs
// an initial render pass.
func (e *Engine[R]) Enable(ctx context.Context) error {
	if err := e.host.Canvas.AddVectorLayer(e.source.Name(), e.zIndex); err != nil {
		return fmt.Errorf("failed to add vector layer %s: %w", e.source.Name(), err)
	}
	e.trackMapEvents(ctx)
	return e.Render(ctx)
}

// Disable removes the layer from the canvas, unsubscribes the map
// events and forgets what is visible. The record cache is kept so a
// re-enable in the same viewport redraws without refetching history.
func (e *Engine[R]) Disable() {
	if err := e.host.Canvas.RemoveLayer(e.source.Name()); err != nil {
		e.logger.Warn("failed to remove layer from canvas", slog.Any("error", err))
	}
	e.runCleanups()

	e.mu.Lock()
	e.visible = make(map[string]struct{})
	e.mu.Unlock()
	metrics.FeaturesVisible.WithLabelValues(e.source.Name()).Set(0)
}

func (e *Engine[R]) trackMapEvents(ctx context.Context) {
	e.addCleanup(e.host.Bus.Subscribe(EventMapMoveEnd, func(Event) {
		e.WaitForIdle(ctx)
		if err := e.Render(ctx); err != nil {
			e.logger.Error("render after map move failed", slog.Any("error", err))
		}
	}))
	e.addCleanup(e.host.Bus.Subscribe(EventFeatureClicked, func(ev Event) {
		if ev.Layer != e.source.Name() {
			return
		}
		e.handleClick(ctx, ev.FeatureID)
	}))
}

func (e *Engine[R]) addCleanup(cancel func() error) {
	e.cleanupMu.Lock()
	e.cleanups = append(e.cleanups, cancel)
	e.cleanupMu.Unlock()
}

// runCleanups unsubscribes everything collected since the last run. A
// failing unsubscribe is logged and must not stop the others.
func (e *Engine[R]) runCleanups() {
	e.cleanupMu.Lock()
	cleanups := e.cleanups
	e.cleanups = nil
	e.cleanupMu.Unlock()

	for _, cancel := range cleanups {
		if err := cancel(); err != nil {
			e.logger.Warn("listener cleanup failed", slog.Any("error", err))
		}
	}
}

// Render runs a reconciliation pass. A Render that arrives while one is
// in flight does not run concurrently: it marks the pass dirty and the
// in-flight call runs one follow-up pass before returning, so N
// overlapping requests cost at most two passes.
func (e *Engine[R]) Render(ctx context.Context) error {
	e.flightMu.Lock()
	if e.rendering {
		e.pending = true
		e.flightMu.Unlock()
		return nil
	}
	e.rendering = true
	e.flightMu.Unlock()

	err := e.renderOnce(ctx)
	for {
		e.flightMu.Lock()
		if !e.pending {
			e.rendering = false
			e.flightMu.Unlock()
			return err
		}
		e.pending = false
		e.flightMu.Unlock()

		if rerr := e.renderOnce(ctx); rerr != nil {
			err = rerr
		}
	}
}

func (e *Engine[R]) renderOnce(ctx context.Context) error {
	name := e.source.Name()
	if !e.host.Switcher.Checked(name) || e.host.View.Zoom() < e.source.MinZoom() {
		metrics.RenderPasses.WithLabelValues(name, "skipped").Inc()
		return nil
	}

	start := time.Now()

	// Drain the whole cursor before touching any state, so a failing
	// page leaves the cache and the canvas exactly as they were.
	cursor := e.source.Fetch(ctx, e.host.View.Viewport())
	var records []R
	for cursor.More() {
		page, err := cursor.Next(ctx)
		if err != nil {
			metrics.RenderPasses.WithLabelValues(name, "error").Inc()
			return fmt.Errorf("fetch for layer %s failed: %w", name, err)
		}
		records = append(records, page...)
	}

	filterCtx, err := e.source.FilterContext(ctx)
	if err != nil {
		metrics.RenderPasses.WithLabelValues(name, "error").Inc()
		return fmt.Errorf("filter context for layer %s failed: %w", name, err)
	}

	e.mu.Lock()
	fetched := make(map[string]R, len(records))
	for _, rec := range records {
		id := e.source.RecordID(rec)
		fetched[id] = rec
		e.features[id] = rec
	}

	// Additions first, then removals, so a pan never blanks the overlap
	// between the old and new viewport.
	var toDraw []Feature
	var drawnIDs []string
	for id, rec := range fetched {
		if _, drawn := e.visible[id]; drawn {
			continue
		}
		if !e.source.ShouldDraw(rec, filterCtx) {
			continue
		}
		toDraw = append(toDraw, e.source.Feature(rec))
		drawnIDs = append(drawnIDs, id)
	}
	if len(toDraw) > 0 {
		if err := e.host.Canvas.AddFeatures(name, toDraw); err != nil {
			e.mu.Unlock()
			metrics.RenderPasses.WithLabelValues(name, "error").Inc()
			return fmt.Errorf("failed to draw features on layer %s: %w", name, err)
		}
		for _, id := range drawnIDs {
			e.visible[id] = struct{}{}
		}
		metrics.FeaturesAdded.WithLabelValues(name).Add(float64(len(toDraw)))
	}

	removed := 0
	for id := range e.visible {
		rec, cached := e.features[id]
		_, refetched := fetched[id]
		if refetched && cached && e.source.ShouldDraw(rec, filterCtx) {
			continue
		}
		if err := e.host.Canvas.RemoveFeature(name, id); err != nil {
			e.logger.Warn("failed to remove feature from canvas",
				slog.String("feature", id), slog.Any("error", err))
		}
		delete(e.visible, id)
		delete(e.features, id)
		removed++
	}
	visibleCount := len(e.visible)
	e.mu.Unlock()

	metrics.FeaturesRemoved.WithLabelValues(name).Add(float64(removed))
	metrics.FeaturesVisible.WithLabelValues(name).Set(float64(visibleCount))
	metrics.RenderDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	metrics.RenderPasses.WithLabelValues(name, "ok").Inc()

	e.logger.Debug("render pass complete",
		slog.Int("fetched", len(records)),
		slog.Int("added", len(toDraw)),
		slog.Int("removed", removed),
		slog.Int("visible", visibleCount))
	return nil
}

// Refilter re-evaluates the draw predicate over the currently visible
// features without refetching. It only ever removes; anything newly
// eligible appears on the next full render.
func (e *Engine[R]) Refilter(ctx context.Context) error {
	name := e.source.Name()
	if !e.host.Switcher.Checked(name) {
		return nil
	}

	filterCtx, err := e.source.FilterContext(ctx)
	if err != nil {
		return fmt.Errorf("filter context for layer %s failed: %w", name, err)
	}

	e.mu.Lock()
	for id := range e.visible {
		rec, cached := e.features[id]
		if cached && e.source.ShouldDraw(rec, filterCtx) {
			continue
		}
		if err := e.host.Canvas.RemoveFeature(name, id); err != nil {
			e.logger.Warn("failed to remove feature from canvas",
				slog.String("feature", id), slog.Any("error", err))
		}
		delete(e.visible, id)
	}
	visibleCount := len(e.visible)
	e.mu.Unlock()

	metrics.FeaturesVisible.WithLabelValues(name).Set(float64(visibleCount))
	return nil
}

// Zoom implements Control.
func (e *Engine[R]) Zoom() float64 {
	return e.host.View.Zoom()
}

// Focus moves the camera without triggering this layer's own move-end
// render: the map listeners are suspended around the camera change and
// the visible set is refiltered once the view settles.
func (e *Engine[R]) Focus(ctx context.Context, lon, lat, zoom float64) error {
	e.runCleanups()
	e.host.View.SetCenterAndZoom(lon, lat, zoom)
	e.trackMapEvents(ctx)
	e.WaitForIdle(ctx)
	return e.Refilter(ctx)
}

// RemoveFeature evicts a single feature from the canvas and the visible
// set. The backing record stays cached.
func (e *Engine[R]) RemoveFeature(featureID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, drawn := e.visible[featureID]; !drawn {
		return nil
	}
	err := e.host.Canvas.RemoveFeature(e.source.Name(), featureID)
	delete(e.visible, featureID)
	metrics.FeaturesVisible.WithLabelValues(e.source.Name()).Set(float64(len(e.visible)))
	return err
}

// WaitForIdle blocks until the view reports it is no longer loading,
// bounded by the poll budget, then waits one extra settle delay. If the
// view never settles the engine proceeds anyway.
func (e *Engine[R]) WaitForIdle(ctx context.Context) {
	for try := 0; try < e.idleMaxTries && e.host.View.Loading(); try++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(e.idlePollInterval):
		}
	}
	select {
	case <-ctx.Done():
	case <-time.After(e.idleSettleDelay):
	}
}

func (e *Engine[R]) handleClick(ctx context.Context, featureID string) {
	e.mu.Lock()
	rec, cached := e.features[featureID]
	e.mu.Unlock()
	if !cached {
		e.logger.Debug("click on unknown feature", slog.String("feature", featureID))
		return
	}
	if err := e.source.Clicked(ctx, e, rec, featureID); err != nil {
		e.logger.Error("feature click handling failed",
			slog.String("feature", featureID), slog.Any("error", err))
	}
}

// VisibleCount returns how many features are currently drawn.
func (e *Engine[R]) VisibleCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.visible)
}

// CachedCount returns how many records the engine has seen and kept.
func (e *Engine[R]) CachedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.features)
}
