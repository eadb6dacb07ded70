package layer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"stoplayer.opentransportdata.swiss/internal/models"
)

type engineHarness struct {
	engine   *Engine[models.StopRecord]
	source   *stubSource
	canvas   *fakeCanvas
	view     *fakeView
	switcher *fakeSwitcher
	bus      *fakeBus
	settings *fakeSettings
}

func newEngineHarness(t *testing.T) *engineHarness {
	t.Helper()

	source := &stubSource{name: "stops-test", minZoom: 15}
	canvas := newFakeCanvas()
	view := &fakeView{zoom: 16, viewport: models.Viewport{MinLon: 6.8, MinLat: 46.9, MaxLon: 7.0, MaxLat: 47.1}}
	switcher := newFakeSwitcher()
	bus := newFakeBus()
	settings := newFakeSettings()

	engine := NewEngine[models.StopRecord](source, Host{
		Canvas:   canvas,
		View:     view,
		Switcher: switcher,
		Bus:      bus,
		Settings: settings,
	}, 650, newTestLogger())

	// Keep the idle-wait cheap in tests.
	engine.idlePollInterval = time.Millisecond
	engine.idleSettleDelay = time.Millisecond
	engine.idleMaxTries = 3

	switcher.SetChecked("stops-test", true)

	return &engineHarness{
		engine:   engine,
		source:   source,
		canvas:   canvas,
		view:     view,
		switcher: switcher,
		bus:      bus,
		settings: settings,
	}
}

func TestRenderReconciliation(t *testing.T) {
	ctx := context.Background()

	t.Run("DrawsFetchedRecords", func(t *testing.T) {
		h := newEngineHarness(t)
		h.source.setRecords([]models.StopRecord{stopAt("1", 6.9, 47.0), stopAt("2", 6.91, 47.0)})

		if err := h.engine.Enable(ctx); err != nil {
			t.Fatalf("Enable failed: %v", err)
		}
		if got := h.engine.VisibleCount(); got != 2 {
			t.Errorf("visible = %d, want 2", got)
		}
		if !h.canvas.has("stops-test", "1") || !h.canvas.has("stops-test", "2") {
			t.Errorf("canvas is missing features, drawn: %v", h.canvas.drawn("stops-test"))
		}
	})

	t.Run("RerenderIsIdempotent", func(t *testing.T) {
		h := newEngineHarness(t)
		h.source.setRecords([]models.StopRecord{stopAt("1", 6.9, 47.0)})

		if err := h.engine.Enable(ctx); err != nil {
			t.Fatalf("Enable failed: %v", err)
		}
		if err := h.engine.Render(ctx); err != nil {
			t.Fatalf("second render failed: %v", err)
		}
		if got := h.engine.VisibleCount(); got != 1 {
			t.Errorf("visible = %d after two passes, want 1", got)
		}
		if got := h.source.fetches(); got != 2 {
			t.Errorf("fetches = %d, want 2 (no cross-pass caching)", got)
		}
	})

	t.Run("PanRemovesWhatLeftTheViewport", func(t *testing.T) {
		h := newEngineHarness(t)
		h.source.setRecords([]models.StopRecord{stopAt("1", 6.9, 47.0), stopAt("2", 6.91, 47.0)})
		if err := h.engine.Enable(ctx); err != nil {
			t.Fatalf("Enable failed: %v", err)
		}

		h.source.setRecords([]models.StopRecord{stopAt("2", 6.91, 47.0), stopAt("3", 6.92, 47.0)})
		if err := h.engine.Render(ctx); err != nil {
			t.Fatalf("render after pan failed: %v", err)
		}

		if h.canvas.has("stops-test", "1") {
			t.Error("feature 1 should have been removed after the pan")
		}
		if !h.canvas.has("stops-test", "2") || !h.canvas.has("stops-test", "3") {
			t.Errorf("expected 2 and 3 drawn, got %v", h.canvas.drawn("stops-test"))
		}
		if got := h.engine.CachedCount(); got != 2 {
			t.Errorf("cache = %d records, want 2 (stale records evicted)", got)
		}
	})

	t.Run("SkipsBelowMinZoom", func(t *testing.T) {
		h := newEngineHarness(t)
		h.source.setRecords([]models.StopRecord{stopAt("1", 6.9, 47.0)})
		h.view.zoom = 12

		if err := h.engine.Enable(ctx); err != nil {
			t.Fatalf("Enable failed: %v", err)
		}
		if got := h.source.fetches(); got != 0 {
			t.Errorf("fetches = %d below min zoom, want 0", got)
		}
	})

	t.Run("SkipsWhenUnchecked", func(t *testing.T) {
		h := newEngineHarness(t)
		h.source.setRecords([]models.StopRecord{stopAt("1", 6.9, 47.0)})
		h.switcher.SetChecked("stops-test", false)

		if err := h.engine.Render(ctx); err != nil {
			t.Fatalf("Render failed: %v", err)
		}
		if got := h.source.fetches(); got != 0 {
			t.Errorf("fetches = %d while unchecked, want 0", got)
		}
	})

	t.Run("FetchErrorLeavesStateIntact", func(t *testing.T) {
		h := newEngineHarness(t)
		h.source.setRecords([]models.StopRecord{stopAt("1", 6.9, 47.0)})
		if err := h.engine.Enable(ctx); err != nil {
			t.Fatalf("Enable failed: %v", err)
		}

		h.source.fetchErr = errors.New("dataset down")
		if err := h.engine.Render(ctx); err == nil {
			t.Fatal("expected the failing render to report an error")
		}
		if !h.canvas.has("stops-test", "1") {
			t.Error("a failing fetch must not disturb what is drawn")
		}
		if got := h.engine.CachedCount(); got != 1 {
			t.Errorf("cache = %d after failed fetch, want 1", got)
		}
	})

	t.Run("PredicateFiltersAdditionsAndRemovals", func(t *testing.T) {
		h := newEngineHarness(t)
		blocked := map[string]bool{"2": true}
		h.source.shouldDraw = func(rec models.StopRecord, _ any) bool {
			return !blocked[rec.ID()]
		}
		h.source.setRecords([]models.StopRecord{stopAt("1", 6.9, 47.0), stopAt("2", 6.91, 47.0)})

		if err := h.engine.Enable(ctx); err != nil {
			t.Fatalf("Enable failed: %v", err)
		}
		if h.canvas.has("stops-test", "2") {
			t.Error("record 2 fails the predicate and must not be drawn")
		}

		// Record 1 now fails the predicate too: the next pass removes it.
		blocked["1"] = true
		if err := h.engine.Render(ctx); err != nil {
			t.Fatalf("render failed: %v", err)
		}
		if h.canvas.has("stops-test", "1") {
			t.Error("record 1 should have been removed once the predicate rejects it")
		}
	})
}

func TestRefilter(t *testing.T) {
	ctx := context.Background()

	t.Run("RemovesWithoutRefetching", func(t *testing.T) {
		h := newEngineHarness(t)
		blocked := map[string]bool{}
		h.source.shouldDraw = func(rec models.StopRecord, _ any) bool {
			return !blocked[rec.ID()]
		}
		h.source.setRecords([]models.StopRecord{stopAt("1", 6.9, 47.0), stopAt("2", 6.91, 47.0)})
		if err := h.engine.Enable(ctx); err != nil {
			t.Fatalf("Enable failed: %v", err)
		}
		fetchesBefore := h.source.fetches()

		blocked["2"] = true
		if err := h.engine.Refilter(ctx); err != nil {
			t.Fatalf("Refilter failed: %v", err)
		}

		if h.canvas.has("stops-test", "2") {
			t.Error("refilter should have removed record 2")
		}
		if !h.canvas.has("stops-test", "1") {
			t.Error("refilter must not touch records still passing the predicate")
		}
		if got := h.source.fetches(); got != fetchesBefore {
			t.Errorf("fetches = %d, want %d (refilter never refetches)", got, fetchesBefore)
		}
	})

	t.Run("NeverAdds", func(t *testing.T) {
		h := newEngineHarness(t)
		blocked := map[string]bool{"2": true}
		h.source.shouldDraw = func(rec models.StopRecord, _ any) bool {
			return !blocked[rec.ID()]
		}
		h.source.setRecords([]models.StopRecord{stopAt("1", 6.9, 47.0), stopAt("2", 6.91, 47.0)})
		if err := h.engine.Enable(ctx); err != nil {
			t.Fatalf("Enable failed: %v", err)
		}

		// Record 2 becomes eligible again, but only a render may add it.
		delete(blocked, "2")
		if err := h.engine.Refilter(ctx); err != nil {
			t.Fatalf("Refilter failed: %v", err)
		}
		if h.canvas.has("stops-test", "2") {
			t.Error("refilter must never add features")
		}
	})
}

func TestDisable(t *testing.T) {
	ctx := context.Background()

	h := newEngineHarness(t)
	h.source.setRecords([]models.StopRecord{stopAt("1", 6.9, 47.0)})
	if err := h.engine.Enable(ctx); err != nil {
		t.Fatalf("Enable failed: %v", err)
	}
	if got := h.bus.subscriberCount(EventMapMoveEnd); got != 1 {
		t.Fatalf("move-end subscribers = %d after enable, want 1", got)
	}

	h.engine.Disable()

	if got := h.engine.VisibleCount(); got != 0 {
		t.Errorf("visible = %d after disable, want 0", got)
	}
	if got := h.engine.CachedCount(); got != 1 {
		t.Errorf("cache = %d after disable, want 1 (cache survives disable)", got)
	}
	if got := h.bus.subscriberCount(EventMapMoveEnd); got != 0 {
		t.Errorf("move-end subscribers = %d after disable, want 0", got)
	}
	if got := h.bus.subscriberCount(EventFeatureClicked); got != 0 {
		t.Errorf("click subscribers = %d after disable, want 0", got)
	}
}

func TestRemoveFeature(t *testing.T) {
	ctx := context.Background()

	h := newEngineHarness(t)
	h.source.setRecords([]models.StopRecord{stopAt("1", 6.9, 47.0)})
	if err := h.engine.Enable(ctx); err != nil {
		t.Fatalf("Enable failed: %v", err)
	}

	if err := h.engine.RemoveFeature("1"); err != nil {
		t.Fatalf("RemoveFeature failed: %v", err)
	}
	if h.canvas.has("stops-test", "1") {
		t.Error("feature should be off the canvas")
	}
	if got := h.engine.CachedCount(); got != 1 {
		t.Errorf("cache = %d, want 1 (record stays cached)", got)
	}

	// Removing something not drawn is a no-op.
	if err := h.engine.RemoveFeature("nope"); err != nil {
		t.Errorf("RemoveFeature on unknown id = %v, want nil", err)
	}
}

func TestRegisterLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("CheckboxToggleEnablesAndPersists", func(t *testing.T) {
		h := newEngineHarness(t)
		h.source.setRecords([]models.StopRecord{stopAt("1", 6.9, 47.0)})
		if err := h.engine.Register(ctx); err != nil {
			t.Fatalf("Register failed: %v", err)
		}

		h.bus.publish(Event{Name: EventLayerCheckboxToggled, Layer: "stops-test", Checked: true})
		if !h.canvas.has("stops-test", "1") {
			t.Error("checking the box should enable and render the layer")
		}
		if !h.settings.Enabled("stops-test") {
			t.Error("visibility should be persisted on toggle")
		}

		h.bus.publish(Event{Name: EventLayerCheckboxToggled, Layer: "stops-test", Checked: false})
		if h.settings.Enabled("stops-test") {
			t.Error("unchecking should persist the disabled state")
		}
		if got := h.engine.VisibleCount(); got != 0 {
			t.Errorf("visible = %d after uncheck, want 0", got)
		}
	})

	t.Run("IgnoresOtherLayersToggles", func(t *testing.T) {
		h := newEngineHarness(t)
		if err := h.engine.Register(ctx); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		h.bus.publish(Event{Name: EventLayerCheckboxToggled, Layer: "someone-else", Checked: true})
		if h.settings.Enabled("stops-test") {
			t.Error("a foreign layer's toggle must not touch this layer's settings")
		}
	})

	t.Run("EditorReadyRestoresPersistedVisibility", func(t *testing.T) {
		h := newEngineHarness(t)
		h.source.setRecords([]models.StopRecord{stopAt("1", 6.9, 47.0)})
		h.switcher.SetChecked("stops-test", false)
		h.settings.SetEnabled("stops-test", true)
		if err := h.engine.Register(ctx); err != nil {
			t.Fatalf("Register failed: %v", err)
		}

		h.bus.publish(Event{Name: EventEditorReady})

		if !h.switcher.Checked("stops-test") {
			t.Error("editor-ready should re-check the persisted layer")
		}
		if !h.canvas.has("stops-test", "1") {
			t.Error("editor-ready should render the persisted layer")
		}
	})

	t.Run("MapMoveTriggersRender", func(t *testing.T) {
		h := newEngineHarness(t)
		h.source.setRecords([]models.StopRecord{stopAt("1", 6.9, 47.0)})
		if err := h.engine.Enable(ctx); err != nil {
			t.Fatalf("Enable failed: %v", err)
		}
		before := h.source.fetches()

		h.bus.publish(Event{Name: EventMapMoveEnd})

		if got := h.source.fetches(); got != before+1 {
			t.Errorf("fetches = %d after move-end, want %d", got, before+1)
		}
	})
}

// gatedSource blocks each render pass inside FilterContext until the
// test releases it, so overlap between passes can be forced.
type gatedSource struct {
	*stubSource
	gate chan struct{}
}

func (g *gatedSource) FilterContext(ctx context.Context) (any, error) {
	<-g.gate
	return nil, nil
}

func TestRenderCoalescesOverlappingRequests(t *testing.T) {
	ctx := context.Background()

	stub := &stubSource{name: "stops-test", minZoom: 15}
	stub.setRecords([]models.StopRecord{stopAt("1", 6.9, 47.0)})
	source := &gatedSource{stubSource: stub, gate: make(chan struct{}, 2)}

	canvas := newFakeCanvas()
	view := &fakeView{zoom: 16}
	switcher := newFakeSwitcher()
	switcher.SetChecked("stops-test", true)

	engine := NewEngine[models.StopRecord](source, Host{
		Canvas:   canvas,
		View:     view,
		Switcher: switcher,
		Bus:      newFakeBus(),
	}, 650, newTestLogger())
	// Create the canvas layer directly; Enable's own render would also
	// park at the gate and confuse the pass count.
	if err := canvas.AddVectorLayer("stops-test", 650); err != nil {
		t.Fatalf("AddVectorLayer failed: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = engine.Render(ctx)
	}()

	// Wait until the in-flight pass has fetched and is parked at the gate.
	waitFor(t, func() bool { return stub.fetches() >= 1 })

	// These arrive mid-flight and must collapse into one follow-up pass.
	for i := 0; i < 3; i++ {
		if err := engine.Render(ctx); err != nil {
			t.Fatalf("overlapping Render failed: %v", err)
		}
	}

	source.gate <- struct{}{}
	source.gate <- struct{}{}
	wg.Wait()

	if got := stub.fetches(); got != 2 {
		t.Errorf("render passes = %d for 4 overlapping requests, want 2", got)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
