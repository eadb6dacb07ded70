package gtfssource

import (
	"context"
	"testing"

	remoteGtfs "github.com/jamespfennell/gtfs"

	"stoplayer.opentransportdata.swiss/internal/models"
)

func ptr(f float64) *float64 { return &f }

func testStatic() *remoteGtfs.Static {
	return &remoteGtfs.Static{
		Agencies: []remoteGtfs.Agency{{Id: "trn", Name: "Transports Publics Neuchâtelois SA"}},
		Stops: []remoteGtfs.Stop{
			{Id: "8504221", Name: "Neuchâtel, Place Pury", Latitude: ptr(46.991), Longitude: ptr(6.928)},
			{Id: "8504200", Name: "Neuchâtel", Latitude: ptr(46.996), Longitude: ptr(6.935)},
			{Id: "8503000", Name: "Zürich HB", Latitude: ptr(47.378), Longitude: ptr(8.540)},
			{Id: "broken", Name: "Sans position"},
		},
	}
}

func TestFetchFiltersByViewport(t *testing.T) {
	source := New(testStatic(), nil)
	viewport := models.Viewport{MinLon: 6.8, MinLat: 46.9, MaxLon: 7.0, MaxLat: 47.1}

	cursor := source.Fetch(context.Background(), viewport)
	var records []models.StopRecord
	for cursor.More() {
		page, err := cursor.Next(context.Background())
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		records = append(records, page...)
	}

	if len(records) != 2 {
		t.Fatalf("records = %d, want 2 (Zürich and the stop without position excluded)", len(records))
	}
	first := records[0]
	if first.ID() != "8504221" {
		t.Errorf("first record id = %q, want 8504221", first.ID())
	}
	if first.OperatorDescription != "Transports Publics Neuchâtelois SA" {
		t.Errorf("operator = %q", first.OperatorDescription)
	}
	if first.MeansOfTransport != "BUS" {
		t.Errorf("mode = %q, want the BUS default", first.MeansOfTransport)
	}
	if lat, lon, err := first.LatLon(); err != nil || lat != 46.991 || lon != 6.928 {
		t.Errorf("LatLon = (%v, %v, %v)", lat, lon, err)
	}
}

func TestFetchPagination(t *testing.T) {
	static := &remoteGtfs.Static{}
	for i := 0; i < 120; i++ {
		static.Stops = append(static.Stops, remoteGtfs.Stop{
			Id:        "s" + string(rune('a'+i%26)) + string(rune('a'+i/26)),
			Latitude:  ptr(46.95),
			Longitude: ptr(6.9),
		})
	}
	source := New(static, nil)
	viewport := models.Viewport{MinLon: 6.8, MinLat: 46.9, MaxLon: 7.0, MaxLat: 47.1}

	cursor := source.Fetch(context.Background(), viewport)
	var pages int
	var total int
	for cursor.More() {
		page, err := cursor.Next(context.Background())
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		pages++
		total += len(page)
	}
	if pages != 3 || total != 120 {
		t.Errorf("pages = %d, total = %d; want 3 pages of 120 records", pages, total)
	}
}

func TestEmptyViewport(t *testing.T) {
	source := New(testStatic(), nil)
	cursor := source.Fetch(context.Background(), models.Viewport{MinLon: 0, MinLat: 0, MaxLon: 1, MaxLat: 1})
	if cursor.More() {
		t.Error("an empty result should not offer a page")
	}
}

func TestNextAfterExhaustion(t *testing.T) {
	source := New(testStatic(), nil)
	viewport := models.Viewport{MinLon: 6.8, MinLat: 46.9, MaxLon: 7.0, MaxLat: 47.1}

	cursor := source.Fetch(context.Background(), viewport)
	for cursor.More() {
		if _, err := cursor.Next(context.Background()); err != nil {
			t.Fatalf("Next failed: %v", err)
		}
	}

	// Calling Next past the end must stay inert, like the dataset cursor.
	page, err := cursor.Next(context.Background())
	if err != nil {
		t.Fatalf("Next after exhaustion returned error: %v", err)
	}
	if page != nil {
		t.Errorf("Next after exhaustion returned %d records, want none", len(page))
	}
}
