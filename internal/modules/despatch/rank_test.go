package despatch

import (
	"testing"

	"rebeca/internal/types"
)

func pt(lat, lng float64) *types.Point {
	return &types.Point{Lat: lat, Lng: lng}
}

func TestRank_NearestFirst(t *testing.T) {
	// Offsets chosen so the drivers sit roughly 5, 1, and 3 km north of the
	// pickup (1 degree of latitude ~= 111 km).
	pickup := types.Point{Lat: -23.5327, Lng: -46.7917}
	drivers := []DriverInfo{
		{ID: "far", Name: "Far", Status: "available", Location: pt(pickup.Lat+5.0/111.0, pickup.Lng)},
		{ID: "near", Name: "Near", Status: "available", Location: pt(pickup.Lat+1.0/111.0, pickup.Lng)},
		{ID: "mid", Name: "Mid", Status: "available", Location: pt(pickup.Lat+3.0/111.0, pickup.Lng)},
	}

	got := Rank(pickup, drivers)
	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(got))
	}
	if got[0].DriverID != "near" || got[1].DriverID != "mid" || got[2].DriverID != "far" {
		t.Fatalf("unexpected order: %v", got)
	}
	if got[0].DistanceKm > got[1].DistanceKm || got[1].DistanceKm > got[2].DistanceKm {
		t.Fatalf("distances not ascending: %v", got)
	}
}

func TestRank_FiltersUnavailableAndLocationless(t *testing.T) {
	pickup := types.Point{Lat: -23.5327, Lng: -46.7917}
	drivers := []DriverInfo{
		{ID: "busy", Status: "busy", Location: pt(-23.533, -46.792)},
		{ID: "offline", Status: "offline", Location: pt(-23.533, -46.792)},
		{ID: "lost", Status: "available", Location: nil},
		{ID: "ok", Name: "Ok", Status: "available", Location: pt(-23.533, -46.792)},
	}

	got := Rank(pickup, drivers)
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d: %v", len(got), got)
	}
	if got[0].DriverID != "ok" {
		t.Fatalf("expected driver ok, got %s", got[0].DriverID)
	}
}

func TestRank_EmptyInput(t *testing.T) {
	got := Rank(types.Point{Lat: -23.5327, Lng: -46.7917}, nil)
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}
}

func TestRank_TiesKeepInputOrder(t *testing.T) {
	pickup := types.Point{Lat: -23.5327, Lng: -46.7917}
	same := pt(-23.54, -46.79)
	drivers := []DriverInfo{
		{ID: "alpha", Status: "available", Location: same},
		{ID: "beta", Status: "available", Location: same},
	}

	got := Rank(pickup, drivers)
	if len(got) != 2 || got[0].DriverID != "alpha" || got[1].DriverID != "beta" {
		t.Fatalf("tied candidates must keep input order: %v", got)
	}
}

// Scenario from the field: pickup in Osasco, driver A a few blocks away,
// driver B across the district, driver C off shift.
func TestRank_OsascoScenario(t *testing.T) {
	pickup := types.Point{Lat: -23.5327, Lng: -46.7917}
	drivers := []DriverInfo{
		{ID: "A", Name: "Antonio", Status: "available", Location: pt(-23.5350, -46.7890)},
		{ID: "B", Name: "Beatriz", Status: "available", Location: pt(-23.5100, -46.8200)},
		{ID: "C", Name: "Carlos", Status: "offline", Location: pt(-23.5200, -46.8000)},
	}

	got := Rank(pickup, drivers)
	if len(got) != 2 {
		t.Fatalf("expected [A B], got %v", got)
	}
	if got[0].DriverID != "A" || got[1].DriverID != "B" {
		t.Fatalf("expected A before B, got %v", got)
	}
	if got[0].DistanceKm < 0.3 || got[0].DistanceKm > 0.5 {
		t.Errorf("driver A distance = %f, want ~0.39", got[0].DistanceKm)
	}
	if got[1].DistanceKm < 3.4 || got[1].DistanceKm > 4.5 {
		t.Errorf("driver B distance = %f, want ~4", got[1].DistanceKm)
	}
}
