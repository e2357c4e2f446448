package despatch

import (
	"math"
	"testing"
)

func TestDistanceKm_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		lat1      float64
		lng1      float64
		lat2      float64
		lng2      float64
		wantKm    float64
		tolerance float64
	}{
		{
			name: "same point",
			lat1: -23.5327, lng1: -46.7917,
			lat2: -23.5327, lng2: -46.7917,
			wantKm:    0,
			tolerance: 0.001,
		},
		{
			name: "Osasco to Paulista (~16km)",
			lat1: -23.5327, lng1: -46.7917,
			lat2: -23.5614, lng2: -46.6559,
			wantKm:    14.2,
			tolerance: 1.5,
		},
		{
			name: "Sao Paulo to Rio (~360km)",
			lat1: -23.5505, lng1: -46.6333,
			lat2: -22.9068, lng2: -43.1729,
			wantKm:    360,
			tolerance: 15,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceKm(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Errorf("DistanceKm() = %f, want %f (±%f)", got, tt.wantKm, tt.tolerance)
			}
		})
	}
}

func TestDistanceKm_Symmetry(t *testing.T) {
	d1 := DistanceKm(-23.5, -46.7, -22.9, -43.2)
	d2 := DistanceKm(-22.9, -43.2, -23.5, -46.7)
	if math.Abs(d1-d2) > 0.0001 {
		t.Errorf("distance is not symmetric: %f vs %f", d1, d2)
	}
}

func TestDistanceKm_NonNegative(t *testing.T) {
	if d := DistanceKm(0, 0, 0.0001, 0.0001); d < 0 {
		t.Errorf("expected non-negative distance, got %f", d)
	}
}

func TestSortCandidates(t *testing.T) {
	candidates := []Candidate{
		{DriverID: "c", DistanceKm: 5.0},
		{DriverID: "a", DistanceKm: 1.0},
		{DriverID: "b", DistanceKm: 3.0},
	}

	sortCandidates(candidates)

	if candidates[0].DriverID != "a" || candidates[1].DriverID != "b" || candidates[2].DriverID != "c" {
		t.Errorf("unexpected sort order: %v", candidates)
	}
}

func TestSortCandidates_StableOnTies(t *testing.T) {
	candidates := []Candidate{
		{DriverID: "first", DistanceKm: 2.0},
		{DriverID: "second", DistanceKm: 2.0},
		{DriverID: "third", DistanceKm: 2.0},
	}

	sortCandidates(candidates)

	if candidates[0].DriverID != "first" || candidates[1].DriverID != "second" || candidates[2].DriverID != "third" {
		t.Errorf("equal distances must keep input order: %v", candidates)
	}
}

func TestSortCandidates_Empty(t *testing.T) {
	var candidates []Candidate
	sortCandidates(candidates)
}
