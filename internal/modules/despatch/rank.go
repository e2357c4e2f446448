// README: Candidate ranking — distance-sorted driver candidates for a pickup.
package despatch

import "rebeca/internal/types"

// DriverInfo is the slice of the driver directory the ranker needs. The
// caller (the ride coordinator) fetches it; this package never queries the
// directory itself.
type DriverInfo struct {
	ID       types.ID
	Name     string
	Status   string
	Location *types.Point
}

const driverAvailable = "available"

// Rank filters drivers to those available with a known location, computes
// each one's distance from the pickup point, and returns them nearest first.
// Ties keep input order. An empty result is not an error; callers decide how
// to handle a ride nobody can serve.
func Rank(pickup types.Point, drivers []DriverInfo) []Candidate {
	candidates := make([]Candidate, 0, len(drivers))
	for _, d := range drivers {
		if d.Status != driverAvailable || d.Location == nil {
			continue
		}
		candidates = append(candidates, Candidate{
			DriverID:   d.ID,
			Name:       d.Name,
			DistanceKm: DistanceKm(pickup.Lat, pickup.Lng, d.Location.Lat, d.Location.Lng),
		})
	}
	sortCandidates(candidates)
	return candidates
}
