package locate

import (
	"math"
	"sort"
	"strings"

	"github.com/theoremus-urban-solutions/gtfs-locator/geo"
	"github.com/theoremus-urban-solutions/gtfs-locator/gtfs"
)

// bearingPenaltyPerDeg converts heading mismatch into score units: 2 m per
// degree of angular difference.
const bearingPenaltyPerDeg = 2.0

// Matcher ranks route candidates for a moving point against shape polylines,
// falling back to stop proximity for bundles without shapes.
type Matcher struct {
	multi *gtfs.MultiIndexCache
}

// NewMatcher wraps a multi-bundle cache.
func NewMatcher(multi *gtfs.MultiIndexCache) *Matcher {
	return &Matcher{multi: multi}
}

// RoutesOnRoute returns candidates within radiusMeters of the point, ranked
// by ascending score. With shapes the score is the polyline distance plus a
// penalty for heading mismatch against the best segment's bearing; without
// shapes it is the distance to the nearest qualifying stop and headings are
// not assessed.
func (m *Matcher) RoutesOnRoute(lat, lon, radiusMeters float64, zipPaths []string, headingDeg *float64) (*RoutesOnRouteResult, error) {
	if err := validatePoint(lat, lon, radiusMeters); err != nil {
		return nil, err
	}
	if headingDeg != nil && (math.IsNaN(*headingDeg) || math.IsInf(*headingDeg, 0)) {
		return nil, &ValidationError{Msg: "invalid heading"}
	}
	indices, err := m.multi.GetOrLoadMany(zipPaths)
	if err != nil {
		return nil, err
	}

	res := &RoutesOnRouteResult{
		Query:      PointQuery{Lat: lat, Lon: lon, RadiusMeters: radiusMeters, HeadingDeg: headingDeg},
		Candidates: []Candidate{},
	}

	for _, feedID := range sortedFeedIDs(indices) {
		idx := indices[feedID]
		if idx.HasShapes() && len(idx.ShapeRoutes) > 0 {
			res.Candidates = append(res.Candidates, shapeCandidates(feedID, idx, lat, lon, radiusMeters, headingDeg)...)
		} else {
			res.Candidates = append(res.Candidates, stopCandidates(feedID, idx, lat, lon, radiusMeters, headingDeg)...)
		}
	}

	res.Candidates = dedupeCandidates(res.Candidates)
	sort.SliceStable(res.Candidates, func(i, j int) bool {
		if res.Candidates[i].Score != res.Candidates[j].Score {
			return res.Candidates[i].Score < res.Candidates[j].Score
		}
		a, b := candidateSortName(res.Candidates[i]), candidateSortName(res.Candidates[j])
		if a != b {
			return a < b
		}
		return res.Candidates[i].FeedID < res.Candidates[j].FeedID
	})
	return res, nil
}

func shapeCandidates(feedID string, idx *gtfs.FeedIndex, lat, lon, radiusMeters float64, headingDeg *float64) []Candidate {
	var out []Candidate
	for shapeID, poly := range idx.Shapes {
		routeID, ok := idx.ShapeRoutes[shapeID]
		if !ok {
			continue
		}
		distM, segBearing, ok := geo.PointToPolylineMeters(lat, lon, poly)
		if !ok || distM > radiusMeters {
			continue
		}

		penalty := 0.0
		if headingDeg != nil {
			penalty = headingDiffDeg(*headingDeg, segBearing)
		}
		score := distM + penalty*bearingPenaltyPerDeg

		c := Candidate{
			FeedID:         feedID,
			RouteID:        routeID,
			DistanceMeters: round1(distM),
			HeadingDeg:     headingDeg,
			Score:          round2(score),
			Method:         "shape",
		}
		sb := round1(segBearing)
		c.SegmentBearingDeg = &sb
		if rmeta, ok := idx.RouteByID(routeID); ok {
			c.RouteID = rmeta.ID
			c.ShortName = rmeta.ShortName
			c.LongName = rmeta.LongName
		}
		out = append(out, c)
	}
	return out
}

func stopCandidates(feedID string, idx *gtfs.FeedIndex, lat, lon, radiusMeters float64, headingDeg *float64) []Candidate {
	nearStops := stopsWithinRadius(feedID, idx, lat, lon, radiusMeters)
	if len(nearStops) == 0 {
		return nil
	}
	nearSet := make(map[string]struct{}, len(nearStops))
	for _, ns := range nearStops {
		nearSet[strings.ToLower(ns.StopID)] = struct{}{}
	}

	routeIDs := map[string]string{}
	for _, seq := range idx.StopSeqs {
		for _, stopID := range seq.StopIDs {
			if _, ok := nearSet[strings.ToLower(stopID)]; ok {
				if trip, ok := idx.TripByID(seq.TripID); ok {
					routeIDs[strings.ToLower(trip.RouteID)] = trip.RouteID
				}
				break
			}
		}
	}

	// Score is the nearest qualifying stop's distance; no bearing term in the
	// shapeless fallback.
	best := nearStops[0].DistanceMeters
	var out []Candidate
	for _, rid := range routeIDs {
		c := Candidate{
			FeedID:         feedID,
			RouteID:        rid,
			DistanceMeters: round1(best),
			HeadingDeg:     headingDeg,
			Score:          round1(best),
			Method:         "stops",
		}
		if rmeta, ok := idx.RouteByID(rid); ok {
			c.RouteID = rmeta.ID
			c.ShortName = rmeta.ShortName
			c.LongName = rmeta.LongName
		}
		out = append(out, c)
	}
	return out
}

// headingDiffDeg reduces the raw difference mod 360 and folds values above 180
// back into [0,180].
func headingDiffDeg(heading, segBearing float64) float64 {
	a := math.Mod(heading-segBearing+360.0, 360.0)
	if a < 0 {
		a += 360.0
	}
	if a > 180.0 {
		a -= 180.0
	}
	return math.Abs(a)
}

func candidateSortName(c Candidate) string {
	if c.ShortName != nil && *c.ShortName != "" {
		return *c.ShortName
	}
	return c.RouteID
}

// dedupeCandidates keeps the minimum-score record per (feed id, route id).
func dedupeCandidates(cands []Candidate) []Candidate {
	bestByKey := map[string]int{}
	var out []Candidate
	for _, c := range cands {
		k := c.FeedID + "\x00" + strings.ToLower(c.RouteID)
		if i, ok := bestByKey[k]; ok {
			if c.Score < out[i].Score {
				out[i] = c
			}
			continue
		}
		bestByKey[k] = len(out)
		out = append(out, c)
	}
	return out
}
