package locate

import (
	"sort"
	"strings"

	"github.com/theoremus-urban-solutions/gtfs-locator/geo"
	"github.com/theoremus-urban-solutions/gtfs-locator/gtfs"
)

// Searcher runs proximity searches across one or more static bundles.
type Searcher struct {
	multi *gtfs.MultiIndexCache
}

// NewSearcher wraps a multi-bundle cache.
func NewSearcher(multi *gtfs.MultiIndexCache) *Searcher {
	return &Searcher{multi: multi}
}

// RoutesByPoint returns the stops within radiusMeters of the point and every
// route whose trips visit at least one of them, merged across the given
// bundles. Routes come back sorted by short name (falling back to route id),
// nearby stops by ascending distance.
func (s *Searcher) RoutesByPoint(lat, lon, radiusMeters float64, zipPaths []string) (*RoutesByPointResult, error) {
	if err := validatePoint(lat, lon, radiusMeters); err != nil {
		return nil, err
	}
	indices, err := s.multi.GetOrLoadMany(zipPaths)
	if err != nil {
		return nil, err
	}

	res := &RoutesByPointResult{
		Query:       PointQuery{Lat: lat, Lon: lon, RadiusMeters: radiusMeters},
		Routes:      []RouteRef{},
		NearbyStops: []NearbyStop{},
	}

	for _, feedID := range sortedFeedIDs(indices) {
		idx := indices[feedID]

		nearStops := stopsWithinRadius(feedID, idx, lat, lon, radiusMeters)
		if len(nearStops) == 0 {
			continue
		}
		res.NearbyStops = append(res.NearbyStops, nearStops...)

		nearSet := make(map[string]struct{}, len(nearStops))
		for _, ns := range nearStops {
			nearSet[strings.ToLower(ns.StopID)] = struct{}{}
		}

		// First near stop per trip short-circuits the scan.
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

		for _, rid := range routeIDs {
			ref := RouteRef{FeedID: feedID, RouteID: rid}
			if rmeta, ok := idx.RouteByID(rid); ok {
				ref.RouteID = rmeta.ID
				ref.ShortName = rmeta.ShortName
				ref.LongName = rmeta.LongName
			}
			res.Routes = append(res.Routes, ref)
		}
	}

	res.Routes = dedupeRouteRefs(res.Routes)
	sort.SliceStable(res.Routes, func(i, j int) bool {
		a, b := routeSortName(res.Routes[i]), routeSortName(res.Routes[j])
		if a != b {
			return a < b
		}
		return res.Routes[i].FeedID < res.Routes[j].FeedID
	})
	sort.SliceStable(res.NearbyStops, func(i, j int) bool {
		if res.NearbyStops[i].DistanceMeters != res.NearbyStops[j].DistanceMeters {
			return res.NearbyStops[i].DistanceMeters < res.NearbyStops[j].DistanceMeters
		}
		if res.NearbyStops[i].FeedID != res.NearbyStops[j].FeedID {
			return res.NearbyStops[i].FeedID < res.NearbyStops[j].FeedID
		}
		return res.NearbyStops[i].StopID < res.NearbyStops[j].StopID
	})
	return res, nil
}

// stopsWithinRadius selects stops with coordinates inside the radius, sorted
// by ascending distance. Distances are rounded to 0.1 m for presentation.
func stopsWithinRadius(feedID string, idx *gtfs.FeedIndex, lat, lon, radiusMeters float64) []NearbyStop {
	var out []NearbyStop
	for _, s := range idx.Stops {
		if s.Lat == nil || s.Lon == nil {
			continue
		}
		d := geo.HaversineMeters(lat, lon, *s.Lat, *s.Lon)
		if d <= radiusMeters {
			out = append(out, NearbyStop{FeedID: feedID, StopID: s.ID, Name: s.Name, DistanceMeters: round1(d)})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DistanceMeters != out[j].DistanceMeters {
			return out[i].DistanceMeters < out[j].DistanceMeters
		}
		return out[i].StopID < out[j].StopID
	})
	return out
}

func sortedFeedIDs(indices map[string]*gtfs.FeedIndex) []string {
	ids := make([]string, 0, len(indices))
	for id := range indices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func routeSortName(r RouteRef) string {
	if r.ShortName != nil && *r.ShortName != "" {
		return *r.ShortName
	}
	return r.RouteID
}

func dedupeRouteRefs(refs []RouteRef) []RouteRef {
	seen := map[string]struct{}{}
	out := refs[:0]
	for _, r := range refs {
		k := r.FeedID + "\x00" + strings.ToLower(r.RouteID)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}
