package gtfsrt

import (
	"math"
	"strings"

	"github.com/theoremus-urban-solutions/gtfs-locator/geo"
	"github.com/theoremus-urban-solutions/gtfs-locator/gtfs"
)

// tripUpdateHint is the per-trip digest of a trip-update feed used during
// enrichment. It is derived from the first stop-time update in feed order;
// that entry is not guaranteed to be the next unvisited stop, which is a known
// limitation kept from the first version of this service.
type tripUpdateHint struct {
	delayMin   *int
	etaEpoch   *int64
	nextStopID *string
	nextSeq    *int
}

// EnrichVehicles decodes a vehicle-position feed and joins each record with
// the static index: route id, headsign, next stop and, when tripUpdateFeed is
// non-nil, delay minutes and ETA. Vehicles whose trip id is unknown to the
// index pass through with only their raw fields.
func EnrichVehicles(vehicleFeed []byte, idx *gtfs.FeedIndex, tripUpdateFeed []byte) ([]EnrichedVehicle, error) {
	var hints map[string]tripUpdateHint
	if tripUpdateFeed != nil {
		var err error
		hints, err = buildTripUpdateHints(tripUpdateFeed)
		if err != nil {
			return nil, err
		}
	}

	vehicles, err := DecodeVehicles(vehicleFeed)
	if err != nil {
		return nil, err
	}

	out := make([]EnrichedVehicle, 0, len(vehicles))
	for _, v := range vehicles {
		ev := EnrichedVehicle{VehicleRecord: v}
		if v.TripID != nil {
			if trip, ok := idx.TripByID(*v.TripID); ok {
				enrichFromSchedule(&ev, idx, trip, hints)
			}
		}
		out = append(out, ev)
	}
	return out, nil
}

func enrichFromSchedule(ev *EnrichedVehicle, idx *gtfs.FeedIndex, trip gtfs.Trip, hints map[string]tripUpdateHint) {
	ev.RouteID = &trip.RouteID
	ev.Headsign = trip.Headsign

	seq, ok := idx.StopSequenceForTrip(trip.ID)
	if !ok {
		return
	}

	// Trip updates first: they carry the next stop and its ETA.
	if hints != nil {
		if h, ok := hints[strings.ToLower(trip.ID)]; ok {
			ev.DelayMinutes = h.delayMin
			ev.ETAEpoch = h.etaEpoch
			ev.NextStopID = h.nextStopID
			ev.NextStopSequence = h.nextSeq

			if ev.NextStopID != nil && ev.Lat != nil && ev.Lon != nil {
				if s, ok := idx.StopByID(*ev.NextStopID); ok && s.Lat != nil && s.Lon != nil {
					ev.NextStopName = s.Name
					d := geo.HaversineKM(*ev.Lat, *ev.Lon, *s.Lat, *s.Lon)
					ev.DistanceToNextStopKM = &d
				}
			}
		}
	}

	// Fallback: nearest stop of the whole sequence by great-circle distance.
	// Nearest, not next - an already-passed stop can win.
	if ev.NextStopID == nil && ev.Lat != nil && ev.Lon != nil {
		var bestStop *gtfs.Stop
		bestDist := math.MaxFloat64
		for _, stopID := range seq.StopIDs {
			s, ok := idx.StopByID(stopID)
			if !ok || s.Lat == nil || s.Lon == nil {
				continue
			}
			d := geo.HaversineKM(*ev.Lat, *ev.Lon, *s.Lat, *s.Lon)
			if d < bestDist {
				bestDist = d
				stop := s
				bestStop = &stop
			}
		}
		if bestStop != nil {
			ev.NextStopID = &bestStop.ID
			if pos, ok := seq.SeqByStop[strings.ToLower(bestStop.ID)]; ok {
				ev.NextStopSequence = &pos
			}
			ev.NextStopName = bestStop.Name
			ev.DistanceToNextStopKM = &bestDist
		}
	}
}

// buildTripUpdateHints digests a trip-update feed into trip id -> hint, taking
// the first stop-time update per trip and converting its delay from seconds to
// minutes, rounded to the nearest integer.
func buildTripUpdateHints(data []byte) (map[string]tripUpdateHint, error) {
	fm, err := decodeFeed(data)
	if err != nil {
		return nil, err
	}
	hints := map[string]tripUpdateHint{}
	for _, e := range fm.Entity {
		tu := e.GetTripUpdate()
		if tu == nil || tu.GetTrip().GetTripId() == "" {
			continue
		}
		var h tripUpdateHint
		if stus := tu.GetStopTimeUpdate(); len(stus) > 0 {
			next := stus[0]
			var delaySec *int32
			if arr := next.GetArrival(); arr != nil && arr.Delay != nil {
				delaySec = arr.Delay
			} else if dep := next.GetDeparture(); dep != nil && dep.Delay != nil {
				delaySec = dep.Delay
			}
			if delaySec != nil {
				m := int(math.Round(float64(*delaySec) / 60.0))
				h.delayMin = &m
			}
			if arr := next.GetArrival(); arr != nil && arr.Time != nil {
				h.etaEpoch = arr.Time
			} else if dep := next.GetDeparture(); dep != nil && dep.Time != nil {
				h.etaEpoch = dep.Time
			}
			h.nextStopID = next.StopId
			if next.StopSequence != nil {
				n := int(*next.StopSequence)
				h.nextSeq = &n
			}
		}
		hints[strings.ToLower(tu.GetTrip().GetTripId())] = h
	}
	return hints, nil
}
