package gtfsrt

import (
	"fmt"
	"strings"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"
)

// MalformedFeedError reports a binary payload that cannot be decoded as a
// GTFS-Realtime FeedMessage.
type MalformedFeedError struct {
	Err error
}

func (e *MalformedFeedError) Error() string { return fmt.Sprintf("malformed realtime feed: %v", e.Err) }
func (e *MalformedFeedError) Unwrap() error { return e.Err }

func decodeFeed(data []byte) (*gtfsrtpb.FeedMessage, error) {
	var fm gtfsrtpb.FeedMessage
	if err := proto.Unmarshal(data, &fm); err != nil {
		return nil, &MalformedFeedError{Err: err}
	}
	return &fm, nil
}

// DecodeVehicles scans the feed's entity list once and returns every
// vehicle-position entity as a typed record. Entities of other kinds are
// skipped silently.
func DecodeVehicles(data []byte) ([]VehicleRecord, error) {
	fm, err := decodeFeed(data)
	if err != nil {
		return nil, err
	}
	var out []VehicleRecord
	for _, e := range fm.Entity {
		v := e.GetVehicle()
		if v == nil {
			continue
		}
		rec := VehicleRecord{
			// unsigned wire timestamp, truncated to signed epoch seconds
			TimestampEpoch: int64(v.GetTimestamp()),
		}
		if veh := v.GetVehicle(); veh != nil && veh.Id != nil {
			rec.VehicleID = veh.Id
		}
		if trip := v.GetTrip(); trip != nil && trip.TripId != nil {
			rec.TripID = trip.TripId
		}
		if pos := v.GetPosition(); pos != nil {
			rec.Lat = f32opt(pos.Latitude)
			rec.Lon = f32opt(pos.Longitude)
			rec.Bearing = f32opt(pos.Bearing)
			rec.Speed = f32opt(pos.Speed)
		}
		out = append(out, rec)
	}
	return out, nil
}

// DecodeTripUpdates scans the feed's entity list once and returns every
// trip-update entity with its stop-time updates in feed order.
func DecodeTripUpdates(data []byte) ([]TripUpdateRecord, error) {
	fm, err := decodeFeed(data)
	if err != nil {
		return nil, err
	}
	var out []TripUpdateRecord
	for _, e := range fm.Entity {
		tu := e.GetTripUpdate()
		if tu == nil {
			continue
		}
		rec := TripUpdateRecord{StopTimeUpdates: []StopTimeUpdateRecord{}}
		if trip := tu.GetTrip(); trip != nil {
			rec.TripID = trip.TripId
			rec.RouteID = trip.RouteId
		}
		for _, stu := range tu.GetStopTimeUpdate() {
			item := StopTimeUpdateRecord{StopID: stu.StopId}
			if arr := stu.GetArrival(); arr != nil {
				item.ArrivalDelaySec = arr.Delay
				item.ArrivalEpoch = arr.Time
			}
			if dep := stu.GetDeparture(); dep != nil {
				item.DepartureDelaySec = dep.Delay
				item.DepartureEpoch = dep.Time
			}
			rec.StopTimeUpdates = append(rec.StopTimeUpdates, item)
		}
		out = append(out, rec)
	}
	return out, nil
}

// DecodeAlerts scans the feed's entity list once and returns every
// service-alert entity. Per informed entity the first non-empty of stop, route
// and agency id is kept; the first translation and the first active period win.
func DecodeAlerts(data []byte) ([]AlertRecord, error) {
	fm, err := decodeFeed(data)
	if err != nil {
		return nil, err
	}
	var out []AlertRecord
	for _, e := range fm.Entity {
		a := e.GetAlert()
		if a == nil {
			continue
		}
		rec := AlertRecord{InformedEntities: []string{}}
		for _, ie := range a.GetInformedEntity() {
			id := ie.GetStopId()
			if id == "" {
				id = ie.GetRouteId()
			}
			if id == "" {
				id = ie.GetAgencyId()
			}
			if strings.TrimSpace(id) == "" {
				continue
			}
			rec.InformedEntities = append(rec.InformedEntities, id)
		}
		rec.Header = firstTranslation(a.GetHeaderText())
		rec.Description = firstTranslation(a.GetDescriptionText())
		if periods := a.GetActivePeriod(); len(periods) > 0 {
			rec.StartEpoch = u64opt(periods[0].Start)
			rec.EndEpoch = u64opt(periods[0].End)
		}
		out = append(out, rec)
	}
	return out, nil
}

func firstTranslation(ts *gtfsrtpb.TranslatedString) *string {
	if ts == nil || len(ts.Translation) == 0 {
		return nil
	}
	return ts.Translation[0].Text
}

func f32opt(v *float32) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}

func u64opt(v *uint64) *int64 {
	if v == nil {
		return nil
	}
	i := int64(*v)
	return &i
}
