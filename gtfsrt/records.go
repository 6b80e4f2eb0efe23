// Package gtfsrt decodes GTFS-Realtime protobuf feeds into typed records and
// joins vehicle records with a static feed index.
package gtfsrt

// VehicleRecord is one vehicle-position entity. Every field the feed may omit
// is a pointer; the timestamp defaults to 0 like the wire format.
type VehicleRecord struct {
	VehicleID      *string  `json:"vehicleId,omitempty"`
	TripID         *string  `json:"tripId,omitempty"`
	Lat            *float64 `json:"lat,omitempty"`
	Lon            *float64 `json:"lon,omitempty"`
	Bearing        *float64 `json:"bearing,omitempty"`
	Speed          *float64 `json:"speed,omitempty"`
	TimestampEpoch int64    `json:"timestampEpoch"`
}

// StopTimeUpdateRecord is one per-stop update inside a trip update.
type StopTimeUpdateRecord struct {
	StopID            *string `json:"stopId,omitempty"`
	ArrivalDelaySec   *int32  `json:"arrivalDelaySec,omitempty"`
	DepartureDelaySec *int32  `json:"departureDelaySec,omitempty"`
	ArrivalEpoch      *int64  `json:"arrivalEpoch,omitempty"`
	DepartureEpoch    *int64  `json:"departureEpoch,omitempty"`
}

// TripUpdateRecord is one trip-update entity with its per-stop updates in feed
// order.
type TripUpdateRecord struct {
	TripID          *string                `json:"tripId,omitempty"`
	RouteID         *string                `json:"routeId,omitempty"`
	StopTimeUpdates []StopTimeUpdateRecord `json:"stopTimeUpdates"`
}

// AlertRecord is one service-alert entity. InformedEntities holds one
// identifier per informed entity: its stop id, else route id, else agency id.
type AlertRecord struct {
	InformedEntities []string `json:"informedEntity"`
	Header           *string  `json:"header,omitempty"`
	Description      *string  `json:"description,omitempty"`
	StartEpoch       *int64   `json:"startEpoch,omitempty"`
	EndEpoch         *int64   `json:"endEpoch,omitempty"`
}

// EnrichedVehicle is a VehicleRecord joined with schedule context from the
// static index and, when a trip-update feed was supplied, delay/ETA data.
type EnrichedVehicle struct {
	VehicleRecord

	RouteID              *string  `json:"routeId,omitempty"`
	Headsign             *string  `json:"headsign,omitempty"`
	NextStopID           *string  `json:"nextStopId,omitempty"`
	NextStopName         *string  `json:"nextStopName,omitempty"`
	NextStopSequence     *int     `json:"nextStopSequence,omitempty"`
	DelayMinutes         *int     `json:"delayMinutes,omitempty"`
	ETAEpoch             *int64   `json:"etaEpoch,omitempty"`
	DistanceToNextStopKM *float64 `json:"distanceToNextStopKm,omitempty"`
}
