package gtfs

import (
	"strings"

	"github.com/theoremus-urban-solutions/gtfs-locator/geo"
)

// Stop is one row of stops.txt. Coordinates are absent when the bundle omits
// them.
type Stop struct {
	ID   string   `json:"stopId"`
	Name *string  `json:"name,omitempty"`
	Lat  *float64 `json:"lat,omitempty"`
	Lon  *float64 `json:"lon,omitempty"`
}

// Route is one row of routes.txt.
type Route struct {
	ID        string  `json:"routeId"`
	ShortName *string `json:"routeShortName,omitempty"`
	LongName  *string `json:"routeLongName,omitempty"`
}

// Trip is one row of trips.txt.
type Trip struct {
	ID        string  `json:"tripId"`
	RouteID   string  `json:"routeId"`
	ServiceID string  `json:"serviceId"`
	Headsign  *string `json:"headsign,omitempty"`
	ShapeID   *string `json:"shapeId,omitempty"`
}

// StopSequence is the ordered list of stops a trip visits, with a reverse map
// from stop id to its 1-based position.
type StopSequence struct {
	TripID    string
	StopIDs   []string
	SeqByStop map[string]int
}

// FeedIndex holds one static bundle fully indexed in memory. It is built once
// and never mutated afterwards; the cache hands out the same instance to every
// caller. Map keys are lowercased stop/route/trip/shape ids.
type FeedIndex struct {
	Stops    map[string]Stop
	Routes   map[string]Route
	Trips    map[string]Trip
	StopSeqs map[string]StopSequence

	// Shapes is empty when the bundle has no shapes.txt. ShapeRoutes maps each
	// shape to the route of the first trip referencing it.
	Shapes      map[string][]geo.Point
	ShapeRoutes map[string]string
}

// key normalizes an id for case-insensitive lookups.
func key(id string) string { return strings.ToLower(id) }

// StopByID looks up a stop case-insensitively.
func (x *FeedIndex) StopByID(id string) (Stop, bool) {
	s, ok := x.Stops[key(id)]
	return s, ok
}

// RouteByID looks up a route case-insensitively.
func (x *FeedIndex) RouteByID(id string) (Route, bool) {
	r, ok := x.Routes[key(id)]
	return r, ok
}

// TripByID looks up a trip case-insensitively.
func (x *FeedIndex) TripByID(id string) (Trip, bool) {
	t, ok := x.Trips[key(id)]
	return t, ok
}

// StopSequenceForTrip looks up a trip's stop sequence case-insensitively.
func (x *FeedIndex) StopSequenceForTrip(tripID string) (StopSequence, bool) {
	s, ok := x.StopSeqs[key(tripID)]
	return s, ok
}

// HasShapes reports whether shape-based matching is available for this bundle.
func (x *FeedIndex) HasShapes() bool { return len(x.Shapes) > 0 }
