// Package locate answers geospatial queries against one or more static feed
// indices: stops and routes near a point, and ranked route candidates for a
// moving point with an optional heading.
package locate

import (
	"fmt"
	"math"
)

// PointQuery echoes the caller's query in every result.
type PointQuery struct {
	Lat          float64  `json:"lat"`
	Lon          float64  `json:"lon"`
	RadiusMeters float64  `json:"radiusMeters"`
	HeadingDeg   *float64 `json:"headingDeg,omitempty"`
}

// NearbyStop is one stop within the query radius, tagged with its feed.
type NearbyStop struct {
	FeedID         string  `json:"feedId"`
	StopID         string  `json:"stopId"`
	Name           *string `json:"name,omitempty"`
	DistanceMeters float64 `json:"distanceMeters"`
}

// RouteRef identifies a route within a feed, with its display names.
type RouteRef struct {
	FeedID    string  `json:"feedId"`
	RouteID   string  `json:"routeId"`
	ShortName *string `json:"routeShortName,omitempty"`
	LongName  *string `json:"routeLongName,omitempty"`
}

// RoutesByPointResult is the proximity-search response.
type RoutesByPointResult struct {
	Query       PointQuery   `json:"query"`
	Routes      []RouteRef   `json:"routes"`
	NearbyStops []NearbyStop `json:"nearbyStops"`
}

// Candidate is a scored route proposed as the best match for the queried
// point and heading. Method is "shape" when matched against the route's shape
// polyline and "stops" for the shapeless fallback.
type Candidate struct {
	FeedID            string   `json:"feedId"`
	RouteID           string   `json:"routeId"`
	ShortName         *string  `json:"routeShortName,omitempty"`
	LongName          *string  `json:"routeLongName,omitempty"`
	DistanceMeters    float64  `json:"distanceMeters"`
	SegmentBearingDeg *float64 `json:"segmentBearingDeg,omitempty"`
	HeadingDeg        *float64 `json:"headingDeg,omitempty"`
	Score             float64  `json:"score"`
	Method            string   `json:"method"`
}

// RoutesOnRouteResult is the route-matcher response, candidates ranked by
// ascending score.
type RoutesOnRouteResult struct {
	Query      PointQuery  `json:"query"`
	Candidates []Candidate `json:"candidates"`
}

// ValidationError reports caller-supplied coordinates or parameters that
// cannot be queried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validatePoint(lat, lon, radiusMeters float64) error {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || lat < -90 || lat > 90 {
		return &ValidationError{Msg: fmt.Sprintf("invalid latitude: %v", lat)}
	}
	if math.IsNaN(lon) || math.IsInf(lon, 0) || lon < -180 || lon > 180 {
		return &ValidationError{Msg: fmt.Sprintf("invalid longitude: %v", lon)}
	}
	if math.IsNaN(radiusMeters) || math.IsInf(radiusMeters, 0) || radiusMeters <= 0 {
		return &ValidationError{Msg: fmt.Sprintf("invalid radius: %v", radiusMeters)}
	}
	return nil
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
