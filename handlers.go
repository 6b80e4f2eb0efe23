package gtfslocator

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/julienschmidt/httprouter"

	"github.com/theoremus-urban-solutions/gtfs-locator/gtfs"
	"github.com/theoremus-urban-solutions/gtfs-locator/gtfsrt"
	"github.com/theoremus-urban-solutions/gtfs-locator/store"
)

// === realtime (protobuf .pb files) ===

func (s *Server) handleVehicles(w http.ResponseWriter, r *http.Request) {
	data, err := s.readDataFile(r.URL.Query().Get("file"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	vehicles, err := gtfsrt.DecodeVehicles(data)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, vehicles)
}

func (s *Server) handleTripUpdates(w http.ResponseWriter, r *http.Request) {
	data, err := s.readDataFile(r.URL.Query().Get("file"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	updates, err := gtfsrt.DecodeTripUpdates(data)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, updates)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	data, err := s.readDataFile(r.URL.Query().Get("file"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	alerts, err := gtfsrt.DecodeAlerts(data)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleEnrichedVehicles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	vehicleBytes, err := s.readDataFile(q.Get("file"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	zipPath, err := s.dataPath(q.Get("zip"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	idx, err := s.cache.GetOrLoad(zipPath)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var tripUpdateBytes []byte
	if q.Get("tripUpdates") != "" {
		tripUpdateBytes, err = s.readDataFile(q.Get("tripUpdates"))
		if err != nil {
			s.writeError(w, err)
			return
		}
	}

	enriched, err := gtfsrt.EnrichVehicles(vehicleBytes, idx, tripUpdateBytes)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, enriched)
}

// === static (GTFS zip bundles) ===

func (s *Server) loadBundle(r *http.Request) (*gtfs.FeedIndex, error) {
	zipPath, err := s.dataPath(r.URL.Query().Get("zip"))
	if err != nil {
		return nil, err
	}
	return s.cache.GetOrLoad(zipPath)
}

func (s *Server) handleStops(w http.ResponseWriter, r *http.Request) {
	idx, err := s.loadBundle(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	stops := make([]gtfs.Stop, 0, len(idx.Stops))
	for _, st := range idx.Stops {
		stops = append(stops, st)
	}
	sort.Slice(stops, func(i, j int) bool { return stops[i].ID < stops[j].ID })
	s.writeJSON(w, http.StatusOK, stops)
}

func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	idx, err := s.loadBundle(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	routes := make([]gtfs.Route, 0, len(idx.Routes))
	for _, rt := range idx.Routes {
		routes = append(routes, rt)
	}
	sort.Slice(routes, func(i, j int) bool { return routes[i].ID < routes[j].ID })
	s.writeJSON(w, http.StatusOK, routes)
}

func (s *Server) handleTrips(w http.ResponseWriter, r *http.Request) {
	idx, err := s.loadBundle(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	trips := make([]gtfs.Trip, 0, len(idx.Trips))
	for _, t := range idx.Trips {
		trips = append(trips, t)
	}
	sort.Slice(trips, func(i, j int) bool { return trips[i].ID < trips[j].ID })
	s.writeJSON(w, http.StatusOK, trips)
}

// === geospatial queries ===

func (s *Server) handleRoutesByPoint(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err := parseFloatParam(q, "lat")
	if err != nil {
		s.writeError(w, err)
		return
	}
	lon, err := parseFloatParam(q, "lon")
	if err != nil {
		s.writeError(w, err)
		return
	}
	radius, err := parseFloatParam(q, "radiusMeters")
	if err != nil {
		s.writeError(w, err)
		return
	}
	paths, err := s.bundlePaths(q.Get("zips"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	res, err := s.search.RoutesByPoint(lat, lon, radius, paths)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRoutesOnRoute(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err := parseFloatParam(q, "lat")
	if err != nil {
		s.writeError(w, err)
		return
	}
	lon, err := parseFloatParam(q, "lon")
	if err != nil {
		s.writeError(w, err)
		return
	}
	radius, err := parseFloatParam(q, "radiusMeters")
	if err != nil {
		s.writeError(w, err)
		return
	}
	heading, err := parseOptionalFloatParam(q, "headingDeg")
	if err != nil {
		s.writeError(w, err)
		return
	}
	paths, err := s.bundlePaths(q.Get("zips"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	res, err := s.matcher.RoutesOnRoute(lat, lon, radius, paths, heading)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// === reports and users ===

func (s *Server) handleUpsertUser(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	u, err := s.reports.UpsertUser(ps.ByName("id"))
	if err != nil {
		s.writeError(w, &RequestError{Msg: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	var dto store.CreateReport
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		s.writeError(w, &RequestError{Msg: "invalid json body"})
		return
	}
	rep, err := s.reports.CreateReport(dto)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, rep)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	rep, ok := s.reports.Report(ps.ByName("id"))
	if !ok {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "report not found"})
		return
	}
	s.writeJSON(w, http.StatusOK, rep)
}
