package gtfslocator

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theoremus-urban-solutions/gtfs-locator/config"
	"github.com/theoremus-urban-solutions/gtfs-locator/gtfs"
	"github.com/theoremus-urban-solutions/gtfs-locator/gtfsrt"
	"github.com/theoremus-urban-solutions/gtfs-locator/internal/logging"
	"github.com/theoremus-urban-solutions/gtfs-locator/internal/testutil"
	"github.com/theoremus-urban-solutions/gtfs-locator/locate"
	"github.com/theoremus-urban-solutions/gtfs-locator/store"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dataDir := t.TempDir()
	cfg := config.AppConfig{
		Server: config.ServerConfig{Port: 0},
		GTFS:   config.GTFSConfig{DataDir: dataDir},
	}
	return NewServer(cfg, logging.New(io.Discard, slog.LevelError)), dataDir
}

func writeVehicleFeed(t *testing.T, dataDir, name string) {
	t.Helper()
	data := testutil.MarshalFeed(t, &gtfsrtpb.FeedMessage{
		Header: testutil.FeedHeader(),
		Entity: []*gtfsrtpb.FeedEntity{
			testutil.VehicleEntity("e1", "bus-1", "T1", 0, 0.006, 1700000000),
		},
	})
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, name), data, 0o644))
}

func doGET(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestRootAndHealth(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doGET(t, s, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	banner := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "gtfs-locator", banner["service"])
	assert.Equal(t, true, banner["ok"])

	rec = doGET(t, s, "/api/health")
	require.Equal(t, http.StatusOK, rec.Code)
	health := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "ok", health["status"])
}

func TestVehiclesEndpoint(t *testing.T) {
	s, dataDir := newTestServer(t)
	writeVehicleFeed(t, dataDir, "vehicles.pb")

	rec := doGET(t, s, "/api/rt/vehicles?file=vehicles.pb")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	vehicles := decodeBody[[]gtfsrt.VehicleRecord](t, rec)
	require.Len(t, vehicles, 1)
	require.NotNil(t, vehicles[0].VehicleID)
	assert.Equal(t, "bus-1", *vehicles[0].VehicleID)
}

func TestVehiclesEndpointErrors(t *testing.T) {
	s, dataDir := newTestServer(t)

	// No file parameter.
	rec := doGET(t, s, "/api/rt/vehicles")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// File does not exist.
	rec = doGET(t, s, "/api/rt/vehicles?file=missing.pb")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Traversal outside the data dir.
	rec = doGET(t, s, "/api/rt/vehicles?file="+url.QueryEscape("../../etc/passwd"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Bytes that are not a FeedMessage.
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "junk.pb"), []byte{0xff, 0x01}, 0o644))
	rec = doGET(t, s, "/api/rt/vehicles?file=junk.pb")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestStaticListings(t *testing.T) {
	s, dataDir := newTestServer(t)
	testutil.WriteBundleZip(t, dataDir, "city.zip", testutil.MinimalBundleFiles())

	rec := doGET(t, s, "/api/static/stops?zip=city.zip")
	require.Equal(t, http.StatusOK, rec.Code)
	stops := decodeBody[[]gtfs.Stop](t, rec)
	require.Len(t, stops, 3)
	assert.Equal(t, "S1", stops[0].ID)
	assert.Equal(t, "S3", stops[2].ID)

	rec = doGET(t, s, "/api/static/routes?zip=city.zip")
	require.Equal(t, http.StatusOK, rec.Code)
	routes := decodeBody[[]gtfs.Route](t, rec)
	require.Len(t, routes, 1)
	assert.Equal(t, "R1", routes[0].ID)

	rec = doGET(t, s, "/api/static/trips?zip=city.zip")
	require.Equal(t, http.StatusOK, rec.Code)
	trips := decodeBody[[]gtfs.Trip](t, rec)
	require.Len(t, trips, 1)
	assert.Equal(t, "T1", trips[0].ID)
}

func TestStaticListingsMalformedBundle(t *testing.T) {
	s, dataDir := newTestServer(t)
	files := testutil.MinimalBundleFiles()
	delete(files, "stops.txt")
	testutil.WriteBundleZip(t, dataDir, "bad.zip", files)

	rec := doGET(t, s, "/api/static/stops?zip=bad.zip")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRoutesByPointEndpoint(t *testing.T) {
	s, dataDir := newTestServer(t)
	testutil.WriteBundleZip(t, dataDir, "city.zip", testutil.MinimalBundleFiles())

	rec := doGET(t, s, "/api/static/routes-by-point?lat=0&lon=0.0005&radiusMeters=500&zips=city.zip")
	require.Equal(t, http.StatusOK, rec.Code)

	res := decodeBody[locate.RoutesByPointResult](t, rec)
	require.Len(t, res.Routes, 1)
	assert.Equal(t, "city", res.Routes[0].FeedID)
	assert.Equal(t, "R1", res.Routes[0].RouteID)
	require.Len(t, res.NearbyStops, 1)
	assert.Equal(t, "S1", res.NearbyStops[0].StopID)
}

func TestRoutesByPointEndpointErrors(t *testing.T) {
	s, dataDir := newTestServer(t)
	testutil.WriteBundleZip(t, dataDir, "city.zip", testutil.MinimalBundleFiles())

	// lat is not a number.
	rec := doGET(t, s, "/api/static/routes-by-point?lat=abc&lon=0&radiusMeters=500&zips=city.zip")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// No zips parameter.
	rec = doGET(t, s, "/api/static/routes-by-point?lat=0&lon=0&radiusMeters=500")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown bundle is a 404 before any parsing happens.
	rec = doGET(t, s, "/api/static/routes-by-point?lat=0&lon=0&radiusMeters=500&zips=ghost.zip")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Out-of-range coordinate is the engine's 400.
	rec = doGET(t, s, "/api/static/routes-by-point?lat=91&lon=0&radiusMeters=500&zips=city.zip")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoutesOnRouteEndpoint(t *testing.T) {
	s, dataDir := newTestServer(t)
	files := testutil.MinimalBundleFiles()
	files["trips.txt"] = "route_id,service_id,trip_id,trip_headsign,shape_id\n" +
		"R1,WK,T1,Downtown,SH1\n"
	files["shapes.txt"] = "shape_id,shape_pt_lat,shape_pt_lon,shape_pt_sequence\n" +
		"SH1,0,0,1\nSH1,0,0.01,2\nSH1,0,0.02,3\n"
	testutil.WriteBundleZip(t, dataDir, "city.zip", files)

	rec := doGET(t, s, "/api/static/routes-on-route?lat=0.001&lon=0.01&radiusMeters=500&headingDeg=90&zips=city.zip")
	require.Equal(t, http.StatusOK, rec.Code)

	res := decodeBody[locate.RoutesOnRouteResult](t, rec)
	require.NotNil(t, res.Query.HeadingDeg)
	assert.Equal(t, 90.0, *res.Query.HeadingDeg)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "shape", res.Candidates[0].Method)
	assert.Equal(t, "R1", res.Candidates[0].RouteID)
}

func TestEnrichedVehiclesEndpoint(t *testing.T) {
	s, dataDir := newTestServer(t)
	testutil.WriteBundleZip(t, dataDir, "city.zip", testutil.MinimalBundleFiles())
	writeVehicleFeed(t, dataDir, "vehicles.pb")

	tuData := testutil.MarshalFeed(t, &gtfsrtpb.FeedMessage{
		Header: testutil.FeedHeader(),
		Entity: []*gtfsrtpb.FeedEntity{{
			Id: testutil.Ptr("u1"),
			TripUpdate: &gtfsrtpb.TripUpdate{
				Trip: &gtfsrtpb.TripDescriptor{TripId: testutil.Ptr("T1")},
				StopTimeUpdate: []*gtfsrtpb.TripUpdate_StopTimeUpdate{{
					StopId:       testutil.Ptr("S3"),
					StopSequence: testutil.Ptr(uint32(3)),
					Arrival: &gtfsrtpb.TripUpdate_StopTimeEvent{
						Delay: testutil.Ptr(int32(120)),
					},
				}},
			},
		}},
	})
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "updates.pb"), tuData, 0o644))

	rec := doGET(t, s, "/api/rt/vehicles/enriched?file=vehicles.pb&zip=city.zip&tripUpdates=updates.pb")
	require.Equal(t, http.StatusOK, rec.Code)

	enriched := decodeBody[[]gtfsrt.EnrichedVehicle](t, rec)
	require.Len(t, enriched, 1)
	ev := enriched[0]
	require.NotNil(t, ev.RouteID)
	assert.Equal(t, "R1", *ev.RouteID)
	require.NotNil(t, ev.NextStopID)
	assert.Equal(t, "S3", *ev.NextStopID)
	require.NotNil(t, ev.DelayMinutes)
	assert.Equal(t, 2, *ev.DelayMinutes)
}

func TestEnrichedVehiclesWithoutTripUpdates(t *testing.T) {
	s, dataDir := newTestServer(t)
	testutil.WriteBundleZip(t, dataDir, "city.zip", testutil.MinimalBundleFiles())
	writeVehicleFeed(t, dataDir, "vehicles.pb")

	rec := doGET(t, s, "/api/rt/vehicles/enriched?file=vehicles.pb&zip=city.zip")
	require.Equal(t, http.StatusOK, rec.Code)

	enriched := decodeBody[[]gtfsrt.EnrichedVehicle](t, rec)
	require.Len(t, enriched, 1)
	require.NotNil(t, enriched[0].NextStopID)
	assert.Equal(t, "S2", *enriched[0].NextStopID)
	assert.Nil(t, enriched[0].DelayMinutes)
}

func TestUserAndReportEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPut, "/api/users/alice", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	user := decodeBody[store.User](t, rec)
	assert.Equal(t, "alice", user.ID)

	body := `{"userId":"alice","title":"Delay on line 1","lat":50.06,"lon":19.94,"delayMinutes":10}`
	req = httptest.NewRequest(http.MethodPost, "/api/reports", strings.NewReader(body))
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	rep := decodeBody[store.Report](t, rec)
	assert.Equal(t, "pending", rep.Status)
	assert.NotEmpty(t, rep.ID)

	rec = doGET(t, s, "/api/reports/"+rep.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[store.Report](t, rec)
	assert.Equal(t, rep.ID, got.ID)

	rec = doGET(t, s, "/api/reports/unknown")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateReportErrors(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/reports", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := `{"userId":"alice","lat":99,"lon":0}`
	req = httptest.NewRequest(http.MethodPost, "/api/reports", strings.NewReader(body))
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, dataDir := newTestServer(t)
	writeVehicleFeed(t, dataDir, "vehicles.pb")

	// One instrumented query so the counter has a sample.
	rec := doGET(t, s, "/api/rt/vehicles?file=vehicles.pb")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doGET(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "locator_queries_total")
	assert.Contains(t, rec.Body.String(), `operation="rt_vehicles"`)
	assert.Contains(t, rec.Body.String(), "locator_feed_index_builds_total")
}
