// Package testutil builds static bundle and realtime feed fixtures in-process
// for tests.
package testutil

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"
)

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }

// WriteBundleZip writes a zip archive named name under dir containing the
// given table files and returns its path.
func WriteBundleZip(t *testing.T, dir, name string, files map[string]string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create bundle zip: %v", err)
	}
	zw := zip.NewWriter(f)
	for entry, content := range files {
		w, err := zw.Create(entry)
		if err != nil {
			t.Fatalf("create zip entry %s: %v", entry, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write zip entry %s: %v", entry, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
	return path
}

// MinimalBundleFiles is a one-route, one-trip bundle with three stops along
// the equator, matching the shared end-to-end scenario.
func MinimalBundleFiles() map[string]string {
	return map[string]string{
		"stops.txt": "stop_id,stop_name,stop_lat,stop_lon\n" +
			"S1,First,0,0\n" +
			"S2,Second,0,0.01\n" +
			"S3,Third,0,0.02\n",
		"routes.txt": "route_id,route_short_name,route_long_name\n" +
			"R1,1,Main Line\n",
		"trips.txt": "route_id,service_id,trip_id,trip_headsign\n" +
			"R1,WK,T1,Downtown\n",
		"stop_times.txt": "trip_id,stop_id,stop_sequence\n" +
			"T1,S1,1\nT1,S2,2\nT1,S3,3\n",
	}
}

// MarshalFeed serializes a FeedMessage to wire bytes.
func MarshalFeed(t *testing.T, fm *gtfsrtpb.FeedMessage) []byte {
	t.Helper()
	data, err := proto.Marshal(fm)
	if err != nil {
		t.Fatalf("marshal feed: %v", err)
	}
	return data
}

// FeedHeader is the minimal valid header every FeedMessage needs.
func FeedHeader() *gtfsrtpb.FeedHeader {
	return &gtfsrtpb.FeedHeader{GtfsRealtimeVersion: Ptr("2.0")}
}

// VehicleEntity builds a vehicle-position entity at the given coordinates.
func VehicleEntity(entityID, vehicleID, tripID string, lat, lon float32, ts uint64) *gtfsrtpb.FeedEntity {
	return &gtfsrtpb.FeedEntity{
		Id: Ptr(entityID),
		Vehicle: &gtfsrtpb.VehiclePosition{
			Vehicle:   &gtfsrtpb.VehicleDescriptor{Id: Ptr(vehicleID)},
			Trip:      &gtfsrtpb.TripDescriptor{TripId: Ptr(tripID)},
			Position:  &gtfsrtpb.Position{Latitude: Ptr(lat), Longitude: Ptr(lon)},
			Timestamp: Ptr(ts),
		},
	}
}
