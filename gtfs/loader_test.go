package gtfs

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theoremus-urban-solutions/gtfs-locator/internal/testutil"
)

func TestBuildIndexFromZip(t *testing.T) {
	path := testutil.WriteBundleZip(t, t.TempDir(), "city.zip", testutil.MinimalBundleFiles())

	idx, err := BuildIndexFromZip(path)
	require.NoError(t, err)

	assert.Len(t, idx.Stops, 3)
	assert.Len(t, idx.Routes, 1)
	assert.Len(t, idx.Trips, 1)
	assert.Len(t, idx.StopSeqs, 1)
	assert.False(t, idx.HasShapes())

	stop, ok := idx.StopByID("S2")
	require.True(t, ok)
	require.NotNil(t, stop.Name)
	assert.Equal(t, "Second", *stop.Name)
	require.NotNil(t, stop.Lat)
	require.NotNil(t, stop.Lon)
	assert.Equal(t, 0.01, *stop.Lon)

	route, ok := idx.RouteByID("R1")
	require.True(t, ok)
	require.NotNil(t, route.ShortName)
	assert.Equal(t, "1", *route.ShortName)

	trip, ok := idx.TripByID("T1")
	require.True(t, ok)
	assert.Equal(t, "R1", trip.RouteID)
	assert.Equal(t, "WK", trip.ServiceID)
	require.NotNil(t, trip.Headsign)
	assert.Equal(t, "Downtown", *trip.Headsign)
	assert.Nil(t, trip.ShapeID)
}

func TestBuildIndexSortsStopTimesBySequence(t *testing.T) {
	files := testutil.MinimalBundleFiles()
	// Out-of-order sequence values: the built order must follow the sequence
	// field, not row order.
	files["stop_times.txt"] = "trip_id,stop_id,stop_sequence\n" +
		"T1,S3,3\nT1,S1,1\nT1,S2,2\n"
	path := testutil.WriteBundleZip(t, t.TempDir(), "city.zip", files)

	idx, err := BuildIndexFromZip(path)
	require.NoError(t, err)

	seq, ok := idx.StopSequenceForTrip("T1")
	require.True(t, ok)
	assert.Equal(t, []string{"S1", "S2", "S3"}, seq.StopIDs)
	assert.Equal(t, 1, seq.SeqByStop["s1"])
	assert.Equal(t, 2, seq.SeqByStop["s2"])
	assert.Equal(t, 3, seq.SeqByStop["s3"])
}

func TestBuildIndexCaseInsensitiveLookups(t *testing.T) {
	path := testutil.WriteBundleZip(t, t.TempDir(), "city.zip", testutil.MinimalBundleFiles())
	idx, err := BuildIndexFromZip(path)
	require.NoError(t, err)

	_, ok := idx.TripByID("t1")
	assert.True(t, ok)
	_, ok = idx.StopByID("s3")
	assert.True(t, ok)
	_, ok = idx.RouteByID("r1")
	assert.True(t, ok)
}

func TestBuildIndexSemicolonDelimiter(t *testing.T) {
	files := map[string]string{
		"stops.txt":      "stop_id;stop_name;stop_lat;stop_lon\nS1;First;0;0\n",
		"routes.txt":     "route_id;route_short_name\nR1;1\n",
		"trips.txt":      "route_id;service_id;trip_id\nR1;WK;T1\n",
		"stop_times.txt": "trip_id;stop_id;stop_sequence\nT1;S1;1\n",
	}
	path := testutil.WriteBundleZip(t, t.TempDir(), "city.zip", files)

	idx, err := BuildIndexFromZip(path)
	require.NoError(t, err)
	stop, ok := idx.StopByID("S1")
	require.True(t, ok)
	require.NotNil(t, stop.Name)
	assert.Equal(t, "First", *stop.Name)
}

func TestBuildIndexMissingOptionalColumns(t *testing.T) {
	files := testutil.MinimalBundleFiles()
	files["stops.txt"] = "stop_id\nS1\nS2\nS3\n"
	files["trips.txt"] = "route_id,service_id,trip_id\nR1,WK,T1\n"
	path := testutil.WriteBundleZip(t, t.TempDir(), "city.zip", files)

	idx, err := BuildIndexFromZip(path)
	require.NoError(t, err)

	stop, ok := idx.StopByID("S1")
	require.True(t, ok)
	assert.Nil(t, stop.Name)
	assert.Nil(t, stop.Lat)
	assert.Nil(t, stop.Lon)

	trip, ok := idx.TripByID("T1")
	require.True(t, ok)
	assert.Nil(t, trip.Headsign)
}

func TestBuildIndexMissingRequiredTable(t *testing.T) {
	files := testutil.MinimalBundleFiles()
	delete(files, "stop_times.txt")
	path := testutil.WriteBundleZip(t, t.TempDir(), "city.zip", files)

	_, err := BuildIndexFromZip(path)
	var mbe *MalformedBundleError
	require.ErrorAs(t, err, &mbe)
	assert.Equal(t, "stop_times.txt", mbe.Table)
}

func TestBuildIndexMissingRequiredColumn(t *testing.T) {
	files := testutil.MinimalBundleFiles()
	files["trips.txt"] = "route_id,trip_id\nR1,T1\n"
	path := testutil.WriteBundleZip(t, t.TempDir(), "city.zip", files)

	_, err := BuildIndexFromZip(path)
	var mbe *MalformedBundleError
	require.ErrorAs(t, err, &mbe)
	assert.Equal(t, "trips.txt", mbe.Table)
}

func TestBuildIndexMissingFile(t *testing.T) {
	_, err := BuildIndexFromZip(filepath.Join(t.TempDir(), "missing.zip"))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestBuildIndexShapes(t *testing.T) {
	files := testutil.MinimalBundleFiles()
	files["trips.txt"] = "route_id,service_id,trip_id,trip_headsign,shape_id\n" +
		"R1,WK,T1,Downtown,SH1\n"
	// Shape points out of order; the polyline must follow shape_pt_sequence.
	files["shapes.txt"] = "shape_id,shape_pt_lat,shape_pt_lon,shape_pt_sequence\n" +
		"SH1,0,0.02,3\nSH1,0,0,1\nSH1,0,0.01,2\n"
	path := testutil.WriteBundleZip(t, t.TempDir(), "city.zip", files)

	idx, err := BuildIndexFromZip(path)
	require.NoError(t, err)
	require.True(t, idx.HasShapes())

	poly := idx.Shapes["sh1"]
	require.Len(t, poly, 3)
	assert.Equal(t, 0.0, poly[0].Lon)
	assert.Equal(t, 0.01, poly[1].Lon)
	assert.Equal(t, 0.02, poly[2].Lon)

	assert.Equal(t, "R1", idx.ShapeRoutes["sh1"])
}

func TestShapeRouteFirstTripWins(t *testing.T) {
	files := testutil.MinimalBundleFiles()
	files["routes.txt"] = "route_id,route_short_name\nR1,1\nR2,2\n"
	files["trips.txt"] = "route_id,service_id,trip_id,shape_id\n" +
		"R1,WK,TA,SH1\n" +
		"R2,WK,TB,SH1\n"
	files["stop_times.txt"] = "trip_id,stop_id,stop_sequence\nTA,S1,1\nTB,S1,1\n"
	files["shapes.txt"] = "shape_id,shape_pt_lat,shape_pt_lon,shape_pt_sequence\n" +
		"SH1,0,0,1\nSH1,0,0.01,2\n"
	path := testutil.WriteBundleZip(t, t.TempDir(), "city.zip", files)

	idx, err := BuildIndexFromZip(path)
	require.NoError(t, err)
	assert.Equal(t, "R1", idx.ShapeRoutes["sh1"])
}
