package gtfs

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/theoremus-urban-solutions/gtfs-locator/geo"
)

// BuildIndexFromZip parses a static bundle zip into a FeedIndex. The stops,
// routes, trips and stop_times tables are required; shapes.txt is optional and
// its absence simply disables shape-based matching.
func BuildIndexFromZip(zipPath string) (*FeedIndex, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, &MalformedBundleError{Table: path.Base(zipPath), Err: err}
	}
	defer zr.Close()
	return buildIndex(&zr.Reader)
}

func buildIndex(zr *zip.Reader) (*FeedIndex, error) {
	idx := &FeedIndex{
		Stops:       map[string]Stop{},
		Routes:      map[string]Route{},
		Trips:       map[string]Trip{},
		StopSeqs:    map[string]StopSequence{},
		Shapes:      map[string][]geo.Point{},
		ShapeRoutes: map[string]string{},
	}

	if err := idx.consumeStops(zr); err != nil {
		return nil, err
	}
	if err := idx.consumeRoutes(zr); err != nil {
		return nil, err
	}
	if err := idx.consumeTrips(zr); err != nil {
		return nil, err
	}
	if err := idx.consumeStopTimes(zr); err != nil {
		return nil, err
	}
	if err := idx.consumeShapes(zr); err != nil {
		return nil, err
	}
	idx.deriveShapeRoutes()
	return idx, nil
}

// table is one delimited file with header-name column binding.
type table struct {
	cols map[string]int
	rows [][]string
}

// col returns the index of a header column, or -1 when the bundle omits it.
func (t *table) col(name string) int {
	if i, ok := t.cols[strings.ToLower(name)]; ok {
		return i
	}
	return -1
}

// field returns the trimmed cell at column i, or ok=false when the column is
// absent, out of range for this row, or empty.
func (t *table) field(row []string, i int) (string, bool) {
	if i < 0 || i >= len(row) {
		return "", false
	}
	v := strings.TrimSpace(row[i])
	return v, v != ""
}

// readTable locates a zip entry by name (case-insensitive, directory prefixes
// ignored) and parses it with a sniffed delimiter. Returns nil when the entry
// does not exist and required is false.
func readTable(zr *zip.Reader, name string, required bool) (*table, error) {
	var entry *zip.File
	for _, f := range zr.File {
		if strings.EqualFold(path.Base(f.Name), name) {
			entry = f
			break
		}
	}
	if entry == nil {
		if required {
			return nil, &MalformedBundleError{Table: name, Err: fs.ErrNotExist}
		}
		return nil, nil
	}

	rc, err := entry.Open()
	if err != nil {
		return nil, &MalformedBundleError{Table: name, Err: err}
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, &MalformedBundleError{Table: name, Err: err}
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = detectDelimiter(data)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	recs, err := r.ReadAll()
	if err != nil {
		return nil, &MalformedBundleError{Table: name, Err: err}
	}
	if len(recs) == 0 {
		if required {
			return nil, &MalformedBundleError{Table: name, Err: errors.New("empty table")}
		}
		return nil, nil
	}

	t := &table{cols: map[string]int{}, rows: recs[1:]}
	for i, h := range recs[0] {
		t.cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return t, nil
}

// detectDelimiter sniffs the header line for the delimiter that splits it into
// the most fields. Comma wins ties.
func detectDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	best, sep := bytes.Count(line, []byte{','}), ','
	if n := bytes.Count(line, []byte{';'}); n > best {
		best, sep = n, ';'
	}
	if n := bytes.Count(line, []byte{'\t'}); n > best {
		sep = '\t'
	}
	return rune(sep)
}

func requireCols(tbl *table, tableName string, names ...string) error {
	for _, n := range names {
		if tbl.col(n) < 0 {
			return &MalformedBundleError{Table: tableName, Err: errors.New("missing column " + n)}
		}
	}
	return nil
}

func (x *FeedIndex) consumeStops(zr *zip.Reader) error {
	tbl, err := readTable(zr, "stops.txt", true)
	if err != nil {
		return err
	}
	if err := requireCols(tbl, "stops.txt", "stop_id"); err != nil {
		return err
	}
	id := tbl.col("stop_id")
	name := tbl.col("stop_name")
	lat := tbl.col("stop_lat")
	lon := tbl.col("stop_lon")
	for _, row := range tbl.rows {
		sid, ok := tbl.field(row, id)
		if !ok {
			continue
		}
		s := Stop{ID: sid}
		if v, ok := tbl.field(row, name); ok {
			s.Name = &v
		}
		if v, ok := tbl.field(row, lat); ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				s.Lat = &f
			}
		}
		if v, ok := tbl.field(row, lon); ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				s.Lon = &f
			}
		}
		x.Stops[key(sid)] = s
	}
	return nil
}

func (x *FeedIndex) consumeRoutes(zr *zip.Reader) error {
	tbl, err := readTable(zr, "routes.txt", true)
	if err != nil {
		return err
	}
	if err := requireCols(tbl, "routes.txt", "route_id"); err != nil {
		return err
	}
	id := tbl.col("route_id")
	short := tbl.col("route_short_name")
	long := tbl.col("route_long_name")
	for _, row := range tbl.rows {
		rid, ok := tbl.field(row, id)
		if !ok {
			continue
		}
		r := Route{ID: rid}
		if v, ok := tbl.field(row, short); ok {
			r.ShortName = &v
		}
		if v, ok := tbl.field(row, long); ok {
			r.LongName = &v
		}
		x.Routes[key(rid)] = r
	}
	return nil
}

func (x *FeedIndex) consumeTrips(zr *zip.Reader) error {
	tbl, err := readTable(zr, "trips.txt", true)
	if err != nil {
		return err
	}
	if err := requireCols(tbl, "trips.txt", "route_id", "service_id", "trip_id"); err != nil {
		return err
	}
	tripID := tbl.col("trip_id")
	routeID := tbl.col("route_id")
	serviceID := tbl.col("service_id")
	headsign := tbl.col("trip_headsign")
	shapeID := tbl.col("shape_id")
	for _, row := range tbl.rows {
		tid, ok := tbl.field(row, tripID)
		if !ok {
			continue
		}
		t := Trip{ID: tid}
		t.RouteID, _ = tbl.field(row, routeID)
		t.ServiceID, _ = tbl.field(row, serviceID)
		if v, ok := tbl.field(row, headsign); ok {
			t.Headsign = &v
		}
		if v, ok := tbl.field(row, shapeID); ok {
			t.ShapeID = &v
		}
		x.Trips[key(tid)] = t
	}
	return nil
}

func (x *FeedIndex) consumeStopTimes(zr *zip.Reader) error {
	tbl, err := readTable(zr, "stop_times.txt", true)
	if err != nil {
		return err
	}
	if err := requireCols(tbl, "stop_times.txt", "trip_id", "stop_id", "stop_sequence"); err != nil {
		return err
	}
	tripID := tbl.col("trip_id")
	stopID := tbl.col("stop_id")
	stopSeq := tbl.col("stop_sequence")

	type seqStop struct {
		seq  int
		stop string
	}
	byTrip := map[string][]seqStop{}
	tripIDs := map[string]string{} // normalized -> as seen
	for _, row := range tbl.rows {
		tid, ok1 := tbl.field(row, tripID)
		sid, ok2 := tbl.field(row, stopID)
		seqStr, ok3 := tbl.field(row, stopSeq)
		if !ok1 || !ok2 || !ok3 {
			continue
		}
		seq, err := strconv.Atoi(seqStr)
		if err != nil {
			return &MalformedBundleError{Table: "stop_times.txt", Err: err}
		}
		k := key(tid)
		byTrip[k] = append(byTrip[k], seqStop{seq: seq, stop: sid})
		tripIDs[k] = tid
	}

	for k, list := range byTrip {
		sort.SliceStable(list, func(i, j int) bool { return list[i].seq < list[j].seq })
		ordered := make([]string, 0, len(list))
		seqByStop := make(map[string]int, len(list))
		for i, v := range list {
			ordered = append(ordered, v.stop)
			if _, seen := seqByStop[key(v.stop)]; !seen {
				seqByStop[key(v.stop)] = i + 1 // 1-based position
			}
		}
		x.StopSeqs[k] = StopSequence{TripID: tripIDs[k], StopIDs: ordered, SeqByStop: seqByStop}
	}
	return nil
}

func (x *FeedIndex) consumeShapes(zr *zip.Reader) error {
	tbl, err := readTable(zr, "shapes.txt", false)
	if err != nil {
		return err
	}
	if tbl == nil {
		return nil
	}
	shapeID := tbl.col("shape_id")
	lat := tbl.col("shape_pt_lat")
	lon := tbl.col("shape_pt_lon")
	seqCol := tbl.col("shape_pt_sequence")
	if shapeID < 0 || lat < 0 || lon < 0 || seqCol < 0 {
		return nil
	}

	type shapePt struct {
		pt  geo.Point
		seq int
	}
	byShape := map[string][]shapePt{}
	for _, row := range tbl.rows {
		sid, ok := tbl.field(row, shapeID)
		if !ok {
			continue
		}
		latStr, ok1 := tbl.field(row, lat)
		lonStr, ok2 := tbl.field(row, lon)
		seqStr, ok3 := tbl.field(row, seqCol)
		if !ok1 || !ok2 || !ok3 {
			continue
		}
		latF, err1 := strconv.ParseFloat(latStr, 64)
		lonF, err2 := strconv.ParseFloat(lonStr, 64)
		seq, err3 := strconv.Atoi(seqStr)
		if err1 != nil || err2 != nil || err3 != nil {
			return &MalformedBundleError{Table: "shapes.txt", Err: errors.New("bad shape point row")}
		}
		byShape[key(sid)] = append(byShape[key(sid)], shapePt{pt: geo.Point{Lat: latF, Lon: lonF}, seq: seq})
	}
	for sid, pts := range byShape {
		sort.SliceStable(pts, func(i, j int) bool { return pts[i].seq < pts[j].seq })
		poly := make([]geo.Point, len(pts))
		for i, p := range pts {
			poly[i] = p.pt
		}
		x.Shapes[sid] = poly
	}
	return nil
}

// deriveShapeRoutes binds each shape to one route: the first trip referencing
// the shape wins.
func (x *FeedIndex) deriveShapeRoutes() {
	tripKeys := make([]string, 0, len(x.Trips))
	for k := range x.Trips {
		tripKeys = append(tripKeys, k)
	}
	sort.Strings(tripKeys) // deterministic "first trip"
	for _, k := range tripKeys {
		t := x.Trips[k]
		if t.ShapeID == nil {
			continue
		}
		sk := key(*t.ShapeID)
		if _, ok := x.ShapeRoutes[sk]; !ok {
			x.ShapeRoutes[sk] = t.RouteID
		}
	}
}
