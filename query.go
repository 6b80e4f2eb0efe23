package gtfslocator

import (
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// dataPath resolves a query-supplied file name against the configured data
// directory. Traversal outside the data dir is rejected.
func (s *Server) dataPath(file string) (string, error) {
	file = strings.TrimSpace(file)
	if file == "" {
		return "", &RequestError{Msg: "file parameter is required"}
	}
	clean := filepath.Clean(file)
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", &RequestError{Msg: "invalid file path: " + file}
	}
	return filepath.Join(s.cfg.GTFS.DataDir, clean), nil
}

// readDataFile resolves and reads a feed file, mapping a missing file to
// NotFoundError.
func (s *Server) readDataFile(file string) ([]byte, error) {
	path, err := s.dataPath(file)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Path: path}
		}
		return nil, err
	}
	return data, nil
}

// bundlePaths resolves the comma-separated "zips" parameter to data-dir paths
// and checks each file exists up front, so one missing bundle fails the whole
// multi-feed call with a 404 instead of a build error.
func (s *Server) bundlePaths(raw string) ([]string, error) {
	var out []string
	for _, z := range strings.Split(raw, ",") {
		z = strings.TrimSpace(z)
		if z == "" {
			continue
		}
		path, err := s.dataPath(z)
		if err != nil {
			return nil, err
		}
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, &NotFoundError{Path: path}
			}
			return nil, err
		}
		out = append(out, path)
	}
	if len(out) == 0 {
		return nil, &RequestError{Msg: "zips parameter is required"}
	}
	return out, nil
}

func parseFloatParam(q url.Values, name string) (float64, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return 0, &RequestError{Msg: name + " parameter is required"}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &RequestError{Msg: name + " must be a number"}
	}
	return v, nil
}

func parseOptionalFloatParam(q url.Values, name string) (*float64, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, &RequestError{Msg: name + " must be a number"}
	}
	return &v, nil
}
