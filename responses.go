package gtfslocator

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/theoremus-urban-solutions/gtfs-locator/gtfs"
	"github.com/theoremus-urban-solutions/gtfs-locator/gtfsrt"
	"github.com/theoremus-urban-solutions/gtfs-locator/internal/logging"
	"github.com/theoremus-urban-solutions/gtfs-locator/locate"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error(s.log, "encode response", err)
	}
}

// writeError maps the error taxonomy onto HTTP statuses: missing files are
// 404, malformed bundles/feeds are 422, bad caller input is 400, anything
// else is 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		notFound   *NotFoundError
		badBundle  *gtfs.MalformedBundleError
		badFeed    *gtfsrt.MalformedFeedError
		badQuery   *locate.ValidationError
		badRequest *RequestError
		fieldErrs  validator.ValidationErrors
	)
	switch {
	case errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.As(err, &badBundle) || errors.As(err, &badFeed):
		s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	case errors.As(err, &badQuery) || errors.As(err, &badRequest) || errors.As(err, &fieldErrs):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		logging.Error(s.log, "internal error", err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
