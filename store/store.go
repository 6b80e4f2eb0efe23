// Package store is the in-memory report and user store. Nothing here outlives
// the process.
package store

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// User is a report author, created on the fly when a report references it.
type User struct {
	ID string `json:"id"`
}

// Report is a stored delay/incident report.
type Report struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"createdAt"`
	Status    string `json:"status"`
	Score     int    `json:"score"`

	UserID       string  `json:"userId"`
	Title        string  `json:"title"`
	Description  *string `json:"description,omitempty"`
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	RouteID      *string `json:"routeId,omitempty"`
	TripID       *string `json:"tripId,omitempty"`
	DelayMinutes *int    `json:"delayMinutes,omitempty"`
}

// CreateReport is the caller-supplied payload for a new report.
type CreateReport struct {
	UserID       string  `json:"userId" validate:"required"`
	Title        string  `json:"title"`
	Description  *string `json:"description"`
	Lat          float64 `json:"lat" validate:"latitude"`
	Lon          float64 `json:"lon" validate:"longitude"`
	RouteID      *string `json:"routeId"`
	TripID       *string `json:"tripId"`
	DelayMinutes *int    `json:"delayMinutes"`
}

// ReportStore keeps users and reports in concurrent maps.
type ReportStore struct {
	users    sync.Map // lowercased id -> User
	reports  sync.Map // lowercased id -> Report
	validate *validator.Validate
}

// NewReportStore creates an empty store.
func NewReportStore() *ReportStore {
	return &ReportStore{validate: validator.New()}
}

// UpsertUser creates or replaces a user by id.
func (s *ReportStore) UpsertUser(id string) (User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, fmt.Errorf("user id is required")
	}
	u := User{ID: id}
	s.users.Store(strings.ToLower(id), u)
	return u, nil
}

// UserExists reports whether a user id is known.
func (s *ReportStore) UserExists(id string) bool {
	if strings.TrimSpace(id) == "" {
		return false
	}
	_, ok := s.users.Load(strings.ToLower(id))
	return ok
}

// CreateReport validates the payload, upserts the author and stores a new
// pending report.
func (s *ReportStore) CreateReport(dto CreateReport) (Report, error) {
	if err := s.validate.Struct(dto); err != nil {
		return Report{}, err
	}
	if _, err := s.UpsertUser(dto.UserID); err != nil {
		return Report{}, err
	}

	rep := Report{
		ID:        newReportID(),
		CreatedAt: time.Now().Unix(),
		Status:    "pending",
		Score:     0,

		UserID:       strings.TrimSpace(dto.UserID),
		Title:        strings.TrimSpace(dto.Title),
		Description:  trimOpt(dto.Description),
		Lat:          dto.Lat,
		Lon:          dto.Lon,
		RouteID:      trimOpt(dto.RouteID),
		TripID:       trimOpt(dto.TripID),
		DelayMinutes: dto.DelayMinutes,
	}
	s.reports.Store(strings.ToLower(rep.ID), rep)
	return rep, nil
}

// Report looks up a stored report by id.
func (s *ReportStore) Report(id string) (Report, bool) {
	v, ok := s.reports.Load(strings.ToLower(id))
	if !ok {
		return Report{}, false
	}
	return v.(Report), true
}

func newReportID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

func trimOpt(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
