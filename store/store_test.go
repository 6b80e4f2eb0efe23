package store

import (
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertUser(t *testing.T) {
	s := NewReportStore()

	u, err := s.UpsertUser("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.ID)
	assert.True(t, s.UserExists("alice"))
	assert.True(t, s.UserExists("ALICE"))
	assert.False(t, s.UserExists("bob"))

	_, err = s.UpsertUser("  ")
	assert.Error(t, err)
}

func TestCreateReport(t *testing.T) {
	s := NewReportStore()

	desc := "  bus stuck in traffic  "
	delay := 10
	rep, err := s.CreateReport(CreateReport{
		UserID:       "alice",
		Title:        " Delay on line 1 ",
		Description:  &desc,
		Lat:          50.06,
		Lon:          19.94,
		DelayMinutes: &delay,
	})
	require.NoError(t, err)

	assert.Len(t, rep.ID, 32) // 16 random bytes, hex encoded
	assert.Equal(t, "pending", rep.Status)
	assert.Equal(t, 0, rep.Score)
	assert.NotZero(t, rep.CreatedAt)
	assert.Equal(t, "alice", rep.UserID)
	assert.Equal(t, "Delay on line 1", rep.Title)
	require.NotNil(t, rep.Description)
	assert.Equal(t, "bus stuck in traffic", *rep.Description)
	require.NotNil(t, rep.DelayMinutes)
	assert.Equal(t, 10, *rep.DelayMinutes)

	// Creating a report registers its author.
	assert.True(t, s.UserExists("alice"))

	got, ok := s.Report(rep.ID)
	require.True(t, ok)
	assert.Equal(t, rep, got)

	// Lookup is case-insensitive like every other id in this service.
	_, ok = s.Report(strings.ToUpper(rep.ID))
	assert.True(t, ok)
}

func TestCreateReportValidation(t *testing.T) {
	s := NewReportStore()

	cases := []struct {
		name string
		dto  CreateReport
	}{
		{"missing user", CreateReport{Lat: 50, Lon: 19}},
		{"bad latitude", CreateReport{UserID: "alice", Lat: 95, Lon: 19}},
		{"bad longitude", CreateReport{UserID: "alice", Lat: 50, Lon: 190}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.CreateReport(tc.dto)
			var verr validator.ValidationErrors
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestReportNotFound(t *testing.T) {
	s := NewReportStore()
	_, ok := s.Report("nope")
	assert.False(t, ok)
}
