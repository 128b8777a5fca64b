package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOwnerIsExclusive(t *testing.T) {
	s := OwnedBySession(7)
	id, ok := s.SessionID()
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)
	_, ok = s.ArchiveID()
	assert.False(t, ok)

	a := OwnedByArchive(9)
	_, ok = a.SessionID()
	assert.False(t, ok)
	id, ok = a.ArchiveID()
	assert.True(t, ok)
	assert.Equal(t, int64(9), id)

	assert.True(t, Owner{}.IsZero())
	assert.NotEqual(t, OwnedBySession(1), OwnedByArchive(1))
}

func TestOwnerJSON(t *testing.T) {
	raw, err := json.Marshal(OwnedByArchive(3))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"archived_session","id":3}`, string(raw))
}

func TestVehicleIsVIP(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	assert.True(t, (&Vehicle{VIPExpiresAt: &future}).IsVIP(now))
	assert.False(t, (&Vehicle{VIPExpiresAt: &past}).IsVIP(now))
	assert.False(t, (&Vehicle{VIPExpiresAt: &now}).IsVIP(now))
	assert.False(t, (&Vehicle{}).IsVIP(now))
	var nilVehicle *Vehicle
	assert.False(t, nilVehicle.IsVIP(now))
}

func TestSessionArchiveCopiesVisit(t *testing.T) {
	entry := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	s := Session{ID: 4, VehicleID: 2, EntryTime: entry, PhotoPath: "/img/a.jpg"}

	archived := s.Archive(entry.Add(2 * time.Hour))
	assert.Equal(t, int64(2), archived.VehicleID)
	assert.Equal(t, entry, archived.EntryTime)
	assert.Equal(t, entry.Add(2*time.Hour), archived.ExitTime)
	assert.Equal(t, "/img/a.jpg", archived.PhotoPath)

	clamped := s.Archive(entry.Add(-time.Minute))
	assert.Equal(t, entry, clamped.ExitTime)
}
