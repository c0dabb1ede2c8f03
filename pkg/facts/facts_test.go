package facts

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileDeviceListerMissingFile(t *testing.T) {
	l := NewFileDeviceLister(filepath.Join(t.TempDir(), "devices.json"))
	devices, err := l.ListInputDevices()
	require.NoError(t, err)
	assert.Empty(t, devices)
}

func TestFileDeviceListerReadsFacts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"id":"1","uid":"mic-1","name":"Built-in Microphone","transportType":"builtin","isRunning":true}
	]`), 0o644))

	l := NewFileDeviceLister(path)
	devices, err := l.ListInputDevices()
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "mic-1", devices[0].UID)
	assert.True(t, devices[0].IsRunning)
}

func TestFileDeviceListerRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	_, err := NewFileDeviceLister(path).ListInputDevices()
	assert.Error(t, err)
}

func TestFileCalendarFiltersRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calendar.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"start":"2026-03-02T09:00:00Z","end":"2026-03-02T10:00:00Z","availability":"busy","title":"Early"},
		{"start":"2026-03-03T09:00:00Z","end":"2026-03-03T10:00:00Z","availability":"busy","title":"Tomorrow"}
	]`), 0o644))

	c := NewFileCalendar(path)
	dayStart := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	events, err := c.EventsBetween(context.Background(), dayStart, dayStart.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Early", events[0].Title)
}

func TestFileCalendarMissingFile(t *testing.T) {
	c := NewFileCalendar(filepath.Join(t.TempDir(), "calendar.json"))
	events, err := c.EventsBetween(context.Background(), time.Now(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, events)
}
