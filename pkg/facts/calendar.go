package facts

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/xpanvictor/presenced/internal/domains/meeting"
)

// FileCalendar reads calendar event facts from a JSON file.
type FileCalendar struct {
	Path string
}

func NewFileCalendar(path string) *FileCalendar {
	return &FileCalendar{Path: path}
}

// EventsBetween implements meeting.CalendarProvider, filtering the
// published events down to those overlapping the requested range.
func (f *FileCalendar) EventsBetween(ctx context.Context, start, end time.Time) ([]meeting.Event, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read calendar facts: %w", err)
	}
	var events []meeting.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("failed to decode calendar facts: %w", err)
	}

	overlapping := events[:0]
	for _, ev := range events {
		if ev.End.After(start) && ev.Start.Before(end) {
			overlapping = append(overlapping, ev)
		}
	}
	return overlapping, nil
}
