package playback

import (
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// minPathComponents is the shortest relative path that carries both a DATE
// and a SESSION component: streamID/DATE/SESSION[/...].
const minPathComponents = 3

// GroupEvents partitions a stream's segments into events keyed by the DATE
// and SESSION components of their relative paths. Filenames keep their
// discovery order within an event. Segments whose path is too short to
// group are skipped. Events are returned newest session first.
func GroupEvents(root string, streamID StreamID, segments []Segment) []Event {
	index := make(map[EventID]int)
	events := make([]Event, 0)

	for _, seg := range segments {
		parts := strings.Split(seg.Filepath, "/")
		if len(parts) < minPathComponents {
			continue
		}
		id := EventID{Date: parts[1], Session: parts[2]}
		if id.Date == "" || id.Session == "" {
			continue
		}

		i, ok := index[id]
		if !ok {
			events = append(events, newEvent(root, streamID, id))
			i = len(events) - 1
			index[id] = i
		}

		name := seg.Filename
		if name == "" {
			name = parts[len(parts)-1]
		}
		events[i].Segments = append(events[i].Segments, name)
	}

	for i := range events {
		events[i].SegmentCount = len(events[i].Segments)
	}
	sort.SliceStable(events, func(i, j int) bool {
		return newerEvent(events[i], events[j])
	})
	return events
}

func newEvent(root string, streamID StreamID, id EventID) Event {
	ev := Event{
		ID:            id.String(),
		Date:          id.Date,
		Session:       id.Session,
		DirectoryPath: filepath.Join(root, string(streamID), id.Date, id.Session),
	}
	if ts, err := time.Parse(SessionLayout, id.Session); err == nil {
		ev.StartedAt = &ts
	}
	return ev
}

// newerEvent orders by parsed session time, then by session string for
// sessions that do not parse, then by id.
func newerEvent(a, b Event) bool {
	if a.StartedAt != nil && b.StartedAt != nil && !a.StartedAt.Equal(*b.StartedAt) {
		return a.StartedAt.After(*b.StartedAt)
	}
	if a.Session != b.Session {
		return a.Session > b.Session
	}
	return a.ID > b.ID
}
