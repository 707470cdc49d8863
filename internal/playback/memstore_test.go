package playback

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is a concurrency-safe in-memory metadata store standing in for
// the database in tests. It implements SegmentCatalog, StreamDirectory,
// RecordingStore and DetectorConfigStore with the postgres ordering rules.
type MemoryStore struct {
	mu         sync.RWMutex
	streams    map[StreamID]Stream
	recordings []Recording
	configs    map[StreamID]DetectorConfig
	nextID     int64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		streams: make(map[StreamID]Stream),
		configs: make(map[StreamID]DetectorConfig),
	}
}

// PutStream adds or replaces a stream.
func (s *MemoryStore) PutStream(st Stream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams[st.ID] = st
}

// AddRecording stores a segment row and returns its assigned id.
func (s *MemoryStore) AddRecording(seg Segment, analysis OptionalAnalysis) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	seg.ID = s.nextID
	s.recordings = append(s.recordings, Recording{Segment: seg, Analysis: analysis})
	return seg.ID
}

// ListSegments implements SegmentCatalog.ListSegments.
func (s *MemoryStore) ListSegments(_ context.Context, streamID StreamID) ([]Segment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Segment
	for _, r := range s.recordings {
		if r.StreamID == streamID {
			out = append(out, r.Segment)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].RecordedAt.Equal(out[j].RecordedAt) {
			return out[i].RecordedAt.Before(out[j].RecordedAt)
		}
		return out[i].Filename < out[j].Filename
	})
	return out, nil
}

// ListEventSegments implements SegmentCatalog.ListEventSegments.
func (s *MemoryStore) ListEventSegments(_ context.Context, streamID StreamID, eventID EventID) ([]Segment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := string(streamID) + "/" + eventID.String() + "/"
	var out []Segment
	for _, r := range s.recordings {
		if r.StreamID == streamID && strings.HasPrefix(r.Filepath, prefix) {
			out = append(out, r.Segment)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out, nil
}

// ListStreams implements StreamDirectory.ListStreams. Streams that only
// appear in recordings are listed under their id.
func (s *MemoryStore) ListStreams(_ context.Context) ([]Stream, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[StreamID]bool, len(s.streams))
	out := make([]Stream, 0, len(s.streams))
	for _, st := range s.streams {
		seen[st.ID] = true
		out = append(out, st)
	}
	for _, r := range s.recordings {
		if !seen[r.StreamID] {
			seen[r.StreamID] = true
			out = append(out, Stream{ID: r.StreamID, Name: string(r.StreamID)})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// GetStream implements StreamDirectory.GetStream.
func (s *MemoryStore) GetStream(_ context.Context, streamID StreamID) (Stream, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if st, ok := s.streams[streamID]; ok {
		return st, nil
	}
	for _, r := range s.recordings {
		if r.StreamID == streamID {
			return Stream{ID: streamID, Name: string(streamID)}, nil
		}
	}
	return Stream{}, fmt.Errorf("%w: stream %s", ErrNotFound, streamID)
}

// ListRecordings implements RecordingStore.ListRecordings, newest first.
func (s *MemoryStore) ListRecordings(_ context.Context, streamID StreamID, page Page) ([]Recording, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Recording
	for _, r := range s.recordings {
		if r.StreamID == streamID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].RecordedAt.Equal(out[j].RecordedAt) {
			return out[i].RecordedAt.After(out[j].RecordedAt)
		}
		return out[i].ID > out[j].ID
	})

	if page.Offset >= len(out) {
		return nil, nil
	}
	out = out[page.Offset:]
	if page.Limit > 0 && page.Limit < len(out) {
		out = out[:page.Limit]
	}
	return out, nil
}

// CountRecordings implements RecordingStore.CountRecordings.
func (s *MemoryStore) CountRecordings(_ context.Context, streamID StreamID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, r := range s.recordings {
		if r.StreamID == streamID {
			n++
		}
	}
	return n, nil
}

// GetRecording implements RecordingStore.GetRecording.
func (s *MemoryStore) GetRecording(_ context.Context, streamID StreamID, id int64) (Recording, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.recordings {
		if r.ID == id && r.StreamID == streamID {
			return r, nil
		}
	}
	return Recording{}, fmt.Errorf("%w: recording %d of %s", ErrNotFound, id, streamID)
}

// RecordingFilepath implements RecordingStore.RecordingFilepath.
func (s *MemoryStore) RecordingFilepath(ctx context.Context, streamID StreamID, id int64) (string, error) {
	r, err := s.GetRecording(ctx, streamID, id)
	if err != nil {
		return "", err
	}
	return r.Filepath, nil
}

// GetDetectorConfig implements DetectorConfigStore.GetDetectorConfig.
func (s *MemoryStore) GetDetectorConfig(_ context.Context, streamID StreamID) (DetectorConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.configs[streamID]
	if !ok {
		return DetectorConfig{}, fmt.Errorf("%w: detector config for %s", ErrNotFound, streamID)
	}
	return cfg, nil
}

// UpsertDetectorConfig implements DetectorConfigStore.UpsertDetectorConfig.
func (s *MemoryStore) UpsertDetectorConfig(_ context.Context, cfg DetectorConfig) (DetectorConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	cfg.UpdatedAt = &now
	s.configs[cfg.StreamID] = cfg
	return cfg, nil
}
