package playback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultPageLimit is used when a listing does not specify a limit.
	DefaultPageLimit = 50
	// MaxPageLimit caps a single listing page.
	MaxPageLimit = 500
)

// Config is the explicit configuration injected into the Service.
type Config struct {
	// RecordingsDir is the root under which stream/DATE/SESSION/segment
	// files live.
	RecordingsDir string
	// SegmentDuration is the assumed duration of every segment.
	SegmentDuration time.Duration
}

// Backends are the storage collaborators of the Service. Catalog and
// Streams are required; Recordings and DetectorConfigs are nil on the
// filesystem-only deployment.
type Backends struct {
	Catalog         SegmentCatalog
	Streams         StreamDirectory
	Recordings      RecordingStore
	DetectorConfigs DetectorConfigStore
}

// Service groups segments into events, synthesizes playlists and resolves
// segment and recording paths. It holds no mutable state; every call reads
// current storage.
type Service struct {
	cfg      Config
	backends Backends
	resolver *PathResolver
}

// NewService returns a Service. A non-positive SegmentDuration falls back to
// DefaultSegmentDuration.
func NewService(cfg Config, backends Backends) *Service {
	if cfg.SegmentDuration <= 0 {
		cfg.SegmentDuration = DefaultSegmentDuration
	}
	return &Service{
		cfg:      cfg,
		backends: backends,
		resolver: NewPathResolver(cfg.RecordingsDir, backends.Recordings),
	}
}

// ListStreams returns all known streams.
func (s *Service) ListStreams(ctx context.Context) ([]Stream, error) {
	return s.backends.Streams.ListStreams(ctx)
}

// ListEvents returns the events of a stream, newest first. An unknown
// stream fails with ErrNotFound; a known stream without segments yields an
// empty slice.
func (s *Service) ListEvents(ctx context.Context, streamID StreamID) ([]Event, error) {
	if err := validateComponents(string(streamID)); err != nil {
		return nil, err
	}
	if _, err := s.backends.Streams.GetStream(ctx, streamID); err != nil {
		return nil, err
	}

	segments, err := s.backends.Catalog.ListSegments(ctx, streamID)
	if err != nil {
		return nil, fmt.Errorf("list segments of %s: %w", streamID, err)
	}

	events := GroupEvents(s.cfg.RecordingsDir, streamID, segments)
	for i := range events {
		events[i].DurationSeconds = float64(events[i].SegmentCount) * s.cfg.SegmentDuration.Seconds()
	}
	return events, nil
}

// GetPlaylist returns the HLS VOD playlist of one event. It fails with
// ErrInvalidPath before touching storage and with ErrNotFound when the
// event has no transport-stream segments.
func (s *Service) GetPlaylist(ctx context.Context, streamID StreamID, eventID EventID) (string, error) {
	if err := validateComponents(string(streamID), eventID.Date, eventID.Session); err != nil {
		return "", err
	}

	segments, err := s.backends.Catalog.ListEventSegments(ctx, streamID, eventID)
	if err != nil {
		return "", fmt.Errorf("list segments of %s/%s: %w", streamID, eventID, err)
	}

	names := playlistSegments(segments)
	if len(names) == 0 {
		return "", fmt.Errorf("%w: event %s/%s has no segments", ErrNotFound, streamID, eventID)
	}
	return BuildVODPlaylist(names, s.cfg.SegmentDuration), nil
}

// ResolveSegmentPath returns the absolute path of one segment of an event.
func (s *Service) ResolveSegmentPath(streamID StreamID, eventID EventID, segment string) (string, error) {
	return s.resolver.ResolveSegmentPath(streamID, eventID, segment)
}

// ResolveRecordingPath returns the absolute path of a recording by id.
func (s *Service) ResolveRecordingPath(ctx context.Context, streamID StreamID, id int64) (string, error) {
	return s.resolver.ResolveRecordingPath(ctx, streamID, id)
}

// ListRecordings returns one page of a stream's recordings with their
// analyses. The page and the total count are fetched concurrently.
func (s *Service) ListRecordings(ctx context.Context, streamID StreamID, page Page) (RecordingPage, error) {
	if err := validateComponents(string(streamID)); err != nil {
		return RecordingPage{}, err
	}
	if s.backends.Recordings == nil {
		return RecordingPage{}, ErrUnsupported
	}
	page, err := NormalizePage(page)
	if err != nil {
		return RecordingPage{}, err
	}

	var (
		rows  []Recording
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = s.backends.Recordings.ListRecordings(gctx, streamID, page)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.backends.Recordings.CountRecordings(gctx, streamID)
		return err
	})
	if err := g.Wait(); err != nil {
		return RecordingPage{}, fmt.Errorf("list recordings of %s: %w", streamID, err)
	}

	if rows == nil {
		rows = []Recording{}
	}
	return RecordingPage{Recordings: rows, Total: total, Limit: page.Limit, Offset: page.Offset}, nil
}

// GetRecording returns one recording with its optional analysis.
func (s *Service) GetRecording(ctx context.Context, streamID StreamID, id int64) (Recording, error) {
	if err := validateComponents(string(streamID)); err != nil {
		return Recording{}, err
	}
	if s.backends.Recordings == nil {
		return Recording{}, ErrUnsupported
	}
	return s.backends.Recordings.GetRecording(ctx, streamID, id)
}

// DetectorConfig returns the stored detector settings of a stream, or the
// defaults when none are stored.
func (s *Service) DetectorConfig(ctx context.Context, streamID StreamID) (DetectorConfig, error) {
	if err := validateComponents(string(streamID)); err != nil {
		return DetectorConfig{}, err
	}
	if s.backends.DetectorConfigs == nil {
		return DetectorConfig{}, ErrUnsupported
	}
	cfg, err := s.backends.DetectorConfigs.GetDetectorConfig(ctx, streamID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return DefaultDetectorConfig(streamID), nil
		}
		return DetectorConfig{}, err
	}
	return cfg, nil
}

// SaveDetectorConfig validates and stores the detector settings of a stream.
func (s *Service) SaveDetectorConfig(ctx context.Context, streamID StreamID, cfg DetectorConfig) (DetectorConfig, error) {
	if err := validateComponents(string(streamID)); err != nil {
		return DetectorConfig{}, err
	}
	if s.backends.DetectorConfigs == nil {
		return DetectorConfig{}, ErrUnsupported
	}
	cfg.StreamID = streamID
	if err := cfg.Validate(); err != nil {
		return DetectorConfig{}, err
	}
	return s.backends.DetectorConfigs.UpsertDetectorConfig(ctx, cfg)
}

// NormalizePage applies the default limit and rejects out-of-range values.
func NormalizePage(p Page) (Page, error) {
	if p.Limit == 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit < 0 || p.Limit > MaxPageLimit {
		return Page{}, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidArgument, MaxPageLimit)
	}
	if p.Offset < 0 {
		return Page{}, fmt.Errorf("%w: offset must not be negative", ErrInvalidArgument)
	}
	return p, nil
}
