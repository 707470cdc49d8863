package playback

import (
	"context"
	"errors"
)

// SegmentCatalog enumerates the recorded segments of a stream. Both the
// filesystem and the metadata-store backends satisfy it.
type SegmentCatalog interface {
	// ListSegments returns every segment of the stream, ordered by
	// recording time when known and by relative path otherwise.
	// An unknown stream yields an empty slice and no error.
	ListSegments(ctx context.Context, streamID StreamID) ([]Segment, error)

	// ListEventSegments returns the segments stored under
	// streamID/DATE/SESSION/, ordered by filename.
	ListEventSegments(ctx context.Context, streamID StreamID, eventID EventID) ([]Segment, error)
}

// StreamDirectory lists the cameras known to the pipeline.
type StreamDirectory interface {
	ListStreams(ctx context.Context) ([]Stream, error)

	// GetStream returns ErrNotFound for an unknown stream.
	GetStream(ctx context.Context, streamID StreamID) (Stream, error)
}

// RecordingStore reads recording rows and their analyses from the metadata
// store.
type RecordingStore interface {
	ListRecordings(ctx context.Context, streamID StreamID, page Page) ([]Recording, error)
	CountRecordings(ctx context.Context, streamID StreamID) (int, error)

	// GetRecording and RecordingFilepath return ErrNotFound when no row
	// matches the (id, stream) pair.
	GetRecording(ctx context.Context, streamID StreamID, id int64) (Recording, error)
	RecordingFilepath(ctx context.Context, streamID StreamID, id int64) (string, error)
}

// DetectorConfigStore persists per-stream detector settings.
type DetectorConfigStore interface {
	// GetDetectorConfig returns ErrNotFound when nothing is stored.
	GetDetectorConfig(ctx context.Context, streamID StreamID) (DetectorConfig, error)
	UpsertDetectorConfig(ctx context.Context, cfg DetectorConfig) (DetectorConfig, error)
}

var (
	// ErrInvalidPath is returned when a stream, event or segment identifier
	// contains a traversal marker or a path separator.
	ErrInvalidPath = errors.New("invalid path")

	// ErrNotFound is returned when no stream, event, segment or recording
	// matches, or when metadata exists but the file does not.
	ErrNotFound = errors.New("not found")

	// ErrUpstreamUnavailable is returned when the metadata store cannot be
	// reached after retrying.
	ErrUpstreamUnavailable = errors.New("metadata store unavailable")

	// ErrInvalidArgument is returned for out-of-range request values.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnsupported is returned by operations that need a metadata store
	// when the service runs on the filesystem catalog.
	ErrUnsupported = errors.New("not supported by the configured catalog")
)
