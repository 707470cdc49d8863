package playback

import (
	"encoding/json"
	"fmt"
	"time"
)

// StreamID uniquely identifies a camera stream (e.g. "live_botafogo2_CAM4").
type StreamID string

// SessionLayout is the fixed-width timestamp format of a session directory.
const SessionLayout = "20060102_150405"

// EventID identifies one recording session of a stream by its capture date
// and session timestamp directory names.
type EventID struct {
	Date    string
	Session string
}

// String returns the "DATE/SESSION" form used as the event's public id.
func (id EventID) String() string {
	return id.Date + "/" + id.Session
}

// Stream is a camera known to the capture pipeline.
type Stream struct {
	ID         StreamID   `json:"stream_id"`
	Name       string     `json:"name,omitempty"`
	SourceType string     `json:"source_type,omitempty"`
	SourceURL  string     `json:"source_url,omitempty"`
	Ready      bool       `json:"ready"`
	LastSeenAt *time.Time `json:"last_seen_at"`
}

// Segment is one recorded MPEG-TS chunk. Filepath is relative to the
// recordings root and always uses forward slashes:
// streamID/DATE/SESSION/filename.
type Segment struct {
	ID         int64     `json:"id,omitempty"`
	StreamID   StreamID  `json:"stream_id"`
	Filename   string    `json:"filename"`
	Filepath   string    `json:"filepath"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Event is a derived grouping of segments that share (stream, DATE, SESSION).
// It is rebuilt from the catalog on every request.
type Event struct {
	ID              string     `json:"id"`
	Date            string     `json:"date"`
	Session         string     `json:"session"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	DirectoryPath   string     `json:"-"`
	Segments        []string   `json:"segments"`
	SegmentCount    int        `json:"segment_count"`
	DurationSeconds float64    `json:"duration_seconds"`
}

// Analysis is the AI-generated description attached to a recording.
type Analysis struct {
	Description   string    `json:"description"`
	Danger        bool      `json:"danger"`
	DangerLevel   int       `json:"danger_level"`
	DangerDetails string    `json:"danger_details"`
	CreatedAt     time.Time `json:"created_at"`
}

// OptionalAnalysis holds either an Analysis or nothing. It is built once at
// the data-access boundary; an absent analysis encodes as JSON null.
type OptionalAnalysis struct {
	value Analysis
	ok    bool
}

// SomeAnalysis wraps a present analysis.
func SomeAnalysis(a Analysis) OptionalAnalysis {
	return OptionalAnalysis{value: a, ok: true}
}

// NoAnalysis is the absent value.
func NoAnalysis() OptionalAnalysis {
	return OptionalAnalysis{}
}

// Get returns the analysis and whether it is present.
func (o OptionalAnalysis) Get() (Analysis, bool) {
	return o.value, o.ok
}

// MarshalJSON implements json.Marshaler.
func (o OptionalAnalysis) MarshalJSON() ([]byte, error) {
	if !o.ok {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// Recording is a segment row from the metadata store together with its
// optional analysis.
type Recording struct {
	Segment
	Analysis OptionalAnalysis `json:"analysis"`
}

// Page bounds a listing query.
type Page struct {
	Limit  int
	Offset int
}

// RecordingPage is one page of recordings plus the total row count.
type RecordingPage struct {
	Recordings []Recording `json:"recordings"`
	Total      int         `json:"total"`
	Limit      int         `json:"limit"`
	Offset     int         `json:"offset"`
}

// DetectorConfig holds the per-stream motion detector settings consumed by
// the capture pipeline.
type DetectorConfig struct {
	StreamID        StreamID   `json:"stream_id"`
	Enabled         bool       `json:"enabled"`
	PixelThreshold  int        `json:"pixel_threshold"`
	AreaThreshold   float64    `json:"area_threshold"`
	CooldownFrames  int        `json:"cooldown_frames"`
	PreRollSeconds  int        `json:"pre_roll_seconds"`
	PostRollSeconds int        `json:"post_roll_seconds"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

// DefaultDetectorConfig returns the settings the detector uses when a stream
// has no stored configuration.
func DefaultDetectorConfig(streamID StreamID) DetectorConfig {
	return DetectorConfig{
		StreamID:        streamID,
		Enabled:         true,
		PixelThreshold:  25,
		AreaThreshold:   1.0,
		CooldownFrames:  30,
		PreRollSeconds:  5,
		PostRollSeconds: 5,
	}
}

// Validate reports the first out-of-range field.
func (c DetectorConfig) Validate() error {
	switch {
	case c.PixelThreshold < 0 || c.PixelThreshold > 255:
		return fmt.Errorf("%w: pixel_threshold must be between 0 and 255", ErrInvalidArgument)
	case c.AreaThreshold < 0 || c.AreaThreshold > 100:
		return fmt.Errorf("%w: area_threshold must be between 0 and 100", ErrInvalidArgument)
	case c.CooldownFrames < 0:
		return fmt.Errorf("%w: cooldown_frames must not be negative", ErrInvalidArgument)
	case c.PreRollSeconds < 0 || c.PostRollSeconds < 0:
		return fmt.Errorf("%w: pre/post roll must not be negative", ErrInvalidArgument)
	}
	return nil
}
