package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"panoptic/internal/playback"

	"github.com/jackc/pgx/v5"
)

const segmentColumns = `r.id, r.stream_id, r.filename, r.filepath, r.recorded_at`

// recordingSelect joins at most one analysis row (the latest) per recording.
const recordingSelect = `
SELECT ` + segmentColumns + `,
       a.id, a.description, a.danger, a.danger_level, a.danger_details, a.created_at
FROM recordings r
LEFT JOIN LATERAL (
    SELECT id, description, danger, danger_level, danger_details, created_at
    FROM analysis
    WHERE recording_id = r.id
    ORDER BY created_at DESC, id DESC
    LIMIT 1
) a ON true`

// ListSegments implements playback.SegmentCatalog.ListSegments.
func (s *Store) ListSegments(ctx context.Context, streamID playback.StreamID) ([]playback.Segment, error) {
	const q = `SELECT ` + segmentColumns + `
FROM recordings r
WHERE r.stream_id = $1
ORDER BY r.recorded_at, r.filename`

	var out []playback.Segment
	err := s.read(ctx, "list segments", func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, q, string(streamID))
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, collect(scanSegment))
		return err
	})
	return out, err
}

// ListEventSegments implements playback.SegmentCatalog.ListEventSegments.
func (s *Store) ListEventSegments(ctx context.Context, streamID playback.StreamID, eventID playback.EventID) ([]playback.Segment, error) {
	const q = `SELECT ` + segmentColumns + `
FROM recordings r
WHERE r.stream_id = $1 AND r.filepath LIKE $2 ESCAPE '\'
ORDER BY r.filename`

	var out []playback.Segment
	err := s.read(ctx, "list event segments", func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, q, string(streamID), eventPattern(streamID, eventID))
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, collect(scanSegment))
		return err
	})
	return out, err
}

// ListStreams implements playback.StreamDirectory.ListStreams. Streams that
// only appear in recordings are listed under their id.
func (s *Store) ListStreams(ctx context.Context) ([]playback.Stream, error) {
	const q = `
SELECT stream_id, COALESCE(name, stream_id), COALESCE(source_type, ''), COALESCE(source_url, ''), ready, last_seen_at
FROM streams
UNION ALL
SELECT DISTINCT r.stream_id, r.stream_id, '', '', false, NULL::timestamptz
FROM recordings r
WHERE NOT EXISTS (SELECT 1 FROM streams s WHERE s.stream_id = r.stream_id)
ORDER BY 2, 1`

	var out []playback.Stream
	err := s.read(ctx, "list streams", func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, q)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, collect(scanStream))
		return err
	})
	return out, err
}

// GetStream implements playback.StreamDirectory.GetStream.
func (s *Store) GetStream(ctx context.Context, streamID playback.StreamID) (playback.Stream, error) {
	const q = `
SELECT stream_id, COALESCE(name, stream_id), COALESCE(source_type, ''), COALESCE(source_url, ''), ready, last_seen_at
FROM streams
WHERE stream_id = $1`
	const existsQ = `SELECT EXISTS (SELECT 1 FROM recordings WHERE stream_id = $1)`

	var st playback.Stream
	err := s.read(ctx, "get stream", func(ctx context.Context) error {
		var err error
		st, err = scanStream(s.pool.QueryRow(ctx, q, string(streamID)))
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		var exists bool
		if err := s.pool.QueryRow(ctx, existsQ, string(streamID)).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return pgx.ErrNoRows
		}
		st = playback.Stream{ID: streamID, Name: string(streamID)}
		return nil
	})
	return st, err
}

// ListRecordings implements playback.RecordingStore.ListRecordings, newest
// first.
func (s *Store) ListRecordings(ctx context.Context, streamID playback.StreamID, page playback.Page) ([]playback.Recording, error) {
	const q = recordingSelect + `
WHERE r.stream_id = $1
ORDER BY r.recorded_at DESC, r.id DESC
LIMIT $2 OFFSET $3`

	var out []playback.Recording
	err := s.read(ctx, "list recordings", func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx, q, string(streamID), page.Limit, page.Offset)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, collect(scanRecording))
		return err
	})
	return out, err
}

// CountRecordings implements playback.RecordingStore.CountRecordings.
func (s *Store) CountRecordings(ctx context.Context, streamID playback.StreamID) (int, error) {
	const q = `SELECT count(*) FROM recordings WHERE stream_id = $1`

	var n int64
	err := s.read(ctx, "count recordings", func(ctx context.Context) error {
		return s.pool.QueryRow(ctx, q, string(streamID)).Scan(&n)
	})
	return int(n), err
}

// GetRecording implements playback.RecordingStore.GetRecording.
func (s *Store) GetRecording(ctx context.Context, streamID playback.StreamID, id int64) (playback.Recording, error) {
	const q = recordingSelect + `
WHERE r.id = $1 AND r.stream_id = $2`

	var rec playback.Recording
	err := s.read(ctx, "get recording", func(ctx context.Context) error {
		var err error
		rec, err = scanRecording(s.pool.QueryRow(ctx, q, id, string(streamID)))
		return err
	})
	return rec, err
}

// RecordingFilepath implements playback.RecordingStore.RecordingFilepath.
func (s *Store) RecordingFilepath(ctx context.Context, streamID playback.StreamID, id int64) (string, error) {
	const q = `SELECT filepath FROM recordings WHERE id = $1 AND stream_id = $2`

	var path string
	err := s.read(ctx, "recording filepath", func(ctx context.Context) error {
		return s.pool.QueryRow(ctx, q, id, string(streamID)).Scan(&path)
	})
	return path, err
}

// GetDetectorConfig implements playback.DetectorConfigStore.GetDetectorConfig.
func (s *Store) GetDetectorConfig(ctx context.Context, streamID playback.StreamID) (playback.DetectorConfig, error) {
	const q = `
SELECT stream_id, enabled, pixel_threshold, area_threshold, cooldown_frames,
       pre_roll_seconds, post_roll_seconds, updated_at
FROM detector_config
WHERE stream_id = $1`

	var cfg playback.DetectorConfig
	err := s.read(ctx, "get detector config", func(ctx context.Context) error {
		var err error
		cfg, err = scanDetectorConfig(s.pool.QueryRow(ctx, q, string(streamID)))
		return err
	})
	return cfg, err
}

// UpsertDetectorConfig implements playback.DetectorConfigStore.UpsertDetectorConfig.
func (s *Store) UpsertDetectorConfig(ctx context.Context, cfg playback.DetectorConfig) (playback.DetectorConfig, error) {
	const q = `
INSERT INTO detector_config (
    stream_id, enabled, pixel_threshold, area_threshold, cooldown_frames,
    pre_roll_seconds, post_roll_seconds, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
ON CONFLICT (stream_id) DO UPDATE SET
    enabled = EXCLUDED.enabled,
    pixel_threshold = EXCLUDED.pixel_threshold,
    area_threshold = EXCLUDED.area_threshold,
    cooldown_frames = EXCLUDED.cooldown_frames,
    pre_roll_seconds = EXCLUDED.pre_roll_seconds,
    post_roll_seconds = EXCLUDED.post_roll_seconds,
    updated_at = NOW()
RETURNING stream_id, enabled, pixel_threshold, area_threshold, cooldown_frames,
          pre_roll_seconds, post_roll_seconds, updated_at`

	row := s.pool.QueryRow(ctx, q,
		string(cfg.StreamID),
		cfg.Enabled,
		cfg.PixelThreshold,
		cfg.AreaThreshold,
		cfg.CooldownFrames,
		cfg.PreRollSeconds,
		cfg.PostRollSeconds,
	)
	saved, err := scanDetectorConfig(row)
	if err != nil {
		return playback.DetectorConfig{}, fmt.Errorf("upsert detector config: %w", classify(err))
	}
	return saved, nil
}

// collect adapts a single-row scanner for pgx.CollectRows.
func collect[T any](scan func(pgx.Row) (T, error)) pgx.RowToFunc[T] {
	return func(row pgx.CollectableRow) (T, error) { return scan(row) }
}

func scanSegment(row pgx.Row) (playback.Segment, error) {
	var seg playback.Segment
	var streamID string
	err := row.Scan(&seg.ID, &streamID, &seg.Filename, &seg.Filepath, &seg.RecordedAt)
	seg.StreamID = playback.StreamID(streamID)
	return seg, err
}

func scanStream(row pgx.Row) (playback.Stream, error) {
	var st playback.Stream
	var id string
	err := row.Scan(&id, &st.Name, &st.SourceType, &st.SourceURL, &st.Ready, &st.LastSeenAt)
	st.ID = playback.StreamID(id)
	return st, err
}

// scanRecording builds the optional analysis from the nullable joined
// columns; a NULL analysis id means no analysis row exists.
func scanRecording(row pgx.Row) (playback.Recording, error) {
	var (
		rec      playback.Recording
		streamID string
		id       *int64
		desc     *string
		danger   *bool
		level    *int32
		details  *string
		created  *time.Time
	)
	err := row.Scan(
		&rec.ID, &streamID, &rec.Filename, &rec.Filepath, &rec.RecordedAt,
		&id, &desc, &danger, &level, &details, &created,
	)
	if err != nil {
		return playback.Recording{}, err
	}
	rec.StreamID = playback.StreamID(streamID)

	if id == nil {
		rec.Analysis = playback.NoAnalysis()
		return rec, nil
	}
	a := playback.Analysis{}
	if desc != nil {
		a.Description = *desc
	}
	if danger != nil {
		a.Danger = *danger
	}
	if level != nil {
		a.DangerLevel = int(*level)
	}
	if details != nil {
		a.DangerDetails = *details
	}
	if created != nil {
		a.CreatedAt = *created
	}
	rec.Analysis = playback.SomeAnalysis(a)
	return rec, nil
}

func scanDetectorConfig(row pgx.Row) (playback.DetectorConfig, error) {
	var (
		cfg      playback.DetectorConfig
		streamID string
		updated  time.Time
	)
	err := row.Scan(&streamID, &cfg.Enabled, &cfg.PixelThreshold, &cfg.AreaThreshold,
		&cfg.CooldownFrames, &cfg.PreRollSeconds, &cfg.PostRollSeconds, &updated)
	if err != nil {
		return playback.DetectorConfig{}, err
	}
	cfg.StreamID = playback.StreamID(streamID)
	cfg.UpdatedAt = &updated
	return cfg, nil
}
