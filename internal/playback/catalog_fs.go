package playback

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"panoptic/internal/platform/fsutil"
)

// SegmentExt is the extension of recorded transport-stream segments.
const SegmentExt = ".ts"

// FilesystemCatalog lists segments by walking root/streamID/DATE/SESSION/.
// It also serves as the stream directory: every first-level directory of
// root is a stream.
type FilesystemCatalog struct {
	root string
}

// NewFilesystemCatalog returns a catalog over the given recordings root.
func NewFilesystemCatalog(root string) *FilesystemCatalog {
	return &FilesystemCatalog{root: root}
}

// ListSegments implements SegmentCatalog.ListSegments.
func (c *FilesystemCatalog) ListSegments(ctx context.Context, streamID StreamID) ([]Segment, error) {
	if err := validateComponents(string(streamID)); err != nil {
		return nil, err
	}
	base := filepath.Join(c.root, string(streamID))
	if info, err := os.Stat(base); err != nil || !info.IsDir() {
		if err == nil || fsutil.IsMissing(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat stream dir: %w", err)
	}

	var segments []Segment
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Directories removed by the pipeline mid-walk are skipped.
			if fsutil.IsMissing(err) && path != base {
				return nil
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !isSegmentFile(d) {
			return nil
		}
		rel, err := filepath.Rel(c.root, path)
		if err != nil {
			return err
		}
		seg := Segment{
			StreamID: streamID,
			Filename: d.Name(),
			Filepath: filepath.ToSlash(rel),
		}
		if info, err := d.Info(); err == nil {
			seg.RecordedAt = info.ModTime().UTC()
		}
		segments = append(segments, seg)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", streamID, err)
	}

	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].Filepath < segments[j].Filepath
	})
	return segments, nil
}

// ListEventSegments implements SegmentCatalog.ListEventSegments.
func (c *FilesystemCatalog) ListEventSegments(ctx context.Context, streamID StreamID, eventID EventID) ([]Segment, error) {
	if err := validateComponents(string(streamID), eventID.Date, eventID.Session); err != nil {
		return nil, err
	}
	dir := filepath.Join(c.root, string(streamID), eventID.Date, eventID.Session)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if fsutil.IsMissing(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read event dir: %w", err)
	}

	prefix := string(streamID) + "/" + eventID.String() + "/"
	segments := make([]Segment, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || !isSegmentFile(e) {
			continue
		}
		seg := Segment{
			StreamID: streamID,
			Filename: e.Name(),
			Filepath: prefix + e.Name(),
		}
		if info, err := e.Info(); err == nil {
			seg.RecordedAt = info.ModTime().UTC()
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// ListStreams implements StreamDirectory.ListStreams. The filesystem has no
// liveness information, so Ready is always false and LastSeenAt is the
// directory's modification time.
func (c *FilesystemCatalog) ListStreams(ctx context.Context) ([]Stream, error) {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		if fsutil.IsMissing(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read recordings root: %w", err)
	}

	streams := make([]Stream, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		streams = append(streams, streamFromDir(e.Name(), e))
	}
	return streams, nil
}

// GetStream implements StreamDirectory.GetStream.
func (c *FilesystemCatalog) GetStream(ctx context.Context, streamID StreamID) (Stream, error) {
	if err := validateComponents(string(streamID)); err != nil {
		return Stream{}, err
	}
	info, err := os.Stat(filepath.Join(c.root, string(streamID)))
	if err != nil {
		if fsutil.IsMissing(err) {
			return Stream{}, fmt.Errorf("%w: stream %s", ErrNotFound, streamID)
		}
		return Stream{}, fmt.Errorf("stat stream dir: %w", err)
	}
	if !info.IsDir() {
		return Stream{}, fmt.Errorf("%w: stream %s", ErrNotFound, streamID)
	}
	return streamFromDir(string(streamID), fs.FileInfoToDirEntry(info)), nil
}

func streamFromDir(name string, d fs.DirEntry) Stream {
	s := Stream{ID: StreamID(name), Name: name}
	if info, err := d.Info(); err == nil {
		seen := info.ModTime().UTC()
		s.LastSeenAt = &seen
	}
	return s
}

func isSegmentFile(d fs.DirEntry) bool {
	return d.Type().IsRegular() && strings.HasSuffix(d.Name(), SegmentExt)
}
