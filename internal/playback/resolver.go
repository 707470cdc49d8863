package playback

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"panoptic/internal/platform/fsutil"
)

// PathResolver maps stream/event/segment identifiers and recording ids to
// absolute paths under the recordings root.
type PathResolver struct {
	root       string
	recordings RecordingStore
}

// NewPathResolver returns a resolver rooted at root. recordings may be nil
// when no metadata store is configured; recording lookups then fail with
// ErrUnsupported.
func NewPathResolver(root string, recordings RecordingStore) *PathResolver {
	return &PathResolver{root: root, recordings: recordings}
}

// ResolveSegmentPath returns the absolute path of one segment file of an
// event. Identifiers are validated before the filesystem is touched.
func (r *PathResolver) ResolveSegmentPath(streamID StreamID, eventID EventID, segment string) (string, error) {
	if err := validateComponents(string(streamID), eventID.Date, eventID.Session, segment); err != nil {
		return "", err
	}
	rel := filepath.Join(string(streamID), eventID.Date, eventID.Session, segment)
	return r.stat(rel)
}

// ResolveRecordingPath looks up the stored filepath of a recording and
// returns its absolute path. A missing row and a missing file both yield
// ErrNotFound.
func (r *PathResolver) ResolveRecordingPath(ctx context.Context, streamID StreamID, id int64) (string, error) {
	if err := validateComponents(string(streamID)); err != nil {
		return "", err
	}
	if r.recordings == nil {
		return "", ErrUnsupported
	}
	rel, err := r.recordings.RecordingFilepath(ctx, streamID, id)
	if err != nil {
		return "", err
	}
	if fsutil.HasTraversal(rel) {
		return "", fmt.Errorf("%w: stored filepath %q", ErrInvalidPath, rel)
	}
	return r.stat(rel)
}

func (r *PathResolver) stat(rel string) (string, error) {
	path, err := fsutil.Confine(r.root, rel)
	if err != nil {
		if errors.Is(err, fsutil.ErrOutsideRoot) {
			return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
		}
		return "", err
	}
	if _, err := fsutil.RegularFile(path); err != nil {
		if fsutil.IsMissing(err) || errors.Is(err, fsutil.ErrNotRegular) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, rel)
		}
		return "", err
	}
	return path, nil
}

// validateComponents rejects empty identifiers, traversal markers and
// embedded separators.
func validateComponents(parts ...string) error {
	for _, p := range parts {
		if p == "" || fsutil.HasTraversal(p) || strings.ContainsAny(p, "/\\\x00") {
			return fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
	}
	return nil
}
