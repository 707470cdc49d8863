package playback

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

// writeTree creates each relative path under root with placeholder content.
func writeTree(t *testing.T, root string, paths ...string) {
	t.Helper()
	for _, p := range paths {
		full := filepath.Join(root, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", p, err)
		}
		if err := os.WriteFile(full, []byte("ts:"+p), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
}

// realPath resolves symlinks in a temp path so it compares equal to what
// the resolver returns on systems where the temp dir is a symlink.
func realPath(t *testing.T, p string) string {
	t.Helper()
	r, err := filepath.EvalSymlinks(p)
	if err != nil {
		t.Fatalf("eval symlinks %s: %v", p, err)
	}
	return r
}

// countingCatalog records how often storage is consulted.
type countingCatalog struct {
	SegmentCatalog
	calls atomic.Int32
}

func (c *countingCatalog) ListSegments(ctx context.Context, streamID StreamID) ([]Segment, error) {
	c.calls.Add(1)
	return c.SegmentCatalog.ListSegments(ctx, streamID)
}

func (c *countingCatalog) ListEventSegments(ctx context.Context, streamID StreamID, eventID EventID) ([]Segment, error) {
	c.calls.Add(1)
	return c.SegmentCatalog.ListEventSegments(ctx, streamID, eventID)
}
