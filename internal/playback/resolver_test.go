package playback

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSegmentPath(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "cam1/20260115/20260115_093335/seg_00001.ts")
	r := NewPathResolver(root, nil)
	ev := EventID{Date: "20260115", Session: "20260115_093335"}

	got, err := r.ResolveSegmentPath("cam1", ev, "seg_00001.ts")
	require.NoError(t, err)
	assert.Equal(t, realPath(t, filepath.Join(root, "cam1", "20260115", "20260115_093335", "seg_00001.ts")), got)

	_, err = r.ResolveSegmentPath("cam1", ev, "seg_00002.ts")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.ResolveSegmentPath("cam1", EventID{Date: "20260115", Session: "20260115_093335"}, "")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestResolveSegmentPath_rejects_traversal(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "secret.ts")
	r := NewPathResolver(root, nil)

	tests := []struct {
		name    string
		stream  StreamID
		ev      EventID
		segment string
	}{
		{"segment parent", "cam1", EventID{"20260115", "s"}, ".."},
		{"segment dotdot prefix", "cam1", EventID{"20260115", "s"}, "..secret.ts"},
		{"segment with slash", "cam1", EventID{"20260115", "s"}, "../../../secret.ts"},
		{"stream parent", "..", EventID{"20260115", "s"}, "secret.ts"},
		{"date parent", "cam1", EventID{"..", "s"}, "secret.ts"},
		{"session parent", "cam1", EventID{"20260115", ".."}, "secret.ts"},
		{"backslash", "cam1", EventID{"20260115", "s"}, `..\secret.ts`},
		{"empty stream", "", EventID{"20260115", "s"}, "secret.ts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.ResolveSegmentPath(tt.stream, tt.ev, tt.segment)
			assert.ErrorIs(t, err, ErrInvalidPath)
		})
	}
}

func TestResolveSegmentPath_directory_is_not_found(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "cam1", "d", "s", "sub.ts"), 0o755))
	r := NewPathResolver(root, nil)

	_, err := r.ResolveSegmentPath("cam1", EventID{"d", "s"}, "sub.ts")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveSegmentPath_symlink_escape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	writeTree(t, outside, "secret.ts")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "cam1", "d", "s"), 0o755))
	if err := os.Symlink(filepath.Join(outside, "secret.ts"), filepath.Join(root, "cam1", "d", "s", "link.ts")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	r := NewPathResolver(root, nil)

	_, err := r.ResolveSegmentPath("cam1", EventID{"d", "s"}, "link.ts")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestResolveRecordingPath(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "cam1/20260115/20260115_093335/seg_00001.ts")

	store := NewMemoryStore()
	now := time.Now()
	present := store.AddRecording(Segment{
		StreamID: "cam1", Filename: "seg_00001.ts",
		Filepath: "cam1/20260115/20260115_093335/seg_00001.ts", RecordedAt: now,
	}, NoAnalysis())
	missingFile := store.AddRecording(Segment{
		StreamID: "cam1", Filename: "seg_00002.ts",
		Filepath: "cam1/20260115/20260115_093335/seg_00002.ts", RecordedAt: now,
	}, NoAnalysis())
	escaping := store.AddRecording(Segment{
		StreamID: "cam1", Filename: "passwd", Filepath: "../../etc/passwd", RecordedAt: now,
	}, NoAnalysis())

	r := NewPathResolver(root, store)
	ctx := context.Background()

	got, err := r.ResolveRecordingPath(ctx, "cam1", present)
	require.NoError(t, err)
	assert.Equal(t, realPath(t, filepath.Join(root, "cam1", "20260115", "20260115_093335", "seg_00001.ts")), got)

	_, errMissingRow := r.ResolveRecordingPath(ctx, "cam1", 9999)
	_, errMissingFile := r.ResolveRecordingPath(ctx, "cam1", missingFile)
	assert.ErrorIs(t, errMissingRow, ErrNotFound)
	assert.ErrorIs(t, errMissingFile, ErrNotFound)

	_, err = r.ResolveRecordingPath(ctx, "cam2", present)
	assert.ErrorIs(t, err, ErrNotFound, "recording of another stream")

	_, err = r.ResolveRecordingPath(ctx, "cam1", escaping)
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestResolveRecordingPath_without_store(t *testing.T) {
	r := NewPathResolver(t.TempDir(), nil)
	_, err := r.ResolveRecordingPath(context.Background(), "cam1", 1)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestResolveSegmentPath_file_in_session_slot(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "cam1/20260115/cam1_093335.ts")
	r := NewPathResolver(root, nil)

	_, err := r.ResolveSegmentPath("cam1", EventID{Date: "20260115", Session: "cam1_093335.ts"}, "seg.ts")
	assert.ErrorIs(t, err, ErrNotFound)
}
