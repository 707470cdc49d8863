package playback

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesystemCatalog_ListSegments(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"cam1/20260115/20260115_093335/seg_00002.ts",
		"cam1/20260115/20260115_093335/seg_00001.ts",
		"cam1/20260115/20260115_093335/thumb.jpg",
		"cam1/20260115/20260115_101000/seg_00001.ts",
		"cam2/20260115/20260115_093335/seg_00001.ts",
	)
	c := NewFilesystemCatalog(root)

	segs, err := c.ListSegments(context.Background(), "cam1")
	require.NoError(t, err)
	require.Len(t, segs, 3)
	assert.Equal(t, "cam1/20260115/20260115_093335/seg_00001.ts", segs[0].Filepath)
	assert.Equal(t, "cam1/20260115/20260115_093335/seg_00002.ts", segs[1].Filepath)
	assert.Equal(t, "cam1/20260115/20260115_101000/seg_00001.ts", segs[2].Filepath)
	for _, s := range segs {
		assert.Equal(t, StreamID("cam1"), s.StreamID)
		assert.False(t, s.RecordedAt.IsZero())
	}
}

func TestFilesystemCatalog_ListSegments_unknown_stream(t *testing.T) {
	c := NewFilesystemCatalog(t.TempDir())
	segs, err := c.ListSegments(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, segs)

	_, err = c.ListSegments(context.Background(), "..")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestFilesystemCatalog_ListEventSegments(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"cam1/20260115/20260115_093335/seg_00001.ts",
		"cam1/20260115/20260115_093335/seg_00002.ts",
		"cam1/20260115/20260115_093335/notes.txt",
		"cam1/20260115/20260115_101000/seg_00001.ts",
	)
	c := NewFilesystemCatalog(root)
	ev := EventID{Date: "20260115", Session: "20260115_093335"}

	segs, err := c.ListEventSegments(context.Background(), "cam1", ev)
	require.NoError(t, err)
	require.Len(t, segs, 2)
	for _, s := range segs {
		assert.Contains(t, []string{"seg_00001.ts", "seg_00002.ts"}, s.Filename)
		assert.Equal(t, "cam1/20260115/20260115_093335/"+s.Filename, s.Filepath)
	}

	segs, err = c.ListEventSegments(context.Background(), "cam1", EventID{Date: "20260115", Session: "missing"})
	require.NoError(t, err)
	assert.Empty(t, segs)
}

func TestFilesystemCatalog_Streams(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "cam1/20260115/s/seg_00001.ts", "README.ts")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "cam2"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".trash"), 0o755))
	c := NewFilesystemCatalog(root)

	streams, err := c.ListStreams(context.Background())
	require.NoError(t, err)
	ids := make([]StreamID, 0, len(streams))
	for _, s := range streams {
		ids = append(ids, s.ID)
		assert.False(t, s.Ready)
		assert.NotNil(t, s.LastSeenAt)
	}
	assert.ElementsMatch(t, []StreamID{"cam1", "cam2"}, ids)

	st, err := c.GetStream(context.Background(), "cam2")
	require.NoError(t, err)
	assert.Equal(t, "cam2", st.Name)

	_, err = c.GetStream(context.Background(), "cam3")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.GetStream(context.Background(), "README.ts")
	assert.ErrorIs(t, err, ErrNotFound, "a file is not a stream")
}

func TestFilesystemCatalog_ListStreams_missing_root(t *testing.T) {
	c := NewFilesystemCatalog(filepath.Join(t.TempDir(), "absent"))
	streams, err := c.ListStreams(context.Background())
	require.NoError(t, err)
	assert.Empty(t, streams)
}

func TestFilesystemCatalog_ListEventSegments_file_in_session_slot(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "cam1/20260115/cam1_093335.ts")
	c := NewFilesystemCatalog(root)

	segs, err := c.ListEventSegments(context.Background(), "cam1", EventID{Date: "20260115", Session: "cam1_093335.ts"})
	require.NoError(t, err)
	assert.Empty(t, segs)
}
