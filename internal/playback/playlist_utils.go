package playback

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// DefaultSegmentDuration is the duration assumed for every recorded segment.
// It matches the capture pipeline's segmenter setting and is not measured
// from the media.
const DefaultSegmentDuration = 5 * time.Second

// BuildVODPlaylist converts ordered segment filenames into an HLS VOD
// playlist. Every segment is announced with the same assumed duration and
// referenced by its bare filename, relative to the playlist URL.
func BuildVODPlaylist(filenames []string, segmentDuration time.Duration) string {
	if segmentDuration <= 0 {
		segmentDuration = DefaultSegmentDuration
	}
	seconds := segmentDuration.Seconds()

	var b strings.Builder

	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")
	b.WriteString(fmt.Sprintf("#EXT-X-TARGETDURATION:%d\n", targetDuration(seconds)))
	b.WriteString("#EXT-X-MEDIA-SEQUENCE:0\n")
	b.WriteString("#EXT-X-PLAYLIST-TYPE:VOD\n")

	for _, name := range filenames {
		b.WriteString(fmt.Sprintf("#EXTINF:%.6f,\n", seconds))
		b.WriteString(name)
		b.WriteString("\n")
	}

	b.WriteString("#EXT-X-ENDLIST\n")
	return b.String()
}

// playlistSegments keeps the transport-stream segments and sorts them by
// filename. The pipeline zero-pads sequence numbers, so lexical order is
// playback order.
func playlistSegments(segments []Segment) []string {
	names := make([]string, 0, len(segments))
	for _, seg := range segments {
		if strings.HasSuffix(seg.Filename, SegmentExt) {
			names = append(names, seg.Filename)
		}
	}
	sort.Strings(names)
	return names
}

// targetDuration returns the #EXT-X-TARGETDURATION value: the ceiling of the
// segment duration in whole seconds, at least 1.
func targetDuration(seconds float64) int {
	if seconds <= 0 {
		return 1
	}
	return int(math.Ceil(seconds))
}
