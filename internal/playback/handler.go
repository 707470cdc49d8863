package playback

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"panoptic/internal/platform/fsutil"
	"panoptic/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
)

const (
	playlistContentType = "application/vnd.apple.mpegurl"
	segmentContentType  = "video/mp2t"
	jsonContentType     = "application/json"
)

// Handler exposes playback HTTP endpoints using go-chi.
type Handler struct {
	svc     *Service
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler that uses the given Service, Logger, and optional Metrics.
// Metrics may be nil to disable metric recording (e.g. in tests).
func NewHandler(svc *Service, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, log: log, metrics: m}
}

// Routes registers the playback endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/streams", h.ListStreams)
	r.Route("/streams/{stream_id}", func(r chi.Router) {
		r.Get("/events", h.ListEvents)
		r.Route("/events/{date}/{session}", func(r chi.Router) {
			r.Get("/playlist.m3u8", h.GetPlaylist)
			r.Get("/{segment}", h.GetSegment)
		})
		r.Get("/recordings", h.ListRecordings)
		r.Get("/recordings/{recording_id}", h.GetRecording)
		r.Get("/recordings/{recording_id}/video", h.GetRecordingVideo)
		r.Get("/config", h.GetDetectorConfig)
		r.Put("/config", h.PutDetectorConfig)
	})
}

// ListStreams handles GET /streams.
func (h *Handler) ListStreams(w http.ResponseWriter, r *http.Request) {
	streams, err := h.svc.ListStreams(r.Context())
	if err != nil {
		h.writeJSONError(w, r, err)
		return
	}
	if streams == nil {
		streams = []Stream{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"streams": streams})
}

// ListEvents handles GET /streams/{stream_id}/events.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	streamID := StreamID(chi.URLParam(r, "stream_id"))

	events, err := h.svc.ListEvents(r.Context(), streamID)
	if err != nil {
		h.writeJSONError(w, r, err)
		return
	}
	if h.metrics != nil {
		h.metrics.IncEventListings()
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"stream_id": streamID, "events": events})
}

// GetPlaylist handles GET /streams/{stream_id}/events/{date}/{session}/playlist.m3u8.
func (h *Handler) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	streamID := StreamID(chi.URLParam(r, "stream_id"))
	eventID := eventIDParam(r)

	m3u8, err := h.svc.GetPlaylist(r.Context(), streamID, eventID)
	if err != nil {
		h.writeStatusError(w, r, err)
		return
	}

	h.log.Debug("playlist synthesized",
		slog.String("stream_id", string(streamID)),
		slog.String("event_id", eventID.String()))
	if h.metrics != nil {
		h.metrics.IncPlaylistsServed()
	}
	w.Header().Set("Content-Type", playlistContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(m3u8))
}

// GetSegment handles GET /streams/{stream_id}/events/{date}/{session}/{segment}.
func (h *Handler) GetSegment(w http.ResponseWriter, r *http.Request) {
	streamID := StreamID(chi.URLParam(r, "stream_id"))

	path, err := h.svc.ResolveSegmentPath(streamID, eventIDParam(r), chi.URLParam(r, "segment"))
	if err != nil {
		h.writeStatusError(w, r, err)
		return
	}
	h.serveFile(w, r, path)
}

// ListRecordings handles GET /streams/{stream_id}/recordings?limit=&offset=.
func (h *Handler) ListRecordings(w http.ResponseWriter, r *http.Request) {
	streamID := StreamID(chi.URLParam(r, "stream_id"))

	page, err := pageParams(r)
	if err != nil {
		h.writeJSONError(w, r, err)
		return
	}
	result, err := h.svc.ListRecordings(r.Context(), streamID, page)
	if err != nil {
		h.writeJSONError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// GetRecording handles GET /streams/{stream_id}/recordings/{recording_id}.
func (h *Handler) GetRecording(w http.ResponseWriter, r *http.Request) {
	streamID := StreamID(chi.URLParam(r, "stream_id"))

	id, err := recordingIDParam(r)
	if err != nil {
		h.writeJSONError(w, r, err)
		return
	}
	rec, err := h.svc.GetRecording(r.Context(), streamID, id)
	if err != nil {
		h.writeJSONError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

// GetRecordingVideo handles GET /streams/{stream_id}/recordings/{recording_id}/video.
func (h *Handler) GetRecordingVideo(w http.ResponseWriter, r *http.Request) {
	streamID := StreamID(chi.URLParam(r, "stream_id"))

	id, err := recordingIDParam(r)
	if err != nil {
		h.writeStatusError(w, r, err)
		return
	}
	path, err := h.svc.ResolveRecordingPath(r.Context(), streamID, id)
	if err != nil {
		h.writeStatusError(w, r, err)
		return
	}
	h.serveFile(w, r, path)
}

// GetDetectorConfig handles GET /streams/{stream_id}/config.
func (h *Handler) GetDetectorConfig(w http.ResponseWriter, r *http.Request) {
	streamID := StreamID(chi.URLParam(r, "stream_id"))

	cfg, err := h.svc.DetectorConfig(r.Context(), streamID)
	if err != nil {
		h.writeJSONError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, cfg)
}

// PutDetectorConfig handles PUT /streams/{stream_id}/config.
// Body: { "enabled": true, "pixel_threshold": 25, "area_threshold": 1.0, ... }.
func (h *Handler) PutDetectorConfig(w http.ResponseWriter, r *http.Request) {
	streamID := StreamID(chi.URLParam(r, "stream_id"))

	cfg := DefaultDetectorConfig(streamID)
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		h.log.Debug("invalid detector config body", slog.String("error", err.Error()))
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	saved, err := h.svc.SaveDetectorConfig(r.Context(), streamID, cfg)
	if err != nil {
		h.writeJSONError(w, r, err)
		return
	}
	h.log.Info("detector config saved", slog.String("stream_id", string(streamID)))
	h.writeJSON(w, http.StatusOK, saved)
}

func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request, path string) {
	f, err := os.Open(path)
	if err != nil {
		if fsutil.IsMissing(err) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.log.Error("open media file failed", slog.String("path", path), slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		h.log.Error("stat media file failed", slog.String("path", path), slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if h.metrics != nil {
		h.metrics.IncSegmentsServed()
	}
	w.Header().Set("Content-Type", segmentContentType)
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// statusFor maps service errors to HTTP status codes.
func (h *Handler) statusFor(r *http.Request, err error) int {
	switch {
	case errors.Is(err, ErrInvalidPath):
		h.log.Warn("path traversal rejected",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		if h.metrics != nil {
			h.metrics.IncPathRejections()
		}
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnsupported):
		return http.StatusNotImplemented
	case errors.Is(err, ErrUpstreamUnavailable):
		h.log.Error("metadata store unavailable", slog.String("error", err.Error()))
		return http.StatusServiceUnavailable
	default:
		h.log.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		return http.StatusInternalServerError
	}
}

// writeStatusError answers playlist and media routes with a bare status.
func (h *Handler) writeStatusError(w http.ResponseWriter, r *http.Request, err error) {
	w.WriteHeader(h.statusFor(r, err))
}

func (h *Handler) writeJSONError(w http.ResponseWriter, r *http.Request, err error) {
	status := h.statusFor(r, err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", jsonContentType)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Debug("write response failed", slog.String("error", err.Error()))
	}
}

func eventIDParam(r *http.Request) EventID {
	return EventID{Date: chi.URLParam(r, "date"), Session: chi.URLParam(r, "session")}
}

func recordingIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "recording_id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: recording id must be a positive integer", ErrInvalidArgument)
	}
	return id, nil
}

func pageParams(r *http.Request) (Page, error) {
	var p Page
	q := r.URL.Query()
	for key, dst := range map[string]*int{"limit": &p.Limit, "offset": &p.Offset} {
		s := q.Get(key)
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return Page{}, fmt.Errorf("%w: %s must be an integer", ErrInvalidArgument, key)
		}
		*dst = n
	}
	return p, nil
}
