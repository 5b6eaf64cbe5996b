package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"github.com/eleven-am/transcoder"
	"github.com/eleven-am/transcoder/internal/domain"
	"github.com/eleven-am/transcoder/internal/ffmpeg"
	"github.com/eleven-am/transcoder/internal/observability"
	"github.com/eleven-am/transcoder/internal/transcode"
)

const (
	playlistContentType = "application/vnd.apple.mpegurl"
	segmentContentType  = "video/mp2t"
)

// TranscodeRequest is the body of a create or master playlist call. Paths
// are probed; only the target matching Kind is used.
type TranscodeRequest struct {
	Kind  domain.Kind `json:"kind"`
	Paths []string    `json:"paths"`

	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	// Rendition narrows a video request to one rung of the quality ladder.
	// The transcode is then addressed as <transcodeID>-<rendition>.
	Rendition string `json:"rendition,omitempty"`

	Video domain.VideoTarget `json:"video"`
	Audio domain.AudioTarget `json:"audio"`
	Image domain.ImageTarget `json:"image"`
}

// TranscodeStatus describes a transcode context.
type TranscodeStatus struct {
	ID             string      `json:"id"`
	ClientID       string      `json:"client_id"`
	TranscodeID    string      `json:"transcode_id"`
	Kind           domain.Kind `json:"kind"`
	Name           string      `json:"name,omitempty"`
	State          string      `json:"state"`
	Partial        bool        `json:"partial"`
	Live           bool        `json:"live"`
	Cached         bool        `json:"cached"`
	StartSegment   int64       `json:"start_segment"`
	CurrentSegment int64       `json:"current_segment"`
	LastSegment    int64       `json:"last_segment"`
	Duration       float64     `json:"duration"`
	Size           int64       `json:"size"`
	Subtitles      []string    `json:"subtitles,omitempty"`
	Error          string      `json:"error,omitempty"`
}

func statusOf(c *transcoder.Context) TranscodeStatus {
	st := TranscodeStatus{
		ID:             c.ID,
		ClientID:       c.ClientID,
		TranscodeID:    c.TranscodeID,
		Kind:           c.Kind,
		Name:           c.Name,
		State:          c.State().String(),
		Partial:        c.Partial,
		Live:           c.Live,
		Cached:         c.Cached,
		StartSegment:   c.StartSegment,
		CurrentSegment: c.CurrentSegment(),
		LastSegment:    c.LastSegment(),
		Duration:       c.CurrentDuration(),
		Size:           c.CurrentSize(),
	}
	for _, s := range c.Subtitles {
		st.Subtitles = append(st.Subtitles, path.Base(s))
	}
	if err := c.Err(); err != nil {
		st.Error = err.Error()
	}
	return st
}

func ids(r *http.Request) (string, string) {
	return chi.URLParam(r, "clientID"), chi.URLParam(r, "transcodeID")
}

func (s *Server) listTranscodes(w http.ResponseWriter, _ *http.Request) {
	active := s.ctrl.Active()
	out := make([]TranscodeStatus, 0, len(active))
	for _, c := range active {
		out = append(out, statusOf(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createTranscode(w http.ResponseWriter, r *http.Request) {
	clientID, transcodeID := ids(r)

	var body TranscodeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	req, err := s.build(r.Context(), domain.Job{ClientID: clientID, TranscodeID: transcodeID}, body)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	tc, err := s.ctrl.Transcode(r.Context(), req, body.Start, body.Duration)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, statusOf(tc))
}

func (s *Server) getTranscode(w http.ResponseWriter, r *http.Request) {
	tc, err := s.ctrl.Lookup(ids(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusOf(tc))
}

func (s *Server) stopTranscode(w http.ResponseWriter, r *http.Request) {
	if !s.ctrl.StopTranscode(ids(r)) {
		writeError(w, r, http.StatusNotFound, transcoder.ErrNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// masterPlaylist advertises the quality ladder of the posted source. Each
// variant is the media playlist of the rendition's own transcode.
func (s *Server) masterPlaylist(w http.ResponseWriter, r *http.Request) {
	clientID, transcodeID := ids(r)

	var body TranscodeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	body.Kind = domain.KindVideo
	body.Rendition = ""

	req, err := s.build(r.Context(), domain.Job{ClientID: clientID, TranscodeID: transcodeID}, body)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	out, err := s.ctrl.MasterPlaylist(req.(*transcoder.VideoRequest), func(name string) string {
		return fmt.Sprintf("/transcodes/%s/%s-%s/index.m3u8", clientID, transcodeID, name)
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", playlistContentType)
	_, _ = w.Write(out)
}

func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	clientID, transcodeID := ids(r)
	tc, err := s.ctrl.Lookup(clientID, transcodeID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	body, err := s.ctrl.Open(r.Context(), clientID, transcodeID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer body.Close()

	contentType := mime.TypeByExtension(path.Ext(tc.Name))
	if tc.Segmented() {
		contentType = playlistContentType
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if _, err := io.Copy(w, body); err != nil {
		observability.LoggerFromContext(r.Context()).Debug("stream interrupted", slog.Any("error", err))
	}
}

func (s *Server) playlist(w http.ResponseWriter, r *http.Request) {
	clientID, transcodeID := ids(r)
	base := fmt.Sprintf("/transcodes/%s/%s", clientID, transcodeID)
	body, err := s.ctrl.Playlist(r.Context(), clientID, transcodeID, base)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", playlistContentType)
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(body)
}

func (s *Server) segment(w http.ResponseWriter, r *http.Request) {
	clientID, transcodeID := ids(r)
	body, err := s.ctrl.Segment(r.Context(), clientID, transcodeID, chi.URLParam(r, "segment"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", segmentContentType)
	_, _ = io.Copy(w, body)
}

func (s *Server) subtitle(w http.ResponseWriter, r *http.Request) {
	clientID, transcodeID := ids(r)
	name := chi.URLParam(r, "name")
	body, err := s.ctrl.Subtitle(clientID, transcodeID, name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer body.Close()

	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	_, _ = io.Copy(w, body)
}

// build probes the request paths and assembles the typed request.
func (s *Server) build(ctx context.Context, job domain.Job, body TranscodeRequest) (transcoder.Request, error) {
	if len(body.Paths) == 0 {
		return nil, &ffmpeg.NegotiationError{TranscodeID: job.TranscodeID, Err: ffmpeg.ErrNoSource}
	}

	switch body.Kind {
	case domain.KindVideo, "":
		req := &transcoder.VideoRequest{Job: job, Target: body.Video}
		for _, p := range body.Paths {
			src, err := s.ctrl.ProbeVideo(ctx, p)
			if err != nil {
				return nil, probeError{err}
			}
			req.Sources = append(req.Sources, src)
		}
		if body.Rendition != "" {
			return s.ctrl.Rendition(req, body.Rendition)
		}
		return req, nil
	case domain.KindAudio:
		src, err := s.ctrl.ProbeAudio(ctx, body.Paths[0])
		if err != nil {
			return nil, probeError{err}
		}
		return &transcoder.AudioRequest{Job: job, Source: src, Target: body.Audio}, nil
	case domain.KindImage:
		src, err := s.ctrl.ProbeImage(ctx, body.Paths[0])
		if err != nil {
			return nil, probeError{err}
		}
		return &transcoder.ImageRequest{Job: job, Source: src, Target: body.Image}, nil
	}
	return nil, &ffmpeg.NegotiationError{TranscodeID: job.TranscodeID, Err: ffmpeg.ErrUnsupported}
}

type probeError struct{ err error }

func (e probeError) Error() string { return e.err.Error() }
func (e probeError) Unwrap() error { return e.err }

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		negErr   *ffmpeg.NegotiationError
		spawnErr *transcode.SpawnError
		probeErr probeError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, transcoder.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, transcoder.ErrSegmentUnavailable):
		status = http.StatusConflict
	case errors.Is(err, transcoder.ErrNotSegmented), errors.Is(err, transcoder.ErrUnknownRendition):
		status = http.StatusBadRequest
	case errors.Is(err, transcoder.ErrWaitTimeout), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case errors.Is(err, transcoder.ErrClosed):
		status = http.StatusServiceUnavailable
	case errors.As(err, &negErr), errors.As(err, &probeErr):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &spawnErr):
		status = http.StatusBadGateway
	}
	writeError(w, r, status, err)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		observability.LoggerFromContext(r.Context()).Error("request failed", slog.Any("error", err))
	}
	writeJSON(w, status, map[string]string{
		"error":      err.Error(),
		"request_id": GetRequestID(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
