// Package server exposes a Session over HTTP with JSON responses.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/poiesic/vidqa"
	"github.com/poiesic/vidqa/core"
	"github.com/poiesic/vidqa/ingestion"
	"github.com/poiesic/vidqa/reembed"
)

// MaxSegmentBytes is the largest audio upload accepted, matching the
// transcription service's file limit.
const MaxSegmentBytes = 25 << 20

// Session is the part of vidqa.Session the handlers use.
type Session interface {
	Ingest(audio []byte, format string) <-chan ingestion.IngestResult
	Ask(ctx context.Context, question string) vidqa.Answer
	Reset(ctx context.Context) error
	Status(ctx context.Context) (vidqa.Status, error)
	Backfill(ctx context.Context) (reembed.Result, error)
}

// Server routes HTTP requests to a Session.
type Server struct {
	session Session
	mux     *http.ServeMux
	logger  *slog.Logger
}

// New creates a server for session. A nil logger falls back to slog.Default().
func New(session Session, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		session: session,
		mux:     http.NewServeMux(),
		logger:  logger.With("component", "server"),
	}
	s.mux.HandleFunc("POST /v1/segments", s.handleSegment)
	s.mux.HandleFunc("POST /v1/questions", s.handleQuestion)
	s.mux.HandleFunc("POST /v1/reset", s.handleReset)
	s.mux.HandleFunc("POST /v1/backfill", s.handleBackfill)
	s.mux.HandleFunc("GET /v1/status", s.handleStatus)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// SegmentResponse describes an ingested segment.
type SegmentResponse struct {
	SegmentID string `json:"segment_id"`
	Epoch     uint64 `json:"epoch"`
	Status    string `json:"status"`
	Text      string `json:"text,omitempty"`
	Seq       uint64 `json:"seq,omitempty"`
	Embedded  bool   `json:"embedded,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}

// handleSegment accepts a raw audio body. The format comes from the format
// query parameter, defaulting to webm. With wait=true the response carries
// the processing result; otherwise the segment is queued and 202 returned.
func (s *Server) handleSegment(w http.ResponseWriter, r *http.Request) {
	audio, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxSegmentBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "segment too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read body"})
		return
	}
	if len(audio) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "audio body is required"})
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = core.DefaultAudioFormat
	}
	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))

	results := s.session.Ingest(audio, format)
	if !wait {
		go s.logResult(results)
		writeJSON(w, http.StatusAccepted, SegmentResponse{
			SegmentID: core.IDFromContent(audio).String(),
			Status:    "queued",
		})
		return
	}

	select {
	case res := <-results:
		status := http.StatusOK
		switch {
		case res.Discarded:
			status = http.StatusConflict
		case errors.Is(res.Err, core.ErrInvalidSegment):
			status = http.StatusBadRequest
		case errors.Is(res.Err, ingestion.ErrPipelineClosed):
			status = http.StatusServiceUnavailable
		case res.Err != nil:
			status = http.StatusBadGateway
		}
		writeJSON(w, status, segmentResponse(res))
	case <-r.Context().Done():
		go s.logResult(results)
	}
}

func (s *Server) logResult(results <-chan ingestion.IngestResult) {
	res := <-results
	s.logger.Debug("segment finished", "segment", res.SegmentID, "message", res.Message)
}

func segmentResponse(res ingestion.IngestResult) SegmentResponse {
	out := SegmentResponse{
		SegmentID: res.SegmentID.String(),
		Epoch:     res.Epoch,
		Text:      res.Text,
		Seq:       res.Seq,
		Embedded:  res.Embedded,
		Message:   res.Message,
	}
	switch {
	case res.Discarded:
		out.Status = "discarded"
	case res.Err != nil:
		out.Status = "failed"
		out.Error = res.Err.Error()
	case res.Stored:
		out.Status = "stored"
	default:
		out.Status = "skipped"
	}
	return out
}

// QuestionRequest is the body of POST /v1/questions.
type QuestionRequest struct {
	Question string `json:"question"`
}

// SourceResponse is one transcript excerpt used for an answer.
type SourceResponse struct {
	Seq   uint64  `json:"seq"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// AnswerResponse is the reply to a question.
type AnswerResponse struct {
	Kind    string           `json:"kind"`
	Text    string           `json:"text"`
	Sources []SourceResponse `json:"sources,omitempty"`
	Error   string           `json:"error,omitempty"`
}

func (s *Server) handleQuestion(w http.ResponseWriter, r *http.Request) {
	var req QuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON"})
		return
	}

	answer := s.session.Ask(r.Context(), req.Question)

	resp := AnswerResponse{Kind: answer.Kind.String(), Text: answer.Text}
	for _, src := range answer.Sources {
		resp.Sources = append(resp.Sources, SourceResponse{Seq: src.Seq, Text: src.Text, Score: src.Score})
	}
	if answer.Err != nil {
		resp.Error = answer.Err.Error()
	}

	status := http.StatusOK
	switch {
	case errors.Is(answer.Err, vidqa.ErrEmptyQuestion):
		status = http.StatusBadRequest
	case errors.Is(answer.Err, vidqa.ErrSessionClosed):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Reset(r.Context()); err != nil {
		s.logger.Error("reset failed", "err", err)
		writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
		return
	}
	st, err := s.session.Status(r.Context())
	if err != nil {
		writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "reset", "epoch": st.Epoch})
}

func (s *Server) handleBackfill(w http.ResponseWriter, r *http.Request) {
	res, err := s.session.Backfill(r.Context())
	if err != nil {
		s.logger.Error("backfill failed", "err", err)
		writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.session.Status(r.Context())
	if err != nil {
		writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func statusFor(err error) int {
	if errors.Is(err, vidqa.ErrSessionClosed) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
