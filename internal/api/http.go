// Package api serves the read-only trainer state to external renderers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	pianofall "github.com/cbegin/pianofall-go"
	"github.com/cbegin/pianofall-go/internal/section"
	"github.com/cbegin/pianofall-go/pkg/logger"
	"github.com/cbegin/pianofall-go/pkg/metrics"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Source is the part of the trainer the API reads.
type Source interface {
	Snapshot() pianofall.Snapshot
	Notes() []pianofall.Note
	Metadata() (pianofall.Metadata, error)
	Sections() []section.Info
}

// Server wires the state routes.
type Server struct {
	src     Source
	metrics *metrics.Manager
	log     logger.Logger
}

func NewServer(src Source, m *metrics.Manager) *Server {
	return &Server{src: src, metrics: m, log: logger.Named("api")}
}

// Handler returns the routed, CORS-enabled handler.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/api/state", s.MetricsMiddleware(s.handleState, "state")).Methods(http.MethodGet)
	router.HandleFunc("/api/notes", s.MetricsMiddleware(s.handleNotes, "notes")).Methods(http.MethodGet)
	router.HandleFunc("/api/score", s.MetricsMiddleware(s.handleScore, "score")).Methods(http.MethodGet)
	if s.metrics != nil {
		router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	})
	return c.Handler(router)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "starting HTTP server", logger.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Error(ctx, "server shutdown failed", logger.Error(err))
		return err
	}
	s.log.Info(ctx, "server stopped")
	return nil
}

type tallyResponse struct {
	Correct  int     `json:"correct"`
	Missed   int     `json:"missed"`
	Total    int     `json:"total"`
	Accuracy float64 `json:"accuracy"`
}

type stateResponse struct {
	SessionID   string         `json:"session_id"`
	Loaded      bool           `json:"loaded"`
	Playing     bool           `json:"playing"`
	Paused      bool           `json:"paused"`
	Now         float64        `json:"now"`
	Speed       float64        `json:"speed"`
	Section     int            `json:"section"`
	Pass        int            `json:"pass"`
	RepeatCount int            `json:"repeat_count"`
	Tally       tallyResponse  `json:"tally"`
	Held        map[int]string `json:"held"`
}

type noteResponse struct {
	Pitch    int     `json:"pitch"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Hand     string  `json:"hand"`
	Finger   int     `json:"finger"`
	Color    string  `json:"color"`
	State    string  `json:"state"`
}

type sectionResponse struct {
	Index int     `json:"index"`
	Label string  `json:"label"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type scoreResponse struct {
	BPM               float64           `json:"bpm"`
	Numerator         int               `json:"numerator"`
	Denominator       int               `json:"denominator"`
	Duration          float64           `json:"duration"`
	LeadIn            float64           `json:"lead_in"`
	NoteCount         int               `json:"note_count"`
	MeasureBoundaries []float64         `json:"measure_boundaries"`
	Sections          []sectionResponse `json:"sections"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	snap := s.src.Snapshot()
	writeJSON(w, http.StatusOK, stateResponse{
		SessionID:   snap.SessionID,
		Loaded:      snap.Loaded,
		Playing:     snap.Playing,
		Paused:      snap.Paused,
		Now:         snap.Now,
		Speed:       snap.Speed,
		Section:     snap.Section,
		Pass:        snap.Pass,
		RepeatCount: snap.RepeatCount,
		Tally: tallyResponse{
			Correct:  snap.Tally.Correct,
			Missed:   snap.Tally.Missed,
			Total:    snap.Tally.Total,
			Accuracy: snap.Accuracy,
		},
		Held: snap.Held,
	})
}

func (s *Server) handleNotes(w http.ResponseWriter, _ *http.Request) {
	notes := s.src.Notes()
	out := make([]noteResponse, 0, len(notes))
	for _, n := range notes {
		out = append(out, noteResponse{
			Pitch:    n.Pitch,
			Start:    n.Start,
			Duration: n.Duration,
			Hand:     n.Hand.String(),
			Finger:   n.Finger,
			Color:    n.Color,
			State:    n.State.String(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleScore(w http.ResponseWriter, _ *http.Request) {
	md, err := s.src.Metadata()
	if errors.Is(err, pianofall.ErrNoScore) {
		writeError(w, http.StatusNotFound, "no_score", err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err)
		return
	}
	sections := s.src.Sections()
	resp := scoreResponse{
		BPM:               md.BPM,
		Numerator:         md.Numerator,
		Denominator:       md.Denominator,
		Duration:          md.Duration,
		LeadIn:            md.LeadIn,
		NoteCount:         md.NoteCount,
		MeasureBoundaries: md.MeasureBoundaries,
		Sections:          make([]sectionResponse, 0, len(sections)),
	}
	for _, sec := range sections {
		resp.Sections = append(resp.Sections, sectionResponse(sec))
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
