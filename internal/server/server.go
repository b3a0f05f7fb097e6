package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/example/go-readaloud/internal/config"
	"github.com/example/go-readaloud/internal/pipeline"
	"github.com/example/go-readaloud/internal/synth"
)

// ParseLogLevel converts a case-insensitive level string to slog.Level.
// An empty string returns slog.LevelInfo. Unknown strings return an error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}

// Reader reads text aloud. *pipeline.Pipeline implements it.
type Reader interface {
	Run(ctx context.Context, text string, voice synth.Voice) (pipeline.Summary, error)
	Segments(text string) []string
}

// ---------------------------------------------------------------------------
// Functional options
// ---------------------------------------------------------------------------

type options struct {
	maxTextBytes   int
	requestTimeout time.Duration
	logger         *slog.Logger
}

func defaultOptions() options {
	return options{
		maxTextBytes:   16384,
		requestTimeout: 300 * time.Second,
		logger:         slog.Default(),
	}
}

// Option configures the HTTP handler.
type Option func(*options)

// WithMaxTextBytes sets the maximum allowed text length in bytes.
func WithMaxTextBytes(n int) Option {
	return func(o *options) { o.maxTextBytes = n }
}

// WithRequestTimeout sets the per-request read-aloud deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithLogger sets the slog.Logger used for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// ---------------------------------------------------------------------------
// handler
// ---------------------------------------------------------------------------

// handler holds the dependencies needed to serve HTTP requests.
type handler struct {
	reader Reader
	opts   options
	slot   chan struct{} // one call owns the output device at a time
	log    *slog.Logger
}

// NewHandler returns an http.Handler that serves /health, POST /segments and
// POST /speak.
func NewHandler(reader Reader, optFns ...Option) http.Handler {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	h := &handler{
		reader: reader,
		opts:   opts,
		slot:   make(chan struct{}, 1),
		log:    opts.logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/segments", h.handleSegments)
	mux.HandleFunc("/speak", h.handleSpeak)
	return mux
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildVersion(),
	})
}

type speakRequest struct {
	Text  string `json:"text"`
	Lang  string `json:"lang"`
	Voice string `json:"voice"`
}

type segmentsResponse struct {
	Segments []string `json:"segments"`
}

type speakResponse struct {
	Status string `json:"status"`
	pipeline.Summary
}

type errorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Segment *int   `json:"segment,omitempty"`
	Text    string `json:"text,omitempty"`
	Stage   string `json:"stage,omitempty"`
	Played  *int   `json:"played,omitempty"`
}

// decodeRequest reads and checks the JSON body shared by /segments and
// /speak. It writes the error response itself and reports false on failure.
func (h *handler) decodeRequest(w http.ResponseWriter, r *http.Request) (speakRequest, bool) {
	var req speakRequest
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return req, false
	}
	if r.Body == nil {
		writeError(w, http.StatusBadRequest, "request body is required")
		return req, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return req, false
	}
	if len(req.Text) > h.opts.maxTextBytes {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("text exceeds maximum size of %d bytes", h.opts.maxTextBytes))
		return req, false
	}
	return req, true
}

func (h *handler) handleSegments(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}
	segments := h.reader.Segments(req.Text)
	if segments == nil {
		segments = []string{}
	}
	writeJSON(w, http.StatusOK, segmentsResponse{Segments: segments})
}

func (h *handler) handleSpeak(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	// Wait for the output device; give up if the client does.
	select {
	case h.slot <- struct{}{}:
	case <-r.Context().Done():
		writeError(w, http.StatusServiceUnavailable, "request cancelled while waiting for the output device")
		return
	}
	defer func() { <-h.slot }()

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.requestTimeout)
	defer cancel()

	voice := synth.Voice{Lang: req.Lang, Name: req.Voice}
	sum, err := h.reader.Run(ctx, req.Text, voice)
	if err != nil {
		h.writeRunError(w, r, req, sum, err)
		return
	}

	h.log.InfoContext(r.Context(), "read-aloud complete",
		slog.String("call_id", sum.CallID),
		slog.String("voice", req.Voice),
		slog.Int("text_len", len(req.Text)),
		slog.Int("segments", sum.Segments),
		slog.Int("played", sum.Played),
		slog.Int64("duration_ms", sum.Elapsed.Milliseconds()),
	)
	writeJSON(w, http.StatusOK, speakResponse{Status: sum.String(), Summary: sum})
}

func (h *handler) writeRunError(w http.ResponseWriter, r *http.Request, req speakRequest, sum pipeline.Summary, err error) {
	kind := pipeline.Kind(err)
	resp := errorResponse{Error: err.Error(), Kind: kind}
	played := sum.Played
	resp.Played = &played

	var se *pipeline.SegmentError
	if errors.As(err, &se) {
		idx := se.Index
		resp.Segment = &idx
		resp.Text = se.Text
		resp.Stage = se.Stage.String()
	}

	status := statusForKind(kind, err)
	attrs := []any{
		slog.String("call_id", sum.CallID),
		slog.String("voice", req.Voice),
		slog.Int("text_len", len(req.Text)),
		slog.String("kind", kind),
		slog.Int("status", status),
		slog.Int("played", sum.Played),
		slog.String("error", err.Error()),
	}
	if status == http.StatusGatewayTimeout {
		h.log.WarnContext(r.Context(), "read-aloud timed out", attrs...)
	} else {
		h.log.ErrorContext(r.Context(), "read-aloud failed", attrs...)
	}
	writeJSON(w, status, resp)
}

func statusForKind(kind string, err error) int {
	switch kind {
	case pipeline.KindCanceled:
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusServiceUnavailable
	case pipeline.KindSynthesisUnavailable, pipeline.KindPlaybackDeviceUnavailable:
		return http.StatusServiceUnavailable
	case pipeline.KindSynthesisFailed, pipeline.KindAudioDecodeFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// ---------------------------------------------------------------------------
// Server
// ---------------------------------------------------------------------------

// Server wires the HTTP handler into a net/http.Server with graceful shutdown.
type Server struct {
	cfg             config.Config
	reader          Reader
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

func New(cfg config.Config, reader Reader) *Server {
	timeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Server{
		cfg:             cfg,
		reader:          reader,
		logger:          slog.Default(),
		shutdownTimeout: timeout,
	}
}

// WithShutdownTimeout overrides the graceful-shutdown drain period.
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	s.shutdownTimeout = d
	return s
}

// WithLogger overrides the request logger.
func (s *Server) WithLogger(l *slog.Logger) *Server {
	s.logger = l
	return s
}

func (s *Server) Start(ctx context.Context) error {
	if s.reader == nil {
		return errors.New("server: no reader configured")
	}

	handlerOpts := []Option{
		WithMaxTextBytes(s.cfg.Server.MaxTextBytes),
		WithRequestTimeout(time.Duration(s.cfg.Server.RequestTimeout) * time.Second),
		WithLogger(s.logger.With(slog.String("component", "server"))),
	}

	h := NewHandler(s.reader, handlerOpts...)

	httpServer := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return fmt.Errorf("http listen: %w", err)
	}
}

func ProbeHTTP(addr string) error {
	resp, err := http.Get("http://" + addr + "/health") //nolint:noctx
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected health status: %s", resp.Status)
	}
	return nil
}
