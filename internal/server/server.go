// Package server exposes a Predictor over a small JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"mime"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tsawler/classify"
	"github.com/tsawler/classify/internal/extract"
	"github.com/tsawler/classify/internal/registry"
)

// PreviewRunes is how much of an uploaded file's text is echoed back.
const PreviewRunes = 500

// RunLoader restores the model of a recorded training run.
type RunLoader interface {
	LoadModel(ctx context.Context, id string) (*classify.Model, error)
}

// Options configures a Server.
type Options struct {
	ModelDir       string    // reloaded from by POST /api/reload
	Runs           RunLoader // optional, enables POST /api/reload?run=<id>
	MaxUploadBytes int64
	Logger         *log.Logger
}

// Server serves classifications from a Predictor.
type Server struct {
	predictor *classify.Predictor
	opts      Options
	logger    *log.Logger
	mux       *http.ServeMux
}

// New builds a Server around p. The predictor may be empty; requests then
// fail with 503 until a model is reloaded.
func New(p *classify.Predictor, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = extract.MaxSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	s := &Server{predictor: p, opts: opts, logger: logger, mux: http.NewServeMux()}
	s.mux.HandleFunc("POST /api/predict", s.handlePredict)
	s.mux.HandleFunc("POST /api/upload", s.handleUpload)
	s.mux.HandleFunc("GET /api/training-info", s.handleTrainingInfo)
	s.mux.HandleFunc("GET /api/labels", s.handleLabels)
	s.mux.HandleFunc("POST /api/reload", s.handleReload)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	return s
}

// Handler returns the API with request ids and access logging applied.
func (s *Server) Handler() http.Handler {
	return s.withRequestID(s.mux)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string, readTimeout, writeTimeout time.Duration) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.Printf("listening on %s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

type ctxKey struct{}

// RequestID returns the id assigned to the request carried by ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
		s.logger.Printf("%s %s %d %s id=%s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Microsecond), id)
	})
}

// PredictResponse is the body returned for a classified text.
type PredictResponse struct {
	*classify.Result
	Consensus *classify.Consensus `json:"consensus,omitempty"`
	WordCount int                 `json:"word_count"`
}

// UploadResponse adds the extracted text preview to a prediction.
type UploadResponse struct {
	PredictResponse
	Filename string `json:"filename"`
	Text     string `json:"text"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) classify(r *http.Request, text string) (PredictResponse, error) {
	res, err := s.predictor.Classify(r.Context(), text)
	if err != nil {
		return PredictResponse{}, err
	}
	res.ID = RequestID(r.Context())
	out := PredictResponse{Result: res, WordCount: len(strings.Fields(text))}
	if c, ok := res.Consensus(); ok {
		out.Consensus = &c
	}
	return out, nil
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var text string
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		var body struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)).Decode(&body); err != nil {
			s.writeError(w, r, fmt.Errorf("%w: request body: %v", classify.ErrInvalidInput, err))
			return
		}
		text = body.Text
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
		text = r.FormValue("text")
	}
	if strings.TrimSpace(text) == "" {
		s.writeError(w, r, fmt.Errorf("%w: text is empty", classify.ErrInvalidInput))
		return
	}

	out, err := s.classify(r, text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		s.writeError(w, r, err)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: no file uploaded", classify.ErrInvalidInput))
		return
	}
	defer file.Close()
	if header.Filename == "" {
		s.writeError(w, r, fmt.Errorf("%w: no file selected", classify.ErrInvalidInput))
		return
	}

	data, err := extract.ReadAll(file, s.opts.MaxUploadBytes)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	text, err := extract.File(header.Filename, data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(text) == "" {
		s.writeError(w, r, extract.ErrNoText)
		return
	}

	out, err := s.classify(r, text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UploadResponse{
		PredictResponse: out,
		Filename:        header.Filename,
		Text:            extract.Preview(text, PreviewRunes),
	})
}

func (s *Server) handleTrainingInfo(w http.ResponseWriter, r *http.Request) {
	m := s.predictor.Model()
	if m == nil {
		s.writeError(w, r, classify.ErrNotFitted)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Name string `json:"name"`
		classify.TrainingInfo
		DisplayLabels []string `json:"display_labels"`
	}{m.Name, m.Info, m.Labels().DisplayNames()})
}

func (s *Server) handleLabels(w http.ResponseWriter, r *http.Request) {
	m := s.predictor.Model()
	if m == nil {
		s.writeError(w, r, classify.ErrNotFitted)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"labels":         m.Labels().Names(),
		"display_labels": m.Labels().DisplayNames(),
		"algorithms":     m.Algorithms(),
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	var (
		m      *classify.Model
		err    error
		source string
	)
	if run := r.URL.Query().Get("run"); run != "" {
		if s.opts.Runs == nil {
			s.writeError(w, r, fmt.Errorf("%w: no run registry configured", classify.ErrInvalidInput))
			return
		}
		m, err = s.opts.Runs.LoadModel(r.Context(), run)
		source = "run " + run
	} else {
		if s.opts.ModelDir == "" {
			s.writeError(w, r, fmt.Errorf("%w: no model directory configured", classify.ErrInvalidInput))
			return
		}
		m, err = classify.ModelFromDisk(s.opts.ModelDir)
		source = s.opts.ModelDir
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.predictor.Swap(m)
	s.logger.Printf("model %q reloaded from %s", m.Name, source)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "reloaded",
		"name":       m.Name,
		"source":     source,
		"labels":     m.Labels().Names(),
		"algorithms": m.Algorithms(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"model_loaded": s.predictor.Model() != nil,
	})
}

// statusOf maps an error to the HTTP status reported for it.
func statusOf(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, classify.ErrNotFitted):
		return http.StatusServiceUnavailable
	case errors.Is(err, extract.ErrTooLarge), errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, classify.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, classify.ErrInvalidInput), errors.Is(err, extract.ErrNoText),
		errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary):
		return http.StatusBadRequest
	case errors.Is(err, os.ErrNotExist), errors.Is(err, registry.ErrRunNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusServiceUnavailable {
		msg = "no model is loaded; train one with `classify train` and POST /api/reload"
	}
	if status >= http.StatusInternalServerError {
		s.logger.Printf("error id=%s: %v", RequestID(r.Context()), err)
	}
	writeJSON(w, status, errorResponse{Error: msg, RequestID: RequestID(r.Context())})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}
