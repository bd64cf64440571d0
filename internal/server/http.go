package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/coffersTech/actionlog/internal/engine"
	"github.com/coffersTech/actionlog/internal/metrics"
	"github.com/coffersTech/actionlog/internal/model"
	"github.com/coffersTech/actionlog/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/valyala/fastjson"
)

// maxBodySize bounds save and upload request bodies.
const maxBodySize = 32 << 20

// IngestServer exposes the engine over HTTP.
type IngestServer struct {
	engine *engine.Engine
	webDir string // Directory for static web files
	logger zerolog.Logger
	srv    *http.Server
	parser fastjson.ParserPool
}

func NewIngestServer(eng *engine.Engine, webDir string, logger zerolog.Logger) *IngestServer {
	return &IngestServer{
		engine: eng,
		webDir: webDir,
		logger: logger,
	}
}

// Handler builds the router.
func (s *IngestServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors)
	r.Use(s.instrument)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/logs", func(r chi.Router) {
		r.Get("/", s.handleQuery)
		r.Get("/list", s.handleList)
		r.Get("/stats", s.handleStats)
		r.Post("/save", s.handleSave)
		r.Post("/cleanup", s.handleCleanup)
		r.Post("/upload", s.handleUpload)
		r.Get("/{fileName}", s.handleGetFile)
		r.Delete("/{fileName}", s.handleDeleteFile)
	})

	// Static file serving for web directory
	if s.webDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.webDir)))
	}
	return r
}

// Start runs the HTTP server until Shutdown is called.
func (s *IngestServer) Start(addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info().Str("addr", addr).Msg("http server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *IngestServer) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.logger.Info().Str("addr", l.Addr().String()).Msg("http server listening")

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Shutdown(cctx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Shutdown gracefully shuts down the server.
func (s *IngestServer) Shutdown(ctx context.Context) error {
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}

func (s *IngestServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleQuery processes GET /api/logs. Every query parameter is optional.
func (s *IngestServer) handleQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := engine.Filter{
		UserName:  q.Get("userName"),
		CompanyID: q.Get("companyId"),
		Event:     q.Get("event"),
	}

	if v := q.Get("level"); v != "" {
		lvl, err := model.ParseLevel(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid level: "+v)
			return
		}
		filter.Level = lvl
	}
	for _, p := range []struct {
		key string
		dst *time.Time
	}{{"since", &filter.Since}, {"until", &filter.Until}} {
		v := q.Get(p.key)
		if v == "" {
			continue
		}
		t, ok := model.ParseTimestamp(v)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s: %s", p.key, v))
			return
		}
		*p.dst = t
	}

	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit: "+v)
			return
		}
		limit = n
	}

	writeJSON(w, http.StatusOK, s.engine.Index().Search(filter, limit))
}

func (s *IngestServer) handleList(w http.ResponseWriter, r *http.Request) {
	files, err := s.engine.Store().List()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if files == nil {
		files = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(files),
		"files":   files,
	})
}

func (s *IngestServer) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Stats())
}

// handleGetFile returns a stored file exactly as it is on disk.
func (s *IngestServer) handleGetFile(w http.ResponseWriter, r *http.Request) {
	raw, err := s.engine.Store().ReadRaw(fileParam(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func (s *IngestServer) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	name := fileParam(r)
	if err := s.engine.Delete(name); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Log file deleted successfully",
	})
}

// handleSave processes POST /api/logs/save.
func (s *IngestServer) handleSave(w http.ResponseWriter, r *http.Request) {
	p := s.parser.Get()
	defer s.parser.Put(p)

	v, err := s.parseBody(p, w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	logData := v.Get("logData")
	if logData == nil || logData.Type() == fastjson.TypeNull {
		s.fail(w, r, &model.ValidationError{Field: "logData", Message: "is required"})
		return
	}
	fileName := string(v.GetStringBytes("fileName"))
	if strings.TrimSpace(fileName) == "" {
		s.fail(w, r, &model.ValidationError{Field: "fileName", Message: "is required"})
		return
	}
	mode, err := storage.ParseMergeMode(string(v.GetStringBytes("mode")))
	if err != nil {
		s.fail(w, r, &model.ValidationError{Field: "mode", Message: err.Error()})
		return
	}
	content, err := model.ContentFromValue(logData)
	if err != nil {
		s.fail(w, r, &model.ValidationError{Field: "logData", Message: err.Error()})
		return
	}

	res, err := s.engine.Save(fileName, content, mode)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  "Log saved successfully",
		"filePath": res.Path,
		"fileName": res.FileName,
	})
}

func (s *IngestServer) handleCleanup(w http.ResponseWriter, r *http.Request) {
	res := s.engine.Cleanup()
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"deletedCount": res.DeletedCount,
		"deletedFiles": res.DeletedFiles,
		"message":      fmt.Sprintf("Cleanup completed, %d file(s) deleted", res.DeletedCount),
	})
}

// handleUpload imports a batch of entries into a new file.
func (s *IngestServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	p := s.parser.Get()
	defer s.parser.Put(p)

	v, err := s.parseBody(p, w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	logsData := v.Get("logsData")
	if logsData == nil || logsData.Type() == fastjson.TypeNull {
		s.fail(w, r, &model.ValidationError{Field: "logsData", Message: "is required"})
		return
	}
	content, err := model.ContentFromValue(logsData)
	if err != nil {
		s.fail(w, r, &model.ValidationError{Field: "logsData", Message: err.Error()})
		return
	}

	res, err := s.engine.Upload(string(v.GetStringBytes("fileName")), content)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  "Logs uploaded successfully",
		"count":    res.Entries,
		"fileName": res.FileName,
	})
}

// parseBody reads the request body and parses it as a JSON object.
func (s *IngestServer) parseBody(p *fastjson.Parser, w http.ResponseWriter, r *http.Request) (*fastjson.Value, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return nil, &model.ValidationError{Field: "body", Message: err.Error()}
	}
	defer r.Body.Close()

	v, err := p.ParseBytes(body)
	if err != nil {
		return nil, &model.ValidationError{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	if v.Type() != fastjson.TypeObject {
		return nil, &model.ValidationError{Field: "body", Message: "must be a JSON object"}
	}
	return v, nil
}

// fileParam returns the decoded {fileName} path segment. chi matches on the
// raw path, so encoded separators arrive here still escaped.
func fileParam(r *http.Request) string {
	raw := chi.URLParam(r, "fileName")
	if name, err := url.PathUnescape(raw); err == nil {
		return name
	}
	return raw
}
