package server

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/webfont-splitter/internal/db"
	"github.com/jonathan/webfont-splitter/internal/pipeline"
	"github.com/jonathan/webfont-splitter/internal/store"
	"github.com/jonathan/webfont-splitter/internal/types"
)

// RunRequest is the body of POST /runs. Unset fields use the server's
// configuration.
type RunRequest struct {
	Fonts           []string `json:"fonts"`
	Mode            string   `json:"mode,omitempty"`
	Webroot         string   `json:"webroot,omitempty"`
	ReferenceData   string   `json:"reference_data,omitempty"`
	Preload         string   `json:"preload,omitempty"`
	IncludeFamilies []string `json:"include_families,omitempty"`
	ExcludeFamilies []string `json:"exclude_families,omitempty"`
	StrictFonts     *bool    `json:"strict_fonts,omitempty"`
	FailFast        *bool    `json:"fail_fast,omitempty"`
}

// RunResponse reports a finished run
type RunResponse struct {
	RunID      string           `json:"run_id"`
	Status     string           `json:"status"`
	Summary    types.RunSummary `json:"summary"`
	Stylesheet string           `json:"stylesheet"`
}

// EntryResponse is a store entry with its public URI
type EntryResponse struct {
	types.StoreEntry
	URI string `json:"uri"`
}

func decodeRunRequest(r *http.Request) (RunRequest, error) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, &ErrValidation{Field: "body", Message: err.Error()}
	}
	if len(req.Fonts) == 0 {
		return req, &ErrValidation{Field: "fonts", Message: "at least one font is required"}
	}
	return req, nil
}

// runOptions overlays the request on the server configuration
func (s *Server) runOptions(req RunRequest) (pipeline.RunOptions, error) {
	req, err := s.roots.confineRequest(req)
	if err != nil {
		return pipeline.RunOptions{}, err
	}

	cfg := s.base
	cfg.Fonts = req.Fonts
	if req.Mode != "" {
		cfg.Mode = req.Mode
	}
	if req.Webroot != "" {
		cfg.Webroot = req.Webroot
	}
	if req.ReferenceData != "" {
		cfg.ReferenceData = req.ReferenceData
	}
	if req.Preload != "" {
		cfg.Preload = req.Preload
	}
	if len(req.IncludeFamilies) > 0 {
		cfg.IncludeFamilies = req.IncludeFamilies
	}
	if len(req.ExcludeFamilies) > 0 {
		cfg.ExcludeFamilies = req.ExcludeFamilies
	}
	if req.StrictFonts != nil {
		cfg.StrictFonts = *req.StrictFonts
	}
	if req.FailFast != nil {
		cfg.FailFast = *req.FailFast
	}
	// The stylesheet goes into the response instead.
	cfg.CSSOut = ""
	cfg.CSSAppend = false

	if err := cfg.Validate(); err != nil {
		return pipeline.RunOptions{}, &ErrValidation{Field: "request", Message: err.Error()}
	}
	opts, err := pipeline.NewRunOptions(cfg, s.logger)
	if err != nil {
		return pipeline.RunOptions{}, &ErrValidation{Field: "request", Message: err.Error()}
	}
	if s.runLog != nil {
		opts.Mirror = s.runLog
		opts.Recorder = s.runLog
	}
	return opts, nil
}

func (s *Server) acquire() bool {
	select {
	case s.runSlot <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Server) release() {
	<-s.runSlot
}

func newRunResponse(res *pipeline.Result) RunResponse {
	return RunResponse{
		RunID:      res.RunID.String(),
		Status:     db.StatusFor(nil, len(res.Diagnostics)),
		Summary:    res.Summary,
		Stylesheet: res.CSS,
	}
}

// handleRun executes a run and answers when it is done
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRunRequest(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	opts, err := s.runOptions(req)
	if err != nil {
		s.fail(w, err)
		return
	}
	if !s.acquire() {
		s.fail(w, ErrBusy)
		return
	}
	defer s.release()

	res, err := s.run(r.Context(), opts)
	if err != nil {
		s.logger.Warn("run failed", zap.Error(err))
		s.errorResponse(w, http.StatusInternalServerError, "run failed: "+err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, newRunResponse(res))
}

// handleRunStream executes a run and streams progress via SSE
func (s *Server) handleRunStream(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRunRequest(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	opts, err := s.runOptions(req)
	if err != nil {
		s.fail(w, err)
		return
	}
	if !s.acquire() {
		s.fail(w, ErrBusy)
		return
	}
	defer s.release()

	stream, err := newRunStream(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	opts.OnProgress = func(event pipeline.ProgressEvent) {
		if err := stream.progress(event); err != nil {
			s.logger.Debug("failed to write progress event", zap.Int("seq", event.Seq), zap.Error(err))
		}
	}

	res, err := s.run(r.Context(), opts)
	if err != nil {
		s.logger.Warn("run failed", zap.Error(err))
		stream.failed(err) //nolint:errcheck
		return
	}
	resp := newRunResponse(res)
	if err := stream.result(resp); err != nil {
		s.logger.Debug("failed to write result event", zap.Error(err))
		return
	}
	stream.complete(resp) //nolint:errcheck
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runLog == nil {
		s.fail(w, ErrNoRunLog)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.fail(w, &ErrValidation{Field: "limit", Message: "must be a non-negative integer"})
			return
		}
		limit = n
	}
	runs, err := s.runLog.ListRuns(r.Context(), limit)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if runs == nil {
		runs = []db.Run{}
	}
	s.jsonResponse(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.runLog == nil {
		s.fail(w, ErrNoRunLog)
		return
	}
	idStr := r.PathValue("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		s.fail(w, &ErrValidation{Field: "id", Message: "invalid run ID format"})
		return
	}
	run, err := s.runLog.GetRun(r.Context(), id)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if run == nil {
		s.fail(w, &ErrNotFound{Kind: "run", ID: idStr})
		return
	}
	s.jsonResponse(w, http.StatusOK, run)
}

// handleListEntries lists the catalogue: the database mirror when
// configured, the store's own index otherwise
func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	st, err := store.Open(s.base.StoreDir, s.base.BaseURI, store.Options{Logger: s.logger})
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer st.Close() //nolint:errcheck

	entries := st.Entries()
	if s.runLog != nil {
		entries, err = s.runLog.ListEntries(r.Context())
		if err != nil {
			s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
			return
		}
	}

	out := make([]EntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, EntryResponse{StoreEntry: e, URI: st.UriFor(e)})
	}
	s.jsonResponse(w, http.StatusOK, out)
}

// handleFont serves a stored file. Names are content hashes, so responses
// never change.
func (s *Server) handleFont(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("file")
	hash, ok := strings.CutSuffix(name, store.FileExt)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if _, err := store.ParseHash(hash); err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "font/woff2")
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeFile(w, r, filepath.Join(s.base.StoreDir, name))
}
