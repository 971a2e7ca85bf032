package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redlinehq/redline/internal/annotate"
	"github.com/redlinehq/redline/internal/corrector"
	"github.com/redlinehq/redline/internal/history"
)

// ── wire types ───────────────────────────────────────────────────────────────

type extractRequest struct {
	OriginalText  string `json:"originalText"`
	CorrectedText string `json:"correctedText"`
}

type parseRequest struct {
	MarkedText string `json:"markedText"`
}

type parseResponse struct {
	annotate.ParseResult
	Strategy string `json:"strategy"`
}

type reconcileRequest struct {
	CanonicalText string                `json:"canonicalText"`
	Corrections   []annotate.Correction `json:"corrections"`
}

type reconcileResponse struct {
	Corrections []annotate.Correction `json:"corrections"`
	Missed      int                   `json:"missed"`
}

type alignRequest struct {
	Text        string                `json:"text"`
	Corrections []annotate.Correction `json:"corrections"`
}

type alignResponse struct {
	Segments []annotate.Segment `json:"segments"`
	Dropped  int                `json:"dropped"`
}

type correctRequest struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ── engine endpoints ─────────────────────────────────────────────────────────

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.OriginalText == "" {
		writeError(w, http.StatusBadRequest, "originalText is required")
		return
	}
	if req.CorrectedText == "" {
		writeError(w, http.StatusBadRequest, "correctedText is required")
		return
	}

	start := time.Now()
	result := annotate.ExtractSpans(req.OriginalText, req.CorrectedText)
	s.metrics.ExtractDuration.Record(r.Context(), time.Since(start).Seconds())
	for errType, n := range countByType(result.Corrections) {
		s.metrics.RecordCorrections(r.Context(), errType, n)
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.MarkedText == "" {
		writeError(w, http.StatusBadRequest, "markedText is required")
		return
	}

	start := time.Now()
	result, strategy := annotate.ParseMarkup(req.MarkedText)
	s.metrics.ExtractDuration.Record(r.Context(), time.Since(start).Seconds())
	if strategy != "structural" {
		s.metrics.RecordParseFallback(r.Context(), strategy)
	}

	writeJSON(w, http.StatusOK, parseResponse{ParseResult: result, Strategy: strategy})
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.CanonicalText == "" {
		writeError(w, http.StatusBadRequest, "canonicalText is required")
		return
	}

	out, missed := annotate.Reconcile(req.CanonicalText, req.Corrections)
	s.metrics.RecordReconcileMisses(r.Context(), int64(missed))

	writeJSON(w, http.StatusOK, reconcileResponse{Corrections: out, Missed: missed})
}

func (s *Server) handleAlign(w http.ResponseWriter, r *http.Request) {
	var req alignRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	segments, dropped := annotate.Align(req.Text, req.Corrections)
	s.metrics.RecordAlignDrops(r.Context(), int64(dropped))

	writeJSON(w, http.StatusOK, alignResponse{Segments: segments, Dropped: dropped})
}

// ── LLM and history endpoints ────────────────────────────────────────────────

func (s *Server) handleCorrect(w http.ResponseWriter, r *http.Request) {
	if s.corrector == nil {
		writeError(w, http.StatusServiceUnavailable, "no LLM provider configured")
		return
	}

	var req correctRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	result, err := s.corrector.Correct(r.Context(), req.Text)
	if err != nil {
		slog.Error("correction failed", "error", err)
		writeError(w, http.StatusBadGateway, "correction failed")
		return
	}

	s.persistResult(r, result)
	writeJSON(w, http.StatusOK, result)
}

// persistResult saves a correction result to the history store, embedding
// the original text when an embeddings provider is available. Persistence is
// best-effort: failures are logged and never surface to the client.
func (s *Server) persistResult(r *http.Request, result *corrector.Result) {
	rec := history.Record{
		OriginalText: result.OriginalText,
		CleanText:    result.CleanText,
		Corrections:  result.Corrections,
		Strategy:     result.Strategy,
		Model:        result.Model,
	}
	if s.embedder != nil {
		vec, err := s.embedder.Embed(r.Context(), result.OriginalText)
		if err != nil {
			slog.Warn("embedding failed, saving without vector", "error", err)
			s.metrics.RecordProviderError(r.Context(), s.embedder.ModelID(), "embeddings")
		} else {
			rec.Embedding = vec
			s.metrics.RecordProviderRequest(r.Context(), s.embedder.ModelID(), "embeddings", "ok")
		}
	}
	if _, err := s.store.Save(r.Context(), rec); err != nil {
		slog.Warn("failed to persist correction result", "error", err)
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, int(s.recentLimit.Load()))

	recs, err := s.store.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("history listing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "history listing failed")
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	if s.embedder == nil {
		writeError(w, http.StatusServiceUnavailable, "no embeddings provider configured")
		return
	}
	text := r.URL.Query().Get("text")
	if text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	vec, err := s.embedder.Embed(r.Context(), text)
	if err != nil {
		slog.Error("query embedding failed", "error", err)
		s.metrics.RecordProviderError(r.Context(), s.embedder.ModelID(), "embeddings")
		writeError(w, http.StatusBadGateway, "query embedding failed")
		return
	}
	s.metrics.RecordProviderRequest(r.Context(), s.embedder.ModelID(), "embeddings", "ok")

	results, err := s.store.Similar(r.Context(), vec, queryLimit(r, int(s.recentLimit.Load())))
	if err != nil {
		slog.Error("similarity lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "similarity lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// ── helpers ──────────────────────────────────────────────────────────────────

// decodeBody decodes the JSON request body into v. On failure it writes a
// 400 response and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// queryLimit parses the limit query parameter, falling back to def when
// absent or unparseable.
func queryLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// countByType aggregates corrections by error type for metric recording.
func countByType(corrections []annotate.Correction) map[string]int64 {
	counts := make(map[string]int64, 4)
	for _, c := range corrections {
		counts[string(c.Type)]++
	}
	return counts
}
