package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/relevant-segments/ragcore/internal/kb"
	"github.com/relevant-segments/ragcore/internal/rse"
)

// QueryRequest is the body of POST /v1/query. Exactly one of Question or
// Queries must be set: Question runs the full ask pipeline (auto-query and
// synthesis when an LLM is configured), Queries runs extraction over
// pre-formed search queries.
type QueryRequest struct {
	Question string   `json:"question,omitempty"`
	Queries  []string `json:"queries,omitempty"`
}

// QueryResponse is the body of a successful query.
type QueryResponse struct {
	RequestID string            `json:"request_id"`
	Queries   []string          `json:"queries"`
	Segments  []rse.SegmentInfo `json:"segments"`
	Answer    string            `json:"answer,omitempty"`
	Cached    bool              `json:"cached,omitempty"`
}

// errorResponse is the body of any failed request.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return
	}

	if req.Question == "" && len(req.Queries) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "either question or queries is required"})
		return
	}
	if req.Question != "" && len(req.Queries) > 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "question and queries are mutually exclusive"})
		return
	}

	start := time.Now()
	var (
		result    *kb.QueryResult
		err       error
		operation string
	)
	if req.Question != "" {
		operation = "ask"
		result, err = s.kb.Ask(r.Context(), req.Question)
	} else {
		operation = "query"
		result, err = s.kb.Query(r.Context(), req.Queries)
	}

	if s.metrics != nil {
		s.metrics.ObserveQuery(operation, time.Since(start), err)
	}

	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, kb.ErrNoQueries), errors.Is(err, rse.ErrInvalidParameter), errors.Is(err, rse.ErrInconsistentResult):
			status = http.StatusBadRequest
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	if s.metrics != nil {
		lengths := make([]int, len(result.Segments))
		for i, seg := range result.Segments {
			lengths[i] = seg.ChunkEnd - seg.ChunkStart
		}
		s.metrics.ObserveExtraction(len(result.Queries), lengths, s.kb.Params().EffectiveOverallMaxLength(len(result.Queries)))
		s.metrics.ObserveCache(result.Cached)
	}

	writeJSON(w, http.StatusOK, QueryResponse{
		RequestID: result.RequestID,
		Queries:   result.Queries,
		Segments:  result.Segments,
		Answer:    result.Answer,
		Cached:    result.Cached,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
