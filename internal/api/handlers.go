package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/mapadevsports/uwbv2/internal/ingest"
	"github.com/mapadevsports/uwbv2/internal/version"
)

// payloadLines accepts the legacy ingest body shapes: {"payload": "line"}
// with embedded newlines, or {"payload": ["line", ...]}.
type payloadLines []string

func (p *payloadLines) UnmarshalJSON(b []byte) error {
	var single string
	if err := json.Unmarshal(b, &single); err == nil {
		*p = strings.Split(single, "\n")
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return fmt.Errorf("payload must be a string or an array of strings")
	}
	*p = many
	return nil
}

type ingestRequest struct {
	Payload payloadLines `json:"payload"`
}

func decodeIngestRequest(r *http.Request) (*ingestRequest, error) {
	var req ingestRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	return &req, nil
}

// writeBatchResult maps orchestrator outcomes to HTTP: an empty batch is a
// rejected request, a storage fault is a server error, anything else is a
// summary with per-row counters.
func writeBatchResult(w http.ResponseWriter, sum *ingest.BatchSummary, err error) {
	if err != nil {
		if errors.Is(err, ingest.ErrEmptyBatch) {
			http.Error(w, "empty batch: no usable lines in payload", http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sum)
}

func (s *Server) ingestRawHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	req, err := decodeIngestRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sum, err := s.orch.IngestRaw(r.Context(), req.Payload)
	writeBatchResult(w, sum, err)
}

func (s *Server) processHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	req, err := decodeIngestRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sum, err := s.orch.ProcessBatch(r.Context(), req.Payload)
	writeBatchResult(w, sum, err)
}

func (s *Server) listReadingsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rows, err := s.db.RecentReadings(r.Context(), queryLimit(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rows)
}

func (s *Server) listPositionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rows, err := s.db.RecentPositions(r.Context(), queryLimit(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rows)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

func queryLimit(r *http.Request) int {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	return limit
}
