package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/gunter0128/sop-assistant/internal/index"
	"github.com/gunter0128/sop-assistant/internal/models"
)

type errorResponse struct {
	Error string `json:"error"`
}

type documentInfo struct {
	DocID    string        `json:"doc_id"`
	Versions []versionInfo `json:"versions"`
}

type versionInfo struct {
	Version       models.Version `json:"version"`
	EffectiveDate string         `json:"effective_date"`
	Title         string         `json:"title"`
	Segments      int            `json:"segments"`
}

type rebuildResponse struct {
	BuildID   string `json:"build_id"`
	Segments  int    `json:"segments"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrEmbeddingUnavailable),
		errors.Is(err, models.ErrSynthesisUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, models.ErrIndexCorrupt):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	answer, err := s.assistant.Ask(r.Context(), &req)
	if err != nil {
		s.logger.Warn("ask failed", zap.String("query", req.Query), zap.Error(err))
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, answer)
}

// docInfo assembles the documents API view of one doc ID from the snapshot's
// version enumeration.
func docInfo(snap *index.Snapshot, docID string) documentInfo {
	segments := snap.DocSegments(docID)
	versions := make([]versionInfo, 0, 2)
	for _, v := range snap.Candidates(docID) {
		info := versionInfo{Version: v}
		for _, seg := range segments {
			if seg.Version != v {
				continue
			}
			info.EffectiveDate = seg.EffectiveDate.Format("2006-01-02")
			info.Title = seg.Title
			info.Segments++
		}
		versions = append(versions, info)
	}
	return documentInfo{DocID: docID, Versions: versions}
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Current()
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	docIDs := snap.DocIDs()
	docs := make([]documentInfo, 0, len(docIDs))
	for _, docID := range docIDs {
		docs = append(docs, docInfo(snap, docID))
	}
	respondJSON(w, http.StatusOK, docs)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Current()
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	docID := chi.URLParam(r, "id")
	if len(snap.DocSegments(docID)) == 0 {
		respondError(w, http.StatusNotFound, "document not found")
		return
	}
	respondJSON(w, http.StatusOK, docInfo(snap, docID))
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	if s.rebuild == nil {
		respondError(w, http.StatusServiceUnavailable, "rebuild not available")
		return
	}

	start := time.Now()
	snap, err := s.rebuild(r.Context())
	if err != nil {
		s.logger.Error("rebuild failed", zap.Error(err))
		respondError(w, statusFor(err), err.Error())
		return
	}
	s.store.Swap(snap)
	s.logger.Info("index rebuilt",
		zap.String("build_id", snap.BuildID()),
		zap.Int("segments", snap.Size()),
		zap.Duration("elapsed", time.Since(start)),
	)
	respondJSON(w, http.StatusOK, rebuildResponse{
		BuildID:   snap.BuildID(),
		Segments:  snap.Size(),
		ElapsedMS: time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Current()
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, snap.Stats())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
