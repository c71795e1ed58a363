package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/duara-social/matchengine/internal/config"
	"github.com/duara-social/matchengine/internal/engine"
	"github.com/duara-social/matchengine/internal/storage"
)

// APIHandlers contains HTTP handlers for the REST API.
type APIHandlers struct {
	orchestrator *engine.Orchestrator
	model        *engine.ModelHandle
	config       *config.Config
}

// NewAPIHandlers creates a new APIHandlers instance.
func NewAPIHandlers(orch *engine.Orchestrator, model *engine.ModelHandle, cfg *config.Config) *APIHandlers {
	return &APIHandlers{
		orchestrator: orch,
		model:        model,
		config:       cfg,
	}
}

// ErrorResponse is the JSON shape of every error payload.
type ErrorResponse struct {
	Error     string                 `json:"error"`
	Code      string                 `json:"code"`
	RequestID string                 `json:"request_id,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// MatchesResponse is the payload for GET /api/matches.
type MatchesResponse struct {
	RequestID string           `json:"request_id"`
	UserID    string           `json:"user_id"`
	Mode      string           `json:"mode"`
	Fallback  bool             `json:"fallback"`
	Count     int              `json:"count"`
	Matches   []MatchCandidate `json:"matches"`
}

// MatchCandidate is one ranked entry in a matches response.
type MatchCandidate struct {
	CandidateID        string   `json:"candidate_id"`
	FinalScore         float64  `json:"final_score"`
	ContentScore       float64  `json:"content_score"`
	CollaborativeScore float64  `json:"collaborative_score"`
	ContextScore       float64  `json:"context_score"`
	DiversityPick      bool     `json:"diversity_pick"`
	Reasons            []string `json:"reasons"`
}

// ModelStatsResponse is the payload for GET /api/model/stats.
type ModelStatsResponse struct {
	State      string    `json:"state"`
	Users      int       `json:"users"`
	Items      int       `json:"items"`
	Iterations int       `json:"iterations"`
	RMSE       float64   `json:"rmse"`
	TrainedAt  time.Time `json:"trained_at,omitempty"`
}

// GetMatches handles GET /api/matches - rank candidates for a user.
// Query parameters: user_id (required), limit, mode ("meet" or "professional").
func (h *APIHandlers) GetMatches(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}

	limit := parseInt(r.URL.Query().Get("limit"), engine.DefaultRankLimit)
	if limit > 200 {
		limit = 200
	}

	mode := r.URL.Query().Get("mode")
	switch mode {
	case "", engine.ModeMeet, engine.ModeProfessional:
	default:
		respondError(w, http.StatusBadRequest,
			fmt.Sprintf("unknown mode %q", mode), nil)
		return
	}

	start := time.Now()
	result, err := h.orchestrator.Rank(r.Context(), userID, engine.RankOptions{
		Mode:  mode,
		Limit: limit,
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "user not found", err)
			return
		}
		if errors.Is(err, storage.ErrInvalidInput) {
			respondError(w, http.StatusBadRequest, "invalid request", err)
			return
		}
		if engine.IsKind(err, engine.KindDataUnavailable) {
			respondError(w, http.StatusServiceUnavailable, "candidate data unavailable", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "ranking failed", err)
		return
	}

	if mode == "" {
		mode = engine.ModeMeet
	}
	resp := MatchesResponse{
		RequestID: requestID,
		UserID:    userID,
		Mode:      mode,
		Fallback:  result.Fallback,
		Count:     len(result.Candidates),
		Matches:   make([]MatchCandidate, 0, len(result.Candidates)),
	}
	for _, rc := range result.Candidates {
		resp.Matches = append(resp.Matches, MatchCandidate{
			CandidateID:        rc.Score.CandidateID,
			FinalScore:         rc.Score.FinalScore,
			ContentScore:       rc.Score.ContentScore,
			CollaborativeScore: rc.Score.CollaborativeScore,
			ContextScore:       rc.Score.ContextScore,
			DiversityPick:      rc.Score.DiversityBonus > 0,
			Reasons:            rc.Score.ReasonCodes,
		})
	}

	log.Printf("ranked %d candidates for user %s in %s (request %s, fallback=%v)",
		len(result.Candidates), userID, time.Since(start).Round(time.Millisecond), requestID, result.Fallback)
	respondJSON(w, http.StatusOK, resp)
}

// GetModelStats handles GET /api/model/stats - expose trained model state.
func (h *APIHandlers) GetModelStats(w http.ResponseWriter, r *http.Request) {
	if h.model == nil {
		respondError(w, http.StatusServiceUnavailable, "model not configured", nil)
		return
	}

	state, users, items, iterations, rmse, trainedAt := h.model.Stats()
	respondJSON(w, http.StatusOK, ModelStatsResponse{
		State:      state.String(),
		Users:      users,
		Items:      items,
		Iterations: iterations,
		RMSE:       rmse,
		TrainedAt:  trainedAt,
	})
}

// PostModelRetrain handles POST /api/model/retrain - rebuild latent factors
// from the full interaction log. Training runs synchronously; callers should
// expect the request to block for the duration of SGD.
func (h *APIHandlers) PostModelRetrain(w http.ResponseWriter, r *http.Request) {
	if h.model == nil {
		respondError(w, http.StatusServiceUnavailable, "model not configured", nil)
		return
	}

	start := time.Now()
	if err := h.model.Retrain(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, "retrain failed", err)
		return
	}

	state, users, items, iterations, rmse, trainedAt := h.model.Stats()
	log.Printf("model retrained in %s (%d users, %d items)", time.Since(start).Round(time.Millisecond), users, items)
	respondJSON(w, http.StatusOK, ModelStatsResponse{
		State:      state.String(),
		Users:      users,
		Items:      items,
		Iterations: iterations,
		RMSE:       rmse,
		TrainedAt:  trainedAt,
	})
}

// Helper functions

// parseInt parses an integer from a string, returning defaultValue if parsing fails.
func parseInt(s string, defaultValue int) int {
	if s == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return val
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers already sent; nothing left to do but log.
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response with the given status code.
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	errResp := ErrorResponse{
		Error: message,
		Code:  http.StatusText(statusCode),
	}

	if err != nil {
		errResp.Details = map[string]interface{}{
			"error": err.Error(),
		}
	}

	respondJSON(w, statusCode, errResp)
}
