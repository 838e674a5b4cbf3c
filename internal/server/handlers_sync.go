package server

import (
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/jonathan/job-tracker/internal/matching"
	"github.com/jonathan/job-tracker/internal/pipeline"
	"github.com/jonathan/job-tracker/internal/server/middleware"
	"github.com/jonathan/job-tracker/internal/status"
	"github.com/jonathan/job-tracker/internal/types"
)

// ---------------------------------------------------------------------
// Classification Handlers
// ---------------------------------------------------------------------

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req types.ClassifyRequest
	if !s.decodeRequest(w, r, &req, false) {
		return
	}

	// Anonymous callers classify under the nil user; nothing is stored either way.
	userID, _ := middleware.GetUserID(r)
	event := s.service.ClassifyEmail(r.Context(), userID, req.RawEmail(s.now().UTC()))

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"classification": event.Classification,
		"needs_review":   event.NeedsReview,
	})
}

// matchCandidate is one ranked application in a match preview.
type matchCandidate struct {
	ApplicationID uuid.UUID    `json:"application_id"`
	Company       string       `json:"company"`
	Title         string       `json:"title"`
	Status        types.Status `json:"status"`
	Score         float64      `json:"score"`
	CompanyScore  float64      `json:"company_score"`
	TitleScore    float64      `json:"title_score"`
	TemporalScore float64      `json:"temporal_score"`
	LocationScore float64      `json:"location_score"`
	Notes         string       `json:"notes,omitempty"`
}

func toCandidates(results []matching.Result) []matchCandidate {
	out := make([]matchCandidate, 0, len(results))
	for _, res := range results {
		out = append(out, matchCandidate{
			ApplicationID: res.Application.ID,
			Company:       res.Application.Company,
			Title:         res.Application.Title,
			Status:        res.Application.Status,
			Score:         res.Score,
			CompanyScore:  res.Company,
			TitleScore:    res.Title,
			TemporalScore: res.Temporal,
			LocationScore: res.Location,
			Notes:         res.Notes,
		})
	}
	return out
}

// handleMatchPreview classifies an email and ranks the user's open
// applications against it without writing anything.
func (s *Server) handleMatchPreview(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.pathUserID(w, r)
	if !ok {
		return
	}
	var req types.ClassifyRequest
	if !s.decodeRequest(w, r, &req, false) {
		return
	}

	event := s.service.ClassifyEmail(r.Context(), userID, req.RawEmail(s.now().UTC()))
	resp := map[string]any{
		"classification": event.Classification,
		"candidates":     []matchCandidate{},
		"min_score":      s.service.Config().Match.MinScore,
		"would_match":    false,
	}
	if !event.Label.IsJobRelated() {
		s.jsonResponse(w, http.StatusOK, resp)
		return
	}

	results, err := s.service.PreviewMatch(r.Context(), event)
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	candidates := toCandidates(results)
	resp["candidates"] = candidates
	if len(candidates) > 0 && candidates[0].Score >= s.service.Config().Match.MinScore {
		resp["would_match"] = true
		target, transitions := status.TargetStatus(event.Label, s.service.Config().Status.OfferStatus)
		if transitions && target != "" {
			resp["target_status"] = target
		}
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// ---------------------------------------------------------------------
// Sync Handlers
// ---------------------------------------------------------------------

// beginSync marks a sync running for userID. It fails if one already is.
func (s *Server) beginSync(userID uuid.UUID) bool {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()
	if s.syncing[userID] {
		return false
	}
	s.syncing[userID] = true
	return true
}

func (s *Server) endSync(userID uuid.UUID) {
	s.syncMu.Lock()
	delete(s.syncing, userID)
	s.syncMu.Unlock()
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.pathUserID(w, r)
	if !ok {
		return
	}
	var req types.SyncRequest
	if !s.decodeRequest(w, r, &req, true) {
		return
	}
	if !s.beginSync(userID) {
		s.errorFrom(w, &ErrSyncInProgress{})
		return
	}
	defer s.endSync(userID)

	summary := s.service.SyncUserEmails(r.Context(), userID, req.LookbackDays)
	s.jsonResponse(w, syncStatus(summary), summary)
}

// syncStatus maps a run outcome to the response status.
func syncStatus(summary *types.SyncSummary) int {
	switch summary.Outcome {
	case types.OutcomeAuthError:
		return http.StatusUnauthorized
	case types.OutcomeConnectionError:
		return http.StatusBadGateway
	default:
		return http.StatusOK
	}
}

func (s *Server) handleSyncStream(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.pathUserID(w, r)
	if !ok {
		return
	}
	var req types.SyncRequest
	if !s.decodeRequest(w, r, &req, true) {
		return
	}
	if !s.beginSync(userID) {
		s.errorFrom(w, &ErrSyncInProgress{})
		return
	}
	defer s.endSync(userID)

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	service := s.service.WithProgress(func(ev pipeline.ProgressEvent) {
		if err := sse.WriteProgress(ev); err != nil {
			log.Printf("[sync] Failed to write progress event: %v", err)
		}
	})

	summary := service.SyncUserEmails(r.Context(), userID, req.LookbackDays)

	if !summary.Succeeded() && summary.Outcome != types.OutcomeCancelled {
		sse.WriteError(summary.ErrorMessage)
	}
	sse.WriteComplete(summary)
}

func (s *Server) handleListSyncRuns(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.pathUserID(w, r)
	if !ok {
		return
	}
	limit, valid := queryInt(r, "limit", 20)
	if !valid {
		s.errorResponse(w, http.StatusBadRequest, "Invalid limit")
		return
	}

	runs, err := s.store.ListSyncRuns(r.Context(), userID, min(limit, types.MaxListLimit))
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	if runs == nil {
		runs = []types.SyncSummary{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}
