package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/jonathan/job-tracker/internal/server/middleware"
	"github.com/jonathan/job-tracker/internal/types"
)

// pathUserID parses {user_id} and checks the caller may act for that user.
// It writes the error response and returns false on failure.
func (s *Server) pathUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, err := uuid.Parse(r.PathValue("user_id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid user ID")
		return uuid.Nil, false
	}
	if !middleware.Authorized(r, userID) {
		s.errorResponse(w, http.StatusForbidden, "Forbidden")
		return uuid.Nil, false
	}
	return userID, true
}

// pathID parses the {id} path value.
func (s *Server) pathID(w http.ResponseWriter, r *http.Request, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid "+what+" ID")
		return uuid.Nil, false
	}
	return id, true
}

// owns checks the caller may act on a record owned by owner. Records of
// other users answer 404.
func (s *Server) owns(w http.ResponseWriter, r *http.Request, owner uuid.UUID, what string) bool {
	if middleware.Authorized(r, owner) {
		return true
	}
	s.errorResponse(w, http.StatusNotFound, what+" not found")
	return false
}

// validatable is implemented by the request types in internal/types.
type validatable interface {
	Validate() error
}

// decodeRequest decodes and validates a JSON body. An empty body decodes to
// the zero request when allowEmpty is set.
func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request, req validatable, allowEmpty bool) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil && !(allowEmpty && errors.Is(err, io.EOF)) {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := req.Validate(); err != nil {
		s.errorFrom(w, validationError(err))
		return false
	}
	return true
}

// queryInt reads a non-negative integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// ---------------------------------------------------------------------
// Event Handlers
// ---------------------------------------------------------------------

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.pathUserID(w, r)
	if !ok {
		return
	}

	filter := types.EventFilter{UserID: userID}
	q := r.URL.Query()
	if v := q.Get("label"); v != "" {
		label, err := types.ParseLabel(v)
		if err != nil {
			s.errorResponse(w, http.StatusBadRequest, "Invalid label")
			return
		}
		filter.Label = label
	}
	if v := q.Get("needs_review"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.errorResponse(w, http.StatusBadRequest, "Invalid needs_review")
			return
		}
		filter.NeedsReview = &b
	}
	var valid bool
	if filter.Limit, valid = queryInt(r, "limit", types.DefaultListLimit); !valid {
		s.errorResponse(w, http.StatusBadRequest, "Invalid limit")
		return
	}
	if filter.Offset, valid = queryInt(r, "offset", 0); !valid {
		s.errorResponse(w, http.StatusBadRequest, "Invalid offset")
		return
	}
	filter.Limit = min(filter.Limit, types.MaxListLimit)

	events, err := s.store.ListEmailEvents(r.Context(), filter)
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	if events == nil {
		events = []types.EmailEvent{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.pathUserID(w, r)
	if !ok {
		return
	}
	summary, err := s.store.GetEmailSummary(r.Context(), userID)
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, summary)
}

func (s *Server) handleReviewEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := s.pathID(w, r, "event")
	if !ok {
		return
	}
	var req types.ReviewRequest
	if !s.decodeRequest(w, r, &req, true) {
		return
	}

	event, err := s.store.GetEmailEvent(r.Context(), eventID)
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	if event == nil {
		s.errorResponse(w, http.StatusNotFound, "Event not found")
		return
	}
	if !s.owns(w, r, event.UserID, "Event") {
		return
	}

	var label *types.Label
	if req.Label != nil {
		l := types.Label(*req.Label)
		label = &l
	}
	updated, err := s.store.MarkEventReviewed(r.Context(), eventID, label)
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	if updated == nil {
		s.errorResponse(w, http.StatusNotFound, "Event not found")
		return
	}
	s.jsonResponse(w, http.StatusOK, updated)
}

func (s *Server) handleProcessEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := s.pathID(w, r, "event")
	if !ok {
		return
	}

	existing, err := s.store.GetEmailEvent(r.Context(), eventID)
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	if existing == nil {
		s.errorResponse(w, http.StatusNotFound, "Event not found")
		return
	}
	if !s.owns(w, r, existing.UserID, "Event") {
		return
	}

	event, outcome, err := s.service.ReprocessEvent(r.Context(), eventID)
	if err != nil && event == nil {
		s.errorFrom(w, err)
		return
	}
	resp := map[string]any{"event": event, "outcome": outcome}
	if err != nil {
		resp["error"] = err.Error()
		s.jsonResponse(w, HTTPStatus(err), resp)
		return
	}
	s.jsonResponse(w, http.StatusOK, resp)
}
