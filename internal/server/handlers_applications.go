package server

import (
	"net/http"

	"github.com/jonathan/job-tracker/internal/types"
)

// ---------------------------------------------------------------------
// Application Handlers
// ---------------------------------------------------------------------

func (s *Server) handleListApplications(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.pathUserID(w, r)
	if !ok {
		return
	}

	filter := types.ApplicationFilter{UserID: userID}
	if v := r.URL.Query().Get("status"); v != "" {
		st, err := types.ParseStatus(v)
		if err != nil {
			s.errorResponse(w, http.StatusBadRequest, "Invalid status")
			return
		}
		filter.Status = st
	}
	limit, valid := queryInt(r, "limit", types.DefaultListLimit)
	if !valid {
		s.errorResponse(w, http.StatusBadRequest, "Invalid limit")
		return
	}
	filter.Limit = min(limit, types.MaxListLimit)

	apps, err := s.store.ListApplications(r.Context(), filter)
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	if apps == nil {
		apps = []types.JobApplication{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"applications": apps, "count": len(apps)})
}

func (s *Server) handleCreateApplication(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.pathUserID(w, r)
	if !ok {
		return
	}
	var req types.CreateApplicationRequest
	if !s.decodeRequest(w, r, &req, false) {
		return
	}

	app := &types.JobApplication{
		UserID:        userID,
		Company:       req.Company,
		Title:         req.Title,
		Location:      req.Location,
		JobListingRef: req.JobListingRef,
		Status:        types.Status(req.Status),
	}
	if req.AppliedAt != nil {
		app.AppliedAt = req.AppliedAt.UTC()
	}

	if err := s.store.CreateApplication(r.Context(), app); err != nil {
		s.errorFrom(w, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, app)
}

func (s *Server) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	app, ok := s.loadApplication(w, r)
	if !ok {
		return
	}
	s.jsonResponse(w, http.StatusOK, app)
}

func (s *Server) handleUpdateApplicationStatus(w http.ResponseWriter, r *http.Request) {
	app, ok := s.loadApplication(w, r)
	if !ok {
		return
	}
	var req types.UpdateStatusRequest
	if !s.decodeRequest(w, r, &req, false) {
		return
	}

	to := types.Status(req.Status)
	if to == app.Status {
		s.jsonResponse(w, http.StatusOK, app)
		return
	}
	updated, err := s.store.SetApplicationStatus(r.Context(), app.ID, to)
	if err != nil {
		s.errorFrom(w, err)
		return
	}
	if updated == nil {
		s.errorResponse(w, http.StatusNotFound, "Application not found")
		return
	}
	s.jsonResponse(w, http.StatusOK, updated)
}

// loadApplication resolves {id} to an application the caller owns.
func (s *Server) loadApplication(w http.ResponseWriter, r *http.Request) (*types.JobApplication, bool) {
	id, ok := s.pathID(w, r, "application")
	if !ok {
		return nil, false
	}
	app, err := s.store.GetApplication(r.Context(), id)
	if err != nil {
		s.errorFrom(w, err)
		return nil, false
	}
	if app == nil {
		s.errorResponse(w, http.StatusNotFound, "Application not found")
		return nil, false
	}
	if !s.owns(w, r, app.UserID, "Application") {
		return nil, false
	}
	return app, true
}
