package api

import (
	"net/http"
)

type templateRequest struct {
	CustomerID int64 `json:"customer_id" validate:"required,gt=0"`
	DaysOfWeek []int `json:"days_of_week" validate:"required,min=1,dive,min=1,max=7"`
	IsActive   *bool `json:"is_active"`
}

type scheduleRequest struct {
	DaysOfWeek []int `json:"days_of_week" validate:"required,min=1,dive,min=1,max=7"`
	IsActive   *bool `json:"is_active" validate:"required"`
}

func (s *Server) listTemplatesHandler(w http.ResponseWriter, r *http.Request) {
	templates, err := s.templates.ListTemplates(r.Context())
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithData(w, http.StatusOK, templates)
}

func (s *Server) createTemplateHandler(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := decodeJSONBody(r, &req); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	active := req.IsActive == nil || *req.IsActive
	tmpl, err := s.templates.CreateTemplate(r.Context(), req.CustomerID, req.DaysOfWeek, active)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithData(w, http.StatusCreated, tmpl)
}

func (s *Server) getTemplateHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	tmpl, err := s.templates.GetTemplate(r.Context(), id)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithData(w, http.StatusOK, tmpl)
}

func (s *Server) updateTemplateHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	var req scheduleRequest
	if err := decodeJSONBody(r, &req); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	tmpl, err := s.templates.UpdateSchedule(r.Context(), id, req.DaysOfWeek, *req.IsActive)
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithData(w, http.StatusOK, tmpl)
}

func (s *Server) deleteTemplateHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	if err := s.templates.DeleteTemplate(r.Context(), id); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{OK: true})
}

func (s *Server) addTemplateItemHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	var req itemRequest
	if err := decodeJSONBody(r, &req); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	item, err := s.templates.AddItem(r.Context(), id, req.input())
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithData(w, http.StatusCreated, item)
}

func (s *Server) deleteTemplateItemHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}
	itemID, err := pathID(r, "itemID")
	if err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	if err := s.templates.DeleteItem(r.Context(), id, itemID); err != nil {
		s.respondWithAppError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{OK: true})
}
