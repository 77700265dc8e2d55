package fakeapi

import (
	"encoding/json"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/benvon/matrix-todo/internal/models"
	"github.com/benvon/matrix-todo/internal/query"
	"github.com/benvon/matrix-todo/internal/request"
	"github.com/benvon/matrix-todo/internal/validation"
	"github.com/gorilla/mux"
)

// DefaultPageSize is used when a list request has no limit
const DefaultPageSize = 50

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	u := request.Caller(r.Context())
	q := r.URL.Query()

	spec := models.FilterSpec{
		SortBy:    models.SortByCreatedAt,
		SortOrder: models.SortDesc,
		Limit:     DefaultPageSize,
	}
	if p := q.Get("priority"); p != "" {
		if err := validation.ValidatePriority(p); err != nil {
			s.respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		prio := models.Priority(p)
		spec.Priority = &prio
	}
	if c := q.Get("is_completed"); c != "" {
		done, err := strconv.ParseBool(c)
		if err != nil {
			s.respondError(w, http.StatusUnprocessableEntity, "is_completed must be a boolean")
			return
		}
		spec.IsCompleted = &done
	}
	if v := q.Get("sort_by"); v != "" {
		spec.SortBy = v
	}
	if v := q.Get("sort_order"); v != "" {
		spec.SortOrder = models.SortOrder(v)
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.respondError(w, http.StatusUnprocessableEntity, "limit must be between 1 and 100")
			return
		}
		spec.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.respondError(w, http.StatusUnprocessableEntity, "offset must be a non-negative integer")
			return
		}
		spec.Offset = n
	}
	if err := validation.Struct(spec); err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	matched := query.Apply(s.owned(u.ID), spec)
	s.respondJSON(w, http.StatusOK, models.TaskPage{
		Tasks:      query.Page(matched, spec.Limit, spec.Offset),
		TotalCount: len(matched),
		Limit:      spec.Limit,
		Offset:     spec.Offset,
	})
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	u := request.Caller(r.Context())

	var req models.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Title = validation.SanitizeText(req.Title)
	if req.Priority == "" {
		req.Priority = models.DefaultPriority
	}
	if err := validation.Struct(req); err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	now := s.now().UTC()
	task := &models.Task{
		ID:          s.nextID(),
		UserID:      u.ID,
		Title:       req.Title,
		Description: req.Description,
		DueDatetime: req.DueDatetime,
		Priority:    req.Priority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	s.tasks = append(s.tasks, task)
	out := *task
	s.mu.Unlock()

	s.respondJSON(w, http.StatusCreated, out)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	u := request.Caller(r.Context())
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(u.ID, id)
	if i < 0 {
		s.respondError(w, http.StatusNotFound, "Task not found")
		return
	}
	s.respondJSON(w, http.StatusOK, *s.tasks[i])
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	u := request.Caller(r.Context())
	id := mux.Vars(r)["id"]

	req, err := decodePatch(r)
	if err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := validation.Struct(req); err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(u.ID, id)
	if i < 0 {
		s.respondError(w, http.StatusNotFound, "Task not found")
		return
	}

	// replace rather than mutate so earlier responses stay untouched
	t := *s.tasks[i]
	if req.Title != nil {
		t.Title = validation.SanitizeText(*req.Title)
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.ClearDueDatetime {
		t.DueDatetime = nil
	} else if req.DueDatetime != nil {
		due := *req.DueDatetime
		t.DueDatetime = &due
	}
	if req.Priority != nil {
		t.Priority = *req.Priority
	}
	if req.IsCompleted != nil {
		t.IsCompleted = *req.IsCompleted
	}
	t.UpdatedAt = s.now().UTC()
	s.tasks[i] = &t

	s.respondJSON(w, http.StatusOK, t)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	u := request.Caller(r.Context())
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	i := s.find(u.ID, id)
	if i >= 0 {
		s.tasks = slices.Delete(s.tasks, i, i+1)
	}
	s.mu.Unlock()

	if i < 0 {
		s.respondError(w, http.StatusNotFound, "Task not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Task deleted successfully",
	}, s.logger)
}

// owned returns copies of the user's tasks in insertion order
func (s *Server) owned(userID string) []*models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if t.UserID == userID {
			c := *t
			out = append(out, &c)
		}
	}
	return out
}

// find returns the index of the user's task or -1. Callers hold s.mu.
func (s *Server) find(userID, id string) int {
	return slices.IndexFunc(s.tasks, func(t *models.Task) bool {
		return t.ID == id && t.UserID == userID
	})
}

// decodePatch reads a partial update, telling an explicit null due date apart from an absent one
func decodePatch(r *http.Request) (models.UpdateTaskRequest, error) {
	var req models.UpdateTaskRequest
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return req, err
	}

	for key, val := range raw {
		var err error
		switch key {
		case "title":
			err = json.Unmarshal(val, &req.Title)
		case "description":
			err = json.Unmarshal(val, &req.Description)
		case "priority":
			err = json.Unmarshal(val, &req.Priority)
		case "is_completed":
			err = json.Unmarshal(val, &req.IsCompleted)
		case "due_datetime":
			if string(val) == "null" {
				req.ClearDueDatetime = true
				continue
			}
			var due time.Time
			if err = json.Unmarshal(val, &due); err == nil {
				req.DueDatetime = &due
			}
		}
		if err != nil {
			return req, err
		}
	}
	return req, nil
}
