package api

import (
	"net/http"

	"github.com/Zymoclassic/eduplat/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type createCourseRequest struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description"`
	Price       int64    `json:"price" validate:"required,gt=0"`
	Durations   []string `json:"duration"`
	IsPublished bool     `json:"isPublished"`
}

type updateCourseRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Price       *int64    `json:"price" validate:"omitempty,gt=0"`
	Durations   *[]string `json:"duration"`
	IsPublished *bool     `json:"isPublished"`
}

func courseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "courseID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid course ID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) ListCoursesHandler(w http.ResponseWriter, r *http.Request) {
	courses, err := h.courses.List(r.Context(), false)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, courses)
}

// AdminListCoursesHandler includes unpublished drafts.
func (h *Handler) AdminListCoursesHandler(w http.ResponseWriter, r *http.Request) {
	courses, err := h.courses.List(r.Context(), true)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, courses)
}

func (h *Handler) GetCourseHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := courseIDParam(w, r)
	if !ok {
		return
	}
	course, err := h.courses.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, course)
}

func (h *Handler) CreateCourseHandler(w http.ResponseWriter, r *http.Request) {
	var req createCourseRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	course, err := h.courses.Create(r.Context(), domain.Course{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Durations:   req.Durations,
		IsPublished: req.IsPublished,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, course)
}

func (h *Handler) UpdateCourseHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := courseIDParam(w, r)
	if !ok {
		return
	}
	var req updateCourseRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	course, err := h.courses.Update(r.Context(), id, domain.CourseUpdate{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Durations:   req.Durations,
		IsPublished: req.IsPublished,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, course)
}

func (h *Handler) DeleteCourseHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := courseIDParam(w, r)
	if !ok {
		return
	}
	if err := h.courses.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
