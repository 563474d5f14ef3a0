package api

import (
	"net/http"
	"strconv"

	"github.com/Zymoclassic/eduplat/internal/app"
	"github.com/Zymoclassic/eduplat/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// updateProfileRequest lists the only fields a user may edit on their profile.
// Unknown keys such as email or balance are ignored by the decoder.
type updateProfileRequest struct {
	FirstName   *string `json:"firstName" validate:"omitempty,max=100"`
	LastName    *string `json:"lastName" validate:"omitempty,max=100"`
	PhoneNumber *string `json:"phoneNumber" validate:"omitempty,max=32"`
	Location    *string `json:"location" validate:"omitempty,max=200"`
}

func (req updateProfileRequest) toUpdate() domain.ProfileUpdate {
	return domain.ProfileUpdate{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
		Location:    req.Location,
	}
}

type sendNotificationRequest struct {
	RecipientID   string `json:"recipientId" validate:"required,uuid"`
	RecipientKind string `json:"recipientKind" validate:"required,oneof=student marketer"`
	Title         string `json:"title" validate:"required,max=200"`
	Message       string `json:"message" validate:"required,max=2000"`
	Type          string `json:"type" validate:"omitempty,oneof=info alert message"`
}

func (h *Handler) StudentProfileHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	student, err := h.accounts.StudentProfile(r.Context(), principal.Ref.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, student)
}

func (h *Handler) UpdateStudentProfileHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	var req updateProfileRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	student, err := h.accounts.UpdateStudentProfile(r.Context(), principal.Ref.ID, req.toUpdate())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, student)
}

func (h *Handler) MarketerProfileHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	marketer, err := h.accounts.MarketerProfile(r.Context(), principal.Ref.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, marketer)
}

func (h *Handler) UpdateMarketerProfileHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	var req updateProfileRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	marketer, err := h.accounts.UpdateMarketerProfile(r.Context(), principal.Ref.ID, req.toUpdate())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, marketer)
}

func (h *Handler) AdminListStudentsHandler(w http.ResponseWriter, r *http.Request) {
	students, err := h.accounts.ListStudents(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, students)
}

func (h *Handler) AdminListMarketersHandler(w http.ResponseWriter, r *http.Request) {
	marketers, err := h.accounts.ListMarketers(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, marketers)
}

func (h *Handler) AdminSendNotificationHandler(w http.ResponseWriter, r *http.Request) {
	var req sendNotificationRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	id, err := uuid.Parse(req.RecipientID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid recipient ID")
		return
	}
	err = h.accounts.SendNotification(r.Context(), app.SendNotificationInput{
		Recipient: domain.AccountRef{Kind: domain.AccountKind(req.RecipientKind), ID: id},
		Title:     req.Title,
		Message:   req.Message,
		Type:      req.Type,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageResponse{Message: "Notification sent"})
}

func (h *Handler) MarketerDashboardHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	dashboard, err := h.accounts.Dashboard(r.Context(), principal.Ref.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

func (h *Handler) ListNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	items, err := h.accounts.Notifications(r.Context(), principal.Ref, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) MarkNotificationReadHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "notificationID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid notification ID")
		return
	}
	if err := h.accounts.MarkNotificationRead(r.Context(), principal.Ref, id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Notification marked as read"})
}

func (h *Handler) MarkAllNotificationsReadHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	updated, err := h.accounts.MarkAllNotificationsRead(r.Context(), principal.Ref)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": updated})
}
