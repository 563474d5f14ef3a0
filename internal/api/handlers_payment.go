package api

import (
	"io"
	"log"
	"net/http"

	"github.com/Zymoclassic/eduplat/internal/app"
	"github.com/google/uuid"
)

type initializePaymentRequest struct {
	CourseID         string `json:"courseId" validate:"required,uuid"`
	PaymentStructure string `json:"paymentStructure" validate:"required"`
	LearningMode     string `json:"learningMode" validate:"required"`
}

// PaymentWebhookHandler hands the raw body to reconciliation; the signature
// must be checked against the exact bytes received.
func (h *Handler) PaymentWebhookHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.webhooks.HandleWebhook(r.Context(), body, r.Header.Get(h.signatureHeader))
	if err != nil {
		log.Printf("level=warn component=api endpoint=payment_webhook outcome=reject err=%v", err)
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) InitializePaymentHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	var req initializePaymentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	courseID, err := uuid.Parse(req.CourseID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid course ID")
		return
	}
	session, err := h.payments.Initialize(r.Context(), principal.Ref.ID, app.InitializePaymentInput{
		CourseID:         courseID,
		PaymentStructure: req.PaymentStructure,
		LearningMode:     req.LearningMode,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) VerifyPaymentHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	result, err := h.payments.Verify(r.Context(), principal.Ref.ID, r.URL.Query().Get("reference"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) EnrolledCoursesHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	courses, err := h.payments.EnrolledCourses(r.Context(), principal.Ref.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, courses)
}
