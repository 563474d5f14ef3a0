package api

import (
	"net/http"

	"github.com/google/uuid"
)

type withdrawalRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

type verifyWithdrawalRequest struct {
	Reference string `json:"reference" validate:"required"`
	PIN       string `json:"pin" validate:"required"`
}

type withdrawalDecisionRequest struct {
	WithdrawalID string `json:"withdrawalId" validate:"required,uuid"`
	Status       string `json:"status" validate:"required,oneof=approved rejected"`
}

func (h *Handler) RequestWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	var req withdrawalRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	withdrawal, err := h.withdrawals.Request(r.Context(), principal.Ref, req.Amount)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":    "Withdrawal requested. Verify it with your PIN to complete.",
		"withdrawal": withdrawal,
	})
}

func (h *Handler) VerifyWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	var req verifyWithdrawalRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	withdrawal, err := h.withdrawals.Verify(r.Context(), principal.Ref, req.Reference, req.PIN)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, withdrawal)
}

func (h *Handler) ListWithdrawalsHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	entries, err := h.withdrawals.History(r.Context(), principal.Ref)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) AdminListWithdrawalsHandler(w http.ResponseWriter, r *http.Request) {
	items, err := h.withdrawals.AdminList(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) AdminDecideWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	var req withdrawalDecisionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	id, err := uuid.Parse(req.WithdrawalID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid withdrawal ID")
		return
	}
	withdrawal, err := h.withdrawals.Decide(r.Context(), id, req.Status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, withdrawal)
}
