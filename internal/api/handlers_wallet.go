package api

import (
	"net/http"

	"github.com/Zymoclassic/eduplat/internal/domain"
)

type setPINRequest struct {
	PIN        string `json:"pin" validate:"required,len=4,numeric"`
	ConfirmPIN string `json:"confirmPin" validate:"required"`
}

type changePINRequest struct {
	OldPIN        string `json:"oldPin" validate:"required"`
	NewPIN        string `json:"newPin" validate:"required,len=4,numeric"`
	ConfirmNewPIN string `json:"confirmNewPin" validate:"required"`
}

type pinResetTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

type resetPINRequest struct {
	Token      string `json:"token" validate:"required"`
	NewPIN     string `json:"newPin" validate:"required,len=4,numeric"`
	ConfirmPIN string `json:"confirmPin" validate:"required"`
}

type bankDetailsRequest struct {
	AccountName   string `json:"accountName" validate:"required"`
	AccountNumber string `json:"accountNumber" validate:"required,len=10,numeric"`
	BankName      string `json:"bankName" validate:"required"`
}

func (h *Handler) WalletBalanceHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	balance, err := h.wallet.Balance(r.Context(), principal.Ref)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

func (h *Handler) SetPINHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	var req setPINRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := h.wallet.SetPIN(r.Context(), principal.Ref, req.PIN, req.ConfirmPIN); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageResponse{Message: "PIN set"})
}

func (h *Handler) ChangePINHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	var req changePINRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := h.wallet.ChangePIN(r.Context(), principal.Ref, req.OldPIN, req.NewPIN, req.ConfirmNewPIN); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "PIN changed"})
}

func (h *Handler) RequestPINResetHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	if err := h.wallet.RequestPINReset(r.Context(), principal.Ref); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "PIN reset code sent"})
}

func (h *Handler) VerifyPINResetHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	var req pinResetTokenRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := h.wallet.VerifyPINResetToken(r.Context(), principal.Ref, req.Token); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Code verified"})
}

func (h *Handler) ResetPINHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	var req resetPINRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := h.wallet.ResetPIN(r.Context(), principal.Ref, req.Token, req.NewPIN, req.ConfirmPIN); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "PIN reset"})
}

func (h *Handler) ListBanksHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"banks": h.wallet.ListBanks()})
}

func (h *Handler) SaveBankDetailsHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	var req bankDetailsRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	saved, err := h.wallet.SaveBankDetails(r.Context(), principal.Ref, domain.BankDetails{
		AccountName:   req.AccountName,
		AccountNumber: req.AccountNumber,
		BankName:      req.BankName,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}
