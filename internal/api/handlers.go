/**
 * @description
 * HTTP handlers for the enrollment service. Handlers decode and validate the
 * request, call one application service and translate the service's error
 * kind into a status code. No ledger logic lives here.
 *
 * @dependencies
 * - internal/app: application services and the error taxonomy.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/Zymoclassic/eduplat/internal/app"
)

// Handler holds the application services used by the HTTP layer.
type Handler struct {
	identity        *app.IdentityService
	wallet          *app.WalletService
	withdrawals     *app.WithdrawalService
	payments        *app.PaymentService
	courses         *app.CourseService
	accounts        *app.AccountService
	webhooks        *app.ReconciliationEngine
	signatureHeader string
}

type Services struct {
	Identity    *app.IdentityService
	Wallet      *app.WalletService
	Withdrawals *app.WithdrawalService
	Payments    *app.PaymentService
	Courses     *app.CourseService
	Accounts    *app.AccountService
	Webhooks    *app.ReconciliationEngine
}

func NewHandler(services Services, signatureHeader string) *Handler {
	if signatureHeader == "" {
		signatureHeader = "x-paystack-signature"
	}
	return &Handler{
		identity:        services.Identity,
		wallet:          services.Wallet,
		withdrawals:     services.Withdrawals,
		payments:        services.Payments,
		courses:         services.Courses,
		accounts:        services.Accounts,
		webhooks:        services.Webhooks,
		signatureHeader: signatureHeader,
	}
}

type messageResponse struct {
	Message string `json:"message"`
}

// writeJSON is a helper for writing JSON responses.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("level=warn component=api msg=\"failed to encode response\" err=%v", err)
		}
	}
}

// writeError is a helper for writing JSON error responses.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps an application error kind to its status code.
// Unclassified errors are logged and answered with a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, app.ErrValidation), errors.Is(err, app.ErrOverpayment):
		status = http.StatusBadRequest
	case errors.Is(err, app.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, app.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, app.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, app.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, app.ErrExternalService):
		status = http.StatusBadGateway
	case errors.Is(err, app.ErrRateLimited):
		status = http.StatusTooManyRequests
	}

	if status == http.StatusInternalServerError {
		log.Printf("level=error component=api msg=\"request failed\" method=%s path=%s err=%v", r.Method, r.URL.Path, err)
		writeError(w, status, "Internal server error")
		return
	}
	if status == http.StatusBadGateway {
		log.Printf("level=warn component=api msg=\"upstream failure\" method=%s path=%s err=%v", r.Method, r.URL.Path, err)
	}

	var appErr *app.Error
	if errors.As(err, &appErr) && appErr.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(appErr.RetryAfter))
	}
	writeError(w, status, app.PublicMessage(err))
}

// mustPrincipal returns the caller or writes 401.
func mustPrincipal(w http.ResponseWriter, r *http.Request) (app.Principal, bool) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
	}
	return principal, ok
}
