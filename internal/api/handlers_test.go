package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Zymoclassic/eduplat/internal/app"
	"github.com/Zymoclassic/eduplat/internal/domain"
	"github.com/google/uuid"
)

func TestWriteServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{name: "validation", err: &app.Error{Kind: app.ErrValidation, Message: "bad input"}, wantStatus: http.StatusBadRequest, wantBody: "bad input"},
		{name: "overpayment", err: &app.Error{Kind: app.ErrOverpayment, Message: "too much"}, wantStatus: http.StatusBadRequest, wantBody: "too much"},
		{name: "unauthorized", err: &app.Error{Kind: app.ErrUnauthorized, Message: "invalid PIN"}, wantStatus: http.StatusUnauthorized, wantBody: "invalid PIN"},
		{name: "forbidden", err: &app.Error{Kind: app.ErrForbidden, Message: "no PIN"}, wantStatus: http.StatusForbidden, wantBody: "no PIN"},
		{name: "not found", err: &app.Error{Kind: app.ErrNotFound, Message: "missing"}, wantStatus: http.StatusNotFound, wantBody: "missing"},
		{name: "conflict", err: &app.Error{Kind: app.ErrConflict, Message: "already processed"}, wantStatus: http.StatusConflict, wantBody: "already processed"},
		{name: "external", err: &app.Error{Kind: app.ErrExternalService, Message: "gateway down"}, wantStatus: http.StatusBadGateway, wantBody: "gateway down"},
		{name: "wrapped kind", err: fmt.Errorf("outer: %w", &app.Error{Kind: app.ErrNotFound, Message: "inner"}), wantStatus: http.StatusNotFound, wantBody: "inner"},
		{name: "internal hides details", err: errors.New("pq: connection refused"), wantStatus: http.StatusInternalServerError, wantBody: "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Fatalf("expected body to contain %q, got %s", tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestWriteServiceErrorSetsRetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	err := &app.Error{Kind: app.ErrRateLimited, Message: "slow down", RetryAfter: 30}
	writeServiceError(rec, httptest.NewRequest(http.MethodPost, "/withdrawals/verify", nil), err)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "30" {
		t.Fatalf("expected Retry-After 30, got %q", got)
	}
}

func TestAuthMiddleware(t *testing.T) {
	tokens := app.NewTokenIssuer("secret", time.Hour, []string{"admin@example.com"})
	account := &domain.Account{Ref: domain.AccountRef{Kind: domain.AccountKindStudent, ID: uuid.New()}, Email: "ada@example.com"}
	valid, _, err := tokens.Issue(account)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	var seen app.Principal
	handler := AuthMiddleware(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "missing header", wantStatus: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
		{name: "valid token", header: "Bearer " + valid, wantStatus: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/wallet/balance", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
	if seen.Ref != account.Ref {
		t.Fatalf("expected principal %v in context, got %v", account.Ref, seen.Ref)
	}
}

func TestRoleAndKindGuards(t *testing.T) {
	tokens := app.NewTokenIssuer("secret", time.Hour, []string{"admin@example.com"})
	issue := func(kind domain.AccountKind, email string) string {
		raw, _, err := tokens.Issue(&domain.Account{Ref: domain.AccountRef{Kind: kind, ID: uuid.New()}, Email: email})
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		return raw
	}
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	admin := AuthMiddleware(tokens)(RequireAdmin(ok))
	studentOnly := AuthMiddleware(tokens)(RequireKind(domain.AccountKindStudent)(ok))

	tests := []struct {
		name       string
		handler    http.Handler
		token      string
		wantStatus int
	}{
		{name: "admin allowed", handler: admin, token: issue(domain.AccountKindMarketer, "admin@example.com"), wantStatus: http.StatusOK},
		{name: "non-admin forbidden", handler: admin, token: issue(domain.AccountKindMarketer, "musa@example.com"), wantStatus: http.StatusForbidden},
		{name: "student route allows student", handler: studentOnly, token: issue(domain.AccountKindStudent, "ada@example.com"), wantStatus: http.StatusOK},
		{name: "student route rejects marketer", handler: studentOnly, token: issue(domain.AccountKindMarketer, "musa@example.com"), wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			rec := httptest.NewRecorder()
			tt.handler.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestPaymentWebhookHandler(t *testing.T) {
	engine := app.NewReconciliationEngine(nil, nil, nil, app.ReconciliationConfig{WebhookSecret: "whsec"})
	h := NewHandler(Services{Webhooks: engine}, "x-paystack-signature")
	body := []byte(`{"event":"transfer.success","data":{"reference":"ref-1"}}`)

	tests := []struct {
		name       string
		signature  string
		wantStatus int
	}{
		{name: "missing signature", wantStatus: http.StatusUnauthorized},
		{name: "wrong signature", signature: app.SignWebhookBody("other", body), wantStatus: http.StatusUnauthorized},
		{name: "signed non-charge event acknowledged", signature: app.SignWebhookBody("whsec", body), wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(string(body)))
			if tt.signature != "" {
				req.Header.Set("x-paystack-signature", tt.signature)
			}
			rec := httptest.NewRecorder()
			h.PaymentWebhookHandler(rec, req)
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestDecodeAndValidateReportsFields(t *testing.T) {
	body := `{"firstName":"Ada","lastName":"Obi","email":"not-an-email","password":"password1","confirmPassword":"password2","userType":"student"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/signup", strings.NewReader(body))
	rec := httptest.NewRecorder()

	var dst signUpRequest
	if decodeAndValidate(rec, req, &dst) {
		t.Fatalf("expected validation to fail")
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	got := rec.Body.String()
	for _, want := range []string{`"email":"Invalid email format"`, `"confirmPassword":"confirmPassword must match password"`} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %s in %s", want, got)
		}
	}
}

func TestDecodeAndValidateRejectsMalformedJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/withdrawals", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	var dst withdrawalRequest
	if decodeAndValidate(rec, req, &dst) || rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
}
