/**
 * @description
 * HTTP router for the enrollment service. Public routes cover sign-up, login,
 * the course catalogue and the signed payment webhook; everything else needs a
 * bearer token, and the /admin tree additionally needs the admin role.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: routing and standard middleware.
 * - github.com/go-chi/cors: CORS handling.
 */

package api

import (
	"net/http"
	"time"

	"github.com/Zymoclassic/eduplat/internal/app"
	"github.com/Zymoclassic/eduplat/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterOptions struct {
	AllowedOrigins []string
	// WebhookLimiter and AuthLimiter throttle per client IP. Nil disables.
	WebhookLimiter *IPRateLimiter
	AuthLimiter    *IPRateLimiter
}

// NewRouter creates the chi router and registers every route.
func NewRouter(h *Handler, tokens *app.TokenIssuer, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	r.With(opts.WebhookLimiter.Middleware).Post("/payments/webhook", h.PaymentWebhookHandler)

	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(opts.AuthLimiter.Middleware)
			r.Post("/signup", h.SignUpHandler)
			r.Post("/verify-email", h.VerifyEmailHandler)
			r.Post("/resend-verification", h.ResendVerificationHandler)
			r.Post("/login", h.LoginHandler)
			r.Post("/forgot-password", h.ForgotPasswordHandler)
			r.Post("/verify-reset-otp", h.VerifyResetOTPHandler)
			r.Post("/reset-password", h.ResetPasswordHandler)
		})
		r.With(AuthMiddleware(tokens)).Post("/change-password", h.ChangePasswordHandler)
	})

	r.Get("/courses", h.ListCoursesHandler)
	r.Get("/courses/{courseID}", h.GetCourseHandler)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(tokens))

		r.Group(func(r chi.Router) {
			r.Use(RequireKind(domain.AccountKindStudent))
			r.Post("/payments/initialize", h.InitializePaymentHandler)
			r.Get("/payments/verify", h.VerifyPaymentHandler)
			r.Get("/students/me", h.StudentProfileHandler)
			r.Patch("/students/me", h.UpdateStudentProfileHandler)
			r.Get("/students/me/courses", h.EnrolledCoursesHandler)
		})
		r.Group(func(r chi.Router) {
			r.Use(RequireKind(domain.AccountKindMarketer))
			r.Get("/marketers/me", h.MarketerProfileHandler)
			r.Patch("/marketers/me", h.UpdateMarketerProfileHandler)
			r.Get("/marketers/me/dashboard", h.MarketerDashboardHandler)
		})

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/balance", h.WalletBalanceHandler)
			r.Post("/pin", h.SetPINHandler)
			r.Put("/pin", h.ChangePINHandler)
			r.Post("/pin/reset-request", h.RequestPINResetHandler)
			r.Post("/pin/reset-verify", h.VerifyPINResetHandler)
			r.Post("/pin/reset", h.ResetPINHandler)
			r.Get("/banks", h.ListBanksHandler)
			r.Put("/bank-details", h.SaveBankDetailsHandler)
		})

		r.Route("/withdrawals", func(r chi.Router) {
			r.Post("/", h.RequestWithdrawalHandler)
			r.Post("/verify", h.VerifyWithdrawalHandler)
			r.Get("/", h.ListWithdrawalsHandler)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.ListNotificationsHandler)
			r.Post("/read-all", h.MarkAllNotificationsReadHandler)
			r.Post("/{notificationID}/read", h.MarkNotificationReadHandler)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Get("/withdrawals", h.AdminListWithdrawalsHandler)
			r.Put("/withdrawals/status", h.AdminDecideWithdrawalHandler)
			r.Get("/courses", h.AdminListCoursesHandler)
			r.Post("/courses", h.CreateCourseHandler)
			r.Patch("/courses/{courseID}", h.UpdateCourseHandler)
			r.Delete("/courses/{courseID}", h.DeleteCourseHandler)
			r.Get("/students", h.AdminListStudentsHandler)
			r.Get("/marketers", h.AdminListMarketersHandler)
			r.Post("/notifications", h.AdminSendNotificationHandler)
		})
	})

	return r
}
