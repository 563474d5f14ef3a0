package api

import (
	"net/http"

	"github.com/Zymoclassic/eduplat/internal/app"
)

type signUpRequest struct {
	FirstName       string `json:"firstName" validate:"required"`
	LastName        string `json:"lastName" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	PhoneNumber     string `json:"phoneNumber"`
	Location        string `json:"location"`
	UserType        string `json:"userType" validate:"required"`
	ReferrerCode    string `json:"referrerCode"`
}

type emailRequest struct {
	Email    string `json:"email" validate:"required,email"`
	UserType string `json:"userType" validate:"required"`
}

type otpRequest struct {
	Email    string `json:"email" validate:"required,email"`
	UserType string `json:"userType" validate:"required"`
	OTP      string `json:"otp" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	UserType string `json:"userType" validate:"required"`
}

type resetPasswordRequest struct {
	Email           string `json:"email" validate:"required,email"`
	UserType        string `json:"userType" validate:"required"`
	Token           string `json:"token" validate:"required"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

type changePasswordRequest struct {
	OldPassword     string `json:"oldPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

func (h *Handler) SignUpHandler(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	account, err := h.identity.SignUp(r.Context(), app.SignUpInput{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		PhoneNumber:     req.PhoneNumber,
		Location:        req.Location,
		UserType:        req.UserType,
		ReferrerCode:    req.ReferrerCode,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Account created. Check your email for the verification code.",
		"account": account,
	})
}

func (h *Handler) VerifyEmailHandler(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := h.identity.VerifyEmail(r.Context(), req.UserType, req.Email, req.OTP); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Email verified"})
}

func (h *Handler) ResendVerificationHandler(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := h.identity.ResendVerification(r.Context(), req.UserType, req.Email); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Verification code sent"})
}

func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	result, err := h.identity.Login(r.Context(), req.UserType, req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) ForgotPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := h.identity.ForgotPassword(r.Context(), req.UserType, req.Email); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Password reset code sent"})
}

func (h *Handler) VerifyResetOTPHandler(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := h.identity.VerifyPasswordResetCode(r.Context(), req.UserType, req.Email, req.OTP); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Code verified"})
}

func (h *Handler) ResetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	err := h.identity.ResetPassword(r.Context(), req.UserType, req.Email, req.Token, req.Password, req.ConfirmPassword)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Password reset successful"})
}

func (h *Handler) ChangePasswordHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	err := h.identity.ChangePassword(r.Context(), principal.Ref, req.OldPassword, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Password changed"})
}
