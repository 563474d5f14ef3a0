package mailer

// Template names accepted by Send.
const (
	TemplateVerifyEmail    = "verify_email"
	TemplatePasswordReset  = "password_reset"
	TemplatePINReset       = "pin_reset"
	TemplatePaymentReceipt = "payment_receipt"
	TemplateGeneric        = "generic"
)

const templateSource = `
{{define "layout_start"}}<!DOCTYPE html><html><body style="font-family:Arial,sans-serif;color:#1f2937">{{end}}
{{define "layout_end"}}<p style="color:#6b7280;font-size:12px">This is an automated message. Please do not reply.</p></body></html>{{end}}

{{define "verify_email"}}{{template "layout_start"}}
<p>Hello {{.Name}},</p>
<p>Your verification code is <strong>{{.Code}}</strong>. It expires in {{.ExpiresIn}} minutes.</p>
{{template "layout_end"}}{{end}}

{{define "password_reset"}}{{template "layout_start"}}
<p>Hello {{.Name}},</p>
<p>Use <strong>{{.Code}}</strong> to reset your password. The code expires in {{.ExpiresIn}} minutes.</p>
<p>If you did not request a reset, you can ignore this email.</p>
{{template "layout_end"}}{{end}}

{{define "pin_reset"}}{{template "layout_start"}}
<p>Hello {{.Name}},</p>
<p>Your wallet PIN reset token is <strong>{{.Code}}</strong>. It expires in {{.ExpiresIn}} minutes.</p>
{{template "layout_end"}}{{end}}

{{define "payment_receipt"}}{{template "layout_start"}}
<p>Hello {{.Name}},</p>
<p>We received your payment of <strong>{{.Amount}}</strong> for {{.Course}}.</p>
<p>Reference: {{.Reference}}<br>Status: {{.Status}}</p>
{{template "layout_end"}}{{end}}

{{define "generic"}}{{template "layout_start"}}
<p>Hello {{.Name}},</p>
<p><strong>{{.Title}}</strong></p>
<p>{{.Message}}</p>
{{template "layout_end"}}{{end}}
`
