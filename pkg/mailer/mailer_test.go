package mailer

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestRenderTemplates(t *testing.T) {
	m := New(Config{})

	body, err := m.Render(TemplateVerifyEmail, map[string]string{"Name": "Ada", "Code": "4821", "ExpiresIn": "10"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(body, "4821") || !strings.Contains(body, "Ada") {
		t.Fatalf("expected rendered body to include code and name, got %q", body)
	}

	escaped, err := m.Render(TemplateGeneric, map[string]string{"Name": "<script>", "Title": "t", "Message": "m"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(escaped, "<script>") {
		t.Fatalf("expected html escaping, got %q", escaped)
	}
}

func TestRenderUnknownTemplateFallsBackToGeneric(t *testing.T) {
	body, err := New(Config{}).Render("does_not_exist", map[string]string{"Title": "Withdrawal approved", "Message": "done"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(body, "Withdrawal approved") {
		t.Fatalf("expected generic layout, got %q", body)
	}
}

func TestSendWithoutHostIsNotConfigured(t *testing.T) {
	err := New(Config{}).Send(context.Background(), "ada@example.com", "Hi", TemplateGeneric, nil)
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestComposeHeaders(t *testing.T) {
	m := New(Config{From: "no-reply@techx.ng", FromName: "TechX"})
	msg := string(m.compose("ada@example.com", "Welcome", "<p>hi</p>"))

	if !strings.HasPrefix(msg, "From: TechX <no-reply@techx.ng>\r\n") {
		t.Fatalf("unexpected from header in %q", msg)
	}
	if !strings.Contains(msg, "Subject: Welcome\r\n") {
		t.Fatalf("missing subject header in %q", msg)
	}
}
