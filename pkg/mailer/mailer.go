/**
 * @description
 * SMTP mailer with built-in HTML templates for account and ledger emails.
 * Connections are dialled with explicit timeouts and upgraded with STARTTLS
 * when the server offers it.
 *
 * @dependencies
 * - net/smtp, html/template: Standard Go libraries.
 */
package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net"
	"net/smtp"
	"strings"
	"time"
)

var ErrNotConfigured = errors.New("mailer: smtp host not configured")

const (
	dialTimeout    = 8 * time.Second
	sessionTimeout = 15 * time.Second
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

type Mailer struct {
	cfg       Config
	templates *template.Template
}

func New(cfg Config) *Mailer {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &Mailer{cfg: cfg, templates: template.Must(template.New("mail").Parse(templateSource))}
}

func (m *Mailer) Enabled() bool {
	return m != nil && strings.TrimSpace(m.cfg.Host) != ""
}

// Send renders templateName with data and delivers it to one recipient.
func (m *Mailer) Send(ctx context.Context, to, subject, templateName string, data map[string]string) error {
	if !m.Enabled() {
		return ErrNotConfigured
	}
	body, err := m.Render(templateName, data)
	if err != nil {
		return err
	}
	msg := m.compose(to, subject, body)

	log.Printf("level=info component=mailer msg=\"sending email\" to=%s template=%s", to, templateName)
	if err := m.deliver(ctx, to, msg); err != nil {
		log.Printf("level=warn component=mailer msg=\"smtp delivery failed\" to=%s err=%v", to, err)
		return err
	}
	return nil
}

// Render executes a named template; unknown names fall back to the generic layout.
func (m *Mailer) Render(templateName string, data map[string]string) (string, error) {
	tmpl := m.templates.Lookup(templateName)
	if tmpl == nil {
		tmpl = m.templates.Lookup("generic")
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", templateName, err)
	}
	return buf.String(), nil
}

func (m *Mailer) compose(to, subject, htmlBody string) []byte {
	from := m.cfg.From
	if m.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", m.cfg.FromName, m.cfg.From)
	}
	return []byte(strings.Join([]string{
		"From: " + from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		`Content-Type: text/html; charset="UTF-8"`,
		"",
		htmlBody,
	}, "\r\n"))
}

func (m *Mailer) deliver(ctx context.Context, to string, msg []byte) error {
	addr := net.JoinHostPort(m.cfg.Host, fmt.Sprint(m.cfg.Port))

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	deadline := time.Now().Add(sessionTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		conn.Close()
		return err
	}
	defer func() { _ = c.Quit() }()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return err
		}
	}
	if m.cfg.Username != "" {
		if err := c.Auth(smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)); err != nil {
			return err
		}
	}
	if err := c.Mail(m.cfg.From); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
