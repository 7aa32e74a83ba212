// Package mailer sends account emails: verification and password reset links.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/url"
	"time"

	"gopkg.in/gomail.v2"
)

// Sender delivers the account emails required by the auth flows.
type Sender interface {
	SendVerificationEmail(ctx context.Context, to, token string) error
	SendPasswordResetEmail(ctx context.Context, to, token string) error
}

const (
	verificationSubject = "Verifica tu cuenta"
	resetSubject        = "Recuperación de contraseña"
)

var (
	verificationTmpl = template.Must(template.New("verification").Parse(
		`<p>Gracias por registrarte. Haz clic en el siguiente enlace para verificar tu cuenta:</p>
<p><a href="{{.Link}}">{{.Link}}</a></p>
<p>Este enlace expirará en {{.Expiry}}.</p>`))

	resetTmpl = template.Must(template.New("reset").Parse(
		`<h2>Recuperación de Contraseña</h2>
<p>Haz clic en el siguiente enlace para restablecer tu contraseña:</p>
<p><a href="{{.Link}}">{{.Link}}</a></p>
<p>Este enlace expirará en {{.Expiry}}.</p>`))
)

// FormatExpiry renders d for email bodies: "1 hora", "5 minutos", "30 segundos".
func FormatExpiry(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hora", "horas")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int(d/time.Minute), "minuto", "minutos")
	default:
		return plural(int(d.Round(time.Second)/time.Second), "segundo", "segundos")
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return fmt.Sprintf("%d %s", n, many)
}

type linkData struct {
	Link   string
	Expiry string
}

// Links builds the frontend URLs embedded in account emails.
type Links struct {
	FrontendURL        string
	VerificationExpiry string
	ResetExpiry        string
}

// VerificationLink returns {FrontendURL}/users/verify-email?token=...
func (l Links) VerificationLink(token string) string {
	return l.FrontendURL + "/users/verify-email?token=" + url.QueryEscape(token)
}

// ResetLink returns {FrontendURL}/reset-password?token=...
func (l Links) ResetLink(token string) string {
	return l.FrontendURL + "/reset-password?token=" + url.QueryEscape(token)
}

func (l Links) verificationBody(token string) (string, error) {
	return render(verificationTmpl, linkData{Link: l.VerificationLink(token), Expiry: l.VerificationExpiry})
}

func (l Links) resetBody(token string) (string, error) {
	return render(resetTmpl, linkData{Link: l.ResetLink(token), Expiry: l.ResetExpiry})
}

func render(t *template.Template, data linkData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s email: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// SMTPConfig holds the SMTP relay settings
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Links    Links
}

// SMTPSender sends mail through an SMTP relay with gomail.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
	links  Links
	logger *slog.Logger
}

// NewSMTPSender creates an SMTPSender
func NewSMTPSender(cfg SMTPConfig, logger *slog.Logger) *SMTPSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		links:  cfg.Links,
		logger: logger,
	}
}

func (s *SMTPSender) newMessage(to, subject, body string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)
	return m
}

func (s *SMTPSender) send(ctx context.Context, m *gomail.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.dialer.DialAndSend(m)
}

// SendVerificationEmail mails the verification link to to.
func (s *SMTPSender) SendVerificationEmail(ctx context.Context, to, token string) error {
	body, err := s.links.verificationBody(token)
	if err != nil {
		return err
	}
	if err := s.send(ctx, s.newMessage(to, verificationSubject, body)); err != nil {
		return fmt.Errorf("failed to send verification email: %w", err)
	}
	s.logger.Info("verification email sent", "to", to)
	return nil
}

// SendPasswordResetEmail mails the reset link to to.
func (s *SMTPSender) SendPasswordResetEmail(ctx context.Context, to, token string) error {
	body, err := s.links.resetBody(token)
	if err != nil {
		return err
	}
	if err := s.send(ctx, s.newMessage(to, resetSubject, body)); err != nil {
		return fmt.Errorf("failed to send password reset email: %w", err)
	}
	s.logger.Info("password reset email sent", "to", to)
	return nil
}

// LogSender logs links instead of mailing them. Used when no SMTP host is set.
type LogSender struct {
	links  Links
	logger *slog.Logger
}

// NewLogSender creates a LogSender
func NewLogSender(links Links, logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{links: links, logger: logger}
}

// SendVerificationEmail logs the verification link.
func (s *LogSender) SendVerificationEmail(_ context.Context, to, token string) error {
	s.logger.Info("verification email (not sent)", "to", to, "link", s.links.VerificationLink(token))
	return nil
}

// SendPasswordResetEmail logs the reset link.
func (s *LogSender) SendPasswordResetEmail(_ context.Context, to, token string) error {
	s.logger.Info("password reset email (not sent)", "to", to, "link", s.links.ResetLink(token))
	return nil
}
