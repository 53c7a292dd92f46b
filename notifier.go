package accounts

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"net/http"
	"net/smtp"
	"time"

	"github.com/gofiber/template/django/v3"
	"github.com/goliatone/go-errors"
)

//go:embed templates
var templatesFS embed.FS

// SMTPConfig carries the mail transport settings
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// Addr returns the host:port dial address
func (c SMTPConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// SMTPNotifier delivers verification email over SMTP with an HTML body
// rendered from the embedded templates.
type SMTPNotifier struct {
	cfg    SMTPConfig
	engine *django.Engine
	logger Logger
}

// NewSMTPNotifier creates a notifier bound to the given transport settings
func NewSMTPNotifier(cfg SMTPConfig) (*SMTPNotifier, error) {
	engine := django.NewFileSystem(http.FS(templatesFS), ".django")
	if err := engine.Load(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load email templates")
	}

	return &SMTPNotifier{
		cfg:    cfg,
		engine: engine,
		logger: defLogger{},
	}, nil
}

// WithLogger replaces the default logger
func (n *SMTPNotifier) WithLogger(logger Logger) *SMTPNotifier {
	n.logger = logger
	return n
}

// SendVerificationEmail delivers the verification link to the address.
// Callers treat failures as non-fatal; we only report them.
func (n *SMTPNotifier) SendVerificationEmail(ctx context.Context, email, link string) error {
	select {
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), errors.CategoryOperation, "context cancelled before sending verification email")
	default:
	}

	body, err := n.renderBody("templates/verification_email", map[string]any{
		"link": link,
	})
	if err != nil {
		return err
	}

	msg := n.composeMessage(email, "Email Verification", body)

	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}

	if err := smtp.SendMail(n.cfg.Addr(), auth, n.cfg.From, []string{email}, msg); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to send verification email")
	}

	n.logger.Info("verification email sent to %s", email)

	return nil
}

func (n *SMTPNotifier) renderBody(template string, data map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := n.engine.Render(&buf, template, data); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to render email template")
	}
	return buf.String(), nil
}

func (n *SMTPNotifier) composeMessage(to, subject, body string) []byte {
	msg := fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"Date: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: text/html; charset=UTF-8\r\n"+
		"\r\n"+
		"%s\r\n",
		n.cfg.From, to, subject,
		time.Now().Format(time.RFC1123Z),
		body)

	return []byte(msg)
}
