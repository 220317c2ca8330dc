package services

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"

	"kaizen/config"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

//go:embed templates/*.html
var emailTemplates embed.FS

var mailTemplates = template.Must(template.ParseFS(emailTemplates, "templates/*.html"))

const (
	welcomeSubject       = "Welcome to kAIzen Systems!"
	passwordResetSubject = "Reset your kAIzen Systems password"
)

// Mailer sends the transactional emails.
type Mailer interface {
	SendWelcome(ctx context.Context, to string) error
	SendPasswordReset(ctx context.Context, to, link string) error
}

type sendClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

type SendGridMailer struct {
	client  sendClient
	from    *mail.Email
	siteURL string
}

func NewSendGridMailer(cfg config.EmailConfig) *SendGridMailer {
	return &SendGridMailer{
		client:  sendgrid.NewSendClient(cfg.SendGridAPIKey),
		from:    mail.NewEmail(cfg.FromName, cfg.FromAddress),
		siteURL: cfg.SiteURL,
	}
}

func (m *SendGridMailer) SendWelcome(ctx context.Context, to string) error {
	html, err := renderMail("welcome.html", map[string]string{"SiteURL": m.siteURL})
	if err != nil {
		return err
	}
	plain := "Thank you for subscribing to kAIzen Systems!\n\nRead the latest issues at " +
		m.siteURL + "/newsletter\nUpgrade to Pro: " + m.siteURL + "/pricing\n"
	return m.send(ctx, to, welcomeSubject, plain, html)
}

func (m *SendGridMailer) SendPasswordReset(ctx context.Context, to, link string) error {
	html, err := renderMail("password_reset.html", map[string]string{"Link": link})
	if err != nil {
		return err
	}
	plain := "Reset your kAIzen Systems password: " + link + "\n\nIf you did not request this, ignore this email.\n"
	return m.send(ctx, to, passwordResetSubject, plain, html)
}

// send treats any non-2xx response as a failure carrying the response body.
func (m *SendGridMailer) send(ctx context.Context, to, subject, plain, html string) error {
	message := mail.NewSingleEmail(m.from, subject, mail.NewEmail("", to), plain, html)

	response, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("SendGrid request failed: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		return fmt.Errorf("SendGrid API error: %s", response.Body)
	}
	return nil
}

func renderMail(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := mailTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}
