// Package mailer delivers queued transactional email over SMTP. Delivery is
// retried a fixed number of times with a fixed delay; a message that still
// fails is logged and dropped, never re-raised to whoever triggered it.
package mailer

import (
	"bytes"
	"fmt"
	"log/slog"
	"text/template"
	"time"

	"gopkg.in/gomail.v2"

	sl "github.com/cxbootcamp/premiers/internal/lib/logger"
	"github.com/cxbootcamp/premiers/internal/models"
)

const (
	maxAttempts = 3
	retryDelay  = 3 * time.Minute
)

// Body templates per message kind. The zero key is the fallback.
var templates = map[string]string{
	"activation":          "Welcome to Premiers!\n\nFollow the link to activate your account:\n{{.url}}\n",
	"reset_password":      "You requested a password reset.\n\nFollow the link to choose a new password:\n{{.url}}\n",
	"reset_email":         "You changed your email address.\n\nFollow the link to confirm the new address:\n{{.url}}\n",
	"change_password":     "The password for {{.user_email}} was successfully changed.\n",
	"deactivated_account": "Your account has been deactivated.\n",
	"":                    "{{.url}}\n",
}

type Mailer struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	log *slog.Logger

	// send is swapped in tests.
	send func(msg *gomail.Message) error
	// sleep is swapped in tests to skip the retry delay.
	sleep func(time.Duration)
}

func New(log *slog.Logger, host string, port int, username, password, from string) *Mailer {
	m := &Mailer{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		From:     from,
		log:      log,
		sleep:    time.Sleep,
	}
	m.send = m.dialAndSend

	return m
}

// Deliver renders and sends the message, retrying transient failures. It
// never returns an error: the terminal failure is logged and the message is
// dropped.
func (m *Mailer) Deliver(msg models.EmailMessage) {
	log := m.log.With(
		slog.String("template", msg.Template),
		slog.Any("recipients", msg.Recipients),
	)

	body, err := renderBody(msg)
	if err != nil {
		log.Error("failed to render email body", sl.Err(err))
		return
	}

	mail := gomail.NewMessage()
	mail.SetHeader("From", m.From)
	mail.SetHeader("To", msg.Recipients...)
	mail.SetHeader("Subject", msg.Subject)
	mail.SetBody("text/plain", body)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = m.send(mail); err == nil {
			log.Info("email sent", slog.Int("attempt", attempt))
			return
		}

		log.Warn("email delivery attempt failed",
			slog.Int("attempt", attempt), sl.Err(err))

		if attempt < maxAttempts {
			m.sleep(retryDelay)
		}
	}

	log.Error("email dropped after final attempt", sl.Err(err))
}

func (m *Mailer) dialAndSend(msg *gomail.Message) error {
	dialer := gomail.NewDialer(m.Host, m.Port, m.Username, m.Password)
	return dialer.DialAndSend(msg)
}

func renderBody(msg models.EmailMessage) (string, error) {
	text, ok := templates[msg.Template]
	if !ok {
		return "", fmt.Errorf("unknown template %q", msg.Template)
	}

	tmpl, err := template.New(msg.Template).Parse(text)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, msg.Context); err != nil {
		return "", err
	}

	return buf.String(), nil
}
