package mailer

import (
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

// Config holds SMTP delivery settings
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string
}

// Enabled reports whether enough settings are present to send mail
func (c Config) Enabled() bool {
	return c.Host != "" && c.Port != 0 && c.From != ""
}

// Mailer sends plain-text onboarding mail over SMTP. When the configuration
// is incomplete it degrades to logging the message instead of failing the
// calling flow.
type Mailer struct {
	cfg Config
	log *zap.Logger
}

// New creates a mailer
func New(cfg Config, log *zap.Logger) *Mailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Mailer{cfg: cfg, log: log}
}

// Send delivers one message to the recipient
func (m *Mailer) Send(to, subject, body string) error {
	if !m.cfg.Enabled() {
		m.log.Info("mail delivery disabled, dropping message",
			zap.String("to", to),
			zap.String("subject", subject))
		return nil
	}

	from := m.cfg.From
	if m.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", m.cfg.FromName, m.cfg.From)
	}

	msg := strings.Join([]string{
		"From: " + from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"utf-8\"",
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}

	m.log.Debug("mail sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}
