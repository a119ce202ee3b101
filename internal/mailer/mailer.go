package mailer

import (
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"
)

// Config carries the SMTP transport settings.
type Config struct {
	Host     string
	Port     int
	From     string
	Password string
}

// Mailer sends multipart text/HTML mail over SMTP.
type Mailer struct {
	config Config

	dialAndSend func(m *gomail.Message) error
}

func New(cfg Config) *Mailer {
	mailer := &Mailer{config: cfg}
	mailer.dialAndSend = func(m *gomail.Message) error {
		dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.From, cfg.Password)
		return dialer.DialAndSend(m)
	}
	return mailer
}

// Send delivers one message. The HTML part is attached as an alternative so
// plain-text clients still get readable content.
func (m *Mailer) Send(to, subject, text, html string) error {
	if strings.TrimSpace(m.config.Host) == "" || strings.TrimSpace(m.config.From) == "" {
		return fmt.Errorf("send mail: smtp transport not configured")
	}
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("send mail: empty recipient")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.config.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", text)
	if html != "" {
		msg.AddAlternative("text/html", html)
	}

	if err := m.dialAndSend(msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}
