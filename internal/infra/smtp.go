package infra

import (
	"fmt"
	"net/smtp"
	"path/filepath"

	"cimbrasys/internal/config"

	"github.com/jordan-wright/email"
	"github.com/rs/zerolog/log"
)

// Mailer sends plain-text mail with optional file attachments through the
// configured SMTP relay. Sends go through a circuit breaker.
type Mailer struct {
	from string
	addr string
	auth smtp.Auth
	cb   *CircuitBreaker
	send func(e *email.Email, addr string, auth smtp.Auth) error
}

func NewMailer(cfg *config.Config, cb *CircuitBreaker) *Mailer {
	var auth smtp.Auth
	if cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPHost)
	}
	return &Mailer{
		from: cfg.SMTPUser,
		addr: fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		auth: auth,
		cb:   cb,
		send: func(e *email.Email, addr string, auth smtp.Auth) error { return e.Send(addr, auth) },
	}
}

func (m *Mailer) Send(to, subject, body string, adjuntos ...string) error {
	e := email.NewEmail()
	e.From = fmt.Sprintf("CIMBRA-SYS <%s>", m.from)
	e.To = []string{to}
	e.Subject = subject
	e.Text = []byte(body)
	for _, path := range adjuntos {
		if _, err := e.AttachFile(path); err != nil {
			return fmt.Errorf("mailer: adjuntar %s: %w", filepath.Base(path), err)
		}
	}

	err := m.cb.Execute(func() error { return m.send(e, m.addr, m.auth) })
	if err == ErrCircuitOpen {
		log.Warn().Str("to", to).Msg("mailer: circuit open, send skipped")
	}
	return err
}

// Estado reports the breaker state for the health endpoint.
func (m *Mailer) Estado() CBState { return m.cb.State() }
