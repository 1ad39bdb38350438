package delivery

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/sweeney/beacon/internal/notify"
)

// SMTPConfig holds the mail relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	SSL      bool // implicit TLS; otherwise STARTTLS when offered
	Username string
	Password string
	From     string
	// InsecureSkipVerify disables certificate validation. Off unless set.
	InsecureSkipVerify bool
	Timeout            time.Duration
}

// SMTPSender sends email actions. Every send dials a fresh connection,
// authenticates when a username is configured, and disconnects.
type SMTPSender struct {
	cfg SMTPConfig
}

// NewSMTPSender creates an SMTPSender.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// Send delivers one email action.
func (s *SMTPSender) Send(ctx context.Context, a notify.Action) error {
	msg, err := s.buildMessage(a)
	if err != nil {
		return err
	}
	client, err := s.newClient()
	if err != nil {
		return err
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", a.Target(), err)
	}
	return nil
}

func (s *SMTPSender) buildMessage(a notify.Action) (*mail.Msg, error) {
	if a.Email == nil {
		return nil, fmt.Errorf("email %s: no email body", a.ID)
	}
	if len(a.Email.Recipients) == 0 {
		return nil, errors.New("email: no recipients")
	}

	m := mail.NewMsg()
	if err := m.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("email from %q: %w", s.cfg.From, err)
	}
	if err := m.To(a.Email.Recipients...); err != nil {
		return nil, fmt.Errorf("email to: %w", err)
	}
	m.Subject(a.Email.Subject)
	m.SetDate()
	m.SetMessageID()
	m.SetBodyString(mail.TypeTextPlain, a.Email.Body)
	return m, nil
}

func (s *SMTPSender) newClient() (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTLSConfig(&tls.Config{
			ServerName:         s.cfg.Host,
			InsecureSkipVerify: s.cfg.InsecureSkipVerify, //nolint:gosec // explicit operator policy
			MinVersion:         tls.VersionTLS12,
		}),
	}
	if s.cfg.SSL {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if s.cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(s.cfg.Timeout))
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	c, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return c, nil
}
