// Package smtp delivers email through the organization's SMTP server.
package smtp

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/chapter-connect/membership-api/internal/domain"
	"github.com/chapter-connect/membership-api/internal/ports/out/sender"
)

const implicitTLSPort = 465

// Sender implements sender.EmailSender. A new client is built per message because the
// SMTP settings can change between sends.
type Sender struct {
	timeout time.Duration
	log     *zap.Logger

	// send is swapped in tests.
	send func(ctx context.Context, c *mail.Client, m *mail.Msg) error
}

func NewSender(timeout time.Duration, log *zap.Logger) *Sender {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Sender{
		timeout: timeout,
		log:     log,
		send: func(ctx context.Context, c *mail.Client, m *mail.Msg) error {
			return c.DialAndSendWithContext(ctx, m)
		},
	}
}

func (s *Sender) SendEmail(ctx context.Context, cfg domain.SMTPConfig, msg sender.Email) (sender.Receipt, error) {
	if !cfg.Configured() {
		return sender.Receipt{}, sender.ErrNotConfigured
	}
	m, err := buildMessage(cfg, msg)
	if err != nil {
		return sender.Receipt{}, err
	}
	c, err := mail.NewClient(cfg.Host, clientOptions(cfg, s.timeout)...)
	if err != nil {
		return sender.Receipt{}, fmt.Errorf("smtp client: %w", err)
	}
	if err := s.send(ctx, c, m); err != nil {
		s.log.Warn("smtp send failed", zap.String("host", cfg.Host), zap.Error(err))
		return sender.Receipt{}, fmt.Errorf("smtp send: %w", err)
	}
	return sender.Receipt{ProviderMessageID: m.GetMessageID()}, nil
}

func buildMessage(cfg domain.SMTPConfig, msg sender.Email) (*mail.Msg, error) {
	m := mail.NewMsg()
	if cfg.FromName != "" {
		if err := m.FromFormat(cfg.FromName, cfg.FromEmail); err != nil {
			return nil, fmt.Errorf("from address: %w", err)
		}
	} else if err := m.From(cfg.FromEmail); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if msg.ToName != "" {
		if err := m.AddToFormat(msg.ToName, msg.To); err != nil {
			return nil, fmt.Errorf("recipient address: %w", err)
		}
	} else if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("recipient address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetMessageID()
	m.SetDate()
	m.SetBodyString(mail.TypeTextHTML, msg.HTML)
	return m, nil
}

func clientOptions(cfg domain.SMTPConfig, timeout time.Duration) []mail.Option {
	port := cfg.Port
	if port == 0 {
		port = domain.DefaultSMTPPort
	}
	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTimeout(timeout),
	}
	switch {
	case !cfg.UseTLS:
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	case port == implicitTLSPort:
		opts = append(opts, mail.WithSSLPort(false))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	return opts
}
