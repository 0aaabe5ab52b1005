package outbox

import (
	"context"
	"fmt"
	"sync"

	"github.com/chapter-connect/membership-api/internal/domain"
	"github.com/chapter-connect/membership-api/internal/ports/out/sender"
)

// Sent is one captured delivery.
type Sent struct {
	Channel domain.Channel
	To      string
	Subject string
	Body    string
}

// Outbox captures outbound messages instead of delivering them. It implements both
// sender.EmailSender and sender.WhatsAppSender and is used for local development and tests.
type Outbox struct {
	mu   sync.Mutex
	sent []Sent
	seq  int

	// Fail, when set, is returned by every send.
	Fail error
}

func New() *Outbox { return &Outbox{} }

func (o *Outbox) SendEmail(ctx context.Context, cfg domain.SMTPConfig, msg sender.Email) (sender.Receipt, error) {
	_ = ctx
	_ = cfg
	return o.record(Sent{Channel: domain.ChannelEmail, To: msg.To, Subject: msg.Subject, Body: msg.HTML})
}

func (o *Outbox) SendText(ctx context.Context, cfg domain.WhatsAppConfig, phone, text string) (sender.Receipt, error) {
	_ = ctx
	_ = cfg
	return o.record(Sent{Channel: domain.ChannelWhatsApp, To: phone, Body: text})
}

// ConnectionState reports an open session unless Fail is set.
func (o *Outbox) ConnectionState(ctx context.Context, cfg domain.WhatsAppConfig) (sender.Connection, error) {
	_ = ctx
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Fail != nil {
		return sender.Connection{}, o.Fail
	}
	return sender.Connection{Instance: cfg.InstanceName, State: "open"}, nil
}

func (o *Outbox) record(s Sent) (sender.Receipt, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Fail != nil {
		return sender.Receipt{}, o.Fail
	}
	o.seq++
	o.sent = append(o.sent, s)
	return sender.Receipt{ProviderMessageID: fmt.Sprintf("outbox-%d", o.seq)}, nil
}

// Messages returns a copy of everything captured so far.
func (o *Outbox) Messages() []Sent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Sent(nil), o.sent...)
}
