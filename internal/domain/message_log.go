package domain

import "time"

// DeliveryStatus tracks a message from send attempt to delivery.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliverySent      DeliveryStatus = "sent"
	DeliveryFailed    DeliveryStatus = "failed"
	DeliveryDelivered DeliveryStatus = "delivered"
)

func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliveryPending, DeliverySent, DeliveryFailed, DeliveryDelivered:
		return true
	}
	return false
}

// CanTransition reports whether a delivery-status callback may move a log from s to next.
// delivered and failed are terminal.
func (s DeliveryStatus) CanTransition(next DeliveryStatus) bool {
	switch s {
	case DeliveryPending:
		return next == DeliverySent || next == DeliveryFailed || next == DeliveryDelivered
	case DeliverySent:
		return next == DeliveryDelivered || next == DeliveryFailed
	default:
		return false
	}
}

// MessageLog records one rendered-and-attempted send.
type MessageLog struct {
	ID         MessageLogID
	TemplateID *TemplateID

	RecipientID    *IdentityID
	RecipientEmail *string
	RecipientPhone *string

	Channel       Channel
	Subject       *string
	Content       string
	VariablesUsed map[string]string

	Status            DeliveryStatus
	ErrorMessage      *string
	ProviderMessageID *string

	SentAt      *time.Time
	DeliveredAt *time.Time
	CreatedAt   time.Time
}
