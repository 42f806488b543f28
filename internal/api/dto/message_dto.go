package dto

import (
	"time"

	"github.com/spec-kit/aviation-mailbot/internal/domain"
)

// InboundMessageRequest is a normalized message pushed by a mail gateway.
type InboundMessageRequest struct {
	ExternalID         string    `json:"external_id"`
	Mailbox            string    `json:"mailbox"`
	Subject            string    `json:"subject"`
	Body               string    `json:"body"`
	SenderAddress      string    `json:"sender_address"`
	SenderName         string    `json:"sender_name"`
	AttachmentsPresent bool      `json:"attachments_present"`
	ReceivedAt         time.Time `json:"received_at"`
}

// ToDomain converts the payload, defaulting the mailbox.
func (r InboundMessageRequest) ToDomain(mailbox string) domain.InboundMessage {
	if r.Mailbox != "" {
		mailbox = r.Mailbox
	}
	return domain.InboundMessage{
		ExternalID:     r.ExternalID,
		Mailbox:        mailbox,
		Subject:        r.Subject,
		Body:           r.Body,
		SenderAddress:  r.SenderAddress,
		SenderName:     r.SenderName,
		HasAttachments: r.AttachmentsPresent,
		ReceivedAt:     r.ReceivedAt,
	}
}

// ClassificationResponse exposes the classifier verdict.
type ClassificationResponse struct {
	Category             domain.Category `json:"category"`
	Priority             domain.Priority `json:"priority"`
	Confidence           float64         `json:"confidence"`
	MatchedKeywords      []string        `json:"matched_keywords"`
	AircraftRegistration *string         `json:"aircraft_registration"`
	IsEmergency          bool            `json:"is_emergency"`
	Rule                 string          `json:"rule,omitempty"`
	Reasoning            string          `json:"reasoning"`
}

// OutcomeResponse reports the intake result for one message.
type OutcomeResponse struct {
	ExternalID     string                  `json:"external_id"`
	Status         string                  `json:"status"`
	Reason         string                  `json:"reason,omitempty"`
	MessageID      string                  `json:"message_id,omitempty"`
	TicketID       string                  `json:"ticket_id,omitempty"`
	TicketNumber   string                  `json:"ticket_number,omitempty"`
	Classification *ClassificationResponse `json:"classification,omitempty"`
}
