package domain

import "time"

// InboundMessage is the normalized shape every mail source yields.
type InboundMessage struct {
	ExternalID     string    `json:"external_id"`
	Mailbox        string    `json:"mailbox"`
	Subject        string    `json:"subject"`
	Body           string    `json:"body"`
	SenderAddress  string    `json:"sender_address"`
	SenderName     string    `json:"sender_name,omitempty"`
	HasAttachments bool      `json:"attachments_present"`
	ReceivedAt     time.Time `json:"received_at"`
}
