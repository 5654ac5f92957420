// Package conversation implements the per-phone-number state machine that
// drives the WhatsApp tax-services chat flow.
package conversation

import (
	"time"
)

// State enumerates every conversation phase. The set is closed: transition
// logic only ever assigns one of these values.
type State string

const (
	StateMenu               State = "MENU"
	StateTaxQuestion        State = "TAX_QUESTION"
	StateTaxResponse        State = "TAX_RESPONSE"
	StateAppointmentDate    State = "APPOINTMENT_DATE"
	StateAppointmentTime    State = "APPOINTMENT_TIME"
	StateAppointmentConfirm State = "APPOINTMENT_CONFIRM"
	StateDocumentUpload     State = "DOCUMENT_UPLOAD"
	StateSupport            State = "SUPPORT"
	StateEnded              State = "ENDED"
)

// DocumentRef is the metadata recorded for one uploaded file. Content is never
// fetched; only the provider file handle and descriptors are tracked.
type DocumentRef struct {
	FileID     string    `json:"file_id"`
	Filename   string    `json:"filename"`
	MimeType   string    `json:"mime_type,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// Context carries transition-scoped data. Fields are populated per flow and
// the whole struct is cleared whenever the conversation returns to the menu.
type Context struct {
	TaxQuestion     string        `json:"tax_question,omitempty"`
	AppointmentDate string        `json:"appointment_date,omitempty"`
	AppointmentTime string        `json:"appointment_time,omitempty"`
	Documents       []DocumentRef `json:"documents,omitempty"`
}

// Empty reports whether no flow data is held.
func (c Context) Empty() bool {
	return c.TaxQuestion == "" && c.AppointmentDate == "" && c.AppointmentTime == "" && len(c.Documents) == 0
}

// Conversation is the durable per-phone-number session record.
type Conversation struct {
	PhoneNumber string    `json:"phone_number"`
	State       State     `json:"state"`
	Context     Context   `json:"context"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewConversation creates a fresh conversation in the menu state.
func NewConversation(phoneNumber string, now time.Time) *Conversation {
	return &Conversation{
		PhoneNumber: phoneNumber,
		State:       StateMenu,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// MessageType discriminates inbound message payloads.
type MessageType string

const (
	MessageText        MessageType = "text"
	MessageInteractive MessageType = "interactive"
	MessageDocument    MessageType = "document"
	MessageImage       MessageType = "image"
	MessageUnknown     MessageType = "unknown"
)

// ReplyKind distinguishes interactive reply variants.
type ReplyKind string

const (
	ReplyList   ReplyKind = "list_reply"
	ReplyButton ReplyKind = "button_reply"
)

// Message is one provider-delivered inbound event, already parsed out of the
// webhook envelope.
type Message struct {
	Type MessageType

	// Text payload.
	Text string

	// Interactive payload.
	ReplyKind ReplyKind
	ReplyID   string

	// Document/image payload.
	FileID   string
	Filename string
	MimeType string

	// Provider-assigned message id, used for webhook dedup and audit.
	ProviderID string
}

// TextMessage builds a plain text inbound message.
func TextMessage(body string) Message {
	return Message{Type: MessageText, Text: body}
}

// ListReply builds an interactive list selection.
func ListReply(id string) Message {
	return Message{Type: MessageInteractive, ReplyKind: ReplyList, ReplyID: id}
}

// ButtonReply builds an interactive button tap.
func ButtonReply(id string) Message {
	return Message{Type: MessageInteractive, ReplyKind: ReplyButton, ReplyID: id}
}
