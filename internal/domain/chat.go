package domain

import "time"

type ChatMessageType string

const (
	ChatMessageTypeUserToAdmin ChatMessageType = "user_to_admin"
	ChatMessageTypeAdminToUser ChatMessageType = "admin_to_user"
	ChatMessageTypeWhatsApp    ChatMessageType = "whatsapp"
)

// ChatMessage is an append-only support chat entry keyed by user email.
type ChatMessage struct {
	ID             int32           `json:"id"`
	UserID         *int32          `json:"user_id,omitempty"`
	UserEmail      string          `json:"user_email"`
	UserName       string          `json:"user_name"`
	Message        string          `json:"message"`
	MessageType    ChatMessageType `json:"message_type"`
	WhatsAppNumber string          `json:"whatsapp_number,omitempty"`
	IsFromUser     bool            `json:"is_from_user"`
	Status         string          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
}
