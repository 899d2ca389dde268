package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"xapobank-backend/internal/domain"
	"xapobank-backend/internal/logger"
	"xapobank-backend/internal/repository"
	"xapobank-backend/internal/security"
)

const whatsappRelayTimeout = 15 * time.Second

type chatService struct {
	chats    repository.ChatRepository
	users    repository.UserRepository
	realtime RealtimeEmitter
	whatsapp WhatsAppService
}

func NewChatService(chats repository.ChatRepository, users repository.UserRepository, realtime RealtimeEmitter, whatsapp WhatsAppService) ChatService {
	return &chatService{chats: chats, users: users, realtime: realtime, whatsapp: whatsapp}
}

// Send records a support chat message. Users always write to the admin
// thread under their own email; admins address any user thread by email.
func (s *chatService) Send(ctx context.Context, requester *security.Identity, toEmail, message string) (*domain.ChatMessage, error) {
	if requester == nil {
		return nil, ErrUnauthorized
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fmt.Errorf("%w: empty message", ErrInvalidInput)
	}

	msg := &domain.ChatMessage{Message: message}
	if requester.IsAdmin() {
		toEmail = strings.ToLower(strings.TrimSpace(toEmail))
		if toEmail == "" {
			return nil, fmt.Errorf("%w: recipient email is required", ErrInvalidInput)
		}
		msg.UserEmail = toEmail
		msg.UserName = requester.Name
		msg.MessageType = domain.ChatMessageTypeAdminToUser
	} else {
		id := requester.ID
		msg.UserID = &id
		msg.UserEmail = strings.ToLower(requester.Email)
		msg.UserName = requester.Name
		msg.MessageType = domain.ChatMessageTypeUserToAdmin
		msg.IsFromUser = true
	}

	if err := s.chats.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to record chat message: %w", err)
	}

	if requester.IsAdmin() {
		// Deliver to the user's open sockets when they have an account.
		if target, err := s.users.GetByEmail(ctx, msg.UserEmail); err == nil {
			s.realtime.EmitToUser(target.ID, "chat:message", msg)
		} else if !errors.Is(err, repository.ErrNotFound) {
			logger.Warn("failed to resolve chat recipient", "email", msg.UserEmail, "error", err)
		}
		s.realtime.EmitToAdmins("chat:message", msg)
		return msg, nil
	}

	s.realtime.EmitToUser(requester.ID, "chat:message", msg)
	s.realtime.EmitToAdmins("chat:message", msg)

	// Relay user messages to the operators' WhatsApp in the background.
	go func() {
		relayCtx, cancel := context.WithTimeout(context.Background(), whatsappRelayTimeout)
		defer cancel()
		if err := s.whatsapp.SendSupportMessage(relayCtx, msg.UserName, msg.UserEmail, message); err != nil {
			logger.Warn("whatsapp relay failed", "email", msg.UserEmail, "error", err)
		}
	}()
	return msg, nil
}

func (s *chatService) History(ctx context.Context, requester *security.Identity, email string, limit, offset int32) ([]domain.ChatMessage, int32, error) {
	if requester == nil {
		return nil, 0, ErrUnauthorized
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		email = strings.ToLower(requester.Email)
	}
	if !requester.IsAdmin() && email != strings.ToLower(requester.Email) {
		return nil, 0, fmt.Errorf("%w: cannot read other users' chat", ErrForbidden)
	}
	return s.chats.ListByEmail(ctx, email, limit, offset)
}
