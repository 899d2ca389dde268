package postgres

import (
	"context"
	"database/sql"
	"time"

	"xapobank-backend/internal/domain"
	"xapobank-backend/internal/repository"
)

type chatRepository struct {
	db *sql.DB
}

func NewChatRepository(db *sql.DB) repository.ChatRepository {
	return &chatRepository{db: db}
}

const chatColumns = `id, user_id, user_email, COALESCE(user_name, ''), message, message_type,
	COALESCE(whatsapp_number, ''), is_from_user, status, created_at`

func scanChatMessage(row rowScanner) (*domain.ChatMessage, error) {
	m := &domain.ChatMessage{}
	var userID sql.NullInt32
	err := row.Scan(
		&m.ID, &userID, &m.UserEmail, &m.UserName, &m.Message, &m.MessageType,
		&m.WhatsAppNumber, &m.IsFromUser, &m.Status, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if userID.Valid {
		id := userID.Int32
		m.UserID = &id
	}
	return m, nil
}

func (r *chatRepository) Create(ctx context.Context, msg *domain.ChatMessage) error {
	query := `INSERT INTO chat_messages (user_id, user_email, user_name, message, message_type,
		whatsapp_number, is_from_user, status, created_at)
	          VALUES ($1, LOWER($2), NULLIF($3, ''), $4, $5, NULLIF($6, ''), $7, $8, $9) RETURNING id`
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	if msg.Status == "" {
		msg.Status = "sent"
	}
	return r.db.QueryRowContext(ctx, query,
		msg.UserID, msg.UserEmail, msg.UserName, msg.Message, msg.MessageType,
		msg.WhatsAppNumber, msg.IsFromUser, msg.Status, msg.CreatedAt,
	).Scan(&msg.ID)
}

func (r *chatRepository) ListByEmail(ctx context.Context, email string, limit, offset int32) ([]domain.ChatMessage, int32, error) {
	var total int32
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chat_messages WHERE user_email = LOWER($1)`, email,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + chatColumns + ` FROM chat_messages WHERE user_email = LOWER($1)
	          ORDER BY created_at ASC LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, email, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var msgs []domain.ChatMessage
	for rows.Next() {
		m, err := scanChatMessage(rows)
		if err != nil {
			return nil, 0, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, total, rows.Err()
}
