package postgres

import (
	"database/sql"

	"xapobank-backend/internal/repository"

	_ "github.com/lib/pq"
)

type Store struct {
	db *sql.DB
	repository.UserRepository
	repository.TransactionRepository
	repository.ChatRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:                    db,
		UserRepository:        NewUserRepository(db),
		TransactionRepository: NewTransactionRepository(db),
		ChatRepository:        NewChatRepository(db),
	}
}
