package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Rafal-wq/banking-app/internal/core/domain"
)

func (s *Store) CreateUser(ctx context.Context, name, email string) (*domain.User, error) {
	user := &domain.User{
		ID:        uuid.New(),
		Name:      name,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, name, email, created_at) VALUES ($1, $2, $3, $4)`,
		user.ID, user.Name, user.Email, user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, domain.ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var user domain.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, email, created_at FROM users WHERE id = $1`, id).
		Scan(&user.ID, &user.Name, &user.Email, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// SaveAPIKey stores the hash of an issued key. The raw key is shown to the
// user once and never persisted.
func (s *Store) SaveAPIKey(ctx context.Context, userID uuid.UUID, keyHash, keyPrefix string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (key_hash, user_id, key_prefix) VALUES ($1, $2, $3)`,
		keyHash, userID, keyPrefix)
	if err != nil {
		return fmt.Errorf("save api key: %w", err)
	}
	return nil
}

// UserIDByKeyHash resolves an API-key hash to its owner.
func (s *Store) UserIDByKeyHash(ctx context.Context, keyHash string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := s.pool.QueryRow(ctx,
		`SELECT user_id FROM api_keys WHERE key_hash = $1`, keyHash).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, domain.ErrUserNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("lookup api key: %w", err)
	}
	return userID, nil
}
