package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type UnsubscribeRepositoryInterface interface {
	IsUnsubscribed(ctx context.Context, email string) (bool, error)
}

type UnsubscribeRepository struct {
	DB *sql.DB
}

func (r *UnsubscribeRepository) IsUnsubscribed(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM unsubscribes WHERE email=$1)`,
		strings.ToLower(strings.TrimSpace(email)),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check unsubscribe list: %w", err)
	}
	return exists, nil
}

func (r *UnsubscribeRepository) Add(ctx context.Context, email string) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO unsubscribes (email) VALUES ($1) ON CONFLICT (email) DO NOTHING`,
		strings.ToLower(strings.TrimSpace(email)),
	)
	return err
}

var _ UnsubscribeRepositoryInterface = (*UnsubscribeRepository)(nil)
