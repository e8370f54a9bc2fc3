package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TokenRepository reads the push tokens registered per user.
type TokenRepository struct {
	pool *pgxpool.Pool
}

// NewTokenRepository creates a new TokenRepository.
func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

// ListByUser returns the non-empty tokens of a user, oldest first.
func (r *TokenRepository) ListByUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT token FROM user_tokens
		 WHERE user_id = $1 AND token <> ''
		 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var tok string
		if err := rows.Scan(&tok); err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}
	return tokens, rows.Err()
}
